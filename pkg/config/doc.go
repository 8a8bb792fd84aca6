// Package config loads application configuration from environment
// variables into tagged structs, with optional .env file support for
// local development. Each struct type is parsed once per process and
// cached.
package config
