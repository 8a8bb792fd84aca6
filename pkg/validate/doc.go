// Package validate checks user-facing input before it reaches the
// subscription service: chat user ids, panel usernames, plan selections,
// and bot callback payloads.
//
// Checks are composed from Rules and executed with Apply, which collects
// every failure into a ValidationErrors value rather than stopping at the
// first one.
package validate
