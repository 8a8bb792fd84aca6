package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	// ErrParse is returned when the environment cannot be parsed into
	// the target struct.
	ErrParse = errors.New("config: parse environment")

	// ErrNilTarget is returned when Load receives a nil pointer.
	ErrNilTarget = errors.New("config: nil target")
)

var (
	mu     sync.Mutex
	loaded = make(map[string]any)

	dotenvOnce sync.Once
)

// LoadEnv loads the given .env files into the process environment before
// any config struct is parsed. Later files override earlier ones.
func LoadEnv(paths ...string) error {
	if err := godotenv.Overload(paths...); err != nil {
		return fmt.Errorf("config: load env files: %w", err)
	}
	return nil
}

// Load parses environment variables into cfg based on its `env` field
// tags. Each struct type is parsed once per process; repeated calls for
// the same type return the cached value. The default .env file, when
// present, is applied before the first parse.
func Load[T any](cfg *T) error {
	if cfg == nil {
		return ErrNilTarget
	}

	dotenvOnce.Do(func() {
		// Missing .env is fine; real deployments use the environment.
		_ = godotenv.Load()
	})

	key := typeKey[T]()

	mu.Lock()
	defer mu.Unlock()

	if v, ok := loaded[key]; ok {
		*cfg = v.(T)
		return nil
	}

	if err := env.Parse(cfg); err != nil {
		return errors.Join(ErrParse, err)
	}
	loaded[key] = *cfg
	return nil
}

// MustLoad is Load for configuration the process cannot start without.
func MustLoad[T any](cfg *T) {
	if err := Load(cfg); err != nil {
		panic(err)
	}
}

// Reset drops every cached config value. Intended for tests that change
// environment variables between loads.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	loaded = make(map[string]any)
}

func typeKey[T any]() string {
	t := reflect.TypeOf((*T)(nil)).Elem()
	return t.String()
}
