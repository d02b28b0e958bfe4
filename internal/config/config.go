// Package config provides type-safe environment variable loading with
// per-type caching. A .env file is loaded automatically on first use;
// real environment variables always take precedence.
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
	// ErrInvalidTarget indicates the load target is not a non-nil pointer to a struct.
	ErrInvalidTarget = errors.New("config target must be a non-nil pointer to a struct")

	// ErrParseFailed indicates environment variables could not be parsed
	// into the target struct (missing required values, type mismatches).
	ErrParseFailed = errors.New("failed to parse environment variables")
)

var (
	dotenvOnce sync.Once
	cache      sync.Map // reflect.Type -> loaded struct value
)

// Load populates cfg from environment variables using `env` struct tags.
// Each configuration type is loaded once per process; subsequent calls
// for the same type return the cached value.
func Load(cfg any) error {
	dotenvOnce.Do(func() {
		// A missing .env file is normal outside local development.
		_ = godotenv.Load()
	})

	rv := reflect.ValueOf(cfg)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return ErrInvalidTarget
	}

	t := rv.Elem().Type()
	if cached, ok := cache.Load(t); ok {
		rv.Elem().Set(reflect.ValueOf(cached))
		return nil
	}

	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrParseFailed, err)
	}

	cache.Store(t, rv.Elem().Interface())
	return nil
}

// MustLoad is like Load but panics on failure. Intended for application startup.
func MustLoad(cfg any) {
	if err := Load(cfg); err != nil {
		panic(err)
	}
}
