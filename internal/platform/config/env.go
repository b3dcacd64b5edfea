// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// ParseEnv loads configuration from the process environment.
func ParseEnv(target any) error {
	return parseEnv(target, env.Options{})
}

// ParseEnvFrom loads configuration from environ instead of the process
// environment. Variables missing from environ take their defaults.
func ParseEnvFrom(target any, environ map[string]string) error {
	if environ == nil {
		environ = map[string]string{}
	}
	return parseEnv(target, env.Options{Environment: environ})
}

func parseEnv(target any, opts env.Options) error {
	if target == nil {
		return errors.New("parse env: target is required")
	}
	if err := env.ParseWithOptions(target, opts); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
