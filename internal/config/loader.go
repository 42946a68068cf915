package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment conventions.
const (
	EnvPrefix = "PATPAT_"
	EnvConfig = "PATPAT_CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) if PATPAT_CONFIG is set
//  3. env (prefix PATPAT_, "__" separates nesting levels)
func Load(ctx context.Context) (*Config, error) {
	s, err := LoadStore(ctx)
	if err != nil {
		return nil, err
	}
	return s.Config(ctx)
}

// LoadStore reads the file and env layers into a Store.
func LoadStore(_ context.Context) (*Store, error) {
	k := koanf.New(".")

	if path := os.Getenv(EnvConfig); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// PATPAT_PROGRAM__TPS -> program.tps, PATPAT_LOG_LEVEL -> log_level.
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		s = strings.ToLower(s)
		return strings.ReplaceAll(s, "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}
	// The file path itself is not a setting.
	k.Delete("config")

	return NewStore(k), nil
}
