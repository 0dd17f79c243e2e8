// Package config resolves tool settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"os"
	"strconv"
	"strings"

	errors "github.com/Laisky/errors/v2"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	DefaultNovaModel     = "us.amazon.nova-lite-v1:0"
	DefaultConverseModel = "us.anthropic.claude-3-5-sonnet-20241022-v2:0"
	DefaultCanvasModel   = "amazon.nova-canvas-v1:0"
	DefaultOutputDir     = "./"
)

// Config holds settings shared by every binary. Command line flags take
// precedence over these values.
type Config struct {
	Debug         bool
	AWSProfile    string `validate:"omitempty,printascii,excludesall= "`
	Region        string `validate:"omitempty,lowercase,excludesall= "`
	NovaModel     string `validate:"required,excludesall= "`
	ConverseModel string `validate:"required,excludesall= "`
	CanvasModel   string `validate:"required,excludesall= "`
	OutputDir     string `validate:"required"`
}

// Validate is shared so struct tags elsewhere in the module use the same rules.
var Validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads the given .env files (".env" when none are named) into the
// process environment, then builds and validates a Config. Missing .env files
// are skipped; variables already set in the environment win.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, errors.Wrapf(err, "load env file %q", f)
		}
	}

	cfg := &Config{
		Debug:         envBool("DEBUG", false),
		AWSProfile:    envString("BEDROCK_AWS_PROFILE", ""),
		Region:        envString("BEDROCK_REGION", ""),
		NovaModel:     envString("BEDROCK_NOVA_MODEL", DefaultNovaModel),
		ConverseModel: envString("BEDROCK_CONVERSE_MODEL", DefaultConverseModel),
		CanvasModel:   envString("BEDROCK_CANVAS_MODEL", DefaultCanvasModel),
		OutputDir:     envString("BEDROCK_OUTPUT_DIR", DefaultOutputDir),
	}
	if err := Validate.Struct(cfg); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func envBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return b
}
