// Package config holds the runtime options of the server process. Options
// come from command line flags, falling back to MCP_OPENAI_IMAGE_* variables.
// The user's persisted settings live in the credential record instead.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const envPrefix = "MCP_OPENAI_IMAGE_"

type Options struct {
	ConfigPath          string
	OutputDir           string
	Keep                int
	Debug               bool
	APIBase             string
	Timeout             time.Duration
	RequestsPerMinute   int
	RequireOrganization bool
	KeyParam            string
	MirrorBucket        string
	MirrorPrefix        string
	Distribution        string
}

// Default returns options resolved against the current user's home directory
// and the environment.
func Default() (Options, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Options{}, fmt.Errorf("resolve home directory: %w", err)
	}

	keep, err := envInt("KEEP", 50)
	if err != nil {
		return Options{}, err
	}
	rpm, err := envInt("REQUESTS_PER_MINUTE", 10)
	if err != nil {
		return Options{}, err
	}
	timeout := 3 * time.Minute
	if v, ok := lookupEnv("TIMEOUT"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return Options{}, fmt.Errorf("%sTIMEOUT has invalid duration %q: %w", envPrefix, v, err)
		}
		timeout = parsed
	}

	return Options{
		ConfigPath:          envOrDefault("CONFIG", filepath.Join(home, ".mcp-openai-image", "config.json")),
		OutputDir:           envOrDefault("OUTPUT_DIR", filepath.Join(home, "Desktop", "generated_images")),
		Keep:                keep,
		Debug:               envOrDefault("DEBUG", "") != "",
		APIBase:             envOrDefault("API_BASE", "https://api.openai.com/v1"),
		Timeout:             timeout,
		RequestsPerMinute:   rpm,
		RequireOrganization: envOrDefault("REQUIRE_ORGANIZATION", "") != "",
		KeyParam:            envOrDefault("KEY_PARAM", ""),
		MirrorBucket:        envOrDefault("MIRROR_BUCKET", ""),
		MirrorPrefix:        envOrDefault("MIRROR_PREFIX", "images/"),
		Distribution:        envOrDefault("DISTRIBUTION", ""),
	}, nil
}

// Validate rejects option combinations the server cannot start with.
func (o Options) Validate() error {
	if o.ConfigPath == "" {
		return fmt.Errorf("config path is empty")
	}
	if o.OutputDir == "" {
		return fmt.Errorf("output directory is empty")
	}
	if o.Keep < 0 {
		return fmt.Errorf("retention count %d is negative", o.Keep)
	}
	if o.RequestsPerMinute <= 0 {
		return fmt.Errorf("requests per minute must be positive, got %d", o.RequestsPerMinute)
	}
	if o.Distribution != "" && o.MirrorBucket == "" {
		return fmt.Errorf("distribution %q set without a mirror bucket", o.Distribution)
	}
	return nil
}

func lookupEnv(key string) (string, bool) {
	return os.LookupEnv(envPrefix + key)
}

func envOrDefault(key, defaultValue string) string {
	if v, ok := lookupEnv(key); ok && v != "" {
		return v
	}
	return defaultValue
}

func envInt(key string, defaultValue int) (int, error) {
	v, ok := lookupEnv(key)
	if !ok || v == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s%s has invalid integer %q: %w", envPrefix, key, v, err)
	}
	return n, nil
}
