// Package config loads appledesc command defaults from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	appledesc "github.com/EC-DIGIT-CSIRC/sysdiagnose-sub000"
)

// Config holds command defaults. Flags override every field.
type Config struct {
	LogLevel    string
	Format      string
	MaxDepth    int
	MaxLineSize int
	NonASCII    string
	Strategy    string
	Merge       string
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		LogLevel:    "info",
		Format:      "json",
		MaxDepth:    appledesc.DefaultMaxDepth,
		MaxLineSize: appledesc.DefaultMaxLineSize,
		NonASCII:    "preserve",
		Strategy:    "stack",
		Merge:       "replace",
	}
}

// LoadDotenv loads the given .env files (".env" when none are named) into
// the process environment. A missing default file is not an error.
func LoadDotenv(files ...string) error {
	if len(files) == 0 {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
	}
	return godotenv.Load(files...)
}

// Load reads LOG_LEVEL and the APPLEDESC_* variables on top of Default.
func Load() (Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (Config, error) {
	cfg := Default()
	if v := strings.TrimSpace(getenv("LOG_LEVEL")); v != "" {
		cfg.LogLevel = v
	}
	if v := strings.TrimSpace(getenv("APPLEDESC_FORMAT")); v != "" {
		cfg.Format = v
	}
	if v := strings.TrimSpace(getenv("APPLEDESC_NON_ASCII")); v != "" {
		cfg.NonASCII = v
	}
	if v := strings.TrimSpace(getenv("APPLEDESC_STRATEGY")); v != "" {
		cfg.Strategy = v
	}
	if v := strings.TrimSpace(getenv("APPLEDESC_MERGE")); v != "" {
		cfg.Merge = v
	}
	var err error
	if cfg.MaxDepth, err = intVar(getenv, "APPLEDESC_MAX_DEPTH", cfg.MaxDepth); err != nil {
		return Config{}, err
	}
	if cfg.MaxLineSize, err = intVar(getenv, "APPLEDESC_MAX_LINE_SIZE", cfg.MaxLineSize); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func intVar(getenv func(string) string, name string, def int) (int, error) {
	v := strings.TrimSpace(getenv(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return n, nil
}

// Validate checks that the enumerated settings are known.
func (c Config) Validate() error {
	switch strings.ToLower(c.Format) {
	case "json", "jsonl", "yaml":
	default:
		return fmt.Errorf("unknown output format %q", c.Format)
	}
	if _, err := appledesc.ParseNonASCIIPolicy(c.NonASCII); err != nil {
		return err
	}
	if _, err := appledesc.ParseStrategy(c.Strategy); err != nil {
		return err
	}
	if _, err := appledesc.ParseMergeStrategy(c.Merge); err != nil {
		return err
	}
	if c.MaxLineSize <= 0 {
		return fmt.Errorf("max line size must be positive, got %d", c.MaxLineSize)
	}
	return nil
}

// Decoder builds the inline decoder described by c.
func (c Config) Decoder() (*appledesc.Decoder, error) {
	policy, err := appledesc.ParseNonASCIIPolicy(c.NonASCII)
	if err != nil {
		return nil, err
	}
	strategy, err := appledesc.ParseStrategy(c.Strategy)
	if err != nil {
		return nil, err
	}
	return appledesc.NewDecoder().WithNonASCIIPolicy(policy).WithStrategy(strategy), nil
}

// TreeDecoder builds the tree decoder described by c around d.
func (c Config) TreeDecoder(d *appledesc.Decoder) (*appledesc.TreeDecoder, error) {
	merge, err := appledesc.ParseMergeStrategy(c.Merge)
	if err != nil {
		return nil, err
	}
	return appledesc.NewTreeDecoder().
		WithDecoder(d).
		WithMaxDepth(c.MaxDepth).
		WithMaxLineSize(c.MaxLineSize).
		WithMergeStrategy(merge), nil
}
