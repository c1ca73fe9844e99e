// Package config loads blocksync configuration.
//
// Sources, lowest precedence first: built-in defaults, a YAML file, a .env
// file, then BLOCKSYNC_* environment variables. The merged result is
// validated against an embedded CUE schema.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/roach88/blocksync/internal/backend"
	"github.com/roach88/blocksync/internal/remote"
)

//go:embed schema.cue
var schemaCUE string

// EnvPrefix prefixes all environment overrides.
const EnvPrefix = "BLOCKSYNC_"

// Config is the merged configuration.
type Config struct {
	BaseURL       string                `yaml:"base_url" json:"base_url"`
	Database      string                `yaml:"database" json:"database"`
	Platform      string                `yaml:"platform" json:"platform"`
	OS            string                `yaml:"os" json:"os"`
	ClientVersion int                   `yaml:"client_version" json:"client_version"`
	TickInterval  time.Duration         `yaml:"tick_interval" json:"tick_interval"`
	WelcomeTTL    time.Duration         `yaml:"welcome_ttl" json:"welcome_ttl"`
	HTTPTimeout   time.Duration         `yaml:"http_timeout" json:"http_timeout"`
	LogLevel      string                `yaml:"log_level" json:"log_level"`
	LogFormat     string                `yaml:"log_format" json:"log_format"`
	UserID        string                `yaml:"user_id" json:"user_id,omitempty"`
	Secret        string                `yaml:"secret" json:"-"`
	Welcome       backend.WelcomeParams `yaml:"welcome" json:"welcome"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		BaseURL:       "http://localhost:8080",
		Database:      "blocksync.db",
		Platform:      remote.PlatformDesktop,
		OS:            "desktop",
		ClientVersion: 1,
		TickInterval:  15 * time.Second,
		WelcomeTTL:    backend.DefaultWelcomeTTL,
		HTTPTimeout:   remote.DefaultTimeout,
		LogLevel:      "info",
		LogFormat:     "text",
	}
}

// Options select the sources of Load. Empty paths are skipped.
type Options struct {
	// Path is the YAML config file. A missing file is an error.
	Path string
	// EnvFile is a .env file. A missing file is ignored.
	EnvFile string
	// Lookup reads the environment. Defaults to os.LookupEnv.
	Lookup func(key string) (string, bool)
}

// Load merges all sources and validates the result.
func Load(opts Options) (*Config, error) {
	cfg := Default()

	if opts.Path != "" {
		data, err := os.ReadFile(opts.Path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", opts.Path, err)
		}
	}

	lookup := opts.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}

	dotenv := map[string]string{}
	if opts.EnvFile != "" {
		m, err := godotenv.Read(opts.EnvFile)
		switch {
		case err == nil:
			dotenv = m
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read env file: %w", err)
		}
	}

	// The process environment wins over the .env file.
	get := func(key string) (string, bool) {
		if v, ok := lookup(EnvPrefix + key); ok {
			return v, true
		}
		v, ok := dotenv[EnvPrefix+key]
		return v, ok
	}
	if err := cfg.applyEnv(get); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv(get func(string) (string, bool)) error {
	strs := map[string]*string{
		"BASE_URL":      &c.BaseURL,
		"DB":            &c.Database,
		"PLATFORM":      &c.Platform,
		"OS":            &c.OS,
		"LOG_LEVEL":     &c.LogLevel,
		"LOG_FORMAT":    &c.LogFormat,
		"USER_ID":       &c.UserID,
		"SECRET":        &c.Secret,
		"PUSH_PROVIDER": &c.Welcome.PushProvider,
		"PUSH_TOKEN":    &c.Welcome.PushToken,
	}
	for key, dst := range strs {
		if v, ok := get(key); ok {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"TICK_INTERVAL": &c.TickInterval,
		"WELCOME_TTL":   &c.WelcomeTTL,
		"HTTP_TIMEOUT":  &c.HTTPTimeout,
	}
	for key, dst := range durations {
		if v, ok := get(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
			}
			*dst = d
		}
	}

	if v, ok := get("CLIENT_VERSION"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sCLIENT_VERSION: %w", EnvPrefix, err)
		}
		c.ClientVersion = n
	}
	return nil
}

// document is the view of c checked by the schema.
func (c *Config) document() map[string]any {
	welcome := map[string]any{
		"drawn_blocks": c.Welcome.DrawnBlocks,
		"donor_state":  c.Welcome.DonorState,
	}
	if c.Welcome.PushProvider != "" {
		welcome["push_provider"] = c.Welcome.PushProvider
	}
	if c.Welcome.PushToken != "" {
		welcome["push_token"] = c.Welcome.PushToken
	}

	doc := map[string]any{
		"base_url":       c.BaseURL,
		"database":       c.Database,
		"platform":       c.Platform,
		"os":             c.OS,
		"client_version": c.ClientVersion,
		"tick_interval":  c.TickInterval.String(),
		"welcome_ttl":    c.WelcomeTTL.String(),
		"http_timeout":   c.HTTPTimeout.String(),
		"log_level":      c.LogLevel,
		"log_format":     c.LogFormat,
		"welcome":        welcome,
	}
	if c.UserID != "" {
		doc["user_id"] = c.UserID
	}
	if c.Secret != "" {
		doc["secret"] = c.Secret
	}
	return doc
}

// Validate checks c against the embedded schema.
func (c *Config) Validate() error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	unified := def.Unify(ctx.Encode(c.document()))
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return newValidationError(err)
	}

	return nil
}

// Problem is one schema violation.
type Problem struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists all schema violations of a configuration.
type ValidationError struct {
	Problems []Problem
}

func newValidationError(err error) *ValidationError {
	ve := &ValidationError{}
	for _, e := range cueerrors.Errors(err) {
		format, args := e.Msg()
		ve.Problems = append(ve.Problems, Problem{
			Field:   strings.Join(trimDefinition(e.Path()), "."),
			Message: fmt.Sprintf(format, args...),
		})
	}
	if len(ve.Problems) == 0 {
		ve.Problems = []Problem{{Message: err.Error()}}
	}
	return ve
}

// trimDefinition drops the leading "#Config" path element.
func trimDefinition(path []string) []string {
	if len(path) > 0 && path[0] == "#Config" {
		return path[1:]
	}
	return path
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		if p.Field == "" {
			parts[i] = p.Message
			continue
		}
		parts[i] = p.Field + ": " + p.Message
	}
	return "invalid config: " + strings.Join(parts, "; ")
}

// HasField reports whether field has a problem.
func (e *ValidationError) HasField(field string) bool {
	for _, p := range e.Problems {
		if p.Field == field {
			return true
		}
	}
	return false
}
