// Package config holds the user configuration: provider, models, exploration
// limits, reader settings and where run history is kept.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ChamsBouzaiene/rferag/internal/engine"
	"github.com/ChamsBouzaiene/rferag/internal/readers"
)

// Config is the persisted configuration.
type Config struct {
	Provider        string  `yaml:"provider,omitempty"` // empty: LLM_PROVIDER or openai
	Model           string  `yaml:"model,omitempty"`    // empty: provider default
	StructuredModel string  `yaml:"structured_model,omitempty"`
	Temperature     float32 `yaml:"temperature"`
	MaxOutputTokens int     `yaml:"max_output_tokens,omitempty"`

	Limits              engine.Limits      `yaml:"limits"`
	Retry               engine.RetryConfig `yaml:"retry"`
	DispatchConcurrency int                `yaml:"dispatch_concurrency"`

	Readers     ReadersConfig    `yaml:"readers"`
	Datasources DatasourceConfig `yaml:"datasources"`

	PromptsDir string    `yaml:"prompts_dir,omitempty"` // *.tmpl overrides
	DataDir    string    `yaml:"data_dir,omitempty"`    // empty: <config dir>/data
	History    bool      `yaml:"history"`
	Log        LogConfig `yaml:"log"`
}

// ReadersConfig configures the reader agents.
type ReadersConfig struct {
	MaxFileSize string `yaml:"max_file_size"` // human size, e.g. 256KB
	PreviewRows int    `yaml:"preview_rows"`
}

// DatasourceConfig configures enumeration of data sources.
type DatasourceConfig struct {
	Paths            []string `yaml:"paths,omitempty"` // registered at startup
	RespectGitignore bool     `yaml:"respect_gitignore"`
	Ignore           []string `yaml:"ignore,omitempty"`
	Watch            bool     `yaml:"watch"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string   `yaml:"level"`
	Development bool     `yaml:"development"`
	OutputPaths []string `yaml:"output_paths,omitempty"`
}

// Default returns the stock configuration.
func Default() *Config {
	return &Config{
		Limits:              engine.DefaultLimits(),
		Retry:               engine.DefaultRetryConfig(),
		DispatchConcurrency: 1,
		Readers: ReadersConfig{
			MaxFileSize: readers.DefaultMaxFileSize,
			PreviewRows: readers.DefaultPreviewRows,
		},
		History: true,
		Log: LogConfig{
			Level:       "warn",
			OutputPaths: []string{"stderr"},
		},
	}
}

// Validate reports settings that cannot work.
func (c *Config) Validate() error {
	if c.Limits.MaxExplorationCounter < 0 || c.Limits.MaxExplorations < 0 {
		return fmt.Errorf("limits must not be negative")
	}
	if c.Retry.LLMPolicy.MaxRetries < 0 {
		return fmt.Errorf("retry.llm.max_retries must not be negative")
	}
	if c.Readers.MaxFileSize != "" {
		if _, err := readers.ParseSize(c.Readers.MaxFileSize); err != nil {
			return fmt.Errorf("readers.max_file_size: %w", err)
		}
	}
	return nil
}

// MaxFileSize returns the reader size cap in bytes.
func (c *Config) MaxFileSize() int64 {
	s := c.Readers.MaxFileSize
	if s == "" {
		s = readers.DefaultMaxFileSize
	}
	n, err := readers.ParseSize(s)
	if err != nil {
		n, _ = readers.ParseSize(readers.DefaultMaxFileSize)
	}
	return n
}

// ResolveDataDir returns DataDir, or <configDir>/data when unset.
func (c *Config) ResolveDataDir(configDir string) string {
	if c.DataDir != "" {
		return expandHome(c.DataDir)
	}
	return filepath.Join(configDir, "data")
}

// EnvPrefix prefixes every environment override.
const EnvPrefix = "RFERAG_"

// ApplyEnv overrides fields from RFERAG_* variables. Unparsable values are
// reported and leave the field untouched.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	var errs []string
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(EnvPrefix + key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s%s=%q: not an integer", EnvPrefix, key, v))
				return
			}
			*dst = n
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := lookup(EnvPrefix + key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s%s=%q: not a boolean", EnvPrefix, key, v))
				return
			}
			*dst = b
		}
	}

	str("PROVIDER", &c.Provider)
	str("MODEL", &c.Model)
	str("STRUCTURED_MODEL", &c.StructuredModel)
	if v, ok := lookup(EnvPrefix + "TEMPERATURE"); ok {
		f, err := strconv.ParseFloat(v, 32)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%sTEMPERATURE=%q: not a number", EnvPrefix, v))
		} else {
			c.Temperature = float32(f)
		}
	}
	num("MAX_OUTPUT_TOKENS", &c.MaxOutputTokens)
	num("MAX_EXPLORATION_COUNTER", &c.Limits.MaxExplorationCounter)
	num("MAX_EXPLORATIONS", &c.Limits.MaxExplorations)
	num("MAX_RETRIES", &c.Retry.LLMPolicy.MaxRetries)
	num("DISPATCH_CONCURRENCY", &c.DispatchConcurrency)
	str("MAX_FILE_SIZE", &c.Readers.MaxFileSize)
	num("PREVIEW_ROWS", &c.Readers.PreviewRows)
	flag("RESPECT_GITIGNORE", &c.Datasources.RespectGitignore)
	flag("WATCH", &c.Datasources.Watch)
	if v, ok := lookup(EnvPrefix + "DATASOURCES"); ok {
		c.Datasources.Paths = splitList(v)
	}
	str("PROMPTS_DIR", &c.PromptsDir)
	str("DATA_DIR", &c.DataDir)
	flag("HISTORY", &c.History)
	str("LOG_LEVEL", &c.Log.Level)

	if len(errs) > 0 {
		return fmt.Errorf("invalid environment: %s", strings.Join(errs, "; "))
	}
	return nil
}

// splitList splits an os.PathListSeparator separated list, dropping empties.
func splitList(s string) []string {
	var out []string
	for _, p := range filepath.SplitList(s) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
