/*
PURPOSE:
  Defines the configuration structure and loading logic for Column Runner.
  Adheres to "Config IS Code" philosophy.

REQUIREMENTS:
  User-specified:
  - Declare input/output CSV paths and an ordered list of column specs.
  - Per-column batch size (default 10) and cooldown (default 0).

  Implementation-discovered:
  - Needs to support YAML parsing.
  - A column entry is polymorphic: `name` selects the single variant,
    `group` + `output_columns` the group variant. Misconfiguration of the
    variant must be rejected before any model call happens.
  - Durations in YAML arrive as strings ("90s") or bare integers (seconds).

ARCHITECTURE INTEGRATION:
  - Used by: internal/cli, internal/engine
  - Dependencies: gopkg.in/yaml.v3 (standard for Go config)

ERROR HANDLING:
  - Returns explicit error if config file is invalid.
  - Validate() rejects incomplete configs before processing starts; a
    validation failure is fatal immediately.

IMPLEMENTATION RULES:
  - Config struct tags should support yaml.
  - Defaults should be sensible (e.g., 120s request timeout, 10 retries).

USAGE:
  cfg, err := config.Load("column_runner.yaml")
  specs, err := cfg.ColumnSpecs()

SELF-HEALING INSTRUCTIONS:
  - If new fields are needed, add to Config struct and update Load() defaults.

RELATED FILES:
  - internal/cli/root.go
  - internal/model/types.go

MAINTENANCE:
  - Update when adding new tuning parameters.
*/

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/daryltucker/column-runner/internal/model"
)

// Duration is a time.Duration that unmarshals from a YAML string ("2s",
// "1m30s") or a bare integer (seconds).
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var secs int64
	if err := value.Decode(&secs); err == nil {
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	}

	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("invalid duration %q", value.Value)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// ColumnConfig is one entry of the `columns` list. Exactly one of Name or
// Group must be set; OutputColumns is required with Group and forbidden
// with Name.
type ColumnConfig struct {
	Name          string           `yaml:"name"`
	Group         string           `yaml:"group"`
	OutputColumns []string         `yaml:"output_columns"`
	Prompt        string           `yaml:"prompt"`
	Model         string           `yaml:"model"`
	BatchSize     int              `yaml:"batch_size"`
	Cooldown      Duration         `yaml:"cooldown"`
	Plugins       []map[string]any `yaml:"plugins"`
	Search        map[string]any   `yaml:"search"`
}

// Config represents the full configuration for Column Runner.
type Config struct {
	Input          string         `yaml:"input"`
	Output         string         `yaml:"output"`
	Model          string         `yaml:"model"` // run-level default model
	BaseURL        string         `yaml:"base_url"`
	APIKeyEnv      string         `yaml:"api_key_env"`
	RequestTimeout Duration       `yaml:"request_timeout"`
	MaxRetries     int            `yaml:"max_retries"`
	Columns        []ColumnConfig `yaml:"columns"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:        "https://openrouter.ai/api/v1",
		APIKeyEnv:      "OPENROUTER_API_KEY",
		RequestTimeout: Duration(120 * time.Second),
		MaxRetries:     10,
	}
}

// Load reads configuration from a file.
// If path is specified, it attempts to load that file.
// If path is empty, it searches for default files in order.
// If no file is found, returns the default config.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	var data []byte
	var err error

	if path != "" {
		data, err = os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
	} else {
		defaults := []string{"column_runner.yaml", "runner.yaml"}
		found := false
		for _, name := range defaults {
			data, err = os.ReadFile(name)
			if err == nil {
				path = name // record which file we loaded
				found = true
				break
			}
		}
		if !found {
			return cfg, nil
		}
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks that the configuration is complete enough to run.
// It is called before any rows are loaded or any model call is made.
func (c *Config) Validate() error {
	if c.Input == "" {
		return fmt.Errorf("config: input path is required")
	}
	if c.Output == "" {
		return fmt.Errorf("config: output path is required")
	}
	if len(c.Columns) == 0 {
		return fmt.Errorf("config: at least one column is required")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("config: max_retries must not be negative")
	}
	for i, col := range c.Columns {
		if err := col.validate(c.Model); err != nil {
			return fmt.Errorf("config: column %d: %w", i, err)
		}
	}
	return nil
}

func (cc *ColumnConfig) validate(defaultModel string) error {
	switch {
	case cc.Name != "" && cc.Group != "":
		return fmt.Errorf("%q: name and group are mutually exclusive", cc.Name)
	case cc.Name == "" && cc.Group == "":
		return fmt.Errorf("either name or group is required")
	case cc.Name != "" && len(cc.OutputColumns) > 0:
		return fmt.Errorf("%q: output_columns is only valid with group", cc.Name)
	case cc.Group != "" && len(cc.OutputColumns) == 0:
		return fmt.Errorf("%q: group requires output_columns", cc.Group)
	}
	if cc.Prompt == "" {
		return fmt.Errorf("%q: prompt is required", cc.label())
	}
	if cc.Model == "" && defaultModel == "" {
		return fmt.Errorf("%q: no model set and no run-level default", cc.label())
	}
	if cc.BatchSize < 0 {
		return fmt.Errorf("%q: batch_size must not be negative", cc.label())
	}
	return nil
}

func (cc *ColumnConfig) label() string {
	if cc.Group != "" {
		return cc.Group
	}
	return cc.Name
}

// ColumnSpecs resolves the configured columns into executable specs,
// applying the run-level default model and per-column defaults.
// Call Validate first; ColumnSpecs assumes a valid config.
func (c *Config) ColumnSpecs() []model.ColumnSpec {
	specs := make([]model.ColumnSpec, 0, len(c.Columns))
	for _, cc := range c.Columns {
		spec := model.ColumnSpec{
			Kind:      model.KindSingle,
			Name:      cc.Name,
			Model:     cc.Model,
			Prompt:    cc.Prompt,
			BatchSize: cc.BatchSize,
			Cooldown:  cc.Cooldown.Std(),
			Plugins:   cc.Plugins,
			Search:    cc.Search,
		}
		if cc.Group != "" {
			spec.Kind = model.KindGroup
			spec.Name = cc.Group
			spec.OutputColumns = cc.OutputColumns
		}
		if spec.Model == "" {
			spec.Model = c.Model
		}
		if spec.BatchSize == 0 {
			spec.BatchSize = 10
		}
		specs = append(specs, spec)
	}
	return specs
}

// APIKey reads the bearer credential from the configured environment
// variable. Empty when unset; the engine rejects unauthenticated runs.
func (c *Config) APIKey() string {
	return os.Getenv(c.APIKeyEnv)
}
