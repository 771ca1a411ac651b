// Package config provides configuration loading for the CarbonFlow engine.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults for the factor matcher and scoring configuration.
const (
	DefaultFactorAPIURL  = "http://localhost:9000"
	DefaultAPITimeout    = 10000 * time.Millisecond
	DefaultCarbonFactor  = 1.0
	DefaultUnit          = "kg"
	DefaultMinMatchScore = 0.3
	DefaultTopK          = 3

	DefaultScoreLowMedium  = 0.4
	DefaultScoreMediumHigh = 0.7
)

// Matcher holds settings for the external carbon-factor matching API.
type Matcher struct {
	APIURL        string        `yaml:"api_url"`
	Timeout       time.Duration `yaml:"timeout"`
	DefaultFactor float64       `yaml:"default_factor"`
	DefaultUnit   string        `yaml:"default_unit"`
	MinMatchScore float64       `yaml:"min_match_score"`
	TopK          int           `yaml:"top_k"`
}

// matcherYAML mirrors Matcher with the timeout as a duration string. The
// score is a pointer because 0 is a legitimate configured value ("accept
// everything") and must stay distinguishable from the key being absent.
type matcherYAML struct {
	APIURL        string   `yaml:"api_url"`
	Timeout       string   `yaml:"timeout"`
	DefaultFactor float64  `yaml:"default_factor"`
	DefaultUnit   string   `yaml:"default_unit"`
	MinMatchScore *float64 `yaml:"min_match_score"`
	TopK          int      `yaml:"top_k"`
}

// UnmarshalYAML accepts the timeout as a duration string ("10s", "500ms").
func (m *Matcher) UnmarshalYAML(value *yaml.Node) error {
	var raw matcherYAML
	if err := value.Decode(&raw); err != nil {
		return err
	}

	m.APIURL = raw.APIURL
	m.DefaultFactor = raw.DefaultFactor
	m.DefaultUnit = raw.DefaultUnit
	m.TopK = raw.TopK
	m.Timeout = 0

	if raw.MinMatchScore != nil {
		m.MinMatchScore = *raw.MinMatchScore
	}

	if raw.Timeout != "" {
		timeout, err := time.ParseDuration(raw.Timeout)
		if err != nil {
			return fmt.Errorf("invalid matcher timeout %q: %w", raw.Timeout, err)
		}

		m.Timeout = timeout
	}

	return nil
}

// ScoreThresholds defines the activity-score bucket boundaries.
// A score below LowMedium classifies as "low", below MediumHigh as "medium",
// everything else as "high".
type ScoreThresholds struct {
	LowMedium  float64 `yaml:"low_medium"`
	MediumHigh float64 `yaml:"medium_high"`
}

// Config is the full engine configuration.
type Config struct {
	Matcher    Matcher         `yaml:"matcher"`
	Thresholds ScoreThresholds `yaml:"thresholds"`
}

// Default returns the configuration with all documented default values.
func Default() Config {
	return Config{
		Matcher: Matcher{
			APIURL:        DefaultFactorAPIURL,
			Timeout:       DefaultAPITimeout,
			DefaultFactor: DefaultCarbonFactor,
			DefaultUnit:   DefaultUnit,
			MinMatchScore: DefaultMinMatchScore,
			TopK:          DefaultTopK,
		},
		Thresholds: ScoreThresholds{
			LowMedium:  DefaultScoreLowMedium,
			MediumHigh: DefaultScoreMediumHigh,
		},
	}
}

// LoadFile loads configuration from a YAML file, filling unset fields with
// defaults.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	cfg.normalize()

	return cfg, nil
}

// LoadFileOrDefault attempts to load configuration from a YAML file, falling
// back to defaults if the file does not exist.
func LoadFileOrDefault(path string) Config {
	cfg, err := LoadFile(path)
	if err != nil {
		return Default()
	}

	return cfg
}

func (c *Config) normalize() {
	def := Default()

	if c.Matcher.APIURL == "" {
		c.Matcher.APIURL = def.Matcher.APIURL
	}

	if c.Matcher.Timeout <= 0 {
		c.Matcher.Timeout = def.Matcher.Timeout
	}

	if c.Matcher.DefaultFactor == 0 {
		c.Matcher.DefaultFactor = def.Matcher.DefaultFactor
	}

	if c.Matcher.DefaultUnit == "" {
		c.Matcher.DefaultUnit = def.Matcher.DefaultUnit
	}

	if c.Matcher.TopK <= 0 {
		c.Matcher.TopK = def.Matcher.TopK
	}

	if c.Thresholds.LowMedium == 0 {
		c.Thresholds.LowMedium = def.Thresholds.LowMedium
	}

	if c.Thresholds.MediumHigh == 0 {
		c.Thresholds.MediumHigh = def.Thresholds.MediumHigh
	}
}

// Validate checks cross-field consistency of the configuration.
func (c Config) Validate() error {
	if c.Thresholds.LowMedium >= c.Thresholds.MediumHigh {
		return fmt.Errorf("score threshold low_medium (%v) must be below medium_high (%v)",
			c.Thresholds.LowMedium, c.Thresholds.MediumHigh)
	}

	if c.Matcher.MinMatchScore < 0 || c.Matcher.MinMatchScore > 1 {
		return fmt.Errorf("min_match_score %v out of range [0,1]", c.Matcher.MinMatchScore)
	}

	return nil
}
