package application

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-tally/internal/ports"
)

// DeleteMode selects how deleted votes are retired.
type DeleteMode string

const (
	// DeleteSoft keeps the vote row with Deleted set. It no longer counts
	// toward aggregates or listings.
	DeleteSoft DeleteMode = "soft"

	// DeletePurge removes the vote row from the snapshot entirely.
	DeletePurge DeleteMode = "purge"
)

// Config defines the runtime settings of the rating ledger.
type Config struct {
	// SnapshotPath is the JSON file shared by every process of a deployment.
	SnapshotPath string `yaml:"snapshot_path" validate:"required"`
	// Ratings bounds the thinking and implementation sub-ratings.
	Ratings Range `yaml:"ratings"`
	// Quality bounds the optional quality rating.
	Quality Range `yaml:"quality"`
	// DeleteMode is applied uniformly to every vote deletion path.
	DeleteMode DeleteMode `yaml:"delete_mode" validate:"required,oneof=soft purge"`
	// LegacyCourseID is the course that legacy problems are matched in and
	// created under.
	LegacyCourseID int `yaml:"legacy_course_id" validate:"min=1"`
	// ReportRate throttles reports per reporter. Zero disables throttling.
	ReportRate ReportRateConfig `yaml:"report_rate"`
	// Watch enables proactive reload on snapshot file change notifications.
	Watch bool `yaml:"watch"`
	// LogLevel is one of debug, info, warn or error.
	LogLevel string `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

// Range is an inclusive numeric interval.
type Range struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Contains reports whether v lies in [Min, Max].
func (r Range) Contains(v float64) bool { return v >= r.Min && v <= r.Max }

// ReportRateConfig configures the per-reporter token bucket.
type ReportRateConfig struct {
	PerMinute float64 `yaml:"per_minute" validate:"min=0"`
	Burst     int     `yaml:"burst" validate:"min=0"`
}

// DefaultConfig returns a valid configuration writing to data/store.json.
func DefaultConfig() Config {
	return Config{
		SnapshotPath:   filepath.Join("data", "store.json"),
		Ratings:        Range{Min: 800, Max: 3500},
		Quality:        Range{Min: -5, Max: 5},
		DeleteMode:     DeleteSoft,
		LegacyCourseID: 1,
		LogLevel:       "info",
	}
}

// LoadConfig reads a YAML file and overlays it on DefaultConfig.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, ports.NewConfigError(path, ports.ErrConfigNotFound)
		}
		return Config{}, ports.NewConfigError(path, err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML bytes over DefaultConfig and validates the result.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks struct tags and that every range is non-empty.
func (c Config) Validate() error {
	if err := newValidator().Struct(c); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// SlogLevel maps LogLevel to a slog.Level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// newValidator returns a validator with the ledger's struct-level rules.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(validateRange, Range{})
	return v
}

// validateRange rejects intervals whose minimum is not below the maximum.
func validateRange(sl validator.StructLevel) {
	r := sl.Current().Interface().(Range)
	if r.Min >= r.Max {
		sl.ReportError(r.Max, "Max", "max", "gtfield", "Min")
	}
}
