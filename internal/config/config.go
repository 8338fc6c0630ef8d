// Package config loads the configuration of the budget ETL from defaults,
// an optional YAML file and BUDGET_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "BUDGET"

// Config is the complete configuration of one process.
type Config struct {
	Inputs     InputsConfig     `yaml:"inputs" envconfig:"INPUTS"`
	Paths      PathsConfig      `yaml:"paths" envconfig:"PATHS"`
	Logging    LoggingConfig    `yaml:"logging" envconfig:"LOGGING"`
	Vocabulary VocabularyConfig `yaml:"vocabulary" envconfig:"VOCABULARY"`
	Warehouse  WarehouseConfig  `yaml:"warehouse" envconfig:"WAREHOUSE"`
	Archive    ArchiveConfig    `yaml:"archive" envconfig:"ARCHIVE"`
	Metrics    MetricsConfig    `yaml:"metrics" envconfig:"METRICS"`
	Tracing    TracingConfig    `yaml:"tracing" envconfig:"TRACING"`
	API        APIConfig        `yaml:"api" envconfig:"API"`
}

// InputsConfig points at the two input tables. Paths may be local files or
// gs://bucket/object URIs.
type InputsConfig struct {
	Expenses string `yaml:"expenses" envconfig:"EXPENSES" validate:"required"`
	Budgets  string `yaml:"budgets" envconfig:"BUDGETS" validate:"required"`
}

// PathsConfig holds the on-disk layout of the lake, the store and the report.
type PathsConfig struct {
	LakeDir   string `yaml:"lake_dir" envconfig:"LAKE_DIR" validate:"required"`
	OutputDir string `yaml:"output_dir" envconfig:"OUTPUT_DIR" validate:"required"`
	Database  string `yaml:"database" envconfig:"DATABASE" validate:"required"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL" validate:"omitempty,oneof=trace debug info warn error fatal panic disabled"`
	Format string `yaml:"format" envconfig:"FORMAT" validate:"omitempty,oneof=console json"`
}

// VocabularyConfig optionally replaces the compiled-in alias tables.
type VocabularyConfig struct {
	File string `yaml:"file" envconfig:"FILE"`
}

// WarehouseConfig enables the BigQuery mirror of the gold tables.
type WarehouseConfig struct {
	Enabled   bool   `yaml:"enabled" envconfig:"ENABLED"`
	ProjectID string `yaml:"project_id" envconfig:"PROJECT_ID" validate:"required_if=Enabled true"`
	Dataset   string `yaml:"dataset" envconfig:"DATASET" validate:"required_if=Enabled true"`
	Location  string `yaml:"location" envconfig:"LOCATION"`
}

// ArchiveConfig enables uploading the artifacts of each batch to GCS.
type ArchiveConfig struct {
	Enabled bool   `yaml:"enabled" envconfig:"ENABLED"`
	Bucket  string `yaml:"bucket" envconfig:"BUCKET" validate:"required_if=Enabled true"`
	Prefix  string `yaml:"prefix" envconfig:"PREFIX"`
}

// MetricsConfig controls the Prometheus textfile written after each run.
type MetricsConfig struct {
	TextfilePath string `yaml:"textfile_path" envconfig:"TEXTFILE_PATH"`
}

type TracingConfig struct {
	Enabled     bool   `yaml:"enabled" envconfig:"ENABLED"`
	ServiceName string `yaml:"service_name" envconfig:"SERVICE_NAME" validate:"required"`
}

// APIConfig configures the read-only HTTP API.
type APIConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"min=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" validate:"min=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" validate:"min=0"`
	AllowedOrigins  []string      `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
}

// Default returns the configuration used when no file or environment
// override is present.
func Default() *Config {
	return &Config{
		Inputs: InputsConfig{
			Expenses: filepath.Join("data", "raw", "expenses.csv"),
			Budgets:  filepath.Join("data", "raw", "budgets.csv"),
		},
		Paths: PathsConfig{
			LakeDir:   filepath.Join("data", "lake"),
			OutputDir: "out",
			Database:  filepath.Join("data", "budget.db"),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Archive: ArchiveConfig{
			Prefix: "batches",
		},
		Tracing: TracingConfig{
			ServiceName: "budget-etl",
		},
		API: APIConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
	}
}

// Load builds the configuration. When path is empty the file named by
// BUDGET_CONFIG is used, if any. Environment variables win over the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("Load: failed to process environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("Load: config validation failed: %w", err)
	}
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("loadFromFile: failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("loadFromFile: failed to parse %s: %w", path, err)
	}
	return nil
}

var validate = validator.New()

// Validate checks the struct tags and reports every violation at once.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Errorf("%s: failed %q", fe.Namespace(), fe.Tag()))
	}
	return errors.Join(msgs...)
}

// ReportPath is where the report of the current run is written.
func (c *Config) ReportPath() string {
	return filepath.Join(c.Paths.OutputDir, "report.md")
}
