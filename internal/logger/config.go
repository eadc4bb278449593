package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const defaultTimeLocation = "Local"

/*
Config is the application wide logging configuration, usually loaded from
YAML file:

	defaultLevel: INFO
	packageLevels:
	  bridge: DEBUG
	consoleFormat: true
	showCaller: false
	showGoroutineID: false
	timeLocation: UTC
	outputPath: /var/log/zkbridge.log
*/
type Config struct {
	DefaultLevel  Level            `yaml:"defaultLevel"`
	PackageLevels map[string]Level `yaml:"packageLevels"`
	// ConsoleFormat selects human readable output, JSON is used otherwise.
	ConsoleFormat   bool   `yaml:"consoleFormat"`
	ShowCaller      bool   `yaml:"showCaller"`
	ShowGoroutineID bool   `yaml:"showGoroutineID"`
	TimeLocation    string `yaml:"timeLocation"`
	// OutputPath is the log file, "stdout", "stderr" or empty for stderr.
	OutputPath string `yaml:"outputPath"`

	// Writer overrides OutputPath when set, not loaded from file.
	Writer io.Writer `yaml:"-"`
}

func developerConfig() Config {
	return Config{
		DefaultLevel:  DEBUG,
		ConsoleFormat: true,
		ShowCaller:    true,
		TimeLocation:  defaultTimeLocation,
		Writer:        os.Stderr,
	}
}

// DefaultConfig is used by the CLI when there is no configuration file.
func DefaultConfig() Config {
	return Config{
		DefaultLevel:  INFO,
		ConsoleFormat: true,
		TimeLocation:  defaultTimeLocation,
	}
}

// LoadConfig reads logger configuration from YAML file.
func LoadConfig(filename string) (Config, error) {
	cfg := developerConfig()
	b, err := os.ReadFile(filepath.Clean(filename))
	if err != nil {
		return cfg, fmt.Errorf("reading logger config: %w", err)
	}
	cfg.Writer = nil
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing logger config %q: %w", filename, err)
	}
	return cfg, nil
}

func (c *Config) output() (io.Writer, error) {
	if c.Writer != nil {
		return c.Writer, nil
	}
	switch c.OutputPath {
	case "", "stderr":
		return os.Stderr, nil
	case "stdout":
		return os.Stdout, nil
	default:
		if err := os.MkdirAll(filepath.Dir(c.OutputPath), 0700); err != nil {
			return nil, fmt.Errorf("creating log directory: %w", err)
		}
		f, err := os.OpenFile(c.OutputPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		return f, nil
	}
}
