package cfg

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Settings struct {
	DataPath    string
	OutputDir   string
	Folds       int
	LogLevel    string
	HTTPTimeout time.Duration
}

type ConfigFile struct {
	Training struct {
		DataPath string `yaml:"dataPath"`
		Folds    int    `yaml:"folds"`
	} `yaml:"training"`

	Output struct {
		Dir string `yaml:"dir"`
	} `yaml:"output"`

	System struct {
		LogLevel    string `yaml:"logLevel"`
		HTTPTimeout string `yaml:"httpTimeout"`
	} `yaml:"system"`
}

// Load reads settings from the YAML file named by TRAINER_CONFIG, or from
// environment variables when no file is configured. Flags may override the
// result afterwards, so validation is a separate step.
func Load() (Settings, error) {
	if configPath := os.Getenv("TRAINER_CONFIG"); configPath != "" {
		return loadFromYAML(configPath)
	}
	return loadFromEnv(), nil
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	httpTimeout, err := time.ParseDuration(config.System.HTTPTimeout)
	if err != nil {
		httpTimeout = 30 * time.Second
	}

	folds := config.Training.Folds
	if folds == 0 {
		folds = 5
	}

	settings := Settings{
		DataPath:    getEnvOrDefault("TRAINER_DATA", config.Training.DataPath),
		OutputDir:   getEnvOrDefault("TRAINER_OUTPUT_DIR", orDefault(config.Output.Dir, "models")),
		Folds:       getIntOrDefault("TRAINER_FOLDS", folds),
		LogLevel:    getEnvOrDefault("TRAINER_LOG_LEVEL", orDefault(config.System.LogLevel, "info")),
		HTTPTimeout: getDurationOrDefault("TRAINER_HTTP_TIMEOUT", httpTimeout),
	}
	return settings, nil
}

func loadFromEnv() Settings {
	return Settings{
		DataPath:    os.Getenv("TRAINER_DATA"),
		OutputDir:   getEnvOrDefault("TRAINER_OUTPUT_DIR", "models"),
		Folds:       getIntOrDefault("TRAINER_FOLDS", 5),
		LogLevel:    getEnvOrDefault("TRAINER_LOG_LEVEL", "info"),
		HTTPTimeout: getDurationOrDefault("TRAINER_HTTP_TIMEOUT", 30*time.Second),
	}
}

// Validate checks ranges after every override source has been applied.
func (s *Settings) Validate() error {
	if s.DataPath == "" {
		return fmt.Errorf("training data path is required")
	}
	if s.OutputDir == "" {
		return fmt.Errorf("output directory cannot be empty")
	}
	if s.Folds < 2 || s.Folds > 20 {
		return fmt.Errorf("fold count must be between 2 and 20, got %d", s.Folds)
	}
	if s.HTTPTimeout < time.Second || s.HTTPTimeout > 5*time.Minute {
		return fmt.Errorf("HTTP timeout must be between 1s and 5m, got %v", s.HTTPTimeout)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func orDefault(v, defaultValue string) string {
	if v != "" {
		return v
	}
	return defaultValue
}
