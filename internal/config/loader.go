package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"snektest/pkg/logging"
)

// LoadConfig loads snektest.yaml from dir. A missing file yields the
// defaults.
func LoadConfig(dir string) (Config, error) {
	configFilePath := filepath.Join(dir, DefaultFileName)
	config, err := LoadFile(configFilePath)
	if err != nil {
		var ce *ConfigurationError
		if errors.As(err, &ce) && ce.ErrorType == ErrorTypeIO && errors.Is(err, os.ErrNotExist) {
			logging.Debug("ConfigLoader", "No %s found in %s, using defaults", DefaultFileName, dir)
			return GetDefaultConfig(), nil
		}
		return Config{}, err
	}
	return config, nil
}

// LoadFile loads the configuration file at path on top of the defaults.
func LoadFile(path string) (Config, error) {
	config := GetDefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, newConfigurationError(path, ErrorTypeIO, "cannot read configuration file", err)
	}

	if err := ValidateSchema(data); err != nil {
		return Config{}, newConfigurationError(path, ErrorTypeSchema, "configuration does not match the schema", err,
			"check the keys and value types against the documented file format")
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, newConfigurationError(path, ErrorTypeParse, fmt.Sprintf("error loading config from %s", path), err)
	}

	if err := config.Validate(); err != nil {
		return Config{}, newConfigurationError(path, ErrorTypeValidation, "invalid configuration", err)
	}

	logging.Info("ConfigLoader", "Loaded configuration from %s", path)
	return config, nil
}
