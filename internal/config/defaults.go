package config

import "time"

const (
	// DefaultFileName is looked up in the working directory.
	DefaultFileName = "snektest.yaml"

	DefaultTestPrefix    = "test_"
	DefaultQueueSize     = 64
	DefaultLogLevel      = "warn"
	DefaultWatchDebounce = 200 * time.Millisecond
)

// GetDefaultConfig returns the configuration used when no file is present.
func GetDefaultConfig() Config {
	return Config{
		Paths:         []string{"."},
		TestPrefix:    DefaultTestPrefix,
		CaptureOutput: true,
		QueueSize:     DefaultQueueSize,
		LogLevel:      DefaultLogLevel,
		WatchDebounce: DefaultWatchDebounce,
	}
}
