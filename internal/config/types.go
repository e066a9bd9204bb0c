package config

import "time"

// Config is the run configuration.
type Config struct {
	// Paths are the default filters used when none are given.
	Paths  []string `yaml:"paths,omitempty"`
	Ignore []string `yaml:"ignore,omitempty"`
	// TestPrefix is the file name prefix of test files.
	TestPrefix    string `yaml:"test_prefix,omitempty"`
	CaptureOutput bool   `yaml:"capture_output"`
	PDBOnFailure  bool   `yaml:"pdb_on_failure,omitempty"`
	Mark          string `yaml:"mark,omitempty"`
	JSON          bool   `yaml:"json,omitempty"`

	// ReportPath is the directory detailed reports are saved to. Empty
	// disables report files.
	ReportPath string `yaml:"report_path,omitempty"`
	ReportName string `yaml:"report_name,omitempty"`

	// Timeout bounds the whole run; zero means none.
	Timeout         time.Duration `yaml:"timeout,omitempty"`
	TeardownTimeout time.Duration `yaml:"teardown_timeout,omitempty"`
	QueueSize       int           `yaml:"queue_size,omitempty"`
	// MaxOutputBytes bounds the captured output kept per test; zero keeps
	// the built-in limit.
	MaxOutputBytes int    `yaml:"max_output_bytes,omitempty"`
	LogLevel       string `yaml:"log_level,omitempty"`

	Watch         bool          `yaml:"watch,omitempty"`
	WatchDebounce time.Duration `yaml:"watch_debounce,omitempty"`
}
