// Package config loads the run configuration of snektest.
//
// Configuration is read from snektest.yaml in the working directory, or from
// the file named with --config. A missing default file is not an error: the
// defaults apply. Command line flags override file values.
//
// # File Format
//
//	paths: [tests]
//	ignore: ["**/fixtures/**"]
//	test_prefix: test_
//	capture_output: true
//	pdb_on_failure: false
//	mark: slow
//	json: false
//	report_path: .snektest/reports
//	report_name: 'run-{{ .RunID | trunc 8 }}.json'
//	timeout: 10m
//	teardown_timeout: 30s
//	queue_size: 64
//	max_output_bytes: 1048576
//	log_level: info
//	watch: false
//	watch_debounce: 200ms
//
// # Validation
//
// The file is first checked against an embedded JSON schema, which catches
// unknown keys and wrong types, then decoded and checked semantically.
// Both failures are reported as ConfigurationError.
package config
