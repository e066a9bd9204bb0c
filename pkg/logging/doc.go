// Package logging provides the structured logger used across snektest.
//
// It wraps Go's slog text handler behind a handful of helpers that tag every
// record with the subsystem that produced it (Collector, Engine, Fixtures,
// Session, Watch, ...). Log output is kept apart from test output: the CLI
// points it at stderr so the console report and the JSON summary on stdout
// stay clean.
//
// # Log Levels
//   - **Debug**: per-item scheduling and fixture lifecycle transitions
//   - **Info**: collection progress, config loading, watch triggers
//   - **Warn**: recoverable problems such as teardown failures
//   - **Error**: failures that abort the run
//
// # Usage
//
//	logging.InitForCLI(logging.LevelWarn, os.Stderr)
//
//	logging.Debug("Engine", "running %s", item.Name())
//	logging.Error("Collector", err, "failed to load %s", path)
//
// Nothing is written before InitForCLI is called.
package logging
