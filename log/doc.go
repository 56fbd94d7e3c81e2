// Package log provides the leveled logging interface used across lexgraph.
//
// Components accept a Logger and fall back to the package-level default
// when none is given. The default is backed by kataras/golog; NoOpLogger
// silences a component entirely.
//
// # Log Levels
//
//   - LogLevelDebug: detailed tracing of routing decisions and queries
//   - LogLevelInfo: invocation lifecycle
//   - LogLevelWarn: recovered failures such as malformed generated queries
//   - LogLevelError: failed invocations
//   - LogLevelNone: disables all logging output
//
// # Example Usage
//
//	logger := log.NewGologLogger(golog.New())
//	logger.SetLevel(log.LogLevelDebug)
//	log.SetDefaultLogger(logger)
//
//	log.Info("serving on %s", addr)
package log
