// Package logging provides a minimal logging interface and adapters for the
// swarm runtime.
//
// The Logger interface defines the standard logging methods (Debug, Info,
// Warn, Error) that the compiler and executor use for observability. This
// package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - SwarmLogger with execution context and domain helpers
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	rt := mlang.New(mlang.WithLogger(logger))
//
// The design intentionally keeps the interface minimal to avoid vendor lock-in
// while supporting structured logging where available.
package logging
