// Package pkg provides shared utilities for the softuac audio driver.
//
// This package contains common functionality used across the driver
// packages, including:
//
//   - Structured logging via Go's standard [log/slog] package
//   - Sentinel error types for USB and audio-class protocol errors
//   - Component identifiers for log filtering
//
// The package is designed to have zero external dependencies, relying
// only on the Go standard library.
//
// # Logging
//
// The logging subsystem wraps [log/slog] with driver-specific context:
//
//	pkg.SetLogLevel(slog.LevelDebug)
//	pkg.LogInfo(pkg.ComponentStream, "sample rate set", "rate", 44100)
//
// # Errors
//
// Common errors are defined as sentinel values:
//
//	if errors.Is(err, pkg.ErrUnsupportedSampleRate) {
//	    // Pick a different rate
//	}
package pkg
