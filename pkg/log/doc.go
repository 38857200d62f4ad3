// Package log provides the logging abstraction used across spire.
//
// Components accept a Logger and default to NoopLogger. The CLIs wire a
// zerolog console adapter:
//
//	logger, err := log.NewZerologAdapterWithLevel("debug")
//
// Session and bot loggers are derived with ZerologAdapter.With so every
// line carries the bot name and remote address.
//
// # Custom Loggers
//
// Implement the Logger interface to integrate with an existing logging
// setup:
//
//	type MyLogger struct { ... }
//
//	func (l *MyLogger) Debug(msg string, fields ...log.Field) { ... }
//	func (l *MyLogger) Info(msg string, fields ...log.Field) { ... }
//	func (l *MyLogger) Warn(msg string, fields ...log.Field) { ... }
//	func (l *MyLogger) Error(msg string, fields ...log.Field) { ... }
//
// # Version
//
// Current version: 1.1.0
// Minimum compatible version: 1.0.0
//
// See version.go for version constants that can be used programmatically.
package log
