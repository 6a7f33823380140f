// Package log provides the logging abstraction used by every muxship component.
//
// Components depend on the Logger interface only. The zerolog adapter is what
// the CLI wires in; the no-op logger is the default for library use and tests.
//
// # Usage
//
//	logger := log.NewZerologAdapterWithLogger(zerolog.New(os.Stderr))
//	sender := logger.With(log.Session(7))
//	sender.Info("payload written", log.Stream(3))
//
// # Custom Loggers
//
// Implement Logger to route muxship output into an existing logging stack:
//
//	type MyLogger struct { ... }
//
//	func (l *MyLogger) Debug(msg string, fields ...log.Field) { ... }
//	func (l *MyLogger) Info(msg string, fields ...log.Field) { ... }
//	func (l *MyLogger) Warn(msg string, fields ...log.Field) { ... }
//	func (l *MyLogger) Error(msg string, fields ...log.Field) { ... }
//	func (l *MyLogger) With(fields ...log.Field) log.Logger { ... }
package log
