package log

// NoopLogger drops every entry. It is the default logger of all components.
type NoopLogger struct{}

var _ Logger = NoopLogger{}

// NewNoopLogger returns a logger that drops every entry.
func NewNoopLogger() Logger {
	return NoopLogger{}
}

func (NoopLogger) Debug(string, ...Field) {}
func (NoopLogger) Info(string, ...Field)  {}
func (NoopLogger) Warn(string, ...Field)  {}
func (NoopLogger) Error(string, ...Field) {}

func (n NoopLogger) With(...Field) Logger { return n }
