package log

import "time"

// Logger is the structured logger every muxship component takes.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// With returns a child logger that attaches fields to every entry.
	With(fields ...Field) Logger
}

// Field is a key-value pair attached to a log entry.
type Field struct {
	Key   string
	Value interface{}
}

// Keys shared by every component, so entries can be joined on them.
const (
	KeyReporter = "reporter"
	KeyStream   = "stream"
	KeySession  = "session"
)

// Reporter tags an entry with a reporter id.
func Reporter(id uint8) Field {
	return Field{Key: KeyReporter, Value: id}
}

// Stream tags an entry with a stream id.
func Stream(id uint16) Field {
	return Field{Key: KeyStream, Value: id}
}

// Session tags an entry with a session id.
func Session(id uint64) Field {
	return Field{Key: KeySession, Value: id}
}

func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

func Uint64(key string, value uint64) Field {
	return Field{Key: key, Value: value}
}

func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value}
}

// Err attaches err under the "error" key.
func Err(err error) Field {
	return Field{Key: "error", Value: err}
}
