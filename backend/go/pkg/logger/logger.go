package logger

import (
	"AgentOffice/backend/go/internal/models"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger wraps a logrus entry so every component logs the same structured shape.
// The With* methods return a derived Logger and never mutate the receiver, so a
// component logger can be shared freely between goroutines.
type Logger struct {
	entry *logrus.Entry
}

// Init configures the global logrus output: JSON on stdout with the field names
// the log collector expects.
func Init(level logrus.Level) {
	logrus.SetFormatter(&logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})
	logrus.SetOutput(os.Stdout)
	logrus.SetLevel(level)
}

// New creates a Logger pre-populated with the service, trace and user fields.
func New(serviceName, traceID, userID string) *Logger {
	fields := logrus.Fields{"service_name": serviceName}
	if traceID != "" {
		fields["trace_id"] = traceID
	}
	if userID != "" {
		fields["user_id"] = userID
	}
	return &Logger{entry: logrus.WithFields(fields)}
}

// Discard returns a Logger that writes nowhere. Used by tests.
func Discard() *Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return &Logger{entry: logrus.NewEntry(l)}
}

// Named derives a logger for a sub-component.
func (l *Logger) Named(component string) *Logger {
	return l.WithField("component", component)
}

// WithTrace derives a logger carrying a trace id.
func (l *Logger) WithTrace(traceID string) *Logger {
	return l.WithField("trace_id", traceID)
}

// WithField adds a single key/value.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{entry: l.entry.WithField(key, value)}
}

// WithRequest attaches HTTP request information.
func (l *Logger) WithRequest(req models.RequestInfo) *Logger {
	return l.WithField("request_info", req)
}

// WithError attaches structured error information.
func (l *Logger) WithError(err models.ErrorInfo) *Logger {
	return l.WithField("error", err)
}

// WithErr is a shortcut for WithError(models.ErrorInfo{Message: err.Error()}).
func (l *Logger) WithErr(err error) *Logger {
	if err == nil {
		return l
	}
	return l.WithError(models.ErrorInfo{Message: err.Error()})
}

// WithPayload attaches arbitrary business data.
func (l *Logger) WithPayload(payload map[string]interface{}) *Logger {
	return l.WithField("payload", payload)
}

func (l *Logger) Info(message string) {
	l.entry.Info(message)
}

func (l *Logger) Warn(message string) {
	l.entry.Warn(message)
}

func (l *Logger) Error(message string) {
	l.entry.Error(message)
}

func (l *Logger) Debug(message string) {
	l.entry.Debug(message)
}

// Fatal logs and terminates the process.
func (l *Logger) Fatal(message string) {
	l.entry.Fatal(message)
}
