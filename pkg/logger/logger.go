// Package logger provides structured logging with weaver-scoped support
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

// Logger is the diagnostics sink for the weaving pipeline. Beyond the
// usual levels it tracks whether any error-level entry was emitted, so
// the orchestrator can fail a run on logged errors even when no error
// value was returned.
type Logger interface {
	Info(message string, fields ...Field)
	Error(message string, fields ...Field)
	Warn(message string, fields ...Field)
	Debug(message string, fields ...Field)
	Success(message string, fields ...Field)
	WithWeaver(weaver string) Logger

	// NewRunScope derives a logger with its own error flag, so batch
	// runs sharing one output do not fail each other.
	NewRunScope() Logger

	// ErrorOccurred reports whether an error-level entry was logged on
	// this scope since the last ResetErrors.
	ErrorOccurred() bool
	ResetErrors()
}

// Field represents a structured logging field
type Field struct {
	Key   string
	Value interface{}
}

// WithField creates a new field
func WithField(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// errorTracker records whether an error-level entry was emitted. The
// flag is shared by weaver-scoped loggers derived from the same run, so
// weaver-scoped errors still fail the run, while independent run scopes
// carry independent flags.
type errorTracker struct {
	mu       sync.Mutex
	occurred bool
}

func (h *errorTracker) fire() {
	h.mu.Lock()
	h.occurred = true
	h.mu.Unlock()
}

func (h *errorTracker) hasFired() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.occurred
}

func (h *errorTracker) reset() {
	h.mu.Lock()
	h.occurred = false
	h.mu.Unlock()
}

// WeaverLogger implements Logger with weaver awareness
type WeaverLogger struct {
	logger     *logrus.Logger
	tracker    *errorTracker
	weaverName string
}

// Formatter formats log entries with colored levels and a weaver prefix
type Formatter struct {
	TimestampFormat string
	DisableColors   bool
}

// Format implements logrus.Formatter
func (f *Formatter) Format(entry *logrus.Entry) ([]byte, error) {
	timestamp := entry.Time.Format(f.TimestampFormat)

	var levelColor *color.Color
	var levelText string

	switch entry.Level {
	case logrus.ErrorLevel:
		levelColor = color.New(color.FgRed, color.Bold)
		levelText = "ERROR"
	case logrus.WarnLevel:
		levelColor = color.New(color.FgYellow, color.Bold)
		levelText = "WARN"
	case logrus.InfoLevel:
		levelColor = color.New(color.FgCyan)
		levelText = "INFO"
	case logrus.DebugLevel:
		levelColor = color.New(color.FgWhite, color.Faint)
		levelText = "DEBUG"
	default:
		levelColor = color.New(color.FgGreen)
		levelText = "INFO"
	}

	// Build weaver prefix
	weaverPrefix := ""
	if weaver, ok := entry.Data["weaver"]; ok {
		weaverPrefix = fmt.Sprintf("[%s] ", color.New(color.FgBlue).Sprint(weaver))
		delete(entry.Data, "weaver") // Remove from data to avoid duplication
	}

	var output string
	if f.DisableColors {
		output = fmt.Sprintf("Fody [%s] %s: %s%s", timestamp, levelText, weaverPrefix, entry.Message)
	} else {
		output = fmt.Sprintf("Fody [%s] %s: %s%s",
			timestamp,
			levelColor.Sprint(levelText),
			weaverPrefix,
			entry.Message,
		)
	}

	if len(entry.Data) > 0 {
		fields := " {"
		first := true
		for k, v := range entry.Data {
			if !first {
				fields += ", "
			}
			fields += fmt.Sprintf("%s=%v", k, v)
			first = false
		}
		fields += "}"
		output += color.New(color.FgWhite, color.Faint).Sprint(fields)
	}

	return []byte(output + "\n"), nil
}

// CreateLogger creates a new logger instance
func CreateLogger(logFile string, logLevel string) Logger {
	log := logrus.New()

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	log.SetFormatter(&Formatter{
		TimestampFormat: "15:04:05",
		DisableColors:   false,
	})

	// Add file output if specified
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err == nil {
			multiWriter := io.MultiWriter(os.Stdout, file)
			log.SetOutput(multiWriter)
		}
	}

	return &WeaverLogger{
		logger:  log,
		tracker: &errorTracker{},
	}
}

// CreateLoggerWithOutput creates a logger with custom output (for testing)
func CreateLoggerWithOutput(logLevel string, output io.Writer) Logger {
	log := logrus.New()

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	log.SetFormatter(&Formatter{
		TimestampFormat: "15:04:05",
		DisableColors:   true,
	})
	log.SetOutput(output)

	return &WeaverLogger{
		logger:  log,
		tracker: &errorTracker{},
	}
}

// WithWeaver creates a new logger scoped to a weaver. The error flag is
// shared with the parent.
func (l *WeaverLogger) WithWeaver(weaver string) Logger {
	return &WeaverLogger{
		logger:     l.logger,
		tracker:    l.tracker,
		weaverName: weaver,
	}
}

// NewRunScope derives a logger with a fresh error flag
func (l *WeaverLogger) NewRunScope() Logger {
	return &WeaverLogger{
		logger:     l.logger,
		tracker:    &errorTracker{},
		weaverName: l.weaverName,
	}
}

// ErrorOccurred reports whether any error-level entry was logged
func (l *WeaverLogger) ErrorOccurred() bool {
	return l.tracker.hasFired()
}

// ResetErrors clears the error flag ahead of a new run
func (l *WeaverLogger) ResetErrors() {
	l.tracker.reset()
}

// convertFields converts Field slice to logrus.Fields
func (l *WeaverLogger) convertFields(fields []Field) logrus.Fields {
	result := make(logrus.Fields)
	if l.weaverName != "" {
		result["weaver"] = l.weaverName
	}
	for _, f := range fields {
		result[f.Key] = f.Value
	}
	return result
}

// Info logs an info message
func (l *WeaverLogger) Info(message string, fields ...Field) {
	l.logger.WithFields(l.convertFields(fields)).Info(message)
}

// Error logs an error message and marks the run as failed
func (l *WeaverLogger) Error(message string, fields ...Field) {
	l.tracker.fire()
	l.logger.WithFields(l.convertFields(fields)).Error(message)
}

// Warn logs a warning message
func (l *WeaverLogger) Warn(message string, fields ...Field) {
	l.logger.WithFields(l.convertFields(fields)).Warn(message)
}

// Debug logs a debug message
func (l *WeaverLogger) Debug(message string, fields ...Field) {
	l.logger.WithFields(l.convertFields(fields)).Debug(message)
}

// Success logs a success message (info level with special formatting)
func (l *WeaverLogger) Success(message string, fields ...Field) {
	l.logger.WithFields(l.convertFields(fields)).Info("✅ " + message)
}
