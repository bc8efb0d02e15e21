package log

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

const DefaultTimeFormat = "2006-01-02 15:04:05.000"

// Logger writes leveled lines for one component. Loggers derived with
// Named share the sink and the level of their parent, so SetLevel and
// SetOutput on any of them apply to the whole tree.
//
// Loggers serialize on a mutex and must not be used from interrupt context.
type Logger struct {
	sink  *sink
	level *atomic.Int32

	Name string
}

// sink is the writer shared by a logger tree.
type sink struct {
	mu     sync.Mutex
	writer io.Writer
	color  bool

	timeFormat string
	json       bool
}

// LoggerRotation configures the rotating log file.
type LoggerRotation struct {
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

// DefaultRotation keeps up to three rotated files of 8 MB for a week.
var DefaultRotation = LoggerRotation{
	MaxSize:    8,
	MaxBackups: 3,
	MaxAge:     7,
}

type logEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Component string `json:"component,omitempty"`
	Message   string `json:"message"`
}

// NewLogger writes to stdout unless noTerminal is set and to file when it
// is not empty. With neither, everything is dropped.
func NewLogger(name string, level LogLevel, file string, noTerminal bool) *Logger {
	var writers []io.Writer
	if !noTerminal {
		writers = append(writers, os.Stdout)
	}
	if file != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   file,
			MaxSize:    DefaultRotation.MaxSize,
			MaxBackups: DefaultRotation.MaxBackups,
			MaxAge:     DefaultRotation.MaxAge,
			Compress:   DefaultRotation.Compress,
		})
	}

	s := &sink{
		writer:     io.Discard,
		color:      !noTerminal && file == "",
		timeFormat: DefaultTimeFormat,
	}
	if len(writers) > 0 {
		s.writer = io.MultiWriter(writers...)
	}

	l := &Logger{
		sink:  s,
		level: &atomic.Int32{},
		Name:  name,
	}
	l.SetLevel(level)
	return l
}

// Discard returns a logger that drops everything; used where no logger was
// configured.
func Discard() *Logger {
	return NewLogger("", Off, "", true)
}

// SetOutput redirects the logger tree to w. Color codes are dropped.
func (l *Logger) SetOutput(w io.Writer) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()

	l.sink.writer = w
	l.sink.color = false
}

// SetJSON switches the logger tree to one JSON object per line.
func (l *Logger) SetJSON(enabled bool) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()

	l.sink.json = enabled
}

func (l *Logger) SetLevel(level LogLevel) {
	l.level.Store(int32(level))
}

func (l *Logger) Level() LogLevel {
	if l == nil {
		return Off
	}
	return LogLevel(l.level.Load())
}

// Enabled reports whether a message at level would be written.
func (l *Logger) Enabled(level LogLevel) bool {
	current := l.Level()
	return current != Off && level >= current
}

func (l *Logger) log(level LogLevel, msg string, args ...any) {
	if !l.Enabled(level) {
		return
	}

	s := l.sink
	text := fmt.Sprintf(msg, args...)

	s.mu.Lock()
	timestamp := time.Now().Format(s.timeFormat)
	switch {
	case s.json:
		line, _ := json.Marshal(logEntry{
			Timestamp: timestamp,
			Level:     level.String(),
			Component: l.Name,
			Message:   text,
		})
		fmt.Fprintf(s.writer, "%s\n", line)
	case l.Name != "":
		s.line(level, fmt.Sprintf("[%s] %-5s [%s] %s", timestamp, level, l.Name, text))
	default:
		s.line(level, fmt.Sprintf("[%s] %-5s %s", timestamp, level, text))
	}
	s.mu.Unlock()

	if level == Fatal {
		os.Exit(1)
	}
}

func (s *sink) line(level LogLevel, text string) {
	if s.color {
		fmt.Fprintf(s.writer, "%s%s%s\n", Color(level), text, colorReset)
		return
	}
	fmt.Fprintln(s.writer, text)
}

func (l *Logger) Debug(msg string, args ...any) {
	l.log(Debug, msg, args...)
}

func (l *Logger) Info(msg string, args ...any) {
	l.log(Info, msg, args...)
}

func (l *Logger) Warn(msg string, args ...any) {
	l.log(Warn, msg, args...)
}

func (l *Logger) Error(msg string, args ...any) {
	l.log(Error, msg, args...)
}

func (l *Logger) Fatal(msg string, args ...any) {
	l.log(Fatal, msg, args...)
}

// Named derives a component logger, e.g. "pio/fdtable".
func (l *Logger) Named(name string) *Logger {
	if l == nil {
		return Discard().Named(name)
	}

	full := name
	if l.Name != "" {
		full = l.Name + "/" + name
	}

	return &Logger{
		sink:  l.sink,
		level: l.level,
		Name:  full,
	}
}
