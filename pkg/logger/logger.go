package logger

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// Level represents the severity of a log message
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

// Logger is the main logger interface
type Logger interface {
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})
	Info(args ...interface{})
	Infof(format string, args ...interface{})
	Warn(args ...interface{})
	Warnf(format string, args ...interface{})
	Error(args ...interface{})
	Errorf(format string, args ...interface{})
	Fatal(args ...interface{})
	Fatalf(format string, args ...interface{})
	// Narratef writes a simulation-clock event line such as
	// "[t=0.500] [SEND] Drone0 -> HQ". It is emitted at info level.
	Narratef(simTime float64, tag string, format string, args ...interface{})
	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithPrefix(prefix string) Logger
}

// output is shared between a logger and the loggers derived from it so that
// SetOutput and SetLevel on the default logger reach every child.
type output struct {
	mu       sync.Mutex
	level    Level
	writer   io.Writer
	noColor  bool
	showTime bool
}

// logger implements the Logger interface
type logger struct {
	out    *output
	fields map[string]interface{}
	prefix string
}

// Default logger instance
var defaultLogger = New()

// Config holds logger configuration
type Config struct {
	Level    Level
	Writer   io.Writer
	NoColor  bool
	ShowTime bool
}

// New creates a new logger with default configuration
func New() Logger {
	return NewWithConfig(Config{
		Level:    InfoLevel,
		Writer:   os.Stdout,
		NoColor:  false,
		ShowTime: true,
	})
}

// NewWithConfig creates a new logger with custom configuration
func NewWithConfig(cfg Config) Logger {
	w := cfg.Writer
	if w == nil {
		w = os.Stdout
	}
	return &logger{
		out: &output{
			level:    cfg.Level,
			writer:   w,
			noColor:  cfg.NoColor,
			showTime: cfg.ShowTime,
		},
		fields: make(map[string]interface{}),
	}
}

// Discard returns a logger that drops everything
func Discard() Logger {
	return NewWithConfig(Config{Level: FatalLevel + 1, Writer: io.Discard, NoColor: true})
}

// Default returns the package level logger
func Default() Logger {
	return defaultLogger
}

// SetLevel sets the global log level
func SetLevel(level Level) {
	if l, ok := defaultLogger.(*logger); ok {
		l.out.mu.Lock()
		l.out.level = level
		l.out.mu.Unlock()
	}
}

// SetNoColor disables color output. Enabling color still defers to the
// terminal detection of the color package.
func SetNoColor(noColor bool) {
	if noColor {
		color.NoColor = true
	}
	if l, ok := defaultLogger.(*logger); ok {
		l.out.mu.Lock()
		l.out.noColor = noColor
		l.out.mu.Unlock()
	}
}

// SetShowTime toggles the wall clock timestamp on log lines
func SetShowTime(show bool) {
	if l, ok := defaultLogger.(*logger); ok {
		l.out.mu.Lock()
		l.out.showTime = show
		l.out.mu.Unlock()
	}
}

// SetOutput redirects the default logger
func SetOutput(w io.Writer) {
	if l, ok := defaultLogger.(*logger); ok {
		l.out.mu.Lock()
		l.out.writer = w
		l.out.mu.Unlock()
	}
}

// Helper methods for the default logger
func Debug(args ...interface{})                       { defaultLogger.Debug(args...) }
func Debugf(format string, args ...interface{})       { defaultLogger.Debugf(format, args...) }
func Info(args ...interface{})                        { defaultLogger.Info(args...) }
func Infof(format string, args ...interface{})        { defaultLogger.Infof(format, args...) }
func Warn(args ...interface{})                        { defaultLogger.Warn(args...) }
func Warnf(format string, args ...interface{})        { defaultLogger.Warnf(format, args...) }
func Error(args ...interface{})                       { defaultLogger.Error(args...) }
func Errorf(format string, args ...interface{})       { defaultLogger.Errorf(format, args...) }
func Fatal(args ...interface{})                       { defaultLogger.Fatal(args...) }
func Fatalf(format string, args ...interface{})       { defaultLogger.Fatalf(format, args...) }
func WithField(key string, value interface{}) Logger  { return defaultLogger.WithField(key, value) }
func WithFields(fields map[string]interface{}) Logger { return defaultLogger.WithFields(fields) }
func WithPrefix(prefix string) Logger                 { return defaultLogger.WithPrefix(prefix) }

func Narratef(simTime float64, tag string, format string, args ...interface{}) {
	defaultLogger.Narratef(simTime, tag, format, args...)
}

// Implementation of logger methods

func (o *output) paint(s string, attrs ...color.Attribute) string {
	if o.noColor {
		return s
	}
	return color.New(attrs...).Sprint(s)
}

func (l *logger) log(level Level, args ...interface{}) {
	l.out.mu.Lock()
	if level < l.out.level {
		l.out.mu.Unlock()
		return
	}

	var parts []string

	if l.out.showTime {
		parts = append(parts, l.out.paint(time.Now().Format("15:04:05"), color.FgHiBlack))
	}

	levelStr, levelAttrs := getLevelString(level)
	parts = append(parts, l.out.paint(levelStr, levelAttrs...))

	if l.prefix != "" {
		parts = append(parts, l.out.paint("["+l.prefix+"]", color.FgCyan))
	}

	if len(l.fields) > 0 {
		parts = append(parts, l.out.paint(l.formatFields(), color.FgHiBlack))
	}

	parts = append(parts, fmt.Sprint(args...))

	_, _ = fmt.Fprintln(l.out.writer, strings.Join(parts, " "))

	l.out.mu.Unlock()

	// Exit on fatal (after unlocking mutex)
	if level == FatalLevel {
		os.Exit(1)
	}
}

func (l *logger) logf(level Level, format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	l.log(level, message)
}

func (l *logger) formatFields() string {
	keys := make([]string, 0, len(l.fields))
	for k := range l.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fieldParts := make([]string, 0, len(keys))
	for _, k := range keys {
		fieldParts = append(fieldParts, fmt.Sprintf("%s=%v", k, l.fields[k]))
	}
	return strings.Join(fieldParts, " ")
}

func getLevelString(level Level) (string, []color.Attribute) {
	switch level {
	case DebugLevel:
		return "DEBUG", []color.Attribute{color.FgHiBlack}
	case InfoLevel:
		return "INFO ", []color.Attribute{color.FgGreen}
	case WarnLevel:
		return "WARN ", []color.Attribute{color.FgYellow}
	case ErrorLevel:
		return "ERROR", []color.Attribute{color.FgRed}
	case FatalLevel:
		return "FATAL", []color.Attribute{color.FgRed, color.Bold}
	default:
		return "UNKNOWN", nil
	}
}

// tagColor picks the narration tag color
func tagColor(tag string) []color.Attribute {
	switch {
	case strings.Contains(tag, "FAIL"):
		return []color.Attribute{color.FgRed, color.Bold}
	case strings.Contains(tag, "DROP"):
		return []color.Attribute{color.FgYellow}
	case tag == "DELIVER":
		return []color.Attribute{color.FgGreen}
	default:
		return []color.Attribute{color.FgCyan}
	}
}

// Logger interface implementation

func (l *logger) Debug(args ...interface{}) {
	l.log(DebugLevel, args...)
}

func (l *logger) Debugf(format string, args ...interface{}) {
	l.logf(DebugLevel, format, args...)
}

func (l *logger) Info(args ...interface{}) {
	l.log(InfoLevel, args...)
}

func (l *logger) Infof(format string, args ...interface{}) {
	l.logf(InfoLevel, format, args...)
}

func (l *logger) Warn(args ...interface{}) {
	l.log(WarnLevel, args...)
}

func (l *logger) Warnf(format string, args ...interface{}) {
	l.logf(WarnLevel, format, args...)
}

func (l *logger) Error(args ...interface{}) {
	l.log(ErrorLevel, args...)
}

func (l *logger) Errorf(format string, args ...interface{}) {
	l.logf(ErrorLevel, format, args...)
}

func (l *logger) Fatal(args ...interface{}) {
	l.log(FatalLevel, args...)
}

func (l *logger) Fatalf(format string, args ...interface{}) {
	l.logf(FatalLevel, format, args...)
}

func (l *logger) Narratef(simTime float64, tag string, format string, args ...interface{}) {
	l.out.mu.Lock()
	defer l.out.mu.Unlock()

	if InfoLevel < l.out.level {
		return
	}

	clock := l.out.paint(fmt.Sprintf("[t=%.3f]", simTime), color.FgHiBlack)
	label := l.out.paint("["+tag+"]", tagColor(tag)...)
	_, _ = fmt.Fprintf(l.out.writer, "%s %s %s\n", clock, label, fmt.Sprintf(format, args...))
}

func (l *logger) derive(prefix string) *logger {
	newLogger := &logger{
		out:    l.out,
		fields: make(map[string]interface{}, len(l.fields)),
		prefix: prefix,
	}

	// Copy existing fields
	for k, v := range l.fields {
		newLogger.fields[k] = v
	}
	return newLogger
}

func (l *logger) WithField(key string, value interface{}) Logger {
	newLogger := l.derive(l.prefix)
	newLogger.fields[key] = value
	return newLogger
}

func (l *logger) WithFields(fields map[string]interface{}) Logger {
	newLogger := l.derive(l.prefix)
	for k, v := range fields {
		newLogger.fields[k] = v
	}
	return newLogger
}

func (l *logger) WithPrefix(prefix string) Logger {
	return l.derive(prefix)
}

// ParseLevel parses a string log level
func ParseLevel(level string) Level {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	case "fatal":
		return FatalLevel
	default:
		return InfoLevel
	}
}
