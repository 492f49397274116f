package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

// LogLevel represents the different logging levels
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARNING
	ERROR
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARNING:
		return "WARNING"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger is a leveled logger. Component loggers created with Named share the
// level and output of their parent.
type Logger struct {
	mu        *sync.RWMutex
	level     *LogLevel
	component string
	debugLog  *log.Logger
	infoLog   *log.Logger
	warnLog   *log.Logger
	errorLog  *log.Logger
}

var (
	globalMu     sync.Mutex
	globalLogger *Logger
)

// New creates a logger writing to output at the given level
func New(level LogLevel, output io.Writer) *Logger {
	if output == nil {
		output = os.Stdout
	}

	lvl := level
	return &Logger{
		mu:       &sync.RWMutex{},
		level:    &lvl,
		debugLog: log.New(output, fmt.Sprintf("[%s] ", DEBUG.String()), log.LstdFlags),
		infoLog:  log.New(output, fmt.Sprintf("[%s] ", INFO.String()), log.LstdFlags),
		warnLog:  log.New(output, fmt.Sprintf("[%s] ", WARNING.String()), log.LstdFlags),
		errorLog: log.New(output, fmt.Sprintf("[%s] ", ERROR.String()), log.LstdFlags),
	}
}

// Init initializes the global logger with the specified level and output
func Init(level LogLevel, output io.Writer) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = New(level, output)
}

// ParseLogLevel parses a string log level and returns the corresponding LogLevel
func ParseLogLevel(level string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARNING", "WARN":
		return WARNING
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

// GetLogger returns the global logger instance
func GetLogger() *Logger {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		globalLogger = New(INFO, os.Stdout)
	}
	return globalLogger
}

// Named returns a logger that prefixes every message with the component name
func (l *Logger) Named(component string) *Logger {
	child := *l
	if l.component != "" {
		child.component = l.component + "." + component
	} else {
		child.component = component
	}
	return &child
}

// Named returns a component logger derived from the global logger
func Named(component string) *Logger {
	return GetLogger().Named(component)
}

func (l *Logger) enabled(level LogLevel) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return *l.level <= level
}

func (l *Logger) format(format string, v ...interface{}) string {
	msg := fmt.Sprintf(format, v...)
	if l.component == "" {
		return msg
	}
	return "[" + l.component + "] " + msg
}

// SetLevel changes the level of this logger and every logger derived from it
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.level = level
}

// Level returns the current level
func (l *Logger) Level() LogLevel {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return *l.level
}

// Debug logs a debug message
func (l *Logger) Debug(format string, v ...interface{}) {
	if l.enabled(DEBUG) {
		l.debugLog.Print(l.format(format, v...))
	}
}

// Info logs an info message
func (l *Logger) Info(format string, v ...interface{}) {
	if l.enabled(INFO) {
		l.infoLog.Print(l.format(format, v...))
	}
}

// Warning logs a warning message
func (l *Logger) Warning(format string, v ...interface{}) {
	if l.enabled(WARNING) {
		l.warnLog.Print(l.format(format, v...))
	}
}

// Error logs an error message
func (l *Logger) Error(format string, v ...interface{}) {
	if l.enabled(ERROR) {
		l.errorLog.Print(l.format(format, v...))
	}
}

// Fatal logs an error message and exits the program
func (l *Logger) Fatal(format string, v ...interface{}) {
	l.errorLog.Print(l.format(format, v...))
	os.Exit(1)
}

// Global convenience functions
func Debug(format string, v ...interface{}) {
	GetLogger().Debug(format, v...)
}

func Info(format string, v ...interface{}) {
	GetLogger().Info(format, v...)
}

func Warning(format string, v ...interface{}) {
	GetLogger().Warning(format, v...)
}

func Error(format string, v ...interface{}) {
	GetLogger().Error(format, v...)
}

func Fatal(format string, v ...interface{}) {
	GetLogger().Fatal(format, v...)
}

// SetLevel changes the log level of the global logger
func SetLevel(level LogLevel) {
	GetLogger().SetLevel(level)
}

// SetOutput changes the output destination of the global logger
func SetOutput(output io.Writer) {
	l := GetLogger()
	l.debugLog.SetOutput(output)
	l.infoLog.SetOutput(output)
	l.warnLog.SetOutput(output)
	l.errorLog.SetOutput(output)
}

// IsDebugEnabled returns true if debug logging is enabled
func IsDebugEnabled() bool {
	return GetLogger().Level() <= DEBUG
}

// MaskSecret masks a credential for logging (shows first 4 and last 4 characters)
func MaskSecret(secret string) string {
	if secret == "" {
		return "(not set)"
	}
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}
