package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Level represents the severity of a log message.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel maps a config string to a Level; unknown strings mean info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

var (
	defaultLogger *fileLogger
	defaultOnce   sync.Once
)

// fileLogger writes leveled, timestamped lines to conductor-debug.log in the
// user's home directory, optionally echoing to stderr.
type fileLogger struct {
	file      *os.File
	sink      *log.Logger
	level     Level
	mu        sync.Mutex
	component string
	console   bool
}

func getDefault() *fileLogger {
	defaultOnce.Do(func() {
		defaultLogger = newFileLogger("", LevelDebug)
	})
	return defaultLogger
}

// NewComponentLogger returns the shared file logger scoped to a component.
func NewComponentLogger(component string) Logger {
	base := getDefault()
	return &fileLogger{
		file:      base.file,
		sink:      base.sink,
		level:     base.level,
		component: component,
		console:   base.console,
	}
}

// SetDefaultLevel adjusts the minimum level of the shared logger.
func SetDefaultLevel(level Level) {
	l := getDefault()
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// SetConsoleEcho mirrors shared-logger output to stderr, for server mode.
func SetConsoleEcho(enabled bool) {
	l := getDefault()
	l.mu.Lock()
	defer l.mu.Unlock()
	l.console = enabled
}

func newFileLogger(component string, level Level) *fileLogger {
	l := &fileLogger{
		level:     level,
		component: component,
	}

	home, err := os.UserHomeDir()
	if err != nil {
		log.Printf("failed to resolve home directory: %v", err)
		return l
	}

	logPath := filepath.Join(home, "conductor-debug.log")
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		log.Printf("failed to open log file: %v", err)
		return l
	}

	l.file = file
	l.sink = log.New(file, "", 0) // lines are formatted here
	return l
}

// Close closes the underlying log file of the shared logger.
func Close() error {
	l := getDefault()
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

func (l *fileLogger) log(level Level, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.level {
		return
	}

	_, file, line, ok := runtime.Caller(2)
	if ok {
		file = filepath.Base(file)
	} else {
		file = "???"
		line = 0
	}

	component := l.component
	if component == "" {
		component = "CONDUCTOR"
	}

	// Format: 2026-08-25 12:34:56 [INFO] [planner] file.go:123 - message
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	message := fmt.Sprintf(format, args...)
	logLine := Sanitize(fmt.Sprintf("%s [%s] [%s] %s:%d - %s\n",
		timestamp, level, component, file, line, message))

	if l.sink != nil {
		l.sink.Print(logLine)
	}
	if l.console {
		fmt.Fprint(os.Stderr, logLine)
	}
}

func (l *fileLogger) Debug(format string, args ...any) { l.log(LevelDebug, format, args...) }
func (l *fileLogger) Info(format string, args ...any)  { l.log(LevelInfo, format, args...) }
func (l *fileLogger) Warn(format string, args ...any)  { l.log(LevelWarn, format, args...) }
func (l *fileLogger) Error(format string, args ...any) { l.log(LevelError, format, args...) }

const redactedPlaceholder = "[REDACTED]"

var (
	bearerTokenPattern = regexp.MustCompile(`(?i)(bearer\s+)([A-Za-z0-9\-\._~+/]+=*)`)

	sensitiveKeyValuePattern = regexp.MustCompile(
		`(?i)((?:"|')?(?:api[_-]?key|access[_-]?token|refresh[_-]?token|token|secret|password|credential)(?:"|')?\s*(?:=|:)\s*)(?:"|')?([^"'\s,;]+)((?:"|')?)`,
	)

	standaloneSecretPattern = regexp.MustCompile(
		`(?i)(sk-[A-Za-z0-9]{16,}|ghp_[A-Za-z0-9]{16,}|xox[a-z]-[A-Za-z0-9\-]{10,})`,
	)
)

// Sanitize masks credentials before a line reaches any sink. Log lines carry
// provider requests and config dumps, so this runs on every write.
func Sanitize(line string) string {
	sanitized := sensitiveKeyValuePattern.ReplaceAllStringFunc(line, func(match string) string {
		parts := sensitiveKeyValuePattern.FindStringSubmatch(match)
		if len(parts) != 4 {
			return match
		}
		return parts[1] + redactedPlaceholder + parts[3]
	})

	sanitized = bearerTokenPattern.ReplaceAllStringFunc(sanitized, func(match string) string {
		parts := bearerTokenPattern.FindStringSubmatch(match)
		if len(parts) != 3 {
			return match
		}
		return parts[1] + redactedPlaceholder
	})

	return standaloneSecretPattern.ReplaceAllString(sanitized, redactedPlaceholder)
}
