// Package xlog provides leveled logging for the resolution engines.
//
// Output goes to a standard library logger so callers can redirect it with
// SetOutput. The default level is Info; resolution hot paths log at Debug
// and are silent unless the level is lowered.
package xlog

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync/atomic"
)

// Level represents log levels.
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	currentLevel int32 = int32(LevelInfo)
	logger             = log.New(os.Stdout, "", log.LstdFlags)
)

// SetLevel sets the minimum level that will be logged.
func SetLevel(level Level) {
	atomic.StoreInt32(&currentLevel, int32(level))
}

// GetLevel returns the current minimum level.
func GetLevel() Level {
	return Level(atomic.LoadInt32(&currentLevel))
}

// SetOutput redirects log output.
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

// Debug logs a debug message with optional structured params.
//
// Example:
//
//	xlog.Debug("cache hit", map[string]interface{}{"source": source, "target": target})
func Debug(message string, params map[string]interface{}) {
	if GetLevel() <= LevelDebug {
		logMessage("DEBUG", message, params)
	}
}

// Info logs an info message.
func Info(message string, params map[string]interface{}) {
	if GetLevel() <= LevelInfo {
		logMessage("INFO", message, params)
	}
}

// Warn logs a warning message.
func Warn(message string, params map[string]interface{}) {
	if GetLevel() <= LevelWarn {
		logMessage("WARN", message, params)
	}
}

// Error logs an error message.
func Error(message string, params map[string]interface{}) {
	if GetLevel() <= LevelError {
		logMessage("ERROR", message, params)
	}
}

func logMessage(level string, message string, params map[string]interface{}) {
	logLine := fmt.Sprintf("%s: %s", level, message)
	if len(params) > 0 {
		logLine += fmt.Sprintf(" %v", params)
	}
	logger.Println(logLine)
}

func levelName(l Level) string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	}
	return "INFO"
}

// ParseLevel resolves a level name to a Level. Unknown names map to Info.
func ParseLevel(name string) Level {
	switch name {
	case "DEBUG", "debug":
		return LevelDebug
	case "INFO", "info":
		return LevelInfo
	case "WARN", "warn":
		return LevelWarn
	case "ERROR", "error":
		return LevelError
	}
	return LevelInfo
}

// String returns the level's name.
func (l Level) String() string { return levelName(l) }
