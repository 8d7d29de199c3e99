// Package debug is the leveled structured logger shared by every VL1
// package. Levels run from DEBUG_CRITICAL (1) to DEBUG_ALL (7) and map onto
// slog levels; anything above DEBUG_INFO is logged at slog debug level.
package debug

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
)

const (
	DEBUG_CRITICAL = 1
	DEBUG_ERROR    = 2
	DEBUG_INFO     = 3
	DEBUG_VERBOSE  = 4
	DEBUG_TRACE    = 5
	DEBUG_PACKETS  = 6
	DEBUG_ALL      = 7
)

const DefaultLevel = DEBUG_INFO

var (
	mu         sync.RWMutex
	debugLevel int       = DefaultLevel
	output     io.Writer = os.Stderr
	jsonOutput bool
	logger     *slog.Logger
)

func slogLevel(level int) slog.Level {
	switch {
	case level >= DEBUG_VERBOSE:
		return slog.LevelDebug
	case level >= DEBUG_INFO:
		return slog.LevelInfo
	case level >= DEBUG_ERROR:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// rebuild must be called with mu held.
func rebuild() {
	opts := &slog.HandlerOptions{Level: slogLevel(debugLevel)}
	var h slog.Handler
	if jsonOutput {
		h = slog.NewJSONHandler(output, opts)
	} else {
		h = slog.NewTextHandler(output, opts)
	}
	logger = slog.New(h)
}

// Init installs the logger as the slog default.
func Init() {
	slog.SetDefault(GetLogger())
}

func GetLogger() *slog.Logger {
	mu.RLock()
	l := logger
	mu.RUnlock()
	if l != nil {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		rebuild()
	}
	return logger
}

func Log(level int, msg string, args ...interface{}) {
	mu.RLock()
	current := debugLevel
	mu.RUnlock()
	if current < level {
		return
	}

	l := GetLogger()
	sl := slogLevel(level)
	if !l.Enabled(context.TODO(), sl) {
		return
	}

	allArgs := make([]interface{}, len(args)+2)
	copy(allArgs, args)
	allArgs[len(args)] = "debug_level"
	allArgs[len(args)+1] = level
	l.Log(context.TODO(), sl, msg, allArgs...)
}

func SetDebugLevel(level int) {
	mu.Lock()
	defer mu.Unlock()
	debugLevel = level
	rebuild()
}

func GetDebugLevel() int {
	mu.RLock()
	defer mu.RUnlock()
	return debugLevel
}

// SetOutput redirects log output. json selects slog's JSON handler.
func SetOutput(w io.Writer, json bool) {
	mu.Lock()
	defer mu.Unlock()
	if w == nil {
		w = os.Stderr
	}
	output = w
	jsonOutput = json
	rebuild()
}
