package logger

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Fields are structured key/value pairs attached to a log line.
type Fields = map[string]interface{}

var (
	mu    sync.RWMutex
	level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	base  = newConsoleLogger(os.Stderr)
)

// newConsoleLogger builds a human-readable zap logger writing to w.
// stdout is reserved for command output, so the CLI always passes stderr.
func newConsoleLogger(w io.Writer) *zap.Logger {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(w), level)
	return zap.New(core)
}

// Init redirects logging to w at the given level ("debug", "info", "warn", "error").
func Init(w io.Writer, lvl string) error {
	if err := SetLevel(lvl); err != nil {
		return err
	}
	mu.Lock()
	base = newConsoleLogger(w)
	mu.Unlock()
	return nil
}

// SetLevel changes the minimum level without rebuilding the logger.
func SetLevel(lvl string) error {
	if lvl == "" {
		return nil
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(lvl))); err != nil {
		return fmt.Errorf("invalid log level %q: %w", lvl, err)
	}
	level.SetLevel(l)
	return nil
}

// SetLogger swaps the underlying zap logger. Used by tests with an observer core.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	base = l
	mu.Unlock()
}

// Zap returns the current zap logger, for libraries that want one directly.
func Zap() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// Sync flushes buffered entries.
func Sync() {
	_ = Zap().Sync()
}

func toZap(component string, fields Fields) []zap.Field {
	out := make([]zap.Field, 0, len(fields)+1)
	if component != "" {
		out = append(out, zap.String("component", component))
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, zap.Any(k, fields[k]))
	}
	return out
}

func DebugCF(component, msg string, fields Fields) {
	Zap().Debug(msg, toZap(component, fields)...)
}

func InfoCF(component, msg string, fields Fields) {
	Zap().Info(msg, toZap(component, fields)...)
}

func WarnCF(component, msg string, fields Fields) {
	Zap().Warn(msg, toZap(component, fields)...)
}

func ErrorCF(component, msg string, fields Fields) {
	Zap().Error(msg, toZap(component, fields)...)
}

// DebugEnabled reports whether debug entries are currently written.
func DebugEnabled() bool {
	return level.Enabled(zapcore.DebugLevel)
}
