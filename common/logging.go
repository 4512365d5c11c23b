package common

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

var (
	loggerOnce sync.Once
	logger     *log.Logger
)

// Logger returns the process-wide structured logger, creating it on first use.
// Packages that want key/value output call Logger().With(...) instead of the printf helpers.
func Logger() *log.Logger {
	loggerOnce.Do(func() {
		logger = log.NewWithOptions(os.Stderr, log.Options{
			ReportCaller:    true,
			ReportTimestamp: true,
			TimeFormat:      time.RFC3339,
			Prefix:          "vacs",
		})
		logger.SetLevel(log.InfoLevel)
	})
	return logger
}

// SetLogLevel changes the level of the shared logger. Unknown names fall back to info.
//
// Parameters:
//   - level: one of "debug", "info", "warn", "error" or "fatal"
func SetLogLevel(level string) {
	lvl, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		lvl = log.InfoLevel
	}
	Logger().SetLevel(lvl)
}

func LogDebug(msg string, args ...any) {
	Logger().Helper()
	Logger().Debugf(msg, args...)
}

func LogInfo(msg string, args ...any) {
	Logger().Helper()
	Logger().Infof(msg, args...)
}

func LogWarn(msg string, args ...any) {
	Logger().Helper()
	Logger().Warnf(msg, args...)
}

func LogError(msg string, args ...any) {
	Logger().Helper()
	Logger().Errorf(msg, args...)
}
