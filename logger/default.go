package logger

import "sync/atomic"

type holder struct{ Logger }

var defLogger atomic.Pointer[holder]

func init() {
	defLogger.Store(&holder{NewSlog(InfoLevel, false)})
}

// GetLogger returns the package-level logger. Components created without a
// logger use it.
func GetLogger() Logger {
	return defLogger.Load().Logger
}

// SetDefault replaces the package-level logger; nil is ignored. Components
// keep the logger they were created with.
func SetDefault(l Logger) {
	if l != nil {
		defLogger.Store(&holder{l})
	}
}

// SetLevel sets the level of the package-level logger.
func SetLevel(level LogLevel) { GetLogger().SetLevel(level) }

func Debug(msg string, keysAndValues ...any) { GetLogger().Debug(msg, keysAndValues...) }

func Info(msg string, keysAndValues ...any) { GetLogger().Info(msg, keysAndValues...) }

func Warn(msg string, keysAndValues ...any) { GetLogger().Warn(msg, keysAndValues...) }

func Error(msg string, keysAndValues ...any) { GetLogger().Error(msg, keysAndValues...) }

func Fatal(msg string, keysAndValues ...any) { GetLogger().Fatal(msg, keysAndValues...) }

func With(keyValues ...any) Logger { return GetLogger().With(keyValues...) }
