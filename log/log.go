// Package log provides the component-tagged, level-filtered logging calls
// used throughout the session engine, backed by logrus.
package log

import (
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Level mirrors the five severities the original component-tag logger
// exposed, mapped onto logrus's levels.
type Level int

const (
	TraceLevel Level = iota
	DebugLevel
	InfoLevel
	WarnLevel
	ErrorLevel
)

var (
	mu     sync.RWMutex
	logger = newLogrus()
)

func newLogrus() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.DebugLevel)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return l
}

func toLogrusLevel(l Level) logrus.Level {
	switch l {
	case TraceLevel:
		return logrus.TraceLevel
	case DebugLevel:
		return logrus.DebugLevel
	case InfoLevel:
		return logrus.InfoLevel
	case WarnLevel:
		return logrus.WarnLevel
	case ErrorLevel:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

func fromLogrusLevel(l logrus.Level) Level {
	switch l {
	case logrus.TraceLevel:
		return TraceLevel
	case logrus.DebugLevel:
		return DebugLevel
	case logrus.WarnLevel:
		return WarnLevel
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// SetLevel changes the global minimum level logged.
func SetLevel(level Level) {
	mu.Lock()
	defer mu.Unlock()
	logger.SetLevel(toLogrusLevel(level))
}

// GetLevel returns the current global minimum level.
func GetLevel() Level {
	mu.RLock()
	defer mu.RUnlock()
	return fromLogrusLevel(logger.GetLevel())
}

// ParseLevel converts a case-insensitive level name, defaulting to Info.
func ParseLevel(s string) Level {
	switch strings.ToUpper(s) {
	case "TRACE":
		return TraceLevel
	case "DEBUG":
		return DebugLevel
	case "WARN", "WARNING":
		return WarnLevel
	case "ERROR":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

func entry(component string) *logrus.Entry {
	mu.RLock()
	l := logger
	mu.RUnlock()
	if component == "" {
		return logrus.NewEntry(l)
	}
	return l.WithField("component", component)
}

// Trace logs wire-level polling detail: raw frames, reader-loop ticks.
func Trace(component, format string, args ...interface{}) { entry(component).Tracef(format, args...) }

// Debug logs parsed protocol traffic: decoded PDUs, discovery steps.
func Debug(component, format string, args ...interface{}) { entry(component).Debugf(format, args...) }

// Info logs high-level lifecycle events: connect, disconnect, MTU negotiated.
func Info(component, format string, args ...interface{}) { entry(component).Infof(format, args...) }

// Warn logs recoverable anomalies: a retried write, a dropped notification.
func Warn(component, format string, args ...interface{}) { entry(component).Warnf(format, args...) }

// Error logs failures a caller will also observe through a returned error.
func Error(component, format string, args ...interface{}) { entry(component).Errorf(format, args...) }
