// Package eventlog provides the level-filtered logging abstraction used by
// the event pipeline. It is deliberately small: a BaseLogger is anything
// with Println/Printf, so any logging backend can be adapted without this
// package depending on it directly.
package eventlog

import (
	"fmt"
	"log"
	"os"
)

// LogLevel identifies the severity of a log statement.
type LogLevel int

const (
	Debug LogLevel = iota
	Info
	Warn
	Error
	None
)

func (l LogLevel) String() string {
	switch l {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warn:
		return "WARN"
	case Error:
		return "ERROR"
	default:
		return "NONE"
	}
}

// BaseLogger is the minimal sink a Loggers needs per level. *log.Logger
// satisfies it directly; a *zap.SugaredLogger does not and is wrapped in
// ZapBaseLogger instead.
type BaseLogger interface {
	Println(values ...interface{})
	Printf(format string, values ...interface{})
}

// Loggers dispatches to a BaseLogger per level, with a minimum level below
// which nothing is written.
type Loggers struct {
	loggers  [4]BaseLogger
	minLevel LogLevel
	inited   bool
}

func (l *Loggers) init() {
	if l.inited {
		return
	}
	defaultLogger := log.New(os.Stderr, "", log.LstdFlags)
	for i := range l.loggers {
		l.loggers[i] = defaultLogger
	}
	l.inited = true
}

// SetBaseLogger sets the same underlying logger for all levels.
func (l *Loggers) SetBaseLogger(logger BaseLogger) {
	l.init()
	for i := range l.loggers {
		l.loggers[i] = logger
	}
}

// SetBaseLoggerForLevel overrides the logger used for a single level.
func (l *Loggers) SetBaseLoggerForLevel(level LogLevel, logger BaseLogger) {
	l.init()
	if level >= Debug && level <= Error {
		l.loggers[level] = logger
	}
}

// SetMinLevel sets the minimum level that will be written.
func (l *Loggers) SetMinLevel(level LogLevel) {
	l.minLevel = level
}

func (l *Loggers) GetMinLevel() LogLevel {
	return l.minLevel
}

func (l *Loggers) IsDebugEnabled() bool {
	return l.minLevel <= Debug
}

func (l *Loggers) write(level LogLevel, values ...interface{}) {
	if level < l.minLevel {
		return
	}
	l.init()
	prefix := "[" + level.String() + "] "
	l.loggers[level].Println(append([]interface{}{prefix}, values...)...)
}

func (l *Loggers) writef(level LogLevel, format string, values ...interface{}) {
	if level < l.minLevel {
		return
	}
	l.init()
	l.loggers[level].Printf("["+level.String()+"] "+format, values...)
}

func (l *Loggers) Debug(values ...interface{})                 { l.write(Debug, values...) }
func (l *Loggers) Debugf(format string, values ...interface{}) { l.writef(Debug, format, values...) }
func (l *Loggers) Info(values ...interface{})                  { l.write(Info, values...) }
func (l *Loggers) Infof(format string, values ...interface{})  { l.writef(Info, format, values...) }
func (l *Loggers) Warn(values ...interface{})                  { l.write(Warn, values...) }
func (l *Loggers) Warnf(format string, values ...interface{})  { l.writef(Warn, format, values...) }
func (l *Loggers) Error(values ...interface{})                 { l.write(Error, values...) }
func (l *Loggers) Errorf(format string, values ...interface{}) { l.writef(Error, format, values...) }

// NewDisabledLoggers returns a Loggers that discards everything, for tests.
func NewDisabledLoggers() Loggers {
	l := Loggers{}
	l.init()
	discard := log.New(discardWriter{}, "", 0)
	l.SetBaseLogger(discard)
	l.SetMinLevel(None)
	return l
}

// NewDefaultLoggers returns a Loggers writing to stderr at Info and above.
func NewDefaultLoggers() Loggers {
	l := Loggers{}
	l.init()
	l.SetMinLevel(Info)
	return l
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

var _ fmt.Stringer = LogLevel(0)
