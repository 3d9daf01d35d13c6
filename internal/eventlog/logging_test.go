package eventlog

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingLogger struct {
	lines []string
}

func (r *recordingLogger) Println(values ...interface{}) {
	r.lines = append(r.lines, fmt.Sprintln(values...))
}

func (r *recordingLogger) Printf(format string, values ...interface{}) {
	r.lines = append(r.lines, fmt.Sprintf(format, values...))
}

func TestLoggersDispatchesToSingleBaseLogger(t *testing.T) {
	var l Loggers
	rec := &recordingLogger{}
	l.SetBaseLogger(rec)
	l.SetMinLevel(Debug)

	l.Debug("hello")
	l.Info("world")

	assert.Len(t, rec.lines, 2)
}

func TestLoggersMinLevelFiltersLowerSeverity(t *testing.T) {
	var l Loggers
	rec := &recordingLogger{}
	l.SetBaseLogger(rec)
	l.SetMinLevel(Warn)

	l.Debug("suppressed")
	l.Info("suppressed")
	l.Warn("kept")
	l.Error("kept")

	assert.Len(t, rec.lines, 2)
}

func TestLoggersSetBaseLoggerForLevelOverridesOneLevel(t *testing.T) {
	var l Loggers
	shared := &recordingLogger{}
	errOnly := &recordingLogger{}
	l.SetBaseLogger(shared)
	l.SetBaseLoggerForLevel(Error, errOnly)
	l.SetMinLevel(Debug)

	l.Info("goes to shared")
	l.Error("goes to errOnly")

	assert.Len(t, shared.lines, 1)
	assert.Len(t, errOnly.lines, 1)
}

func TestLoggersIsDebugEnabled(t *testing.T) {
	var l Loggers
	l.SetMinLevel(Info)
	assert.False(t, l.IsDebugEnabled())

	l.SetMinLevel(Debug)
	assert.True(t, l.IsDebugEnabled())
}

func TestLoggersGetMinLevel(t *testing.T) {
	var l Loggers
	l.SetMinLevel(Error)
	assert.Equal(t, Error, l.GetMinLevel())
}

func TestNewDisabledLoggersDiscardsEverything(t *testing.T) {
	l := NewDisabledLoggers()
	assert.Equal(t, None, l.GetMinLevel())
	// Must not panic even at the most severe level.
	l.Error("anything")
}

func TestLogLevelStringValues(t *testing.T) {
	assert.Equal(t, "DEBUG", Debug.String())
	assert.Equal(t, "INFO", Info.String())
	assert.Equal(t, "WARN", Warn.String())
	assert.Equal(t, "ERROR", Error.String())
	assert.Equal(t, "NONE", None.String())
}
