package logger

import (
	"bytes"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/fx/fxevent"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	SetOutput(buf)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLogLevel("INFO")
	})
	return buf
}

func TestSetLogLevel_FiltersBelowThreshold(t *testing.T) {
	buf := captureOutput(t)

	SetLogLevel("warn")
	Infof("hidden %d", 1)
	Warnf("shown %d", 2)

	out := buf.String()
	assert.NotContains(t, out, "hidden 1")
	assert.Contains(t, out, "shown 2")
	assert.Contains(t, out, "WARN")
	assert.Equal(t, LevelWarn, CurrentLevel())
}

func TestSetLogLevel_UnknownFallsBackToInfo(t *testing.T) {
	buf := captureOutput(t)

	SetLogLevel("DEBUG")
	SetLogLevel("verbose")

	assert.Equal(t, LevelInfo, CurrentLevel())
	assert.Contains(t, buf.String(), "Unknown log level 'verbose'")
}

func TestFxLoggerAdapter_ReportsHookFailures(t *testing.T) {
	buf := captureOutput(t)

	NewFxLoggerAdapter().LogEvent(&fxevent.OnStartExecuted{
		FunctionName: "github.com/tigerroll/epiflow/internal/app.startPipeline.func1",
		Err:          errors.New("boom"),
	})

	out := buf.String()
	assert.Contains(t, out, "internal/app.startPipeline")
	assert.NotContains(t, out, ".func1")
	assert.Contains(t, out, "boom")
}
