package app

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"

	"github.com/tigerroll/epiflow/internal/job"
	config "github.com/tigerroll/epiflow/pkg/batch/core/config"
	metrics "github.com/tigerroll/epiflow/pkg/batch/core/metrics"
)

type flushCounter struct {
	*metrics.NoOpMetricRecorder
	flushes atomic.Int32
}

func (f *flushCounter) Flush(context.Context) error {
	f.flushes.Add(1)
	return errors.New("gateway unavailable")
}

func TestModules_GraphIsComplete(t *testing.T) {
	opts := Options{EmbeddedConfig: config.EmbeddedConfig("epiflow: {}\n"), Mode: job.ModeRun}
	err := fx.ValidateApp(modules(context.Background(), opts, newOutcome())...)
	require.NoError(t, err)
}

func TestRunPipeline_FlushesAndReturnsError(t *testing.T) {
	rec := &flushCounter{NoOpMetricRecorder: &metrics.NoOpMetricRecorder{}}
	boom := errors.New("stage failed")

	err := runPipeline(context.Background(), "p", func(context.Context) error { return boom }, rec)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(1), rec.flushes.Load(), "flush failures are logged, not returned")
}

func TestRunPipeline_RecoversPanic(t *testing.T) {
	rec := &flushCounter{NoOpMetricRecorder: &metrics.NoOpMetricRecorder{}}

	err := runPipeline(context.Background(), "p", func(context.Context) error { panic("bad table") }, rec)
	assert.ErrorContains(t, err, "bad table")
	assert.Equal(t, int32(1), rec.flushes.Load())
}

func TestOverrideMetrics(t *testing.T) {
	cfg := config.NewConfig()
	assert.Len(t, overrideMetrics(nil)(cfg).Epiflow.Forecast.Metrics, 4)
	assert.Equal(t, []string{"Deaths"}, overrideMetrics([]string{"Deaths"})(cfg).Epiflow.Forecast.Metrics)
}

func TestOutcome_WaitSeesErrorFromRunGoroutine(t *testing.T) {
	result := newOutcome()
	boom := errors.New("stage failed")
	release := make(chan struct{})
	go func() {
		<-release
		result.finish(boom)
	}()

	short, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, result.wait(short), context.DeadlineExceeded, "an unfinished run is reported, not read")

	close(release)
	ctx, cancelWait := context.WithTimeout(context.Background(), time.Second)
	defer cancelWait()
	assert.ErrorIs(t, result.wait(ctx), boom)
}

func TestOutcome_FinishedBeforeDeadline(t *testing.T) {
	result := newOutcome()
	result.finish(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, result.wait(ctx), "a finished run wins over an expired stop context")
}
