package forecast

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/epiflow/internal/domain/model"
)

type countingFitter struct {
	calls atomic.Int32
	err   error
}

func (f *countingFitter) Forecast(_ context.Context, _ []model.CaseRecord, metric model.Metric) (*model.ForecastResult, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &model.ForecastResult{Metric: metric}, nil
}

func TestCache_HitsMissesAndInvalidation(t *testing.T) {
	fitter := &countingFitter{}
	c := NewCache(fitter)
	ctx := context.Background()
	records := caseRecords()
	v1 := Fingerprint(records)

	first, err := c.Get(ctx, v1, records, model.MetricConfirmed)
	require.NoError(t, err)
	second, err := c.Get(ctx, v1, records, model.MetricConfirmed)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, int32(1), fitter.calls.Load())

	_, err = c.Get(ctx, v1, records, model.MetricDeaths)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())

	refreshed := append(caseRecords(), model.CaseRecord{Country: "C", Confirmed: 1})
	v2 := Fingerprint(refreshed)
	require.NotEqual(t, v1, v2)
	_, err = c.Get(ctx, v2, refreshed, model.MetricConfirmed)
	require.NoError(t, err)
	assert.Equal(t, int32(3), fitter.calls.Load(), "a new dataset version refits")
	assert.Equal(t, 1, c.Len())

	c.Invalidate()
	assert.Equal(t, 0, c.Len())
	_, err = c.Get(ctx, v2, refreshed, model.MetricConfirmed)
	require.NoError(t, err)
	assert.Equal(t, int32(4), fitter.calls.Load())
}

func TestCache_ConcurrentRequestsShareOneFit(t *testing.T) {
	fitter := &countingFitter{}
	c := NewCache(fitter)
	records := caseRecords()
	v := Fingerprint(records)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Get(context.Background(), v, records, model.MetricActive)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), fitter.calls.Load())
}

func TestCache_FailuresAreNotCached(t *testing.T) {
	fitter := &countingFitter{err: errors.New("degenerate")}
	c := NewCache(fitter)

	for i := 0; i < 2; i++ {
		_, err := c.Get(context.Background(), "v", nil, model.MetricRecovered)
		assert.Error(t, err)
	}
	assert.Equal(t, int32(2), fitter.calls.Load())
	assert.Equal(t, 0, c.Len())
}

func TestFingerprint_Stable(t *testing.T) {
	assert.Equal(t, Fingerprint(caseRecords()), Fingerprint(caseRecords()))
	changed := caseRecords()
	changed[0].Deaths++
	assert.NotEqual(t, Fingerprint(caseRecords()), Fingerprint(changed))
}
