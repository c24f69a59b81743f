package forecast

import (
	"context"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/tigerroll/epiflow/internal/domain/model"
)

// Forecaster fits one metric over a case dataset.
type Forecaster interface {
	Forecast(ctx context.Context, records []model.CaseRecord, metric model.Metric) (*model.ForecastResult, error)
}

// Cache memoizes forecasts by metric for one version of the case dataset.
// A request for a different version, or a call to Invalidate, discards every
// entry. Concurrent requests for the same metric share one fit.
type Cache struct {
	fitter Forecaster
	group  singleflight.Group

	mu      sync.Mutex
	version string
	entries map[model.Metric]*model.ForecastResult
}

// NewCache creates an empty cache over fitter.
func NewCache(fitter Forecaster) *Cache {
	return &Cache{fitter: fitter, entries: make(map[model.Metric]*model.ForecastResult)}
}

// Get returns the forecast of metric for the dataset identified by version,
// fitting it on a miss. Failed fits are not cached.
func (c *Cache) Get(ctx context.Context, version string, records []model.CaseRecord, metric model.Metric) (*model.ForecastResult, error) {
	c.mu.Lock()
	if version != c.version {
		c.entries = make(map[model.Metric]*model.ForecastResult)
		c.version = version
	}
	if res, ok := c.entries[metric]; ok {
		c.mu.Unlock()
		return res, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(version+"\x00"+string(metric), func() (interface{}, error) {
		c.mu.Lock()
		if res, ok := c.entries[metric]; ok && c.version == version {
			c.mu.Unlock()
			return res, nil
		}
		c.mu.Unlock()

		res, err := c.fitter.Forecast(ctx, records, metric)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if c.version == version {
			c.entries[metric] = res
		}
		c.mu.Unlock()
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.ForecastResult), nil
}

// Invalidate drops every cached forecast.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[model.Metric]*model.ForecastResult)
	c.version = ""
}

// Len returns the number of cached forecasts.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Fingerprint identifies a case dataset by content.
func Fingerprint(records []model.CaseRecord) string {
	h := fnv.New64a()
	var buf [8]byte
	num := func(v float64) {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		_, _ = h.Write(buf[:])
	}
	for _, r := range records {
		_, _ = h.Write([]byte(r.Country))
		_, _ = h.Write([]byte{0})
		_, _ = h.Write([]byte(r.Region))
		_, _ = h.Write([]byte{0})
		binary.LittleEndian.PutUint64(buf[:], uint64(r.Date.Unix()))
		_, _ = h.Write(buf[:])
		num(r.Confirmed)
		num(r.Deaths)
		num(r.Recovered)
		num(r.Active)
	}
	return fmt.Sprintf("%d-%016x", len(records), h.Sum64())
}
