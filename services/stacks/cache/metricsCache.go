package cache

import (
	"errors"
	"sync"
	"time"

	"github.com/iulianpascalau/devstats-stacks/services/stacks/common"
)

type seriesKey struct {
	component string
	metric    string
}

// PeriodData holds one cached period column: the full company value map and the moment it was written
type PeriodData struct {
	UpdatedAt time.Time
	Values    map[string]float64
}

// metricsCache is the in-memory TTL cache keyed by (component, metric, period). Entries are never
// evicted; the key space is bounded by the finite component x metric x period combinations.
type metricsCache struct {
	mut       sync.RWMutex
	cacheTime time.Duration
	series    map[seriesKey]map[string]PeriodData
}

// NewMetricsCache creates a new metrics cache with the provided TTL
func NewMetricsCache(cacheTime time.Duration) (*metricsCache, error) {
	if cacheTime <= 0 {
		return nil, errors.New("invalid cache time")
	}

	return &metricsCache{
		cacheTime: cacheTime,
		series:    make(map[seriesKey]map[string]PeriodData),
	}, nil
}

// Get returns copies of the stored period entries restricted to the requested periods. The second
// return value is false when any requested period is absent.
func (mc *metricsCache) Get(component string, metric string, periods []string) (map[string]PeriodData, bool) {
	mc.mut.RLock()
	defer mc.mut.RUnlock()

	stored, found := mc.series[seriesKey{component: component, metric: metric}]
	if !found {
		return nil, false
	}

	view := make(map[string]PeriodData, len(periods))
	for _, period := range periods {
		entry, hasPeriod := stored[period]
		if !hasPeriod {
			return nil, false
		}

		values := make(map[string]float64, len(entry.Values))
		for company, value := range entry.Values {
			values[company] = value
		}
		view[period] = PeriodData{
			UpdatedAt: entry.UpdatedAt,
			Values:    values,
		}
	}

	return view, true
}

// NeedsRefresh reports whether the requested periods are absent or expired. A period whose age equals
// the cache time exactly is still fresh; a mix of fresh and stale periods forces a refresh of the
// whole requested set.
func (mc *metricsCache) NeedsRefresh(component string, metric string, periods []string) bool {
	return mc.needsRefreshAt(component, metric, periods, time.Now())
}

func (mc *metricsCache) needsRefreshAt(component string, metric string, periods []string, now time.Time) bool {
	mc.mut.RLock()
	defer mc.mut.RUnlock()

	stored, found := mc.series[seriesKey{component: component, metric: metric}]
	if !found {
		return true
	}

	for _, period := range periods {
		entry, hasPeriod := stored[period]
		if !hasPeriod {
			return true
		}
		if now.Sub(entry.UpdatedAt) > mc.cacheTime {
			return true
		}
	}

	return false
}

// Put rewrites, for each period column of the table, the full company value map and stamps the write
// moment. Companies absent from a period column get an explicit zero. The returned change-set holds
// one row per (company, period) pair written, ready for the durable mirror.
func (mc *metricsCache) Put(component string, metric string, table common.TabularResult) []common.CacheRow {
	if len(table.Columns) == 0 {
		return nil
	}

	mc.mut.Lock()
	defer mc.mut.Unlock()

	key := seriesKey{component: component, metric: metric}
	stored, found := mc.series[key]
	if !found {
		stored = make(map[string]PeriodData)
		mc.series[key] = stored
	}

	now := time.Now()
	periods := table.Columns[1:]
	changeSet := make([]common.CacheRow, 0, len(periods)*len(table.Rows))

	for _, period := range periods {
		values := make(map[string]float64, len(table.Rows))
		for _, row := range table.Rows {
			value := row.Values[period] // zero default when the company is absent from this period
			values[row.Name] = value

			changeSet = append(changeSet, common.CacheRow{
				Component: component,
				Metric:    metric,
				Company:   row.Name,
				Period:    period,
				Value:     value,
			})
		}

		stored[period] = PeriodData{
			UpdatedAt: now,
			Values:    values,
		}
	}

	return changeSet
}

// IsInterfaceNil returns true if the value under the interface is nil
func (mc *metricsCache) IsInterfaceNil() bool {
	return mc == nil
}
