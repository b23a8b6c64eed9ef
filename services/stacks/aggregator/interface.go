package aggregator

import (
	"context"

	"github.com/iulianpascalau/devstats-stacks/services/stacks/cache"
	"github.com/iulianpascalau/devstats-stacks/services/stacks/common"
)

// Source defines the devstats access operations needed by the aggregator
type Source interface {
	// FetchMetricTable runs one combined tabular query for the requested periods and returns the
	// pivoted wide-form table
	FetchMetricTable(ctx context.Context, component string, metric string, periods []string) (common.TabularResult, error)

	IsInterfaceNil() bool
}

// MetricsCache defines the TTL cache operations needed by the aggregator
type MetricsCache interface {
	// Get returns the stored view restricted to the requested periods, false when any is absent
	Get(component string, metric string, periods []string) (map[string]cache.PeriodData, bool)

	// NeedsRefresh reports whether the requested periods are absent or expired
	NeedsRefresh(component string, metric string, periods []string) bool

	// Put rewrites the period columns of the table and returns the change-set for the durable mirror
	Put(component string, metric string, table common.TabularResult) []common.CacheRow

	IsInterfaceNil() bool
}

// Storage defines the durable mirror operations needed by the aggregator
type Storage interface {
	UpsertCacheRows(ctx context.Context, rows []common.CacheRow) error
	UpsertCompanies(ctx context.Context, names []string) error
	IsInterfaceNil() bool
}
