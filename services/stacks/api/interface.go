package api

import (
	"context"

	"github.com/iulianpascalau/devstats-stacks/services/stacks/common"
)

// ComponentsProvider defines the component directory operations used by the route layer
type ComponentsProvider interface {
	// GetComponents returns the sorted directory snapshot; the second value is true while the first
	// load has not completed yet
	GetComponents(ctx context.Context, excludeAll bool) ([]common.Component, bool)

	IsInterfaceNil() bool
}

// StacksHandler defines the stack registry operations used by the route layer
type StacksHandler interface {
	Create(ctx context.Context, name string, components []string) (common.Stack, bool)
	Update(ctx context.Context, short string, components []string) (common.Stack, bool, error)
	Delete(ctx context.Context, short string) (common.Stack, error)
	Get(short string) (common.Stack, error)
	List() []common.Stack
	IsInterfaceNil() bool
}

// MetricsAggregator defines the aggregation engine operations used by the route layer
type MetricsAggregator interface {
	// GetMetrics returns the merged table or an updating signal while any component refresh is in flight
	GetMetrics(ctx context.Context, components []string, metric string, periods []string, companies []string) (common.TabularResult, bool, error)

	// Companies returns the company list seen by a component
	Companies(ctx context.Context, component string) ([]string, error)

	IsInterfaceNil() bool
}
