package testsCommon

import (
	"context"

	"github.com/iulianpascalau/devstats-stacks/services/stacks/common"
)

// AggregatorStub -
type AggregatorStub struct {
	GetMetricsHandler func(ctx context.Context, components []string, metric string, periods []string, companies []string) (common.TabularResult, bool, error)
	CompaniesHandler  func(ctx context.Context, component string) ([]string, error)
}

// GetMetrics -
func (stub *AggregatorStub) GetMetrics(ctx context.Context, components []string, metric string, periods []string, companies []string) (common.TabularResult, bool, error) {
	if stub.GetMetricsHandler != nil {
		return stub.GetMetricsHandler(ctx, components, metric, periods, companies)
	}

	return common.TabularResult{}, false, nil
}

// Companies -
func (stub *AggregatorStub) Companies(ctx context.Context, component string) ([]string, error) {
	if stub.CompaniesHandler != nil {
		return stub.CompaniesHandler(ctx, component)
	}

	return nil, nil
}

// IsInterfaceNil -
func (stub *AggregatorStub) IsInterfaceNil() bool {
	return stub == nil
}
