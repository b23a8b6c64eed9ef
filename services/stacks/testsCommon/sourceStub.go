package testsCommon

import (
	"context"

	"github.com/iulianpascalau/devstats-stacks/services/stacks/common"
)

// SourceStub -
type SourceStub struct {
	FetchComponentsHandler  func(ctx context.Context) ([]common.Component, error)
	FetchMetricTableHandler func(ctx context.Context, component string, metric string, periods []string) (common.TabularResult, error)
}

// FetchComponents -
func (stub *SourceStub) FetchComponents(ctx context.Context) ([]common.Component, error) {
	if stub.FetchComponentsHandler != nil {
		return stub.FetchComponentsHandler(ctx)
	}

	return nil, nil
}

// FetchMetricTable -
func (stub *SourceStub) FetchMetricTable(ctx context.Context, component string, metric string, periods []string) (common.TabularResult, error) {
	if stub.FetchMetricTableHandler != nil {
		return stub.FetchMetricTableHandler(ctx, component, metric, periods)
	}

	return common.TabularResult{}, nil
}

// IsInterfaceNil -
func (stub *SourceStub) IsInterfaceNil() bool {
	return stub == nil
}
