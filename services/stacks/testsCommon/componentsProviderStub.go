package testsCommon

import (
	"context"

	"github.com/iulianpascalau/devstats-stacks/services/stacks/common"
)

// ComponentsProviderStub -
type ComponentsProviderStub struct {
	GetComponentsHandler func(ctx context.Context, excludeAll bool) ([]common.Component, bool)
}

// GetComponents -
func (stub *ComponentsProviderStub) GetComponents(ctx context.Context, excludeAll bool) ([]common.Component, bool) {
	if stub.GetComponentsHandler != nil {
		return stub.GetComponentsHandler(ctx, excludeAll)
	}

	return nil, false
}

// IsInterfaceNil -
func (stub *ComponentsProviderStub) IsInterfaceNil() bool {
	return stub == nil
}
