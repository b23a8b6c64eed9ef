package testsCommon

import (
	"context"

	"github.com/iulianpascalau/devstats-stacks/services/stacks/common"
)

// StacksHandlerStub -
type StacksHandlerStub struct {
	CreateHandler func(ctx context.Context, name string, components []string) (common.Stack, bool)
	UpdateHandler func(ctx context.Context, short string, components []string) (common.Stack, bool, error)
	DeleteHandler func(ctx context.Context, short string) (common.Stack, error)
	GetHandler    func(short string) (common.Stack, error)
	ListHandler   func() []common.Stack
}

// Create -
func (stub *StacksHandlerStub) Create(ctx context.Context, name string, components []string) (common.Stack, bool) {
	if stub.CreateHandler != nil {
		return stub.CreateHandler(ctx, name, components)
	}

	return common.Stack{}, false
}

// Update -
func (stub *StacksHandlerStub) Update(ctx context.Context, short string, components []string) (common.Stack, bool, error) {
	if stub.UpdateHandler != nil {
		return stub.UpdateHandler(ctx, short, components)
	}

	return common.Stack{}, false, nil
}

// Delete -
func (stub *StacksHandlerStub) Delete(ctx context.Context, short string) (common.Stack, error) {
	if stub.DeleteHandler != nil {
		return stub.DeleteHandler(ctx, short)
	}

	return common.Stack{}, nil
}

// Get -
func (stub *StacksHandlerStub) Get(short string) (common.Stack, error) {
	if stub.GetHandler != nil {
		return stub.GetHandler(short)
	}

	return common.Stack{}, nil
}

// List -
func (stub *StacksHandlerStub) List() []common.Stack {
	if stub.ListHandler != nil {
		return stub.ListHandler()
	}

	return nil
}

// IsInterfaceNil -
func (stub *StacksHandlerStub) IsInterfaceNil() bool {
	return stub == nil
}
