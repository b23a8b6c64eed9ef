package testsCommon

import (
	"context"

	"github.com/iulianpascalau/devstats-stacks/services/stacks/common"
)

// StoreStub -
type StoreStub struct {
	UpsertCacheRowsHandler             func(ctx context.Context, rows []common.CacheRow) error
	UpsertCompaniesHandler             func(ctx context.Context, names []string) error
	UpsertComponentsHandler            func(ctx context.Context, components []common.Component) error
	UpsertComponentStackMembersHandler func(ctx context.Context, stackShort string, stackName string, members []string) error
	DeleteComponentStackMembersHandler func(ctx context.Context, stackShort string) error
	LoadComponentStacksHandler         func(ctx context.Context) ([]common.Stack, error)
	CloseHandler                       func() error
}

// UpsertCacheRows -
func (stub *StoreStub) UpsertCacheRows(ctx context.Context, rows []common.CacheRow) error {
	if stub.UpsertCacheRowsHandler != nil {
		return stub.UpsertCacheRowsHandler(ctx, rows)
	}

	return nil
}

// UpsertCompanies -
func (stub *StoreStub) UpsertCompanies(ctx context.Context, names []string) error {
	if stub.UpsertCompaniesHandler != nil {
		return stub.UpsertCompaniesHandler(ctx, names)
	}

	return nil
}

// UpsertComponents -
func (stub *StoreStub) UpsertComponents(ctx context.Context, components []common.Component) error {
	if stub.UpsertComponentsHandler != nil {
		return stub.UpsertComponentsHandler(ctx, components)
	}

	return nil
}

// UpsertComponentStackMembers -
func (stub *StoreStub) UpsertComponentStackMembers(ctx context.Context, stackShort string, stackName string, members []string) error {
	if stub.UpsertComponentStackMembersHandler != nil {
		return stub.UpsertComponentStackMembersHandler(ctx, stackShort, stackName, members)
	}

	return nil
}

// DeleteComponentStackMembers -
func (stub *StoreStub) DeleteComponentStackMembers(ctx context.Context, stackShort string) error {
	if stub.DeleteComponentStackMembersHandler != nil {
		return stub.DeleteComponentStackMembersHandler(ctx, stackShort)
	}

	return nil
}

// LoadComponentStacks -
func (stub *StoreStub) LoadComponentStacks(ctx context.Context) ([]common.Stack, error) {
	if stub.LoadComponentStacksHandler != nil {
		return stub.LoadComponentStacksHandler(ctx)
	}

	return nil, nil
}

// Close -
func (stub *StoreStub) Close() error {
	if stub.CloseHandler != nil {
		return stub.CloseHandler()
	}

	return nil
}

// IsInterfaceNil -
func (stub *StoreStub) IsInterfaceNil() bool {
	return stub == nil
}
