package registry

import (
	"context"

	"github.com/iulianpascalau/devstats-stacks/services/stacks/common"
)

// ComponentsFetcher defines the scraping operation used to discover components
type ComponentsFetcher interface {
	// FetchComponents scrapes the upstream listing page and returns the discovered components
	FetchComponents(ctx context.Context) ([]common.Component, error)

	IsInterfaceNil() bool
}

// ComponentsStorage defines the durable mirror operations used by the components registry
type ComponentsStorage interface {
	UpsertComponents(ctx context.Context, components []common.Component) error
	IsInterfaceNil() bool
}

// StacksStorage defines the durable mirror operations used by the stacks registry
type StacksStorage interface {
	UpsertComponentStackMembers(ctx context.Context, stackShort string, stackName string, members []string) error
	DeleteComponentStackMembers(ctx context.Context, stackShort string) error
	IsInterfaceNil() bool
}
