package factory

import "context"

// Server defines the operation of an entity able to serve requests
type Server interface {
	Start()
	Address() string
	Close() error
}

// ComponentsRefresher defines the directory refresh operation driven by the cron job
type ComponentsRefresher interface {
	Refresh(ctx context.Context) error
	IsInterfaceNil() bool
}
