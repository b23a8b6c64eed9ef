package registry

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/iulianpascalau/devstats-stacks/services/stacks/common"
	"github.com/multiversx/mx-chain-core-go/core/check"
	logger "github.com/multiversx/mx-chain-logger-go"
)

var log = logger.GetOrCreate("registry")

// componentsRegistry holds the periodically refreshed directory of known components. The first load
// happens lazily on first access; until it completes, readers get an updating signal since there is
// no previous snapshot to fall back on.
type componentsRegistry struct {
	fetcher ComponentsFetcher
	store   ComponentsStorage

	mut        sync.RWMutex
	components []common.Component
	loaded     bool
	refreshing bool
}

// NewComponentsRegistry creates a new components directory
func NewComponentsRegistry(fetcher ComponentsFetcher, store ComponentsStorage) (*componentsRegistry, error) {
	if check.IfNil(fetcher) {
		return nil, errors.New("nil components fetcher")
	}
	if check.IfNil(store) {
		return nil, errors.New("nil storage")
	}

	return &componentsRegistry{
		fetcher: fetcher,
		store:   store,
	}, nil
}

// GetComponents returns the current snapshot sorted by display name. The second return value is true
// while no snapshot has ever completed; the first such call triggers the initial load in the
// background. During later refreshes readers keep getting the previous snapshot. With excludeAll set,
// the sentinel all-components entry is left out of the listing.
func (cr *componentsRegistry) GetComponents(_ context.Context, excludeAll bool) ([]common.Component, bool) {
	cr.mut.Lock()
	if !cr.loaded && !cr.refreshing {
		cr.refreshing = true
		go func() {
			// detached from the triggering request, runs to completion
			_ = cr.Refresh(context.Background())
		}()
	}
	loaded := cr.loaded
	snapshot := cr.components
	cr.mut.Unlock()

	if !loaded {
		return nil, true
	}

	out := make([]common.Component, 0, len(snapshot))
	for _, comp := range snapshot {
		if excludeAll && comp.Short == common.AllComponentsShort {
			continue
		}
		out = append(out, comp)
	}

	return out, false
}

// Refresh scrapes the listing page, mirrors the result and swaps the snapshot. Called once lazily and
// then periodically, on the cache TTL interval.
func (cr *componentsRegistry) Refresh(ctx context.Context) error {
	cr.mut.Lock()
	cr.refreshing = true
	cr.mut.Unlock()

	components, err := cr.fetcher.FetchComponents(ctx)
	if err != nil {
		log.Warn("components refresh failed", "error", err)

		cr.mut.Lock()
		cr.refreshing = false
		cr.mut.Unlock()

		return err
	}

	sortComponents(components)

	errUpsert := cr.store.UpsertComponents(ctx, components)
	if errUpsert != nil {
		// the registry stays authoritative, the durable mirror just lags behind
		log.Warn("failed to mirror components", "error", errUpsert)
	}

	cr.mut.Lock()
	cr.components = components
	cr.loaded = true
	cr.refreshing = false
	cr.mut.Unlock()

	log.Debug("components refreshed", "count", len(components))

	return nil
}

// sortComponents orders entries by display name: names with a Latin leading letter come before the
// rest, comparison is case-insensitive
func sortComponents(components []common.Component) {
	sort.SliceStable(components, func(i, j int) bool {
		return lessByDisplayName(components[i].Name, components[j].Name)
	})
}

func lessByDisplayName(a string, b string) bool {
	aLower := strings.ToLower(a)
	bLower := strings.ToLower(b)

	aLatin := startsWithLatinLetter(aLower)
	bLatin := startsWithLatinLetter(bLower)
	if aLatin != bLatin {
		return aLatin
	}

	return aLower < bLower
}

func startsWithLatinLetter(s string) bool {
	if len(s) == 0 {
		return false
	}

	r := s[0]
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

// IsInterfaceNil returns true if the value under the interface is nil
func (cr *componentsRegistry) IsInterfaceNil() bool {
	return cr == nil
}
