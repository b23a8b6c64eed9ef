package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/iulianpascalau/devstats-stacks/services/stacks/common"
	"github.com/iulianpascalau/devstats-stacks/services/stacks/testsCommon"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewComponentsRegistry(t *testing.T) {
	t.Parallel()

	t.Run("nil fetcher should error", func(t *testing.T) {
		reg, err := NewComponentsRegistry(nil, &testsCommon.StoreStub{})

		assert.Nil(t, reg)
		assert.True(t, reg.IsInterfaceNil())
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "nil components fetcher")
	})
	t.Run("nil storage should error", func(t *testing.T) {
		reg, err := NewComponentsRegistry(&testsCommon.SourceStub{}, nil)

		assert.Nil(t, reg)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "nil storage")
	})
	t.Run("should work", func(t *testing.T) {
		reg, err := NewComponentsRegistry(&testsCommon.SourceStub{}, &testsCommon.StoreStub{})

		assert.NotNil(t, reg)
		assert.False(t, reg.IsInterfaceNil())
		assert.Nil(t, err)
	})
}

func TestComponentsRegistry_GetComponents(t *testing.T) {
	t.Parallel()

	fetched := []common.Component{
		{Short: "all", Name: "All CNCF", Href: "https://all.devstats.cncf.io/"},
		{Short: "zeta", Name: "Zeta", Href: "https://zeta.devstats.cncf.io/"},
		{Short: "apple", Name: "apple", Href: "https://apple.devstats.cncf.io/"},
		{Short: "delta", Name: "Δelta", Href: "https://delta.devstats.cncf.io/"},
	}

	var mirrored []common.Component
	fetcher := &testsCommon.SourceStub{
		FetchComponentsHandler: func(ctx context.Context) ([]common.Component, error) {
			return append([]common.Component(nil), fetched...), nil
		},
	}
	store := &testsCommon.StoreStub{
		UpsertComponentsHandler: func(ctx context.Context, components []common.Component) error {
			mirrored = components
			return nil
		},
	}

	reg, err := NewComponentsRegistry(fetcher, store)
	require.NoError(t, err)

	components, updating := reg.GetComponents(context.Background(), true)
	require.True(t, updating) // first load runs in the background
	require.Nil(t, components)

	require.Eventually(t, func() bool {
		_, stillUpdating := reg.GetComponents(context.Background(), true)
		return !stillUpdating
	}, time.Second, 10*time.Millisecond)

	t.Run("listing excludes the aggregate entry and is sorted", func(t *testing.T) {
		components, updating = reg.GetComponents(context.Background(), true)
		require.False(t, updating)
		require.Equal(t, []string{"apple", "Zeta", "Δelta"}, displayNames(components))
	})
	t.Run("the aggregate entry is kept when not excluded", func(t *testing.T) {
		components, updating = reg.GetComponents(context.Background(), false)
		require.False(t, updating)
		require.Equal(t, []string{"All CNCF", "apple", "Zeta", "Δelta"}, displayNames(components))
	})

	require.Equal(t, 4, len(mirrored))
}

func TestComponentsRegistry_RefreshFailureKeepsSnapshot(t *testing.T) {
	t.Parallel()

	expectedErr := errors.New("scrape failed")
	failing := false
	fetcher := &testsCommon.SourceStub{
		FetchComponentsHandler: func(ctx context.Context) ([]common.Component, error) {
			if failing {
				return nil, expectedErr
			}
			return []common.Component{{Short: "kubernetes", Name: "Kubernetes"}}, nil
		},
	}

	reg, err := NewComponentsRegistry(fetcher, &testsCommon.StoreStub{})
	require.NoError(t, err)

	require.NoError(t, reg.Refresh(context.Background()))

	failing = true
	require.ErrorIs(t, reg.Refresh(context.Background()), expectedErr)

	// readers keep the previous snapshot
	components, updating := reg.GetComponents(context.Background(), true)
	require.False(t, updating)
	require.Equal(t, []string{"Kubernetes"}, displayNames(components))
}

func TestSortComponents(t *testing.T) {
	t.Parallel()

	components := []common.Component{
		{Name: "Zeta"},
		{Name: "Δelta"},
		{Name: "apple"},
	}

	sortComponents(components)

	// Latin-leading names first, case-insensitive
	require.Equal(t, []string{"apple", "Zeta", "Δelta"}, displayNames(components))
}

func displayNames(components []common.Component) []string {
	names := make([]string, 0, len(components))
	for _, comp := range components {
		names = append(names, comp.Name)
	}

	return names
}
