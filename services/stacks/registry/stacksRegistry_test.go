package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/iulianpascalau/devstats-stacks/services/stacks/common"
	"github.com/iulianpascalau/devstats-stacks/services/stacks/testsCommon"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStacksRegistry(t *testing.T) {
	t.Parallel()

	t.Run("nil storage should error", func(t *testing.T) {
		reg, err := NewStacksRegistry(nil)

		assert.Nil(t, reg)
		assert.True(t, reg.IsInterfaceNil())
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "nil storage")
	})
	t.Run("should work", func(t *testing.T) {
		reg, err := NewStacksRegistry(&testsCommon.StoreStub{})

		assert.NotNil(t, reg)
		assert.False(t, reg.IsInterfaceNil())
		assert.Nil(t, err)
	})
}

func TestStacksRegistry_CreateGetList(t *testing.T) {
	t.Parallel()

	var persistedShort, persistedName string
	var persistedMembers []string
	store := &testsCommon.StoreStub{
		UpsertComponentStackMembersHandler: func(ctx context.Context, stackShort string, stackName string, members []string) error {
			persistedShort = stackShort
			persistedName = stackName
			persistedMembers = members
			return nil
		},
	}

	reg, _ := NewStacksRegistry(store)

	stack, persisted := reg.Create(context.Background(), "My Observability Stack", []string{"prometheus", "jaeger"})
	require.True(t, persisted)
	require.Equal(t, "my-observability-stack", stack.Short)
	require.Equal(t, "My Observability Stack", stack.Name)
	require.Equal(t, []string{"prometheus", "jaeger"}, stack.Components)

	require.Equal(t, "my-observability-stack", persistedShort)
	require.Equal(t, "My Observability Stack", persistedName)
	require.Equal(t, []string{"prometheus", "jaeger"}, persistedMembers)

	got, err := reg.Get("my-observability-stack")
	require.NoError(t, err)
	require.Equal(t, stack, got)

	list := reg.List()
	require.Equal(t, 1, len(list))
	require.Equal(t, stack, list[0])
}

func TestStacksRegistry_CreateMirrorFailure(t *testing.T) {
	t.Parallel()

	store := &testsCommon.StoreStub{
		UpsertComponentStackMembersHandler: func(ctx context.Context, stackShort string, stackName string, members []string) error {
			return errors.New("db closed")
		},
	}

	reg, _ := NewStacksRegistry(store)

	stack, persisted := reg.Create(context.Background(), "Edge", []string{"k3s"})
	require.False(t, persisted) // the stack still exists in memory
	require.Equal(t, "edge", stack.Short)

	_, err := reg.Get("edge")
	require.NoError(t, err)
}

func TestStacksRegistry_Update(t *testing.T) {
	t.Parallel()

	var deletedShort string
	store := &testsCommon.StoreStub{
		DeleteComponentStackMembersHandler: func(ctx context.Context, stackShort string) error {
			deletedShort = stackShort
			return nil
		},
	}

	reg, _ := NewStacksRegistry(store)

	t.Run("unknown stack should error", func(t *testing.T) {
		_, _, err := reg.Update(context.Background(), "missing", []string{"x"})
		require.ErrorIs(t, err, ErrStackNotFound)
	})
	t.Run("keeps the display name and replaces members", func(t *testing.T) {
		_, _ = reg.Create(context.Background(), "Edge Stack", []string{"k3s"})

		updated, persisted, err := reg.Update(context.Background(), "edge-stack", []string{"k3s", "flannel"})
		require.NoError(t, err)
		require.True(t, persisted)
		require.Equal(t, "Edge Stack", updated.Name)
		require.Equal(t, []string{"k3s", "flannel"}, updated.Components)
		require.Equal(t, "edge-stack", deletedShort) // old rows replayed
	})
}

func TestStacksRegistry_Delete(t *testing.T) {
	t.Parallel()

	reg, _ := NewStacksRegistry(&testsCommon.StoreStub{})

	_, err := reg.Delete(context.Background(), "missing")
	require.ErrorIs(t, err, ErrStackNotFound)

	created, _ := reg.Create(context.Background(), "Edge", []string{"k3s"})

	deleted, err := reg.Delete(context.Background(), "edge")
	require.NoError(t, err)
	require.Equal(t, created, deleted)

	_, err = reg.Get("edge")
	require.ErrorIs(t, err, ErrStackNotFound)
}

func TestStacksRegistry_Seed(t *testing.T) {
	t.Parallel()

	upsertCalled := false
	store := &testsCommon.StoreStub{
		UpsertComponentStackMembersHandler: func(ctx context.Context, stackShort string, stackName string, members []string) error {
			upsertCalled = true
			return nil
		},
	}

	reg, _ := NewStacksRegistry(store)
	reg.stacks["edge"] = common.Stack{Short: "edge", Name: "Edge", Components: []string{"k3s"}}

	reg.Seed([]common.Stack{
		{Short: "edge", Name: "Renamed", Components: []string{"microk8s"}}, // must not overwrite
		{Short: "obs", Name: "Observability", Components: []string{"prometheus"}},
	})

	require.False(t, upsertCalled) // seeding never writes back

	existing, err := reg.Get("edge")
	require.NoError(t, err)
	require.Equal(t, "Edge", existing.Name)

	seeded, err := reg.Get("obs")
	require.NoError(t, err)
	require.Equal(t, []string{"prometheus"}, seeded.Components)
}
