package registry

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/iulianpascalau/devstats-stacks/services/stacks/common"
	"github.com/multiversx/mx-chain-core-go/core/check"
)

// stacksRegistry is the authoritative in-memory directory of stack definitions. Every mutation is
// mirrored to durable storage; a mirror failure degrades durability but never the mutation itself,
// and is reported to the caller as a boolean.
type stacksRegistry struct {
	store StacksStorage

	mut    sync.RWMutex
	stacks map[string]common.Stack
}

// NewStacksRegistry creates a new stacks registry
func NewStacksRegistry(store StacksStorage) (*stacksRegistry, error) {
	if check.IfNil(store) {
		return nil, errors.New("nil storage")
	}

	return &stacksRegistry{
		store:  store,
		stacks: make(map[string]common.Stack),
	}, nil
}

// Seed loads previously mirrored stack definitions, without writing back to storage. Intended for
// process startup only; existing entries are not overwritten.
func (sr *stacksRegistry) Seed(stacks []common.Stack) {
	sr.mut.Lock()
	defer sr.mut.Unlock()

	for _, stack := range stacks {
		_, exists := sr.stacks[stack.Short]
		if !exists {
			sr.stacks[stack.Short] = stack
		}
	}
}

// Create registers a new stack under a short id derived from its name and mirrors the membership
// rows. The returned flag reflects whether the mirror write succeeded.
func (sr *stacksRegistry) Create(ctx context.Context, name string, components []string) (common.Stack, bool) {
	stack := common.Stack{
		Short:      deriveShort(name),
		Name:       name,
		Components: append([]string(nil), components...),
	}

	sr.mut.Lock()
	sr.stacks[stack.Short] = stack
	sr.mut.Unlock()

	return stack, sr.persist(ctx, stack)
}

// Update replaces the member list of an existing stack, keeping its display name. The durable rows
// are replayed as a delete followed by a fresh upsert.
func (sr *stacksRegistry) Update(ctx context.Context, short string, components []string) (common.Stack, bool, error) {
	sr.mut.Lock()
	old, exists := sr.stacks[short]
	if !exists {
		sr.mut.Unlock()
		return common.Stack{}, false, ErrStackNotFound
	}

	stack := common.Stack{
		Short:      short,
		Name:       old.Name,
		Components: append([]string(nil), components...),
	}
	sr.stacks[short] = stack
	sr.mut.Unlock()

	errDelete := sr.store.DeleteComponentStackMembers(ctx, short)
	if errDelete != nil {
		log.Warn("failed to delete mirrored stack members", "stack", short, "error", errDelete)
	}

	return stack, sr.persist(ctx, stack), nil
}

// Delete removes a stack and its mirrored membership rows, returning the last-known definition
func (sr *stacksRegistry) Delete(ctx context.Context, short string) (common.Stack, error) {
	sr.mut.Lock()
	stack, exists := sr.stacks[short]
	if !exists {
		sr.mut.Unlock()
		return common.Stack{}, ErrStackNotFound
	}
	delete(sr.stacks, short)
	sr.mut.Unlock()

	err := sr.store.DeleteComponentStackMembers(ctx, short)
	if err != nil {
		log.Warn("failed to delete mirrored stack members", "stack", short, "error", err)
	}

	return stack, nil
}

// Get returns the stack registered under the provided short id
func (sr *stacksRegistry) Get(short string) (common.Stack, error) {
	sr.mut.RLock()
	defer sr.mut.RUnlock()

	stack, exists := sr.stacks[short]
	if !exists {
		return common.Stack{}, ErrStackNotFound
	}

	return stack, nil
}

// List returns all registered stacks
func (sr *stacksRegistry) List() []common.Stack {
	sr.mut.RLock()
	defer sr.mut.RUnlock()

	out := make([]common.Stack, 0, len(sr.stacks))
	for _, stack := range sr.stacks {
		out = append(out, stack)
	}

	return out
}

func (sr *stacksRegistry) persist(ctx context.Context, stack common.Stack) bool {
	err := sr.store.UpsertComponentStackMembers(ctx, stack.Short, stack.Name, stack.Components)
	if err != nil {
		log.Warn("failed to mirror stack members", "stack", stack.Short, "error", err)
		return false
	}

	return true
}

func deriveShort(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, " ", "-"))
}

// IsInterfaceNil returns true if the value under the interface is nil
func (sr *stacksRegistry) IsInterfaceNil() bool {
	return sr == nil
}
