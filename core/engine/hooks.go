package engine

import (
	"context"
	"sync"
)

// The four hook signatures. Hooks run strictly sequentially within a
// request; a hook observes the side effects of every hook before it via
// Args.Ctx.Vars and Args.Input.

// BeforeOperation runs before any operation. Returning false vetoes the
// request: no later hook of any phase runs and nothing is persisted.
// Side effects of a vetoing hook are not rolled back.
type BeforeOperation func(ctx context.Context, args *Args) (bool, error)

// ValidateInput runs before writes and may reject by returning an error.
type ValidateInput func(ctx context.Context, args *Args) error

// ModifyInput runs before writes and may return a replacement for the
// request's input data. Returning nil keeps the current data. Subsequent
// hooks and the persistence call observe the replacement.
type ModifyInput func(ctx context.Context, args *Args) (any, error)

// AfterOperation runs after the persistence call. It cannot veto; errors
// still abort to the error boundary.
type AfterOperation func(ctx context.Context, args *Args) error

// Hooks is the ordered hook set of one collection.
type Hooks struct {
	Before   []BeforeOperation
	Validate []ValidateInput
	Modify   []ModifyInput
	After    []AfterOperation
}

// HookRegistry holds hook sets per collection. Registration happens at
// startup; lookups are safe for concurrent use.
type HookRegistry struct {
	mu    sync.RWMutex
	hooks map[string]*Hooks
}

// NewHookRegistry creates an empty hook registry.
func NewHookRegistry() *HookRegistry {
	return &HookRegistry{hooks: make(map[string]*Hooks)}
}

// For returns the hook set for a collection, creating it on first use so
// callers can append to its phases.
func (r *HookRegistry) For(collection string) *Hooks {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.hooks[collection]
	if !ok {
		h = &Hooks{}
		r.hooks[collection] = h
	}
	return h
}

// Lookup returns the hook set for a collection, or an empty set.
func (r *HookRegistry) Lookup(collection string) Hooks {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if h, ok := r.hooks[collection]; ok {
		return *h
	}
	return Hooks{}
}

// OnBefore appends a before-operation hook in declaration order.
func (r *HookRegistry) OnBefore(collection string, h BeforeOperation) {
	set := r.For(collection)
	r.mu.Lock()
	set.Before = append(set.Before, h)
	r.mu.Unlock()
}

// OnValidate appends a validate-input hook in declaration order.
func (r *HookRegistry) OnValidate(collection string, h ValidateInput) {
	set := r.For(collection)
	r.mu.Lock()
	set.Validate = append(set.Validate, h)
	r.mu.Unlock()
}

// OnModify appends a modify-input hook in declaration order.
func (r *HookRegistry) OnModify(collection string, h ModifyInput) {
	set := r.For(collection)
	r.mu.Lock()
	set.Modify = append(set.Modify, h)
	r.mu.Unlock()
}

// OnAfter appends an after-operation hook in declaration order.
func (r *HookRegistry) OnAfter(collection string, h AfterOperation) {
	set := r.For(collection)
	r.mu.Lock()
	set.After = append(set.After, h)
	r.mu.Unlock()
}
