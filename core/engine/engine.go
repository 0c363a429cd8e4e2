// Package engine implements the request-to-operation dispatch pipeline:
// it resolves an inbound method to a CRUD operation, runs the ordered
// plugin/hook chain around it, performs the persistence call, and hands
// the result back for response and webhook fan-out.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/quillcms/quill/core/apperr"
	"github.com/quillcms/quill/core/query"
	"github.com/quillcms/quill/core/schema"
	"github.com/quillcms/quill/ports"
)

// Args is the per-invocation payload passed to every hook.
type Args struct {
	// Ctx is the request context bag. Hooks must treat everything except
	// Vars and the request/response pair as read-only.
	Ctx *Context

	// Operation is the resolved operation kind.
	Operation Operation

	// Existing holds the rows read before mutation, when applicable.
	Existing []map[string]any

	// Input is the request payload. Earlier hooks may mutate it for hooks
	// that run later in the same or later phases.
	Input *Input
}

// noPlugins is the default PluginSource.
type noPlugins struct{}

func (noPlugins) ActiveTransforms() []Transform { return nil }

// Engine sequences the dispatch state machine for every request.
type Engine struct {
	store    ports.Store
	registry *schema.Registry
	hooks    *HookRegistry
	plugins  PluginSource
	logger   zerolog.Logger

	// hookTimeout bounds each hook phase. Zero disables the bound.
	hookTimeout time.Duration

	// now is swappable for tests.
	now func() time.Time
}

// Config configures an Engine.
type Config struct {
	Store       ports.Store
	Registry    *schema.Registry
	Hooks       *HookRegistry
	Plugins     PluginSource
	Logger      zerolog.Logger
	HookTimeout time.Duration
}

// New creates an engine.
func New(cfg Config) *Engine {
	hooks := cfg.Hooks
	if hooks == nil {
		hooks = NewHookRegistry()
	}
	plugins := cfg.Plugins
	if plugins == nil {
		plugins = noPlugins{}
	}
	return &Engine{
		store:       cfg.Store,
		registry:    cfg.Registry,
		hooks:       hooks,
		plugins:     plugins,
		logger:      cfg.Logger,
		hookTimeout: cfg.HookTimeout,
		now:         time.Now,
	}
}

// Hooks returns the engine's hook registry for startup registration.
func (e *Engine) Hooks() *HookRegistry { return e.hooks }

// Registry returns the collection registry.
func (e *Engine) Registry() *schema.Registry { return e.registry }

// Execute runs the full dispatch pipeline for one request and returns the
// operation result. The caller serializes the result and then fires
// webhook fan-out; Execute itself emits no response.
//
// Phase order: beforeOperation -> (read: query) | (write: validateInput ->
// modifyInput -> persist) -> afterOperation. Plugin transforms run before
// the user hooks of every phase, in registration order. Any hook error
// aborts directly to the caller's error boundary.
func (e *Engine) Execute(ctx context.Context, rc *Context, col schema.Collection, op Operation, input *Input) (any, error) {
	if input == nil {
		input = &Input{}
	}
	args := &Args{Ctx: rc, Operation: op, Input: input}

	// Snapshot active plugins once; toggles never affect this request.
	transforms := e.plugins.ActiveTransforms()

	hooks := e.hooks.Lookup(col.Name)

	// BEFORE_OPERATION: the access control gate. Results are ANDed in
	// declaration order with short-circuit.
	e.enterPhase(args, transforms, PhaseBeforeOperation)
	for _, h := range hooks.Before {
		ok, err := e.runBefore(ctx, h, args)
		if err != nil {
			return nil, fmt.Errorf("beforeOperation hook: %w", err)
		}
		if !ok {
			e.logger.Debug().
				Str("collection", col.Name).
				Str("operation", string(op)).
				Msg("operation denied by before hook")
			return nil, apperr.ErrAccessDenied
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if op == OperationRead {
		result, err := e.store.FindMany(ctx, col.Name, input.Query)
		if err != nil {
			return nil, err
		}
		if err := e.afterPhase(ctx, args, transforms, hooks); err != nil {
			return nil, err
		}
		return result, nil
	}

	// Rows read before mutation, visible to write-phase hooks.
	if op == OperationUpdate || op == OperationDelete {
		existing, err := e.store.FindMany(ctx, col.Name, query.Query{"where": input.Where})
		if err != nil {
			return nil, err
		}
		args.Existing = existing
	}

	// VALIDATE_INPUT: hooks reject by returning an error.
	e.enterPhase(args, transforms, PhaseValidateInput)
	for _, h := range hooks.Validate {
		if err := e.runValidate(ctx, h, args); err != nil {
			return nil, fmt.Errorf("validateInput hook: %w", err)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// MODIFY_INPUT: each hook may replace the input data; later hooks and
	// the persistence call observe the replacement.
	e.enterPhase(args, transforms, PhaseModifyInput)
	for _, h := range hooks.Modify {
		replacement, err := e.runModify(ctx, h, args)
		if err != nil {
			return nil, fmt.Errorf("modifyInput hook: %w", err)
		}
		if replacement != nil {
			args.Input.Data = replacement
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := e.persist(ctx, col, op, args.Input)
	if err != nil {
		return nil, err
	}

	if err := e.afterPhase(ctx, args, transforms, hooks); err != nil {
		return nil, err
	}

	return result, nil
}

// persist decides the single-or-batch variant once, merges the collection's
// defaults under each record, and calls the matching primitive.
func (e *Engine) persist(ctx context.Context, col schema.Collection, op Operation, input *Input) (any, error) {
	payload, err := BuildPayload(input.Data)
	if err != nil {
		return nil, err
	}

	defaults := schema.Defaults(col, string(op), e.now())
	records := make([]map[string]any, len(payload.Records))
	for i, rec := range payload.Records {
		records[i] = mergeDefaults(defaults, rec)
	}

	switch op {
	case OperationCreate:
		if payload.Batch {
			return e.store.CreateMany(ctx, col.Name, records, input.SkipDuplicates)
		}
		if len(records) == 0 {
			return nil, apperr.Malformed("create requires a data object")
		}
		return e.store.Create(ctx, col.Name, records[0])

	case OperationUpdate:
		if len(records) == 0 {
			return nil, apperr.Malformed("update requires a data object")
		}
		if payload.Batch {
			return e.store.UpdateMany(ctx, col.Name, input.Where, records[0])
		}
		return e.store.Update(ctx, col.Name, input.Where, records[0])

	case OperationDelete:
		if payload.Batch {
			return e.store.DeleteMany(ctx, col.Name, input.Where)
		}
		return e.store.Delete(ctx, col.Name, input.Where)

	default:
		return nil, fmt.Errorf("unknown write operation %q", op)
	}
}

// afterPhase runs the afterOperation phase. Hooks cannot veto here; their
// return value is an error only.
func (e *Engine) afterPhase(ctx context.Context, args *Args, transforms []Transform, hooks Hooks) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.enterPhase(args, transforms, PhaseAfterOperation)
	for _, h := range hooks.After {
		if err := e.runAfter(ctx, h, args); err != nil {
			return fmt.Errorf("afterOperation hook: %w", err)
		}
	}
	return nil
}

// enterPhase advances the cursor and applies plugin transforms. A transform
// returning a replacement Context makes that replacement visible to the
// user hooks that follow it.
func (e *Engine) enterPhase(args *Args, transforms []Transform, phase Phase) {
	args.Ctx.Phase = phase
	for _, t := range transforms {
		if replaced := t(args.Ctx); replaced != nil {
			args.Ctx = replaced
			args.Ctx.Phase = phase
		}
	}
}

func (e *Engine) runBefore(ctx context.Context, h BeforeOperation, args *Args) (bool, error) {
	ctx, cancel := e.hookContext(ctx)
	defer cancel()
	return h(ctx, args)
}

func (e *Engine) runValidate(ctx context.Context, h ValidateInput, args *Args) error {
	ctx, cancel := e.hookContext(ctx)
	defer cancel()
	return h(ctx, args)
}

func (e *Engine) runModify(ctx context.Context, h ModifyInput, args *Args) (any, error) {
	ctx, cancel := e.hookContext(ctx)
	defer cancel()
	return h(ctx, args)
}

func (e *Engine) runAfter(ctx context.Context, h AfterOperation, args *Args) error {
	ctx, cancel := e.hookContext(ctx)
	defer cancel()
	return h(ctx, args)
}

func (e *Engine) hookContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.hookTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.hookTimeout)
}
