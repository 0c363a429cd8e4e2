package engine

import (
	"net/http"

	"github.com/quillcms/quill/core/schema"
	"github.com/quillcms/quill/ports"
)

// Phase names the hook phase currently executing for a request.
type Phase string

const (
	PhaseBeforeOperation Phase = "beforeOperation"
	PhaseValidateInput   Phase = "validateInput"
	PhaseModifyInput     Phase = "modifyInput"
	PhaseAfterOperation  Phase = "afterOperation"
)

// Context is the per-request state bag threaded through the dispatch
// pipeline. A fresh Context is constructed for every inbound request, so
// concurrent requests never share mutable state. Hook code must treat
// everything except Vars and the request/response pair as read-only.
type Context struct {
	// Store is the persistence handle (shared, read-only).
	Store ports.Store

	// Collections is the full collection registry (shared, read-only).
	Collections *schema.Registry

	// Request and Response are the handles for the current request.
	Request  *http.Request
	Response http.ResponseWriter

	// Session holds field name to value pairs from the auth subsystem,
	// or nil when the request is unauthenticated.
	Session map[string]any

	// Flags is a set of boolean feature flags (e.g. "local_request").
	Flags map[string]bool

	// Phase is the cursor naming the hook phase currently executing.
	Phase Phase

	// Vars is free-form state set by earlier hooks and read by later ones
	// within the same request.
	Vars map[string]any
}

// NewContext constructs the per-request context.
func NewContext(store ports.Store, registry *schema.Registry, w http.ResponseWriter, r *http.Request, session map[string]any, flags map[string]bool) *Context {
	if flags == nil {
		flags = make(map[string]bool)
	}
	return &Context{
		Store:       store,
		Collections: registry,
		Request:     r,
		Response:    w,
		Session:     session,
		Flags:       flags,
		Vars:        make(map[string]any),
	}
}

// Transform is a plugin's Context transform. A transform may return a
// replacement Context; returning nil keeps the current one.
type Transform func(*Context) *Context

// PluginSource yields the transforms of currently active plugins in
// registration order. The engine snapshots this once per request, so
// toggling a plugin never affects in-flight requests.
type PluginSource interface {
	ActiveTransforms() []Transform
}
