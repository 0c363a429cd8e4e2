// Package plugin manages installable Context-transforming units.
// Plugins are registered at boot, toggled active/inactive at runtime under
// a single-writer discipline, and executed by the engine in registration
// order before the user hooks of every phase.
package plugin

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/quillcms/quill/core/engine"
)

// Plugin is an installable unit exposing a single transform over the
// request Context.
type Plugin struct {
	// Title identifies the plugin; enable/disable/uninstall are keyed by it.
	Title   string
	Author  string
	Version string

	// Transform may replace the Context observed by the hooks that follow
	// it within the same phase. Returning nil keeps the current Context.
	Transform engine.Transform
}

// Registry holds the installed plugins and their active/inactive state.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	plugins map[string]Plugin
	active  map[string]bool
	logger  zerolog.Logger
}

// NewRegistry creates an empty plugin registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		plugins: make(map[string]Plugin),
		active:  make(map[string]bool),
		logger:  logger,
	}
}

// Install registers a plugin in active state. Installing a plugin twice
// is an error.
func (r *Registry) Install(p Plugin) error {
	if p.Title == "" {
		return fmt.Errorf("plugin title is required")
	}
	if p.Transform == nil {
		return fmt.Errorf("plugin %q has no transform", p.Title)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.plugins[p.Title]; exists {
		return fmt.Errorf("plugin %q already installed", p.Title)
	}

	r.plugins[p.Title] = p
	r.active[p.Title] = true
	r.order = append(r.order, p.Title)

	r.logger.Info().
		Str("plugin", p.Title).
		Str("version", p.Version).
		Msg("plugin installed")
	return nil
}

// Uninstall removes a plugin entirely.
func (r *Registry) Uninstall(title string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.plugins[title]; !exists {
		return fmt.Errorf("plugin %q not installed", title)
	}

	delete(r.plugins, title)
	delete(r.active, title)
	for i, t := range r.order {
		if t == title {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	r.logger.Info().Str("plugin", title).Msg("plugin uninstalled")
	return nil
}

// Enable activates a plugin. In-flight requests keep their snapshot.
func (r *Registry) Enable(title string) error {
	return r.setActive(title, true)
}

// Disable deactivates a plugin. In-flight requests keep their snapshot.
func (r *Registry) Disable(title string) error {
	return r.setActive(title, false)
}

func (r *Registry) setActive(title string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.plugins[title]; !exists {
		return fmt.Errorf("plugin %q not installed", title)
	}

	r.active[title] = active
	r.logger.Info().Str("plugin", title).Bool("active", active).Msg("plugin state changed")
	return nil
}

// Active returns the titles of active plugins in registration order.
func (r *Registry) Active() []string {
	return r.list(true)
}

// Inactive returns the titles of inactive plugins in registration order.
func (r *Registry) Inactive() []string {
	return r.list(false)
}

func (r *Registry) list(active bool) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	for _, title := range r.order {
		if r.active[title] == active {
			out = append(out, title)
		}
	}
	return out
}

// ActiveTransforms implements engine.PluginSource: a point-in-time snapshot
// of active transforms in registration order.
func (r *Registry) ActiveTransforms() []engine.Transform {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []engine.Transform
	for _, title := range r.order {
		if r.active[title] {
			out = append(out, r.plugins[title].Transform)
		}
	}
	return out
}

var _ engine.PluginSource = (*Registry)(nil)
