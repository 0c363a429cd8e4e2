package schema

import (
	"fmt"
)

// Registry holds the full set of declared collections, resolved at boot.
// It is read-only after construction and safe for concurrent use.
type Registry struct {
	byName map[string]Collection
	bySlug map[string]Collection
	order  []string
}

// NewRegistry builds a registry from the given collections and validates
// cross-collection invariants (relation targets, inverse cardinality).
func NewRegistry(cols []Collection) (*Registry, error) {
	r := &Registry{
		byName: make(map[string]Collection, len(cols)),
		bySlug: make(map[string]Collection, len(cols)),
	}

	for _, col := range cols {
		if err := col.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.byName[col.Name]; dup {
			return nil, fmt.Errorf("duplicate collection %q", col.Name)
		}
		slug := col.PathSlug()
		if prev, dup := r.bySlug[slug]; dup {
			return nil, fmt.Errorf("collections %q and %q share slug %q", prev.Name, col.Name, slug)
		}
		r.byName[col.Name] = col
		r.bySlug[slug] = col
		r.order = append(r.order, col.Name)
	}

	if err := r.validateRelations(); err != nil {
		return nil, err
	}

	return r, nil
}

// validateRelations checks that every relation field references a registered
// collection and that inverse cardinality is consistent. The storage model
// has no join tables, so when two collections declare relations to each
// other both sides cannot be to-many.
func (r *Registry) validateRelations() error {
	for _, name := range r.order {
		col := r.byName[name]
		for fname, f := range col.Fields {
			if !f.IsRelation() {
				continue
			}

			target, ok := r.byName[f.Ref]
			if !ok {
				return fmt.Errorf("collection %q, field %q: unknown relation target %q", name, fname, f.Ref)
			}

			for gname, g := range target.Fields {
				if !g.IsRelation() || g.Ref != name {
					continue
				}
				if f.Many && g.Many {
					return fmt.Errorf(
						"collections %q.%s and %q.%s declare a many-to-many relation; model it through a join collection",
						name, fname, target.Name, gname)
				}
			}
		}
	}
	return nil
}

// Get returns a collection by name.
func (r *Registry) Get(name string) (Collection, bool) {
	col, ok := r.byName[name]
	return col, ok
}

// BySlug returns a collection by its URL slug.
func (r *Registry) BySlug(slug string) (Collection, bool) {
	col, ok := r.bySlug[slug]
	return col, ok
}

// All returns the collections in declaration order.
func (r *Registry) All() []Collection {
	out := make([]Collection, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// Len returns the number of registered collections.
func (r *Registry) Len() int { return len(r.order) }
