// Package storage provides the persistence implementation for declared
// collections. It creates tables from collection schemas and performs the
// CRUD primitives the request engine dispatches to.
package storage

import (
	"fmt"
	"sort"
	"strings"

	"github.com/quillcms/quill/core/schema"
)

// column is a resolved storage column for a collection field.
type column struct {
	Name  string // storage column name (after map override)
	Field string // declared field name
	Def   schema.Field
}

// columnsFor resolves the stored columns of a collection in a stable order.
// To-many relation fields live on the inverse side and have no column.
func columnsFor(col schema.Collection) []column {
	names := make([]string, 0, len(col.Fields))
	for name := range col.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]column, 0, len(names))
	for _, name := range names {
		f := col.Fields[name]
		if f.IsRelation() && f.Many {
			continue
		}
		out = append(out, column{Name: f.ColumnName(name), Field: name, Def: f})
	}
	return out
}

// BuildCreateTableSQL generates CREATE TABLE SQL for a collection.
func BuildCreateTableSQL(col schema.Collection) string {
	var columns []string
	var constraints []string

	switch col.IDStrategyOrDefault() {
	case schema.IDAutoincrement:
		columns = append(columns, "id INTEGER PRIMARY KEY AUTOINCREMENT")
	default:
		columns = append(columns, "id TEXT PRIMARY KEY")
	}

	for _, c := range columnsFor(col) {
		columns = append(columns, buildColumnDef(c))

		if c.Def.Unique {
			constraints = append(constraints, fmt.Sprintf("UNIQUE(%s)", c.Name))
		}
		if c.Def.IsRelation() {
			constraints = append(constraints, fmt.Sprintf(
				"FOREIGN KEY(%s) REFERENCES %s(id)", c.Name, c.Def.Ref))
		}
	}

	sql := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (\n  %s",
		col.Name,
		strings.Join(columns, ",\n  "),
	)

	if len(constraints) > 0 {
		sql += ",\n  " + strings.Join(constraints, ",\n  ")
	}

	sql += "\n)"

	return sql
}

// buildColumnDef builds one column definition.
func buildColumnDef(c column) string {
	parts := []string{c.Name}

	if c.Def.IsRelation() {
		parts = append(parts, "TEXT")
	} else {
		parts = append(parts, c.Def.SQLType())
	}

	if c.Def.Required {
		parts = append(parts, "NOT NULL")
	}

	return strings.Join(parts, " ")
}

// BuildIndexSQL generates CREATE INDEX statements for indexed fields.
func BuildIndexSQL(col schema.Collection) []string {
	var indexes []string

	for _, c := range columnsFor(col) {
		if !c.Def.Index {
			continue
		}
		indexes = append(indexes, fmt.Sprintf(
			"CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s(%s)",
			col.Name, c.Name, col.Name, c.Name,
		))
	}

	return indexes
}
