package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/quillcms/quill/core/apperr"
	"github.com/quillcms/quill/core/query"
	"github.com/quillcms/quill/core/schema"
	"github.com/quillcms/quill/ports"
)

// SQLiteStore implements ports.Store with SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex

	// collections maps collection names to their definitions
	collections map[string]schema.Collection

	// idgens maps collection names to their application-side id generators
	idgens map[string]ports.IDGenerator
}

// NewSQLiteStore creates a new SQLite storage.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -64000",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	return &SQLiteStore{
		db:          db,
		collections: make(map[string]schema.Collection),
		idgens:      make(map[string]ports.IDGenerator),
	}, nil
}

// CreateTable creates the table and indexes for a collection and registers
// it with the store. gen supplies ids for uuid/cuid strategies and may be
// nil for autoincrement collections.
func (s *SQLiteStore) CreateTable(ctx context.Context, col schema.Collection, gen ports.IDGenerator) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.collections[col.Name] = col
	if gen != nil {
		s.idgens[col.Name] = gen
	}

	createSQL := BuildCreateTableSQL(col)
	if _, err := s.db.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("create table %s: %w", col.Name, err)
	}

	for _, indexSQL := range BuildIndexSQL(col) {
		if _, err := s.db.ExecContext(ctx, indexSQL); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ ports.Store = (*SQLiteStore)(nil)

// FindMany returns the rows matching a normalized read query.
func (s *SQLiteStore) FindMany(ctx context.Context, collection string, q query.Query) ([]map[string]any, error) {
	col, err := s.collection(collection)
	if err != nil {
		return nil, err
	}

	cols := selectColumns(col)
	if distinct, ok := q.Distinct(); ok && len(distinct) > 0 {
		mapped := make([]string, 0, len(distinct))
		for _, name := range distinct {
			mappedCol, ok := storageColumn(col, name)
			if !ok {
				return nil, apperr.Malformed("collection %q has no field %q", col.Name, name)
			}
			mapped = append(mapped, mappedCol)
		}
		cols = mapped
	}

	sb := strings.Builder{}
	sb.WriteString("SELECT ")
	if _, ok := q.Distinct(); ok {
		sb.WriteString("DISTINCT ")
	}
	sb.WriteString(strings.Join(cols, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(col.Name)

	var args []any
	if where, ok := q.Where(); ok {
		clause, vals, err := buildWhere(col, where)
		if err != nil {
			return nil, err
		}
		if clause != "" {
			sb.WriteString(" WHERE ")
			sb.WriteString(clause)
			args = append(args, vals...)
		}
	}

	if orderBy, ok := q.OrderBy(); ok {
		if clause := buildOrderBy(col, orderBy); clause != "" {
			sb.WriteString(" ORDER BY ")
			sb.WriteString(clause)
		}
	}

	take, hasTake := q.Take()
	skip, hasSkip := q.Skip()
	if hasTake {
		fmt.Fprintf(&sb, " LIMIT %d", take)
	} else if hasSkip {
		sb.WriteString(" LIMIT -1")
	}
	if hasSkip {
		fmt.Fprintf(&sb, " OFFSET %d", skip)
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, apperr.Persistence(fmt.Errorf("find many %s: %w", collection, err))
	}
	defer rows.Close()

	return scanRows(col, cols, rows)
}

// Create inserts a single record.
func (s *SQLiteStore) Create(ctx context.Context, collection string, data map[string]any) (map[string]any, error) {
	col, err := s.collection(collection)
	if err != nil {
		return nil, err
	}

	return s.insert(ctx, nil, col, data, false)
}

// CreateMany inserts a batch inside one transaction.
func (s *SQLiteStore) CreateMany(ctx context.Context, collection string, batch []map[string]any, skipDuplicates bool) ([]map[string]any, error) {
	col, err := s.collection(collection)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperr.Persistence(fmt.Errorf("begin: %w", err))
	}
	defer tx.Rollback()

	out := make([]map[string]any, 0, len(batch))
	for _, data := range batch {
		row, err := s.insert(ctx, tx, col, data, skipDuplicates)
		if err != nil {
			return nil, err
		}
		if row != nil {
			out = append(out, row)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, apperr.Persistence(fmt.Errorf("commit: %w", err))
	}

	return out, nil
}

// Update modifies the first record matching where.
func (s *SQLiteStore) Update(ctx context.Context, collection string, where map[string]any, data map[string]any) (map[string]any, error) {
	rows, err := s.update(ctx, collection, where, data, true)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// UpdateMany modifies every record matching where.
func (s *SQLiteStore) UpdateMany(ctx context.Context, collection string, where map[string]any, data map[string]any) ([]map[string]any, error) {
	return s.update(ctx, collection, where, data, false)
}

// Delete removes the first record matching where.
func (s *SQLiteStore) Delete(ctx context.Context, collection string, where map[string]any) (map[string]any, error) {
	rows, err := s.remove(ctx, collection, where, true)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// DeleteMany removes every record matching where.
func (s *SQLiteStore) DeleteMany(ctx context.Context, collection string, where map[string]any) ([]map[string]any, error) {
	return s.remove(ctx, collection, where, false)
}

// execer abstracts *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteStore) insert(ctx context.Context, tx *sql.Tx, col schema.Collection, data map[string]any, skipDuplicates bool) (map[string]any, error) {
	var db execer = s.db
	if tx != nil {
		db = tx
	}

	values := make(map[string]any, len(data)+1)
	for k, v := range data {
		values[k] = v
	}

	// Generate the id for application-side strategies.
	if col.IDStrategyOrDefault() != schema.IDAutoincrement {
		if _, ok := values["id"]; !ok {
			s.mu.RLock()
			gen := s.idgens[col.Name]
			s.mu.RUnlock()
			if gen == nil {
				return nil, apperr.Persistence(fmt.Errorf("collection %q has no id generator", col.Name))
			}
			values["id"] = gen.New()
		}
	}

	var columns []string
	var placeholders []string
	var args []any

	if id, ok := values["id"]; ok {
		columns = append(columns, "id")
		placeholders = append(placeholders, "?")
		args = append(args, id)
	}

	for _, c := range columnsFor(col) {
		val, exists := values[c.Field]
		if !exists {
			if c.Def.Required {
				return nil, apperr.Persistence(fmt.Errorf("required field %q not provided", c.Field))
			}
			continue
		}
		columns = append(columns, c.Name)
		placeholders = append(placeholders, "?")
		args = append(args, encodeValue(val, c.Def))
	}

	verb := "INSERT"
	if skipDuplicates {
		verb = "INSERT OR IGNORE"
	}

	insertSQL := fmt.Sprintf(
		"%s INTO %s (%s) VALUES (%s)",
		verb,
		col.Name,
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
	)

	res, err := db.ExecContext(ctx, insertSQL, args...)
	if err != nil {
		return nil, apperr.Persistence(fmt.Errorf("insert into %s: %w", col.Name, err))
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// Duplicate skipped.
		return nil, nil
	}

	var id any
	if v, ok := values["id"]; ok {
		id = v
	} else {
		rowid, err := res.LastInsertId()
		if err != nil {
			return nil, apperr.Persistence(fmt.Errorf("last insert id: %w", err))
		}
		id = rowid
	}

	return s.getByID(ctx, db, col, id)
}

func (s *SQLiteStore) update(ctx context.Context, collection string, where map[string]any, data map[string]any, single bool) ([]map[string]any, error) {
	col, err := s.collection(collection)
	if err != nil {
		return nil, err
	}

	ids, err := s.matchIDs(ctx, col, where, single)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []map[string]any{}, nil
	}

	var sets []string
	var args []any
	for _, c := range columnsFor(col) {
		val, exists := data[c.Field]
		if !exists {
			continue
		}
		sets = append(sets, c.Name+" = ?")
		args = append(args, encodeValue(val, c.Def))
	}

	if len(sets) > 0 {
		updateSQL := fmt.Sprintf(
			"UPDATE %s SET %s WHERE id IN (%s)",
			col.Name,
			strings.Join(sets, ", "),
			placeholderList(len(ids)),
		)
		for _, id := range ids {
			args = append(args, id)
		}
		if _, err := s.db.ExecContext(ctx, updateSQL, args...); err != nil {
			return nil, apperr.Persistence(fmt.Errorf("update %s: %w", col.Name, err))
		}
	}

	out := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		row, err := s.getByID(ctx, s.db, col, id)
		if err != nil {
			return nil, err
		}
		if row != nil {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *SQLiteStore) remove(ctx context.Context, collection string, where map[string]any, single bool) ([]map[string]any, error) {
	col, err := s.collection(collection)
	if err != nil {
		return nil, err
	}

	ids, err := s.matchIDs(ctx, col, where, single)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []map[string]any{}, nil
	}

	// Read rows before deleting so the caller sees what was removed.
	out := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		row, err := s.getByID(ctx, s.db, col, id)
		if err != nil {
			return nil, err
		}
		if row != nil {
			out = append(out, row)
		}
	}

	deleteSQL := fmt.Sprintf("DELETE FROM %s WHERE id IN (%s)", col.Name, placeholderList(len(ids)))
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	if _, err := s.db.ExecContext(ctx, deleteSQL, args...); err != nil {
		return nil, apperr.Persistence(fmt.Errorf("delete from %s: %w", col.Name, err))
	}

	return out, nil
}

// matchIDs resolves the ids of rows matching a where filter.
func (s *SQLiteStore) matchIDs(ctx context.Context, col schema.Collection, where map[string]any, single bool) ([]any, error) {
	sb := strings.Builder{}
	sb.WriteString("SELECT id FROM ")
	sb.WriteString(col.Name)

	clause, args, err := buildWhere(col, where)
	if err != nil {
		return nil, err
	}
	if clause != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(clause)
	}
	if single {
		sb.WriteString(" LIMIT 1")
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, apperr.Persistence(fmt.Errorf("match %s: %w", col.Name, err))
	}
	defer rows.Close()

	var ids []any
	for rows.Next() {
		var id any
		if err := rows.Scan(&id); err != nil {
			return nil, apperr.Persistence(err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteStore) getByID(ctx context.Context, db execer, col schema.Collection, id any) (map[string]any, error) {
	cols := selectColumns(col)
	getSQL := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", strings.Join(cols, ", "), col.Name)

	dest := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range dest {
		ptrs[i] = &dest[i]
	}

	if err := db.QueryRowContext(ctx, getSQL, id).Scan(ptrs...); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, apperr.Persistence(fmt.Errorf("get %s: %w", col.Name, err))
	}

	return decodeRow(col, cols, dest), nil
}

// scanRows scans a result set into decoded row maps.
func scanRows(col schema.Collection, cols []string, rows *sql.Rows) ([]map[string]any, error) {
	var out []map[string]any

	for rows.Next() {
		dest := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range dest {
			ptrs[i] = &dest[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, apperr.Persistence(err)
		}
		out = append(out, decodeRow(col, cols, dest))
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Persistence(err)
	}

	return out, nil
}

func (s *SQLiteStore) collection(name string) (schema.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	col, ok := s.collections[name]
	if !ok {
		return schema.Collection{}, apperr.Persistence(fmt.Errorf("collection %q not registered", name))
	}
	return col, nil
}

// selectColumns returns "id" plus every stored column in stable order.
func selectColumns(col schema.Collection) []string {
	out := []string{"id"}
	for _, c := range columnsFor(col) {
		out = append(out, c.Name)
	}
	return out
}

// storageColumn resolves a caller-supplied field name to its storage column.
// Only "id" and declared fields resolve; anything else is rejected so query
// keys never reach the SQL text.
func storageColumn(col schema.Collection, field string) (string, bool) {
	if field == "id" {
		return "id", true
	}
	if f, ok := col.Fields[field]; ok {
		return f.ColumnName(field), true
	}
	return "", false
}

// buildWhere builds an equality filter clause from a where map. A key that
// is not a declared field is malformed input.
func buildWhere(col schema.Collection, where map[string]any) (string, []any, error) {
	if len(where) == 0 {
		return "", nil, nil
	}

	fields := make([]string, 0, len(where))
	for k := range where {
		fields = append(fields, k)
	}
	sort.Strings(fields)

	var clauses []string
	var args []any
	for _, field := range fields {
		name, ok := storageColumn(col, field)
		if !ok {
			return "", nil, apperr.Malformed("collection %q has no field %q", col.Name, field)
		}
		clauses = append(clauses, name+" = ?")
		args = append(args, encodeValue(where[field], col.Fields[field]))
	}

	return strings.Join(clauses, " AND "), args, nil
}

// buildOrderBy builds the ordering clause. Keys that are not declared
// fields are dropped rather than reaching the SQL text.
func buildOrderBy(col schema.Collection, orderBy map[string]any) string {
	fields := make([]string, 0, len(orderBy))
	for k := range orderBy {
		fields = append(fields, k)
	}
	sort.Strings(fields)

	var parts []string
	for _, field := range fields {
		name, ok := storageColumn(col, field)
		if !ok {
			continue
		}
		dir := "ASC"
		if d, ok := orderBy[field].(string); ok && strings.EqualFold(d, "desc") {
			dir = "DESC"
		}
		parts = append(parts, name+" "+dir)
	}
	return strings.Join(parts, ", ")
}

func placeholderList(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// encodeValue converts a field value to its storage representation.
func encodeValue(val any, f schema.Field) any {
	if val == nil {
		return nil
	}

	switch f.Type {
	case schema.FieldTypeJSON:
		if _, ok := val.(string); ok {
			return val
		}
		b, err := json.Marshal(val)
		if err != nil {
			return val
		}
		return string(b)
	case schema.FieldTypeBoolean:
		if b, ok := val.(bool); ok {
			if b {
				return 1
			}
			return 0
		}
	}
	return val
}

// decodeRow converts scanned values back to field values.
func decodeRow(col schema.Collection, cols []string, vals []any) map[string]any {
	byColumn := make(map[string]schema.Field, len(col.Fields))
	colField := make(map[string]string, len(col.Fields))
	for name, f := range col.Fields {
		byColumn[f.ColumnName(name)] = f
		colField[f.ColumnName(name)] = name
	}

	row := make(map[string]any, len(cols))
	for i, c := range cols {
		val := vals[i]
		if b, ok := val.([]byte); ok {
			val = string(b)
		}

		if c == "id" {
			row["id"] = val
			continue
		}

		f := byColumn[c]
		field := colField[c]
		if field == "" {
			field = c
		}

		switch f.Type {
		case schema.FieldTypeJSON:
			if s, ok := val.(string); ok {
				var parsed any
				if err := json.Unmarshal([]byte(s), &parsed); err == nil {
					val = parsed
				}
			}
		case schema.FieldTypeBoolean:
			if n, ok := val.(int64); ok {
				val = n != 0
			}
		}

		row[field] = val
	}
	return row
}
