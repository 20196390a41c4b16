// Copyright 2026 The CampusMind Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package store provides the persistence collaborator consumed by direct
// action handlers. Only bounded, indexed lookups are exposed: counts and
// paginated lists over a whitelisted set of entity kinds. Tenant table
// prefixing and soft-delete filtering are applied here, never by callers.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // Postgres driver
	_ "github.com/mattn/go-sqlite3"    // SQLite driver
	log "github.com/sirupsen/logrus"
)

// EntityKind identifies a queryable entity table.
type EntityKind string

const (
	KindStudents EntityKind = "students"
	KindTeachers EntityKind = "teachers"
	KindClasses  EntityKind = "classes"
	KindCourses  EntityKind = "courses"
)

// Pagination bounds a list query.
type Pagination struct {
	Limit  int
	Offset int
}

// Row is a single result row keyed by column name.
type Row map[string]any

// Store is the lookup contract the direct action executor depends on.
type Store interface {
	// Count returns the number of live rows of the given kind matching filters.
	Count(ctx context.Context, kind EntityKind, filters map[string]any) (int64, error)
	// List returns a bounded page of rows.
	List(ctx context.Context, kind EntityKind, filters map[string]any, page Pagination) ([]Row, error)
	// Close releases the underlying connection pool.
	Close() error
}

// allowedKinds is the closed set of queryable tables. Anything else is
// rejected before SQL is built.
var allowedKinds = map[EntityKind]bool{
	KindStudents: true,
	KindTeachers: true,
	KindClasses:  true,
	KindCourses:  true,
}

// allowedFilterColumns restricts filterable columns per kind.
var allowedFilterColumns = map[EntityKind]map[string]bool{
	KindStudents: {"grade": true, "class_id": true, "status": true},
	KindTeachers: {"subject": true, "status": true},
	KindClasses:  {"grade": true},
	KindCourses:  {"semester": true, "teacher_id": true},
}

// SQLStore implements Store over database/sql with either the sqlite3 or the
// pgx driver. The placeholder style is chosen per driver.
type SQLStore struct {
	db          *sql.DB
	tablePrefix string
	postgres    bool
}

// OpenSQLite opens a SQLite-backed store at the given path.
func OpenSQLite(path, tablePrefix string) (*SQLStore, error) {
	if path == "" {
		return nil, fmt.Errorf("store: sqlite path cannot be empty")
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("store: failed to open sqlite database: %w", err)
	}
	return &SQLStore{db: db, tablePrefix: tablePrefix}, nil
}

// OpenPostgres opens a Postgres-backed store using the pgx stdlib driver.
func OpenPostgres(dsn, tablePrefix string) (*SQLStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("store: postgres dsn cannot be empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: failed to open postgres database: %w", err)
	}
	return &SQLStore{db: db, tablePrefix: tablePrefix, postgres: true}, nil
}

// NewWithDB wraps an existing *sql.DB. Used by tests with sqlmock.
func NewWithDB(db *sql.DB, tablePrefix string, postgres bool) *SQLStore {
	return &SQLStore{db: db, tablePrefix: tablePrefix, postgres: postgres}
}

// Count implements Store.
func (s *SQLStore) Count(ctx context.Context, kind EntityKind, filters map[string]any) (int64, error) {
	where, args, err := s.buildWhere(kind, filters)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", s.table(kind), where)

	var count int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		log.WithField("kind", kind).Errorf("count query failed: %v", err)
		return 0, fmt.Errorf("store: count %s: %w", kind, err)
	}
	return count, nil
}

// List implements Store. Pages are capped at 100 rows.
func (s *SQLStore) List(ctx context.Context, kind EntityKind, filters map[string]any, page Pagination) ([]Row, error) {
	where, args, err := s.buildWhere(kind, filters)
	if err != nil {
		return nil, err
	}
	if page.Limit <= 0 || page.Limit > 100 {
		page.Limit = 20
	}
	if page.Offset < 0 {
		page.Offset = 0
	}
	query := fmt.Sprintf("SELECT * FROM %s%s ORDER BY id LIMIT %d OFFSET %d",
		s.table(kind), where, page.Limit, page.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list %s: %w", kind, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("store: list %s columns: %w", kind, err)
	}

	var out []Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("store: list %s scan: %w", kind, err)
		}
		row := make(Row, len(cols))
		for i, col := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = vals[i]
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Close implements Store.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) table(kind EntityKind) string {
	return s.tablePrefix + string(kind)
}

// buildWhere validates kind and filters, then renders a WHERE clause with
// driver-appropriate placeholders. Soft-deleted rows are always excluded.
func (s *SQLStore) buildWhere(kind EntityKind, filters map[string]any) (string, []any, error) {
	if !allowedKinds[kind] {
		return "", nil, fmt.Errorf("store: unknown entity kind %q", kind)
	}

	clauses := []string{"deleted_at IS NULL"}
	var args []any

	// Deterministic clause order for reproducible SQL.
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if !allowedFilterColumns[kind][k] {
			return "", nil, fmt.Errorf("store: column %q not filterable for %s", k, kind)
		}
		args = append(args, filters[k])
		if s.postgres {
			clauses = append(clauses, fmt.Sprintf("%s = $%d", k, len(args)))
		} else {
			clauses = append(clauses, fmt.Sprintf("%s = ?", k))
		}
	}

	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}
