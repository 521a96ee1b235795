/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

var schemaNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// ValidateSchemaName rejects names that are not plain identifiers. Generated
// and user supplied names both go through it before any DDL is issued.
func ValidateSchemaName(name string) error {
	if !schemaNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidSchemaName, name)
	}
	return nil
}

// Dialect is the per-database part of schema isolation: how a DSN is bound to
// a namespace, how namespaces are created and dropped, and how auto-increment
// counters are moved.
type Dialect interface {
	Name() string
	// Open returns a pool bound to schema; an empty schema means the default
	// namespace of the DSN.
	Open(schema string) (*sql.DB, *bun.DB, error)
	CreateSchema(ctx context.Context, db bun.IDB, schema string) error
	// DropSchema removes schema and everything in it. A missing schema is not
	// an error.
	DropSchema(ctx context.Context, db bun.IDB, schema string) error
	MaxPrimaryKey(ctx context.Context, db bun.IDB, table, column string) (int64, error)
	// ResetSequence moves the counter of table.column so the next generated
	// key is next.
	ResetSequence(ctx context.Context, db bun.IDB, table, column string, next int64) error
}

// DialectFor picks the dialect from the DSN scheme.
func DialectFor(dsn string) (Dialect, error) {
	dsn = strings.TrimSpace(dsn)
	scheme, rest, found := strings.Cut(dsn, "://")
	if !found {
		switch {
		case strings.HasPrefix(dsn, "file:"), dsn == ":memory:":
			return &sqliteDialect{base: dsn}, nil
		case strings.Contains(dsn, "host=") || strings.Contains(dsn, "dbname="):
			return &postgresDialect{base: dsn}, nil
		}
		return nil, fmt.Errorf("%w: cannot infer dialect from %q", ErrUnsupportedDialect, redactDSN(dsn))
	}
	switch strings.ToLower(scheme) {
	case "postgres", "postgresql":
		return &postgresDialect{base: dsn}, nil
	case "mysql":
		cfg, err := mysql.ParseDSN(rest)
		if err != nil {
			return nil, fmt.Errorf("invalid mysql dsn: %w", err)
		}
		return &mysqlDialect{base: cfg}, nil
	case "sqlite", "sqlite3":
		return &sqliteDialect{base: rest}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDialect, scheme)
	}
}

func redactDSN(dsn string) string {
	if u, err := url.Parse(dsn); err == nil && u.User != nil {
		return u.Redacted()
	}
	if len(dsn) > 16 {
		return dsn[:16] + "..."
	}
	return dsn
}

// maxPrimaryKey is shared by all dialects. An empty table reports 0.
func maxPrimaryKey(ctx context.Context, db bun.IDB, table, column string) (int64, error) {
	var maxID sql.NullInt64
	err := db.QueryRowContext(ctx, "SELECT MAX(?) FROM ?", bun.Ident(column), bun.Ident(table)).Scan(&maxID)
	if err != nil {
		return 0, fmt.Errorf("failed to query max %s.%s: %w", table, column, err)
	}
	return maxID.Int64, nil
}

type postgresDialect struct {
	base string
}

func (d *postgresDialect) Name() string { return "postgres" }

// bind adds search_path as a runtime parameter; lib/pq forwards unknown
// parameters to the server at startup of every connection.
func (d *postgresDialect) bind(schema string) (string, error) {
	if schema == "" {
		return d.base, nil
	}
	if !strings.Contains(d.base, "://") {
		return fmt.Sprintf("%s search_path=%s", d.base, schema), nil
	}
	u, err := url.Parse(d.base)
	if err != nil {
		return "", fmt.Errorf("invalid postgres dsn: %w", err)
	}
	q := u.Query()
	q.Set("search_path", schema)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (d *postgresDialect) Open(schema string) (*sql.DB, *bun.DB, error) {
	dsn, err := d.bind(schema)
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, nil, err
	}
	return sqlDB, bun.NewDB(sqlDB, pgdialect.New()), nil
}

func (d *postgresDialect) CreateSchema(ctx context.Context, db bun.IDB, schema string) error {
	_, err := db.ExecContext(ctx, "CREATE SCHEMA ?", bun.Ident(schema))
	return err
}

func (d *postgresDialect) DropSchema(ctx context.Context, db bun.IDB, schema string) error {
	_, err := db.ExecContext(ctx, "DROP SCHEMA IF EXISTS ? CASCADE", bun.Ident(schema))
	return err
}

func (d *postgresDialect) MaxPrimaryKey(ctx context.Context, db bun.IDB, table, column string) (int64, error) {
	return maxPrimaryKey(ctx, db, table, column)
}

// ResetSequence is a no-op for columns without an owned sequence;
// pg_get_serial_sequence then yields NULL and setval returns NULL.
func (d *postgresDialect) ResetSequence(ctx context.Context, db bun.IDB, table, column string, next int64) error {
	quoted := `"` + strings.ReplaceAll(table, `"`, `""`) + `"`
	_, err := db.ExecContext(ctx, "SELECT setval(pg_get_serial_sequence(?, ?), ?, false)", quoted, column, next)
	if err != nil {
		return fmt.Errorf("failed to reset sequence of %s.%s: %w", table, column, err)
	}
	return nil
}

type mysqlDialect struct {
	base *mysql.Config
}

func (d *mysqlDialect) Name() string { return "mysql" }

func (d *mysqlDialect) Open(schema string) (*sql.DB, *bun.DB, error) {
	cfg := d.base.Clone()
	if schema != "" {
		cfg.DBName = schema
	}
	cfg.ParseTime = true
	sqlDB, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, nil, err
	}
	return sqlDB, bun.NewDB(sqlDB, mysqldialect.New()), nil
}

func (d *mysqlDialect) CreateSchema(ctx context.Context, db bun.IDB, schema string) error {
	_, err := db.ExecContext(ctx, "CREATE DATABASE ?", bun.Ident(schema))
	return err
}

func (d *mysqlDialect) DropSchema(ctx context.Context, db bun.IDB, schema string) error {
	_, err := db.ExecContext(ctx, "DROP DATABASE IF EXISTS ?", bun.Ident(schema))
	return err
}

func (d *mysqlDialect) MaxPrimaryKey(ctx context.Context, db bun.IDB, table, column string) (int64, error) {
	return maxPrimaryKey(ctx, db, table, column)
}

func (d *mysqlDialect) ResetSequence(ctx context.Context, db bun.IDB, table, column string, next int64) error {
	if _, err := db.ExecContext(ctx, "ALTER TABLE ? AUTO_INCREMENT = ?", bun.Ident(table), next); err != nil {
		return fmt.Errorf("failed to reset auto_increment of %s: %w", table, err)
	}
	return nil
}

// sqliteDialect maps a schema to its own database file next to the base
// database. An in-memory base maps schemas to named shared-cache memory
// databases.
type sqliteDialect struct {
	base string
}

func (d *sqliteDialect) Name() string { return "sqlite" }

func (d *sqliteDialect) inMemory() bool {
	return d.base == ":memory:" || strings.Contains(d.base, "mode=memory")
}

func (d *sqliteDialect) path(schema string) string {
	if schema == "" {
		return d.base
	}
	if d.inMemory() {
		return fmt.Sprintf("file:%s?mode=memory&cache=shared", schema)
	}
	base := strings.TrimPrefix(d.base, "file:")
	if i := strings.IndexByte(base, '?'); i >= 0 {
		base = base[:i]
	}
	return filepath.Join(filepath.Dir(base), schema+".db")
}

func (d *sqliteDialect) Open(schema string) (*sql.DB, *bun.DB, error) {
	sqlDB, err := sql.Open(sqliteshim.ShimName, d.path(schema))
	if err != nil {
		return nil, nil, err
	}
	// One connection keeps shared-cache memory databases alive and avoids
	// SQLITE_BUSY between pooled writers.
	sqlDB.SetMaxOpenConns(1)
	return sqlDB, bun.NewDB(sqlDB, sqlitedialect.New()), nil
}

func (d *sqliteDialect) CreateSchema(ctx context.Context, db bun.IDB, schema string) error {
	if d.inMemory() {
		return nil
	}
	f, err := os.OpenFile(d.path(schema), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("schema %q already exists: %w", schema, err)
		}
		return err
	}
	return f.Close()
}

func (d *sqliteDialect) DropSchema(ctx context.Context, db bun.IDB, schema string) error {
	if d.inMemory() {
		return nil
	}
	path := d.path(schema)
	for _, p := range []string{path, path + "-wal", path + "-shm", path + "-journal"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", p, err)
		}
	}
	return nil
}

func (d *sqliteDialect) MaxPrimaryKey(ctx context.Context, db bun.IDB, table, column string) (int64, error) {
	return maxPrimaryKey(ctx, db, table, column)
}

// ResetSequence only matters for AUTOINCREMENT tables, whose counter lives in
// sqlite_sequence. Plain rowid tables already continue from MAX(rowid).
func (d *sqliteDialect) ResetSequence(ctx context.Context, db bun.IDB, table, column string, next int64) error {
	var n int
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'sqlite_sequence'").Scan(&n)
	if err != nil {
		return fmt.Errorf("failed to inspect sqlite_sequence: %w", err)
	}
	if n == 0 {
		return nil
	}
	if _, err := db.ExecContext(ctx, "UPDATE sqlite_sequence SET seq = ? WHERE name = ? AND seq < ?", next-1, table, next-1); err != nil {
		return fmt.Errorf("failed to reset sqlite_sequence of %s: %w", table, err)
	}
	return nil
}
