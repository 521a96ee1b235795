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

package repository

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/tomoncle/fixturedb/database"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/feature"
)

// NewResultSet returns the result set for table. Tables with a model in
// registry (the default registry when nil) are written through the model.
func NewResultSet(db bun.IDB, registry database.ModelRegistry, table string) ResultSet {
	if registry == nil {
		registry = database.DefaultRegistry()
	}
	if info, ok := registry.Lookup(table); ok {
		return &modelResultSet{db: db, info: info}
	}
	return &mapResultSet{db: db, table: table, pk: database.DefaultPrimaryKey}
}

type modelResultSet struct {
	db   bun.IDB
	info *database.ModelInfo
}

func (r *modelResultSet) Table() string { return r.info.Table }

func (r *modelResultSet) PrimaryKey() string { return r.info.PrimaryKey }

// decode fills a new model from row. Unknown columns are an error.
func (r *modelResultSet) decode(row map[string]interface{}) (reflect.Value, error) {
	ptr := r.info.New()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "bun",
		Result:           ptr.Interface(),
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		MatchName:        matchColumn,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeHookFunc(time.RFC3339),
			mapstructure.StringToTimeDurationHookFunc(),
		),
	})
	if err != nil {
		return reflect.Value{}, err
	}
	if err := decoder.Decode(row); err != nil {
		return reflect.Value{}, fmt.Errorf("failed to decode row into %s: %w", r.info.Type.Name(), err)
	}
	return ptr, nil
}

func (r *modelResultSet) Populate(ctx context.Context, rows []map[string]interface{}) error {
	if len(rows) == 0 {
		return nil
	}
	slice := reflect.New(reflect.SliceOf(reflect.PointerTo(r.info.Type)))
	items := slice.Elem()
	for i, row := range rows {
		ptr, err := r.decode(row)
		if err != nil {
			return fmt.Errorf("row %d: %w", i+1, err)
		}
		items = reflect.Append(items, ptr)
	}
	slice.Elem().Set(items)

	if _, err := r.db.NewInsert().Model(slice.Interface()).Exec(ctx); err != nil {
		return fmt.Errorf("failed to populate %s: %w", r.info.Table, err)
	}
	return nil
}

func (r *modelResultSet) Create(ctx context.Context, row map[string]interface{}) (*Persisted, error) {
	ptr, err := r.decode(row)
	if err != nil {
		return nil, err
	}
	if _, err := r.db.NewInsert().Model(ptr.Interface()).Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to insert into %s: %w", r.info.Table, err)
	}
	return &Persisted{Table: r.info.Table, ID: r.info.PrimaryKeyValue(ptr)}, nil
}

func (r *modelResultSet) Count(ctx context.Context) (int, error) {
	return countRows(ctx, r.db, r.info.Table)
}

func (r *modelResultSet) All(ctx context.Context) ([]map[string]interface{}, error) {
	return allRows(ctx, r.db, r.info.Table, r.info.PrimaryKey)
}

type mapResultSet struct {
	db    bun.IDB
	table string
	pk    string
}

func (r *mapResultSet) Table() string { return r.table }

func (r *mapResultSet) PrimaryKey() string { return r.pk }

// Populate writes one INSERT per row inside a transaction; Bun map models
// hold a single row.
func (r *mapResultSet) Populate(ctx context.Context, rows []map[string]interface{}) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for i, row := range rows {
			if _, err := r.insert(ctx, tx, row, false); err != nil {
				return fmt.Errorf("row %d: %w", i+1, err)
			}
		}
		return nil
	})
}

func (r *mapResultSet) Create(ctx context.Context, row map[string]interface{}) (*Persisted, error) {
	id, err := r.insert(ctx, r.db, row, true)
	if err != nil {
		return nil, err
	}
	return &Persisted{Table: r.table, ID: id}, nil
}

// insert returns the explicit key of row. Without one and with wantID set it
// asks the database for the generated key.
func (r *mapResultSet) insert(ctx context.Context, db bun.IDB, row map[string]interface{}, wantID bool) (interface{}, error) {
	if len(row) == 0 {
		return nil, fmt.Errorf("empty row for %s", r.table)
	}
	values := make(map[string]interface{}, len(row))
	for k, v := range row {
		values[k] = v
	}
	query := db.NewInsert().
		Model(&values).
		TableExpr("?", bun.Ident(r.table))

	if id, ok := lookup(row, r.pk); ok {
		if _, err := query.Exec(ctx); err != nil {
			return nil, fmt.Errorf("failed to insert into %s: %w", r.table, err)
		}
		return id, nil
	}

	if wantID && db.Dialect().Features().Has(feature.InsertReturning) {
		var id interface{}
		if _, err := query.Returning("?", bun.Ident(r.pk)).Exec(ctx, &id); err != nil {
			return nil, fmt.Errorf("failed to insert into %s: %w", r.table, err)
		}
		return id, nil
	}

	res, err := query.Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to insert into %s: %w", r.table, err)
	}
	if !wantID {
		return nil, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, nil
	}
	return id, nil
}

func (r *mapResultSet) Count(ctx context.Context) (int, error) {
	return countRows(ctx, r.db, r.table)
}

func (r *mapResultSet) All(ctx context.Context) ([]map[string]interface{}, error) {
	return allRows(ctx, r.db, r.table, r.pk)
}

func countRows(ctx context.Context, db bun.IDB, table string) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM ?", bun.Ident(table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}

func allRows(ctx context.Context, db bun.IDB, table, pk string) ([]map[string]interface{}, error) {
	var rows []map[string]interface{}
	err := db.NewSelect().
		ColumnExpr("*").
		TableExpr("?", bun.Ident(table)).
		OrderExpr("? ASC", bun.Ident(pk)).
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", table, err)
	}
	return rows, nil
}

func lookup(row map[string]interface{}, column string) (interface{}, bool) {
	if v, ok := row[column]; ok {
		return v, v != nil
	}
	for k, v := range row {
		if strings.EqualFold(k, column) {
			return v, v != nil
		}
	}
	return nil, false
}

// matchColumn matches row keys to struct fields ignoring case and
// underscores, so created_at fills CreatedAt.
func matchColumn(mapKey, fieldName string) bool {
	return strings.EqualFold(strings.ReplaceAll(mapKey, "_", ""), strings.ReplaceAll(fieldName, "_", ""))
}
