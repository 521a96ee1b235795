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

package fixture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/tomoncle/fixturedb/database"
	"github.com/tomoncle/fixturedb/repository"
	"github.com/uptrace/bun"
)

// Sequencer reads and moves auto-increment counters. database.Dialect
// implements it.
type Sequencer interface {
	MaxPrimaryKey(ctx context.Context, db bun.IDB, table, column string) (int64, error)
	ResetSequence(ctx context.Context, db bun.IDB, table, column string, next int64) error
}

// Watermark is the largest explicit primary key loaded into a table.
type Watermark struct {
	Table  string
	Column string
	Max    int64
}

// Watermarks tracks one Watermark per table.
type Watermarks map[string]*Watermark

// Observe records id as a key loaded into table.column.
func (w Watermarks) Observe(table, column string, id int64) {
	mark, ok := w[table]
	if !ok {
		w[table] = &Watermark{Table: table, Column: column, Max: id}
		return
	}
	if id > mark.Max {
		mark.Max = id
	}
}

// Sorted returns the watermarks ordered by table name.
func (w Watermarks) Sorted() []*Watermark {
	marks := make([]*Watermark, 0, len(w))
	for _, mark := range w {
		marks = append(marks, mark)
	}
	sort.Slice(marks, func(i, j int) bool { return marks[i].Table < marks[j].Table })
	return marks
}

// Result summarizes a completed load.
type Result struct {
	Files      []string
	Rows       int
	Watermarks Watermarks
	// Sequences holds the next key of every realigned table.
	Sequences map[string]int64
}

// Loader inserts fixture files through repository result sets.
type Loader struct {
	db       bun.IDB
	seq      Sequencer
	registry database.ModelRegistry
	logger   database.Logger
}

// NewLoader returns a loader writing to db. registry may be nil for the
// default registry, logger nil for the global logger.
func NewLoader(db bun.IDB, seq Sequencer, registry database.ModelRegistry, logger database.Logger) *Loader {
	if registry == nil {
		registry = database.DefaultRegistry()
	}
	if logger == nil {
		logger = database.GetLogger()
	}
	return &Loader{db: db, seq: seq, registry: registry, logger: logger}
}

// Load inserts every fixture file in dir matching glob, in lexical order, then
// realigns the sequences of tables that received explicit keys. The first
// failing file aborts the load with a *LoadError.
func (l *Loader) Load(ctx context.Context, dir, glob string) (*Result, error) {
	paths, err := Match(dir, glob)
	if err != nil {
		return nil, err
	}
	result := &Result{
		Files:      make([]string, 0, len(paths)),
		Watermarks: make(Watermarks),
		Sequences:  make(map[string]int64),
	}
	if len(paths) == 0 {
		l.logger.Warn("No fixture files matched", "dir", dir, "glob", glob)
		return result, nil
	}

	sets := make(map[string]repository.ResultSet)
	resultSet := func(table string) repository.ResultSet {
		rs, ok := sets[table]
		if !ok {
			rs = repository.NewResultSet(l.db, l.registry, table)
			sets[table] = rs
		}
		return rs
	}

	for _, path := range paths {
		shown := displayPath(path)
		n, err := l.loadFile(ctx, path, resultSet, result.Watermarks)
		if err != nil {
			return nil, &LoadError{File: shown, Err: err}
		}
		result.Files = append(result.Files, shown)
		result.Rows += n
		l.logger.Debug("Fixture loaded", "file", shown, "rows", n)
	}

	for _, mark := range result.Watermarks.Sorted() {
		next, err := l.realign(ctx, mark)
		if err != nil {
			return nil, err
		}
		result.Sequences[mark.Table] = next
	}

	l.logger.Info("Fixtures loaded", "files", len(result.Files), "rows", result.Rows)
	return result, nil
}

func (l *Loader) loadFile(ctx context.Context, path string, resultSet func(string) repository.ResultSet, marks Watermarks) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	file, err := Parse(filepath.Base(path), data)
	if err != nil {
		return 0, err
	}

	switch f := file.(type) {
	case *SingleTable:
		rs := resultSet(f.Table)
		rows := make([]map[string]interface{}, len(f.Rows))
		for i, row := range f.Rows {
			rows[i] = row
		}
		if err := rs.Populate(ctx, rows); err != nil {
			return 0, err
		}
		for _, row := range rows {
			if id, ok := repository.ExplicitKey(row, rs.PrimaryKey()); ok {
				marks.Observe(rs.Table(), rs.PrimaryKey(), id)
			}
		}
	case *MultiTable:
		for i, entry := range f.Entries {
			rs := resultSet(entry.Table)
			if _, err := rs.Create(ctx, entry.Row); err != nil {
				return 0, fmt.Errorf("entry %d: %w", i+1, err)
			}
			if id, ok := repository.ExplicitKey(entry.Row, rs.PrimaryKey()); ok {
				marks.Observe(rs.Table(), rs.PrimaryKey(), id)
			}
		}
	}
	return file.Len(), nil
}

// realign sets the counter of mark.Table to one past the larger of the
// current maximum key and the watermark.
func (l *Loader) realign(ctx context.Context, mark *Watermark) (int64, error) {
	current, err := l.seq.MaxPrimaryKey(ctx, l.db, mark.Table, mark.Column)
	if err != nil {
		return 0, err
	}
	next := max(current, mark.Max) + 1
	if err := l.seq.ResetSequence(ctx, l.db, mark.Table, mark.Column, next); err != nil {
		return 0, err
	}
	l.logger.Debug("Sequence realigned", "table", mark.Table, "column", mark.Column, "next", next)
	return next, nil
}

// Validate parses every matching fixture file without touching a database.
// It returns the files checked and all parse errors joined.
func Validate(dir, glob string) ([]string, error) {
	paths, err := Match(dir, glob)
	if err != nil {
		return nil, err
	}
	files := make([]string, 0, len(paths))
	var errs []error
	for _, path := range paths {
		shown := displayPath(path)
		files = append(files, shown)
		data, err := os.ReadFile(path)
		if err != nil {
			errs = append(errs, &LoadError{File: shown, Err: err})
			continue
		}
		if _, err := Parse(filepath.Base(path), data); err != nil {
			errs = append(errs, &LoadError{File: shown, Err: err})
		}
	}
	return files, errors.Join(errs...)
}
