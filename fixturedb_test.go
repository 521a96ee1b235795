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

package fixturedb

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/fixturedb/config"
	"github.com/tomoncle/fixturedb/database"
	"github.com/tomoncle/fixturedb/fixture"
	"github.com/uptrace/bun"
)

type User struct {
	bun.BaseModel `bun:"table:user"`

	ID   int64  `bun:"id,pk,autoincrement"`
	Name string `bun:"name,notnull"`
}

type Event struct {
	bun.BaseModel `bun:"table:event"`

	ID     int64  `bun:"id,pk,autoincrement"`
	UserID int64  `bun:"user_id"`
	Kind   string `bun:"kind"`
}

type testEnv struct {
	dir         string
	fixturesDir string
	dsn         string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	fixtures := filepath.Join(dir, "fixtures")
	require.NoError(t, os.Mkdir(fixtures, 0o755))
	return &testEnv{
		dir:         dir,
		fixturesDir: fixtures,
		dsn:         "sqlite://" + filepath.Join(dir, "base.db"),
	}
}

func (e *testEnv) write(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(e.fixturesDir, name), []byte(content), 0o644))
}

func (e *testEnv) options(opts Options) Options {
	if opts.DSN == "" {
		opts.DSN = e.dsn
	}
	if opts.Config == nil {
		opts.Config = &config.Config{FixturesDir: e.fixturesDir}
	}
	if opts.Registry == nil {
		registry := database.NewModelRegistry()
		registry.Register(
			database.NewModelAdapter((*User)(nil), 1),
			database.NewModelAdapter((*Event)(nil), 2),
		)
		opts.Registry = registry
	}
	return opts
}

func (e *testEnv) schemaFile(name string) string {
	return filepath.Join(e.dir, name+".db")
}

func TestCreateLoadsRowList(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.write(t, "users.yaml", "- {id: 1, name: a}\n- {id: 2, name: b}\n")

	h, err := Create(ctx, env.options(Options{}))
	require.NoError(t, err)
	defer h.Disconnect(ctx)

	assert.NotEmpty(t, h.Schema())
	assert.FileExists(t, env.schemaFile(h.Schema()))
	assert.Equal(t, env.fixturesDir, h.FixturesDir())

	count, err := h.DB().NewSelect().Model((*User)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	next := &User{Name: "c"}
	_, err = h.DB().NewInsert().Model(next).Exec(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), next.ID)
}

func TestLoadFixturesReportsSequences(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.write(t, "users.yaml", "- {id: 1, name: a}\n- {id: 2, name: b}\n")

	h, err := Create(ctx, env.options(Options{SkipFixtures: true}))
	require.NoError(t, err)
	defer h.Disconnect(ctx)

	result, err := h.LoadFixtures(ctx, "users*")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Rows)
	assert.Equal(t, int64(3), result.Sequences["user"])
}

func TestInsertFixturesPairsInOrder(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.write(t, "seed.yaml", `
- user
- {id: 1, name: a}
- event
- {user_id: 1, kind: first}
- event
- {user_id: 1, kind: second}
`)
	env.write(t, "users.yaml", "- {id: 7, name: z}\n")

	h, err := Create(ctx, env.options(Options{SkipFixtures: true}))
	require.NoError(t, err)
	defer h.Disconnect(ctx)

	require.NoError(t, h.InsertFixtures(ctx, "seed*"))

	var events []Event
	require.NoError(t, h.DB().NewSelect().Model(&events).Order("id ASC").Scan(ctx))
	require.Len(t, events, 2)
	assert.Equal(t, "first", events[0].Kind)
	assert.Equal(t, "second", events[1].Kind)

	count, err := h.DB().NewSelect().Model((*User)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCreateSkipSchema(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	h, err := Create(ctx, env.options(Options{SkipSchema: true}))
	require.NoError(t, err)
	assert.Empty(t, h.Schema())

	schemas, err := filepath.Glob(filepath.Join(env.dir, "test_*.db"))
	require.NoError(t, err)
	assert.Empty(t, schemas)

	require.NoError(t, h.Disconnect(ctx))
	assert.FileExists(t, filepath.Join(env.dir, "base.db"))
}

func TestDisconnectDropsSchema(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	h, err := Create(ctx, env.options(Options{}))
	require.NoError(t, err)
	path := env.schemaFile(h.Schema())
	require.FileExists(t, path)

	require.NoError(t, h.Disconnect(ctx))
	assert.NoFileExists(t, path)
	assert.Nil(t, h.DB())
	assert.NoError(t, h.Disconnect(ctx))
}

func TestKeepSchemaAndDropExisting(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	const name = "test_fixed"

	h, err := Create(ctx, env.options(Options{SchemaName: name, KeepSchema: true}))
	require.NoError(t, err)
	assert.Equal(t, name, h.Schema())
	require.NoError(t, h.Disconnect(ctx))
	require.FileExists(t, env.schemaFile(name))

	_, err = Create(ctx, env.options(Options{SchemaName: name}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), name)

	h, err = Create(ctx, env.options(Options{SchemaName: name, DropSchema: true}))
	require.NoError(t, err)
	require.NoError(t, h.Disconnect(ctx))
	assert.NoFileExists(t, env.schemaFile(name))

	t.Run("drop then recreate", func(t *testing.T) {
		const name = "test_again"
		h, err := Create(ctx, env.options(Options{SchemaName: name, DropSchema: true}))
		require.NoError(t, err)
		require.NoError(t, h.Disconnect(ctx))

		h, err = Create(ctx, env.options(Options{SchemaName: name}))
		require.NoError(t, err)
		assert.Equal(t, name, h.Schema())
		require.NoError(t, h.Disconnect(ctx))
	})
}

func TestKeepSchemaFromConfig(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	h, err := Create(ctx, env.options(Options{
		Config: &config.Config{FixturesDir: env.fixturesDir, KeepSchema: true},
	}))
	require.NoError(t, err)
	path := env.schemaFile(h.Schema())
	require.NoError(t, h.Disconnect(ctx))
	assert.FileExists(t, path)
}

func TestCreateFailsOnBadFixture(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.write(t, "users.yaml", "- {id: 1, name: a}\n")
	env.write(t, "zz_broken.yaml", "- user\n- {id: 2, name: b}\n- event\n")
	t.Chdir(env.dir)

	before, err := os.Getwd()
	require.NoError(t, err)

	_, err = Create(ctx, env.options(Options{FixturesDir: "fixtures"}))
	require.Error(t, err)

	var loadErr *fixture.LoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, filepath.Join("fixtures", "zz_broken.yaml"), loadErr.File)
	var parseErr *fixture.ParseError
	assert.True(t, errors.As(err, &parseErr))

	after, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, before, after)

	schemas, err := filepath.Glob(filepath.Join(env.dir, "test_*.db"))
	require.NoError(t, err)
	assert.Empty(t, schemas)
}

func TestMissingFixtureDirectory(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	t.Chdir(env.dir)

	h, err := Create(ctx, env.options(Options{Config: &config.Config{}}))
	require.NoError(t, err)
	assert.Equal(t, config.DefaultFixturesDir, h.FixturesDir())
	require.NoError(t, h.Disconnect(ctx))

	_, err = Create(ctx, env.options(Options{FixturesDir: filepath.Join(env.dir, "missing")}))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCreateRunsSQLDir(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	sqlDir := filepath.Join(env.dir, "sql")
	require.NoError(t, os.Mkdir(sqlDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sqlDir, "001_notes.sql"),
		[]byte("CREATE TABLE note (id INTEGER PRIMARY KEY, body TEXT);\n"), 0o644))
	env.write(t, "notes.yaml", "- {id: 1, body: a}\n- {id: 2, body: b}\n")

	h, err := Create(ctx, env.options(Options{
		SQLDir:   sqlDir,
		Registry: database.NewModelRegistry(),
	}))
	require.NoError(t, err)
	defer h.Disconnect(ctx)

	var n, maxID int
	require.NoError(t, h.DB().QueryRowContext(ctx, "SELECT COUNT(*), MAX(id) FROM note").Scan(&n, &maxID))
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, maxID)
}

func TestCreateNotConfigured(t *testing.T) {
	_, err := Create(context.Background(), Options{Config: &config.Config{}})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestCreateInvalidSchemaName(t *testing.T) {
	env := newTestEnv(t)
	_, err := Create(context.Background(), env.options(Options{SchemaName: "bad name;"}))
	assert.ErrorIs(t, err, database.ErrInvalidSchemaName)
}

func TestNew(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "users.yaml", "- {id: 1, name: a}\n")

	var path string
	t.Run("bound", func(t *testing.T) {
		h := New(t, env.options(Options{}))
		path = env.schemaFile(h.Schema())
		assert.FileExists(t, path)
	})
	assert.NoFileExists(t, path)

	t.Run("skipped", func(t *testing.T) {
		New(t, Options{Config: &config.Config{}})
		t.Error("expected New to skip")
	})
}
