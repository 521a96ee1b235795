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
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/tomoncle/fixturedb/config"
	"github.com/tomoncle/fixturedb/database"
	"github.com/tomoncle/fixturedb/fixture"
	"github.com/tomoncle/fixturedb/utils"
	"github.com/uptrace/bun"
)

// ErrNotConfigured is returned by Create when no test database is named.
var ErrNotConfigured = errors.New("fixturedb: " + config.DSNEnv + " is not set")

// Options control Create. The zero value creates a random schema and loads
// every fixture file from the configured directory.
type Options struct {
	// SkipSchema uses the default namespace of the connection. No schema is
	// created or dropped.
	SkipSchema bool
	// SchemaName is used instead of a generated name.
	SchemaName string
	// DropSchema removes a schema named SchemaName before creating it.
	DropSchema bool
	// SkipFixtures skips fixture loading.
	SkipFixtures bool
	// FixturesGlob selects fixture files by name. Defaults to "*".
	FixturesGlob string
	// FixturesDir overrides the configured fixture directory.
	FixturesDir string
	// SQLDir overrides the configured directory of .sql files run after the
	// models are deployed.
	SQLDir string
	// KeepSchema leaves the schema in place on Disconnect.
	KeepSchema bool
	// DSN overrides FIXTUREDB_TEST_DSN.
	DSN string

	// Registry holds the models to deploy; nil means the default registry.
	Registry database.ModelRegistry
	// Logger defaults to the global database logger.
	Logger database.Logger
	// Config is loaded with config.Load when nil.
	Config *config.Config
}

// Handle is a live connection bound to a test schema.
type Handle struct {
	opts        Options
	cfg         *config.Config
	manager     database.Manager
	schema      *database.Schema
	registry    database.ModelRegistry
	logger      database.Logger
	fixturesDir string

	mu     sync.Mutex
	closed bool
}

// Enabled reports whether a test database is configured, after loading
// .env.test if present.
func Enabled() bool {
	cfg, err := config.Load()
	if err != nil {
		return os.Getenv(config.DSNEnv) != ""
	}
	return cfg.TestDSN != ""
}

// Create connects to the test database, creates and binds a schema unless
// SkipSchema is set, deploys the registered models and loads fixtures unless
// SkipFixtures is set. On failure everything created so far is released.
func Create(ctx context.Context, opts Options) (*Handle, error) {
	cfg := opts.Config
	if cfg == nil {
		var err error
		if cfg, err = config.Load(); err != nil {
			return nil, err
		}
	}
	if cfg.LogLevel != "" {
		utils.ConfigureLogLevel(cfg.LogLevel)
	}

	dsn := opts.DSN
	if dsn == "" {
		dsn = cfg.TestDSN
	}
	if dsn == "" {
		return nil, ErrNotConfigured
	}

	h := &Handle{
		opts:        opts,
		cfg:         cfg,
		registry:    opts.Registry,
		logger:      opts.Logger,
		fixturesDir: opts.FixturesDir,
	}
	if h.registry == nil {
		h.registry = database.DefaultRegistry()
	}
	if h.logger == nil {
		h.logger = database.GetLogger()
	}
	if h.fixturesDir == "" {
		h.fixturesDir = cfg.FixturesDir
	}
	if h.fixturesDir == "" {
		h.fixturesDir = config.DefaultFixturesDir
	}

	connCfg := database.DefaultConnectionConfig()
	connCfg.DSN = dsn
	connCfg.EnableQueryLog = cfg.QueryLog
	connCfg.SlowQueryTime = cfg.SlowQueryTime
	connCfg.ForeignKeyFile = cfg.ForeignKeyFile

	factory := database.NewDatabaseFactory()
	factory.SetLogger(h.logger)
	manager, err := factory.Connect(ctx, connCfg)
	if err != nil {
		return nil, err
	}
	h.manager = manager

	if err := h.setup(ctx, connCfg); err != nil {
		if cerr := h.Disconnect(ctx); cerr != nil {
			h.logger.Warn("Cleanup after failed create", "error", cerr)
		}
		return nil, err
	}
	return h, nil
}

func (h *Handle) setup(ctx context.Context, connCfg *database.ConnectionConfig) error {
	if !h.opts.SkipSchema {
		name := h.opts.SchemaName
		if name == "" {
			name = database.GenerateSchemaName()
		}
		schema, err := database.CreateSchema(ctx, h.manager, name, h.opts.DropSchema)
		if err != nil {
			return err
		}
		h.schema = schema
		h.logger.Info("Using test schema", "schema", name, "dialect", schema.Dialect)
	}

	var constraints []database.ForeignKeyConstraint
	if connCfg.ForeignKeyFile != "" {
		var err error
		if constraints, err = database.LoadForeignKeyConfig(connCfg.ForeignKeyFile); err != nil {
			return err
		}
	}
	deployer := database.NewDeploymentManager(h.manager.GetDB(), h.registry, h.logger).
		WithForeignKeys(constraints)
	if err := deployer.DeploymentCheck(ctx); err != nil {
		return fmt.Errorf("deployment check failed: %w", err)
	}

	sqlDir := h.opts.SQLDir
	if sqlDir == "" {
		sqlDir = h.cfg.SQLDir
	}
	if sqlDir != "" {
		if _, err := database.NewSQLInitializer(h.manager.GetDB(), sqlDir, h.Schema(), h.logger).Execute(ctx); err != nil {
			return err
		}
	}

	if !h.opts.SkipFixtures {
		return h.InsertFixtures(ctx, h.opts.FixturesGlob)
	}
	return nil
}

// InsertFixtures loads the fixture files matching glob ("*" when empty) from
// the fixture directory.
func (h *Handle) InsertFixtures(ctx context.Context, glob string) error {
	_, err := h.LoadFixtures(ctx, glob)
	return err
}

// LoadFixtures is InsertFixtures reporting what was loaded. A missing fixture
// directory is only an error when it was set explicitly.
func (h *Handle) LoadFixtures(ctx context.Context, glob string) (*fixture.Result, error) {
	db := h.DB()
	if db == nil {
		return nil, database.ErrNotConnected
	}
	loader := fixture.NewLoader(db, h.manager.Dialect(), h.registry, h.logger)
	result, err := loader.Load(ctx, h.fixturesDir, glob)
	if err != nil && errors.Is(err, fs.ErrNotExist) && h.defaultFixturesDir() {
		h.logger.Debug("No fixture directory", "dir", h.fixturesDir)
		return &fixture.Result{}, nil
	}
	return result, err
}

func (h *Handle) defaultFixturesDir() bool {
	return h.opts.FixturesDir == "" && h.fixturesDir == config.DefaultFixturesDir
}

// Disconnect drops the owned schema unless it is kept and closes the
// connection. Calling it again does nothing.
func (h *Handle) Disconnect(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true

	var errs []error
	if h.schema != nil {
		if h.opts.KeepSchema || h.cfg.KeepSchema {
			h.logger.Info("Keeping test schema", "schema", h.schema.Name)
		} else if err := database.DropSchema(ctx, h.manager, h.schema); err != nil {
			errs = append(errs, err)
		} else {
			h.logger.Debug("Test schema dropped", "schema", h.schema.Name)
		}
	}
	if err := h.manager.Disconnect(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// DB returns the Bun handle bound to the test schema, or nil after
// Disconnect.
func (h *Handle) DB() *bun.DB {
	return h.manager.GetDB()
}

// Manager exposes the underlying connection manager.
func (h *Handle) Manager() database.Manager {
	return h.manager
}

// Schema returns the test schema name, empty with SkipSchema.
func (h *Handle) Schema() string {
	if h.schema == nil {
		return ""
	}
	return h.schema.Name
}

// FixturesDir returns the directory fixture globs are matched in.
func (h *Handle) FixturesDir() string {
	return h.fixturesDir
}
