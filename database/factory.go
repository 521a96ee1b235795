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
	"fmt"
	"os"
	"strconv"

	"github.com/tomoncle/fixturedb/utils"
)

// BaseDatabaseFactory builds managers from configuration after applying
// environment overrides.
type BaseDatabaseFactory struct {
	logger Logger
}

// NewDatabaseFactory returns a new database factory using the global logger.
func NewDatabaseFactory() *BaseDatabaseFactory {
	return &BaseDatabaseFactory{
		logger: GetLogger(),
	}
}

// SetLogger sets the logger handed to managers created afterwards.
func (f *BaseDatabaseFactory) SetLogger(logger Logger) {
	f.logger = logger
}

// CreateFromConfig constructs a manager from the given connection
// configuration, applying environment overrides first.
func (f *BaseDatabaseFactory) CreateFromConfig(cfg *ConnectionConfig) (Manager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration cannot be empty")
	}
	f.overrideFromEnv(cfg)
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database dsn cannot be empty")
	}

	manager, err := NewDatabaseManager(cfg)
	if err != nil {
		return nil, err
	}
	manager.SetLogger(f.logger)
	return manager, nil
}

// Connect creates a manager and opens its pool in the default namespace.
func (f *BaseDatabaseFactory) Connect(ctx context.Context, cfg *ConnectionConfig) (Manager, error) {
	manager, err := f.CreateFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	if err := manager.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return manager, nil
}

// overrideFromEnv overrides pool tuning and logging from environment variables.
// Durations accept "30s" or plain seconds.
func (f *BaseDatabaseFactory) overrideFromEnv(cfg *ConnectionConfig) {
	if maxIdle := os.Getenv("FIXTUREDB_DB_MAX_IDLE_CONNS"); maxIdle != "" {
		if val, err := strconv.Atoi(maxIdle); err == nil {
			cfg.MaxIdleConns = val
		}
	}
	if maxOpen := os.Getenv("FIXTUREDB_DB_MAX_OPEN_CONNS"); maxOpen != "" {
		if val, err := strconv.Atoi(maxOpen); err == nil {
			cfg.MaxOpenConns = val
		}
	}
	cfg.ConnMaxLifetime = utils.EnvDefaultDuration("FIXTUREDB_DB_CONN_MAX_LIFETIME", cfg.ConnMaxLifetime)
	cfg.ConnectTimeout = utils.EnvDefaultDuration("FIXTUREDB_DB_CONNECT_TIMEOUT", cfg.ConnectTimeout)
	cfg.EnableQueryLog = utils.EnvDefaultBool("FIXTUREDB_DB_QUERY_LOG", cfg.EnableQueryLog)
}
