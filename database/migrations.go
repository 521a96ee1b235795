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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// Deployment records that the registered models were deployed into the
// current schema. Version is a fingerprint of the model set, so a schema
// reused with different models is deployed again.
type Deployment struct {
	bun.BaseModel `bun:"table:fixturedb_deployments"`

	Version   string    `bun:"version,pk"`
	Tables    string    `bun:"tables"`
	AppliedAt time.Time `bun:"applied_at"`
}

// DeploymentManager brings the tables of the current schema up to the
// registered model definitions.
type DeploymentManager struct {
	db          *bun.DB
	registry    ModelRegistry
	foreignKeys *ForeignKeyManager
	logger      Logger
}

// NewDeploymentManager uses the default registry when registry is nil.
func NewDeploymentManager(db *bun.DB, registry ModelRegistry, logger Logger) *DeploymentManager {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &DeploymentManager{
		db:          db,
		registry:    registry,
		foreignKeys: NewForeignKeyManager(logger, nil),
		logger:      logger,
	}
}

// WithForeignKeys applies constraints after the tables are created.
func (dm *DeploymentManager) WithForeignKeys(constraints []ForeignKeyConstraint) *DeploymentManager {
	dm.foreignKeys = NewForeignKeyManager(dm.logger, constraints)
	return dm
}

// Fingerprint hashes the table names and Go types of the registered models.
func (dm *DeploymentManager) Fingerprint() (string, []string) {
	instances := RegisteredModelInstances(dm.registry)
	tables := make([]string, 0, len(instances))
	parts := make([]string, 0, len(instances))
	for _, model := range instances {
		info := describeModel(model)
		tables = append(tables, info.Table)
		parts = append(parts, info.Table+"="+describeColumns(info.Type))
	}
	sort.Strings(parts)
	sum := sha256.Sum256([]byte(strings.Join(parts, ";")))
	return hex.EncodeToString(sum[:8]), tables
}

// DeploymentCheck creates the registered tables and foreign keys unless the
// same model set was already deployed into this schema.
func (dm *DeploymentManager) DeploymentCheck(ctx context.Context) error {
	if dm.db == nil {
		return ErrNotConnected
	}
	if errs := dm.foreignKeys.ValidateConstraints(); len(errs) > 0 {
		for _, err := range errs {
			if dm.logger != nil {
				dm.logger.Debug("Foreign key constraint validation failed", "error", err.Error())
			}
		}
		return fmt.Errorf("foreign key constraint validation failed, %d errors in total: %w", len(errs), errs[0])
	}

	_, err := dm.db.NewCreateTable().
		Model((*Deployment)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create deployments table: %w", err)
	}

	version, tables := dm.Fingerprint()
	exists, err := dm.db.NewSelect().
		Model((*Deployment)(nil)).
		Where("version = ?", version).
		Exists(ctx)
	if err != nil {
		return fmt.Errorf("failed to read deployments: %w", err)
	}
	if exists {
		if dm.logger != nil {
			dm.logger.Debug("Schema already deployed", "version", version)
		}
		return nil
	}

	err = dm.db.RunInTx(WithSilentQueries(ctx), nil, func(ctx context.Context, tx bun.Tx) error {
		if err := dm.createTables(ctx, tx); err != nil {
			return err
		}
		if err := dm.foreignKeys.AddAllForeignKeys(ctx, tx); err != nil {
			return err
		}
		_, err := tx.NewInsert().
			Model(&Deployment{
				Version:   version,
				Tables:    strings.Join(tables, ","),
				AppliedAt: time.Now(),
			}).
			Exec(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("deployment %s failed: %w", version, err)
	}

	if dm.logger != nil {
		dm.logger.Info("Schema deployed", "version", version, "tables", len(tables))
	}
	return nil
}

func (dm *DeploymentManager) createTables(ctx context.Context, db bun.IDB) error {
	for _, model := range RegisteredModelInstances(dm.registry) {
		_, err := db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create table %T: %w", model, err)
		}
	}
	return nil
}

// GetDeployments returns deployment records ordered by application time.
func (dm *DeploymentManager) GetDeployments(ctx context.Context) ([]Deployment, error) {
	var deployments []Deployment
	err := dm.db.NewSelect().
		Model(&deployments).
		Order("applied_at ASC").
		Scan(ctx)
	return deployments, err
}

func describeColumns(t reflect.Type) string {
	cols := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		cols = append(cols, f.Name+":"+f.Type.String()+":"+f.Tag.Get("bun"))
	}
	return strings.Join(cols, ",")
}
