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
	"strings"

	"github.com/google/uuid"
)

const schemaPrefix = "test_"

// Schema is an isolated namespace created for one test run.
type Schema struct {
	Name    string
	Dialect string
	// Owned schemas were created by this process and are dropped on release.
	Owned bool
}

// GenerateSchemaName returns a random name such as
// test_3f2b6c0e9a4d4d1e8f1c2b7a5e6d9c0b.
func GenerateSchemaName() string {
	return schemaPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// CreateSchema creates name in the default namespace of m and rebinds the
// pool of m to it. With dropExisting a same-named schema is removed first.
func CreateSchema(ctx context.Context, m Manager, name string, dropExisting bool) (*Schema, error) {
	if err := ValidateSchemaName(name); err != nil {
		return nil, err
	}
	if err := m.SetSearchPath(ctx, ""); err != nil {
		return nil, err
	}
	db := m.GetDB()
	if db == nil {
		return nil, ErrNotConnected
	}
	dialect := m.Dialect()

	if dropExisting {
		if err := dialect.DropSchema(ctx, db, name); err != nil && !IsSQLErrorKind(err, NoSchemaErr) {
			return nil, fmt.Errorf("failed to drop existing schema %s: %w", name, err)
		}
	}
	if err := dialect.CreateSchema(ctx, db, name); err != nil {
		return nil, fmt.Errorf("failed to create schema %s: %w", name, err)
	}
	schema := &Schema{Name: name, Dialect: dialect.Name(), Owned: true}

	if err := m.SetSearchPath(ctx, name); err != nil {
		if m.SetSearchPath(ctx, "") == nil && m.Connect(ctx) == nil {
			_ = dialect.DropSchema(ctx, m.GetDB(), name)
		}
		return nil, fmt.Errorf("failed to bind connection to schema %s: %w", name, err)
	}
	return schema, nil
}

// DropSchema rebinds m to its default namespace and drops schema when it is
// owned. A schema that no longer exists is not an error.
func DropSchema(ctx context.Context, m Manager, schema *Schema) error {
	if schema == nil || !schema.Owned {
		return nil
	}
	if err := m.SetSearchPath(ctx, ""); err != nil {
		return err
	}
	db := m.GetDB()
	if db == nil {
		if err := m.Connect(ctx); err != nil {
			return err
		}
		db = m.GetDB()
	}
	if err := m.Dialect().DropSchema(ctx, db, schema.Name); err != nil && !IsSQLErrorKind(err, NoSchemaErr) {
		return fmt.Errorf("failed to drop schema %s: %w", schema.Name, err)
	}
	schema.Owned = false
	return nil
}
