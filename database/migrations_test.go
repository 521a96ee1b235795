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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeploymentCheck(t *testing.T) {
	ctx := context.Background()
	m, _ := newSQLiteManager(t)

	r := NewModelRegistry()
	r.Register(NewModelAdapter((*testAccount)(nil), 1), NewModelAdapter((*BlogPost)(nil), 2))
	dm := NewDeploymentManager(m.GetDB(), r, GetLogger())

	require.NoError(t, dm.DeploymentCheck(ctx))
	require.NoError(t, dm.DeploymentCheck(ctx), "a deployed model set is not deployed again")

	deployments, err := dm.GetDeployments(ctx)
	require.NoError(t, err)
	require.Len(t, deployments, 1)
	version, tables := dm.Fingerprint()
	assert.Equal(t, version, deployments[0].Version)
	assert.Equal(t, []string{"accounts", "blog_posts"}, tables)

	_, err = m.GetDB().NewInsert().Model(&testAccount{Email: "a@example.com"}).Exec(ctx)
	require.NoError(t, err)
}

func TestDeploymentCheckNewModelSet(t *testing.T) {
	ctx := context.Background()
	m, _ := newSQLiteManager(t)

	r := NewModelRegistry()
	r.Register(NewModelAdapter((*testAccount)(nil), 1))
	require.NoError(t, NewDeploymentManager(m.GetDB(), r, nil).DeploymentCheck(ctx))

	r.Register(NewModelAdapter((*BlogPost)(nil), 2))
	dm := NewDeploymentManager(m.GetDB(), r, nil)
	require.NoError(t, dm.DeploymentCheck(ctx))

	deployments, err := dm.GetDeployments(ctx)
	require.NoError(t, err)
	assert.Len(t, deployments, 2)
}

func TestDeploymentCheckRejectsInvalidForeignKeys(t *testing.T) {
	m, _ := newSQLiteManager(t)
	dm := NewDeploymentManager(m.GetDB(), NewModelRegistry(), nil).
		WithForeignKeys([]ForeignKeyConstraint{{Table: "blog_posts", Column: "account_id"}})

	err := dm.DeploymentCheck(context.Background())
	assert.ErrorContains(t, err, "foreign key constraint validation failed")
}

func TestDeploymentCheckNotConnected(t *testing.T) {
	dm := NewDeploymentManager(nil, NewModelRegistry(), nil)
	assert.ErrorIs(t, dm.DeploymentCheck(context.Background()), ErrNotConnected)
}

func TestLoadForeignKeyConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fk.yaml")
	writeFile(t, path, `foreign_keys:
  - table: blog_posts
    column: account_id
    reference_table: accounts
    reference_column: account_id
    on_delete: cascade
`)
	constraints, err := LoadForeignKeyConfig(path)
	require.NoError(t, err)
	require.Len(t, constraints, 1)
	assert.Equal(t, "fk_blog_posts_account_id", constraints[0].GenerateConstraintName())

	fkm := NewForeignKeyManager(nil, constraints)
	assert.Empty(t, fkm.ValidateConstraints())
	assert.Len(t, fkm.GetConstraintsByTable("BLOG_POSTS"), 1)

	q, args := constraints[0].query()
	assert.Equal(t, "ALTER TABLE ? ADD CONSTRAINT ? FOREIGN KEY (?) REFERENCES ? (?) ON DELETE CASCADE", q)
	assert.Len(t, args, 5)
}
