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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFixture(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestMatch(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "b_posts.yaml", "[]")
	writeFixture(t, dir, "a_users.yml", "[]")
	writeFixture(t, dir, "c_tags.JSON", "[]")
	writeFixture(t, dir, "notes.txt", "ignored")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.yaml"), 0o755))

	paths, err := Match(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a_users.yml"),
		filepath.Join(dir, "b_posts.yaml"),
		filepath.Join(dir, "c_tags.JSON"),
	}, paths)

	paths, err = Match(dir, "b_*")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "b_posts.yaml")}, paths)

	paths, err = Match(dir, "zzz*")
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestMatchErrors(t *testing.T) {
	_, err := Match(t.TempDir(), "[")
	assert.ErrorIs(t, err, filepath.ErrBadPattern)

	_, err = Match(filepath.Join(t.TempDir(), "missing"), "*")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestTableName(t *testing.T) {
	cases := map[string]string{
		"users.yaml":          "user",
		"users":               "user",
		"/data/people.yml":    "person",
		"categories.json":     "category",
		"user.yaml":           "user",
		"address_books.yaml":  "address_book",
	}
	for in, want := range cases {
		assert.Equal(t, want, TableName(in), in)
	}
}
