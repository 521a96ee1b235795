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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/fixturedb/types"
)

func TestParseRowList(t *testing.T) {
	file, err := Parse("users.yaml", []byte(`
- {id: 1, name: a}
- {id: 2, name: b}
`))
	require.NoError(t, err)
	single, ok := file.(*SingleTable)
	require.True(t, ok)
	assert.Equal(t, "user", single.Table)
	assert.Equal(t, 2, single.Len())
	assert.Equal(t, Row{"id": 1, "name": "a"}, single.Rows[0])
	assert.Equal(t, []string{"user"}, single.Tables())
}

func TestParseExplicitTable(t *testing.T) {
	file, err := Parse("seed.yaml", []byte(`
table: users
rows:
  - id: 1
    profile: {theme: dark}
    tags: [a, b]
`))
	require.NoError(t, err)
	single := file.(*SingleTable)
	assert.Equal(t, "users", single.Table)
	require.Len(t, single.Rows, 1)
	assert.Equal(t, types.JsonObject{"theme": "dark"}, single.Rows[0]["profile"])
	assert.Equal(t, types.JsonList{"a", "b"}, single.Rows[0]["tags"])
}

func TestParsePairs(t *testing.T) {
	file, err := Parse("mixed.yml", []byte(`
- user
- {id: 1, name: a}
- post
- {id: 10, user_id: 1}
- user
- {id: 2, name: b}
`))
	require.NoError(t, err)
	multi, ok := file.(*MultiTable)
	require.True(t, ok)
	require.Equal(t, 3, multi.Len())
	assert.Equal(t, "user", multi.Entries[0].Table)
	assert.Equal(t, "post", multi.Entries[1].Table)
	assert.Equal(t, 2, multi.Entries[2].Row["id"])
	assert.Equal(t, []string{"user", "post"}, multi.Tables())
}

func TestParseJSON(t *testing.T) {
	file, err := Parse("people.json", []byte(`[{"id": 1, "name": "a"}]`))
	require.NoError(t, err)
	single := file.(*SingleTable)
	assert.Equal(t, "person", single.Table)
	assert.Equal(t, 1, single.Rows[0]["id"])
}

func TestParseEmptyList(t *testing.T) {
	file, err := Parse("users.yaml", []byte("[]"))
	require.NoError(t, err)
	assert.Equal(t, &SingleTable{Table: "user", Rows: []Row{}}, file)
}

func TestParseErrors(t *testing.T) {
	cases := map[string]string{
		"empty":             "",
		"comment only":      "# nothing here\n",
		"invalid yaml":      "- {id: 1\n",
		"scalar root":       "42",
		"mixed rows":        "- {id: 1}\n- 2\n",
		"dangling table":    "- user\n- {id: 1}\n- post\n",
		"pair without row":  "- user\n- post\n",
		"numeric table":     "- 1\n- {id: 1}\n",
		"missing rows":      "table: users\n",
		"missing table":     "rows: []\n",
		"unknown key":       "table: users\nrows: []\nextra: 1\n",
		"rows not a list":   "table: users\nrows: {id: 1}\n",
		"duplicate column":  "- {id: 1, id: 2}\n",
		"two documents":     "- {id: 1}\n---\n- {id: 2}\n",
		"null root":         "null\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse("users.yaml", []byte(doc))
			require.Error(t, err)
			var perr *ParseError
			require.True(t, errors.As(err, &perr), "got %T: %v", err, err)
			assert.Equal(t, "users.yaml", perr.File)
			assert.Contains(t, err.Error(), "users.yaml")
		})
	}
}

func TestParseErrorPosition(t *testing.T) {
	_, err := Parse("users.yaml", []byte("- {id: 1}\n- oops\n"))
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 2, perr.Line)
	assert.Equal(t, 3, perr.Column)
	assert.Equal(t, "users.yaml:2:3: expected a row mapping", perr.Error())
}
