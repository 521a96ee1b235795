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
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestIsSqlError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		is   bool
		kind SQLError
	}{
		{"nil", nil, false, UnknownErr},
		{"mysql unknown database", &mysql.MySQLError{Number: 1049, Message: "Unknown database 'x'"}, true, NoSchemaErr},
		{"mysql duplicate", &mysql.MySQLError{Number: 1062}, true, DuplicateKeyErr},
		{"mysql other", &mysql.MySQLError{Number: 9999}, true, UnknownErr},
		{"postgres invalid schema", &pq.Error{Code: "3F000"}, true, NoSchemaErr},
		{"postgres schema exists", &pq.Error{Code: "42P06"}, true, ExistSchemaErr},
		{"wrapped postgres", fmt.Errorf("drop: %w", &pq.Error{Code: "42P01"}), true, NoTableErr},
		{"sqlite no table", errors.New("SQL logic error: no such table: user (1)"), true, NoTableErr},
		{"sqlite unique", errors.New("UNIQUE constraint failed: user.id"), true, DuplicateKeyErr},
		{"plain", errors.New("boom"), false, UnknownErr},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			is, kind := IsSqlError(tc.err)
			assert.Equal(t, tc.is, is)
			assert.Equal(t, tc.kind, kind)
		})
	}
}

func TestIsSQLErrorKind(t *testing.T) {
	assert.True(t, IsSQLErrorKind(&pq.Error{Code: "3F000"}, NoSchemaErr))
	assert.False(t, IsSQLErrorKind(&pq.Error{Code: "3F000"}, NoTableErr))
	assert.Equal(t, "no schema", NoSchemaErr.String())
	assert.Equal(t, "unknown", SQLError(99).String())
}
