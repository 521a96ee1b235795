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

package repository

import (
	"context"
	"fmt"
	"math"
	"strconv"
)

// Persisted describes a row after insertion.
type Persisted struct {
	Table string
	// ID is the primary key, either given in the row or assigned by the
	// database. It is nil when the table has no usable key.
	ID interface{}
}

// IntID returns ID as an integer when it is one.
func (p *Persisted) IntID() (int64, bool) {
	if p == nil {
		return 0, false
	}
	return ToInt64(p.ID)
}

func (p *Persisted) String() string {
	return fmt.Sprintf("%s(%v)", p.Table, p.ID)
}

// ResultSet writes rows into one table.
type ResultSet interface {
	Table() string
	PrimaryKey() string

	// Populate inserts rows in order and fails on the first error. Nothing
	// is inserted when it fails.
	Populate(ctx context.Context, rows []map[string]interface{}) error

	// Create inserts one row and reports its key.
	Create(ctx context.Context, row map[string]interface{}) (*Persisted, error)

	Count(ctx context.Context) (int, error)

	// All returns every row ordered by primary key.
	All(ctx context.Context) ([]map[string]interface{}, error)
}

// ExplicitKey returns the integer primary key given in row, if any. The
// column name is matched case-insensitively.
func ExplicitKey(row map[string]interface{}, column string) (int64, bool) {
	v, ok := lookup(row, column)
	if !ok {
		return 0, false
	}
	return ToInt64(v)
}

// ToInt64 converts integer values of any Go integer type, integral floats and
// decimal strings.
func ToInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), n <= math.MaxInt64
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), n <= math.MaxInt64
	case float64:
		if n != math.Trunc(n) || n > math.MaxInt64 || n < math.MinInt64 {
			return 0, false
		}
		return int64(n), true
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	case []byte:
		i, err := strconv.ParseInt(string(n), 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}
