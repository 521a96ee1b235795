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

package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JsonObject is a JSON column holding an object.
type JsonObject map[string]interface{}

// JsonArray is a JSON column holding a list of objects.
type JsonArray []JsonObject

// JsonList is a JSON column holding a list of arbitrary values.
type JsonList []interface{}

// Value implements driver.Valuer for JsonObject.
func (j JsonObject) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return marshal(j)
}

// Scan implements sql.Scanner for JsonObject.
func (j *JsonObject) Scan(value interface{}) error {
	if value == nil {
		*j = make(JsonObject)
		return nil
	}
	return unmarshal(value, j)
}

// Value implements driver.Valuer for JsonArray.
func (j JsonArray) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return marshal(j)
}

// Scan implements sql.Scanner for JsonArray.
func (j *JsonArray) Scan(value interface{}) error {
	if value == nil {
		*j = make(JsonArray, 0)
		return nil
	}
	return unmarshal(value, j)
}

func (j JsonList) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return marshal(j)
}

func (j *JsonList) Scan(value interface{}) error {
	if value == nil {
		*j = make(JsonList, 0)
		return nil
	}
	return unmarshal(value, j)
}

// marshal returns a string so text and json columns accept the value on
// every driver.
func marshal(v interface{}) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// unmarshal accepts both []byte and string; sqlite returns TEXT columns as
// strings.
func unmarshal(value interface{}, dest interface{}) error {
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("unsupported json column type %T", value)
	}
}

// Normalize converts nested values decoded from a fixture document into
// column values: mappings become JsonObject, lists of mappings JsonArray and
// other lists JsonList. Scalars are returned unchanged.
func Normalize(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		obj := make(JsonObject, len(v))
		for key, item := range v {
			obj[key] = plain(item)
		}
		return obj
	case []interface{}:
		if objects, ok := asObjects(v); ok {
			return objects
		}
		list := make(JsonList, len(v))
		for i, item := range v {
			list[i] = plain(item)
		}
		return list
	default:
		return value
	}
}

func asObjects(items []interface{}) (JsonArray, bool) {
	if len(items) == 0 {
		return nil, false
	}
	arr := make(JsonArray, len(items))
	for i, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			return nil, false
		}
		arr[i] = Normalize(m).(JsonObject)
	}
	return arr, true
}

// plain keeps nested values as maps and slices inside a JSON document.
func plain(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, item := range v {
			out[key] = plain(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = plain(item)
		}
		return out
	default:
		return value
	}
}
