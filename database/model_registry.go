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
	"reflect"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/jinzhu/inflection"
)

const DefaultPrimaryKey = "id"

var defaultRegistry = NewModelRegistry()

// SQLModel represents a Bun model deployed into test schemas. Instance should
// return a struct pointer compatible with Bun, and Priority controls creation
// order (lower values first).
type SQLModel interface {
	Instance() interface{}
	Priority() int
}

// ModelRegistry stores SQL models and exposes them in a deterministic order.
type ModelRegistry interface {
	Register(models ...SQLModel)
	Models() []SQLModel
	// Lookup finds the model whose table is table. The singular of the
	// table and the snake case type name also resolve, so "account" finds
	// Account in table accounts.
	Lookup(table string) (*ModelInfo, bool)
}

// ModelInfo is what the fixture loader needs to know about a model: its table,
// its Go type and the primary key column.
type ModelInfo struct {
	Table      string
	Type       reflect.Type
	PrimaryKey string
	pkIndex    []int
}

// New returns a pointer to a zero value of the model type.
func (m *ModelInfo) New() reflect.Value {
	return reflect.New(m.Type)
}

// PrimaryKeyValue reads the primary key from a model pointer. It returns nil
// when the model has no primary key field.
func (m *ModelInfo) PrimaryKeyValue(ptr reflect.Value) interface{} {
	if m.pkIndex == nil {
		return nil
	}
	return reflect.Indirect(ptr).FieldByIndex(m.pkIndex).Interface()
}

type modelRegistry struct {
	models  []SQLModel
	infos   map[string]*ModelInfo
	aliases map[string]*ModelInfo
	mutex   sync.RWMutex
}

func NewModelRegistry() ModelRegistry {
	return &modelRegistry{
		models:  make([]SQLModel, 0),
		infos:   make(map[string]*ModelInfo),
		aliases: make(map[string]*ModelInfo),
	}
}

func (r *modelRegistry) Register(models ...SQLModel) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	for _, model := range models {
		r.models = append(r.models, model)
		info := describeModel(model.Instance())
		table := strings.ToLower(info.Table)
		r.infos[table] = info
		for _, alias := range []string{inflection.Singular(table), underscore(info.Type.Name())} {
			if alias != table {
				r.aliases[alias] = info
			}
		}
	}
}

func (r *modelRegistry) Models() []SQLModel {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	result := make([]SQLModel, len(r.models))
	copy(result, r.models)
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Priority() < result[j].Priority()
	})
	return result
}

func (r *modelRegistry) Lookup(table string) (*ModelInfo, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	table = strings.ToLower(table)
	if info, ok := r.infos[table]; ok {
		return info, true
	}
	info, ok := r.aliases[table]
	return info, ok
}

type ModelAdapter struct {
	instance interface{}
	priority int
}

// NewModelAdapter wraps a struct instance and priority into an SQLModel.
func NewModelAdapter(instance interface{}, priority int) SQLModel {
	return &ModelAdapter{
		instance: instance,
		priority: priority,
	}
}

func (a *ModelAdapter) Instance() interface{} {
	return a.instance
}

func (a *ModelAdapter) Priority() int {
	return a.priority
}

// DefaultRegistry returns the process-wide registry used when no registry is
// passed explicitly.
func DefaultRegistry() ModelRegistry {
	return defaultRegistry
}

// RegisteredModel adds a model to the default registry.
func RegisteredModel(model SQLModel) {
	defaultRegistry.Register(model)
}

// RegisteredModelInstances returns the instances of registry in priority order.
func RegisteredModelInstances(registry ModelRegistry) []interface{} {
	models := registry.Models()
	modelInstances := make([]interface{}, len(models))
	for i, model := range models {
		modelInstances[i] = model.Instance()
	}
	return modelInstances
}

// describeModel reads the table name and primary key from bun struct tags.
// Without a table tag the name follows Bun's default: the plural snake case
// of the type name.
func describeModel(model interface{}) *ModelInfo {
	t := reflect.TypeOf(model)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	info := &ModelInfo{Type: t, PrimaryKey: DefaultPrimaryKey}

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("bun")
		if f.Type.Name() == "BaseModel" && strings.Contains(f.Type.PkgPath(), "uptrace/bun") {
			for _, part := range strings.Split(tag, ",") {
				part = strings.TrimSpace(part)
				if strings.HasPrefix(part, "table:") {
					info.Table = strings.TrimPrefix(part, "table:")
				}
			}
			continue
		}
		if tag == "-" || !f.IsExported() || info.pkIndex != nil {
			continue
		}
		parts := strings.Split(tag, ",")
		for _, opt := range parts[1:] {
			if strings.TrimSpace(opt) == "pk" {
				info.PrimaryKey = columnName(f.Name, parts[0])
				info.pkIndex = f.Index
				break
			}
		}
	}
	if info.Table == "" {
		info.Table = inflection.Plural(underscore(t.Name()))
	}
	if info.pkIndex == nil {
		if f, ok := t.FieldByNameFunc(func(name string) bool { return underscore(name) == DefaultPrimaryKey }); ok {
			info.pkIndex = f.Index
		}
	}
	return info
}

func columnName(fieldName, tagName string) string {
	if tagName = strings.TrimSpace(tagName); tagName != "" {
		return tagName
	}
	return underscore(fieldName)
}

// underscore converts CamelCase to snake_case, keeping initialisms together:
// "UserID" -> "user_id".
func underscore(s string) string {
	r := []rune(s)
	var b strings.Builder
	for i, c := range r {
		if unicode.IsUpper(c) {
			if i > 0 && (unicode.IsLower(r[i-1]) || (i+1 < len(r) && unicode.IsLower(r[i+1]) && unicode.IsUpper(r[i-1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(c))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}
