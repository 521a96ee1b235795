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
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/tomoncle/fixturedb/types"
	"gopkg.in/yaml.v3"
)

// Row maps column names to values.
type Row map[string]interface{}

// File is a parsed fixture document, either SingleTable or MultiTable.
type File interface {
	// Tables lists the tables the file writes, in first-use order.
	Tables() []string
	// Len is the number of rows in the file.
	Len() int
	isFile()
}

// SingleTable holds rows for one table.
type SingleTable struct {
	Table string
	Rows  []Row
}

func (f *SingleTable) Tables() []string { return []string{f.Table} }

func (f *SingleTable) Len() int { return len(f.Rows) }

func (*SingleTable) isFile() {}

// Entry is one row of a MultiTable file.
type Entry struct {
	Table string
	Row   Row
}

// MultiTable holds rows for several tables, inserted one by one in order.
type MultiTable struct {
	Entries []Entry
}

func (f *MultiTable) Tables() []string {
	seen := make(map[string]bool)
	var tables []string
	for _, e := range f.Entries {
		if !seen[e.Table] {
			seen[e.Table] = true
			tables = append(tables, e.Table)
		}
	}
	return tables
}

func (f *MultiTable) Len() int { return len(f.Entries) }

func (*MultiTable) isFile() {}

// Parse decodes a fixture document. name is the file name; it names the table
// of a plain row list and is used in errors.
func Parse(name string, data []byte) (File, error) {
	var doc yaml.Node
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ParseError{File: name, Msg: "empty document"}
		}
		return nil, &ParseError{File: name, Msg: "invalid yaml", Err: err}
	}
	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, &ParseError{File: name, Line: extra.Line, Column: extra.Column, Msg: "more than one document"}
	}
	if len(doc.Content) == 0 {
		return nil, &ParseError{File: name, Msg: "empty document"}
	}

	root := doc.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		if len(root.Content) == 0 || root.Content[0].Kind == yaml.MappingNode {
			rows, err := decodeRows(name, root)
			if err != nil {
				return nil, err
			}
			return &SingleTable{Table: TableName(name), Rows: rows}, nil
		}
		return decodePairs(name, root)
	case yaml.MappingNode:
		return decodeTable(name, root)
	default:
		return nil, nodeError(name, root, "expected a list of rows, a table mapping or table/row pairs")
	}
}

func decodeRows(name string, seq *yaml.Node) ([]Row, error) {
	rows := make([]Row, 0, len(seq.Content))
	for _, item := range seq.Content {
		if item.Kind != yaml.MappingNode {
			return nil, nodeError(name, item, "expected a row mapping")
		}
		row, err := decodeRow(name, item)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func decodePairs(name string, seq *yaml.Node) (File, error) {
	if len(seq.Content)%2 != 0 {
		last := seq.Content[len(seq.Content)-1]
		return nil, nodeError(name, last, "table name without a row")
	}
	file := &MultiTable{Entries: make([]Entry, 0, len(seq.Content)/2)}
	for i := 0; i < len(seq.Content); i += 2 {
		table, err := decodeTableName(name, seq.Content[i])
		if err != nil {
			return nil, err
		}
		rowNode := seq.Content[i+1]
		if rowNode.Kind != yaml.MappingNode {
			return nil, nodeError(name, rowNode, fmt.Sprintf("expected a row mapping for table %s", table))
		}
		row, err := decodeRow(name, rowNode)
		if err != nil {
			return nil, err
		}
		file.Entries = append(file.Entries, Entry{Table: table, Row: row})
	}
	return file, nil
}

func decodeTable(name string, m *yaml.Node) (File, error) {
	var (
		file    = &SingleTable{}
		hasRows bool
	)
	for i := 0; i+1 < len(m.Content); i += 2 {
		key, value := m.Content[i], m.Content[i+1]
		switch key.Value {
		case "table":
			table, err := decodeTableName(name, value)
			if err != nil {
				return nil, err
			}
			file.Table = table
		case "rows":
			if value.Kind != yaml.SequenceNode {
				return nil, nodeError(name, value, "rows must be a list")
			}
			rows, err := decodeRows(name, value)
			if err != nil {
				return nil, err
			}
			file.Rows = rows
			hasRows = true
		default:
			return nil, nodeError(name, key, fmt.Sprintf("unknown key %q", key.Value))
		}
	}
	if file.Table == "" {
		return nil, nodeError(name, m, "missing table")
	}
	if !hasRows {
		return nil, nodeError(name, m, "missing rows")
	}
	return file, nil
}

func decodeTableName(name string, n *yaml.Node) (string, error) {
	if n.Kind != yaml.ScalarNode || n.Tag != "!!str" || n.Value == "" {
		return "", nodeError(name, n, "expected a table name")
	}
	return n.Value, nil
}

func decodeRow(name string, n *yaml.Node) (Row, error) {
	var raw map[string]interface{}
	if err := n.Decode(&raw); err != nil {
		return nil, &ParseError{File: name, Line: n.Line, Column: n.Column, Msg: "invalid row", Err: err}
	}
	row := make(Row, len(raw))
	for column, value := range raw {
		row[column] = types.Normalize(value)
	}
	return row, nil
}

func nodeError(name string, n *yaml.Node, msg string) *ParseError {
	return &ParseError{File: name, Line: n.Line, Column: n.Column, Msg: msg}
}
