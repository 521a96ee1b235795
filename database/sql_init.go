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
	"bufio"
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/uptrace/bun"
)

var orderPrefix = regexp.MustCompile(`^(\d+)_`)

// SQLInitializer runs the .sql files of a directory against the bound
// schema. It creates tables that no registered model describes.
type SQLInitializer struct {
	db     bun.IDB
	dir    string
	schema string
	logger Logger
}

// SQLFileInfo describes one SQL file.
type SQLFileInfo struct {
	Path  string
	Name  string
	Order int
}

// ExecutionResult is the outcome of one SQL file.
type ExecutionResult struct {
	File         string
	Statements   int
	RowsAffected int64
	Duration     time.Duration
}

// NewSQLInitializer returns an initializer for the files in dir. schema is
// exposed to the files as {{.Schema}}.
func NewSQLInitializer(db bun.IDB, dir, schema string, logger Logger) *SQLInitializer {
	if logger == nil {
		logger = GetLogger()
	}
	return &SQLInitializer{db: db, dir: dir, schema: schema, logger: logger}
}

// Execute runs every file in order, each in its own transaction, and stops at
// the first failure.
func (s *SQLInitializer) Execute(ctx context.Context) ([]ExecutionResult, error) {
	files, err := s.Files()
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		s.logger.Debug("No SQL files found", "dir", s.dir)
		return nil, nil
	}

	results := make([]ExecutionResult, 0, len(files))
	for _, file := range files {
		result, err := s.executeFile(ctx, file)
		if err != nil {
			s.logger.Error("SQL file execution failed", "file", file.Name, "error", err)
			return results, fmt.Errorf("SQL file execution failed %s: %w", file.Name, err)
		}
		results = append(results, result)
		s.logger.Debug("SQL file executed", "file", file.Name, "statements", result.Statements, "duration", result.Duration.String())
	}
	s.logger.Info("SQL initialization completed", "files", len(results), "schema", s.schema)
	return results, nil
}

// Files lists the .sql files of the directory ordered by their numeric
// prefix ("010_users.sql"), then by name. Files without a prefix come last.
func (s *SQLInitializer) Files() ([]SQLFileInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read SQL directory: %w", err)
	}
	var files []SQLFileInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".sql") {
			continue
		}
		files = append(files, SQLFileInfo{
			Path:  filepath.Join(s.dir, entry.Name()),
			Name:  entry.Name(),
			Order: parseFileOrder(entry.Name()),
		})
	}
	sort.Slice(files, func(i, j int) bool {
		if files[i].Order != files[j].Order {
			return files[i].Order < files[j].Order
		}
		return files[i].Name < files[j].Name
	})
	return files, nil
}

func parseFileOrder(name string) int {
	if m := orderPrefix.FindStringSubmatch(name); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n
		}
	}
	return 999
}

func (s *SQLInitializer) executeFile(ctx context.Context, file SQLFileInfo) (ExecutionResult, error) {
	start := time.Now()
	result := ExecutionResult{File: file.Path}

	content, err := os.ReadFile(file.Path)
	if err != nil {
		return result, fmt.Errorf("failed to read file: %w", err)
	}
	text, err := s.expand(file.Name, string(content))
	if err != nil {
		return result, err
	}
	statements := splitSQLStatements(text)

	err = s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		for _, stmt := range statements {
			res, err := tx.ExecContext(ctx, stmt)
			if err != nil {
				return fmt.Errorf("failed to execute SQL statement: %s, error: %w", stmt, err)
			}
			n, _ := res.RowsAffected()
			result.RowsAffected += n
		}
		return nil
	})
	result.Statements = len(statements)
	result.Duration = time.Since(start)
	return result, err
}

func (s *SQLInitializer) expand(name, content string) (string, error) {
	if !strings.Contains(content, "{{") {
		return content, nil
	}
	tmpl, err := template.New(name).Option("missingkey=error").Parse(content)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, map[string]string{"Schema": s.schema}); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}

// splitSQLStatements splits on lines ending with ";". Comment lines are
// dropped.
func splitSQLStatements(content string) []string {
	var (
		statements []string
		current    strings.Builder
	)
	flush := func() {
		if stmt := strings.TrimSpace(current.String()); stmt != "" {
			statements = append(statements, stmt)
		}
		current.Reset()
	}

	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		current.WriteString(line)
		current.WriteString(" ")
		if strings.HasSuffix(line, ";") {
			flush()
		}
	}
	flush()
	return statements
}
