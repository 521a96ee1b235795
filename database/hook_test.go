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
	"bytes"
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newQueryEvent(query string, err error) *bun.QueryEvent {
	return &bun.QueryEvent{Query: query, Err: err, StartTime: time.Now().Add(-time.Millisecond)}
}

func TestQueryLogHook(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	hook := NewQueryLogHook(&buf)
	ctx := context.Background()

	t.Setenv(sqlLogEnv, "")
	hook.AfterQuery(ctx, newQueryEvent("SELECT 1", nil))
	assert.Empty(t, buf.String())

	t.Setenv(sqlLogEnv, "1")
	hook.AfterQuery(ctx, newQueryEvent("SELECT 1", nil))
	assert.Empty(t, buf.String(), "level 1 prints failures only")
	hook.AfterQuery(ctx, newQueryEvent("SELECT broken", errors.New("syntax error")))
	assert.Contains(t, buf.String(), "SELECT broken")
	assert.Contains(t, buf.String(), "syntax error")

	buf.Reset()
	t.Setenv(sqlLogEnv, "2")
	hook.AfterQuery(ctx, newQueryEvent("INSERT INTO t VALUES (1)", nil))
	assert.Contains(t, buf.String(), "[FIXTUREDB]")
	assert.Contains(t, buf.String(), "INSERT INTO t VALUES (1)")

	buf.Reset()
	hook.AfterQuery(WithSilentQueries(ctx), newQueryEvent("SELECT 2", nil))
	assert.Empty(t, buf.String())

	hook.AfterQuery(ctx, newQueryEvent("SELECT 3", nil))
	assert.Contains(t, buf.String(), "SELECT 3", "silence is scoped to its context")
}

func TestSilentQueriesDuringDeployment(t *testing.T) {
	color.NoColor = true
	t.Setenv(sqlLogEnv, "2")
	ctx := context.Background()
	m, _ := newSQLiteManager(t)
	var buf bytes.Buffer
	m.GetDB().AddQueryHook(NewQueryLogHook(&buf))

	registry := NewModelRegistry()
	registry.Register(NewModelAdapter((*BlogPost)(nil), 1))
	require.NoError(t, NewDeploymentManager(m.GetDB(), registry, nil).DeploymentCheck(ctx))
	assert.NotContains(t, buf.String(), "blog_posts")

	buf.Reset()
	_, err := m.GetDB().ExecContext(ctx, "SELECT 1")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "SELECT 1")
}

type recordingLogger struct {
	warnings []string
}

func (l *recordingLogger) SetLevel(LogLevel)                       {}
func (l *recordingLogger) Debug(msg string, fields ...interface{}) {}
func (l *recordingLogger) Info(msg string, fields ...interface{})  {}
func (l *recordingLogger) Warn(msg string, fields ...interface{}) {
	l.warnings = append(l.warnings, msg)
}
func (l *recordingLogger) Error(msg string, fields ...interface{}) {}

func TestSlowQueryHook(t *testing.T) {
	logger := &recordingLogger{}
	hook := &slowQueryHook{slowTime: time.Microsecond, logger: logger}

	hook.AfterQuery(context.Background(), newQueryEvent("SELECT 1", nil))
	assert.Equal(t, []string{"Slow query detected"}, logger.warnings)

	hook.AfterQuery(context.Background(), newQueryEvent("SELECT 1", errors.New("failed")))
	assert.Len(t, logger.warnings, 1, "failed queries are not reported as slow")
}
