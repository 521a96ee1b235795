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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	DSNEnv,
	EnvPrefix + "_FIXTURES_DIR",
	EnvPrefix + "_KEEP_SCHEMA",
	EnvPrefix + "_QUERY_LOG",
	EnvPrefix + "_SLOW_QUERY_TIME",
	EnvPrefix + "_LOG_LEVEL",
	EnvPrefix + "_FOREIGN_KEY_FILE",
	EnvPrefix + "_SQL_DIR",
}

// isolate runs the test in an empty directory with every config variable
// unset and restored afterwards.
func isolate(t *testing.T) string {
	t.Helper()
	for _, key := range configKeys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func write(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.TestDSN)
	assert.Equal(t, DefaultFixturesDir, cfg.FixturesDir)
	assert.False(t, cfg.KeepSchema)
	assert.Equal(t, time.Duration(0), cfg.SlowQueryTime)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadFromEnvironment(t *testing.T) {
	isolate(t)
	t.Setenv(DSNEnv, "postgres://localhost/app")
	t.Setenv(EnvPrefix+"_KEEP_SCHEMA", "true")
	t.Setenv(EnvPrefix+"_SLOW_QUERY_TIME", "250ms")
	t.Setenv(EnvPrefix+"_SQL_DIR", "testdata/sql")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/app", cfg.TestDSN)
	assert.True(t, cfg.KeepSchema)
	assert.Equal(t, 250*time.Millisecond, cfg.SlowQueryTime)
	assert.Equal(t, "testdata/sql", cfg.SQLDir)
}

func TestLoadConfigFile(t *testing.T) {
	dir := isolate(t)
	write(t, filepath.Join(dir, "fixturedb.yaml"), `
test_dsn: sqlite:///tmp/file.db
fixtures_dir: seeds
query_log: true
`)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite:///tmp/file.db", cfg.TestDSN)
	assert.Equal(t, "seeds", cfg.FixturesDir)
	assert.True(t, cfg.QueryLog)

	t.Setenv(DSNEnv, "sqlite:///tmp/env.db")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite:///tmp/env.db", cfg.TestDSN)
}

func TestLoadExplicitFiles(t *testing.T) {
	dir := isolate(t)
	other := filepath.Join(dir, "other")
	require.NoError(t, os.Mkdir(other, 0o755))
	path := write(t, filepath.Join(other, "settings.yaml"), "fixtures_dir: custom\n")

	cfg, err := Load(WithConfigFile(path))
	require.NoError(t, err)
	assert.Equal(t, "custom", cfg.FixturesDir)

	write(t, filepath.Join(other, "fixturedb.yaml"), "log_level: debug\n")
	cfg, err = Load(WithSearchPaths(other))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)

	_, err = Load(WithConfigFile(filepath.Join(dir, "missing.yaml")))
	assert.Error(t, err)
}

func TestLoadEnvFile(t *testing.T) {
	dir := isolate(t)
	write(t, filepath.Join(dir, DefaultEnvFile), DSNEnv+"=sqlite:///tmp/dotenv.db\n")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite:///tmp/dotenv.db", cfg.TestDSN)
}

func TestLoadEnvFileKeepsEnvironment(t *testing.T) {
	dir := isolate(t)
	path := write(t, filepath.Join(dir, "ci.env"), DSNEnv+"=sqlite:///tmp/dotenv.db\n")
	t.Setenv(DSNEnv, "sqlite:///tmp/real.db")

	cfg, err := Load(WithEnvFile(path))
	require.NoError(t, err)
	assert.Equal(t, "sqlite:///tmp/real.db", cfg.TestDSN)

	_, err = Load(WithEnvFile(filepath.Join(dir, "missing.env")))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
