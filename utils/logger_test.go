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

package utils

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, ParseLogLevel("DEBUG"))
	assert.Equal(t, logrus.WarnLevel, ParseLogLevel(" warning "))
	assert.Equal(t, logrus.InfoLevel, ParseLogLevel(""))
	assert.Equal(t, logrus.InfoLevel, ParseLogLevel("loud"))
}

func TestNewLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	SetConsoleWriter(&buf)
	defer SetConsoleWriter(nil)

	l := NewLogger("LEVELS")
	require.True(t, SetLoggerLevel("LEVELS", "warn"))
	l.Info("quiet")
	l.Warn("loud")
	assert.NotContains(t, buf.String(), "quiet")
	assert.Contains(t, buf.String(), "loud")
	assert.Contains(t, buf.String(), "LEVELS")

	assert.False(t, SetLoggerLevel("NOPE", "debug"))
}

func TestJSONLogFormatter(t *testing.T) {
	f := &JSONLogFormatter{LoggerName: "FIXTUREDB"}
	entry := logrus.NewEntry(logrus.New())
	entry.Level = logrus.InfoLevel
	entry.Message = "Fixtures loaded"
	entry.Time = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	entry.Data = logrus.Fields{"rows": 2}

	b, err := f.Format(entry)
	require.NoError(t, err)

	var rec map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &rec))
	assert.Equal(t, "info", rec["level"])
	assert.Equal(t, "FIXTUREDB", rec["model"])
	assert.Equal(t, "Fixtures loaded", rec["message"])
	assert.Equal(t, "2025-01-02 03:04:05.000", rec["time"])
}

func TestEnvDefaults(t *testing.T) {
	t.Setenv("FIXTUREDB_UTILS_STR", "x")
	t.Setenv("FIXTUREDB_UTILS_BOOL", "true")
	t.Setenv("FIXTUREDB_UTILS_DUR", "150ms")

	assert.Equal(t, "x", EnvDefaultString("FIXTUREDB_UTILS_STR", "y"))
	assert.Equal(t, "y", EnvDefaultString("FIXTUREDB_UTILS_MISSING", "y"))
	assert.True(t, EnvDefaultBool("FIXTUREDB_UTILS_BOOL", false))
	assert.Equal(t, 150*time.Millisecond, EnvDefaultDuration("FIXTUREDB_UTILS_DUR", time.Second))
	assert.Equal(t, time.Second, EnvDefaultDuration("FIXTUREDB_UTILS_MISSING", time.Second))
}
