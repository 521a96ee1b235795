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

package fixturedb

import (
	"context"
	"testing"

	"github.com/tomoncle/fixturedb/config"
)

// New creates a handle for t and disconnects it when t finishes. The test is
// skipped when no test database is configured and fails when Create fails.
func New(t testing.TB, opts Options) *Handle {
	t.Helper()
	if !configured(opts) {
		t.Skipf("%s not set, skipping database test", config.DSNEnv)
	}
	h, err := Create(context.Background(), opts)
	if err != nil {
		t.Fatalf("fixturedb: %v", err)
	}
	t.Cleanup(func() {
		if err := h.Disconnect(context.Background()); err != nil {
			t.Errorf("fixturedb: disconnect: %v", err)
		}
	})
	return h
}

func configured(opts Options) bool {
	switch {
	case opts.DSN != "":
		return true
	case opts.Config != nil:
		return opts.Config.TestDSN != ""
	default:
		return Enabled()
	}
}
