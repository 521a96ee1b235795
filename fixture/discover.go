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
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultGlob matches every supported fixture file.
const DefaultGlob = "*"

var supportedExtensions = map[string]bool{
	".yaml": true,
	".yml":  true,
	".json": true,
}

// IsFixtureFile reports whether name has a supported extension.
func IsFixtureFile(name string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(name))]
}

// Match returns the paths of fixture files in dir whose names match glob,
// sorted by name. Paths are dir joined with the file name; the working
// directory is never changed.
func Match(dir, glob string) ([]string, error) {
	if glob == "" {
		glob = DefaultGlob
	}
	if _, err := filepath.Match(glob, ""); err != nil {
		return nil, fmt.Errorf("invalid fixture pattern %q: %w", glob, err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !IsFixtureFile(entry.Name()) {
			continue
		}
		ok, _ := filepath.Match(glob, entry.Name())
		if ok {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(dir, name)
	}
	return paths, nil
}
