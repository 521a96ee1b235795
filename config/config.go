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

// Package config reads fixturedb settings from the environment, an optional
// .env.test file and an optional fixturedb.yaml file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvPrefix = "FIXTUREDB"
	// DSNEnv names the test database. Without it fixturedb is disabled.
	DSNEnv = EnvPrefix + "_TEST_DSN"

	DefaultFixturesDir = "testdata/fixtures"
	DefaultEnvFile     = ".env.test"
	DefaultConfigName  = "fixturedb"
)

type Config struct {
	TestDSN        string        `mapstructure:"test_dsn"`
	FixturesDir    string        `mapstructure:"fixtures_dir"`
	KeepSchema     bool          `mapstructure:"keep_schema"`
	QueryLog       bool          `mapstructure:"query_log"`
	SlowQueryTime  time.Duration `mapstructure:"slow_query_time"`
	LogLevel       string        `mapstructure:"log_level"`
	ForeignKeyFile string        `mapstructure:"foreign_key_file"`
	// SQLDir holds .sql files run in each new schema before fixtures load.
	SQLDir string `mapstructure:"sql_dir"`
}

// LoaderConfig holds optional file overrides for Load.
type LoaderConfig struct {
	ConfigFile  string
	EnvFile     string
	SearchPaths []string
}

type LoaderOption func(*LoaderConfig)

// WithConfigFile reads settings from path instead of searching for
// fixturedb.yaml.
func WithConfigFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.ConfigFile = path }
}

// WithEnvFile loads path instead of .env.test.
func WithEnvFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvFile = path }
}

// WithSearchPaths adds directories searched for fixturedb.yaml.
func WithSearchPaths(paths ...string) LoaderOption {
	return func(lc *LoaderConfig) { lc.SearchPaths = append(lc.SearchPaths, paths...) }
}

// Load resolves the configuration. Precedence, highest first: environment
// (FIXTUREDB_*), the env file, the config file, defaults. Missing files are
// not an error unless named explicitly.
func Load(opts ...LoaderOption) (*Config, error) {
	lc := LoaderConfig{EnvFile: DefaultEnvFile}
	for _, opt := range opts {
		opt(&lc)
	}

	if lc.EnvFile != "" {
		if _, err := os.Stat(lc.EnvFile); err == nil {
			// godotenv.Load keeps variables already set in the environment.
			if err := godotenv.Load(lc.EnvFile); err != nil {
				return nil, fmt.Errorf("failed to load env file %s: %w", lc.EnvFile, err)
			}
		} else if lc.EnvFile != DefaultEnvFile {
			return nil, fmt.Errorf("env file %s: %w", lc.EnvFile, err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if lc.ConfigFile != "" {
		v.SetConfigFile(lc.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", lc.ConfigFile, err)
		}
	} else {
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		for _, p := range lc.SearchPaths {
			v.AddConfigPath(p)
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// Every key needs a default so AutomaticEnv values reach Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("test_dsn", "")
	v.SetDefault("fixtures_dir", DefaultFixturesDir)
	v.SetDefault("keep_schema", false)
	v.SetDefault("query_log", false)
	v.SetDefault("slow_query_time", 0)
	v.SetDefault("log_level", "info")
	v.SetDefault("foreign_key_file", "")
	v.SetDefault("sql_dir", "")
}
