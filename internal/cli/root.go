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

// Package cli implements the fixturedb command.
package cli

import (
	"github.com/spf13/cobra"
	"github.com/tomoncle/fixturedb/config"
	"github.com/tomoncle/fixturedb/utils"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	DSN         string
	FixturesDir string
	ConfigFile  string
	EnvFile     string
	Verbose     bool
}

// NewRootCommand creates the root command of the fixturedb CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "fixturedb",
		Short: "Load fixture files into disposable test schemas",
		Long: `fixturedb creates an isolated schema in the test database, deploys the
registered models and loads YAML or JSON fixture files into it.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.Verbose {
				utils.ConfigureLogLevel("debug")
			}
		},
	}

	cmd.PersistentFlags().StringVar(&opts.DSN, "dsn", "", "test database DSN (default $"+config.DSNEnv+")")
	cmd.PersistentFlags().StringVarP(&opts.FixturesDir, "dir", "d", "", "fixture directory (default "+config.DefaultFixturesDir+")")
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "config file (default ./fixturedb.yaml)")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", config.DefaultEnvFile, "env file loaded before reading the environment")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(NewLoadCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewDropCommand(opts))

	return cmd
}

// loadConfig applies the global flags on top of config.Load.
func (o *RootOptions) loadConfig() (*config.Config, error) {
	var loaderOpts []config.LoaderOption
	if o.ConfigFile != "" {
		loaderOpts = append(loaderOpts, config.WithConfigFile(o.ConfigFile))
	}
	loaderOpts = append(loaderOpts, config.WithEnvFile(o.EnvFile))
	cfg, err := config.Load(loaderOpts...)
	if err != nil {
		return nil, err
	}
	if o.DSN != "" {
		cfg.TestDSN = o.DSN
	}
	if o.FixturesDir != "" {
		cfg.FixturesDir = o.FixturesDir
	}
	return cfg, nil
}
