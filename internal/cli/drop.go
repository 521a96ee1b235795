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

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tomoncle/fixturedb"
	"github.com/tomoncle/fixturedb/database"
)

// NewDropCommand creates the drop command for schemas kept by load.
func NewDropCommand(rootOpts *RootOptions) *cobra.Command {
	var schemas []string
	cmd := &cobra.Command{
		Use:          "drop --schema NAME [--schema NAME...]",
		Short:        "Drop schemas left by load",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDrop(cmd, rootOpts, schemas)
		},
	}
	cmd.Flags().StringSliceVarP(&schemas, "schema", "s", nil, "schema to drop")
	_ = cmd.MarkFlagRequired("schema")
	return cmd
}

func runDrop(cmd *cobra.Command, rootOpts *RootOptions, schemas []string) error {
	cfg, err := rootOpts.loadConfig()
	if err != nil {
		return err
	}
	if cfg.TestDSN == "" {
		return fixturedb.ErrNotConfigured
	}
	for _, name := range schemas {
		if err := database.ValidateSchemaName(name); err != nil {
			return err
		}
	}

	ctx := cmd.Context()
	connCfg := database.DefaultConnectionConfig()
	connCfg.DSN = cfg.TestDSN
	manager, err := database.NewDatabaseFactory().Connect(ctx, connCfg)
	if err != nil {
		return err
	}
	defer func() { _ = manager.Disconnect() }()

	for _, name := range schemas {
		if err := database.DropSchema(ctx, manager, &database.Schema{Name: name, Owned: true}); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "dropped: %s\n", name)
	}
	return nil
}
