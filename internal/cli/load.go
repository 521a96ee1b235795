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
	"sort"

	"github.com/spf13/cobra"
	"github.com/tomoncle/fixturedb"
)

type loadOptions struct {
	schema     string
	drop       bool
	skipSchema bool
	sqlDir     string
}

// NewLoadCommand creates the load command. The schema is kept after loading;
// remove it with drop.
func NewLoadCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &loadOptions{}
	cmd := &cobra.Command{
		Use:   "load [glob]",
		Short: "Create a schema and load fixture files into it",
		Long: `Create a schema (random unless --schema is given), run the .sql files of
--sql-dir in it and load the fixture files matching glob. The schema is left
in place for inspection.`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			glob := ""
			if len(args) == 1 {
				glob = args[0]
			}
			return runLoad(cmd, rootOpts, opts, glob)
		},
	}
	cmd.Flags().StringVarP(&opts.schema, "schema", "s", "", "schema name (default random test_<hex>)")
	cmd.Flags().BoolVar(&opts.drop, "drop-existing", false, "drop a schema with the same name first")
	cmd.Flags().BoolVar(&opts.skipSchema, "skip-schema", false, "load into the default namespace")
	cmd.Flags().StringVar(&opts.sqlDir, "sql-dir", "", "directory of .sql files creating the tables")
	return cmd
}

func runLoad(cmd *cobra.Command, rootOpts *RootOptions, opts *loadOptions, glob string) error {
	cfg, err := rootOpts.loadConfig()
	if err != nil {
		return err
	}
	if cfg.TestDSN == "" {
		return fixturedb.ErrNotConfigured
	}

	ctx := cmd.Context()
	h, err := fixturedb.Create(ctx, fixturedb.Options{
		SkipSchema:   opts.skipSchema,
		SchemaName:   opts.schema,
		DropSchema:   opts.drop,
		SkipFixtures: true,
		KeepSchema:   true,
		SQLDir:       opts.sqlDir,
		Config:       cfg,
	})
	if err != nil {
		return err
	}
	defer func() { _ = h.Disconnect(ctx) }()

	result, err := h.LoadFixtures(ctx, glob)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if h.Schema() != "" {
		fmt.Fprintf(out, "schema: %s\n", h.Schema())
	}
	for _, file := range result.Files {
		fmt.Fprintf(out, "loaded: %s\n", file)
	}
	fmt.Fprintf(out, "rows: %d\n", result.Rows)

	tables := make([]string, 0, len(result.Sequences))
	for table := range result.Sequences {
		tables = append(tables, table)
	}
	sort.Strings(tables)
	for _, table := range tables {
		fmt.Fprintf(out, "sequence: %s next=%d\n", table, result.Sequences[table])
	}
	return nil
}
