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
	"github.com/tomoncle/fixturedb/fixture"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "validate [glob]",
		Short:         "Parse fixture files without touching a database",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			glob := ""
			if len(args) == 1 {
				glob = args[0]
			}
			return runValidate(cmd, rootOpts, glob)
		},
	}
}

func runValidate(cmd *cobra.Command, rootOpts *RootOptions, glob string) error {
	cfg, err := rootOpts.loadConfig()
	if err != nil {
		return err
	}
	files, err := fixture.Validate(cfg.FixturesDir, glob)
	if err != nil && files == nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "checked %d fixture file(s) in %s\n", len(files), cfg.FixturesDir)
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), err)
		return fmt.Errorf("fixture validation failed")
	}
	fmt.Fprintln(out, "ok")
	return nil
}
