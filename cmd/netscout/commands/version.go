// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vulntor/netscout/cmd/netscout/internal/format"
	"github.com/vulntor/netscout/pkg/version"
)

func newVersionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "version",
		Short:   "Print version information",
		GroupID: "core",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if short, _ := cmd.Flags().GetBool("short"); short {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), version.Version)
				return err
			}
			f := formatterFor(cmd)
			if f.Mode() != format.ModeText {
				return f.PrintData(version.Get())
			}
			v := version.Get()
			return f.PrintTable([]string{"Version", "Commit", "Built", "Go", "Platform"}, [][]string{{
				v.Version, v.Commit, v.BuildDate, v.GoVersion, v.Platform,
			}})
		},
	}
	cmd.Flags().Bool("short", false, "Print only the version number")
	return cmd
}
