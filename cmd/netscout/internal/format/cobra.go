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

package format

import (
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

// FromCommand builds a Formatter from the command writers and the output,
// json, quiet and no-color flags. mode is the configured default.
func FromCommand(cmd *cobra.Command, mode string, colorEnabled bool) Formatter {
	stdout := cmd.OutOrStdout()
	stderr := cmd.ErrOrStderr()

	outputMode := ParseMode(mode)
	if flag := cmd.Flags().Lookup("output"); flag != nil && flag.Changed {
		outputMode = ParseMode(flag.Value.String())
	}
	if flag := cmd.Flags().Lookup("json"); flag != nil {
		if val, err := strconv.ParseBool(flag.Value.String()); err == nil && val {
			outputMode = ModeJSON
		}
	}

	quiet := false
	if flag := cmd.Flags().Lookup("quiet"); flag != nil {
		if val, err := strconv.ParseBool(flag.Value.String()); err == nil {
			quiet = val
		}
	}

	if flag := cmd.Flags().Lookup("no-color"); flag != nil {
		if val, err := strconv.ParseBool(flag.Value.String()); err == nil && val {
			colorEnabled = false
		}
	}

	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return New(stdout, stderr, outputMode, quiet, colorEnabled)
}
