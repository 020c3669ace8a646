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
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/vulntor/netscout/cmd/netscout/internal/format"
	"github.com/vulntor/netscout/pkg/appctx"
	"github.com/vulntor/netscout/pkg/config"
	"github.com/vulntor/netscout/pkg/probe"
	"github.com/vulntor/netscout/pkg/scanexec"
)

var errNotInitialized = errors.New("session service not initialized")

// addProbeFlags defines the timing flags shared by every probing command.
// Their names match configuration keys, so values set here override the
// config file and environment.
func addProbeFlags(cmd *cobra.Command) {
	def := config.DefaultConfig().Probe
	flags := cmd.Flags()
	flags.Duration("timeout", def.Timeout, "Per-probe timeout")
	flags.DurationP("waittime", "w", def.WaitTime, "Extra wait for late replies")
	flags.Duration("rate", def.Rate, "Minimum interval between sends (0 = unthrottled)")
	flags.Duration("overall-timeout", def.OverallTimeout, "Deadline for the whole session (0 = none)")
	flags.Int("concurrency", def.Concurrency, "Maximum probes in flight")
	flags.BoolP("no-random", "R", false, "Probe targets and ports in order")
	flags.StringP("interface", "i", "", "Network interface for link-layer probes")
	flags.StringP("save", "o", "", "Also write the result to this file (.json, .yaml)")
}

// exactArgs is cobra.ExactArgs with the error mapped to an invalid target.
func exactArgs(n int, what string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return scanexec.NewInvalidTargetError(what, fmt.Errorf("accepts %d arg(s), received %d", n, len(args)))
		}
		return nil
	}
}

// minArgs is cobra.MinimumNArgs with the error mapped to missing targets.
func minArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) < n {
			return scanexec.NewInvalidTargetError("", nil)
		}
		return nil
	}
}

// session returns the service and configuration attached by the root command.
func session(cmd *cobra.Command) (*scanexec.Service, config.Config, error) {
	svc, ok := appctx.Service(cmd.Context())
	if !ok {
		return nil, config.Config{}, errNotInitialized
	}
	return svc, appctx.Settings(cmd.Context()), nil
}

// formatterFor builds the output formatter from configuration and flags.
func formatterFor(cmd *cobra.Command) format.Formatter {
	cfg := appctx.Settings(cmd.Context())
	return format.FromCommand(cmd, cfg.Output.Format, cfg.Output.Color)
}

// report renders a session result and saves it when --save is set. A result
// returned alongside an error is still shown; the error is passed through.
func report[T any, P interface {
	*T
	probe.Result
}](cmd *cobra.Command, res P, runErr error) error {
	if res == nil {
		return runErr
	}
	if err := format.RenderResult(formatterFor(cmd), res); err != nil {
		return errors.Join(runErr, err)
	}

	if path, _ := cmd.Flags().GetString("save"); path != "" {
		if err := format.Save(path, res); err != nil {
			return errors.Join(runErr, err)
		}
		log.Info().Str("path", path).Str("probe_id", res.Meta().ProbeID).Msg("result saved")
	}
	return runErr
}
