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
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/vulntor/netscout/pkg/appctx"
	"github.com/vulntor/netscout/pkg/config"
	"github.com/vulntor/netscout/pkg/fingerprint"
	"github.com/vulntor/netscout/pkg/logging"
	"github.com/vulntor/netscout/pkg/scanexec"
	"github.com/vulntor/netscout/pkg/storage"
)

const cliExecutable = "netscout"

// runtime holds what PersistentPreRunE opened. Execute closes it whether or
// not the command succeeded; cobra skips post-run hooks after an error.
type runtime struct {
	backend   storage.Backend
	telemetry *fingerprint.TelemetryWriter
	closeLog  func() error
}

func (r *runtime) close() error {
	var errs []error
	if r.backend != nil {
		errs = append(errs, r.backend.Close())
	}
	if r.telemetry != nil {
		errs = append(errs, r.telemetry.Close())
	}
	if r.closeLog != nil {
		errs = append(errs, r.closeLog())
	}
	return errors.Join(errs...)
}

// Execute runs netscout with args and releases the workspace, telemetry
// file and log file opened for the invocation.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	rt := &runtime{}
	cmd := newRootCommand(rt)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	return errors.Join(err, rt.close())
}

// newRootCommand constructs the top-level netscout command: it loads the
// configuration, sets up logging, opens the workspace and wires the session
// service onto the command context.
func newRootCommand(rt *runtime) *cobra.Command {
	var (
		configFile     string
		verbosityCount int
	)

	cmd := &cobra.Command{
		Use:   cliExecutable,
		Short: "netscout probes hosts, ports and routes and fingerprints what answers",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			mgr := config.NewManager()
			if err := mgr.Load(cmd.Flags(), configFile); err != nil {
				return scanexec.NewInvalidOptionsError(fmt.Errorf("load configuration: %w", err))
			}
			cfg := mgr.Get()

			closeLog, err := logging.ConfigureGlobalLogging(logging.Options{
				Level:  logging.LevelForVerbosity(cfg.Log.Level, verbosityCount),
				Format: cfg.Log.Format,
				File:   cfg.Log.File,
			})
			if err != nil {
				return fmt.Errorf("configure logging: %w", err)
			}
			rt.closeLog = closeLog

			storageCfg, err := cfg.StorageConfig()
			if err != nil {
				return scanexec.NewStorageError(fmt.Errorf("resolve workspace: %w", err))
			}
			backend, err := storage.NewBackend(cmd.Context(), storageCfg)
			if err != nil {
				return scanexec.NewStorageError(fmt.Errorf("open storage: %w", err))
			}
			if err := backend.Initialize(cmd.Context()); err != nil {
				return scanexec.NewStorageError(fmt.Errorf("initialize storage: %w", err))
			}
			rt.backend = backend
			log.Debug().Str("workspace", storageCfg.WorkspaceRoot).Msg("workspace ready")

			telemetry, err := fingerprint.NewTelemetryWriter(cfg.Log.TelemetryFile)
			if err != nil {
				return fmt.Errorf("open telemetry: %w", err)
			}
			rt.telemetry = telemetry

			svc := scanexec.NewService(backend).
				WithResolver(fingerprint.NewResolver(backend.Corpus(), fingerprint.WithTelemetry(telemetry))).
				WithProgressSink(newLogProgress())

			ctx := appctx.WithConfig(cmd.Context(), mgr)
			ctx = appctx.WithService(ctx, svc)
			ctx = storage.WithBackend(ctx, backend)

			cmd.SetContext(ctx)
			if root := cmd.Root(); root != nil && root != cmd {
				root.SetContext(ctx)
			}
			return nil
		},
	}

	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return scanexec.NewInvalidOptionsError(err)
	})

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "Configuration file path (default "+config.DefaultConfigFile()+")")
	cmd.PersistentFlags().CountVarP(&verbosityCount, "verbosity", "v", "Increase logging verbosity (repeatable)")
	cmd.PersistentFlags().String("output", config.DefaultConfig().Output.Format, "Output format (text, json, yaml)")
	cmd.PersistentFlags().BoolP("json", "j", false, "Shorthand for --output json")
	cmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress summaries")
	config.BindFlags(cmd.PersistentFlags())

	cmd.AddGroup(&cobra.Group{ID: "probe", Title: "Probe Commands"})
	cmd.AddGroup(&cobra.Group{ID: "lookup", Title: "Lookup Commands"})
	cmd.AddGroup(&cobra.Group{ID: "core", Title: "Core Commands"})

	cmd.AddCommand(
		newPortCommand(),
		newHostCommand(),
		newPingCommand(),
		newTraceCommand(),
		newSubdomainCommand(),
		newNeighborCommand(),
		newInterfacesCommand(),
		newOSCommand(),
		newServiceCommand(),
		newHistoryCommand(),
		newVersionCommand(),
	)

	return cmd
}
