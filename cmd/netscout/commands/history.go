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
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/vulntor/netscout/cmd/netscout/internal/format"
	"github.com/vulntor/netscout/pkg/probe"
	"github.com/vulntor/netscout/pkg/scanexec"
	"github.com/vulntor/netscout/pkg/storage"
	"github.com/vulntor/netscout/pkg/stringutil"
)

func newHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Browse stored sessions",
		Long: `Browse the sessions stored in the workspace. Every probing command stores
its result unless --no-persist is given.`,
		GroupID: "core",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryList(cmd)
		},
	}
	addHistoryFilterFlags(cmd)

	list := &cobra.Command{
		Use:   "list",
		Short: "List sessions, newest first",
		Example: `  netscout history list --type Ping --since 24h
  netscout history list --follow`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistoryList(cmd)
		},
	}
	addHistoryFilterFlags(list)

	show := &cobra.Command{
		Use:   "show <probe-id>",
		Short: "Show a stored session result",
		Args:  exactArgs(1, "probe id"),
		RunE: func(cmd *cobra.Command, args []string) error {
			history, err := historyStore(cmd)
			if err != nil {
				return err
			}
			res, err := history.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return format.RenderResult(formatterFor(cmd), res)
		},
	}

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Count stored sessions per command",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			history, err := historyStore(cmd)
			if err != nil {
				return err
			}
			counts, err := history.Stats(cmd.Context())
			if err != nil {
				return err
			}
			f := formatterFor(cmd)
			if f.Mode() != format.ModeText {
				return f.PrintData(counts)
			}
			rows := make([][]string, 0, len(counts))
			total := 0
			for _, ct := range probe.CommandTypes() {
				if n := counts[ct]; n > 0 {
					rows = append(rows, []string{string(ct), strconv.Itoa(n)})
					total += n
				}
			}
			if err := f.PrintTable([]string{"Command", "Sessions"}, rows); err != nil {
				return err
			}
			return f.PrintSummary(stringutil.Plural(total, "session"))
		},
	}

	targets := &cobra.Command{
		Use:   "targets",
		Short: "List distinct probed targets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			history, err := historyStore(cmd)
			if err != nil {
				return err
			}
			all, err := history.Targets(cmd.Context())
			if err != nil {
				return err
			}
			f := formatterFor(cmd)
			if f.Mode() != format.ModeText {
				return f.PrintData(all)
			}
			rows := make([][]string, 0, len(all))
			for _, t := range all {
				rows = append(rows, []string{t})
			}
			return f.PrintTable([]string{"Target"}, rows)
		},
	}

	cmd.AddCommand(list, show, stats, targets)
	return cmd
}

func addHistoryFilterFlags(cmd *cobra.Command) {
	cmd.Flags().String("target", "", "Only sessions for this target")
	cmd.Flags().StringSlice("type", nil, "Only these command types, e.g. PortScan,Ping")
	cmd.Flags().String("since", "", "Only sessions issued after this time (RFC3339 or a duration such as 24h)")
	cmd.Flags().String("until", "", "Only sessions issued before this time (RFC3339 or a duration)")
	cmd.Flags().Int("limit", storage.DefaultListLimit, "Page size")
	cmd.Flags().String("cursor", "", "Continue from a previous page")
	cmd.Flags().Bool("follow", false, "Stream sessions as they are stored")
}

func historyStore(cmd *cobra.Command) (storage.HistoryStore, error) {
	backend, ok := storage.BackendFromContext(cmd.Context())
	if !ok {
		return nil, errNotInitialized
	}
	return backend.History(), nil
}

// historyFilter reads the filter flags. Relative times count back from now.
func historyFilter(cmd *cobra.Command, now time.Time) (storage.ListFilter, error) {
	target, _ := cmd.Flags().GetString("target")
	types, _ := cmd.Flags().GetStringSlice("type")
	since, _ := cmd.Flags().GetString("since")
	until, _ := cmd.Flags().GetString("until")
	limit, _ := cmd.Flags().GetInt("limit")
	cursor, _ := cmd.Flags().GetString("cursor")

	filter := storage.ListFilter{Target: target, Limit: limit, Cursor: cursor}
	for _, t := range types {
		idx := slices.IndexFunc(probe.CommandTypes(), func(ct probe.CommandType) bool {
			return string(ct) == t
		})
		if idx < 0 {
			return filter, scanexec.NewInvalidOptionsError(fmt.Errorf("unknown command type %q", t))
		}
		filter.Types = append(filter.Types, probe.CommandTypes()[idx])
	}

	var err error
	if filter.Since, err = parseTimeFlag("since", since, now); err != nil {
		return filter, err
	}
	if filter.Until, err = parseTimeFlag("until", until, now); err != nil {
		return filter, err
	}
	return filter, nil
}

func parseTimeFlag(name, value string, now time.Time) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if d, err := time.ParseDuration(value); err == nil {
		return now.Add(-d), nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, scanexec.NewInvalidOptionsError(fmt.Errorf("--%s: expected RFC3339 time or duration, got %q", name, value))
	}
	return t, nil
}

func runHistoryList(cmd *cobra.Command) error {
	history, err := historyStore(cmd)
	if err != nil {
		return err
	}
	filter, err := historyFilter(cmd, time.Now())
	if err != nil {
		return err
	}
	f := formatterFor(cmd)

	if follow, _ := cmd.Flags().GetBool("follow"); follow {
		sessions, err := history.Follow(cmd.Context(), filter)
		if err != nil {
			return err
		}
		_ = f.PrintSummary("waiting for new sessions (Ctrl-C to stop)")
		enc := json.NewEncoder(cmd.OutOrStdout())
		for s := range sessions {
			if f.Mode() != format.ModeText {
				if err := enc.Encode(s); err != nil {
					return err
				}
				continue
			}
			if err := f.PrintSummary(format.Banner(s, f.ColorEnabled())); err != nil {
				return err
			}
		}
		return nil
	}

	page, err := history.List(cmd.Context(), filter)
	if err != nil {
		return err
	}
	if f.Mode() != format.ModeText {
		return f.PrintData(page)
	}

	rows := make([][]string, 0, len(page.Sessions))
	for _, s := range page.Sessions {
		rows = append(rows, []string{
			s.ProbeID,
			s.IssuedAt.Local().Format(time.DateTime),
			string(s.CommandType),
			stringutil.Ellipsis(s.Target, 40),
			string(s.ProbeStatus),
			stringutil.Millis(s.ElapsedTime),
		})
	}
	if err := f.PrintTable([]string{"Probe ID", "Issued", "Command", "Target", "Status", "Elapsed"}, rows); err != nil {
		return err
	}
	summary := fmt.Sprintf("%d of %s", len(page.Sessions), stringutil.Plural(page.Total, "session"))
	if page.NextCursor != "" {
		summary += "; next page: --cursor " + page.NextCursor
	}
	return f.PrintSummary(summary)
}
