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
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vulntor/netscout/pkg/scanexec"
)

// logProgress reports session progress through the global logger. Probe
// events are debug level; session milestones are info level so -v shows them.
type logProgress struct {
	logger zerolog.Logger
}

func newLogProgress() *logProgress {
	return &logProgress{logger: log.With().Str("component", "progress").Logger()}
}

func (p *logProgress) OnEvent(ev scanexec.ProgressEvent) {
	event := p.logger.Debug()
	switch ev.Phase {
	case "finalize", "persist", "precheck", "resolve":
		event = p.logger.Info()
	}
	event = event.Str("phase", ev.Phase).Str("status", ev.Status)
	if ev.ProbeID != "" {
		event = event.Str("probe_id", ev.ProbeID)
	}
	if ev.Target != "" {
		event = event.Str("target", ev.Target)
	}
	if ev.Message != "" {
		event = event.Str("detail", ev.Message)
	}
	event.Time("at", ev.Timestamp).Msg(ev.Phase)
}
