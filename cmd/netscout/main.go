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

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/vulntor/netscout/cmd/netscout/commands"
	"github.com/vulntor/netscout/cmd/netscout/internal/format"
	"github.com/vulntor/netscout/pkg/fingerprint"
	"github.com/vulntor/netscout/pkg/scanexec"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := commands.Execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err == nil {
		return
	}

	code, suggestions := scanexec.ExitCode(err), scanexec.Suggestions(err)
	if errors.Is(err, fingerprint.ErrInvalidQuery) || errors.Is(err, fingerprint.ErrCorpusUnavailable) {
		code, suggestions = fingerprint.ExitCode(err), fingerprint.Suggestions(err)
	}
	_ = format.New(os.Stdout, os.Stderr, format.ModeText, false, true).PrintError(err, suggestions...)
	os.Exit(code)
}
