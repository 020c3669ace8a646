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
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"
)

// OutputMode defines the output format for CLI commands.
type OutputMode string

const (
	ModeText OutputMode = "text"
	ModeJSON OutputMode = "json"
	ModeYAML OutputMode = "yaml"
)

// Formatter renders command output.
type Formatter interface {
	// PrintData writes data as JSON or YAML; in text mode it falls back to YAML.
	PrintData(data any) error

	PrintJSON(data any) error
	PrintYAML(data any) error

	// PrintTable writes rows under headers. Structured modes emit a list of
	// objects keyed by header.
	PrintTable(headers []string, rows [][]string) error

	// PrintSummary writes a one-line message (stderr in structured modes).
	PrintSummary(message string) error

	// PrintError writes err with optional suggestions.
	PrintError(err error, suggestions ...string) error

	// Mode reports the selected output mode.
	Mode() OutputMode

	// ColorEnabled reports whether text output may be styled.
	ColorEnabled() bool
}

type formatter struct {
	stdout io.Writer
	stderr io.Writer
	mode   OutputMode
	quiet  bool
	color  bool
}

// New creates a Formatter.
func New(stdout, stderr io.Writer, mode OutputMode, quiet, color bool) Formatter {
	return &formatter{
		stdout: stdout,
		stderr: stderr,
		mode:   mode,
		quiet:  quiet,
		color:  color,
	}
}

func (f *formatter) Mode() OutputMode { return f.mode }

func (f *formatter) ColorEnabled() bool { return f.color && f.mode == ModeText }

func (f *formatter) PrintJSON(data any) error {
	enc := json.NewEncoder(f.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func (f *formatter) PrintYAML(data any) error {
	enc := yaml.NewEncoder(f.stdout)
	enc.SetIndent(2)
	if err := enc.Encode(data); err != nil {
		return err
	}
	return enc.Close()
}

func (f *formatter) PrintData(data any) error {
	if f.mode == ModeJSON {
		return f.PrintJSON(data)
	}
	return f.PrintYAML(data)
}

func (f *formatter) PrintTable(headers []string, rows [][]string) error {
	if f.mode != ModeText {
		items := make([]map[string]string, 0, len(rows))
		for _, row := range rows {
			item := make(map[string]string, len(headers))
			for i, header := range headers {
				if i < len(row) {
					item[strings.ToLower(header)] = row[i]
				}
			}
			items = append(items, item)
		}
		return f.PrintData(items)
	}

	w := tabwriter.NewWriter(f.stdout, 0, 0, 2, ' ', 0)
	headerLine := make([]string, len(headers))
	for i, h := range headers {
		headerLine[i] = strings.ToUpper(h)
		if f.color {
			headerLine[i] = color.New(color.Bold).Sprint(headerLine[i])
		}
	}
	if _, err := fmt.Fprintln(w, strings.Join(headerLine, "\t")); err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := fmt.Fprintln(w, strings.Join(row, "\t")); err != nil {
			return err
		}
	}
	return w.Flush()
}

func (f *formatter) PrintSummary(message string) error {
	if f.quiet {
		return nil
	}
	if f.mode != ModeText {
		_, err := fmt.Fprintln(f.stderr, message)
		return err
	}
	if f.color {
		_, err := color.New(color.FgGreen).Fprintln(f.stdout, message)
		return err
	}
	_, err := fmt.Fprintln(f.stdout, message)
	return err
}

func (f *formatter) PrintError(err error, suggestions ...string) error {
	if err == nil {
		return nil
	}

	if f.mode == ModeJSON {
		payload := map[string]any{"success": false, "error": err.Error()}
		if len(suggestions) > 0 {
			payload["suggestions"] = suggestions
		}
		return f.PrintJSON(payload)
	}

	red := fmt.Sprintf
	if f.color {
		red = color.New(color.FgRed).Sprintf
	}
	var sb strings.Builder
	sb.WriteString(red("Error: %v\n", err))
	if len(suggestions) > 0 {
		sb.WriteString("\nSuggestions:\n")
		for _, s := range suggestions {
			sb.WriteString("  → " + s + "\n")
		}
	}
	_, writeErr := io.WriteString(f.stderr, sb.String())
	return writeErr
}

// ValidateMode checks if the output mode is valid.
func ValidateMode(mode string) error {
	switch OutputMode(strings.ToLower(mode)) {
	case ModeText, ModeJSON, ModeYAML:
		return nil
	default:
		return fmt.Errorf("invalid output mode: %s (must be 'text', 'json' or 'yaml')", mode)
	}
}

// ParseMode converts a string to OutputMode, defaulting to text.
func ParseMode(mode string) OutputMode {
	switch strings.ToLower(mode) {
	case "json":
		return ModeJSON
	case "yaml", "yml":
		return ModeYAML
	default:
		return ModeText
	}
}
