// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/AleutianAI/metricpicker/services/journal"
	"github.com/AleutianAI/metricpicker/services/picker"
	"github.com/AleutianAI/metricpicker/services/semantic"
)

// ===== Styles =====

var (
	queryStyle   = lipgloss.NewStyle().Bold(true)
	matchStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	noMatchStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	nameStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
)

// isTerminal reports whether w is an interactive terminal. Anything that is
// not an *os.File (buffers in tests, pipes wrapped by cobra) is not.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ===== Resolutions =====

// resolution pairs a query with its decision for output.
type resolution struct {
	Query    string          `json:"query"`
	Decision picker.Decision `json:"decision"`
}

func renderResolutions(w io.Writer, results []resolution, tty bool) error {
	if !tty {
		return writeJSON(w, results)
	}
	for _, r := range results {
		line := noMatchStyle.Render(r.Decision.String())
		if r.Decision.IsMatch() {
			line = matchStyle.Render(r.Decision.String())
		}
		if _, err := fmt.Fprintf(w, "%s\n  %s\n", queryStyle.Render(r.Query), line); err != nil {
			return err
		}
	}
	return nil
}

// ===== Catalog =====

func renderCatalog(w io.Writer, catalog semantic.Catalog, tty bool) error {
	if !tty {
		if catalog == nil {
			catalog = semantic.Catalog{}
		}
		return writeJSON(w, catalog)
	}
	if len(catalog) == 0 {
		_, err := fmt.Fprintln(w, dimStyle.Render("(no metrics are available)"))
		return err
	}
	for _, m := range catalog {
		if _, err := fmt.Fprintf(w, "%s %s %s\n  %s\n",
			nameStyle.Render(m.Name),
			dimStyle.Render(string(m.Type)),
			m.Label,
			dimStyle.Render(m.Description),
		); err != nil {
			return err
		}
	}
	return nil
}

// ===== History =====

func renderHistory(w io.Writer, entries []journal.Entry, tty bool) error {
	if !tty {
		if entries == nil {
			entries = []journal.Entry{}
		}
		return writeJSON(w, entries)
	}
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, dimStyle.Render("(journal is empty)"))
		return err
	}
	for _, e := range entries {
		outcome := noMatchStyle.Render(e.Outcome + " " + e.Reason)
		if e.Metric != "" {
			outcome = matchStyle.Render(e.Outcome + " " + e.Metric)
		}
		if _, err := fmt.Fprintf(w, "%s %s\n  %s\n",
			dimStyle.Render(e.At.Local().Format(time.DateTime)),
			queryStyle.Render(e.Query),
			outcome,
		); err != nil {
			return err
		}
	}
	return nil
}
