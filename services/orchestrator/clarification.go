// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package orchestrator

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/metricpicker/services/semantic"
)

// SelectionRequiredMarker opens every clarification message. Callers treat
// it as a hard stop.
const SelectionRequiredMarker = "METRIC_SELECTION_REQUIRED"

// noMetricsLine replaces the metric listing when the catalog is empty.
const noMetricsLine = "(no metrics are available)"

// exampleTemplates are filled with catalog metric names, index i using
// metric min(i, len-1).
var exampleTemplates = []string{
	`- "What was our %s last month?"`,
	`- "Show me %s by region"`,
	`- "Calculate %s for top customers"`,
}

// Clarification builds the message returned instead of a query result when
// no metric was resolved.
//
// Description:
//
//	Lists every catalog metric as "• name (label): description" in catalog
//	order and asks the caller to reformulate. Example queries reuse the
//	first three metric names, repeating the last one for short catalogs.
//	An empty catalog yields a well-formed message without examples.
//
// Inputs:
//
//	catalog - The catalog the resolution ran against. May be empty.
//
// Outputs:
//
//	string - The clarification text, starting with SelectionRequiredMarker.
func Clarification(catalog semantic.Catalog) string {
	var b strings.Builder
	b.WriteString(SelectionRequiredMarker)
	b.WriteString("\n\nI cannot determine which specific metric your query refers to. This is a FIRM STOP point that requires your input.\n\n")

	b.WriteString("## Available Metrics:\n")
	if len(catalog) == 0 {
		b.WriteString(noMetricsLine)
		b.WriteString("\n")
	}
	for _, m := range catalog {
		fmt.Fprintf(&b, "• %s (%s): %s\n", m.Name, m.Label, m.Description)
	}

	b.WriteString("\n## Required Action:\n")
	b.WriteString("Please reformulate your query to clearly specify which metric you want to use.\n")

	if len(catalog) > 0 {
		b.WriteString("\nExamples of clear queries:\n")
		for i, tmpl := range exampleTemplates {
			m := catalog[min(i, len(catalog)-1)]
			fmt.Fprintf(&b, tmpl, m.Name)
			b.WriteString("\n")
		}
	}

	b.WriteString("\nNO FURTHER ACTIONS WILL BE TAKEN until you provide a clarified query.\n")
	return b.String()
}
