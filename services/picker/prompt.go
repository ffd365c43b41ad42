// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package picker

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/AleutianAI/metricpicker/services/semantic"
)

// =============================================================================
// Prompt Builder
// =============================================================================

// promptData is the data rendered into promptTemplate.
type promptData struct {
	Query    string
	Metrics  []string
	Example  string
	Sentinel string
}

// exampleMetric is shown in the prompt to pin the answer format. It is not
// taken from the catalog.
var exampleMetric = semantic.Metric{
	Name:        "total_revenue",
	Type:        semantic.MetricTypeSimple,
	Label:       "Total Revenue",
	Description: "Total revenue from all orders",
}

// promptTemplate is the conservative classifier prompt.
const promptTemplate = `You are a data analytics expert tasked with identifying the single most relevant metric from a dbt semantic layer based on a user query. You MUST be extremely conservative and precise in your matching.

# User Query
"{{.Query}}"

# Available Metrics
{{- range .Metrics}}
{{.}}
{{- end}}

# Task
Identify the SINGLE most relevant Metric from the available metrics that best matches the user's query. If there is ANY uncertainty, ambiguity, or imperfect match, return an empty list {{.Sentinel}}.

# Strict Analysis Requirements
1. The user query MUST have a clear, unambiguous intent that directly corresponds to ONE specific metric
2. The metric's name, label, OR description MUST contain explicit terminology that directly matches the user's request
3. There MUST be semantic alignment between:
   - The user's explicit data request AND the metric's stated purpose
   - The user's business context AND the metric's business domain
   - The user's measurement intent AND the metric's calculation scope

# Matching Criteria (ALL must be satisfied)
- EXACT semantic correspondence: The metric must measure precisely what the user is asking for
- TERMINOLOGY alignment: Key terms in the query must be explicitly present or directly synonymous in the metric's properties
- SCOPE compatibility: The metric's measurement scope must exactly match the user's intended analysis scope
- CONTEXT appropriateness: The metric must be relevant to the user's implied business context

# Assumptions STRICTLY FORBIDDEN
- Do NOT assume related metrics are equivalent (e.g., "revenue" is not "profit" is not "sales")
- Do NOT assume business context not explicitly stated in the query
- Do NOT assume time periods, aggregation levels, or filtering criteria
- Do NOT assume the user means something broader or narrower than stated
- Do NOT make inferential leaps about user intent
- Do NOT consider "close enough" matches as valid

# Response Format
Return the COMPLETE single most relevant Metric AS IS, exactly as it appears in the list above.
If there is ANY doubt, uncertainty, ambiguity, or imperfect alignment, return exactly {{.Sentinel}}

# Example Response (ONLY if a perfect match exists)
{{.Example}}

# Critical Requirements
- Return ONE complete Metric ONLY if you are certain it is what the user asked for
- If multiple metrics seem relevant, return {{.Sentinel}} (ambiguity means no match)
- If the query is vague, unclear, or could apply to multiple metrics, return {{.Sentinel}}
- If you need to make ANY assumption about user intent, return {{.Sentinel}}
- Do not modify the metric's structure or content
- Do not add explanations, reasoning, or additional text in your response
- When in doubt, return {{.Sentinel}}

# Conservative Matching Philosophy
A wrong metric is far worse than no metric. Precision over recall. Zero tolerance for assumptions.
`

var promptTmpl = template.Must(template.New("picker").Parse(promptTemplate))

// BuildPrompt renders the classifier prompt for one resolution.
//
// Description:
//
//	Lists every catalog metric in its canonical serialization, in catalog
//	order, followed by the matching doctrine and the output contract: the
//	exact serialization of one metric, or EmptySentinel. The query is
//	embedded verbatim.
//
// Inputs:
//
//	catalog - Metrics the model may choose from. May be empty.
//	query   - The user's question.
//
// Outputs:
//
//	string - The rendered prompt.
//	error  - Non-nil if template rendering fails.
//
// Thread Safety: Safe for concurrent use. The output depends only on the
// inputs.
func BuildPrompt(catalog semantic.Catalog, query string) (string, error) {
	data := promptData{
		Query:    query,
		Metrics:  make([]string, len(catalog)),
		Example:  Serialize(exampleMetric),
		Sentinel: EmptySentinel,
	}
	for i, m := range catalog {
		data.Metrics[i] = Serialize(m)
	}

	var buf bytes.Buffer
	if err := promptTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("picker: rendering prompt: %w", err)
	}
	return buf.String(), nil
}
