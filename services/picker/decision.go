// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package picker resolves a natural-language analytics question to at most
// one metric from a catalog.
//
// The package has three pure pieces and one orchestrating type:
//
//   - BuildPrompt renders the catalog and query into the classifier prompt.
//   - Serialize renders a metric in its canonical textual form.
//   - Match recovers zero or one catalog metric from raw model text.
//   - Engine runs prompt, model call and match, and absorbs every failure
//     into a NoMatch Decision.
//
// A Matched Decision always carries a value-equal member of the catalog
// passed to that call. Nothing persists between calls.
package picker

import (
	"encoding/json"
	"fmt"

	"github.com/AleutianAI/metricpicker/services/semantic"
)

// Reason explains why a resolution ended without a match. Values are safe to
// use as metric labels.
type Reason string

// NoMatch reasons.
const (
	// ReasonNone is the reason carried by a Matched decision.
	ReasonNone Reason = ""

	// ReasonEmptyCatalog means there was nothing to choose from. The model
	// is not called.
	ReasonEmptyCatalog Reason = "empty_catalog"

	// ReasonTransportFailure covers every model gateway failure, including
	// timeouts, cancellation and a panicking gateway.
	ReasonTransportFailure Reason = "transport_failure"

	// ReasonExplicitRejection means the model answered with the empty-result
	// sentinel or said it had no match.
	ReasonExplicitRejection Reason = "explicit_rejection"

	// ReasonParseFailure means the model's answer contained no catalog
	// entry's canonical serialization.
	ReasonParseFailure Reason = "parse_failure"

	// ReasonPromptError means the prompt could not be rendered.
	ReasonPromptError Reason = "prompt_error"
)

// Outcome labels used in logs, metrics and JSON.
const (
	OutcomeMatched = "matched"
	OutcomeNoMatch = "no_match"
)

// Decision is the result of one resolution: either Matched(metric) or
// NoMatch(reason).
//
// Description:
//
//	The zero value is NoMatch with an empty reason. Construct values with
//	Matched and NoMatch; fields are unexported so a caller cannot build a
//	matched decision without a metric.
//
// Thread Safety: Decision is an immutable value.
type Decision struct {
	metric  semantic.Metric
	matched bool
	reason  Reason
}

// Matched returns a Decision carrying m.
func Matched(m semantic.Metric) Decision {
	return Decision{metric: m, matched: true}
}

// NoMatch returns a Decision carrying no metric.
func NoMatch(reason Reason) Decision {
	return Decision{reason: reason}
}

// IsMatch reports whether the decision carries a metric.
func (d Decision) IsMatch() bool { return d.matched }

// Metric returns the matched metric and true, or the zero Metric and false.
func (d Decision) Metric() (semantic.Metric, bool) {
	if !d.matched {
		return semantic.Metric{}, false
	}
	return d.metric, true
}

// Reason returns why the decision is NoMatch. Empty for Matched.
func (d Decision) Reason() Reason { return d.reason }

// Outcome returns OutcomeMatched or OutcomeNoMatch.
func (d Decision) Outcome() string {
	if d.matched {
		return OutcomeMatched
	}
	return OutcomeNoMatch
}

// String implements fmt.Stringer.
func (d Decision) String() string {
	if d.matched {
		return fmt.Sprintf("Matched(%s)", d.metric.Name)
	}
	return fmt.Sprintf("NoMatch(%s)", d.reason)
}

type decisionJSON struct {
	Outcome string           `json:"outcome"`
	Reason  Reason           `json:"reason,omitempty"`
	Metric  *semantic.Metric `json:"metric,omitempty"`
}

// MarshalJSON renders the decision as {"outcome", "reason", "metric"}.
func (d Decision) MarshalJSON() ([]byte, error) {
	out := decisionJSON{Outcome: d.Outcome(), Reason: d.reason}
	if d.matched {
		m := d.metric
		out.Metric = &m
	}
	return json.Marshal(out)
}
