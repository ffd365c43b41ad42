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
	"strings"
	"unicode"

	"github.com/AleutianAI/metricpicker/services/semantic"
)

// EmptySentinel is the exact answer the model gives when no metric qualifies.
const EmptySentinel = "[]"

// rejectionPhrase, in any casing, marks an answer as a refusal even when the
// model wraps it in prose.
const rejectionPhrase = "empty list"

// Serialize returns the canonical serialization of m.
//
// Description:
//
//	The rendering is Metric(name='...', type='...', label='...',
//	description='...'). Backslashes and single quotes inside values are
//	escaped so that one value cannot close the quote of the next. The
//	same rendering is listed in the prompt and searched for in the answer.
//
// Inputs:
//
//	m - The metric to render.
//
// Outputs:
//
//	string - The canonical serialization.
//
// Thread Safety: Safe for concurrent use.
func Serialize(m semantic.Metric) string {
	var b strings.Builder
	b.WriteString("Metric(name=")
	writeQuoted(&b, m.Name)
	b.WriteString(", type=")
	writeQuoted(&b, string(m.Type))
	b.WriteString(", label=")
	writeQuoted(&b, m.Label)
	b.WriteString(", description=")
	writeQuoted(&b, m.Description)
	b.WriteString(")")
	return b.String()
}

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

func writeQuoted(b *strings.Builder, s string) {
	b.WriteByte('\'')
	quoteEscaper.WriteString(b, s)
	b.WriteByte('\'')
}

// stripSpace removes every Unicode whitespace rune.
func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// isRejection reports whether the trimmed answer is the sentinel or contains
// the rejection phrase.
func isRejection(trimmed string) bool {
	return trimmed == EmptySentinel || strings.Contains(strings.ToLower(trimmed), rejectionPhrase)
}

// Match recovers at most one catalog metric from raw model text.
//
// Description:
//
//	The answer is trimmed first. If it is the empty-result sentinel or
//	mentions the rejection phrase in any casing, the result is NoMatch
//	before any matching is tried, so an explanation of a refusal can never
//	match by accident.
//
//	Otherwise each catalog entry is serialized and, with all whitespace
//	removed on both sides, searched for as a substring of the answer. The
//	first entry found in catalog order wins. This order is the tie-break
//	when an answer contains several serializations, or when one entry's
//	serialization is contained in another's.
//
// Inputs:
//
//	raw     - Raw model text.
//	catalog - The catalog offered to the model for this call.
//
// Outputs:
//
//	Decision - Matched with a catalog member, or NoMatch with
//	           ReasonEmptyCatalog, ReasonExplicitRejection or
//	           ReasonParseFailure.
//
// Thread Safety: Safe for concurrent use. Match is pure.
func Match(raw string, catalog semantic.Catalog) Decision {
	trimmed := strings.TrimSpace(raw)
	if isRejection(trimmed) {
		return NoMatch(ReasonExplicitRejection)
	}
	if len(catalog) == 0 {
		return NoMatch(ReasonEmptyCatalog)
	}

	answer := stripSpace(trimmed)
	if answer == "" {
		return NoMatch(ReasonParseFailure)
	}
	for _, m := range catalog {
		if strings.Contains(answer, stripSpace(Serialize(m))) {
			return Matched(m)
		}
	}
	return NoMatch(ReasonParseFailure)
}
