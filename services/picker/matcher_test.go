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
	"fmt"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/AleutianAI/metricpicker/services/semantic"
)

var (
	totalRevenue = semantic.Metric{
		Name:        "total_revenue",
		Type:        semantic.MetricTypeSimple,
		Label:       "Total Revenue",
		Description: "Total revenue from all orders",
	}
	totalCost = semantic.Metric{
		Name:        "total_cost",
		Type:        semantic.MetricTypeSimple,
		Label:       "Total Cost",
		Description: "Total cost of goods sold",
	}
	grossMargin = semantic.Metric{
		Name:        "gross_margin",
		Type:        semantic.MetricTypeRatio,
		Label:       "Gross Margin",
		Description: "Revenue minus cost, divided by revenue",
	}
)

func testCatalog() semantic.Catalog {
	return semantic.Catalog{totalRevenue, totalCost, grossMargin}
}

func TestSerialize(t *testing.T) {
	got := Serialize(totalRevenue)
	want := "Metric(name='total_revenue', type='SIMPLE', label='Total Revenue', description='Total revenue from all orders')"
	if got != want {
		t.Errorf("Serialize =\n%s\nwant\n%s", got, want)
	}
}

func TestSerialize_EscapesQuotes(t *testing.T) {
	m := semantic.Metric{Name: "o'brien", Type: "SIMPLE", Label: `a\b`, Description: "it's"}
	got := Serialize(m)
	want := `Metric(name='o\'brien', type='SIMPLE', label='a\\b', description='it\'s')`
	if got != want {
		t.Errorf("Serialize = %s, want %s", got, want)
	}
}

func TestMatch_EmbeddedInExplanation(t *testing.T) {
	raw := "Based on the query, the best match is:\n" + Serialize(totalRevenue) + "\nThis metric tracks revenue."

	d := Match(raw, testCatalog())

	got, ok := d.Metric()
	if !ok {
		t.Fatalf("Match = %v, want Matched(total_revenue)", d)
	}
	if diff := cmp.Diff(totalRevenue, got); diff != "" {
		t.Errorf("matched metric mismatch (-want +got):\n%s", diff)
	}
}

func TestMatch_WhitespaceInsensitive(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"spaces removed", strings.ReplaceAll(Serialize(totalCost), " ", "")},
		{"newlines inserted", strings.ReplaceAll(Serialize(totalCost), ", ", ",\n    ")},
		{"tabs and padding", "\t  " + strings.ReplaceAll(Serialize(totalCost), " ", "\t") + "  \n"},
		{"non-breaking spaces", strings.ReplaceAll(Serialize(totalCost), " ", "\u00a0")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Match(tt.raw, testCatalog())
			got, ok := d.Metric()
			if !ok || got.Name != "total_cost" {
				t.Errorf("Match(%q) = %v, want Matched(total_cost)", tt.raw, d)
			}
		})
	}
}

func TestMatch_Rejections(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"sentinel", "[]"},
		{"sentinel with padding", "  []\n"},
		{"phrase", "I must return an empty list."},
		{"phrase upper case", "EMPTY LIST"},
		{"phrase mixed case", "Returning Empty List because the query is vague"},
		// The refusal check runs before matching.
		{"phrase next to serialization", "Not " + Serialize(totalRevenue) + ", so: empty list"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Match(tt.raw, testCatalog())
			if d.IsMatch() || d.Reason() != ReasonExplicitRejection {
				t.Errorf("Match(%q) = %v, want NoMatch(%s)", tt.raw, d, ReasonExplicitRejection)
			}
		})
	}
}

func TestMatch_SentinelRegardlessOfCatalog(t *testing.T) {
	for _, c := range []semantic.Catalog{nil, {totalRevenue}, testCatalog()} {
		if d := Match(EmptySentinel, c); d.IsMatch() {
			t.Errorf("Match(sentinel, %d metrics) = %v, want NoMatch", len(c), d)
		}
	}
}

func TestMatch_ParseFailures(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"whitespace only", " \n\t "},
		{"name only", "total_revenue"},
		{"altered description", "Metric(name='total_revenue', type='SIMPLE', label='Total Revenue', description='All revenue')"},
		{"hallucinated metric", "Metric(name='net_profit', type='SIMPLE', label='Net Profit', description='Profit')"},
		{"case changed", strings.ToUpper(Serialize(totalRevenue))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Match(tt.raw, testCatalog())
			if d.IsMatch() || d.Reason() != ReasonParseFailure {
				t.Errorf("Match(%q) = %v, want NoMatch(%s)", tt.raw, d, ReasonParseFailure)
			}
		})
	}
}

func TestMatch_EmptyCatalog(t *testing.T) {
	d := Match(Serialize(totalRevenue), nil)
	if d.IsMatch() || d.Reason() != ReasonEmptyCatalog {
		t.Errorf("Match on empty catalog = %v, want NoMatch(%s)", d, ReasonEmptyCatalog)
	}
}

// Two serializations in one answer resolve to the earlier catalog entry,
// whatever order they appear in the answer.
func TestMatch_MultipleSerializationsUseCatalogOrder(t *testing.T) {
	raw := Serialize(grossMargin) + "\nor maybe\n" + Serialize(totalCost)

	d := Match(raw, testCatalog())
	if got, _ := d.Metric(); got.Name != "total_cost" {
		t.Errorf("Match = %v, want Matched(total_cost)", d)
	}

	reordered := semantic.Catalog{grossMargin, totalCost, totalRevenue}
	d = Match(raw, reordered)
	if got, _ := d.Metric(); got.Name != "gross_margin" {
		t.Errorf("Match with reordered catalog = %v, want Matched(gross_margin)", d)
	}
}

// Serializations that differ only in whitespace collide after
// normalization. The earlier catalog entry wins even though the model
// answered with the later one.
func TestMatch_WhitespaceCollisionUsesCatalogOrder(t *testing.T) {
	spaced := semantic.Metric{Name: "gross margin", Type: "RATIO", Label: "Gross Margin", Description: "Margin"}
	joined := semantic.Metric{Name: "grossmargin", Type: "RATIO", Label: "Gross Margin", Description: "Margin"}
	catalog := semantic.Catalog{spaced, joined}
	raw := "prefix " + Serialize(joined) + " suffix"

	d := Match(raw, catalog)
	got, ok := d.Metric()
	if !ok {
		t.Fatalf("Match = %v, want a match", d)
	}
	if diff := cmp.Diff(spaced, got); diff != "" {
		t.Errorf("tie-break should pick catalog[0] (-want +got):\n%s", diff)
	}

	d = Match(raw, semantic.Catalog{joined, spaced})
	if got, _ := d.Metric(); got.Name != "grossmargin" {
		t.Errorf("Match with reversed catalog = %v, want Matched(grossmargin)", d)
	}
}

func TestMatch_Deterministic(t *testing.T) {
	raw := "Answer: " + Serialize(grossMargin)
	first := Match(raw, testCatalog())
	for i := 0; i < 50; i++ {
		if got := Match(raw, testCatalog()); got != first {
			t.Fatalf("Match run %d = %v, want %v", i, got, first)
		}
	}
}

// A Matched decision always carries a value-equal catalog member, for any
// answer built from catalog fragments and noise.
func TestMatch_MatchedIsAlwaysCatalogMember(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	fragments := []string{
		Serialize(totalRevenue), Serialize(totalCost), Serialize(grossMargin),
		"Metric(name='total_revenue'", "type='RATIO'", "[", "]", " ", "\n",
		"I think", "description='Total cost of goods sold')", "list",
	}

	for i := 0; i < 500; i++ {
		catalog := testCatalog()
		rng.Shuffle(len(catalog), func(a, b int) { catalog[a], catalog[b] = catalog[b], catalog[a] })
		catalog = catalog[:rng.IntN(len(catalog)+1)]

		var b strings.Builder
		for n := rng.IntN(6); n >= 0; n-- {
			b.WriteString(fragments[rng.IntN(len(fragments))])
		}
		raw := b.String()

		d := Match(raw, catalog)
		m, ok := d.Metric()
		if !ok {
			continue
		}
		found := false
		for _, c := range catalog {
			if cmp.Equal(c, m) {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("iteration %d: Match(%q) = %v, not a member of %v", i, raw, d, catalog.Names())
		}
	}
}

func TestDecision_Accessors(t *testing.T) {
	m := Matched(totalRevenue)
	if !m.IsMatch() || m.Outcome() != OutcomeMatched || m.Reason() != ReasonNone {
		t.Errorf("Matched accessors = %v/%s/%q", m.IsMatch(), m.Outcome(), m.Reason())
	}
	if m.String() != "Matched(total_revenue)" {
		t.Errorf("String = %q", m.String())
	}

	n := NoMatch(ReasonParseFailure)
	if _, ok := n.Metric(); ok {
		t.Error("NoMatch.Metric should report false")
	}
	if n.Outcome() != OutcomeNoMatch || n.String() != "NoMatch(parse_failure)" {
		t.Errorf("NoMatch = %s/%s", n.Outcome(), n.String())
	}

	var zero Decision
	if zero.IsMatch() {
		t.Error("zero Decision must not be a match")
	}
}

func TestDecision_MarshalJSON(t *testing.T) {
	tests := []struct {
		d    Decision
		want string
	}{
		{
			Matched(totalCost),
			`{"outcome":"matched","metric":{"name":"total_cost","type":"SIMPLE","label":"Total Cost","description":"Total cost of goods sold"}}`,
		},
		{NoMatch(ReasonTransportFailure), `{"outcome":"no_match","reason":"transport_failure"}`},
	}
	for _, tt := range tests {
		t.Run(tt.d.String(), func(t *testing.T) {
			got, err := tt.d.MarshalJSON()
			if err != nil {
				t.Fatalf("MarshalJSON: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("MarshalJSON = %s, want %s", got, tt.want)
			}
		})
	}
}

func ExampleMatch() {
	catalog := semantic.Catalog{totalRevenue, totalCost}
	raw := "The metric is " + Serialize(totalCost)

	fmt.Println(Match(raw, catalog))
	fmt.Println(Match("[]", catalog))
	// Output:
	// Matched(total_cost)
	// NoMatch(explicit_rejection)
}
