/*-------------------------------------------------------------------------
 *
 * mcp-sqlify Text-to-SQL Agent
 *
 * Copyright (c) 2025, the mcp-sqlify authors
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package nlu

import "testing"

func TestClassifyIntent(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Intent
	}{
		{
			"count",
			"How many people are from Taiwan?",
			Intent{Kind: KindQuery, Aggregate: AggCount, Operator: OpEq},
		},
		{
			"sum",
			"What is the total order amount for user 1?",
			Intent{Kind: KindQuery, Aggregate: AggSum, Operator: OpEq},
		},
		{
			"average",
			"Show the average score",
			Intent{Kind: KindQuery, Aggregate: AggAvg, Operator: OpEq},
		},
		{
			"max",
			"Which country has the highest population?",
			Intent{Kind: KindQuery, Aggregate: AggMax, Operator: OpEq},
		},
		{
			"min",
			"What is the lowest price?",
			Intent{Kind: KindQuery, Aggregate: AggMin, Operator: OpEq},
		},
		{
			"greater than",
			"List users with more than 10 orders",
			Intent{Kind: KindQuery, Aggregate: AggNone, Operator: OpGt},
		},
		{
			"at least",
			"Show products with at least 5 reviews",
			Intent{Kind: KindQuery, Aggregate: AggNone, Operator: OpGe},
		},
		{
			"less than",
			"Find items under 20",
			Intent{Kind: KindQuery, Aggregate: AggNone, Operator: OpLt},
		},
		{
			"not equal",
			"Show countries other than France",
			Intent{Kind: KindQuery, Aggregate: AggNone, Operator: OpNe},
		},
		{
			"count wins over bare operator default",
			"How many orders are over 100?",
			Intent{Kind: KindQuery, Aggregate: AggCount, Operator: OpGt},
		},
		{
			"plain select",
			"Show the names of all users",
			Intent{Kind: KindQuery, Aggregate: AggNone, Operator: OpEq},
		},
		{
			"not a data question",
			"delete everything now",
			Intent{Kind: KindNonQuery, Aggregate: AggNone, Operator: OpEq},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyIntent(tt.raw)
			if got != tt.want {
				t.Errorf("ClassifyIntent(%q) = %+v, want %+v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestContainsPhrase_WordBoundaries(t *testing.T) {
	tests := []struct {
		text   string
		phrase string
		want   bool
	}{
		{"orders over 100", "over", true},
		{"what was discovered here", "over", false},
		{"how many rows", "how many", true},
		{"show many rows", "how many", false},
		{"over the top", "over", true},
		{"moreover it holds", "over", false},
	}
	for _, tt := range tests {
		if got := containsPhrase(tt.text, tt.phrase); got != tt.want {
			t.Errorf("containsPhrase(%q, %q) = %v, want %v", tt.text, tt.phrase, got, tt.want)
		}
	}
}
