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

import "strings"

// Aggregate is the aggregation kind detected in a question
type Aggregate string

const (
	AggNone  Aggregate = ""
	AggCount Aggregate = "COUNT"
	AggSum   Aggregate = "SUM"
	AggAvg   Aggregate = "AVG"
	AggMin   Aggregate = "MIN"
	AggMax   Aggregate = "MAX"
)

// Operator is a SQL comparison operator detected from phrasing
type Operator string

const (
	OpEq Operator = "="
	OpNe Operator = "!="
	OpGt Operator = ">"
	OpLt Operator = "<"
	OpGe Operator = ">="
	OpLe Operator = "<="
)

// IntentKind separates questions that ask for data from everything else
type IntentKind string

const (
	KindQuery    IntentKind = "query"
	KindNonQuery IntentKind = "non-query"
)

// Intent is the classified shape of a question
type Intent struct {
	Kind      IntentKind
	Aggregate Aggregate
	Operator  Operator
}

// aggregateCues maps phrases to aggregation kinds. Ordered so that
// longer, more specific phrases are tried before substrings of them.
var aggregateCues = []struct {
	phrase string
	agg    Aggregate
}{
	{"how many", AggCount},
	{"number of", AggCount},
	{"count", AggCount},
	{"total", AggSum},
	{"sum", AggSum},
	{"average", AggAvg},
	{"mean", AggAvg},
	{"minimum", AggMin},
	{"lowest", AggMin},
	{"smallest", AggMin},
	{"earliest", AggMin},
	{"maximum", AggMax},
	{"highest", AggMax},
	{"largest", AggMax},
	{"latest", AggMax},
}

// operatorCues maps comparison phrases to SQL operators
var operatorCues = []struct {
	phrase string
	op     Operator
}{
	{"at least", OpGe},
	{"at most", OpLe},
	{"no more than", OpLe},
	{"no less than", OpGe},
	{"greater than or equal", OpGe},
	{"less than or equal", OpLe},
	{"more than", OpGt},
	{"greater than", OpGt},
	{"bigger than", OpGt},
	{"over", OpGt},
	{"above", OpGt},
	{"after", OpGt},
	{"less than", OpLt},
	{"fewer than", OpLt},
	{"under", OpLt},
	{"below", OpLt},
	{"before", OpLt},
	{"not equal", OpNe},
	{"other than", OpNe},
}

// queryCues mark a question as a data request when no aggregation
// phrase already does
var queryCues = []string{
	"what", "which", "who", "where", "when", "how",
	"show", "list", "get", "find", "give", "display", "select", "tell",
}

// ClassifyIntent inspects the raw question text for aggregation and
// comparison cues and decides whether it is a data query at all.
func ClassifyIntent(raw string) Intent {
	lower := strings.ToLower(raw)

	intent := Intent{Kind: KindNonQuery, Operator: OpEq}

	for _, cue := range aggregateCues {
		if containsPhrase(lower, cue.phrase) {
			intent.Aggregate = cue.agg
			intent.Kind = KindQuery
			break
		}
	}

	for _, cue := range operatorCues {
		if containsPhrase(lower, cue.phrase) {
			intent.Operator = cue.op
			break
		}
	}

	if intent.Kind == KindNonQuery {
		for _, cue := range queryCues {
			if containsPhrase(lower, cue) {
				intent.Kind = KindQuery
				break
			}
		}
	}

	return intent
}

// containsPhrase reports whether phrase occurs in text on word
// boundaries, so "over" does not match inside "discovered"
func containsPhrase(text, phrase string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], phrase)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(phrase)
		beforeOK := start == 0 || !isWordChar(text[start-1])
		afterOK := end == len(text) || !isWordChar(text[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordChar(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9' || b == '_'
}
