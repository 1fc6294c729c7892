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

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"mcp-sqlify/internal/embedding"
	"mcp-sqlify/internal/logging"
	"mcp-sqlify/internal/schema"
)

// MatchTier records which similarity tier produced a binding.
// Higher tiers always beat lower ones regardless of score.
type MatchTier int

const (
	TierEmbedding MatchTier = iota
	TierFuzzy
	TierExact
)

func (t MatchTier) String() string {
	switch t {
	case TierExact:
		return "exact"
	case TierFuzzy:
		return "fuzzy"
	case TierEmbedding:
		return "embedding"
	default:
		return "unknown"
	}
}

// ColumnBinding maps a token span to a schema column
type ColumnBinding struct {
	Span        string
	TokenIndex  int
	Column      string
	Score       float64
	Tier        MatchTier
	IsCondition bool
}

// Condition is a grounded WHERE clause element
type Condition struct {
	Column   string
	Operator Operator
	Value    string
	Numeric  bool
}

// EntityMapping is the linker's output: the target table, the column
// bindings, the grounded conditions and the classified intent.
// Consumed only by the SQL generator.
type EntityMapping struct {
	Question   *Question
	Intent     Intent
	Table      string
	Bindings   []ColumnBinding
	Conditions []Condition
	Confidence float64
}

// AmbiguityError reports an entity mapping the linker could not settle:
// either two columns scored within epsilon of each other with no
// applicable tie-break, or a token resolved to nothing at all. It is
// surfaced, never silently resolved.
type AmbiguityError struct {
	Span       string
	Candidates []string
	Reason     string
}

func (e *AmbiguityError) Error() string {
	if len(e.Candidates) > 0 {
		return fmt.Sprintf("ambiguous linking for %q: %s (candidates: %s)",
			e.Span, e.Reason, strings.Join(e.Candidates, ", "))
	}
	return fmt.Sprintf("ambiguous linking for %q: %s", e.Span, e.Reason)
}

// LinkerConfig holds the linker thresholds
type LinkerConfig struct {
	// Epsilon is the score window within which two column candidates
	// are considered tied
	Epsilon float64

	// FuzzyThreshold is the minimum string similarity for a fuzzy match
	FuzzyThreshold float64

	// EmbeddingThreshold is the minimum cosine similarity for an
	// embedding match
	EmbeddingThreshold float64
}

// DefaultLinkerConfig returns the recommended thresholds
func DefaultLinkerConfig() LinkerConfig {
	return LinkerConfig{
		Epsilon:            0.05,
		FuzzyThreshold:     0.6,
		EmbeddingThreshold: 0.8,
	}
}

// Linker maps question tokens to schema elements. The embedding
// provider is optional; without it the linker stops at the fuzzy tier.
type Linker struct {
	cfg      LinkerConfig
	provider embedding.Provider
}

// NewLinker creates a Linker with the given thresholds
func NewLinker(cfg LinkerConfig) *Linker {
	if cfg.Epsilon <= 0 {
		cfg.Epsilon = DefaultLinkerConfig().Epsilon
	}
	if cfg.FuzzyThreshold <= 0 {
		cfg.FuzzyThreshold = DefaultLinkerConfig().FuzzyThreshold
	}
	if cfg.EmbeddingThreshold <= 0 {
		cfg.EmbeddingThreshold = DefaultLinkerConfig().EmbeddingThreshold
	}
	return &Linker{cfg: cfg}
}

// WithEmbeddings enables the embedding similarity tier
func (l *Linker) WithEmbeddings(provider embedding.Provider) *Linker {
	l.provider = provider
	return l
}

// target is one schema element the linker can bind to
type target struct {
	isColumn bool
	table    string
	column   string // empty for table targets
	norm     string // normalized display name
	parts    []string
}

// candidate is a scored match of a span against a target
type candidate struct {
	target target
	score  float64
	tier   MatchTier
}

// cueWords are tokens that carry intent, not entity references; the
// linker never treats them as condition values
var cueWords = map[string]bool{
	"what": true, "which": true, "who": true, "where": true, "when": true, "how": true,
	"show": true, "list": true, "get": true, "find": true, "give": true,
	"display": true, "select": true, "tell": true,
	"many": true, "much": true, "count": true, "number": true,
	"total": true, "sum": true, "average": true, "mean": true,
	"minimum": true, "maximum": true, "lowest": true, "highest": true,
	"smallest": true, "largest": true, "earliest": true, "latest": true,
	"more": true, "less": true, "fewer": true, "than": true,
	"over": true, "above": true, "under": true, "below": true,
	"before": true, "after": true, "least": true, "most": true,
	"equal": true, "not": true, "other": true,
	"rows": true, "records": true, "entries": true, "values": true, "data": true,
}

// maxSpanLen bounds multi-token matching of column names and values
const maxSpanLen = 3

// Link maps the question onto the schema and classifies its intent.
// The value index is optional; without it condition values fall back
// to type-compatibility resolution.
func (l *Linker) Link(ctx context.Context, q *Question, s *schema.Schema, values *ValueIndex) (*EntityMapping, error) {
	if q == nil || len(q.Tokens) == 0 {
		return nil, ErrEmptyInput
	}

	intent := ClassifyIntent(q.Raw)
	targets := buildTargets(s)

	used := make([]bool, len(q.Tokens))
	var bindings []ColumnBinding
	tableScores := make(map[string]float64)

	// Pass 1: bind token spans to schema elements, longest spans first
	for spanLen := maxSpanLen; spanLen >= 1; spanLen-- {
		for i := 0; i+spanLen <= len(q.Tokens); i++ {
			if anyUsed(used, i, spanLen) {
				continue
			}
			if spanContainsNumber(q.Tokens, i, spanLen) {
				// Numbers are value material, never schema names
				continue
			}
			span := strings.Join(q.Tokens[i:i+spanLen], " ")
			if spanLen == 1 && cueWords[span] {
				continue
			}

			best, err := l.matchSpan(ctx, span, targets)
			if err != nil {
				return nil, err
			}
			if best == nil {
				continue
			}

			markUsed(used, i, spanLen)
			if best.target.isColumn {
				bindings = append(bindings, ColumnBinding{
					Span:       span,
					TokenIndex: i,
					Column:     best.target.column,
					Score:      best.score,
					Tier:       best.tier,
				})
				// A matched column is also weak evidence for its table
				if best.score > tableScores[best.target.table] {
					tableScores[best.target.table] = best.score * 0.5
				}
			} else if best.score > tableScores[best.target.table] {
				tableScores[best.target.table] = best.score
			}
		}
	}

	table, tableScore, err := resolveTable(s, tableScores)
	if err != nil {
		return nil, err
	}

	// Keep only bindings that belong to the resolved table
	bindings = filterBindings(bindings, s, table)

	// Pass 2: resolve leftover tokens into grounded condition values
	conditions, err := l.resolveConditions(q, s, table, values, used, &bindings, intent)
	if err != nil {
		return nil, err
	}

	confidence := tableScore
	for _, b := range bindings {
		if b.Score < confidence {
			confidence = b.Score
		}
	}

	mapping := &EntityMapping{
		Question:   q,
		Intent:     intent,
		Table:      table,
		Bindings:   bindings,
		Conditions: conditions,
		Confidence: confidence,
	}

	logging.Debug("entity linking complete",
		"table", table,
		"bindings", len(bindings),
		"conditions", len(conditions),
		"aggregate", string(intent.Aggregate),
		"confidence", confidence)

	return mapping, nil
}

// matchSpan scores a span against every target and applies the
// tie-break rules. Returns nil when nothing clears its tier threshold.
func (l *Linker) matchSpan(ctx context.Context, span string, targets []target) (*candidate, error) {
	var cands []candidate
	for _, t := range targets {
		if score, tier, ok := l.lexicalScore(span, t); ok {
			cands = append(cands, candidate{target: t, score: score, tier: tier})
		}
	}

	// Embedding tier only when the lexical tiers found nothing and the
	// span is a single word
	if len(cands) == 0 && l.provider != nil && !strings.Contains(span, " ") {
		embedded, err := l.embeddingCandidates(ctx, span, targets)
		if err != nil {
			return nil, err
		}
		cands = embedded
	}
	if len(cands) == 0 {
		return nil, nil
	}

	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].tier != cands[j].tier {
			return cands[i].tier > cands[j].tier
		}
		return cands[i].score > cands[j].score
	})

	best := cands[0]
	if len(cands) > 1 {
		second := cands[1]
		tied := best.tier == second.tier && best.score-second.score < l.cfg.Epsilon
		if tied {
			switch {
			case best.target.isColumn && !second.target.isColumn:
				// Column over table: tie-break applies
			case !best.target.isColumn && second.target.isColumn:
				best = second
			case best.target.isColumn && second.target.isColumn &&
				!sameColumn(best.target, second.target):
				return nil, &AmbiguityError{
					Span:       span,
					Candidates: []string{best.target.column, second.target.column},
					Reason:     "two columns score within epsilon and no tie-break applies",
				}
			}
		}
	}

	return &best, nil
}

// lexicalScore computes the exact/fuzzy similarity of a span against a
// target. Part matches ("user" against "user_id") score 0.9 weighted by
// the part similarity.
func (l *Linker) lexicalScore(span string, t target) (float64, MatchTier, bool) {
	if span == t.norm {
		return 1.0, TierExact, true
	}

	score := levenshteinSim(span, t.norm)
	for _, part := range t.parts {
		if partScore := 0.9 * levenshteinSim(span, part); partScore > score {
			score = partScore
		}
	}
	if score >= l.cfg.FuzzyThreshold {
		return score, TierFuzzy, true
	}
	return 0, 0, false
}

// embeddingCandidates scores a token against every target by cosine
// similarity of their embeddings
func (l *Linker) embeddingCandidates(ctx context.Context, span string, targets []target) ([]candidate, error) {
	spanVec, err := l.provider.Embed(ctx, span)
	if err != nil {
		return nil, fmt.Errorf("failed to embed token %q: %w", span, err)
	}

	var cands []candidate
	for _, t := range targets {
		targetVec, err := l.provider.Embed(ctx, t.norm)
		if err != nil {
			return nil, fmt.Errorf("failed to embed %q: %w", t.norm, err)
		}
		if sim := embedding.CosineSimilarity(spanVec, targetVec); sim >= l.cfg.EmbeddingThreshold {
			cands = append(cands, candidate{target: t, score: sim, tier: TierEmbedding})
		}
	}
	return cands, nil
}

// resolveConditions turns leftover tokens into WHERE conditions. Value
// index hits take priority; unresolved tokens surface as ambiguity.
func (l *Linker) resolveConditions(q *Question, s *schema.Schema, table string,
	values *ValueIndex, used []bool, bindings *[]ColumnBinding, intent Intent) ([]Condition, error) {

	tbl, ok := s.Table(table)
	if !ok {
		return nil, &AmbiguityError{Span: table, Reason: "no such table after resolution"}
	}

	var conditions []Condition

	// Value index pass, longest spans first
	if values != nil {
		for spanLen := maxSpanLen; spanLen >= 1; spanLen-- {
			for i := 0; i+spanLen <= len(q.Tokens); i++ {
				if anyUsed(used, i, spanLen) {
					continue
				}
				if spanContainsNumber(q.Tokens, i, spanLen) {
					// Numeric values ground against the nearest linked
					// numeric column, not the value index: the same
					// number routinely occurs in several columns
					continue
				}
				span := strings.Join(q.Tokens[i:i+spanLen], " ")
				if spanLen == 1 && cueWords[span] {
					continue
				}
				original, refs, found := values.Lookup(span)
				if !found {
					continue
				}
				col, err := pickValueColumn(span, refs, tbl)
				if err != nil {
					return nil, err
				}
				if col == nil {
					continue
				}
				markUsed(used, i, spanLen)
				markCondition(bindings, col.Name)
				conditions = append(conditions, Condition{
					Column:   col.Name,
					Operator: conditionOperator(intent, col),
					Value:    original,
					Numeric:  col.IsNumeric(),
				})
			}
		}
	}

	// Leftover pass: tokens that matched neither schema nor values
	for i, token := range q.Tokens {
		if used[i] || cueWords[token] {
			continue
		}
		if isNumericToken(token) {
			col, err := nearestNumericColumn(i, *bindings, tbl)
			if err != nil {
				return nil, err
			}
			markCondition(bindings, col.Name)
			conditions = append(conditions, Condition{
				Column:   col.Name,
				Operator: conditionOperator(intent, col),
				Value:    token,
				Numeric:  true,
			})
			used[i] = true
			continue
		}

		textCols := columnsOfType(tbl, false)
		if len(textCols) == 1 {
			markCondition(bindings, textCols[0].Name)
			conditions = append(conditions, Condition{
				Column:   textCols[0].Name,
				Operator: OpEq,
				Value:    token,
				Numeric:  false,
			})
			used[i] = true
			continue
		}

		return nil, &AmbiguityError{
			Span:   token,
			Reason: "token matches no schema element or known value",
		}
	}

	return conditions, nil
}

// pickValueColumn chooses which column a value-index hit belongs to,
// restricted to the resolved table
func pickValueColumn(span string, refs []ColumnRef, tbl *schema.Table) (*schema.Column, error) {
	var matches []*schema.Column
	for _, ref := range refs {
		if ref.Table != tbl.Name {
			continue
		}
		if col, ok := tbl.Column(ref.Column); ok {
			matches = append(matches, col)
		}
	}
	switch len(matches) {
	case 0:
		return nil, nil
	case 1:
		return matches[0], nil
	default:
		names := make([]string, len(matches))
		for i, c := range matches {
			names[i] = c.Name
		}
		return nil, &AmbiguityError{
			Span:       span,
			Candidates: names,
			Reason:     "value occurs in multiple columns",
		}
	}
}

// nearestNumericColumn finds the numeric column whose binding sits
// closest before (then after) the value token
func nearestNumericColumn(tokenIdx int, bindings []ColumnBinding, tbl *schema.Table) (*schema.Column, error) {
	var best *schema.Column
	bestDist := -1
	for _, b := range bindings {
		col, ok := tbl.Column(b.Column)
		if !ok || !col.IsNumeric() {
			continue
		}
		dist := tokenIdx - b.TokenIndex
		if dist < 0 {
			dist = -dist * 2 // prefer preceding bindings
		}
		if bestDist < 0 || dist < bestDist {
			best = col
			bestDist = dist
		}
	}
	if best != nil {
		return best, nil
	}

	numCols := columnsOfType(tbl, true)
	if len(numCols) == 1 {
		return numCols[0], nil
	}
	return nil, &AmbiguityError{
		Span:   fmt.Sprintf("token %d", tokenIdx),
		Reason: "numeric value with no linked numeric column",
	}
}

// conditionOperator picks the operator for a condition: comparison
// phrasing only applies to numeric columns
func conditionOperator(intent Intent, col *schema.Column) Operator {
	if col.IsNumeric() {
		return intent.Operator
	}
	if intent.Operator == OpNe {
		return OpNe
	}
	return OpEq
}

// columnsOfType returns the table's numeric or text columns
func columnsOfType(tbl *schema.Table, numeric bool) []*schema.Column {
	var cols []*schema.Column
	for i := range tbl.Columns {
		if tbl.Columns[i].IsNumeric() == numeric {
			cols = append(cols, &tbl.Columns[i])
		}
	}
	return cols
}

// resolveTable picks the target table from the collected scores.
// A single-table schema needs no explicit mention.
func resolveTable(s *schema.Schema, scores map[string]float64) (string, float64, error) {
	// A single-table schema leaves no room for doubt
	if len(s.Tables) == 1 {
		return s.Tables[0].Name, 1.0, nil
	}
	if len(scores) == 0 {
		return "", 0, &AmbiguityError{Reason: "no table mentioned and schema has several"}
	}

	var (
		best      string
		bestScore float64
	)
	for name, score := range scores {
		if score > bestScore || (score == bestScore && name < best) {
			best = name
			bestScore = score
		}
	}
	return best, bestScore, nil
}

// filterBindings keeps bindings whose column exists in the resolved table
func filterBindings(bindings []ColumnBinding, s *schema.Schema, table string) []ColumnBinding {
	tbl, ok := s.Table(table)
	if !ok {
		return nil
	}
	var kept []ColumnBinding
	for _, b := range bindings {
		if _, exists := tbl.Column(b.Column); exists {
			kept = append(kept, b)
		}
	}
	return kept
}

// markCondition flags the binding for a column as condition-bearing
func markCondition(bindings *[]ColumnBinding, column string) {
	for i := range *bindings {
		if (*bindings)[i].Column == column {
			(*bindings)[i].IsCondition = true
		}
	}
}

// sameColumn treats equally named columns of different tables as one
// candidate; bindings carry only the column name and are later filtered
// to the resolved table
func sameColumn(a, b target) bool {
	return a.column == b.column
}

func buildTargets(s *schema.Schema) []target {
	var targets []target
	for _, tbl := range s.Tables {
		targets = append(targets, target{
			table: tbl.Name,
			norm:  normalizeName(tbl.Name),
			parts: nameParts(tbl.Name),
		})
		for _, col := range tbl.Columns {
			targets = append(targets, target{
				isColumn: true,
				table:    tbl.Name,
				column:   col.Name,
				norm:     normalizeName(col.Name),
				parts:    nameParts(col.Name),
			})
		}
	}
	return targets
}

// normalizeName folds an identifier the way question tokens are folded
func normalizeName(name string) string {
	return strings.Join(nameParts(name), " ")
}

// nameParts splits an identifier on underscores and spaces
func nameParts(name string) []string {
	return strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return r == '_' || r == ' ' || r == '-'
	})
}

func spanContainsNumber(tokens []string, start, length int) bool {
	for i := start; i < start+length; i++ {
		if isNumericToken(tokens[i]) {
			return true
		}
	}
	return false
}

func anyUsed(used []bool, start, length int) bool {
	for i := start; i < start+length; i++ {
		if used[i] {
			return true
		}
	}
	return false
}

func markUsed(used []bool, start, length int) {
	for i := start; i < start+length; i++ {
		used[i] = true
	}
}

// levenshteinSim converts edit distance into a similarity in [0,1]
func levenshteinSim(a, b string) float64 {
	if a == b {
		return 1.0
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(levenshtein(a, b))/float64(maxLen)
}

// levenshtein computes edit distance with a two-row table
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
