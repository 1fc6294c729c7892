/*-------------------------------------------------------------------------
 *
 * mcp-sqlify Text-to-SQL Agent
 *
 * Copyright (c) 2025, the mcp-sqlify authors
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package generate

import (
	"context"
	"fmt"
	"strings"

	"mcp-sqlify/internal/executor"
	"mcp-sqlify/internal/nlu"
	"mcp-sqlify/internal/schema"
)

// TemplateStrategy assembles SQL directly from the entity mapping.
// Given the same (EntityMapping, Schema) pair it produces byte-identical
// SQL on every call. Used when linking confidence is high.
type TemplateStrategy struct{}

// NewTemplateStrategy returns the deterministic assembly strategy
func NewTemplateStrategy() *TemplateStrategy {
	return &TemplateStrategy{}
}

func (t *TemplateStrategy) Name() string {
	return "template"
}

// Generate assembles a SELECT from the mapping's table, bindings,
// conditions and aggregation intent
func (t *TemplateStrategy) Generate(_ context.Context, m *nlu.EntityMapping, s *schema.Schema) (*CandidateQuery, error) {
	if m == nil || m.Table == "" {
		return nil, &GenerationError{Strategy: t.Name(), Message: "no entity mapping"}
	}
	if m.Intent.Kind != nlu.KindQuery {
		return nil, &GenerationError{Strategy: t.Name(), Message: "question is not a data query"}
	}
	tbl, ok := s.Table(m.Table)
	if !ok {
		return nil, &GenerationError{Strategy: t.Name(), Message: fmt.Sprintf("mapping references unknown table %q", m.Table)}
	}

	selectClause, err := t.selectClause(m, tbl)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(selectClause)
	sb.WriteString(" FROM ")
	sb.WriteString(quoteIdent(tbl.Name))

	if len(m.Conditions) > 0 {
		sb.WriteString(" WHERE ")
		for i, cond := range m.Conditions {
			if i > 0 {
				sb.WriteString(" AND ")
			}
			sb.WriteString(quoteIdent(cond.Column))
			sb.WriteString(" ")
			sb.WriteString(string(cond.Operator))
			sb.WriteString(" ")
			sb.WriteString(quoteLiteral(cond.Value, cond.Numeric))
		}
	}

	sqlText := sb.String()
	if err := ValidateSQL(sqlText); err != nil {
		return nil, &GenerationError{Strategy: t.Name(), Message: err.Error()}
	}

	return &CandidateQuery{SQL: sqlText, Strategy: t.Name(), Attempt: 1}, nil
}

// selectClause picks the projection: an aggregate over the linked
// column, COUNT(*) when counting rows, or the linked columns themselves
func (t *TemplateStrategy) selectClause(m *nlu.EntityMapping, tbl *schema.Table) (string, error) {
	free := freeColumns(m, tbl)

	if m.Intent.Aggregate != nlu.AggNone {
		col, err := aggregateColumn(m.Intent.Aggregate, free, tbl, t.Name())
		if err != nil {
			return "", err
		}
		if col == "" {
			return "COUNT(*)", nil
		}
		return fmt.Sprintf("%s(%s)", m.Intent.Aggregate, quoteIdent(col)), nil
	}

	if len(free) == 0 {
		return "*", nil
	}
	names := make([]string, len(free))
	for i, col := range free {
		names[i] = quoteIdent(col.Name)
	}
	return strings.Join(names, ", "), nil
}

// freeColumns returns the bound columns not consumed by conditions,
// in schema order so output is stable
func freeColumns(m *nlu.EntityMapping, tbl *schema.Table) []*schema.Column {
	bound := make(map[string]bool)
	for _, b := range m.Bindings {
		if !b.IsCondition {
			bound[b.Column] = true
		}
	}
	for _, c := range m.Conditions {
		delete(bound, c.Column)
	}

	var cols []*schema.Column
	for i := range tbl.Columns {
		if bound[tbl.Columns[i].Name] {
			cols = append(cols, &tbl.Columns[i])
		}
	}
	return cols
}

// aggregateColumn selects the column an aggregate applies to. COUNT
// with no linked column counts rows; SUM and AVG need a numeric column.
func aggregateColumn(agg nlu.Aggregate, free []*schema.Column, tbl *schema.Table, strategy string) (string, error) {
	needsNumeric := agg == nlu.AggSum || agg == nlu.AggAvg

	for _, col := range free {
		// Summing or averaging a key column is never what was asked
		if needsNumeric && col.PrimaryKey {
			continue
		}
		if !needsNumeric || col.IsNumeric() {
			return col.Name, nil
		}
	}

	if agg == nlu.AggCount {
		return "", nil
	}

	if needsNumeric {
		// Fall back to the table's only non-key numeric column
		var candidates []*schema.Column
		for i := range tbl.Columns {
			col := &tbl.Columns[i]
			if col.IsNumeric() && !col.PrimaryKey {
				candidates = append(candidates, col)
			}
		}
		if len(candidates) == 1 {
			return candidates[0].Name, nil
		}
	}

	return "", &GenerationError{
		Strategy: strategy,
		Message:  fmt.Sprintf("no column linked for %s aggregation", agg),
	}
}

// Repair regenerates from the mapping. The strategy is deterministic,
// so a repair that reproduces the failing query is reported as a
// GenerationError instead of retrying the same SQL forever.
func (t *TemplateStrategy) Repair(ctx context.Context, m *nlu.EntityMapping, s *schema.Schema,
	prior *CandidateQuery, failure *executor.Failure) (*CandidateQuery, error) {

	candidate, err := t.Generate(ctx, m, s)
	if err != nil {
		return nil, err
	}
	if prior != nil && candidate.SQL == prior.SQL {
		return nil, &GenerationError{
			Strategy: t.Name(),
			Message:  fmt.Sprintf("deterministic assembly cannot revise failing query (%s: %s)", failure.Kind, failure.Message),
		}
	}
	candidate.Attempt = prior.Attempt + 1
	return candidate, nil
}
