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
	"time"

	"mcp-sqlify/internal/executor"
	"mcp-sqlify/internal/nlu"
	"mcp-sqlify/internal/schema"
)

// CandidateQuery is one generated SQL query plus its provenance.
// Candidates are superseded by retries, never edited in place.
type CandidateQuery struct {
	SQL      string
	Strategy string
	Attempt  int
}

// GenerationError reports an unparsable or empty candidate query
type GenerationError struct {
	Strategy string
	Message  string
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s generation failed: %s", e.Strategy, e.Message)
}

// TimeoutError reports a generation call that exceeded its bound
type TimeoutError struct {
	Strategy string
	Limit    time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s generation exceeded %s timeout", e.Strategy, e.Limit)
}

// Strategy produces candidate SQL from an entity mapping and schema.
// Implementations must return a syntactically parseable SQL string or
// fail with GenerationError. Repair accepts the failure context of a
// prior candidate and produces a revised one; the orchestrator bounds
// how often it is called.
type Strategy interface {
	Name() string
	Generate(ctx context.Context, m *nlu.EntityMapping, s *schema.Schema) (*CandidateQuery, error)
	Repair(ctx context.Context, m *nlu.EntityMapping, s *schema.Schema,
		prior *CandidateQuery, failure *executor.Failure) (*CandidateQuery, error)
}

// DefaultMaxAttempts bounds the generate-execute retry loop
const DefaultMaxAttempts = 3

// ValidateSQL performs the parseability contract check on a candidate:
// non-empty, a single SELECT statement, balanced quotes and parens.
func ValidateSQL(sqlText string) error {
	trimmed := strings.TrimSpace(sqlText)
	if trimmed == "" {
		return fmt.Errorf("empty SQL")
	}

	upper := strings.ToUpper(trimmed)
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return fmt.Errorf("not a SELECT statement")
	}

	var (
		depth    int
		inSingle bool
		inDouble bool
	)
	for _, r := range trimmed {
		switch {
		case r == '\'' && !inDouble:
			inSingle = !inSingle
		case r == '"' && !inSingle:
			inDouble = !inDouble
		case inSingle || inDouble:
		case r == '(':
			depth++
		case r == ')':
			depth--
			if depth < 0 {
				return fmt.Errorf("unbalanced parentheses")
			}
		}
	}
	if inSingle || inDouble {
		return fmt.Errorf("unterminated string literal")
	}
	if depth != 0 {
		return fmt.Errorf("unbalanced parentheses")
	}
	return nil
}

// sqliteKeywords are identifiers that must be quoted even when they
// contain no special characters
var sqliteKeywords = map[string]bool{
	"select": true, "from": true, "where": true, "table": true, "group": true,
	"order": true, "by": true, "limit": true, "index": true, "values": true,
	"and": true, "or": true, "not": true, "in": true, "is": true, "null": true,
	"join": true, "on": true, "as": true, "case": true, "when": true,
	"then": true, "else": true, "end": true, "to": true, "default": true,
}

// quoteIdent quotes an identifier only when it needs quoting, keeping
// generated SQL close to what a person would write
func quoteIdent(name string) string {
	if name == "" {
		return schema.QuoteIdent(name)
	}
	if sqliteKeywords[strings.ToLower(name)] {
		return schema.QuoteIdent(name)
	}
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z' || r == '_':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return schema.QuoteIdent(name)
		}
	}
	return name
}

// quoteLiteral renders a condition value as a SQL literal
func quoteLiteral(value string, numeric bool) string {
	if numeric {
		return value
	}
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}
