/*-------------------------------------------------------------------------
 *
 * mcp-sqlify Text-to-SQL Agent
 *
 * Copyright (c) 2025, the mcp-sqlify authors
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package wikisql

import (
	"bufio"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"os"
	"strings"

	"mcp-sqlify/internal/schema"
)

// Table is the WikiSQL table payload: header names, declared types and
// the cell rows
type Table struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Header []string        `json:"header"`
	Types  []string        `json:"types"`
	Rows   [][]interface{} `json:"rows"`
}

// SQL is the WikiSQL gold query annotation. Only the human-readable
// form is needed for evaluation; the structured fields are kept for
// completeness.
type SQL struct {
	HumanReadable string          `json:"human_readable"`
	Sel           int             `json:"sel"`
	Agg           int             `json:"agg"`
	Conds         json.RawMessage `json:"conds,omitempty"`
}

// Example is one WikiSQL question with its table and gold query
type Example struct {
	Question string `json:"question"`
	Table    Table  `json:"table"`
	SQL      SQL    `json:"sql"`
}

// ReadSplit reads a JSONL split file. A limit of zero reads everything.
func ReadSplit(path string, limit int) ([]Example, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open split file: %w", err)
	}
	defer f.Close()

	var examples []Example
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var ex Example
		if err := json.Unmarshal([]byte(text), &ex); err != nil {
			return nil, fmt.Errorf("failed to parse line %d of %s: %w", line, path, err)
		}
		examples = append(examples, ex)
		if limit > 0 && len(examples) >= limit {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read split file: %w", err)
	}

	return examples, nil
}

// TableName returns a stable SQL-safe table name for the example.
// Annotated names win; otherwise one is derived from the table ID or,
// failing that, hashed from the headers and question.
func (e *Example) TableName() string {
	if e.Table.Name != "" {
		return sanitizeName(e.Table.Name)
	}
	if e.Table.ID != "" {
		return "table_" + sanitizeName(e.Table.ID)
	}

	h := fnv.New32a()
	for _, header := range e.Table.Header {
		h.Write([]byte(header))
	}
	for i, word := range strings.Fields(e.Question) {
		if i >= 3 {
			break
		}
		h.Write([]byte(word))
	}
	return fmt.Sprintf("ex_%04d", h.Sum32()%10000)
}

// Description converts the example's table to the canonical ingest shape
func (e *Example) Description() schema.TableDescription {
	return schema.TableDescription{
		Name:    e.TableName(),
		Headers: e.Table.Header,
		Types:   e.Table.Types,
		Rows:    e.Table.Rows,
	}
}

// GoldSQL rewrites the annotation's generic "table" reference to the
// materialized table name so the gold query is executable
func (e *Example) GoldSQL() string {
	raw := e.SQL.HumanReadable
	if raw == "" {
		return ""
	}
	quoted := schema.QuoteIdent(e.TableName())
	for _, generic := range []string{"FROM table", "from table"} {
		if strings.Contains(raw, generic) {
			return strings.Replace(raw, generic, "FROM "+quoted, 1)
		}
	}
	return raw
}

// sanitizeName folds an annotated identifier into [a-z0-9_]
func sanitizeName(name string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	return sb.String()
}
