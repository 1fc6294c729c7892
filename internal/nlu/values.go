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
	"database/sql"
	"fmt"
	"strings"

	"mcp-sqlify/internal/schema"
)

// ColumnRef names one column of one table
type ColumnRef struct {
	Table  string
	Column string
}

// ValueIndex maps normalized cell values to the columns they occur in.
// It lets the linker ground condition values ("Taiwan") to the column
// holding them. Built from the sample rows of a table description;
// optional, the linker degrades without it.
type ValueIndex struct {
	entries map[string]*valueEntry
}

type valueEntry struct {
	original string
	columns  []ColumnRef
}

// NewValueIndex returns an empty index
func NewValueIndex() *ValueIndex {
	return &ValueIndex{entries: make(map[string]*valueEntry)}
}

// Add records that value occurs in the given column
func (vi *ValueIndex) Add(table, column string, value interface{}) {
	if value == nil {
		return
	}
	original := fmt.Sprintf("%v", value)
	key := normalizeValue(original)
	if key == "" {
		return
	}

	entry, ok := vi.entries[key]
	if !ok {
		entry = &valueEntry{original: original}
		vi.entries[key] = entry
	}
	for _, ref := range entry.columns {
		if ref.Table == table && ref.Column == column {
			return
		}
	}
	entry.columns = append(entry.columns, ColumnRef{Table: table, Column: column})
}

// Lookup returns the original value text and the columns containing it
// for a normalized token span, or ok=false when the span is unknown
func (vi *ValueIndex) Lookup(span string) (original string, columns []ColumnRef, ok bool) {
	entry, found := vi.entries[normalizeValue(span)]
	if !found {
		return "", nil, false
	}
	return entry.original, entry.columns, true
}

// Len returns the number of distinct indexed values
func (vi *ValueIndex) Len() int {
	return len(vi.entries)
}

// BuildValueIndex indexes every cell of a table description's sample rows
func BuildValueIndex(desc schema.TableDescription) *ValueIndex {
	vi := NewValueIndex()
	for _, row := range desc.Rows {
		for i, cell := range row {
			if i >= len(desc.Headers) {
				break
			}
			vi.Add(desc.Name, desc.Headers[i], cell)
		}
	}
	return vi
}

// SampleValues builds a value index from a live database by sampling
// distinct values of every text column, capped per column
func SampleValues(ctx context.Context, db *sql.DB, s *schema.Schema, perColumn int) (*ValueIndex, error) {
	vi := NewValueIndex()
	for _, tbl := range s.Tables {
		for _, col := range tbl.Columns {
			if col.IsNumeric() {
				continue
			}
			query := fmt.Sprintf("SELECT DISTINCT %s FROM %s WHERE %s IS NOT NULL LIMIT %d",
				schema.QuoteIdent(col.Name), schema.QuoteIdent(tbl.Name),
				schema.QuoteIdent(col.Name), perColumn)
			rows, err := db.QueryContext(ctx, query)
			if err != nil {
				return nil, fmt.Errorf("failed to sample %s.%s: %w", tbl.Name, col.Name, err)
			}
			for rows.Next() {
				var value interface{}
				if err := rows.Scan(&value); err != nil {
					rows.Close()
					return nil, fmt.Errorf("failed to scan sample of %s.%s: %w", tbl.Name, col.Name, err)
				}
				if b, ok := value.([]byte); ok {
					value = string(b)
				}
				vi.Add(tbl.Name, col.Name, value)
			}
			if err := rows.Err(); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to sample %s.%s: %w", tbl.Name, col.Name, err)
			}
			rows.Close()
		}
	}
	return vi, nil
}

// normalizeValue folds a cell value the same way question tokens are
// folded, so lookups line up with the token stream
func normalizeValue(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(s))), " ")
}
