/*-------------------------------------------------------------------------
 *
 * mcp-sqlify Text-to-SQL Agent
 *
 * Copyright (c) 2025, the mcp-sqlify authors
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package schema

import (
	"context"
	"strings"
)

// TableDescription is the structured ingest shape: a table defined by
// header names, declared types, and optional sample rows. This is what
// dataset readers (e.g. the WikiSQL reader) hand to the pipeline.
type TableDescription struct {
	Name    string
	Headers []string
	Types   []string
	Rows    [][]interface{}
}

// declaredTypeMap folds loosely-declared dataset types into canonical
// column types. SQLite has no dedicated date type, so dates stay TEXT.
var declaredTypeMap = map[string]ColumnType{
	"text":    TypeText,
	"number":  TypeInteger,
	"integer": TypeInteger,
	"int":     TypeInteger,
	"real":    TypeReal,
	"float":   TypeReal,
	"date":    TypeText,
}

// MapDeclaredType converts a declared dataset type to a canonical type.
// Unknown types default to TEXT.
func MapDeclaredType(declared string) ColumnType {
	if t, ok := declaredTypeMap[strings.ToLower(strings.TrimSpace(declared))]; ok {
		return t
	}
	return TypeText
}

// FromDescription builds a validated single-table Schema from a table
// description. The first column becomes the primary key when it is
// numeric; all columns are treated as non-null.
func FromDescription(desc TableDescription) (*Schema, error) {
	if desc.Name == "" {
		return nil, Errorf("table description has no name")
	}
	if len(desc.Headers) == 0 {
		return nil, Errorf("table description %q has no columns", desc.Name)
	}
	if len(desc.Types) != len(desc.Headers) {
		return nil, Errorf("table description %q: %d headers but %d types",
			desc.Name, len(desc.Headers), len(desc.Types))
	}

	cols := make([]Column, len(desc.Headers))
	for i, header := range desc.Headers {
		colType := MapDeclaredType(desc.Types[i])
		cols[i] = Column{
			Name:       header,
			Type:       colType,
			NotNull:    true,
			PrimaryKey: i == 0 && colType == TypeInteger,
		}
	}

	return New([]Table{{Name: desc.Name, Columns: cols}})
}

// DescriptionSource adapts a TableDescription to the Source interface
type DescriptionSource struct {
	Description TableDescription
}

func (s DescriptionSource) Load(_ context.Context) (*Schema, error) {
	return FromDescription(s.Description)
}
