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
	"encoding/json"
	"fmt"
	"strings"
)

// ColumnType is the canonical declared type of a column.
// Everything a loader sees is folded into one of these.
type ColumnType string

const (
	TypeText    ColumnType = "TEXT"
	TypeInteger ColumnType = "INTEGER"
	TypeReal    ColumnType = "REAL"
)

// Column describes a single column of a table
type Column struct {
	Name       string     `json:"name"`
	Type       ColumnType `json:"type"`
	NotNull    bool       `json:"not_null"`
	PrimaryKey bool       `json:"is_primary_key"`
}

// IsNumeric reports whether values of this column compare as numbers
func (c Column) IsNumeric() bool {
	return c.Type == TypeInteger || c.Type == TypeReal
}

// ForeignKey describes a single foreign key reference
type ForeignKey struct {
	Column           string `json:"column"`
	ReferencedTable  string `json:"referenced_table"`
	ReferencedColumn string `json:"referenced_column"`
}

// Table describes a table: a name plus its ordered columns
type Table struct {
	Name        string       `json:"name"`
	Columns     []Column     `json:"columns"`
	ForeignKeys []ForeignKey `json:"foreign_keys"`
}

// Column returns the column with the given name, if present
func (t *Table) Column(name string) (*Column, bool) {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

// Schema is the canonical description of the tables available for query.
// It is built once per pipeline run and never modified afterwards.
type Schema struct {
	Tables []Table `json:"tables"`
}

// Error reports a malformed or ambiguous schema
type Error struct {
	Message string
}

func (e *Error) Error() string {
	return "schema error: " + e.Message
}

// Errorf builds a schema Error from a format string
func Errorf(format string, args ...interface{}) *Error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

// Source produces a Schema from some backing store or description.
// Implementations must not retain the context past the call.
type Source interface {
	Load(ctx context.Context) (*Schema, error)
}

// New builds a validated Schema from a set of tables.
// Table names must be unique within the schema and column names
// unique within each table.
func New(tables []Table) (*Schema, error) {
	if len(tables) == 0 {
		return nil, Errorf("schema contains no tables")
	}

	seenTables := make(map[string]bool, len(tables))
	for _, tbl := range tables {
		if tbl.Name == "" {
			return nil, Errorf("table with empty name")
		}
		if seenTables[tbl.Name] {
			return nil, Errorf("duplicate table name %q", tbl.Name)
		}
		seenTables[tbl.Name] = true

		if len(tbl.Columns) == 0 {
			return nil, Errorf("table %q has no columns", tbl.Name)
		}
		seenCols := make(map[string]bool, len(tbl.Columns))
		for _, col := range tbl.Columns {
			if col.Name == "" {
				return nil, Errorf("table %q has a column with empty name", tbl.Name)
			}
			if seenCols[col.Name] {
				return nil, Errorf("duplicate column name %q in table %q", col.Name, tbl.Name)
			}
			seenCols[col.Name] = true
		}
	}

	return &Schema{Tables: tables}, nil
}

// Table returns the table with the given name, if present
func (s *Schema) Table(name string) (*Table, bool) {
	for i := range s.Tables {
		if s.Tables[i].Name == name {
			return &s.Tables[i], true
		}
	}
	return nil, false
}

// JSON serializes the schema to the canonical JSON shape
func (s *Schema) JSON(pretty bool) ([]byte, error) {
	// Keep foreign_keys as [] rather than null in the output
	out := *s
	for i := range out.Tables {
		if out.Tables[i].ForeignKeys == nil {
			out.Tables[i].ForeignKeys = []ForeignKey{}
		}
	}
	if pretty {
		return json.MarshalIndent(&out, "", "  ")
	}
	return json.Marshal(&out)
}

// CreateStatements renders the schema as CREATE TABLE text.
// This is the schema context handed to the LLM generation strategy.
func (s *Schema) CreateStatements() string {
	var sb strings.Builder
	for i, tbl := range s.Tables {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(fmt.Sprintf("CREATE TABLE %s (", QuoteIdent(tbl.Name)))
		for j, col := range tbl.Columns {
			if j > 0 {
				sb.WriteString(",")
			}
			sb.WriteString("\n  ")
			sb.WriteString(QuoteIdent(col.Name))
			sb.WriteString(" ")
			sb.WriteString(string(col.Type))
			if col.PrimaryKey {
				sb.WriteString(" PRIMARY KEY")
			} else if col.NotNull {
				sb.WriteString(" NOT NULL")
			}
		}
		for _, fk := range tbl.ForeignKeys {
			sb.WriteString(",\n  ")
			sb.WriteString(fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s(%s)",
				QuoteIdent(fk.Column), QuoteIdent(fk.ReferencedTable), QuoteIdent(fk.ReferencedColumn)))
		}
		sb.WriteString("\n);")
	}
	return sb.String()
}

// QuoteIdent quotes an identifier for use in SQL text.
// Embedded double quotes are doubled per the SQL standard.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
