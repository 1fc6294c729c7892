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
	"errors"
	"strings"
	"testing"
)

func usersOrdersTables() []Table {
	return []Table{
		{
			Name: "users",
			Columns: []Column{
				{Name: "user_id", Type: TypeInteger, PrimaryKey: true},
				{Name: "name", Type: TypeText},
				{Name: "country", Type: TypeText},
			},
		},
		{
			Name: "orders",
			Columns: []Column{
				{Name: "order_id", Type: TypeInteger, PrimaryKey: true},
				{Name: "user_id", Type: TypeInteger},
				{Name: "amount", Type: TypeReal},
			},
			ForeignKeys: []ForeignKey{
				{Column: "user_id", ReferencedTable: "users", ReferencedColumn: "user_id"},
			},
		},
	}
}

func TestNew(t *testing.T) {
	s, err := New(usersOrdersTables())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if len(s.Tables) != 2 {
		t.Errorf("got %d tables, want 2", len(s.Tables))
	}

	tbl, ok := s.Table("orders")
	if !ok {
		t.Fatal("Table(orders) not found")
	}
	col, ok := tbl.Column("amount")
	if !ok {
		t.Fatal("Column(amount) not found")
	}
	if !col.IsNumeric() {
		t.Error("amount should be numeric")
	}
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		tables  []Table
		wantMsg string
	}{
		{"no tables", nil, "no tables"},
		{
			"duplicate table",
			[]Table{
				{Name: "t", Columns: []Column{{Name: "a", Type: TypeText}}},
				{Name: "t", Columns: []Column{{Name: "a", Type: TypeText}}},
			},
			"duplicate table",
		},
		{
			"duplicate column",
			[]Table{
				{Name: "t", Columns: []Column{
					{Name: "a", Type: TypeText},
					{Name: "a", Type: TypeInteger},
				}},
			},
			"duplicate column",
		},
		{
			"empty column name",
			[]Table{{Name: "t", Columns: []Column{{Name: "", Type: TypeText}}}},
			"empty name",
		},
		{
			"no columns",
			[]Table{{Name: "t"}},
			"no columns",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.tables)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			var schemaErr *Error
			if !errors.As(err, &schemaErr) {
				t.Fatalf("error is %T, want *schema.Error", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestJSON(t *testing.T) {
	s, err := New(usersOrdersTables())
	if err != nil {
		t.Fatal(err)
	}

	out, err := s.JSON(false)
	if err != nil {
		t.Fatalf("JSON() error: %v", err)
	}

	var decoded struct {
		Tables []struct {
			Name    string `json:"name"`
			Columns []struct {
				Name       string `json:"name"`
				Type       string `json:"type"`
				PrimaryKey bool   `json:"is_primary_key"`
			} `json:"columns"`
			ForeignKeys []ForeignKey `json:"foreign_keys"`
		} `json:"tables"`
	}
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}

	if decoded.Tables[0].Columns[0].Type != "INTEGER" {
		t.Errorf("user_id type = %q, want INTEGER", decoded.Tables[0].Columns[0].Type)
	}
	if !decoded.Tables[0].Columns[0].PrimaryKey {
		t.Error("user_id should serialize is_primary_key=true")
	}

	// Tables without foreign keys serialize an empty array, not null
	if !strings.Contains(string(out), `"foreign_keys":[]`) {
		t.Errorf("users should serialize foreign_keys as [], got:\n%s", out)
	}
}

func TestCreateStatements(t *testing.T) {
	s, err := New(usersOrdersTables())
	if err != nil {
		t.Fatal(err)
	}

	ddl := s.CreateStatements()
	for _, want := range []string{
		`CREATE TABLE "users" (`,
		`"user_id" INTEGER PRIMARY KEY`,
		`"country" TEXT`,
		`FOREIGN KEY ("user_id") REFERENCES "users"("user_id")`,
	} {
		if !strings.Contains(ddl, want) {
			t.Errorf("CreateStatements() missing %q:\n%s", want, ddl)
		}
	}
}

func TestQuoteIdent(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"users", `"users"`},
		{"No. of votes", `"No. of votes"`},
		{`odd"name`, `"odd""name"`},
	}
	for _, tt := range tests {
		if got := QuoteIdent(tt.in); got != tt.want {
			t.Errorf("QuoteIdent(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestMapDeclaredType(t *testing.T) {
	tests := []struct {
		declared string
		want     ColumnType
	}{
		{"text", TypeText},
		{"TEXT", TypeText},
		{"number", TypeInteger},
		{"real", TypeReal},
		{"date", TypeText},
		{" integer ", TypeInteger},
		{"blob", TypeText}, // unknown types default to TEXT
	}
	for _, tt := range tests {
		if got := MapDeclaredType(tt.declared); got != tt.want {
			t.Errorf("MapDeclaredType(%q) = %v, want %v", tt.declared, got, tt.want)
		}
	}
}

func TestFromDescription(t *testing.T) {
	s, err := FromDescription(TableDescription{
		Name:    "games",
		Headers: []string{"rank", "title", "score"},
		Types:   []string{"number", "text", "real"},
	})
	if err != nil {
		t.Fatalf("FromDescription() error: %v", err)
	}

	tbl := s.Tables[0]
	if !tbl.Columns[0].PrimaryKey {
		t.Error("first numeric column should be the primary key")
	}
	if tbl.Columns[1].PrimaryKey || tbl.Columns[2].PrimaryKey {
		t.Error("only the first column may be the primary key")
	}
	for _, col := range tbl.Columns {
		if !col.NotNull {
			t.Errorf("column %s should be NOT NULL", col.Name)
		}
	}
}

func TestFromDescription_TextFirstColumn(t *testing.T) {
	s, err := FromDescription(TableDescription{
		Name:    "cities",
		Headers: []string{"name", "population"},
		Types:   []string{"text", "number"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if s.Tables[0].Columns[0].PrimaryKey {
		t.Error("text first column must not become the primary key")
	}
}

func TestDescriptionSource(t *testing.T) {
	var src Source = DescriptionSource{Description: TableDescription{
		Name:    "games",
		Headers: []string{"rank", "title"},
		Types:   []string{"number", "text"},
	}}

	s, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if _, ok := s.Table("games"); !ok {
		t.Error("Table(games) not found")
	}
}

func TestFromDescription_Invalid(t *testing.T) {
	if _, err := FromDescription(TableDescription{Name: "t"}); err == nil {
		t.Error("expected error for description without columns")
	}
	if _, err := FromDescription(TableDescription{
		Name:    "t",
		Headers: []string{"a", "b"},
		Types:   []string{"text"},
	}); err == nil {
		t.Error("expected error for header/type length mismatch")
	}
}
