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
	"errors"
	"strings"
	"testing"

	"mcp-sqlify/internal/executor"
	"mcp-sqlify/internal/nlu"
	"mcp-sqlify/internal/schema"
)

func ordersSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.New([]schema.Table{
		{
			Name: "orders",
			Columns: []schema.Column{
				{Name: "order_id", Type: schema.TypeInteger, PrimaryKey: true},
				{Name: "user_id", Type: schema.TypeInteger},
				{Name: "amount", Type: schema.TypeReal},
				{Name: "status", Type: schema.TypeText},
			},
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func queryMapping(table string, agg nlu.Aggregate) *nlu.EntityMapping {
	return &nlu.EntityMapping{
		Intent: nlu.Intent{Kind: nlu.KindQuery, Aggregate: agg, Operator: nlu.OpEq},
		Table:  table,
	}
}

func TestGenerate_SumWithCondition(t *testing.T) {
	s := ordersSchema(t)
	m := queryMapping("orders", nlu.AggSum)
	m.Bindings = []nlu.ColumnBinding{
		{Span: "order amount", Column: "amount", Score: 1.0, Tier: nlu.TierExact},
		{Span: "user", Column: "user_id", Score: 0.9, Tier: nlu.TierFuzzy, IsCondition: true},
	}
	m.Conditions = []nlu.Condition{
		{Column: "user_id", Operator: nlu.OpEq, Value: "1", Numeric: true},
	}

	candidate, err := NewTemplateStrategy().Generate(context.Background(), m, s)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	want := "SELECT SUM(amount) FROM orders WHERE user_id = 1"
	if candidate.SQL != want {
		t.Errorf("SQL = %q, want %q", candidate.SQL, want)
	}
	if candidate.Strategy != "template" || candidate.Attempt != 1 {
		t.Errorf("provenance = %+v", candidate)
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	s := ordersSchema(t)
	m := queryMapping("orders", nlu.AggNone)
	m.Bindings = []nlu.ColumnBinding{
		{Span: "status", Column: "status", Score: 1.0, Tier: nlu.TierExact},
	}
	m.Conditions = []nlu.Condition{
		{Column: "amount", Operator: nlu.OpGt, Value: "10", Numeric: true},
	}

	strat := NewTemplateStrategy()
	first, err := strat.Generate(context.Background(), m, s)
	if err != nil {
		t.Fatalf("first Generate: %v", err)
	}
	second, err := strat.Generate(context.Background(), m, s)
	if err != nil {
		t.Fatalf("second Generate: %v", err)
	}
	if first.SQL != second.SQL {
		t.Errorf("repeat generation diverged: %q vs %q", first.SQL, second.SQL)
	}
	want := "SELECT status FROM orders WHERE amount > 10"
	if first.SQL != want {
		t.Errorf("SQL = %q, want %q", first.SQL, want)
	}
}

func TestGenerate_CountStar(t *testing.T) {
	s := ordersSchema(t)
	m := queryMapping("orders", nlu.AggCount)
	m.Conditions = []nlu.Condition{
		{Column: "status", Operator: nlu.OpEq, Value: "shipped"},
	}

	candidate, err := NewTemplateStrategy().Generate(context.Background(), m, s)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	want := "SELECT COUNT(*) FROM orders WHERE status = 'shipped'"
	if candidate.SQL != want {
		t.Errorf("SQL = %q, want %q", candidate.SQL, want)
	}
}

func TestGenerate_StarFallback(t *testing.T) {
	s := ordersSchema(t)
	m := queryMapping("orders", nlu.AggNone)

	candidate, err := NewTemplateStrategy().Generate(context.Background(), m, s)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if candidate.SQL != "SELECT * FROM orders" {
		t.Errorf("SQL = %q", candidate.SQL)
	}
}

func TestGenerate_SumSkipsPrimaryKey(t *testing.T) {
	s := ordersSchema(t)
	m := queryMapping("orders", nlu.AggSum)
	// order_id is bound but is the key; amount must win the aggregate
	m.Bindings = []nlu.ColumnBinding{
		{Span: "order", Column: "order_id", Score: 0.9, Tier: nlu.TierFuzzy},
		{Span: "amount", Column: "amount", Score: 1.0, Tier: nlu.TierExact},
	}

	candidate, err := NewTemplateStrategy().Generate(context.Background(), m, s)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if candidate.SQL != "SELECT SUM(amount) FROM orders" {
		t.Errorf("SQL = %q", candidate.SQL)
	}
}

func TestGenerate_SumFallsBackToOnlyNumericColumn(t *testing.T) {
	// No column is bound, but total is the table's only non-key
	// numeric column so the aggregate target is still unambiguous.
	s, err := schema.New([]schema.Table{
		{
			Name: "sales",
			Columns: []schema.Column{
				{Name: "id", Type: schema.TypeInteger, PrimaryKey: true},
				{Name: "total", Type: schema.TypeReal},
				{Name: "region", Type: schema.TypeText},
			},
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	m := queryMapping("sales", nlu.AggAvg)

	candidate, err := NewTemplateStrategy().Generate(context.Background(), m, s)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if candidate.SQL != "SELECT AVG(total) FROM sales" {
		t.Errorf("SQL = %q", candidate.SQL)
	}
}

func TestGenerate_Errors(t *testing.T) {
	s := ordersSchema(t)
	strat := NewTemplateStrategy()

	tests := []struct {
		name    string
		mapping *nlu.EntityMapping
		wantMsg string
	}{
		{"nil mapping", nil, "no entity mapping"},
		{"empty table", &nlu.EntityMapping{Intent: nlu.Intent{Kind: nlu.KindQuery}}, "no entity mapping"},
		{
			"non-query intent",
			&nlu.EntityMapping{Intent: nlu.Intent{Kind: nlu.KindNonQuery}, Table: "orders"},
			"not a data query",
		},
		{
			"unknown table",
			queryMapping("invoices", nlu.AggNone),
			"unknown table",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := strat.Generate(context.Background(), tt.mapping, s)
			var genErr *GenerationError
			if !errors.As(err, &genErr) {
				t.Fatalf("err = %v, want GenerationError", err)
			}
			if !strings.Contains(genErr.Message, tt.wantMsg) {
				t.Errorf("message = %q, want substring %q", genErr.Message, tt.wantMsg)
			}
		})
	}
}

func TestGenerate_SumWithNoNumericChoice(t *testing.T) {
	s, err := schema.New([]schema.Table{
		{
			Name: "notes",
			Columns: []schema.Column{
				{Name: "id", Type: schema.TypeInteger, PrimaryKey: true},
				{Name: "title", Type: schema.TypeText},
				{Name: "body", Type: schema.TypeText},
			},
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	m := queryMapping("notes", nlu.AggSum)

	_, err = NewTemplateStrategy().Generate(context.Background(), m, s)
	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("err = %v, want GenerationError", err)
	}
}

func TestRepair_IdenticalSQLFails(t *testing.T) {
	s := ordersSchema(t)
	m := queryMapping("orders", nlu.AggCount)
	strat := NewTemplateStrategy()

	prior, err := strat.Generate(context.Background(), m, s)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	failure := &executor.Failure{Kind: executor.FailRuntime, Message: "no such table: orders"}

	_, err = strat.Repair(context.Background(), m, s, prior, failure)
	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("err = %v, want GenerationError", err)
	}
	if !strings.Contains(genErr.Message, "cannot revise") {
		t.Errorf("message = %q", genErr.Message)
	}
}

func TestValidateSQL(t *testing.T) {
	tests := []struct {
		name    string
		sql     string
		wantErr string
	}{
		{"plain select", "SELECT * FROM t", ""},
		{"lowercase select", "select count(*) from t", ""},
		{"with clause", "WITH x AS (SELECT 1) SELECT * FROM x", ""},
		{"quotes hide parens", "SELECT * FROM t WHERE a = '(('", ""},
		{"empty", "", "empty SQL"},
		{"whitespace", "   \n", "empty SQL"},
		{"insert", "INSERT INTO t VALUES (1)", "not a SELECT"},
		{"delete", "DELETE FROM t", "not a SELECT"},
		{"open paren", "SELECT COUNT( FROM t", "unbalanced parentheses"},
		{"stray close", "SELECT a) FROM t", "unbalanced parentheses"},
		{"unterminated literal", "SELECT * FROM t WHERE a = 'x", "unterminated string"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSQL(tt.sql)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("ValidateSQL(%q) = %v, want nil", tt.sql, err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ValidateSQL(%q) = %v, want substring %q", tt.sql, err, tt.wantErr)
			}
		})
	}
}

func TestQuoteIdent(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"amount", "amount"},
		{"user_id", "user_id"},
		{"Amount", "Amount"},
		{"order", `"order"`},
		{"GROUP", `"GROUP"`},
		{"total sales", `"total sales"`},
		{"2nd_place", `"2nd_place"`},
		{"", `""`},
	}
	for _, tt := range tests {
		if got := quoteIdent(tt.in); got != tt.want {
			t.Errorf("quoteIdent(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestQuoteLiteral(t *testing.T) {
	if got := quoteLiteral("42", true); got != "42" {
		t.Errorf("numeric literal = %q", got)
	}
	if got := quoteLiteral("Taiwan", false); got != "'Taiwan'" {
		t.Errorf("text literal = %q", got)
	}
	if got := quoteLiteral("O'Brien", false); got != "'O''Brien'" {
		t.Errorf("escaped literal = %q", got)
	}
}
