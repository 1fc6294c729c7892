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
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleSplit = `{"question": "How many entries are from Taiwan?", "table": {"id": "1-1000-1", "header": ["Name", "Country"], "types": ["text", "text"], "rows": [["Ang Lee", "Taiwan"], ["Claire Denis", "France"]]}, "sql": {"human_readable": "SELECT COUNT Name FROM table WHERE Country = Taiwan", "sel": 0, "agg": 3}}

{"question": "What is the total?", "table": {"header": ["Total"], "types": ["number"], "rows": [[5]]}, "sql": {"human_readable": "SELECT SUM Total FROM table", "sel": 0, "agg": 4}}
`

func writeSplit(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dev.jsonl")
	if err := os.WriteFile(path, []byte(sampleSplit), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestReadSplit(t *testing.T) {
	examples, err := ReadSplit(writeSplit(t), 0)
	if err != nil {
		t.Fatalf("ReadSplit: %v", err)
	}
	if len(examples) != 2 {
		t.Fatalf("len = %d, want 2 (blank lines skipped)", len(examples))
	}

	ex := examples[0]
	if ex.Question != "How many entries are from Taiwan?" {
		t.Errorf("Question = %q", ex.Question)
	}
	if len(ex.Table.Header) != 2 || ex.Table.Header[1] != "Country" {
		t.Errorf("Header = %v", ex.Table.Header)
	}
	if len(ex.Table.Rows) != 2 {
		t.Errorf("Rows = %v", ex.Table.Rows)
	}
	if ex.SQL.Agg != 3 {
		t.Errorf("Agg = %d", ex.SQL.Agg)
	}
}

func TestReadSplit_Limit(t *testing.T) {
	examples, err := ReadSplit(writeSplit(t), 1)
	if err != nil {
		t.Fatalf("ReadSplit: %v", err)
	}
	if len(examples) != 1 {
		t.Errorf("len = %d, want 1", len(examples))
	}
}

func TestReadSplit_MissingFile(t *testing.T) {
	if _, err := ReadSplit(filepath.Join(t.TempDir(), "absent.jsonl"), 0); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestReadSplit_MalformedLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.jsonl")
	if err := os.WriteFile(path, []byte("{not json}\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	_, err := ReadSplit(path, 0)
	if err == nil || !strings.Contains(err.Error(), "line 1") {
		t.Errorf("err = %v, want parse error naming line 1", err)
	}
}

func TestTableName(t *testing.T) {
	tests := []struct {
		name string
		ex   Example
		want string
	}{
		{
			"annotated name",
			Example{Table: Table{Name: "Film Awards 2019"}},
			"film_awards_2019",
		},
		{
			"derived from id",
			Example{Table: Table{ID: "1-1000-1"}},
			"table_1_1000_1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ex.TableName(); got != tt.want {
				t.Errorf("TableName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTableName_HashedFallbackIsStable(t *testing.T) {
	ex := Example{
		Question: "what is the capital of france",
		Table:    Table{Header: []string{"Country", "Capital"}},
	}
	first := ex.TableName()
	if !strings.HasPrefix(first, "ex_") || len(first) != 7 {
		t.Errorf("fallback name = %q", first)
	}
	if second := ex.TableName(); second != first {
		t.Errorf("fallback name not stable: %q vs %q", second, first)
	}
}

func TestGoldSQL(t *testing.T) {
	ex := Example{
		Table: Table{ID: "1-1000-1"},
		SQL:   SQL{HumanReadable: "SELECT COUNT Name FROM table WHERE Country = Taiwan"},
	}
	got := ex.GoldSQL()
	if !strings.Contains(got, `FROM "table_1_1000_1"`) {
		t.Errorf("GoldSQL() = %q", got)
	}
	if strings.Contains(got, "FROM table ") {
		t.Errorf("generic table reference survived: %q", got)
	}
}

func TestGoldSQL_Empty(t *testing.T) {
	ex := Example{}
	if got := ex.GoldSQL(); got != "" {
		t.Errorf("GoldSQL() = %q, want empty", got)
	}
}

func TestDescription(t *testing.T) {
	ex := Example{
		Table: Table{
			Name:   "Awards",
			Header: []string{"Year", "Winner"},
			Types:  []string{"number", "text"},
			Rows:   [][]interface{}{{2019.0, "Parasite"}},
		},
	}
	desc := ex.Description()
	if desc.Name != "awards" {
		t.Errorf("Name = %q", desc.Name)
	}
	if len(desc.Headers) != 2 || desc.Headers[0] != "Year" {
		t.Errorf("Headers = %v", desc.Headers)
	}
	if len(desc.Types) != 2 || desc.Types[0] != "number" {
		t.Errorf("Types = %v", desc.Types)
	}
	if len(desc.Rows) != 1 {
		t.Errorf("Rows = %v", desc.Rows)
	}
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Film Awards", "film_awards"},
		{"1-1000-1", "1_1000_1"},
		{"already_ok", "already_ok"},
		{"Tricky (2019)!", "tricky__2019__"},
	}
	for _, tt := range tests {
		if got := sanitizeName(tt.in); got != tt.want {
			t.Errorf("sanitizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
