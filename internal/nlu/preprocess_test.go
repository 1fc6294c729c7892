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
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{
			"question with stopwords",
			"How many people are from Taiwan?",
			[]string{"how", "many", "people", "taiwan"},
		},
		{
			"punctuation becomes separators",
			"show (name, country)!",
			[]string{"show", "name", "country"},
		},
		{
			"decimals survive",
			"amount over 3.5",
			[]string{"amount", "over", "3.5"},
		},
		{
			"stray leading punctuation is trimmed",
			"find 'Taipei'",
			[]string{"find", "taipei"},
		},
		{
			"hyphenated words survive",
			"list the best-selling titles",
			[]string{"list", "best-selling", "titles"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := Normalize(tt.raw)
			if err != nil {
				t.Fatalf("Normalize(%q) error: %v", tt.raw, err)
			}
			if !reflect.DeepEqual(q.Tokens, tt.want) {
				t.Errorf("Normalize(%q) = %v, want %v", tt.raw, q.Tokens, tt.want)
			}
			if q.Raw != tt.raw {
				t.Errorf("Raw = %q, want the input preserved", q.Raw)
			}
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	first, err := Normalize("How many people are from Taiwan?")
	if err != nil {
		t.Fatal(err)
	}
	second, err := Normalize(strings.Join(first.Tokens, " "))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first.Tokens, second.Tokens) {
		t.Errorf("normalizing the token text changed it: %v -> %v", first.Tokens, second.Tokens)
	}
}

func TestNormalize_Empty(t *testing.T) {
	for _, raw := range []string{"", "   ", "\t\n", "the of and", "?!"} {
		_, err := Normalize(raw)
		if !errors.Is(err, ErrEmptyInput) {
			t.Errorf("Normalize(%q) error = %v, want ErrEmptyInput", raw, err)
		}
	}
}

func TestIsNumericToken(t *testing.T) {
	tests := []struct {
		token string
		want  bool
	}{
		{"12", true},
		{"3.14", true},
		{"-5", true},
		{"-0.5", true},
		{"", false},
		{"1.2.3", false},
		{"12a", false},
		{"taiwan", false},
		{"-", false},
	}
	for _, tt := range tests {
		if got := isNumericToken(tt.token); got != tt.want {
			t.Errorf("isNumericToken(%q) = %v, want %v", tt.token, got, tt.want)
		}
	}
}
