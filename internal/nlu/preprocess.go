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
	"strings"
	"unicode"
)

// ErrEmptyInput reports a question with no usable text
var ErrEmptyInput = errors.New("empty question text")

// Question holds a natural-language question: the raw string kept for
// traceability plus its normalized token sequence. Immutable once built.
type Question struct {
	Raw    string
	Tokens []string
}

// stopwords are filtered from the token sequence. Aggregation and
// comparison cue words are deliberately absent; intent classification
// reads the raw string instead.
var stopwords = map[string]bool{
	"a": true, "an": true, "the": true,
	"is": true, "are": true, "was": true, "were": true, "be": true, "been": true,
	"of": true, "for": true, "from": true, "in": true, "on": true, "at": true,
	"to": true, "by": true, "with": true,
	"and": true, "or": true,
	"as": true, "that": true, "this": true, "these": true, "those": true,
	"there": true, "it": true, "its": true,
	"do": true, "does": true, "did": true,
	"me": true, "my": true, "all": true, "please": true,
}

// Normalize converts a raw question into its token sequence:
// lowercased, punctuation-stripped, stopword-filtered. The operation
// is idempotent over the joined token text.
func Normalize(raw string) (*Question, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrEmptyInput
	}

	lower := strings.ToLower(raw)

	var sb strings.Builder
	sb.Grow(len(lower))
	for _, r := range lower {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(r)
		case r == '.' || r == '-' || r == '\'':
			// Kept so decimals, hyphenated words and possessives
			// survive splitting; stray ones are trimmed below
			sb.WriteRune(r)
		default:
			sb.WriteRune(' ')
		}
	}

	var tokens []string
	for _, field := range strings.Fields(sb.String()) {
		token := strings.Trim(field, ".-'")
		if token == "" || stopwords[token] {
			continue
		}
		tokens = append(tokens, token)
	}
	if len(tokens) == 0 {
		return nil, ErrEmptyInput
	}

	return &Question{Raw: raw, Tokens: tokens}, nil
}

// isNumericToken reports whether a token parses as a bare number
func isNumericToken(token string) bool {
	if token == "" {
		return false
	}
	dot := false
	digit := false
	for i, r := range token {
		switch {
		case r >= '0' && r <= '9':
			digit = true
		case r == '.' && !dot && i > 0:
			dot = true
		case r == '-' && i == 0:
		default:
			return false
		}
	}
	return digit
}
