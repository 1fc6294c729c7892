/*-------------------------------------------------------------------------
 *
 * mcp-sqlify Text-to-SQL Agent
 *
 * Copyright (c) 2025, the mcp-sqlify authors
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package executor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"mcp-sqlify/internal/logging"
)

// FailureKind classifies an execution failure
type FailureKind string

const (
	FailSyntax  FailureKind = "syntax"
	FailRuntime FailureKind = "runtime"
	FailTimeout FailureKind = "timeout"
)

// Failure is a structured execution failure. It is returned, not
// raised past the pipeline boundary; the orchestrator decides whether
// to feed it back to the generator.
type Failure struct {
	Kind     FailureKind
	Message  string
	Fragment string // offending SQL fragment, when extractable
	SQL      string
}

func (f *Failure) Error() string {
	if f.Fragment != "" {
		return fmt.Sprintf("execution failed (%s) near %q: %s", f.Kind, f.Fragment, f.Message)
	}
	return fmt.Sprintf("execution failed (%s): %s", f.Kind, f.Message)
}

// Result is a successful execution: the raw row set, returned verbatim
// for comparison against a gold result by an external evaluator
type Result struct {
	Columns []string
	Rows    [][]interface{}
}

// Empty reports whether the query matched no rows
func (r *Result) Empty() bool {
	return len(r.Rows) == 0
}

// DefaultTimeout bounds a single query execution
const DefaultTimeout = 5 * time.Second

// Executor runs candidate queries against a SQLite database under a
// read-only session
type Executor struct {
	timeout time.Duration
}

// New creates an Executor with the given per-query timeout.
// A non-positive timeout falls back to the default.
func New(timeout time.Duration) *Executor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Executor{timeout: timeout}
}

// nearFragment extracts the offending fragment from SQLite messages
// like `near "FROMM": syntax error`
var nearFragment = regexp.MustCompile(`near "([^"]+)"`)

// Execute runs one query on a dedicated read-only connection. On
// failure it returns a classified Failure instead of a bare error.
func (e *Executor) Execute(ctx context.Context, db *sql.DB, query string) (*Result, *Failure) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, classify(query, err)
	}
	defer conn.Close()

	// The canonical data store is never mutated through this session
	if _, err := conn.ExecContext(ctx, "PRAGMA query_only = ON"); err != nil {
		return nil, classify(query, err)
	}
	defer func() {
		// Reset before the connection returns to the pool
		_, _ = conn.ExecContext(context.Background(), "PRAGMA query_only = OFF")
	}()

	start := time.Now()
	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return nil, classify(query, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, classify(query, err)
	}

	var result Result
	result.Columns = cols
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, classify(query, err)
		}
		for i, v := range values {
			// Keep rows comparable across driver differences
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(query, err)
	}

	logging.Debug("query executed",
		"rows", len(result.Rows),
		"duration_ms", time.Since(start).Milliseconds())

	return &result, nil
}

// classify maps a database error to the failure taxonomy
func classify(query string, err error) *Failure {
	f := &Failure{
		Kind:    FailRuntime,
		Message: err.Error(),
		SQL:     query,
	}

	if errors.Is(err, context.DeadlineExceeded) {
		f.Kind = FailTimeout
		f.Message = "query execution exceeded timeout"
		return f
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "syntax error") ||
		strings.Contains(msg, "incomplete input") ||
		strings.Contains(msg, "unrecognized token") {
		f.Kind = FailSyntax
	}
	if m := nearFragment.FindStringSubmatch(err.Error()); len(m) > 1 {
		f.Fragment = m[1]
	}

	return f
}
