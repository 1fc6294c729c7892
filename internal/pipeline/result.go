/*-------------------------------------------------------------------------
 *
 * mcp-sqlify Text-to-SQL Agent
 *
 * Copyright (c) 2025, the mcp-sqlify authors
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package pipeline

import "fmt"

// Stage identifies one pipeline stage for error context
type Stage string

const (
	StageLoad     Stage = "load"
	StageLink     Stage = "link"
	StageGenerate Stage = "generate"
	StageExecute  Stage = "execute"
)

// State tracks one run through the pipeline state machine
type State string

const (
	StateLoaded       State = "LOADED"
	StateLinked       State = "LINKED"
	StateGenerated    State = "GENERATED"
	StateExecutedOK   State = "EXECUTED_OK"
	StateExecutedFail State = "EXECUTED_FAIL"
	StateFailed       State = "FAILED"
)

// Status is the terminal outcome in the result contract
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Error kinds in the result contract
const (
	KindSchema    = "schema"
	KindEmptyIn   = "empty_input"
	KindAmbiguous = "linking_ambiguous"
	KindGenerate  = "generation"
	KindExecution = "execution"
	KindTimeout   = "timeout"
	KindCancelled = "cancelled"
)

// ResultError is the error half of the result contract
type ResultError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// RunResult is the terminal artifact of one pipeline run. On success
// Rows holds the result set verbatim and Empty marks a query that
// matched nothing; on error the taxonomy kind and message are filled
// in and Rows is nil.
type RunResult struct {
	RunID    string           `json:"run_id"`
	Status   Status           `json:"status"`
	State    State            `json:"state"`
	SQL      string           `json:"sql,omitempty"`
	Strategy string           `json:"strategy,omitempty"`
	Attempts int              `json:"attempts"`
	Columns  []string         `json:"columns,omitempty"`
	Rows     [][]interface{}  `json:"rows,omitempty"`
	Empty    bool             `json:"empty,omitempty"`
	Error    *ResultError     `json:"error,omitempty"`
}

// StageError wraps an error with the stage it occurred in. The
// underlying error stays reachable through errors.As for taxonomy
// inspection.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
