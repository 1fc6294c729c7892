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

import (
	"context"
	"database/sql"

	"mcp-sqlify/internal/executor"
	"mcp-sqlify/internal/nlu"
	"mcp-sqlify/internal/schema"
)

// Target bundles what one run executes against: a schema source and an
// executable database instance. Each run owns its target exclusively.
type Target interface {
	// LoadSchema produces the canonical schema for the run
	LoadSchema(ctx context.Context) (*schema.Schema, error)

	// OpenDatabase returns the database the candidate query runs
	// against, plus a cleanup to call when the run ends
	OpenDatabase(ctx context.Context) (*sql.DB, func(), error)

	// Values returns the value index for condition grounding, or nil
	Values(ctx context.Context) *nlu.ValueIndex
}

// DescriptionTarget runs against an ephemeral in-memory database
// materialized from a structured table description. This is the shape
// a dataset reader (e.g. the WikiSQL reader) produces.
type DescriptionTarget struct {
	Description schema.TableDescription
}

func (t DescriptionTarget) LoadSchema(ctx context.Context) (*schema.Schema, error) {
	return schema.DescriptionSource{Description: t.Description}.Load(ctx)
}

func (t DescriptionTarget) OpenDatabase(ctx context.Context) (*sql.DB, func(), error) {
	db, err := executor.Materialize(ctx, t.Description)
	if err != nil {
		return nil, nil, err
	}
	return db, func() { db.Close() }, nil
}

func (t DescriptionTarget) Values(_ context.Context) *nlu.ValueIndex {
	return nlu.BuildValueIndex(t.Description)
}

// DatabaseTarget runs against a live SQLite handle. The caller keeps
// ownership of the handle; execution is read-only regardless.
type DatabaseTarget struct {
	DB *sql.DB

	// SampleLimit caps per-column value sampling for the linker.
	// Zero disables sampling.
	SampleLimit int
}

func (t DatabaseTarget) LoadSchema(ctx context.Context) (*schema.Schema, error) {
	return schema.SQLiteSource{DB: t.DB}.Load(ctx)
}

func (t DatabaseTarget) OpenDatabase(_ context.Context) (*sql.DB, func(), error) {
	return t.DB, func() {}, nil
}

func (t DatabaseTarget) Values(ctx context.Context) *nlu.ValueIndex {
	if t.SampleLimit <= 0 {
		return nil
	}
	s, err := schema.LoadSQLite(ctx, t.DB)
	if err != nil {
		return nil
	}
	vi, err := nlu.SampleValues(ctx, t.DB, s, t.SampleLimit)
	if err != nil {
		return nil
	}
	return vi
}
