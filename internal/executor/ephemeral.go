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
	"fmt"
	"strings"

	"mcp-sqlify/internal/schema"
)

// Materialize builds an in-memory SQLite database from a table
// description and loads its sample rows. The returned handle is owned
// by one pipeline run and closed when the run ends.
func Materialize(ctx context.Context, desc schema.TableDescription) (*sql.DB, error) {
	s, err := schema.FromDescription(desc)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	// An in-memory database exists per connection; keep exactly one
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, s.CreateStatements()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table %q: %w", desc.Name, err)
	}

	if len(desc.Rows) > 0 {
		if err := insertRows(ctx, db, desc); err != nil {
			db.Close()
			return nil, err
		}
	}

	return db, nil
}

// insertRows loads the description's rows with a parameterized insert
func insertRows(ctx context.Context, db *sql.DB, desc schema.TableDescription) error {
	quoted := make([]string, len(desc.Headers))
	params := make([]string, len(desc.Headers))
	for i, h := range desc.Headers {
		quoted[i] = schema.QuoteIdent(h)
		params[i] = "?"
	}
	insertSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		schema.QuoteIdent(desc.Name),
		strings.Join(quoted, ", "),
		strings.Join(params, ", "))

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin insert transaction: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range desc.Rows {
		if len(row) != len(desc.Headers) {
			tx.Rollback()
			return fmt.Errorf("row has %d values but table %q has %d columns",
				len(row), desc.Name, len(desc.Headers))
		}
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert row into %q: %w", desc.Name, err)
		}
	}

	return tx.Commit()
}
