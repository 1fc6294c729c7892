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
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"mcp-sqlify/internal/logging"
	"mcp-sqlify/internal/schema"
)

// Converter materializes WikiSQL examples into a SQLite database file,
// one table per example
type Converter struct {
	db   *sql.DB
	path string
}

// OpenConverter opens or creates the database file
func OpenConverter(path string) (*Converter, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &Converter{db: db, path: path}, nil
}

// Close closes the database
func (c *Converter) Close() error {
	return c.db.Close()
}

// ConvertExample creates the example's table and loads its rows.
// An existing table with the same name is replaced.
func (c *Converter) ConvertExample(ctx context.Context, ex *Example) error {
	desc := ex.Description()
	s, err := schema.FromDescription(desc)
	if err != nil {
		return err
	}

	name := schema.QuoteIdent(desc.Name)
	if _, err := c.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+name); err != nil {
		return fmt.Errorf("failed to drop %s: %w", desc.Name, err)
	}
	if _, err := c.db.ExecContext(ctx, s.CreateStatements()); err != nil {
		return fmt.Errorf("failed to create %s: %w", desc.Name, err)
	}

	quoted := make([]string, len(desc.Headers))
	params := make([]string, len(desc.Headers))
	for i, h := range desc.Headers {
		quoted[i] = schema.QuoteIdent(h)
		params[i] = "?"
	}
	insertSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		name, strings.Join(quoted, ", "), strings.Join(params, ", "))

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare insert for %s: %w", desc.Name, err)
	}
	defer stmt.Close()

	for _, row := range desc.Rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert into %s: %w", desc.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s: %w", desc.Name, err)
	}

	logging.Debug("example materialized", "table", desc.Name, "rows", len(desc.Rows))
	return nil
}

// ConvertExamples materializes a batch of examples
func (c *Converter) ConvertExamples(ctx context.Context, examples []Example) error {
	for i := range examples {
		if err := c.ConvertExample(ctx, &examples[i]); err != nil {
			return err
		}
	}
	logging.Info("examples materialized", "count", len(examples), "path", c.path)
	return nil
}

// DB exposes the underlying handle for schema introspection and query
func (c *Converter) DB() *sql.DB {
	return c.db
}
