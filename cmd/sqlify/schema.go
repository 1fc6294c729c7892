/*-------------------------------------------------------------------------
 *
 * mcp-sqlify Text-to-SQL Agent
 *
 * Copyright (c) 2025, the mcp-sqlify authors
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package main

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"mcp-sqlify/internal/schema"
)

var (
	schemaDB       string
	schemaPostgres bool
	schemaDDL      bool
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Introspect a database and print its schema",
	Long: `Introspects a SQLite database file or a PostgreSQL database
(configured via the database section or PG* environment variables) and
prints the schema as canonical JSON, or as CREATE TABLE statements
with --ddl.`,
	RunE: runSchema,
}

func init() {
	schemaCmd.Flags().StringVar(&schemaDB, "db", "", "Path to a SQLite database")
	schemaCmd.Flags().BoolVar(&schemaPostgres, "postgres", false, "Introspect the configured PostgreSQL database instead")
	schemaCmd.Flags().BoolVar(&schemaDDL, "ddl", false, "Print CREATE TABLE statements instead of JSON")
}

func runSchema(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	var source schema.Source

	switch {
	case schemaPostgres:
		if cfg.Database.User == "" {
			return fmt.Errorf("postgres introspection requires a database user (set database.user, SQLIFY_DB_USER, or PGUSER)")
		}
		pool, err := pgxpool.New(ctx, cfg.Database.BuildConnectionString())
		if err != nil {
			return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		defer pool.Close()
		source = schema.PostgresSource{Pool: pool}
	case schemaDB != "":
		db, err := openSQLite(schemaDB)
		if err != nil {
			return err
		}
		defer db.Close()
		source = schema.SQLiteSource{DB: db}
	default:
		return fmt.Errorf("either --db or --postgres is required")
	}

	s, err := source.Load(ctx)
	if err != nil {
		return err
	}

	if schemaDDL {
		fmt.Println(s.CreateStatements())
		return nil
	}

	out, err := s.JSON(true)
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
