/*-------------------------------------------------------------------------
 *
 * mcp-sqlify Text-to-SQL Agent
 *
 * Copyright (c) 2025, the mcp-sqlify authors
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package schema

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// LoadPostgres introspects a live Postgres database and returns its
// canonical schema. Only ordinary tables in user schemas are included;
// system catalogs are skipped.
func LoadPostgres(ctx context.Context, pool *pgxpool.Pool) (*Schema, error) {
	query := `
		SELECT
			c.relname AS table_name,
			a.attname AS column_name,
			pg_catalog.format_type(a.atttypid, a.atttypmod) AS data_type,
			a.attnotnull AS not_null,
			EXISTS (
				SELECT 1 FROM pg_constraint con
				WHERE con.conrelid = c.oid
					AND con.contype = 'p'
					AND a.attnum = ANY(con.conkey)
			) AS is_primary_key
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		JOIN pg_attribute a ON a.attrelid = c.oid
		WHERE c.relkind = 'r'
			AND n.nspname NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
			AND a.attnum > 0
			AND NOT a.attisdropped
		ORDER BY c.relname, a.attnum`

	rows, err := pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog: %w", err)
	}
	defer rows.Close()

	var (
		tables  []Table
		current *Table
	)
	for rows.Next() {
		var (
			tableName, columnName, dataType string
			notNull, isPK                   bool
		)
		if err := rows.Scan(&tableName, &columnName, &dataType, &notNull, &isPK); err != nil {
			return nil, fmt.Errorf("failed to scan catalog row: %w", err)
		}
		if current == nil || current.Name != tableName {
			tables = append(tables, Table{Name: tableName})
			current = &tables[len(tables)-1]
		}
		current.Columns = append(current.Columns, Column{
			Name:       columnName,
			Type:       mapPostgresType(dataType),
			NotNull:    notNull,
			PrimaryKey: isPK,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read catalog rows: %w", err)
	}

	fkQuery := `
		SELECT
			c.relname AS table_name,
			a.attname AS column_name,
			fc.relname AS referenced_table,
			fa.attname AS referenced_column
		FROM pg_constraint con
		JOIN pg_class c ON c.oid = con.conrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		JOIN pg_class fc ON fc.oid = con.confrelid
		JOIN pg_attribute a ON a.attrelid = con.conrelid AND a.attnum = con.conkey[1]
		JOIN pg_attribute fa ON fa.attrelid = con.confrelid AND fa.attnum = con.confkey[1]
		WHERE con.contype = 'f'
			AND n.nspname NOT IN ('pg_catalog', 'information_schema', 'pg_toast')`

	fkRows, err := pool.Query(ctx, fkQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query foreign keys: %w", err)
	}
	defer fkRows.Close()

	for fkRows.Next() {
		var tableName, columnName, refTable, refColumn string
		if err := fkRows.Scan(&tableName, &columnName, &refTable, &refColumn); err != nil {
			return nil, fmt.Errorf("failed to scan foreign key row: %w", err)
		}
		for i := range tables {
			if tables[i].Name == tableName {
				tables[i].ForeignKeys = append(tables[i].ForeignKeys, ForeignKey{
					Column:           columnName,
					ReferencedTable:  refTable,
					ReferencedColumn: refColumn,
				})
				break
			}
		}
	}
	if err := fkRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read foreign key rows: %w", err)
	}

	return New(tables)
}

// mapPostgresType folds a Postgres type name into a canonical type
func mapPostgresType(dataType string) ColumnType {
	d := strings.ToLower(dataType)
	switch {
	case strings.HasPrefix(d, "smallint"), strings.HasPrefix(d, "integer"),
		strings.HasPrefix(d, "bigint"), strings.HasPrefix(d, "serial"):
		return TypeInteger
	case strings.HasPrefix(d, "numeric"), strings.HasPrefix(d, "decimal"),
		strings.HasPrefix(d, "real"), strings.HasPrefix(d, "double"):
		return TypeReal
	default:
		return TypeText
	}
}

// PostgresSource adapts a pgx pool to the Source interface
type PostgresSource struct {
	Pool *pgxpool.Pool
}

func (s PostgresSource) Load(ctx context.Context) (*Schema, error) {
	return LoadPostgres(ctx, s.Pool)
}
