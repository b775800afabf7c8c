package introspect

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Querier is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type ExistingTable struct {
	TableName   string
	Columns     []ExistingColumn
	ForeignKeys []ExistingForeignKey
}

type ExistingColumn struct {
	ColumnName    string
	DataType      string
	IsNullable    bool
	ColumnDefault *string
	IsPrimaryKey  bool
}

type ExistingForeignKey struct {
	ConstraintName   string
	ColumnName       string
	ReferencesTable  string
	ReferencesColumn string
}

// HasSequence reports whether the column default draws from a sequence.
func (c ExistingColumn) HasSequence() bool {
	return c.ColumnDefault != nil && strings.HasPrefix(*c.ColumnDefault, "nextval(")
}

// InspectTables loads columns and foreign keys for each named table. Tables
// that do not exist are omitted from the result.
func InspectTables(ctx context.Context, q Querier, tableNames []string) ([]ExistingTable, error) {
	var tables []ExistingTable
	for _, tableName := range tableNames {
		exists, err := TableExists(ctx, q, tableName)
		if err != nil {
			return nil, err
		}
		if !exists {
			continue
		}

		columns, err := Columns(ctx, q, tableName)
		if err != nil {
			return nil, fmt.Errorf("getting columns for table %s: %w", tableName, err)
		}

		foreignKeys, err := ForeignKeys(ctx, q, tableName)
		if err != nil {
			return nil, fmt.Errorf("getting foreign keys for table %s: %w", tableName, err)
		}

		tables = append(tables, ExistingTable{
			TableName:   tableName,
			Columns:     columns,
			ForeignKeys: foreignKeys,
		})
	}

	return tables, nil
}

func TableExists(ctx context.Context, q Querier, tableName string) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx, `
	SELECT EXISTS (
		SELECT 1 FROM information_schema.tables
		WHERE table_schema = 'public' AND table_type = 'BASE TABLE' AND table_name = $1
	);
	`, tableName).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking table %s exists: %w", tableName, err)
	}
	return exists, nil
}

// Columns returns the table's columns in ordinal position order.
func Columns(ctx context.Context, q Querier, tableName string) ([]ExistingColumn, error) {
	columnsQuery := `
	SELECT
		c.column_name,
		c.data_type,
		(c.is_nullable = 'YES') as is_nullable,
		c.column_default,
		EXISTS (
			SELECT 1
			FROM information_schema.table_constraints tc
			JOIN information_schema.key_column_usage kcu
				ON tc.constraint_name = kcu.constraint_name AND tc.table_name = kcu.table_name
			WHERE tc.constraint_type = 'PRIMARY KEY'
				AND tc.table_name = c.table_name
				AND kcu.column_name = c.column_name
		) as is_primary
	FROM information_schema.columns c
	WHERE c.table_schema = 'public' AND c.table_name = $1
	ORDER BY c.ordinal_position;
	`

	rows, err := q.Query(ctx, columnsQuery, tableName)
	if err != nil {
		return nil, fmt.Errorf("querying columns: %w", err)
	}
	defer rows.Close()

	var columns []ExistingColumn
	for rows.Next() {
		var col ExistingColumn
		if err := rows.Scan(
			&col.ColumnName,
			&col.DataType,
			&col.IsNullable,
			&col.ColumnDefault,
			&col.IsPrimaryKey,
		); err != nil {
			return nil, fmt.Errorf("scanning column: %w", err)
		}
		columns = append(columns, col)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("iterating column rows: %w", rows.Err())
	}

	return columns, nil
}

func ForeignKeys(ctx context.Context, q Querier, tableName string) ([]ExistingForeignKey, error) {
	foreignKeysQuery := `
	SELECT
		tc.constraint_name,
		kcu.column_name,
		ccu.table_name AS foreign_table_name,
		ccu.column_name AS foreign_column_name
	FROM information_schema.table_constraints AS tc
	JOIN information_schema.key_column_usage AS kcu
		ON tc.constraint_name = kcu.constraint_name
		AND tc.table_schema = kcu.table_schema
	JOIN information_schema.constraint_column_usage AS ccu
		ON ccu.constraint_name = tc.constraint_name
		AND ccu.table_schema = tc.table_schema
	WHERE tc.constraint_type = 'FOREIGN KEY'
		AND tc.table_schema = 'public'
		AND tc.table_name = $1;
	`

	rows, err := q.Query(ctx, foreignKeysQuery, tableName)
	if err != nil {
		return nil, fmt.Errorf("querying foreign keys: %w", err)
	}
	defer rows.Close()

	var foreignKeys []ExistingForeignKey
	for rows.Next() {
		var fk ExistingForeignKey
		if err := rows.Scan(
			&fk.ConstraintName,
			&fk.ColumnName,
			&fk.ReferencesTable,
			&fk.ReferencesColumn,
		); err != nil {
			return nil, fmt.Errorf("scanning foreign key: %w", err)
		}
		foreignKeys = append(foreignKeys, fk)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("iterating foreign key rows: %w", rows.Err())
	}

	return foreignKeys, nil
}

// ColumnNames flattens columns into their names, keeping ordinal order.
func ColumnNames(columns []ExistingColumn) []string {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.ColumnName
	}
	return names
}
