// Package generator builds the SQL text issued by the migration stages.
package generator

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ridoystarlord/casemigrate/schema"
)

// Quote returns name as a sanitized SQL identifier.
func Quote(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// ResetSequenceSQL moves the sequence behind table.pk to max(pk). When the
// table is empty the sequence restarts at 1. Tables without a sequence make
// pg_get_serial_sequence return NULL, so the statement is a no-op for them.
func ResetSequenceSQL(table, pk string) string {
	return fmt.Sprintf(
		`SELECT setval(pg_get_serial_sequence('%s', '%s'), COALESCE(MAX(%s), 1), MAX(%s) IS NOT NULL) FROM %s;`,
		strings.ReplaceAll(Quote(table), "'", "''"), pk, Quote(pk), Quote(pk), Quote(table),
	)
}

func MaxKeySQL(table, column string) string {
	return fmt.Sprintf(`SELECT COALESCE(MAX(%s), 0)::bigint FROM %s;`, Quote(column), Quote(table))
}

func CountSQL(table string) string {
	return fmt.Sprintf(`SELECT count(*) FROM %s;`, Quote(table))
}

// SelectAllSQL reads every row of table ordered by orderBy when given.
func SelectAllSQL(table, orderBy string) string {
	stmt := fmt.Sprintf(`SELECT * FROM %s`, Quote(table))
	if orderBy != "" {
		stmt += fmt.Sprintf(` ORDER BY %s`, Quote(orderBy))
	}
	return stmt
}

// StagingSelectSQL reads a staging table for the load stage, adding one LEFT
// JOIN per lookup. Lookup columns are aliased <field>__<column>.
func StagingSelectSQL(table, orderBy string, lookups []schema.Lookup) string {
	if len(lookups) == 0 {
		return SelectAllSQL(table, orderBy)
	}

	selects := []string{"s.*"}
	var joins []string
	for i, l := range lookups {
		alias := fmt.Sprintf("l%d", i)
		for _, col := range l.Columns {
			selects = append(selects, fmt.Sprintf(`%s.%s AS %s`, alias, Quote(col), Quote(l.Alias(col))))
		}
		joins = append(joins, fmt.Sprintf(`LEFT JOIN %s %s ON %s.%s = s.%s`,
			Quote(l.Table), alias, alias, Quote(l.MatchColumn()), Quote(l.Via)))
	}

	stmt := fmt.Sprintf("SELECT %s FROM %s s", strings.Join(selects, ", "), Quote(table))
	if len(joins) > 0 {
		stmt += " " + strings.Join(joins, " ")
	}
	if orderBy != "" {
		stmt += fmt.Sprintf(` ORDER BY s.%s`, Quote(orderBy))
	}
	return stmt
}

// XMLSourceSQL reads (key, document) pairs with a non-null document.
func XMLSourceSQL(table, key, field string) string {
	return fmt.Sprintf(`SELECT %s, %s FROM %s WHERE %s IS NOT NULL ORDER BY %s`,
		Quote(key), Quote(field), Quote(table), Quote(field), Quote(key))
}

// WithSelect wraps a query so limits apply to the whole result.
func WithSelect(sql string) string {
	return fmt.Sprintf("WITH doc_query AS (%s) SELECT * FROM doc_query", sql)
}

// WithCount wraps a query to return its row count and the sum of file_size.
func WithCount(sql string) string {
	return fmt.Sprintf("WITH doc_query AS (%s) SELECT count(1) AS count, COALESCE(SUM(file_size), 0)::bigint AS file_size FROM doc_query", sql)
}

// WithLimit appends a row limit; a limit below 1 leaves sql unchanged.
func WithLimit(sql string, limit int) string {
	if limit < 1 {
		return sql
	}
	return fmt.Sprintf("%s FETCH FIRST %d ROWS ONLY", sql, limit)
}

// ThroughTable names the join table of a many-to-many field.
func ThroughTable(ownerTable, field string) string {
	return ownerTable + "_" + field
}

// JoinColumn names the column a join table uses to reference table.
func JoinColumn(table string) string {
	return strings.TrimPrefix(table, "web_") + "_id"
}

// InsertPreviewSQL renders the shape of a batched insert for dry runs.
func InsertPreviewSQL(table string, fields []string) string {
	quoted := make([]string, len(fields))
	placeholders := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = Quote(f)
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s);", Quote(table), strings.Join(quoted, ", "), strings.Join(placeholders, ", "))
}

// WritePlanFile writes dry-run statements to <dir>/<timestamp>_<name>.sql and
// returns the file name.
func WritePlanFile(dir, name string, statements []string) (string, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("creating plan folder: %w", err)
		}
	}

	timestamp := time.Now().Format("20060102150405")
	filename := filepath.Join(dir, fmt.Sprintf("%s_%s.sql", timestamp, name))

	var b strings.Builder
	b.WriteString("-- Plan: " + name + "\n")
	b.WriteString("-- Generated: " + timestamp + "\n\n")
	for _, stmt := range statements {
		b.WriteString(stmt)
		if !strings.HasSuffix(stmt, "\n") {
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if err := os.WriteFile(filename, []byte(b.String()), 0644); err != nil {
		return "", fmt.Errorf("writing plan file: %w", err)
	}
	return filename, nil
}
