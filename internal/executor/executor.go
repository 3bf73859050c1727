// Package executor runs a synthesized transformation against one in-memory
// input table.
package executor

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"infomap/internal/logging"
	"infomap/internal/table"
)

// ExecutionError tags a failed transformation with the raw text that failed,
// so the reflection loop can replay it.
type ExecutionError struct {
	SQL string
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("transformation execution failed: %v", e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Engine executes transformations against a fresh in-memory database per
// call. The input table is exposed as a single named relation; every column
// is TEXT.
type Engine struct {
	relation string
}

// New creates an engine. relation is the name the input table is loaded
// under (conventionally "df").
func New(relation string) *Engine {
	if relation == "" {
		relation = "df"
	}
	return &Engine{relation: relation}
}

// Execute runs a transformation against the input table and returns the
// result with date columns post-processed.
func (e *Engine) Execute(ctx context.Context, transformation string, input *table.Table) (*table.Table, error) {
	timer := logging.StartTimer(logging.CategoryExecutor, "Execute")
	defer timer.Stop()

	query := StripFence(transformation)

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	defer db.Close()

	// A pooled second connection would see an empty database.
	db.SetMaxOpenConns(1)

	if err := e.loadTable(ctx, db, input); err != nil {
		return nil, &ExecutionError{SQL: transformation, Err: err}
	}

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		logging.Executor("query failed: %v", err)
		return nil, &ExecutionError{SQL: transformation, Err: err}
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, &ExecutionError{SQL: transformation, Err: err}
	}

	out := &table.Table{Name: input.Name, Columns: columns}
	scanDest := make([]interface{}, len(columns))
	for rows.Next() {
		values := make([]sql.NullString, len(columns))
		for i := range values {
			scanDest[i] = &values[i]
		}
		if err := rows.Scan(scanDest...); err != nil {
			return nil, &ExecutionError{SQL: transformation, Err: err}
		}
		row := make([]string, len(columns))
		for i, v := range values {
			if v.Valid {
				row[i] = v.String
			}
		}
		out.Rows = append(out.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, &ExecutionError{SQL: transformation, Err: err}
	}

	normalizeDateColumns(out)

	logging.ExecutorDebug("executed transformation: %d columns, %d rows", len(out.Columns), len(out.Rows))
	return out, nil
}

// loadTable creates the relation and inserts every row as TEXT.
func (e *Engine) loadTable(ctx context.Context, db *sql.DB, input *table.Table) error {
	if input == nil || len(input.Columns) == 0 {
		return fmt.Errorf("input table has no columns")
	}

	defs := make([]string, len(input.Columns))
	for i, col := range input.Columns {
		defs[i] = quoteIdent(col) + " TEXT"
	}
	createSQL := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(e.relation), strings.Join(defs, ", "))
	if _, err := db.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("failed to create relation %s: %w", e.relation, err)
	}

	if len(input.Rows) == 0 {
		return nil
	}

	placeholders := make([]string, len(input.Columns))
	for i := range placeholders {
		placeholders[i] = "?"
	}
	insertSQL := fmt.Sprintf("INSERT INTO %s VALUES (%s)", quoteIdent(e.relation), strings.Join(placeholders, ", "))

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	args := make([]interface{}, len(input.Columns))
	for _, row := range input.Rows {
		for i := range args {
			if i < len(row) {
				args[i] = row[i]
			} else {
				args[i] = ""
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// StripFence removes a surrounding markdown code fence if present.
func StripFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		trimmed = trimmed[idx+1:]
	} else {
		return ""
	}
	trimmed = strings.TrimSpace(trimmed)
	trimmed = strings.TrimSuffix(trimmed, "```")
	return strings.TrimSpace(trimmed)
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
