package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// DefaultBatchSize is the number of rows inserted per statement absent an
// explicit configuration, chosen with the underlying SQL driver's
// parameter limit in mind. A full batch of two-column rows
// (unspent_outputs, unmatched_inputs, addresses, ...) binds 800
// parameters, under SQLite's historical 999 ceiling; the widest rows,
// asset_classes at 3 columns, bind 1200, which fits the 32766 ceiling of
// SQLite 3.32 and later.
const DefaultBatchSize = 400

// execBatchInsert chunks rows into statements of at most batchSize rows and
// executes each as a single multi-row INSERT. table/columns are trusted
// constants supplied by this package, never caller input.
func execBatchInsert(ctx context.Context, tx *sql.Tx, table string, columns []string, rows [][]any, batchSize int) error {
	if len(rows) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	rowPlaceholder := "(" + strings.TrimSuffix(strings.Repeat("?,", len(columns)), ",") + ")"
	colList := strings.Join(columns, ", ")

	for start := 0; start < len(rows); start += batchSize {
		end := start + batchSize
		if end > len(rows) {
			end = len(rows)
		}
		chunk := rows[start:end]

		var sb strings.Builder
		fmt.Fprintf(&sb, "INSERT OR IGNORE INTO %s (%s) VALUES ", table, colList)
		args := make([]any, 0, len(chunk)*len(columns))
		for i, row := range chunk {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(rowPlaceholder)
			args = append(args, row...)
		}

		if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
			return fmt.Errorf("store: batch insert into %s: %w", table, err)
		}
	}
	return nil
}
