package store

import (
	"context"
	"database/sql"
	"fmt"

	"rubin.dev/cix/chainindex"
)

// BeginWrite starts the single write transaction an AppendBlock/Rollback/
// ResumeSync control transition runs inside. An aborted transition must
// leave both the in-memory index and the database unchanged.
func (d *DB) BeginWrite(ctx context.Context) (*sql.Tx, error) {
	return d.sqldb.BeginTx(ctx, nil)
}

// ProjectBlock inserts the new tip row, the new unspent_outputs/
// unmatched_inputs delta rows, and, for every tx whose StoreTx flag is
// set, its auxiliary per-tx rows (utxo_out_ref, addresses, asset_classes,
// datums, scripts, redeemers). batchSize <= 0 falls back to
// DefaultBatchSize.
func ProjectBlock(ctx context.Context, tx *sql.Tx, tip chainindex.Tip, balance chainindex.TxUtxoBalance, txs []chainindex.TxWithStoreFlag, batchSize int) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO tip (slot, block_id, block_no) VALUES (?, ?, ?)`,
		int64(tip.Slot), encodeBlockID(tip.ID), int64(tip.BlockNo),
	); err != nil {
		return fmt.Errorf("store: insert tip: %w", err)
	}

	outRows := make([][]any, 0, len(balance.Outputs))
	for ref := range balance.Outputs {
		outRows = append(outRows, []any{int64(tip.Slot), encodeOutRef(ref)})
	}
	if err := execBatchInsert(ctx, tx, "unspent_outputs", []string{"tip_slot", "out_ref"}, outRows, batchSize); err != nil {
		return err
	}

	inRows := make([][]any, 0, len(balance.Inputs))
	for ref := range balance.Inputs {
		inRows = append(inRows, []any{int64(tip.Slot), encodeOutRef(ref)})
	}
	if err := execBatchInsert(ctx, tx, "unmatched_inputs", []string{"tip_slot", "out_ref"}, inRows, batchSize); err != nil {
		return err
	}

	return projectAuxiliaryRows(ctx, tx, txs, batchSize)
}

// projectAuxiliaryRows indexes each tx's resolvable-history rows, skipping
// any tx whose StoreTx flag is false.
func projectAuxiliaryRows(ctx context.Context, tx *sql.Tx, txs []chainindex.TxWithStoreFlag, batchSize int) error {
	var outRefRows, addressRows, assetRows, datumRows, scriptRows, redeemerRows [][]any

	for _, twf := range txs {
		if !twf.StoreTx {
			continue
		}
		t := twf.Tx
		for i, out := range t.Outputs {
			ref := chainindex.TxOutRef{TxID: t.ID, Index: uint32(i)}
			refKey := encodeOutRef(ref)

			outRefRows = append(outRefRows, []any{refKey, encodeTxOutput(out)})
			addressRows = append(addressRows, []any{encodeCredential(out.Address), refKey})
			for class, qty := range out.Assets {
				assetRows = append(assetRows, []any{encodeAssetClass(class), refKey, int64(qty)})
			}
		}
		for hash, bytes := range t.Datums {
			datumRows = append(datumRows, []any{encodeHash(hash), bytes})
		}
		for hash, bytes := range t.Scripts {
			scriptRows = append(scriptRows, []any{encodeHash(hash), bytes})
		}
		for hash, bytes := range t.Redeemers {
			redeemerRows = append(redeemerRows, []any{encodeHash(hash), bytes})
		}
	}

	if err := execBatchInsert(ctx, tx, "utxo_out_ref", []string{"out_ref", "tx_out"}, outRefRows, batchSize); err != nil {
		return err
	}
	if err := execBatchInsert(ctx, tx, "addresses", []string{"credential", "out_ref"}, addressRows, batchSize); err != nil {
		return err
	}
	if err := execBatchInsertAssetClasses(ctx, tx, assetRows, batchSize); err != nil {
		return err
	}
	if err := execBatchInsert(ctx, tx, "datums", []string{"hash", "datum"}, datumRows, batchSize); err != nil {
		return err
	}
	if err := execBatchInsert(ctx, tx, "scripts", []string{"hash", "script"}, scriptRows, batchSize); err != nil {
		return err
	}
	if err := execBatchInsert(ctx, tx, "redeemers", []string{"hash", "redeemer"}, redeemerRows, batchSize); err != nil {
		return err
	}
	return nil
}

// asset_classes carries (asset_class, out_ref) as its key plus the quantity
// that rode along on the output; liveness and set-membership queries only
// ever join on the key pair.
func execBatchInsertAssetClasses(ctx context.Context, tx *sql.Tx, rows [][]any, batchSize int) error {
	return execBatchInsert(ctx, tx, "asset_classes", []string{"asset_class", "out_ref", "quantity"}, rows, batchSize)
}

// ReduceOldUtxoDB is the database half of ReduceBlockCount and must run in
// the same transaction that swaps the in-memory index.
func ReduceOldUtxoDB(ctx context.Context, tx *sql.Tx, slot chainindex.Slot) error {
	// The delta rows are moved onto the combined slot before the old tip
	// rows go, so the ON DELETE CASCADE on tip_slot finds nothing to remove.
	if _, err := tx.ExecContext(ctx, `UPDATE unspent_outputs SET tip_slot = ? WHERE tip_slot < ?`, int64(slot), int64(slot)); err != nil {
		return fmt.Errorf("store: reduce: collapse unspent_outputs: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE unmatched_inputs SET tip_slot = ? WHERE tip_slot < ?`, int64(slot), int64(slot)); err != nil {
		return fmt.Errorf("store: reduce: collapse unmatched_inputs: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM tip WHERE slot < ?`, int64(slot)); err != nil {
		return fmt.Errorf("store: reduce: delete old tip rows: %w", err)
	}

	// Matched-pair deletion: any out_ref now present in both tables at the
	// combined slot was created and spent inside the collapsed window.
	// Issued as explicit DELETEs rather than a trigger (see DESIGN.md's
	// Open Question decision). The first removes the unspent_outputs row of
	// each pair. The second removes every unmatched_inputs row at the
	// combined slot that has no unspent_outputs row there: the inputs of
	// those pairs, and also any input whose output was never recorded in
	// unspent_outputs.
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM unspent_outputs
		WHERE tip_slot = ? AND out_ref IN (
			SELECT out_ref FROM unmatched_inputs WHERE tip_slot = ?
		)`, int64(slot), int64(slot)); err != nil {
		return fmt.Errorf("store: reduce: delete matched unspent rows: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM unmatched_inputs
		WHERE tip_slot = ? AND out_ref NOT IN (
			SELECT out_ref FROM unspent_outputs WHERE tip_slot = ?
		)`, int64(slot), int64(slot)); err != nil {
		return fmt.Errorf("store: reduce: delete matched unmatched rows: %w", err)
	}
	return nil
}

// RollbackUtxoDB rolls the database back to point. Rolling back to
// Genesis deletes every tip row; otherwise it deletes every tip row past
// point.Slot. Either way the ON DELETE CASCADE declared on
// unspent_outputs.tip_slot/unmatched_inputs.tip_slot removes the
// corresponding delta rows with no second statement.
func RollbackUtxoDB(ctx context.Context, tx *sql.Tx, point chainindex.Point) error {
	if point.IsGenesis() {
		if _, err := tx.ExecContext(ctx, `DELETE FROM tip`); err != nil {
			return fmt.Errorf("store: rollback to genesis: %w", err)
		}
		return nil
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM tip WHERE slot > ?`, int64(point.Slot)); err != nil {
		return fmt.Errorf("store: rollback: %w", err)
	}
	return nil
}

// CollectGarbage truncates the per-tx resolvable-history tables only; it
// never touches tip, unspent_outputs, or unmatched_inputs.
func (d *DB) CollectGarbage(ctx context.Context) error {
	tx, err := d.sqldb.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: gc: begin: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"datums", "scripts", "redeemers", "utxo_out_ref", "addresses", "asset_classes"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("store: gc: truncate %s: %w", table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: gc: commit: %w", err)
	}
	return nil
}
