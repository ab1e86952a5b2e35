package store

import (
	"context"
	"database/sql"
	"fmt"

	"rubin.dev/cix/chainindex"
)

// TipRow is a single row of the tip table, used by restore to rebuild the
// in-memory UtxoIndex.
type TipRow struct {
	Tip chainindex.Tip
}

// ListTips returns every retained tip row ordered ascending by slot.
// Restore folds these together with LoadBalances to rebuild the
// UtxoIndex.
func (d *DB) ListTips(ctx context.Context) ([]TipRow, error) {
	rows, err := d.sqldb.QueryContext(ctx, `SELECT slot, block_id, block_no FROM tip ORDER BY slot ASC`)
	if err != nil {
		return nil, fmt.Errorf("store: list tips: %w", err)
	}
	defer rows.Close()

	var out []TipRow
	for rows.Next() {
		var slot, blockNo int64
		var blockIDHex string
		if err := rows.Scan(&slot, &blockIDHex, &blockNo); err != nil {
			return nil, fmt.Errorf("store: list tips: scan: %w", err)
		}
		id, err := decodeBlockID(blockIDHex)
		if err != nil {
			return nil, err
		}
		out = append(out, TipRow{Tip: chainindex.NewTip(chainindex.Slot(slot), id, chainindex.BlockNo(blockNo))})
	}
	return out, rows.Err()
}

// GetResumePoints returns every retained tip, newest-first, as candidate
// intersection points for the upstream follower to negotiate from.
func (d *DB) GetResumePoints(ctx context.Context) ([]chainindex.Tip, error) {
	tips, err := d.ListTips(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]chainindex.Tip, len(tips))
	for i, t := range tips {
		out[len(tips)-1-i] = t.Tip
	}
	return out, nil
}

// LoadBalances reads every unspent_outputs/unmatched_inputs row and folds
// them into a slot->TxUtxoBalance map.
func (d *DB) LoadBalances(ctx context.Context) (map[chainindex.Slot]chainindex.TxUtxoBalance, error) {
	balances := make(map[chainindex.Slot]chainindex.TxUtxoBalance)

	outRows, err := d.sqldb.QueryContext(ctx, `SELECT tip_slot, out_ref FROM unspent_outputs`)
	if err != nil {
		return nil, fmt.Errorf("store: load balances: unspent_outputs: %w", err)
	}
	defer outRows.Close()
	for outRows.Next() {
		var slot int64
		var refStr string
		if err := outRows.Scan(&slot, &refStr); err != nil {
			return nil, fmt.Errorf("store: load balances: scan: %w", err)
		}
		ref, err := decodeOutRef(refStr)
		if err != nil {
			return nil, err
		}
		s := chainindex.Slot(slot)
		bal, ok := balances[s]
		if !ok {
			bal = chainindex.EmptyBalance()
		}
		bal.Outputs[ref] = struct{}{}
		balances[s] = bal
	}
	if err := outRows.Err(); err != nil {
		return nil, err
	}

	inRows, err := d.sqldb.QueryContext(ctx, `SELECT tip_slot, out_ref FROM unmatched_inputs`)
	if err != nil {
		return nil, fmt.Errorf("store: load balances: unmatched_inputs: %w", err)
	}
	defer inRows.Close()
	for inRows.Next() {
		var slot int64
		var refStr string
		if err := inRows.Scan(&slot, &refStr); err != nil {
			return nil, fmt.Errorf("store: load balances: scan: %w", err)
		}
		ref, err := decodeOutRef(refStr)
		if err != nil {
			return nil, err
		}
		s := chainindex.Slot(slot)
		bal, ok := balances[s]
		if !ok {
			bal = chainindex.EmptyBalance()
		}
		bal.Inputs[ref] = struct{}{}
		balances[s] = bal
	}
	return balances, inRows.Err()
}

// GetTip reads the max-slot row from tip.
func (d *DB) GetTip(ctx context.Context) (chainindex.Tip, bool, error) {
	row := d.sqldb.QueryRowContext(ctx, `SELECT slot, block_id, block_no FROM tip ORDER BY slot DESC LIMIT 1`)
	var slot, blockNo int64
	var blockIDHex string
	switch err := row.Scan(&slot, &blockIDHex, &blockNo); err {
	case nil:
		id, err := decodeBlockID(blockIDHex)
		if err != nil {
			return chainindex.Tip{}, false, err
		}
		return chainindex.NewTip(chainindex.Slot(slot), id, chainindex.BlockNo(blockNo)), true, nil
	case sql.ErrNoRows:
		return chainindex.TipGenesis, false, nil
	default:
		return chainindex.Tip{}, false, fmt.Errorf("store: get tip: %w", err)
	}
}

// TxOutFromRef resolves ref against utxo_out_ref; it is not filtered
// by liveness.
func (d *DB) TxOutFromRef(ctx context.Context, ref chainindex.TxOutRef) (chainindex.TxOutput, bool, error) {
	row := d.sqldb.QueryRowContext(ctx, `SELECT tx_out FROM utxo_out_ref WHERE out_ref = ?`, encodeOutRef(ref))
	var blob []byte
	switch err := row.Scan(&blob); err {
	case nil:
		out, err := decodeTxOutput(blob)
		return out, true, err
	case sql.ErrNoRows:
		return chainindex.TxOutput{}, false, nil
	default:
		return chainindex.TxOutput{}, false, fmt.Errorf("store: tx out from ref: %w", err)
	}
}

func (d *DB) hashLookup(ctx context.Context, table, column string, hash [32]byte) ([]byte, bool, error) {
	row := d.sqldb.QueryRowContext(ctx, fmt.Sprintf(`SELECT %s FROM %s WHERE hash = ?`, column, table), encodeHash(hash))
	var blob []byte
	switch err := row.Scan(&blob); err {
	case nil:
		return blob, true, nil
	case sql.ErrNoRows:
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("store: %s lookup: %w", table, err)
	}
}

// DatumFromHash looks up a datum by hash.
func (d *DB) DatumFromHash(ctx context.Context, hash [32]byte) ([]byte, bool, error) {
	return d.hashLookup(ctx, "datums", "datum", hash)
}

// ScriptFromHash looks up a script by hash; validators, minting policies,
// and stake validators all share the scripts table ("same byte
// encoding").
func (d *DB) ScriptFromHash(ctx context.Context, hash [32]byte) ([]byte, bool, error) {
	return d.hashLookup(ctx, "scripts", "script", hash)
}

// RedeemerFromHash looks up a redeemer by hash.
func (d *DB) RedeemerFromHash(ctx context.Context, hash [32]byte) ([]byte, bool, error) {
	return d.hashLookup(ctx, "redeemers", "redeemer", hash)
}

// Diagnostics holds the counts reported by GetDiagnostics. A count of
// -1 indicates the underlying aggregate returned no row.
type Diagnostics struct {
	NumScripts         int64
	NumAddresses       int64
	NumAssetClasses    int64
	NumUnspentOutputs  int64
	NumUnmatchedInputs int64
}

func (d *DB) countRows(ctx context.Context, table string) int64 {
	row := d.sqldb.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table)
	var n int64
	if err := row.Scan(&n); err != nil {
		return -1
	}
	return n
}

// GetDiagnostics computes the five aggregate row counts.
func (d *DB) GetDiagnostics(ctx context.Context) Diagnostics {
	return Diagnostics{
		NumScripts:         d.countRows(ctx, "scripts"),
		NumAddresses:       d.countRows(ctx, "addresses"),
		NumAssetClasses:    d.countRows(ctx, "asset_classes"),
		NumUnspentOutputs:  d.countRows(ctx, "unspent_outputs"),
		NumUnmatchedInputs: d.countRows(ctx, "unmatched_inputs"),
	}
}
