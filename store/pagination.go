package store

import (
	"context"
	"database/sql"
	"fmt"

	"rubin.dev/cix/chainindex"
)

// UtxoSetAtAddress returns unspent out_refs at credential, ordered
// ascending, starting strictly after afterKey, plus whether a further page
// exists beyond the limit requested.
func (d *DB) UtxoSetAtAddress(ctx context.Context, credential chainindex.Credential, afterKey *chainindex.TxOutRef, limit int) ([]chainindex.TxOutRef, bool, error) {
	return d.pagedOutRefQuery(ctx, `
		SELECT a.out_ref FROM addresses a
		WHERE a.credential = ?
		  AND EXISTS (SELECT 1 FROM unspent_outputs u WHERE u.out_ref = a.out_ref)
		  AND NOT EXISTS (SELECT 1 FROM unmatched_inputs m WHERE m.out_ref = a.out_ref)
		  AND (? IS NULL OR a.out_ref > ?)
		ORDER BY a.out_ref ASC
		LIMIT ?`,
		encodeCredential(credential), afterKey, limit)
}

// UtxoSetWithCurrency returns unspent out_refs carrying assetClass,
// ordered ascending, plus whether a further page exists.
func (d *DB) UtxoSetWithCurrency(ctx context.Context, assetClass chainindex.AssetClass, afterKey *chainindex.TxOutRef, limit int) ([]chainindex.TxOutRef, bool, error) {
	return d.pagedOutRefQuery(ctx, `
		SELECT ac.out_ref FROM asset_classes ac
		WHERE ac.asset_class = ?
		  AND EXISTS (SELECT 1 FROM unspent_outputs u WHERE u.out_ref = ac.out_ref)
		  AND NOT EXISTS (SELECT 1 FROM unmatched_inputs m WHERE m.out_ref = ac.out_ref)
		  AND (? IS NULL OR ac.out_ref > ?)
		ORDER BY ac.out_ref ASC
		LIMIT ?`,
		encodeAssetClass(assetClass), afterKey, limit)
}

// TxoSetAtAddress returns every historical out_ref at credential, ordered
// ascending, with no liveness filter, plus whether a further page exists.
func (d *DB) TxoSetAtAddress(ctx context.Context, credential chainindex.Credential, afterKey *chainindex.TxOutRef, limit int) ([]chainindex.TxOutRef, bool, error) {
	return d.pagedOutRefQuery(ctx, `
		SELECT a.out_ref FROM addresses a
		WHERE a.credential = ?
		  AND (? IS NULL OR a.out_ref > ?)
		ORDER BY a.out_ref ASC
		LIMIT ?`,
		encodeCredential(credential), afterKey, limit)
}

// pagedOutRefQuery fetches limit+1 rows so it can report whether a further
// page exists, then trims the result back to limit.
func (d *DB) pagedOutRefQuery(ctx context.Context, query string, key any, afterKey *chainindex.TxOutRef, limit int) ([]chainindex.TxOutRef, bool, error) {
	var afterStr sql.NullString
	if afterKey != nil {
		afterStr = sql.NullString{String: encodeOutRef(*afterKey), Valid: true}
	}

	rows, err := d.sqldb.QueryContext(ctx, query, key, afterStr, afterStr, limit+1)
	if err != nil {
		return nil, false, fmt.Errorf("store: paged query: %w", err)
	}
	defer rows.Close()

	var out []chainindex.TxOutRef
	for rows.Next() {
		var refStr string
		if err := rows.Scan(&refStr); err != nil {
			return nil, false, fmt.Errorf("store: paged query: scan: %w", err)
		}
		ref, err := decodeOutRef(refStr)
		if err != nil {
			return nil, false, err
		}
		out = append(out, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}

	hasMore := len(out) > limit
	if hasMore {
		out = out[:limit]
	}
	return out, hasMore, nil
}
