// Package query implements the read side: point lookups and paginated
// address/asset-class queries against the relational projection, guarded
// by the in-memory tip.
package query

import (
	"context"

	"rubin.dev/cix/chainindex"
	"rubin.dev/cix/store"
)

// Handler answers queries against a shared index Cell (for the
// authoritative tip) and the database (for everything else). Queries that
// depend on liveness read the in-memory tip first and fail fast, or return
// an empty page, while it is Genesis.
type Handler struct {
	cell *chainindex.Cell
	db   *store.DB
}

func New(cell *chainindex.Cell, db *store.DB) *Handler {
	return &Handler{cell: cell, db: db}
}

// GetTip reads the max-slot row from the tip table. The in-memory tip is
// authoritative for liveness decisions; GetTip reports the durable
// database view.
func (h *Handler) GetTip(ctx context.Context) (chainindex.Tip, bool, error) {
	return h.db.GetTip(ctx)
}

// UtxoSetMembership answers whether ref is currently unspent, using only
// the in-memory tip and index: no database round trip.
func (h *Handler) UtxoSetMembership(ref chainindex.TxOutRef) (chainindex.Tip, bool, error) {
	tip := h.cell.Tip()
	if tip.IsGenesis() {
		return tip, false, chainindex.ErrQueryNoTip()
	}
	return tip, h.cell.IsUnspentOutput(ref), nil
}

// TxOutFromRef resolves ref against utxo_out_ref; not filtered by liveness.
func (h *Handler) TxOutFromRef(ctx context.Context, ref chainindex.TxOutRef) (chainindex.TxOutput, bool, error) {
	return h.db.TxOutFromRef(ctx, ref)
}

// DatumFromHash looks up a datum by hash.
func (h *Handler) DatumFromHash(ctx context.Context, hash [32]byte) ([]byte, bool, error) {
	return h.db.DatumFromHash(ctx, hash)
}

// ValidatorFromHash, MintingPolicyFromHash, and StakeValidatorFromHash all
// resolve against the shared scripts table: the three script kinds carry
// the same byte encoding and are distinguished only by how the caller
// interprets the hash.
func (h *Handler) ValidatorFromHash(ctx context.Context, hash [32]byte) ([]byte, bool, error) {
	return h.db.ScriptFromHash(ctx, hash)
}

func (h *Handler) MintingPolicyFromHash(ctx context.Context, hash [32]byte) ([]byte, bool, error) {
	return h.db.ScriptFromHash(ctx, hash)
}

func (h *Handler) StakeValidatorFromHash(ctx context.Context, hash [32]byte) ([]byte, bool, error) {
	return h.db.ScriptFromHash(ctx, hash)
}

// RedeemerFromHash looks up a redeemer by hash.
func (h *Handler) RedeemerFromHash(ctx context.Context, hash [32]byte) ([]byte, bool, error) {
	return h.db.RedeemerFromHash(ctx, hash)
}

func (h *Handler) pageSize(q PageQuery) int {
	if q.PageSize <= 0 {
		return 100
	}
	return q.PageSize
}

// UtxoSetAtAddress returns unspent out_refs at credential, paginated. If
// the in-memory tip is Genesis, returns an empty page with no error.
func (h *Handler) UtxoSetAtAddress(ctx context.Context, query PageQuery, credential chainindex.Credential) (Page[chainindex.TxOutRef], error) {
	if err := validateCursor(query); err != nil {
		return Page[chainindex.TxOutRef]{}, err
	}
	if h.cell.Tip().IsGenesis() {
		return Page[chainindex.TxOutRef]{CurrentPageQuery: query}, nil
	}
	refs, hasMore, err := h.db.UtxoSetAtAddress(ctx, credential, query.AfterKey, h.pageSize(query))
	if err != nil {
		return Page[chainindex.TxOutRef]{}, err
	}
	return newPage(refs, refs, PageQuery{PageSize: h.pageSize(query), AfterKey: query.AfterKey}, hasMore), nil
}

// UtxoSetWithCurrency returns unspent out_refs carrying assetClass,
// paginated.
func (h *Handler) UtxoSetWithCurrency(ctx context.Context, query PageQuery, assetClass chainindex.AssetClass) (Page[chainindex.TxOutRef], error) {
	if err := validateCursor(query); err != nil {
		return Page[chainindex.TxOutRef]{}, err
	}
	if h.cell.Tip().IsGenesis() {
		return Page[chainindex.TxOutRef]{CurrentPageQuery: query}, nil
	}
	refs, hasMore, err := h.db.UtxoSetWithCurrency(ctx, assetClass, query.AfterKey, h.pageSize(query))
	if err != nil {
		return Page[chainindex.TxOutRef]{}, err
	}
	return newPage(refs, refs, PageQuery{PageSize: h.pageSize(query), AfterKey: query.AfterKey}, hasMore), nil
}

// TxoSetAtAddress returns every historical out_ref at credential,
// paginated, with no liveness filter.
func (h *Handler) TxoSetAtAddress(ctx context.Context, query PageQuery, credential chainindex.Credential) (Page[chainindex.TxOutRef], error) {
	if err := validateCursor(query); err != nil {
		return Page[chainindex.TxOutRef]{}, err
	}
	if h.cell.Tip().IsGenesis() {
		return Page[chainindex.TxOutRef]{CurrentPageQuery: query}, nil
	}
	refs, hasMore, err := h.db.TxoSetAtAddress(ctx, credential, query.AfterKey, h.pageSize(query))
	if err != nil {
		return Page[chainindex.TxOutRef]{}, err
	}
	return newPage(refs, refs, PageQuery{PageSize: h.pageSize(query), AfterKey: query.AfterKey}, hasMore), nil
}
