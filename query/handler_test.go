package query

import (
	"context"
	"testing"

	"rubin.dev/cix/chainindex"
	"rubin.dev/cix/store"
)

func openTestDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.OpenMemory(context.Background())
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func blockID(b byte) chainindex.BlockID {
	var id chainindex.BlockID
	id[0] = b
	return id
}

func ref(txByte byte, idx uint32) chainindex.TxOutRef {
	var id chainindex.TxID
	id[0] = txByte
	return chainindex.TxOutRef{TxID: id, Index: idx}
}

func cred(b byte) chainindex.Credential {
	var c chainindex.Credential
	c.Bytes[0] = b
	return c
}

func TestUtxoSetMembership_FailsAtGenesis(t *testing.T) {
	db := openTestDB(t)
	h := New(chainindex.NewCell(nil), db)

	_, _, err := h.UtxoSetMembership(ref(1, 0))
	if code, ok := chainindex.CodeOf(err); !ok || code != chainindex.ErrQueryFailedNoTip {
		t.Fatalf("expected QueryFailedNoTip, got %v", err)
	}
}

func TestUtxoSetAtAddress_EmptyPageAtGenesis(t *testing.T) {
	db := openTestDB(t)
	h := New(chainindex.NewCell(nil), db)

	page, err := h.UtxoSetAtAddress(context.Background(), PageQuery{PageSize: 10}, cred(1))
	if err != nil {
		t.Fatalf("UtxoSetAtAddress: %v", err)
	}
	if len(page.Items) != 0 {
		t.Fatalf("expected empty page at genesis, got %v", page.Items)
	}
}

func TestUtxoSetAtAddress_PaginatesInsertedOutputs(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	cell := chainindex.NewCell(nil)
	h := New(cell, db)

	var a, b, c chainindex.TxID
	a[0], b[0], c[0] = 1, 2, 3
	tip := chainindex.NewTip(10, blockID(1), 1)
	txs := []chainindex.TxWithStoreFlag{
		{Tx: chainindex.Tx{ID: a, Outputs: []chainindex.TxOutput{{Address: cred(9), Lovelace: 1}}}, StoreTx: true},
		{Tx: chainindex.Tx{ID: b, Outputs: []chainindex.TxOutput{{Address: cred(9), Lovelace: 2}}}, StoreTx: true},
		{Tx: chainindex.Tx{ID: c, Outputs: []chainindex.TxOutput{{Address: cred(9), Lovelace: 3}}}, StoreTx: true},
	}
	balance := chainindex.FromBlock(txs)

	tx, err := db.BeginWrite(ctx)
	if err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
	if err := store.ProjectBlock(ctx, tx, tip, balance, txs, store.DefaultBatchSize); err != nil {
		t.Fatalf("ProjectBlock: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := cell.Update(func(idx *chainindex.UtxoIndex) (*chainindex.UtxoIndex, error) {
		_, err := idx.Insert(chainindex.UtxoState{Data: balance, Tip: tip})
		return idx, err
	}); err != nil {
		t.Fatalf("cell update: %v", err)
	}

	page1, err := h.UtxoSetAtAddress(ctx, PageQuery{PageSize: 2}, cred(9))
	if err != nil {
		t.Fatalf("UtxoSetAtAddress page1: %v", err)
	}
	if len(page1.Items) != 2 || page1.NextPageQuery == nil {
		t.Fatalf("expected a full first page with a next cursor, got %+v", page1)
	}

	page2, err := h.UtxoSetAtAddress(ctx, *page1.NextPageQuery, cred(9))
	if err != nil {
		t.Fatalf("UtxoSetAtAddress page2: %v", err)
	}
	if len(page2.Items) != 1 || page2.NextPageQuery != nil {
		t.Fatalf("expected a final partial page with no next cursor, got %+v", page2)
	}
}

func TestUtxoSetAtAddress_NoNextPageWhenResultIsExactlyOnePage(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	cell := chainindex.NewCell(nil)
	h := New(cell, db)

	var a, b chainindex.TxID
	a[0], b[0] = 1, 2
	tip := chainindex.NewTip(10, blockID(1), 1)
	txs := []chainindex.TxWithStoreFlag{
		{Tx: chainindex.Tx{ID: a, Outputs: []chainindex.TxOutput{{Address: cred(9), Lovelace: 1}}}, StoreTx: true},
		{Tx: chainindex.Tx{ID: b, Outputs: []chainindex.TxOutput{{Address: cred(9), Lovelace: 2}}}, StoreTx: true},
	}
	balance := chainindex.FromBlock(txs)

	tx, err := db.BeginWrite(ctx)
	if err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
	if err := store.ProjectBlock(ctx, tx, tip, balance, txs, store.DefaultBatchSize); err != nil {
		t.Fatalf("ProjectBlock: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := cell.Update(func(idx *chainindex.UtxoIndex) (*chainindex.UtxoIndex, error) {
		_, err := idx.Insert(chainindex.UtxoState{Data: balance, Tip: tip})
		return idx, err
	}); err != nil {
		t.Fatalf("cell update: %v", err)
	}

	page, err := h.UtxoSetAtAddress(ctx, PageQuery{PageSize: 2}, cred(9))
	if err != nil {
		t.Fatalf("UtxoSetAtAddress: %v", err)
	}
	if len(page.Items) != 2 || page.NextPageQuery != nil {
		t.Fatalf("expected a full, final page with no next cursor when the result is exactly one page, got %+v", page)
	}
}

func TestUtxoSetAtAddress_RejectsMismatchedCursor(t *testing.T) {
	db := openTestDB(t)
	h := New(chainindex.NewCell(nil), db)

	bogus := ref(1, 0)
	_, err := h.UtxoSetAtAddress(context.Background(), PageQuery{PageSize: 10, AfterKey: &bogus, Cursor: "not-the-real-token"}, cred(1))
	if err != ErrCursorMismatch {
		t.Fatalf("expected ErrCursorMismatch, got %v", err)
	}
}

func TestDatumFromHash_MissReturnsFalse(t *testing.T) {
	db := openTestDB(t)
	h := New(chainindex.NewCell(nil), db)

	var hash [32]byte
	hash[0] = 0xFF
	_, ok, err := h.DatumFromHash(context.Background(), hash)
	if err != nil {
		t.Fatalf("DatumFromHash: %v", err)
	}
	if ok {
		t.Fatalf("expected a miss for an unknown hash")
	}
}
