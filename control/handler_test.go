package control

import (
	"context"
	"testing"

	"rubin.dev/cix/chainindex"
	"rubin.dev/cix/restore"
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

func txRef(txByte byte, idx uint32) chainindex.TxOutRef {
	var id chainindex.TxID
	id[0] = txByte
	return chainindex.TxOutRef{TxID: id, Index: idx}
}

func block(slot chainindex.Slot, blockNo byte, outputs ...chainindex.TxOutRef) chainindex.ChainSyncBlock {
	var txID chainindex.TxID
	txID[0] = blockNo
	outs := make([]chainindex.TxOutput, len(outputs))
	return chainindex.ChainSyncBlock{
		Tip: chainindex.NewTip(slot, blockID(blockNo), chainindex.BlockNo(blockNo)),
		Transactions: []chainindex.TxWithStoreFlag{{
			Tx:      chainindex.Tx{ID: txID, Outputs: outs},
			StoreTx: true,
		}},
	}
}

func TestHandler_AppendBlock_UpdatesCellAndDB(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	h := New(db, chainindex.NewCell(nil), 2160, nil)

	if err := h.AppendBlock(ctx, block(10, 1)); err != nil {
		t.Fatalf("AppendBlock: %v", err)
	}
	if h.Cell().Tip().Slot != 10 {
		t.Fatalf("expected cell tip slot 10, got %d", h.Cell().Tip().Slot)
	}

	dbTip, ok, err := db.GetTip(ctx)
	if err != nil || !ok {
		t.Fatalf("GetTip: %v ok=%v", err, ok)
	}
	if dbTip.Slot != 10 {
		t.Fatalf("expected db tip slot 10, got %d", dbTip.Slot)
	}
}

func TestHandler_AppendBlock_RejectsNonMonotoneSlotWithoutMutatingDB(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	h := New(db, chainindex.NewCell(nil), 2160, nil)

	if err := h.AppendBlock(ctx, block(10, 1)); err != nil {
		t.Fatalf("AppendBlock: %v", err)
	}
	if err := h.AppendBlock(ctx, block(5, 2)); err == nil {
		t.Fatalf("expected out-of-order slot to fail")
	}

	if h.Cell().Tip().Slot != 10 {
		t.Fatalf("expected cell tip to remain at slot 10, got %d", h.Cell().Tip().Slot)
	}
	dbTip, _, err := db.GetTip(ctx)
	if err != nil {
		t.Fatalf("GetTip: %v", err)
	}
	if dbTip.Slot != 10 {
		t.Fatalf("expected db tip to remain at slot 10, got %d", dbTip.Slot)
	}
}

func TestHandler_Rollback_RoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	h := New(db, chainindex.NewCell(nil), 2160, nil)

	if err := h.AppendBlock(ctx, block(10, 1)); err != nil {
		t.Fatalf("AppendBlock 1: %v", err)
	}
	if err := h.AppendBlock(ctx, block(20, 2)); err != nil {
		t.Fatalf("AppendBlock 2: %v", err)
	}

	if err := h.Rollback(ctx, chainindex.NewPoint(10, blockID(1))); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if h.Cell().Tip().Slot != 10 {
		t.Fatalf("expected cell tip back at slot 10, got %d", h.Cell().Tip().Slot)
	}
	dbTip, ok, err := db.GetTip(ctx)
	if err != nil || !ok {
		t.Fatalf("GetTip: %v ok=%v", err, ok)
	}
	if dbTip.Slot != 10 {
		t.Fatalf("expected db tip back at slot 10, got %d", dbTip.Slot)
	}
}

func TestHandler_ResumeSync_RebuildsCellFromDB(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	h := New(db, chainindex.NewCell(nil), 2160, nil)

	if err := h.AppendBlock(ctx, block(10, 1)); err != nil {
		t.Fatalf("AppendBlock 1: %v", err)
	}
	if err := h.AppendBlock(ctx, block(20, 2)); err != nil {
		t.Fatalf("AppendBlock 2: %v", err)
	}

	if err := h.ResumeSync(ctx, chainindex.NewPoint(10, blockID(1)), restore.RestoreStateFromDB); err != nil {
		t.Fatalf("ResumeSync: %v", err)
	}
	if h.Cell().Tip().Slot != 10 || h.Cell().Tip().ID != blockID(1) {
		t.Fatalf("expected cell rebuilt at slot 10/block 1, got %+v", h.Cell().Tip())
	}
}

func TestHandler_AppendBlock_ProjectsNonAdaAsset(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	h := New(db, chainindex.NewCell(nil), 2160, nil)

	class := chainindex.AssetClass{TokenName: "testcoin"}
	class.CurrencySymbol[0] = 0x99

	var txID chainindex.TxID
	txID[0] = 1
	out := chainindex.TxOutput{
		Lovelace: 1_000_000,
		Assets:   map[chainindex.AssetClass]uint64{class: 42},
	}
	b := chainindex.ChainSyncBlock{
		Tip: chainindex.NewTip(10, blockID(1), 1),
		Transactions: []chainindex.TxWithStoreFlag{{
			Tx:      chainindex.Tx{ID: txID, Outputs: []chainindex.TxOutput{out}},
			StoreTx: true,
		}},
	}

	if err := h.AppendBlock(ctx, b); err != nil {
		t.Fatalf("AppendBlock: %v", err)
	}

	refs, _, err := db.UtxoSetWithCurrency(ctx, class, nil, 10)
	if err != nil {
		t.Fatalf("UtxoSetWithCurrency: %v", err)
	}
	want := txRef(1, 0)
	if len(refs) != 1 || refs[0] != want {
		t.Fatalf("expected [%v], got %v", want, refs)
	}
}

func TestHandler_CollectGarbage_DoesNotTouchUtxoState(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	h := New(db, chainindex.NewCell(nil), 2160, nil)

	if err := h.AppendBlock(ctx, block(10, 1)); err != nil {
		t.Fatalf("AppendBlock: %v", err)
	}
	before := h.GetDiagnostics(ctx)
	if err := h.CollectGarbage(ctx); err != nil {
		t.Fatalf("CollectGarbage: %v", err)
	}
	after := h.GetDiagnostics(ctx)
	if after.NumUnspentOutputs != before.NumUnspentOutputs {
		t.Fatalf("expected unspent_outputs count untouched by GC: before=%d after=%d", before.NumUnspentOutputs, after.NumUnspentOutputs)
	}
}
