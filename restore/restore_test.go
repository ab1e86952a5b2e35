package restore

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

func TestRestoreStateFromDB_RebuildsIndexFidelity(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	a, b, c := ref(0xA, 0), ref(0xB, 0), ref(0xC, 0)

	tip1 := chainindex.NewTip(10, blockID(1), 1)
	bal1 := chainindex.EmptyBalance()
	bal1.Outputs[a] = struct{}{}
	bal1.Outputs[b] = struct{}{}

	tip2 := chainindex.NewTip(20, blockID(2), 2)
	bal2 := chainindex.EmptyBalance()
	bal2.Outputs[c] = struct{}{}
	bal2.Inputs[a] = struct{}{}

	for _, step := range []struct {
		tip chainindex.Tip
		bal chainindex.TxUtxoBalance
	}{{tip1, bal1}, {tip2, bal2}} {
		tx, err := db.BeginWrite(ctx)
		if err != nil {
			t.Fatalf("BeginWrite: %v", err)
		}
		if err := store.ProjectBlock(ctx, tx, step.tip, step.bal, nil, store.DefaultBatchSize); err != nil {
			t.Fatalf("ProjectBlock: %v", err)
		}
		if err := tx.Commit(); err != nil {
			t.Fatalf("Commit: %v", err)
		}
	}

	idx, err := RestoreStateFromDB(ctx, db)
	if err != nil {
		t.Fatalf("RestoreStateFromDB: %v", err)
	}
	if idx.Tip().Slot != 20 || idx.Tip().ID != blockID(2) {
		t.Fatalf("unexpected restored tip: %+v", idx.Tip())
	}
	if chainindex.IsUnspentOutput(a, idx) {
		t.Fatalf("a should be spent after restore")
	}
	if !chainindex.IsUnspentOutput(b, idx) || !chainindex.IsUnspentOutput(c, idx) {
		t.Fatalf("b and c should be unspent after restore")
	}
}

func TestGetResumePoints_NewestFirst(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	for i, slot := range []chainindex.Slot{10, 20, 30} {
		tip := chainindex.NewTip(slot, blockID(byte(i+1)), chainindex.BlockNo(i+1))
		tx, err := db.BeginWrite(ctx)
		if err != nil {
			t.Fatalf("BeginWrite: %v", err)
		}
		if err := store.ProjectBlock(ctx, tx, tip, chainindex.EmptyBalance(), nil, store.DefaultBatchSize); err != nil {
			t.Fatalf("ProjectBlock: %v", err)
		}
		if err := tx.Commit(); err != nil {
			t.Fatalf("Commit: %v", err)
		}
	}

	points, err := GetResumePoints(ctx, db)
	if err != nil {
		t.Fatalf("GetResumePoints: %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("expected 3 resume points, got %d", len(points))
	}
	if points[0].Slot != 30 || points[2].Slot != 10 {
		t.Fatalf("expected newest-first ordering, got %+v", points)
	}
}
