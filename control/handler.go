// Package control implements the write-side state machine over the
// in-memory UtxoIndex and its relational projection: AppendBlock,
// Rollback, ResumeSync, CollectGarbage, and GetDiagnostics, with a
// single-writer transition discipline.
package control

import (
	"context"
	"log/slog"

	"rubin.dev/cix/chainindex"
	"rubin.dev/cix/store"
)

// Handler owns the write path: the shared index Cell and the database
// connection. Only one goroutine may be inside a Handler method that
// mutates state at a time; the Cell's mutex plus the single sqlite writer
// connection enforce this.
type Handler struct {
	cell  *chainindex.Cell
	db    *store.DB
	depth uint64
	log   *slog.Logger
}

// New wires a Handler around an already-open store and an index Cell. The
// caller (cmd/chain-index) is expected to have populated cell via
// restore.RestoreStateFromDB before handing it to a Handler.
func New(db *store.DB, cell *chainindex.Cell, depth uint64, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{cell: cell, db: db, depth: depth, log: logger}
}

// Cell exposes the shared index cell so a query.Handler can be built
// against the same live state.
func (h *Handler) Cell() *chainindex.Cell { return h.cell }

// AppendBlock inserts into the in-memory index first; on success, reduces
// (if triggered) and projects within a single database transaction; swaps
// the index only after the transaction commits. A failure at either tier
// leaves both unchanged.
func (h *Handler) AppendBlock(ctx context.Context, block chainindex.ChainSyncBlock) error {
	balance := chainindex.FromBlock(block.Transactions)
	newState := chainindex.UtxoState{Data: balance, Tip: block.Tip}

	var reduceResult chainindex.ReduceResult

	err := h.cell.Update(func(idx *chainindex.UtxoIndex) (*chainindex.UtxoIndex, error) {
		working := &chainindex.UtxoIndex{}
		*working = *idx
		if _, err := working.Insert(newState); err != nil {
			return nil, wrapInsertion(err)
		}

		reduceResult = chainindex.ReduceBlockCount(h.depth, working)

		tx, err := h.db.BeginWrite(ctx)
		if err != nil {
			return nil, wrapInsertion(err)
		}

		if reduceResult.Outcome == chainindex.Reduced {
			if err := store.ReduceOldUtxoDB(ctx, tx, reduceResult.CombinedState.Tip.Slot); err != nil {
				tx.Rollback()
				return nil, wrapInsertion(err)
			}
			working = reduceResult.ReducedIndex
		}

		if err := store.ProjectBlock(ctx, tx, block.Tip, balance, block.Transactions, h.db.BatchSize()); err != nil {
			tx.Rollback()
			return nil, wrapInsertion(err)
		}

		if err := tx.Commit(); err != nil {
			return nil, wrapInsertion(err)
		}

		return working, nil
	})
	if err != nil {
		h.log.Error("append block failed", "err", err)
		return err
	}

	h.log.Info("InsertionSuccess", "tip_slot", block.Tip.Slot, "tip_block_no", block.Tip.BlockNo, "pos", chainindex.InsertedAtTip)
	return nil
}

// Rollback runs Rollback against the in-memory index and, on success,
// rollbackUtxoDb against the database, inside the same exclusive window.
func (h *Handler) Rollback(ctx context.Context, point chainindex.Point) error {
	err := h.cell.Update(func(idx *chainindex.UtxoIndex) (*chainindex.UtxoIndex, error) {
		working := &chainindex.UtxoIndex{}
		*working = *idx
		if _, err := working.Rollback(point); err != nil {
			return nil, wrapRollback(err)
		}

		tx, err := h.db.BeginWrite(ctx)
		if err != nil {
			return nil, wrapRollback(err)
		}
		if err := store.RollbackUtxoDB(ctx, tx, point); err != nil {
			tx.Rollback()
			return nil, wrapRollback(err)
		}
		if err := tx.Commit(); err != nil {
			return nil, wrapRollback(err)
		}
		return working, nil
	})
	if err != nil {
		h.log.Error("rollback failed", "err", err)
		return err
	}

	if point.IsGenesis() {
		h.log.Info("TipIsGenesis")
	} else {
		h.log.Info("RollbackSuccess", "tip_slot", point.Slot)
	}
	return nil
}

// ResumeSync rolls the database and index back to point, then rebuilds
// the in-memory index by replaying the database from scratch.
func (h *Handler) ResumeSync(ctx context.Context, point chainindex.Point, restore func(context.Context, *store.DB) (*chainindex.UtxoIndex, error)) error {
	tx, err := h.db.BeginWrite(ctx)
	if err != nil {
		return wrapRollback(err)
	}
	if err := store.RollbackUtxoDB(ctx, tx, point); err != nil {
		tx.Rollback()
		return wrapRollback(err)
	}
	if err := tx.Commit(); err != nil {
		return wrapRollback(err)
	}

	rebuilt, err := restore(ctx, h.db)
	if err != nil {
		return wrapRollback(err)
	}
	h.cell.Replace(rebuilt)
	h.log.Info("ResumeSync", "point_slot", point.Slot)
	return nil
}

// CollectGarbage truncates the per-tx resolvable-history tables.
func (h *Handler) CollectGarbage(ctx context.Context) error {
	if err := h.db.CollectGarbage(ctx); err != nil {
		h.log.Error("collect garbage failed", "err", err)
		return err
	}
	h.log.Info("CollectGarbage")
	return nil
}

// GetDiagnostics computes the five aggregate row counts. It does not
// mutate either tier.
func (h *Handler) GetDiagnostics(ctx context.Context) store.Diagnostics {
	return h.db.GetDiagnostics(ctx)
}

func wrapInsertion(cause error) error {
	return chainindex.WrapInsertionFailed(cause)
}

func wrapRollback(cause error) error {
	return chainindex.WrapRollbackFailed(cause)
}
