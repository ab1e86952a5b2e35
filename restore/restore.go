// Package restore rebuilds the in-memory UtxoIndex from the relational
// projection on startup, by folding the retained delta rows and replaying
// them against every tip row in slot order.
package restore

import (
	"context"
	"fmt"

	"rubin.dev/cix/chainindex"
	"rubin.dev/cix/store"
)

// RestoreStateFromDB reads every unspent_outputs/unmatched_inputs row,
// folds them into a slot->TxUtxoBalance map, reads every tip row ordered
// by slot, and rebuilds the UtxoIndex by pairing each tip with its folded
// balance (defaulting to the monoid identity when a tip has no surviving
// delta rows).
func RestoreStateFromDB(ctx context.Context, db *store.DB) (*chainindex.UtxoIndex, error) {
	balances, err := db.LoadBalances(ctx)
	if err != nil {
		return nil, fmt.Errorf("restore: load balances: %w", err)
	}

	tips, err := db.ListTips(ctx)
	if err != nil {
		return nil, fmt.Errorf("restore: list tips: %w", err)
	}

	idx := chainindex.NewUtxoIndex()
	for _, row := range tips {
		bal, ok := balances[row.Tip.Slot]
		if !ok {
			bal = chainindex.EmptyBalance()
		}
		if _, err := idx.Insert(chainindex.UtxoState{Data: bal, Tip: row.Tip}); err != nil {
			return nil, fmt.Errorf("restore: rebuild index at slot %d: %w", row.Tip.Slot, err)
		}
	}
	return idx, nil
}

// GetResumePoints returns every retained tip, newest-first, as candidate
// intersection points the upstream follower can negotiate a resume from.
// It is a thin re-export of the store's own query.
func GetResumePoints(ctx context.Context, db *store.DB) ([]chainindex.Tip, error) {
	return db.GetResumePoints(ctx)
}
