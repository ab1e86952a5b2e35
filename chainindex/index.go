package chainindex

import "sort"

// UtxoState is the unit carried at each slot of the index: a balance delta
// paired with the tip it was observed at.
type UtxoState struct {
	Data TxUtxoBalance
	Tip  Tip
}

// UtxoIndex is the ordered-by-slot sequence of UtxoState entries.
//
// Implemented as a slot-ascending slice with binary search: the depth
// window this index is reduced against (typically a couple thousand
// blocks) keeps the slice small. Entries are always appended at the tail
// and only ever removed from either end (Rollback drops a suffix,
// ReduceBlockCount collapses a prefix), so the O(n) splice cost of either
// operation only ever moves a bounded number of elements.
type UtxoIndex struct {
	entries []UtxoState // ascending by Tip.Slot
}

// NewUtxoIndex returns an empty index (tip = Genesis).
func NewUtxoIndex() *UtxoIndex {
	return &UtxoIndex{}
}

// Tip returns the tip of the rightmost entry, or Genesis if empty.
func (idx *UtxoIndex) Tip() Tip {
	if len(idx.entries) == 0 {
		return TipGenesis
	}
	return idx.entries[len(idx.entries)-1].Tip
}

// OldestSlot returns the slot of the leftmost retained entry and whether
// the index is non-empty.
func (idx *UtxoIndex) OldestSlot() (Slot, bool) {
	if len(idx.entries) == 0 {
		return 0, false
	}
	return idx.entries[0].Tip.Slot, true
}

// Len reports the number of retained deltas.
func (idx *UtxoIndex) Len() int { return len(idx.entries) }

// Entries returns the retained deltas, oldest first. Callers must not
// mutate the returned slice.
func (idx *UtxoIndex) Entries() []UtxoState { return idx.entries }

// InsertPosition is a symbolic marker of where an Insert landed, used only
// for logging.
type InsertPosition int

const InsertedAtTip InsertPosition = 0

// Insert appends a new UtxoState, enforcing the two checks this layer is
// responsible for: the new tip must be concrete, and it must strictly
// extend the current tip's slot. Predecessor-hash linkage is the upstream
// follower's responsibility; TipMismatch here only covers the
// reduced-snapshot-slot collision case surfaced by Rollback, not insertion.
func (idx *UtxoIndex) Insert(state UtxoState) (InsertPosition, error) {
	if state.Tip.IsGenesis() {
		return 0, newErr(ErrInsertUtxoNoTip, "cannot insert a state with a Genesis tip")
	}
	if !idx.Tip().IsGenesis() && state.Tip.Slot <= idx.Tip().Slot {
		return 0, newErr(ErrDuplicateBlock, "new tip slot must be greater than the current tip slot")
	}
	idx.entries = append(idx.entries, state)
	return InsertedAtTip, nil
}

// RollbackResult is the outcome of a successful Rollback.
type RollbackResult struct {
	NewTip Tip
}

// Rollback drops the suffix of entries whose tip slot is greater than
// point.Slot. Rolling back to Genesis clears the index entirely.
func (idx *UtxoIndex) Rollback(point Point) (RollbackResult, error) {
	if point.IsGenesis() {
		idx.entries = nil
		return RollbackResult{NewTip: TipGenesis}, nil
	}

	oldest, ok := idx.OldestSlot()
	if ok && point.Slot < oldest {
		return RollbackResult{}, newErr(ErrOldPointNotFound, "point is older than the oldest retained snapshot slot")
	}

	cut := sort.Search(len(idx.entries), func(i int) bool {
		return idx.entries[i].Tip.Slot > point.Slot
	})

	if cut > 0 && idx.entries[cut-1].Tip.Slot == point.Slot && idx.entries[cut-1].Tip.ID != point.ID {
		return RollbackResult{}, newErr(ErrTipMismatch, "retained slot carries a different block hash")
	}

	idx.entries = idx.entries[:cut]
	return RollbackResult{NewTip: point.asTip()}, nil
}

// asTip reconstructs a Tip's slot/id from a Point. The block number is not
// recoverable from a bare Point; callers needing it should read the
// corresponding `tip` row back out of the database (the in-memory index
// only needs slot+id to answer liveness queries).
func (p Point) asTip() Tip {
	if p.IsGenesis() {
		return TipGenesis
	}
	return Tip{Slot: p.Slot, ID: p.ID}
}

// ReduceOutcome tags the result of ReduceBlockCount.
type ReduceOutcome int

const (
	NotReduced ReduceOutcome = iota
	Reduced
)

// ReduceResult is the outcome of ReduceBlockCount.
type ReduceResult struct {
	Outcome       ReduceOutcome
	ReducedIndex  *UtxoIndex
	CombinedState UtxoState // valid iff Outcome == Reduced
}

// ReduceBlockCount collapses all entries older than the depth window into a
// single combined entry. It returns NotReduced when the window isn't yet
// full enough to warrant compaction; it never mutates idx in place —
// callers swap in ReducedIndex only after persisting the compaction to the
// database.
func ReduceBlockCount(depth uint64, idx *UtxoIndex) ReduceResult {
	n := len(idx.entries)
	if n == 0 {
		return ReduceResult{Outcome: NotReduced}
	}

	tipBlockNo := idx.entries[n-1].Tip.BlockNo
	// k = index of the first entry fewer than `depth` blocks behind the
	// tip; entries[k:] are the ones kept as they are.
	k := sort.Search(n, func(i int) bool {
		return uint64(tipBlockNo-idx.entries[i].Tip.BlockNo) < depth
	})
	kCount := n - k

	if n <= kCount+1 {
		return ReduceResult{Outcome: NotReduced}
	}

	collapsedBalance := EmptyBalance()
	for _, e := range idx.entries[:k] {
		collapsedBalance = collapsedBalance.Union(e.Data)
	}
	combined := UtxoState{Data: collapsedBalance, Tip: idx.entries[k-1].Tip}

	newEntries := make([]UtxoState, 0, kCount+1)
	newEntries = append(newEntries, combined)
	newEntries = append(newEntries, idx.entries[k:]...)

	return ReduceResult{
		Outcome:       Reduced,
		ReducedIndex:  &UtxoIndex{entries: newEntries},
		CombinedState: combined,
	}
}

// IsUnspentOutput reports whether ref was created by some retained delta
// and has not been consumed by any delta at or after the one that created
// it.
//
// A plain AppendBlock delta never holds ref in both Outputs and Inputs
// (FromBlock already cancels same-block create+spend pairs), so in the
// common case "no later delta contains ref in its inputs" and "no delta
// at-or-after the creating one" agree. They diverge only after
// ReduceBlockCount: a combined entry's balance is a plain Union of several
// historical deltas with no re-cancellation, so a combined entry can
// legitimately hold ref in both sets when it was created and later spent
// inside the collapsed window. Checking the creating delta itself, not
// just the ones after it, is what keeps that case correct.
func IsUnspentOutput(ref TxOutRef, idx *UtxoIndex) bool {
	createdAt := -1
	for i, e := range idx.entries {
		if e.Data.HasOutput(ref) {
			createdAt = i
		}
	}
	if createdAt == -1 {
		return false
	}
	for i := createdAt; i < len(idx.entries); i++ {
		if idx.entries[i].Data.HasInput(ref) {
			return false
		}
	}
	return true
}
