package chainindex

// TxUtxoBalance is the per-block delta: outputs created and inputs
// consumed, with intra-block created-and-spent pairs already cancelled.
type TxUtxoBalance struct {
	Outputs map[TxOutRef]struct{}
	Inputs  map[TxOutRef]struct{}
}

// EmptyBalance is the monoid identity (∅, ∅).
func EmptyBalance() TxUtxoBalance {
	return TxUtxoBalance{Outputs: map[TxOutRef]struct{}{}, Inputs: map[TxOutRef]struct{}{}}
}

// FromBlock computes outputs = (⋃ tx.outputs) \ inputs and
// inputs = (⋃ tx.inputs) \ outputs: an output created and spent within the
// same block cancels out and appears in neither set.
func FromBlock(txs []TxWithStoreFlag) TxUtxoBalance {
	outputs := make(map[TxOutRef]struct{})
	inputs := make(map[TxOutRef]struct{})
	for _, twf := range txs {
		for i := range twf.Tx.Outputs {
			outputs[TxOutRef{TxID: twf.Tx.ID, Index: uint32(i)}] = struct{}{}
		}
		for _, in := range twf.Tx.Inputs {
			inputs[in] = struct{}{}
		}
	}
	for ref := range outputs {
		if _, spent := inputs[ref]; spent {
			delete(outputs, ref)
			delete(inputs, ref)
		}
	}
	return TxUtxoBalance{Outputs: outputs, Inputs: inputs}
}

// Union is the monoidal combine: componentwise set union, preserving set
// identity of either operand when the other is empty.
func (b TxUtxoBalance) Union(other TxUtxoBalance) TxUtxoBalance {
	out := TxUtxoBalance{
		Outputs: make(map[TxOutRef]struct{}, len(b.Outputs)+len(other.Outputs)),
		Inputs:  make(map[TxOutRef]struct{}, len(b.Inputs)+len(other.Inputs)),
	}
	for ref := range b.Outputs {
		out.Outputs[ref] = struct{}{}
	}
	for ref := range other.Outputs {
		out.Outputs[ref] = struct{}{}
	}
	for ref := range b.Inputs {
		out.Inputs[ref] = struct{}{}
	}
	for ref := range other.Inputs {
		out.Inputs[ref] = struct{}{}
	}
	return out
}

// HasOutput reports whether ref was created by this delta.
func (b TxUtxoBalance) HasOutput(ref TxOutRef) bool {
	_, ok := b.Outputs[ref]
	return ok
}

// HasInput reports whether ref was consumed by this delta.
func (b TxUtxoBalance) HasInput(ref TxOutRef) bool {
	_, ok := b.Inputs[ref]
	return ok
}
