// Package chainindex holds the core UTxO state engine: the data model, the
// per-block balance monoid, and the slot-ordered in-memory index. It has
// no knowledge of SQL or any other persistence mechanism — those live in
// the sibling store package, which projects this package's types into
// flat tables.
package chainindex

import "fmt"

// Slot is a monotonically increasing position on the chain's time axis.
type Slot uint64

// BlockNo is a block height.
type BlockNo uint64

// BlockID is a 32-byte block hash.
type BlockID [32]byte

func (b BlockID) String() string {
	return fmt.Sprintf("%x", [32]byte(b))
}

// Tip is either Genesis or a concrete (slot, blockID, blockNo) triple.
type Tip struct {
	genesis bool
	Slot    Slot
	ID      BlockID
	BlockNo BlockNo
}

// TipGenesis is the tip before any block has been applied.
var TipGenesis = Tip{genesis: true}

// NewTip builds a concrete, non-genesis Tip.
func NewTip(slot Slot, id BlockID, blockNo BlockNo) Tip {
	return Tip{Slot: slot, ID: id, BlockNo: blockNo}
}

// IsGenesis reports whether t is the Genesis tip.
func (t Tip) IsGenesis() bool { return t.genesis }

// Point drops the block number from a Tip; it is the unit callers use to
// request a Rollback or a ResumeSync.
type Point struct {
	genesis bool
	Slot    Slot
	ID      BlockID
}

// PointGenesis is the point before any block has been applied.
var PointGenesis = Point{genesis: true}

// NewPoint builds a concrete, non-genesis Point.
func NewPoint(slot Slot, id BlockID) Point {
	return Point{Slot: slot, ID: id}
}

// IsGenesis reports whether p is the Genesis point.
func (p Point) IsGenesis() bool { return p.genesis }

// PointOf drops the block number from a Tip.
func PointOf(t Tip) Point {
	if t.IsGenesis() {
		return PointGenesis
	}
	return NewPoint(t.Slot, t.ID)
}

// TxID is a 32-byte transaction hash.
type TxID [32]byte

// TxOutRef is a content-addressed handle to an output: (TxId, OutputIndex).
type TxOutRef struct {
	TxID  TxID
	Index uint32
}

// Less orders TxOutRef by its lexicographic byte encoding (TxId then Index,
// big-endian), the ordering paginated queries return rows in.
func (r TxOutRef) Less(other TxOutRef) bool {
	for i := range r.TxID {
		if r.TxID[i] != other.TxID[i] {
			return r.TxID[i] < other.TxID[i]
		}
	}
	return r.Index < other.Index
}

// Credential is the payment or stake credential carried by an address.
// It is an opaque byte handle (a hashed verification key or script hash);
// this package never interprets its contents.
type Credential struct {
	Bytes [28]byte
}

// AssetClass identifies a non-ada native token: (currencySymbol, tokenName).
type AssetClass struct {
	CurrencySymbol [28]byte
	TokenName      string
}

// TxOutput is the body of an output: value, address-derived credential,
// and optional datum/script references.
type TxOutput struct {
	Address    Credential
	Lovelace   uint64
	Assets     map[AssetClass]uint64
	DatumHash  *[32]byte
	ScriptHash *[32]byte
}

// Tx is the minimal shape of a transaction AppendBlock needs: the set of
// outputs it creates and inputs it consumes, plus the auxiliary per-tx rows
// (datums/scripts/redeemers) a caller may ask to index.
type Tx struct {
	ID        TxID
	Inputs    []TxOutRef
	Outputs   []TxOutput
	Datums    map[[32]byte][]byte
	Scripts   map[[32]byte][]byte
	Redeemers map[[32]byte][]byte
}

// TxWithStoreFlag pairs a Tx with a per-tx storeTx flag: when false,
// AppendBlock still applies the tx's balance but skips indexing its
// auxiliary rows (datums/scripts/redeemers/addresses/asset_classes/out_ref).
type TxWithStoreFlag struct {
	Tx      Tx
	StoreTx bool
}

// ChainSyncBlock is the unit AppendBlock consumes.
type ChainSyncBlock struct {
	Tip          Tip
	Transactions []TxWithStoreFlag
}
