package store

import (
	"database/sql"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"rubin.dev/cix/chainindex"
)

// encodeOutRef renders a TxOutRef as a fixed-width, lexicographically
// sortable TEXT key: hex(txid) '#' zero-padded decimal index.
func encodeOutRef(ref chainindex.TxOutRef) string {
	return fmt.Sprintf("%s#%010d", hex.EncodeToString(ref.TxID[:]), ref.Index)
}

func decodeOutRef(s string) (chainindex.TxOutRef, error) {
	parts := strings.SplitN(s, "#", 2)
	if len(parts) != 2 {
		return chainindex.TxOutRef{}, fmt.Errorf("store: malformed out_ref %q", s)
	}
	txidBytes, err := hex.DecodeString(parts[0])
	if err != nil || len(txidBytes) != 32 {
		return chainindex.TxOutRef{}, fmt.Errorf("store: malformed out_ref txid %q", s)
	}
	idx, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return chainindex.TxOutRef{}, fmt.Errorf("store: malformed out_ref index %q", s)
	}
	var ref chainindex.TxOutRef
	copy(ref.TxID[:], txidBytes)
	ref.Index = uint32(idx)
	return ref, nil
}

func encodeCredential(c chainindex.Credential) string {
	return hex.EncodeToString(c.Bytes[:])
}

func decodeCredential(s string) (chainindex.Credential, error) {
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 28 {
		return chainindex.Credential{}, fmt.Errorf("store: malformed address %q", s)
	}
	var c chainindex.Credential
	copy(c.Bytes[:], b)
	return c, nil
}

// encodeAssetClass renders an AssetClass as a sortable TEXT key:
// hex(currency_symbol) '.' hex(token_name).
func encodeAssetClass(a chainindex.AssetClass) string {
	return hex.EncodeToString(a.CurrencySymbol[:]) + "." + hex.EncodeToString([]byte(a.TokenName))
}

func decodeAssetClass(s string) (chainindex.AssetClass, error) {
	parts := strings.SplitN(s, ".", 2)
	if len(parts) != 2 {
		return chainindex.AssetClass{}, fmt.Errorf("store: malformed asset class %q", s)
	}
	sym, err := hex.DecodeString(parts[0])
	if err != nil || len(sym) != 28 {
		return chainindex.AssetClass{}, fmt.Errorf("store: malformed asset class currency symbol %q", s)
	}
	name, err := hex.DecodeString(parts[1])
	if err != nil {
		return chainindex.AssetClass{}, fmt.Errorf("store: malformed asset class token name %q", s)
	}
	var a chainindex.AssetClass
	copy(a.CurrencySymbol[:], sym)
	a.TokenName = string(name)
	return a, nil
}

func encodeHash(h [32]byte) string { return hex.EncodeToString(h[:]) }

func decodeHash(s string) ([32]byte, error) {
	var h [32]byte
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 32 {
		return h, fmt.Errorf("store: malformed hash %q", s)
	}
	copy(h[:], b)
	return h, nil
}

func encodeOptionalHash(h *[32]byte) (any, error) {
	if h == nil {
		return nil, nil
	}
	return encodeHash(*h), nil
}

func decodeOptionalHash(s sql.NullString) (*[32]byte, error) {
	if !s.Valid {
		return nil, nil
	}
	h, err := decodeHash(s.String)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func encodeBlockID(id chainindex.BlockID) string { return hex.EncodeToString(id[:]) }

func decodeBlockID(s string) (chainindex.BlockID, error) {
	var id chainindex.BlockID
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 32 {
		return id, fmt.Errorf("store: malformed block id %q", s)
	}
	copy(id[:], b)
	return id, nil
}
