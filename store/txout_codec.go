package store

import (
	"encoding/binary"
	"fmt"

	"rubin.dev/cix/chainindex"
)

// encodeTxOutput serializes a TxOutput into the utxo_out_ref.tx_out BLOB.
//
// Layout: address(28) | lovelace u64le | asset_count u32le | assets[...] |
// datum_hash_present u8 [+ 32] | script_hash_present u8 [+ 32]
// where each asset entry is currency_symbol(28) | token_name_len u16le |
// token_name | quantity u64le.
func encodeTxOutput(o chainindex.TxOutput) []byte {
	buf := make([]byte, 0, 28+8+4+1+1)
	buf = append(buf, o.Address.Bytes[:]...)

	var tmp8 [8]byte
	binary.LittleEndian.PutUint64(tmp8[:], o.Lovelace)
	buf = append(buf, tmp8[:]...)

	var tmp4 [4]byte
	binary.LittleEndian.PutUint32(tmp4[:], uint32(len(o.Assets)))
	buf = append(buf, tmp4[:]...)
	for class, qty := range o.Assets {
		buf = append(buf, class.CurrencySymbol[:]...)
		var tmp2 [2]byte
		name := []byte(class.TokenName)
		binary.LittleEndian.PutUint16(tmp2[:], uint16(len(name)))
		buf = append(buf, tmp2[:]...)
		buf = append(buf, name...)
		binary.LittleEndian.PutUint64(tmp8[:], qty)
		buf = append(buf, tmp8[:]...)
	}

	if o.DatumHash != nil {
		buf = append(buf, 1)
		buf = append(buf, o.DatumHash[:]...)
	} else {
		buf = append(buf, 0)
	}
	if o.ScriptHash != nil {
		buf = append(buf, 1)
		buf = append(buf, o.ScriptHash[:]...)
	} else {
		buf = append(buf, 0)
	}
	return buf
}

func decodeTxOutput(b []byte) (chainindex.TxOutput, error) {
	if len(b) < 28+8+4 {
		return chainindex.TxOutput{}, fmt.Errorf("store: tx_out: truncated")
	}
	var o chainindex.TxOutput
	off := 0
	copy(o.Address.Bytes[:], b[off:off+28])
	off += 28
	o.Lovelace = binary.LittleEndian.Uint64(b[off : off+8])
	off += 8
	assetCount := binary.LittleEndian.Uint32(b[off : off+4])
	off += 4

	if assetCount > 0 {
		o.Assets = make(map[chainindex.AssetClass]uint64, assetCount)
	}
	for i := uint32(0); i < assetCount; i++ {
		if off+28+2 > len(b) {
			return chainindex.TxOutput{}, fmt.Errorf("store: tx_out: truncated asset header")
		}
		var class chainindex.AssetClass
		copy(class.CurrencySymbol[:], b[off:off+28])
		off += 28
		nameLen := int(binary.LittleEndian.Uint16(b[off : off+2]))
		off += 2
		if off+nameLen+8 > len(b) {
			return chainindex.TxOutput{}, fmt.Errorf("store: tx_out: truncated asset body")
		}
		class.TokenName = string(b[off : off+nameLen])
		off += nameLen
		o.Assets[class] = binary.LittleEndian.Uint64(b[off : off+8])
		off += 8
	}

	if off >= len(b) {
		return chainindex.TxOutput{}, fmt.Errorf("store: tx_out: truncated datum flag")
	}
	hasDatum := b[off] == 1
	off++
	if hasDatum {
		if off+32 > len(b) {
			return chainindex.TxOutput{}, fmt.Errorf("store: tx_out: truncated datum hash")
		}
		var h [32]byte
		copy(h[:], b[off:off+32])
		o.DatumHash = &h
		off += 32
	}

	if off >= len(b) {
		return chainindex.TxOutput{}, fmt.Errorf("store: tx_out: truncated script flag")
	}
	hasScript := b[off] == 1
	off++
	if hasScript {
		if off+32 > len(b) {
			return chainindex.TxOutput{}, fmt.Errorf("store: tx_out: truncated script hash")
		}
		var h [32]byte
		copy(h[:], b[off:off+32])
		o.ScriptHash = &h
	}

	return o, nil
}
