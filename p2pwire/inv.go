package p2pwire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

const (
	// InvTypeWTx is the BIP339 wtxid inventory type.
	InvTypeWTx wire.InvType = 5

	// invEntrySize is the encoded size of one inventory vector.
	invEntrySize = 4 + chainhash.HashSize
)

// InvEntry is one inventory vector announced by a peer.
type InvEntry struct {
	Type wire.InvType
	Hash chainhash.Hash
}

// IsTx reports whether the entry announces a transaction, by txid or by
// wtxid.
func (e InvEntry) IsTx() bool {
	switch e.Type {
	case wire.InvTypeTx, InvTypeWTx, wire.InvTypeWitnessTx:
		return true
	}

	return false
}

// ParseInv decodes an inv payload. Peers occasionally announce more entries
// than they send, so a truncated tail is dropped instead of failing the
// entries that were read completely.
func ParseInv(payload []byte) []InvEntry {
	r := bytes.NewReader(payload)
	count, err := wire.ReadVarInt(r, ProtocolVersion)
	if err != nil {
		return nil
	}

	// Never trust the count for the allocation.
	capacity := uint64(r.Len() / invEntrySize)
	if count < capacity {
		capacity = count
	}
	entries := make([]InvEntry, 0, capacity)

	var raw [invEntrySize]byte
	for i := uint64(0); i < count; i++ {
		if _, err := io.ReadFull(r, raw[:]); err != nil {
			break
		}

		var entry InvEntry
		entry.Type = wire.InvType(binary.LittleEndian.Uint32(raw[:4]))
		copy(entry.Hash[:], raw[4:])
		entries = append(entries, entry)
	}

	return entries
}

// ContainsTx reports whether an inv payload announces txid as a transaction.
func ContainsTx(payload []byte, txid chainhash.Hash) bool {
	for _, entry := range ParseInv(payload) {
		if entry.IsTx() && entry.Hash == txid {
			return true
		}
	}

	return false
}

// NewInvMessage encodes an inv message carrying the given entries.
func NewInvMessage(entries ...InvEntry) (*Message, error) {
	inv := wire.NewMsgInv()
	for i := range entries {
		vect := wire.NewInvVect(entries[i].Type, &entries[i].Hash)
		if err := inv.AddInvVect(vect); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	err := inv.BtcEncode(&buf, ProtocolVersion, wire.BaseEncoding)
	if err != nil {
		return nil, fmt.Errorf("encode inv: %w", err)
	}

	return &Message{Command: wire.CmdInv, Payload: buf.Bytes()}, nil
}
