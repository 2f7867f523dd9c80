// Package btchash provides the hashing primitives used by the peer-to-peer
// wire engine: single and double SHA-256, the four byte message checksum and
// conversion between display-order and internal-order transaction ids.
package btchash

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

const (
	// TxIDHexLen is the length of a transaction id in hex characters.
	TxIDHexLen = chainhash.MaxHashStringSize

	// ChecksumSize is the number of sha256d bytes carried in a message
	// header.
	ChecksumSize = 4
)

// ErrInvalidTxID is returned when a string is not a 64 character hex txid.
var ErrInvalidTxID = errors.New("invalid txid")

// Sum256 returns the SHA-256 digest of b.
func Sum256(b []byte) [32]byte {
	var out [32]byte
	copy(out[:], chainhash.HashB(b))

	return out
}

// DoubleSum256 returns SHA-256(SHA-256(b)).
func DoubleSum256(b []byte) [32]byte {
	return chainhash.DoubleHashH(b)
}

// Checksum returns the first four bytes of DoubleSum256(b).
func Checksum(b []byte) [ChecksumSize]byte {
	var sum [ChecksumSize]byte
	digest := chainhash.DoubleHashB(b)
	copy(sum[:], digest[:ChecksumSize])

	return sum
}

// ParseTxID converts a display-order txid into its internal byte order. The
// string must be exactly 64 hex characters; anything else is rejected with
// ErrInvalidTxID.
func ParseTxID(s string) (chainhash.Hash, error) {
	if len(s) != TxIDHexLen {
		return chainhash.Hash{}, fmt.Errorf("%w: expected %d hex "+
			"characters, got %d", ErrInvalidTxID, TxIDHexLen, len(s))
	}

	if _, err := hex.DecodeString(s); err != nil {
		return chainhash.Hash{}, fmt.Errorf("%w: %v", ErrInvalidTxID,
			err)
	}

	hash, err := chainhash.NewHashFromStr(s)
	if err != nil {
		return chainhash.Hash{}, fmt.Errorf("%w: %v", ErrInvalidTxID,
			err)
	}

	return *hash, nil
}

// TxIDString renders an internal-order hash in display order.
func TxIDString(h chainhash.Hash) string {
	return h.String()
}

// IsTxIDHex reports whether s is exactly 64 hex characters.
func IsTxIDHex(s string) bool {
	if len(s) != TxIDHexLen {
		return false
	}

	_, err := hex.DecodeString(s)

	return err == nil
}

// TxIDFromRawTx deserializes a transaction and returns its txid. Witness data
// does not contribute to the txid.
func TxIDFromRawTx(rawTx []byte) (chainhash.Hash, error) {
	var tx wire.MsgTx
	if err := tx.Deserialize(bytes.NewReader(rawTx)); err != nil {
		return chainhash.Hash{}, fmt.Errorf("unable to decode "+
			"transaction: %w", err)
	}

	return tx.TxHash(), nil
}
