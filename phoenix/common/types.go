package common

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// Idx is the position of a note in the ledger. Indices are assigned
// sequentially and never reused.
type Idx uint64

// Bytes returns the big-endian encoding, suitable as a sorted storage key.
func (i Idx) Bytes() []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, uint64(i))
	return k
}

func IdxFromBytes(b []byte) Idx {
	return Idx(binary.BigEndian.Uint64(b))
}

// Nullifier marks a note as spent. It is the canonical encoding of a field
// element and is only ever used as a set key.
type Nullifier [fr.Bytes]byte

func NullifierFromScalar(s fr.Element) Nullifier {
	return Nullifier(s.Bytes())
}

func (n Nullifier) Scalar() fr.Element {
	var s fr.Element
	s.SetBytes(n[:])
	return s
}

func (n Nullifier) IsZero() bool {
	return n == Nullifier{}
}

func (n Nullifier) String() string {
	return hex.EncodeToString(n[:])
}
