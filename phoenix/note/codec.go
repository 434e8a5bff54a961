package note

import (
	"encoding/binary"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/kysee/phoenix/phoenix/common"
	"github.com/kysee/phoenix/utils"
)

// Size is the fixed encoded size of a note:
// variant | idx | owner key | commitment | value | blinding | sealed payload.
const Size = 1 + 8 + pubKeySize + 3*utils.ScalarSize + SealedSize

func (n *Note) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, Size)
	buf = append(buf, byte(n.variant))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(n.idx))
	buf = append(buf, n.pk.Bytes()...)

	c := n.commitment.Bytes()
	buf = append(buf, c[:]...)

	var v [utils.ScalarSize]byte
	if n.value != nil {
		v = n.value.Bytes32()
	}
	buf = append(buf, v[:]...)

	b := n.blinding.Bytes()
	buf = append(buf, b[:]...)
	buf = append(buf, n.sealed[:]...)
	return buf, nil
}

// UnmarshalBinary decodes exactly Size bytes. Every failure wraps
// common.ErrInvalidParameters.
func (n *Note) UnmarshalBinary(data []byte) error {
	if len(data) != Size {
		return fmt.Errorf("%w: note must be %d bytes, got %d", common.ErrInvalidParameters, Size, len(data))
	}
	var dec Note

	dec.variant = Variant(data[0])
	if dec.variant != Transparent && dec.variant != Obfuscated {
		return fmt.Errorf("%w: unknown note variant %d", common.ErrInvalidParameters, data[0])
	}
	off := 1
	dec.idx = common.Idx(binary.LittleEndian.Uint64(data[off:]))
	off += 8

	if _, err := dec.pk.SetBytes(data[off : off+pubKeySize]); err != nil {
		return fmt.Errorf("%w: owner key: %v", common.ErrInvalidParameters, err)
	}
	off += pubKeySize

	var err error
	if dec.commitment, err = utils.ScalarFromBytes(data[off : off+utils.ScalarSize]); err != nil {
		return fmt.Errorf("%w: commitment: %v", common.ErrInvalidParameters, err)
	}
	off += utils.ScalarSize

	value := new(uint256.Int).SetBytes(data[off : off+utils.ScalarSize])
	if value.BitLen() > ValueBits {
		return ErrValueOverflow
	}
	off += utils.ScalarSize

	if dec.blinding, err = utils.ScalarFromBytes(data[off : off+utils.ScalarSize]); err != nil {
		return fmt.Errorf("%w: blinding: %v", common.ErrInvalidParameters, err)
	}
	off += utils.ScalarSize
	copy(dec.sealed[:], data[off:off+SealedSize])

	switch dec.variant {
	case Transparent:
		if dec.sealed != [SealedSize]byte{} {
			return fmt.Errorf("%w: transparent note carries a sealed payload", common.ErrInvalidParameters)
		}
		if c := Commit(value, dec.blinding); !c.Equal(&dec.commitment) {
			return fmt.Errorf("%w: commitment does not open to value", common.ErrInvalidParameters)
		}
		dec.value = value
	case Obfuscated:
		if !value.IsZero() || !dec.blinding.IsZero() {
			return fmt.Errorf("%w: obfuscated note exposes its value", common.ErrInvalidParameters)
		}
	}

	*n = dec
	return nil
}

// Decode is UnmarshalBinary into a fresh note.
func Decode(data []byte) (*Note, error) {
	n := new(Note)
	if err := n.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return n, nil
}
