package transaction

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/holiman/uint256"
	"github.com/kysee/phoenix/phoenix/crypto"
	"github.com/kysee/phoenix/phoenix/merkle"
	"github.com/kysee/phoenix/phoenix/note"
)

// NewRandom samples a balanced transaction: one transparent input of random
// value, up to MaxOutputNotes obfuscated outputs splitting it and a
// transparent fee holding the remainder. Values are drawn from r; keys and
// blinding factors are fresh. Zero-valued notes are left out.
func NewRandom(r io.Reader) (*Transaction, error) {
	input, err := uniform(r, math.MaxUint64/MaxInputNotes-1)
	if err != nil {
		return nil, err
	}

	var outputs [MaxOutputNotes]uint64
	left := input
	for i := range outputs {
		if outputs[i], err = uniform(r, left); err != nil {
			return nil, err
		}
		left -= outputs[i]
	}
	fee := left

	tx := New()
	if input > 0 {
		sk, err := crypto.NewKey()
		if err != nil {
			return nil, err
		}
		n, _, err := note.NewTransparent(&sk.PublicKey, uint256.NewInt(input))
		if err != nil {
			return nil, err
		}
		it, err := NewInput(n, merkle.MockOpening(n.Commitment()), sk)
		if err != nil {
			return nil, err
		}
		if err := tx.PushInput(it); err != nil {
			return nil, err
		}
	}

	for _, v := range outputs {
		if v == 0 {
			continue
		}
		sk, err := crypto.NewKey()
		if err != nil {
			return nil, err
		}
		it, err := NewObfuscatedOutput(&sk.PublicKey, uint256.NewInt(v))
		if err != nil {
			return nil, err
		}
		if err := tx.PushOutput(it); err != nil {
			return nil, err
		}
	}

	sk, err := crypto.NewKey()
	if err != nil {
		return nil, err
	}
	feeItem, err := NewTransparentOutput(&sk.PublicKey, uint256.NewInt(fee))
	if err != nil {
		return nil, err
	}
	tx.fee = feeItem
	return tx, nil
}

// uniform returns a value in [0, n), or 0 when n is 0.
func uniform(r io.Reader, n uint64) (uint64, error) {
	if n == 0 {
		return 0, nil
	}
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]) % n, nil
}
