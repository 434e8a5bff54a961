package transaction

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/twistededwards/eddsa"
	"github.com/holiman/uint256"
	"github.com/kysee/phoenix/phoenix/common"
	"github.com/kysee/phoenix/phoenix/crypto"
	"github.com/kysee/phoenix/phoenix/merkle"
	"github.com/kysee/phoenix/phoenix/note"
	"github.com/kysee/phoenix/phoenix/rpc"
	"github.com/kysee/phoenix/phoenix/zk"
	"github.com/kysee/phoenix/utils"
)

// NoteFetcher resolves stored notes by position. A nil opening means the
// source keeps no commitment tree.
type NoteFetcher interface {
	FetchNote(idx common.Idx) (*note.Note, error)
	Opening(idx common.Idx) (*merkle.Opening, error)
}

// ToRPC converts t to its message form. Secret material is never copied:
// inputs carry their nullifier and merkle root and outputs only disclose the
// opening of transparent notes.
func (t *Transaction) ToRPC() (*rpc.Transaction, error) {
	msg := &rpc.Transaction{}
	for _, in := range t.inputs.items {
		root := in.root.Bytes()
		nf := in.nullifier
		msg.Inputs = append(msg.Inputs, &rpc.TransactionInput{
			Pos:        uint64(in.note.Idx()),
			Nullifier:  nf[:],
			MerkleRoot: root[:],
		})
	}
	for _, out := range t.outputs.items {
		o, err := outputToRPC(out)
		if err != nil {
			return nil, err
		}
		msg.Outputs = append(msg.Outputs, o)
	}

	var err error
	if msg.Fee, err = outputToRPC(t.fee); err != nil {
		return nil, err
	}
	if t.crossover != nil {
		if msg.Crossover, err = outputToRPC(t.crossover); err != nil {
			return nil, err
		}
	}
	if t.contractOutput != nil {
		if msg.ContractOutput, err = outputToRPC(t.contractOutput); err != nil {
			return nil, err
		}
	}
	for _, p := range t.proofs {
		msg.Proofs = append(msg.Proofs, p.Bytes())
	}
	return msg, nil
}

func outputToRPC(it *Item) (*rpc.TransactionOutput, error) {
	bz, err := it.note.MarshalBinary()
	if err != nil {
		return nil, err
	}
	o := &rpc.TransactionOutput{Note: bz}
	if it.note.Variant() == note.Transparent {
		v := it.note.Value().Bytes32()
		b, _ := it.note.Blinding()
		bb := b.Bytes()
		o.Value, o.Blinding = v[:], bb[:]
	}
	return o, nil
}

// FromRPC rebuilds a transaction from msg. Inputs are opaque. It fails on
// the first malformed field.
func FromRPC(msg *rpc.Transaction) (*Transaction, error) {
	return fromRPC(msg, opaqueFromRPC)
}

// FromRPCWithNotes rebuilds a transaction from msg, spending each input's
// stored note at Pos with the key carried in Sk.
func FromRPCWithNotes(fetcher NoteFetcher, msg *rpc.Transaction) (*Transaction, error) {
	return fromRPC(msg, func(in *rpc.TransactionInput) (*Item, error) {
		return inputFromRPC(fetcher, in)
	})
}

func fromRPC(msg *rpc.Transaction, input func(*rpc.TransactionInput) (*Item, error)) (*Transaction, error) {
	if msg == nil {
		return nil, invalid("nil message")
	}
	if msg.Fee == nil {
		return nil, common.ErrFeeOutput
	}
	tx := New()

	fee, err := outputFromRPC(msg.Fee)
	if err != nil {
		return nil, fmt.Errorf("fee: %w", err)
	}
	if err := tx.SetFee(fee); err != nil {
		return nil, err
	}

	for i, in := range msg.Inputs {
		it, err := input(in)
		if err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
		if err := tx.PushInput(it); err != nil {
			return nil, err
		}
	}
	for i, o := range msg.Outputs {
		it, err := outputFromRPC(o)
		if err != nil {
			return nil, fmt.Errorf("output %d: %w", i, err)
		}
		if err := tx.PushOutput(it); err != nil {
			return nil, err
		}
	}
	if msg.Crossover != nil {
		if tx.crossover, err = outputFromRPC(msg.Crossover); err != nil {
			return nil, fmt.Errorf("crossover: %w", err)
		}
	}
	if msg.ContractOutput != nil {
		if tx.contractOutput, err = outputFromRPC(msg.ContractOutput); err != nil {
			return nil, fmt.Errorf("contract output: %w", err)
		}
	}
	for i, p := range msg.Proofs {
		if len(p) == 0 {
			return nil, invalid("proof %d is empty", i)
		}
		tx.proofs = append(tx.proofs, zk.NewProof(p))
	}
	return tx, nil
}

func opaqueFromRPC(in *rpc.TransactionInput) (*Item, error) {
	if in == nil {
		return nil, invalid("nil input")
	}
	root, err := utils.ScalarFromBytes(in.MerkleRoot)
	if err != nil {
		return nil, invalid("merkle root: %v", err)
	}
	nf, err := utils.ScalarFromBytes(in.Nullifier)
	if err != nil {
		return nil, invalid("nullifier: %v", err)
	}
	return OpaqueInput(common.NullifierFromScalar(nf), root), nil
}

func inputFromRPC(fetcher NoteFetcher, in *rpc.TransactionInput) (*Item, error) {
	if in == nil {
		return nil, invalid("nil input")
	}
	sk := new(eddsa.PrivateKey)
	if _, err := sk.SetBytes(in.Sk); err != nil {
		return nil, invalid("secret key: %v", err)
	}
	idx := common.Idx(in.Pos)
	n, err := fetcher.FetchNote(idx)
	if err != nil {
		return nil, fmt.Errorf("%w: note %d: %w", common.ErrInvalidParameters, idx, err)
	}
	opening, err := fetcher.Opening(idx)
	if err != nil {
		return nil, fmt.Errorf("%w: opening of note %d: %w", common.ErrInvalidParameters, idx, err)
	}
	it, err := NewInput(n, opening, sk)
	if err != nil {
		return nil, invalid("%v", err)
	}
	return it, nil
}

func outputFromRPC(o *rpc.TransactionOutput) (*Item, error) {
	if o == nil {
		return nil, invalid("nil output")
	}
	n, err := note.Decode(o.Note)
	if err != nil {
		return nil, err
	}
	if len(o.Value) == 0 && len(o.Blinding) == 0 {
		return outputOf(n), nil
	}
	if len(o.Value) > utils.ScalarSize {
		return nil, invalid("value is %d bytes", len(o.Value))
	}
	value := new(uint256.Int).SetBytes(o.Value)
	var blinding fr.Element
	if len(o.Blinding) > 0 {
		if blinding, err = utils.ScalarFromBytes(o.Blinding); err != nil {
			return nil, invalid("blinding: %v", err)
		}
	}
	return NewOutput(n, value, blinding)
}

// FromRPCIO builds a transaction spending inputs into outputs with a fee of
// feeValue, then proves and verifies it with p. Every output must disclose
// its value and blinding factor.
func FromRPCIO(fetcher NoteFetcher, feeValue *uint256.Int, inputs []*rpc.TransactionInput, outputs []*rpc.TransactionOutput, p zk.Pipeline) (*Transaction, error) {
	tx := New()
	for i, in := range inputs {
		it, err := inputFromRPC(fetcher, in)
		if err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
		if err := tx.PushInput(it); err != nil {
			return nil, err
		}
	}
	for i, o := range outputs {
		it, err := outputFromRPC(o)
		if err != nil {
			return nil, fmt.Errorf("output %d: %w", i, err)
		}
		if !it.HasSecrets() {
			return nil, invalid("output %d does not disclose its opening", i)
		}
		if err := tx.PushOutput(it); err != nil {
			return nil, err
		}
	}

	// the fee key is replaced by the block generator
	feeKey, err := crypto.NewKey()
	if err != nil {
		return nil, err
	}
	fee, err := NewTransparentOutput(&feeKey.PublicKey, feeValue)
	if err != nil {
		return nil, err
	}
	tx.fee = fee

	if err := tx.Prove(p); err != nil {
		return nil, err
	}
	if err := tx.Verify(p); err != nil {
		return nil, err
	}
	return tx, nil
}
