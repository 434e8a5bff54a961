package transaction

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/kysee/phoenix/phoenix/common"
	"github.com/kysee/phoenix/phoenix/note"
	"github.com/kysee/phoenix/phoenix/zk"
	"github.com/kysee/phoenix/utils"
)

const (
	// MaxProofs is the number of proof slots on the wire.
	MaxProofs = 1

	// ProofSlotSize bounds the native encoding of one proof.
	ProofSlotSize = 2048

	wordSize       = 8
	proofSlot      = wordSize + ProofSlotSize
	inputSlot      = 2 * utils.ScalarSize
	outputSlot     = note.Size
	optionalOutput = 1 + outputSlot

	// TxSerializedSize is the encoded size of every transaction.
	TxSerializedSize = wordSize + MaxProofs*proofSlot +
		wordSize + MaxInputNotes*inputSlot +
		2*optionalOutput +
		wordSize + MaxOutputNotes*outputSlot +
		outputSlot
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{common.ErrInvalidParameters}, args...)...)
}

// MarshalBinary clears the sensitive info of t and encodes it.
//
// Layout, words are 8-byte little endian and scalars 32-byte big endian:
//
//	proof count | MaxProofs x (length | proof, zero padded)
//	input count | MaxInputNotes x (merkle root | nullifier)
//	crossover present | output slot
//	contract output present | output slot
//	output count | MaxOutputNotes x output slot
//	fee
//
// A proof that does not fit its slot is written as the empty placeholder.
func (t *Transaction) MarshalBinary() ([]byte, error) {
	t.ClearSensitiveInfo()

	if len(t.proofs) > MaxProofs {
		return nil, invalid("%d proofs exceed %d slots", len(t.proofs), MaxProofs)
	}

	buf := make([]byte, 0, TxSerializedSize)

	buf = binary.LittleEndian.AppendUint64(buf, uint64(len(t.proofs)))
	for i := 0; i < MaxProofs; i++ {
		var raw []byte
		if i < len(t.proofs) {
			raw = t.proofs[i].Bytes()
		}
		if len(raw) > ProofSlotSize {
			raw = nil
		}
		buf = binary.LittleEndian.AppendUint64(buf, uint64(len(raw)))
		buf = append(buf, raw...)
		buf = append(buf, make([]byte, ProofSlotSize-len(raw))...)
	}

	buf = binary.LittleEndian.AppendUint64(buf, uint64(t.inputs.len()))
	for i := 0; i < MaxInputNotes; i++ {
		in := DefaultInput()
		if i < t.inputs.len() {
			in = t.inputs.items[i]
		}
		root := in.root.Bytes()
		buf = append(buf, root[:]...)
		buf = append(buf, in.nullifier[:]...)
	}

	var err error
	if buf, err = appendOptional(buf, t.crossover); err != nil {
		return nil, err
	}
	if buf, err = appendOptional(buf, t.contractOutput); err != nil {
		return nil, err
	}

	buf = binary.LittleEndian.AppendUint64(buf, uint64(t.outputs.len()))
	for _, out := range t.canonicalOutputs() {
		if buf, err = appendNote(buf, out); err != nil {
			return nil, err
		}
	}

	if buf, err = appendNote(buf, t.fee); err != nil {
		return nil, err
	}
	return buf, nil
}

func appendNote(buf []byte, it *Item) ([]byte, error) {
	bz, err := it.note.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return append(buf, bz...), nil
}

func appendOptional(buf []byte, it *Item) ([]byte, error) {
	if it == nil {
		buf = append(buf, 0)
		return append(buf, make([]byte, outputSlot)...), nil
	}
	return appendNote(append(buf, 1), it)
}

func (t *Transaction) WriteTo(w io.Writer) (int64, error) {
	bz, err := t.MarshalBinary()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(bz)
	return int64(n), err
}

// UnmarshalBinary decodes exactly TxSerializedSize bytes into t. Inputs are
// rebuilt as opaque inputs. Every failure wraps common.ErrInvalidParameters;
// a fee that is not a transparent output also wraps common.ErrFeeOutput.
func (t *Transaction) UnmarshalBinary(data []byte) error {
	if len(data) != TxSerializedSize {
		return invalid("transaction must be %d bytes, got %d", TxSerializedSize, len(data))
	}
	r := &reader{buf: data}
	dec := New()

	nProofs := r.word()
	if nProofs > MaxProofs {
		return invalid("proof count %d exceeds %d", nProofs, MaxProofs)
	}
	for i := 0; i < MaxProofs; i++ {
		l := r.word()
		slot := r.next(ProofSlotSize)
		if uint64(i) >= nProofs {
			continue
		}
		if l == 0 || l > ProofSlotSize {
			return invalid("proof %d has length %d", i, l)
		}
		dec.proofs = append(dec.proofs, zk.NewProof(slot[:l]))
	}

	nInputs := r.word()
	if nInputs > MaxInputNotes {
		return invalid("input count %d exceeds %d", nInputs, MaxInputNotes)
	}
	for i := 0; i < MaxInputNotes; i++ {
		root, err := utils.ScalarFromBytes(r.next(utils.ScalarSize))
		if err != nil {
			return invalid("input %d merkle root: %v", i, err)
		}
		nfScalar, err := utils.ScalarFromBytes(r.next(utils.ScalarSize))
		if err != nil {
			return invalid("input %d nullifier: %v", i, err)
		}
		if uint64(i) >= nInputs {
			continue
		}
		if err := dec.PushInput(OpaqueInput(common.NullifierFromScalar(nfScalar), root)); err != nil {
			return invalid("input %d: %v", i, err)
		}
	}

	var err error
	if dec.crossover, err = r.optional(); err != nil {
		return fmt.Errorf("crossover: %w", err)
	}
	if dec.contractOutput, err = r.optional(); err != nil {
		return fmt.Errorf("contract output: %w", err)
	}

	nOutputs := r.word()
	if nOutputs > MaxOutputNotes {
		return invalid("output count %d exceeds %d", nOutputs, MaxOutputNotes)
	}
	for i := 0; i < MaxOutputNotes; i++ {
		n, err := note.Decode(r.next(outputSlot))
		if err != nil {
			return fmt.Errorf("output %d: %w", i, err)
		}
		if uint64(i) < nOutputs {
			dec.outputs.items = append(dec.outputs.items, outputOf(n))
		}
	}

	fee, err := note.Decode(r.next(outputSlot))
	if err != nil {
		return fmt.Errorf("fee: %w", err)
	}
	if err := dec.SetFee(outputOf(fee)); err != nil {
		return fmt.Errorf("%w: %w", common.ErrInvalidParameters, err)
	}

	*t = *dec
	return nil
}

func (t *Transaction) ReadFrom(rd io.Reader) (int64, error) {
	bz := make([]byte, TxSerializedSize)
	n, err := io.ReadFull(rd, bz)
	if err != nil {
		return int64(n), invalid("%v", err)
	}
	return int64(n), t.UnmarshalBinary(bz)
}

// Decode reads one transaction from b.
func Decode(b []byte) (*Transaction, error) {
	t := New()
	if _, err := t.ReadFrom(bytes.NewReader(b)); err != nil {
		return nil, err
	}
	return t, nil
}

// reader walks a buffer whose total length was checked up front.
type reader struct {
	buf []byte
	off int
}

func (r *reader) next(n int) []byte {
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) word() uint64 {
	return binary.LittleEndian.Uint64(r.next(wordSize))
}

func (r *reader) optional() (*Item, error) {
	flag := r.next(1)[0]
	slot := r.next(outputSlot)
	switch flag {
	case 0:
		if !bytes.Equal(slot, make([]byte, outputSlot)) {
			return nil, invalid("absent output slot is not zeroed")
		}
		return nil, nil
	case 1:
		n, err := note.Decode(slot)
		if err != nil {
			return nil, err
		}
		return outputOf(n), nil
	default:
		return nil, invalid("presence byte %d", flag)
	}
}
