// Package transaction implements phoenix transactions: bounded input and
// output slots, canonical ordering, hashing, proving and the wire codec.
package transaction

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sort"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/twistededwards/eddsa"
	"github.com/kysee/phoenix/phoenix/common"
	"github.com/kysee/phoenix/phoenix/note"
	"github.com/kysee/phoenix/phoenix/zk"
	"github.com/kysee/phoenix/utils"
)

const (
	MaxInputNotes  = zk.MaxInputs
	MaxOutputNotes = zk.MaxOutputs
	MaxNotes       = MaxInputNotes + MaxOutputNotes
)

// Transaction bundles up to MaxInputNotes inputs and MaxOutputNotes outputs
// with a mandatory fee output. The crossover and contract outputs are
// carried but are not part of the hash.
type Transaction struct {
	inputs  slots
	outputs slots

	fee            *Item
	crossover      *Item
	contractOutput *Item

	proofs       []*zk.Proof
	publicInputs []zk.PublicInputs
}

// New returns an empty transaction whose fee is the zero output.
func New() *Transaction {
	return &Transaction{
		inputs:  newSlots(MaxInputNotes),
		outputs: newSlots(MaxOutputNotes),
		fee:     DefaultOutput(),
	}
}

// PushInput appends an input. The item's nullifier must validate against
// its note. The transaction is unchanged on error.
func (t *Transaction) PushInput(it *Item) error {
	if t.inputs.len() >= MaxInputNotes {
		return common.ErrMaximumNotesExceeded
	}
	if err := it.validate(Input); err != nil {
		return err
	}
	if err := t.inputs.push(it.Clone()); err != nil {
		return err
	}
	t.resetPublicInputs()
	return nil
}

func (t *Transaction) PushOutput(it *Item) error {
	if t.outputs.len() >= MaxOutputNotes {
		return common.ErrMaximumNotesExceeded
	}
	if err := it.validate(Output); err != nil {
		return err
	}
	if err := t.outputs.push(it.Clone()); err != nil {
		return err
	}
	t.resetPublicInputs()
	return nil
}

// RemoveInput removes the input at i, moving the last input into its slot.
func (t *Transaction) RemoveInput(i int) (*Item, bool) {
	it, ok := t.inputs.swapRemove(i)
	if ok {
		t.resetPublicInputs()
	}
	return it, ok
}

// RemoveOutput removes the output at i, moving the last output into its slot.
func (t *Transaction) RemoveOutput(i int) (*Item, bool) {
	it, ok := t.outputs.swapRemove(i)
	if ok {
		t.resetPublicInputs()
	}
	return it, ok
}

// resetPublicInputs drops the statement of the last Prove after a change to
// the inputs, the outputs or the fee. Verify recomputes it, so proofs over
// the old statement no longer verify.
func (t *Transaction) resetPublicInputs() {
	t.publicInputs = nil
}

func (t *Transaction) Inputs() []*Item {
	return t.inputs.clones()
}

func (t *Transaction) Outputs() []*Item {
	return t.outputs.clones()
}

// Items returns the active inputs followed by the active outputs.
func (t *Transaction) Items() []*Item {
	return append(t.Inputs(), t.Outputs()...)
}

func (t *Transaction) Fee() *Item {
	return t.fee.Clone()
}

// SetFee replaces the fee. The fee must be a transparent output: its value
// is a public input of the proof.
func (t *Transaction) SetFee(it *Item) error {
	if err := validateFee(it); err != nil {
		return err
	}
	t.fee = it.Clone()
	t.resetPublicInputs()
	return nil
}

func validateFee(it *Item) error {
	if it == nil || it.utxo != Output {
		return common.ErrFeeOutput
	}
	if it.note.Variant() != note.Transparent {
		return fmt.Errorf("%w: fee note is %s", common.ErrFeeOutput, it.note.Variant())
	}
	return nil
}

// SetFeePublicKey reissues the fee note to pk with the same value. The fee
// note is not bound by the proof, so a block generator may claim it.
func (t *Transaction) SetFeePublicKey(pk *eddsa.PublicKey) error {
	value := t.fee.Value()
	if value == nil {
		return fmt.Errorf("%w: fee value is not known", common.ErrFeeOutput)
	}
	fee, err := NewTransparentOutput(pk, value)
	if err != nil {
		return err
	}
	t.fee = fee
	t.resetPublicInputs()
	return nil
}

func (t *Transaction) Crossover() (*Item, bool) {
	if t.crossover == nil {
		return nil, false
	}
	return t.crossover.Clone(), true
}

func (t *Transaction) SetCrossover(it *Item) error {
	if err := it.validate(Output); err != nil {
		return err
	}
	t.crossover = it.Clone()
	return nil
}

func (t *Transaction) ContractOutput() (*Item, bool) {
	if t.contractOutput == nil {
		return nil, false
	}
	return t.contractOutput.Clone(), true
}

func (t *Transaction) SetContractOutput(it *Item) error {
	if err := it.validate(Output); err != nil {
		return err
	}
	t.contractOutput = it.Clone()
	return nil
}

func (t *Transaction) Proofs() []*zk.Proof {
	out := make([]*zk.Proof, len(t.proofs))
	for i, p := range t.proofs {
		out[i] = p.Clone()
	}
	return out
}

func (t *Transaction) AddProof(p *zk.Proof) {
	t.proofs = append(t.proofs, p.Clone())
}

func (t *Transaction) PublicInputs() []zk.PublicInputs {
	return append([]zk.PublicInputs(nil), t.publicInputs...)
}

// SortItems orders the active inputs and the active outputs by note hash.
func (t *Transaction) SortItems() {
	t.inputs.sort()
	t.outputs.sort()
}

// Hash is the sponge hash of the fee hash followed by the sorted input and
// output note hashes. Push order does not affect it.
func (t *Transaction) Hash() fr.Element {
	scalars := make([]fr.Element, 0, 1+MaxNotes)
	scalars = append(scalars, t.fee.Hash())
	scalars = append(scalars, sortedHashes(t.inputs.items)...)
	scalars = append(scalars, sortedHashes(t.outputs.items)...)
	return utils.SpongeHash(scalars...)
}

func sortedHashes(items []*Item) []fr.Element {
	sorted := append([]*Item(nil), items...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return less(sorted[i], sorted[j])
	})
	hs := make([]fr.Element, len(sorted))
	for i, it := range sorted {
		hs[i] = it.Hash()
	}
	return hs
}

// Equal compares transactions by hash only. Transactions with colliding
// hashes are equal.
func (t *Transaction) Equal(other *Transaction) bool {
	a, b := t.Hash(), other.Hash()
	return a.Equal(&b)
}

func (t *Transaction) String() string {
	h := t.Hash()
	b := h.Bytes()
	return hex.EncodeToString(b[:])
}

// canonicalInput is the active input, or the default filler.
func (t *Transaction) canonicalInput() *Item {
	if t.inputs.len() > 0 {
		return t.inputs.items[0]
	}
	return DefaultInput()
}

// canonicalOutputs pads the active outputs with the default filler.
func (t *Transaction) canonicalOutputs() [MaxOutputNotes]*Item {
	var outs [MaxOutputNotes]*Item
	for i := range outs {
		if i < t.outputs.len() {
			outs[i] = t.outputs.items[i]
		} else {
			outs[i] = DefaultOutput()
		}
	}
	return outs
}

// computePublicInputs derives the statement of the canonical form. It needs
// no secret material.
func (t *Transaction) computePublicInputs() (zk.PublicInputs, error) {
	var pi zk.PublicInputs

	fee := t.fee.Value()
	if fee == nil {
		return pi, fmt.Errorf("%w: fee value is not public", common.ErrFeeOutput)
	}
	feeBytes := fee.Bytes32()
	pi.Fee.SetBytes(feeBytes[:])

	in := t.canonicalInput()
	pi.MerkleRoot = in.root
	pi.Nullifier = in.nullifier.Scalar()

	for i, out := range t.canonicalOutputs() {
		pi.OutputCommitments[i] = out.note.Commitment()
	}
	return pi, nil
}

var errMissingSecrets = fmt.Errorf("%w: secret material has been cleared", common.ErrProofGeneration)

func (t *Transaction) witness(pi zk.PublicInputs) (*zk.Witness, error) {
	in := t.canonicalInput()
	if !in.secret.present {
		return nil, errMissingSecrets
	}
	w := &zk.Witness{
		Public:        pi,
		InputSk:       in.secret.sk,
		InputValue:    in.secret.value.Clone(),
		InputBlinding: in.secret.blinding,
	}
	for i, out := range t.canonicalOutputs() {
		if !out.secret.present {
			return nil, errMissingSecrets
		}
		w.OutputValues[i] = out.secret.value.Clone()
		w.OutputBlindings[i] = out.secret.blinding
	}
	return w, nil
}

// Prove canonicalizes the transaction, recomputes its public inputs and
// appends a proof from p. The public inputs are replaced by the fresh set.
// Proofs and public inputs are untouched on error.
func (t *Transaction) Prove(p zk.Pipeline) error {
	if t.inputs.len() > MaxInputNotes || t.outputs.len() > MaxOutputNotes {
		return common.ErrMaximumNotesExceeded
	}
	t.SortItems()

	pi, err := t.computePublicInputs()
	if err != nil {
		return err
	}
	w, err := t.witness(pi)
	if err != nil {
		return err
	}
	proof, err := p.Prove(w)
	if err != nil {
		if errors.Is(err, common.ErrProofGeneration) {
			return err
		}
		return fmt.Errorf("%w: %v", common.ErrProofGeneration, err)
	}

	t.publicInputs = []zk.PublicInputs{pi}
	t.proofs = append(t.proofs, proof.Clone())
	return nil
}

// Verify checks every proof against the public input set at the same
// position. Public inputs are recomputed when absent, e.g. after decoding or
// after the inputs, outputs or fee changed.
func (t *Transaction) Verify(p zk.Pipeline) error {
	if len(t.publicInputs) == 0 {
		t.SortItems()
		pi, err := t.computePublicInputs()
		if err != nil {
			return err
		}
		t.publicInputs = []zk.PublicInputs{pi}
	}

	if len(t.proofs) != len(t.publicInputs) {
		return fmt.Errorf("%w: %d proofs, %d public inputs", common.ErrMismatchedProofCount, len(t.proofs), len(t.publicInputs))
	}
	for i, proof := range t.proofs {
		if !p.Verify(proof, t.publicInputs[i]) {
			return fmt.Errorf("%w: proof %d", common.ErrVerificationFailed, i)
		}
	}
	return nil
}

// ClearSensitiveInfo erases every item's secret material. The transaction
// can still be hashed and verified but no longer proved.
func (t *Transaction) ClearSensitiveInfo() {
	for _, it := range t.inputs.items {
		it.ClearSensitiveInfo()
	}
	for _, it := range t.outputs.items {
		it.ClearSensitiveInfo()
	}
	t.fee.ClearSensitiveInfo()
	if t.crossover != nil {
		t.crossover.ClearSensitiveInfo()
	}
	if t.contractOutput != nil {
		t.contractOutput.ClearSensitiveInfo()
	}
}

func (t *Transaction) Clone() *Transaction {
	c := &Transaction{
		inputs:       t.inputs.clone(),
		outputs:      t.outputs.clone(),
		fee:          t.fee.Clone(),
		proofs:       t.Proofs(),
		publicInputs: t.PublicInputs(),
	}
	if t.crossover != nil {
		c.crossover = t.crossover.Clone()
	}
	if t.contractOutput != nil {
		c.contractOutput = t.contractOutput.Clone()
	}
	return c
}
