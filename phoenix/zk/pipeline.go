// Package zk holds the proof pipeline of a transfer: the circuit, the
// public inputs a proof is checked against and the prover/verifier contract.
package zk

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/frontend"
	"github.com/holiman/uint256"
)

// Pipeline produces and checks transfer proofs. Implementations must be
// side-effect free with respect to their callers' state.
type Pipeline interface {
	Prove(w *Witness) (*Proof, error)
	Verify(proof *Proof, pi PublicInputs) bool
}

// Proof is an opaque proof in the pipeline's native encoding.
type Proof struct {
	raw []byte
}

func NewProof(b []byte) *Proof {
	return &Proof{raw: append([]byte(nil), b...)}
}

func (p *Proof) Bytes() []byte {
	return append([]byte(nil), p.raw...)
}

func (p *Proof) Len() int {
	return len(p.raw)
}

func (p *Proof) Clone() *Proof {
	return NewProof(p.raw)
}

// PublicInputs is the non-secret statement a proof is bound to.
type PublicInputs struct {
	MerkleRoot        fr.Element
	Nullifier         fr.Element
	Fee               fr.Element
	OutputCommitments [MaxOutputs]fr.Element
}

// Scalars flattens the inputs in circuit declaration order.
func (pi PublicInputs) Scalars() []fr.Element {
	out := []fr.Element{pi.MerkleRoot, pi.Nullifier, pi.Fee}
	return append(out, pi.OutputCommitments[:]...)
}

func (pi PublicInputs) Equal(other PublicInputs) bool {
	a, b := pi.Scalars(), other.Scalars()
	for i := range a {
		if !a[i].Equal(&b[i]) {
			return false
		}
	}
	return true
}

func (pi PublicInputs) assign(c *TransferCircuit) {
	c.MerkleRoot = scalarVar(pi.MerkleRoot)
	c.Nullifier = scalarVar(pi.Nullifier)
	c.Fee = scalarVar(pi.Fee)
	for i := range pi.OutputCommitments {
		c.OutputCommitments[i] = scalarVar(pi.OutputCommitments[i])
	}
}

// Witness is the full assignment of a transfer: the public inputs plus the
// input key halves, value and blinding factor and every output opening.
// Inactive slots carry zero values.
type Witness struct {
	Public PublicInputs

	InputSk       [2][16]byte
	InputValue    *uint256.Int
	InputBlinding fr.Element

	OutputValues    [MaxOutputs]*uint256.Int
	OutputBlindings [MaxOutputs]fr.Element
}

func (w *Witness) assignment() *TransferCircuit {
	var c TransferCircuit
	w.Public.assign(&c)
	c.InputSk0 = new(big.Int).SetBytes(w.InputSk[0][:])
	c.InputSk1 = new(big.Int).SetBytes(w.InputSk[1][:])
	c.InputValue = valueVar(w.InputValue)
	c.InputBlinding = scalarVar(w.InputBlinding)
	for i := range w.OutputValues {
		c.OutputValues[i] = valueVar(w.OutputValues[i])
		c.OutputBlindings[i] = scalarVar(w.OutputBlindings[i])
	}
	return &c
}

func publicAssignment(pi PublicInputs) *TransferCircuit {
	var c TransferCircuit
	pi.assign(&c)
	return &c
}

func scalarVar(s fr.Element) frontend.Variable {
	return s.BigInt(new(big.Int))
}

func valueVar(v *uint256.Int) frontend.Variable {
	if v == nil {
		return new(big.Int)
	}
	return v.ToBig()
}
