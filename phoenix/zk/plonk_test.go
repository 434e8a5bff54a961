package zk

import (
	"sync"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/holiman/uint256"
	"github.com/kysee/phoenix/utils"
	"github.com/stretchr/testify/require"
)

var (
	setupOnce sync.Once
	pipeline  *Plonk
	setupErr  error
)

func testPlonk(t *testing.T) *Plonk {
	t.Helper()
	setupOnce.Do(func() {
		pipeline, setupErr = NewPlonk()
	})
	require.NoError(t, setupErr)
	return pipeline
}

func commit(v uint64, b fr.Element) fr.Element {
	val := uint256.NewInt(v).Bytes32()
	bb := b.Bytes()
	return utils.MiMCScalar(val[:], bb[:])
}

// balancedWitness spends 100 into 60 + 30 with a fee of 10.
func balancedWitness(t *testing.T) *Witness {
	var sk [2][16]byte
	sk[0][15], sk[1][15] = 3, 4

	inBlinding := fr.NewElement(11)
	com := commit(100, inBlinding)
	c := com.Bytes()
	nf := utils.MiMCScalar(sk[0][:], sk[1][:], c[:])

	w := &Witness{
		InputSk:         sk,
		InputValue:      uint256.NewInt(100),
		InputBlinding:   inBlinding,
		OutputValues:    [MaxOutputs]*uint256.Int{uint256.NewInt(60), uint256.NewInt(30)},
		OutputBlindings: [MaxOutputs]fr.Element{fr.NewElement(21), fr.NewElement(22)},
	}
	w.Public = PublicInputs{
		MerkleRoot: fr.NewElement(1234),
		Nullifier:  nf,
		Fee:        fr.NewElement(10),
		OutputCommitments: [MaxOutputs]fr.Element{
			commit(60, w.OutputBlindings[0]),
			commit(30, w.OutputBlindings[1]),
		},
	}
	return w
}

func TestPlonkProveVerify(t *testing.T) {
	p := testPlonk(t)
	w := balancedWitness(t)

	proof, err := p.Prove(w)
	require.NoError(t, err)
	require.NotZero(t, proof.Len())
	require.True(t, p.Verify(proof, w.Public))

	// cloned proofs verify independently
	require.True(t, p.Verify(proof.Clone(), w.Public))

	tampered := w.Public
	tampered.Fee = fr.NewElement(11)
	require.False(t, p.Verify(proof, tampered))

	tampered = w.Public
	tampered.MerkleRoot = fr.NewElement(1)
	require.False(t, p.Verify(proof, tampered))
}

func TestPlonkRejectsUnbalanced(t *testing.T) {
	p := testPlonk(t)
	w := balancedWitness(t)
	w.OutputValues[1] = uint256.NewInt(31)
	w.Public.OutputCommitments[1] = commit(31, w.OutputBlindings[1])

	_, err := p.Prove(w)
	require.Error(t, err)
}

func TestPlonkRejectsGarbageProof(t *testing.T) {
	p := testPlonk(t)
	w := balancedWitness(t)
	require.False(t, p.Verify(NewProof([]byte{1, 2, 3}), w.Public))
	require.False(t, p.Verify(NewProof(nil), w.Public))
}

func TestPublicInputsEqual(t *testing.T) {
	a := balancedWitness(t).Public
	b := a
	require.True(t, a.Equal(b))
	b.OutputCommitments[0] = fr.NewElement(0)
	require.False(t, a.Equal(b))
	require.Len(t, a.Scalars(), 3+MaxOutputs)
}

func TestProofClone(t *testing.T) {
	p := NewProof([]byte{1, 2, 3})
	c := p.Clone()
	c.raw[0] = 9
	require.Equal(t, []byte{1, 2, 3}, p.Bytes())
}
