package transaction

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/holiman/uint256"
	"github.com/kysee/phoenix/phoenix/common"
	"github.com/kysee/phoenix/phoenix/crypto"
	"github.com/kysee/phoenix/phoenix/note"
	"github.com/kysee/phoenix/phoenix/zk"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestSerializedSize(t *testing.T) {
	require.Equal(t, 8+(8+2048)+8+64+2*(1+note.Size)+8+2*note.Size+note.Size, TxSerializedSize)

	for _, tx := range []*Transaction{New(), balanced(t)} {
		bz, err := tx.MarshalBinary()
		require.NoError(t, err)
		require.Len(t, bz, TxSerializedSize)
	}

	tx := balanced(t)
	require.NoError(t, tx.SetCrossover(transparentOutput(t, 1)))
	require.NoError(t, tx.SetContractOutput(transparentOutput(t, 1)))
	require.NoError(t, tx.Prove(&hashPipeline{}))
	bz, err := tx.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, bz, TxSerializedSize)
}

func requireSameOutputs(t require.TestingT, want, got []*Item) {
	require.Len(t, got, len(want))
	for i := range want {
		hw, hg := want[i].Hash(), got[i].Hash()
		require.True(t, hw.Equal(&hg), "output %d", i)
	}
}

func TestCodecRoundTrip(t *testing.T) {
	p := &hashPipeline{}
	tx := balanced(t)
	require.NoError(t, tx.SetCrossover(transparentOutput(t, 4)))
	require.NoError(t, tx.Prove(p))

	var buf bytes.Buffer
	n, err := tx.WriteTo(&buf)
	require.NoError(t, err)
	require.Equal(t, int64(TxSerializedSize), n)

	// encoding cleared the secrets of the source
	for _, it := range tx.Items() {
		require.False(t, it.HasSecrets())
	}

	dec, err := Decode(buf.Bytes())
	require.NoError(t, err)

	requireSameOutputs(t, tx.Outputs(), dec.Outputs())
	hf, hd := tx.Fee().Hash(), dec.Fee().Hash()
	require.True(t, hf.Equal(&hd))
	require.Equal(t, tx.Proofs()[0].Bytes(), dec.Proofs()[0].Bytes())

	require.Len(t, dec.Inputs(), 1)
	in, decIn := tx.Inputs()[0], dec.Inputs()[0]
	require.Equal(t, in.Nullifier(), decIn.Nullifier())
	r0, r1 := in.MerkleRoot(), decIn.MerkleRoot()
	require.True(t, r0.Equal(&r1))
	require.Equal(t, note.Obfuscated, decIn.Note().Variant())

	_, ok := dec.Crossover()
	require.True(t, ok)
	_, ok = dec.ContractOutput()
	require.False(t, ok)

	// public inputs are recomputed from the wire form
	require.NoError(t, dec.Verify(p))
	require.True(t, tx.PublicInputs()[0].Equal(dec.PublicInputs()[0]))
}

func TestCodecRoundTripRandom(t *testing.T) {
	p := &hashPipeline{}
	rapid.Check(t, func(rt *rapid.T) {
		seed := rapid.SliceOfN(rapid.Byte(), 24, 24).Draw(rt, "seed")
		tx, err := NewRandom(bytes.NewReader(seed))
		require.NoError(rt, err)
		require.NoError(rt, tx.Prove(p))

		bz, err := tx.MarshalBinary()
		require.NoError(rt, err)
		dec, err := Decode(bz)
		require.NoError(rt, err)

		requireSameOutputs(rt, tx.Outputs(), dec.Outputs())
		require.Len(rt, dec.Inputs(), len(tx.Inputs()))
		require.NoError(rt, dec.Verify(p))

		again, err := dec.MarshalBinary()
		require.NoError(rt, err)
		require.Equal(rt, bz, again)
	})
}

func TestOversizedProofPlaceholder(t *testing.T) {
	tx := New()
	tx.AddProof(zk.NewProof(make([]byte, ProofSlotSize+1)))

	bz, err := tx.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, bz, TxSerializedSize)
	require.Equal(t, uint64(1), binary.LittleEndian.Uint64(bz[0:8]))
	require.Equal(t, uint64(0), binary.LittleEndian.Uint64(bz[8:16]))

	_, err = Decode(bz)
	require.ErrorIs(t, err, common.ErrInvalidParameters)
}

func TestDecodeMalformed(t *testing.T) {
	good, err := balanced(t).MarshalBinary()
	require.NoError(t, err)

	corrupt := func(off int, b byte) []byte {
		c := append([]byte(nil), good...)
		c[off] = b
		return c
	}
	inputsOff := 8 + MaxProofs*proofSlot
	crossoverOff := inputsOff + 8 + MaxInputNotes*inputSlot

	cases := map[string][]byte{
		"short":            good[:TxSerializedSize-1],
		"proof count":      corrupt(0, 2),
		"input count":      corrupt(inputsOff, 2),
		"nullifier":        corrupt(inputsOff+8+32, 0xff),
		"presence byte":    corrupt(crossoverOff, 2),
		"absent slot":      corrupt(crossoverOff+1+40, 1),
		"output count":     corrupt(crossoverOff+2*optionalOutput, 3),
		"fee note variant": corrupt(TxSerializedSize-outputSlot, 9),
	}
	for name, bz := range cases {
		_, err := Decode(bz)
		require.ErrorIs(t, err, common.ErrInvalidParameters, name)
	}

	// the untouched encoding still decodes
	dec, err := Decode(good)
	require.NoError(t, err)
	require.Empty(t, dec.Proofs())
}

func TestDecodeRejectsObfuscatedFee(t *testing.T) {
	good, err := balanced(t).MarshalBinary()
	require.NoError(t, err)

	sk, err := crypto.NewKey()
	require.NoError(t, err)
	hidden, _, err := note.NewObfuscated(&sk.PublicKey, uint256.NewInt(10))
	require.NoError(t, err)
	feeBytes, err := hidden.MarshalBinary()
	require.NoError(t, err)

	bz := append(append([]byte(nil), good[:TxSerializedSize-outputSlot]...), feeBytes...)
	require.Len(t, bz, TxSerializedSize)

	_, err = Decode(bz)
	require.ErrorIs(t, err, common.ErrFeeOutput)
	require.ErrorIs(t, err, common.ErrInvalidParameters)
}

func TestMarshalRejectsExtraProofs(t *testing.T) {
	tx := New()
	tx.AddProof(zk.NewProof([]byte{1}))
	tx.AddProof(zk.NewProof([]byte{2}))
	_, err := tx.MarshalBinary()
	require.ErrorIs(t, err, common.ErrInvalidParameters)
}
