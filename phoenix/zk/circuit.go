package zk

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash"
	std_mimc "github.com/consensys/gnark/std/hash/mimc"
)

const (
	MaxInputs  = 1
	MaxOutputs = 2

	// ValueBits is the range every value and key half is checked against.
	ValueBits = 128
)

// TransferCircuit proves that one input note is spent with the key that
// derives its nullifier and that its value equals the sum of the output
// values and the fee.
type TransferCircuit struct {
	MerkleRoot        frontend.Variable             `gnark:",public"`
	Nullifier         frontend.Variable             `gnark:",public"`
	Fee               frontend.Variable             `gnark:",public"`
	OutputCommitments [MaxOutputs]frontend.Variable `gnark:",public"`

	InputSk0      frontend.Variable
	InputSk1      frontend.Variable
	InputValue    frontend.Variable
	InputBlinding frontend.Variable

	OutputValues    [MaxOutputs]frontend.Variable
	OutputBlindings [MaxOutputs]frontend.Variable
}

func (cc *TransferCircuit) Define(api frontend.API) error {
	hasher, err := std_mimc.NewMiMC(api)
	if err != nil {
		return err
	}

	cc.checkRanges(api)
	cc.checkNullifier(api, &hasher)
	cc.checkOutputs(api, &hasher)
	return nil
}

func (cc *TransferCircuit) checkRanges(api frontend.API) {
	_ = api.ToBinary(cc.InputSk0, ValueBits)
	_ = api.ToBinary(cc.InputSk1, ValueBits)
	_ = api.ToBinary(cc.InputValue, ValueBits)
	_ = api.ToBinary(cc.Fee, ValueBits)
	for i := range cc.OutputValues {
		_ = api.ToBinary(cc.OutputValues[i], ValueBits)
	}
}

// nf = MiMC(sk0, sk1, MiMC(value, blinding))
func (cc *TransferCircuit) checkNullifier(api frontend.API, hasher hash.FieldHasher) {
	hasher.Reset()
	hasher.Write(cc.InputValue, cc.InputBlinding)
	commitment := hasher.Sum()

	hasher.Reset()
	hasher.Write(cc.InputSk0, cc.InputSk1, commitment)
	api.AssertIsEqual(cc.Nullifier, hasher.Sum())
}

func (cc *TransferCircuit) checkOutputs(api frontend.API, hasher hash.FieldHasher) {
	total := cc.Fee
	for i := range cc.OutputValues {
		hasher.Reset()
		hasher.Write(cc.OutputValues[i], cc.OutputBlindings[i])
		api.AssertIsEqual(cc.OutputCommitments[i], hasher.Sum())

		total = api.Add(total, cc.OutputValues[i])
	}
	api.AssertIsEqual(cc.InputValue, total)
}
