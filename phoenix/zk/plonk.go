package zk

import (
	"bytes"
	"fmt"
	"io"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend"
	"github.com/consensys/gnark/backend/plonk"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/constraint/solver"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/scs"
	"github.com/consensys/gnark/test/unsafekzg"
	"github.com/kysee/phoenix/phoenix/common"
	"github.com/rs/zerolog"
)

// Plonk is a Pipeline backed by a PLONK proof system over BN254.
type Plonk struct {
	ccs constraint.ConstraintSystem
	pk  plonk.ProvingKey
	vk  plonk.VerifyingKey
	log zerolog.Logger
}

var _ Pipeline = (*Plonk)(nil)

type Option func(*Plonk)

func WithLogger(l zerolog.Logger) Option {
	return func(p *Plonk) {
		p.log = l.With().Str("module", "zk").Logger()
	}
}

// NewPlonk compiles the transfer circuit and runs the setup.
func NewPlonk(opts ...Option) (*Plonk, error) {
	p := &Plonk{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(p)
	}

	var cc TransferCircuit
	// the merkle root is bound as a public input only; membership is checked
	// against the ledger tree
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), scs.NewBuilder, &cc, frontend.IgnoreUnconstrainedInputs())
	if err != nil {
		return nil, fmt.Errorf("zk: compile circuit: %w", err)
	}

	// TODO: load the SRS from a trusted setup ceremony instead of unsafekzg
	srs, srsLagrange, err := unsafekzg.NewSRS(ccs)
	if err != nil {
		return nil, fmt.Errorf("zk: srs: %w", err)
	}
	if p.pk, p.vk, err = plonk.Setup(ccs, srs, srsLagrange); err != nil {
		return nil, fmt.Errorf("zk: setup: %w", err)
	}
	p.ccs = ccs

	p.log.Debug().Int("constraints", ccs.GetNbConstraints()).Msg("transfer circuit ready")
	return p, nil
}

func (p *Plonk) Prove(w *Witness) (*Proof, error) {
	wtn, err := frontend.NewWitness(w.assignment(), ecc.BN254.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrProofGeneration, err)
	}

	proof, err := plonk.Prove(
		p.ccs,
		p.pk,
		wtn,
		backend.WithSolverOptions(
			solver.WithLogger(p.log),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrProofGeneration, err)
	}

	var buf bytes.Buffer
	if _, err := proof.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrProofGeneration, err)
	}
	return &Proof{raw: buf.Bytes()}, nil
}

func (p *Plonk) Verify(proof *Proof, pi PublicInputs) bool {
	if proof == nil || proof.Len() == 0 {
		return false
	}

	native := plonk.NewProof(ecc.BN254)
	if _, err := native.ReadFrom(bytes.NewReader(proof.raw)); err != nil {
		p.log.Debug().Err(err).Msg("undecodable proof")
		return false
	}

	pubWtn, err := frontend.NewWitness(publicAssignment(pi), ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		p.log.Debug().Err(err).Msg("public witness")
		return false
	}
	if err := plonk.Verify(native, p.vk, pubWtn); err != nil {
		p.log.Debug().Err(err).Msg("proof rejected")
		return false
	}
	return true
}

// ExportSolidity writes a Solidity verifier contract for the verifying key.
func (p *Plonk) ExportSolidity(w io.Writer) error {
	return p.vk.ExportSolidity(w)
}
