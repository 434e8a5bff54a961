package transaction

import (
	"bytes"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/twistededwards/eddsa"
	"github.com/holiman/uint256"
	"github.com/kysee/phoenix/phoenix/common"
	"github.com/kysee/phoenix/phoenix/merkle"
	"github.com/kysee/phoenix/phoenix/note"
)

// UtxoType tells whether an item spends a note or creates one.
type UtxoType byte

const (
	Input UtxoType = iota
	Output
)

func (u UtxoType) String() string {
	if u == Input {
		return "input"
	}
	return "output"
}

// secret is the material a proof is built from. It is erased by
// ClearSensitiveInfo and never serialized.
type secret struct {
	present  bool
	sk       note.SecretKey
	value    *uint256.Int
	blinding fr.Element
}

// Item wraps one note with its spend or creation tag. Nullifier and merkle
// data are only meaningful for inputs.
type Item struct {
	utxo      UtxoType
	note      *note.Note
	nullifier common.Nullifier
	opening   *merkle.Opening
	root      fr.Element
	secret    secret
}

// NewInput spends n with sk. The value and blinding factor are read from the
// note, decrypting it when obfuscated, and the derived nullifier is bound to
// the item's copy of the note. A nil opening leaves the merkle root zero.
func NewInput(n *note.Note, opening *merkle.Opening, sk *eddsa.PrivateKey) (*Item, error) {
	if !n.IsOwnedBy(&sk.PublicKey) {
		return nil, note.ErrNotOwner
	}
	value, blinding, err := n.Decrypt(sk)
	if err != nil {
		return nil, err
	}
	return newInput(n, opening, note.SplitSecret(sk), value, blinding)
}

func newInput(n *note.Note, opening *merkle.Opening, k note.SecretKey, value *uint256.Int, blinding fr.Element) (*Item, error) {
	it := &Item{
		utxo: Input,
		note: n.Clone(),
		secret: secret{
			present:  true,
			sk:       k,
			value:    value.Clone(),
			blinding: blinding,
		},
	}
	if opening != nil {
		leaf, err := opening.Leaf()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrInvalidParameters, err)
		}
		if c := n.Commitment(); !leaf.Equal(&c) {
			return nil, fmt.Errorf("%w: opening does not prove the note commitment", common.ErrInvalidParameters)
		}
		it.opening = opening.Clone()
		it.root = opening.RootScalar()
	}
	it.nullifier = n.Nullifier(k)
	it.note.Spend(it.nullifier)
	return it, nil
}

// OpaqueInput is an input known only by its nullifier and merkle root.
func OpaqueInput(nullifier common.Nullifier, root fr.Element) *Item {
	return &Item{
		utxo:      Input,
		note:      note.Opaque(nullifier),
		nullifier: nullifier,
		root:      root,
	}
}

// NewOutput creates an output item for n, keeping the opening of its
// commitment for proving.
func NewOutput(n *note.Note, value *uint256.Int, blinding fr.Element) (*Item, error) {
	if value == nil {
		return nil, fmt.Errorf("%w: missing output value", common.ErrInvalidParameters)
	}
	if c, nc := note.Commit(value, blinding), n.Commitment(); !c.Equal(&nc) {
		return nil, fmt.Errorf("%w: value and blinding do not open the note commitment", common.ErrInvalidParameters)
	}
	return &Item{
		utxo: Output,
		note: n.Clone(),
		secret: secret{
			present:  true,
			value:    value.Clone(),
			blinding: blinding,
		},
	}, nil
}

// outputOf wraps a note without its opening.
func outputOf(n *note.Note) *Item {
	return &Item{utxo: Output, note: n}
}

func NewTransparentOutput(pk *eddsa.PublicKey, value *uint256.Int) (*Item, error) {
	n, blinding, err := note.NewTransparent(pk, value)
	if err != nil {
		return nil, err
	}
	return NewOutput(n, value, blinding)
}

func NewObfuscatedOutput(pk *eddsa.PublicKey, value *uint256.Int) (*Item, error) {
	n, blinding, err := note.NewObfuscated(pk, value)
	if err != nil {
		return nil, err
	}
	return NewOutput(n, value, blinding)
}

// DefaultInput returns the canonical filler for an unused input slot: the
// zero note spent with the zero key.
func DefaultInput() *Item {
	it, err := newInput(note.Zero(), nil, note.SecretKey{}, new(uint256.Int), fr.Element{})
	if err != nil {
		panic(err)
	}
	return it
}

// DefaultOutput returns the canonical filler for an unused output slot and
// the initial fee of a transaction.
func DefaultOutput() *Item {
	it, err := NewOutput(note.Zero(), new(uint256.Int), fr.Element{})
	if err != nil {
		panic(err)
	}
	return it
}

func (it *Item) Utxo() UtxoType {
	return it.utxo
}

func (it *Item) Note() *note.Note {
	return it.note.Clone()
}

func (it *Item) Nullifier() common.Nullifier {
	return it.nullifier
}

func (it *Item) MerkleRoot() fr.Element {
	return it.root
}

func (it *Item) Opening() *merkle.Opening {
	if it.opening == nil {
		return nil
	}
	return it.opening.Clone()
}

// Value is the secret value when known, else the public value of a
// transparent note, else nil.
func (it *Item) Value() *uint256.Int {
	if it.secret.present {
		return it.secret.value.Clone()
	}
	return it.note.Value()
}

// Blinding is the secret blinding factor when known, else the public one of
// a transparent note.
func (it *Item) Blinding() (fr.Element, bool) {
	if it.secret.present {
		return it.secret.blinding, true
	}
	return it.note.Blinding()
}

func (it *Item) SecretKey() (note.SecretKey, bool) {
	return it.secret.sk, it.secret.present && it.utxo == Input
}

func (it *Item) HasSecrets() bool {
	return it.secret.present
}

func (it *Item) ClearSensitiveInfo() {
	it.secret = secret{}
}

func (it *Item) Hash() fr.Element {
	return it.note.Hash()
}

func (it *Item) Clone() *Item {
	c := *it
	c.note = it.note.Clone()
	if it.opening != nil {
		c.opening = it.opening.Clone()
	}
	if it.secret.value != nil {
		c.secret.value = it.secret.value.Clone()
	}
	return &c
}

func (it *Item) validate(want UtxoType) error {
	if it == nil {
		return fmt.Errorf("%w: nil item", common.ErrInvalidParameters)
	}
	if it.utxo != want {
		return fmt.Errorf("%w: expected %s item, got %s", common.ErrInvalidParameters, want, it.utxo)
	}
	if want == Input {
		return it.note.ValidateNullifier(it.nullifier)
	}
	return nil
}

// less orders items by the bytes of their note hashes.
func less(a, b *Item) bool {
	ha, hb := a.Hash(), b.Hash()
	ba, bb := ha.Bytes(), hb.Bytes()
	return bytes.Compare(ba[:], bb[:]) < 0
}
