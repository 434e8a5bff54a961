package note

import (
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/twistededwards/eddsa"
	"github.com/holiman/uint256"
	"github.com/kysee/phoenix/phoenix/common"
	"github.com/kysee/phoenix/phoenix/crypto"
	"github.com/kysee/phoenix/utils"
)

// Variant tags the concrete kind of a note.
type Variant byte

const (
	// Transparent notes carry their value and blinding factor in the clear.
	Transparent Variant = iota
	// Obfuscated notes carry their value and blinding factor sealed to the owner.
	Obfuscated
)

func (v Variant) String() string {
	switch v {
	case Transparent:
		return "transparent"
	case Obfuscated:
		return "obfuscated"
	default:
		return fmt.Sprintf("variant(%d)", byte(v))
	}
}

const (
	// ValueBits bounds note values so that sums stay inside the range the
	// transfer circuit checks.
	ValueBits = 128

	pubKeySize = 32
	plainSize  = 2 * utils.ScalarSize
	SealedSize = plainSize + crypto.SealOverhead
	secretHalf = 16
)

var (
	ErrValueOverflow = fmt.Errorf("%w: note value exceeds %d bits", common.ErrInvalidParameters, ValueBits)
	ErrNotOwner      = errors.New("note: key does not open this note")
)

// SecretKey is the private scalar of a key split into two 128-bit halves,
// which is the form the transfer circuit consumes.
type SecretKey [2][secretHalf]byte

// SplitSecret returns the 128-bit halves of sk's private scalar.
func SplitSecret(sk *eddsa.PrivateKey) SecretKey {
	var k SecretKey
	s := crypto.Scalar(sk)
	copy(k[0][:], s[:secretHalf])
	copy(k[1][:], s[secretHalf:])
	return k
}

type Note struct {
	variant    Variant
	idx        common.Idx
	pk         eddsa.PublicKey
	commitment fr.Element

	// transparent only
	value    *uint256.Int
	blinding fr.Element

	// obfuscated only
	sealed [SealedSize]byte

	nullifier *common.Nullifier
}

// New builds a note of the given variant owned by pk.
func New(variant Variant, pk *eddsa.PublicKey, value *uint256.Int, blinding fr.Element) (*Note, error) {
	if value == nil {
		value = new(uint256.Int)
	}
	if value.BitLen() > ValueBits {
		return nil, ErrValueOverflow
	}

	n := &Note{
		variant:    variant,
		pk:         *pk,
		commitment: Commit(value, blinding),
	}

	switch variant {
	case Transparent:
		n.value = value.Clone()
		n.blinding = blinding
	case Obfuscated:
		payload, err := crypto.Seal(pk, plaintext(value, blinding))
		if err != nil {
			return nil, err
		}
		copy(n.sealed[:], payload)
	default:
		return nil, fmt.Errorf("%w: unknown note variant %d", common.ErrInvalidParameters, variant)
	}
	return n, nil
}

// NewTransparent creates a transparent note with a fresh blinding factor.
func NewTransparent(pk *eddsa.PublicKey, value *uint256.Int) (*Note, fr.Element, error) {
	return newRandom(Transparent, pk, value)
}

// NewObfuscated creates an obfuscated note with a fresh blinding factor.
func NewObfuscated(pk *eddsa.PublicKey, value *uint256.Int) (*Note, fr.Element, error) {
	return newRandom(Obfuscated, pk, value)
}

func newRandom(variant Variant, pk *eddsa.PublicKey, value *uint256.Int) (*Note, fr.Element, error) {
	blinding, err := utils.RandomScalar()
	if err != nil {
		return nil, blinding, err
	}
	n, err := New(variant, pk, value, blinding)
	return n, blinding, err
}

// Zero returns the canonical zero-value transparent note. It is owned by the
// identity point and uses a zero blinding factor.
func Zero() *Note {
	var pk eddsa.PublicKey
	pk.A.X.SetZero()
	pk.A.Y.SetOne()
	n, _ := New(Transparent, &pk, new(uint256.Int), fr.Element{})
	return n
}

// Opaque returns an obfuscated note that only carries the nullifier it was
// spent with. Decoded transaction inputs take this form.
func Opaque(nullifier common.Nullifier) *Note {
	n := Zero()
	n.variant = Obfuscated
	n.value = nil
	n.blinding.SetZero()
	n.nullifier = &nullifier
	return n
}

// Commit returns MiMC(value, blinding).
func Commit(value *uint256.Int, blinding fr.Element) fr.Element {
	v := value.Bytes32()
	b := blinding.Bytes()
	return utils.MiMCScalar(v[:], b[:])
}

func plaintext(value *uint256.Int, blinding fr.Element) []byte {
	v := value.Bytes32()
	b := blinding.Bytes()
	return append(v[:], b[:]...)
}

func (n *Note) Variant() Variant {
	return n.variant
}

func (n *Note) Idx() common.Idx {
	return n.idx
}

func (n *Note) SetIdx(idx common.Idx) {
	n.idx = idx
}

func (n *Note) PublicKey() *eddsa.PublicKey {
	pk := n.pk
	return &pk
}

func (n *Note) Commitment() fr.Element {
	return n.commitment
}

// Value returns the public value of a transparent note, or nil.
func (n *Note) Value() *uint256.Int {
	if n.variant != Transparent || n.value == nil {
		return nil
	}
	return n.value.Clone()
}

// Blinding returns the public blinding factor of a transparent note.
func (n *Note) Blinding() (fr.Element, bool) {
	return n.blinding, n.variant == Transparent
}

func (n *Note) Sealed() []byte {
	return append([]byte(nil), n.sealed[:]...)
}

// IsOwnedBy reports whether pk is the owner key of the note.
func (n *Note) IsOwnedBy(pk *eddsa.PublicKey) bool {
	return n.pk.A.Equal(&pk.A)
}

// Decrypt returns the value and blinding factor of the note, opening the
// sealed payload with sk when the note is obfuscated.
func (n *Note) Decrypt(sk *eddsa.PrivateKey) (*uint256.Int, fr.Element, error) {
	if n.variant == Transparent {
		return n.Value(), n.blinding, nil
	}

	var blinding fr.Element
	pt, err := crypto.Open(sk, n.sealed[:])
	if err != nil {
		return nil, blinding, fmt.Errorf("%w: %v", ErrNotOwner, err)
	}
	if len(pt) != plainSize {
		return nil, blinding, ErrNotOwner
	}
	value := new(uint256.Int).SetBytes(pt[:utils.ScalarSize])
	if blinding, err = utils.ScalarFromBytes(pt[utils.ScalarSize:]); err != nil {
		return nil, blinding, fmt.Errorf("%w: %v", ErrNotOwner, err)
	}
	if c := Commit(value, blinding); !c.Equal(&n.commitment) {
		return nil, blinding, fmt.Errorf("%w: commitment mismatch", ErrNotOwner)
	}
	return value, blinding, nil
}

// Hash is MiMC over every public field of the note. The ledger index is
// not part of the hash.
func (n *Note) Hash() fr.Element {
	var value [utils.ScalarSize]byte
	if n.value != nil {
		value = n.value.Bytes32()
	}
	pk := n.pk.Bytes()
	c := n.commitment.Bytes()
	b := n.blinding.Bytes()
	return utils.MiMCScalar([]byte{byte(n.variant)}, pk, c[:], value[:], b[:], n.sealed[:])
}

// Nullifier derives the nullifier of the note for the given key halves:
// MiMC(sk0, sk1, commitment).
func (n *Note) Nullifier(k SecretKey) common.Nullifier {
	c := n.commitment.Bytes()
	return common.NullifierFromScalar(utils.MiMCScalar(k[0][:], k[1][:], c[:]))
}

// Spend binds nullifier to the note.
func (n *Note) Spend(nullifier common.Nullifier) {
	n.nullifier = &nullifier
}

// BoundNullifier returns the nullifier bound by Spend, if any.
func (n *Note) BoundNullifier() (common.Nullifier, bool) {
	if n.nullifier == nil {
		return common.Nullifier{}, false
	}
	return *n.nullifier, true
}

// ValidateNullifier checks that nullifier is the one the note was spent with.
func (n *Note) ValidateNullifier(nullifier common.Nullifier) error {
	if nullifier.IsZero() {
		return fmt.Errorf("%w: zero nullifier", common.ErrInvalidNullifier)
	}
	if n.nullifier == nil {
		return fmt.Errorf("%w: note is not spent", common.ErrInvalidNullifier)
	}
	if *n.nullifier != nullifier {
		return common.ErrInvalidNullifier
	}
	return nil
}

func (n *Note) Clone() *Note {
	c := *n
	if n.value != nil {
		c.value = n.value.Clone()
	}
	if n.nullifier != nil {
		nf := *n.nullifier
		c.nullifier = &nf
	}
	return &c
}
