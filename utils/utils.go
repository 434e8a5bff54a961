package utils

import (
	"errors"
	"fmt"
	"hash"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	_ "github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	_ "github.com/consensys/gnark-crypto/ecc/bn254/fr/poseidon2"
	gnark_hash "github.com/consensys/gnark-crypto/hash"
)

// ScalarSize is the serialized width of a scalar on the wire.
const ScalarSize = fr.Bytes

var (
	ErrScalarSize      = errors.New("utils: scalar must be 32 bytes")
	ErrScalarCanonical = errors.New("utils: scalar is not canonical")
)

func MiMCHasher() hash.Hash {
	return gnark_hash.MIMC_BN254.New()
}

// MiMCHash hashes the concatenation of ins in field-sized blocks.
// Full blocks are reduced into the field first; a short trailing block is
// left-padded by the hasher.
func MiMCHash(ins ...[]byte) []byte {
	hasher := MiMCHasher()

	blockSize := hasher.Size()

	hasher.Reset()
	for _, in := range ins {

		for i := 0; i < len(in); i += blockSize {
			end := i + blockSize
			if end > len(in) {
				end = len(in)
			}
			chunk := in[i:end]

			if len(chunk) == blockSize {
				// this value may be greater than the modulus; convert to fr.Element
				var elem fr.Element
				elem.SetBytes(chunk)
				// canonical form
				chunk = elem.Marshal()
			}
			if _, err := hasher.Write(chunk); err != nil {
				panic(err)
			}
		}
	}
	return hasher.Sum(nil)
}

// MiMCScalar is MiMCHash returning the digest as a field element.
func MiMCScalar(ins ...[]byte) fr.Element {
	var s fr.Element
	s.SetBytes(MiMCHash(ins...))
	return s
}

// SpongeHasher returns a Poseidon2 hasher that accepts arbitrary 32-byte
// blocks, reducing each into the field before absorbing it.
func SpongeHasher() hash.Hash {
	return &poseidon2Wrapper{
		inner: gnark_hash.POSEIDON2_BN254.New(),
	}
}

// SpongeHash absorbs a variable-length sequence of scalars and squeezes one.
func SpongeHash(scalars ...fr.Element) fr.Element {
	h := SpongeHasher()
	for i := range scalars {
		b := scalars[i].Bytes()
		if _, err := h.Write(b[:]); err != nil {
			panic(err)
		}
	}
	var out fr.Element
	out.SetBytes(h.Sum(nil))
	return out
}

// ScalarFromBytes decodes a canonical 32-byte big-endian scalar.
func ScalarFromBytes(b []byte) (fr.Element, error) {
	var s fr.Element
	if len(b) != ScalarSize {
		return s, fmt.Errorf("%w: got %d", ErrScalarSize, len(b))
	}
	if err := s.SetBytesCanonical(b); err != nil {
		return s, fmt.Errorf("%w: %v", ErrScalarCanonical, err)
	}
	return s, nil
}

// RandomScalar returns a uniformly random field element.
func RandomScalar() (fr.Element, error) {
	var s fr.Element
	if _, err := s.SetRandom(); err != nil {
		return s, err
	}
	return s, nil
}

// poseidon2Wrapper wraps Poseidon2 hasher to handle inputs that may exceed Fr modulus
type poseidon2Wrapper struct {
	inner hash.Hash
}

func (w *poseidon2Wrapper) Write(p []byte) (n int, err error) {
	const blockSize = fr.Bytes

	originalLen := len(p)
	for i := 0; i < len(p); i += blockSize {
		end := i + blockSize
		if end > len(p) {
			end = len(p)
		}
		chunk := p[i:end]

		var elem fr.Element
		elem.SetBytes(chunk)

		if _, err := w.inner.Write(elem.Marshal()); err != nil {
			return 0, err
		}
	}
	return originalLen, nil
}

func (w *poseidon2Wrapper) Sum(b []byte) []byte {
	return w.inner.Sum(b)
}

func (w *poseidon2Wrapper) Reset() {
	w.inner.Reset()
}

func (w *poseidon2Wrapper) Size() int {
	return w.inner.Size()
}

func (w *poseidon2Wrapper) BlockSize() int {
	return w.inner.BlockSize()
}
