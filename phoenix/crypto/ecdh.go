package crypto

import (
	crand "crypto/rand"
	"errors"
	"fmt"
	"math/big"

	tedwards "github.com/consensys/gnark-crypto/ecc/bn254/twistededwards"
	jubjub "github.com/consensys/gnark-crypto/ecc/bn254/twistededwards/eddsa"
	"golang.org/x/crypto/blake2s"
)

var (
	ErrNotOnCurve    = errors.New("crypto: public key is not on curve")
	ErrKDFCounter    = errors.New("crypto: KDF counter overflow")
	ErrSharedSecret  = errors.New("crypto: shared secret must be 32 bytes")
	ErrPayloadLength = errors.New("crypto: sealed payload has wrong length")
)

// kdfPersonalization keys the BLAKE2s PRF used by DeriveKeyStream.
var kdfPersonalization = []byte("Phoenix_NoteSeal")

func NewKey() (*jubjub.PrivateKey, error) {
	return jubjub.GenerateKey(crand.Reader)
}

// Scalar returns the private scalar of sk as big-endian bytes.
func Scalar(sk *jubjub.PrivateKey) []byte {
	return sk.Bytes()[32:64]
}

// ECDHEComputeSharedSecret computes BLAKE2s(X(privateKey * otherPublicKey)).
func ECDHEComputeSharedSecret(privateKey *jubjub.PrivateKey, otherPublicKey *jubjub.PublicKey) ([]byte, error) {
	if !otherPublicKey.A.IsOnCurve() {
		return nil, ErrNotOnCurve
	}

	var sharedSecret tedwards.PointAffine
	scalarBigInt := new(big.Int).SetBytes(Scalar(privateKey))
	sharedSecret.ScalarMultiplication(&otherPublicKey.A, scalarBigInt)

	if !sharedSecret.IsOnCurve() {
		return nil, errors.New("crypto: computed shared secret is not on curve")
	}

	hasher, err := blake2s.New256(nil)
	if err != nil {
		return nil, err
	}
	ax := sharedSecret.X.Bytes()
	hasher.Write(ax[:])
	return hasher.Sum(nil), nil
}

// DeriveKeyStream expands a 32-byte shared secret into outputLen bytes,
// PRF^expand style: BLAKE2s_k(secret || counter) for counter = 1, 2, ...
func DeriveKeyStream(sharedSecret []byte, outputLen int) ([]byte, error) {
	if len(sharedSecret) != 32 {
		return nil, ErrSharedSecret
	}

	var keyStream []byte
	var counter byte = 1
	for len(keyStream) < outputLen {
		h, err := blake2s.New256(kdfPersonalization)
		if err != nil {
			return nil, fmt.Errorf("crypto: create blake2s hash: %w", err)
		}
		h.Write(sharedSecret)
		h.Write([]byte{counter})

		keyStream = append(keyStream, h.Sum(nil)...)

		counter++
		if counter == 0 {
			return nil, ErrKDFCounter
		}
	}

	return keyStream[:outputLen], nil
}
