package crypto

import (
	"crypto/cipher"
	"errors"
	"fmt"

	jubjub "github.com/consensys/gnark-crypto/ecc/bn254/twistededwards/eddsa"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	// EphemeralKeySize is the compressed size of the ephemeral public key.
	EphemeralKeySize = 32

	// SealOverhead is the number of bytes Seal adds to a plaintext.
	SealOverhead = EphemeralKeySize + chacha20poly1305.Overhead
)

// ErrOpen is returned when a payload was not sealed to the key or was altered.
var ErrOpen = errors.New("crypto: cannot open sealed payload")

// Seal encrypts plaintext to receiver: epk || ChaCha20-Poly1305(plaintext).
// The key and nonce are derived from an ephemeral ECDH exchange and the
// ephemeral key is authenticated as additional data.
func Seal(receiver *jubjub.PublicKey, plaintext []byte) ([]byte, error) {
	eph, err := NewKey()
	if err != nil {
		return nil, err
	}
	aead, nonce, err := sealCipher(eph, receiver)
	if err != nil {
		return nil, err
	}

	epk := eph.PublicKey.Bytes()
	return aead.Seal(epk, nonce, plaintext, epk), nil
}

// Open decrypts a payload produced by Seal with the receiver's key.
func Open(sk *jubjub.PrivateKey, payload []byte) ([]byte, error) {
	if len(payload) < SealOverhead {
		return nil, fmt.Errorf("%w: got %d", ErrPayloadLength, len(payload))
	}
	epkBytes := payload[:EphemeralKeySize]
	var epk jubjub.PublicKey
	if _, err := epk.SetBytes(epkBytes); err != nil {
		return nil, fmt.Errorf("crypto: ephemeral key: %w", err)
	}
	aead, nonce, err := sealCipher(sk, &epk)
	if err != nil {
		return nil, err
	}

	plaintext, err := aead.Open(nil, nonce, payload[EphemeralKeySize:], epkBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpen, err)
	}
	return plaintext, nil
}

// sealCipher derives the AEAD and nonce shared by priv and pub.
func sealCipher(priv *jubjub.PrivateKey, pub *jubjub.PublicKey) (cipher.AEAD, []byte, error) {
	secret, err := ECDHEComputeSharedSecret(priv, pub)
	if err != nil {
		return nil, nil, err
	}
	ks, err := DeriveKeyStream(secret, chacha20poly1305.KeySize+chacha20poly1305.NonceSize)
	if err != nil {
		return nil, nil, err
	}
	aead, err := chacha20poly1305.New(ks[:chacha20poly1305.KeySize])
	if err != nil {
		return nil, nil, fmt.Errorf("crypto: chacha20poly1305: %w", err)
	}
	return aead, ks[chacha20poly1305.KeySize:], nil
}
