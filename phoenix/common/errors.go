package common

import (
	"errors"
	"fmt"
)

var (
	// ErrMaximumNotesExceeded is returned when a push would exceed a fixed slot capacity.
	ErrMaximumNotesExceeded = errors.New("phoenix: maximum number of notes exceeded")

	// ErrFeeOutput is returned when the mandatory fee output is missing or did not produce an index.
	ErrFeeOutput = errors.New("phoenix: fee output is mandatory")

	// ErrInvalidParameters indicates malformed input, a failed decode or a failed validation.
	ErrInvalidParameters = errors.New("phoenix: invalid parameters")

	// ErrMismatchedProofCount is returned when proofs and public inputs are not index-aligned.
	ErrMismatchedProofCount = fmt.Errorf("%w: proof count does not match public inputs", ErrInvalidParameters)

	// ErrInvalidNullifier is returned when a nullifier does not validate against its note.
	ErrInvalidNullifier = fmt.Errorf("%w: nullifier does not match note", ErrInvalidParameters)

	// ErrVerificationFailed is returned when a proof does not verify.
	ErrVerificationFailed = errors.New("phoenix: proof verification failed")

	// ErrProofGeneration is returned when the proof pipeline cannot produce a proof.
	ErrProofGeneration = errors.New("phoenix: proof generation failed")

	// ErrNotFound is returned when a lookup by index finds nothing.
	ErrNotFound = errors.New("phoenix: not found")

	// ErrLockContention is returned when a store region is held by another caller.
	// It is recoverable by retrying.
	ErrLockContention = errors.New("phoenix: store region is locked")
)
