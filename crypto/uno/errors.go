package uno

import "errors"

var (
	// ErrDecryptionOutOfRange indicates the plaintext was not found within the
	// configured discrete-log search bound.
	ErrDecryptionOutOfRange = errors.New("uno: decrypted amount exceeds search bound")

	// ErrProofVerificationFailed indicates a range, transfer or validity proof
	// that does not verify against the supplied public inputs.
	ErrProofVerificationFailed = errors.New("uno: proof verification failed")

	// ErrInsufficientBalance indicates a transfer that would drive the sender
	// balance negative. It is raised before any proof bytes are produced.
	ErrInsufficientBalance = errors.New("uno: insufficient balance")

	// ErrAmountOutOfRange indicates an amount outside the requested range
	// proof bounds.
	ErrAmountOutOfRange = errors.New("uno: amount out of range")

	// ErrInvalidBounds indicates range bounds with min greater than max.
	ErrInvalidBounds = errors.New("uno: invalid range bounds")

	// ErrBalanceMismatch indicates ciphertexts or hints that do not encrypt
	// the balances the prover claims.
	ErrBalanceMismatch = errors.New("uno: balance mismatch")

	// ErrInvalidCiphertext indicates malformed ciphertext bytes.
	ErrInvalidCiphertext = errors.New("uno: invalid ciphertext")
)
