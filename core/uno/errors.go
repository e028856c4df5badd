package uno

import "errors"

var (
	// ErrInvalidPayload indicates malformed payload bytes.
	ErrInvalidPayload = errors.New("uno: invalid payload")

	// ErrUnsupportedAction indicates unknown action IDs.
	ErrUnsupportedAction = errors.New("uno: unsupported action")

	// ErrInvalidProof indicates a well-formed payload whose proofs do not
	// verify against the account state.
	ErrInvalidProof = errors.New("uno: invalid proof")

	// ErrEncryptionKeyNotConfigured indicates sender/receiver has no
	// registered encryption key.
	ErrEncryptionKeyNotConfigured = errors.New("uno: encryption key not configured")

	// ErrEncryptionKeyMismatch indicates an attempt to register a second,
	// different encryption key, or a first-use key not owned by the account.
	ErrEncryptionKeyMismatch = errors.New("uno: encryption key mismatch")

	// ErrNonceMismatch indicates a message nonce that differs from the
	// account's next nonce.
	ErrNonceMismatch = errors.New("uno: nonce mismatch")

	// ErrVersionOverflow indicates account version cannot be incremented.
	ErrVersionOverflow = errors.New("uno: version overflow")
)
