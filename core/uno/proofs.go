package uno

import (
	"encoding/binary"

	cryptouno "github.com/tos-network/ctprivacy/crypto/uno"
)

const (
	// CTValidityProofSize is the size of the proof binding the receiver delta
	// to the transfer's amount commitment.
	CTValidityProofSize = cryptouno.CTValidityProofSize

	// MaxProofBundleSize bounds a proof bundle before any parsing.
	MaxProofBundleSize = 64 * 1024

	bundleLengthSize = 4
)

type transferProofBundleParts struct {
	transfer   []byte
	ctValidity []byte
}

func encodeTransferProofBundle(transfer, ctValidity []byte) []byte {
	out := make([]byte, 0, bundleLengthSize+len(transfer)+len(ctValidity))
	out = binary.BigEndian.AppendUint32(out, uint32(len(transfer)))
	out = append(out, transfer...)
	return append(out, ctValidity...)
}

func decodeTransferProofBundle(bundle []byte) (transferProofBundleParts, error) {
	if len(bundle) > MaxProofBundleSize || len(bundle) < bundleLengthSize+CTValidityProofSize {
		return transferProofBundleParts{}, ErrInvalidPayload
	}
	n := int(binary.BigEndian.Uint32(bundle[:bundleLengthSize]))
	if n == 0 || len(bundle) != bundleLengthSize+n+CTValidityProofSize {
		return transferProofBundleParts{}, ErrInvalidPayload
	}
	rest := bundle[bundleLengthSize:]
	return transferProofBundleParts{
		transfer:   append([]byte(nil), rest[:n]...),
		ctValidity: append([]byte(nil), rest[n:]...),
	}, nil
}

func decodeUnshieldProofBundle(bundle []byte) ([]byte, error) {
	if len(bundle) == 0 || len(bundle) > MaxProofBundleSize {
		return nil, ErrInvalidPayload
	}
	return append([]byte(nil), bundle...), nil
}
