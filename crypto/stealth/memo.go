package stealth

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/tos-network/ctprivacy/crypto/group"
)

// MemoPrefix tags payment metadata that carries an ephemeral key.
const MemoPrefix = "STEALTH:"

// EncodeMemo renders STEALTH:<base58 ephemeral key>[:<metadata>].
func EncodeMemo(ephemeral *group.Point, metadata string) string {
	enc := group.EncodePoint(ephemeral)
	memo := MemoPrefix + base58.Encode(enc[:])
	if metadata != "" {
		memo += ":" + metadata
	}
	return memo
}

// ParseMemo extracts the ephemeral public key and free-form metadata. Memos
// without the prefix, or whose key does not decode to a valid non-identity
// 32-byte point, fail with ErrInvalidStealthAddress.
func ParseMemo(memo string) (*group.Point, string, error) {
	if !strings.HasPrefix(memo, MemoPrefix) {
		return nil, "", fmt.Errorf("%w: missing %q tag", ErrInvalidStealthAddress, MemoPrefix)
	}
	body := memo[len(MemoPrefix):]
	keyPart, metadata := body, ""
	if i := strings.IndexByte(body, ':'); i >= 0 {
		keyPart, metadata = body[:i], body[i+1:]
	}
	raw := base58.Decode(keyPart)
	if len(raw) != group.PointSize {
		return nil, "", fmt.Errorf("%w: ephemeral key decodes to %d bytes", ErrInvalidStealthAddress, len(raw))
	}
	ephemeral, err := group.DecodePublicPoint(raw)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidStealthAddress, err)
	}
	return ephemeral, metadata, nil
}
