package uno

import (
	"encoding/binary"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

const (
	contextVersion = TranscriptContextVersion
	nativeAssetTag = TranscriptNativeAssetTag

	// ContextHeaderSize is the length of the shared transcript context header.
	ContextHeaderSize = 1 + 8 + 1 + 1 + common.AddressLength + common.AddressLength + 8
)

func appendU8(dst []byte, v byte) []byte {
	return append(dst, v)
}

func appendU64(dst []byte, v uint64) []byte {
	return binary.BigEndian.AppendUint64(dst, v)
}

func appendAddress(dst []byte, addr common.Address) []byte {
	return append(dst, addr[:]...)
}

func appendCiphertext(dst []byte, ct Ciphertext) []byte {
	dst = append(dst, ct.Ephemeral[:]...)
	dst = append(dst, ct.Masked[:]...)
	return dst
}

func chainIDToU64(chainID *big.Int) uint64 {
	if chainID == nil {
		return 0
	}
	if chainID.IsUint64() {
		return chainID.Uint64()
	}
	return ^uint64(0)
}

func buildContextHeader(chainID *big.Int, action byte, from, to common.Address, nonce uint64) []byte {
	ctx := make([]byte, 0, ContextHeaderSize+4*2*PointSize)
	ctx = appendU8(ctx, contextVersion)
	ctx = appendU64(ctx, chainIDToU64(chainID))
	ctx = appendU8(ctx, action)
	ctx = appendU8(ctx, nativeAssetTag)
	ctx = appendAddress(ctx, from)
	ctx = appendAddress(ctx, to)
	ctx = appendU64(ctx, nonce)
	return ctx
}

// BuildTranscriptContext constructs the canonical chain context that is
// committed into every proof transcript before verification.
//
// Layout (59 bytes):
//
//	[0:1]   contextVersion
//	[1:9]   chainId, big-endian uint64 (clamped to MaxUint64 on overflow)
//	[9:10]  actionTag (ActionShield / ActionTransfer / ActionUnshield)
//	[10:11] native asset tag (0)
//	[11:31] from address (sender, 20 bytes)
//	[31:51] to address (receiver; zero address if action has no receiver)
//	[51:59] sender nonce (big-endian uint64)
//
// Prover and verifier bind this context under the "chain-ctx" label before
// any proof message, so a proof cannot be replayed on another chain, action
// or nonce.
func BuildTranscriptContext(chainID *big.Int, action uint8, from, to common.Address, nonce uint64) []byte {
	return buildContextHeader(chainID, action, from, to, nonce)
}

// BuildTransferTranscriptContext extends the base context with the state
// transition of a transfer.
//
// Tail layout:
//
//	[59:123]  sender old ciphertext
//	[123:187] sender new ciphertext
//	[187:251] receiver old ciphertext
//	[251:315] receiver delta ciphertext
func BuildTransferTranscriptContext(chainID *big.Int, from, to common.Address, nonce uint64, senderOld, senderNew, receiverOld, receiverDelta Ciphertext) []byte {
	ctx := buildContextHeader(chainID, ActionTransfer, from, to, nonce)
	ctx = appendCiphertext(ctx, senderOld)
	ctx = appendCiphertext(ctx, senderNew)
	ctx = appendCiphertext(ctx, receiverOld)
	ctx = appendCiphertext(ctx, receiverDelta)
	return ctx
}

// BuildUnshieldTranscriptContext extends the base context with the state
// transition of an unshield.
//
// Tail layout:
//
//	[59:67]   amount (uint64)
//	[67:131]  sender old ciphertext
//	[131:195] sender new ciphertext
func BuildUnshieldTranscriptContext(chainID *big.Int, from, to common.Address, nonce uint64, amount uint64, senderOld, senderNew Ciphertext) []byte {
	ctx := buildContextHeader(chainID, ActionUnshield, from, to, nonce)
	ctx = appendU64(ctx, amount)
	ctx = appendCiphertext(ctx, senderOld)
	ctx = appendCiphertext(ctx, senderNew)
	return ctx
}
