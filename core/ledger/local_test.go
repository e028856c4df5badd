package ledger

import (
	"context"
	"errors"
	"io"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"github.com/tos-network/ctprivacy/core/uno"
	"github.com/tos-network/ctprivacy/crypto/group"
	"github.com/tos-network/ctprivacy/crypto/stealth"
	cryptouno "github.com/tos-network/ctprivacy/crypto/uno"
	"github.com/tos-network/ctprivacy/kvdb/leveldb"
	"github.com/tos-network/ctprivacy/kvdb/memorydb"
)

var (
	chainID = big.NewInt(1666)
	alice   = common.HexToAddress("0x000000000000000000000000000000000000a11c")
	bob     = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

func newLocal(t *testing.T) *Local {
	t.Helper()
	l, err := NewLocal(memorydb.New(), chainID)
	require.NoError(t, err)
	return l
}

func shield(t *testing.T, l *Local, from common.Address, kp *group.KeyPair, amount uint64) *Receipt {
	t.Helper()
	ctx := context.Background()
	nonce, err := l.Nonce(ctx, from)
	require.NoError(t, err)
	payload, err := uno.BuildShieldPayload(uno.ShieldBuildArgs{Amount: amount, EncryptionKey: kp.Public()})
	require.NoError(t, err)
	data, err := uno.EncodeShield(payload)
	require.NoError(t, err)
	receipt, err := l.Submit(ctx, uno.Message{ChainID: chainID, From: from, Nonce: nonce, Data: data})
	require.NoError(t, err)
	return receipt
}

func TestPlainTransfer(t *testing.T) {
	ctx := context.Background()
	l := newLocal(t)
	require.NoError(t, l.Fund(alice, 1000))

	receipt, err := l.Transfer(ctx, alice, bob, 0, 250)
	require.NoError(t, err)
	require.Equal(t, uint64(1), receipt.Slot)
	require.Equal(t, KindPlain, receipt.Kind)

	bal, err := l.PublicBalance(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, uint64(750), bal)
	bal, err = l.PublicBalance(ctx, bob)
	require.NoError(t, err)
	require.Equal(t, uint64(250), bal)

	_, err = l.Transfer(ctx, alice, bob, 0, 1)
	require.ErrorIs(t, err, uno.ErrNonceMismatch)
	_, err = l.Transfer(ctx, alice, bob, 1, 751)
	require.ErrorIs(t, err, ErrInsufficientFunds)
	_, err = l.Transfer(ctx, alice, common.Address{}, 1, 1)
	require.ErrorIs(t, err, ErrInvalidRecipient)

	nonce, err := l.Nonce(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, uint64(1), nonce)
	require.Equal(t, uint64(1), l.Head())
}

func TestSelfTransferKeepsBalance(t *testing.T) {
	ctx := context.Background()
	l := newLocal(t)
	require.NoError(t, l.Fund(alice, 10))
	_, err := l.Transfer(ctx, alice, alice, 0, 10)
	require.NoError(t, err)
	bal, err := l.PublicBalance(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, uint64(10), bal)
}

func TestShieldDebitsPublicBalance(t *testing.T) {
	ctx := context.Background()
	l := newLocal(t)
	kp, err := cryptouno.GenerateKeypair()
	require.NoError(t, err)
	require.NoError(t, l.Fund(alice, 1000))

	receipt := shield(t, l, alice, kp, 600)
	require.Equal(t, uno.ActionShield, receipt.Kind)
	require.Equal(t, uint64(600), receipt.Result.PublicDebit)

	bal, err := l.PublicBalance(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, uint64(400), bal)

	st, err := l.AccountState(ctx, alice)
	require.NoError(t, err)
	ct, err := st.Ciphertext.ToCrypto()
	require.NoError(t, err)
	amount, err := cryptouno.Decrypt(ct, kp.Private())
	require.NoError(t, err)
	require.Equal(t, uint64(600), amount)
}

func TestShieldBeyondPublicBalanceLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	l := newLocal(t)
	kp, err := cryptouno.GenerateKeypair()
	require.NoError(t, err)
	require.NoError(t, l.Fund(alice, 5))

	payload, err := uno.BuildShieldPayload(uno.ShieldBuildArgs{Amount: 6, EncryptionKey: kp.Public()})
	require.NoError(t, err)
	data, err := uno.EncodeShield(payload)
	require.NoError(t, err)
	_, err = l.Submit(ctx, uno.Message{ChainID: chainID, From: alice, Data: data})
	require.ErrorIs(t, err, ErrInsufficientFunds)

	st, err := l.AccountState(ctx, alice)
	require.NoError(t, err)
	require.Empty(t, st.EncryptionKey)
	require.Zero(t, st.Version)
	require.Zero(t, l.Head())
}

func TestSubmitRejectsWrongChain(t *testing.T) {
	l := newLocal(t)
	_, err := l.Submit(context.Background(), uno.Message{ChainID: big.NewInt(1), From: alice})
	require.ErrorIs(t, err, ErrChainIDMismatch)
}

func TestCandidatesAreLazyAndRestartable(t *testing.T) {
	ctx := context.Background()
	l := newLocal(t)
	require.NoError(t, l.Fund(alice, 1000))
	kp, err := cryptouno.GenerateKeypair()
	require.NoError(t, err)

	keys, err := stealth.GenerateMetaAddress(nil)
	require.NoError(t, err)

	// slot 1: shield (no memo), slot 2: plain, slot 3: stealth transfer
	shield(t, l, alice, kp, 500)
	_, err = l.Transfer(ctx, alice, bob, 1, 1)
	require.NoError(t, err)

	pay, err := stealth.GenerateAddress(keys.Meta, "rent")
	require.NoError(t, err)
	st, err := l.AccountState(ctx, alice)
	require.NoError(t, err)
	payload, err := uno.BuildTransferPayloadProof(uno.TransferBuildArgs{
		ChainID:          chainID,
		From:             alice,
		To:               pay.Address.Account(),
		Nonce:            2,
		SenderOld:        st.Ciphertext,
		Sender:           kp,
		ReceiverPub:      pay.Address.Point(),
		Amount:           100,
		RegisterReceiver: true,
		Memo:             pay.Memo,
	})
	require.NoError(t, err)
	data, err := uno.EncodeTransfer(payload)
	require.NoError(t, err)
	receipt, err := l.Submit(ctx, uno.Message{ChainID: chainID, From: alice, Nonce: 2, Data: data})
	require.NoError(t, err)
	require.Equal(t, uint64(3), receipt.Slot)

	src, err := l.Candidates(ctx, 0, 10)
	require.NoError(t, err)
	c, err := src.NextCandidate(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(3), c.Slot)
	require.Equal(t, pay.Memo, c.Memo)
	require.Equal(t, pay.Address.Account(), c.Account)
	_, err = src.NextCandidate(ctx)
	require.True(t, errors.Is(err, io.EOF))

	matches, err := keys.Scanner(2).Scan(ctx, mustRewind(t, src))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Equal(t, "rent", matches[0].Metadata)

	empty, err := l.Candidates(ctx, 0, 2)
	require.NoError(t, err)
	_, err = empty.NextCandidate(ctx)
	require.ErrorIs(t, err, io.EOF)

	entries, err := l.Entries(1, 3)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, KindPlain, entries[1].Kind)
	require.Equal(t, uno.ActionTransfer, entries[2].Kind)
}

func mustRewind(t *testing.T, src stealth.CandidateSource) stealth.CandidateSource {
	t.Helper()
	r, ok := src.(interface{ Reset() })
	require.True(t, ok, "source is not restartable")
	r.Reset()
	return src
}

func TestLedgerReopens(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	db, err := leveldb.New(dir, 0, 0, false)
	require.NoError(t, err)
	l, err := NewLocal(db, chainID)
	require.NoError(t, err)
	require.NoError(t, l.Fund(alice, 100))
	_, err = l.Transfer(ctx, alice, bob, 0, 40)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = leveldb.New(dir, 0, 0, false)
	require.NoError(t, err)
	defer db.Close()
	l, err = NewLocal(db, chainID)
	require.NoError(t, err)
	require.Equal(t, uint64(1), l.Head())
	bal, err := l.PublicBalance(ctx, bob)
	require.NoError(t, err)
	require.Equal(t, uint64(40), bal)
	nonce, err := l.Nonce(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, uint64(1), nonce)
}
