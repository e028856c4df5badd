package session

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"github.com/tos-network/ctprivacy/core/compliance"
	"github.com/tos-network/ctprivacy/core/ledger"
	"github.com/tos-network/ctprivacy/core/uno"
	"github.com/tos-network/ctprivacy/crypto/group"
	"github.com/tos-network/ctprivacy/crypto/stealth"
	cryptouno "github.com/tos-network/ctprivacy/crypto/uno"
	"github.com/tos-network/ctprivacy/crypto/viewkey"
)

// Confidential keeps the account balance encrypted under the session's
// encryption key pair. Proofs are built locally; the ledger only sees
// ciphertexts and proofs.
type Confidential struct {
	config  Config
	ledger  Ledger
	account common.Address
	keys    *group.KeyPair
	log     log.Logger
}

func newConfidential(config Config, l Ledger, account common.Address, kp *group.KeyPair, logger log.Logger) *Confidential {
	return &Confidential{config: config, ledger: l, account: account, keys: kp, log: logger}
}

// StealthReceipt is the sender's record of a stealth payment.
type StealthReceipt struct {
	*ledger.Receipt
	Payment *stealth.Payment
}

func (c *Confidential) Mode() Mode { return ModeConfidential }

// EncryptionKey returns the session's public encryption key.
func (c *Confidential) EncryptionKey() *group.Point { return c.keys.Public() }

// state loads the account state and checks any registered key is ours.
func (c *Confidential) state(ctx context.Context) (uno.AccountState, bool, error) {
	st, err := c.ledger.AccountState(ctx, c.account)
	if err != nil {
		return uno.AccountState{}, false, err
	}
	if len(st.EncryptionKey) == 0 {
		return st, false, nil
	}
	ours := c.keys.PublicBytes()
	if !bytes.Equal(st.EncryptionKey, ours[:]) {
		return uno.AccountState{}, false, uno.ErrEncryptionKeyMismatch
	}
	return st, true, nil
}

func (c *Confidential) decrypt(st uno.AccountState) (uint64, error) {
	ct, err := st.Ciphertext.ToCrypto()
	if err != nil {
		return 0, err
	}
	return cryptouno.DecryptWithBound(ct, c.keys.Private(), c.config.DecryptBound)
}

// Balance decrypts the confidential balance.
func (c *Confidential) Balance(ctx context.Context) (uint64, error) {
	st, _, err := c.state(ctx)
	if err != nil {
		return 0, err
	}
	return c.decrypt(st)
}

func (c *Confidential) submit(ctx context.Context, data []byte) (*ledger.Receipt, error) {
	nonce, err := c.ledger.Nonce(ctx, c.account)
	if err != nil {
		return nil, err
	}
	return c.ledger.Submit(ctx, uno.Message{ChainID: c.ledger.ChainID(), From: c.account, Nonce: nonce, Data: data})
}

// Shield moves amount from the public balance into the confidential one,
// registering the encryption key on first use.
func (c *Confidential) Shield(ctx context.Context, amount uint64) (*ledger.Receipt, error) {
	_, registered, err := c.state(ctx)
	if err != nil {
		return nil, err
	}
	args := uno.ShieldBuildArgs{Amount: amount}
	if !registered {
		args.EncryptionKey = c.keys.Public()
	}
	payload, err := uno.BuildShieldPayload(args)
	if err != nil {
		return nil, err
	}
	data, err := uno.EncodeShield(payload)
	if err != nil {
		return nil, err
	}
	receipt, err := c.submit(ctx, data)
	if err != nil {
		return nil, err
	}
	c.log.Info("Shielded", "slot", receipt.Slot, "amount", amount)
	return receipt, nil
}

// Register publishes the encryption key without moving funds. Registering an
// already registered key is a no-op.
func (c *Confidential) Register(ctx context.Context) error {
	_, registered, err := c.state(ctx)
	if err != nil || registered {
		return err
	}
	payload, err := uno.BuildShieldPayload(uno.ShieldBuildArgs{EncryptionKey: c.keys.Public()})
	if err != nil {
		return err
	}
	data, err := uno.EncodeShield(payload)
	if err != nil {
		return err
	}
	receipt, err := c.submit(ctx, data)
	if err != nil {
		return err
	}
	c.log.Info("Registered encryption key", "slot", receipt.Slot)
	return nil
}

// Unshield moves amount from the confidential balance to the public balance
// of to.
func (c *Confidential) Unshield(ctx context.Context, to common.Address, amount uint64) (*ledger.Receipt, error) {
	st, _, err := c.state(ctx)
	if err != nil {
		return nil, err
	}
	balance, err := c.decrypt(st)
	if err != nil {
		return nil, err
	}
	nonce, err := c.ledger.Nonce(ctx, c.account)
	if err != nil {
		return nil, err
	}
	payload, err := uno.BuildUnshieldPayloadProof(uno.UnshieldBuildArgs{
		ChainID:       c.ledger.ChainID(),
		From:          c.account,
		To:            to,
		Nonce:         nonce,
		SenderOld:     st.Ciphertext,
		Sender:        c.keys,
		Amount:        amount,
		SenderBalance: &balance,
	})
	if err != nil {
		return nil, err
	}
	data, err := uno.EncodeUnshield(payload)
	if err != nil {
		return nil, err
	}
	receipt, err := c.ledger.Submit(ctx, uno.Message{ChainID: c.ledger.ChainID(), From: c.account, Nonce: nonce, Data: data})
	if err != nil {
		return nil, err
	}
	c.log.Info("Unshielded", "slot", receipt.Slot, "to", to, "amount", amount)
	return receipt, nil
}

type transferTarget struct {
	to       common.Address
	pub      *group.Point
	register bool
	memo     string
}

func (c *Confidential) transfer(ctx context.Context, target transferTarget, amount uint64) (*ledger.Receipt, error) {
	st, _, err := c.state(ctx)
	if err != nil {
		return nil, err
	}
	balance, err := c.decrypt(st)
	if err != nil {
		return nil, err
	}
	receiver, err := c.ledger.AccountState(ctx, target.to)
	if err != nil {
		return nil, err
	}
	nonce, err := c.ledger.Nonce(ctx, c.account)
	if err != nil {
		return nil, err
	}
	payload, err := uno.BuildTransferPayloadProof(uno.TransferBuildArgs{
		ChainID:          c.ledger.ChainID(),
		From:             c.account,
		To:               target.to,
		Nonce:            nonce,
		SenderOld:        st.Ciphertext,
		ReceiverOld:      receiver.Ciphertext,
		Sender:           c.keys,
		ReceiverPub:      target.pub,
		Amount:           amount,
		SenderBalance:    &balance,
		RegisterReceiver: target.register,
		Memo:             target.memo,
	})
	if err != nil {
		return nil, err
	}
	data, err := uno.EncodeTransfer(payload)
	if err != nil {
		return nil, err
	}
	return c.ledger.Submit(ctx, uno.Message{ChainID: c.ledger.ChainID(), From: c.account, Nonce: nonce, Data: data})
}

// Transfer sends a hidden amount to an account with a registered encryption
// key. An overdraft fails with ErrInsufficientBalance before anything is
// submitted.
func (c *Confidential) Transfer(ctx context.Context, to common.Address, amount uint64) (*ledger.Receipt, error) {
	receiver, err := c.ledger.AccountState(ctx, to)
	if err != nil {
		return nil, err
	}
	if len(receiver.EncryptionKey) == 0 {
		return nil, fmt.Errorf("receiver %s: %w", to, uno.ErrEncryptionKeyNotConfigured)
	}
	pub, err := group.DecodePublicPoint(receiver.EncryptionKey)
	if err != nil {
		return nil, err
	}
	receipt, err := c.transfer(ctx, transferTarget{to: to, pub: pub}, amount)
	if err != nil {
		return nil, err
	}
	c.log.Info("Sent confidential transfer", "slot", receipt.Slot, "to", to)
	return receipt, nil
}

// Pay sends a hidden amount to a fresh one-time address of meta. The payment
// memo carries the ephemeral key and metadata.
func (c *Confidential) Pay(ctx context.Context, meta stealth.MetaAddress, amount uint64, metadata string) (*StealthReceipt, error) {
	pay, err := stealth.GenerateAddress(meta, metadata)
	if err != nil {
		return nil, err
	}
	receipt, err := c.transfer(ctx, transferTarget{
		to:       pay.Address.Account(),
		pub:      pay.Address.Point(),
		register: true,
		memo:     pay.Memo,
	}, amount)
	if err != nil {
		return nil, err
	}
	c.log.Info("Sent stealth payment", "slot", receipt.Slot, "to", pay.Address.Account())
	return &StealthReceipt{Receipt: receipt, Payment: pay}, nil
}

// Scan looks for stealth payments to keys in [fromSlot, toSlot].
func (c *Confidential) Scan(ctx context.Context, keys *stealth.Keys, fromSlot, toSlot uint64) ([]*stealth.Match, error) {
	src, err := c.ledger.Candidates(ctx, fromSlot, toSlot)
	if err != nil {
		return nil, err
	}
	return keys.Scanner(c.config.ScanWorkers).Scan(ctx, src)
}

// Claim opens a session on the one-time account of a detected payment.
func (c *Confidential) Claim(match *stealth.Match, keys *stealth.Keys) (*Session, error) {
	spending, err := stealth.Claim(match, keys.Spend)
	if err != nil {
		return nil, err
	}
	return NewWithKeypair(c.config, c.ledger, match.Address.Account(), spending)
}

// GrantViewingKey issues a viewing key over this account to grantee and
// records it in reg.
func (c *Confidential) GrantViewingKey(reg *compliance.Registry, grantee *group.Point, balances, amounts bool, expiry, now time.Time) (*viewkey.ViewingKey, error) {
	return reg.Issue(c.keys, grantee, viewkey.NewPermissions(balances, amounts, c.account), expiry, now)
}

// DiscloseBalance forwards the current balance ciphertext to viewing key id,
// subject to the registry's policy.
func (c *Confidential) DiscloseBalance(ctx context.Context, reg *compliance.Registry, id uuid.UUID, now time.Time) (cryptouno.Ciphertext, error) {
	st, _, err := c.state(ctx)
	if err != nil {
		return cryptouno.Ciphertext{}, err
	}
	ct, err := st.Ciphertext.ToCrypto()
	if err != nil {
		return cryptouno.Ciphertext{}, err
	}
	return reg.Forward(id, c.account, viewkey.ScopeBalance, ct, c.keys, now)
}
