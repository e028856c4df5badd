// Package session threads one account's identity, its ledger and the chosen
// transfer mode through every operation. Several sessions may live in one
// process; none of them share state.
package session

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/tos-network/ctprivacy/core/ledger"
	"github.com/tos-network/ctprivacy/core/uno"
	"github.com/tos-network/ctprivacy/crypto/group"
	cryptouno "github.com/tos-network/ctprivacy/crypto/uno"
	"github.com/tos-network/ctprivacy/crypto/stealth"
)

var (
	ErrUnknownMode = errors.New("session: unknown mode")

	// ErrWrongMode is returned when a mode-specific capability is requested
	// from a session running in the other mode.
	ErrWrongMode = errors.New("session: operation not available in this mode")
)

// Ledger is the ledger client the session talks to. Every suspension point of
// a session lives behind it.
type Ledger interface {
	ChainID() *big.Int
	Nonce(ctx context.Context, account common.Address) (uint64, error)
	PublicBalance(ctx context.Context, account common.Address) (uint64, error)
	AccountState(ctx context.Context, account common.Address) (uno.AccountState, error)
	Transfer(ctx context.Context, from, to common.Address, nonce, amount uint64) (*ledger.Receipt, error)
	Submit(ctx context.Context, msg uno.Message) (*ledger.Receipt, error)
	Candidates(ctx context.Context, fromSlot, toSlot uint64) (stealth.CandidateSource, error)
}

var _ Ledger = (*ledger.Local)(nil)

// Transferer is the capability both modes share.
type Transferer interface {
	Mode() Mode
	Balance(ctx context.Context) (uint64, error)
	Transfer(ctx context.Context, to common.Address, amount uint64) (*ledger.Receipt, error)
}

// Session is one account's handle on the ledger.
type Session struct {
	Transferer

	config  Config
	ledger  Ledger
	account common.Address
	log     log.Logger
}

// New creates a session for account. In confidential mode the encryption key
// pair is derived from signingSecret; transparent sessions ignore it.
func New(config Config, l Ledger, account common.Address, signingSecret []byte) (*Session, error) {
	config, err := config.sanitize()
	if err != nil {
		return nil, err
	}
	s := &Session{config: config, ledger: l, account: account, log: log.New("account", account, "mode", config.Mode)}
	switch config.Mode {
	case ModeTransparent:
		s.Transferer = &Transparent{ledger: l, account: account}
	case ModeConfidential:
		kp, err := cryptouno.DeriveEncryptionKeypair(signingSecret)
		if err != nil {
			return nil, err
		}
		s.Transferer = newConfidential(config, l, account, kp, s.log)
	}
	s.log.Debug("Opened session")
	return s, nil
}

// NewWithKeypair creates a confidential session over an existing encryption
// key pair, such as the spending key of a claimed stealth account.
func NewWithKeypair(config Config, l Ledger, account common.Address, kp *group.KeyPair) (*Session, error) {
	config.Mode = ModeConfidential
	config, err := config.sanitize()
	if err != nil {
		return nil, err
	}
	if err := kp.Check(); err != nil {
		return nil, err
	}
	s := &Session{config: config, ledger: l, account: account, log: log.New("account", account, "mode", config.Mode)}
	s.Transferer = newConfidential(config, l, account, kp, s.log)
	return s, nil
}

// Account returns the session's account.
func (s *Session) Account() common.Address { return s.account }

// PublicBalance returns the account's public balance in either mode.
func (s *Session) PublicBalance(ctx context.Context) (uint64, error) {
	return s.ledger.PublicBalance(ctx, s.account)
}

// Config returns the settings the session was created with.
func (s *Session) Config() Config { return s.config }

// Confidential returns the confidential variant, or ErrWrongMode.
func (s *Session) Confidential() (*Confidential, error) {
	c, ok := s.Transferer.(*Confidential)
	if !ok {
		return nil, ErrWrongMode
	}
	return c, nil
}
