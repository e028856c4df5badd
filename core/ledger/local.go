// Package ledger is an in-process stand-in for the ledger client and the
// ledger-query service. It keeps public balances, nonces and an ordered log
// of applied transactions in a key-value store and runs confidential actions
// through core/uno.Apply.
package ledger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/tos-network/ctprivacy/core/uno"
	"github.com/tos-network/ctprivacy/kvdb"
)

var (
	ErrChainIDMismatch   = errors.New("ledger: chain id mismatch")
	ErrInsufficientFunds = errors.New("ledger: insufficient public balance")
	ErrBalanceOverflow   = errors.New("ledger: public balance overflow")
	ErrInvalidRecipient  = errors.New("ledger: invalid recipient")

	submitMeter  = metrics.NewRegisteredMeter("ledger/submit", nil)
	rejectsMeter = metrics.NewRegisteredMeter("ledger/submit/rejects", nil)
)

// Receipt reports where a transaction landed.
type Receipt struct {
	Slot   uint64
	Kind   uint8
	Result *uno.Result // nil for plain transfers
}

// Local is a single-node ledger over a key-value store.
type Local struct {
	db      kvdb.KeyValueStore
	chainID *big.Int

	lock sync.Mutex // serialises state transitions
	head uint64
	log  log.Logger
}

// NewLocal opens a ledger over db, resuming from the stored head slot.
func NewLocal(db kvdb.KeyValueStore, chainID *big.Int) (*Local, error) {
	l := &Local{
		db:      db,
		chainID: new(big.Int).Set(chainID),
		log:     log.New("module", "ledger", "chain", chainID),
	}
	head, err := readUint64(db, headKey)
	if err != nil {
		return nil, err
	}
	l.head = head
	l.log.Debug("Opened ledger", "head", head)
	return l, nil
}

func readUint64(db kvdb.KeyValueReader, key []byte) (uint64, error) {
	blob, err := db.Get(key)
	if errors.Is(err, kvdb.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(blob) != 8 {
		return 0, fmt.Errorf("ledger: corrupt counter %q", key)
	}
	return binary.BigEndian.Uint64(blob), nil
}

func writeUint64(w kvdb.KeyValueWriter, key []byte, v uint64) error {
	return w.Put(key, binary.BigEndian.AppendUint64(nil, v))
}

// ChainID returns the chain id transactions must carry.
func (l *Local) ChainID() *big.Int {
	return new(big.Int).Set(l.chainID)
}

// Head returns the slot of the last applied transaction.
func (l *Local) Head() uint64 {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.head
}

// Nonce returns the next nonce expected from account.
func (l *Local) Nonce(ctx context.Context, account common.Address) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return readUint64(l.db, accountKey(noncePrefix, account))
}

// PublicBalance returns the plain balance of account.
func (l *Local) PublicBalance(ctx context.Context, account common.Address) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return readUint64(l.db, accountKey(balancePrefix, account))
}

// AccountState returns the confidential state of account.
func (l *Local) AccountState(ctx context.Context, account common.Address) (uno.AccountState, error) {
	if err := ctx.Err(); err != nil {
		return uno.AccountState{}, err
	}
	return uno.GetAccountState(l.db, account)
}

// Fund credits a public balance outside any transaction, the way a genesis
// allocation does.
func (l *Local) Fund(account common.Address, amount uint64) error {
	l.lock.Lock()
	defer l.lock.Unlock()

	key := accountKey(balancePrefix, account)
	bal, err := readUint64(l.db, key)
	if err != nil {
		return err
	}
	if bal > math.MaxUint64-amount {
		return ErrBalanceOverflow
	}
	return writeUint64(l.db, key, bal+amount)
}

// pending collects the public side effects of one transaction.
type pending struct {
	l     *Local
	batch kvdb.Batch
	bals  map[common.Address]uint64
}

func (l *Local) newPending() *pending {
	return &pending{l: l, batch: l.db.NewBatch(), bals: make(map[common.Address]uint64)}
}

func (p *pending) balance(account common.Address) (uint64, error) {
	if bal, ok := p.bals[account]; ok {
		return bal, nil
	}
	bal, err := readUint64(p.l.db, accountKey(balancePrefix, account))
	if err != nil {
		return 0, err
	}
	p.bals[account] = bal
	return bal, nil
}

func (p *pending) debit(account common.Address, amount uint64) error {
	bal, err := p.balance(account)
	if err != nil {
		return err
	}
	if bal < amount {
		return ErrInsufficientFunds
	}
	p.bals[account] = bal - amount
	return nil
}

func (p *pending) credit(account common.Address, amount uint64) error {
	bal, err := p.balance(account)
	if err != nil {
		return err
	}
	if bal > math.MaxUint64-amount {
		return ErrBalanceOverflow
	}
	p.bals[account] = bal + amount
	return nil
}

// commit writes balances, bumps the sender nonce, appends the log entry and
// flushes the batch.
func (p *pending) commit(from common.Address, nonce uint64, e *Entry) error {
	for account, bal := range p.bals {
		if err := writeUint64(p.batch, accountKey(balancePrefix, account), bal); err != nil {
			return err
		}
	}
	if err := writeUint64(p.batch, accountKey(noncePrefix, from), nonce+1); err != nil {
		return err
	}
	e.Slot = p.l.head + 1
	blob, err := encodeEntry(e)
	if err != nil {
		return err
	}
	if err := p.batch.Put(entryKey(e.Slot), blob); err != nil {
		return err
	}
	if err := writeUint64(p.batch, headKey, e.Slot); err != nil {
		return err
	}
	if err := p.batch.Write(); err != nil {
		return err
	}
	p.l.head = e.Slot
	return nil
}

func (l *Local) checkNonce(account common.Address, nonce uint64) error {
	want, err := readUint64(l.db, accountKey(noncePrefix, account))
	if err != nil {
		return err
	}
	if nonce != want {
		return fmt.Errorf("%w: have %d want %d", uno.ErrNonceMismatch, nonce, want)
	}
	return nil
}

// Transfer moves a public amount. The caller is trusted to speak for from.
func (l *Local) Transfer(ctx context.Context, from, to common.Address, nonce, amount uint64) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if to == (common.Address{}) {
		return nil, ErrInvalidRecipient
	}
	l.lock.Lock()
	defer l.lock.Unlock()

	if err := l.checkNonce(from, nonce); err != nil {
		return nil, err
	}
	p := l.newPending()
	if err := p.debit(from, amount); err != nil {
		return nil, err
	}
	if err := p.credit(to, amount); err != nil {
		return nil, err
	}
	e := &Entry{Kind: KindPlain, From: from, To: to, Amount: amount}
	if err := p.commit(from, nonce, e); err != nil {
		return nil, err
	}
	submitMeter.Mark(1)
	l.log.Debug("Applied plain transfer", "slot", e.Slot, "from", from, "to", to, "amount", amount)
	return &Receipt{Slot: e.Slot, Kind: KindPlain}, nil
}

// Submit applies a confidential action. Proof failures leave every balance,
// nonce and the log untouched.
func (l *Local) Submit(ctx context.Context, msg uno.Message) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if msg.ChainID == nil || msg.ChainID.Cmp(l.chainID) != 0 {
		return nil, ErrChainIDMismatch
	}
	l.lock.Lock()
	defer l.lock.Unlock()

	receipt, err := l.submit(msg)
	if err != nil {
		rejectsMeter.Mark(1)
		return nil, err
	}
	submitMeter.Mark(1)
	return receipt, nil
}

func (l *Local) submit(msg uno.Message) (*Receipt, error) {
	if err := l.checkNonce(msg.From, msg.Nonce); err != nil {
		return nil, err
	}
	p := l.newPending()
	res, err := uno.Apply(l.db, p.batch, msg)
	if err != nil {
		return nil, err
	}
	e := &Entry{Kind: res.Action, From: msg.From, To: res.To, Memo: res.Memo}
	if res.PublicDebit > 0 {
		if err := p.debit(msg.From, res.PublicDebit); err != nil {
			return nil, err
		}
		e.Amount = res.PublicDebit
	}
	if res.PublicCredit > 0 {
		if err := p.credit(res.To, res.PublicCredit); err != nil {
			return nil, err
		}
		e.Amount = res.PublicCredit
	}
	if err := p.commit(msg.From, msg.Nonce, e); err != nil {
		return nil, err
	}
	l.log.Debug("Applied confidential action", "slot", e.Slot, "action", res.Action, "from", msg.From, "to", res.To)
	return &Receipt{Slot: e.Slot, Kind: res.Action, Result: res}, nil
}

// Entries returns the log entries in [fromSlot, toSlot].
func (l *Local) Entries(fromSlot, toSlot uint64) ([]*Entry, error) {
	it := l.db.NewIterator(entryPrefix, encodeSlot(fromSlot))
	defer it.Release()

	var out []*Entry
	for it.Next() {
		e, err := decodeEntry(it.Value())
		if err != nil {
			return nil, err
		}
		if e.Slot > toSlot {
			break
		}
		out = append(out, e)
	}
	return out, it.Error()
}
