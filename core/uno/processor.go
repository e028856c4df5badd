package uno

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	cryptouno "github.com/tos-network/ctprivacy/crypto/uno"
	"github.com/tos-network/ctprivacy/kvdb"
)

var (
	applyTimer        = metrics.NewRegisteredTimer("uno/apply", nil)
	applyRejectsMeter = metrics.NewRegisteredMeter("uno/apply/rejects", nil)
)

// Message is one confidential action submitted by From. Authentication of
// From is the ledger's job.
type Message struct {
	ChainID *big.Int
	From    common.Address
	Nonce   uint64
	Data    []byte
}

// Result describes the public side effects of an applied message, for the
// ledger to settle against plain balances.
type Result struct {
	Action uint8
	To     common.Address

	// PublicDebit is taken from From's public balance (shield).
	PublicDebit uint64
	// PublicCredit is paid to To's public balance (unshield).
	PublicCredit uint64

	Memo string
}

// Apply verifies msg against the confidential state in db and, on success,
// writes the new state to w. Nothing is written on failure.
func Apply(db kvdb.KeyValueReader, w kvdb.KeyValueWriter, msg Message) (*Result, error) {
	defer applyTimer.UpdateSince(time.Now())

	env, err := DecodeEnvelope(msg.Data)
	if err != nil {
		applyRejectsMeter.Mark(1)
		return nil, err
	}
	o := newOverlay(db)
	var res *Result
	switch env.Action {
	case ActionShield:
		res, err = applyShield(o, msg, env.Body)
	case ActionTransfer:
		res, err = applyTransfer(o, msg, env.Body)
	case ActionUnshield:
		res, err = applyUnshield(o, msg, env.Body)
	default:
		err = ErrUnsupportedAction
	}
	if err != nil {
		applyRejectsMeter.Mark(1)
		log.Debug("Rejected confidential action", "from", msg.From, "action", env.Action, "err", err)
		return nil, err
	}
	if err := o.flush(w); err != nil {
		return nil, err
	}
	res.Action = env.Action
	return res, nil
}

func applyShield(o *overlay, msg Message, body []byte) (*Result, error) {
	p, err := DecodeShieldPayload(body)
	if err != nil {
		return nil, err
	}
	if len(p.EncryptionKey) != 0 {
		if err := RegisterEncryptionKey(o, o, msg.From, p.EncryptionKey); err != nil {
			return nil, err
		}
	}
	if _, err := RequireEncryptionKey(o, msg.From); err != nil {
		return nil, err
	}
	delta := FromCrypto(cryptouno.AddAmount(cryptouno.ZeroCiphertext(), p.Amount))
	if err := AddCiphertextToAccount(o, o, msg.From, delta); err != nil {
		return nil, err
	}
	return &Result{To: msg.From, PublicDebit: p.Amount}, nil
}

func applyTransfer(o *overlay, msg Message, body []byte) (*Result, error) {
	p, err := DecodeTransferPayload(body)
	if err != nil {
		return nil, err
	}
	if p.To == msg.From {
		return nil, ErrInvalidPayload
	}
	senderPub, err := RequireEncryptionKey(o, msg.From)
	if err != nil {
		return nil, err
	}
	if len(p.ReceiverKey) != 0 {
		if KeyAccount(p.ReceiverKey) != p.To {
			return nil, ErrEncryptionKeyMismatch
		}
		if err := RegisterEncryptionKey(o, o, p.To, p.ReceiverKey); err != nil {
			return nil, err
		}
	}
	receiverPub, err := RequireEncryptionKey(o, p.To)
	if err != nil {
		return nil, fmt.Errorf("receiver: %w", err)
	}
	sender, err := GetAccountState(o, msg.From)
	if err != nil {
		return nil, err
	}
	receiver, err := GetAccountState(o, p.To)
	if err != nil {
		return nil, err
	}
	ctx := BuildTransferTranscriptContext(msg.ChainID, msg.From, p.To, msg.Nonce, sender.Ciphertext, p.NewSender, receiver.Ciphertext, p.ReceiverDelta)
	if err := VerifyTransferProofBundleWithContext(p.ProofBundle, sender.Ciphertext, p.NewSender, p.ReceiverDelta, senderPub, receiverPub, ctx); err != nil {
		return nil, err
	}
	if err := SetCiphertextForAccount(o, o, msg.From, p.NewSender); err != nil {
		return nil, err
	}
	if err := AddCiphertextToAccount(o, o, p.To, p.ReceiverDelta); err != nil {
		return nil, err
	}
	return &Result{To: p.To, Memo: p.Memo}, nil
}

func applyUnshield(o *overlay, msg Message, body []byte) (*Result, error) {
	p, err := DecodeUnshieldPayload(body)
	if err != nil {
		return nil, err
	}
	senderPub, err := RequireEncryptionKey(o, msg.From)
	if err != nil {
		return nil, err
	}
	sender, err := GetAccountState(o, msg.From)
	if err != nil {
		return nil, err
	}
	ctx := BuildUnshieldTranscriptContext(msg.ChainID, msg.From, p.To, msg.Nonce, p.Amount, sender.Ciphertext, p.NewSender)
	if err := VerifyUnshieldProofBundleWithContext(p.ProofBundle, sender.Ciphertext, p.NewSender, senderPub, p.Amount, ctx); err != nil {
		return nil, err
	}
	if err := SetCiphertextForAccount(o, o, msg.From, p.NewSender); err != nil {
		return nil, err
	}
	return &Result{To: p.To, PublicCredit: p.Amount}, nil
}

// overlay buffers writes over a reader so a multi-step state transition sees
// its own writes and commits all of them or none.
type overlay struct {
	db      kvdb.KeyValueReader
	pending map[string][]byte
	order   []string
}

func newOverlay(db kvdb.KeyValueReader) *overlay {
	return &overlay{db: db, pending: make(map[string][]byte)}
}

func (o *overlay) Has(key []byte) (bool, error) {
	if _, ok := o.pending[string(key)]; ok {
		return true, nil
	}
	return o.db.Has(key)
}

func (o *overlay) Get(key []byte) ([]byte, error) {
	if v, ok := o.pending[string(key)]; ok {
		return common.CopyBytes(v), nil
	}
	return o.db.Get(key)
}

func (o *overlay) Put(key []byte, value []byte) error {
	k := string(key)
	if _, ok := o.pending[k]; !ok {
		o.order = append(o.order, k)
	}
	o.pending[k] = common.CopyBytes(value)
	return nil
}

func (o *overlay) Delete(key []byte) error {
	return errors.New("uno: state entries are never deleted")
}

func (o *overlay) flush(w kvdb.KeyValueWriter) error {
	for _, k := range o.order {
		if err := w.Put([]byte(k), o.pending[k]); err != nil {
			return err
		}
	}
	return nil
}
