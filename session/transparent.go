package session

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/tos-network/ctprivacy/core/ledger"
)

// Transparent moves plain public balances.
type Transparent struct {
	ledger  Ledger
	account common.Address
}

func (t *Transparent) Mode() Mode { return ModeTransparent }

// Balance returns the public balance.
func (t *Transparent) Balance(ctx context.Context) (uint64, error) {
	return t.ledger.PublicBalance(ctx, t.account)
}

// Transfer sends a public amount.
func (t *Transparent) Transfer(ctx context.Context, to common.Address, amount uint64) (*ledger.Receipt, error) {
	nonce, err := t.ledger.Nonce(ctx, t.account)
	if err != nil {
		return nil, err
	}
	return t.ledger.Transfer(ctx, t.account, to, nonce, amount)
}
