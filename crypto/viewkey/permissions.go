package viewkey

import (
	"bytes"
	"sort"

	mapset "github.com/deckarep/golang-set"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
)

// Scope names the kind of value a grantee asks to decrypt.
type Scope uint8

const (
	ScopeBalance Scope = iota + 1
	ScopeAmount
)

func (s Scope) String() string {
	switch s {
	case ScopeBalance:
		return "balance"
	case ScopeAmount:
		return "amount"
	default:
		return "unknown"
	}
}

// Permissions bound what a grantee is allowed to decrypt. They are policy:
// the collaborator that forwards ciphertexts enforces them.
type Permissions struct {
	CanViewBalances bool
	CanViewAmounts  bool
	AllowedAccounts mapset.Set // of common.Address
}

// NewPermissions builds a permission set over the given accounts.
func NewPermissions(balances, amounts bool, accounts ...common.Address) Permissions {
	set := mapset.NewSet()
	for _, a := range accounts {
		set.Add(a)
	}
	return Permissions{CanViewBalances: balances, CanViewAmounts: amounts, AllowedAccounts: set}
}

// AllowsAccount reports whether account is named in the permissions.
func (p Permissions) AllowsAccount(account common.Address) bool {
	return p.AllowedAccounts != nil && p.AllowedAccounts.Contains(account)
}

// AllowsScope reports whether the scope flag is set.
func (p Permissions) AllowsScope(scope Scope) bool {
	switch scope {
	case ScopeBalance:
		return p.CanViewBalances
	case ScopeAmount:
		return p.CanViewAmounts
	default:
		return false
	}
}

// Accounts returns the allowed accounts in byte order.
func (p Permissions) Accounts() []common.Address {
	if p.AllowedAccounts == nil {
		return nil
	}
	out := make([]common.Address, 0, p.AllowedAccounts.Cardinality())
	for _, v := range p.AllowedAccounts.ToSlice() {
		if a, ok := v.(common.Address); ok {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i][:], out[j][:]) < 0 })
	return out
}

type permissionsRLP struct {
	Balances bool
	Amounts  bool
	Accounts []common.Address
}

// canonical is the deterministic encoding bound into the sealed key.
func (p Permissions) canonical() []byte {
	enc, err := rlp.EncodeToBytes(&permissionsRLP{
		Balances: p.CanViewBalances,
		Amounts:  p.CanViewAmounts,
		Accounts: p.Accounts(),
	})
	if err != nil {
		panic(err)
	}
	return enc
}
