package ledger

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
)

// KindPlain tags a public transfer; confidential entries use the action ids
// of core/uno.
const KindPlain uint8 = 0x01

var (
	headKey       = []byte("head")
	balancePrefix = []byte("pub-")
	noncePrefix   = []byte("nonce-")
	entryPrefix   = []byte("slot-")
)

// Entry is one applied transaction as the ledger-query service sees it.
type Entry struct {
	Slot   uint64
	Kind   uint8
	From   common.Address
	To     common.Address
	Amount uint64 // public amount moved; zero for confidential transfers
	Memo   string
}

func accountKey(prefix []byte, account common.Address) []byte {
	return append(append([]byte(nil), prefix...), account[:]...)
}

func encodeSlot(slot uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, slot)
}

func entryKey(slot uint64) []byte {
	return append(append([]byte(nil), entryPrefix...), encodeSlot(slot)...)
}

func encodeEntry(e *Entry) ([]byte, error) {
	return rlp.EncodeToBytes(e)
}

func decodeEntry(blob []byte) (*Entry, error) {
	e := new(Entry)
	if err := rlp.DecodeBytes(blob, e); err != nil {
		return nil, err
	}
	return e, nil
}
