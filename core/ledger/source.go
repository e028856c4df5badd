package ledger

import (
	"context"
	"io"
	"math"
	"sync"

	"github.com/tos-network/ctprivacy/crypto/stealth"
	"github.com/tos-network/ctprivacy/kvdb"
)

// memoSource walks the transaction log lazily, yielding entries that carry a
// memo. It reads one entry per call and can be rewound.
type memoSource struct {
	db       kvdb.Iteratee
	from, to uint64

	mu     sync.Mutex
	cursor uint64
	done   bool
}

// Candidates returns a restartable source of memo-carrying entries with slots
// in [fromSlot, toSlot].
func (l *Local) Candidates(ctx context.Context, fromSlot, toSlot uint64) (stealth.CandidateSource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &memoSource{db: l.db, from: fromSlot, to: toSlot, cursor: fromSlot}, nil
}

func (s *memoSource) NextCandidate(ctx context.Context) (stealth.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return stealth.Candidate{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done {
		return stealth.Candidate{}, io.EOF
	}
	it := s.db.NewIterator(entryPrefix, encodeSlot(s.cursor))
	defer it.Release()

	for it.Next() {
		e, err := decodeEntry(it.Value())
		if err != nil {
			return stealth.Candidate{}, err
		}
		if e.Slot > s.to {
			break
		}
		if e.Slot == math.MaxUint64 {
			s.done = true
		}
		s.cursor = e.Slot + 1
		if e.Memo != "" {
			return stealth.Candidate{Slot: e.Slot, Memo: e.Memo, Account: e.To}, nil
		}
		if s.done {
			return stealth.Candidate{}, io.EOF
		}
	}
	if err := it.Error(); err != nil {
		return stealth.Candidate{}, err
	}
	s.done = true
	return stealth.Candidate{}, io.EOF
}

// Reset rewinds the source to fromSlot.
func (s *memoSource) Reset() {
	s.mu.Lock()
	s.cursor, s.done = s.from, false
	s.mu.Unlock()
}
