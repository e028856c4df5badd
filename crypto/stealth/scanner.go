package stealth

import (
	"context"
	"errors"
	"io"
	"runtime"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/tos-network/ctprivacy/crypto/group"
	"golang.org/x/sync/errgroup"
)

var (
	scanCandidateMeter = metrics.NewRegisteredMeter("stealth/scan/candidates", nil)
	scanMatchMeter     = metrics.NewRegisteredMeter("stealth/scan/matches", nil)
	scanSkipMeter      = metrics.NewRegisteredMeter("stealth/scan/skipped", nil)
)

// Candidate is one memo observed on the ledger together with the account the
// payment was sent to.
type Candidate struct {
	Slot    uint64
	Memo    string
	Account common.Address
}

// CandidateSource yields candidates until it returns io.EOF. It is the only
// place a scan may block.
type CandidateSource interface {
	NextCandidate(ctx context.Context) (Candidate, error)
}

// SliceSource is a restartable CandidateSource over an in-memory batch.
type SliceSource struct {
	mu    sync.Mutex
	items []Candidate
	pos   int
}

func NewSliceSource(items []Candidate) *SliceSource {
	return &SliceSource{items: append([]Candidate(nil), items...)}
}

func (s *SliceSource) NextCandidate(ctx context.Context) (Candidate, error) {
	if err := ctx.Err(); err != nil {
		return Candidate{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos >= len(s.items) {
		return Candidate{}, io.EOF
	}
	c := s.items[s.pos]
	s.pos++
	return c, nil
}

// Reset rewinds the source to its first candidate.
func (s *SliceSource) Reset() {
	s.mu.Lock()
	s.pos = 0
	s.mu.Unlock()
}

// Match is a detected incoming stealth payment.
type Match struct {
	Candidate
	Address   Address
	Ephemeral EphemeralKey
	Metadata  string

	shared *group.Scalar
}

// Scanner detects payments for one recipient. It needs the view key pair and
// the public spend key only, so it can run on a watch-only host.
type Scanner struct {
	view    *group.KeyPair
	spend   *group.Point
	workers int
}

// NewScanner creates a scanner. workers <= 0 selects GOMAXPROCS.
func NewScanner(view *group.KeyPair, spend *group.Point, workers int) *Scanner {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Scanner{view: view, spend: group.CopyPoint(spend), workers: workers}
}

// Scanner returns a scanner for these keys.
func (k *Keys) Scanner(workers int) *Scanner {
	return NewScanner(k.View, k.Meta.Spend, workers)
}

// Check tests a single candidate. It returns (nil, nil) when the candidate is
// not a stealth memo or is addressed to someone else, and an error wrapping
// ErrInvalidStealthAddress when a stealth memo is malformed. Check has no side
// effects.
func (s *Scanner) Check(c Candidate) (*Match, error) {
	ephemeral, metadata, err := ParseMemo(c.Memo)
	if err != nil {
		return nil, err
	}
	dh, err := s.view.SharedSecret(ephemeral)
	if err != nil {
		return nil, err
	}
	shared := sharedScalar(dh)
	addr, err := AddressFromPoint(deriveAddress(s.spend, shared))
	if err != nil {
		return nil, err
	}
	if addr.Account() != c.Account {
		return nil, nil
	}
	return &Match{
		Candidate: c,
		Address:   addr,
		Ephemeral: EphemeralKey{Public: ephemeral},
		Metadata:  metadata,
		shared:    shared,
	}, nil
}

// Scan checks every candidate from src in parallel and returns the matches
// ordered by slot. Malformed memos are skipped. The scan stops early only on
// a source error or context cancellation.
func (s *Scanner) Scan(ctx context.Context, src CandidateSource) ([]*Match, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	var (
		mu      sync.Mutex
		matches []*Match
		seen    int
	)
	for {
		c, err := src.NextCandidate(gctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			g.Wait()
			return nil, err
		}
		seen++
		g.Go(func() error {
			scanCandidateMeter.Mark(1)
			m, err := s.Check(c)
			if err != nil {
				scanSkipMeter.Mark(1)
				if errors.Is(err, ErrInvalidStealthAddress) {
					log.Trace("Skipping malformed stealth memo", "slot", c.Slot, "err", err)
				}
				return nil
			}
			if m == nil {
				return nil
			}
			scanMatchMeter.Mark(1)
			mu.Lock()
			matches = append(matches, m)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Slot != matches[j].Slot {
			return matches[i].Slot < matches[j].Slot
		}
		return matches[i].Memo < matches[j].Memo
	})
	log.Debug("Stealth scan finished", "candidates", seen, "matches", len(matches))
	return matches, nil
}
