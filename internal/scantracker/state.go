// Package scantracker checkpoints stealth scanning: the last ledger slot
// scanned for each meta-address and the payments found so far.
package scantracker

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Payment is a detected stealth payment as recorded in the checkpoint.
type Payment struct {
	Slot     uint64 `json:"slot"`
	Account  string `json:"account"`
	Metadata string `json:"metadata,omitempty"`
}

// Cursor is the scan position of one meta-address.
type Cursor struct {
	LastSlot uint64    `json:"lastSlot"`
	Head     uint64    `json:"head"`
	Payments []Payment `json:"payments,omitempty"`
}

type State struct {
	ChainID   uint64             `json:"chainId"`
	Cursors   map[string]*Cursor `json:"cursors"`
	UpdatedAt string             `json:"updatedAt"`
}

// New returns an empty checkpoint for chainID.
func New(chainID uint64) *State {
	return &State{ChainID: chainID, Cursors: make(map[string]*Cursor)}
}

// Load reads the checkpoint at path. A missing file yields (nil, nil).
func Load(path string) (*State, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var out State
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode scan checkpoint: %w", err)
	}
	if out.Cursors == nil {
		out.Cursors = make(map[string]*Cursor)
	}
	return &out, nil
}

// Next returns the first slot to scan for meta.
func (s *State) Next(meta string) uint64 {
	if c, ok := s.Cursors[meta]; ok {
		return c.LastSlot + 1
	}
	return 0
}

// Validate checks that a new scan up to head continues the checkpoint: same
// chain, and a ledger head that did not move backward. A backward head means
// the ledger was rewound and earlier matches may be gone.
func (s *State) Validate(chainID uint64, meta string, head uint64, allowRewind bool) error {
	if s.ChainID != chainID {
		return fmt.Errorf("checkpoint chain mismatch: file=%d ledger=%d", s.ChainID, chainID)
	}
	c, ok := s.Cursors[meta]
	if !ok {
		return nil
	}
	if head < c.Head && !allowRewind {
		return fmt.Errorf("ledger head moved backward %d -> %d (use --accept-rewind to rescan)", c.Head, head)
	}
	return nil
}

// Advance records a completed scan of meta up to lastSlot with the ledger at
// head. On a rewind (head below the recorded head) the cursor restarts.
func (s *State) Advance(meta string, lastSlot, head uint64, found []Payment) {
	c, ok := s.Cursors[meta]
	if !ok || head < c.Head {
		c = &Cursor{}
		s.Cursors[meta] = c
	}
	c.LastSlot, c.Head = lastSlot, head
	c.Payments = append(c.Payments, found...)
}

// Save writes the checkpoint atomically.
func Save(path string, curr *State) error {
	curr.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	raw, err := json.MarshalIndent(curr, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
