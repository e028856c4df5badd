package scantracker

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidate(t *testing.T) {
	st := New(1666)
	st.Advance("meta-a", 100, 100, nil)

	if err := st.Validate(1666, "meta-a", 120, false); err != nil {
		t.Fatalf("expected forward scan to pass, got %v", err)
	}
	if err := st.Validate(1, "meta-a", 120, false); err == nil {
		t.Fatal("expected chain mismatch error")
	}
	if err := st.Validate(1666, "meta-a", 90, false); err == nil {
		t.Fatal("expected head rewind error")
	}
	if err := st.Validate(1666, "meta-a", 90, true); err != nil {
		t.Fatalf("expected rewind allowed with flag, got %v", err)
	}
	if err := st.Validate(1666, "meta-b", 0, false); err != nil {
		t.Fatalf("unknown meta-address should pass, got %v", err)
	}
}

func TestAdvance(t *testing.T) {
	st := New(1666)
	if got := st.Next("meta"); got != 0 {
		t.Fatalf("fresh cursor starts at %d", got)
	}
	st.Advance("meta", 10, 10, []Payment{{Slot: 4, Account: "0x01"}})
	st.Advance("meta", 20, 20, []Payment{{Slot: 15, Account: "0x02"}})
	if got := st.Next("meta"); got != 21 {
		t.Fatalf("next slot = %d, want 21", got)
	}
	if n := len(st.Cursors["meta"].Payments); n != 2 {
		t.Fatalf("payments = %d, want 2", n)
	}
	// A rewound ledger restarts the cursor.
	st.Advance("meta", 5, 5, nil)
	if c := st.Cursors["meta"]; c.LastSlot != 5 || len(c.Payments) != 0 {
		t.Fatalf("rewind kept stale cursor: %+v", c)
	}
}

func TestLoadSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scan", "checkpoint.json")
	if got, err := Load(path); err != nil || got != nil {
		t.Fatalf("load empty expected (nil,nil), got (%v,%v)", got, err)
	}

	curr := New(1666)
	curr.Advance("meta", 42, 50, []Payment{{Slot: 7, Account: "0xabc", Metadata: "rent"}})
	if err := Save(path, curr); err != nil {
		t.Fatalf("save checkpoint: %v", err)
	}

	st, err := Load(path)
	if err != nil {
		t.Fatalf("load checkpoint: %v", err)
	}
	if st == nil {
		t.Fatal("expected non-nil state")
	}
	c := st.Cursors["meta"]
	if st.ChainID != 1666 || c == nil || c.LastSlot != 42 || c.Head != 50 || len(c.Payments) != 1 || c.Payments[0].Metadata != "rent" {
		t.Fatalf("state mismatch got=%+v", *st)
	}
	if st.UpdatedAt == "" {
		t.Fatal("expected updatedAt to be populated")
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temporary file left behind: %v", err)
	}
}

func TestLoadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	if err := os.WriteFile(path, []byte("{"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected decode error")
	}
}
