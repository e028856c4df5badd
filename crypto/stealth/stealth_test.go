package stealth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/tos-network/ctprivacy/crypto/group"
)

func mustKeys(t *testing.T) *Keys {
	t.Helper()
	keys, err := GenerateMetaAddress(nil)
	if err != nil {
		t.Fatalf("GenerateMetaAddress: %v", err)
	}
	return keys
}

func TestMetaAddressFromSeedIsDeterministic(t *testing.T) {
	seed := []byte("recipient seed")
	a, err := GenerateMetaAddress(seed)
	if err != nil {
		t.Fatalf("GenerateMetaAddress: %v", err)
	}
	b, _ := GenerateMetaAddress(seed)
	if a.Meta.String() != b.Meta.String() {
		t.Fatalf("seeded meta-address not deterministic")
	}
	if group.PointEqual(a.Meta.View, a.Meta.Spend) {
		t.Fatalf("view and spend keys must be independent")
	}
	if _, err := GenerateMetaAddress([]byte{}); !errors.Is(err, group.ErrWeakKeyMaterial) {
		t.Fatalf("expected ErrWeakKeyMaterial for empty seed, got %v", err)
	}
}

func TestMetaAddressStringRoundTrip(t *testing.T) {
	keys := mustKeys(t)
	parsed, err := ParseMetaAddress(keys.Meta.String())
	if err != nil {
		t.Fatalf("ParseMetaAddress: %v", err)
	}
	if parsed.Bytes() != keys.Meta.Bytes() {
		t.Fatalf("meta-address round trip mismatch")
	}
	if _, err := ParseMetaAddress("abc"); !errors.Is(err, ErrInvalidStealthAddress) {
		t.Fatalf("expected ErrInvalidStealthAddress, got %v", err)
	}
}

func TestMetaAddressRejectsEqualKeys(t *testing.T) {
	s, _ := group.RandomScalar(nil)
	if _, err := KeysFromScalars(s, s); !errors.Is(err, group.ErrWeakKeyMaterial) {
		t.Fatalf("expected ErrWeakKeyMaterial, got %v", err)
	}
	p := group.ScalarBaseMult(s)
	meta := MetaAddress{View: p, Spend: p}
	if _, err := GenerateAddress(meta, ""); !errors.Is(err, group.ErrWeakKeyMaterial) {
		t.Fatalf("expected ErrWeakKeyMaterial at generation, got %v", err)
	}
}

func TestGenerateScanClaim(t *testing.T) {
	keys := mustKeys(t)
	pay, err := GenerateAddress(keys.Meta, "invoice-42")
	if err != nil {
		t.Fatalf("GenerateAddress: %v", err)
	}
	match, err := keys.Scanner(1).Check(Candidate{Memo: pay.Memo, Account: pay.Address.Account()})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if match == nil {
		t.Fatalf("recipient did not detect payment")
	}
	if !match.Address.Equal(pay.Address) {
		t.Fatalf("recipient derived a different address")
	}
	if match.Metadata != "invoice-42" {
		t.Fatalf("metadata = %q", match.Metadata)
	}
	spending, err := Claim(match, keys.Spend)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if !group.PointEqual(group.ScalarBaseMult(spending.Private()), pay.Address.Point()) {
		t.Fatalf("spending key does not open address")
	}
	if err := VerifyDerivedAddress(pay.Address, keys.Meta, pay.Shared); err != nil {
		t.Fatalf("VerifyDerivedAddress: %v", err)
	}
	if err := VerifyStealthAddress(pay.Address, keys.Meta, pay.Ephemeral.Public); err != nil {
		t.Fatalf("VerifyStealthAddress: %v", err)
	}
}

func TestClaimWithWrongSpendKeyFails(t *testing.T) {
	keys := mustKeys(t)
	pay, _ := GenerateAddress(keys.Meta, "")
	match, err := keys.Scanner(1).Check(Candidate{Memo: pay.Memo, Account: pay.Address.Account()})
	if err != nil || match == nil {
		t.Fatalf("Check: %v", err)
	}
	other := mustKeys(t)
	if _, err := Claim(match, other.Spend); !errors.Is(err, ErrInvalidStealthAddress) {
		t.Fatalf("expected ErrInvalidStealthAddress, got %v", err)
	}
}

func TestScanFindsExactlyOneAmongDecoys(t *testing.T) {
	keys := mustKeys(t)
	pay, err := GenerateAddress(keys.Meta, "")
	if err != nil {
		t.Fatalf("GenerateAddress: %v", err)
	}
	var batch []Candidate
	for i := 0; i < 9; i++ {
		stranger := mustKeys(t)
		decoy, err := GenerateAddress(stranger.Meta, fmt.Sprintf("decoy-%d", i))
		if err != nil {
			t.Fatalf("GenerateAddress: %v", err)
		}
		batch = append(batch, Candidate{Slot: uint64(i), Memo: decoy.Memo, Account: decoy.Address.Account()})
	}
	batch = append(batch[:4], append([]Candidate{{Slot: 100, Memo: pay.Memo, Account: pay.Address.Account()}}, batch[4:]...)...)

	src := NewSliceSource(batch)
	matches, err := keys.Scanner(4).Scan(context.Background(), src)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected exactly 1 match, got %d", len(matches))
	}
	spending, err := Claim(matches[0], keys.Spend)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if err := spending.Check(); err != nil {
		t.Fatalf("spending key relationship: %v", err)
	}

	// The source is restartable and the scan is idempotent.
	src.Reset()
	again, err := keys.Scanner(2).Scan(context.Background(), src)
	if err != nil || len(again) != 1 || again[0].Slot != 100 {
		t.Fatalf("rescan: %d matches, %v", len(again), err)
	}
}

func TestScanSkipsMalformedAndForeignMemos(t *testing.T) {
	keys := mustKeys(t)
	pay, _ := GenerateAddress(keys.Meta, "")
	batch := []Candidate{
		{Slot: 1, Memo: "hello world"},
		{Slot: 2, Memo: "STEALTH:not-base58-0OIl"},
		{Slot: 3, Memo: "STEALTH:" + strings.Repeat("1", 10)},
		{Slot: 4, Memo: pay.Memo, Account: common.Address{0x01}},
		{Slot: 5, Memo: pay.Memo, Account: pay.Address.Account()},
	}
	matches, err := keys.Scanner(0).Scan(context.Background(), NewSliceSource(batch))
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(matches) != 1 || matches[0].Slot != 5 {
		t.Fatalf("unexpected matches: %+v", matches)
	}
}

type failingSource struct{ n int }

func (f *failingSource) NextCandidate(ctx context.Context) (Candidate, error) {
	if f.n == 0 {
		return Candidate{}, errors.New("ledger unavailable")
	}
	f.n--
	return Candidate{Memo: "x"}, nil
}

func TestScanPropagatesSourceError(t *testing.T) {
	keys := mustKeys(t)
	if _, err := keys.Scanner(2).Scan(context.Background(), &failingSource{n: 3}); err == nil {
		t.Fatalf("expected source error")
	}
}

func TestScanHonoursCancellation(t *testing.T) {
	keys := mustKeys(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := keys.Scanner(2).Scan(ctx, NewSliceSource([]Candidate{{Memo: "x"}})); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestMemoCodec(t *testing.T) {
	kp, _ := group.NewKeyPair(nil)
	memo := EncodeMemo(kp.Public(), "order:17")
	if !strings.HasPrefix(memo, MemoPrefix) {
		t.Fatalf("memo missing prefix: %s", memo)
	}
	eph, meta, err := ParseMemo(memo)
	if err != nil {
		t.Fatalf("ParseMemo: %v", err)
	}
	if !group.PointEqual(eph, kp.Public()) || meta != "order:17" {
		t.Fatalf("memo round trip mismatch: %q", meta)
	}
	bare := EncodeMemo(kp.Public(), "")
	if strings.Count(bare, ":") != 1 {
		t.Fatalf("memo without metadata has extra separator: %s", bare)
	}
	for _, bad := range []string{"", "stealth:abc", "STEALTH:", "STEALTH:11111111111111111111111111111111"} {
		if _, _, err := ParseMemo(bad); !errors.Is(err, ErrInvalidStealthAddress) {
			t.Fatalf("ParseMemo(%q): expected ErrInvalidStealthAddress, got %v", bad, err)
		}
	}
}

func TestVerifyStealthAddressStructural(t *testing.T) {
	keys := mustKeys(t)
	pay, _ := GenerateAddress(keys.Meta, "")
	if err := VerifyStealthAddress(pay.Address, keys.Meta, group.Identity()); !errors.Is(err, ErrInvalidStealthAddress) {
		t.Fatalf("expected identity ephemeral rejection, got %v", err)
	}
	spendAddr, _ := AddressFromPoint(keys.Meta.Spend)
	if err := VerifyStealthAddress(spendAddr, keys.Meta, pay.Ephemeral.Public); !errors.Is(err, ErrInvalidStealthAddress) {
		t.Fatalf("expected spend-key address rejection, got %v", err)
	}
	if _, err := AddressFromPoint(group.Identity()); !errors.Is(err, ErrInvalidStealthAddress) {
		t.Fatalf("expected identity address rejection, got %v", err)
	}
	parsed, err := ParseAddress(pay.Address.String())
	if err != nil || !parsed.Equal(pay.Address) {
		t.Fatalf("ParseAddress: %v", err)
	}
}

// Addresses for one meta-address under fresh ephemeral keys should look like
// independent random points: no repeats and roughly balanced bits.
func TestStealthAddressesLookUniform(t *testing.T) {
	keys := mustKeys(t)
	const samples = 256
	seen := make(map[[32]byte]bool, samples)
	ones := 0
	for i := 0; i < samples; i++ {
		pay, err := GenerateAddress(keys.Meta, "")
		if err != nil {
			t.Fatalf("GenerateAddress: %v", err)
		}
		raw := pay.Address.Bytes()
		if seen[raw] {
			t.Fatalf("repeated stealth address")
		}
		seen[raw] = true
		if raw == group.EncodePoint(keys.Meta.Spend) || raw == group.EncodePoint(keys.Meta.View) {
			t.Fatalf("address equals a meta-address key")
		}
		// Bit 1 of the first byte; bit 0 is always clear in canonical encodings.
		if raw[0]&0x02 != 0 {
			ones++
		}
	}
	if ones < samples/4 || ones > 3*samples/4 {
		t.Fatalf("bit distribution skewed: %d/%d", ones, samples)
	}
}

func TestSliceSourceEOF(t *testing.T) {
	src := NewSliceSource(nil)
	if _, err := src.NextCandidate(context.Background()); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}
