package uno

import (
	"errors"
	"testing"

	"github.com/tos-network/ctprivacy/crypto/group"
)

func TestTransferProofRoundTrip(t *testing.T) {
	sender := mustKeypair(t)
	old := mustEncrypt(t, 1000, sender.Public())
	next, err := Debit(old, 250, sender.Public())
	if err != nil {
		t.Fatalf("Debit: %v", err)
	}
	proof, err := ProveTransfer(old, 250, next, sender)
	if err != nil {
		t.Fatalf("ProveTransfer: %v", err)
	}
	in := TransferPublicInputs{SenderPublic: sender.Public(), OldBalance: old, NewBalance: next}
	if err := VerifyTransfer(proof, in); err != nil {
		t.Fatalf("VerifyTransfer: %v", err)
	}
	if got, err := Decrypt(next, sender.Private()); err != nil || got != 750 {
		t.Fatalf("new balance = %d, %v", got, err)
	}
}

func TestTransferProofZeroAmount(t *testing.T) {
	sender := mustKeypair(t)
	old := mustEncrypt(t, 40, sender.Public())
	next, err := Debit(old, 0, sender.Public())
	if err != nil {
		t.Fatalf("Debit: %v", err)
	}
	proof, err := ProveTransfer(old, 0, next, sender)
	if err != nil {
		t.Fatalf("ProveTransfer(0): %v", err)
	}
	in := TransferPublicInputs{SenderPublic: sender.Public(), OldBalance: old, NewBalance: next}
	if err := VerifyTransfer(proof, in); err != nil {
		t.Fatalf("VerifyTransfer(0): %v", err)
	}
	if got, _ := Decrypt(next, sender.Private()); got != 40 {
		t.Fatalf("zero transfer changed balance to %d", got)
	}
}

func TestTransferProofFromZeroBalance(t *testing.T) {
	sender := mustKeypair(t)
	old := ZeroCiphertext()
	next, _ := Debit(old, 0, sender.Public())
	proof, err := ProveTransfer(old, 0, next, sender)
	if err != nil {
		t.Fatalf("ProveTransfer: %v", err)
	}
	if err := VerifyTransfer(proof, TransferPublicInputs{SenderPublic: sender.Public(), OldBalance: old, NewBalance: next}); err != nil {
		t.Fatalf("VerifyTransfer: %v", err)
	}
}

func TestTransferOverdraftRejectedBeforeProving(t *testing.T) {
	sender := mustKeypair(t)
	old := mustEncrypt(t, 100, sender.Public())
	next, _ := Debit(old, 101, sender.Public())
	proof, err := ProveTransfer(old, 101, next, sender)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if proof != nil {
		t.Fatalf("overdraft produced proof bytes")
	}
	hinted, err := ProveTransferWithOpening(old, 100, 101, next, sender, nil, nil)
	if !errors.Is(err, ErrInsufficientBalance) || hinted != nil {
		t.Fatalf("expected ErrInsufficientBalance with hint, got %v", err)
	}
}

func TestTransferBalanceMismatch(t *testing.T) {
	sender := mustKeypair(t)
	old := mustEncrypt(t, 100, sender.Public())
	wrongNext, _ := Debit(old, 30, sender.Public())
	if _, err := ProveTransfer(old, 20, wrongNext, sender); !errors.Is(err, ErrBalanceMismatch) {
		t.Fatalf("expected ErrBalanceMismatch, got %v", err)
	}
	next, _ := Debit(old, 20, sender.Public())
	if _, err := ProveTransferWithOpening(old, 99, 20, next, sender, nil, nil); !errors.Is(err, ErrBalanceMismatch) {
		t.Fatalf("expected ErrBalanceMismatch for wrong hint, got %v", err)
	}
}

func TestTransferProofRejectsWrongPublicInputs(t *testing.T) {
	sender := mustKeypair(t)
	other := mustKeypair(t)
	old := mustEncrypt(t, 500, sender.Public())
	next, _ := Debit(old, 200, sender.Public())
	proof, err := ProveTransferWithContext(old, 200, next, sender, []byte("ctx"))
	if err != nil {
		t.Fatalf("ProveTransfer: %v", err)
	}
	good := TransferPublicInputs{SenderPublic: sender.Public(), OldBalance: old, NewBalance: next}
	if err := VerifyTransferWithContext(proof, good, []byte("ctx")); err != nil {
		t.Fatalf("VerifyTransfer: %v", err)
	}
	cases := map[string]struct {
		in  TransferPublicInputs
		ctx []byte
	}{
		"wrong sender":  {TransferPublicInputs{SenderPublic: other.Public(), OldBalance: old, NewBalance: next}, []byte("ctx")},
		"wrong old":     {TransferPublicInputs{SenderPublic: sender.Public(), OldBalance: AddAmount(old, 1), NewBalance: next}, []byte("ctx")},
		"wrong new":     {TransferPublicInputs{SenderPublic: sender.Public(), OldBalance: old, NewBalance: AddAmount(next, 1)}, []byte("ctx")},
		"wrong context": {good, []byte("other")},
		"no context":    {good, nil},
	}
	for name, c := range cases {
		if err := VerifyTransferWithContext(proof, c.in, c.ctx); !errors.Is(err, ErrProofVerificationFailed) {
			t.Fatalf("%s: expected ErrProofVerificationFailed, got %v", name, err)
		}
	}
	if err := VerifyTransfer(proof[:100], good); !errors.Is(err, ErrProofVerificationFailed) {
		t.Fatalf("expected failure for truncated proof, got %v", err)
	}
}

func TestTransferProofParseRoundTrip(t *testing.T) {
	sender := mustKeypair(t)
	old := mustEncrypt(t, 10, sender.Public())
	next, _ := Debit(old, 3, sender.Public())
	raw, err := ProveTransfer(old, 3, next, sender)
	if err != nil {
		t.Fatalf("ProveTransfer: %v", err)
	}
	parsed, err := ParseTransferProof(raw)
	if err != nil {
		t.Fatalf("ParseTransferProof: %v", err)
	}
	if string(parsed.Bytes()) != string(raw) {
		t.Fatalf("re-encoded proof differs")
	}
	a, err := TransferAmountCommitment(raw)
	if err != nil || !a.Equal(parsed.AmountCommitment) {
		t.Fatalf("TransferAmountCommitment: %v", err)
	}
	if _, err := ParseTransferProof(append(raw, 0)); !errors.Is(err, ErrProofVerificationFailed) {
		t.Fatalf("expected trailing bytes rejection, got %v", err)
	}
}

func TestUnshieldShapedTransfer(t *testing.T) {
	// A public debit subtracts amount·G from C2 only; the transfer proof
	// still covers it.
	sender := mustKeypair(t)
	old := mustEncrypt(t, 900, sender.Public())
	next := SubAmount(old, 400)
	proof, err := ProveTransferWithOpening(old, 900, 400, next, sender, nil, nil)
	if err != nil {
		t.Fatalf("ProveTransferWithOpening: %v", err)
	}
	if err := VerifyTransfer(proof, TransferPublicInputs{SenderPublic: sender.Public(), OldBalance: old, NewBalance: next}); err != nil {
		t.Fatalf("VerifyTransfer: %v", err)
	}
}

func TestCTValidityProof(t *testing.T) {
	receiver := mustKeypair(t)
	ra, _ := group.RandomScalar(nil)
	commitment := Commit(250, ra)
	ct, r, err := Encrypt(250, receiver.Public())
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	ctx := []byte("transfer-ctx")
	proof, err := ProveCTValidity(ct, receiver.Public(), r, commitment, ra, ctx)
	if err != nil {
		t.Fatalf("ProveCTValidity: %v", err)
	}
	if len(proof) != CTValidityProofSize {
		t.Fatalf("unexpected proof size %d", len(proof))
	}
	if err := VerifyCTValidity(proof, ct, receiver.Public(), commitment, ctx); err != nil {
		t.Fatalf("VerifyCTValidity: %v", err)
	}
	other := mustEncrypt(t, 250, receiver.Public())
	if err := VerifyCTValidity(proof, other, receiver.Public(), commitment, ctx); !errors.Is(err, ErrProofVerificationFailed) {
		t.Fatalf("expected failure for foreign ciphertext, got %v", err)
	}
	wrong, wr, _ := Encrypt(251, receiver.Public())
	if _, err := ProveCTValidity(wrong, receiver.Public(), wr, commitment, ra, ctx); !errors.Is(err, ErrBalanceMismatch) {
		t.Fatalf("expected ErrBalanceMismatch, got %v", err)
	}
}

func TestDeriveEncryptionKeypair(t *testing.T) {
	secret := []byte("signing secret bytes for account A")
	a, err := DeriveEncryptionKeypair(secret)
	if err != nil {
		t.Fatalf("DeriveEncryptionKeypair: %v", err)
	}
	b, err := DeriveEncryptionKeypair(secret)
	if err != nil {
		t.Fatalf("DeriveEncryptionKeypair: %v", err)
	}
	if a.PublicBytes() != b.PublicBytes() || a.PrivateBytes() != b.PrivateBytes() {
		t.Fatalf("derivation is not deterministic")
	}
	if err := a.Check(); err != nil {
		t.Fatalf("key relationship: %v", err)
	}
	c, _ := DeriveEncryptionKeypair([]byte("signing secret bytes for account B"))
	if c.PublicBytes() == a.PublicBytes() {
		t.Fatalf("distinct secrets produced the same key")
	}
	if _, err := DeriveEncryptionKeypair(nil); !errors.Is(err, group.ErrWeakKeyMaterial) {
		t.Fatalf("expected ErrWeakKeyMaterial, got %v", err)
	}
}
