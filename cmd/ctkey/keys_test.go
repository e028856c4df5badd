package main

import (
	"path/filepath"
	"testing"

	"github.com/tos-network/ctprivacy/crypto/group"
)

func TestGenerateMnemonicBitsValidation(t *testing.T) {
	if _, err := generateMnemonic(129); err == nil {
		t.Fatalf("expected invalid mnemonic bits error")
	}
	if _, err := generateMnemonic(128); err != nil {
		t.Fatalf("expected valid mnemonic bits, got %v", err)
	}
}

func TestStealthKeysFromMnemonicDeterministic(t *testing.T) {
	first, err := stealthKeysFromMnemonic(testPhrase, "")
	if err != nil {
		t.Fatalf("derive stealth keys failed: %v", err)
	}
	second, err := stealthKeysFromMnemonic(testPhrase, "")
	if err != nil {
		t.Fatalf("derive stealth keys failed: %v", err)
	}
	if first.Meta.String() != second.Meta.String() {
		t.Fatalf("stealth derivation is not deterministic")
	}
	salted, err := stealthKeysFromMnemonic(testPhrase, "salt")
	if err != nil {
		t.Fatalf("derive stealth keys failed: %v", err)
	}
	if salted.Meta.String() == first.Meta.String() {
		t.Fatalf("passphrase did not change the meta-address")
	}
	if _, err := stealthKeysFromMnemonic("test test test", ""); err == nil {
		t.Fatalf("expected invalid mnemonic error")
	}
}

func TestStealthKeyFile(t *testing.T) {
	keys, err := stealthKeysFromMnemonic(testPhrase, "")
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "keys.json")
	if err := writeStealthKeys(path, keys); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	loaded, err := readStealthKeys(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if loaded.Meta.String() != keys.Meta.String() {
		t.Fatalf("meta-address mismatch")
	}
	if !group.ScalarEqual(loaded.Spend.Private(), keys.Spend.Private()) {
		t.Fatalf("spend key mismatch")
	}
}

func TestParseHelpers(t *testing.T) {
	if _, err := parseAmount(""); err == nil {
		t.Fatalf("expected missing amount error")
	}
	if _, err := parseAmount("-1"); err == nil {
		t.Fatalf("expected negative amount error")
	}
	if v, err := parseAmount("18446744073709551615"); err != nil || v != ^uint64(0) {
		t.Fatalf("max amount: %d, %v", v, err)
	}
	if _, err := parseAccount("0x1234"); err == nil {
		t.Fatalf("expected short account error")
	}
	if _, err := parsePublicKey("0x"); err == nil {
		t.Fatalf("expected empty public key error")
	}
	if _, err := parseCiphertext("0xzz"); err == nil {
		t.Fatalf("expected invalid ciphertext error")
	}
}
