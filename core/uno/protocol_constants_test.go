package uno

import (
	"reflect"
	"testing"
)

func TestFrozenActionWireIDs(t *testing.T) {
	if ActionShield != 0x02 {
		t.Fatalf("ActionShield changed: got 0x%x", ActionShield)
	}
	if ActionTransfer != 0x03 {
		t.Fatalf("ActionTransfer changed: got 0x%x", ActionTransfer)
	}
	if ActionUnshield != 0x04 {
		t.Fatalf("ActionUnshield changed: got 0x%x", ActionUnshield)
	}
	if PayloadPrefix != "CTPRIV01" {
		t.Fatalf("PayloadPrefix changed: got %q", PayloadPrefix)
	}
}

func TestFrozenPayloadFieldOrder(t *testing.T) {
	cases := []struct {
		action uint8
		want   []string
	}{
		{ActionShield, []string{"amount", "encryption_key", "encrypted_memo"}},
		{ActionTransfer, []string{"to", "new_sender_ciphertext", "receiver_delta_ciphertext", "receiver_key", "proof_bundle", "memo", "encrypted_memo"}},
		{ActionUnshield, []string{"to", "amount", "new_sender_ciphertext", "proof_bundle", "encrypted_memo"}},
	}
	for _, tc := range cases {
		got, ok := FrozenPayloadFieldOrder[tc.action]
		if !ok {
			t.Fatalf("missing frozen field order for action 0x%x", tc.action)
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("field order mismatch action 0x%x: got %v want %v", tc.action, got, tc.want)
		}
	}
	// The RLP structs must carry exactly the frozen number of fields.
	for action, v := range map[uint8]interface{}{
		ActionShield:   shieldPayloadRLP{},
		ActionTransfer: transferPayloadRLP{},
		ActionUnshield: unshieldPayloadRLP{},
	} {
		if n := reflect.TypeOf(v).NumField(); n != len(FrozenPayloadFieldOrder[action]) {
			t.Fatalf("action 0x%x: rlp struct has %d fields, frozen order has %d", action, n, len(FrozenPayloadFieldOrder[action]))
		}
	}
}

func TestFrozenTranscriptConstants(t *testing.T) {
	if TranscriptContextVersion != 1 {
		t.Fatalf("TranscriptContextVersion changed: got %d", TranscriptContextVersion)
	}
	if TranscriptNativeAssetTag != 0 {
		t.Fatalf("TranscriptNativeAssetTag changed: got %d", TranscriptNativeAssetTag)
	}
	if ContextHeaderSize != 59 {
		t.Fatalf("ContextHeaderSize changed: got %d", ContextHeaderSize)
	}
}
