package uno

// Protocol-level frozen constants for payload format v1.
//
// Any change to these values changes proof transcripts and wire bytes and must
// be treated as a protocol upgrade.
const (
	ProtocolPayloadPrefix = "CTPRIV01"

	ActionIDShield   uint8 = 0x02
	ActionIDTransfer uint8 = 0x03
	ActionIDUnshield uint8 = 0x04

	TranscriptContextVersion byte = 1
	TranscriptNativeAssetTag byte = 0
)

var (
	// FrozenPayloadFieldOrder maps each action to its canonical payload
	// field ordering as encoded in the action body.
	FrozenPayloadFieldOrder = map[uint8][]string{
		ActionIDShield:   {"amount", "encryption_key", "encrypted_memo"},
		ActionIDTransfer: {"to", "new_sender_ciphertext", "receiver_delta_ciphertext", "receiver_key", "proof_bundle", "memo", "encrypted_memo"},
		ActionIDUnshield: {"to", "amount", "new_sender_ciphertext", "proof_bundle", "encrypted_memo"},
	}
)
