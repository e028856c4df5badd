package uno

import (
	"encoding/binary"

	"github.com/gtank/merlin"
	"github.com/tos-network/ctprivacy/crypto/group"
)

// Transcript labels. Changing any of them invalidates every existing proof.
const (
	transcriptRangeDomain    = "ctprivacy-range-v1"
	transcriptTransferDomain = "ctprivacy-transfer-v1"
	transcriptValidityDomain = "ctprivacy-ct-validity-v1"

	// labelChainContext carries caller supplied context bytes such as the
	// chain context built by core/uno.
	labelChainContext = "chain-ctx"
)

// transcript is a thin typed layer over a Merlin transcript.
type transcript struct {
	t *merlin.Transcript
}

func newTranscript(domain string, ctx []byte) *transcript {
	tr := &transcript{t: merlin.NewTranscript(domain)}
	if len(ctx) > 0 {
		tr.appendMessage(labelChainContext, ctx)
	}
	return tr
}

func (tr *transcript) appendMessage(label string, msg []byte) {
	tr.t.AppendMessage([]byte(label), msg)
}

func (tr *transcript) appendPoint(label string, p *group.Point) {
	enc := group.EncodePoint(p)
	tr.appendMessage(label, enc[:])
}

func (tr *transcript) appendU64(label string, v uint64) {
	var word [8]byte
	binary.LittleEndian.PutUint64(word[:], v)
	tr.appendMessage(label, word[:])
}

func (tr *transcript) challengeScalar(label string) *group.Scalar {
	return group.ScalarFromUniformBytes(tr.t.ExtractBytes([]byte(label), 64))
}
