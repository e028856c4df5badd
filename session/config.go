package session

import (
	"fmt"
	"strings"

	"github.com/tos-network/ctprivacy/crypto/uno"
)

// Mode selects the transfer variant of a session. It is fixed at New.
type Mode uint8

const (
	// ModeConfidential keeps balances and amounts encrypted.
	ModeConfidential Mode = iota + 1
	// ModeTransparent moves plain public balances and never touches the
	// confidential code paths.
	ModeTransparent
)

func (m Mode) String() string {
	switch m {
	case ModeConfidential:
		return "confidential"
	case ModeTransparent:
		return "transparent"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// ParseMode parses a mode name as printed by String. "privacy" and
// "efficiency" are accepted as aliases.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "confidential", "privacy":
		return ModeConfidential, nil
	case "transparent", "efficiency":
		return ModeTransparent, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Config holds the session settings.
type Config struct {
	Mode Mode

	// DecryptBound is the largest balance recovered by bounded decryption.
	DecryptBound uint64

	// ScanWorkers bounds stealth scan parallelism; <= 0 uses GOMAXPROCS.
	ScanWorkers int
}

// DefaultConfig is a confidential session with the default search bound.
var DefaultConfig = Config{
	Mode:         ModeConfidential,
	DecryptBound: uno.DefaultDecryptBound,
}

func (c Config) sanitize() (Config, error) {
	switch c.Mode {
	case ModeConfidential, ModeTransparent:
	default:
		return c, fmt.Errorf("%w: %v", ErrUnknownMode, c.Mode)
	}
	if c.DecryptBound == 0 {
		c.DecryptBound = uno.DefaultDecryptBound
	}
	return c, nil
}
