package flags

import "github.com/urfave/cli/v2"

const (
	KeyCategory        = "KEYS"
	LedgerCategory     = "LEDGER"
	StealthCategory    = "STEALTH PAYMENTS"
	ViewingKeyCategory = "VIEWING KEYS"
	LoggingCategory    = "LOGGING AND DEBUGGING"
	MiscCategory       = "MISC"
)

func init() {
	cli.HelpFlag.(*cli.BoolFlag).Category = MiscCategory
	cli.VersionFlag.(*cli.BoolFlag).Category = MiscCategory
}
