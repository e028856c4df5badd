// ctkey is a command line tool for confidential transfer keys: encryption
// key pairs, stealth meta-addresses and viewing keys. It can also drive a
// local development ledger kept in a data directory.
package main

import (
	"fmt"
	"os"

	"github.com/tos-network/ctprivacy/internal/flags"
	"github.com/urfave/cli/v2"
)

// Git SHA1 commit hash of the release (set via linker flags)
var gitCommit = ""
var gitDate = ""

var app *cli.App

func init() {
	app = newApp()
}

func newApp() *cli.App {
	app := flags.NewApp(gitCommit, gitDate, "a confidential transfer key tool")
	app.Flags = []cli.Flag{
		configFileFlag,
		verbosityFlag,
		logJSONFlag,
		metricsFlag,
	}
	app.Before = setup
	app.After = reportMetrics
	app.Commands = []*cli.Command{
		commandDerive,
		commandMetaAddress,
		commandEncrypt,
		commandDecrypt,
		commandFund,
		commandRegister,
		commandShield,
		commandSend,
		commandUnshield,
		commandBalance,
		commandStealthPay,
		commandStealthScan,
		commandStealthSweep,
		commandViewkeyGrant,
		commandViewkeyRevoke,
		commandViewkeyList,
		commandViewkeyDisclose,
		commandViewkeyDecrypt,
		commandDumpConfig,
		commandVersion,
	}
	return app
}

// Commonly used command line flags.
var (
	secretFileFlag = &cli.StringFlag{
		Name:     "secretfile",
		Usage:    "the file that contains the hex encoded signing secret",
		Category: flags.KeyCategory,
	}
	passphraseFlag = &cli.StringFlag{
		Name:     "passwordfile",
		Usage:    "the file that contains the mnemonic passphrase",
		Category: flags.KeyCategory,
	}
	jsonFlag = &cli.BoolFlag{
		Name:  "json",
		Usage: "output JSON instead of human-readable format",
	}
	dataDirFlag = &cli.StringFlag{
		Name:     "datadir",
		Usage:    "data directory of the local ledger and viewing key registry",
		Category: flags.LedgerCategory,
	}
	chainIDFlag = &cli.Uint64Flag{
		Name:     "chainid",
		Usage:    "chain id of the local ledger",
		Category: flags.LedgerCategory,
	}
	modeFlag = &cli.StringFlag{
		Name:     "mode",
		Usage:    "transfer mode: confidential (privacy) or transparent (efficiency)",
		Category: flags.LedgerCategory,
	}
	maxAmountFlag = &cli.Uint64Flag{
		Name:  "max-amount",
		Usage: "maximum balance to search when decrypting",
	}
)

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
