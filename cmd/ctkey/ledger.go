package main

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/log"
	"github.com/tos-network/ctprivacy/core/ledger"
	cryptouno "github.com/tos-network/ctprivacy/crypto/uno"
	"github.com/tos-network/ctprivacy/kvdb/leveldb"
	"github.com/tos-network/ctprivacy/session"
	"github.com/urfave/cli/v2"
)

const (
	ledgerDirName   = "ledger"
	registryDirName = "registry"

	dbCache   = 16
	dbHandles = 16
)

var ledgerFlags = []cli.Flag{
	dataDirFlag,
	chainIDFlag,
	secretFileFlag,
	maxAmountFlag,
}

var (
	commandFund = &cli.Command{
		Name:      "fund",
		Usage:     "credit a public balance on the local ledger",
		ArgsUsage: "<account> <amount>",
		Description: `
Credit a public balance out of thin air. The local ledger is a development
stand-in; fund is its faucet.`,
		Flags: []cli.Flag{dataDirFlag, chainIDFlag},
		Action: func(ctx *cli.Context) error {
			account, err := parseAccount(ctx.Args().Get(0))
			if err != nil {
				return err
			}
			amount, err := parseAmount(ctx.Args().Get(1))
			if err != nil {
				return err
			}
			return withLedger(ctx, func(cfg ctkeyConfig, l *ledger.Local) error {
				if err := l.Fund(account, amount); err != nil {
					return err
				}
				fmt.Fprintf(ctx.App.Writer, "Funded %s with %d\n", account.Hex(), amount)
				return nil
			})
		},
	}
	commandShield = &cli.Command{
		Name:      "shield",
		Usage:     "move a public amount into the confidential balance",
		ArgsUsage: "<amount>",
		Flags:     ledgerFlags,
		Action: func(ctx *cli.Context) error {
			amount, err := parseAmount(ctx.Args().First())
			if err != nil {
				return err
			}
			return withConfidential(ctx, func(c *session.Confidential) error {
				receipt, err := c.Shield(ctx.Context, amount)
				if err != nil {
					return err
				}
				printReceipt(ctx, receipt)
				return nil
			})
		},
	}
	commandRegister = &cli.Command{
		Name:  "register",
		Usage: "publish the account encryption key without moving funds",
		Description: `
Register the encryption key so the account can receive confidential
transfers. Registering twice is a no-op.`,
		Flags: ledgerFlags,
		Action: func(ctx *cli.Context) error {
			return withConfidential(ctx, func(c *session.Confidential) error {
				if err := c.Register(ctx.Context); err != nil {
					return err
				}
				fmt.Fprintln(ctx.App.Writer, "Encryption key registered:", publicHex(c.EncryptionKey()))
				return nil
			})
		},
	}
	commandSend = &cli.Command{
		Name:      "send",
		Usage:     "transfer an amount to another account",
		ArgsUsage: "<to> <amount>",
		Description: `
Transfer an amount in the configured mode. In confidential mode the amount is
hidden and the receiver must have registered an encryption key; in
transparent mode public balances move.`,
		Flags: append([]cli.Flag{modeFlag}, ledgerFlags...),
		Action: func(ctx *cli.Context) error {
			to, err := parseAccount(ctx.Args().Get(0))
			if err != nil {
				return err
			}
			amount, err := parseAmount(ctx.Args().Get(1))
			if err != nil {
				return err
			}
			return withSession(ctx, func(s *session.Session) error {
				receipt, err := s.Transfer(ctx.Context, to, amount)
				if err != nil {
					return err
				}
				printReceipt(ctx, receipt)
				return nil
			})
		},
	}
	commandUnshield = &cli.Command{
		Name:      "unshield",
		Usage:     "move a confidential amount out to a public balance",
		ArgsUsage: "<to> <amount>",
		Flags:     ledgerFlags,
		Action: func(ctx *cli.Context) error {
			to, err := parseAccount(ctx.Args().Get(0))
			if err != nil {
				return err
			}
			amount, err := parseAmount(ctx.Args().Get(1))
			if err != nil {
				return err
			}
			return withConfidential(ctx, func(c *session.Confidential) error {
				receipt, err := c.Unshield(ctx.Context, to, amount)
				if err != nil {
					return err
				}
				printReceipt(ctx, receipt)
				return nil
			})
		},
	}
	commandBalance = &cli.Command{
		Name:  "balance",
		Usage: "show the public and confidential balance of an account",
		Description: `
Show the balance of the account owning the signing secret. The confidential
balance is decrypted locally, searching up to --max-amount.`,
		Flags: append([]cli.Flag{modeFlag, jsonFlag}, ledgerFlags...),
		Action: func(ctx *cli.Context) error {
			return withSession(ctx, func(s *session.Session) error {
				out := balanceOutput{Account: s.Account().Hex(), Mode: s.Mode().String()}
				if c, err := s.Confidential(); err == nil {
					hidden, err := c.Balance(ctx.Context)
					if err != nil {
						return err
					}
					out.Confidential = &hidden
					out.EncryptionKey = publicHex(c.EncryptionKey())
				}
				public, err := s.PublicBalance(ctx.Context)
				if err != nil {
					return err
				}
				out.Public = public
				if ctx.Bool(jsonFlag.Name) {
					return printJSON(ctx.App.Writer, out)
				}
				fmt.Fprintln(ctx.App.Writer, "Account:     ", out.Account)
				fmt.Fprintln(ctx.App.Writer, "Public:      ", out.Public)
				if out.Confidential != nil {
					fmt.Fprintln(ctx.App.Writer, "Confidential:", *out.Confidential)
				}
				return nil
			})
		},
	}
)

type balanceOutput struct {
	Account       string  `json:"account"`
	Mode          string  `json:"mode"`
	EncryptionKey string  `json:"encryptionKey,omitempty"`
	Public        uint64  `json:"public"`
	Confidential  *uint64 `json:"confidential,omitempty"`
}

// openLedger opens the local ledger in the data directory. The returned
// closer releases the database.
func openLedger(cfg ctkeyConfig) (*ledger.Local, func(), error) {
	if err := os.MkdirAll(cfg.Ledger.DataDir, 0o700); err != nil {
		return nil, nil, err
	}
	db, err := leveldb.New(filepath.Join(cfg.Ledger.DataDir, ledgerDirName), dbCache, dbHandles, false)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	l, err := ledger.NewLocal(db, new(big.Int).SetUint64(cfg.Ledger.ChainID))
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return l, func() {
		if err := db.Close(); err != nil {
			log.Warn("Failed to close ledger", "err", err)
		}
	}, nil
}

func withLedger(ctx *cli.Context, fn func(cfg ctkeyConfig, l *ledger.Local) error) error {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	l, release, err := openLedger(cfg)
	if err != nil {
		return err
	}
	defer release()
	return fn(cfg, l)
}

func withSession(ctx *cli.Context, fn func(s *session.Session) error) error {
	secret, err := readSigningSecret(ctx)
	if err != nil {
		return err
	}
	kp, err := cryptouno.DeriveEncryptionKeypair(secret)
	if err != nil {
		return err
	}
	return withLedger(ctx, func(cfg ctkeyConfig, l *ledger.Local) error {
		scfg, err := cfg.session()
		if err != nil {
			return err
		}
		s, err := session.New(scfg, l, keyAccount(kp), secret)
		if err != nil {
			return err
		}
		return fn(s)
	})
}

func withConfidential(ctx *cli.Context, fn func(c *session.Confidential) error) error {
	return withSession(ctx, func(s *session.Session) error {
		c, err := s.Confidential()
		if err != nil {
			return fmt.Errorf("%w (use --mode confidential)", err)
		}
		return fn(c)
	})
}

func printReceipt(ctx *cli.Context, receipt *ledger.Receipt) {
	fmt.Fprintf(ctx.App.Writer, "Included in slot %d\n", receipt.Slot)
	if r := receipt.Result; r != nil && r.PublicCredit > 0 {
		fmt.Fprintf(ctx.App.Writer, "Public credit %d to %s\n", r.PublicCredit, r.To.Hex())
	}
}
