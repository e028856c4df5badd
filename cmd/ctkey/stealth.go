package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/tos-network/ctprivacy/core/ledger"
	"github.com/tos-network/ctprivacy/crypto/stealth"
	"github.com/tos-network/ctprivacy/internal/flags"
	"github.com/tos-network/ctprivacy/internal/scantracker"
	"github.com/tos-network/ctprivacy/session"
	"github.com/urfave/cli/v2"
)

var (
	stealthKeysFlag = &cli.StringFlag{
		Name:     "keys",
		Usage:    "stealth key file written by meta-address --out",
		Category: flags.StealthCategory,
	}
	metadataFlag = &cli.StringFlag{
		Name:     "metadata",
		Usage:    "metadata published with the payment memo",
		Category: flags.StealthCategory,
	}
	acceptRewindFlag = &cli.BoolFlag{
		Name:     "accept-rewind",
		Usage:    "rescan from the start when the ledger head moved backward",
		Category: flags.StealthCategory,
	}
	scanWorkersFlag = &cli.IntFlag{
		Name:     "workers",
		Usage:    "number of parallel scan workers (0 = GOMAXPROCS)",
		Category: flags.StealthCategory,
	}
)

var (
	commandStealthPay = &cli.Command{
		Name:      "stealth-pay",
		Usage:     "send a hidden amount to a fresh address of a meta-address",
		ArgsUsage: "<meta-address> <amount>",
		Flags:     append([]cli.Flag{metadataFlag}, ledgerFlags...),
		Action: func(ctx *cli.Context) error {
			meta, err := stealth.ParseMetaAddress(ctx.Args().Get(0))
			if err != nil {
				return err
			}
			amount, err := parseAmount(ctx.Args().Get(1))
			if err != nil {
				return err
			}
			return withConfidential(ctx, func(c *session.Confidential) error {
				receipt, err := c.Pay(ctx.Context, meta, amount, ctx.String(metadataFlag.Name))
				if err != nil {
					return err
				}
				printReceipt(ctx, receipt.Receipt)
				fmt.Fprintln(ctx.App.Writer, "Stealth address:", receipt.Payment.Address)
				fmt.Fprintln(ctx.App.Writer, "Account:        ", receipt.Payment.Address.Account().Hex())
				return nil
			})
		},
	}
	commandStealthScan = &cli.Command{
		Name:  "stealth-scan",
		Usage: "find stealth payments to a meta-address",
		Description: `
Scan the ledger for payments to the meta-address in the stealth key file.
Only the view key and the public spend key take part in detection. Scanning
resumes at the slot after the last checkpoint; detected payments are
recorded in the checkpoint file.`,
		Flags: []cli.Flag{
			dataDirFlag,
			chainIDFlag,
			stealthKeysFlag,
			acceptRewindFlag,
			scanWorkersFlag,
			maxAmountFlag,
		},
		Action: stealthScan,
	}
	commandStealthSweep = &cli.Command{
		Name:      "stealth-sweep",
		Usage:     "claim a stealth payment and unshield it to a public account",
		ArgsUsage: "<slot> <to>",
		Flags: []cli.Flag{
			dataDirFlag,
			chainIDFlag,
			stealthKeysFlag,
			maxAmountFlag,
		},
		Action: stealthSweep,
	}
)

func stealthScan(ctx *cli.Context) error {
	keys, err := readStealthKeys(ctx.String(stealthKeysFlag.Name))
	if err != nil {
		return err
	}
	return withLedger(ctx, func(cfg ctkeyConfig, l *ledger.Local) error {
		var (
			chainID = cfg.Ledger.ChainID
			meta    = keys.Meta.String()
			head    = l.Head()
		)
		state, err := scantracker.Load(cfg.Scan.Checkpoint)
		if err != nil {
			return err
		}
		if state == nil {
			state = scantracker.New(chainID)
		}
		if err := state.Validate(chainID, meta, head, ctx.Bool(acceptRewindFlag.Name)); err != nil {
			return err
		}
		from := state.Next(meta)
		if c, ok := state.Cursors[meta]; ok && head < c.Head {
			from = 0
		}
		var found []scantracker.Payment
		if from <= head {
			src, err := l.Candidates(ctx.Context, from, head)
			if err != nil {
				return err
			}
			matches, err := keys.Scanner(cfg.Scan.Workers).Scan(ctx.Context, src)
			if err != nil {
				return err
			}
			table := tablewriter.NewWriter(ctx.App.Writer)
			table.SetHeader([]string{"Slot", "Account", "Metadata", "Balance"})
			for _, m := range matches {
				balance, err := stealthBalance(ctx, cfg, l, m, keys)
				if err != nil {
					return err
				}
				found = append(found, scantracker.Payment{Slot: m.Slot, Account: m.Address.Account().Hex(), Metadata: m.Metadata})
				table.Append([]string{strconv.FormatUint(m.Slot, 10), m.Address.Account().Hex(), m.Metadata, balance})
			}
			if len(matches) > 0 {
				table.Render()
			}
		}
		fmt.Fprintf(ctx.App.Writer, "Scanned slots %d-%d, %d new payment(s)\n", from, head, len(found))
		state.Advance(meta, head, head, found)
		return scantracker.Save(cfg.Scan.Checkpoint, state)
	})
}

// stealthBalance decrypts the current balance of a detected one-time account.
func stealthBalance(ctx *cli.Context, cfg ctkeyConfig, l *ledger.Local, m *stealth.Match, keys *stealth.Keys) (string, error) {
	s, err := claimSession(cfg, l, m, keys)
	if err != nil {
		return "", err
	}
	balance, err := s.Balance(ctx.Context)
	if err != nil {
		return "?", nil
	}
	return strconv.FormatUint(balance, 10), nil
}

func claimSession(cfg ctkeyConfig, l *ledger.Local, m *stealth.Match, keys *stealth.Keys) (*session.Session, error) {
	scfg, err := cfg.session()
	if err != nil {
		return nil, err
	}
	spending, err := stealth.Claim(m, keys.Spend)
	if err != nil {
		return nil, err
	}
	return session.NewWithKeypair(scfg, l, m.Address.Account(), spending)
}

func stealthSweep(ctx *cli.Context) error {
	slot, err := strconv.ParseUint(ctx.Args().Get(0), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid slot %q", ctx.Args().Get(0))
	}
	to, err := parseAccount(ctx.Args().Get(1))
	if err != nil {
		return err
	}
	keys, err := readStealthKeys(ctx.String(stealthKeysFlag.Name))
	if err != nil {
		return err
	}
	return withLedger(ctx, func(cfg ctkeyConfig, l *ledger.Local) error {
		src, err := l.Candidates(ctx.Context, slot, slot)
		if err != nil {
			return err
		}
		matches, err := keys.Scanner(1).Scan(ctx.Context, src)
		if err != nil {
			return err
		}
		if len(matches) == 0 {
			return fmt.Errorf("no stealth payment for these keys in slot %d", slot)
		}
		s, err := claimSession(cfg, l, matches[0], keys)
		if err != nil {
			return err
		}
		c, err := s.Confidential()
		if err != nil {
			return err
		}
		balance, err := c.Balance(ctx.Context)
		if err != nil {
			return err
		}
		if balance == 0 {
			return errors.New("stealth account is empty")
		}
		receipt, err := c.Unshield(ctx.Context, to, balance)
		if err != nil {
			return err
		}
		printReceipt(ctx, receipt)
		return nil
	})
}
