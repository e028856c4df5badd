package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/tos-network/ctprivacy/core/compliance"
	"github.com/tos-network/ctprivacy/crypto/viewkey"
	"github.com/tos-network/ctprivacy/internal/flags"
	"github.com/tos-network/ctprivacy/kvdb/leveldb"
	"github.com/tos-network/ctprivacy/session"
	"github.com/urfave/cli/v2"
)

var (
	granteeFlag = &cli.StringFlag{
		Name:     "grantee",
		Usage:    "public encryption key of the grantee",
		Category: flags.ViewingKeyCategory,
	}
	balancesFlag = &cli.BoolFlag{
		Name:     "balances",
		Usage:    "allow the grantee to view balances",
		Category: flags.ViewingKeyCategory,
	}
	amountsFlag = &cli.BoolFlag{
		Name:     "amounts",
		Usage:    "allow the grantee to view transfer amounts",
		Category: flags.ViewingKeyCategory,
	}
	expiryFlag = &cli.DurationFlag{
		Name:     "expiry",
		Usage:    "validity of the viewing key (0 = no expiry)",
		Value:    30 * 24 * time.Hour,
		Category: flags.ViewingKeyCategory,
	}
	viewkeyOutFlag = &cli.StringFlag{
		Name:     "out",
		Usage:    "write the exported viewing key to this path",
		Category: flags.ViewingKeyCategory,
	}
)

var (
	commandViewkeyGrant = &cli.Command{
		Name:  "viewkey-grant",
		Usage: "issue a viewing key over the account to a grantee",
		Description: `
Issue a viewing key that lets the grantee decrypt what the owner discloses to
it. The key is recorded in the registry of the data directory and exported as
JSON for the grantee.`,
		Flags: append([]cli.Flag{granteeFlag, balancesFlag, amountsFlag, expiryFlag, viewkeyOutFlag}, ledgerFlags...),
		Action: func(ctx *cli.Context) error {
			grantee, err := parsePublicKey(ctx.String(granteeFlag.Name))
			if err != nil {
				return err
			}
			if !ctx.Bool(balancesFlag.Name) && !ctx.Bool(amountsFlag.Name) {
				return errors.New("grant at least one of --balances or --amounts")
			}
			var (
				now    = time.Now()
				expiry time.Time
			)
			if d := ctx.Duration(expiryFlag.Name); d > 0 {
				expiry = now.Add(d)
			}
			return withConfidential(ctx, func(c *session.Confidential) error {
				return withRegistry(ctx, func(reg *compliance.Registry) error {
					vk, err := c.GrantViewingKey(reg, grantee, ctx.Bool(balancesFlag.Name), ctx.Bool(amountsFlag.Name), expiry, now)
					if err != nil {
						return err
					}
					out, err := json.MarshalIndent(vk, "", "  ")
					if err != nil {
						return err
					}
					if path := ctx.String(viewkeyOutFlag.Name); path != "" {
						if err := os.WriteFile(path, out, 0o600); err != nil {
							return err
						}
						fmt.Fprintln(ctx.App.Writer, "Viewing key", vk.ID, "written to", path)
						return nil
					}
					fmt.Fprintln(ctx.App.Writer, string(out))
					return nil
				})
			})
		},
	}
	commandViewkeyRevoke = &cli.Command{
		Name:      "viewkey-revoke",
		Usage:     "revoke a viewing key",
		ArgsUsage: "<id>",
		Description: `
Revoke a viewing key. Nothing is disclosed to it afterwards; what was
disclosed before stays readable to the grantee.`,
		Flags: []cli.Flag{dataDirFlag},
		Action: func(ctx *cli.Context) error {
			id, err := uuid.Parse(ctx.Args().First())
			if err != nil {
				return fmt.Errorf("invalid viewing key id: %w", err)
			}
			return withRegistry(ctx, func(reg *compliance.Registry) error {
				if err := reg.Revoke(id, time.Now()); err != nil {
					return err
				}
				fmt.Fprintln(ctx.App.Writer, "Revoked viewing key", id)
				return nil
			})
		},
	}
	commandViewkeyList = &cli.Command{
		Name:  "viewkey-list",
		Usage: "list issued viewing keys",
		Flags: []cli.Flag{dataDirFlag},
		Action: func(ctx *cli.Context) error {
			return withRegistry(ctx, func(reg *compliance.Registry) error {
				records, err := reg.Records()
				if err != nil {
					return err
				}
				now := time.Now()
				table := tablewriter.NewWriter(ctx.App.Writer)
				table.SetHeader([]string{"ID", "Grantee", "Balances", "Amounts", "Expiry", "Status"})
				for _, rec := range records {
					vk := rec.Key
					expiry := "never"
					if !vk.Expiry.IsZero() {
						expiry = vk.Expiry.UTC().Format(time.RFC3339)
					}
					table.Append([]string{
						vk.ID.String(),
						publicHex(vk.Grantee),
						fmt.Sprint(vk.Permissions.CanViewBalances),
						fmt.Sprint(vk.Permissions.CanViewAmounts),
						expiry,
						recordStatus(rec, now),
					})
				}
				table.Render()
				return nil
			})
		},
	}
	commandViewkeyDisclose = &cli.Command{
		Name:      "viewkey-disclose",
		Usage:     "forward the current balance to a viewing key",
		ArgsUsage: "<id>",
		Description: `
Re-encrypt the current balance ciphertext to the viewing key. The registry
refuses revoked or expired keys and keys without balance permission.`,
		Flags: ledgerFlags,
		Action: func(ctx *cli.Context) error {
			id, err := uuid.Parse(ctx.Args().First())
			if err != nil {
				return fmt.Errorf("invalid viewing key id: %w", err)
			}
			return withConfidential(ctx, func(c *session.Confidential) error {
				return withRegistry(ctx, func(reg *compliance.Registry) error {
					ct, err := c.DiscloseBalance(ctx.Context, reg, id, time.Now())
					if err != nil {
						return err
					}
					fmt.Fprintln(ctx.App.Writer, ciphertextHex(ct))
					return nil
				})
			})
		},
	}
	commandViewkeyDecrypt = &cli.Command{
		Name:      "viewkey-decrypt",
		Usage:     "decrypt a disclosed ciphertext as the grantee",
		ArgsUsage: "<viewkey.json> <ciphertext>",
		Flags:     []cli.Flag{secretFileFlag, maxAmountFlag},
		Action: func(ctx *cli.Context) error {
			raw, err := os.ReadFile(ctx.Args().Get(0))
			if err != nil {
				return fmt.Errorf("failed to read viewing key: %w", err)
			}
			vk := new(viewkey.ViewingKey)
			if err := json.Unmarshal(raw, vk); err != nil {
				return err
			}
			ct, err := parseCiphertext(ctx.Args().Get(1))
			if err != nil {
				return err
			}
			grantee, err := loadEncryptionKey(ctx)
			if err != nil {
				return err
			}
			cfg, err := makeConfig(ctx)
			if err != nil {
				return err
			}
			amount, err := viewkey.DecryptWithBound(ct, vk, grantee, cfg.Session.DecryptBound)
			if err != nil {
				return err
			}
			fmt.Fprintln(ctx.App.Writer, amount)
			return nil
		},
	}
)

func recordStatus(rec *compliance.Record, now time.Time) string {
	switch {
	case rec.Revoked(now):
		return "revoked"
	case rec.Key.Expired(now):
		return "expired"
	default:
		return "active"
	}
}

func withRegistry(ctx *cli.Context, fn func(reg *compliance.Registry) error) error {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.Ledger.DataDir, 0o700); err != nil {
		return err
	}
	db, err := leveldb.New(filepath.Join(cfg.Ledger.DataDir, registryDirName), dbCache, dbHandles, false)
	if err != nil {
		return fmt.Errorf("failed to open viewing key registry: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Warn("Failed to close registry", "err", err)
		}
	}()
	return fn(compliance.NewRegistry(db))
}
