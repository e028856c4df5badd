package main

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/tos-network/ctprivacy/cmd/utils"
	"github.com/tos-network/ctprivacy/core/uno"
	"github.com/tos-network/ctprivacy/crypto/group"
	"github.com/tos-network/ctprivacy/crypto/stealth"
	cryptouno "github.com/tos-network/ctprivacy/crypto/uno"
	"github.com/tos-network/ctprivacy/internal/flags"
	"github.com/tyler-smith/go-bip39"
	"github.com/urfave/cli/v2"
)

const defaultMnemonicBits = 128

var (
	pubkeyFlag = &cli.StringFlag{
		Name:  "pubkey",
		Usage: "hex encoded public encryption key",
	}
	mnemonicFlag = &cli.StringFlag{
		Name:     "mnemonic",
		Usage:    "existing BIP-39 mnemonic to derive the meta-address from",
		Category: flags.StealthCategory,
	}
	mnemonicBitsFlag = &cli.IntFlag{
		Name:     "bits",
		Usage:    "entropy bits of a newly generated mnemonic",
		Value:    defaultMnemonicBits,
		Category: flags.StealthCategory,
	}
	keysOutFlag = &cli.StringFlag{
		Name:     "out",
		Usage:    "write the stealth key file to this path",
		Category: flags.StealthCategory,
	}
)

var commandDerive = &cli.Command{
	Name:  "derive",
	Usage: "derive the encryption key pair of a signing secret",
	Description: `
Derive the account encryption key pair from a signing secret and print the
public encryption key and its account. The secret is read from --secretfile
or prompted for.`,
	Flags: []cli.Flag{
		secretFileFlag,
		jsonFlag,
	},
	Action: func(ctx *cli.Context) error {
		kp, err := loadEncryptionKey(ctx)
		if err != nil {
			return err
		}
		out := deriveOutput{
			Account:       keyAccount(kp),
			EncryptionKey: publicHex(kp.Public()),
		}
		if ctx.Bool(jsonFlag.Name) {
			return printJSON(ctx.App.Writer, out)
		}
		fmt.Fprintln(ctx.App.Writer, "Account:       ", out.Account.Hex())
		fmt.Fprintln(ctx.App.Writer, "Encryption key:", out.EncryptionKey)
		return nil
	},
}

type deriveOutput struct {
	Account       common.Address `json:"account"`
	EncryptionKey string         `json:"encryptionKey"`
}

var commandMetaAddress = &cli.Command{
	Name:  "meta-address",
	Usage: "create a stealth meta-address from a BIP-39 mnemonic",
	Description: `
Derive stealth view and spend keys from a BIP-39 mnemonic and print the
meta-address to publish. Without --mnemonic a fresh mnemonic is generated
and printed; write it down. The optional mnemonic passphrase is read from
--passwordfile. With --out the keys are written to a stealth key file.`,
	Flags: []cli.Flag{
		mnemonicFlag,
		mnemonicBitsFlag,
		passphraseFlag,
		keysOutFlag,
		jsonFlag,
	},
	Action: func(ctx *cli.Context) error {
		utils.CheckExclusive(ctx, mnemonicFlag, mnemonicBitsFlag)
		mnemonic := ctx.String(mnemonicFlag.Name)
		generated := mnemonic == ""
		if generated {
			var err error
			if mnemonic, err = generateMnemonic(ctx.Int(mnemonicBitsFlag.Name)); err != nil {
				return err
			}
		}
		passphrase := ""
		if path := ctx.String(passphraseFlag.Name); path != "" {
			passwords, err := utils.ReadPasswordList(path)
			if err != nil {
				return err
			}
			passphrase = utils.GetPassPhraseWithList("", false, 0, passwords)
		}
		keys, err := stealthKeysFromMnemonic(mnemonic, passphrase)
		if err != nil {
			return err
		}
		if path := ctx.String(keysOutFlag.Name); path != "" {
			if err := writeStealthKeys(path, keys); err != nil {
				return err
			}
		}
		out := metaAddressOutput{MetaAddress: keys.Meta.String()}
		if generated {
			out.Mnemonic = mnemonic
		}
		if ctx.Bool(jsonFlag.Name) {
			return printJSON(ctx.App.Writer, out)
		}
		if generated {
			fmt.Fprintln(ctx.App.Writer, "Mnemonic:    ", out.Mnemonic)
		}
		fmt.Fprintln(ctx.App.Writer, "Meta-address:", out.MetaAddress)
		return nil
	},
}

type metaAddressOutput struct {
	Mnemonic    string `json:"mnemonic,omitempty"`
	MetaAddress string `json:"metaAddress"`
}

var commandEncrypt = &cli.Command{
	Name:      "encrypt",
	Usage:     "encrypt an amount under a public encryption key",
	ArgsUsage: "<amount>",
	Flags: []cli.Flag{
		pubkeyFlag,
	},
	Action: func(ctx *cli.Context) error {
		pub, err := parsePublicKey(ctx.String(pubkeyFlag.Name))
		if err != nil {
			return err
		}
		amount, err := parseAmount(ctx.Args().First())
		if err != nil {
			return err
		}
		ct, _, err := cryptouno.Encrypt(amount, pub)
		if err != nil {
			return err
		}
		fmt.Fprintln(ctx.App.Writer, ciphertextHex(ct))
		return nil
	},
}

var commandDecrypt = &cli.Command{
	Name:      "decrypt",
	Usage:     "decrypt a balance ciphertext with the account encryption key",
	ArgsUsage: "<ciphertext>",
	Description: `
Decrypt a 64 byte balance ciphertext locally. Amounts above --max-amount are
reported as out of range.`,
	Flags: []cli.Flag{
		secretFileFlag,
		maxAmountFlag,
	},
	Action: func(ctx *cli.Context) error {
		ct, err := parseCiphertext(ctx.Args().First())
		if err != nil {
			return err
		}
		kp, err := loadEncryptionKey(ctx)
		if err != nil {
			return err
		}
		cfg, err := makeConfig(ctx)
		if err != nil {
			return err
		}
		amount, err := cryptouno.DecryptWithBound(ct, kp.Private(), cfg.Session.DecryptBound)
		if err != nil {
			return err
		}
		fmt.Fprintln(ctx.App.Writer, amount)
		return nil
	},
}

func generateMnemonic(bits int) (string, error) {
	if err := validateMnemonicBits(bits); err != nil {
		return "", err
	}
	entropy, err := bip39.NewEntropy(bits)
	if err != nil {
		return "", err
	}
	return bip39.NewMnemonic(entropy)
}

func validateMnemonicBits(bits int) error {
	switch bits {
	case 128, 160, 192, 224, 256:
		return nil
	default:
		return fmt.Errorf("invalid mnemonic bits %d (allowed: 128,160,192,224,256)", bits)
	}
}

func stealthKeysFromMnemonic(mnemonic, passphrase string) (*stealth.Keys, error) {
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, passphrase)
	if err != nil {
		return nil, err
	}
	return stealth.GenerateMetaAddress(seed)
}

// stealthKeyFile is the on-disk form of a recipient's stealth keys.
type stealthKeyFile struct {
	MetaAddress string        `json:"metaAddress"`
	ViewKey     hexutil.Bytes `json:"viewKey"`
	SpendKey    hexutil.Bytes `json:"spendKey"`
}

func writeStealthKeys(path string, keys *stealth.Keys) error {
	view, spend := keys.View.PrivateBytes(), keys.Spend.PrivateBytes()
	raw, err := json.MarshalIndent(stealthKeyFile{
		MetaAddress: keys.Meta.String(),
		ViewKey:     view[:],
		SpendKey:    spend[:],
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o600)
}

func readStealthKeys(path string) (*stealth.Keys, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read stealth key file: %w", err)
	}
	var file stealthKeyFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("invalid stealth key file: %w", err)
	}
	view, err := group.DecodeScalar(file.ViewKey)
	if err != nil {
		return nil, fmt.Errorf("invalid view key: %w", err)
	}
	spend, err := group.DecodeScalar(file.SpendKey)
	if err != nil {
		return nil, fmt.Errorf("invalid spend key: %w", err)
	}
	keys, err := stealth.KeysFromScalars(view, spend)
	if err != nil {
		return nil, err
	}
	if file.MetaAddress != "" && file.MetaAddress != keys.Meta.String() {
		return nil, errors.New("stealth key file: meta-address does not match keys")
	}
	return keys, nil
}

// readSigningSecret reads the hex encoded signing secret from --secretfile,
// or prompts for it.
func readSigningSecret(ctx *cli.Context) ([]byte, error) {
	var text string
	if path := ctx.String(secretFileFlag.Name); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read secret file '%s': %w", path, err)
		}
		text = string(raw)
	} else {
		text = utils.GetPassPhrase("Enter the hex encoded signing secret.", false)
	}
	text = strings.TrimPrefix(strings.TrimSpace(text), "0x")
	secret, err := hex.DecodeString(text)
	if err != nil {
		return nil, errors.New("signing secret is not valid hex")
	}
	return secret, nil
}

func loadEncryptionKey(ctx *cli.Context) (*group.KeyPair, error) {
	secret, err := readSigningSecret(ctx)
	if err != nil {
		return nil, err
	}
	return cryptouno.DeriveEncryptionKeypair(secret)
}

// keyAccount is the account that owns an encryption key.
func keyAccount(kp *group.KeyPair) common.Address {
	pub := kp.PublicBytes()
	return uno.KeyAccount(pub[:])
}

func publicHex(p *group.Point) string {
	raw := group.EncodePoint(p)
	return hexutil.Encode(raw[:])
}

func ciphertextHex(ct cryptouno.Ciphertext) string {
	raw := ct.Bytes()
	return hexutil.Encode(raw[:])
}

func parsePublicKey(s string) (*group.Point, error) {
	if s == "" {
		return nil, errors.New("missing public key")
	}
	raw, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("invalid public key: %w", err)
	}
	return group.DecodePublicPoint(raw)
}

func parseCiphertext(s string) (cryptouno.Ciphertext, error) {
	raw, err := hexutil.Decode(s)
	if err != nil {
		return cryptouno.Ciphertext{}, fmt.Errorf("invalid ciphertext: %w", err)
	}
	return cryptouno.ParseCiphertext(raw)
}

func parseAmount(s string) (uint64, error) {
	if s == "" {
		return 0, errors.New("missing amount")
	}
	amount, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	return amount, nil
}

func parseAccount(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid account %q", s)
	}
	return common.HexToAddress(s), nil
}

func printJSON(w io.Writer, v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}
