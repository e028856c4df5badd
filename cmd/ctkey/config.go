package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"unicode"

	"github.com/naoina/toml"
	"github.com/tos-network/ctprivacy/crypto/uno"
	"github.com/tos-network/ctprivacy/internal/flags"
	"github.com/tos-network/ctprivacy/session"
	"github.com/urfave/cli/v2"
)

var (
	configFileFlag = &cli.StringFlag{
		Name:     "config",
		Usage:    "TOML configuration file",
		Category: flags.MiscCategory,
	}

	commandDumpConfig = &cli.Command{
		Name:   "dumpconfig",
		Usage:  "Show configuration values",
		Action: dumpConfig,
		Flags: []cli.Flag{
			dataDirFlag,
			chainIDFlag,
			modeFlag,
			maxAmountFlag,
		},
		Description: `
The dumpconfig command shows the effective configuration, file values
overridden by flags.`,
	}
)

// These settings ensure that TOML keys use the same names as Go struct fields.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		var link string
		if unicode.IsUpper(rune(rt.Name()[0])) && rt.PkgPath() != "main" {
			link = fmt.Sprintf(", see https://godoc.org/%s#%s for available fields", rt.PkgPath(), rt.Name())
		}
		return fmt.Errorf("field '%s' is not defined in %s%s", field, rt.String(), link)
	},
}

type ledgerConfig struct {
	DataDir string
	ChainID uint64
}

type sessionConfig struct {
	Mode         string
	DecryptBound uint64
}

type scanConfig struct {
	Workers    int
	Checkpoint string `toml:",omitempty"`
}

type logConfig struct {
	Verbosity int
	JSON      bool
}

type ctkeyConfig struct {
	Ledger  ledgerConfig
	Session sessionConfig
	Scan    scanConfig
	Log     logConfig
}

var defaultConfig = ctkeyConfig{
	Ledger: ledgerConfig{
		DataDir: "ctkey-data",
		ChainID: 1666,
	},
	Session: sessionConfig{
		Mode:         session.ModeConfidential.String(),
		DecryptBound: uno.DefaultDecryptBound,
	},
	Log: logConfig{Verbosity: 3},
}

func loadConfig(file string, cfg *ctkeyConfig) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	// Add file name to errors that have a line number.
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(file + ", " + err.Error())
	}
	return err
}

// makeConfig loads the configuration file, if any, and applies the command
// line overrides.
func makeConfig(ctx *cli.Context) (ctkeyConfig, error) {
	cfg := defaultConfig
	if file := ctx.String(configFileFlag.Name); file != "" {
		if err := loadConfig(file, &cfg); err != nil {
			return cfg, err
		}
	}
	if ctx.IsSet(dataDirFlag.Name) {
		cfg.Ledger.DataDir = ctx.String(dataDirFlag.Name)
	}
	if ctx.IsSet(chainIDFlag.Name) {
		cfg.Ledger.ChainID = ctx.Uint64(chainIDFlag.Name)
	}
	if ctx.IsSet(modeFlag.Name) {
		cfg.Session.Mode = ctx.String(modeFlag.Name)
	}
	if ctx.IsSet(maxAmountFlag.Name) {
		cfg.Session.DecryptBound = ctx.Uint64(maxAmountFlag.Name)
	}
	if ctx.IsSet(scanWorkersFlag.Name) {
		cfg.Scan.Workers = ctx.Int(scanWorkersFlag.Name)
	}
	if ctx.IsSet(verbosityFlag.Name) {
		cfg.Log.Verbosity = ctx.Int(verbosityFlag.Name)
	}
	if ctx.IsSet(logJSONFlag.Name) {
		cfg.Log.JSON = ctx.Bool(logJSONFlag.Name)
	}
	if cfg.Ledger.DataDir == "" {
		return cfg, errors.New("cannot determine data directory, please set manually (--datadir)")
	}
	if cfg.Scan.Checkpoint == "" {
		cfg.Scan.Checkpoint = filepath.Join(cfg.Ledger.DataDir, "scan.json")
	}
	return cfg, nil
}

// session converts the file settings to a session configuration.
func (c ctkeyConfig) session() (session.Config, error) {
	mode, err := session.ParseMode(c.Session.Mode)
	if err != nil {
		return session.Config{}, err
	}
	return session.Config{
		Mode:         mode,
		DecryptBound: c.Session.DecryptBound,
		ScanWorkers:  c.Scan.Workers,
	}, nil
}

func dumpConfig(ctx *cli.Context) error {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	out, err := tomlSettings.Marshal(&cfg)
	if err != nil {
		return err
	}
	_, err = ctx.App.Writer.Write(out)
	return err
}
