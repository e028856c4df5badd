package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"testing"
)

// testCtkey runs ctkey commands in-process against one data directory.
type testCtkey struct {
	t       *testing.T
	datadir string
}

func newTestCtkey(t *testing.T) *testCtkey {
	return &testCtkey{t: t, datadir: filepath.Join(t.TempDir(), "data")}
}

// run executes a command with the data directory flag appended to the
// command flags. args[0] is the command name.
func (tt *testCtkey) run(args ...string) (string, error) {
	tt.t.Helper()
	app := newApp()
	var out bytes.Buffer
	app.Writer = &out
	app.ErrWriter = &out
	argv := []string{"ctkey", "--verbosity", "1", args[0]}
	if usesDataDir(args[0]) {
		argv = append(argv, "--datadir", tt.datadir)
	}
	argv = append(argv, args[1:]...)
	err := app.Run(argv)
	return out.String(), err
}

func (tt *testCtkey) mustRun(args ...string) string {
	tt.t.Helper()
	out, err := tt.run(args...)
	if err != nil {
		tt.t.Fatalf("ctkey %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func usesDataDir(cmd string) bool {
	switch cmd {
	case "derive", "meta-address", "encrypt", "decrypt", "viewkey-decrypt", "version":
		return false
	}
	return true
}

// writeSecret stores a hex signing secret and returns its path.
func writeSecret(t *testing.T, name, secret string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(secret+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func (tt *testCtkey) derive(secretfile string) deriveOutput {
	tt.t.Helper()
	var out deriveOutput
	if err := json.Unmarshal([]byte(tt.mustRun("derive", "--json", "--secretfile", secretfile)), &out); err != nil {
		tt.t.Fatalf("invalid derive output: %v", err)
	}
	return out
}

func (tt *testCtkey) balance(secretfile string, extra ...string) balanceOutput {
	tt.t.Helper()
	args := append([]string{"balance", "--json", "--secretfile", secretfile}, extra...)
	var out balanceOutput
	if err := json.Unmarshal([]byte(tt.mustRun(args...)), &out); err != nil {
		tt.t.Fatalf("invalid balance output: %v", err)
	}
	return out
}

var slotPattern = regexp.MustCompile(`Included in slot (\d+)`)

func includedSlot(t *testing.T, out string) string {
	t.Helper()
	m := slotPattern.FindStringSubmatch(out)
	if m == nil {
		t.Fatalf("no slot in output %q", out)
	}
	if _, err := strconv.ParseUint(m[1], 10, 64); err != nil {
		t.Fatal(err)
	}
	return m[1]
}
