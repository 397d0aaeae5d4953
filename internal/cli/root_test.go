package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/billbuddy/internal/auth"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "billbuddy", cmd.Use)
	assert.Contains(t, cmd.Long, "Migrations run before every command")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"migrate"},
		{"customer", "add"}, {"customer", "rename"}, {"customer", "delete"}, {"customer", "list"},
		{"bill", "add"}, {"bill", "delete"},
		{"payment", "add"}, {"payment", "delete"},
		{"item", "add"}, {"item", "delete"}, {"item", "list"},
		{"statement"}, {"balances"},
		{"bin", "list"}, {"bin", "restore"}, {"bin", "purge"}, {"bin", "clear"},
		{"queue", "list"}, {"queue", "drain"},
		{"sync"},
		{"backup", "export"}, {"backup", "import"},
		{"token"},
	}

	for _, path := range commands {
		name := strings.Join(path, " ")
		t.Run(name, func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err, "Command %s should exist", name)
			require.NotNil(t, subCmd)
			assert.Equal(t, path[len(path)-1], subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	dbFlag := cmd.PersistentFlags().Lookup("db")
	require.NotNil(t, dbFlag)
	assert.Equal(t, "", dbFlag.DefValue)
}

func TestBillAddFlags(t *testing.T) {
	cmd := NewRootCommand()
	addCmd, _, err := cmd.Find([]string{"bill", "add"})
	require.NoError(t, err)

	for _, name := range []string{"customer", "date", "particulars", "line"} {
		assert.NotNil(t, addCmd.Flags().Lookup(name), "flag %s", name)
	}
}

func TestBackupExportFlags(t *testing.T) {
	cmd := NewRootCommand()
	exportCmd, _, err := cmd.Find([]string{"backup", "export"})
	require.NoError(t, err)

	outputFlag := exportCmd.Flags().Lookup("output")
	require.NotNil(t, outputFlag)
	assert.Equal(t, "o", outputFlag.Shorthand)
}

func TestParseLine(t *testing.T) {
	line, err := parseLine("Cement:2:350")
	require.NoError(t, err)
	assert.Equal(t, "Cement", line.Name)
	assert.Equal(t, "2", line.Quantity.String())
	require.NotNil(t, line.Rate)
	assert.Equal(t, "350", line.Rate.String())

	line, err = parseLine("Cement:2")
	require.NoError(t, err)
	assert.Nil(t, line.Rate)

	for _, bad := range []string{"Cement", "Cement:two", "a:1:2:3", "Cement:1:x"} {
		_, err := parseLine(bad)
		assert.Error(t, err, bad)
	}
}

// cli runs the command tree against an isolated home and database.
type cli struct {
	t  *testing.T
	db string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("BILLBUDDY_CONFIG", "")
	t.Setenv("BILLBUDDY_LOG_LEVEL", "error")
	return &cli{t: t, db: filepath.Join(home, "billbuddy.db")}
}

func (c *cli) run(args ...string) (string, error) {
	c.t.Helper()
	opts := &RootOptions{}
	cmd := newRootCommand(opts)
	defer opts.close()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--db", c.db}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (c *cli) ok(args ...string) string {
	c.t.Helper()
	out, err := c.run(args...)
	require.NoError(c.t, err, out)
	return out
}

func TestCLI_LedgerFlow(t *testing.T) {
	c := newCLI(t)

	out := c.ok("customer", "add", "Asha")
	assert.Contains(t, out, `Customer "Asha" added`)

	out = c.ok("bill", "add", "--customer", "Asha", "--date", "2024-01-10",
		"--line", "Cement:2:350", "--line", "Sand:1:120.50")
	assert.Contains(t, out, "for Asha: 820.50")

	out = c.ok("payment", "add", "--customer", "Asha", "--amount", "500", "--date", "2024-02-05")
	assert.Contains(t, out, "Payment of 500.00 from Asha recorded")

	out = c.ok("balances")
	assert.Contains(t, out, "Total outstanding 320.50")

	out = c.ok("statement", "Asha")
	assert.Contains(t, out, "outstanding 320.50")
	assert.Contains(t, out, "Jan 2024")
	assert.Contains(t, out, "Feb 2024")

	var res struct {
		Success bool `json:"success"`
		Data    []struct {
			CustomerName string `json:"CustomerName"`
		} `json:"data"`
	}
	out = c.ok("--format", "json", "balances")
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.Success)
	require.Len(t, res.Data, 1)
	assert.Equal(t, "Asha", res.Data[0].CustomerName)

	// Without a remote everything stays local.
	out = c.ok("queue", "list")
	assert.Contains(t, out, "0 operation(s) queued")
}

func TestCLI_RefusedOperationExitsWithFailure(t *testing.T) {
	c := newCLI(t)
	c.ok("customer", "add", "Asha")

	out, err := c.run("customer", "add", "Asha")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [DUPLICATE_NAME]")

	out, err = c.run("statement", "Nobody")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [NOT_FOUND]")
}

func TestCLI_DeleteAndRestore(t *testing.T) {
	c := newCLI(t)
	c.ok("customer", "add", "Asha")
	c.ok("customer", "delete", "Asha")

	out := c.ok("customer", "list")
	assert.NotContains(t, out, "Asha")

	var res struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	out = c.ok("--format", "json", "bin", "list")
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res.Data, 1)

	out = c.ok("bin", "restore", res.Data[0].ID)
	assert.Contains(t, out, "Restored")

	out = c.ok("customer", "list")
	assert.Contains(t, out, "Asha")
}

func TestCLI_BackupRoundTrip(t *testing.T) {
	c := newCLI(t)
	c.ok("customer", "add", "Asha")

	path := filepath.Join(t.TempDir(), "backup.json")
	c.ok("backup", "export", "-o", path)

	other := &cli{t: t, db: filepath.Join(t.TempDir(), "other.db")}
	out := other.ok("backup", "import", path)
	assert.Contains(t, out, "Imported 1 customer(s)")

	// A damaged backup leaves the database as it was.
	require.NoError(t, os.WriteFile(path, []byte(`{"format":"nope"}`), 0o600))
	out, err := other.run("backup", "import", path)
	require.Error(t, err)
	assert.Contains(t, out, "Error [DATA_INCONSISTENCY]")
	assert.Contains(t, other.ok("customer", "list"), "Asha")
}

func TestCLI_SyncWithoutRemote(t *testing.T) {
	c := newCLI(t)

	out, err := c.run("sync")
	require.Error(t, err)
	assert.Contains(t, out, "Error [VALIDATION]")
}

func TestCLI_Token(t *testing.T) {
	c := newCLI(t)

	_, err := c.run("token", "--user", "user-1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	t.Setenv("BILLBUDDY_SERVER_JWT_SECRET", "test-secret")
	out := c.ok("token", "--user", "user-1", "--device", "phone")

	claims, err := auth.NewJWTManager("test-secret", time.Hour).Validate(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "phone", claims.Device)
}

func TestCLI_InvalidFormat(t *testing.T) {
	c := newCLI(t)

	_, err := c.run("--format", "yaml", "balances")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}
