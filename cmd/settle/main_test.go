package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"settle/internal/report"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func setupMemoryEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "ledger.csv", "period,name,amount\n1,Alice,10\n1,Bob,-4\n1,Carol,-6\n2,A,5\n2,B,-4.99\n")
	writeFile(t, dir, "handles.csv", "name,handle\nBob,@bob-pays\n")
	t.Setenv("DATA_BACKEND", "memory")
	t.Setenv("DATA_DIRECTORY", dir)
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("AMQP_URL", "")
	t.Setenv("SYNC_INTERVAL", "")
	return dir
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var out, errb bytes.Buffer
	code := run(context.Background(), args, &out, &errb)
	return code, out.String(), errb.String()
}

func TestSettleLines(t *testing.T) {
	setupMemoryEnv(t)

	code, out, stderr := runCLI(t, "-week", "1")
	require.Equal(t, exitOK, code, stderr)
	assert.Equal(t, "Alice requests $4.00 from Bob (@bob-pays)\nAlice requests $6.00 from Carol\n", out)
}

func TestSettleJSON(t *testing.T) {
	setupMemoryEnv(t)

	code, out, stderr := runCLI(t, "-week", "1", "-json")
	require.Equal(t, exitOK, code, stderr)

	var rep report.Report
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Len(t, rep.Payments, 2)
	assert.Equal(t, int64(1000), rep.TotalCents)
}

func TestSettleErrorsExitCodes(t *testing.T) {
	setupMemoryEnv(t)

	code, _, stderr := runCLI(t)
	assert.Equal(t, exitImbalanced, code, "latest week is imbalanced")
	assert.Contains(t, stderr, "imbalanced ledger")

	code, _, _ = runCLI(t, "-week", "9")
	assert.Equal(t, exitNotFound, code)

	code, _, _ = runCLI(t, "-bogus")
	assert.Equal(t, exitUsage, code)

	code, _, stderr = runCLI(t, "-publish")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "AMQP_URL")
}

func TestPeriods(t *testing.T) {
	setupMemoryEnv(t)

	code, out, _ := runCLI(t, "periods")
	require.Equal(t, exitOK, code)
	assert.Equal(t, "1\n2\n", out)
}

func TestImportThenSettleFromSQLite(t *testing.T) {
	dir := setupMemoryEnv(t)
	t.Setenv("SQLITE_DB_PATH", filepath.Join(dir, "db", "settle.db"))
	ledger := writeFile(t, dir, "week7.csv", "name,amount\nAlice,7\nBob,5\nCarol,-6\nDan,-6\n")
	handles := writeFile(t, dir, "h.csv", "Dan,dan\n")

	code, out, stderr := runCLI(t, "import", "-week", "7", "-file", ledger, "-handles", handles)
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, out, "imported 4 participants into week 7 (1 handles)")

	t.Setenv("DATA_BACKEND", "sqlite")
	code, out, stderr = runCLI(t)
	require.Equal(t, exitOK, code, stderr)
	assert.Equal(t,
		"Alice requests $6.00 from Carol\n"+
			"Alice requests $1.00 from Dan (@dan)\n"+
			"Bob requests $5.00 from Dan (@dan)\n", out)
}

func TestImportUsage(t *testing.T) {
	setupMemoryEnv(t)

	code, _, _ := runCLI(t, "import", "-file", "x.csv")
	assert.Equal(t, exitUsage, code)

	code, _, _ = runCLI(t, "import", "-week", "1", "-file", filepath.Join(t.TempDir(), "missing.csv"))
	assert.Equal(t, exitError, code)
}

func TestImportMissingHandlesFile(t *testing.T) {
	dir := setupMemoryEnv(t)
	t.Setenv("SQLITE_DB_PATH", filepath.Join(dir, "db", "settle.db"))
	ledger := writeFile(t, dir, "week3.csv", "Alice,1\nBob,-1\n")

	code, _, stderr := runCLI(t, "import", "-week", "3", "-file", ledger, "-handles", filepath.Join(dir, "nope.csv"))
	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr, "nope.csv")
}

func TestSyncNeedsSpreadsheet(t *testing.T) {
	setupMemoryEnv(t)
	t.Setenv("GOOGLE_SPREADSHEET_ID", "")

	code, _, stderr := runCLI(t, "sync")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "GOOGLE_SPREADSHEET_ID")
}
