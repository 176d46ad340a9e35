package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"bibliotech/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()

	seedPath := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(seedPath, []byte(`
categorias: [Romance]
autores:
  - nome: Rachel de Queiroz
livros:
  - titulo: O Quinze
    isbn: "9788503012041"
    autor: Rachel de Queiroz
    categoria: Romance
    exemplares: 3
`), 0o600))

	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(fmt.Sprintf(`
database:
  driver: sqlite3
  path: %q
auth:
  jwt_secret: "cli-test-secret-0123456789"
logging:
  level: error
catalog:
  seed_path: %q
backup:
  storage_path: %q
exports:
  path: %q
`, filepath.Join(dir, "bibliotech.db"), seedPath, filepath.Join(dir, "backups"), filepath.Join(dir, "exports"))), 0o600))

	return configPath, dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestMigrateAndSeed(t *testing.T) {
	configPath, _ := writeTestConfig(t)

	out, err := execute(t, "--config", configPath, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "schema up to date (sqlite3)")

	out, err = execute(t, "--config", configPath, "seed")
	require.NoError(t, err)
	assert.Equal(t, "categories=1 authors=1 books=1 skipped=0\n", out)

	out, err = execute(t, "--config", configPath, "--json", "seed")
	require.NoError(t, err)
	var res struct {
		Books   int `json:"livros"`
		Skipped int `json:"ignorados"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 0, res.Books)
	assert.Equal(t, 1, res.Skipped)
}

func TestSweepExportBackup(t *testing.T) {
	configPath, dir := writeTestConfig(t)

	out, err := execute(t, "--config", configPath, "sweep")
	require.NoError(t, err)
	assert.Equal(t, "expired=0 promoted=0\n", out)

	today := time.Now().UTC().Format(time.DateOnly)
	out, err = execute(t, "--config", configPath, "export", "--de", today, "--ate", today)
	require.NoError(t, err)
	path := strings.TrimSpace(out)
	assert.True(t, strings.HasPrefix(path, filepath.Join(dir, "exports")))
	assert.Equal(t, "reservas_"+today+"_a_"+today+".xlsx", filepath.Base(path))
	_, err = os.Stat(path)
	assert.NoError(t, err)

	out, err = execute(t, "--config", configPath, "backup", "--cleanup")
	require.NoError(t, err)
	assert.NotEmpty(t, strings.TrimSpace(out))
	entries, err := os.ReadDir(filepath.Join(dir, "backups"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestCommandErrors(t *testing.T) {
	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "migrate")
	assert.Error(t, err)

	configPath, _ := writeTestConfig(t)
	_, err = execute(t, "--config", configPath, "export", "--de", "ontem")
	assert.Error(t, err)

	_, err = execute(t, "--config", configPath, "export", "--de", "2026-05-10", "--ate", "2026-05-01")
	assert.ErrorIs(t, err, service.ErrValidation)

	_, err = execute(t, "--config", configPath, "seed", "--file", filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
