package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/poiesic/tutorder/core"
	"github.com/poiesic/tutorder/storage/sqldb"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp(&out)
	app.ExitErrHandler = func(*cli.Context, error) {}
	err := app.Run(append([]string{"tutorder", "--log-level", "error"}, args...))
	return out.String(), err
}

func seedDatabase(t *testing.T, texts ...string) string {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "orders.db")
	store, err := sqldb.Open(context.Background(), dsn)
	require.NoError(t, err)
	defer store.Close()

	repo := sqldb.NewOrderRepository(store)
	records := make([]*core.OrderRecord, len(texts))
	for i, text := range texts {
		records[i] = &core.OrderRecord{BatchID: "0314092653-abc123", OriginalText: text}
	}
	require.NoError(t, repo.Insert(context.Background(), records...))
	return dsn
}

func TestDedupAndBatches(t *testing.T) {
	t.Setenv("DEEPSEEK_API_KEY", "")
	dsn := seedDatabase(t, "A", "A", "B")
	exports := t.TempDir()

	out, err := run(t, "--db", dsn, "--exports", exports, "dedup")
	require.NoError(t, err)
	assert.Contains(t, out, "removed 1 duplicate orders")

	out, err = run(t, "--db", dsn, "--exports", exports, "batches")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "BATCH"))
	assert.Contains(t, lines[1], "0314092653-abc123")
	assert.Contains(t, lines[1], " 2 ")
}

func TestIngest_RequiresAPIKey(t *testing.T) {
	t.Setenv("DEEPSEEK_API_KEY", "")
	dsn := filepath.Join(t.TempDir(), "orders.db")

	_, err := run(t, "--db", dsn, "--exports", t.TempDir(), "ingest", "一单")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "APIKey")

	_, err = run(t, "--db", dsn, "--exports", t.TempDir(), "ingest")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}

func TestCommute_RequiresMapsKey(t *testing.T) {
	t.Setenv("GOOGLE_MAPS_API_KEY", "")
	dsn := filepath.Join(t.TempDir(), "orders.db")

	_, err := run(t, "--db", dsn, "--exports", t.TempDir(), "commute", "--table", "x.xlsx", "--target", "北京站")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maps services not configured")
}

func TestConfigCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tutorder.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server]\naddr = \":9090\"\n"), 0o600))

	out, err := run(t, "--config", path, "--api-key", "secret", "config")
	require.NoError(t, err)
	assert.Contains(t, out, ":9090")
	assert.NotContains(t, out, "secret")
}

func TestSetupLogger(t *testing.T) {
	originalLogger := slog.Default()
	defer slog.SetDefault(originalLogger)

	for _, level := range []string{"debug", "INFO", "WaRn", "error"} {
		t.Run(level, func(t *testing.T) {
			app := &cli.App{
				Name:   "test",
				Flags:  []cli.Flag{&cli.StringFlag{Name: "log-level", Value: "info"}},
				Before: setupLogger,
				Action: func(c *cli.Context) error { return nil },
			}
			require.NoError(t, app.Run([]string{"test", "--log-level", level}))
		})
	}

	t.Run("invalid", func(t *testing.T) {
		app := &cli.App{
			Name:   "test",
			Flags:  []cli.Flag{&cli.StringFlag{Name: "log-level", Value: "info"}},
			Before: setupLogger,
			Action: func(c *cli.Context) error { return nil },
		}
		err := app.Run([]string{"test", "--log-level", "verbose"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})
}
