package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"spendwise/internal/config"
	"spendwise/internal/log"
)

func TestLoadEnvFile(t *testing.T) {
	if err := LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("LoadEnvFile(missing) error = %v", err)
	}

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("SPENDWISE_TEST_KEY=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SPENDWISE_TEST_KEY", "")
	os.Unsetenv("SPENDWISE_TEST_KEY")
	if err := LoadEnvFile(path); err != nil {
		t.Fatalf("LoadEnvFile() error = %v", err)
	}
	if got := os.Getenv("SPENDWISE_TEST_KEY"); got != "from-file" {
		t.Errorf("SPENDWISE_TEST_KEY = %q", got)
	}
}

func TestOpenAndNewTracker(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{
		StateBackend:            config.StateSQLite,
		SQLiteDBPath:            filepath.Join(t.TempDir(), "spendwise.db"),
		SyncBackend:             config.SyncMemory,
		SyncBatchSize:           10,
		LoanAdvanceMode:         "silent",
		SettingsPasswordDefault: "pw",
		Timezone:                "UTC",
	}

	be, err := Open(ctx, cfg, log.Nop(), false)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer be.Cleanup()

	tr, err := NewTracker(ctx, cfg, log.Nop(), be)
	if err != nil {
		t.Fatalf("NewTracker() error = %v", err)
	}
	defer tr.Close()
	if !tr.VerifyPassword("pw") {
		t.Error("default password from config not applied")
	}
}
