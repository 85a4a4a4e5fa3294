package listener

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"devsync/internal/config"
	"devsync/internal/logging"
	"devsync/internal/storage"
)

func TestRunCycleImportsOnceAndExports(t *testing.T) {
	tmp := t.TempDir()
	in := filepath.Join(tmp, "import")
	if err := os.MkdirAll(in, 0o755); err != nil {
		t.Fatal(err)
	}
	line := `1,"Printer A","Lobby unit",PRT1234,2030-03-01 10:00:00,enabled`
	if err := os.WriteFile(filepath.Join(in, "devices.csv"), []byte(line), 0o644); err != nil {
		t.Fatal(err)
	}

	db, err := storage.Open(filepath.Join(tmp, "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	cfg := config.Config{
		ImportDir:           in,
		ArchiveDir:          filepath.Join(tmp, "raw"),
		OutputDir:           filepath.Join(tmp, "out"),
		ImportDelimiter:     ",",
		ImportDeviceFile:    "devices.csv",
		ImportContentFile:   "content.csv",
		ListenerIntervalSec: 1,
		ListenerAutoExport:  true,
	}
	svc := NewService(db, cfg, logging.New(io.Discard, "debug", "text"))
	ctx := context.Background()

	if err := svc.runCycle(ctx); err != nil {
		t.Fatal(err)
	}
	if err := svc.runCycle(ctx); err != nil {
		t.Fatal(err)
	}

	runs, err := db.ListRuns(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Fatalf("unchanged export must be imported once, got %d runs", len(runs))
	}

	reports, err := filepath.Glob(filepath.Join(tmp, "out", "listener", "*.xlsx"))
	if err != nil {
		t.Fatal(err)
	}
	if len(reports) != 1 {
		t.Fatalf("expected one report, got %v", reports)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	tmp := t.TempDir()
	db, err := storage.Open(filepath.Join(tmp, "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	cfg := config.Config{
		ImportDir:           tmp,
		ArchiveDir:          filepath.Join(tmp, "raw"),
		ImportDelimiter:     ",",
		ImportDeviceFile:    "devices.csv",
		ListenerIntervalSec: 60,
	}
	svc := NewService(db, cfg, logging.New(io.Discard, "info", "text"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("listener did not stop after cancel")
	}
}
