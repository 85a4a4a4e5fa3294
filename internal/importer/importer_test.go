package importer

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"devsync/internal"
	"devsync/internal/config"
	"devsync/internal/logging"
	"devsync/internal/storage"
)

const devicesCSV = `1,"Printer A","Lobby unit",PRT1234,2030-03-01 10:00:00,enabled
2,"Old kiosk",KSK0002,2020-01-01 00:00:00,enabled
3,"Dup",PRT1234,2030-03-01 10:00:00
,"no id",ABCD9999,2030-01-01 00:00:00
42,"Screen","Hall",SCR0042,2030-01-01 23:59:66,deleted`

const contentCSV = `101,"Menu","Today",42,2030-05-01 08:00:00,enabled
102,"Promo",99,2030-05-01 08:00:00,enabled
103,"Stale",42,2001-05-01 08:00:00,enabled`

type fixture struct {
	ctx context.Context
	dir string
	db  *storage.DB
	svc *Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	tmp := t.TempDir()
	in := filepath.Join(tmp, "import")
	if err := os.MkdirAll(in, 0o755); err != nil {
		t.Fatal(err)
	}

	db, err := storage.Open(filepath.Join(tmp, "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	cfg := config.Config{
		DBPath:              filepath.Join(tmp, "app.db"),
		ImportDir:           in,
		ArchiveDir:          filepath.Join(tmp, "raw"),
		OutputDir:           filepath.Join(tmp, "out"),
		ImportDelimiter:     ",",
		ImportDeviceFile:    "devices.csv",
		ImportContentFile:   "content.csv",
		ListenerIntervalSec: 1,
	}
	svc := NewService(db, cfg, logging.New(io.Discard, "debug", "text"))
	svc.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

	return fixture{ctx: context.Background(), dir: in, db: db, svc: svc}
}

func (f fixture) write(t *testing.T, name string, data []byte) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(f.dir, name), data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestRunImportsDevicesThenContent(t *testing.T) {
	f := newFixture(t)
	f.write(t, "devices.csv", []byte(devicesCSV))
	f.write(t, "content.csv", []byte(contentCSV))

	res, err := f.svc.Run(f.ctx, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(res.Runs))
	}

	dev := res.Runs[0]
	if dev.Family != internal.FamilyDevice || dev.Status != internal.RunOK {
		t.Fatalf("unexpected device run %+v", dev)
	}
	if dev.Total != 5 || dev.Accepted != 3 || dev.Discarded != 2 || dev.Stored != 3 {
		t.Fatalf("unexpected device counts %+v", dev)
	}

	devices, err := f.db.ListDevices(f.ctx)
	if err != nil {
		t.Fatal(err)
	}
	states := map[string]internal.RecordState{}
	for _, d := range devices {
		states[d.Code] = d.State
	}
	if states["PRT1234"] != internal.StateEnabled {
		t.Errorf("PRT1234 = %s", states["PRT1234"])
	}
	if states["KSK0002"] != internal.StateDisabled {
		t.Errorf("expired device should be disabled, got %s", states["KSK0002"])
	}
	if states["SCR0042"] != internal.StateDeleted {
		t.Errorf("SCR0042 = %s", states["SCR0042"])
	}

	content := res.Runs[1]
	if content.Accepted != 3 || content.Stored != 2 || content.Skipped != 1 {
		t.Fatalf("unexpected content counts %+v", content)
	}

	discards, err := f.db.GetDiscards(f.ctx, dev.RunID)
	if err != nil {
		t.Fatal(err)
	}
	if len(discards) != 2 || discards[0].LineNo != 3 || discards[1].LineNo != 4 {
		t.Fatalf("unexpected discards %+v", discards)
	}
	if discards[0].RawLine == "" || discards[0].Reason == "" {
		t.Fatalf("discard trail must keep reason and raw line: %+v", discards[0])
	}

	rows, err := f.db.ListContents(f.ctx)
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range rows {
		if c.ExternalID == 103 && c.State != internal.StateDisabled {
			t.Errorf("expired content should be disabled, got %s", c.State)
		}
	}
}

func TestRunRecordsFailedRunForUndecodableExport(t *testing.T) {
	f := newFixture(t)
	f.write(t, "devices.csv", []byte{'1', ',', 0xC3, 0x28})

	res, err := f.svc.Run(f.ctx, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Runs) != 1 {
		t.Fatalf("expected only the device run, got %+v", res.Runs)
	}
	run := res.Runs[0]
	if run.Status != internal.RunFailed || run.Error == "" || run.SourceHash == "" {
		t.Fatalf("expected failed run, got %+v", run)
	}

	stored, err := f.db.MustRun(f.ctx, run.RunID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != internal.RunFailed {
		t.Fatalf("stored status = %s", stored.Status)
	}
}

func TestRunEmptyExportIsNotAFailure(t *testing.T) {
	f := newFixture(t)
	f.write(t, "devices.csv", []byte("garbage\nmore garbage"))

	res, err := f.svc.Run(f.ctx, Options{})
	if err != nil {
		t.Fatal(err)
	}
	run := res.Runs[0]
	if run.Status != internal.RunOK || run.Accepted != 0 || run.Discarded != 2 {
		t.Fatalf("unexpected run %+v", run)
	}
}

func TestRunSkipUnchanged(t *testing.T) {
	f := newFixture(t)
	f.write(t, "devices.csv", []byte(devicesCSV))

	first, err := f.svc.Run(f.ctx, Options{SkipUnchanged: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(first.Runs) != 1 {
		t.Fatalf("first run: %+v", first.Runs)
	}

	second, err := f.svc.Run(f.ctx, Options{SkipUnchanged: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(second.Runs) != 0 {
		t.Fatalf("unchanged export should be skipped, got %+v", second.Runs)
	}

	forced, err := f.svc.Run(f.ctx, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(forced.Runs) != 1 {
		t.Fatalf("explicit run should import again, got %+v", forced.Runs)
	}
}

func TestResolvePrecedence(t *testing.T) {
	f := newFixture(t)

	dir, delim, err := f.svc.Resolve(f.ctx, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if dir != f.dir || delim != "," {
		t.Fatalf("config defaults not used: %q %q", dir, delim)
	}

	if err := f.db.SetSetting(f.ctx, SettingImportDelimiter, ";"); err != nil {
		t.Fatal(err)
	}
	if err := f.db.SetSetting(f.ctx, SettingImportPath, "/srv/ftp"); err != nil {
		t.Fatal(err)
	}
	dir, delim, err = f.svc.Resolve(f.ctx, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if dir != "/srv/ftp" || delim != ";" {
		t.Fatalf("settings not applied: %q %q", dir, delim)
	}

	dir, delim, err = f.svc.Resolve(f.ctx, Options{Dir: "/tmp/x", Delimiter: "|"})
	if err != nil {
		t.Fatal(err)
	}
	if dir != "/tmp/x" || delim != "|" {
		t.Fatalf("options not applied: %q %q", dir, delim)
	}

	if _, _, err := f.svc.Resolve(f.ctx, Options{Delimiter: ";;"}); err == nil {
		t.Fatal("expected invalid delimiter error")
	}
}

func TestRunSemicolonFromSettings(t *testing.T) {
	f := newFixture(t)
	if err := f.db.SetSetting(f.ctx, SettingImportDelimiter, ";"); err != nil {
		t.Fatal(err)
	}
	f.write(t, "devices.csv", []byte(`7;"Panel";PNL0007;2030-01-01 00:00:00;enabled`))

	res, err := f.svc.Run(f.ctx, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Delimiter != ";" || res.Runs[0].Stored != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestExportReport(t *testing.T) {
	f := newFixture(t)
	f.write(t, "devices.csv", []byte(devicesCSV))

	res, err := f.svc.Run(f.ctx, Options{})
	if err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(t.TempDir(), "reports", "run.xlsx")
	run, discards, err := f.svc.ExportRun(f.ctx, res.Runs[0].RunID, out)
	if err != nil {
		t.Fatal(err)
	}
	if run.RunID != res.Runs[0].RunID || discards != 2 {
		t.Fatalf("unexpected export %+v %d", run, discards)
	}

	wb, err := excelize.OpenFile(out)
	if err != nil {
		t.Fatal(err)
	}
	defer wb.Close()

	runRows, err := wb.GetRows(runsSheet)
	if err != nil {
		t.Fatal(err)
	}
	if len(runRows) != 2 || runRows[1][0] != run.RunID {
		t.Fatalf("unexpected runs sheet %v", runRows)
	}
	discardRows, err := wb.GetRows(discardsSheet)
	if err != nil {
		t.Fatal(err)
	}
	if len(discardRows) != 3 || discardRows[1][1] != "3" {
		t.Fatalf("unexpected discards sheet %v", discardRows)
	}

	if _, _, err := f.svc.ExportRun(f.ctx, "missing", out); err == nil {
		t.Fatal("expected error for unknown run")
	}
}

func TestApplyDeviceExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	records := []internal.DeviceRecord{
		{Code: "PAST", ExpireDate: now.Add(-time.Second), State: internal.StateDeleted},
		{Code: "EXACT", ExpireDate: now, State: internal.StateEnabled},
		{Code: "FUTURE", ExpireDate: now.Add(time.Hour), State: internal.StateDeleted},
	}
	got := ApplyDeviceExpiry(records, now)
	want := []internal.RecordState{internal.StateDisabled, internal.StateEnabled, internal.StateDeleted}
	for i := range got {
		if got[i].State != want[i] {
			t.Errorf("%s: state = %s, want %s", got[i].Code, got[i].State, want[i])
		}
	}
	if records[0].State != internal.StateDeleted {
		t.Fatal("input must not be modified")
	}
}

func TestWallClock(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	got := wallClock(time.Date(2026, 1, 1, 10, 30, 15, 999, loc))
	if got.Location() != time.UTC || got.Hour() != 10 || got.Nanosecond() != 0 {
		t.Fatalf("wallClock = %v", got)
	}
}

func TestRunSkipUnchangedFailedExport(t *testing.T) {
	f := newFixture(t)
	f.write(t, "devices.csv", []byte{0xFF, 0xFF, 0xC3})

	for i := 0; i < 2; i++ {
		if _, err := f.svc.Run(f.ctx, Options{SkipUnchanged: true}); err != nil {
			t.Fatal(err)
		}
	}
	runs, err := f.db.ListRuns(f.ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Status != internal.RunFailed {
		t.Fatalf("a broken export should fail once, got %+v", runs)
	}
}
