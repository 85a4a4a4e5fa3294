package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"devsync/internal"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS devices (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  external_id INTEGER NOT NULL,
  code TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  expire_date TEXT NOT NULL,
  state TEXT NOT NULL DEFAULT 'enabled',
  updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_devices_external_id ON devices(external_id);

CREATE TABLE IF NOT EXISTS contents (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  external_id INTEGER NOT NULL,
  device_id INTEGER NOT NULL,
  device_external_id INTEGER NOT NULL,
  name TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  expire_date TEXT NOT NULL,
  state TEXT NOT NULL DEFAULT 'enabled',
  updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(external_id, device_external_id),
  FOREIGN KEY(device_id) REFERENCES devices(id)
);

CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  run_id TEXT NOT NULL UNIQUE,
  family TEXT NOT NULL,
  source_path TEXT NOT NULL,
  source_hash TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL,
  error TEXT NOT NULL DEFAULT '',
  total INTEGER NOT NULL DEFAULT 0,
  accepted INTEGER NOT NULL DEFAULT 0,
  discarded INTEGER NOT NULL DEFAULT 0,
  truncated INTEGER NOT NULL DEFAULT 0,
  stored INTEGER NOT NULL DEFAULT 0,
  skipped INTEGER NOT NULL DEFAULT 0,
  created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_runs_source_hash ON runs(family, source_hash);

CREATE TABLE IF NOT EXISTS discards (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  run_id TEXT NOT NULL,
  line_no INTEGER NOT NULL,
  reason TEXT NOT NULL,
  raw_line TEXT NOT NULL,
  FOREIGN KEY(run_id) REFERENCES runs(run_id)
);
CREATE INDEX IF NOT EXISTS idx_discards_run_id ON discards(run_id);

CREATE TABLE IF NOT EXISTS settings (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

// inTx runs fn in one transaction, committing only if fn succeeds.
func (d *DB) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// UpsertDevices writes devices keyed by code. A device whose code is already
// stored is updated in place.
func (d *DB) UpsertDevices(ctx context.Context, devices []internal.DeviceRecord) (int, error) {
	var n int
	err := d.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		n, err = upsertDevices(ctx, tx, devices)
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func upsertDevices(ctx context.Context, tx *sql.Tx, devices []internal.DeviceRecord) (int, error) {
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO devices (external_id, code, name, description, expire_date, state, updated_at)
VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(code) DO UPDATE SET
  external_id=excluded.external_id,
  name=excluded.name,
  description=excluded.description,
  expire_date=excluded.expire_date,
  state=excluded.state,
  updated_at=CURRENT_TIMESTAMP
`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, dev := range devices {
		if _, err := stmt.ExecContext(ctx,
			dev.ID, dev.Code, dev.Name, dev.Description, dev.ExpireDateString(), string(dev.State),
		); err != nil {
			return 0, fmt.Errorf("upsert device %s: %w", dev.Code, err)
		}
	}
	return len(devices), nil
}

// UpsertContents writes contents keyed by (external id, device external id).
// Content whose device is not stored is skipped; the second return value
// counts those rows.
func (d *DB) UpsertContents(ctx context.Context, contents []internal.ContentRecord) (int, int, error) {
	var stored, skipped int
	err := d.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		stored, skipped, err = upsertContents(ctx, tx, contents)
		return err
	})
	if err != nil {
		return 0, 0, err
	}
	return stored, skipped, nil
}

func upsertContents(ctx context.Context, tx *sql.Tx, contents []internal.ContentRecord) (int, int, error) {
	lookup, err := tx.PrepareContext(ctx, `SELECT id FROM devices WHERE external_id = ? ORDER BY id DESC LIMIT 1`)
	if err != nil {
		return 0, 0, err
	}
	defer lookup.Close()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO contents (external_id, device_id, device_external_id, name, description, expire_date, state, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(external_id, device_external_id) DO UPDATE SET
  device_id=excluded.device_id,
  name=excluded.name,
  description=excluded.description,
  expire_date=excluded.expire_date,
  state=excluded.state,
  updated_at=CURRENT_TIMESTAMP
`)
	if err != nil {
		return 0, 0, err
	}
	defer stmt.Close()

	stored, skipped := 0, 0
	for _, c := range contents {
		var deviceID int64
		err := lookup.QueryRowContext(ctx, c.DeviceExternalID).Scan(&deviceID)
		if errors.Is(err, sql.ErrNoRows) {
			skipped++
			continue
		}
		if err != nil {
			return 0, 0, err
		}
		if _, err := stmt.ExecContext(ctx,
			c.ID, deviceID, c.DeviceExternalID, c.Name, c.Description, c.ExpireDateString(), string(c.State),
		); err != nil {
			return 0, 0, fmt.Errorf("upsert content %d: %w", c.ID, err)
		}
		stored++
	}
	return stored, skipped, nil
}

func (d *DB) ListDevices(ctx context.Context) ([]internal.StoredDevice, error) {
	rows, err := d.conn.QueryContext(ctx, `
SELECT id, external_id, code, name, description, expire_date, state
FROM devices ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.StoredDevice
	for rows.Next() {
		var row internal.StoredDevice
		if err := rows.Scan(&row.ID, &row.ExternalID, &row.Code, &row.Name, &row.Description, &row.ExpireDate, &row.State); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) ListContents(ctx context.Context) ([]internal.StoredContent, error) {
	rows, err := d.conn.QueryContext(ctx, `
SELECT id, external_id, device_id, device_external_id, name, description, expire_date, state
FROM contents ORDER BY device_external_id, external_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.StoredContent
	for rows.Next() {
		var row internal.StoredContent
		if err := rows.Scan(&row.ID, &row.ExternalID, &row.DeviceID, &row.DeviceExternalID, &row.Name, &row.Description, &row.ExpireDate, &row.State); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Batch is what one imported export writes: its cleaned records, the run
// row and the discard trail. Only the slice matching Run.Family is used.
type Batch struct {
	Run      internal.RunRow
	Devices  []internal.DeviceRecord
	Contents []internal.ContentRecord
	Discards []internal.DiscardRow
}

// RecordImport writes a batch in a single transaction and returns the run
// with Stored and Skipped filled in. On error nothing from the batch is kept,
// so a run row never exists without its records and discards.
func (d *DB) RecordImport(ctx context.Context, b Batch) (internal.RunRow, error) {
	run := b.Run
	err := d.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		switch run.Family {
		case internal.FamilyDevice:
			run.Stored, err = upsertDevices(ctx, tx, b.Devices)
		case internal.FamilyContent:
			run.Stored, run.Skipped, err = upsertContents(ctx, tx, b.Contents)
		default:
			err = fmt.Errorf("unknown record family %q", run.Family)
		}
		if err != nil {
			return err
		}
		if err := insertRun(ctx, tx, run); err != nil {
			return err
		}
		return insertDiscards(ctx, tx, b.Discards)
	})
	if err != nil {
		return b.Run, err
	}
	return run, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (d *DB) InsertRun(ctx context.Context, run internal.RunRow) error {
	return insertRun(ctx, d.conn, run)
}

func insertRun(ctx context.Context, e execer, run internal.RunRow) error {
	_, err := e.ExecContext(ctx, `
INSERT INTO runs (run_id, family, source_path, source_hash, status, error, total, accepted, discarded, truncated, stored, skipped)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, run.RunID, string(run.Family), run.SourcePath, run.SourceHash, string(run.Status), run.Error,
		run.Total, run.Accepted, run.Discarded, run.Truncated, run.Stored, run.Skipped)
	return err
}

func (d *DB) InsertDiscards(ctx context.Context, discards []internal.DiscardRow) error {
	if len(discards) == 0 {
		return nil
	}
	return d.inTx(ctx, func(tx *sql.Tx) error {
		return insertDiscards(ctx, tx, discards)
	})
}

func insertDiscards(ctx context.Context, tx *sql.Tx, discards []internal.DiscardRow) error {
	if len(discards) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO discards (run_id, line_no, reason, raw_line) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, row := range discards {
		if _, err := stmt.ExecContext(ctx, row.RunID, row.LineNo, row.Reason, row.RawLine); err != nil {
			return err
		}
	}
	return nil
}

const runColumns = `id, run_id, family, source_path, source_hash, status, error,
  total, accepted, discarded, truncated, stored, skipped, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(s rowScanner) (internal.RunRow, error) {
	var row internal.RunRow
	var family, status string
	err := s.Scan(&row.ID, &row.RunID, &family, &row.SourcePath, &row.SourceHash, &status, &row.Error,
		&row.Total, &row.Accepted, &row.Discarded, &row.Truncated, &row.Stored, &row.Skipped, &row.CreatedAt)
	row.Family = internal.RecordFamily(family)
	row.Status = internal.RunStatus(status)
	return row, err
}

func (d *DB) GetRun(ctx context.Context, runID string) (*internal.RunRow, error) {
	row, err := scanRun(d.conn.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) MustRun(ctx context.Context, runID string) (internal.RunRow, error) {
	row, err := d.GetRun(ctx, runID)
	if err != nil {
		return internal.RunRow{}, err
	}
	if row == nil {
		return internal.RunRow{}, fmt.Errorf("run not found: %s", runID)
	}
	return *row, nil
}

// ListRuns returns the most recent runs first.
func (d *DB) ListRuns(ctx context.Context, limit int) ([]internal.RunRow, error) {
	rows, err := d.conn.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.RunRow
	for rows.Next() {
		row, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// HasRun reports whether a source with this hash was already processed for
// the family, successfully or not. Decoding failures depend only on content,
// so a failed hash fails again.
func (d *DB) HasRun(ctx context.Context, family internal.RecordFamily, hash string) (bool, error) {
	var n int
	err := d.conn.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM runs WHERE family = ? AND source_hash = ?`,
		string(family), hash,
	).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *DB) GetDiscards(ctx context.Context, runID string) ([]internal.DiscardRow, error) {
	rows, err := d.conn.QueryContext(ctx, `
SELECT run_id, line_no, reason, raw_line FROM discards WHERE run_id = ? ORDER BY line_no ASC, id ASC
`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.DiscardRow
	for rows.Next() {
		var row internal.DiscardRow
		if err := rows.Scan(&row.RunID, &row.LineNo, &row.Reason, &row.RawLine); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) SetSetting(ctx context.Context, key, value string) error {
	_, err := d.conn.ExecContext(ctx, `
INSERT INTO settings (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetSetting(ctx context.Context, key string) (*string, error) {
	var value string
	err := d.conn.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}
