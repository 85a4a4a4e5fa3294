// Package importer drives one import: it loads the device and content
// exports, cleans them, applies the expiry rule and persists the result
// together with a run record and the discard trail.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"devsync/internal"
	"devsync/internal/cleaner"
	"devsync/internal/config"
	"devsync/internal/source"
	"devsync/internal/storage"
)

// Settings keys that override the configured import directory and delimiter.
const (
	SettingImportPath      = "import.path"
	SettingImportDelimiter = "import.delimiter"
)

// ValidSettingKey reports whether key is one the importer reads.
func ValidSettingKey(key string) bool {
	return key == SettingImportPath || key == SettingImportDelimiter
}

type Service struct {
	db     *storage.DB
	cfg    config.Config
	logger *slog.Logger
	now    func() time.Time
}

func NewService(db *storage.DB, cfg config.Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, cfg: cfg, logger: logger, now: time.Now}
}

// Options override the stored and configured settings for one run.
type Options struct {
	Dir       string
	Delimiter string
	// SkipUnchanged leaves out exports whose content already has a run.
	SkipUnchanged bool
}

type Result struct {
	Dir       string
	Delimiter string
	Runs      []internal.RunRow
}

// Resolve picks the import directory and delimiter: explicit options first,
// then the settings table, then configuration.
func (s *Service) Resolve(ctx context.Context, opts Options) (string, string, error) {
	dir, err := s.setting(ctx, opts.Dir, SettingImportPath, s.cfg.ImportDir)
	if err != nil {
		return "", "", err
	}
	delimiter, err := s.setting(ctx, opts.Delimiter, SettingImportDelimiter, s.cfg.ImportDelimiter)
	if err != nil {
		return "", "", err
	}
	if err := config.ValidateDelimiter(delimiter); err != nil {
		return "", "", fmt.Errorf("import delimiter: %w", err)
	}
	if strings.TrimSpace(dir) == "" {
		return "", "", errors.New("import directory is not configured")
	}
	return dir, delimiter, nil
}

func (s *Service) setting(ctx context.Context, explicit, key, fallback string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	stored, err := s.db.GetSetting(ctx, key)
	if err != nil {
		return "", err
	}
	if stored != nil && *stored != "" {
		return *stored, nil
	}
	return fallback, nil
}

// Run imports devices first so content in the same run can reference them.
func (s *Service) Run(ctx context.Context, opts Options) (Result, error) {
	dir, delimiter, err := s.Resolve(ctx, opts)
	if err != nil {
		return Result{}, err
	}
	result := Result{Dir: dir, Delimiter: delimiter}
	loader := source.NewLoader(source.NewDirSource(dir), s.cfg.ArchiveDir)

	jobs := []struct {
		family internal.RecordFamily
		name   string
	}{
		{internal.FamilyDevice, s.cfg.ImportDeviceFile},
		{internal.FamilyContent, s.cfg.ImportContentFile},
	}
	for _, job := range jobs {
		if job.name == "" {
			continue
		}
		run, err := s.importFile(ctx, loader, job.family, job.name, delimiter, opts.SkipUnchanged)
		if err != nil {
			return result, fmt.Errorf("import %s: %w", job.family, err)
		}
		if run != nil {
			result.Runs = append(result.Runs, *run)
		}
	}
	return result, nil
}

func (s *Service) importFile(ctx context.Context, loader *source.Loader, family internal.RecordFamily, name, delimiter string, skipUnchanged bool) (*internal.RunRow, error) {
	base := s.logger.With("file", name)
	logger := base.With("family", string(family))

	file, err := loader.Load(ctx, name, delimiter)
	if source.IsMissing(err) {
		logger.Info("export not present, skipping")
		return nil, nil
	}

	run := internal.RunRow{
		RunID:      uuid.NewString(),
		Family:     family,
		SourcePath: file.Path,
		SourceHash: file.Hash,
		Status:     internal.RunOK,
	}
	base = base.With("run_id", run.RunID)
	logger = logger.With("run_id", run.RunID)

	if err != nil && !errors.Is(err, cleaner.ErrUndecodable) {
		return nil, err
	}

	if skipUnchanged {
		seen, serr := s.db.HasRun(ctx, family, file.Hash)
		if serr != nil {
			return nil, serr
		}
		if seen {
			logger.Debug("export unchanged, skipping", "hash", file.Hash)
			return nil, nil
		}
	}

	if err != nil {
		return s.fail(ctx, logger, run, err)
	}

	collector := &cleaner.Collector{}
	sink := cleaner.MultiSink(collector, cleaner.LogSink(base))
	now := wallClock(s.now())

	batch := storage.Batch{}
	var summary cleaner.Summary
	switch family {
	case internal.FamilyDevice:
		res, err := cleaner.CleanDeviceRows(file.Text, delimiter, sink)
		if err != nil {
			return s.fail(ctx, logger, run, err)
		}
		summary = res.Summary
		batch.Devices = ApplyDeviceExpiry(res.Records, now)
	case internal.FamilyContent:
		res, err := cleaner.CleanContentRows(file.Text, delimiter, sink)
		if err != nil {
			return s.fail(ctx, logger, run, err)
		}
		summary = res.Summary
		batch.Contents = ApplyContentExpiry(res.Records, now)
	default:
		return nil, fmt.Errorf("unknown record family %q", family)
	}

	run.Total = summary.Total
	run.Accepted = summary.Accepted
	run.Discarded = summary.Discarded
	run.Truncated = summary.Truncated

	batch.Run = run
	batch.Discards = discardRows(run.RunID, collector.Kind(cleaner.EventDiscarded))
	run, err = s.db.RecordImport(ctx, batch)
	if err != nil {
		return nil, err
	}
	if run.Skipped > 0 {
		logger.Warn("content references unknown devices", "skipped", run.Skipped)
	}

	logger.Info("import finished",
		"total", run.Total, "accepted", run.Accepted, "discarded", run.Discarded,
		"truncated", run.Truncated, "stored", run.Stored, "skipped", run.Skipped)
	return &run, nil
}

// fail records a batch-level failure so it is visible in the run history
// rather than looking like an empty successful import.
func (s *Service) fail(ctx context.Context, logger *slog.Logger, run internal.RunRow, cause error) (*internal.RunRow, error) {
	run.Status = internal.RunFailed
	run.Error = cause.Error()
	if err := s.db.InsertRun(ctx, run); err != nil {
		return nil, err
	}
	logger.Error("import failed", "error", cause)
	return &run, nil
}

func discardRows(runID string, events []cleaner.Event) []internal.DiscardRow {
	out := make([]internal.DiscardRow, 0, len(events))
	for _, e := range events {
		out = append(out, internal.DiscardRow{RunID: runID, LineNo: e.Line, Reason: e.Reason, RawLine: e.Raw})
	}
	return out
}
