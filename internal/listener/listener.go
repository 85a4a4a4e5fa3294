package listener

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"devsync/internal/config"
	"devsync/internal/importer"
	"devsync/internal/storage"
)

// Service polls the import directory and imports exports whose content has
// changed since the last successful run.
type Service struct {
	cfg      config.Config
	importer *importer.Service
	logger   *slog.Logger
}

func NewService(db *storage.DB, cfg config.Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:      cfg,
		importer: importer.NewService(db, cfg, logger),
		logger:   logger.With("component", "listener"),
	}
}

func (s *Service) Run(ctx context.Context) error {
	interval := time.Duration(s.cfg.ListenerIntervalSec) * time.Second
	s.logger.Info("listener started", "interval", interval)
	for {
		if err := s.runCycle(ctx); err != nil {
			s.logger.Error("listener cycle failed", "error", err)
		}

		select {
		case <-ctx.Done():
			s.logger.Info("listener stopped")
			return nil
		case <-time.After(interval):
		}
	}
}

func (s *Service) runCycle(ctx context.Context) error {
	res, err := s.importer.Run(ctx, importer.Options{SkipUnchanged: true})
	if err != nil {
		return err
	}
	if len(res.Runs) == 0 {
		s.logger.Debug("listener cycle done, nothing new", "dir", res.Dir)
		return nil
	}

	if s.cfg.ListenerAutoExport {
		outputPath := filepath.Join(s.cfg.OutputDir, "listener", reportName(res.Runs[0].RunID))
		if err := s.importer.ExportResult(ctx, res, outputPath); err != nil {
			return fmt.Errorf("export report: %w", err)
		}
		s.logger.Info("report written", "path", outputPath)
	}

	s.logger.Info("listener cycle done", "dir", res.Dir, "runs", len(res.Runs))
	return nil
}

func reportName(runID string) string {
	return fmt.Sprintf("%s_%s.xlsx", time.Now().UTC().Format("20060102T150405"), runID)
}
