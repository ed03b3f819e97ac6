package listener

import (
	"context"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"receiptbook/internal/config"
	"receiptbook/internal/pipeline"
)

type Processor interface {
	ProcessMail(ctx context.Context) (pipeline.MailSummary, error)
	Snapshot(ctx context.Context) ([][]string, error)
}

// Service polls the inbox on a fixed interval until its context ends.
type Service struct {
	processor  Processor
	interval   time.Duration
	autoExport bool
	exportPath string
	log        zerolog.Logger
}

func NewService(processor Processor, cfg config.Config, log zerolog.Logger) *Service {
	interval := time.Duration(cfg.MailListenerIntervalSec) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Service{
		processor:  processor,
		interval:   interval,
		autoExport: cfg.MailListenerAutoExport,
		exportPath: filepath.Join(cfg.OutputDir, "listener", "ledger.xlsx"),
		log:        log.With().Str("component", "listener").Logger(),
	}
}

func (s *Service) Run(ctx context.Context) error {
	for {
		if err := s.runCycle(ctx); err != nil {
			s.log.Error().Err(err).Msg("listener.cycle.error")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.interval):
		}
	}
}

func (s *Service) runCycle(ctx context.Context) error {
	start := time.Now()
	summary, err := s.processor.ProcessMail(ctx)
	if err != nil {
		return err
	}

	if s.autoExport && summary.Committed > 0 {
		if err := s.exportLedger(ctx); err != nil {
			return err
		}
	}

	s.log.Info().
		Int("listed", summary.Listed).
		Int("committed", summary.Committed).
		Int("failed", summary.Failed).
		Int64("elapsed_ms", time.Since(start).Milliseconds()).
		Msg("listener.cycle.done")
	return nil
}

func (s *Service) exportLedger(ctx context.Context) error {
	rows, err := s.processor.Snapshot(ctx)
	if err != nil {
		return err
	}
	if err := pipeline.ExportLedgerToXLSX(rows, s.exportPath); err != nil {
		return err
	}
	s.log.Info().Str("path", s.exportPath).Int("rows", len(rows)).Msg("listener.export.ok")
	return nil
}
