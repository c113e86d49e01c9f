package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mamadbah2/baleledger/internal/config"
	"github.com/mamadbah2/baleledger/pkg/clients/whatsapp"
)

const reportTimeout = 2 * time.Minute

// Reporter produces the text of the daily report.
type Reporter interface {
	GenerateDailyReport(ctx context.Context, day time.Time) (string, error)
}

// Scheduler manages scheduled tasks.
type Scheduler struct {
	cron     *cron.Cron
	reporter Reporter
	client   whatsapp.Client
	cfg      config.Config
	location *time.Location
	now      func() time.Time
	logger   *zap.Logger
}

// NewScheduler creates a new scheduler instance running in the configured timezone.
func NewScheduler(cfg config.Config, reporter Reporter, client whatsapp.Client, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	loc, err := time.LoadLocation(cfg.Reporting.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %s: %w", cfg.Reporting.Timezone, err)
	}

	// robfig/cron/v3 default parser is standard cron (5 fields: min, hour, dom, month, dow).
	c := cron.New(cron.WithLocation(loc))

	return &Scheduler{
		cron:     c,
		reporter: reporter,
		client:   client,
		cfg:      cfg,
		location: loc,
		now:      time.Now,
		logger:   logger,
	}, nil
}

// Start registers the daily report and starts the scheduler.
func (s *Scheduler) Start() error {
	s.logger.Info("starting scheduler", zap.String("schedule", s.cfg.Reporting.CronSchedule))

	if _, err := s.cron.AddFunc(s.cfg.Reporting.CronSchedule, s.sendDailyReport); err != nil {
		return fmt.Errorf("schedule daily report: %w", err)
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for a running report to finish.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) sendDailyReport() {
	s.logger.Info("generating daily report")
	ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
	defer cancel()

	report, err := s.reporter.GenerateDailyReport(ctx, s.now().In(s.location))
	if err != nil {
		s.logger.Error("failed to generate daily report", zap.Error(err))
		return
	}

	req := whatsapp.SendTextMessageRequest{
		To:   s.cfg.WhatsApp.ReportTo,
		Body: report,
	}

	if _, err := s.client.SendTextMessage(ctx, req); err != nil {
		s.logger.Error("failed to send daily report", zap.Error(err))
	} else {
		s.logger.Info("daily report sent successfully")
	}
}
