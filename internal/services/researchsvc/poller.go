package researchsvc

import (
	"context"

	"github.com/robfig/cron/v3"

	"github.com/intexuraos/agents/internal/logging"
)

// defaultClaimLimit bounds how many jobs one poll tick processes.
const defaultClaimLimit = 5

// Poller drives pending research jobs on a cron schedule.
type Poller struct {
	service  *Service
	schedule string
	limit    int
	logger   *logging.Logger
	cron     *cron.Cron
}

// NewPoller builds a poller. An empty schedule polls every minute.
func NewPoller(service *Service, schedule string, limit int, logger *logging.Logger) *Poller {
	if schedule == "" {
		schedule = "@every 1m"
	}
	if limit <= 0 {
		limit = defaultClaimLimit
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Poller{service: service, schedule: schedule, limit: limit, logger: logger}
}

// Start schedules polling until ctx is cancelled.
func (p *Poller) Start(ctx context.Context) error {
	p.cron = cron.New()
	_, err := p.cron.AddFunc(p.schedule, func() {
		p.Tick(ctx)
	})
	if err != nil {
		return err
	}
	p.cron.Start()

	go func() {
		<-ctx.Done()
		p.cron.Stop()
	}()
	p.logger.WithField("schedule", p.schedule).Info("research poller started")
	return nil
}

// Tick runs one poll pass. Exposed so tests and operators can trigger a pass
// without waiting for the schedule.
func (p *Poller) Tick(ctx context.Context) {
	processed, err := p.service.ProcessPending(ctx, p.limit)
	if err != nil {
		p.logger.WithError(err).Error("research poll failed")
		return
	}
	if processed > 0 {
		p.logger.WithField("processed", processed).Info("research jobs processed")
	}
}
