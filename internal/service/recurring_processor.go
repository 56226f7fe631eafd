package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"roombooking/internal/allocation"
	"roombooking/internal/config"
	"roombooking/internal/domain"
	"roombooking/internal/events"
	"roombooking/internal/metrics"
	"roombooking/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const recurringLockKey = "recurring-expansion"

// RunStats describes one expansion run.
type RunStats struct {
	RunID       string
	From        time.Time
	To          time.Time
	Rules       int
	Created     int
	Skipped     int
	Conflicts   int
	FailedRules int
	Locked      bool
}

// RecurringProcessor materializes PENDING bookings from active rules over a
// rolling horizon. Re-running over the same horizon creates nothing new.
type RecurringProcessor struct {
	rules     domain.RuleStore
	bookings  domain.BookingStore
	directory *Directory
	audit     domain.AuditSink
	notify    *notifications
	lock      domain.Lock
	publisher domain.EventPublisher
	config    config.RecurringConfig
	now       func() time.Time
	logger    zerolog.Logger
}

func NewRecurringProcessor(
	rules domain.RuleStore,
	bookings domain.BookingStore,
	directory *Directory,
	audit domain.AuditSink,
	queue domain.TaskQueue,
	notifiers []domain.Notifier,
	lock domain.Lock,
	publisher domain.EventPublisher,
	cfg config.RecurringConfig,
	logger *zerolog.Logger,
) *RecurringProcessor {
	if cfg.HorizonDays < 0 {
		cfg.HorizonDays = models.DefaultHorizonDays
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Minute
	}
	l := logger.With().Str("component", "recurring").Logger()
	return &RecurringProcessor{
		rules:     rules,
		bookings:  bookings,
		directory: directory,
		audit:     audit,
		notify:    &notifications{queue: queue, notifiers: notifiers, logger: l},
		lock:      lock,
		publisher: publisher,
		config:    cfg,
		now:       time.Now,
		logger:    l,
	}
}

// Run expands every active rule once and returns the number of bookings created.
// It returns 0 when another run holds the lock.
func (p *RecurringProcessor) Run(ctx context.Context) int {
	return p.RunWithStats(ctx).Created
}

func (p *RecurringProcessor) RunWithStats(ctx context.Context) RunStats {
	started := time.Now()
	today := models.DateOf(p.now())
	stats := RunStats{
		RunID: uuid.New().String(),
		From:  today,
		To:    today.AddDate(0, 0, p.config.HorizonDays),
	}
	logger := p.logger.With().Str("run_id", stats.RunID).Logger()

	if p.lock != nil {
		token, ok, err := p.lock.Acquire(ctx, recurringLockKey, p.config.LockTTL)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to acquire recurring lock")
			metrics.ObserveRecurringRun("error", time.Since(started).Seconds(), 0)
			return stats
		}
		if !ok {
			logger.Info().Msg("Recurring expansion already running elsewhere, skipping")
			stats.Locked = true
			metrics.ObserveRecurringRun("skipped", time.Since(started).Seconds(), 0)
			return stats
		}
		defer func() {
			if err := p.lock.Release(context.WithoutCancel(ctx), recurringLockKey, token); err != nil {
				logger.Warn().Err(err).Msg("Failed to release recurring lock")
			}
		}()
	}

	rules, err := p.rules.FindActiveForDate(ctx, today)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load active rules")
		metrics.ObserveRecurringRun("error", time.Since(started).Seconds(), 0)
		return stats
	}
	stats.Rules = len(rules)

	for _, rule := range rules {
		if err := p.processRule(ctx, logger, rule, &stats); err != nil {
			stats.FailedRules++
			logger.Error().Err(err).Int64("rule_id", rule.ID).Msg("Failed to process recurring rule")
		}
	}

	result := "ok"
	if stats.FailedRules > 0 {
		result = "error"
	}
	metrics.ObserveRecurringRun(result, time.Since(started).Seconds(), stats.Created)

	logger.Info().
		Int("rules", stats.Rules).
		Int("created", stats.Created).
		Int("skipped", stats.Skipped).
		Int("conflicts", stats.Conflicts).
		Int("failed_rules", stats.FailedRules).
		Dur("duration", time.Since(started)).
		Msg("Recurring expansion finished")

	if p.publisher != nil {
		payload := events.RecurringRunPayload{
			RunID:       stats.RunID,
			From:        stats.From.Format(models.DateLayout),
			To:          stats.To.Format(models.DateLayout),
			Rules:       stats.Rules,
			Created:     stats.Created,
			Skipped:     stats.Skipped,
			Conflicts:   stats.Conflicts,
			FailedRules: stats.FailedRules,
		}
		if err := p.publisher.PublishJSON(events.EventRecurringRunCompleted, payload); err != nil {
			logger.Error().Err(err).Msg("Failed to publish recurring run event")
		}
	}
	return stats
}

// processRule isolates one rule: a panic or error here never stops the run.
func (p *RecurringProcessor) processRule(ctx context.Context, logger zerolog.Logger, rule *models.RecurringRule, stats *RunStats) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if p.directory != nil {
		if _, err := p.directory.BookableRoom(ctx, rule.RoomID); err != nil {
			if errors.Is(err, domain.ErrValidation) {
				logger.Warn().Int64("rule_id", rule.ID).Int64("room_id", rule.RoomID).Msg("Room is retired, rule skipped")
				return nil
			}
			return err
		}
	}

	for _, date := range allocation.Expand(rule, stats.From, stats.To) {
		existing, err := p.bookings.FindByRecurringRuleAndStart(ctx, rule.ID, date, rule.StartTime)
		if err != nil {
			return err
		}
		if existing != nil {
			stats.Skipped++
			continue
		}

		approved, err := p.bookings.FindApproved(ctx, rule.RoomID, date)
		if err != nil {
			return err
		}
		slot := allocation.NewInterval(rule.StartTime, rule.EndTime)
		if allocation.HasConflict(rule.RoomID, date, slot, approved) {
			stats.Conflicts++
			metrics.IncConflict("recurring")
			logger.Warn().
				Int64("rule_id", rule.ID).
				Int64("room_id", rule.RoomID).
				Str("date", date.Format(models.DateLayout)).
				Msg("Slot already approved for another booking, date skipped")
			continue
		}

		b := bookingFromRule(rule, date)
		if err := p.bookings.CreateBooking(ctx, b); err != nil {
			if errors.Is(err, domain.ErrDuplicate) {
				stats.Skipped++
				continue
			}
			return err
		}

		stats.Created++
		metrics.IncBookingCreated("recurring")
		logger.Info().
			Int64("booking_id", b.ID).
			Int64("rule_id", rule.ID).
			Int64("room_id", b.RoomID).
			Str("date", date.Format(models.DateLayout)).
			Str("status", string(b.Status)).
			Msg("Recurring booking created")

		p.audit.Record(ctx, nil, models.EntityBooking, b.ID, models.ActionCreate, nil, b.Clone())
		p.notify.emit(events.EventBookingCreated, b)
	}
	return nil
}

func bookingFromRule(rule *models.RecurringRule, date time.Time) *models.Booking {
	ruleID := rule.ID
	b := &models.Booking{
		RoomID:          rule.RoomID,
		UserID:          rule.OwnerID,
		Title:           rule.Title,
		Description:     rule.Description,
		Date:            date,
		StartTime:       rule.StartTime,
		EndTime:         rule.EndTime,
		Status:          models.StatusPending,
		RecurringRuleID: &ruleID,
	}
	if rule.AttendeesCount != nil {
		n := *rule.AttendeesCount
		b.AttendeesCount = &n
	}
	return b
}

// Start runs the schedule until ctx is done: every Interval when set,
// otherwise once a day at RunHour local time.
func (p *RecurringProcessor) Start(ctx context.Context) {
	if !p.config.Enabled {
		p.logger.Info().Msg("Recurring expansion is disabled")
		return
	}

	if p.config.RunOnStart {
		p.Run(ctx)
	}

	for {
		wait := p.nextWait(p.now())
		p.logger.Info().Dur("next_run_in", wait).Msg("Recurring expansion scheduled")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			p.logger.Info().Msg("Recurring scheduler stopped")
			return
		case <-timer.C:
			p.Run(ctx)
		}
	}
}

func (p *RecurringProcessor) nextWait(now time.Time) time.Duration {
	if p.config.Interval > 0 {
		return p.config.Interval
	}
	return nextDailyRun(now, p.config.RunHour).Sub(now)
}

func nextDailyRun(now time.Time, hour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
