package service

import (
	"context"
	"fmt"
	"time"

	"roombooking/internal/allocation"
	"roombooking/internal/domain"
	"roombooking/internal/models"

	"github.com/rs/zerolog"
)

type RuleService struct {
	rules     domain.RuleStore
	bookings  domain.BookingStore
	directory *Directory
	audit     domain.AuditSink
	now       func() time.Time
	logger    zerolog.Logger
}

func NewRuleService(rules domain.RuleStore, bookings domain.BookingStore, directory *Directory, audit domain.AuditSink, logger *zerolog.Logger) *RuleService {
	return &RuleService{
		rules:     rules,
		bookings:  bookings,
		directory: directory,
		audit:     audit,
		now:       time.Now,
		logger:    logger.With().Str("component", "rule_service").Logger(),
	}
}

// CreateRule stores an ACTIVE rule. Bookings are materialized later by the recurring processor.
func (s *RuleService) CreateRule(ctx context.Context, req *models.RecurringRule) (*models.RuleSummary, error) {
	r := *req
	r.Weekdays = append([]int(nil), req.Weekdays...)
	if err := allocation.ValidateRule(&r); err != nil {
		return nil, err
	}
	if _, err := s.directory.BookableRoom(ctx, r.RoomID); err != nil {
		return nil, err
	}
	if _, err := s.directory.ActiveUser(ctx, r.OwnerID); err != nil {
		return nil, err
	}

	r.StartDate = models.DateOf(r.StartDate)
	r.EndDate = models.DateOf(r.EndDate)
	r.State = models.LifecycleActive
	if err := s.rules.CreateRule(ctx, &r); err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("rule_id", r.ID).
		Int64("room_id", r.RoomID).
		Str("frequency", string(r.Frequency)).
		Msg("Recurring rule created")

	owner := r.OwnerID
	s.audit.Record(ctx, &owner, models.EntityRule, r.ID, models.ActionCreate, nil, &r)
	return &models.RuleSummary{Rule: &r}, nil
}

// DeactivateRule soft-deletes a rule. Bookings it already generated are kept.
func (s *RuleService) DeactivateRule(ctx context.Context, ruleID, actorID int64) error {
	r, err := s.rules.GetRule(ctx, ruleID)
	if err != nil {
		return err
	}
	user, err := s.directory.ActiveUser(ctx, actorID)
	if err != nil {
		return err
	}
	if r.OwnerID != actorID && !user.IsAdmin() {
		return fmt.Errorf("%w: only the owner or an admin can deactivate rule %d", domain.ErrForbidden, ruleID)
	}
	if !r.Active() {
		return fmt.Errorf("%w: rule %d is already %s", domain.ErrInvalidState, ruleID, r.State)
	}

	before := *r
	if err := s.rules.UpdateRuleState(ctx, ruleID, models.LifecycleInactive); err != nil {
		return err
	}
	r.State = models.LifecycleInactive
	r.UpdatedAt = s.now()

	s.logger.Info().Int64("rule_id", ruleID).Int64("actor_id", actorID).Msg("Recurring rule deactivated")
	actor := actorID
	s.audit.Record(ctx, &actor, models.EntityRule, ruleID, models.ActionDeactivate, &before, r)
	return nil
}

func (s *RuleService) GetRule(ctx context.Context, ruleID int64) (*models.RuleSummary, error) {
	r, err := s.rules.GetRule(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	return s.summarize(ctx, r)
}

// RulesByOwner lists the owner's active rules.
func (s *RuleService) RulesByOwner(ctx context.Context, ownerID int64) ([]*models.RuleSummary, error) {
	rules, err := s.rules.FindActiveByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	out := make([]*models.RuleSummary, 0, len(rules))
	for _, r := range rules {
		sum, err := s.summarize(ctx, r)
		if err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, nil
}

func (s *RuleService) summarize(ctx context.Context, r *models.RecurringRule) (*models.RuleSummary, error) {
	n, err := s.bookings.CountByRecurringRule(ctx, r.ID)
	if err != nil {
		return nil, err
	}
	return &models.RuleSummary{Rule: r, BookingsCreated: n}, nil
}
