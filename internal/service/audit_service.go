package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"roombooking/internal/domain"
	"roombooking/internal/models"

	"github.com/rs/zerolog"
)

// AuditService persists audit entries in the background. Snapshots are
// serialized when Record is called so later mutations do not leak in.
type AuditService struct {
	store  domain.AuditStore
	queue  domain.TaskQueue
	now    func() time.Time
	logger zerolog.Logger
}

func NewAuditService(store domain.AuditStore, queue domain.TaskQueue, logger *zerolog.Logger) *AuditService {
	return &AuditService{
		store:  store,
		queue:  queue,
		now:    time.Now,
		logger: logger.With().Str("component", "audit").Logger(),
	}
}

// Record never fails; problems are logged and the entry is dropped.
func (s *AuditService) Record(ctx context.Context, actorID *int64, entityType string, entityID int64, action string, before, after any) {
	entry := &models.AuditEntry{
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		CreatedAt:  s.now(),
	}
	if actorID != nil {
		id := *actorID
		entry.ActorID = &id
	}

	var err error
	if entry.Before, err = snapshot(before); err != nil {
		s.logger.Error().Err(err).Str("entity_type", entityType).Int64("entity_id", entityID).Msg("Failed to encode audit snapshot")
		return
	}
	if entry.After, err = snapshot(after); err != nil {
		s.logger.Error().Err(err).Str("entity_type", entityType).Int64("entity_id", entityID).Msg("Failed to encode audit snapshot")
		return
	}

	insert := func(ctx context.Context) error {
		return s.store.InsertAudit(ctx, entry)
	}
	if s.queue == nil {
		if err := insert(ctx); err != nil {
			s.logger.Error().Err(err).Str("action", action).Int64("entity_id", entityID).Msg("Failed to record audit entry")
		}
		return
	}
	if !s.queue.Enqueue("audit", insert) {
		s.logger.Error().Str("action", action).Int64("entity_id", entityID).Msg("Audit entry dropped, queue unavailable")
	}
}

func (s *AuditService) Recent(ctx context.Context, limit int) ([]*models.AuditEntry, error) {
	return s.store.RecentAudit(ctx, limit)
}

func (s *AuditService) ForEntity(ctx context.Context, entityType string, entityID int64) ([]*models.AuditEntry, error) {
	return s.store.AuditForEntity(ctx, entityType, entityID)
}

func (s *AuditService) ByEntityType(ctx context.Context, entityType string, limit int) ([]*models.AuditEntry, error) {
	return s.store.AuditForEntityType(ctx, entityType, limit)
}

// InRange returns entries recorded in [from, to).
func (s *AuditService) InRange(ctx context.Context, from, to time.Time) ([]*models.AuditEntry, error) {
	if !to.After(from) {
		return nil, fmt.Errorf("%w: audit range end must be after its start", domain.ErrValidation)
	}
	return s.store.AuditInRange(ctx, from, to)
}

func snapshot(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	switch t := v.(type) {
	case *models.Booking:
		if t == nil {
			return "", nil
		}
	case *models.RecurringRule:
		if t == nil {
			return "", nil
		}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal audit snapshot: %w", err)
	}
	return string(raw), nil
}
