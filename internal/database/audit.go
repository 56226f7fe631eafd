package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"roombooking/internal/models"
)

func (db *DB) InsertAudit(ctx context.Context, e *models.AuditEntry) error {
	query := `INSERT INTO audit_logs (actor_id, entity_type, entity_id, action, before_json, after_json, created_at)
              VALUES (?, ?, ?, ?, ?, ?, ?)`
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	// UTC keeps the stored text ordered for range queries.
	e.CreatedAt = e.CreatedAt.UTC()
	result, err := db.ExecContext(ctx, query,
		nullInt64(e.ActorID), e.EntityType, e.EntityID, e.Action, e.Before, e.After, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	e.ID = id
	return nil
}

func (db *DB) RecentAudit(ctx context.Context, limit int) ([]*models.AuditEntry, error) {
	if limit <= 0 {
		limit = models.DefaultRecentAuditLimit
	}
	query := `SELECT id, actor_id, entity_type, entity_id, action, before_json, after_json, created_at
              FROM audit_logs ORDER BY id DESC LIMIT ?`
	return db.queryAudit(ctx, query, limit)
}

func (db *DB) AuditForEntity(ctx context.Context, entityType string, entityID int64) ([]*models.AuditEntry, error) {
	query := `SELECT id, actor_id, entity_type, entity_id, action, before_json, after_json, created_at
              FROM audit_logs WHERE entity_type = ? AND entity_id = ? ORDER BY id`
	return db.queryAudit(ctx, query, entityType, entityID)
}

// AuditForEntityType returns the newest entries for one entity type.
func (db *DB) AuditForEntityType(ctx context.Context, entityType string, limit int) ([]*models.AuditEntry, error) {
	if limit <= 0 {
		limit = models.DefaultRecentAuditLimit
	}
	query := `SELECT id, actor_id, entity_type, entity_id, action, before_json, after_json, created_at
              FROM audit_logs WHERE entity_type = ? ORDER BY id DESC LIMIT ?`
	return db.queryAudit(ctx, query, entityType, limit)
}

// AuditInRange returns entries recorded in [from, to), oldest first.
func (db *DB) AuditInRange(ctx context.Context, from, to time.Time) ([]*models.AuditEntry, error) {
	query := `SELECT id, actor_id, entity_type, entity_id, action, before_json, after_json, created_at
              FROM audit_logs WHERE created_at >= ? AND created_at < ? ORDER BY id`
	return db.queryAudit(ctx, query, from.UTC(), to.UTC())
}

func (db *DB) queryAudit(ctx context.Context, query string, args ...any) ([]*models.AuditEntry, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var entries []*models.AuditEntry
	for rows.Next() {
		var (
			e     models.AuditEntry
			actor sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &actor, &e.EntityType, &e.EntityID, &e.Action, &e.Before, &e.After, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.ActorID = int64Ptr(actor)
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
