package database

import (
	"context"
	"fmt"
	"time"

	"roombooking/internal/models"
)

// SyncDirectory upserts the configured rooms and users and refreshes the cache.
func (db *DB) SyncDirectory(ctx context.Context, rooms []models.Room, users []models.User) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now()
	roomQuery := `INSERT INTO rooms (id, name, location, capacity, state, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?)
              ON CONFLICT(id) DO UPDATE SET
                name = excluded.name,
                location = excluded.location,
                capacity = excluded.capacity,
                state = excluded.state,
                updated_at = excluded.updated_at`
	for _, r := range rooms {
		state := r.State
		if state == "" {
			state = models.LifecycleActive
		}
		if _, err := tx.ExecContext(ctx, roomQuery, r.ID, r.Name, r.Location, r.Capacity, state, now, now); err != nil {
			return fmt.Errorf("failed to upsert room %d: %w", r.ID, err)
		}
	}

	userQuery := `INSERT INTO users (id, username, full_name, email, role, telegram_chat_id, state, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
              ON CONFLICT(id) DO UPDATE SET
                username = excluded.username,
                full_name = excluded.full_name,
                email = excluded.email,
                role = excluded.role,
                telegram_chat_id = excluded.telegram_chat_id,
                state = excluded.state,
                updated_at = excluded.updated_at`
	for _, u := range users {
		role := u.Role
		if role == "" {
			role = models.RoleEmployee
		}
		state := u.State
		if state == "" {
			state = models.LifecycleActive
		}
		if _, err := tx.ExecContext(ctx, userQuery, u.ID, u.Username, u.FullName, u.Email, role, u.TelegramChatID, state, now, now); err != nil {
			return fmt.Errorf("failed to upsert user %d: %w", u.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit directory sync: %w", err)
	}

	db.mu.Lock()
	db.roomCache = make(map[int64]models.Room)
	db.userCache = make(map[int64]models.User)
	db.mu.Unlock()

	db.logger.Info().Int("rooms", len(rooms)).Int("users", len(users)).Msg("Directory synced")
	return nil
}

func (db *DB) GetRoom(ctx context.Context, id int64) (*models.Room, error) {
	db.mu.RLock()
	cached, ok := db.roomCache[id]
	db.mu.RUnlock()
	if ok {
		return &cached, nil
	}

	var r models.Room
	query := `SELECT id, name, location, capacity, state, created_at, updated_at FROM rooms WHERE id = ?`
	err := db.QueryRowContext(ctx, query, id).Scan(
		&r.ID, &r.Name, &r.Location, &r.Capacity, &r.State, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err, "room", id)
	}

	db.mu.Lock()
	db.roomCache[id] = r
	db.mu.Unlock()
	return &r, nil
}

func (db *DB) ListRooms(ctx context.Context) ([]*models.Room, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name, location, capacity, state, created_at, updated_at FROM rooms ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	defer rows.Close()

	var rooms []*models.Room
	for rows.Next() {
		r := &models.Room{}
		if err := rows.Scan(&r.ID, &r.Name, &r.Location, &r.Capacity, &r.State, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		rooms = append(rooms, r)
	}
	return rooms, rows.Err()
}

func (db *DB) GetUser(ctx context.Context, id int64) (*models.User, error) {
	db.mu.RLock()
	cached, ok := db.userCache[id]
	db.mu.RUnlock()
	if ok {
		return &cached, nil
	}

	var u models.User
	query := `SELECT id, username, full_name, email, role, telegram_chat_id, state, created_at, updated_at
              FROM users WHERE id = ?`
	err := db.QueryRowContext(ctx, query, id).Scan(
		&u.ID, &u.Username, &u.FullName, &u.Email, &u.Role, &u.TelegramChatID, &u.State, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err, "user", id)
	}

	db.mu.Lock()
	db.userCache[id] = u
	db.mu.Unlock()
	return &u, nil
}
