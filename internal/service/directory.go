package service

import (
	"context"
	"fmt"

	"roombooking/internal/domain"
	"roombooking/internal/models"
)

// DirectoryStore is the room and user lookup backed by storage.
type DirectoryStore interface {
	domain.Directory
	ListRooms(ctx context.Context) ([]*models.Room, error)
}

// Directory adds lifecycle checks on top of plain room and user lookups.
type Directory struct {
	store DirectoryStore
}

func NewDirectory(store DirectoryStore) *Directory {
	return &Directory{store: store}
}

func (d *Directory) GetRoom(ctx context.Context, id int64) (*models.Room, error) {
	return d.store.GetRoom(ctx, id)
}

func (d *Directory) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return d.store.GetUser(ctx, id)
}

func (d *Directory) ListRooms(ctx context.Context) ([]*models.Room, error) {
	return d.store.ListRooms(ctx)
}

// BookableRoom returns the room if it exists and has not been retired.
func (d *Directory) BookableRoom(ctx context.Context, id int64) (*models.Room, error) {
	room, err := d.store.GetRoom(ctx, id)
	if err != nil {
		return nil, err
	}
	if !room.Active() {
		return nil, fmt.Errorf("%w: room %d is %s", domain.ErrValidation, id, room.State)
	}
	return room, nil
}

// ActiveUser returns the user if it exists and is not disabled.
func (d *Directory) ActiveUser(ctx context.Context, id int64) (*models.User, error) {
	user, err := d.store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.State == models.LifecycleDisabled {
		return nil, fmt.Errorf("%w: user %d is disabled", domain.ErrForbidden, id)
	}
	return user, nil
}

// RoomNames maps every room id to its display name.
func (d *Directory) RoomNames(ctx context.Context) (map[int64]string, error) {
	rooms, err := d.store.ListRooms(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string, len(rooms))
	for _, r := range rooms {
		names[r.ID] = r.Name
	}
	return names, nil
}
