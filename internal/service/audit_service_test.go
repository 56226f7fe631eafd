package service

import (
	"context"
	"testing"
	"time"

	"roombooking/internal/domain"

	"roombooking/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditRecordSnapshotsImmediately(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	b := &models.Booking{ID: 7, Title: "before", Status: models.StatusPending}
	actor := userAdmin
	env.audit.Record(ctx, &actor, models.EntityBooking, b.ID, models.ActionCreate, nil, b)
	b.Title = "mutated"

	entries, err := env.audit.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, models.ActionCreate, e.Action)
	require.NotNil(t, e.ActorID)
	assert.Equal(t, userAdmin, *e.ActorID)
	assert.Empty(t, e.Before)
	assert.Contains(t, e.After, `"title":"before"`)
}

func TestAuditRecordWithoutActor(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	var none *models.Booking
	env.audit.Record(ctx, nil, models.EntityBooking, 3, models.ActionCancel, none, nil)

	entries, err := env.audit.ForEntity(ctx, models.EntityBooking, 3)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].ActorID)
	assert.Empty(t, entries[0].Before)
}

func TestAuditDroppedWhenQueueClosed(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	env.queue.closed = true

	env.audit.Record(ctx, nil, models.EntityBooking, 3, models.ActionCancel, nil, nil)

	entries, err := env.audit.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAuditQueriesByTypeAndRange(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	recorded := time.Date(2024, 6, 10, 8, 30, 0, 0, time.UTC)
	env.audit.now = func() time.Time { return recorded }
	actor := userAdmin
	env.audit.Record(ctx, &actor, models.EntityBooking, 1, models.ActionCreate, nil, nil)
	env.audit.Record(ctx, &actor, models.EntityRule, 2, models.ActionDeactivate, nil, nil)

	rules, err := env.audit.ByEntityType(ctx, models.EntityRule, 0)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, models.ActionDeactivate, rules[0].Action)

	day := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	inDay, err := env.audit.InRange(ctx, day, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Len(t, inDay, 2)

	nextDay, err := env.audit.InRange(ctx, day.AddDate(0, 0, 1), day.AddDate(0, 0, 2))
	require.NoError(t, err)
	assert.Empty(t, nextDay)

	_, err = env.audit.InRange(ctx, day, day)
	assert.ErrorIs(t, err, domain.ErrValidation)
}
