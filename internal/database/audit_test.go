package database

import (
	"context"
	"testing"
	"time"

	"roombooking/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditLog(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	actor := testAdmin
	entries := []*models.AuditEntry{
		{ActorID: &actor, EntityType: models.EntityBooking, EntityID: 1, Action: models.ActionCreate, After: `{"status":"PENDING"}`},
		{ActorID: &actor, EntityType: models.EntityBooking, EntityID: 1, Action: models.ActionApprove,
			Before: `{"status":"PENDING"}`, After: `{"status":"APPROVED"}`},
		{EntityType: models.EntityRule, EntityID: 7, Action: models.ActionDeactivate},
	}
	for _, e := range entries {
		require.NoError(t, db.InsertAudit(ctx, e))
		assert.NotZero(t, e.ID)
	}

	recent, err := db.RecentAudit(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, models.ActionDeactivate, recent[0].Action)
	assert.Nil(t, recent[0].ActorID)

	forBooking, err := db.AuditForEntity(ctx, models.EntityBooking, 1)
	require.NoError(t, err)
	require.Len(t, forBooking, 2)
	assert.Equal(t, models.ActionCreate, forBooking[0].Action)
	assert.Equal(t, `{"status":"APPROVED"}`, forBooking[1].After)
	require.NotNil(t, forBooking[1].ActorID)
	assert.Equal(t, testAdmin, *forBooking[1].ActorID)

	all, err := db.RecentAudit(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestAuditByTypeAndRange(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	plus3 := time.FixedZone("UTC+3", 3*3600)
	at := func(day, hour int) time.Time { return time.Date(2024, 6, day, hour, 0, 0, 0, plus3) }
	entries := []*models.AuditEntry{
		{EntityType: models.EntityBooking, EntityID: 1, Action: models.ActionCreate, CreatedAt: at(9, 23)},
		{EntityType: models.EntityRule, EntityID: 4, Action: models.ActionCreate, CreatedAt: at(10, 2)},
		{EntityType: models.EntityBooking, EntityID: 2, Action: models.ActionCreate, CreatedAt: at(10, 12)},
		{EntityType: models.EntityBooking, EntityID: 1, Action: models.ActionApprove, CreatedAt: at(11, 9)},
	}
	for _, e := range entries {
		require.NoError(t, db.InsertAudit(ctx, e))
	}

	bookings, err := db.AuditForEntityType(ctx, models.EntityBooking, 2)
	require.NoError(t, err)
	require.Len(t, bookings, 2)
	assert.Equal(t, models.ActionApprove, bookings[0].Action)
	assert.Equal(t, int64(2), bookings[1].EntityID)

	rules, err := db.AuditForEntityType(ctx, models.EntityRule, 0)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, int64(4), rules[0].EntityID)

	// 2024-06-10 in UTC holds only the 12:00+03:00 entry.
	day := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	inDay, err := db.AuditInRange(ctx, day, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, inDay, 1)
	assert.Equal(t, int64(2), inDay[0].EntityID)

	// Bounds in another zone compare as instants.
	shifted, err := db.AuditInRange(ctx, at(10, 0), at(11, 0))
	require.NoError(t, err)
	require.Len(t, shifted, 2)
	assert.Equal(t, models.EntityRule, shifted[0].EntityType)
	assert.Equal(t, int64(2), shifted[1].EntityID)

	all, err := db.AuditInRange(ctx, at(1, 0), at(30, 0))
	require.NoError(t, err)
	assert.Len(t, all, 4)
}
