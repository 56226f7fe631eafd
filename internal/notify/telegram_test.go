package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"roombooking/internal/domain"
	"roombooking/internal/events"
	"roombooking/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return args.Get(0).(tgbotapi.Message), args.Error(1)
}

type fakeDirectory struct {
	rooms map[int64]*models.Room
	users map[int64]*models.User
}

func (d *fakeDirectory) GetRoom(_ context.Context, id int64) (*models.Room, error) {
	if r, ok := d.rooms[id]; ok {
		return r, nil
	}
	return nil, fmt.Errorf("%w: room %d", domain.ErrNotFound, id)
}

func (d *fakeDirectory) GetUser(_ context.Context, id int64) (*models.User, error) {
	if u, ok := d.users[id]; ok {
		return u, nil
	}
	return nil, fmt.Errorf("%w: user %d", domain.ErrNotFound, id)
}

func chatOf(c tgbotapi.Chattable) int64 {
	return c.(tgbotapi.MessageConfig).ChatID
}

func setup() (*mockSender, *TelegramNotifier, *models.Booking) {
	sender := new(mockSender)
	dir := &fakeDirectory{
		rooms: map[int64]*models.Room{1: {ID: 1, Name: "Atlas"}},
		users: map[int64]*models.User{
			10: {ID: 10, Username: "emp", FullName: "Emma Employee", TelegramChatID: 1001},
			11: {ID: 11, Username: "quiet"},
		},
	}
	logger := zerolog.New(io.Discard)
	n := NewTelegramNotifier(sender, dir, 9000, &logger)

	date, _ := models.ParseDate("2024-06-10")
	b := &models.Booking{
		ID: 42, RoomID: 1, UserID: 10, Title: "Design review", Date: date,
		StartTime: models.NewClock(9, 0), EndTime: models.NewClock(10, 0),
		Status: models.StatusPending,
	}
	return sender, n, b
}

func TestTelegramNotifier_CreatedGoesToRequesterAndAdmins(t *testing.T) {
	sender, n, b := setup()
	var chats []int64
	sender.On("Send", mock.Anything).Run(func(args mock.Arguments) {
		chats = append(chats, chatOf(args.Get(0).(tgbotapi.Chattable)))
	}).Return(tgbotapi.Message{}, nil)

	require.NoError(t, n.Notify(context.Background(), events.EventBookingCreated, b))
	assert.Equal(t, []int64{1001, 9000}, chats)
	assert.Equal(t, "telegram", n.Name())
}

func TestTelegramNotifier_ApprovedOnlyRequester(t *testing.T) {
	sender, n, b := setup()
	b.Status = models.StatusApproved
	sender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		msg := c.(tgbotapi.MessageConfig)
		return msg.ChatID == 1001 && msg.ParseMode == tgbotapi.ModeMarkdown
	})).Return(tgbotapi.Message{}, nil).Once()

	require.NoError(t, n.Notify(context.Background(), events.EventBookingApproved, b))
	sender.AssertExpectations(t)
}

func TestTelegramNotifier_NoRecipients(t *testing.T) {
	sender, n, b := setup()
	b.UserID = 11
	require.NoError(t, n.Notify(context.Background(), events.EventBookingRejected, b))
	sender.AssertNotCalled(t, "Send", mock.Anything)
}

func TestTelegramNotifier_SendError(t *testing.T) {
	sender, n, b := setup()
	sender.On("Send", mock.Anything).Return(tgbotapi.Message{}, errors.New("chat not found"))

	err := n.Notify(context.Background(), events.EventBookingApproved, b)
	assert.ErrorContains(t, err, "chat not found")
}

func TestFormatMessage(t *testing.T) {
	_, _, b := setup()
	rule := int64(3)
	b.RecurringRuleID = &rule

	text := FormatMessage(events.EventBookingCancelled, b, "Atlas", "Emma")
	assert.Contains(t, text, "Booking cancelled")
	assert.Contains(t, text, "Room: Atlas")
	assert.Contains(t, text, "2024-06-10 09:00-10:00")
	assert.Contains(t, text, "Booking #42")
	assert.Contains(t, text, "recurring rule #3")
}
