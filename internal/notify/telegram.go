package notify

import (
	"context"
	"fmt"
	"strings"

	"roombooking/internal/domain"
	"roombooking/internal/events"
	"roombooking/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Sender is the subset of *tgbotapi.BotAPI the notifier needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// NewBotAPI connects to Telegram with token.
func NewBotAPI(token string, debug bool) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	bot.Debug = debug
	return bot, nil
}

// TelegramNotifier messages the requester, and the admin chat for events that
// need attention, about booking lifecycle changes.
type TelegramNotifier struct {
	sender      Sender
	directory   domain.Directory
	adminChatID int64
	logger      zerolog.Logger
}

func NewTelegramNotifier(sender Sender, directory domain.Directory, adminChatID int64, logger *zerolog.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		sender:      sender,
		directory:   directory,
		adminChatID: adminChatID,
		logger:      logger.With().Str("component", "telegram").Logger(),
	}
}

func (n *TelegramNotifier) Name() string { return "telegram" }

func (n *TelegramNotifier) Notify(ctx context.Context, event string, b *models.Booking) error {
	roomName := fmt.Sprintf("#%d", b.RoomID)
	if room, err := n.directory.GetRoom(ctx, b.RoomID); err == nil {
		roomName = room.Name
	}

	var requesterChat int64
	requesterName := fmt.Sprintf("user %d", b.UserID)
	if user, err := n.directory.GetUser(ctx, b.UserID); err == nil {
		requesterChat = user.TelegramChatID
		if user.FullName != "" {
			requesterName = user.FullName
		} else if user.Username != "" {
			requesterName = user.Username
		}
	}

	text := FormatMessage(event, b, roomName, requesterName)

	var chats []int64
	if requesterChat != 0 {
		chats = append(chats, requesterChat)
	}
	if n.adminChatID != 0 && n.adminChatID != requesterChat &&
		(event == events.EventBookingCreated || event == events.EventBookingCancelled) {
		chats = append(chats, n.adminChatID)
	}
	if len(chats) == 0 {
		n.logger.Debug().Int64("booking_id", b.ID).Str("event", event).Msg("No telegram recipients")
		return nil
	}

	for _, chatID := range chats {
		msg := tgbotapi.NewMessage(chatID, text)
		msg.ParseMode = tgbotapi.ModeMarkdown
		if _, err := n.sender.Send(msg); err != nil {
			return fmt.Errorf("send telegram message to %d: %w", chatID, err)
		}
	}
	return nil
}

// FormatMessage renders the Markdown text for a booking event.
func FormatMessage(event string, b *models.Booking, roomName, requester string) string {
	var headline string
	switch event {
	case events.EventBookingCreated:
		headline = "🆕 *New booking request*"
	case events.EventBookingApproved:
		headline = "✅ *Booking approved*"
	case events.EventBookingRejected:
		headline = "❌ *Booking rejected*"
	case events.EventBookingCancelled:
		headline = "🚫 *Booking cancelled*"
	default:
		headline = "*Booking update*"
	}

	var sb strings.Builder
	sb.WriteString(headline)
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "*%s*\n", tgbotapi.EscapeText(tgbotapi.ModeMarkdown, b.Title))
	fmt.Fprintf(&sb, "Room: %s\n", tgbotapi.EscapeText(tgbotapi.ModeMarkdown, roomName))
	fmt.Fprintf(&sb, "Date: %s %s-%s\n", b.Date.Format(models.DateLayout), b.StartTime, b.EndTime)
	fmt.Fprintf(&sb, "Requested by: %s\n", tgbotapi.EscapeText(tgbotapi.ModeMarkdown, requester))
	fmt.Fprintf(&sb, "Booking #%d, status %s", b.ID, b.Status)
	if b.RecurringRuleID != nil {
		fmt.Fprintf(&sb, "\nGenerated from recurring rule #%d", *b.RecurringRuleID)
	}
	return sb.String()
}
