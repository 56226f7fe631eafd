package service

import (
	"context"

	"roombooking/internal/domain"
	"roombooking/internal/models"

	"github.com/rs/zerolog"
)

// notifications fans one booking event out to every notifier, each as its own
// background task so a slow or failing channel does not hold up the others.
type notifications struct {
	queue     domain.TaskQueue
	notifiers []domain.Notifier
	logger    zerolog.Logger
}

func (n *notifications) emit(event string, b *models.Booking) {
	if n == nil || len(n.notifiers) == 0 {
		return
	}
	snap := b.Clone()
	for _, notifier := range n.notifiers {
		notifier := notifier
		deliver := func(ctx context.Context) error {
			return notifier.Notify(ctx, event, snap)
		}
		if n.queue == nil {
			if err := deliver(context.Background()); err != nil {
				n.logger.Error().Err(err).Str("notifier", notifier.Name()).Str("event", event).Int64("booking_id", snap.ID).Msg("Notification failed")
			}
			continue
		}
		if !n.queue.Enqueue("notify:"+notifier.Name(), deliver) {
			n.logger.Error().Str("notifier", notifier.Name()).Str("event", event).Int64("booking_id", snap.ID).Msg("Notification dropped")
		}
	}
}
