// Package notify delivers review reminders to users.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/cardsched/pkg/models"
	"github.com/rs/zerolog"
)

// ErrNoChat is returned when a user has no Telegram chat to notify
var ErrNoChat = errors.New("user has no telegram chat")

// ReminderText builds the reminder message for count due cards
func ReminderText(count int) string {
	noun := "cards"
	if count == 1 {
		noun = "card"
	}
	return fmt.Sprintf("You have %d %s due for review.", count, noun)
}

// LogNotifier writes reminders to the log instead of sending them
type LogNotifier struct {
	log zerolog.Logger
}

// NewLogNotifier creates a notifier that only logs
func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

// SendReminder implements scheduler.Notifier
func (n *LogNotifier) SendReminder(_ context.Context, user models.User, count int) error {
	n.log.Info().
		Int64("user_id", user.ID).
		Int("due", count).
		Msg(ReminderText(count))
	return nil
}
