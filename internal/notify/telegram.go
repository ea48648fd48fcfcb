package notify

import (
	"context"
	"fmt"

	"github.com/example/cardsched/pkg/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Sender is the part of tgbotapi.BotAPI used for reminders
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier sends reminders to the user's Telegram chat
type TelegramNotifier struct {
	api Sender
	log zerolog.Logger
}

// NewTelegramNotifier connects to the Bot API with token
func NewTelegramNotifier(token string, log zerolog.Logger) (*TelegramNotifier, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	log.Info().Str("bot", api.Self.UserName).Msg("authorized on telegram")
	return NewTelegramNotifierWithSender(api, log), nil
}

// NewTelegramNotifierWithSender uses an existing sender
func NewTelegramNotifierWithSender(api Sender, log zerolog.Logger) *TelegramNotifier {
	return &TelegramNotifier{api: api, log: log}
}

// SendReminder implements scheduler.Notifier
func (n *TelegramNotifier) SendReminder(ctx context.Context, user models.User, count int) error {
	if user.TelegramID == 0 {
		return fmt.Errorf("user %d: %w", user.ID, ErrNoChat)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(user.TelegramID, ReminderText(count))
	if _, err := n.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send reminder to user %d: %w", user.ID, err)
	}
	n.log.Info().Int64("user_id", user.ID).Int("due", count).Msg("reminder sent")
	return nil
}
