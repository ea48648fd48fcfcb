package database

import (
	"context"
	"fmt"
	"time"

	"github.com/example/cardsched/pkg/models"
	"github.com/jmoiron/sqlx"
)

const userColumns = `id, telegram_id, username, notification_enabled, notification_hour,
	cards_per_day, created_at, updated_at`

// UserRepository handles database operations for users
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new repository instance
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	if user.CardsPerDay <= 0 {
		user.CardsPerDay = 20
	}

	id, err := insertID(ctx, r.db, `
		INSERT INTO users (
			telegram_id, username, notification_enabled, notification_hour,
			cards_per_day, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.TelegramID,
		user.Username,
		user.NotificationEnabled,
		user.NotificationHour,
		user.CardsPerDay,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	user.ID = id
	return nil
}

// GetByID returns a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, r.db.Rebind("SELECT "+userColumns+" FROM users WHERE id = ?"), id)
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("failed to get user %d", id), err)
	}
	return &user, nil
}

// GetByTelegramID returns the user bound to a Telegram chat
func (r *UserRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, r.db.Rebind("SELECT "+userColumns+" FROM users WHERE telegram_id = ?"), telegramID)
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("failed to get user by telegram id %d", telegramID), err)
	}
	return &user, nil
}

// GetUsersForNotification returns users with reminders enabled for the given hour
func (r *UserRepository) GetUsersForNotification(ctx context.Context, hour int) ([]models.User, error) {
	var users []models.User
	err := r.db.SelectContext(ctx, &users, r.db.Rebind(
		"SELECT "+userColumns+" FROM users WHERE notification_enabled = ? AND notification_hour = ? ORDER BY id"),
		true, hour)
	if err != nil {
		return nil, fmt.Errorf("failed to get users for notification: %w", err)
	}
	return users, nil
}

// UpdateNotificationSettings stores the reminder preferences of a user
func (r *UserRepository) UpdateNotificationSettings(ctx context.Context, user *models.User) error {
	if user.NotificationHour < 0 || user.NotificationHour > 23 {
		return fmt.Errorf("notification hour %d out of range 0-23", user.NotificationHour)
	}
	user.UpdatedAt = time.Now().UTC()
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE users SET
			telegram_id = ?,
			notification_enabled = ?,
			notification_hour = ?,
			cards_per_day = ?,
			updated_at = ?
		WHERE id = ?`),
		user.TelegramID,
		user.NotificationEnabled,
		user.NotificationHour,
		user.CardsPerDay,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update user %d: %w", user.ID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("user %d: %w", user.ID, ErrNotFound)
	}
	return nil
}
