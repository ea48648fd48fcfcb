package database

import (
	"context"
	"fmt"
	"time"

	"github.com/example/cardsched/pkg/models"
	"github.com/jmoiron/sqlx"
)

const reviewLogColumns = `id, card_id, owner_id, rating, reviewed_at, elapsed_days,
	previous_stability, new_stability, previous_difficulty, new_difficulty,
	previous_due, new_due, interval_days`

// ReviewLogRepository stores the append-only review history
type ReviewLogRepository struct {
	db *sqlx.DB
}

// NewReviewLogRepository creates a new repository instance
func NewReviewLogRepository(db *sqlx.DB) *ReviewLogRepository {
	return &ReviewLogRepository{db: db}
}

// Append inserts a log row using q, normally the transaction that updated the card
func (r *ReviewLogRepository) Append(ctx context.Context, q sqlx.ExtContext, entry *models.ReviewLog) error {
	id, err := insertID(ctx, q, `
		INSERT INTO review_logs (
			card_id, owner_id, rating, reviewed_at, elapsed_days,
			previous_stability, new_stability, previous_difficulty, new_difficulty,
			previous_due, new_due, interval_days
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.CardID,
		entry.OwnerID,
		int(entry.Rating),
		entry.ReviewedAt.UTC(),
		entry.ElapsedDays,
		entry.PreviousStability,
		entry.NewStability,
		entry.PreviousDifficulty,
		entry.NewDifficulty,
		entry.PreviousDue.UTC(),
		entry.NewDue.UTC(),
		entry.Interval,
	)
	if err != nil {
		return fmt.Errorf("failed to append review log for card %d: %w", entry.CardID, err)
	}
	entry.ID = id
	return nil
}

// ListByCard returns the history of a card in review order
func (r *ReviewLogRepository) ListByCard(ctx context.Context, cardID int64) ([]models.ReviewLog, error) {
	var logs []models.ReviewLog
	err := r.db.SelectContext(ctx, &logs, r.db.Rebind(
		"SELECT "+reviewLogColumns+" FROM review_logs WHERE card_id = ? ORDER BY reviewed_at, id"), cardID)
	if err != nil {
		return nil, fmt.Errorf("failed to get review logs of card %d: %w", cardID, err)
	}
	return logs, nil
}

// ListByOwner returns every review of a user since the given time
func (r *ReviewLogRepository) ListByOwner(ctx context.Context, ownerID int64, since time.Time) ([]models.ReviewLog, error) {
	var logs []models.ReviewLog
	err := r.db.SelectContext(ctx, &logs, r.db.Rebind(
		"SELECT "+reviewLogColumns+" FROM review_logs WHERE owner_id = ? AND reviewed_at >= ? ORDER BY reviewed_at, id"),
		ownerID, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to get review logs of user %d: %w", ownerID, err)
	}
	return logs, nil
}
