package database

import (
	"context"
	"fmt"
	"time"

	"github.com/example/cardsched/pkg/models"
	"github.com/jmoiron/sqlx"
)

const cardColumns = `id, owner_id, deck_id, front, back, stability, difficulty, due,
	last_review_at, reps, lapses, version, created_at, updated_at`

// CardRepository handles database operations for cards
type CardRepository struct {
	db *sqlx.DB
}

// NewCardRepository creates a new repository instance
func NewCardRepository(db *sqlx.DB) *CardRepository {
	return &CardRepository{db: db}
}

// Create inserts a new card. The scheduling fields must already be set.
func (r *CardRepository) Create(ctx context.Context, card *models.Card) error {
	now := time.Now().UTC()
	if card.CreatedAt.IsZero() {
		card.CreatedAt = now
	}
	card.UpdatedAt = card.CreatedAt
	card.Version = 1

	id, err := insertID(ctx, r.db, `
		INSERT INTO cards (
			owner_id, deck_id, front, back, stability, difficulty, due,
			last_review_at, reps, lapses, version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		card.OwnerID,
		card.DeckID,
		card.Front,
		card.Back,
		card.Stability,
		card.Difficulty,
		card.Due.UTC(),
		utcPtr(card.LastReviewAt),
		card.Reps,
		card.Lapses,
		card.Version,
		card.CreatedAt,
		card.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create card: %w", err)
	}
	card.ID = id
	return nil
}

// GetByID returns a card by ID
func (r *CardRepository) GetByID(ctx context.Context, id int64) (*models.Card, error) {
	return r.get(ctx, r.db, id, false)
}

// GetForUpdate reads a card inside tx. On PostgreSQL the row is locked until
// the transaction ends; SQLite already serialises writers.
func (r *CardRepository) GetForUpdate(ctx context.Context, tx *sqlx.Tx, id int64) (*models.Card, error) {
	return r.get(ctx, tx, id, tx.DriverName() == DriverPostgres)
}

func (r *CardRepository) get(ctx context.Context, q sqlx.ExtContext, id int64, lock bool) (*models.Card, error) {
	query := "SELECT " + cardColumns + " FROM cards WHERE id = ?"
	if lock {
		query += " FOR UPDATE"
	}
	var card models.Card
	if err := sqlx.GetContext(ctx, q, &card, q.Rebind(query), id); err != nil {
		return nil, wrapErr(fmt.Sprintf("failed to get card %d", id), err)
	}
	return &card, nil
}

// UpdateScheduling persists the scheduling fields of card. The write only
// succeeds if nobody changed the row since card was read; otherwise
// ErrConflict is returned.
func (r *CardRepository) UpdateScheduling(ctx context.Context, q sqlx.ExtContext, card *models.Card) error {
	updatedAt := time.Now().UTC()
	result, err := q.ExecContext(ctx, q.Rebind(`
		UPDATE cards SET
			stability = ?,
			difficulty = ?,
			due = ?,
			last_review_at = ?,
			reps = ?,
			lapses = ?,
			version = version + 1,
			updated_at = ?
		WHERE id = ? AND version = ?`),
		card.Stability,
		card.Difficulty,
		card.Due.UTC(),
		utcPtr(card.LastReviewAt),
		card.Reps,
		card.Lapses,
		updatedAt,
		card.ID,
		card.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update card %d: %w", card.ID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("card %d version %d: %w", card.ID, card.Version, ErrConflict)
	}

	card.Version++
	card.UpdatedAt = updatedAt
	return nil
}

// Delete removes a card and, by cascade, its review log
func (r *CardRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, r.db.Rebind("DELETE FROM cards WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("failed to delete card %d: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("card %d: %w", id, ErrNotFound)
	}
	return nil
}

// ListByDeck returns the cards of a deck ordered by ID
func (r *CardRepository) ListByDeck(ctx context.Context, deckID int64) ([]models.Card, error) {
	var cards []models.Card
	err := r.db.SelectContext(ctx, &cards,
		r.db.Rebind("SELECT "+cardColumns+" FROM cards WHERE deck_id = ? ORDER BY id"), deckID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cards of deck %d: %w", deckID, err)
	}
	return cards, nil
}

// ListByOwner returns every card of a user
func (r *CardRepository) ListByOwner(ctx context.Context, ownerID int64) ([]models.Card, error) {
	var cards []models.Card
	err := r.db.SelectContext(ctx, &cards,
		r.db.Rebind("SELECT "+cardColumns+" FROM cards WHERE owner_id = ? ORDER BY id"), ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cards of user %d: %w", ownerID, err)
	}
	return cards, nil
}

// GetDue returns cards of a user that are due at now, most overdue first.
// limit <= 0 means no limit.
func (r *CardRepository) GetDue(ctx context.Context, ownerID int64, now time.Time, limit int) ([]models.Card, error) {
	query := "SELECT " + cardColumns + " FROM cards WHERE owner_id = ? AND due <= ? ORDER BY due ASC, id ASC"
	args := []interface{}{ownerID, now.UTC()}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var cards []models.Card
	if err := r.db.SelectContext(ctx, &cards, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to get due cards: %w", err)
	}
	return cards, nil
}

// CountDue returns how many cards of a user are due at now
func (r *CardRepository) CountDue(ctx context.Context, ownerID int64, now time.Time) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		r.db.Rebind("SELECT COUNT(*) FROM cards WHERE owner_id = ? AND due <= ?"), ownerID, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to count due cards: %w", err)
	}
	return count, nil
}

func utcPtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}
