package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/cardsched/pkg/models"
	"github.com/jmoiron/sqlx"
)

// DeckRepository handles database operations for decks
type DeckRepository struct {
	db *sqlx.DB
}

// NewDeckRepository creates a new repository instance
func NewDeckRepository(db *sqlx.DB) *DeckRepository {
	return &DeckRepository{db: db}
}

// Create inserts a new deck
func (r *DeckRepository) Create(ctx context.Context, deck *models.Deck) error {
	deck.Name = strings.TrimSpace(deck.Name)
	if deck.Name == "" {
		return errors.New("deck name is required")
	}
	deck.CreatedAt = time.Now().UTC()

	id, err := insertID(ctx, r.db,
		"INSERT INTO decks (owner_id, name, created_at) VALUES (?, ?, ?)",
		deck.OwnerID, deck.Name, deck.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create deck %q: %w", deck.Name, err)
	}
	deck.ID = id
	return nil
}

// GetByID returns a deck by ID
func (r *DeckRepository) GetByID(ctx context.Context, id int64) (*models.Deck, error) {
	var deck models.Deck
	err := r.db.GetContext(ctx, &deck,
		r.db.Rebind("SELECT id, owner_id, name, created_at FROM decks WHERE id = ?"), id)
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("failed to get deck %d", id), err)
	}
	return &deck, nil
}

// GetByName returns a user's deck by name
func (r *DeckRepository) GetByName(ctx context.Context, ownerID int64, name string) (*models.Deck, error) {
	var deck models.Deck
	err := r.db.GetContext(ctx, &deck,
		r.db.Rebind("SELECT id, owner_id, name, created_at FROM decks WHERE owner_id = ? AND name = ?"),
		ownerID, strings.TrimSpace(name))
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("failed to get deck %q", name), err)
	}
	return &deck, nil
}

// GetOrCreate returns the named deck, creating it if needed
func (r *DeckRepository) GetOrCreate(ctx context.Context, ownerID int64, name string) (*models.Deck, error) {
	deck, err := r.GetByName(ctx, ownerID, name)
	if err == nil {
		return deck, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	deck = &models.Deck{OwnerID: ownerID, Name: name}
	if err := r.Create(ctx, deck); err != nil {
		return nil, err
	}
	return deck, nil
}

// List returns the decks of a user ordered by name
func (r *DeckRepository) List(ctx context.Context, ownerID int64) ([]models.Deck, error) {
	var decks []models.Deck
	err := r.db.SelectContext(ctx, &decks,
		r.db.Rebind("SELECT id, owner_id, name, created_at FROM decks WHERE owner_id = ? ORDER BY name"), ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list decks: %w", err)
	}
	return decks, nil
}

// Delete removes a deck together with its cards
func (r *DeckRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, r.db.Rebind("DELETE FROM decks WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("failed to delete deck %d: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("deck %d: %w", id, ErrNotFound)
	}
	return nil
}
