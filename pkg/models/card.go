package models

import (
	"time"

	sr "github.com/example/cardsched/internal/spaced_repetition"
)

// Card is a flashcard together with its scheduling state
type Card struct {
	ID           int64      `json:"id" db:"id"`
	OwnerID      int64      `json:"owner_id" db:"owner_id"`
	DeckID       int64      `json:"deck_id" db:"deck_id"`
	Front        string     `json:"front" db:"front"`
	Back         string     `json:"back" db:"back"`
	Stability    float64    `json:"stability" db:"stability"`
	Difficulty   float64    `json:"difficulty" db:"difficulty"`
	Due          time.Time  `json:"due" db:"due"`
	LastReviewAt *time.Time `json:"last_review_at" db:"last_review_at"`
	Reps         int        `json:"reps" db:"reps"`
	Lapses       int        `json:"lapses" db:"lapses"`
	Version      int64      `json:"version" db:"version"` // Optimistic concurrency token
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// State returns the card's scheduling state
func (c Card) State() sr.State {
	s := sr.State{
		Stability:  c.Stability,
		Difficulty: c.Difficulty,
		Due:        c.Due.UTC(),
		Reps:       c.Reps,
		Lapses:     c.Lapses,
	}
	if c.LastReviewAt != nil {
		last := c.LastReviewAt.UTC()
		s.LastReviewAt = &last
	}
	return s
}

// SetState copies a scheduling state onto the card
func (c *Card) SetState(s sr.State) {
	c.Stability = s.Stability
	c.Difficulty = s.Difficulty
	c.Due = s.Due
	c.LastReviewAt = s.LastReviewAt
	c.Reps = s.Reps
	c.Lapses = s.Lapses
}
