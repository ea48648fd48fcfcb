package models

import (
	"time"

	sr "github.com/example/cardsched/internal/spaced_repetition"
)

// ReviewLog is one persisted review of a card. Rows are never updated.
type ReviewLog struct {
	ID                 int64     `json:"id" db:"id"`
	CardID             int64     `json:"card_id" db:"card_id"`
	OwnerID            int64     `json:"owner_id" db:"owner_id"`
	Rating             sr.Rating `json:"rating" db:"rating"`
	ReviewedAt         time.Time `json:"reviewed_at" db:"reviewed_at"`
	ElapsedDays        float64   `json:"elapsed_days" db:"elapsed_days"`
	PreviousStability  float64   `json:"previous_stability" db:"previous_stability"`
	NewStability       float64   `json:"new_stability" db:"new_stability"`
	PreviousDifficulty float64   `json:"previous_difficulty" db:"previous_difficulty"`
	NewDifficulty      float64   `json:"new_difficulty" db:"new_difficulty"`
	PreviousDue        time.Time `json:"previous_due" db:"previous_due"`
	NewDue             time.Time `json:"new_due" db:"new_due"`
	Interval           int       `json:"interval" db:"interval_days"`
}

// NewReviewLog builds a row from an engine log entry
func NewReviewLog(cardID, ownerID int64, e sr.ReviewLogEntry) ReviewLog {
	return ReviewLog{
		CardID:             cardID,
		OwnerID:            ownerID,
		Rating:             e.Rating,
		ReviewedAt:         e.ReviewedAt,
		ElapsedDays:        e.ElapsedDays,
		PreviousStability:  e.PreviousStability,
		NewStability:       e.NewStability,
		PreviousDifficulty: e.PreviousDifficulty,
		NewDifficulty:      e.NewDifficulty,
		PreviousDue:        e.PreviousDue,
		NewDue:             e.NewDue,
		Interval:           e.Interval,
	}
}

// Entry converts the row back into an engine log entry
func (l ReviewLog) Entry() sr.ReviewLogEntry {
	return sr.ReviewLogEntry{
		Rating:             l.Rating,
		ReviewedAt:         l.ReviewedAt.UTC(),
		ElapsedDays:        l.ElapsedDays,
		PreviousStability:  l.PreviousStability,
		NewStability:       l.NewStability,
		PreviousDifficulty: l.PreviousDifficulty,
		NewDifficulty:      l.NewDifficulty,
		PreviousDue:        l.PreviousDue.UTC(),
		NewDue:             l.NewDue.UTC(),
		Interval:           l.Interval,
	}
}
