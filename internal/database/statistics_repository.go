package database

import (
	"context"
	"fmt"
	"time"

	sr "github.com/example/cardsched/internal/spaced_repetition"
	"github.com/example/cardsched/pkg/models"
	"github.com/jmoiron/sqlx"
)

// StatisticsRepository computes progress statistics
type StatisticsRepository struct {
	db *sqlx.DB
}

// NewStatisticsRepository creates a new repository instance
func NewStatisticsRepository(db *sqlx.DB) *StatisticsRepository {
	return &StatisticsRepository{db: db}
}

// GetUserStatistics returns statistics about a user's collection at now
func (r *StatisticsRepository) GetUserStatistics(ctx context.Context, userID int64, now time.Time) (*models.Statistics, error) {
	now = now.UTC()
	stats := &models.Statistics{UserID: userID}

	err := r.db.GetContext(ctx, stats, r.db.Rebind(`
		SELECT
			COUNT(*) AS total_cards,
			COALESCE(SUM(CASE WHEN due <= ? THEN 1 ELSE 0 END), 0) AS due_now,
			COALESCE(SUM(CASE WHEN due <= ? THEN 1 ELSE 0 END), 0) AS due_today,
			COALESCE(SUM(lapses), 0) AS total_lapses,
			COALESCE(AVG(stability), 0) AS avg_stability,
			COALESCE(AVG(difficulty), 0) AS avg_difficulty
		FROM cards WHERE owner_id = ?`),
		now, now.AddDate(0, 0, 1), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get card statistics: %w", err)
	}

	err = r.db.GetContext(ctx, &stats.TotalReviews,
		r.db.Rebind("SELECT COUNT(*) FROM review_logs WHERE owner_id = ?"), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count reviews: %w", err)
	}

	// Mastery depends on the current interval, which is easier to derive in Go
	var states []struct {
		Due          time.Time  `db:"due"`
		LastReviewAt *time.Time `db:"last_review_at"`
		Reps         int        `db:"reps"`
		Lapses       int        `db:"lapses"`
	}
	err = r.db.SelectContext(ctx, &states,
		r.db.Rebind("SELECT due, last_review_at, reps, lapses FROM cards WHERE owner_id = ? AND reps >= 5"), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get mastery candidates: %w", err)
	}
	for _, s := range states {
		st := sr.State{Due: s.Due, LastReviewAt: s.LastReviewAt, Reps: s.Reps, Lapses: s.Lapses}
		if sr.IsMastered(st, sr.CurrentInterval(st)) {
			stats.Mastered++
		}
	}

	stats.Ratings, err = r.GetRatingBreakdown(ctx, userID)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// GetRatingBreakdown counts a user's reviews per rating
func (r *StatisticsRepository) GetRatingBreakdown(ctx context.Context, userID int64) (map[string]int, error) {
	var rows []struct {
		Rating int `db:"rating"`
		Count  int `db:"count"`
	}
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(
		"SELECT rating, COUNT(*) AS count FROM review_logs WHERE owner_id = ? GROUP BY rating"), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get rating breakdown: %w", err)
	}

	breakdown := make(map[string]int, len(sr.Ratings))
	for _, rt := range sr.Ratings {
		breakdown[rt.String()] = 0
	}
	for _, row := range rows {
		breakdown[sr.Rating(row.Rating).String()] = row.Count
	}
	return breakdown, nil
}
