package models

// Statistics summarises a user's collection
type Statistics struct {
	UserID        int64   `json:"user_id"`
	TotalCards    int     `json:"total_cards" db:"total_cards"`
	DueNow        int     `json:"due_now" db:"due_now"`
	DueToday      int     `json:"due_today" db:"due_today"`
	Mastered      int     `json:"mastered" db:"mastered"`
	TotalReviews  int     `json:"total_reviews" db:"total_reviews"`
	TotalLapses   int     `json:"total_lapses" db:"total_lapses"`
	AvgStability  float64 `json:"avg_stability" db:"avg_stability"`
	AvgDifficulty float64 `json:"avg_difficulty" db:"avg_difficulty"`
	// Reviews per rating name
	Ratings map[string]int `json:"ratings"`
}
