package spaced_repetition

import (
	"sort"
	"time"
)

// QueueItem pairs a card id with its scheduling state for ordering.
type QueueItem struct {
	CardID int64
	State  State
}

// IsDue reports whether s should be presented at now.
func IsDue(s State, now time.Time) bool {
	return !s.Due.After(now)
}

// SortDue keeps the items due at now and orders them by priority:
//  1. cards that have never been reviewed successfully (reps == 0)
//  2. harder cards (higher difficulty)
//  3. more overdue cards (earlier due date)
//
// At most limit items are returned; limit <= 0 means no limit.
func SortDue(items []QueueItem, now time.Time, limit int) []QueueItem {
	var due []QueueItem
	for _, it := range items {
		if IsDue(it.State, now) {
			due = append(due, it)
		}
	}

	sort.SliceStable(due, func(i, j int) bool {
		a, b := due[i].State, due[j].State
		if (a.Reps == 0) != (b.Reps == 0) {
			return a.Reps == 0
		}
		if a.Difficulty != b.Difficulty {
			return a.Difficulty > b.Difficulty
		}
		if !a.Due.Equal(b.Due) {
			return a.Due.Before(b.Due)
		}
		return due[i].CardID < due[j].CardID
	})

	if limit > 0 && len(due) > limit {
		return due[:limit]
	}
	return due
}

// IsMastered reports whether a card is considered learned:
// at least five successful reviews, more successes than lapses, and a
// current interval of three weeks or more.
func IsMastered(s State, interval int) bool {
	return s.Reps >= 5 &&
		s.Lapses < s.Reps &&
		interval >= 21
}

// CurrentInterval is the scheduled gap in whole days between the last review
// and the due date.
func CurrentInterval(s State) int {
	if s.LastReviewAt == nil {
		return 0
	}
	return int(s.Due.Sub(*s.LastReviewAt).Round(time.Hour).Hours() / 24)
}
