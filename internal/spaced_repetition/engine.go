package spaced_repetition

import (
	"math"
	"time"
)

const (
	// FloorDays is the smallest elapsed time the model sees (one hour).
	FloorDays = 1.0 / 24

	// MinStability is the lower clamp for stability, in days.
	MinStability = 0.01
	// MaxStability is the upper clamp for stability, in days (about 100 years).
	MaxStability = 36500.0

	// MinDifficulty is the easiest a card can get.
	MinDifficulty = 1.0
	// MaxDifficulty is the hardest a card can get.
	MaxDifficulty = 10.0

	// MaxInterval is the largest interval, in days, a Config may ask for.
	MaxInterval = int(MaxStability)
)

// State is the scheduling state of one card.
type State struct {
	Stability    float64    `json:"stability"`
	Difficulty   float64    `json:"difficulty"`
	Due          time.Time  `json:"due"`
	LastReviewAt *time.Time `json:"last_review_at"`
	Reps         int        `json:"reps"`
	Lapses       int        `json:"lapses"`
}

// ReviewLogEntry describes one applied review. It is append-only.
type ReviewLogEntry struct {
	Rating             Rating    `json:"rating"`
	ReviewedAt         time.Time `json:"reviewed_at"`
	ElapsedDays        float64   `json:"elapsed_days"`
	PreviousStability  float64   `json:"previous_stability"`
	NewStability       float64   `json:"new_stability"`
	PreviousDifficulty float64   `json:"previous_difficulty"`
	NewDifficulty      float64   `json:"new_difficulty"`
	PreviousDue        time.Time `json:"previous_due"`
	NewDue             time.Time `json:"new_due"`
	Interval           int       `json:"interval"`
}

// Result is the outcome of Next.
type Result struct {
	State    State          `json:"state"`
	Interval int            `json:"interval"`
	Log      ReviewLogEntry `json:"log"`
}

// InitialState returns the state of a freshly created card, due immediately.
func InitialState(now time.Time, cfg Config) State {
	now = now.UTC()
	return State{
		Stability:    clampS(cfg.Weights.InitStability),
		Difficulty:   clampD(cfg.Weights.InitDifficulty),
		Due:          now,
		LastReviewAt: &now,
	}
}

// Next applies a review to state and returns the new state, the interval in
// days and the log entry to persist. It is pure: same inputs, same output.
//
// rating must be valid; callers reject anything else before calling. Every
// other input is sanitised, so a corrupt state always comes back as a valid,
// scheduled one.
func Next(state State, rating Rating, now time.Time, cfg Config) Result {
	now = now.UTC()
	w := cfg.Weights

	stability := sanitizeStability(state.Stability, w.InitStability)
	difficulty := state.Difficulty
	if math.IsNaN(difficulty) {
		difficulty = w.InitDifficulty
	}
	difficulty = clampD(difficulty)

	last := now
	if state.LastReviewAt != nil {
		last = state.LastReviewAt.UTC()
	}
	elapsed := math.Max(FloorDays, now.Sub(last).Hours()/24)
	r := retrievability(elapsed, stability, cfg.RequestRetention)

	ord := rating
	if ord < Again {
		ord = Again
	} else if ord > Easy {
		ord = Easy
	}

	next := State{
		Reps:         max(state.Reps, 0),
		Lapses:       max(state.Lapses, 0),
		LastReviewAt: &now,
	}
	newDifficulty := clampD(difficulty + w.DifficultyStep*float64(NeutralRating-ord))

	var newStability float64
	if ord == Again {
		newStability = w.LapseResetStability
		newDifficulty = clampD(newDifficulty + w.DifficultyDecay)
		next.Lapses++
	} else {
		performance := math.Pow(r, w.StabilityDecayExponent)
		newStability = math.Max(stability, w.InitStability) *
			(1 + w.StabilityGrowth*(1-performance)*ratingAdjustment(ord, w))
		next.Reps++
	}
	next.Stability = clampS(newStability)
	next.Difficulty = newDifficulty

	interval := nextInterval(next.Stability, cfg.RequestRetention, cfg.MaximumInterval)
	next.Due = now.AddDate(0, 0, interval)

	return Result{
		State:    next,
		Interval: interval,
		Log: ReviewLogEntry{
			Rating:             rating,
			ReviewedAt:         now,
			ElapsedDays:        elapsed,
			PreviousStability:  state.Stability,
			NewStability:       next.Stability,
			PreviousDifficulty: state.Difficulty,
			NewDifficulty:      next.Difficulty,
			PreviousDue:        state.Due,
			NewDue:             next.Due,
			Interval:           interval,
		},
	}
}

// retrievability is r^(t/S): equal to the target retention when t == S.
func retrievability(elapsedDays, stability, retention float64) float64 {
	return math.Pow(retention, elapsedDays/math.Max(stability, MinStability))
}

func ratingAdjustment(r Rating, w Weights) float64 {
	switch r {
	case Easy:
		return w.EasyBonus
	case Hard:
		return w.HardPenalty
	default:
		return 1
	}
}

// nextInterval is S·ln(1/(1−r)) rounded and clamped to [1, maxIvl]. maxIvl
// itself is capped at MaxInterval.
func nextInterval(stability, retention float64, maxIvl int) int {
	maxIvl = min(max(maxIvl, 1), MaxInterval)
	raw := math.Round(stability * math.Log(1/(1-retention)))
	switch {
	case math.IsNaN(raw) || raw < 1:
		return 1
	case raw > float64(maxIvl):
		return maxIvl
	}
	return int(raw)
}

func sanitizeStability(s, fallback float64) float64 {
	if math.IsNaN(s) || math.IsInf(s, 0) || s <= 0 {
		s = fallback
	}
	return clampS(s)
}

func clampS(s float64) float64 {
	if math.IsNaN(s) {
		return MinStability
	}
	return math.Min(math.Max(s, MinStability), MaxStability)
}

func clampD(d float64) float64 {
	if math.IsNaN(d) {
		return MinDifficulty
	}
	return math.Min(math.Max(d, MinDifficulty), MaxDifficulty)
}

// Engine binds a validated Config to the pure functions above.
type Engine struct {
	cfg Config
}

// NewEngine fills defaults into cfg and validates it.
func NewEngine(cfg Config) (*Engine, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg}, nil
}

// Config returns the engine's configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Initial returns the state of a new card created at now.
func (e *Engine) Initial(now time.Time) State {
	return InitialState(now, e.cfg)
}

// Review applies rating to state at now.
func (e *Engine) Review(state State, rating Rating, now time.Time) Result {
	return Next(state, rating, now, e.cfg)
}

// Preview returns the outcome of every possible rating without committing any.
func (e *Engine) Preview(state State, now time.Time) map[Rating]Result {
	out := make(map[Rating]Result, len(Ratings))
	for _, r := range Ratings {
		out[r] = Next(state, r, now, e.cfg)
	}
	return out
}

// Replay rebuilds a state by reapplying logged reviews in order. Entries with
// an invalid rating are skipped.
func (e *Engine) Replay(initial State, entries []ReviewLogEntry) State {
	s := initial
	for _, entry := range entries {
		if !entry.Rating.IsValid() {
			continue
		}
		s = Next(s, entry.Rating, entry.ReviewedAt, e.cfg).State
	}
	return s
}

// Retrievability is the modelled recall probability of state at now.
func (e *Engine) Retrievability(state State, now time.Time) float64 {
	last := now
	if state.LastReviewAt != nil {
		last = *state.LastReviewAt
	}
	elapsed := math.Max(FloorDays, now.Sub(last).Hours()/24)
	return retrievability(elapsed, sanitizeStability(state.Stability, e.cfg.Weights.InitStability), e.cfg.RequestRetention)
}
