package spaced_repetition

import (
	"fmt"
	"math"
)

// Weights tunes the memory model. A zero weight means "use the default"; to
// switch a term off, use a small positive value instead.
type Weights struct {
	InitStability          float64 `json:"init_stability" yaml:"init_stability"`
	InitDifficulty         float64 `json:"init_difficulty" yaml:"init_difficulty"`
	StabilityGrowth        float64 `json:"stability_growth" yaml:"stability_growth"`
	StabilityDecayExponent float64 `json:"stability_decay_exponent" yaml:"stability_decay_exponent"`
	DifficultyStep         float64 `json:"difficulty_step" yaml:"difficulty_step"`
	DifficultyDecay        float64 `json:"difficulty_decay" yaml:"difficulty_decay"`
	EasyBonus              float64 `json:"easy_bonus" yaml:"easy_bonus"`
	HardPenalty            float64 `json:"hard_penalty" yaml:"hard_penalty"`
	LapseResetStability    float64 `json:"lapse_reset_stability" yaml:"lapse_reset_stability"`
}

// DefaultWeights are used for any weight left at zero.
var DefaultWeights = Weights{
	InitStability:          1.0,
	InitDifficulty:         5.0,
	StabilityGrowth:        3.0,
	StabilityDecayExponent: 1.0,
	DifficultyStep:         0.5,
	DifficultyDecay:        1.0,
	EasyBonus:              1.5,
	HardPenalty:            0.5,
	LapseResetStability:    0.4,
}

const (
	DefaultRequestRetention = 0.9
	DefaultMaximumInterval  = 36500
)

// Config is the process-wide scheduling configuration. It is built once at
// startup and passed by value; nothing mutates it afterwards.
type Config struct {
	RequestRetention float64 `json:"request_retention" yaml:"request_retention"`
	MaximumInterval  int     `json:"maximum_interval" yaml:"maximum_interval"`
	Weights          Weights `json:"weights" yaml:"weights"`
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	return Config{
		RequestRetention: DefaultRequestRetention,
		MaximumInterval:  DefaultMaximumInterval,
		Weights:          DefaultWeights,
	}
}

// WithDefaults returns a copy of c with zero fields replaced by defaults.
// Zero is never kept, even for weights where it would pass Validate.
func (c Config) WithDefaults() Config {
	if c.RequestRetention == 0 {
		c.RequestRetention = DefaultRequestRetention
	}
	if c.MaximumInterval == 0 {
		c.MaximumInterval = DefaultMaximumInterval
	}
	w, d := &c.Weights, DefaultWeights
	fill := func(v *float64, def float64) {
		if *v == 0 {
			*v = def
		}
	}
	fill(&w.InitStability, d.InitStability)
	fill(&w.InitDifficulty, d.InitDifficulty)
	fill(&w.StabilityGrowth, d.StabilityGrowth)
	fill(&w.StabilityDecayExponent, d.StabilityDecayExponent)
	fill(&w.DifficultyStep, d.DifficultyStep)
	fill(&w.DifficultyDecay, d.DifficultyDecay)
	fill(&w.EasyBonus, d.EasyBonus)
	fill(&w.HardPenalty, d.HardPenalty)
	fill(&w.LapseResetStability, d.LapseResetStability)
	return c
}

// Validate checks every field against its allowed range.
func (c Config) Validate() error {
	if !(c.RequestRetention > 0 && c.RequestRetention < 1) {
		return fmt.Errorf("%w: request retention %v out of range (0, 1)", ErrInvalidConfig, c.RequestRetention)
	}
	if c.MaximumInterval < 1 || c.MaximumInterval > MaxInterval {
		return fmt.Errorf("%w: maximum interval %d out of range [1, %d]", ErrInvalidConfig, c.MaximumInterval, MaxInterval)
	}

	w := c.Weights
	checks := []struct {
		name   string
		value  float64
		lo, hi float64
		openLo bool
	}{
		{"init_stability", w.InitStability, MinStability, MaxStability, false},
		{"init_difficulty", w.InitDifficulty, MinDifficulty, MaxDifficulty, false},
		{"stability_growth", w.StabilityGrowth, 0, math.MaxFloat64, false},
		{"stability_decay_exponent", w.StabilityDecayExponent, 0, math.MaxFloat64, false},
		{"difficulty_step", w.DifficultyStep, 0, MaxDifficulty, false},
		{"difficulty_decay", w.DifficultyDecay, 0, MaxDifficulty, false},
		{"easy_bonus", w.EasyBonus, 1, math.MaxFloat64, false},
		{"hard_penalty", w.HardPenalty, 0, 1, true},
		{"lapse_reset_stability", w.LapseResetStability, MinStability, MaxStability, false},
	}
	for _, ch := range checks {
		bad := math.IsNaN(ch.value) || ch.value > ch.hi || ch.value < ch.lo || (ch.openLo && ch.value == ch.lo)
		if bad {
			return fmt.Errorf("%w: %s = %v out of range", ErrInvalidConfig, ch.name, ch.value)
		}
	}
	return nil
}
