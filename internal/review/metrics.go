package review

import (
	"errors"
	"fmt"
	"time"

	sr "github.com/example/cardsched/internal/spaced_repetition"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "cardsched"

// Metrics exports review counters to Prometheus. A nil *Metrics is a no-op.
type Metrics struct {
	reviews   *prometheus.CounterVec
	lapses    prometheus.Counter
	conflicts prometheus.Counter
	duration  prometheus.Histogram
	intervals prometheus.Histogram
}

// NewMetrics registers the review metrics on reg (the default registerer
// when nil). Registering twice on the same registry reuses the collectors.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		reviews: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "reviews_total",
			Help:      "Reviews recorded, by rating.",
		}, []string{"rating"}),
		lapses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "lapses_total",
			Help:      "Reviews rated Again.",
		}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "review_conflicts_total",
			Help:      "Reviews retried after a concurrent update of the same card.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "review_duration_seconds",
			Help:      "Latency of a review including persistence.",
			Buckets:   prometheus.DefBuckets,
		}),
		intervals: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "review_interval_days",
			Help:      "Intervals assigned by reviews.",
			Buckets:   []float64{1, 2, 4, 7, 14, 30, 60, 120, 365, 1825, 36500},
		}),
	}

	var err error
	if m.reviews, err = register(reg, m.reviews); err != nil {
		return nil, err
	}
	if m.lapses, err = register(reg, m.lapses); err != nil {
		return nil, err
	}
	if m.conflicts, err = register(reg, m.conflicts); err != nil {
		return nil, err
	}
	if m.duration, err = register(reg, m.duration); err != nil {
		return nil, err
	}
	if m.intervals, err = register(reg, m.intervals); err != nil {
		return nil, err
	}
	return m, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("register review metric: %w", err)
	}
	return c, nil
}

func (m *Metrics) recordReview(rating sr.Rating, interval int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.reviews.WithLabelValues(rating.String()).Inc()
	if rating == sr.Again {
		m.lapses.Inc()
	}
	m.duration.Observe(elapsed.Seconds())
	m.intervals.Observe(float64(interval))
}

func (m *Metrics) recordConflict() {
	if m == nil {
		return
	}
	m.conflicts.Inc()
}
