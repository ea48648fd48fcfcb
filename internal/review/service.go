// Package review runs the scheduling engine against stored cards. Every
// review is applied inside a transaction together with its log entry.
package review

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/cardsched/internal/database"
	sr "github.com/example/cardsched/internal/spaced_repetition"
	"github.com/example/cardsched/pkg/models"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

// maxReviewAttempts bounds retries after a concurrent update of the same card
const maxReviewAttempts = 3

// ErrInvalidInput is returned for requests that fail validation
var ErrInvalidInput = errors.New("invalid input")

// NewCard holds the fields needed to create a card
type NewCard struct {
	OwnerID int64  `json:"owner_id"`
	DeckID  int64  `json:"deck_id"`
	Front   string `json:"front"`
	Back    string `json:"back"`
}

// Outcome is the result of a committed review
type Outcome struct {
	Card     *models.Card     `json:"card"`
	Log      models.ReviewLog `json:"log"`
	Interval int              `json:"interval"`
}

// Service coordinates the engine and the card store
type Service struct {
	db      *sqlx.DB
	users   *database.UserRepository
	decks   *database.DeckRepository
	cards   *database.CardRepository
	logs    *database.ReviewLogRepository
	stats   *database.StatisticsRepository
	engine  *sr.Engine
	metrics *Metrics
	log     zerolog.Logger
	now     func() time.Time
}

// Option customises a Service
type Option func(*Service)

// WithLogger sets the service logger
func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithMetrics enables Prometheus metrics
func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock replaces time.Now, mainly for tests
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a review service on top of db
func NewService(db *sqlx.DB, engine *sr.Engine, opts ...Option) *Service {
	s := &Service{
		db:     db,
		users:  database.NewUserRepository(db),
		decks:  database.NewDeckRepository(db),
		cards:  database.NewCardRepository(db),
		logs:   database.NewReviewLogRepository(db),
		stats:  database.NewStatisticsRepository(db),
		engine: engine,
		log:    zerolog.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Engine returns the scheduling engine in use
func (s *Service) Engine() *sr.Engine {
	return s.engine
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}

// CreateUser registers a user
func (s *Service) CreateUser(ctx context.Context, user *models.User) error {
	if strings.TrimSpace(user.Username) == "" {
		return fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	if user.NotificationHour < 0 || user.NotificationHour > 23 {
		return fmt.Errorf("%w: notification hour %d out of range 0-23", ErrInvalidInput, user.NotificationHour)
	}
	return s.users.Create(ctx, user)
}

// GetUser returns a user by ID
func (s *Service) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return s.users.GetByID(ctx, id)
}

// CreateDeck creates a deck for ownerID
func (s *Service) CreateDeck(ctx context.Context, ownerID int64, name string) (*models.Deck, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: deck name is required", ErrInvalidInput)
	}
	if _, err := s.users.GetByID(ctx, ownerID); err != nil {
		return nil, err
	}
	deck := &models.Deck{OwnerID: ownerID, Name: name}
	if err := s.decks.Create(ctx, deck); err != nil {
		return nil, err
	}
	return deck, nil
}

// DeckByName returns the named deck of ownerID, creating it if needed
func (s *Service) DeckByName(ctx context.Context, ownerID int64, name string) (*models.Deck, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: deck name is required", ErrInvalidInput)
	}
	return s.decks.GetOrCreate(ctx, ownerID, name)
}

// ListDecks returns the decks of ownerID
func (s *Service) ListDecks(ctx context.Context, ownerID int64) ([]models.Deck, error) {
	return s.decks.List(ctx, ownerID)
}

// CreateCard stores a new card in its initial scheduling state
func (s *Service) CreateCard(ctx context.Context, in NewCard) (*models.Card, error) {
	in.Front = strings.TrimSpace(in.Front)
	in.Back = strings.TrimSpace(in.Back)
	if in.Front == "" || in.Back == "" {
		return nil, fmt.Errorf("%w: front and back are required", ErrInvalidInput)
	}

	deck, err := s.decks.GetByID(ctx, in.DeckID)
	if err != nil {
		return nil, err
	}
	if deck.OwnerID != in.OwnerID {
		return nil, fmt.Errorf("%w: deck %d does not belong to user %d", ErrInvalidInput, in.DeckID, in.OwnerID)
	}

	now := s.clock()
	card := &models.Card{
		OwnerID:   in.OwnerID,
		DeckID:    in.DeckID,
		Front:     in.Front,
		Back:      in.Back,
		CreatedAt: now,
	}
	card.SetState(s.engine.Initial(now))
	if err := s.cards.Create(ctx, card); err != nil {
		return nil, err
	}
	return card, nil
}

// ListCards returns the cards of a deck
func (s *Service) ListCards(ctx context.Context, deckID int64) ([]models.Card, error) {
	return s.cards.ListByDeck(ctx, deckID)
}

// GetCard returns a card by ID
func (s *Service) GetCard(ctx context.Context, id int64) (*models.Card, error) {
	return s.cards.GetByID(ctx, id)
}

// DeleteCard removes a card and its history
func (s *Service) DeleteCard(ctx context.Context, id int64) error {
	return s.cards.Delete(ctx, id)
}

// Review records rating for a card at the current time. Invalid ratings are
// rejected before the engine runs.
func (s *Service) Review(ctx context.Context, cardID int64, rating sr.Rating) (*Outcome, error) {
	if !rating.IsValid() {
		return nil, fmt.Errorf("%w: %d", sr.ErrInvalidRating, int(rating))
	}

	start := time.Now()
	var (
		out *Outcome
		err error
	)
	for attempt := 1; attempt <= maxReviewAttempts; attempt++ {
		out, err = s.reviewOnce(ctx, cardID, rating)
		if !errors.Is(err, database.ErrConflict) {
			break
		}
		s.metrics.recordConflict()
		s.log.Warn().Int64("card_id", cardID).Int("attempt", attempt).Msg("concurrent review, retrying")
	}
	if err != nil {
		return nil, err
	}

	s.metrics.recordReview(rating, out.Interval, time.Since(start))
	s.log.Debug().
		Int64("card_id", cardID).
		Stringer("rating", rating).
		Int("interval", out.Interval).
		Float64("stability", out.Card.Stability).
		Msg("card reviewed")
	return out, nil
}

func (s *Service) reviewOnce(ctx context.Context, cardID int64, rating sr.Rating) (*Outcome, error) {
	var out *Outcome
	err := database.WithTransaction(ctx, s.db, func(tx *sqlx.Tx) error {
		card, err := s.cards.GetForUpdate(ctx, tx, cardID)
		if err != nil {
			return err
		}

		res := s.engine.Review(card.State(), rating, s.clock())
		card.SetState(res.State)
		if err := s.cards.UpdateScheduling(ctx, tx, card); err != nil {
			return err
		}

		entry := models.NewReviewLog(card.ID, card.OwnerID, res.Log)
		if err := s.logs.Append(ctx, tx, &entry); err != nil {
			return err
		}
		out = &Outcome{Card: card, Log: entry, Interval: res.Interval}
		return nil
	})
	return out, err
}

// Preview returns what each rating would do to the card now, without saving
func (s *Service) Preview(ctx context.Context, cardID int64) (map[sr.Rating]sr.Result, error) {
	card, err := s.cards.GetByID(ctx, cardID)
	if err != nil {
		return nil, err
	}
	return s.engine.Preview(card.State(), s.clock()), nil
}

// Retrievability returns the modelled recall probability of the card now
func (s *Service) Retrievability(ctx context.Context, cardID int64) (float64, error) {
	card, err := s.cards.GetByID(ctx, cardID)
	if err != nil {
		return 0, err
	}
	return s.engine.Retrievability(card.State(), s.clock()), nil
}

// Due returns up to limit due cards of ownerID in review order
func (s *Service) Due(ctx context.Context, ownerID int64, limit int) ([]models.Card, error) {
	now := s.clock()
	cards, err := s.cards.GetDue(ctx, ownerID, now, 0)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]models.Card, len(cards))
	items := make([]sr.QueueItem, 0, len(cards))
	for _, c := range cards {
		byID[c.ID] = c
		items = append(items, sr.QueueItem{CardID: c.ID, State: c.State()})
	}

	sorted := sr.SortDue(items, now, limit)
	out := make([]models.Card, 0, len(sorted))
	for _, it := range sorted {
		out = append(out, byID[it.CardID])
	}
	return out, nil
}

// History returns the review log of a card, oldest first
func (s *Service) History(ctx context.Context, cardID int64) ([]models.ReviewLog, error) {
	if _, err := s.cards.GetByID(ctx, cardID); err != nil {
		return nil, err
	}
	return s.logs.ListByCard(ctx, cardID)
}

// OwnerHistory returns every review of ownerID since the given time
func (s *Service) OwnerHistory(ctx context.Context, ownerID int64, since time.Time) ([]models.ReviewLog, error) {
	return s.logs.ListByOwner(ctx, ownerID, since)
}

// Reschedule recomputes a card's state by replaying its history with the
// current configuration. The log itself is left untouched.
func (s *Service) Reschedule(ctx context.Context, cardID int64) (*models.Card, error) {
	var err error
	for attempt := 1; attempt <= maxReviewAttempts; attempt++ {
		var card *models.Card
		card, err = s.rescheduleOnce(ctx, cardID)
		if err == nil {
			s.log.Info().Int64("card_id", cardID).Time("due", card.Due).Msg("card rescheduled")
			return card, nil
		}
		if !errors.Is(err, database.ErrConflict) {
			return nil, err
		}
		s.metrics.recordConflict()
	}
	return nil, err
}

func (s *Service) rescheduleOnce(ctx context.Context, cardID int64) (*models.Card, error) {
	card, err := s.cards.GetByID(ctx, cardID)
	if err != nil {
		return nil, err
	}
	history, err := s.logs.ListByCard(ctx, cardID)
	if err != nil {
		return nil, err
	}

	entries := make([]sr.ReviewLogEntry, 0, len(history))
	for _, l := range history {
		entries = append(entries, l.Entry())
	}
	card.SetState(s.engine.Replay(s.engine.Initial(card.CreatedAt.UTC()), entries))

	// The version check rejects the write if a review landed in between
	if err := s.cards.UpdateScheduling(ctx, s.db, card); err != nil {
		return nil, err
	}
	return card, nil
}

// Statistics returns progress statistics of a user
func (s *Service) Statistics(ctx context.Context, userID int64) (*models.Statistics, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.stats.GetUserStatistics(ctx, userID, s.clock())
}
