package database

import (
	"context"
	"testing"
	"time"

	sr "github.com/example/cardsched/internal/spaced_repetition"
	"github.com/example/cardsched/pkg/models"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := Connect(Config{Driver: DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

type fixture struct {
	db    *sqlx.DB
	users *UserRepository
	decks *DeckRepository
	cards *CardRepository
	logs  *ReviewLogRepository
	stats *StatisticsRepository
	user  *models.User
	deck  *models.Deck
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	f := &fixture{
		db:    db,
		users: NewUserRepository(db),
		decks: NewDeckRepository(db),
		cards: NewCardRepository(db),
		logs:  NewReviewLogRepository(db),
		stats: NewStatisticsRepository(db),
	}
	ctx := context.Background()
	f.user = &models.User{Username: "ann", TelegramID: 42, NotificationEnabled: true, NotificationHour: 9}
	require.NoError(t, f.users.Create(ctx, f.user))
	var err error
	f.deck, err = f.decks.GetOrCreate(ctx, f.user.ID, "Verbs")
	require.NoError(t, err)
	return f
}

func (f *fixture) newCard(t *testing.T, front string, now time.Time) *models.Card {
	t.Helper()
	card := &models.Card{OwnerID: f.user.ID, DeckID: f.deck.ID, Front: front, Back: front + "-back"}
	card.SetState(sr.InitialState(now, sr.DefaultConfig()))
	require.NoError(t, f.cards.Create(context.Background(), card))
	return card
}

func TestConnectCreatesSchemaTwice(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, InitializeSchema(db))
}

func TestCardRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	card := f.newCard(t, "go", t0)

	got, err := f.cards.GetByID(ctx, card.ID)
	require.NoError(t, err)

	assert.Equal(t, "go", got.Front)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, card.State(), got.State())
}

func TestGetByIDNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.cards.GetByID(context.Background(), 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateSchedulingOptimisticLock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	card := f.newCard(t, "run", t0)

	stale := *card
	res := sr.Next(card.State(), sr.Good, t0.Add(24*time.Hour), sr.DefaultConfig())
	card.SetState(res.State)
	require.NoError(t, f.cards.UpdateScheduling(ctx, f.db, card))
	assert.Equal(t, int64(2), card.Version)

	stale.SetState(sr.Next(stale.State(), sr.Again, t0.Add(24*time.Hour), sr.DefaultConfig()).State)
	err := f.cards.UpdateScheduling(ctx, f.db, &stale)
	require.ErrorIs(t, err, ErrConflict)

	got, err := f.cards.GetByID(ctx, card.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Reps)
	assert.Equal(t, 0, got.Lapses)
}

func TestTransactionRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	card := f.newCard(t, "eat", t0)

	err := WithTransaction(ctx, f.db, func(tx *sqlx.Tx) error {
		c, err := f.cards.GetForUpdate(ctx, tx, card.ID)
		require.NoError(t, err)
		res := sr.Next(c.State(), sr.Easy, t0.Add(48*time.Hour), sr.DefaultConfig())
		entry := models.NewReviewLog(c.ID, c.OwnerID, res.Log)
		require.NoError(t, f.logs.Append(ctx, tx, &entry))
		c.SetState(res.State)
		require.NoError(t, f.cards.UpdateScheduling(ctx, tx, c))
		return ErrConflict
	})
	require.ErrorIs(t, err, ErrConflict)

	logs, err := f.logs.ListByCard(ctx, card.ID)
	require.NoError(t, err)
	assert.Empty(t, logs)

	got, err := f.cards.GetByID(ctx, card.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
}

func TestReviewLogAppendAndList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	card := f.newCard(t, "see", t0)

	state := card.State()
	for i, r := range []sr.Rating{sr.Good, sr.Again, sr.Easy} {
		res := sr.Next(state, r, state.Due.Add(time.Duration(i)*time.Hour), sr.DefaultConfig())
		entry := models.NewReviewLog(card.ID, card.OwnerID, res.Log)
		require.NoError(t, f.logs.Append(ctx, f.db, &entry))
		assert.NotZero(t, entry.ID)
		state = res.State
	}

	logs, err := f.logs.ListByCard(ctx, card.ID)
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, sr.Good, logs[0].Rating)
	assert.Equal(t, sr.Again, logs[1].Rating)
	assert.Equal(t, sr.Easy, logs[2].Rating)
	assert.Equal(t, sr.DefaultConfig().Weights.LapseResetStability, logs[1].NewStability)

	byOwner, err := f.logs.ListByOwner(ctx, f.user.ID, t0)
	require.NoError(t, err)
	assert.Len(t, byOwner, 3)

	require.NoError(t, f.cards.Delete(ctx, card.ID))
	logs, err = f.logs.ListByCard(ctx, card.ID)
	require.NoError(t, err)
	assert.Empty(t, logs, "logs are deleted with their card")
}

func TestGetDueAndCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.newCard(t, "a", t0)
	b := f.newCard(t, "b", t0.Add(-time.Hour))
	c := f.newCard(t, "c", t0.Add(time.Hour))

	due, err := f.cards.GetDue(ctx, f.user.ID, t0, 0)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, b.ID, due[0].ID)
	assert.Equal(t, a.ID, due[1].ID)

	due, err = f.cards.GetDue(ctx, f.user.ID, t0, 1)
	require.NoError(t, err)
	assert.Len(t, due, 1)

	n, err := f.cards.CountDue(ctx, f.user.ID, t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	byDeck, err := f.cards.ListByDeck(ctx, f.deck.ID)
	require.NoError(t, err)
	assert.Len(t, byDeck, 3)
	assert.Equal(t, c.ID, byDeck[2].ID)
}

func TestDecks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	again, err := f.decks.GetOrCreate(ctx, f.user.ID, " Verbs ")
	require.NoError(t, err)
	assert.Equal(t, f.deck.ID, again.ID)

	require.NoError(t, f.decks.Create(ctx, &models.Deck{OwnerID: f.user.ID, Name: "Animals"}))
	assert.Error(t, f.decks.Create(ctx, &models.Deck{OwnerID: f.user.ID, Name: "  "}))

	decks, err := f.decks.List(ctx, f.user.ID)
	require.NoError(t, err)
	require.Len(t, decks, 2)
	assert.Equal(t, "Animals", decks[0].Name)

	card := f.newCard(t, "x", t0)
	require.NoError(t, f.decks.Delete(ctx, f.deck.ID))
	_, err = f.cards.GetByID(ctx, card.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, f.decks.Delete(ctx, f.deck.ID), ErrNotFound)
}

func TestUsersForNotification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other := &models.User{Username: "bob", NotificationEnabled: false, NotificationHour: 9}
	require.NoError(t, f.users.Create(ctx, other))

	users, err := f.users.GetUsersForNotification(ctx, 9)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, f.user.ID, users[0].ID)
	assert.Equal(t, 20, users[0].CardsPerDay)

	other.NotificationEnabled = true
	other.NotificationHour = 9
	other.CardsPerDay = 5
	require.NoError(t, f.users.UpdateNotificationSettings(ctx, other))
	users, err = f.users.GetUsersForNotification(ctx, 9)
	require.NoError(t, err)
	assert.Len(t, users, 2)

	other.NotificationHour = 24
	assert.Error(t, f.users.UpdateNotificationSettings(ctx, other))

	byChat, err := f.users.GetByTelegramID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, f.user.ID, byChat.ID)
}

func TestUserStatistics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cfg := sr.DefaultConfig()

	mastered := f.newCard(t, "mastered", t0)
	state := mastered.State()
	for i := 0; i < 6; i++ {
		res := sr.Next(state, sr.Good, state.Due, cfg)
		entry := models.NewReviewLog(mastered.ID, mastered.OwnerID, res.Log)
		require.NoError(t, f.logs.Append(ctx, f.db, &entry))
		state = res.State
	}
	mastered.SetState(state)
	require.NoError(t, f.cards.UpdateScheduling(ctx, f.db, mastered))

	lapsed := f.newCard(t, "lapsed", t0)
	res := sr.Next(lapsed.State(), sr.Again, t0.Add(time.Hour), cfg)
	entry := models.NewReviewLog(lapsed.ID, lapsed.OwnerID, res.Log)
	require.NoError(t, f.logs.Append(ctx, f.db, &entry))
	lapsed.SetState(res.State)
	require.NoError(t, f.cards.UpdateScheduling(ctx, f.db, lapsed))

	f.newCard(t, "new", t0)

	stats, err := f.stats.GetUserStatistics(ctx, f.user.ID, t0.Add(2*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, 3, stats.TotalCards)
	assert.Equal(t, 1, stats.DueNow)
	assert.Equal(t, 2, stats.DueToday)
	assert.Equal(t, 1, stats.Mastered)
	assert.Equal(t, 7, stats.TotalReviews)
	assert.Equal(t, 1, stats.TotalLapses)
	assert.Greater(t, stats.AvgStability, 0.0)
	assert.Equal(t, map[string]int{"Again": 1, "Hard": 0, "Good": 6, "Easy": 0}, stats.Ratings)
}
