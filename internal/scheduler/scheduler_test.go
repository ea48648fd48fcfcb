package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/cardsched/internal/database"
	sr "github.com/example/cardsched/internal/spaced_repetition"
	"github.com/example/cardsched/pkg/models"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 6, 15, 9, 30, 0, 0, time.UTC)

type fakeNotifier struct {
	mu     sync.Mutex
	counts map[int64]int
	fail   map[int64]bool
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{counts: map[int64]int{}, fail: map[int64]bool{}}
}

func (f *fakeNotifier) SendReminder(_ context.Context, user models.User, count int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[user.ID] {
		return errors.New("delivery failed")
	}
	f.counts[user.ID] = count
	return nil
}

type fixture struct {
	db       *sqlx.DB
	notifier *fakeNotifier
	sched    *Scheduler
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	db, err := database.Connect(database.Config{Driver: database.DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := &fixture{db: db, notifier: newFakeNotifier()}
	f.sched = New(db, f.notifier, cfg, zerolog.Nop())
	f.sched.SetClock(func() time.Time { return t0 })
	return f
}

// addUser creates a user with n cards that became due one hour before t0
func (f *fixture) addUser(t *testing.T, name string, enabled bool, hour, perDay, n int) *models.User {
	t.Helper()
	ctx := context.Background()
	user := &models.User{Username: name, TelegramID: 100, NotificationEnabled: enabled, NotificationHour: hour, CardsPerDay: perDay}
	require.NoError(t, database.NewUserRepository(f.db).Create(ctx, user))
	deck, err := database.NewDeckRepository(f.db).GetOrCreate(ctx, user.ID, "Default")
	require.NoError(t, err)

	cards := database.NewCardRepository(f.db)
	for i := 0; i < n; i++ {
		card := &models.Card{OwnerID: user.ID, DeckID: deck.ID, Front: "f", Back: "b"}
		card.SetState(sr.InitialState(t0.Add(-time.Hour), sr.DefaultConfig()))
		require.NoError(t, cards.Create(ctx, card))
	}
	return user
}

func TestCheckAndSendReminders(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	capped := f.addUser(t, "capped", true, 9, 2, 3)
	plain := f.addUser(t, "plain", true, 9, 20, 1)
	f.addUser(t, "nothing-due", true, 9, 20, 0)
	f.addUser(t, "other-hour", true, 10, 20, 4)
	f.addUser(t, "disabled", false, 9, 20, 4)
	failing := f.addUser(t, "failing", true, 9, 20, 2)
	f.notifier.fail[failing.ID] = true

	sent, err := f.sched.CheckAndSendReminders(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, sent)
	assert.Equal(t, map[int64]int{capped.ID: 2, plain.ID: 1}, f.notifier.counts)
}

func TestOutsideWindowSendsNothing(t *testing.T) {
	f := newFixture(t, Config{StartHour: 12, EndHour: 20})
	f.addUser(t, "ann", true, 9, 20, 3)

	sent, err := f.sched.CheckAndSendReminders(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Empty(t, f.notifier.counts)
}

func TestRunManualCheck(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()
	user := f.addUser(t, "ann", false, 3, 2, 5)
	idle := f.addUser(t, "idle", true, 9, 20, 0)

	ok, err := f.sched.RunManualCheck(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 5, f.notifier.counts[user.ID], "manual checks are not capped")

	ok, err = f.sched.RunManualCheck(ctx, idle.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.sched.RunManualCheck(ctx, 999)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestInWindow(t *testing.T) {
	tests := []struct {
		cfg  Config
		hour int
		want bool
	}{
		{Config{StartHour: 8, EndHour: 22}, 8, true},
		{Config{StartHour: 8, EndHour: 22}, 22, true},
		{Config{StartHour: 8, EndHour: 22}, 23, false},
		{Config{StartHour: 8, EndHour: 22}, 7, false},
		{Config{StartHour: 22, EndHour: 2}, 23, true},
		{Config{StartHour: 22, EndHour: 2}, 1, true},
		{Config{StartHour: 22, EndHour: 2}, 12, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.cfg.InWindow(tt.hour), "%+v hour %d", tt.cfg, tt.hour)
	}
}

func TestStartStop(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, f.sched.Start(ctx))
	f.sched.Stop()
}
