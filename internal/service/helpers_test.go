package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/action-ledger/internal/dto"
	"github.com/noah-isme/action-ledger/internal/models"
	"github.com/noah-isme/action-ledger/internal/repository"
)

var baseTime = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{now: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type stubActivityRecorder struct {
	mu      sync.Mutex
	entries []ActivityEntry
}

func (s *stubActivityRecorder) Record(ctx context.Context, entry ActivityEntry) (dto.AdminLogResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return dto.AdminLogResponse{AdminName: entry.AdminName, Action: entry.Action, ActionID: entry.ActionID}, nil
}

type recordingDispatcher struct {
	mu      sync.Mutex
	effects []Effect
	err     error
}

func (r *recordingDispatcher) Dispatch(ctx context.Context, effects []Effect) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.effects = append(r.effects, effects...)
	return r.err
}

func (r *recordingDispatcher) kinds() []EffectKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]EffectKind, 0, len(r.effects))
	for _, effect := range r.effects {
		kinds = append(kinds, effect.Kind)
	}
	return kinds
}

var errDispatchDown = errors.New("broker unavailable")

type ledgerFixture struct {
	db         *gorm.DB
	repo       repository.ActionRepository
	players    repository.PlayerRepository
	clock      *fakeClock
	activity   *stubActivityRecorder
	dispatcher *recordingDispatcher
	ledger     ActionLedgerService
	revocation RevocationService
}

func setupLedgerFixture(t *testing.T, config LedgerConfig) *ledgerFixture {
	t.Helper()

	db := setupServiceDB(t)
	repo := repository.NewActionRepository(db)
	players := repository.NewPlayerRepository(db)
	clock := newFakeClock(baseTime)
	activity := &stubActivityRecorder{}
	dispatcher := &recordingDispatcher{}
	validate := validator.New(validator.WithRequiredStructEnabled())

	ledger := NewActionLedgerService(repo, players, nil, validate, activity, config, testLogger())
	if concrete, ok := ledger.(*actionLedgerService); ok {
		concrete.now = clock.Now
	}
	revocation := NewRevocationService(repo, players, dispatcher, activity, testLogger())
	if concrete, ok := revocation.(*revocationService); ok {
		concrete.now = clock.Now
	}

	return &ledgerFixture{
		db:         db,
		repo:       repo,
		players:    players,
		clock:      clock,
		activity:   activity,
		dispatcher: dispatcher,
		ledger:     ledger,
		revocation: revocation,
	}
}

func setupServiceDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:ledger_service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.ActionRecord{}, &models.Player{}, &models.ActivityLog{}))
	return db
}

func target(author string, ids ...string) dto.ActionTarget {
	return dto.ActionTarget{IDs: ids, Author: author}
}

func ptrInt64(v int64) *int64 {
	return &v
}
