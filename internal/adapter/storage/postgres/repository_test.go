package postgres

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/domain"
	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/ports"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := NewSQLiteConnection(filepath.Join(t.TempDir(), "lifecycle.db"), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, RunMigrations(db))
	t.Cleanup(func() { _ = Close(db) })
	return db
}

var base = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func reservationAt(id, chargerID string, start time.Time, minutes int, status domain.ReservationStatus) *domain.Reservation {
	return &domain.Reservation{
		ID:                id,
		QRToken:           domain.QRTokenFor(id, "CODE"+id),
		UserID:            "user-1",
		StationID:         "station-1",
		ChargerID:         chargerID,
		ReservedStartTime: start,
		ReservedEndTime:   start.Add(time.Duration(minutes) * time.Minute),
		DurationMinutes:   minutes,
		Status:            status,
	}
}

func TestReservationRepository_FindOverlapping(t *testing.T) {
	ctx := context.Background()
	repo := NewReservationRepository(newTestDB(t), zap.NewNop())

	require.NoError(t, repo.Create(ctx, reservationAt("r1", "c1", base, 30, domain.ReservationStatusConfirmed)))
	require.NoError(t, repo.Create(ctx, reservationAt("r2", "c1", base.Add(2*time.Hour), 30, domain.ReservationStatusCancelled)))
	require.NoError(t, repo.Create(ctx, reservationAt("r3", "c2", base, 30, domain.ReservationStatusConfirmed)))

	tests := []struct {
		name  string
		start time.Time
		end   time.Time
		want  []string
	}{
		{"inside", base.Add(10 * time.Minute), base.Add(20 * time.Minute), []string{"r1"}},
		{"straddles start", base.Add(-10 * time.Minute), base.Add(5 * time.Minute), []string{"r1"}},
		{"touching end is free", base.Add(30 * time.Minute), base.Add(60 * time.Minute), nil},
		{"touching start is free", base.Add(-30 * time.Minute), base, nil},
		{"cancelled does not block", base.Add(2 * time.Hour), base.Add(3 * time.Hour), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.FindOverlapping(ctx, "c1", tt.start, tt.end)
			require.NoError(t, err)
			var ids []string
			for _, r := range got {
				ids = append(ids, r.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestReservationRepository_FindByIDMissing(t *testing.T) {
	repo := NewReservationRepository(newTestDB(t), zap.NewNop())

	got, err := repo.FindByID(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestReservationRepository_ReconciliationQueries(t *testing.T) {
	ctx := context.Background()
	repo := NewReservationRepository(newTestDB(t), zap.NewNop())
	now := base

	due := reservationAt("due", "c1", now.Add(45*time.Minute), 30, domain.ReservationStatusConfirmed)
	tooFar := reservationAt("far", "c2", now.Add(2*time.Hour), 30, domain.ReservationStatusConfirmed)
	reminded := reservationAt("reminded", "c3", now.Add(40*time.Minute), 30, domain.ReservationStatusConfirmed)
	reminded.ReminderSent = true
	late := reservationAt("late", "c4", now.Add(-20*time.Minute), 30, domain.ReservationStatusConfirmed)
	checkedIn := reservationAt("checked", "c5", now.Add(-20*time.Minute), 30, domain.ReservationStatusConfirmed)
	checkedIn.IsCheckedIn = true
	graceful := reservationAt("grace", "c6", now.Add(-10*time.Minute), 30, domain.ReservationStatusConfirmed)

	for _, r := range []*domain.Reservation{due, tooFar, reminded, late, checkedIn, graceful} {
		require.NoError(t, repo.Create(ctx, r))
	}

	reminders, err := repo.FindDueForReminder(ctx, now.Add(30*time.Minute), now.Add(60*time.Minute))
	require.NoError(t, err)
	require.Len(t, reminders, 1)
	assert.Equal(t, "due", reminders[0].ID)

	noShows, err := repo.FindNoShowCandidates(ctx, now.Add(-15*time.Minute))
	require.NoError(t, err)
	require.Len(t, noShows, 1)
	assert.Equal(t, "late", noShows[0].ID)
}

func TestReservationRepository_ConditionalReconciliationWrites(t *testing.T) {
	ctx := context.Background()
	repo := NewReservationRepository(newTestDB(t), zap.NewNop())

	open := reservationAt("open", "c1", base, 30, domain.ReservationStatusConfirmed)
	cancelled := reservationAt("cancelled", "c2", base, 30, domain.ReservationStatusCancelled)
	checkedIn := reservationAt("checked", "c3", base, 30, domain.ReservationStatusConfirmed)
	checkedIn.IsCheckedIn = true
	for _, r := range []*domain.Reservation{open, cancelled, checkedIn} {
		require.NoError(t, repo.Create(ctx, r))
	}
	at := base.Add(5 * time.Minute)

	ok, err := repo.MarkReminderSent(ctx, "open", at)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.MarkReminderSent(ctx, "open", at)
	require.NoError(t, err)
	assert.False(t, ok, "already reminded")
	ok, err = repo.MarkReminderSent(ctx, "cancelled", at)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.MarkNoShow(ctx, "checked", at)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = repo.MarkNoShow(ctx, "cancelled", at)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = repo.MarkNoShow(ctx, "open", at)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := repo.FindByID(ctx, "open")
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationStatusNoShow, got.Status)
	assert.Equal(t, 1, got.NoShowCount)
	assert.True(t, got.NoShowPenaltyApplied)
	assert.True(t, got.ReminderSent)
	require.NotNil(t, got.ReminderSentAt)
	assert.True(t, got.ReminderSentAt.Equal(at))

	still, err := repo.FindByID(ctx, "cancelled")
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationStatusCancelled, still.Status)
	assert.False(t, still.ReminderSent)
}

func TestReservationRepository_CountNoShowsByUser(t *testing.T) {
	ctx := context.Background()
	repo := NewReservationRepository(newTestDB(t), zap.NewNop())

	require.NoError(t, repo.Create(ctx, reservationAt("a", "c1", base, 30, domain.ReservationStatusNoShow)))
	require.NoError(t, repo.Create(ctx, reservationAt("b", "c1", base.Add(time.Hour), 30, domain.ReservationStatusNoShow)))
	require.NoError(t, repo.Create(ctx, reservationAt("c", "c1", base.Add(2*time.Hour), 30, domain.ReservationStatusCompleted)))

	n, err := repo.CountNoShowsByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestReservationRepository_WithChargerLockRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	repo := NewReservationRepository(newTestDB(t), zap.NewNop())

	err := repo.WithChargerLock(ctx, "c1", func(ctx context.Context, tx ports.ReservationRepository) error {
		require.NoError(t, tx.Create(ctx, reservationAt("r1", "c1", base, 30, domain.ReservationStatusConfirmed)))
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	got, err := repo.FindByID(ctx, "r1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestReservationRepository_WithChargerLockSerialisesCheckThenInsert(t *testing.T) {
	ctx := context.Background()
	repo := NewReservationRepository(newTestDB(t), zap.NewNop())

	const workers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	inserted := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = repo.WithChargerLock(ctx, "c1", func(ctx context.Context, tx ports.ReservationRepository) error {
				existing, err := tx.FindOverlapping(ctx, "c1", base, base.Add(30*time.Minute))
				if err != nil || len(existing) > 0 {
					return err
				}
				r := reservationAt(string(rune('a'+i)), "c1", base, 30, domain.ReservationStatusConfirmed)
				if err := tx.Create(ctx, r); err != nil {
					return err
				}
				mu.Lock()
				inserted++
				mu.Unlock()
				return nil
			})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, inserted)
	got, err := repo.FindOverlapping(ctx, "c1", base, base.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSessionRepository_OneLiveSessionPerCharger(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepository(newTestDB(t), zap.NewNop())

	first := &domain.ChargingSession{ID: "s1", SessionCode: "code-1", ChargerID: "c1", UserID: "u", Status: domain.SessionStatusCharging, StartTime: base}
	second := &domain.ChargingSession{ID: "s2", SessionCode: "code-2", ChargerID: "c1", UserID: "u", Status: domain.SessionStatusCharging, StartTime: base}

	require.NoError(t, repo.Create(ctx, first))
	err := repo.Create(ctx, second)
	require.Error(t, err)
	assert.True(t, domain.IsConflict(err, domain.ConflictChargerBusy))

	first.Status = domain.SessionStatusCompleted
	require.NoError(t, repo.Update(ctx, first))
	require.NoError(t, repo.Create(ctx, second))

	live, err := repo.FindLiveByChargerID(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, live)
	assert.Equal(t, "s2", live.ID)
}

func TestSessionRepository_FindStale(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepository(newTestDB(t), zap.NewNop())

	old := &domain.ChargingSession{ID: "old", SessionCode: "a", ChargerID: "c1", Status: domain.SessionStatusCharging, StartTime: base.Add(-13 * time.Hour)}
	fresh := &domain.ChargingSession{ID: "fresh", SessionCode: "b", ChargerID: "c2", Status: domain.SessionStatusCharging, StartTime: base.Add(-time.Hour)}
	done := &domain.ChargingSession{ID: "done", SessionCode: "c", ChargerID: "c3", Status: domain.SessionStatusCompleted, StartTime: base.Add(-20 * time.Hour)}
	for _, s := range []*domain.ChargingSession{old, fresh, done} {
		require.NoError(t, repo.Create(ctx, s))
	}

	stale, err := repo.FindStale(ctx, base.Add(-12*time.Hour))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "old", stale[0].ID)
}
