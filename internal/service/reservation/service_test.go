package reservation

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/adapter/storage/postgres"
	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/domain"
	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/infrastructure/besteffort"
	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/mocks"
	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/ports"
	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/service/availability"
	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/service/session"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// slotStart is the booked window used throughout; the clock starts an hour earlier.
var slotStart = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type fixture struct {
	clock        *testClock
	reservations *postgres.ReservationRepository
	sessions     *postgres.SessionRepository
	stations     *mocks.MockStationDirectory
	notifier     *mocks.MockNotificationDispatcher
	ledger       *mocks.MockPaymentLedger
	engine       *session.Service
	svc          *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := postgres.NewSQLiteConnection(filepath.Join(t.TempDir(), "reservations.db"), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, postgres.RunMigrations(db))
	t.Cleanup(func() { _ = postgres.Close(db) })

	log := zap.NewNop()
	policy := domain.DefaultLifecyclePolicy()
	soft := besteffort.NewRunner(log, 16)

	f := &fixture{
		clock:        &testClock{now: slotStart.Add(-time.Hour)},
		reservations: postgres.NewReservationRepository(db, log),
		sessions:     postgres.NewSessionRepository(db, log),
		stations:     &mocks.MockStationDirectory{},
		notifier:     &mocks.MockNotificationDispatcher{},
		ledger:       &mocks.MockPaymentLedger{},
	}
	f.engine = session.NewService(f.sessions, f.reservations, f.stations, f.notifier,
		&mocks.MockUserDirectory{}, f.ledger, soft, policy, log, session.WithClock(f.clock.Now))
	resolver := availability.NewResolver(f.stations, f.reservations, f.sessions, log)
	f.svc = NewService(f.reservations, f.sessions, f.engine, resolver, f.ledger, soft, policy, log,
		WithClock(f.clock.Now))
	return f
}

func request(userID, chargerID string, start time.Time, minutes int) *ports.CreateReservationRequest {
	return &ports.CreateReservationRequest{
		UserID:            userID,
		StationID:         "station-1",
		ChargerID:         chargerID,
		ReservedStartTime: start,
		ReservedEndTime:   start.Add(time.Duration(minutes) * time.Minute),
		DurationMinutes:   minutes,
	}
}

func (f *fixture) book(t *testing.T, userID, chargerID string) *domain.Reservation {
	t.Helper()
	res, err := f.svc.CreateReservation(context.Background(), request(userID, chargerID, slotStart, 30))
	require.NoError(t, err)
	return res
}

func TestReservationLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := f.book(t, "user-1", "charger-1")
	assert.Equal(t, domain.ReservationStatusConfirmed, res.Status)
	assert.Len(t, res.ConfirmationCode, 8)
	assert.Equal(t, domain.QRTokenFor(res.ID, res.ConfirmationCode), res.QRToken)
	assert.Equal(t, 50000.0, res.DepositAmount)
	assert.NotEmpty(t, res.DepositPaymentID)
	assert.True(t, res.CheckInDeadline.Equal(slotStart.Add(15*time.Minute)))

	_, err := f.svc.CreateReservation(ctx, request("user-2", "charger-1", slotStart.Add(15*time.Minute), 30))
	assert.True(t, domain.IsConflict(err, domain.ConflictOverlap))

	f.clock.Set(slotStart.Add(-28 * time.Minute))
	checked, err := f.svc.CheckIn(ctx, res.ID, "user-1")
	require.NoError(t, err)
	assert.True(t, checked.IsCheckedIn)
	assert.True(t, checked.DepositRefunded)
	assert.Equal(t, []string{res.DepositPaymentID}, f.ledger.Refunds)

	f.clock.Set(slotStart)
	s, err := f.svc.StartSessionFromReservation(ctx, res.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusCharging, s.Status)
	assert.Equal(t, res.ID, s.ReservationID)

	active, err := f.svc.GetReservation(ctx, res.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationStatusActive, active.Status)
	assert.Equal(t, s.ID, active.SessionID)

	f.clock.Set(slotStart.Add(10 * time.Minute))
	snap, err := f.engine.GetSessionStatus(ctx, s.ID, "user-1")
	require.NoError(t, err)
	assert.InDelta(t, 6.0, snap.EnergyCharged, 1e-9)
	assert.InDelta(t, 26.0, snap.CurrentSOC, 1e-9)

	f.clock.Set(slotStart.Add(30 * time.Minute))
	stopped, err := f.engine.StopSession(ctx, s.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusCompleted, stopped.Status)
	assert.InDelta(t, 18.0, stopped.EnergyConsumed, 1e-9)

	done, err := f.svc.GetReservation(ctx, res.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationStatusCompleted, done.Status)
}

func TestCreateReservation_Validation(t *testing.T) {
	f := newFixture(t)
	now := f.clock.Now()

	tests := []struct {
		name  string
		req   *ports.CreateReservationRequest
		field string
	}{
		{"missing user", request("", "c1", slotStart, 30), "userId"},
		{"missing station", func() *ports.CreateReservationRequest {
			r := request("u", "c1", slotStart, 30)
			r.StationID = ""
			return r
		}(), "stationId"},
		{"missing start", &ports.CreateReservationRequest{UserID: "u", StationID: "s", ReservedEndTime: slotStart}, "reservedStartTime"},
		{"end before start", &ports.CreateReservationRequest{
			UserID: "u", StationID: "s", ReservedStartTime: slotStart, ReservedEndTime: slotStart.Add(-time.Minute),
		}, "reservedEndTime"},
		{"duration mismatch", func() *ports.CreateReservationRequest {
			r := request("u", "c1", slotStart, 30)
			r.DurationMinutes = 45
			return r
		}(), "durationMinutes"},
		{"in the past", request("u", "c1", now.Add(-time.Hour), 30), "reservedStartTime"},
		{"inside lead time", request("u", "c1", now.Add(20*time.Minute), 30), "reservedStartTime"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateReservation(context.Background(), tt.req)
			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}

	assert.Empty(t, f.ledger.Deposits, "validation happens before the ledger is called")
}

func TestCreateReservation_DurationTolerance(t *testing.T) {
	f := newFixture(t)
	req := request("u", "c1", slotStart, 30)
	req.ReservedEndTime = req.ReservedEndTime.Add(50 * time.Second)

	_, err := f.svc.CreateReservation(context.Background(), req)
	assert.NoError(t, err)
}

func TestCreateReservation_DepositFailureLeavesNoRow(t *testing.T) {
	tests := []struct {
		name   string
		result *domain.PaymentResult
		err    error
	}{
		{"ledger error", nil, errors.New("payment service down")},
		{"declined", &domain.PaymentResult{PaymentID: "dep-1", Status: domain.PaymentStatusDeclined}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.ledger.ProcessDepositFunc = func(context.Context, string, string, float64) (*domain.PaymentResult, error) {
				return tt.result, tt.err
			}

			_, err := f.svc.CreateReservation(context.Background(), request("user-1", "charger-1", slotStart, 30))
			assert.ErrorIs(t, err, domain.ErrDependency)

			list, err := f.svc.ListUserReservations(context.Background(), "user-1")
			require.NoError(t, err)
			assert.Empty(t, list)
			assert.Zero(t, f.ledger.RefundCount())
		})
	}
}

func TestCreateReservation_RefundsWhenInsertFails(t *testing.T) {
	ledger := &mocks.MockPaymentLedger{}
	repo := &mocks.MockReservationRepository{
		CreateFunc: func(context.Context, *domain.Reservation) error {
			return errors.New("disk full")
		},
	}
	clock := &testClock{now: slotStart.Add(-time.Hour)}
	svc := NewService(repo, &mocks.MockSessionRepository{}, nil, nil, ledger,
		besteffort.NewRunner(zap.NewNop(), 4), nil, zap.NewNop(), WithClock(clock.Now))

	_, err := svc.CreateReservation(context.Background(), request("user-1", "charger-1", slotStart, 30))
	require.ErrorContains(t, err, "disk full")
	require.Len(t, ledger.Deposits, 1)
	assert.Equal(t, 1, ledger.RefundCount())
}

func TestCreateReservation_ChargerBusy(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.StartSession(context.Background(), &ports.StartSessionRequest{
		UserID: "walk-in", StationID: "station-1", ChargerID: "charger-1",
	})
	require.NoError(t, err)

	_, err = f.svc.CreateReservation(context.Background(), request("user-1", "charger-1", slotStart, 30))
	assert.True(t, domain.IsConflict(err, domain.ConflictChargerBusy))
}

func TestCreateReservation_ResolvesCharger(t *testing.T) {
	f := newFixture(t)
	f.stations.ListChargersFunc = func(context.Context, string) ([]domain.Charger, error) {
		return []domain.Charger{
			{ID: "charger-1", StationID: "station-1", Status: domain.ChargerStatusAvailable},
			{ID: "charger-2", StationID: "station-1", Status: domain.ChargerStatusAvailable},
		}, nil
	}

	first, err := f.svc.CreateReservation(context.Background(), request("user-1", "", slotStart, 30))
	require.NoError(t, err)
	assert.Equal(t, "charger-1", first.ChargerID)

	second, err := f.svc.CreateReservation(context.Background(), request("user-2", "", slotStart, 30))
	require.NoError(t, err)
	assert.Equal(t, "charger-2", second.ChargerID)

	_, err = f.svc.CreateReservation(context.Background(), request("user-3", "", slotStart, 30))
	assert.ErrorIs(t, err, domain.ErrCapacity)
}

func TestCreateReservation_ConcurrentBookingsOneWins(t *testing.T) {
	f := newFixture(t)

	const attempts = 6
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		overlaps  int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.CreateReservation(context.Background(),
				request("user-"+string(rune('a'+i)), "charger-1", slotStart.Add(time.Duration(i)*time.Minute), 30))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case domain.IsConflict(err, domain.ConflictOverlap):
				overlaps++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, attempts-1, overlaps)
	assert.Len(t, f.ledger.Deposits, 1, "losers never reach the ledger")
}

func TestCheckIn_Window(t *testing.T) {
	tests := []struct {
		name string
		at   time.Time
		kind domain.ConflictKind
	}{
		{"too early", slotStart.Add(-31 * time.Minute), domain.ConflictCheckInTooEarly},
		{"deadline passed", slotStart.Add(16 * time.Minute), domain.ConflictCheckInDeadlinePassed},
		{"opens exactly", slotStart.Add(-30 * time.Minute), ""},
		{"deadline exactly", slotStart.Add(15 * time.Minute), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			res := f.book(t, "user-1", "charger-1")

			f.clock.Set(tt.at)
			_, err := f.svc.CheckIn(context.Background(), res.ID, "user-1")
			if tt.kind == "" {
				assert.NoError(t, err)
				return
			}
			assert.True(t, domain.IsConflict(err, tt.kind), "got %v", err)
			assert.Zero(t, f.ledger.RefundCount())
		})
	}
}

func TestCheckIn_Twice(t *testing.T) {
	f := newFixture(t)
	res := f.book(t, "user-1", "charger-1")
	f.clock.Set(slotStart.Add(-10 * time.Minute))

	_, err := f.svc.CheckIn(context.Background(), res.ID, "user-1")
	require.NoError(t, err)

	_, err = f.svc.CheckIn(context.Background(), res.ID, "user-1")
	assert.True(t, domain.IsConflict(err, domain.ConflictAlreadyCheckedIn))
	assert.Equal(t, 1, f.ledger.RefundCount())
}

func TestCheckIn_RefundFailureStillChecksIn(t *testing.T) {
	f := newFixture(t)
	res := f.book(t, "user-1", "charger-1")
	f.ledger.RefundDepositFunc = func(context.Context, string, string, float64) (*domain.PaymentResult, error) {
		return nil, errors.New("payment service down")
	}
	f.clock.Set(slotStart.Add(-10 * time.Minute))

	checked, err := f.svc.CheckIn(context.Background(), res.ID, "user-1")
	require.NoError(t, err)
	assert.True(t, checked.IsCheckedIn)
	assert.False(t, checked.DepositRefunded)
}

func TestCheckIn_RequiresConfirmed(t *testing.T) {
	f := newFixture(t)
	res := f.book(t, "user-1", "charger-1")
	_, err := f.svc.CancelReservation(context.Background(), res.ID, "user-1", "plans changed")
	require.NoError(t, err)

	f.clock.Set(slotStart.Add(-10 * time.Minute))
	_, err = f.svc.CheckIn(context.Background(), res.ID, "user-1")
	assert.True(t, domain.IsConflict(err, domain.ConflictIllegalTransition))
}

func TestCancelReservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.book(t, "user-1", "charger-1")

	_, err := f.svc.CancelReservation(ctx, res.ID, "intruder", "")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	cancelled, err := f.svc.CancelReservation(ctx, res.ID, "user-1", "plans changed")
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationStatusCancelled, cancelled.Status)
	assert.Equal(t, "plans changed", cancelled.CancellationReason)
	assert.NotNil(t, cancelled.CancelledAt)
	assert.Zero(t, f.ledger.RefundCount(), "cancellation keeps the deposit")

	_, err = f.svc.CancelReservation(ctx, res.ID, "user-1", "")
	assert.True(t, domain.IsConflict(err, domain.ConflictIllegalTransition))

	again, err := f.svc.CreateReservation(ctx, request("user-2", "charger-1", slotStart, 30))
	require.NoError(t, err, "a cancelled window can be rebooked")
	assert.Equal(t, domain.ReservationStatusConfirmed, again.Status)
}

func TestStartSessionFromQRCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.book(t, "user-1", "charger-1")

	_, err := f.svc.StartSessionFromQRCode(ctx, "", "user-1")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.StartSessionFromQRCode(ctx, "not-a-token", "user-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.StartSessionFromQRCode(ctx, res.QRToken, "user-2")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	s, err := f.svc.StartSessionFromQRCode(ctx, res.QRToken, "user-1")
	require.NoError(t, err)
	assert.Equal(t, res.ID, s.ReservationID)

	_, err = f.svc.StartSessionFromQRCode(ctx, res.QRToken, "user-1")
	assert.True(t, domain.IsConflict(err, domain.ConflictIllegalTransition))
}

func TestStartSessionFromReservation_ChargerBusyLeavesReservationConfirmed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.book(t, "user-1", "charger-1")

	_, err := f.engine.StartSession(ctx, &ports.StartSessionRequest{
		UserID: "walk-in", StationID: "station-1", ChargerID: "charger-1",
	})
	require.NoError(t, err)

	_, err = f.svc.StartSessionFromReservation(ctx, res.ID, "user-1")
	assert.True(t, domain.IsConflict(err, domain.ConflictChargerBusy))

	got, err := f.svc.GetReservation(ctx, res.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationStatusConfirmed, got.Status)
}

func TestGetReservation_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.GetReservation(context.Background(), "missing", "user-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// unlinkableRepo fails the write that links a session to its reservation
type unlinkableRepo struct {
	*postgres.ReservationRepository
}

func (r *unlinkableRepo) Update(ctx context.Context, res *domain.Reservation) error {
	if res.SessionID != "" {
		return errors.New("connection reset")
	}
	return r.ReservationRepository.Update(ctx, res)
}

func TestStartSessionFromReservation_LinkFailureCancelsSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.book(t, "user-1", "charger-1")

	log := zap.NewNop()
	svc := NewService(&unlinkableRepo{f.reservations}, f.sessions, f.engine,
		availability.NewResolver(f.stations, f.reservations, f.sessions, log),
		f.ledger, besteffort.NewRunner(log, 16), domain.DefaultLifecyclePolicy(), log,
		WithClock(f.clock.Now))

	f.clock.Set(slotStart)
	_, err := svc.StartSessionFromReservation(ctx, res.ID, "user-1")
	require.ErrorContains(t, err, "connection reset")

	live, err := f.sessions.FindLiveByChargerID(ctx, "charger-1")
	require.NoError(t, err)
	assert.Nil(t, live, "no session may keep charging without a linked reservation")

	sessions, err := f.engine.ListUserSessions(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, domain.SessionStatusCancelled, sessions[0].Status)
	assert.Equal(t, domain.ChargerStatusAvailable, f.stations.StatusOf("charger-1"))

	got, err := f.svc.GetReservation(ctx, res.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationStatusConfirmed, got.Status)
	assert.Empty(t, got.SessionID)

	s, err := f.svc.StartSessionFromReservation(ctx, res.ID, "user-1")
	require.NoError(t, err, "the driver can retry once the store recovers")
	assert.Equal(t, domain.SessionStatusCharging, s.Status)
}
