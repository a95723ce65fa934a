package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/domain"
	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/infrastructure/besteffort"
	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/observability/telemetry"
	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/ports"
)

const (
	collaboratorStations = "station-directory"
	collaboratorNotifier = "notification-dispatcher"
	collaboratorUsers    = "user-directory"
	collaboratorLedger   = "payment-ledger"
)

// Service implements SessionService
type Service struct {
	repo         ports.SessionRepository
	reservations ports.ReservationRepository
	stations     ports.StationDirectory
	notifier     ports.NotificationDispatcher
	users        ports.UserDirectory
	ledger       ports.PaymentLedger
	soft         *besteffort.Runner
	policy       *domain.LifecyclePolicy
	log          *zap.Logger
	tracer       trace.Tracer
	now          func() time.Time
}

// Option customises a Service
type Option func(*Service)

// WithClock replaces the wall clock, mainly for tests
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a new charging session service
func NewService(
	repo ports.SessionRepository,
	reservations ports.ReservationRepository,
	stations ports.StationDirectory,
	notifier ports.NotificationDispatcher,
	users ports.UserDirectory,
	ledger ports.PaymentLedger,
	soft *besteffort.Runner,
	policy *domain.LifecyclePolicy,
	log *zap.Logger,
	opts ...Option,
) *Service {
	if policy == nil {
		policy = domain.DefaultLifecyclePolicy()
	}

	s := &Service{
		repo:         repo,
		reservations: reservations,
		stations:     stations,
		notifier:     notifier,
		users:        users,
		ledger:       ledger,
		soft:         soft,
		policy:       policy,
		log:          log,
		tracer:       telemetry.Tracer(),
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartSession opens a charging session on a charger
func (s *Service) StartSession(ctx context.Context, req *ports.StartSessionRequest) (*domain.ChargingSession, error) {
	ctx, span := s.tracer.Start(ctx, "session.StartSession",
		trace.WithAttributes(attribute.String("charger_id", req.ChargerID)))
	defer span.End()

	switch {
	case req.UserID == "":
		return nil, domain.NewValidationError("userId", "is required")
	case req.StationID == "":
		return nil, domain.NewValidationError("stationId", "is required")
	case req.ChargerID == "":
		return nil, domain.NewValidationError("chargerId", "is required")
	}

	live, err := s.repo.FindLiveByChargerID(ctx, req.ChargerID)
	if err != nil {
		return nil, fmt.Errorf("failed to check charger: %w", err)
	}
	if live != nil {
		return nil, domain.NewStateConflictError(domain.ConflictChargerBusy,
			"charger %s already has a live session", req.ChargerID)
	}

	now := s.now()
	session := &domain.ChargingSession{
		ID:            uuid.New().String(),
		SessionCode:   newSessionCode(),
		UserID:        req.UserID,
		StationID:     req.StationID,
		ChargerID:     req.ChargerID,
		ReservationID: req.ReservationID,
		Status:        domain.SessionStatusCharging,
		StartTime:     now,
		PricePerKWh:   s.effectivePrice(ctx, req.UserID),
		Currency:      s.policy.Currency,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.Create(ctx, session); err != nil {
		return nil, err
	}

	telemetry.ActiveChargingSessions.Inc()
	telemetry.SessionsTotal.WithLabelValues("started").Inc()

	s.setChargerStatus(ctx, session.ChargerID, domain.ChargerStatusInUse)
	s.notify(ctx, &domain.Notification{
		UserID:      session.UserID,
		Type:        domain.NotificationChargingStarted,
		Title:       "Charging started",
		Message:     fmt.Sprintf("Your session on charger %s has started.", session.ChargerID),
		ReferenceID: session.ID,
	})

	s.log.Info("Charging session started",
		zap.String("session_id", session.ID),
		zap.String("user_id", session.UserID),
		zap.String("charger_id", session.ChargerID),
		zap.String("reservation_id", session.ReservationID),
		zap.Float64("price_per_kwh", session.PricePerKWh),
	)

	return session, nil
}

// GetSession retrieves a session owned by userID
func (s *Service) GetSession(ctx context.Context, sessionID, userID string) (*domain.ChargingSession, error) {
	return s.load(ctx, sessionID, userID)
}

// ListUserSessions retrieves all sessions for a user, newest first
func (s *Service) ListUserSessions(ctx context.Context, userID string) ([]domain.ChargingSession, error) {
	return s.repo.FindByUserID(ctx, userID)
}

// GetSessionStatus returns the live view of a session. While charging the
// figures come from the fixed-rate model rather than charger telemetry.
func (s *Service) GetSessionStatus(ctx context.Context, sessionID, userID string) (*domain.SessionStatusSnapshot, error) {
	session, err := s.load(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	snapshot := &domain.SessionStatusSnapshot{
		SessionID:     session.ID,
		Status:        session.Status,
		ChargerID:     session.ChargerID,
		StartTime:     session.StartTime,
		EnergyCharged: session.EnergyConsumed,
	}
	if session.Status != domain.SessionStatusCharging {
		return snapshot, nil
	}

	minutes := domain.ElapsedMinutes(session.StartTime, s.now())
	energy := s.policy.EnergyForMinutes(minutes)
	price := s.priceOf(ctx, session)

	snapshot.ElapsedMinutes = minutes
	snapshot.EnergyCharged = energy
	snapshot.CurrentSOC = s.policy.SOCForEnergy(energy)
	snapshot.EstimatedMinutesRemaining = s.policy.MinutesToFull(energy)
	snapshot.ChargingPowerKW = s.policy.ChargingPowerKW()
	snapshot.PricePerKWh = price
	snapshot.EstimatedCost = s.policy.CostFor(energy, price)
	snapshot.Currency = session.Currency

	return snapshot, nil
}

// StopSession ends a charging session and bills at least one minute of energy
func (s *Service) StopSession(ctx context.Context, sessionID, userID string) (*domain.ChargingSession, error) {
	ctx, span := s.tracer.Start(ctx, "session.StopSession",
		trace.WithAttributes(attribute.String("session_id", sessionID)))
	defer span.End()

	session, err := s.load(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if session.Status != domain.SessionStatusCharging {
		return nil, domain.NewStateConflictError(domain.ConflictNotCharging,
			"session %s is %s", session.ID, session.Status)
	}

	now := s.now()
	minutes := math.Max(1, domain.ElapsedMinutes(session.StartTime, now))
	if err := s.complete(ctx, session, minutes, now); err != nil {
		return nil, err
	}

	s.log.Info("Charging session stopped",
		zap.String("session_id", session.ID),
		zap.Float64("energy_kwh", session.EnergyConsumed),
		zap.Float64("final_soc", session.FinalSOC),
		zap.Float64("cost", session.Cost),
	)
	return session, nil
}

// CompleteStaleSession force-completes a session left charging past the stale
// threshold. Billed minutes are capped by the policy.
func (s *Service) CompleteStaleSession(ctx context.Context, session *domain.ChargingSession) (*domain.ChargingSession, error) {
	if session.Status != domain.SessionStatusCharging {
		return nil, domain.NewStateConflictError(domain.ConflictNotCharging,
			"session %s is %s", session.ID, session.Status)
	}

	now := s.now()
	minutes := math.Min(domain.ElapsedMinutes(session.StartTime, now), s.policy.MaxBillableMinutes)
	if err := s.complete(ctx, session, minutes, now); err != nil {
		return nil, err
	}

	s.log.Warn("Stale charging session force-completed",
		zap.String("session_id", session.ID),
		zap.Time("start_time", session.StartTime),
		zap.Float64("billed_minutes", minutes),
	)
	return session, nil
}

func (s *Service) complete(ctx context.Context, session *domain.ChargingSession, minutes float64, now time.Time) error {
	energy := s.policy.EnergyForMinutes(minutes)
	soc := s.policy.SOCForEnergy(energy)
	price := s.priceOf(ctx, session)

	if err := session.TransitionTo(domain.SessionStatusCompleted, now); err != nil {
		return err
	}
	session.EnergyConsumed = energy
	session.FinalSOC = soc
	session.FullyCharged = soc >= s.policy.FullChargeSOCPercent
	session.PricePerKWh = price
	session.Cost = s.policy.CostFor(energy, price)

	if err := s.repo.Update(ctx, session); err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	telemetry.ActiveChargingSessions.Dec()
	telemetry.SessionsTotal.WithLabelValues("completed").Inc()
	telemetry.EnergyDeliveredTotal.Add(energy)

	s.closeReservation(ctx, session, domain.ReservationStatusCompleted, now)
	s.setChargerStatus(ctx, session.ChargerID, domain.ChargerStatusAvailable)

	message := fmt.Sprintf("Charging finished: %.2f kWh delivered, battery at %.0f%%.", energy, soc)
	if session.FullyCharged {
		message = fmt.Sprintf("Your vehicle is fully charged: %.2f kWh delivered.", energy)
	}
	s.notify(ctx, &domain.Notification{
		UserID:      session.UserID,
		Type:        domain.NotificationChargingComplete,
		Title:       "Charging complete",
		Message:     message,
		ReferenceID: session.ID,
	})
	return nil
}

// CancelSession aborts a session that is charging or still reserved
func (s *Service) CancelSession(ctx context.Context, sessionID, userID string) (*domain.ChargingSession, error) {
	session, err := s.load(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if session.Status != domain.SessionStatusCharging && session.Status != domain.SessionStatusReserved {
		return nil, domain.NewStateConflictError(domain.ConflictIllegalTransition,
			"session %s is %s and cannot be cancelled", session.ID, session.Status)
	}

	wasCharging := session.Status == domain.SessionStatusCharging
	now := s.now()
	if err := session.TransitionTo(domain.SessionStatusCancelled, now); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to update session: %w", err)
	}

	if wasCharging {
		telemetry.ActiveChargingSessions.Dec()
	}
	telemetry.SessionsTotal.WithLabelValues("cancelled").Inc()

	s.closeReservation(ctx, session, domain.ReservationStatusCancelled, now)
	s.setChargerStatus(ctx, session.ChargerID, domain.ChargerStatusAvailable)
	s.notify(ctx, &domain.Notification{
		UserID:      session.UserID,
		Type:        domain.NotificationChargingCancelled,
		Title:       "Charging cancelled",
		Message:     fmt.Sprintf("Your session on charger %s was cancelled.", session.ChargerID),
		ReferenceID: session.ID,
	})

	s.log.Info("Charging session cancelled", zap.String("session_id", session.ID))
	return session, nil
}

// MarkSessionAsPaid records the payment for a session. Repeating the call is a no-op.
func (s *Service) MarkSessionAsPaid(ctx context.Context, sessionID, paymentID string) (*domain.ChargingSession, error) {
	if paymentID == "" {
		return nil, domain.NewValidationError("paymentId", "is required")
	}

	session, err := s.load(ctx, sessionID, "")
	if err != nil {
		return nil, err
	}

	if session.IsPaid {
		if session.PaymentID != paymentID {
			s.log.Warn("Session already paid with a different payment",
				zap.String("session_id", session.ID),
				zap.String("payment_id", session.PaymentID),
				zap.String("ignored_payment_id", paymentID),
			)
		}
		return session, nil
	}

	session.IsPaid = true
	session.PaymentID = paymentID
	session.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to update session: %w", err)
	}

	s.log.Info("Session marked as paid",
		zap.String("session_id", session.ID),
		zap.String("payment_id", paymentID),
	)
	return session, nil
}

// PaySession charges a completed session through the payment ledger
func (s *Service) PaySession(ctx context.Context, sessionID, userID string) (*domain.ChargingSession, error) {
	ctx, span := s.tracer.Start(ctx, "session.PaySession",
		trace.WithAttributes(attribute.String("session_id", sessionID)))
	defer span.End()

	session, err := s.load(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if session.IsPaid {
		return session, nil
	}
	if session.Status != domain.SessionStatusCompleted {
		return nil, domain.NewStateConflictError(domain.ConflictNotCompleted,
			"session %s is %s", session.ID, session.Status)
	}

	result, err := s.ledger.ProcessPayment(ctx, session.ID, session.UserID, session.EnergyConsumed, session.PricePerKWh)
	if err != nil {
		return nil, domain.NewDependencyError(collaboratorLedger, "process_payment", err)
	}
	if result.Status != domain.PaymentStatusSucceeded {
		return nil, domain.NewDependencyError(collaboratorLedger, "process_payment",
			fmt.Errorf("payment %s", result.Status))
	}

	return s.MarkSessionAsPaid(ctx, session.ID, result.PaymentID)
}

func (s *Service) load(ctx context.Context, sessionID, userID string) (*domain.ChargingSession, error) {
	session, err := s.repo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, domain.NewNotFoundError("session", sessionID)
	}
	if userID != "" && session.UserID != userID {
		return nil, fmt.Errorf("%w: session %s belongs to another user", domain.ErrForbidden, sessionID)
	}
	return session, nil
}

// closeReservation moves the session's reservation out of active. The session
// has already been persisted, so a failure here is logged rather than returned.
func (s *Service) closeReservation(ctx context.Context, session *domain.ChargingSession, next domain.ReservationStatus, now time.Time) {
	var (
		res *domain.Reservation
		err error
	)
	if session.ReservationID != "" {
		res, err = s.reservations.FindByID(ctx, session.ReservationID)
	} else {
		res, err = s.reservations.FindBySessionID(ctx, session.ID)
	}
	if err != nil {
		s.log.Error("Failed to load linked reservation", zap.String("session_id", session.ID), zap.Error(err))
		return
	}
	if res == nil || res.Status != domain.ReservationStatusActive {
		return
	}

	if err := res.TransitionTo(next, now); err != nil {
		s.log.Error("Failed to close linked reservation", zap.String("reservation_id", res.ID), zap.Error(err))
		return
	}
	if next == domain.ReservationStatusCancelled {
		res.CancellationReason = "charging session cancelled"
	}
	if err := s.reservations.Update(ctx, res); err != nil {
		s.log.Error("Failed to update linked reservation", zap.String("reservation_id", res.ID), zap.Error(err))
		return
	}
	telemetry.ReservationsTotal.WithLabelValues(string(next), "ok").Inc()
}

// priceOf returns the price fixed at session start, looking it up again for
// rows that predate price capture.
func (s *Service) priceOf(ctx context.Context, session *domain.ChargingSession) float64 {
	if session.PricePerKWh > 0 {
		return session.PricePerKWh
	}
	return s.effectivePrice(ctx, session.UserID)
}

// effectivePrice applies the user's subscription discount, falling back to the
// base price when the user directory cannot answer.
func (s *Service) effectivePrice(ctx context.Context, userID string) float64 {
	tier := domain.SubscriptionTierNone
	s.soft.Do(ctx, collaboratorUsers, "get_subscription_tier", func(ctx context.Context) error {
		t, err := s.users.GetSubscriptionTier(ctx, userID)
		if err != nil {
			return err
		}
		tier = t
		return nil
	}, zap.String("user_id", userID))
	return s.policy.EffectivePrice(tier)
}

func (s *Service) setChargerStatus(ctx context.Context, chargerID string, status domain.ChargerStatus) {
	s.soft.Do(ctx, collaboratorStations, "update_charger_status", func(ctx context.Context) error {
		return s.stations.UpdateChargerStatus(ctx, chargerID, status)
	}, zap.String("charger_id", chargerID), zap.String("status", string(status)))
}

func (s *Service) notify(ctx context.Context, n *domain.Notification) {
	n.CreatedAt = s.now()
	s.soft.Do(ctx, collaboratorNotifier, "create_notification", func(ctx context.Context) error {
		return s.notifier.CreateNotification(ctx, n)
	}, zap.String("user_id", n.UserID), zap.String("type", string(n.Type)), zap.String("reference_id", n.ReferenceID))
}

func newSessionCode() string {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		return uuid.New().String()
	}
	return hex.EncodeToString(b)
}
