package reservation

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/domain"
	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/infrastructure/besteffort"
	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/observability/telemetry"
	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/ports"
)

const (
	collaboratorLedger = "payment-ledger"

	confirmationCodeLength   = 8
	confirmationCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// Service implements ReservationService
type Service struct {
	repo     ports.ReservationRepository
	sessions ports.SessionRepository
	engine   ports.SessionService
	resolver ports.AvailabilityResolver
	ledger   ports.PaymentLedger
	soft     *besteffort.Runner
	policy   *domain.LifecyclePolicy
	log      *zap.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// Option customises a Service
type Option func(*Service)

// WithClock replaces the wall clock, mainly for tests
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a new reservation service
func NewService(
	repo ports.ReservationRepository,
	sessions ports.SessionRepository,
	engine ports.SessionService,
	resolver ports.AvailabilityResolver,
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
		repo:     repo,
		sessions: sessions,
		engine:   engine,
		resolver: resolver,
		ledger:   ledger,
		soft:     soft,
		policy:   policy,
		log:      log,
		tracer:   telemetry.Tracer(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateReservation books a charger for a window and holds the deposit. The
// row is written only once the hold has succeeded, inside the charger lock.
func (s *Service) CreateReservation(ctx context.Context, req *ports.CreateReservationRequest) (*domain.Reservation, error) {
	ctx, span := s.tracer.Start(ctx, "reservation.CreateReservation",
		trace.WithAttributes(attribute.String("station_id", req.StationID)))
	defer span.End()

	now := s.now()
	if err := s.validateRequest(req, now); err != nil {
		telemetry.ReservationsTotal.WithLabelValues("create", "invalid").Inc()
		return nil, err
	}

	start := req.ReservedStartTime.UTC()
	end := req.ReservedEndTime.UTC()

	chargerID := req.ChargerID
	if chargerID == "" {
		resolved, err := s.resolver.FindAvailableCharger(ctx, req.StationID, start, end)
		if err != nil {
			telemetry.ReservationsTotal.WithLabelValues("create", "no_capacity").Inc()
			return nil, err
		}
		chargerID = resolved
	}
	span.SetAttributes(attribute.String("charger_id", chargerID))

	var held *domain.Reservation
	err := s.repo.WithChargerLock(ctx, chargerID, func(ctx context.Context, tx ports.ReservationRepository) error {
		live, err := s.sessions.FindLiveByChargerID(ctx, chargerID)
		if err != nil {
			return fmt.Errorf("failed to check charger: %w", err)
		}
		if live != nil {
			return domain.NewStateConflictError(domain.ConflictChargerBusy,
				"charger %s has a charging session in progress", chargerID)
		}

		overlapping, err := tx.FindOverlapping(ctx, chargerID, start, end)
		if err != nil {
			return fmt.Errorf("failed to check availability: %w", err)
		}
		if len(overlapping) > 0 {
			return domain.NewStateConflictError(domain.ConflictOverlap,
				"charger %s is already booked from %s to %s", chargerID,
				overlapping[0].ReservedStartTime.Format(time.RFC3339),
				overlapping[0].ReservedEndTime.Format(time.RFC3339))
		}

		res := s.newReservation(req, chargerID, start, end, now)
		if err := s.holdDeposit(ctx, res); err != nil {
			return err
		}
		held = res

		if err := res.TransitionTo(domain.ReservationStatusConfirmed, now); err != nil {
			return err
		}
		if err := tx.Create(ctx, res); err != nil {
			return fmt.Errorf("failed to save reservation: %w", err)
		}
		return nil
	})

	if err != nil {
		if held != nil {
			// The hold went through but the row did not land; give the money back.
			s.refundDeposit(ctx, held, "create_rollback")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		telemetry.ReservationsTotal.WithLabelValues("create", outcomeOf(err)).Inc()
		return nil, err
	}

	telemetry.ReservationsTotal.WithLabelValues("create", "ok").Inc()
	s.log.Info("Reservation created",
		zap.String("reservation_id", held.ID),
		zap.String("user_id", held.UserID),
		zap.String("charger_id", held.ChargerID),
		zap.Time("start_time", held.ReservedStartTime),
		zap.String("deposit_payment_id", held.DepositPaymentID),
	)

	return held, nil
}

// validateRequest checks the booking window. Each failure names its field.
func (s *Service) validateRequest(req *ports.CreateReservationRequest, now time.Time) error {
	if req.UserID == "" {
		return domain.NewValidationError("userId", "is required")
	}
	if req.StationID == "" {
		return domain.NewValidationError("stationId", "is required")
	}
	if req.ReservedStartTime.IsZero() {
		return domain.NewValidationError("reservedStartTime", "is required")
	}
	if req.ReservedEndTime.IsZero() {
		return domain.NewValidationError("reservedEndTime", "is required")
	}

	if !req.ReservedEndTime.After(req.ReservedStartTime) {
		return domain.NewValidationError("reservedEndTime", "must be after reservedStartTime")
	}

	window := req.ReservedEndTime.Sub(req.ReservedStartTime)
	diff := window - time.Duration(req.DurationMinutes)*time.Minute
	if diff < 0 {
		diff = -diff
	}
	if diff > s.policy.DurationTolerance {
		return domain.NewValidationError("durationMinutes",
			fmt.Sprintf("%d does not match the %s window", req.DurationMinutes, window))
	}

	if req.ReservedStartTime.Before(now) {
		return domain.NewValidationError("reservedStartTime", "must be in the future")
	}
	if req.ReservedStartTime.Before(now.Add(s.policy.MinBookingLeadTime)) {
		return domain.NewValidationError("reservedStartTime",
			fmt.Sprintf("must be at least %s from now", s.policy.MinBookingLeadTime))
	}

	return nil
}

func (s *Service) newReservation(req *ports.CreateReservationRequest, chargerID string, start, end, now time.Time) *domain.Reservation {
	id := uuid.New().String()
	code := newConfirmationCode()

	res := &domain.Reservation{
		ID:                id,
		ConfirmationCode:  code,
		QRToken:           domain.QRTokenFor(id, code),
		UserID:            req.UserID,
		StationID:         req.StationID,
		ChargerID:         chargerID,
		ReservedStartTime: start,
		ReservedEndTime:   end,
		DurationMinutes:   req.DurationMinutes,
		Status:            domain.ReservationStatusPending,
		CheckInDeadline:   s.policy.CheckInDeadline(start),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	res.DepositAmount = s.policy.DepositFor(res)
	return res
}

// holdDeposit asks the ledger to hold the deposit. Any failure is fatal to the booking.
func (s *Service) holdDeposit(ctx context.Context, res *domain.Reservation) error {
	result, err := s.ledger.ProcessDeposit(ctx, res.ID, res.UserID, res.DepositAmount)
	if err != nil {
		telemetry.CollaboratorCallsTotal.WithLabelValues(collaboratorLedger, "process_deposit", "error").Inc()
		return domain.NewDependencyError(collaboratorLedger, "process_deposit", err)
	}
	if result.Status != domain.PaymentStatusSucceeded {
		telemetry.CollaboratorCallsTotal.WithLabelValues(collaboratorLedger, "process_deposit", "declined").Inc()
		return domain.NewDependencyError(collaboratorLedger, "process_deposit",
			fmt.Errorf("deposit %s", result.Status))
	}

	telemetry.CollaboratorCallsTotal.WithLabelValues(collaboratorLedger, "process_deposit", "ok").Inc()
	res.DepositPaymentID = result.PaymentID
	return nil
}

// refundDeposit returns the deposit through the soft path and reports success.
func (s *Service) refundDeposit(ctx context.Context, res *domain.Reservation, reason string) bool {
	return s.soft.Do(ctx, collaboratorLedger, "refund_deposit", func(ctx context.Context) error {
		result, err := s.ledger.RefundDeposit(ctx, res.DepositPaymentID, res.UserID, res.DepositAmount)
		if err != nil {
			return err
		}
		if !result.Status.Settled() {
			return fmt.Errorf("refund %s", result.Status)
		}
		return nil
	},
		zap.String("reservation_id", res.ID),
		zap.String("deposit_payment_id", res.DepositPaymentID),
		zap.Float64("amount", res.DepositAmount),
		zap.String("reason", reason),
	)
}

// CheckIn records the driver's arrival and refunds the deposit
func (s *Service) CheckIn(ctx context.Context, reservationID, userID string) (*domain.Reservation, error) {
	ctx, span := s.tracer.Start(ctx, "reservation.CheckIn",
		trace.WithAttributes(attribute.String("reservation_id", reservationID)))
	defer span.End()

	res, err := s.load(ctx, reservationID, userID)
	if err != nil {
		return nil, err
	}

	if res.IsCheckedIn {
		return nil, domain.NewStateConflictError(domain.ConflictAlreadyCheckedIn,
			"reservation %s was checked in at %s", res.ID, res.CheckInTime.Format(time.RFC3339))
	}
	if res.Status != domain.ReservationStatusConfirmed {
		return nil, domain.NewStateConflictError(domain.ConflictIllegalTransition,
			"reservation %s is %s", res.ID, res.Status)
	}

	now := s.now()
	opens := res.ReservedStartTime.Add(-s.policy.CheckInOpensBefore)
	if now.Before(opens) {
		return nil, domain.NewStateConflictError(domain.ConflictCheckInTooEarly,
			"check-in opens at %s", opens.Format(time.RFC3339))
	}
	if now.After(res.CheckInDeadline) {
		return nil, domain.NewStateConflictError(domain.ConflictCheckInDeadlinePassed,
			"check-in closed at %s", res.CheckInDeadline.Format(time.RFC3339))
	}

	res.IsCheckedIn = true
	res.CheckInTime = &now
	res.UpdatedAt = now
	if err := s.repo.Update(ctx, res); err != nil {
		return nil, fmt.Errorf("failed to update reservation: %w", err)
	}
	telemetry.ReservationsTotal.WithLabelValues("check_in", "ok").Inc()

	if !res.DepositRefunded && res.DepositPaymentID != "" {
		if s.refundDeposit(ctx, res, "check_in") {
			res.DepositRefunded = true
			if err := s.repo.Update(ctx, res); err != nil {
				// The ledger already refunded; only the flag is lost.
				s.log.Error("Failed to record deposit refund",
					zap.String("reservation_id", res.ID),
					zap.String("deposit_payment_id", res.DepositPaymentID),
					zap.Error(err),
				)
			}
		}
	}

	s.log.Info("Reservation checked in",
		zap.String("reservation_id", res.ID),
		zap.Bool("deposit_refunded", res.DepositRefunded),
	)
	return res, nil
}

// CancelReservation cancels a reservation that has not finished. The deposit is kept.
func (s *Service) CancelReservation(ctx context.Context, reservationID, userID, reason string) (*domain.Reservation, error) {
	res, err := s.load(ctx, reservationID, userID)
	if err != nil {
		return nil, err
	}

	if err := res.TransitionTo(domain.ReservationStatusCancelled, s.now()); err != nil {
		return nil, err
	}
	res.CancellationReason = reason

	if err := s.repo.Update(ctx, res); err != nil {
		return nil, fmt.Errorf("failed to update reservation: %w", err)
	}
	telemetry.ReservationsTotal.WithLabelValues("cancel", "ok").Inc()

	s.log.Info("Reservation cancelled",
		zap.String("reservation_id", res.ID),
		zap.String("user_id", res.UserID),
		zap.String("reason", reason),
	)
	return res, nil
}

// StartSessionFromReservation opens a charging session for a confirmed reservation
func (s *Service) StartSessionFromReservation(ctx context.Context, reservationID, userID string) (*domain.ChargingSession, error) {
	res, err := s.load(ctx, reservationID, userID)
	if err != nil {
		return nil, err
	}
	return s.activate(ctx, res)
}

// StartSessionFromQRCode resolves the reservation from its QR token and activates it
func (s *Service) StartSessionFromQRCode(ctx context.Context, qrToken, userID string) (*domain.ChargingSession, error) {
	if qrToken == "" {
		return nil, domain.NewValidationError("qrCode", "is required")
	}

	res, err := s.repo.FindByQRToken(ctx, qrToken)
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	if res == nil {
		return nil, domain.NewNotFoundError("reservation", "qr:"+qrToken)
	}
	if res.UserID != userID {
		return nil, fmt.Errorf("%w: reservation %s belongs to another user", domain.ErrForbidden, res.ID)
	}
	return s.activate(ctx, res)
}

func (s *Service) activate(ctx context.Context, res *domain.Reservation) (*domain.ChargingSession, error) {
	ctx, span := s.tracer.Start(ctx, "reservation.Activate",
		trace.WithAttributes(attribute.String("reservation_id", res.ID)))
	defer span.End()

	if res.Status != domain.ReservationStatusConfirmed {
		return nil, domain.NewStateConflictError(domain.ConflictIllegalTransition,
			"reservation %s is %s", res.ID, res.Status)
	}

	session, err := s.engine.StartSession(ctx, &ports.StartSessionRequest{
		UserID:        res.UserID,
		StationID:     res.StationID,
		ChargerID:     res.ChargerID,
		ReservationID: res.ID,
	})
	if err != nil {
		return nil, err
	}

	if err := res.TransitionTo(domain.ReservationStatusActive, s.now()); err != nil {
		return nil, err
	}
	res.SessionID = session.ID
	if err := s.repo.Update(ctx, res); err != nil {
		s.log.Error("Session started but reservation not linked, cancelling session",
			zap.String("reservation_id", res.ID),
			zap.String("session_id", session.ID),
			zap.Error(err),
		)
		if _, cancelErr := s.engine.CancelSession(ctx, session.ID, ""); cancelErr != nil {
			s.log.Error("Failed to cancel unlinked session",
				zap.String("session_id", session.ID),
				zap.Error(cancelErr),
			)
		}
		return nil, fmt.Errorf("failed to link session to reservation: %w", err)
	}
	telemetry.ReservationsTotal.WithLabelValues("activate", "ok").Inc()

	s.log.Info("Reservation activated",
		zap.String("reservation_id", res.ID),
		zap.String("session_id", session.ID),
	)
	return session, nil
}

// GetReservation retrieves a reservation owned by userID
func (s *Service) GetReservation(ctx context.Context, reservationID, userID string) (*domain.Reservation, error) {
	return s.load(ctx, reservationID, userID)
}

// ListUserReservations retrieves all reservations for a user
func (s *Service) ListUserReservations(ctx context.Context, userID string) ([]domain.Reservation, error) {
	return s.repo.FindByUserID(ctx, userID)
}

func (s *Service) load(ctx context.Context, reservationID, userID string) (*domain.Reservation, error) {
	res, err := s.repo.FindByID(ctx, reservationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	if res == nil {
		return nil, domain.NewNotFoundError("reservation", reservationID)
	}
	if userID != "" && res.UserID != userID {
		return nil, fmt.Errorf("%w: reservation %s belongs to another user", domain.ErrForbidden, reservationID)
	}
	return res, nil
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, domain.ErrStateConflict):
		return "conflict"
	case errors.Is(err, domain.ErrDependency):
		return "dependency"
	default:
		return "error"
	}
}

func newConfirmationCode() string {
	b := make([]byte, confirmationCodeLength)
	limit := big.NewInt(int64(len(confirmationCodeAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			n = big.NewInt(int64(i))
		}
		b[i] = confirmationCodeAlphabet[n.Int64()]
	}
	return string(b)
}
