package payment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"
	"github.com/stripe/stripe-go/v76/refund"

	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/domain"
)

// zeroDecimal lists currencies Stripe takes in whole units
var zeroDecimal = map[string]bool{"vnd": true, "jpy": true, "krw": true, "clp": true}

// StripeLedger implements the payment ledger on Stripe. Deposits are
// manual-capture holds that are released on refund; session payments are
// captured immediately.
type StripeLedger struct {
	currency      string
	paymentMethod string
	log           *zap.Logger
}

// NewStripeLedger configures the Stripe key. paymentMethod is charged for
// every user until per-user methods are resolved from the user directory.
func NewStripeLedger(apiKey, currency, paymentMethod string, log *zap.Logger) *StripeLedger {
	stripe.Key = apiKey
	return &StripeLedger{
		currency:      strings.ToLower(currency),
		paymentMethod: paymentMethod,
		log:           log,
	}
}

func (s *StripeLedger) minorUnits(amount float64) int64 {
	if zeroDecimal[s.currency] {
		return int64(math.Round(amount))
	}
	return int64(math.Round(amount * 100))
}

func (s *StripeLedger) ProcessDeposit(ctx context.Context, reservationID, userID string, amount float64) (*domain.PaymentResult, error) {
	if amount <= 0 {
		return nil, errors.New("invalid deposit amount")
	}

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(s.minorUnits(amount)),
		Currency:      stripe.String(s.currency),
		PaymentMethod: stripe.String(s.paymentMethod),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
		Confirm:       stripe.Bool(true),
	}
	params.AddMetadata("reservation_id", reservationID)
	params.AddMetadata("user_id", userID)
	params.SetIdempotencyKey("deposit-" + reservationID)
	params.Context = ctx

	pi, err := paymentintent.New(params)
	if err != nil {
		return s.declinedOrError("create deposit hold", err)
	}

	s.log.Info("Deposit hold created",
		zap.String("payment_intent_id", pi.ID),
		zap.String("reservation_id", reservationID),
		zap.String("status", string(pi.Status)),
	)

	status := domain.PaymentStatusDeclined
	if pi.Status == stripe.PaymentIntentStatusRequiresCapture || pi.Status == stripe.PaymentIntentStatusSucceeded {
		status = domain.PaymentStatusSucceeded
	}
	return &domain.PaymentResult{PaymentID: pi.ID, Status: status}, nil
}

// RefundDeposit releases an uncaptured hold, or refunds it once captured.
func (s *StripeLedger) RefundDeposit(ctx context.Context, paymentID, userID string, amount float64) (*domain.PaymentResult, error) {
	if paymentID == "" {
		return nil, errors.New("payment ID is required")
	}

	getParams := &stripe.PaymentIntentParams{}
	getParams.Context = ctx
	pi, err := paymentintent.Get(paymentID, getParams)
	if err != nil {
		return nil, fmt.Errorf("stripe: get payment intent: %w", err)
	}

	switch pi.Status {
	case stripe.PaymentIntentStatusCanceled:
		return &domain.PaymentResult{PaymentID: pi.ID, Status: domain.PaymentStatusRefunded}, nil

	case stripe.PaymentIntentStatusSucceeded:
		params := &stripe.RefundParams{PaymentIntent: stripe.String(paymentID)}
		params.SetIdempotencyKey("refund-" + paymentID)
		params.Context = ctx
		r, err := refund.New(params)
		if err != nil {
			return nil, fmt.Errorf("stripe: refund payment: %w", err)
		}
		s.log.Info("Deposit refunded", zap.String("refund_id", r.ID), zap.String("payment_id", paymentID))
		return &domain.PaymentResult{PaymentID: pi.ID, Status: domain.PaymentStatusRefunded}, nil

	default:
		params := &stripe.PaymentIntentCancelParams{
			CancellationReason: stripe.String(string(stripe.PaymentIntentCancellationReasonRequestedByCustomer)),
		}
		params.Context = ctx
		if _, err := paymentintent.Cancel(paymentID, params); err != nil {
			return nil, fmt.Errorf("stripe: release deposit hold: %w", err)
		}
		s.log.Info("Deposit hold released", zap.String("payment_id", paymentID), zap.String("user_id", userID))
		return &domain.PaymentResult{PaymentID: pi.ID, Status: domain.PaymentStatusRefunded}, nil
	}
}

func (s *StripeLedger) ProcessPayment(ctx context.Context, sessionID, userID string, energyKWh, pricePerKWh float64) (*domain.PaymentResult, error) {
	amount := energyKWh * pricePerKWh
	if amount <= 0 {
		return nil, errors.New("invalid payment amount")
	}

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(s.minorUnits(amount)),
		Currency:      stripe.String(s.currency),
		PaymentMethod: stripe.String(s.paymentMethod),
		Confirm:       stripe.Bool(true),
	}
	params.AddMetadata("session_id", sessionID)
	params.AddMetadata("user_id", userID)
	params.SetIdempotencyKey("session-" + sessionID)
	params.Context = ctx

	pi, err := paymentintent.New(params)
	if err != nil {
		return s.declinedOrError("charge session", err)
	}

	s.log.Info("Session payment created",
		zap.String("payment_intent_id", pi.ID),
		zap.String("session_id", sessionID),
		zap.String("status", string(pi.Status)),
	)
	return &domain.PaymentResult{PaymentID: pi.ID, Status: ParseStatus(string(pi.Status))}, nil
}

// declinedOrError turns card errors into a declined answer; anything else
// means Stripe could not be used.
func (s *StripeLedger) declinedOrError(op string, err error) (*domain.PaymentResult, error) {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard {
		s.log.Info("Stripe declined card", zap.String("op", op), zap.String("code", string(stripeErr.Code)))
		return &domain.PaymentResult{Status: domain.PaymentStatusDeclined}, nil
	}
	s.log.Error("Stripe request failed", zap.String("op", op), zap.Error(err))
	return nil, fmt.Errorf("stripe: %s: %w", op, err)
}
