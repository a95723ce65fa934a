package ports

import (
	"context"

	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/domain"
)

// PaymentLedger is the payment service that owns wallets and deposits.
// A non-nil error means the ledger could not be reached; a reachable ledger that
// declines answers with a non-succeeded PaymentResult.Status.
type PaymentLedger interface {
	ProcessDeposit(ctx context.Context, reservationID, userID string, amount float64) (*domain.PaymentResult, error)
	RefundDeposit(ctx context.Context, paymentID, userID string, amount float64) (*domain.PaymentResult, error)
	ProcessPayment(ctx context.Context, sessionID, userID string, energyKWh, pricePerKWh float64) (*domain.PaymentResult, error)
}
