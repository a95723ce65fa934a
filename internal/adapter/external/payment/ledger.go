package payment

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/domain"
	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/infrastructure/circuitbreaker"
)

// LedgerClient talks to the payment service over REST.
type LedgerClient struct {
	http *circuitbreaker.HTTPClient
	log  *zap.Logger
}

// NewLedgerClient creates a payment ledger client on top of a breaker-guarded HTTP client
func NewLedgerClient(client *circuitbreaker.HTTPClient, log *zap.Logger) *LedgerClient {
	return &LedgerClient{http: client, log: log}
}

type depositRequest struct {
	ReservationID string  `json:"reservationId"`
	UserID        string  `json:"userId"`
	Amount        float64 `json:"amount"`
}

type refundRequest struct {
	PaymentID string  `json:"paymentId"`
	UserID    string  `json:"userId"`
	Amount    float64 `json:"amount"`
}

type paymentRequest struct {
	SessionID      string  `json:"sessionId"`
	UserID         string  `json:"userId"`
	EnergyConsumed float64 `json:"energyConsumed"`
	PricePerKWh    float64 `json:"pricePerKwh"`
}

type ledgerResponse struct {
	PaymentID string `json:"paymentId"`
	Status    string `json:"status"`
}

func (c *LedgerClient) ProcessDeposit(ctx context.Context, reservationID, userID string, amount float64) (*domain.PaymentResult, error) {
	return c.call(ctx, "/api/payments/deposit", depositRequest{
		ReservationID: reservationID,
		UserID:        userID,
		Amount:        amount,
	})
}

func (c *LedgerClient) RefundDeposit(ctx context.Context, paymentID, userID string, amount float64) (*domain.PaymentResult, error) {
	return c.call(ctx, "/api/payments/refund", refundRequest{
		PaymentID: paymentID,
		UserID:    userID,
		Amount:    amount,
	})
}

func (c *LedgerClient) ProcessPayment(ctx context.Context, sessionID, userID string, energyKWh, pricePerKWh float64) (*domain.PaymentResult, error) {
	return c.call(ctx, "/api/payments/process", paymentRequest{
		SessionID:      sessionID,
		UserID:         userID,
		EnergyConsumed: energyKWh,
		PricePerKWh:    pricePerKWh,
	})
}

// call posts body to path. A business rejection (402, 409, 422) is an answer,
// not an outage, so it comes back as a declined result.
func (c *LedgerClient) call(ctx context.Context, path string, body interface{}) (*domain.PaymentResult, error) {
	var resp ledgerResponse
	err := c.http.DoJSON(ctx, http.MethodPost, path, body, &resp)
	if err != nil {
		switch circuitbreaker.StatusCode(err) {
		case http.StatusPaymentRequired, http.StatusConflict, http.StatusUnprocessableEntity:
			c.log.Info("Payment ledger declined request", zap.String("path", path), zap.Error(err))
			return &domain.PaymentResult{Status: domain.PaymentStatusDeclined}, nil
		}
		return nil, fmt.Errorf("payment ledger %s: %w", path, err)
	}

	return &domain.PaymentResult{
		PaymentID: resp.PaymentID,
		Status:    ParseStatus(resp.Status),
	}, nil
}

// ParseStatus normalises the status vocabularies payment providers use.
func ParseStatus(s string) domain.PaymentStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "succeeded", "success", "completed", "requires_capture":
		return domain.PaymentStatusSucceeded
	case "refunded":
		return domain.PaymentStatusRefunded
	case "declined", "rejected", "insufficient_funds":
		return domain.PaymentStatusDeclined
	case "pending", "processing":
		return domain.PaymentStatusPending
	default:
		return domain.PaymentStatusFailed
	}
}
