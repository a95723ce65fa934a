package mocks

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/domain"
)

// MockPaymentLedger is a mock implementation of PaymentLedger. With no funcs
// set every call succeeds with a fresh payment id.
type MockPaymentLedger struct {
	ProcessDepositFunc func(ctx context.Context, reservationID, userID string, amount float64) (*domain.PaymentResult, error)
	RefundDepositFunc  func(ctx context.Context, paymentID, userID string, amount float64) (*domain.PaymentResult, error)
	ProcessPaymentFunc func(ctx context.Context, sessionID, userID string, energyKWh, pricePerKWh float64) (*domain.PaymentResult, error)

	mu       sync.Mutex
	Deposits []string
	Refunds  []string
	Payments []string
}

func (m *MockPaymentLedger) ProcessDeposit(ctx context.Context, reservationID, userID string, amount float64) (*domain.PaymentResult, error) {
	m.mu.Lock()
	m.Deposits = append(m.Deposits, reservationID)
	m.mu.Unlock()
	if m.ProcessDepositFunc != nil {
		return m.ProcessDepositFunc(ctx, reservationID, userID, amount)
	}
	return &domain.PaymentResult{PaymentID: "dep-" + uuid.NewString(), Status: domain.PaymentStatusSucceeded}, nil
}

func (m *MockPaymentLedger) RefundDeposit(ctx context.Context, paymentID, userID string, amount float64) (*domain.PaymentResult, error) {
	m.mu.Lock()
	m.Refunds = append(m.Refunds, paymentID)
	m.mu.Unlock()
	if m.RefundDepositFunc != nil {
		return m.RefundDepositFunc(ctx, paymentID, userID, amount)
	}
	return &domain.PaymentResult{PaymentID: paymentID, Status: domain.PaymentStatusRefunded}, nil
}

func (m *MockPaymentLedger) ProcessPayment(ctx context.Context, sessionID, userID string, energyKWh, pricePerKWh float64) (*domain.PaymentResult, error) {
	m.mu.Lock()
	m.Payments = append(m.Payments, sessionID)
	m.mu.Unlock()
	if m.ProcessPaymentFunc != nil {
		return m.ProcessPaymentFunc(ctx, sessionID, userID, energyKWh, pricePerKWh)
	}
	return &domain.PaymentResult{PaymentID: "pay-" + uuid.NewString(), Status: domain.PaymentStatusSucceeded}, nil
}

// RefundCount returns how many refunds were requested
func (m *MockPaymentLedger) RefundCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Refunds)
}

// MockStationDirectory is a mock implementation of StationDirectory
type MockStationDirectory struct {
	ListChargersFunc        func(ctx context.Context, stationID string) ([]domain.Charger, error)
	UpdateChargerStatusFunc func(ctx context.Context, chargerID string, status domain.ChargerStatus) error

	mu      sync.Mutex
	Updates map[string]domain.ChargerStatus
}

func (m *MockStationDirectory) ListChargers(ctx context.Context, stationID string) ([]domain.Charger, error) {
	if m.ListChargersFunc != nil {
		return m.ListChargersFunc(ctx, stationID)
	}
	return nil, nil
}

func (m *MockStationDirectory) UpdateChargerStatus(ctx context.Context, chargerID string, status domain.ChargerStatus) error {
	if m.UpdateChargerStatusFunc != nil {
		if err := m.UpdateChargerStatusFunc(ctx, chargerID, status); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Updates == nil {
		m.Updates = make(map[string]domain.ChargerStatus)
	}
	m.Updates[chargerID] = status
	return nil
}

// StatusOf returns the last status pushed for chargerID
func (m *MockStationDirectory) StatusOf(chargerID string) domain.ChargerStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Updates[chargerID]
}

// MockNotificationDispatcher is a mock implementation of NotificationDispatcher
type MockNotificationDispatcher struct {
	CreateNotificationFunc func(ctx context.Context, n *domain.Notification) error

	mu   sync.Mutex
	Sent []domain.Notification
}

func (m *MockNotificationDispatcher) CreateNotification(ctx context.Context, n *domain.Notification) error {
	if m.CreateNotificationFunc != nil {
		if err := m.CreateNotificationFunc(ctx, n); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, *n)
	return nil
}

// OfType returns the delivered notifications of type t
func (m *MockNotificationDispatcher) OfType(t domain.NotificationType) []domain.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Notification
	for _, n := range m.Sent {
		if n.Type == t {
			out = append(out, n)
		}
	}
	return out
}

// MockUserDirectory is a mock implementation of UserDirectory
type MockUserDirectory struct {
	GetSubscriptionTierFunc func(ctx context.Context, userID string) (domain.SubscriptionTier, error)
}

func (m *MockUserDirectory) GetSubscriptionTier(ctx context.Context, userID string) (domain.SubscriptionTier, error) {
	if m.GetSubscriptionTierFunc != nil {
		return m.GetSubscriptionTierFunc(ctx, userID)
	}
	return domain.SubscriptionTierNone, nil
}
