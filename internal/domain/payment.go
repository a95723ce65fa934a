package domain

// PaymentStatus represents the status the payment ledger reports for an operation
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusSucceeded PaymentStatus = "succeeded"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
	PaymentStatusDeclined  PaymentStatus = "declined"
)

// Settled reports whether funds were actually held, captured or returned.
func (s PaymentStatus) Settled() bool {
	return s == PaymentStatusSucceeded || s == PaymentStatusRefunded
}

// PaymentResult is the ledger's answer to a deposit, refund or payment request
type PaymentResult struct {
	PaymentID string        `json:"payment_id"`
	Status    PaymentStatus `json:"status"`
}
