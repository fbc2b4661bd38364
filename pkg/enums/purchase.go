package enums

import "fmt"

// PurchaseStatus tracks a recorded purchase.
type PurchaseStatus string

const (
	PurchaseStatusPending   PurchaseStatus = "pending"
	PurchaseStatusCompleted PurchaseStatus = "completed"
	PurchaseStatusFailed    PurchaseStatus = "failed"
)

var validPurchaseStatuses = []PurchaseStatus{
	PurchaseStatusPending,
	PurchaseStatusCompleted,
	PurchaseStatusFailed,
}

func (p PurchaseStatus) String() string {
	return string(p)
}

func (p PurchaseStatus) IsValid() bool {
	for _, candidate := range validPurchaseStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePurchaseStatus converts raw input into a PurchaseStatus.
func ParsePurchaseStatus(value string) (PurchaseStatus, error) {
	for _, candidate := range validPurchaseStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid purchase status %q", value)
}

// PurchaseSource records which outcome channel reconciled a payment.
type PurchaseSource string

const (
	PurchaseSourceRedirect PurchaseSource = "redirect"
	PurchaseSourceWebhook  PurchaseSource = "webhook"
)

func (p PurchaseSource) IsValid() bool {
	return p == PurchaseSourceRedirect || p == PurchaseSourceWebhook
}
