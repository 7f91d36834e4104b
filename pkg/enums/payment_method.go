package enums

import "fmt"

// PaymentMethod labels how the customer paid at the till. No gateway is involved.
type PaymentMethod string

const (
	PaymentMethodCash   PaymentMethod = "cash"
	PaymentMethodCard   PaymentMethod = "card"
	PaymentMethodMobile PaymentMethod = "mobile"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodCash,
	PaymentMethodCard,
	PaymentMethodMobile,
}

// String implements fmt.Stringer.
func (p PaymentMethod) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentMethod.
func (p PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsCashEquivalent reports whether the tender settles at the counter.
func (p PaymentMethod) IsCashEquivalent() bool {
	return p.IsValid()
}

// InitialPaymentStatus is the status a sale is booked with for this method.
func (p PaymentMethod) InitialPaymentStatus() PaymentStatus {
	if p.IsCashEquivalent() {
		return PaymentStatusCompleted
	}
	return PaymentStatusPending
}

// ParsePaymentMethod converts raw input into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	for _, candidate := range validPaymentMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}
