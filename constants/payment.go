package constants

// PaymentStatus is the canonical status for rows in payments, as
// reported by the external payment gateway.
type PaymentStatus string

// Stable values (store these exact strings in DB).
const (
	PaymentPending   PaymentStatus = "pending"
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// PaymentStatusStrings returns the stable wire strings.
func PaymentStatusStrings() []string {
	return []string{
		string(PaymentPending),
		string(PaymentSucceeded),
		string(PaymentFailed),
		string(PaymentRefunded),
	}
}
