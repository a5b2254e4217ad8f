package payment

import "time"

// Status is the provider-independent payment state. Every adapter maps its
// gateway's native result codes onto this vocabulary so that callers never
// branch on provider-specific values.
type Status string

const (
	StatusPending           Status = "pending"
	StatusProcessing        Status = "processing"
	StatusPaid              Status = "paid"
	StatusFailed            Status = "failed"
	StatusCancelled         Status = "cancelled"
	StatusRefunded          Status = "refunded"
	StatusPartiallyRefunded Status = "partially_refunded"
)

// transitions is the legal lifecycle graph:
// pending -> processing -> {paid | failed | cancelled}, paid -> refund states.
var transitions = map[Status][]Status{
	StatusPending:           {StatusProcessing, StatusPaid, StatusFailed, StatusCancelled},
	StatusProcessing:        {StatusPaid, StatusFailed, StatusCancelled},
	StatusPaid:              {StatusRefunded, StatusPartiallyRefunded},
	StatusPartiallyRefunded: {StatusRefunded},
}

// CanTransitionTo reports whether moving from s to next is a legal
// lifecycle transition. Callers reconcile gateway results against their own
// order state machine with this.
func (s Status) CanTransitionTo(next Status) bool {
	for _, n := range transitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further payment processing happens in s.
// Paid is terminal for processing purposes even though refund transitions
// remain legal.
func (s Status) Terminal() bool {
	switch s {
	case StatusPaid, StatusFailed, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}

// RefundStatus values for RefundResult.
const (
	RefundCompleted = "completed"
	RefundFailed    = "failed"
)

// SessionLifetime is how long a checkout session stays payable,
// provider-independent.
const SessionLifetime = 15 * time.Minute

// Order is the caller-owned descriptor of what is being paid for.
// Amount is an integer in the smallest currency unit.
type Order struct {
	ID          string
	OrderNumber string
	Amount      int64
	Currency    string
	Description string
	UserID      string
}

// CreateOptions carries per-call overrides for session creation. Zero values
// fall back to the adapter's configured defaults.
type CreateOptions struct {
	ReturnURL string
	NotifyURL string
	BankCode  string
	Locale    string
	ClientIP  string
}

// PaymentSession is the immutable record of a created checkout attempt.
// At least one of PayURL, Deeplink or QRCodeURL is set, depending on the
// gateway. RawResponse keeps the gateway's reply verbatim for audit only.
type PaymentSession struct {
	PaymentID      string                 `json:"payment_id"`
	GatewayOrderID string                 `json:"gateway_order_id"`
	PayURL         string                 `json:"pay_url,omitempty"`
	Deeplink       string                 `json:"deeplink,omitempty"`
	QRCodeURL      string                 `json:"qr_code_url,omitempty"`
	Provider       string                 `json:"provider"`
	Amount         int64                  `json:"amount"`
	Status         Status                 `json:"status"`
	ExpiresAt      time.Time              `json:"expires_at"`
	RawResponse    map[string]interface{} `json:"raw_response,omitempty"`
}

// PaymentResult is the normalized outcome of a callback or a status query.
// ErrorCode/ErrorMessage are populated only when Success is false; ErrorCode
// keeps the gateway's native code as "<PROVIDER>_<code>" for diagnostics.
type PaymentResult struct {
	Success       bool                   `json:"success"`
	PaymentID     string                 `json:"payment_id"`
	TransactionID string                 `json:"transaction_id,omitempty"`
	Amount        int64                  `json:"amount"`
	Status        Status                 `json:"status"`
	ErrorCode     string                 `json:"error_code,omitempty"`
	ErrorMessage  string                 `json:"error_message,omitempty"`
	RawData       map[string]interface{} `json:"raw_data,omitempty"`
}

// RefundRequest asks a gateway to return money for a settled payment.
// TransactionID is the gateway's transaction reference from the original
// payment, Amount the refund value in the smallest currency unit.
type RefundRequest struct {
	PaymentID     string
	TransactionID string
	Amount        int64
	Reason        string
}

type RefundResult struct {
	Success      bool   `json:"success"`
	RefundID     string `json:"refund_id,omitempty"`
	Amount       int64  `json:"amount"`
	Status       string `json:"status"`
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}
