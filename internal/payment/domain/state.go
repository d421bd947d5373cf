package domain

import "errors"

// PaymentState is the lifecycle state of a payment order. The string
// values are the canonical tokens stored in the database.
type PaymentState string

const (
	StatePending    PaymentState = "pending"
	StateProcessing PaymentState = "processing"
	StateSucceeded  PaymentState = "succeeded"
	StateFailed     PaymentState = "failed"
	StateRefunded   PaymentState = "refunded"
	StateClosed     PaymentState = "closed"
)

func (s PaymentState) String() string {
	return string(s)
}

// ParsePaymentState maps a persisted token back to a PaymentState. An
// unknown token means the row is corrupt and must be reported, not
// crashed on.
func ParsePaymentState(token string) (PaymentState, error) {
	switch PaymentState(token) {
	case StatePending, StateProcessing, StateSucceeded, StateFailed, StateRefunded, StateClosed:
		return PaymentState(token), nil
	default:
		return "", &StorageError{Op: "parse state", Err: errors.New("unknown payment state token: " + token)}
	}
}

// PaymentMethod selects the WeChat Pay flow used for an order.
// MiniProgram requires the payer's openid.
type PaymentMethod string

const (
	MethodMiniProgram PaymentMethod = "mini_program"
	MethodJsapi       PaymentMethod = "jsapi"
	MethodNative      PaymentMethod = "native"
	MethodH5          PaymentMethod = "h5"
)

func (m PaymentMethod) String() string {
	return string(m)
}

// ParsePaymentMethod maps a token to a PaymentMethod, rejecting
// anything outside the closed set.
func ParsePaymentMethod(token string) (PaymentMethod, error) {
	switch PaymentMethod(token) {
	case MethodMiniProgram, MethodJsapi, MethodNative, MethodH5:
		return PaymentMethod(token), nil
	default:
		return "", &ValidationError{Msg: "unknown payment method: " + token}
	}
}
