package domain

import (
	"time"

	"github.com/google/uuid"
)

// PaymentOrder is the aggregate for one payment attempt. The amount and
// identifiers are fixed at creation; only state-related fields mutate,
// and only through the named transition methods below.
type PaymentOrder struct {
	ID            string        `json:"id"`
	OutOrderNo    string        `json:"out_order_no"`
	TransactionID string        `json:"transaction_id,omitempty"`
	Amount        Money         `json:"amount"`
	Method        PaymentMethod `json:"payment_method"`
	State         PaymentState  `json:"state"`
	Description   string        `json:"description"`
	Openid        string        `json:"openid,omitempty"`
	ClientIP      string        `json:"client_ip"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	PaidAt        *time.Time    `json:"paid_at,omitempty"`
	Attach        string        `json:"attach,omitempty"`
	PrepayID      string        `json:"prepay_id,omitempty"`
}

// NewPaymentOrder validates the request fields and builds a Pending order.
func NewPaymentOrder(outOrderNo string, amount Money, method PaymentMethod, description, clientIP, openid, attach string) (*PaymentOrder, error) {
	if amount.ToCents() <= 0 {
		return nil, &InvalidAmountError{Cents: amount.ToCents()}
	}
	if outOrderNo == "" || len(outOrderNo) > 64 {
		return nil, &ValidationError{Msg: "out_order_no must be 1-64 characters"}
	}
	if description == "" || len(description) > 127 {
		return nil, &ValidationError{Msg: "description must be 1-127 characters"}
	}

	now := time.Now()
	return &PaymentOrder{
		ID:          uuid.NewString(),
		OutOrderNo:  outOrderNo,
		Amount:      amount,
		Method:      method,
		State:       StatePending,
		Description: description,
		Openid:      openid,
		ClientIP:    clientIP,
		CreatedAt:   now,
		UpdatedAt:   now,
		Attach:      attach,
	}, nil
}

// MarkProcessing moves a Pending order to Processing.
func (o *PaymentOrder) MarkProcessing() error {
	if o.State != StatePending {
		return &InvalidStateError{Expected: StatePending.String(), Actual: o.State}
	}
	o.State = StateProcessing
	o.UpdatedAt = time.Now()
	return nil
}

// MarkSucceeded records the gateway transaction id and the payment time.
// Legal from Pending or Processing.
func (o *PaymentOrder) MarkSucceeded(transactionID string) error {
	if o.State != StatePending && o.State != StateProcessing {
		return &InvalidStateError{Expected: "pending or processing", Actual: o.State}
	}
	now := time.Now()
	o.State = StateSucceeded
	o.TransactionID = transactionID
	o.PaidAt = &now
	o.UpdatedAt = now
	return nil
}

// MarkFailed is legal from Pending or Processing.
func (o *PaymentOrder) MarkFailed() error {
	if o.State != StatePending && o.State != StateProcessing {
		return &InvalidStateError{Expected: "pending or processing", Actual: o.State}
	}
	o.State = StateFailed
	o.UpdatedAt = time.Now()
	return nil
}

// MarkClosed is illegal once an order has Succeeded or been Refunded.
func (o *PaymentOrder) MarkClosed() error {
	if o.State == StateSucceeded || o.State == StateRefunded {
		return &InvalidStateError{Expected: "pending, processing or failed", Actual: o.State}
	}
	o.State = StateClosed
	o.UpdatedAt = time.Now()
	return nil
}

// SetPrepayID stores the gateway prepay token. Always legal.
func (o *PaymentOrder) SetPrepayID(prepayID string) {
	o.PrepayID = prepayID
	o.UpdatedAt = time.Now()
}

// CanPay reports whether the order still accepts payment.
func (o *PaymentOrder) CanPay() bool {
	return o.State == StatePending
}

// IsFinished reports whether re-querying the gateway is pointless.
func (o *PaymentOrder) IsFinished() bool {
	switch o.State {
	case StateSucceeded, StateFailed, StateClosed:
		return true
	default:
		return false
	}
}
