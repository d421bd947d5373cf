package domain

import "context"

// PaymentRepository is the persistence contract consumed by the use
// cases. out_order_no uniqueness is enforced at the storage layer;
// Save surfaces a violation as ErrDuplicateOrder.
type PaymentRepository interface {
	Save(ctx context.Context, order *PaymentOrder) error
	FindByID(ctx context.Context, id string) (*PaymentOrder, error)
	FindByOutOrderNo(ctx context.Context, outOrderNo string) (*PaymentOrder, error)
	FindByTransactionID(ctx context.Context, transactionID string) (*PaymentOrder, error)
	// Update persists state-related fields conditionally: the row must
	// still be in fromState, otherwise ErrStaleOrder is returned and
	// nothing is written. A lost race never clobbers a terminal state.
	Update(ctx context.Context, order *PaymentOrder, fromState PaymentState) error
	// Delete soft-deletes an order by id.
	Delete(ctx context.Context, id string) error
}

// GatewayOrderRequest carries the fields WeChat Pay needs to create an
// order. Transient, never persisted.
type GatewayOrderRequest struct {
	OutOrderNo  string
	Description string
	AmountCents int64
	Openid      string
	ClientIP    string
	Attach      string
}

// GatewayOrderResponse is the result of creating a remote order.
type GatewayOrderResponse struct {
	PrepayID string
}

// GatewayQueryResponse is the gateway-reported status of an order,
// distinct from the locally tracked state until reconciled.
type GatewayQueryResponse struct {
	TradeState     string
	TransactionID  string
	TradeStateDesc string
}

// MiniProgramPayParams are handed to the mini-program SDK to bring up
// the payment sheet.
type MiniProgramPayParams struct {
	TimeStamp string `json:"time_stamp"`
	NonceStr  string `json:"nonce_str"`
	Package   string `json:"package"`
	SignType  string `json:"sign_type"`
	PaySign   string `json:"pay_sign"`
}

// WechatGateway is the outbound port to WeChat Pay. Every call is
// authenticated with a per-request authorization header signed by the
// merchant private key.
type WechatGateway interface {
	CreateOrder(ctx context.Context, req GatewayOrderRequest) (*GatewayOrderResponse, error)
	QueryOrder(ctx context.Context, outOrderNo string) (*GatewayQueryResponse, error)
	CloseOrder(ctx context.Context, outOrderNo string) error
	// PayParams signs the client-side payment parameters for a prepay id.
	PayParams(prepayID string) (*MiniProgramPayParams, error)
	// VerifyNotification checks a webhook delivery against the WeChat
	// platform certificate. ErrSignatureVerification on mismatch.
	VerifyNotification(timestamp, nonce, body, signature string) error
	// DecryptNotification opens the AEAD-sealed notification resource.
	DecryptNotification(ciphertext, associatedData, nonce string) ([]byte, error)
}
