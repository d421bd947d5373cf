package command

import (
	"context"
	"encoding/json"

	"github.com/oryjk/payment-service/internal/payment/domain"
)

// fakeRepo is an in-memory PaymentRepository keyed by out_order_no.
// Finds return copies so handler-side mutation only lands via Update.
type fakeRepo struct {
	orders      map[string]*domain.PaymentOrder
	saveErr     error
	updateErr   error
	staleOnce   bool
	updateCalls int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{orders: make(map[string]*domain.PaymentOrder)}
}

func (r *fakeRepo) put(order *domain.PaymentOrder) {
	clone := *order
	r.orders[order.OutOrderNo] = &clone
}

func (r *fakeRepo) Save(ctx context.Context, order *domain.PaymentOrder) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	if _, ok := r.orders[order.OutOrderNo]; ok {
		return domain.ErrDuplicateOrder
	}
	r.put(order)
	return nil
}

func (r *fakeRepo) FindByID(ctx context.Context, id string) (*domain.PaymentOrder, error) {
	for _, o := range r.orders {
		if o.ID == id {
			clone := *o
			return &clone, nil
		}
	}
	return nil, &domain.OrderNotFoundError{Key: id}
}

func (r *fakeRepo) FindByOutOrderNo(ctx context.Context, outOrderNo string) (*domain.PaymentOrder, error) {
	o, ok := r.orders[outOrderNo]
	if !ok {
		return nil, &domain.OrderNotFoundError{Key: outOrderNo}
	}
	clone := *o
	return &clone, nil
}

func (r *fakeRepo) FindByTransactionID(ctx context.Context, transactionID string) (*domain.PaymentOrder, error) {
	for _, o := range r.orders {
		if o.TransactionID == transactionID {
			clone := *o
			return &clone, nil
		}
	}
	return nil, &domain.OrderNotFoundError{Key: transactionID}
}

func (r *fakeRepo) Update(ctx context.Context, order *domain.PaymentOrder, fromState domain.PaymentState) error {
	r.updateCalls++
	if r.updateErr != nil {
		return r.updateErr
	}
	if r.staleOnce {
		r.staleOnce = false
		return domain.ErrStaleOrder
	}
	stored, ok := r.orders[order.OutOrderNo]
	if !ok {
		return &domain.OrderNotFoundError{Key: order.OutOrderNo}
	}
	if stored.State != fromState {
		return domain.ErrStaleOrder
	}
	r.put(order)
	return nil
}

func (r *fakeRepo) Delete(ctx context.Context, id string) error {
	for no, o := range r.orders {
		if o.ID == id {
			delete(r.orders, no)
			return nil
		}
	}
	return &domain.OrderNotFoundError{Key: id}
}

// fakeGateway is a canned WechatGateway. DecryptNotification ignores
// the sealed block and returns the configured plaintext.
type fakeGateway struct {
	prepayID   string
	createErr  error
	closeErr   error
	queryResp  *domain.GatewayQueryResponse
	queryErr   error
	plaintext  []byte
	decryptErr error
	closed     []string
	created    []domain.GatewayOrderRequest
}

func (g *fakeGateway) CreateOrder(ctx context.Context, req domain.GatewayOrderRequest) (*domain.GatewayOrderResponse, error) {
	g.created = append(g.created, req)
	if g.createErr != nil {
		return nil, g.createErr
	}
	return &domain.GatewayOrderResponse{PrepayID: g.prepayID}, nil
}

func (g *fakeGateway) QueryOrder(ctx context.Context, outOrderNo string) (*domain.GatewayQueryResponse, error) {
	if g.queryErr != nil {
		return nil, g.queryErr
	}
	return g.queryResp, nil
}

func (g *fakeGateway) CloseOrder(ctx context.Context, outOrderNo string) error {
	if g.closeErr != nil {
		return g.closeErr
	}
	g.closed = append(g.closed, outOrderNo)
	return nil
}

func (g *fakeGateway) PayParams(prepayID string) (*domain.MiniProgramPayParams, error) {
	return &domain.MiniProgramPayParams{
		TimeStamp: "1756512000",
		NonceStr:  "nonce",
		Package:   "prepay_id=" + prepayID,
		SignType:  "RSA",
		PaySign:   "signed",
	}, nil
}

func (g *fakeGateway) VerifyNotification(timestamp, nonce, body, signature string) error {
	return nil
}

func (g *fakeGateway) DecryptNotification(ciphertext, associatedData, nonce string) ([]byte, error) {
	if g.decryptErr != nil {
		return nil, g.decryptErr
	}
	return g.plaintext, nil
}

func successPlaintext(outTradeNo, transactionID string) []byte {
	b, _ := json.Marshal(map[string]string{
		"out_trade_no":   outTradeNo,
		"transaction_id": transactionID,
		"trade_state":    "SUCCESS",
	})
	return b
}
