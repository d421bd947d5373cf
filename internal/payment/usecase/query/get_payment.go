package query

import (
	"context"
	"errors"

	"github.com/oryjk/payment-service/internal/payment/domain"
	"github.com/oryjk/payment-service/pkg/logger"
)

// Gateway trade states that map onto local transitions. Anything else
// leaves the order untouched.
const (
	tradeStateSuccess  = "SUCCESS"
	tradeStateClosed   = "CLOSED"
	tradeStatePayError = "PAYERROR"
)

// GetPaymentQuery looks up an order by merchant order number.
type GetPaymentQuery struct {
	OutOrderNo string
}

// GetPaymentResult carries the reconciled order. BecameSucceeded is set
// when this call itself applied the success transition, so the caller
// can publish the corresponding event exactly once.
type GetPaymentResult struct {
	Order           *domain.PaymentOrder
	BecameSucceeded bool
}

// GetPaymentHandler reads an order and, while the order is not
// finished, actively reconciles against the gateway. This recovers
// state even when the asynchronous notification was lost.
type GetPaymentHandler struct {
	repo    domain.PaymentRepository
	gateway domain.WechatGateway
}

func NewGetPaymentHandler(repo domain.PaymentRepository, gateway domain.WechatGateway) *GetPaymentHandler {
	return &GetPaymentHandler{repo: repo, gateway: gateway}
}

func (h *GetPaymentHandler) Handle(ctx context.Context, q GetPaymentQuery) (*GetPaymentResult, error) {
	if q.OutOrderNo == "" {
		return nil, &domain.ValidationError{Msg: "out_order_no is required"}
	}

	order, err := h.repo.FindByOutOrderNo(ctx, q.OutOrderNo)
	if err != nil {
		return nil, err
	}
	if order.IsFinished() {
		return &GetPaymentResult{Order: order}, nil
	}

	remote, err := h.gateway.QueryOrder(ctx, q.OutOrderNo)
	if err != nil {
		return nil, err
	}

	fromState := order.State
	transitioned := false
	succeeded := false

	switch remote.TradeState {
	case tradeStateSuccess:
		if remote.TransactionID != "" {
			if err := order.MarkSucceeded(remote.TransactionID); err != nil {
				return nil, err
			}
			transitioned = true
			succeeded = true
		}
	case tradeStateClosed:
		if err := order.MarkClosed(); err != nil {
			return nil, err
		}
		transitioned = true
	case tradeStatePayError:
		if err := order.MarkFailed(); err != nil {
			return nil, err
		}
		transitioned = true
	default:
		logger.Debug(ctx).
			Str("out_order_no", q.OutOrderNo).
			Str("trade_state", remote.TradeState).
			Msg("Order state unchanged after gateway query")
	}

	if transitioned {
		err := h.repo.Update(ctx, order, fromState)
		if errors.Is(err, domain.ErrStaleOrder) {
			// A notification got there first; its result is
			// authoritative. Serve the stored row.
			current, ferr := h.repo.FindByOutOrderNo(ctx, q.OutOrderNo)
			if ferr != nil {
				return nil, ferr
			}
			return &GetPaymentResult{Order: current}, nil
		}
		if err != nil {
			return nil, err
		}
	}

	return &GetPaymentResult{Order: order, BecameSucceeded: succeeded}, nil
}
