package command

import (
	"context"

	"github.com/oryjk/payment-service/internal/payment/domain"
	"github.com/oryjk/payment-service/pkg/logger"
)

// ClosePaymentCommand closes an unpaid order by merchant order number.
type ClosePaymentCommand struct {
	OutOrderNo string
}

// ClosePaymentHandler closes the order at the gateway first, then
// records the terminal state locally.
type ClosePaymentHandler struct {
	repo    domain.PaymentRepository
	gateway domain.WechatGateway
}

func NewClosePaymentHandler(repo domain.PaymentRepository, gateway domain.WechatGateway) *ClosePaymentHandler {
	return &ClosePaymentHandler{repo: repo, gateway: gateway}
}

func (h *ClosePaymentHandler) Handle(ctx context.Context, cmd ClosePaymentCommand) (*domain.PaymentOrder, error) {
	order, err := h.repo.FindByOutOrderNo(ctx, cmd.OutOrderNo)
	if err != nil {
		return nil, err
	}

	fromState := order.State
	if err := order.MarkClosed(); err != nil {
		return nil, err
	}

	if err := h.gateway.CloseOrder(ctx, cmd.OutOrderNo); err != nil {
		return nil, err
	}

	if err := h.repo.Update(ctx, order, fromState); err != nil {
		return nil, err
	}

	logger.Info(ctx).
		Str("out_order_no", cmd.OutOrderNo).
		Msg("Payment closed")

	return order, nil
}
