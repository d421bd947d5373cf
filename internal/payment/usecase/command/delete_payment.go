package command

import (
	"context"

	"github.com/oryjk/payment-service/internal/payment/domain"
	"github.com/oryjk/payment-service/pkg/logger"
)

// DeletePaymentCommand is the administrative soft delete by order id.
type DeletePaymentCommand struct {
	OrderID string
}

type DeletePaymentHandler struct {
	repo domain.PaymentRepository
}

func NewDeletePaymentHandler(repo domain.PaymentRepository) *DeletePaymentHandler {
	return &DeletePaymentHandler{repo: repo}
}

func (h *DeletePaymentHandler) Handle(ctx context.Context, cmd DeletePaymentCommand) error {
	if cmd.OrderID == "" {
		return &domain.ValidationError{Msg: "order id is required"}
	}
	if err := h.repo.Delete(ctx, cmd.OrderID); err != nil {
		return err
	}

	logger.Info(ctx).
		Str("order_id", cmd.OrderID).
		Msg("Payment deleted")
	return nil
}
