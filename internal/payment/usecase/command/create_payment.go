package command

import (
	"context"

	"github.com/oryjk/payment-service/internal/payment/domain"
	"github.com/oryjk/payment-service/pkg/logger"
)

// CreatePaymentCommand carries a validated-at-the-edge create request.
type CreatePaymentCommand struct {
	OutOrderNo  string
	AmountCents int64
	Method      domain.PaymentMethod
	Description string
	Openid      string
	ClientIP    string
	Attach      string
}

// CreatePaymentResult is what the HTTP layer renders for a new order.
type CreatePaymentResult struct {
	Order     *domain.PaymentOrder
	PayParams *domain.MiniProgramPayParams
}

// CreatePaymentHandler persists a new order, places it at the gateway
// and signs the client payment parameters.
type CreatePaymentHandler struct {
	repo    domain.PaymentRepository
	gateway domain.WechatGateway
}

func NewCreatePaymentHandler(repo domain.PaymentRepository, gateway domain.WechatGateway) *CreatePaymentHandler {
	return &CreatePaymentHandler{repo: repo, gateway: gateway}
}

// Handle runs the create flow. A failure after the initial save leaves
// the order persisted in Pending with no prepay id; the unique index on
// out_order_no guarantees a retry can never create a duplicate row.
func (h *CreatePaymentHandler) Handle(ctx context.Context, cmd CreatePaymentCommand) (*CreatePaymentResult, error) {
	order, err := domain.NewPaymentOrder(
		cmd.OutOrderNo,
		domain.FromCents(cmd.AmountCents),
		cmd.Method,
		cmd.Description,
		cmd.ClientIP,
		cmd.Openid,
		cmd.Attach,
	)
	if err != nil {
		return nil, err
	}

	if err := h.repo.Save(ctx, order); err != nil {
		return nil, err
	}

	resp, err := h.gateway.CreateOrder(ctx, domain.GatewayOrderRequest{
		OutOrderNo:  order.OutOrderNo,
		Description: order.Description,
		AmountCents: order.Amount.ToCents(),
		Openid:      order.Openid,
		ClientIP:    order.ClientIP,
		Attach:      order.Attach,
	})
	if err != nil {
		return nil, err
	}

	order.SetPrepayID(resp.PrepayID)
	if err := h.repo.Update(ctx, order, domain.StatePending); err != nil {
		return nil, err
	}

	result := &CreatePaymentResult{Order: order}
	if order.Method == domain.MethodMiniProgram {
		params, err := h.gateway.PayParams(order.PrepayID)
		if err != nil {
			return nil, err
		}
		result.PayParams = params
	}

	logger.Info(ctx).
		Str("order_id", order.ID).
		Str("out_order_no", order.OutOrderNo).
		Int64("amount_cents", order.Amount.ToCents()).
		Msg("Payment created")

	return result, nil
}
