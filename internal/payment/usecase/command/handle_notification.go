package command

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/oryjk/payment-service/internal/payment/domain"
	"github.com/oryjk/payment-service/pkg/logger"
)

// EventTypeTransactionSuccess is the WeChat event for a completed payment.
const EventTypeTransactionSuccess = "TRANSACTION.SUCCESS"

// EncryptedResource is the sealed block inside a notification envelope.
type EncryptedResource struct {
	Algorithm      string `json:"algorithm"`
	Ciphertext     string `json:"ciphertext"`
	Nonce          string `json:"nonce"`
	AssociatedData string `json:"associated_data"`
}

// NotificationCommand is one webhook delivery, already signature-checked
// by the HTTP layer.
type NotificationCommand struct {
	NotificationID string
	EventType      string
	Resource       EncryptedResource
}

// NotificationResult reports what the delivery did, so the caller can
// publish events only for real transitions.
type NotificationResult struct {
	OutOrderNo    string
	TransactionID string
	Transitioned  bool
	// Order is populated when Transitioned is true.
	Order *domain.PaymentOrder
}

// NotificationHandler decrypts and applies asynchronous payment
// notifications. Redeliveries for an already-succeeded order are
// acknowledged as no-ops: WeChat retries until it sees a success
// response, and surfacing InvalidState here causes a retry storm.
type NotificationHandler struct {
	repo    domain.PaymentRepository
	gateway domain.WechatGateway
}

func NewNotificationHandler(repo domain.PaymentRepository, gateway domain.WechatGateway) *NotificationHandler {
	return &NotificationHandler{repo: repo, gateway: gateway}
}

type notificationPayload struct {
	OutTradeNo    string `json:"out_trade_no"`
	TransactionID string `json:"transaction_id"`
}

func (h *NotificationHandler) Handle(ctx context.Context, cmd NotificationCommand) (*NotificationResult, error) {
	plaintext, err := h.gateway.DecryptNotification(
		cmd.Resource.Ciphertext,
		cmd.Resource.AssociatedData,
		cmd.Resource.Nonce,
	)
	if err != nil {
		return nil, err
	}

	var payload notificationPayload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return nil, &domain.SerializationError{Op: "decode notification", Err: err}
	}
	if payload.OutTradeNo == "" {
		return nil, &domain.ValidationError{Msg: "missing out_trade_no in notification"}
	}

	if cmd.EventType != EventTypeTransactionSuccess {
		logger.Debug(ctx).
			Str("event_type", cmd.EventType).
			Str("out_order_no", payload.OutTradeNo).
			Msg("Ignoring unhandled notification event type")
		return &NotificationResult{OutOrderNo: payload.OutTradeNo}, nil
	}

	if payload.TransactionID == "" {
		return nil, &domain.ValidationError{Msg: "missing transaction_id in notification"}
	}

	return h.applySuccess(ctx, payload.OutTradeNo, payload.TransactionID, true)
}

// applySuccess marks the order succeeded, treating redelivery and lost
// races as benign. retryOnStale guards against unbounded recursion: the
// reload-and-recheck path runs at most once.
func (h *NotificationHandler) applySuccess(ctx context.Context, outOrderNo, transactionID string, retryOnStale bool) (*NotificationResult, error) {
	order, err := h.repo.FindByOutOrderNo(ctx, outOrderNo)
	if err != nil {
		return nil, err
	}

	if order.State == domain.StateSucceeded {
		if order.TransactionID == "" || order.TransactionID == transactionID {
			logger.Info(ctx).
				Str("out_order_no", outOrderNo).
				Str("transaction_id", transactionID).
				Msg("Duplicate success notification acknowledged")
			return &NotificationResult{OutOrderNo: outOrderNo, TransactionID: transactionID}, nil
		}
		return nil, &domain.InvalidStateError{Expected: "pending or processing", Actual: order.State}
	}

	fromState := order.State
	if err := order.MarkSucceeded(transactionID); err != nil {
		return nil, err
	}

	err = h.repo.Update(ctx, order, fromState)
	if errors.Is(err, domain.ErrStaleOrder) && retryOnStale {
		// Lost a race with the query-reconciliation path or another
		// delivery. Re-read and decide again.
		return h.applySuccess(ctx, outOrderNo, transactionID, false)
	}
	if err != nil {
		return nil, err
	}

	logger.Info(ctx).
		Str("out_order_no", outOrderNo).
		Str("transaction_id", transactionID).
		Msg("Payment succeeded via notification")

	return &NotificationResult{
		OutOrderNo:    outOrderNo,
		TransactionID: transactionID,
		Transitioned:  true,
		Order:         order,
	}, nil
}
