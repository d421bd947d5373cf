package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/oryjk/payment-service/internal/payment/domain"
	"github.com/oryjk/payment-service/internal/payment/usecase/command"
	"github.com/oryjk/payment-service/kafka"
	"github.com/oryjk/payment-service/pkg/logger"
)

// notificationEnvelope is the outer JSON of a WeChat Pay v3 webhook
// delivery. Only the resource block is encrypted.
type notificationEnvelope struct {
	ID         string                    `json:"id"`
	EventType  string                    `json:"event_type"`
	Resource   command.EncryptedResource `json:"resource"`
	CreateTime string                    `json:"create_time"`
}

type webhookAck struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// WechatWebhook handles POST /api/webhooks/wechat. The delivery is
// rejected before any processing unless its platform signature over
// the raw body verifies.
func (h *PaymentHandler) WechatWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	timestamp := r.Header.Get("Wechatpay-Timestamp")
	nonce := r.Header.Get("Wechatpay-Nonce")
	signature := r.Header.Get("Wechatpay-Signature")
	if timestamp == "" || nonce == "" || signature == "" {
		respondJSON(w, http.StatusBadRequest, webhookAck{
			Code:    "FAIL",
			Message: "missing signature headers",
		})
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, webhookAck{Code: "FAIL", Message: "unreadable body"})
		return
	}

	if err := h.gateway.VerifyNotification(timestamp, nonce, string(body), signature); err != nil {
		logger.Warn(ctx).Msg("Rejected webhook with bad platform signature")
		respondJSON(w, http.StatusUnauthorized, webhookAck{Code: "FAIL", Message: "signature verification failed"})
		return
	}

	var envelope notificationEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		respondJSON(w, http.StatusBadRequest, webhookAck{Code: "FAIL", Message: "malformed notification"})
		return
	}

	if h.notifCache.Seen(ctx, envelope.ID) {
		logger.Info(ctx).
			Str("notification_id", envelope.ID).
			Msg("Duplicate notification short-circuited")
		respondJSON(w, http.StatusOK, webhookAck{Code: "SUCCESS"})
		return
	}

	result, err := h.notificationHandler.Handle(ctx, command.NotificationCommand{
		NotificationID: envelope.ID,
		EventType:      envelope.EventType,
		Resource:       envelope.Resource,
	})
	if err != nil {
		var validationErr *domain.ValidationError
		var serializationErr *domain.SerializationError
		status := http.StatusInternalServerError
		if errors.As(err, &validationErr) || errors.As(err, &serializationErr) {
			status = http.StatusBadRequest
		}
		logger.Error(ctx).
			Err(err).
			Str("notification_id", envelope.ID).
			Str("event_type", envelope.EventType).
			Msg("Webhook processing failed")
		respondJSON(w, status, webhookAck{Code: "FAIL", Message: err.Error()})
		return
	}

	h.notifCache.MarkProcessed(ctx, envelope.ID)

	if result.Transitioned {
		paymentsSucceededTotal.Inc()
		h.publishEvent(ctx, kafka.EventTypePaymentSucceeded, result.Order)
	}

	respondJSON(w, http.StatusOK, webhookAck{Code: "SUCCESS"})
}
