package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/oryjk/payment-service/internal/payment/cache"
	"github.com/oryjk/payment-service/internal/payment/domain"
	"github.com/oryjk/payment-service/internal/payment/usecase/command"
	"github.com/oryjk/payment-service/internal/payment/usecase/query"
	"github.com/oryjk/payment-service/kafka"
	"github.com/oryjk/payment-service/pkg/logger"
)

// PaymentHandler exposes the payment API over HTTP using the CQRS
// handlers underneath.
type PaymentHandler struct {
	// Command handlers
	createHandler       *command.CreatePaymentHandler
	notificationHandler *command.NotificationHandler
	closeHandler        *command.ClosePaymentHandler
	deleteHandler       *command.DeletePaymentHandler

	// Query handlers
	getHandler *query.GetPaymentHandler

	gateway        domain.WechatGateway
	kafkaPublisher *kafka.Publisher
	notifCache     *cache.NotificationCache
	adminSecret    string
}

// NewPaymentHandlerWithDI creates a new payment handler using dependency injection.
func NewPaymentHandlerWithDI(
	createHandler *command.CreatePaymentHandler,
	notificationHandler *command.NotificationHandler,
	closeHandler *command.ClosePaymentHandler,
	deleteHandler *command.DeletePaymentHandler,
	getHandler *query.GetPaymentHandler,
	gateway domain.WechatGateway,
	kafkaPublisher *kafka.Publisher,
	notifCache *cache.NotificationCache,
	adminSecret AdminSecret,
) *PaymentHandler {
	return &PaymentHandler{
		createHandler:       createHandler,
		notificationHandler: notificationHandler,
		closeHandler:        closeHandler,
		deleteHandler:       deleteHandler,
		getHandler:          getHandler,
		gateway:             gateway,
		kafkaPublisher:      kafkaPublisher,
		notifCache:          notifCache,
		adminSecret:         string(adminSecret),
	}
}

// AdminSecret is the HS256 key for the administrative endpoints,
// distinguished as its own type for wire.
type AdminSecret string

type createPaymentRequest struct {
	OutOrderNo    string `json:"out_order_no"`
	Amount        int64  `json:"amount"`
	PaymentMethod string `json:"payment_method"`
	Description   string `json:"description"`
	Openid        string `json:"openid,omitempty"`
	ClientIP      string `json:"client_ip"`
	Attach        string `json:"attach,omitempty"`
}

type paymentResponse struct {
	OrderID    string                       `json:"order_id"`
	OutOrderNo string                       `json:"out_order_no"`
	Amount     int64                        `json:"amount"`
	PrepayID   string                       `json:"prepay_id"`
	PayParams  *domain.MiniProgramPayParams `json:"pay_params,omitempty"`
	State      string                       `json:"state"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func orderResponse(order *domain.PaymentOrder, params *domain.MiniProgramPayParams) paymentResponse {
	return paymentResponse{
		OrderID:    order.ID,
		OutOrderNo: order.OutOrderNo,
		Amount:     order.Amount.ToCents(),
		PrepayID:   order.PrepayID,
		PayParams:  params,
		State:      order.State.String(),
	}
}

// CreatePayment handles POST /api/payments.
func (h *PaymentHandler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req createPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{
			Error:   "INVALID_REQUEST",
			Message: "invalid request body",
		})
		return
	}

	method, err := domain.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		respondError(w, "PAYMENT_ERROR", err)
		return
	}

	ctx := r.Context()
	result, err := h.createHandler.Handle(ctx, command.CreatePaymentCommand{
		OutOrderNo:  req.OutOrderNo,
		AmountCents: req.Amount,
		Method:      method,
		Description: req.Description,
		Openid:      req.Openid,
		ClientIP:    req.ClientIP,
		Attach:      req.Attach,
	})
	if err != nil {
		logger.Error(ctx).Err(err).Str("out_order_no", req.OutOrderNo).Msg("Payment creation failed")
		respondError(w, "PAYMENT_ERROR", err)
		return
	}

	paymentsCreatedTotal.Inc()
	h.publishEvent(ctx, kafka.EventTypePaymentCreated, result.Order)

	respondJSON(w, http.StatusCreated, orderResponse(result.Order, result.PayParams))
}

// GetPayment handles GET /api/payments/{out_order_no}.
func (h *PaymentHandler) GetPayment(w http.ResponseWriter, r *http.Request) {
	outOrderNo := mux.Vars(r)["out_order_no"]

	ctx := r.Context()
	result, err := h.getHandler.Handle(ctx, query.GetPaymentQuery{OutOrderNo: outOrderNo})
	if err != nil {
		logger.Error(ctx).Err(err).Str("out_order_no", outOrderNo).Msg("Payment query failed")
		respondError(w, "QUERY_ERROR", err)
		return
	}

	if result.BecameSucceeded {
		paymentsSucceededTotal.Inc()
		h.publishEvent(ctx, kafka.EventTypePaymentSucceeded, result.Order)
	}

	respondJSON(w, http.StatusOK, orderResponse(result.Order, nil))
}

// ClosePayment handles POST /api/payments/{out_order_no}/close (admin).
func (h *PaymentHandler) ClosePayment(w http.ResponseWriter, r *http.Request) {
	outOrderNo := mux.Vars(r)["out_order_no"]

	ctx := r.Context()
	order, err := h.closeHandler.Handle(ctx, command.ClosePaymentCommand{OutOrderNo: outOrderNo})
	if err != nil {
		logger.Error(ctx).Err(err).Str("out_order_no", outOrderNo).Msg("Payment close failed")
		respondError(w, "CLOSE_ERROR", err)
		return
	}

	respondJSON(w, http.StatusOK, orderResponse(order, nil))
}

// DeletePayment handles DELETE /api/payments/{id} (admin).
func (h *PaymentHandler) DeletePayment(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	ctx := r.Context()
	if err := h.deleteHandler.Handle(ctx, command.DeletePaymentCommand{OrderID: id}); err != nil {
		logger.Error(ctx).Err(err).Str("order_id", id).Msg("Payment delete failed")
		respondError(w, "DELETE_ERROR", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// publishEvent emits a payment lifecycle event. Publish failures are
// logged and never fail the request.
func (h *PaymentHandler) publishEvent(ctx context.Context, eventType string, order *domain.PaymentOrder) {
	if h.kafkaPublisher == nil {
		return
	}
	err := h.kafkaPublisher.PublishPaymentEvent(ctx, kafka.PaymentEvent{
		EventType:     eventType,
		OrderID:       order.ID,
		OutOrderNo:    order.OutOrderNo,
		TransactionID: order.TransactionID,
		AmountCents:   order.Amount.ToCents(),
		State:         order.State.String(),
	})
	if err != nil {
		logger.Error(ctx).
			Err(err).
			Str("event_type", eventType).
			Str("out_order_no", order.OutOrderNo).
			Msg("Failed to publish payment event")
	}
}

// RegisterRoutes registers all payment routes.
func (h *PaymentHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/payments", h.CreatePayment).Methods("POST")
	router.HandleFunc("/api/payments/{out_order_no}", h.GetPayment).Methods("GET")
	router.HandleFunc("/api/webhooks/wechat", h.WechatWebhook).Methods("POST")

	admin := AdminMiddleware(h.adminSecret)
	router.HandleFunc("/api/payments/{out_order_no}/close", admin(h.ClosePayment)).Methods("POST")
	router.HandleFunc("/api/payments/{id}", admin(h.DeletePayment)).Methods("DELETE")
}

// RegisterHealthCheck registers the health endpoint.
func (h *PaymentHandler) RegisterHealthCheck(router *mux.Router, db *sql.DB) {
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.Ping(); err != nil {
				respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")
}

// statusForError maps the domain taxonomy onto HTTP: client-caused
// errors are 4xx, gateway errors 502, everything else 500.
func statusForError(err error) int {
	var (
		validationErr    *domain.ValidationError
		invalidAmountErr *domain.InvalidAmountError
		notFoundErr      *domain.OrderNotFoundError
		invalidStateErr  *domain.InvalidStateError
		gatewayErr       *domain.GatewayError
		storageErr       *domain.StorageError
	)
	switch {
	// Storage corruption can wrap a validation error from token
	// decoding; it is a server fault and must never map to 4xx.
	case errors.As(err, &storageErr):
		return http.StatusInternalServerError
	case errors.As(err, &validationErr), errors.As(err, &invalidAmountErr):
		return http.StatusBadRequest
	case errors.As(err, &notFoundErr):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicateOrder),
		errors.As(err, &invalidStateErr),
		errors.Is(err, domain.ErrStaleOrder):
		return http.StatusConflict
	case errors.Is(err, domain.ErrSignatureVerification):
		return http.StatusUnauthorized
	case errors.As(err, &gatewayErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondError(w http.ResponseWriter, code string, err error) {
	respondJSON(w, statusForError(err), errorResponse{Error: code, Message: err.Error()})
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
