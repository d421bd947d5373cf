package wechat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/oryjk/payment-service/internal/payment/domain"
	"github.com/oryjk/payment-service/pkg/logger"
)

var tracer = otel.Tracer("wechat-gateway")

var gatewayRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "wechat_gateway_request_duration_seconds",
		Help:    "Duration of outbound WeChat Pay API calls",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"operation"},
)

// Client implements the WechatGateway port over signed HTTPS. It holds
// the immutable merchant configuration and is safe for concurrent use.
type Client struct {
	cfg      *Config
	signer   *Signer
	verifier *Verifier
	http     *http.Client
}

// NewClient builds the gateway adapter. Key material is parsed here
// once; a bad key or certificate fails construction.
func NewClient(cfg *Config) (*Client, error) {
	signer, err := NewSigner(cfg.MchID, cfg.SerialNo, cfg.AppID, cfg.PrivateKeyPEM)
	if err != nil {
		return nil, err
	}
	verifier, err := NewVerifier(cfg.PlatformCertPEM)
	if err != nil {
		return nil, err
	}
	return &Client{
		cfg:      cfg,
		signer:   signer,
		verifier: verifier,
		http:     &http.Client{Timeout: 15 * time.Second},
	}, nil
}

type createOrderBody struct {
	AppID       string `json:"appid"`
	MchID       string `json:"mchid"`
	Description string `json:"description"`
	OutTradeNo  string `json:"out_trade_no"`
	NotifyURL   string `json:"notify_url"`
	Attach      string `json:"attach,omitempty"`
	Amount      struct {
		Total    int64  `json:"total"`
		Currency string `json:"currency"`
	} `json:"amount"`
	Payer struct {
		Openid string `json:"openid"`
	} `json:"payer"`
	SceneInfo struct {
		PayerClientIP string `json:"payer_client_ip"`
	} `json:"scene_info"`
}

// CreateOrder places a JSAPI/mini-program prepay order and returns the
// prepay id.
func (c *Client) CreateOrder(ctx context.Context, req domain.GatewayOrderRequest) (*domain.GatewayOrderResponse, error) {
	if req.Openid == "" {
		return nil, &domain.ValidationError{Msg: "openid is required for mini program payment"}
	}

	body := createOrderBody{
		AppID:       c.cfg.AppID,
		MchID:       c.cfg.MchID,
		Description: req.Description,
		OutTradeNo:  req.OutOrderNo,
		NotifyURL:   c.cfg.NotifyURL,
		Attach:      req.Attach,
	}
	body.Amount.Total = req.AmountCents
	body.Amount.Currency = "CNY"
	body.Payer.Openid = req.Openid
	body.SceneInfo.PayerClientIP = req.ClientIP

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, &domain.SerializationError{Op: "marshal create order body", Err: err}
	}

	var resp struct {
		PrepayID string `json:"prepay_id"`
	}
	if err := c.do(ctx, "create_order", http.MethodPost, "/v3/pay/transactions/jsapi", raw, &resp); err != nil {
		return nil, err
	}
	if resp.PrepayID == "" {
		return nil, &domain.GatewayError{Status: http.StatusOK, Body: "missing prepay_id in response"}
	}

	logger.Debug(ctx).
		Str("out_order_no", req.OutOrderNo).
		Msg("WeChat prepay order created")

	return &domain.GatewayOrderResponse{PrepayID: resp.PrepayID}, nil
}

// QueryOrder fetches the current trade state by merchant order number.
func (c *Client) QueryOrder(ctx context.Context, outOrderNo string) (*domain.GatewayQueryResponse, error) {
	path := fmt.Sprintf("/v3/pay/transactions/out-trade-no/%s?mchid=%s",
		url.PathEscape(outOrderNo), url.QueryEscape(c.cfg.MchID))

	var resp struct {
		TradeState     string `json:"trade_state"`
		TransactionID  string `json:"transaction_id"`
		TradeStateDesc string `json:"trade_state_desc"`
	}
	if err := c.do(ctx, "query_order", http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	if resp.TradeState == "" {
		resp.TradeState = "UNKNOWN"
	}

	return &domain.GatewayQueryResponse{
		TradeState:     resp.TradeState,
		TransactionID:  resp.TransactionID,
		TradeStateDesc: resp.TradeStateDesc,
	}, nil
}

// CloseOrder closes an unpaid order at the gateway.
func (c *Client) CloseOrder(ctx context.Context, outOrderNo string) error {
	path := fmt.Sprintf("/v3/pay/transactions/out-trade-no/%s/close", url.PathEscape(outOrderNo))

	raw, err := json.Marshal(map[string]string{"mchid": c.cfg.MchID})
	if err != nil {
		return &domain.SerializationError{Op: "marshal close order body", Err: err}
	}
	return c.do(ctx, "close_order", http.MethodPost, path, raw, nil)
}

// PayParams delegates to the signer.
func (c *Client) PayParams(prepayID string) (*domain.MiniProgramPayParams, error) {
	return c.signer.PayParams(prepayID)
}

// VerifyNotification delegates to the platform-certificate verifier.
func (c *Client) VerifyNotification(timestamp, nonce, body, signature string) error {
	return c.verifier.Verify(timestamp, nonce, body, signature)
}

// DecryptNotification opens a sealed notification resource.
func (c *Client) DecryptNotification(ciphertext, associatedData, nonce string) ([]byte, error) {
	return DecryptNotification(c.cfg.APIv3Key, ciphertext, associatedData, nonce)
}

// verifyResponse checks the Wechatpay-Timestamp/Nonce/Signature
// response headers against the platform certificate. A response with
// the headers missing is as untrusted as one with a bad signature.
func (c *Client) verifyResponse(resp *http.Response, body []byte) error {
	timestamp := resp.Header.Get("Wechatpay-Timestamp")
	nonce := resp.Header.Get("Wechatpay-Nonce")
	signature := resp.Header.Get("Wechatpay-Signature")
	if timestamp == "" || nonce == "" || signature == "" {
		return domain.ErrSignatureVerification
	}
	return c.verifier.Verify(timestamp, nonce, string(body), signature)
}

// do signs and executes one API call. urlPath includes the query string
// because the signature canon covers it. Non-2xx responses become
// GatewayError with the raw body attached for diagnosis.
func (c *Client) do(ctx context.Context, operation, method, urlPath string, body []byte, out any) error {
	ctx, span := tracer.Start(ctx, "wechat."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.target", urlPath),
		),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		gatewayRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}()

	authorization, err := c.signer.AuthorizationHeader(method, urlPath, string(body))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "signing failed")
		return err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+urlPath, reader)
	if err != nil {
		span.RecordError(err)
		return &domain.InternalError{Msg: "build gateway request", Err: err}
	}
	req.Header.Set("Authorization", authorization)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return &domain.GatewayError{Status: 0, Body: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		return &domain.GatewayError{Status: resp.StatusCode, Body: "unreadable response body"}
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		span.SetStatus(codes.Error, "non-2xx response")
		logger.Logger.Error().
			Str("operation", operation).
			Int("status", resp.StatusCode).
			Str("body", string(respBody)).
			Msg("WeChat Pay API error")
		return &domain.GatewayError{Status: resp.StatusCode, Body: string(respBody)}
	}

	// A successful response is not trusted until its platform signature
	// over the raw body checks out.
	if err := c.verifyResponse(resp, respBody); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "response signature rejected")
		logger.Logger.Error().
			Str("operation", operation).
			Int("status", resp.StatusCode).
			Msg("Rejected gateway response with bad platform signature")
		return err
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			span.RecordError(err)
			return &domain.GatewayError{Status: resp.StatusCode, Body: "malformed response body"}
		}
	}
	return nil
}
