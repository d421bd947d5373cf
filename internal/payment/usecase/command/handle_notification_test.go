package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oryjk/payment-service/internal/payment/domain"
)

func pendingOrder(t *testing.T, repo *fakeRepo, outOrderNo string) *domain.PaymentOrder {
	t.Helper()
	order, err := domain.NewPaymentOrder(outOrderNo, domain.FromCents(1000), domain.MethodMiniProgram, "会员充值", "203.0.113.7", "openid-1", "")
	require.NoError(t, err)
	repo.put(order)
	return order
}

func TestNotificationMarksOrderSucceeded(t *testing.T) {
	repo := newFakeRepo()
	pendingOrder(t, repo, "T1")
	gateway := &fakeGateway{plaintext: successPlaintext("T1", "tx-1")}
	h := NewNotificationHandler(repo, gateway)

	result, err := h.Handle(context.Background(), NotificationCommand{
		NotificationID: "evt-1",
		EventType:      EventTypeTransactionSuccess,
		Resource:       EncryptedResource{Ciphertext: "sealed", Nonce: "nonce1234567"},
	})
	require.NoError(t, err)

	assert.True(t, result.Transitioned)
	assert.Equal(t, "T1", result.OutOrderNo)
	assert.Equal(t, "tx-1", result.TransactionID)
	require.NotNil(t, result.Order)
	assert.Equal(t, domain.StateSucceeded, result.Order.State)
	require.NotNil(t, result.Order.PaidAt)

	stored, err := repo.FindByOutOrderNo(context.Background(), "T1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateSucceeded, stored.State)
	assert.Equal(t, "tx-1", stored.TransactionID)
}

func TestNotificationRedeliveryIsNoOp(t *testing.T) {
	repo := newFakeRepo()
	order := pendingOrder(t, repo, "T1")
	require.NoError(t, order.MarkSucceeded("tx-1"))
	repo.put(order)

	h := NewNotificationHandler(repo, &fakeGateway{plaintext: successPlaintext("T1", "tx-1")})

	result, err := h.Handle(context.Background(), NotificationCommand{
		EventType: EventTypeTransactionSuccess,
		Resource:  EncryptedResource{Ciphertext: "sealed"},
	})
	require.NoError(t, err)
	assert.False(t, result.Transitioned)
	assert.Zero(t, repo.updateCalls)
}

func TestNotificationConflictingTransactionID(t *testing.T) {
	repo := newFakeRepo()
	order := pendingOrder(t, repo, "T1")
	require.NoError(t, order.MarkSucceeded("tx-1"))
	repo.put(order)

	h := NewNotificationHandler(repo, &fakeGateway{plaintext: successPlaintext("T1", "tx-other")})

	_, err := h.Handle(context.Background(), NotificationCommand{
		EventType: EventTypeTransactionSuccess,
		Resource:  EncryptedResource{Ciphertext: "sealed"},
	})
	var stateErr *domain.InvalidStateError
	assert.ErrorAs(t, err, &stateErr)
}

func TestNotificationIgnoresOtherEventTypes(t *testing.T) {
	repo := newFakeRepo()
	pendingOrder(t, repo, "T1")
	h := NewNotificationHandler(repo, &fakeGateway{plaintext: successPlaintext("T1", "tx-1")})

	result, err := h.Handle(context.Background(), NotificationCommand{
		EventType: "REFUND.SUCCESS",
		Resource:  EncryptedResource{Ciphertext: "sealed"},
	})
	require.NoError(t, err)
	assert.False(t, result.Transitioned)

	stored, err := repo.FindByOutOrderNo(context.Background(), "T1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatePending, stored.State)
}

func TestNotificationMissingFields(t *testing.T) {
	tests := []struct {
		name      string
		plaintext []byte
	}{
		{"missing out_trade_no", []byte(`{"transaction_id":"tx-1"}`)},
		{"missing transaction_id", []byte(`{"out_trade_no":"T1"}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeRepo()
			pendingOrder(t, repo, "T1")
			h := NewNotificationHandler(repo, &fakeGateway{plaintext: tt.plaintext})

			_, err := h.Handle(context.Background(), NotificationCommand{
				EventType: EventTypeTransactionSuccess,
				Resource:  EncryptedResource{Ciphertext: "sealed"},
			})
			var vErr *domain.ValidationError
			assert.ErrorAs(t, err, &vErr)
		})
	}
}

func TestNotificationMalformedPlaintext(t *testing.T) {
	repo := newFakeRepo()
	h := NewNotificationHandler(repo, &fakeGateway{plaintext: []byte("{not json")})

	_, err := h.Handle(context.Background(), NotificationCommand{
		EventType: EventTypeTransactionSuccess,
		Resource:  EncryptedResource{Ciphertext: "sealed"},
	})
	var serErr *domain.SerializationError
	assert.ErrorAs(t, err, &serErr)
}

func TestNotificationDecryptFailure(t *testing.T) {
	repo := newFakeRepo()
	h := NewNotificationHandler(repo, &fakeGateway{decryptErr: &domain.CryptoError{Op: "aead decrypt"}})

	_, err := h.Handle(context.Background(), NotificationCommand{
		EventType: EventTypeTransactionSuccess,
		Resource:  EncryptedResource{Ciphertext: "sealed"},
	})
	var cryptoErr *domain.CryptoError
	assert.ErrorAs(t, err, &cryptoErr)
}

func TestNotificationUnknownOrder(t *testing.T) {
	repo := newFakeRepo()
	h := NewNotificationHandler(repo, &fakeGateway{plaintext: successPlaintext("T404", "tx-1")})

	_, err := h.Handle(context.Background(), NotificationCommand{
		EventType: EventTypeTransactionSuccess,
		Resource:  EncryptedResource{Ciphertext: "sealed"},
	})
	var notFound *domain.OrderNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestNotificationRetriesOnceOnStaleUpdate(t *testing.T) {
	repo := newFakeRepo()
	pendingOrder(t, repo, "T1")
	repo.staleOnce = true

	h := NewNotificationHandler(repo, &fakeGateway{plaintext: successPlaintext("T1", "tx-1")})

	result, err := h.Handle(context.Background(), NotificationCommand{
		EventType: EventTypeTransactionSuccess,
		Resource:  EncryptedResource{Ciphertext: "sealed"},
	})
	require.NoError(t, err)
	assert.True(t, result.Transitioned)
	assert.Equal(t, 2, repo.updateCalls)

	stored, err := repo.FindByOutOrderNo(context.Background(), "T1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateSucceeded, stored.State)
}
