package wechat

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oryjk/payment-service/internal/payment/domain"
)

const testAPIv3Key = "0123456789abcdef0123456789abcdef"

func sealNotification(t *testing.T, key, plaintext, associatedData, nonce string) string {
	t.Helper()

	block, err := aes.NewCipher([]byte(key))
	require.NoError(t, err)
	gcm, err := cipher.NewGCM(block)
	require.NoError(t, err)

	sealed := gcm.Seal(nil, []byte(nonce), []byte(plaintext), []byte(associatedData))
	return base64.StdEncoding.EncodeToString(sealed)
}

func TestDecryptNotificationRoundTrip(t *testing.T) {
	plaintext := `{"out_trade_no":"T1","transaction_id":"tx-1","trade_state":"SUCCESS"}`
	ciphertext := sealNotification(t, testAPIv3Key, plaintext, "transaction", "nonce1234567")

	got, err := DecryptNotification(testAPIv3Key, ciphertext, "transaction", "nonce1234567")
	require.NoError(t, err)
	assert.Equal(t, plaintext, string(got))
}

func TestDecryptNotificationFailures(t *testing.T) {
	plaintext := `{"out_trade_no":"T1"}`
	ciphertext := sealNotification(t, testAPIv3Key, plaintext, "transaction", "nonce1234567")

	tests := []struct {
		name           string
		key            string
		ciphertext     string
		associatedData string
		nonce          string
	}{
		{
			name:           "wrong key length",
			key:            "short-key",
			ciphertext:     ciphertext,
			associatedData: "transaction",
			nonce:          "nonce1234567",
		},
		{
			name:           "tampered associated data",
			key:            testAPIv3Key,
			ciphertext:     ciphertext,
			associatedData: "refund",
			nonce:          "nonce1234567",
		},
		{
			name:           "wrong nonce",
			key:            testAPIv3Key,
			ciphertext:     ciphertext,
			associatedData: "transaction",
			nonce:          "nonce7654321",
		},
		{
			name:           "bad nonce length",
			key:            testAPIv3Key,
			ciphertext:     ciphertext,
			associatedData: "transaction",
			nonce:          "short",
		},
		{
			name:           "ciphertext not base64",
			key:            testAPIv3Key,
			ciphertext:     "%%%not-base64%%%",
			associatedData: "transaction",
			nonce:          "nonce1234567",
		},
		{
			name:           "tampered ciphertext",
			key:            testAPIv3Key,
			ciphertext:     flipFirstByte(t, ciphertext),
			associatedData: "transaction",
			nonce:          "nonce1234567",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecryptNotification(tt.key, tt.ciphertext, tt.associatedData, tt.nonce)
			var cryptoErr *domain.CryptoError
			assert.ErrorAs(t, err, &cryptoErr)
		})
	}
}

func TestDecryptNotificationEmptyAssociatedData(t *testing.T) {
	// Some notification resources carry no associated data at all.
	plaintext := `{"out_trade_no":"T2"}`
	ciphertext := sealNotification(t, testAPIv3Key, plaintext, "", "nonce1234567")

	got, err := DecryptNotification(testAPIv3Key, ciphertext, "", "nonce1234567")
	require.NoError(t, err)
	assert.Equal(t, plaintext, string(got))
}

func flipFirstByte(t *testing.T, b64 string) string {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(b64)
	require.NoError(t, err)
	raw[0] ^= 0xff
	return base64.StdEncoding.EncodeToString(raw)
}

func TestConfigValidation(t *testing.T) {
	cfg := &Config{
		MchID:           "1900000001",
		SerialNo:        "serial-1",
		AppID:           "wxabc",
		PrivateKeyPEM:   "irrelevant",
		APIv3Key:        strings.Repeat("k", 31),
		PlatformCertPEM: "irrelevant",
	}
	err := cfg.validate()
	var confErr *domain.ConfigurationError
	assert.ErrorAs(t, err, &confErr)

	cfg.APIv3Key = strings.Repeat("k", 32)
	assert.NoError(t, cfg.validate())
}
