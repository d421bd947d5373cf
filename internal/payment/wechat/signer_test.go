package wechat

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oryjk/payment-service/internal/payment/domain"
)

// testKeyPair generates an RSA key and returns it with the PEM encodings
// the signer and verifier consume.
func testKeyPair(t *testing.T) (*rsa.PrivateKey, string, string) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	privPEM := string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER}))

	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pubPEM := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}))

	return key, privPEM, pubPEM
}

func TestNewSignerRejectsBadKey(t *testing.T) {
	_, err := NewSigner("1900000001", "serial-1", "wxabc", "not a pem")
	var cryptoErr *domain.CryptoError
	assert.ErrorAs(t, err, &cryptoErr)
}

func TestCanonicalMessage(t *testing.T) {
	msg := canonicalMessage("POST", "/v3/pay/transactions/jsapi", "1756512000", "nonce1", `{"a":1}`)
	assert.Equal(t, "POST\n/v3/pay/transactions/jsapi\n1756512000\nnonce1\n{\"a\":1}\n", msg)

	// Empty body still carries its trailing newline.
	get := canonicalMessage("GET", "/v3/pay/transactions/out-trade-no/T1?mchid=1900000001", "1756512000", "nonce1", "")
	assert.True(t, strings.HasSuffix(get, "\n\n"))
}

func TestSignVerifiesWithPublicKey(t *testing.T) {
	key, privPEM, _ := testKeyPair(t)
	signer, err := NewSigner("1900000001", "serial-1", "wxabc", privPEM)
	require.NoError(t, err)

	message := "GET\n/v3/pay/transactions/out-trade-no/T1?mchid=1900000001\n1756512000\nnonce1\n\n"
	sigB64, err := signer.Sign(message)
	require.NoError(t, err)

	sig, err := base64.StdEncoding.DecodeString(sigB64)
	require.NoError(t, err)

	digest := sha256.Sum256([]byte(message))
	assert.NoError(t, rsa.VerifyPKCS1v15(&key.PublicKey, crypto.SHA256, digest[:], sig))
}

func TestAuthorizationHeader(t *testing.T) {
	_, privPEM, _ := testKeyPair(t)
	signer, err := NewSigner("1900000001", "serial-1", "wxabc", privPEM)
	require.NoError(t, err)

	header, err := signer.AuthorizationHeader("POST", "/v3/pay/transactions/jsapi", `{"amount":{"total":1000}}`)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(header, "WECHATPAY2-SHA256-RSA2048 "))
	assert.Contains(t, header, `mchid="1900000001"`)
	assert.Contains(t, header, `serial_no="serial-1"`)
	assert.Contains(t, header, `nonce_str="`)
	assert.Contains(t, header, `timestamp="`)
	assert.Contains(t, header, `signature="`)
}

func TestAuthorizationHeaderFreshPerCall(t *testing.T) {
	_, privPEM, _ := testKeyPair(t)
	signer, err := NewSigner("1900000001", "serial-1", "wxabc", privPEM)
	require.NoError(t, err)

	h1, err := signer.AuthorizationHeader("GET", "/v3/pay/transactions/out-trade-no/T1", "")
	require.NoError(t, err)
	h2, err := signer.AuthorizationHeader("GET", "/v3/pay/transactions/out-trade-no/T1", "")
	require.NoError(t, err)

	// The nonce differs each call, so identical requests never share headers.
	assert.NotEqual(t, h1, h2)
}

func TestPayParams(t *testing.T) {
	key, privPEM, _ := testKeyPair(t)
	signer, err := NewSigner("1900000001", "serial-1", "wxabc", privPEM)
	require.NoError(t, err)

	params, err := signer.PayParams("pp_1")
	require.NoError(t, err)

	assert.Equal(t, "prepay_id=pp_1", params.Package)
	assert.Equal(t, "RSA", params.SignType)
	assert.Len(t, params.NonceStr, 32)
	assert.NotContains(t, params.NonceStr, "-")

	// The pay sign covers appid, timestamp, nonce and package.
	message := "wxabc\n" + params.TimeStamp + "\n" + params.NonceStr + "\n" + params.Package + "\n"
	sig, err := base64.StdEncoding.DecodeString(params.PaySign)
	require.NoError(t, err)
	digest := sha256.Sum256([]byte(message))
	assert.NoError(t, rsa.VerifyPKCS1v15(&key.PublicKey, crypto.SHA256, digest[:], sig))
}

func TestVerifierRoundTrip(t *testing.T) {
	_, privPEM, pubPEM := testKeyPair(t)
	signer, err := NewSigner("1900000001", "serial-1", "wxabc", privPEM)
	require.NoError(t, err)
	verifier, err := NewVerifier(pubPEM)
	require.NoError(t, err)

	body := `{"id":"evt-1","event_type":"TRANSACTION.SUCCESS"}`
	sig, err := signer.Sign("1756512000\nnonce1\n" + body + "\n")
	require.NoError(t, err)

	assert.NoError(t, verifier.Verify("1756512000", "nonce1", body, sig))

	tests := []struct {
		name      string
		timestamp string
		nonce     string
		body      string
		sig       string
	}{
		{"tampered body", "1756512000", "nonce1", body + " ", sig},
		{"wrong timestamp", "1756512001", "nonce1", body, sig},
		{"wrong nonce", "1756512000", "nonce2", body, sig},
		{"garbage signature", "1756512000", "nonce1", body, "%%%not-base64%%%"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := verifier.Verify(tt.timestamp, tt.nonce, tt.body, tt.sig)
			assert.ErrorIs(t, err, domain.ErrSignatureVerification)
		})
	}
}

func TestNewVerifierRejectsBadPEM(t *testing.T) {
	_, err := NewVerifier("not a pem")
	var cryptoErr *domain.CryptoError
	assert.ErrorAs(t, err, &cryptoErr)
}
