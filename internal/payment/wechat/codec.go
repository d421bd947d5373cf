package wechat

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"errors"
	"unicode/utf8"

	"github.com/oryjk/payment-service/internal/payment/domain"
)

// DecryptNotification opens an AEAD-sealed notification resource with
// AES-256-GCM. The associated data is authenticated together with the
// ciphertext; tampering with either fails the auth tag. Every failure
// is a non-retryable CryptoError and the caller must reject the
// delivery rather than guess its content.
func DecryptNotification(apiV3Key, ciphertextB64, associatedData, nonce string) ([]byte, error) {
	block, err := aes.NewCipher([]byte(apiV3Key))
	if err != nil {
		return nil, &domain.CryptoError{Op: "aes init", Err: err}
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, &domain.CryptoError{Op: "gcm init", Err: err}
	}

	if len(nonce) != gcm.NonceSize() {
		return nil, &domain.CryptoError{Op: "aead decrypt", Err: errors.New("bad nonce length")}
	}

	ciphertext, err := base64.StdEncoding.DecodeString(ciphertextB64)
	if err != nil {
		return nil, &domain.CryptoError{Op: "base64 decode", Err: err}
	}

	plaintext, err := gcm.Open(nil, []byte(nonce), ciphertext, []byte(associatedData))
	if err != nil {
		return nil, &domain.CryptoError{Op: "aead decrypt", Err: err}
	}

	if !utf8.Valid(plaintext) {
		return nil, &domain.CryptoError{Op: "aead decrypt", Err: errors.New("plaintext is not valid UTF-8")}
	}
	return plaintext, nil
}
