package wechat

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/oryjk/payment-service/internal/payment/domain"
)

// Verifier checks gateway responses and webhook deliveries against the
// WeChat Pay platform certificate. Nothing a notification says is
// trusted until its signature checks out.
type Verifier struct {
	pub *rsa.PublicKey
}

// NewVerifier accepts the platform certificate as a CERTIFICATE PEM
// block or a bare PUBLIC KEY PEM block.
func NewVerifier(certPEM string) (*Verifier, error) {
	pub, err := parsePublicKey(certPEM)
	if err != nil {
		return nil, &domain.CryptoError{Op: "load platform certificate", Err: err}
	}
	return &Verifier{pub: pub}, nil
}

func parsePublicKey(pemData string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, errors.New("no PEM block found")
	}

	switch block.Type {
	case "CERTIFICATE":
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse certificate: %w", err)
		}
		pub, ok := cert.PublicKey.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("certificate key is not RSA: %T", cert.PublicKey)
		}
		return pub, nil
	case "PUBLIC KEY":
		parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse public key: %w", err)
		}
		pub, ok := parsed.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("not an RSA public key: %T", parsed)
		}
		return pub, nil
	default:
		return nil, fmt.Errorf("unexpected PEM block type %q", block.Type)
	}
}

// Verify checks signatureB64 over the canonical notification message
// timestamp\nnonce\nbody\n. Returns ErrSignatureVerification on any
// mismatch so the caller rejects the delivery.
func (v *Verifier) Verify(timestamp, nonce, body, signatureB64 string) error {
	sig, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil {
		return domain.ErrSignatureVerification
	}

	message := timestamp + "\n" + nonce + "\n" + body + "\n"
	digest := sha256.Sum256([]byte(message))

	if err := rsa.VerifyPKCS1v15(v.pub, crypto.SHA256, digest[:], sig); err != nil {
		return domain.ErrSignatureVerification
	}
	return nil
}
