package wechat

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/oryjk/payment-service/internal/payment/domain"
)

// authScheme is the fixed token for WeChat Pay v3 authorization headers.
const authScheme = "WECHATPAY2-SHA256-RSA2048"

// Signer computes RSA-SHA256 signatures over canonical messages: the
// per-request authorization header and the client-side mini-program
// payment parameters. The private key is parsed once at construction
// and shared across goroutines.
type Signer struct {
	mchID    string
	serialNo string
	appID    string
	key      *rsa.PrivateKey
}

// NewSigner parses the PKCS#8 merchant private key. A key that does not
// parse is a fatal CryptoError, never retried.
func NewSigner(mchID, serialNo, appID, privateKeyPEM string) (*Signer, error) {
	key, err := parsePrivateKey(privateKeyPEM)
	if err != nil {
		return nil, &domain.CryptoError{Op: "load private key", Err: err}
	}
	return &Signer{mchID: mchID, serialNo: serialNo, appID: appID, key: key}, nil
}

func parsePrivateKey(pemData string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, errors.New("no PEM block found")
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse PKCS#8 key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("not an RSA key: %T", parsed)
	}
	return key, nil
}

// canonicalMessage joins the five request fields with single newlines
// and a trailing newline, in fixed order. Body is the exact raw request
// payload, empty for GET.
func canonicalMessage(method, urlPath, timestamp, nonce, body string) string {
	return method + "\n" + urlPath + "\n" + timestamp + "\n" + nonce + "\n" + body + "\n"
}

// Sign produces a base64 PKCS#1 v1.5 RSA signature over the SHA-256
// digest of message.
func (s *Signer) Sign(message string) (string, error) {
	digest := sha256.Sum256([]byte(message))
	sig, err := rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA256, digest[:])
	if err != nil {
		return "", &domain.CryptoError{Op: "rsa sign", Err: err}
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// AuthorizationHeader assembles the v3 header for one request. The
// timestamp and nonce are fresh per call; headers must never be cached
// across requests.
func (s *Signer) AuthorizationHeader(method, urlPath, body string) (string, error) {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	nonce := uuid.NewString()

	signature, err := s.Sign(canonicalMessage(method, urlPath, timestamp, nonce, body))
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(
		`%s mchid="%s",nonce_str="%s",timestamp="%s",serial_no="%s",signature="%s"`,
		authScheme, s.mchID, nonce, timestamp, s.serialNo, signature,
	), nil
}

// PayParams signs the mini-program payment sheet parameters for a
// prepay id. The canonical form is appid, timestamp, nonce and package
// followed by a trailing empty field, mirroring the request canon.
func (s *Signer) PayParams(prepayID string) (*domain.MiniProgramPayParams, error) {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	nonce := strings.ReplaceAll(uuid.NewString(), "-", "")
	pkg := "prepay_id=" + prepayID

	message := s.appID + "\n" + timestamp + "\n" + nonce + "\n" + pkg + "\n"
	paySign, err := s.Sign(message)
	if err != nil {
		return nil, err
	}

	return &domain.MiniProgramPayParams{
		TimeStamp: timestamp,
		NonceStr:  nonce,
		Package:   pkg,
		SignType:  "RSA",
		PaySign:   paySign,
	}, nil
}
