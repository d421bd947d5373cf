package wechat

import (
	"os"

	"github.com/oryjk/payment-service/internal/payment/domain"
)

// Config is the merchant credential bundle. It is built once at startup
// and shared read-only by every signing call site.
type Config struct {
	// MchID is the merchant number.
	MchID string
	// SerialNo is the serial of the merchant API certificate whose key
	// signs outbound requests.
	SerialNo string
	// AppID identifies the mini program / official account.
	AppID string
	// PrivateKeyPEM is the PKCS#8 merchant API private key.
	PrivateKeyPEM string
	// APIv3Key is the 32-byte key that seals notification resources.
	APIv3Key string
	// PlatformCertPEM is the WeChat Pay platform certificate (or its
	// bare public key) used to verify responses and notifications.
	PlatformCertPEM string
	// BaseURL is the API origin, https://api.mch.weixin.qq.com in
	// production.
	BaseURL string
	// NotifyURL receives asynchronous payment notifications.
	NotifyURL string
}

// ConfigFromEnv loads the merchant configuration from the environment.
func ConfigFromEnv() (*Config, error) {
	cfg := &Config{
		MchID:           os.Getenv("WECHAT_MCHID"),
		SerialNo:        os.Getenv("WECHAT_SERIAL_NO"),
		AppID:           os.Getenv("WECHAT_APPID"),
		PrivateKeyPEM:   os.Getenv("WECHAT_PRIVATE_KEY"),
		APIv3Key:        os.Getenv("WECHAT_API_V3_KEY"),
		PlatformCertPEM: os.Getenv("WECHAT_PLATFORM_CERT"),
		BaseURL:         os.Getenv("WECHAT_BASE_URL"),
		NotifyURL:       os.Getenv("WECHAT_NOTIFY_URL"),
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.mch.weixin.qq.com"
	}
	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	switch {
	case c.MchID == "":
		return &domain.ConfigurationError{Msg: "WECHAT_MCHID must be set"}
	case c.SerialNo == "":
		return &domain.ConfigurationError{Msg: "WECHAT_SERIAL_NO must be set"}
	case c.AppID == "":
		return &domain.ConfigurationError{Msg: "WECHAT_APPID must be set"}
	case c.PrivateKeyPEM == "":
		return &domain.ConfigurationError{Msg: "WECHAT_PRIVATE_KEY must be set"}
	case len(c.APIv3Key) != 32:
		return &domain.ConfigurationError{Msg: "WECHAT_API_V3_KEY must be exactly 32 bytes"}
	case c.PlatformCertPEM == "":
		return &domain.ConfigurationError{Msg: "WECHAT_PLATFORM_CERT must be set"}
	}
	return nil
}
