package config

import (
	"os"

	"github.com/joho/godotenv"
)

// MoMoConfig holds the credentials and endpoints for the MoMo wallet gateway.
type MoMoConfig struct {
	PartnerCode string
	AccessKey   string
	SecretKey   string
	Endpoint    string
	RedirectURL string
	IPNURL      string
}

// VNPayConfig holds the credentials and endpoints for the VNPay gateway.
// PayURL is the hosted payment page; APIURL is the merchant query/refund API.
type VNPayConfig struct {
	TmnCode    string
	HashSecret string
	PayURL     string
	APIURL     string
	ReturnURL  string
}

// ZaloPayConfig holds the credentials and endpoints for the ZaloPay gateway.
// Key1 signs outbound requests, Key2 authenticates inbound callbacks.
type ZaloPayConfig struct {
	AppID       string
	Key1        string
	Key2        string
	Endpoint    string
	CallbackURL string
}

type Config struct {
	AppEnv  string
	MoMo    MoMoConfig
	VNPay   VNPayConfig
	ZaloPay ZaloPayConfig
}

// LoadConfig reads gateway settings from the environment (after loading .env
// if present). Missing credentials are not fatal: a deployment may enable only
// a subset of gateways, and each adapter reports its own unconfigured state.
func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		AppEnv: os.Getenv("APP_ENV"),
		MoMo: MoMoConfig{
			PartnerCode: os.Getenv("MOMO_PARTNER_CODE"),
			AccessKey:   os.Getenv("MOMO_ACCESS_KEY"),
			SecretKey:   os.Getenv("MOMO_SECRET_KEY"),
			Endpoint:    getEnv("MOMO_ENDPOINT", "https://test-payment.momo.vn"),
			RedirectURL: os.Getenv("MOMO_REDIRECT_URL"),
			IPNURL:      os.Getenv("MOMO_IPN_URL"),
		},
		VNPay: VNPayConfig{
			TmnCode:    os.Getenv("VNPAY_TMN_CODE"),
			HashSecret: os.Getenv("VNPAY_HASH_SECRET"),
			PayURL:     getEnv("VNPAY_PAY_URL", "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html"),
			APIURL:     getEnv("VNPAY_API_URL", "https://sandbox.vnpayment.vn/merchant_webapi/api/transaction"),
			ReturnURL:  os.Getenv("VNPAY_RETURN_URL"),
		},
		ZaloPay: ZaloPayConfig{
			AppID:       os.Getenv("ZALOPAY_APP_ID"),
			Key1:        os.Getenv("ZALOPAY_KEY1"),
			Key2:        os.Getenv("ZALOPAY_KEY2"),
			Endpoint:    getEnv("ZALOPAY_ENDPOINT", "https://sb-openapi.zalopay.vn/v2"),
			CallbackURL: os.Getenv("ZALOPAY_CALLBACK_URL"),
		},
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
