package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/TienDattttt/shoppi-sub007/internal/config"
)

// zalopayGateway integrates ZaloPay. Two secrets are in play: key1 signs
// outbound requests, key2 authenticates inbound callbacks. The callback mac
// covers the raw "data" string, so verification happens before that string
// is ever parsed.
type zalopayGateway struct {
	baseAdapter
	appID       int
	key1        string
	key2        string
	endpoint    string
	callbackURL string
}

func NewZaloPayGateway(cfg config.ZaloPayConfig) Gateway {
	appID, err := strconv.Atoi(cfg.AppID)
	if err != nil {
		appID = 0
	}
	g := &zalopayGateway{
		baseAdapter: newBaseAdapter("zalopay"),
		appID:       appID,
		key1:        cfg.Key1,
		key2:        cfg.Key2,
		endpoint:    cfg.Endpoint,
		callbackURL: cfg.CallbackURL,
	}
	if !g.configured() {
		g.log.Warn("ZaloPay credentials missing, gateway disabled until configured")
	}
	return g
}

func (z *zalopayGateway) configured() bool {
	return z.appID > 0 && z.key1 != "" && z.key2 != ""
}

func (z *zalopayGateway) Name() string { return "zalopay" }

// appTransID builds ZaloPay's mandated yymmdd-prefixed transaction id, with
// the attempt timestamp as uniqueness suffix.
func (z *zalopayGateway) appTransID(orderID string, now time.Time) string {
	return fmt.Sprintf("%s_%s_%d", now.Format("060102"), orderID, now.UnixMilli())
}

func (z *zalopayGateway) CreatePayment(ctx context.Context, order Order, opts CreateOptions) (*PaymentSession, error) {
	if err := validateOrder(order); err != nil {
		return nil, err
	}
	if !z.configured() {
		return nil, z.errNotConfigured()
	}

	now := time.Now()
	appTime := now.UnixMilli()
	appTransID := z.appTransID(order.ID, now)
	appUser := order.UserID
	if appUser == "" {
		appUser = "guest"
	}
	description := order.Description
	if description == "" {
		description = "Payment for order " + order.OrderNumber
	}
	bankCode := opts.BankCode
	if bankCode == "" {
		bankCode = "zalopayapp"
	}
	callbackURL := opts.NotifyURL
	if callbackURL == "" {
		callbackURL = z.callbackURL
	}

	// embed_data round-trips the internal order id through the gateway so
	// callback processing never has to guess it out of app_trans_id.
	embedData, err := json.Marshal(map[string]string{"order_id": order.ID})
	if err != nil {
		return nil, wrapErr(KindProviderError, z.Name(), "encode embed data", err)
	}
	item := "[]"

	// key1 mac over the pipe-joined create fields, in this fixed order.
	macData := fmt.Sprintf("%d|%s|%s|%d|%d|%s|%s",
		z.appID, appTransID, appUser, order.Amount, appTime, embedData, item)
	mac := HMACSHA256Hex(z.key1, macData)

	form := url.Values{}
	form.Set("app_id", strconv.Itoa(z.appID))
	form.Set("app_user", appUser)
	form.Set("app_time", strconv.FormatInt(appTime, 10))
	form.Set("amount", strconv.FormatInt(order.Amount, 10))
	form.Set("app_trans_id", appTransID)
	form.Set("embed_data", string(embedData))
	form.Set("item", item)
	form.Set("description", description)
	form.Set("bank_code", bankCode)
	form.Set("callback_url", callbackURL)
	form.Set("mac", mac)

	log := z.log.With(
		zap.String("order_id", order.ID),
		zap.String("app_trans_id", appTransID),
		zap.Int64("amount", order.Amount),
	)
	log.Info("creating ZaloPay order")

	raw, err := z.postForm(ctx, z.endpoint+"/create", form)
	if err != nil {
		log.Error("ZaloPay create request failed", zap.Error(err))
		return nil, err
	}

	resp, err := z.decodeResponse(raw)
	if err != nil {
		return nil, err
	}

	returnCode := int(payloadInt64(resp, "return_code"))
	if returnCode != 1 {
		log.Error("ZaloPay rejected order creation",
			zap.Int("return_code", returnCode),
			zap.String("message", payloadString(resp, "return_message")),
		)
		return nil, providerErr(z.Name(), zalopayCode(returnCode), payloadString(resp, "return_message"))
	}

	log.Info("ZaloPay order created", zap.String("order_url", payloadString(resp, "order_url")))

	return &PaymentSession{
		PaymentID:      order.ID,
		GatewayOrderID: appTransID,
		PayURL:         payloadString(resp, "order_url"),
		QRCodeURL:      payloadString(resp, "qr_code"),
		Provider:       z.Name(),
		Amount:         order.Amount,
		Status:         StatusPending,
		ExpiresAt:      now.Add(SessionLifetime),
		RawResponse:    resp,
	}, nil
}

// VerifySignature authenticates the callback envelope: mac must equal the
// key2 HMAC of the raw data string. The data JSON is not touched here.
func (z *zalopayGateway) VerifySignature(payload map[string]interface{}) error {
	if !z.configured() {
		return z.errNotConfigured()
	}

	data, _ := payload["data"].(string)
	mac := payloadString(payload, "mac")
	if data == "" || mac == "" {
		return signatureErr(z.Name(), "callback carries no data or mac")
	}

	if !signaturesEqual(HMACSHA256Hex(z.key2, data), mac) {
		z.log.Warn("ZaloPay callback mac mismatch")
		return signatureErr(z.Name(), "callback mac mismatch")
	}
	return nil
}

func (z *zalopayGateway) ProcessCallback(ctx context.Context, payload map[string]interface{}) (*PaymentResult, error) {
	if err := z.VerifySignature(payload); err != nil {
		return nil, err
	}

	var cb map[string]interface{}
	if err := json.Unmarshal([]byte(payload["data"].(string)), &cb); err != nil {
		return nil, wrapErr(KindProviderError, z.Name(), "malformed callback data", err)
	}

	appTransID := payloadString(cb, "app_trans_id")
	paymentID := z.recoverOrderID(cb, appTransID)

	// ZaloPay only fires the callback once the payment succeeded.
	result := &PaymentResult{
		Success:       true,
		PaymentID:     paymentID,
		TransactionID: payloadString(cb, "zp_trans_id"),
		Amount:        payloadInt64(cb, "amount"),
		Status:        StatusPaid,
		RawData:       cb,
	}

	z.log.Info("ZaloPay callback processed",
		zap.String("payment_id", paymentID),
		zap.String("app_trans_id", appTransID),
		zap.String("zp_trans_id", result.TransactionID),
	)
	return result, nil
}

// recoverOrderID prefers the explicit order id carried in embed_data and only
// falls back to slicing app_trans_id, which is ambiguous for ids containing
// underscores.
func (z *zalopayGateway) recoverOrderID(cb map[string]interface{}, appTransID string) string {
	if embedRaw := payloadString(cb, "embed_data"); embedRaw != "" {
		var embed map[string]interface{}
		if err := json.Unmarshal([]byte(embedRaw), &embed); err == nil {
			if id := payloadString(embed, "order_id"); id != "" {
				return id
			}
		}
	}
	// app_trans_id is yymmdd_{orderID}_{millis}
	trimmed := appTransID
	if len(trimmed) > 7 && trimmed[6] == '_' {
		trimmed = trimmed[7:]
	}
	return splitGatewayOrderID(trimmed)
}

func (z *zalopayGateway) GetStatus(ctx context.Context, paymentID, gwOrderID string) (*PaymentResult, error) {
	if !z.configured() {
		return nil, z.errNotConfigured()
	}

	macData := fmt.Sprintf("%d|%s|%s", z.appID, gwOrderID, z.key1)

	form := url.Values{}
	form.Set("app_id", strconv.Itoa(z.appID))
	form.Set("app_trans_id", gwOrderID)
	form.Set("mac", HMACSHA256Hex(z.key1, macData))

	raw, err := z.postForm(ctx, z.endpoint+"/query", form)
	if err != nil {
		z.log.Error("ZaloPay status query failed", zap.String("payment_id", paymentID), zap.Error(err))
		return nil, err
	}

	resp, err := z.decodeResponse(raw)
	if err != nil {
		return nil, err
	}

	returnCode := int(payloadInt64(resp, "return_code"))
	status := zalopayStatus(returnCode)

	result := &PaymentResult{
		Success:       status == StatusPaid,
		PaymentID:     paymentID,
		TransactionID: payloadString(resp, "zp_trans_id"),
		Amount:        payloadInt64(resp, "amount"),
		Status:        status,
		RawData:       resp,
	}
	if !result.Success {
		result.ErrorCode = zalopayCode(returnCode)
		result.ErrorMessage = payloadString(resp, "return_message")
	}
	return result, nil
}

func (z *zalopayGateway) Refund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	if req.TransactionID == "" {
		return nil, validationErr("refund requires the original ZaloPay transaction id")
	}
	if req.Amount <= 0 {
		return nil, validationErr("refund amount must be positive, got %d", req.Amount)
	}
	if !z.configured() {
		return nil, z.errNotConfigured()
	}

	now := time.Now()
	timestamp := now.UnixMilli()
	// m_refund_id must be unique per attempt and yymmdd_appid-prefixed.
	mRefundID := fmt.Sprintf("%s_%d_%s", now.Format("060102"), z.appID, uuid.NewString()[:8])
	reason := req.Reason
	if reason == "" {
		reason = "Refund payment " + req.PaymentID
	}

	macData := fmt.Sprintf("%d|%s|%d|%s|%d",
		z.appID, req.TransactionID, req.Amount, reason, timestamp)

	form := url.Values{}
	form.Set("app_id", strconv.Itoa(z.appID))
	form.Set("m_refund_id", mRefundID)
	form.Set("zp_trans_id", req.TransactionID)
	form.Set("amount", strconv.FormatInt(req.Amount, 10))
	form.Set("description", reason)
	form.Set("timestamp", strconv.FormatInt(timestamp, 10))
	form.Set("mac", HMACSHA256Hex(z.key1, macData))

	log := z.log.With(
		zap.String("payment_id", req.PaymentID),
		zap.String("refund_id", mRefundID),
		zap.Int64("amount", req.Amount),
	)
	log.Info("requesting ZaloPay refund")

	raw, err := z.postForm(ctx, z.endpoint+"/refund", form)
	if err != nil {
		log.Error("ZaloPay refund request failed", zap.Error(err))
		return nil, err
	}

	resp, err := z.decodeResponse(raw)
	if err != nil {
		return nil, err
	}

	returnCode := int(payloadInt64(resp, "return_code"))
	if returnCode != 1 {
		log.Warn("ZaloPay refund not completed",
			zap.Int("return_code", returnCode),
			zap.String("message", payloadString(resp, "return_message")),
		)
		return &RefundResult{
			Success:      false,
			RefundID:     mRefundID,
			Amount:       req.Amount,
			Status:       RefundFailed,
			ErrorCode:    zalopayCode(returnCode),
			ErrorMessage: payloadString(resp, "return_message"),
		}, nil
	}

	log.Info("ZaloPay refund completed")
	return &RefundResult{
		Success:  true,
		RefundID: mRefundID,
		Amount:   req.Amount,
		Status:   RefundCompleted,
	}, nil
}

func zalopayCode(code int) string {
	return fmt.Sprintf("ZALOPAY_%d", code)
}

// zalopayStatus maps query return codes: 1 settled, 3 still in flight,
// anything else failed.
func zalopayStatus(code int) Status {
	switch code {
	case 1:
		return StatusPaid
	case 3:
		return StatusProcessing
	default:
		return StatusFailed
	}
}
