package payment

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/TienDattttt/shoppi-sub007/internal/config"
)

const (
	momoCreatePath = "/v2/gateway/api/create"
	momoQueryPath  = "/v2/gateway/api/query"
	momoRefundPath = "/v2/gateway/api/refund"

	momoRequestType = "captureWallet"
)

// momoGateway integrates the MoMo wallet. Requests are signed with
// HMAC-SHA256 over a canonical key=value string whose field order is fixed by
// MoMo's documentation and is NOT alphabetical everywhere, so the strings
// below are spelled out field by field.
type momoGateway struct {
	baseAdapter
	partnerCode string
	accessKey   string
	secretKey   string
	endpoint    string
	redirectURL string
	ipnURL      string
}

// ----------------- Constructor -----------------

func NewMoMoGateway(cfg config.MoMoConfig) Gateway {
	g := &momoGateway{
		baseAdapter: newBaseAdapter("momo"),
		partnerCode: cfg.PartnerCode,
		accessKey:   cfg.AccessKey,
		secretKey:   cfg.SecretKey,
		endpoint:    cfg.Endpoint,
		redirectURL: cfg.RedirectURL,
		ipnURL:      cfg.IPNURL,
	}
	if !g.configured() {
		g.log.Warn("MoMo credentials missing, gateway disabled until configured")
	}
	return g
}

func (m *momoGateway) configured() bool {
	return m.partnerCode != "" && m.accessKey != "" && m.secretKey != ""
}

func (m *momoGateway) Name() string { return "momo" }

// ----------------- CreatePayment -----------------

func (m *momoGateway) CreatePayment(ctx context.Context, order Order, opts CreateOptions) (*PaymentSession, error) {
	if err := validateOrder(order); err != nil {
		return nil, err
	}
	if !m.configured() {
		return nil, m.errNotConfigured()
	}

	requestID := newRequestID()
	gwOrderID := gatewayOrderID(order.ID)
	amount := strconv.FormatInt(order.Amount, 10)
	orderInfo := order.Description
	if orderInfo == "" {
		orderInfo = "Payment for order " + order.OrderNumber
	}
	redirectURL := opts.ReturnURL
	if redirectURL == "" {
		redirectURL = m.redirectURL
	}
	ipnURL := opts.NotifyURL
	if ipnURL == "" {
		ipnURL = m.ipnURL
	}
	extraData := ""

	// Field order mandated by MoMo's create API; the signature is computed
	// over this exact string.
	rawSignature := "accessKey=" + m.accessKey +
		"&amount=" + amount +
		"&extraData=" + extraData +
		"&ipnUrl=" + ipnURL +
		"&orderId=" + gwOrderID +
		"&orderInfo=" + orderInfo +
		"&partnerCode=" + m.partnerCode +
		"&redirectUrl=" + redirectURL +
		"&requestId=" + requestID +
		"&requestType=" + momoRequestType
	signature := HMACSHA256Hex(m.secretKey, rawSignature)

	log := m.log.With(
		zap.String("order_id", order.ID),
		zap.String("gateway_order_id", gwOrderID),
		zap.String("request_id", requestID),
		zap.Int64("amount", order.Amount),
	)

	body := map[string]interface{}{
		"partnerCode": m.partnerCode,
		"accessKey":   m.accessKey,
		"requestId":   requestID,
		"amount":      amount,
		"orderId":     gwOrderID,
		"orderInfo":   orderInfo,
		"redirectUrl": redirectURL,
		"ipnUrl":      ipnURL,
		"extraData":   extraData,
		"requestType": momoRequestType,
		"signature":   signature,
		"lang":        "vi",
	}

	log.Info("creating MoMo payment")

	raw, err := m.postJSON(ctx, m.endpoint+momoCreatePath, body)
	if err != nil {
		log.Error("MoMo create request failed", zap.Error(err))
		return nil, err
	}

	resp, err := m.decodeResponse(raw)
	if err != nil {
		return nil, err
	}

	resultCode := int(payloadInt64(resp, "resultCode"))
	if resultCode != 0 {
		log.Error("MoMo rejected payment creation",
			zap.Int("result_code", resultCode),
			zap.String("message", payloadString(resp, "message")),
		)
		return nil, providerErr("momo", momoCode(resultCode), payloadString(resp, "message"))
	}

	log.Info("MoMo payment created", zap.String("pay_url", payloadString(resp, "payUrl")))

	return &PaymentSession{
		PaymentID:      order.ID,
		GatewayOrderID: gwOrderID,
		PayURL:         payloadString(resp, "payUrl"),
		Deeplink:       payloadString(resp, "deeplink"),
		QRCodeURL:      payloadString(resp, "qrCodeUrl"),
		Provider:       m.Name(),
		Amount:         order.Amount,
		Status:         StatusPending,
		ExpiresAt:      time.Now().Add(SessionLifetime),
		RawResponse:    resp,
	}, nil
}

// ----------------- VerifySignature -----------------

func (m *momoGateway) VerifySignature(payload map[string]interface{}) error {
	if !m.configured() {
		return m.errNotConfigured()
	}

	signature := payloadString(payload, "signature")
	if signature == "" {
		return signatureErr("momo", "callback carries no signature")
	}

	// IPN field order per MoMo's callback documentation; the signature field
	// itself is excluded.
	rawSignature := "accessKey=" + m.accessKey +
		"&amount=" + payloadString(payload, "amount") +
		"&extraData=" + payloadString(payload, "extraData") +
		"&message=" + payloadString(payload, "message") +
		"&orderId=" + payloadString(payload, "orderId") +
		"&orderInfo=" + payloadString(payload, "orderInfo") +
		"&orderType=" + payloadString(payload, "orderType") +
		"&partnerCode=" + payloadString(payload, "partnerCode") +
		"&payType=" + payloadString(payload, "payType") +
		"&requestId=" + payloadString(payload, "requestId") +
		"&responseTime=" + payloadString(payload, "responseTime") +
		"&resultCode=" + payloadString(payload, "resultCode") +
		"&transId=" + payloadString(payload, "transId")

	if !signaturesEqual(HMACSHA256Hex(m.secretKey, rawSignature), signature) {
		m.log.Warn("MoMo callback signature mismatch",
			zap.String("order_id", payloadString(payload, "orderId")),
		)
		return signatureErr("momo", "callback signature mismatch")
	}
	return nil
}

// ----------------- ProcessCallback -----------------

func (m *momoGateway) ProcessCallback(ctx context.Context, payload map[string]interface{}) (*PaymentResult, error) {
	if err := m.VerifySignature(payload); err != nil {
		return nil, err
	}

	resultCode := int(payloadInt64(payload, "resultCode"))
	status := momoStatus(resultCode)
	paymentID := splitGatewayOrderID(payloadString(payload, "orderId"))

	result := &PaymentResult{
		Success:       status == StatusPaid,
		PaymentID:     paymentID,
		TransactionID: payloadString(payload, "transId"),
		Amount:        payloadInt64(payload, "amount"),
		Status:        status,
		RawData:       payload,
	}
	if !result.Success {
		result.ErrorCode = momoCode(resultCode)
		result.ErrorMessage = payloadString(payload, "message")
	}

	m.log.Info("MoMo callback processed",
		zap.String("payment_id", paymentID),
		zap.String("status", string(status)),
		zap.Int("result_code", resultCode),
	)
	return result, nil
}

// ----------------- GetStatus -----------------

func (m *momoGateway) GetStatus(ctx context.Context, paymentID, gwOrderID string) (*PaymentResult, error) {
	if !m.configured() {
		return nil, m.errNotConfigured()
	}

	requestID := newRequestID()
	rawSignature := "accessKey=" + m.accessKey +
		"&orderId=" + gwOrderID +
		"&partnerCode=" + m.partnerCode +
		"&requestId=" + requestID

	body := map[string]interface{}{
		"partnerCode": m.partnerCode,
		"accessKey":   m.accessKey,
		"requestId":   requestID,
		"orderId":     gwOrderID,
		"signature":   HMACSHA256Hex(m.secretKey, rawSignature),
		"lang":        "vi",
	}

	raw, err := m.postJSON(ctx, m.endpoint+momoQueryPath, body)
	if err != nil {
		m.log.Error("MoMo status query failed", zap.String("payment_id", paymentID), zap.Error(err))
		return nil, err
	}

	resp, err := m.decodeResponse(raw)
	if err != nil {
		return nil, err
	}

	// Same code mapping as the callback path, so the two never disagree
	// about the meaning of a native code.
	resultCode := int(payloadInt64(resp, "resultCode"))
	status := momoStatus(resultCode)

	result := &PaymentResult{
		Success:       status == StatusPaid,
		PaymentID:     paymentID,
		TransactionID: payloadString(resp, "transId"),
		Amount:        payloadInt64(resp, "amount"),
		Status:        status,
		RawData:       resp,
	}
	if !result.Success {
		result.ErrorCode = momoCode(resultCode)
		result.ErrorMessage = payloadString(resp, "message")
	}
	return result, nil
}

// ----------------- Refund -----------------

func (m *momoGateway) Refund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	if req.TransactionID == "" {
		return nil, validationErr("refund requires the original MoMo transaction id")
	}
	if req.Amount <= 0 {
		return nil, validationErr("refund amount must be positive, got %d", req.Amount)
	}
	if !m.configured() {
		return nil, m.errNotConfigured()
	}

	requestID := newRequestID()
	refundOrderID := newRefundReference(req.PaymentID)
	amount := strconv.FormatInt(req.Amount, 10)

	rawSignature := "accessKey=" + m.accessKey +
		"&amount=" + amount +
		"&description=" + req.Reason +
		"&orderId=" + refundOrderID +
		"&partnerCode=" + m.partnerCode +
		"&requestId=" + requestID +
		"&transId=" + req.TransactionID

	body := map[string]interface{}{
		"partnerCode": m.partnerCode,
		"accessKey":   m.accessKey,
		"requestId":   requestID,
		"orderId":     refundOrderID,
		"amount":      amount,
		"transId":     req.TransactionID,
		"description": req.Reason,
		"signature":   HMACSHA256Hex(m.secretKey, rawSignature),
		"lang":        "vi",
	}

	log := m.log.With(
		zap.String("payment_id", req.PaymentID),
		zap.String("refund_id", refundOrderID),
		zap.Int64("amount", req.Amount),
	)
	log.Info("requesting MoMo refund")

	raw, err := m.postJSON(ctx, m.endpoint+momoRefundPath, body)
	if err != nil {
		log.Error("MoMo refund request failed", zap.Error(err))
		return nil, err
	}

	resp, err := m.decodeResponse(raw)
	if err != nil {
		return nil, err
	}

	resultCode := int(payloadInt64(resp, "resultCode"))
	if resultCode != 0 {
		log.Warn("MoMo declined refund",
			zap.Int("result_code", resultCode),
			zap.String("message", payloadString(resp, "message")),
		)
		return &RefundResult{
			Success:      false,
			RefundID:     refundOrderID,
			Amount:       req.Amount,
			Status:       RefundFailed,
			ErrorCode:    momoCode(resultCode),
			ErrorMessage: payloadString(resp, "message"),
		}, nil
	}

	log.Info("MoMo refund completed")
	return &RefundResult{
		Success:  true,
		RefundID: refundOrderID,
		Amount:   req.Amount,
		Status:   RefundCompleted,
	}, nil
}

// momoCode prefixes a native MoMo result code for diagnostics.
func momoCode(code int) string {
	return fmt.Sprintf("MOMO_%d", code)
}

// momoStatus maps MoMo result codes onto the shared vocabulary.
func momoStatus(code int) Status {
	switch code {
	case 0:
		return StatusPaid
	case 9000:
		// authorized, capture still in flight
		return StatusProcessing
	case 1000, 7000, 7002:
		return StatusPending
	case 1006:
		return StatusCancelled
	default:
		return StatusFailed
	}
}
