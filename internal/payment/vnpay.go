package payment

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/TienDattttt/shoppi-sub007/internal/config"
)

const (
	vnpayVersion    = "2.1.0"
	vnpayDateLayout = "20060102150405"
)

// vnpayGateway integrates VNPay, a redirect gateway: session creation builds
// a signed hosted-payment URL with no network call, and the result arrives on
// the return/IPN channel. VNPay transmits amounts multiplied by 100; that
// conversion lives entirely inside this adapter.
type vnpayGateway struct {
	baseAdapter
	tmnCode    string
	hashSecret string
	payURL     string
	apiURL     string
	returnURL  string
	loc        *time.Location
}

func NewVNPayGateway(cfg config.VNPayConfig) Gateway {
	g := &vnpayGateway{
		baseAdapter: newBaseAdapter("vnpay"),
		tmnCode:     cfg.TmnCode,
		hashSecret:  cfg.HashSecret,
		payURL:      cfg.PayURL,
		apiURL:      cfg.APIURL,
		returnURL:   cfg.ReturnURL,
	}
	loc, err := time.LoadLocation("Asia/Ho_Chi_Minh")
	if err != nil {
		g.log.Error("failed to load Ho Chi Minh location, defaulting to UTC", zap.Error(err))
		loc = time.UTC
	}
	g.loc = loc
	if !g.configured() {
		g.log.Warn("VNPay credentials missing, gateway disabled until configured")
	}
	return g
}

func (v *vnpayGateway) configured() bool {
	return v.tmnCode != "" && v.hashSecret != ""
}

func (v *vnpayGateway) Name() string { return "vnpay" }

// sign computes the VNPay secure hash: SHA-512 over the secret prepended to
// the canonical query.
func (v *vnpayGateway) sign(query string) string {
	return SHA512Hex(v.hashSecret + query)
}

func (v *vnpayGateway) CreatePayment(ctx context.Context, order Order, opts CreateOptions) (*PaymentSession, error) {
	if err := validateOrder(order); err != nil {
		return nil, err
	}
	if !v.configured() {
		return nil, v.errNotConfigured()
	}

	gwOrderID := gatewayOrderID(order.ID)
	now := time.Now().In(v.loc)
	orderInfo := order.Description
	if orderInfo == "" {
		orderInfo = "Payment for order " + order.OrderNumber
	}
	returnURL := opts.ReturnURL
	if returnURL == "" {
		returnURL = v.returnURL
	}
	locale := opts.Locale
	if locale == "" {
		locale = "vn"
	}
	clientIP := opts.ClientIP
	if clientIP == "" {
		clientIP = "127.0.0.1"
	}
	currency := order.Currency
	if currency == "" {
		currency = "VND"
	}

	params := map[string]string{
		"vnp_Version":    vnpayVersion,
		"vnp_Command":    "pay",
		"vnp_TmnCode":    v.tmnCode,
		"vnp_Amount":     strconv.FormatInt(order.Amount*100, 10),
		"vnp_CurrCode":   currency,
		"vnp_TxnRef":     gwOrderID,
		"vnp_OrderInfo":  orderInfo,
		"vnp_OrderType":  "other",
		"vnp_Locale":     locale,
		"vnp_ReturnUrl":  returnURL,
		"vnp_IpAddr":     clientIP,
		"vnp_BankCode":   opts.BankCode,
		"vnp_CreateDate": now.Format(vnpayDateLayout),
		"vnp_ExpireDate": now.Add(SessionLifetime).Format(vnpayDateLayout),
	}

	query := sortedQuery(params)
	secureHash := v.sign(query)
	payURL := v.payURL + "?" + query + "&vnp_SecureHashType=SHA512&vnp_SecureHash=" + secureHash

	v.log.Info("VNPay payment URL built",
		zap.String("order_id", order.ID),
		zap.String("gateway_order_id", gwOrderID),
		zap.Int64("amount", order.Amount),
	)

	rawResponse := make(map[string]interface{}, len(params)+1)
	for k, val := range params {
		rawResponse[k] = val
	}
	rawResponse["vnp_SecureHash"] = secureHash

	return &PaymentSession{
		PaymentID:      order.ID,
		GatewayOrderID: gwOrderID,
		PayURL:         payURL,
		Provider:       v.Name(),
		Amount:         order.Amount,
		Status:         StatusPending,
		ExpiresAt:      time.Now().Add(SessionLifetime),
		RawResponse:    rawResponse,
	}, nil
}

func (v *vnpayGateway) VerifySignature(payload map[string]interface{}) error {
	if !v.configured() {
		return v.errNotConfigured()
	}

	secureHash := payloadString(payload, "vnp_SecureHash")
	if secureHash == "" {
		return signatureErr("vnpay", "callback carries no secure hash")
	}

	params := make(map[string]string, len(payload))
	for key := range payload {
		if key == "vnp_SecureHash" || key == "vnp_SecureHashType" {
			continue
		}
		params[key] = payloadString(payload, key)
	}

	if !signaturesEqual(v.sign(sortedQuery(params)), secureHash) {
		v.log.Warn("VNPay callback hash mismatch",
			zap.String("txn_ref", payloadString(payload, "vnp_TxnRef")),
		)
		return signatureErr("vnpay", "callback secure hash mismatch")
	}
	return nil
}

func (v *vnpayGateway) ProcessCallback(ctx context.Context, payload map[string]interface{}) (*PaymentResult, error) {
	if err := v.VerifySignature(payload); err != nil {
		return nil, err
	}

	respCode := payloadString(payload, "vnp_ResponseCode")
	txnStatus := payloadString(payload, "vnp_TransactionStatus")
	status := vnpayStatus(respCode, txnStatus)
	paymentID := splitGatewayOrderID(payloadString(payload, "vnp_TxnRef"))

	result := &PaymentResult{
		Success:       status == StatusPaid,
		PaymentID:     paymentID,
		TransactionID: payloadString(payload, "vnp_TransactionNo"),
		Amount:        payloadInt64(payload, "vnp_Amount") / 100,
		Status:        status,
		RawData:       payload,
	}
	if !result.Success {
		result.ErrorCode = vnpayCode(respCode, txnStatus)
		result.ErrorMessage = payloadString(payload, "vnp_Message")
	}

	v.log.Info("VNPay callback processed",
		zap.String("payment_id", paymentID),
		zap.String("status", string(status)),
		zap.String("response_code", respCode),
		zap.String("transaction_status", txnStatus),
	)
	return result, nil
}

func (v *vnpayGateway) GetStatus(ctx context.Context, paymentID, gwOrderID string) (*PaymentResult, error) {
	if !v.configured() {
		return nil, v.errNotConfigured()
	}

	requestID := newRequestID()
	createDate := time.Now().In(v.loc).Format(vnpayDateLayout)
	orderInfo := "Query transaction " + gwOrderID

	data := strings.Join([]string{
		requestID, vnpayVersion, "querydr", v.tmnCode, gwOrderID, createDate, "127.0.0.1", orderInfo,
	}, "|")

	body := map[string]interface{}{
		"vnp_RequestId":  requestID,
		"vnp_Version":    vnpayVersion,
		"vnp_Command":    "querydr",
		"vnp_TmnCode":    v.tmnCode,
		"vnp_TxnRef":     gwOrderID,
		"vnp_OrderInfo":  orderInfo,
		"vnp_CreateDate": createDate,
		"vnp_IpAddr":     "127.0.0.1",
		"vnp_SecureHash": v.sign(data),
	}

	raw, err := v.postJSON(ctx, v.apiURL, body)
	if err != nil {
		v.log.Error("VNPay status query failed", zap.String("payment_id", paymentID), zap.Error(err))
		return nil, err
	}

	resp, err := v.decodeResponse(raw)
	if err != nil {
		return nil, err
	}

	respCode := payloadString(resp, "vnp_ResponseCode")
	if respCode == "91" {
		return nil, notFoundErr("vnpay", vnpayCode(respCode, ""), "transaction not found at gateway")
	}

	txnStatus := payloadString(resp, "vnp_TransactionStatus")
	status := vnpayStatus(respCode, txnStatus)

	result := &PaymentResult{
		Success:       status == StatusPaid,
		PaymentID:     paymentID,
		TransactionID: payloadString(resp, "vnp_TransactionNo"),
		Amount:        payloadInt64(resp, "vnp_Amount") / 100,
		Status:        status,
		RawData:       resp,
	}
	if !result.Success {
		result.ErrorCode = vnpayCode(respCode, txnStatus)
		result.ErrorMessage = payloadString(resp, "vnp_Message")
	}
	return result, nil
}

func (v *vnpayGateway) Refund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	if req.TransactionID == "" {
		return nil, validationErr("refund requires the original VNPay transaction number")
	}
	if req.Amount <= 0 {
		return nil, validationErr("refund amount must be positive, got %d", req.Amount)
	}
	if !v.configured() {
		return nil, v.errNotConfigured()
	}

	requestID := newRequestID()
	createDate := time.Now().In(v.loc).Format(vnpayDateLayout)
	amount := strconv.FormatInt(req.Amount*100, 10)
	reason := req.Reason
	if reason == "" {
		reason = "Refund payment " + req.PaymentID
	}

	data := strings.Join([]string{
		requestID, vnpayVersion, "refund", v.tmnCode, "02", req.PaymentID, amount,
		req.TransactionID, createDate, reason,
	}, "|")

	body := map[string]interface{}{
		"vnp_RequestId":       requestID,
		"vnp_Version":         vnpayVersion,
		"vnp_Command":         "refund",
		"vnp_TmnCode":         v.tmnCode,
		"vnp_TransactionType": "02",
		"vnp_TxnRef":          req.PaymentID,
		"vnp_Amount":          amount,
		"vnp_TransactionNo":   req.TransactionID,
		"vnp_OrderInfo":       reason,
		"vnp_CreateDate":      createDate,
		"vnp_SecureHash":      v.sign(data),
	}

	log := v.log.With(
		zap.String("payment_id", req.PaymentID),
		zap.String("request_id", requestID),
		zap.Int64("amount", req.Amount),
	)
	log.Info("requesting VNPay refund")

	raw, err := v.postJSON(ctx, v.apiURL, body)
	if err != nil {
		log.Error("VNPay refund request failed", zap.Error(err))
		return nil, err
	}

	resp, err := v.decodeResponse(raw)
	if err != nil {
		return nil, err
	}

	respCode := payloadString(resp, "vnp_ResponseCode")
	if respCode != "00" {
		log.Warn("VNPay declined refund",
			zap.String("response_code", respCode),
			zap.String("message", payloadString(resp, "vnp_Message")),
		)
		return &RefundResult{
			Success:      false,
			RefundID:     requestID,
			Amount:       req.Amount,
			Status:       RefundFailed,
			ErrorCode:    vnpayCode(respCode, ""),
			ErrorMessage: payloadString(resp, "vnp_Message"),
		}, nil
	}

	log.Info("VNPay refund completed")
	return &RefundResult{
		Success:  true,
		RefundID: requestID,
		Amount:   req.Amount,
		Status:   RefundCompleted,
	}, nil
}

// sortedQuery builds the canonical VNPay query string: every non-empty
// parameter, alphabetically sorted and URL-encoded. url.Values.Encode gives
// exactly that ordering.
func sortedQuery(params map[string]string) string {
	vals := url.Values{}
	for k, v := range params {
		if v != "" {
			vals.Set(k, v)
		}
	}
	return vals.Encode()
}

// vnpayStatus maps the response-code / transaction-status pair onto the
// shared vocabulary. A payment counts as paid only when BOTH are "00".
func vnpayStatus(respCode, txnStatus string) Status {
	if respCode == "00" && txnStatus == "00" {
		return StatusPaid
	}
	if respCode == "24" {
		return StatusCancelled
	}
	if respCode == "00" || respCode == "" {
		switch txnStatus {
		case "01":
			return StatusPending
		case "04", "05", "06":
			return StatusProcessing
		}
	}
	switch respCode {
	case "01":
		return StatusPending
	}
	return StatusFailed
}

// vnpayCode prefixes the decisive native code for diagnostics. When the
// request-level code is "00" the transaction status is the one that failed.
func vnpayCode(respCode, txnStatus string) string {
	code := respCode
	if respCode == "00" && txnStatus != "" {
		code = txnStatus
	}
	return "VNPAY_" + code
}
