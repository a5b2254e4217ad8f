package payment

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVNPay() *vnpayGateway {
	return NewVNPayGateway(testConfig().VNPay).(*vnpayGateway)
}

// vnpaySecureHash recomputes the secure hash over a callback payload the way
// the gateway does: drop the hash fields, sort, encode, digest.
func vnpaySecureHash(secret string, p map[string]interface{}) string {
	params := make(map[string]string, len(p))
	for key := range p {
		if key == "vnp_SecureHash" || key == "vnp_SecureHashType" {
			continue
		}
		params[key] = payloadString(p, key)
	}
	return SHA512Hex(secret + sortedQuery(params))
}

func vnpayCallbackPayload(secret string) map[string]interface{} {
	payload := map[string]interface{}{
		"vnp_TmnCode":           "VNPTEST",
		"vnp_TxnRef":            "o2_1700000000000",
		"vnp_Amount":            "5000000",
		"vnp_OrderInfo":         "Payment for order SO-2",
		"vnp_ResponseCode":      "00",
		"vnp_TransactionStatus": "00",
		"vnp_TransactionNo":     "14422574",
		"vnp_BankCode":          "NCB",
		"vnp_PayDate":           "20231114153022",
	}
	payload["vnp_SecureHash"] = vnpaySecureHash(secret, payload)
	return payload
}

func TestVNPayGateway_CreatePayment(t *testing.T) {
	order := Order{ID: "o2", OrderNumber: "SO-2", Amount: 50000, Currency: "VND", Description: "Order SO-2"}

	t.Run("Success_NoNetworkCall", func(t *testing.T) {
		gw := newTestVNPay()
		transport := &countingTransport{fn: func(req *http.Request) *http.Response {
			return jsonResponse(http.StatusOK, `{}`)
		}}
		gw.client.Transport = transport

		session, err := gw.CreatePayment(context.Background(), order, CreateOptions{ClientIP: "203.0.113.9"})
		require.NoError(t, err)

		// Redirect gateway: the session is a signed URL, no call happens.
		assert.Equal(t, 0, transport.calls)
		assert.Equal(t, "o2", session.PaymentID)
		assert.Regexp(t, `^o2_\d+$`, session.GatewayOrderID)
		assert.Equal(t, StatusPending, session.Status)
		assert.Equal(t, int64(50000), session.Amount)
		assert.WithinDuration(t, time.Now().Add(SessionLifetime), session.ExpiresAt, 5*time.Second)

		parsed, err := url.Parse(session.PayURL)
		require.NoError(t, err)
		query := parsed.Query()

		// Amount travels x100 on the VNPay wire.
		assert.Equal(t, "5000000", query.Get("vnp_Amount"))
		assert.Equal(t, "VND", query.Get("vnp_CurrCode"))
		assert.Equal(t, "VNPTEST", query.Get("vnp_TmnCode"))
		assert.Equal(t, "pay", query.Get("vnp_Command"))
		assert.Equal(t, "203.0.113.9", query.Get("vnp_IpAddr"))
		assert.Equal(t, session.GatewayOrderID, query.Get("vnp_TxnRef"))

		// Recompute the hash over the sorted, encoded, non-hash parameters.
		params := make(map[string]string)
		for key := range query {
			if key == "vnp_SecureHash" || key == "vnp_SecureHashType" {
				continue
			}
			params[key] = query.Get(key)
		}
		assert.Equal(t, SHA512Hex("vnpay-secret"+sortedQuery(params)), query.Get("vnp_SecureHash"))
	})

	t.Run("ValidationError", func(t *testing.T) {
		gw := newTestVNPay()
		_, err := gw.CreatePayment(context.Background(), Order{ID: "", Amount: 50000}, CreateOptions{})
		assert.Equal(t, KindValidation, KindOf(err))

		_, err = gw.CreatePayment(context.Background(), Order{ID: "o2", Amount: -1}, CreateOptions{})
		assert.Equal(t, KindValidation, KindOf(err))
	})

	t.Run("NotConfigured", func(t *testing.T) {
		cfg := testConfig().VNPay
		cfg.HashSecret = ""
		gw := NewVNPayGateway(cfg).(*vnpayGateway)

		_, err := gw.CreatePayment(context.Background(), order, CreateOptions{})
		require.Error(t, err)
		pe, _ := As(err)
		assert.Equal(t, "VNPAY_NOT_CONFIGURED", pe.Code)
	})
}

func TestVNPayGateway_VerifySignature(t *testing.T) {
	gw := newTestVNPay()

	t.Run("Valid", func(t *testing.T) {
		assert.NoError(t, gw.VerifySignature(vnpayCallbackPayload("vnpay-secret")))
	})

	t.Run("TamperedField", func(t *testing.T) {
		payload := vnpayCallbackPayload("vnpay-secret")
		payload["vnp_Amount"] = "5000001"
		assert.Equal(t, KindSignatureInvalid, KindOf(gw.VerifySignature(payload)))
	})

	t.Run("WrongSecret", func(t *testing.T) {
		payload := vnpayCallbackPayload("other-secret")
		assert.Equal(t, KindSignatureInvalid, KindOf(gw.VerifySignature(payload)))
	})

	t.Run("MissingHash", func(t *testing.T) {
		payload := vnpayCallbackPayload("vnpay-secret")
		delete(payload, "vnp_SecureHash")
		assert.Equal(t, KindSignatureInvalid, KindOf(gw.VerifySignature(payload)))
	})
}

func TestVNPayGateway_ProcessCallback(t *testing.T) {
	gw := newTestVNPay()

	t.Run("Paid", func(t *testing.T) {
		result, err := gw.ProcessCallback(context.Background(), vnpayCallbackPayload("vnpay-secret"))
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, StatusPaid, result.Status)
		assert.Equal(t, "o2", result.PaymentID)
		// Amount normalized back to the caller's unit.
		assert.Equal(t, int64(50000), result.Amount)
		assert.Equal(t, "14422574", result.TransactionID)
	})

	t.Run("BothCodesRequired", func(t *testing.T) {
		payload := vnpayCallbackPayload("vnpay-secret")
		payload["vnp_TransactionStatus"] = "02"
		payload["vnp_SecureHash"] = vnpaySecureHash("vnpay-secret", payload)

		result, err := gw.ProcessCallback(context.Background(), payload)
		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.Equal(t, StatusFailed, result.Status)
		assert.Equal(t, "VNPAY_02", result.ErrorCode)
	})

	t.Run("CancelledByUser", func(t *testing.T) {
		payload := vnpayCallbackPayload("vnpay-secret")
		payload["vnp_ResponseCode"] = "24"
		payload["vnp_TransactionStatus"] = "02"
		payload["vnp_SecureHash"] = vnpaySecureHash("vnpay-secret", payload)

		result, err := gw.ProcessCallback(context.Background(), payload)
		require.NoError(t, err)
		assert.Equal(t, StatusCancelled, result.Status)
		assert.Equal(t, "VNPAY_24", result.ErrorCode)
	})

	t.Run("BadSignature", func(t *testing.T) {
		payload := vnpayCallbackPayload("vnpay-secret")
		payload["vnp_SecureHash"] = "forged"

		result, err := gw.ProcessCallback(context.Background(), payload)
		assert.Nil(t, result)
		assert.Equal(t, KindSignatureInvalid, KindOf(err))
	})
}

func TestVNPayGateway_GetStatus(t *testing.T) {
	t.Run("Paid", func(t *testing.T) {
		gw := newTestVNPay()
		gw.client.Transport = MockRoundTripper(func(req *http.Request) *http.Response {
			assert.Equal(t, "https://sandbox.vnpayment.vn/merchant_webapi/api/transaction", req.URL.String())

			body, _ := io.ReadAll(req.Body)
			var sent map[string]interface{}
			require.NoError(t, json.Unmarshal(body, &sent))
			assert.Equal(t, "querydr", payloadString(sent, "vnp_Command"))
			assert.NotEmpty(t, payloadString(sent, "vnp_SecureHash"))

			return jsonResponse(http.StatusOK, `{
				"vnp_ResponseCode": "00",
				"vnp_TransactionStatus": "00",
				"vnp_Amount": "5000000",
				"vnp_TransactionNo": "14422574",
				"vnp_Message": "Success"
			}`)
		})

		result, err := gw.GetStatus(context.Background(), "o2", "o2_1700000000000")
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, StatusPaid, result.Status)
		assert.Equal(t, int64(50000), result.Amount)
	})

	t.Run("NotFound", func(t *testing.T) {
		gw := newTestVNPay()
		gw.client.Transport = MockRoundTripper(func(req *http.Request) *http.Response {
			return jsonResponse(http.StatusOK, `{"vnp_ResponseCode": "91", "vnp_Message": "Not found"}`)
		})

		_, err := gw.GetStatus(context.Background(), "o2", "o2_1700000000000")
		assert.Equal(t, KindPaymentNotFound, KindOf(err))
	})

	t.Run("StillPending", func(t *testing.T) {
		gw := newTestVNPay()
		gw.client.Transport = MockRoundTripper(func(req *http.Request) *http.Response {
			return jsonResponse(http.StatusOK, `{
				"vnp_ResponseCode": "00",
				"vnp_TransactionStatus": "01",
				"vnp_Amount": "5000000"
			}`)
		})

		result, err := gw.GetStatus(context.Background(), "o2", "o2_1700000000000")
		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.Equal(t, StatusPending, result.Status)
	})
}

func TestVNPayGateway_Refund(t *testing.T) {
	refund := RefundRequest{PaymentID: "o2_1700000000000", TransactionID: "14422574", Amount: 50000, Reason: "order cancelled"}

	t.Run("Success", func(t *testing.T) {
		gw := newTestVNPay()
		gw.client.Transport = MockRoundTripper(func(req *http.Request) *http.Response {
			body, _ := io.ReadAll(req.Body)
			var sent map[string]interface{}
			require.NoError(t, json.Unmarshal(body, &sent))
			assert.Equal(t, "refund", payloadString(sent, "vnp_Command"))
			// x100 on the wire for refunds too
			assert.Equal(t, "5000000", payloadString(sent, "vnp_Amount"))

			return jsonResponse(http.StatusOK, `{"vnp_ResponseCode": "00", "vnp_Message": "Refund success"}`)
		})

		result, err := gw.Refund(context.Background(), refund)
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, RefundCompleted, result.Status)
		assert.Equal(t, int64(50000), result.Amount)
		assert.NotEmpty(t, result.RefundID)
	})

	t.Run("Declined", func(t *testing.T) {
		gw := newTestVNPay()
		gw.client.Transport = MockRoundTripper(func(req *http.Request) *http.Response {
			return jsonResponse(http.StatusOK, `{"vnp_ResponseCode": "94", "vnp_Message": "Duplicate refund request"}`)
		})

		result, err := gw.Refund(context.Background(), refund)
		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.Equal(t, RefundFailed, result.Status)
		assert.Equal(t, "VNPAY_94", result.ErrorCode)
	})

	t.Run("ValidationError", func(t *testing.T) {
		gw := newTestVNPay()
		_, err := gw.Refund(context.Background(), RefundRequest{PaymentID: "o2", Amount: 50000})
		assert.Equal(t, KindValidation, KindOf(err))
	})
}

func TestVNPayStatusMapping(t *testing.T) {
	// The callback and query paths share this table, so the two can never
	// disagree about the meaning of a native code pair.
	assert.Equal(t, StatusPaid, vnpayStatus("00", "00"))
	assert.Equal(t, StatusPending, vnpayStatus("00", "01"))
	assert.Equal(t, StatusProcessing, vnpayStatus("00", "05"))
	assert.Equal(t, StatusCancelled, vnpayStatus("24", "02"))
	assert.Equal(t, StatusFailed, vnpayStatus("00", "02"))
	assert.Equal(t, StatusFailed, vnpayStatus("99", "00"))
}
