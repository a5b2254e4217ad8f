package webhook

import "github.com/TienDattttt/shoppi-sub007/internal/payment"

// Acknowledgement builds the body each gateway expects in answer to its
// callback, from the outcome of Dispatch. Gateways retry callbacks that are
// not acknowledged in their own dialect, so the caller should return this
// verbatim. err is the error Dispatch returned, or nil on success.
func Acknowledgement(providerName string, err error) map[string]interface{} {
	switch providerName {
	case "momo":
		// MoMo treats any 2xx as acknowledged; an empty body is fine.
		return map[string]interface{}{}
	case "vnpay":
		code, message := "00", "Confirm Success"
		switch payment.KindOf(err) {
		case "":
		case payment.KindSignatureInvalid:
			code, message = "97", "Invalid Checksum"
		case payment.KindPaymentNotFound:
			code, message = "01", "Order Not Found"
		case payment.KindInvalidProvider:
			code, message = "99", "Unknown Error"
		default:
			code, message = "99", "Unknown Error"
		}
		return map[string]interface{}{"RspCode": code, "Message": message}
	case "zalopay":
		returnCode, message := 1, "success"
		switch payment.KindOf(err) {
		case "":
		case payment.KindSignatureInvalid:
			returnCode, message = -1, "mac not equal"
		default:
			// Anything transient: ZaloPay retries on 0.
			returnCode, message = 0, "retry later"
		}
		return map[string]interface{}{"return_code": returnCode, "return_message": message}
	default:
		return map[string]interface{}{"acknowledged": err == nil}
	}
}
