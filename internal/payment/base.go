package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/TienDattttt/shoppi-sub007/internal/logger"
)

const defaultCallTimeout = 30 * time.Second

// Outbound throttle per gateway. Gateways rate-limit merchants; staying
// under their ceiling here avoids burning calls on 429s.
const (
	limitOutbound = rate.Limit(50)
	burstOutbound = 100
)

// baseAdapter carries the plumbing every gateway adapter shares: a bounded,
// rate-limited HTTP client and a provider-tagged logger. Adapters hold only
// read-only configuration after construction, so concurrent use needs no
// locking.
type baseAdapter struct {
	name    string
	log     *zap.Logger
	client  *http.Client
	limiter *rate.Limiter
	timeout time.Duration
}

func newBaseAdapter(name string) baseAdapter {
	return baseAdapter{
		name:    name,
		log:     logger.Provider(name),
		client:  &http.Client{},
		limiter: rate.NewLimiter(limitOutbound, burstOutbound),
		timeout: defaultCallTimeout,
	}
}

// postJSON executes a JSON POST against the gateway under the per-call
// deadline and returns the raw response body. Deadline expiry surfaces as
// TIMEOUT; this layer never retries (retry policy belongs to the caller).
func (b *baseAdapter) postJSON(ctx context.Context, endpoint string, body interface{}) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, wrapErr(KindProviderError, b.name, "encode request", err)
	}
	return b.post(ctx, endpoint, "application/json", payload)
}

// postForm executes a form-encoded POST, for gateways whose endpoints do not
// accept JSON bodies.
func (b *baseAdapter) postForm(ctx context.Context, endpoint string, form url.Values) ([]byte, error) {
	return b.post(ctx, endpoint, "application/x-www-form-urlencoded", []byte(form.Encode()))
}

func (b *baseAdapter) post(ctx context.Context, endpoint, contentType string, payload []byte) ([]byte, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, b.transportErr(err)
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, wrapErr(KindProviderError, b.name, "build request", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, b.transportErr(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, b.transportErr(err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		b.log.Error("gateway returned non-success status",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("response", raw),
		)
		return nil, providerErr(b.name, "", fmt.Sprintf("gateway returned HTTP %d", resp.StatusCode))
	}
	return raw, nil
}

// transportErr classifies a transport fault. A local deadline expiry is
// TIMEOUT and means "unknown", not "failed": the gateway may still complete
// the payment, and GetStatus or the eventual callback resolves it.
func (b *baseAdapter) transportErr(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return wrapErr(KindTimeout, b.name, "gateway call timed out", err)
	}
	return wrapErr(KindProviderError, b.name, "gateway call failed", err)
}

// errNotConfigured is returned by every operation of an adapter whose
// credentials were absent at construction, instead of attempting a doomed
// network call.
func (b *baseAdapter) errNotConfigured() *Error {
	return providerErr(b.name, strings.ToUpper(b.name)+"_NOT_CONFIGURED",
		"gateway credentials are not configured")
}

// validateOrder rejects malformed input before any network attempt.
func validateOrder(o Order) error {
	if o.ID == "" {
		return validationErr("order id is required")
	}
	if o.Amount <= 0 {
		return validationErr("order amount must be positive, got %d", o.Amount)
	}
	return nil
}

// newRequestID builds a gateway request id from a high-resolution timestamp
// and a random suffix, unique per call.
func newRequestID() string {
	return fmt.Sprintf("%d-%s", time.Now().UnixNano(), uuid.NewString()[:8])
}

// gatewayOrderID derives the gateway-facing order reference. Gateways require
// global uniqueness across retries, so the raw order id is never sent alone.
func gatewayOrderID(orderID string) string {
	return fmt.Sprintf("%s_%d", orderID, time.Now().UnixMilli())
}

// splitGatewayOrderID recovers the internal order id by stripping the
// trailing _<digits> attempt suffix. Only an all-digit final segment is
// stripped, so internal ids containing underscores survive intact.
func splitGatewayOrderID(gwOrderID string) string {
	i := strings.LastIndex(gwOrderID, "_")
	if i <= 0 || i == len(gwOrderID)-1 {
		return gwOrderID
	}
	for _, r := range gwOrderID[i+1:] {
		if r < '0' || r > '9' {
			return gwOrderID
		}
	}
	return gwOrderID[:i]
}

// newRefundReference builds a fresh refund reference so retried refund calls
// stay distinguishable in gateway dashboards.
func newRefundReference(paymentID string) string {
	return fmt.Sprintf("%s_rf_%d_%s", paymentID, time.Now().UnixMilli(), uuid.NewString()[:8])
}

// roundAmount normalizes an amount to the nearest integer unit before
// transmission, rounding half away from zero.
func roundAmount(amount float64) int64 {
	return int64(math.Round(amount))
}

// payloadString reads a callback field as a string regardless of how the
// gateway's JSON encoded it. Numbers are formatted without an exponent so
// signature strings match what the gateway signed.
func payloadString(payload map[string]interface{}, key string) string {
	switch v := payload[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// payloadInt64 reads a callback field as an integer amount, accepting both
// JSON numbers and numeric strings.
func payloadInt64(payload map[string]interface{}, key string) int64 {
	switch v := payload[key].(type) {
	case float64:
		return roundAmount(v)
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0
		}
		return n
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

// decodeResponse parses a gateway reply into a map so adapters can share the
// payload helpers between callback and status-query paths.
func (b *baseAdapter) decodeResponse(raw []byte) (map[string]interface{}, error) {
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		b.log.Error("failed decoding gateway response", zap.Error(err), zap.ByteString("response", raw))
		return nil, wrapErr(KindProviderError, b.name, "malformed gateway response", err)
	}
	return m, nil
}
