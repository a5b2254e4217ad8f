package webhook

import (
	"context"

	"go.uber.org/zap"

	"github.com/TienDattttt/shoppi-sub007/internal/logger"
	"github.com/TienDattttt/shoppi-sub007/internal/payment"
)

// Dispatcher routes an inbound gateway notification to the right adapter and
// hands the caller one normalized PaymentResult shape. It holds no per-order
// state: a callback may legally arrive before the caller has persisted the
// session, and reconciling that race is the caller's job.
type Dispatcher struct {
	registry *payment.Registry
}

func NewDispatcher(registry *payment.Registry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// Dispatch verifies and processes a raw callback payload for the named
// provider. An unknown provider fails with INVALID_PROVIDER before any
// payload data is touched; a signature mismatch stops processing before any
// business field is interpreted.
func (d *Dispatcher) Dispatch(ctx context.Context, providerName string, rawPayload map[string]interface{}) (*payment.PaymentResult, error) {
	log := logger.FromCtx(ctx).With(zap.String("provider", providerName))

	gateway, err := d.registry.Get(providerName)
	if err != nil {
		log.Warn("callback for unknown provider")
		return nil, err
	}

	if err := gateway.VerifySignature(rawPayload); err != nil {
		log.Warn("callback rejected", zap.Error(err))
		return nil, err
	}

	result, err := gateway.ProcessCallback(ctx, rawPayload)
	if err != nil {
		log.Error("callback processing failed", zap.Error(err))
		return nil, err
	}

	log.Info("callback dispatched",
		zap.String("payment_id", result.PaymentID),
		zap.String("status", string(result.Status)),
		zap.Bool("success", result.Success),
	)
	return result, nil
}
