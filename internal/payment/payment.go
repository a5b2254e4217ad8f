package payment

import (
	"context"
	"sort"

	"github.com/TienDattttt/shoppi-sub007/internal/config"
)

// Gateway is the contract every payment provider adapter implements. All
// operations are stateless; adapters carry only read-only credentials, so a
// single instance serves any number of concurrent orders.
type Gateway interface {
	Name() string

	// CreatePayment opens a checkout session at the gateway for the order.
	CreatePayment(ctx context.Context, order Order, opts CreateOptions) (*PaymentSession, error)

	// VerifySignature authenticates an inbound callback payload. It must be
	// called (and pass) before any business field of the payload is trusted.
	VerifySignature(payload map[string]interface{}) error

	// ProcessCallback verifies and normalizes an asynchronous gateway
	// notification. Safe to run before the caller has persisted the session:
	// no local state is assumed.
	ProcessCallback(ctx context.Context, payload map[string]interface{}) (*PaymentResult, error)

	// GetStatus queries the gateway synchronously, for missed or delayed
	// callbacks. Applies the same native-code mapping as ProcessCallback.
	GetStatus(ctx context.Context, paymentID, gatewayOrderID string) (*PaymentResult, error)

	// Refund issues a signed refund request with a fresh unique reference.
	Refund(ctx context.Context, req RefundRequest) (*RefundResult, error)
}

// UnimplementedGateway fails loudly on every operation. Embedding it while a
// new adapter is under construction turns a missing method into an immediate,
// unmistakable failure instead of a silent no-op.
type UnimplementedGateway struct{}

func (UnimplementedGateway) Name() string {
	panic("payment: Name not implemented")
}

func (UnimplementedGateway) CreatePayment(context.Context, Order, CreateOptions) (*PaymentSession, error) {
	panic("payment: CreatePayment not implemented")
}

func (UnimplementedGateway) VerifySignature(map[string]interface{}) error {
	panic("payment: VerifySignature not implemented")
}

func (UnimplementedGateway) ProcessCallback(context.Context, map[string]interface{}) (*PaymentResult, error) {
	panic("payment: ProcessCallback not implemented")
}

func (UnimplementedGateway) GetStatus(context.Context, string, string) (*PaymentResult, error) {
	panic("payment: GetStatus not implemented")
}

func (UnimplementedGateway) Refund(context.Context, RefundRequest) (*RefundResult, error) {
	panic("payment: Refund not implemented")
}

// Registry maps provider names to adapters. The provider set is closed and
// small; registration happens once during startup and the map is read-only
// afterwards, so lookups need no locking.
type Registry struct {
	gateways map[string]Gateway
}

func NewRegistry() *Registry {
	return &Registry{gateways: make(map[string]Gateway)}
}

// NewDefaultRegistry wires the three supported gateways from configuration.
// Unconfigured gateways still register; they report their state per call.
func NewDefaultRegistry(cfg *config.Config) *Registry {
	r := NewRegistry()
	r.Register(NewMoMoGateway(cfg.MoMo))
	r.Register(NewVNPayGateway(cfg.VNPay))
	r.Register(NewZaloPayGateway(cfg.ZaloPay))
	return r
}

func (r *Registry) Register(g Gateway) {
	r.gateways[g.Name()] = g
}

// Get returns the adapter for name, or an INVALID_PROVIDER error.
func (r *Registry) Get(name string) (Gateway, error) {
	g, ok := r.gateways[name]
	if !ok {
		return nil, invalidProviderErr(name)
	}
	return g, nil
}

// Names lists the registered providers in stable order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.gateways))
	for name := range r.gateways {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
