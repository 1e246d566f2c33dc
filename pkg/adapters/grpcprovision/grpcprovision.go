// Package grpcprovision is a gRPC-backed pkg/coordinator.Provisioner.
// Provision/Revoke invoke the target system's RPC methods directly via
// conn.Invoke with google.golang.org/protobuf's structpb.Struct as the
// wire payload, since there is no generated client stub for these methods.
package grpcprovision

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ocx/grc-core/internal/apperrors"
	"github.com/ocx/grc-core/internal/resilience"
	"github.com/ocx/grc-core/pkg/workflow"
)

const (
	provisionMethod = "/ocx.grc.v1.Provisioning/Provision"
	revokeMethod    = "/ocx.grc.v1.Provisioning/Revoke"
)

// Config tunes the connection to the provisioning system.
type Config struct {
	Addr    string
	Timeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}
}

// Client is a Provisioner backed by a remote provisioning service reached
// over gRPC. Every RPC runs through a circuit breaker tuned for a
// provisioning boundary (internal/resilience.provisionerConfig): a short
// run of consecutive failures trips it, since a flapping provisioner risks
// leaving approved access half-applied.
type Client struct {
	conn    *grpc.ClientConn
	breaker *resilience.Breaker
	timeout time.Duration
}

// New dials the provisioning service. Uses insecure transport credentials
// for intra-cluster calls — production deployments terminate mTLS at the
// mesh sidecar. breakers may be nil, in which case the client builds its
// own single-collaborator breaker set.
func New(cfg Config, breakers *resilience.CollaboratorBreakers) (*Client, error) {
	cfg.applyDefaults()

	conn, err := grpc.NewClient(cfg.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.TransientExternal, "failed to connect to provisioning service at %s", cfg.Addr)
	}
	if breakers == nil {
		breakers = resilience.NewCollaboratorBreakers()
	}
	return &Client{conn: conn, breaker: breakers.Provisioner, timeout: cfg.Timeout}, nil
}

func (c *Client) Close() error { return c.conn.Close() }

func itemsToStruct(requestID string, items []workflow.RequestedAccess) (*structpb.Struct, error) {
	list := make([]interface{}, len(items))
	for i, it := range items {
		list[i] = map[string]interface{}{
			"system":      it.System,
			"access_name": it.AccessName,
			"access_type": it.AccessType,
		}
	}
	return structpb.NewStruct(map[string]interface{}{
		"request_id": requestID,
		"items":      list,
	})
}

// Provision calls the remote provisioning service's Provision method
// through the provisioner breaker. A connection or RPC-level failure is
// reported as TransientExternal so pkg/coordinator retries it; an open
// breaker short-circuits straight to the same TransientExternal kind
// without spending another RPC timeout. A nil error means the remote
// system accepted the request.
func (c *Client) Provision(ctx context.Context, requestID string, items []workflow.RequestedAccess) error {
	req, err := itemsToStruct(requestID, items)
	if err != nil {
		return apperrors.Wrap(err, apperrors.Fatal, "failed to encode provisioning payload")
	}

	_, err = resilience.ExecuteWithFallback(c.breaker,
		func() (struct{}, error) { return struct{}{}, c.invoke(ctx, provisionMethod, req) },
		func(err error) (struct{}, error) { return struct{}{}, err },
	)
	if err != nil {
		return apperrors.Wrapf(err, apperrors.TransientExternal, "provisioning RPC failed for request %s", requestID)
	}
	return nil
}

// Revoke calls the remote provisioning service's Revoke method through the
// same provisioner breaker as Provision — a revoke failing mid-incident is
// exactly the flapping behavior that breaker is tuned to catch fast.
func (c *Client) Revoke(ctx context.Context, requestID string) error {
	req, err := structpb.NewStruct(map[string]interface{}{"request_id": requestID})
	if err != nil {
		return apperrors.Wrap(err, apperrors.Fatal, "failed to encode revoke payload")
	}

	_, err = resilience.ExecuteWithFallback(c.breaker,
		func() (struct{}, error) { return struct{}{}, c.invoke(ctx, revokeMethod, req) },
		func(err error) (struct{}, error) { return struct{}{}, err },
	)
	if err != nil {
		return apperrors.Wrapf(err, apperrors.TransientExternal, "revoke RPC failed for request %s", requestID)
	}
	return nil
}

func (c *Client) invoke(ctx context.Context, method string, req *structpb.Struct) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	resp := &structpb.Struct{}
	return c.conn.Invoke(ctx, method, req, resp)
}
