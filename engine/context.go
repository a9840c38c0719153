package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/nimbusnet/rugengine/config"
	"github.com/nimbusnet/rugengine/errors"
)

const (
	apiMaxRetries     = 3
	apiInitialBackoff = 500 * time.Millisecond
	apiMaxBackoff     = 5 * time.Second
)

// apiClient is the shared shape of ComputeClient and NetworkClient: a
// rate-limited net/http client with bounded exponential-backoff retries on
// transient failures. Not safe for concurrent use by design — each worker
// goroutine (and the ingress goroutine) owns one.
type apiClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func newAPIClient(cfg config.APIConfig) *apiClient {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	rps := cfg.MaxRequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &apiClient{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// doJSON issues method/path with body JSON-encoded (if non-nil), retrying
// transient failures (connection errors and 5xx) with exponential backoff,
// and decodes a JSON response into out (if non-nil).
func (c *apiClient) doJSON(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "failed to marshal request body")
		}
	}

	backoff := apiInitialBackoff
	var lastErr error
	for attempt := 0; attempt <= apiMaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return errors.Wrap(ctx.Err(), "request cancelled while backing off")
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > apiMaxBackoff {
				backoff = apiMaxBackoff
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return errors.Wrap(err, "rate limiter wait failed")
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return errors.Wrap(err, "failed to build request")
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = errors.Wrapf(err, "request to %s failed", path)
			continue
		}

		if resp.StatusCode >= 500 {
			respBody, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			lastErr = errors.Newf("%s %s returned status %d: %s", method, path, resp.StatusCode, string(respBody))
			continue
		}

		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			respBody, _ := io.ReadAll(resp.Body)
			return errors.Newf("%s %s returned status %d: %s", method, path, resp.StatusCode, string(respBody))
		}

		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return errors.Wrapf(err, "failed to decode response from %s", path)
		}
		return nil
	}

	return errors.Wrapf(lastErr, "exhausted retries for %s %s", method, path)
}

// ComputeClient reaches the compute control plane that provisions and
// tears down router instances.
type ComputeClient struct{ *apiClient }

// NewComputeClient constructs a ComputeClient from configuration.
func NewComputeClient(cfg config.APIConfig) *ComputeClient {
	return &ComputeClient{apiClient: newAPIClient(cfg)}
}

// EnsureRouter asks the compute API to create or verify the named router
// exists, used by state machines during reconciliation.
func (c *ComputeClient) EnsureRouter(ctx context.Context, routerID uuid.UUID) error {
	return c.doJSON(ctx, http.MethodPost, "/routers/"+routerID.String()+"/ensure", nil, nil)
}

// NetworkClient reaches the network control plane that manages routing
// tables, interfaces, and tenant-to-router assignment.
type NetworkClient struct{ *apiClient }

// NewNetworkClient constructs a NetworkClient from configuration.
func NewNetworkClient(cfg config.APIConfig) *NetworkClient {
	return &NetworkClient{apiClient: newAPIClient(cfg)}
}

type defaultRouterResponse struct {
	RouterID string `json:"router_id"`
}

// LookupDefaultRouter resolves a tenant's default router id through the
// network API, used by TenantRouterCache on a cache miss.
func (c *NetworkClient) LookupDefaultRouter(ctx context.Context, tenantID uuid.UUID) (uuid.UUID, error) {
	var resp defaultRouterResponse
	if err := c.doJSON(ctx, http.MethodGet, "/tenants/"+tenantID.String()+"/default-router", nil, &resp); err != nil {
		return uuid.Nil, err
	}
	if resp.RouterID == "" {
		return uuid.Nil, nil
	}
	routerID, err := uuid.Parse(resp.RouterID)
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "network API returned an invalid router id")
	}
	return routerID, nil
}

// ApplyRouterConfig pushes desired routing configuration for a router,
// used by state machines during reconciliation.
func (c *NetworkClient) ApplyRouterConfig(ctx context.Context, routerID uuid.UUID, desired map[string]any) error {
	return c.doJSON(ctx, http.MethodPut, "/routers/"+routerID.String()+"/config", desired, nil)
}

// WorkerContext bundles the clients a single worker goroutine (or the
// ingress goroutine, for cache lookups) uses to reach external control
// planes. It is NOT thread-safe: callers must construct one per goroutine.
type WorkerContext struct {
	Compute *ComputeClient
	Network *NetworkClient
}

// NewWorkerContext builds a WorkerContext from configuration. Call once per
// worker goroutine at startup.
func NewWorkerContext(cfg *config.Config) *WorkerContext {
	return &WorkerContext{
		Compute: NewComputeClient(cfg.Compute),
		Network: NewNetworkClient(cfg.Network),
	}
}
