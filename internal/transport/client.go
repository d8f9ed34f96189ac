package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/fazzatti/cacti/internal/gateway"
	"github.com/fazzatti/cacti/internal/model"
)

// GatewayClient is the interface the CLI uses to talk to a gateway's REST
// API. It is implemented by HTTPClient.
type GatewayClient interface {
	// InitiateTransfer starts a transfer. When wait is true the call blocks
	// until the transfer settles and returns the final session.
	InitiateTransfer(ctx context.Context, req *model.TransferRequest, wait bool) (*model.Session, error)
	GetSession(ctx context.Context, id string) (*model.Session, error)
	ListSessions(ctx context.Context) ([]*model.Session, error)
	GetAudit(ctx context.Context, id string) ([]*model.AuditRecord, error)
	Rollback(ctx context.Context, id, reason string) (*model.Session, error)
	Health(ctx context.Context) (string, error)

	// Lifecycle
	Close() error
}

// APIError is an error response from the gateway API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// HTTPClient implements GatewayClient and gateway.Counterparty over the
// gateway's HTTP/JSON API. The Counterparty half targets whatever address the
// session names, not the configured base URL.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var _ GatewayClient = (*HTTPClient)(nil)
var _ gateway.Counterparty = (*HTTPClient)(nil)

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8080"). When token is non-empty, an Authorization
// header is set on every request.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

// --- Operator API ---

func (c *HTTPClient) InitiateTransfer(ctx context.Context, req *model.TransferRequest, wait bool) (*model.Session, error) {
	path := "/v1/transfers"
	if wait {
		path += "?wait=true"
	}
	var sess model.Session
	if err := c.doJSON(ctx, http.MethodPost, c.baseURL, path, req, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (c *HTTPClient) GetSession(ctx context.Context, id string) (*model.Session, error) {
	var sess model.Session
	if err := c.doJSON(ctx, http.MethodGet, c.baseURL, "/v1/transfers/"+url.PathEscape(id), nil, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (c *HTTPClient) ListSessions(ctx context.Context) ([]*model.Session, error) {
	var resp struct {
		Sessions []*model.Session `json:"sessions"`
	}
	if err := c.doJSON(ctx, http.MethodGet, c.baseURL, "/v1/transfers", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Sessions, nil
}

func (c *HTTPClient) GetAudit(ctx context.Context, id string) ([]*model.AuditRecord, error) {
	var resp struct {
		Records []*model.AuditRecord `json:"records"`
	}
	if err := c.doJSON(ctx, http.MethodGet, c.baseURL, "/v1/transfers/"+url.PathEscape(id)+"/audit", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Records, nil
}

func (c *HTTPClient) Rollback(ctx context.Context, id, reason string) (*model.Session, error) {
	body := map[string]string{"reason": reason}
	var sess model.Session
	if err := c.doJSON(ctx, http.MethodPost, c.baseURL, "/v1/transfers/"+url.PathEscape(id)+"/rollback", body, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, c.baseURL, "/v1/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// --- Counterparty handshake ---

func (c *HTTPClient) CommenceTransfer(ctx context.Context, addr string, req *model.TransferRequest) error {
	return c.doJSON(ctx, http.MethodPost, strings.TrimRight(addr, "/"), "/v1/transfers/commence", req, nil)
}

func (c *HTTPClient) CompleteTransfer(ctx context.Context, addr, sessionID, proof string) error {
	body := map[string]string{"proof": proof}
	path := "/v1/transfers/" + url.PathEscape(sessionID) + "/complete"
	return c.doJSON(ctx, http.MethodPost, strings.TrimRight(addr, "/"), path, body, nil)
}

func (c *HTTPClient) doJSON(ctx context.Context, method, base, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, base+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	// 204 No Content carries no body.
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}
