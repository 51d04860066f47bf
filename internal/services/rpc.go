// Transmission RPC client with the session id handshake
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/transportal/internal/shared"
	"golang.org/x/sync/singleflight"
)

// SessionIDHeader carries the daemon's anti-CSRF token on every request and on 409 responses.
const SessionIDHeader = "X-Transmission-Session-Id"

// RPCClient issues Transmission RPC calls and caches the daemon's session id.
type RPCClient struct {
	url        string
	httpClient *http.Client
	logger     *log.Logger

	mu      sync.RWMutex
	token   string
	refresh singleflight.Group
	tag     atomic.Uint64
}

// NewRPCClient creates a client posting to url. A nil httpClient uses [http.DefaultClient];
// callers are expected to configure a timeout on the client they pass.
func NewRPCClient(url string, httpClient *http.Client, logger *log.Logger) *RPCClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}

	return &RPCClient{url: url, httpClient: httpClient, logger: logger}
}

// Token returns the most recently observed session id.
func (c *RPCClient) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Call invokes method with args and decodes the response arguments into result (which may be nil).
//
// A 409 is answered by refreshing the session id and re-issuing the call once.
func (c *RPCClient) Call(ctx context.Context, creds Credentials, method string, args, result any) error {
	body, err := json.Marshal(rpcRequest{Method: method, Arguments: args, Tag: c.tag.Add(1)})
	if err != nil {
		return fmt.Errorf("%w: failed to encode %s request: %v", shared.ErrInvalidInput, method, err)
	}

	stale := c.Token()
	fresh, err := c.attempt(ctx, creds, method, stale, body, result)
	if !errors.Is(err, shared.ErrStaleAuthorization) {
		return err
	}

	token := c.rotate(stale, fresh)
	c.logger.Debug("retrying rpc call with refreshed session id", "method", method)

	if _, err = c.attempt(ctx, creds, method, token, body, result); errors.Is(err, shared.ErrStaleAuthorization) {
		return fmt.Errorf("%w: %s: session id rejected twice", shared.ErrUpstreamProtocol, method)
	}
	return err
}

// rotate replaces stale with fresh unless another caller already moved the cache on, and returns
// the id to use next. Callers holding the same stale id share one refresh.
func (c *RPCClient) rotate(stale, fresh string) string {
	v, _, _ := c.refresh.Do(stale, func() (any, error) {
		c.mu.Lock()
		defer c.mu.Unlock()

		if c.token == stale {
			c.token = fresh
			c.logger.Debug("rpc session id refreshed")
		}
		return c.token, nil
	})
	return v.(string)
}

// adopt records an id returned with a successful response. It must not join the refresh group,
// where it could be answered with an older id.
func (c *RPCClient) adopt(sent, header string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token == sent {
		c.token = header
		c.logger.Debug("rpc session id updated from response")
	}
}

// attempt performs one HTTP round trip. On 409 it returns the replacement id alongside
// [shared.ErrStaleAuthorization].
func (c *RPCClient) attempt(ctx context.Context, creds Credentials, method, token string, body []byte, result any) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: failed to create request: %v", shared.ErrUpstreamUnreachable, err)
	}

	req.SetBasicAuth(creds.Username, creds.Password)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(SessionIDHeader, token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", shared.ErrUpstreamUnreachable, method, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("rpc call", "method", method, "status", resp.StatusCode)
	header := resp.Header.Get(SessionIDHeader)

	switch {
	case resp.StatusCode == http.StatusConflict:
		if header == "" {
			return "", fmt.Errorf("%w: %s: 409 without %s", shared.ErrUpstreamProtocol, method, SessionIDHeader)
		}
		return header, shared.ErrStaleAuthorization
	case resp.StatusCode == http.StatusUnauthorized:
		return "", fmt.Errorf("%w: %s", shared.ErrAuthRejected, method)
	case resp.StatusCode == http.StatusForbidden:
		return "", fmt.Errorf("%w: %w: %s", shared.ErrAuthRejected, shared.ErrUpstreamForbidden, method)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: %s: status %d: %s", shared.ErrUpstreamProtocol, method, resp.StatusCode, bytes.TrimSpace(snippet))
	}

	if header != "" && header != token {
		c.adopt(token, header)
	}

	return "", decodeResponse(resp.Body, method, result)
}

// decodeResponse checks the RPC envelope, since the daemon reports failures with a 200 status.
func decodeResponse(r io.Reader, method string, result any) error {
	var envelope rpcResponse
	if err := json.NewDecoder(r).Decode(&envelope); err != nil {
		return fmt.Errorf("%w: %s: failed to decode response: %v", shared.ErrUpstreamProtocol, method, err)
	}

	if envelope.Result != resultSuccess {
		return fmt.Errorf("%w: %s: result %q", shared.ErrUpstreamProtocol, method, envelope.Result)
	}

	if result == nil || len(envelope.Arguments) == 0 {
		return nil
	}

	if err := json.Unmarshal(envelope.Arguments, result); err != nil {
		return fmt.Errorf("%w: %s: failed to decode arguments: %v", shared.ErrUpstreamProtocol, method, err)
	}
	return nil
}
