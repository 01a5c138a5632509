package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/vmaxx/repetier-go/tool"
	"github.com/vmaxx/repetier-go/types"
)

// Client issues authenticated requests against one Repetier-Server instance.
// Every request carries the user-agent, the x-api-key header and, when
// configured, the basic-auth header.
type Client struct {
	endpoint  *types.Endpoint
	userAgent string
	http      *http.Client
}

// Response is a completed exchange. Non-2xx statuses are returned here, not
// as errors; only transport-level failures produce an error.
type Response struct {
	Target     string
	StatusCode int
	Body       []byte
	Location   string
}

// OK reports whether the status code is in the 2xx range.
func (r *Response) OK() bool {
	return r.StatusCode >= http.StatusOK && r.StatusCode < http.StatusMultipleChoices
}

// NewClient creates a client for the given endpoint. A nil httpClient falls
// back to the shared default client.
func NewClient(endpoint *types.Endpoint, userAgent string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = tool.GetHttpClient()
	}
	return &Client{
		endpoint:  endpoint,
		userAgent: userAgent,
		http:      httpClient,
	}
}

// Endpoint returns the immutable instance endpoint this client talks to.
func (c *Client) Endpoint() *types.Endpoint { return c.endpoint }

// targetURL maps a target name onto the API base URL. Uploads carry their own
// routing and never go through here.
func (c *Client) targetURL(target string) string {
	return c.endpoint.APIURL() + "?a=" + target
}

func (c *Client) setHeaders(req *http.Request, contentType string) {
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("x-api-key", c.endpoint.APIKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.endpoint.BasicAuth != "" {
		req.Header.Set("Authorization", c.endpoint.BasicAuth)
	}
}

// Get issues a GET for the given target.
func (c *Client) Get(ctx context.Context, target string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.targetURL(target), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %q: %v", target, err)
	}
	c.setHeaders(req, "application/json")
	return c.do(req, target)
}

// Post issues a POST with a JSON body for the given target.
func (c *Client) Post(ctx context.Context, target string, body []byte) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.targetURL(target), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %q: %v", target, err)
	}
	c.setHeaders(req, "application/json")
	return c.do(req, target)
}

func (c *Client) do(req *http.Request, target string) (*Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			tool.DefaultLogger.Errorf("Failed to close response body: %v", err)
		}
	}()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %v", err)
	}
	return &Response{
		Target:     target,
		StatusCode: resp.StatusCode,
		Body:       body,
		Location:   resp.Header.Get("Location"),
	}, nil
}

// IsTimeout reports whether err is a transport-level timeout. Context
// cancellation is deliberate and does not count.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
