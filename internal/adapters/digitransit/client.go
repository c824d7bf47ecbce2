package digitransit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fheinonen/helsinki-moves/internal/core/domain"
)

const (
	// DefaultRoutingEndpoint is the HSL GTFS GraphQL endpoint.
	DefaultRoutingEndpoint = "https://api.digitransit.fi/routing/v2/hsl/gtfs/v1"

	// DefaultGeocodingEndpoint is the Pelias search endpoint.
	DefaultGeocodingEndpoint = "https://api.digitransit.fi/geocoding/v1/search"

	requestTimeout = 7 * time.Second

	// retryDelay is the pause before the single retry of a routing
	// request that failed on transport or a 5xx.
	retryDelay = 350 * time.Millisecond

	subscriptionKeyHeader = "digitransit-subscription-key"
)

// Client is a shared HTTP client for the Digitransit routing and
// geocoding APIs. Failures map onto the domain sentinel errors so
// callers never see transport-level details.
type Client struct {
	httpClient        *http.Client
	routingEndpoint   string
	geocodingEndpoint string
	apiKey            string
}

// Option customizes a Client.
type Option func(*Client)

// WithRoutingEndpoint overrides the routing API URL.
func WithRoutingEndpoint(url string) Option {
	return func(c *Client) { c.routingEndpoint = url }
}

// WithGeocodingEndpoint overrides the geocoding API URL.
func WithGeocodingEndpoint(url string) Option {
	return func(c *Client) { c.geocodingEndpoint = url }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a Digitransit client. apiKey is sent as the
// subscription key header on every request.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		httpClient:        &http.Client{Timeout: requestTimeout},
		routingEndpoint:   DefaultRoutingEndpoint,
		geocodingEndpoint: DefaultGeocodingEndpoint,
		apiKey:            apiKey,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// graphql posts one query and decodes the data payload into out.
// Transport failures and 5xx responses get one retry after a short
// pause; everything else fails immediately.
func (c *Client) graphql(ctx context.Context, query string, variables map[string]any, out any) error {
	retry, err := c.graphqlOnce(ctx, query, variables, out)
	if err == nil || !retry {
		return err
	}

	select {
	case <-ctx.Done():
		return classifyTransportError(ctx.Err())
	case <-time.After(retryDelay):
	}

	_, err = c.graphqlOnce(ctx, query, variables, out)
	return err
}

func (c *Client) graphqlOnce(ctx context.Context, query string, variables map[string]any, out any) (retry bool, _ error) {
	body, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return false, fmt.Errorf("%w: encode request: %v", domain.ErrUpstream, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.routingEndpoint, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(subscriptionKeyHeader, c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = classifyTransportError(err)
		return errors.Is(err, domain.ErrTransport), err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		err = classifyTransportError(err)
		return errors.Is(err, domain.ErrTransport), err
	}
	if resp.StatusCode != http.StatusOK {
		retryable := resp.StatusCode >= http.StatusInternalServerError
		return retryable, fmt.Errorf("%w: routing HTTP %d", domain.ErrUpstream, resp.StatusCode)
	}

	var envelope graphqlResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return false, fmt.Errorf("%w: invalid routing response", domain.ErrUpstream)
	}
	if len(envelope.Errors) > 0 {
		messages := make([]string, len(envelope.Errors))
		for i, e := range envelope.Errors {
			messages[i] = e.Message
		}
		return false, fmt.Errorf("%w: %s", domain.ErrUpstream, strings.Join(messages, " | "))
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return false, fmt.Errorf("%w: invalid routing payload", domain.ErrUpstream)
		}
	}
	return false, nil
}

// classifyTransportError separates timeouts from other transport
// failures. A canceled caller context passes through unchanged.
func classifyTransportError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrUpstreamTimeout
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.ErrUpstreamTimeout
	}
	return fmt.Errorf("%w: %v", domain.ErrTransport, err)
}
