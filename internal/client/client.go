// Package client talks to a running linkqual service.
package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"linkqual/internal/auth"
	"linkqual/internal/pipeline"
	"linkqual/internal/server"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

// APIError is a non-2xx response from the service.
type APIError struct {
	Status    int
	Message   string
	RequestID string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("linkqual: %d %s", e.Status, e.Message)
}

type errorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id"`
}

type Client struct {
	base           string
	apiKey, secret string
	rest           *resty.Client
}

func New(base string, timeout time.Duration) *Client {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(5 * time.Second)
	}
	return &Client{base: strings.TrimRight(base, "/"), rest: r}
}

// WithCredentials signs threshold updates with the given key pair.
func (c *Client) WithCredentials(apiKey, secret string) *Client {
	c.apiKey, c.secret = apiKey, secret
	return c
}

func (c *Client) request(ctx context.Context) *resty.Request {
	return c.rest.R().
		SetContext(ctx).
		SetHeader("X-Request-ID", uuid.New().String()).
		SetError(&errorBody{})
}

func check(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if resp.IsError() {
		apiErr := &APIError{Status: resp.StatusCode(), Message: resp.Status()}
		if body, ok := resp.Error().(*errorBody); ok && body.Error != "" {
			apiErr.Message = body.Error
			apiErr.RequestID = body.RequestID
		}
		return apiErr
	}
	return nil
}

// Observe sends one observation and returns the service's result.
func (c *Client) Observe(ctx context.Context, obs pipeline.Observation) (server.ObserveResponse, error) {
	var out server.ObserveResponse
	value := obs.Value
	req := server.ObserveRequest{Source: obs.Source, Value: &value, Label: obs.Label}

	err := check(c.request(ctx).SetBody(req).SetResult(&out).Post(c.base + "/observe"))
	return out, err
}

// SetThreshold overrides a source's baseline. An empty metric means bits_per_sec.
func (c *Client) SetThreshold(ctx context.Context, source, metric string, value float64) (server.ThresholdResponse, error) {
	var out server.ThresholdResponse
	req := c.request(ctx).
		SetBody(server.ThresholdRequest{Source: source, Metric: metric, Value: &value}).
		SetResult(&out)
	if c.apiKey != "" {
		req.SetHeaders(auth.Headers(c.apiKey, c.secret, uuid.New().String(), time.Now()))
	}

	err := check(req.Post(c.base + "/threshold"))
	return out, err
}

func (c *Client) Threshold(ctx context.Context, source, metric string) (server.ThresholdResponse, error) {
	var out server.ThresholdResponse
	q := url.Values{"source": {source}}
	if metric != "" {
		q.Set("metric", metric)
	}
	err := check(c.request(ctx).SetQueryParamsFromValues(q).SetResult(&out).Get(c.base + "/threshold"))
	return out, err
}

func (c *Client) History(ctx context.Context, source string) (server.HistoryResponse, error) {
	var out server.HistoryResponse
	err := check(c.request(ctx).SetQueryParam("source", source).SetResult(&out).Get(c.base + "/history"))
	return out, err
}

func (c *Client) ModelInfo(ctx context.Context) (server.ModelInfoResponse, error) {
	var out server.ModelInfoResponse
	err := check(c.request(ctx).SetResult(&out).Get(c.base + "/model/info"))
	return out, err
}

func (c *Client) Health(ctx context.Context) (server.HealthResponse, error) {
	var out server.HealthResponse
	err := check(c.request(ctx).SetResult(&out).Get(c.base + "/health"))
	return out, err
}
