// Package outbound is the HTTP plumbing shared by the catalog, source and carrier
// clients: per-call timeout, rate limiting, metrics and upstream error capture.
package outbound

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"orderbridge/internal/apperr"
	"orderbridge/internal/metrics"
)

const maxResponseBytes = 4 << 20

type Options struct {
	Timeout time.Duration
	RPS     float64 // 0 disables pacing
	Burst   int
	Header  http.Header
	HTTP    *http.Client
	Logger  *slog.Logger
}

type Client struct {
	Service string
	BaseURL string
	HTTP    *http.Client
	Limiter *rate.Limiter
	Timeout time.Duration
	Header  http.Header
	Log     *slog.Logger
}

func New(service, baseURL string, o Options) *Client {
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	hc := o.HTTP
	if hc == nil {
		// the per-call context fires first; the client timeout is a backstop
		hc = &http.Client{Timeout: o.Timeout + time.Second}
	}
	lim := rate.NewLimiter(rate.Inf, 0)
	if o.RPS > 0 {
		burst := o.Burst
		if burst <= 0 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(o.RPS), burst)
	}
	log := o.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		Service: service,
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    hc,
		Limiter: lim,
		Timeout: o.Timeout,
		Header:  o.Header.Clone(),
		Log:     log.With("service", service),
	}
}

// Response is a fully read upstream response.
type Response struct {
	StatusCode int
	Body       []byte
}

func (r Response) OK() bool { return r.StatusCode >= 200 && r.StatusCode < 300 }

// Do sends one request. Transport failures come back as *apperr.UpstreamError;
// non-2xx responses are returned as-is for the caller to interpret.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body any) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	if c.BaseURL == "" {
		return Response{}, &apperr.UpstreamError{Service: c.Service, Message: "base URL not configured"}
	}
	if err := c.Limiter.Wait(ctx); err != nil {
		// never reached the upstream: a local timeout, not an UpstreamError
		c.Log.Warn("outbound call rate limited", "method", method, "path", path, "err", err)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Response{}, fmt.Errorf("%s rate limit: %w", c.Service, ctxErr)
		}
		return Response{}, fmt.Errorf("%s rate limit: %w: %v", c.Service, context.DeadlineExceeded, err)
	}

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return Response{}, fmt.Errorf("encode %s request: %w", c.Service, err)
		}
		rdr = bytes.NewReader(b)
	}
	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return Response{}, fmt.Errorf("build %s request: %w", c.Service, err)
	}
	for k, vs := range c.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.HTTP.Do(req)
	latency := time.Since(start)
	metrics.OutboundLatency.WithLabelValues(c.Service).Observe(float64(latency.Milliseconds()))
	if err != nil {
		metrics.OutboundRequests.WithLabelValues(c.Service, "error").Inc()
		c.Log.Warn("outbound call failed", "method", method, "path", path, "latency", latency, "err", err)
		return Response{}, c.transportError(ctx, err)
	}
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	metrics.OutboundRequests.WithLabelValues(c.Service, strconv.Itoa(resp.StatusCode)).Inc()
	if err != nil {
		return Response{}, c.transportError(ctx, err)
	}
	c.Log.Debug("outbound call", "method", method, "path", path, "status", resp.StatusCode, "latency", latency)
	return Response{StatusCode: resp.StatusCode, Body: data}, nil
}

// JSON sends body and decodes a 2xx answer into out (when non-nil). Non-2xx answers
// become *apperr.UpstreamError carrying the upstream payload.
func (c *Client) JSON(ctx context.Context, method, path string, query url.Values, body, out any) error {
	resp, err := c.Do(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return c.StatusError(resp)
	}
	if out == nil || len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return &apperr.UpstreamError{Service: c.Service, StatusCode: resp.StatusCode, Message: "undecodable response", Err: err}
	}
	return nil
}

// StatusError converts a non-2xx response into an UpstreamError. JSON bodies are
// passed through verbatim; common message fields are lifted into Message.
func (c *Client) StatusError(resp Response) *apperr.UpstreamError {
	e := &apperr.UpstreamError{Service: c.Service, StatusCode: resp.StatusCode}
	trimmed := bytes.TrimSpace(resp.Body)
	if len(trimmed) == 0 {
		e.Message = http.StatusText(resp.StatusCode)
		return e
	}
	if !json.Valid(trimmed) {
		e.Message = truncate(string(trimmed), 512)
		return e
	}
	e.Body = json.RawMessage(trimmed)
	var common struct {
		Code    any    `json:"code"`
		Message string `json:"message"`
		Error   any    `json:"error"`
		Errors  any    `json:"errors"`
	}
	if json.Unmarshal(trimmed, &common) == nil {
		if common.Code != nil {
			e.Code = fmt.Sprint(common.Code)
		}
		e.Message = common.Message
		if e.Message == "" {
			if s, ok := common.Error.(string); ok {
				e.Message = s
			} else if s, ok := common.Errors.(string); ok {
				e.Message = s
			}
		}
	}
	return e
}

func (c *Client) transportError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		err = fmt.Errorf("%w: %v", ctxErr, err)
	}
	return &apperr.UpstreamError{Service: c.Service, Err: err}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
