// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ManuGH/gazegate/internal/frame"
	"github.com/ManuGH/gazegate/internal/metrics"
	"github.com/ManuGH/gazegate/internal/resilience"
	"github.com/ManuGH/gazegate/internal/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const (
	opCalibrate = "calibrate"
	opAnalyze   = "analyze"

	maxResponseBytes = 64 << 10
	maxErrorBody     = 512
)

// ClientConfig configures the HTTP capability client.
type ClientConfig struct {
	BaseURL          string
	Timeout          time.Duration
	MaxRPS           float64
	Burst            int
	BreakerThreshold int
	BreakerReset     time.Duration
	HTTPClient       *http.Client
}

// Client calls POST {base}/calibrate and POST {base}/analyze with a JSON body
// {"photoDataUri": "..."}.
type Client struct {
	base    *url.URL
	http    *http.Client
	timeout time.Duration
	limiter *rate.Limiter
	breaker *resilience.CircuitBreaker
}

var _ Capability = (*Client)(nil)

// NewClient validates cfg and builds a client.
func NewClient(cfg ClientConfig) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Host == "" || (base.Scheme != "http" && base.Scheme != "https") {
		return nil, fmt.Errorf("invalid inference base URL %q", cfg.BaseURL)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}

	var limiter *rate.Limiter
	if cfg.MaxRPS > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.MaxRPS), burst)
	}

	return &Client{
		base:    base,
		http:    hc,
		timeout: cfg.Timeout,
		limiter: limiter,
		breaker: resilience.NewCircuitBreaker("inference", cfg.BreakerThreshold, cfg.BreakerReset,
			resilience.WithIgnore(isCallerError)),
	}, nil
}

// BreakerState reports the circuit breaker guarding the capability.
func (c *Client) BreakerState() resilience.State { return c.breaker.State() }

// Calibrate implements Capability.
func (c *Client) Calibrate(ctx context.Context, still frame.Still) error {
	var out struct {
		Calibrated *bool `json:"calibrated"`
	}
	if err := c.call(ctx, opCalibrate, still, &out); err != nil {
		return err
	}
	if out.Calibrated != nil && !*out.Calibrated {
		return &Error{Sentinel: ErrRejected, Op: opCalibrate}
	}
	return nil
}

// Analyze implements Capability.
func (c *Client) Analyze(ctx context.Context, still frame.Still) (Analysis, error) {
	var out struct {
		IsLookingAtScreen *bool `json:"isLookingAtScreen"`
	}
	if err := c.call(ctx, opAnalyze, still, &out); err != nil {
		return Analysis{}, err
	}
	if out.IsLookingAtScreen == nil {
		metrics.RecordInferenceRequest(opAnalyze, metrics.OutcomeFailed)
		return Analysis{}, &Error{Sentinel: ErrBadResponse, Op: opAnalyze, Err: errors.New("missing isLookingAtScreen")}
	}
	return Analysis{IsLookingAtScreen: *out.IsLookingAtScreen}, nil
}

func (c *Client) call(ctx context.Context, op string, still frame.Still, out any) error {
	ctx, span := telemetry.Tracer("gazegate.inference").Start(ctx, "gazegate.inference."+op,
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String(telemetry.InferenceOpKey, op))

	if still.Image == nil {
		err := &Error{Sentinel: ErrRejected, Op: op, Err: errors.New("empty frame")}
		telemetry.RecordError(span, err, "rejected")
		return err
	}
	uri, err := still.DataURI()
	if err != nil {
		e := &Error{Sentinel: ErrRejected, Op: op, Err: err}
		telemetry.RecordError(span, e, "encode")
		return e
	}
	body, err := json.Marshal(map[string]string{"photoDataUri": uri})
	if err != nil {
		return &Error{Sentinel: ErrRejected, Op: op, Err: err}
	}
	span.SetAttributes(telemetry.FrameAttributes(still.Width(), still.Height(), len(body))...)

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	err = c.breaker.Execute(func() error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				return &Error{Sentinel: ErrUnavailable, Op: op, Err: err}
			}
		}
		return c.post(ctx, op, body, out)
	})

	switch {
	case err == nil:
		metrics.RecordInferenceRequest(op, metrics.OutcomeOK)
		span.SetStatus(codes.Ok, "")
		return nil
	case errors.Is(err, resilience.ErrCircuitOpen):
		metrics.RecordInferenceRequest(op, "circuit_open")
		err = &Error{Sentinel: ErrUnavailable, Op: op, Err: err}
	case isCallerError(err):
		// caller gave up; leave it unwrapped so errors.Is(ctx.Err()) keeps working
	default:
		metrics.RecordInferenceRequest(op, metrics.OutcomeFailed)
	}
	telemetry.RecordError(span, err, op)
	return err
}

func (c *Client) post(ctx context.Context, op string, body []byte, out any) error {
	endpoint := c.base.JoinPath(op).String()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return &Error{Sentinel: ErrUnavailable, Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return context.Canceled
		}
		return &Error{Sentinel: ErrUnavailable, Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests:
		return &Error{Sentinel: ErrUnavailable, Op: op, Status: resp.StatusCode, Err: errors.New(readSnippet(resp.Body))}
	case resp.StatusCode >= http.StatusBadRequest:
		return &Error{Sentinel: ErrRejected, Op: op, Status: resp.StatusCode, Err: errors.New(readSnippet(resp.Body))}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &Error{Sentinel: ErrUnavailable, Op: op, Status: resp.StatusCode, Err: err}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Sentinel: ErrBadResponse, Op: op, Status: resp.StatusCode, Err: err}
	}
	return nil
}

func readSnippet(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	s := strings.TrimSpace(string(data))
	if s == "" {
		return "empty body"
	}
	return s
}

// isCallerError reports errors caused by the caller abandoning the call or by
// the capability refusing the input. Neither says the capability is down.
func isCallerError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, ErrRejected) || errors.Is(err, ErrBadResponse)
}
