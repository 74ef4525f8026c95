// SPDX-License-Identifier: MIT

// Package client consumes an SSE endpoint with the full resilience stack:
// request and idle timeouts on every attempt, reconnection with backoff
// around whole attempts, and an optional circuit breaker above that. A
// transient failure restarts the whole request; there is no resume from a
// byte offset.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	xlog "github.com/ManuGH/ssepipe/internal/log"
	"github.com/ManuGH/ssepipe/internal/metrics"
	"github.com/ManuGH/ssepipe/internal/resilience"
	"github.com/ManuGH/ssepipe/internal/sse"
)

const readBufferSize = 4096

// ErrEndpointRequired is returned by New when no endpoint is configured.
var ErrEndpointRequired = errors.New("client: endpoint is required")

// Options configures a Client.
type Options struct {
	Endpoint       string
	HTTPClient     *http.Client  // defaults to http.DefaultClient
	RequestTimeout time.Duration // total per-attempt deadline, 0 disables
	IdleTimeout    time.Duration // max gap between chunks, 0 disables
	Backoff        resilience.BackoffConfig
	Handlers       sse.EventHandlers
	Callbacks      resilience.ReconnectCallbacks

	// Breaker, when set, wraps the whole reconnect loop so persistent
	// endpoint failure is refused fast instead of retried every call.
	Breaker *resilience.CircuitBreaker
}

// Client is a resilient SSE consumer for one endpoint.
type Client struct {
	opts   Options
	recon  *resilience.Reconnector
	logger zerolog.Logger
}

// New validates opts and builds a client.
func New(opts Options) (*Client, error) {
	if opts.Endpoint == "" {
		return nil, ErrEndpointRequired
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	return &Client{
		opts:   opts,
		recon:  resilience.NewReconnector(opts.Backoff, opts.Callbacks),
		logger: xlog.WithComponent("sse-client"),
	}, nil
}

// Stream connects and consumes frames until the server finishes the
// stream, the context fires, retries are exhausted, or the remote reports
// an error frame. The returned error is nil for a normally closed stream.
func (c *Client) Stream(ctx context.Context) error {
	if c.opts.Breaker != nil {
		return c.opts.Breaker.Execute(ctx, func(ctx context.Context) error {
			return c.recon.Execute(ctx, c.attempt)
		})
	}
	return c.recon.Execute(ctx, c.attempt)
}

// attempt performs one full request and read loop.
func (c *Client) attempt(ctx context.Context) error {
	reqCtx, cancelTimeout := resilience.WithRequestTimeout(ctx, c.opts.RequestTimeout)
	defer cancelTimeout()
	readCtx, cancelRead := context.WithCancelCause(reqCtx)
	defer cancelRead(nil)

	req, err := http.NewRequestWithContext(readCtx, http.MethodGet, c.opts.Endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", sse.ContentTypeEventStream)
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return c.resolveCause(readCtx, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("client: unexpected status %d from %s", resp.StatusCode, c.opts.Endpoint)
	}

	// The idle watchdog cancels the in-flight read rather than
	// interrupting it; the read observes the cancellation and unwinds.
	watchdog := resilience.NewIdleWatchdog(c.opts.IdleTimeout, func(err error) {
		c.logger.Warn().Err(err).Msg("no data within idle window, cancelling read")
		cancelRead(err)
	})
	defer watchdog.Stop()

	decoder := sse.NewEventDecoder(c.wrapHandlers())

	buf := make([]byte, readBufferSize)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			watchdog.Touch()
			if derr := decoder.Feed(string(buf[:n])); derr != nil {
				return derr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return c.resolveCause(readCtx, err)
		}
	}
}

// resolveCause swaps a generic transport error for the timeout that
// actually caused it, so callers can tell request and idle deadlines
// apart with errors.As.
func (c *Client) resolveCause(ctx context.Context, err error) error {
	cause := context.Cause(ctx)
	var timeoutErr *resilience.TimeoutError
	if errors.As(cause, &timeoutErr) {
		if timeoutErr.Kind == resilience.TimeoutRequest {
			metrics.RecordTimeout(string(resilience.TimeoutRequest))
		}
		return cause
	}
	return err
}

// wrapHandlers layers decode-error accounting onto the caller's handlers.
func (c *Client) wrapHandlers() sse.EventHandlers {
	h := c.opts.Handlers
	userDecode := h.OnDecode
	h.OnDecode = func(line string, err error) {
		metrics.RecordDecodeError()
		c.logger.Warn().Err(err).Str("line", line).Msg("dropping malformed frame line")
		if userDecode != nil {
			userDecode(line, err)
		}
	}
	return h
}
