package httpinfra

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Requester issues GET requests against manifest, catalog and download
// hosts with a shared user agent, bounded timeouts and an optional
// client-side rate limit.
type Requester struct {
	client      *http.Client
	userAgent   string
	limiter     *rate.Limiter
	idleTimeout time.Duration
}

// Options configures a Requester.
type Options struct {
	// Timeout bounds connection setup, response headers and every
	// stretch of body reading without progress
	Timeout time.Duration

	UserAgent string

	// RequestsPerSecond limits request starts; zero disables limiting
	RequestsPerSecond float64
}

// NewRequester creates a new requester.
func NewRequester(opts Options) *Requester {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   opts.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   opts.Timeout,
		ResponseHeaderTimeout: opts.Timeout,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConnsPerHost:   8,
	}

	r := &Requester{
		client:      &http.Client{Transport: transport},
		userAgent:   opts.UserAgent,
		idleTimeout: opts.Timeout,
	}
	if opts.RequestsPerSecond > 0 {
		burst := int(opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	return r
}

// Get sends a GET request. Non-2xx responses are returned as *StatusError
// with the body closed. On success the caller owns the returned body, which
// fails with a timeout error if it stalls for longer than the idle timeout.
func (r *Requester) Get(ctx context.Context, url string) (*http.Response, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	reqCtx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		cancel()
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode, Body: string(body)}
	}

	resp.Body = newIdleTimeoutBody(resp.Body, r.idleTimeout, cancel)
	return resp, nil
}

// idleTimeoutBody cancels the request when no bytes arrive for the
// configured duration, so a stalled transfer surfaces as an error instead
// of blocking forever.
type idleTimeoutBody struct {
	body    io.ReadCloser
	timer   *time.Timer
	timeout time.Duration
	cancel  context.CancelFunc

	mu      sync.Mutex
	expired bool
}

func newIdleTimeoutBody(body io.ReadCloser, timeout time.Duration, cancel context.CancelFunc) *idleTimeoutBody {
	b := &idleTimeoutBody{body: body, timeout: timeout, cancel: cancel}
	b.timer = time.AfterFunc(timeout, func() {
		b.mu.Lock()
		b.expired = true
		b.mu.Unlock()
		cancel()
	})
	return b
}

func (b *idleTimeoutBody) Read(p []byte) (int, error) {
	n, err := b.body.Read(p)
	if n > 0 {
		b.timer.Reset(b.timeout)
	}
	if err != nil && err != io.EOF {
		b.mu.Lock()
		expired := b.expired
		b.mu.Unlock()
		if expired {
			return n, &stallError{after: b.timeout, err: err}
		}
	}
	return n, err
}

func (b *idleTimeoutBody) Close() error {
	b.timer.Stop()
	err := b.body.Close()
	b.cancel()
	return err
}
