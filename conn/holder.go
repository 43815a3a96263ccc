// Package conn owns the single long-lived HTTP/2 connection a Dispatcher
// speaks to APNs over, and the bookkeeping that lets a caller submit a
// request and collect its response as two separate steps.
package conn

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/http2"
)

// MaxConnectionRetries bounds how many times connect() will retry opening
// the connection before giving up.
const MaxConnectionRetries = 3

// ErrConnectionFailed is returned by Connect once every retry attempt has
// been exhausted. The root apns package re-exports it so callers can write
// errors.Is(err, apns.ErrConnectionFailed) without importing this package.
var ErrConnectionFailed = errors.New("connection failed")

// DefaultConnectTimeout and DefaultRequestTimeout are applied per dial and
// per request respectively when the caller does not override them.
const (
	DefaultConnectTimeout = 20 * time.Second
	DefaultRequestTimeout = 20 * time.Second
)

// Response is the status and body of a completed APNs response.
type Response struct {
	Status int
	Body   []byte
	Header http.Header
}

type pending struct {
	req    *http.Request
	result chan result
}

type result struct {
	resp *Response
	err  error
}

// Holder owns one HTTP/2 connection to an APNs endpoint. It is safe for
// concurrent use by the single Dispatcher control loop that drives it: the
// only operation multiple goroutines touch concurrently is the per-stream
// result channel, which is owned exclusively by the goroutine that created
// it and the caller of GetResponse for that streamID.
type Holder struct {
	addr      string // "host:port"
	tlsConfig *tls.Config
	dialer    Dialer

	mu        sync.RWMutex
	transport *http2.Transport
	cc        *http2.ClientConn

	nextStreamMu sync.Mutex
	nextStream   uint32
	pendingMu    sync.Mutex
	pendingReqs  map[uint32]*pending

	requestTimeout time.Duration
	onRetry        func()
}

// Dialer opens the raw TCP (or proxied) connection to addr; it exists so a
// proxy tunnel (see proxy.go) can be substituted for net.Dial.
type Dialer func(ctx context.Context, network, addr string) (net.Conn, error)

// HolderOption configures a Holder at construction.
type HolderOption func(*Holder)

// WithOnRetry registers fn to be called once per failed dial attempt
// inside Connect, before the next retry. It lets a caller count retries
// (e.g. into a metrics.Recorder) without this package depending on any
// particular metrics library.
func WithOnRetry(fn func()) HolderOption {
	return func(h *Holder) { h.onRetry = fn }
}

// New builds a Holder for the given "host:port" address. tlsConfig carries
// the credential material (client certificate, if any); it is cloned, has
// ALPN "h2" forced onto it, and, if it names no ServerName, verifies the
// server against addr's host. A nil dialer uses net.Dialer.DialContext.
func New(addr string, tlsConfig *tls.Config, dialer Dialer, opts ...HolderOption) *Holder {
	cfg := tlsConfig.Clone()
	if cfg == nil {
		cfg = &tls.Config{}
	}
	cfg.NextProtos = []string{"h2"}
	if cfg.ServerName == "" {
		if host, _, err := net.SplitHostPort(addr); err == nil {
			cfg.ServerName = host
		}
	}
	if dialer == nil {
		d := &net.Dialer{Timeout: DefaultConnectTimeout}
		dialer = d.DialContext
	}
	h := &Holder{
		addr:           addr,
		tlsConfig:      cfg,
		dialer:         dialer,
		pendingReqs:    make(map[uint32]*pending),
		requestTimeout: DefaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Connect opens the connection if it is not already open. It is idempotent:
// calling it again while a healthy connection exists is a no-op. On
// failure it retries up to MaxConnectionRetries times, closing any partial
// state between attempts, and returns ErrConnectionFailed if every attempt
// fails.
func (h *Holder) Connect(ctx context.Context) error {
	h.mu.RLock()
	healthy := h.cc != nil && h.cc.CanTakeNewRequest()
	h.mu.RUnlock()
	if healthy {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cc != nil {
		if h.cc.CanTakeNewRequest() {
			return nil
		}
		// A dead connection we still hold; release it before redialing.
		h.cc.Close()
		h.cc = nil
	}

	var lastErr error
	for attempt := 0; attempt < MaxConnectionRetries; attempt++ {
		if attempt > 0 && h.onRetry != nil {
			h.onRetry()
		}
		cc, err := h.dial(ctx)
		if err == nil {
			h.cc = cc
			return nil
		}
		lastErr = err
	}
	return fmt.Errorf("apns/conn: %w after %d attempts: %w", ErrConnectionFailed, MaxConnectionRetries, lastErr)
}

func (h *Holder) dial(ctx context.Context) (*http2.ClientConn, error) {
	rawConn, err := h.dialer(ctx, "tcp", h.addr)
	if err != nil {
		return nil, err
	}

	tlsConn := tls.Client(rawConn, h.tlsConfig)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		rawConn.Close()
		return nil, err
	}

	if h.transport == nil {
		h.transport = &http2.Transport{TLSClientConfig: h.tlsConfig}
	}
	cc, err := h.transport.NewClientConn(tlsConn)
	if err != nil {
		tlsConn.Close()
		return nil, err
	}
	return cc, nil
}

// RemoteMaxConcurrentStreams returns the peer's currently advertised
// MAX_CONCURRENT_STREAMS SETTINGS value, read under the ClientConn's own
// state lock.
func (h *Holder) RemoteMaxConcurrentStreams() uint32 {
	h.mu.RLock()
	cc := h.cc
	h.mu.RUnlock()
	if cc == nil {
		return 0
	}
	return cc.State().MaxConcurrentStreams
}

// Request submits req and returns a synthetic stream id to later pass to
// GetResponse. It never blocks on the response: the actual RoundTrip runs
// on its own goroutine.
func (h *Holder) Request(req *http.Request) (uint32, error) {
	h.mu.RLock()
	cc := h.cc
	h.mu.RUnlock()
	if cc == nil {
		return 0, fmt.Errorf("apns/conn: not connected")
	}

	h.nextStreamMu.Lock()
	h.nextStream++
	id := h.nextStream
	h.nextStreamMu.Unlock()

	p := &pending{req: req, result: make(chan result, 1)}
	h.pendingMu.Lock()
	h.pendingReqs[id] = p
	h.pendingMu.Unlock()

	cancel := func() {}
	if _, hasDeadline := req.Context().Deadline(); !hasDeadline {
		var ctx context.Context
		ctx, cancel = context.WithTimeout(req.Context(), h.requestTimeout)
		req = req.WithContext(ctx)
	}

	go func() {
		defer cancel()
		resp, err := cc.RoundTrip(req)
		if err != nil {
			p.result <- result{err: err}
			return
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			p.result <- result{err: err}
			return
		}
		p.result <- result{resp: &Response{Status: resp.StatusCode, Body: body, Header: resp.Header}}
	}()

	return id, nil
}

// GetResponse blocks until the response for streamID is available, then
// releases the bookkeeping for it.
func (h *Holder) GetResponse(ctx context.Context, streamID uint32) (*Response, error) {
	h.pendingMu.Lock()
	p, ok := h.pendingReqs[streamID]
	h.pendingMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("apns/conn: unknown stream id %d", streamID)
	}
	defer func() {
		h.pendingMu.Lock()
		delete(h.pendingReqs, streamID)
		h.pendingMu.Unlock()
	}()

	select {
	case res := <-p.result:
		return res.resp, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Ping sends an HTTP/2 PING frame and blocks until it is acknowledged.
func (h *Holder) Ping(ctx context.Context) error {
	h.mu.RLock()
	cc := h.cc
	h.mu.RUnlock()
	if cc == nil {
		return fmt.Errorf("apns/conn: not connected")
	}
	return cc.Ping(ctx)
}

// Close tears the connection down. It is safe to call Connect again
// afterward.
func (h *Holder) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cc == nil {
		return nil
	}
	err := h.cc.Close()
	h.cc = nil
	return err
}
