package apns

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
	"weak"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/takara-systems/apns/conn"
	"github.com/takara-systems/apns/credentials"
	"github.com/takara-systems/apns/metrics"
	"github.com/takara-systems/apns/notification"
	"github.com/takara-systems/apns/notification/priority"
)

const (
	// ProductionHost is the APNs production server address.
	ProductionHost = "api.push.apple.com"
	// DevelopmentHost is the APNs sandbox server address.
	DevelopmentHost = "api.development.push.apple.com"

	// DefaultPort and AlternatePort are the two ports APNs accepts HTTP/2
	// connections on.
	DefaultPort   = 443
	AlternatePort = 2197

	devicePath = "/3/device/"

	// CONCURRENT_STREAMS_SAFETY_MAXIMUM in the source: the hard ceiling the
	// dispatcher imposes on the in-flight window regardless of what the
	// peer's SETTINGS frame advertises.
	concurrentStreamsSafetyMaximum = 1000
)

// Encoder renders a Payload as JSON bytes. Both the standard
// encoding/json-backed encoder and the fast hand-rolled one in
// payload_marshal.go satisfy it.
type Encoder func(p *Payload) ([]byte, error)

// standardEncoder uses Payload.Encode (compact, non-HTML-escaped
// encoding/json).
func standardEncoder(p *Payload) ([]byte, error) { return p.Encode() }

// fastEncoder uses the hand-rolled MarshalJSONFast path. Only available
// under the default build (the "use_std_json" tag removes MarshalJSONFast
// from the build entirely), so Dispatcher falls back to standardEncoder
// when asked for it under that tag; see dispatcher_std_json.go.
var fastEncoder Encoder = defaultFastEncoder

// Option configures a Dispatcher at construction.
type Option func(*Dispatcher)

// WithSandbox points the dispatcher at the development/sandbox APNs host.
func WithSandbox() Option {
	return func(d *Dispatcher) { d.host = DevelopmentHost }
}

// WithAlternatePort uses port 2197 instead of the default 443, for
// networks that block 443 outbound.
func WithAlternatePort() Option {
	return func(d *Dispatcher) { d.port = AlternatePort }
}

// WithProxy tunnels the HTTP/2 connection through an HTTP CONNECT proxy.
func WithProxy(host string, port int) Option {
	return func(d *Dispatcher) { d.dialer = conn.ProxyDialer(fmt.Sprintf("%s:%d", host, port)) }
}

// WithJSONEncoder overrides the default payload encoder.
func WithJSONEncoder(enc Encoder) Option {
	return func(d *Dispatcher) { d.encode = enc }
}

// WithFastJSON selects the hand-rolled encoder over the default
// encoding/json path.
func WithFastJSON() Option {
	return func(d *Dispatcher) { d.encode = fastEncoder }
}

// WithMetrics attaches a Prometheus recorder the dispatcher updates as it runs.
func WithMetrics(m *metrics.Recorder) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithConnectionPool opens n parallel HTTP/2 connections to APNs instead of
// one, round-robining requests across them, the way a reference client
// keeps a small pool of connections per team/sandbox rather than serializing
// every request through a single socket. n is clamped to at least 1; n<=1 is
// equivalent to the default single-connection Dispatcher.
func WithConnectionPool(n int) Option {
	return func(d *Dispatcher) { d.poolSize = n }
}

// WithLogger attaches a zap logger the dispatcher writes connection and
// delivery events to. The default is a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

// dispatcherConn is the subset of *conn.Holder the Dispatcher drives. It
// exists so tests can substitute a fake connection instead of opening a
// real TLS socket to exercise the scheduling algorithm.
type dispatcherConn interface {
	Connect(ctx context.Context) error
	Request(req *http.Request) (uint32, error)
	GetResponse(ctx context.Context, streamID uint32) (*conn.Response, error)
	RemoteMaxConcurrentStreams() uint32
	Close() error
}

// Dispatcher sends notifications to APNs over a single multiplexed HTTP/2
// connection, scheduling concurrent in-flight streams up to the peer's
// current MAX_CONCURRENT_STREAMS setting.
type Dispatcher struct {
	creds  credentials.Credentials
	host   string
	port   int
	dialer conn.Dialer
	encode Encoder

	conn     dispatcherConn
	poolSize int
	metrics  *metrics.Recorder
	logger   *zap.Logger

	heartbeatPeriod time.Duration
	heartbeatStop   context.CancelFunc
}

// NewDispatcher builds a Dispatcher for the production host using creds.
// Apply options to point it at the sandbox, an alternate port, a proxy, or
// a custom encoder.
func NewDispatcher(creds credentials.Credentials, opts ...Option) (*Dispatcher, error) {
	if creds == nil {
		return nil, fmt.Errorf("apns: credentials are required")
	}
	d := &Dispatcher{
		creds:  creds,
		host:   ProductionHost,
		port:   DefaultPort,
		encode: standardEncoder,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = zap.NewNop()
	}

	tlsConfig, err := creds.TLSConfig()
	if err != nil {
		return nil, fmt.Errorf("apns: building TLS config: %w", err)
	}
	if tc, ok := creds.(*credentials.TokenCredentials); ok && d.metrics != nil {
		tc.SetOnRegenerate(d.metrics.TokensRegenerated.Inc)
	}

	var holderOpts []conn.HolderOption
	if d.metrics != nil {
		holderOpts = append(holderOpts, conn.WithOnRetry(d.metrics.ConnectRetries.Inc))
	}
	addr := fmt.Sprintf("%s:%d", d.host, d.port)
	if d.poolSize > 1 {
		pool := conn.NewPool(d.poolSize, addr, tlsConfig, d.dialer, holderOpts...)
		d.conn = pool
		if d.heartbeatPeriod > 0 {
			ctx, cancel := context.WithCancel(context.Background())
			d.heartbeatStop = cancel
			startPoolHeartbeat(ctx, weak.Make(pool), d.heartbeatPeriod, d.logger)
		}
		d.logger.Info("dispatcher configured", zap.String("host", d.host), zap.Int("port", d.port), zap.Int("pool_size", d.poolSize))
		return d, nil
	}

	holder := conn.New(addr, tlsConfig, d.dialer, holderOpts...)
	d.conn = holder
	if d.heartbeatPeriod > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		d.heartbeatStop = cancel
		startHeartbeat(ctx, weak.Make(holder), d.heartbeatPeriod, d.logger)
	}
	d.logger.Info("dispatcher configured", zap.String("host", d.host), zap.Int("port", d.port))
	return d, nil
}

// Close tears down the dispatcher's connection and stops any heartbeat
// goroutine started with WithHeartbeat. A Dispatcher is not usable after
// Close.
func (d *Dispatcher) Close() error {
	if d.heartbeatStop != nil {
		d.heartbeatStop()
	}
	return d.conn.Close()
}

// Send delivers a single notification and returns the APNs verdict. On a
// non-200 response the error is of type *apns.Error; on a transport
// failure it wraps ErrConnectionFailed.
func (d *Dispatcher) Send(ctx context.Context, n *Notification) (*Response, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}
	if err := d.conn.Connect(ctx); err != nil {
		d.logger.Error("connect failed", zap.Error(err))
		return nil, fmt.Errorf("apns: %w", err)
	}

	req, err := d.buildRequest(ctx, n)
	if err != nil {
		return nil, err
	}

	streamID, err := d.conn.Request(req)
	if err != nil {
		return nil, fmt.Errorf("apns: %s: %w", err, ErrConnectionFailed)
	}
	resp, err := d.conn.GetResponse(ctx, streamID)
	if err != nil {
		return nil, fmt.Errorf("apns: %s: %w", err, ErrConnectionFailed)
	}

	return d.decodeResponse(n.DeviceToken, resp)
}

// SendBatch delivers every notification in ns and returns one Verdict per
// device token. It is the dynamic-window scheduler: it re-reads the peer's
// MAX_CONCURRENT_STREAMS at the top of every iteration and keeps up to
// that many streams (clamped to [1, 1000]) in flight at once. If the same
// token appears twice in ns, only the last verdict survives, since each
// verdict is written into the result map by device token.
func (d *Dispatcher) SendBatch(ctx context.Context, ns []*Notification) (map[string]Verdict, error) {
	verdicts := make(map[string]Verdict, len(ns))
	if len(ns) == 0 {
		return verdicts, nil
	}

	if err := d.conn.Connect(ctx); err != nil {
		d.logger.Error("connect failed", zap.Error(err))
		return nil, fmt.Errorf("apns: %w", err)
	}
	d.logger.Info("batch started", zap.Int("count", len(ns)))

	type openStream struct {
		streamID uint32
		token    string
	}
	open := make([]openStream, 0, concurrentStreamsSafetyMaximum)
	cursor := 0

	for cursor < len(ns) || len(open) > 0 {
		effectiveMax := effectiveWindow(d.conn.RemoteMaxConcurrentStreams())
		if d.metrics != nil {
			d.metrics.InFlight.Set(float64(len(open)))
		}

		if cursor < len(ns) && len(open) < effectiveMax {
			n := ns[cursor]
			cursor++
			if d.metrics != nil {
				d.metrics.Submitted.Inc()
			}

			if err := n.Validate(); err != nil {
				verdicts[n.DeviceToken] = Verdict{Err: err}
				if d.metrics != nil {
					d.metrics.Failed.Inc()
				}
				continue
			}

			req, err := d.buildRequest(ctx, n)
			if err != nil {
				verdicts[n.DeviceToken] = Verdict{Err: err}
				if d.metrics != nil {
					d.metrics.Failed.Inc()
				}
				continue
			}

			streamID, err := d.conn.Request(req)
			if err != nil {
				verdicts[n.DeviceToken] = Verdict{Err: fmt.Errorf("apns: %s: %w", err, ErrConnectionFailed)}
				if d.metrics != nil {
					d.metrics.Failed.Inc()
				}
				continue
			}
			open = append(open, openStream{streamID: streamID, token: n.DeviceToken})
			continue
		}

		head := open[0]
		open = open[1:]

		resp, err := d.conn.GetResponse(ctx, head.streamID)
		if err != nil {
			verdicts[head.token] = Verdict{Err: fmt.Errorf("apns: %s: %w", err, ErrConnectionFailed)}
			if d.metrics != nil {
				d.metrics.Failed.Inc()
			}
			continue
		}

		response, err := d.decodeResponse(head.token, resp)
		verdicts[head.token] = Verdict{Response: response, Err: err}
		if d.metrics != nil {
			if err == nil {
				d.metrics.Succeeded.Inc()
			} else {
				d.metrics.Failed.Inc()
			}
		}
	}

	d.logger.Info("batch complete", zap.Int("count", len(verdicts)))
	return verdicts, nil
}

// effectiveWindow clamps the peer's advertised MAX_CONCURRENT_STREAMS to
// [1, concurrentStreamsSafetyMaximum]. A value of zero (no SETTINGS frame
// seen yet, or the peer advertising zero) floors to 1 rather than 0 --
// flooring to zero would wedge the scheduler forever since it could never
// submit a request to populate open_streams.
func effectiveWindow(peerMax uint32) int {
	if peerMax > concurrentStreamsSafetyMaximum {
		return concurrentStreamsSafetyMaximum
	}
	if peerMax < 1 {
		return 1
	}
	return int(peerMax)
}

func (d *Dispatcher) buildRequest(ctx context.Context, n *Notification) (*http.Request, error) {
	body, err := d.encode(n.Payload)
	if err != nil {
		return nil, fmt.Errorf("apns: marshaling payload: %w", err)
	}
	limit := 4096
	if n.EffectivePushType() == notification.Voip {
		limit = 5120
	}
	if len(body) > limit {
		return nil, fmt.Errorf("apns: payload of %d bytes exceeds the %d byte limit", len(body), limit)
	}

	url := fmt.Sprintf("https://%s%s%s", d.hostPort(), devicePath, n.DeviceToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("apns: building request: %w", err)
	}

	req.Header.Set("apns-topic", n.Topic)
	req.Header.Set("apns-push-type", n.EffectivePushType())
	// Immediate is what APNs applies anyway, so the header is only worth
	// its bytes for a non-default priority.
	if s := n.Priority.String(); s != "" && n.Priority != priority.Immediate {
		req.Header.Set("apns-priority", s)
	}
	if n.Expiration != nil {
		req.Header.Set("apns-expiration", n.Expiration.String())
	}
	if n.CollapseID != "" {
		req.Header.Set("apns-collapse-id", n.CollapseID)
	}
	apnsID := n.APNsID
	if apnsID == "" {
		apnsID = uuid.NewString()
	}
	req.Header.Set("apns-id", apnsID)

	if header, ok, err := d.creds.AuthorizationHeader(n.Topic); err != nil {
		return nil, fmt.Errorf("apns: building authorization header: %w", err)
	} else if ok {
		req.Header.Set("authorization", header)
	}

	return req, nil
}

func (d *Dispatcher) hostPort() string {
	if d.port == DefaultPort {
		return d.host
	}
	return fmt.Sprintf("%s:%d", d.host, d.port)
}

func (d *Dispatcher) decodeResponse(token string, resp *conn.Response) (*Response, error) {
	response := &Response{
		DeviceToken: token,
		APNsID:      resp.Header.Get("apns-id"),
		UniqueID:    resp.Header.Get("apns-unique-id"),
	}
	if resp.Status == http.StatusOK {
		return response, nil
	}
	return response, decodeAPNsError(resp.Status, resp.Body)
}

func decodeAPNsError(status int, body []byte) error {
	if len(body) == 0 {
		return fmt.Errorf("apns: request failed with status %d", status)
	}
	var wire struct {
		Reason    string `json:"reason"`
		Timestamp int64  `json:"timestamp,omitempty"`
	}
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&wire); err != nil {
		return fmt.Errorf("apns: request failed with status %d: %w", status, err)
	}
	if wire.Reason == "" {
		return fmt.Errorf("apns: request failed with status %d", status)
	}
	return &Error{StatusCode: status, Reason: Reason(wire.Reason), Timestamp: wire.Timestamp}
}
