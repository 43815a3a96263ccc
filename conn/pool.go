package conn

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"sync/atomic"
)

// DefaultPoolSize is how many parallel connections a Pool opens, matching
// the reference tornado client's max_connections default for a single
// team/sandbox pair.
const DefaultPoolSize = 3

// poolIndexShift packs a pool member's index into the high byte of the
// uint32 stream id Request returns, so GetResponse can route the call back
// to the Holder that actually owns it. 24 bits of stream id room is far
// more than a single HTTP/2 connection will ever assign in one lifetime.
const poolIndexShift = 24

const poolStreamMask = 0x00FFFFFF

// Pool fans a dispatcher's requests out across several parallel
// connections to the same address instead of serializing everything
// through one socket, the way a reference client's per-team/sandbox
// connection pool spreads load across a handful of HTTP/2 clients rather
// than opening one per request or sharing a single one.
type Pool struct {
	members []*Holder
	next    uint32
}

// NewPool builds a Pool of n Holders dialing addr with the same TLS
// configuration and dial options. n is clamped to at least 1.
func NewPool(n int, addr string, tlsConfig *tls.Config, dialer Dialer, opts ...HolderOption) *Pool {
	if n < 1 {
		n = 1
	}
	members := make([]*Holder, n)
	for i := range members {
		members[i] = New(addr, tlsConfig, dialer, opts...)
	}
	return &Pool{members: members}
}

// Connect opens every member connection that is not already healthy.
func (p *Pool) Connect(ctx context.Context) error {
	for i, h := range p.members {
		if err := h.Connect(ctx); err != nil {
			return fmt.Errorf("apns/conn: pool member %d: %w", i, err)
		}
	}
	return nil
}

// RemoteMaxConcurrentStreams sums every member's advertised window, so a
// scheduler built against a single Holder's window can drive a Pool
// without any changes: more members just widens the window it sees.
func (p *Pool) RemoteMaxConcurrentStreams() uint32 {
	var total uint32
	for _, h := range p.members {
		total += h.RemoteMaxConcurrentStreams()
	}
	return total
}

// Request submits req on the next member in round-robin order and packs
// that member's index into the returned stream id's high byte.
func (p *Pool) Request(req *http.Request) (uint32, error) {
	idx := int(atomic.AddUint32(&p.next, 1)-1) % len(p.members)
	id, err := p.members[idx].Request(req)
	if err != nil {
		return 0, err
	}
	if id&poolStreamMask != id {
		return 0, fmt.Errorf("apns/conn: stream id %d overflows pool index packing", id)
	}
	return uint32(idx)<<poolIndexShift | id, nil
}

// GetResponse unpacks the member index Request packed into streamID and
// waits on that member's response.
func (p *Pool) GetResponse(ctx context.Context, streamID uint32) (*Response, error) {
	idx := streamID >> poolIndexShift
	if int(idx) >= len(p.members) {
		return nil, fmt.Errorf("apns/conn: stream id %#x names unknown pool member %d", streamID, idx)
	}
	return p.members[idx].GetResponse(ctx, streamID&poolStreamMask)
}

// Ping pings every member, returning the first error encountered after
// trying them all.
func (p *Pool) Ping(ctx context.Context) error {
	var first error
	for i, h := range p.members {
		if err := h.Ping(ctx); err != nil && first == nil {
			first = fmt.Errorf("apns/conn: pool member %d: %w", i, err)
		}
	}
	return first
}

// Close tears down every member connection, returning the first error
// encountered after attempting all of them.
func (p *Pool) Close() error {
	var first error
	for _, h := range p.members {
		if err := h.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
