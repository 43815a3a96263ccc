package conn

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
)

// ProxyDialer returns a Dialer that tunnels through an HTTP CONNECT proxy
// at proxyAddr before handing back the raw connection, so the TLS
// handshake in Holder.dial happens end-to-end with APNs rather than with
// the proxy.
func ProxyDialer(proxyAddr string) Dialer {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		var d net.Dialer
		conn, err := d.DialContext(ctx, network, proxyAddr)
		if err != nil {
			return nil, fmt.Errorf("apns/conn: dialing proxy %s: %w", proxyAddr, err)
		}

		req := &http.Request{
			Method: http.MethodConnect,
			URL:    &url.URL{Opaque: addr},
			Host:   addr,
			Header: make(http.Header),
		}
		if err := req.Write(conn); err != nil {
			conn.Close()
			return nil, fmt.Errorf("apns/conn: writing CONNECT request: %w", err)
		}

		resp, err := http.ReadResponse(bufio.NewReader(conn), req)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("apns/conn: reading CONNECT response: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			conn.Close()
			return nil, fmt.Errorf("apns/conn: proxy CONNECT failed: %s", resp.Status)
		}

		return conn, nil
	}
}
