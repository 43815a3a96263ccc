package apns

import (
	"context"
	"time"
	"weak"

	"go.uber.org/zap"

	"github.com/takara-systems/apns/conn"
)

// WithHeartbeat starts a background goroutine that sends an HTTP/2 PING over
// the dispatcher's connection every period, once the dispatcher is built. It
// keeps only a weak reference to the connection holder (see conn.Holder), so
// the heartbeat loop does not extend the holder's lifetime. Close stops the
// loop by cancelling its context; if the Dispatcher is instead dropped
// without Close and the holder is collected, the next tick finds nothing to
// ping and the goroutine exits on its own.
func WithHeartbeat(period time.Duration) Option {
	return func(d *Dispatcher) { d.heartbeatPeriod = period }
}

// pingLoop is the watchdog shared by the single-connection and pooled
// dispatcher variants: translated from the source client's
// weakref.ref + daemon Thread into a weak.Pointer plus a goroutine
// cancelled via context. tick resolves the weak reference and pings it;
// alive=false tells the loop its target is gone and it should exit.
func pingLoop(ctx context.Context, period time.Duration, logger *zap.Logger, tick func() (alive bool, err error)) {
	go func() {
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				alive, err := tick()
				if !alive {
					return
				}
				if err != nil {
					logger.Warn("heartbeat ping failed", zap.Error(err))
				}
			}
		}
	}()
}

// startHeartbeat pings holder every period until ctx is cancelled or the
// weak reference stops resolving.
func startHeartbeat(ctx context.Context, ref weak.Pointer[conn.Holder], period time.Duration, logger *zap.Logger) {
	pingLoop(ctx, period, logger, func() (bool, error) {
		holder := ref.Value()
		if holder == nil {
			return false, nil
		}
		pingCtx, cancel := context.WithTimeout(ctx, conn.DefaultRequestTimeout)
		defer cancel()
		return true, holder.Ping(pingCtx)
	})
}

// startPoolHeartbeat is startHeartbeat's counterpart for a WithConnectionPool
// dispatcher: it pings every connection in the pool each tick.
func startPoolHeartbeat(ctx context.Context, ref weak.Pointer[conn.Pool], period time.Duration, logger *zap.Logger) {
	pingLoop(ctx, period, logger, func() (bool, error) {
		pool := ref.Value()
		if pool == nil {
			return false, nil
		}
		pingCtx, cancel := context.WithTimeout(ctx, conn.DefaultRequestTimeout)
		defer cancel()
		return true, pool.Ping(pingCtx)
	})
}
