// Package danmaku implements the four platform chat-subscription clients
// (C6), sharing one outer reconnect/backoff state machine.
package danmaku

import (
	"context"
	"log/slog"
	"time"

	"github.com/christian-lee/streamcast/internal/model"
)

const maxBackoff = 30 * time.Second

// Sink is the collaborator the session layer reports to; it never reaches
// into UI or persistence itself.
type Sink interface {
	Emit(eventName string, payload any)
	OnDanmaku(event model.DanmakuEvent)
}

// Client is implemented once per platform. Connect blocks until the
// connection is established or ctx is cancelled; Run blocks for the
// lifetime of one connection, delivering events to sink and returning when
// the connection drops (any error, including a clean server close).
type Client interface {
	Connect(ctx context.Context) error
	Run(ctx context.Context, sink Sink) error
	Close() error
}

// RunSession drives the shared Stopped -> Connecting -> Running ->
// Backoff -> Reconnecting state machine until ctx is cancelled or stop is
// closed. Backoff doubles on every failed connection attempt, caps at 30s,
// and is kept across reconnects within one session by design (to dampen
// sustained outages rather than hammering a dead room).
func RunSession(ctx context.Context, label string, client Client, sink Sink, stop <-chan struct{}) {
	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		default:
		}

		if err := client.Connect(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("danmaku connect failed, backing off", "session", label, "err", err, "backoff", backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			case <-stop:
				return
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}

		err := client.Run(ctx, sink)
		closeErr := client.Close()
		if closeErr != nil {
			slog.Warn("danmaku close failed", "session", label, "err", closeErr)
		}
		if ctx.Err() != nil {
			return
		}

		if err != nil {
			slog.Warn("danmaku session ended, reconnecting", "session", label, "err", err)
		} else {
			slog.Warn("danmaku session ended (server close), reconnecting", "session", label)
		}

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		case <-stop:
			return
		}
	}
}
