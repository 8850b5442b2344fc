// Package transport implements the two connection-manager variants
// (SPEC_FULL.md §4.5): ServerManager runs a WebSocket accept loop,
// ClientManager dials one server and supervises a resilient,
// backed-off reconnect loop. Both hand freshly handshaken RemoteNodes
// to the kernel via an onConnected callback.
//
// Grounded on cmd/mcrew/service-ws.go (accept loop shape, upgrader
// use) and sio/mqclient/main.go's --reconnect/OnConnectionLost idiom
// for the reconnect-supervision style, translated from MQTT's
// built-in auto-reconnect to an explicit exponential backoff loop
// since the spec fixes the transport to WebSocket.
package transport

import (
	"context"
	"math/rand"
	"time"

	"github.com/nodecrew/actorkernel/config"
)

// MonitorState names the ClientManager/ServerManager lifecycle
// transitions a Monitor callback observes (SPEC_FULL.md §4.5).
type MonitorState string

const (
	StateConnecting   MonitorState = "connecting"
	StateConnected    MonitorState = "connected"
	StateDisconnected MonitorState = "disconnected"
	StateReconnecting MonitorState = "reconnecting"
	StateCancelled    MonitorState = "cancelled"
)

// Monitor observes manager state transitions; detail is a short,
// human-readable note (a dial target, a close reason), never call or
// actor payload data.
type Monitor func(state MonitorState, detail string)

// Manager is the shared contract for ServerManager and ClientManager:
// Cancel stops all work and releases resources; Done reports when
// that teardown has completed, so shutdownGracefully can wait on it.
type Manager interface {
	Cancel()
	Done() <-chan struct{}
}

// backoffDelay computes the exponential-with-jitter, capped delay for
// the given (zero-based) reconnect attempt.
func backoffDelay(cfg config.BackoffConfig, attempt int) time.Duration {
	d := float64(cfg.Initial)
	for i := 0; i < attempt; i++ {
		d *= cfg.Factor
		if d >= float64(cfg.Max) {
			d = float64(cfg.Max)
			break
		}
	}
	if cfg.Jitter > 0 {
		spread := d * cfg.Jitter
		d += (rand.Float64()*2 - 1) * spread
	}
	if d < 0 {
		d = 0
	}
	if d > float64(cfg.Max) {
		d = float64(cfg.Max)
	}
	return time.Duration(d)
}

// sleep waits for d or ctx cancellation, reporting whether it slept to
// completion (false means the caller should stop).
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
