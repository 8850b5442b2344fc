package transport

import (
	"context"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nodecrew/actorkernel/errs"
	"github.com/nodecrew/actorkernel/identity"
	"github.com/nodecrew/actorkernel/wire"
)

// doHandshake performs the node-id handshake (SPEC_FULL.md §6,
// unchanged from spec.md): this side sends its NodeId as the first
// application message, then reads the peer's NodeId as the first
// application message, before admitting any Call or Reply. A
// malformed or overdue handshake aborts the connection with
// errs.FailedToUpgrade.
func doHandshake(ctx context.Context, conn *websocket.Conn, localNodeID identity.NodeId, timeout time.Duration) (identity.NodeId, error) {
	bs, err := wire.EncodeHandshake(wire.Handshake{NodeId: localNodeID})
	if err != nil {
		return identity.NodeId{}, &errs.FailedToUpgrade{Reason: err}
	}
	if err := conn.WriteMessage(websocket.TextMessage, bs); err != nil {
		return identity.NodeId{}, &errs.FailedToUpgrade{Reason: err}
	}

	type result struct {
		peer identity.NodeId
		err  error
	}
	resultCh := make(chan result, 1)
	go func() {
		conn.SetReadDeadline(time.Now().Add(timeout))
		_, message, err := conn.ReadMessage()
		conn.SetReadDeadline(time.Time{})
		if err != nil {
			resultCh <- result{err: err}
			return
		}
		h, err := wire.DecodeHandshake(message)
		if err != nil {
			resultCh <- result{err: err}
			return
		}
		resultCh <- result{peer: h.NodeId}
	}()

	select {
	case r := <-resultCh:
		if r.err != nil {
			return identity.NodeId{}, &errs.FailedToUpgrade{Reason: r.err}
		}
		return r.peer, nil
	case <-ctx.Done():
		return identity.NodeId{}, &errs.FailedToUpgrade{Reason: ctx.Err()}
	}
}
