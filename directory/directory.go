// Package directory implements the remote-node directory
// (SPEC_FULL.md §4.3): it tracks the live per-peer connection for each
// NodeId and lets callers wait for a node to appear.
//
// Client-only nodes are routinely reached by id rather than by
// address (e.g. a server dispatching a callback to a mobile client),
// so remoteNode(for:) blocks callers until the peer reappears rather
// than failing fast, to tolerate transient disconnects.
package directory

import (
	"sync"
	"time"

	"github.com/nodecrew/actorkernel/errs"
	"github.com/nodecrew/actorkernel/identity"
	"github.com/nodecrew/actorkernel/wire"
)

// Node is the subset of remotenode.RemoteNode the directory needs;
// kept as an interface here so this package doesn't import
// remotenode. Write is exposed so the kernel can route an outbound Call through
// whatever RemoteNode the directory resolves, without a type
// assertion back to the concrete remotenode package.
type Node interface {
	NodeID() identity.NodeId
	Write(wire.Envelope) error
}

type waiter struct {
	ch chan Node
}

// Directory is safe for concurrent use. The zero value is not usable;
// construct with New.
type Directory struct {
	mu      sync.Mutex
	nodes   map[identity.NodeId]Node
	waiters map[identity.NodeId][]*waiter
}

func New() *Directory {
	return &Directory{
		nodes:   make(map[identity.NodeId]Node),
		waiters: make(map[identity.NodeId][]*waiter),
	}
}

// Opened inserts or replaces the entry for remote's NodeID, evicting
// whatever connection previously owned that id, and wakes every
// waiter blocked on that id.
func (d *Directory) Opened(remote Node) {
	id := remote.NodeID()

	d.mu.Lock()
	d.nodes[id] = remote
	ws := d.waiters[id]
	delete(d.waiters, id)
	d.mu.Unlock()

	for _, w := range ws {
		w.ch <- remote
	}
}

// Closing removes the entry for remote's NodeID, but only if it still
// equals remote — a newer connection for the same id must not be
// evicted by a stale one's teardown. Outstanding waiters are left
// untouched; they resolve on the next Opened or on their own timeout.
func (d *Directory) Closing(remote Node) {
	id := remote.NodeID()

	d.mu.Lock()
	if current, have := d.nodes[id]; have && current == remote {
		delete(d.nodes, id)
	}
	d.mu.Unlock()
}

// RemoteNodeFor resolves the Node for actorNode. If an entry already
// exists it is returned immediately; otherwise the caller blocks,
// enqueued as a waiter, until Opened delivers a match or timeout
// elapses, in which case it fails with errs.TimeoutWaitingForNodeID.
func (d *Directory) RemoteNodeFor(actorNode identity.NodeId, timeout time.Duration) (Node, error) {
	d.mu.Lock()
	if n, have := d.nodes[actorNode]; have {
		d.mu.Unlock()
		return n, nil
	}
	w := &waiter{ch: make(chan Node, 1)}
	d.waiters[actorNode] = append(d.waiters[actorNode], w)
	d.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case n := <-w.ch:
		return n, nil
	case <-timer.C:
		d.removeWaiter(actorNode, w)
		return nil, &errs.TimeoutWaitingForNodeID{Node: actorNode, Timeout: timeout}
	}
}

func (d *Directory) removeWaiter(id identity.NodeId, target *waiter) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ws := d.waiters[id]
	for i, w := range ws {
		if w == target {
			d.waiters[id] = append(ws[:i], ws[i+1:]...)
			break
		}
	}
	if len(d.waiters[id]) == 0 {
		delete(d.waiters, id)
	}
}

// Snapshot returns the set of NodeIds currently connected. Read-only,
// lock-protected; consumed only by diagnostics (SPEC_FULL.md §4.3
// addition) for periodic size reporting — it never exposes the Node
// values themselves outside this package.
func (d *Directory) Snapshot() []identity.NodeId {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := make([]identity.NodeId, 0, len(d.nodes))
	for id := range d.nodes {
		ids = append(ids, id)
	}
	return ids
}
