// Package pending implements the pending-reply registry (SPEC_FULL.md
// §4.2): it correlates outgoing call ids with one-shot completers
// awaiting reply bytes.
package pending

import (
	"context"
	"sync"
	"time"

	"github.com/nodecrew/actorkernel/errs"
	"github.com/nodecrew/actorkernel/identity"
	"github.com/nodecrew/actorkernel/wire"
)

// outcome is what a completer is resolved with: either reply bytes or
// a terminal error.
type outcome struct {
	value []byte
	err   error
}

type entry struct {
	done     chan outcome
	mintedAt time.Time
	node     identity.NodeId
}

// Registry is safe for concurrent use. The zero value is not usable;
// construct with New.
type Registry struct {
	mu      sync.Mutex
	pending map[wire.CallID]*entry
}

func New() *Registry {
	return &Registry{
		pending: make(map[wire.CallID]*entry, 32),
	}
}

// SendMessage mints a fresh CallID, installs a one-shot completer,
// invokes send(callID), then awaits the completer's resolution or ctx
// cancellation. If send fails synchronously, the completer is removed
// and the error is returned. The returned bytes are the Value field of
// the matched Reply. node records which RemoteNode the call was routed
// through, so FailForNode can fail exactly this call's peers if that
// connection is lost before a reply arrives.
func (r *Registry) SendMessage(ctx context.Context, node identity.NodeId, send func(wire.CallID) error) ([]byte, error) {
	callID := wire.NewCallID()

	e := &entry{done: make(chan outcome, 1), mintedAt: time.Now(), node: node}

	r.mu.Lock()
	r.pending[callID] = e
	r.mu.Unlock()

	if err := send(callID); err != nil {
		r.mu.Lock()
		delete(r.pending, callID)
		r.mu.Unlock()
		return nil, err
	}

	select {
	case o := <-e.done:
		return o.value, o.err
	case <-ctx.Done():
		r.mu.Lock()
		delete(r.pending, callID)
		r.mu.Unlock()
		return nil, ctx.Err()
	}
}

// ReceivedReply resolves the completer for callID with success. If no
// such id is registered, it fails with MissingReplyContinuation,
// which is the expected outcome for a late reply after caller
// cancellation.
func (r *Registry) ReceivedReply(callID wire.CallID, value []byte) error {
	r.mu.Lock()
	e, have := r.pending[callID]
	if have {
		delete(r.pending, callID)
	}
	r.mu.Unlock()

	if !have {
		return &errs.MissingReplyContinuation{CallID: callID}
	}
	e.done <- outcome{value: value}
	return nil
}

// Fail resolves the single completer for callID with err; FailForNode
// and ExpireOlderThan use it. A no-op if the id is already resolved or
// unknown.
func (r *Registry) Fail(callID wire.CallID, err error) {
	r.mu.Lock()
	e, have := r.pending[callID]
	if have {
		delete(r.pending, callID)
	}
	r.mu.Unlock()

	if have {
		e.done <- outcome{err: err}
	}
}

// FailAll resolves every still-pending completer with err, whichever
// node each call was routed through. Connection loss uses the
// per-node FailForNode instead.
func (r *Registry) FailAll(err error) {
	r.mu.Lock()
	entries := make([]*entry, 0, len(r.pending))
	for id, e := range r.pending {
		entries = append(entries, e)
		delete(r.pending, id)
	}
	r.mu.Unlock()

	for _, e := range entries {
		e.done <- outcome{err: err}
	}
}

// FailForNode resolves every still-pending completer whose call was
// routed through node with err. Called when that node's RemoteNode
// closes (SPEC_FULL.md §4.4: "on destruction, all pending replies
// routed through it fail with connectionLost").
func (r *Registry) FailForNode(node identity.NodeId, err error) int {
	r.mu.Lock()
	var ids []wire.CallID
	for id, e := range r.pending {
		if e.node.Equal(node) {
			ids = append(ids, id)
		}
	}
	r.mu.Unlock()

	for _, id := range ids {
		r.Fail(id, err)
	}
	return len(ids)
}

// ExpireOlderThan fails every pending call minted more than maxAge
// ago with errs.StaleCall. Called by the directory sweeper
// (SPEC_FULL.md §4.9) as a backstop for callers that never set their
// own timeout; it is not part of the original spec's contract.
func (r *Registry) ExpireOlderThan(maxAge time.Duration) int {
	now := time.Now()

	r.mu.Lock()
	stale := make(map[wire.CallID]time.Duration)
	for id, e := range r.pending {
		if age := now.Sub(e.mintedAt); age > maxAge {
			stale[id] = age
		}
	}
	r.mu.Unlock()

	for id, age := range stale {
		r.Fail(id, &errs.StaleCall{CallID: id, Age: age})
	}
	return len(stale)
}

// Len reports the number of calls currently awaiting a reply; used
// only for diagnostics.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}
