// Package kernel implements the actor-system kernel (SPEC_FULL.md
// §4.6): it owns the local actor directory, the pending-reply
// registry, the remote-node directory, and the set of connection
// managers, and exposes assignID/actorReady/resignID/resolve,
// remoteCall/remoteCallVoid, the on-demand resolver, and
// shutdownGracefully.
//
// Grounded on sio/crew.go's Crew orchestration style (a
// mutex-guarded map of named units driven by a context-cancelled
// loop), generalized here from one-process machine dispatch to
// multi-node actor dispatch.
package kernel

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nodecrew/actorkernel/config"
	"github.com/nodecrew/actorkernel/diagnostics"
	"github.com/nodecrew/actorkernel/directory"
	"github.com/nodecrew/actorkernel/errs"
	"github.com/nodecrew/actorkernel/identity"
	"github.com/nodecrew/actorkernel/pending"
	"github.com/nodecrew/actorkernel/remotenode"
	"github.com/nodecrew/actorkernel/sweep"
	"github.com/nodecrew/actorkernel/transport"
	"github.com/nodecrew/actorkernel/util"
	"github.com/nodecrew/actorkernel/wire"
)

// LocalActor is what every actor hosted on this node must provide:
// its own stamped ActorId, and a dispatch entry point for inbound
// calls. The runtime never interprets invocationTarget or args
// itself (SPEC_FULL.md §1 Non-goals); Invoke is where the
// application-level method dispatch and argument decoding happens.
type LocalActor interface {
	ActorID() identity.ActorId
	Invoke(ctx context.Context, invocationTarget string, genericSubs []string, args [][]byte) ([]byte, error)
}

// OnDemandResolver maps an unknown ActorId to a freshly constructed
// local actor, for server-side lazy construction (e.g. "give me
// whatever Session actor owns this id, creating it if needed").
type OnDemandResolver func(id identity.ActorId) (LocalActor, bool)

// ActorSystem is the kernel. The zero value is not usable; construct
// with NewActorSystem.
type ActorSystem struct {
	nodeID            identity.NodeId
	connectionTimeout time.Duration
	codec             wire.Codec

	mu       sync.Mutex
	actors   map[identity.ActorId]LocalActor
	onDemand OnDemandResolver

	directory *directory.Directory
	pending   *pending.Registry

	managersMu sync.Mutex
	managers   []transport.Manager

	diagnosticsStore *diagnostics.Store
	sweeper          *sweep.Sweeper
	statusSrv        *http.Server

	cancel context.CancelFunc
}

// NewActorSystem wires a kernel from cfg: the remote-node directory,
// pending-reply registry, an optional ServerManager, zero or more
// ClientManagers, an optional diagnostics store and directory
// sweeper, and an optional status page — per SPEC_FULL.md §4.6's
// single-constructor expansion. Background work (sweeper, status
// page, accepted/dialed connections) is tied to ctx and torn down by
// ShutdownGracefully.
func NewActorSystem(ctx context.Context, cfg *config.NodeConfig) (*ActorSystem, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	baseCtx, cancel := context.WithCancel(ctx)
	k := &ActorSystem{
		nodeID:            identity.NewNodeId(),
		connectionTimeout: cfg.ConnectionTimeout,
		codec:             wire.JSONCodec{},
		actors:            make(map[identity.ActorId]LocalActor),
		directory:         directory.New(),
		pending:           pending.New(),
		cancel:            cancel,
	}

	if cfg.Diagnostics != nil && cfg.Diagnostics.Path != "" {
		store, err := diagnostics.Open(cfg.Diagnostics.Path)
		if err != nil {
			cancel()
			return nil, err
		}
		k.diagnosticsStore = store
	}

	if cfg.Listen != nil {
		sm, err := transport.NewServerManager(*cfg.Listen, cfg.ConnectionTimeout, k.nodeID, k.codec, k, k.onConnected, k.onMonitorState)
		if err != nil {
			k.teardownPartial()
			return nil, err
		}
		if err := sm.Start(baseCtx); err != nil {
			k.teardownPartial()
			return nil, err
		}
		k.managers = append(k.managers, sm)
	}

	for _, addr := range cfg.Dial {
		cm := transport.NewClientManager(addr, cfg.Backoff, cfg.ConnectionTimeout, k.nodeID, k.codec, k, k.onConnected, k.onMonitorState)
		go cm.Run(baseCtx)
		k.managers = append(k.managers, cm)
	}

	if cfg.Sweep.Schedule != "" {
		sw, err := sweep.New(cfg.Sweep.Schedule, cfg.Sweep.MaxCallAge, k.nodeID, k.pending, k.directory, k.diagnosticsStore)
		if err != nil {
			k.teardownPartial()
			return nil, err
		}
		k.sweeper = sw
		go sw.Run(baseCtx)
	}

	if cfg.Diagnostics != nil && cfg.Diagnostics.HTTPAddr != "" {
		page := diagnostics.NewStatusPage(k, k.diagnosticsStore)
		mux := http.NewServeMux()
		mux.Handle("/status", page)
		srv := &http.Server{Addr: cfg.Diagnostics.HTTPAddr, Handler: mux}
		k.statusSrv = srv
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("kernel: status page: %s", err)
			}
		}()
	}

	return k, nil
}

func (k *ActorSystem) teardownPartial() {
	k.cancel()
	for _, m := range k.managers {
		m.Cancel()
	}
	if k.diagnosticsStore != nil {
		k.diagnosticsStore.Close()
	}
}

// LocalNodeID satisfies diagnostics.StatusSource.
func (k *ActorSystem) LocalNodeID() identity.NodeId { return k.nodeID }

// LivePeers satisfies diagnostics.StatusSource.
func (k *ActorSystem) LivePeers() []identity.NodeId { return k.directory.Snapshot() }

// ListenAddr reports the bound address of this kernel's ServerManager,
// or nil if cfg.Listen was unset. Mainly useful in tests and for
// operators who configured port 0 and need the OS-assigned port.
func (k *ActorSystem) ListenAddr() net.Addr {
	k.managersMu.Lock()
	defer k.managersMu.Unlock()
	for _, m := range k.managers {
		if sm, ok := m.(*transport.ServerManager); ok {
			return sm.Addr()
		}
	}
	return nil
}

func (k *ActorSystem) onConnected(rn *remotenode.RemoteNode) {
	k.directory.Opened(rn)
	k.recordEvent(rn.NodeID(), diagnostics.KindOpened, "")
}

func (k *ActorSystem) onMonitorState(state transport.MonitorState, detail string) {
	util.Logf("kernel: transport state=%s detail=%s", state, detail)
	k.recordEvent(k.nodeID, monitorStateKind(state), detail)
}

// monitorStateKind maps a transport.MonitorState to the diagnostics.Kind
// recorded for it, per SPEC_FULL.md §4.5: every state transition the
// monitor callback observes is written to the diagnostics store, not
// just the opened/closing transitions onConnected/HandleClosed already
// record for an established RemoteNode.
func monitorStateKind(state transport.MonitorState) string {
	switch state {
	case transport.StateConnecting:
		return diagnostics.KindConnecting
	case transport.StateConnected:
		return diagnostics.KindOpened
	case transport.StateDisconnected:
		return diagnostics.KindClosing
	case transport.StateReconnecting:
		return diagnostics.KindReconnecting
	case transport.StateCancelled:
		return diagnostics.KindCancelled
	default:
		return string(state)
	}
}

func (k *ActorSystem) recordEvent(node identity.NodeId, kind, detail string) {
	if k.diagnosticsStore == nil {
		return
	}
	if err := k.diagnosticsStore.Record(diagnostics.ConnectionEvent{
		NodeID: node, Kind: kind, At: time.Now(), Detail: detail,
	}); err != nil {
		log.Printf("kernel: recording %s event for %s: %s", kind, node, err)
	}
}

// AssignID mints an ActorId for a newly constructed local actor. If
// hint is non-nil it is used verbatim (stamped with the local
// NodeId); a hint that collides with an already-registered id is a
// programming error and halts the process, per SPEC_FULL.md §7
// "Fatal conditions". Otherwise a random id carrying actorType is
// minted.
func (k *ActorSystem) AssignID(hint *identity.ActorId, actorType string) identity.ActorId {
	if hint != nil {
		id := hint.With(k.nodeID)
		k.mu.Lock()
		_, exists := k.actors[id]
		k.mu.Unlock()
		if exists {
			fatalf("kernel: duplicate actor id %s", id)
		}
		return id
	}
	return identity.RandomActorIdFor(actorType).With(k.nodeID)
}

// ActorReady inserts actor into the local directory under actor's own
// id. A second registration for the same id halts the process.
func (k *ActorSystem) ActorReady(actor LocalActor) {
	id := actor.ActorID()
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, exists := k.actors[id]; exists {
		fatalf("kernel: duplicate actor id %s", id)
	}
	k.actors[id] = actor
}

// fatalf halts the process on a programming-contract violation
// (SPEC_FULL.md §7: "duplicate ActorId assignment halts the process").
// A package variable rather than a direct log.Fatalf call so tests can
// substitute a panic-and-recover stand-in for the halt.
var fatalf = log.Fatalf

// ResignID removes id from the local directory. Inbound calls that
// resolve after resignID has run are dropped (SPEC_FULL.md §9 Open
// Question: "drop inbound calls after resign"); calls already past
// resolution complete normally since resignID only gates future
// lookups.
func (k *ActorSystem) ResignID(id identity.ActorId) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.actors, id)
}

// RegisterOnDemandResolveHandler installs fn as the fallback consulted
// by Resolve when id isn't in the local directory.
func (k *ActorSystem) RegisterOnDemandResolveHandler(fn OnDemandResolver) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.onDemand = fn
}

// resolveAny looks id up in the local directory, falling back to the
// on-demand resolver. The resolver is always invoked with the kernel
// lock released, so it may safely call ActorReady/MakeLocalActor
// itself without deadlocking or needing a re-entrant lock (SPEC_FULL.md
// §9's "prefer separating the resolve critical section").
func (k *ActorSystem) resolveAny(id identity.ActorId) (LocalActor, bool, error) {
	k.mu.Lock()
	actor, have := k.actors[id]
	resolver := k.onDemand
	k.mu.Unlock()

	if have {
		return actor, true, nil
	}
	if resolver == nil {
		return nil, false, nil
	}

	candidate, found := resolver(id)
	if !found {
		return nil, false, nil
	}
	if cid := candidate.ActorID(); cid.HasNode() && !cid.Node.Equal(k.nodeID) {
		// SPEC_FULL.md §9 Open Question resolution: reject a foreign-node
		// actor from the on-demand resolver to avoid routing loops.
		return nil, false, &errs.ResolveFailed{Id: id}
	}
	return candidate, true, nil
}

// Resolve looks up id and type-asserts the result to T. A local
// directory hit or a matching on-demand resolver result satisfies the
// lookup; a type mismatch against either source fails with
// ResolveFailedToMatchActorType. Go has no generic methods, so this is
// a package-level function taking the kernel explicitly.
func Resolve[T LocalActor](k *ActorSystem, id identity.ActorId) (T, bool, error) {
	var zero T
	actor, found, err := k.resolveAny(id)
	if err != nil {
		return zero, false, err
	}
	if !found {
		return zero, false, nil
	}
	t, ok := actor.(T)
	if !ok {
		return zero, false, &errs.ResolveFailedToMatchActorType{
			Id: id, Found: fmt.Sprintf("%T", actor), Expected: fmt.Sprintf("%T", zero),
		}
	}
	return t, true, nil
}

// MakeLocalActor is the explicit-builder substitute SPEC_FULL.md §9
// suggests for runtimes without task-locals: it mints the id (via
// AssignID), invokes factory synchronously with that id, and
// registers the result (via ActorReady) before returning it.
func MakeLocalActor[T LocalActor](k *ActorSystem, hint *identity.ActorId, actorType string, factory func(id identity.ActorId) T) T {
	id := k.AssignID(hint, actorType)
	actor := factory(id)
	k.ActorReady(actor)
	return actor
}

// RemoteCall resolves recipient to a RemoteNode, sends a Call
// envelope, and awaits the matching Reply, returning its Value bytes
// for the caller to decode.
func (k *ActorSystem) RemoteCall(ctx context.Context, recipient identity.ActorId, invocationTarget string, genericSubs []string, args [][]byte) ([]byte, error) {
	if !recipient.HasNode() {
		return nil, &errs.MissingNodeID{Id: recipient}
	}

	node, err := k.directory.RemoteNodeFor(recipient.Node, k.connectionTimeout)
	if err != nil {
		return nil, err
	}

	return k.pending.SendMessage(ctx, recipient.Node, func(callID wire.CallID) error {
		return node.Write(wire.NewCallEnvelope(wire.Call{
			CallID:           callID,
			Recipient:        recipient,
			InvocationTarget: invocationTarget,
			GenericSubs:      genericSubs,
			Args:             args,
		}))
	})
}

// RemoteCallVoid is RemoteCall with the reply value discarded.
func (k *ActorSystem) RemoteCallVoid(ctx context.Context, recipient identity.ActorId, invocationTarget string, genericSubs []string, args [][]byte) error {
	_, err := k.RemoteCall(ctx, recipient, invocationTarget, genericSubs, args)
	return err
}

// ShutdownGracefully cancels every connection manager in parallel and
// waits for all to terminate, then stops background work (sweeper,
// status page) and closes the diagnostics store.
func (k *ActorSystem) ShutdownGracefully() {
	k.cancel()

	k.managersMu.Lock()
	managers := append([]transport.Manager(nil), k.managers...)
	k.managersMu.Unlock()

	var wg sync.WaitGroup
	for _, m := range managers {
		wg.Add(1)
		go func(m transport.Manager) {
			defer wg.Done()
			m.Cancel()
			<-m.Done()
		}(m)
	}
	wg.Wait()

	if k.statusSrv != nil {
		k.statusSrv.Close()
	}
	if k.diagnosticsStore != nil {
		k.diagnosticsStore.Close()
	}
}
