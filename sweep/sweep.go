// Package sweep implements the directory sweeper (SPEC_FULL.md §4.9):
// a cron-scheduled goroutine that expires stale pending replies and
// periodically snapshots the remote-node directory's size.
//
// Grounded on the teacher's interpreters/ecmascript and
// interpreters/goja packages, both of which use
// github.com/gorhill/cronexpr to schedule a follow-up action
// invocation from a cron string; here the "action" is housekeeping
// rather than user action code.
package sweep

import (
	"context"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/gorhill/cronexpr"

	"github.com/nodecrew/actorkernel/diagnostics"
	"github.com/nodecrew/actorkernel/identity"
)

// PendingExpirer is the subset of pending.Registry the sweeper needs.
type PendingExpirer interface {
	ExpireOlderThan(maxAge time.Duration) int
}

// DirectorySnapshotter is the subset of directory.Directory the
// sweeper needs.
type DirectorySnapshotter interface {
	Snapshot() []identity.NodeId
}

// Sweeper runs a cron-scheduled housekeeping loop until its context is
// cancelled.
type Sweeper struct {
	schedule   *cronexpr.Expression
	maxCallAge time.Duration
	pending    PendingExpirer
	directory  DirectorySnapshotter
	localNode  identity.NodeId
	store      *diagnostics.Store // may be nil
}

// New parses schedule (a cron expression in gorhill/cronexpr syntax)
// and returns a Sweeper, or an error if the expression is malformed.
// A six-field schedule is read as seconds through day-of-week, so
// "* * * * * *" ticks every second; five fields have minute
// resolution, and seven fields add a trailing year.
func New(schedule string, maxCallAge time.Duration, localNode identity.NodeId, pending PendingExpirer, dir DirectorySnapshotter, store *diagnostics.Store) (*Sweeper, error) {
	// cronexpr itself reads six fields as minutes through year; a
	// trailing year wildcard makes the first field seconds instead.
	if len(strings.Fields(schedule)) == 6 {
		schedule += " *"
	}
	expr, err := cronexpr.Parse(schedule)
	if err != nil {
		return nil, err
	}
	return &Sweeper{
		schedule:   expr,
		maxCallAge: maxCallAge,
		pending:    pending,
		directory:  dir,
		localNode:  localNode,
		store:      store,
	}, nil
}

// Run loops, sleeping until the next scheduled tick, until ctx is
// cancelled. Intended to be started on its own goroutine by the
// kernel and torn down as part of shutdownGracefully.
func (s *Sweeper) Run(ctx context.Context) {
	for {
		next := s.schedule.Next(time.Now())
		wait := time.Until(next)
		if wait < 0 {
			wait = 0
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.tick()
		}
	}
}

func (s *Sweeper) tick() {
	if n := s.pending.ExpireOlderThan(s.maxCallAge); n > 0 {
		log.Printf("sweep: expired %d stale pending call(s)", n)
	}

	if s.store == nil {
		return
	}
	peers := s.directory.Snapshot()
	if err := s.store.Record(diagnostics.ConnectionEvent{
		NodeID: s.localNode,
		Kind:   "directory-size",
		At:     time.Now(),
		Detail: directorySizeDetail(len(peers)),
	}); err != nil {
		log.Printf("sweep: recording directory snapshot: %s", err)
	}
}

func directorySizeDetail(n int) string {
	if n == 1 {
		return "1 live peer"
	}
	return strconv.Itoa(n) + " live peers"
}
