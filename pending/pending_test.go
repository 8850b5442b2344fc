package pending

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nodecrew/actorkernel/identity"
	"github.com/nodecrew/actorkernel/wire"
)

func TestSendMessageReceivedReply(t *testing.T) {
	r := New()
	node := identity.NewNodeId()

	var sentID wire.CallID
	value, err := r.SendMessage(context.Background(), node, func(id wire.CallID) error {
		sentID = id
		go func() {
			if rerr := r.ReceivedReply(id, []byte("43")); rerr != nil {
				t.Errorf("ReceivedReply: %s", rerr)
			}
		}()
		return nil
	})
	if err != nil {
		t.Fatalf("SendMessage: %s", err)
	}
	if string(value) != "43" {
		t.Errorf("value = %q, want %q", value, "43")
	}
	if sentID.IsZero() {
		t.Errorf("send callback never saw a call id")
	}
}

func TestSendMessageSendFails(t *testing.T) {
	r := New()
	boom := errors.New("boom")

	_, err := r.SendMessage(context.Background(), identity.NewNodeId(), func(wire.CallID) error {
		return boom
	})
	if err != boom {
		t.Errorf("err = %v, want %v", err, boom)
	}
	if r.Len() != 0 {
		t.Errorf("a failed send left a dangling pending entry")
	}
}

func TestReceivedReplyUnknownCallID(t *testing.T) {
	r := New()
	err := r.ReceivedReply(wire.NewCallID(), []byte("x"))
	if err == nil {
		t.Fatalf("expected missingReplyContinuation for an unknown call id")
	}
}

func TestFailAll(t *testing.T) {
	r := New()
	boom := errors.New("connection lost")
	node := identity.NewNodeId()

	const n = 8
	var wg sync.WaitGroup
	errsCh := make(chan error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.SendMessage(context.Background(), node, func(wire.CallID) error { return nil })
			errsCh <- err
		}()
	}

	// Give the sends a moment to register before failing them all.
	time.Sleep(20 * time.Millisecond)
	r.FailAll(boom)

	wg.Wait()
	close(errsCh)
	for err := range errsCh {
		if err != boom {
			t.Errorf("err = %v, want %v", err, boom)
		}
	}
}

func TestFailForNodeOnlyAffectsThatNode(t *testing.T) {
	r := New()
	boom := errors.New("connection lost")
	nodeA := identity.NewNodeId()
	nodeB := identity.NewNodeId()

	aErrCh := make(chan error, 1)
	bErrCh := make(chan error, 1)

	go func() {
		_, err := r.SendMessage(context.Background(), nodeA, func(wire.CallID) error { return nil })
		aErrCh <- err
	}()
	go func() {
		_, err := r.SendMessage(context.Background(), nodeB, func(wire.CallID) error { return nil })
		bErrCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	n := r.FailForNode(nodeA, boom)
	if n != 1 {
		t.Fatalf("FailForNode failed %d entries, want 1", n)
	}

	if err := <-aErrCh; err != boom {
		t.Errorf("node A err = %v, want %v", err, boom)
	}

	select {
	case err := <-bErrCh:
		t.Fatalf("node B call resolved unexpectedly with %v", err)
	case <-time.After(30 * time.Millisecond):
	}

	r.FailAll(boom) // clean up node B's still-pending call
	if err := <-bErrCh; err != boom {
		t.Errorf("node B err = %v, want %v", err, boom)
	}
}

func TestSendMessageContextCancel(t *testing.T) {
	r := New()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		_, err := r.SendMessage(ctx, identity.NewNodeId(), func(wire.CallID) error { return nil })
		if err == nil {
			t.Errorf("expected context cancellation error")
		}
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()
	<-done

	if r.Len() != 0 {
		t.Errorf("cancelled send left a dangling pending entry")
	}
}

func TestExpireOlderThan(t *testing.T) {
	r := New()

	resultCh := make(chan error, 1)
	go func() {
		_, err := r.SendMessage(context.Background(), identity.NewNodeId(), func(wire.CallID) error { return nil })
		resultCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	n := r.ExpireOlderThan(10 * time.Millisecond)
	if n != 1 {
		t.Fatalf("ExpireOlderThan removed %d entries, want 1", n)
	}

	err := <-resultCh
	if err == nil {
		t.Fatalf("expected a staleCall error")
	}
}
