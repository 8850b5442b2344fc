package sweep

import (
	"context"
	"testing"
	"time"

	"github.com/nodecrew/actorkernel/identity"
)

type fakeExpirer struct {
	calls chan time.Duration
}

func (f *fakeExpirer) ExpireOlderThan(maxAge time.Duration) int {
	f.calls <- maxAge
	return 0
}

type fakeDir struct{}

func (fakeDir) Snapshot() []identity.NodeId { return nil }

func TestSweeperTicksOnSchedule(t *testing.T) {
	fe := &fakeExpirer{calls: make(chan time.Duration, 4)}

	s, err := New("* * * * * *", 5*time.Minute, identity.NewNodeId(), fe, fakeDir{}, nil)
	if err != nil {
		t.Fatalf("New: %s", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	select {
	case age := <-fe.calls:
		if age != 5*time.Minute {
			t.Errorf("maxAge = %s, want 5m", age)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("sweeper never ticked")
	}
}

func TestNewRejectsBadSchedule(t *testing.T) {
	_, err := New("not a cron expression", time.Minute, identity.NewNodeId(), nil, nil, nil)
	if err == nil {
		t.Fatalf("expected a parse error")
	}
}
