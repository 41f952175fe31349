package bridge

import (
	"context"
	"errors"
	"testing"

	"github.com/manifesto-ai/intentcore/pkg/host"
	"github.com/manifesto-ai/intentcore/pkg/snapshot"
	"github.com/manifesto-ai/intentcore/pkg/value"
)

type fakeDispatcher struct {
	result host.HostResult
	err    error
	calls  int
}

func (f *fakeDispatcher) Dispatch(_ context.Context, intentID, action string, input value.Value, base snapshot.Snapshot) (host.HostResult, error) {
	f.calls++
	return f.result, f.err
}

func countObj(n float64) snapshot.Snapshot {
	return snapshot.Snapshot{Data: value.Object(map[string]value.Value{"count": value.Num(n)})}
}

func TestSubscribeReceivesCurrentThenUpdates(t *testing.T) {
	b := New("i1", countObj(0), nil)

	var got []float64
	unsub := b.Subscribe(func(s snapshot.Snapshot) {
		n, _ := value.Get(s.Data, value.ParsePath("count"))
		v, _ := n.AsNum()
		got = append(got, v)
	})
	defer unsub()

	b.Publish(countObj(1))
	b.Publish(countObj(2))

	if len(got) != 3 || got[0] != 0 || got[1] != 1 || got[2] != 2 {
		t.Fatalf("unexpected subscriber sequence: %v", got)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New("i1", countObj(0), nil)
	calls := 0
	unsub := b.Subscribe(func(snapshot.Snapshot) { calls++ })
	unsub()
	b.Publish(countObj(1))
	if calls != 1 {
		t.Fatalf("expected exactly the initial delivery, got %d calls", calls)
	}
}

func TestDisposeStopsDispatchAndGetSnapshot(t *testing.T) {
	fd := &fakeDispatcher{result: host.HostResult{Snapshot: countObj(5)}}
	b := New("i1", countObj(0), fd)
	b.Dispose()

	if _, ok := b.GetSnapshot(); ok {
		t.Fatal("expected GetSnapshot to report false once disposed")
	}
	if _, err := b.Dispatch(context.Background(), "increment", value.Null); !errors.Is(err, ErrDisposed) {
		t.Fatalf("expected ErrDisposed, got %v", err)
	}
	if fd.calls != 0 {
		t.Fatal("disposed bridge must not reach the dispatcher")
	}
}

func TestDispatchPublishesResult(t *testing.T) {
	fd := &fakeDispatcher{result: host.HostResult{Snapshot: countObj(1)}}
	b := New("i1", countObj(0), fd)

	var last float64
	b.Subscribe(func(s snapshot.Snapshot) {
		n, _ := value.Get(s.Data, value.ParsePath("count"))
		last, _ = n.AsNum()
	})

	if _, err := b.Dispatch(context.Background(), "increment", value.Null); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if last != 1 {
		t.Fatalf("expected subscriber to observe the dispatched result, got %v", last)
	}
}

func TestGetResolvesDataAndComputedPaths(t *testing.T) {
	snap := snapshot.Snapshot{
		Data:     value.Object(map[string]value.Value{"title": value.Str("hi")}),
		Computed: value.Object(map[string]value.Value{"total": value.Num(42)}),
	}
	b := New("i1", snap, nil)

	v, ok := b.Get("title")
	if !ok {
		t.Fatal("expected data.title to resolve")
	}
	if s, _ := v.AsStr(); s != "hi" {
		t.Fatalf("expected \"hi\", got %v", v)
	}

	v, ok = b.Get("computed.total")
	if !ok {
		t.Fatal("expected computed.total to resolve")
	}
	if n, _ := v.AsNum(); n != 42 {
		t.Fatalf("expected 42, got %v", v)
	}
}
