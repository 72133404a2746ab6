package feed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dukerupert/reunite/internal/model"
)

type manualTicker struct {
	ch      chan time.Time
	stopped atomic.Bool
}

func setupManager(t *testing.T) (*Manager, *manualTicker) {
	t.Helper()
	mt := &manualTicker{ch: make(chan time.Time, 1)}
	m := NewManager(3*time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	m.newTicker = func(time.Duration) (<-chan time.Time, func()) {
		return mt.ch, func() { mt.stopped.Store(true) }
	}
	t.Cleanup(m.Close)
	return m, mt
}

type countingFetcher struct {
	mu      sync.Mutex
	calls   int
	msgs    []model.Message
	err     error
	fetched chan struct{}
}

func newCountingFetcher(msgs ...model.Message) *countingFetcher {
	return &countingFetcher{msgs: msgs, fetched: make(chan struct{}, 16)}
}

func (f *countingFetcher) fetch(ctx context.Context) ([]model.Message, error) {
	f.mu.Lock()
	f.calls++
	msgs, err := f.msgs, f.err
	f.mu.Unlock()
	f.fetched <- struct{}{}
	return msgs, err
}

func (f *countingFetcher) set(msgs ...model.Message) {
	f.mu.Lock()
	f.msgs = msgs
	f.mu.Unlock()
}

func (f *countingFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func waitFetch(t *testing.T, f *countingFetcher) {
	t.Helper()
	select {
	case <-f.fetched:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for fetch")
	}
}

func expectNoFetch(t *testing.T, f *countingFetcher) {
	t.Helper()
	select {
	case <-f.fetched:
		t.Fatal("unexpected fetch")
	case <-time.After(50 * time.Millisecond):
	}
}

func waitUpdate(t *testing.T, s *Subscription) Update {
	t.Helper()
	select {
	case u := <-s.C:
		return u
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for update")
	}
	return Update{}
}

func TestOneFetchPerTick(t *testing.T) {
	m, mt := setupManager(t)
	f := newCountingFetcher(model.Message{ID: 1, Content: "hi"})

	sub := m.Subscribe(Key{SessionID: 1, ClaimID: 3}, f.fetch)
	waitFetch(t, f)
	if u := waitUpdate(t, sub); len(u.Messages) != 1 {
		t.Fatalf("first update has %d messages, want 1", len(u.Messages))
	}
	expectNoFetch(t, f)

	for i := 0; i < 3; i++ {
		mt.ch <- time.Now()
		waitFetch(t, f)
		expectNoFetch(t, f)
	}
	if got := f.count(); got != 4 {
		t.Errorf("fetches = %d, want 4 (initial + one per tick)", got)
	}
}

func TestPushesOnlyChanges(t *testing.T) {
	m, mt := setupManager(t)
	f := newCountingFetcher(model.Message{ID: 1, Content: "hi"})

	sub := m.Subscribe(Key{SessionID: 1, ClaimID: 3}, f.fetch)
	waitFetch(t, f)
	waitUpdate(t, sub)

	mt.ch <- time.Now()
	waitFetch(t, f)
	select {
	case u := <-sub.C:
		t.Fatalf("unexpected update for unchanged thread: %+v", u)
	case <-time.After(50 * time.Millisecond):
	}

	f.set(model.Message{ID: 1, Content: "hi"}, model.Message{ID: 2, Content: "hello"})
	mt.ch <- time.Now()
	waitFetch(t, f)
	if u := waitUpdate(t, sub); len(u.Messages) != 2 {
		t.Errorf("update has %d messages, want 2", len(u.Messages))
	}
}

func TestStopsAfterLastSubscriberLeaves(t *testing.T) {
	m, mt := setupManager(t)
	f := newCountingFetcher()
	key := Key{SessionID: 1, ClaimID: 3}

	a := m.Subscribe(key, f.fetch)
	b := m.Subscribe(key, f.fetch)
	waitFetch(t, f)
	if m.Topics() != 1 {
		t.Fatalf("topics = %d, want 1 shared poller", m.Topics())
	}

	m.Unsubscribe(a)
	mt.ch <- time.Now()
	waitFetch(t, f)

	m.Unsubscribe(b)
	if m.Topics() != 0 {
		t.Errorf("topics = %d, want 0", m.Topics())
	}
	mt.ch <- time.Now()
	expectNoFetch(t, f)

	deadline := time.Now().Add(time.Second)
	for !mt.stopped.Load() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !mt.stopped.Load() {
		t.Error("expected ticker to be stopped")
	}
}

func TestDiscardsResultOfCancelledFetch(t *testing.T) {
	m, _ := setupManager(t)
	started := make(chan struct{})
	release := make(chan struct{})
	fetch := func(ctx context.Context) ([]model.Message, error) {
		close(started)
		<-release
		return []model.Message{{ID: 1}}, nil
	}

	sub := m.Subscribe(Key{SessionID: 1, ClaimID: 3}, fetch)
	<-started
	m.Unsubscribe(sub)
	close(release)

	select {
	case u := <-sub.C:
		t.Fatalf("cancelled fetch delivered %+v", u)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestFetchErrorIsDelivered(t *testing.T) {
	m, _ := setupManager(t)
	f := newCountingFetcher()
	f.err = errors.New("upstream down")

	sub := m.Subscribe(Key{SessionID: 1, ClaimID: 3}, f.fetch)
	if u := waitUpdate(t, sub); u.Err == nil {
		t.Error("expected error update")
	}
}

func TestLateSubscriberGetsLastThread(t *testing.T) {
	m, _ := setupManager(t)
	f := newCountingFetcher(model.Message{ID: 1, Content: "hi"})
	key := Key{SessionID: 1, ClaimID: 3}

	first := m.Subscribe(key, f.fetch)
	waitUpdate(t, first)

	late := m.Subscribe(key, f.fetch)
	if u := waitUpdate(t, late); len(u.Messages) != 1 {
		t.Errorf("late subscriber got %d messages, want 1", len(u.Messages))
	}
	if f.count() != 1 {
		t.Errorf("fetches = %d, want 1", f.count())
	}
}

func TestSubscribeAfterClose(t *testing.T) {
	m, _ := setupManager(t)
	m.Close()
	sub := m.Subscribe(Key{SessionID: 1, ClaimID: 3}, newCountingFetcher().fetch)
	if _, ok := <-sub.C; ok {
		t.Error("expected closed channel after Close")
	}
}

func TestCloseEndsSubscriptions(t *testing.T) {
	m, _ := setupManager(t)
	f := newCountingFetcher(model.Message{ID: 1, Content: "hi"})
	sub := m.Subscribe(Key{SessionID: 1, ClaimID: 4}, f.fetch)
	<-f.fetched

	m.Close()

	timeout := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-sub.C:
			if !ok {
				return
			}
		case <-timeout:
			t.Fatal("subscription channel not closed after Close")
		}
	}
}
