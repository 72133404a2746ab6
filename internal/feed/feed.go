// Package feed keeps claim message threads fresh for live viewers. One
// poller runs per topic while at least one subscriber is attached.
package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/reunite/internal/claim"
	"github.com/dukerupert/reunite/internal/metrics"
	"github.com/dukerupert/reunite/internal/model"
)

// Fetcher loads the current thread for a topic.
type Fetcher func(ctx context.Context) ([]model.Message, error)

// Key identifies a topic: one claim as seen by one browser session.
type Key struct {
	SessionID int64
	ClaimID   int64
}

// Update carries either a changed thread or a fetch error.
type Update struct {
	Messages []model.Message
	Err      error
}

// Subscription receives updates for one topic. Only the latest undelivered
// update is kept.
type Subscription struct {
	key Key
	C   <-chan Update
	c   chan Update
}

type topic struct {
	cancel context.CancelFunc
	subs   map[*Subscription]struct{}
	last   []model.Message
	seen   bool
}

// Manager owns the pollers.
type Manager struct {
	interval  time.Duration
	logger    *slog.Logger
	metrics   *metrics.Metrics
	newTicker func(time.Duration) (<-chan time.Time, func())

	mu     sync.Mutex
	topics map[Key]*topic
	closed bool
	wg     sync.WaitGroup
}

func NewManager(interval time.Duration, logger *slog.Logger, m *metrics.Metrics) *Manager {
	return &Manager{
		interval:  interval,
		logger:    logger,
		metrics:   m,
		newTicker: realTicker,
		topics:    make(map[Key]*topic),
	}
}

func realTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// Subscribe attaches to the topic for key, starting its poller if this is
// the first subscriber. fetch is only used when a poller is started.
func (m *Manager) Subscribe(key Key, fetch Fetcher) *Subscription {
	s := &Subscription{key: key, c: make(chan Update, 1)}
	s.C = s.c

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		close(s.c)
		return s
	}

	t, ok := m.topics[key]
	if !ok {
		ctx, cancel := context.WithCancel(context.Background())
		t = &topic{cancel: cancel, subs: make(map[*Subscription]struct{})}
		m.topics[key] = t
		m.metrics.FeedTopics(1)
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.poll(ctx, key, t, fetch)
		}()
	} else if t.seen {
		deliver(s, Update{Messages: t.last})
	}
	t.subs[s] = struct{}{}
	return s
}

// Unsubscribe detaches s. The last subscriber leaving cancels the poller;
// no fetch starts after that.
func (m *Manager) Unsubscribe(s *Subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.topics[s.key]
	if !ok {
		return
	}
	if _, ok := t.subs[s]; !ok {
		return
	}
	delete(t.subs, s)
	if len(t.subs) == 0 {
		t.cancel()
		delete(m.topics, s.key)
		m.metrics.FeedTopics(-1)
	}
}

// Topics returns the number of live topics.
func (m *Manager) Topics() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.topics)
}

// Close stops every poller, closes every subscription channel and waits
// for the pollers to exit.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	for key, t := range m.topics {
		t.cancel()
		for s := range t.subs {
			close(s.c)
		}
		delete(m.topics, key)
		m.metrics.FeedTopics(-1)
	}
	m.mu.Unlock()
	m.wg.Wait()
}

func (m *Manager) poll(ctx context.Context, key Key, t *topic, fetch Fetcher) {
	tick, stop := m.newTicker(m.interval)
	defer stop()

	for {
		if ctx.Err() != nil {
			return
		}
		m.fetchOnce(ctx, key, t, fetch)
		select {
		case <-ctx.Done():
			return
		case <-tick:
		}
	}
}

func (m *Manager) fetchOnce(ctx context.Context, key Key, t *topic, fetch Fetcher) {
	msgs, err := fetch(ctx)
	if ctx.Err() != nil {
		m.metrics.FeedPoll("discarded")
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// The topic may have been closed and reopened while fetching.
	if m.topics[key] != t {
		m.metrics.FeedPoll("discarded")
		return
	}
	if err != nil {
		m.metrics.FeedPoll("error")
		m.logger.Warn("feed fetch", "session_id", key.SessionID, "claim_id", key.ClaimID, "error", err)
		m.broadcast(t, Update{Err: err})
		return
	}

	msgs = claim.SortMessages(msgs)
	if t.seen && claim.SameThread(t.last, msgs) {
		m.metrics.FeedPoll("unchanged")
		return
	}
	t.last, t.seen = msgs, true
	m.metrics.FeedPoll("changed")
	m.broadcast(t, Update{Messages: msgs})
}

func (m *Manager) broadcast(t *topic, u Update) {
	for s := range t.subs {
		deliver(s, u)
	}
}

// deliver replaces any pending update with u. Callers hold m.mu, so no
// other sender races for the buffer slot.
func deliver(s *Subscription, u Update) {
	select {
	case s.c <- u:
		return
	default:
	}
	select {
	case <-s.c:
	default:
	}
	s.c <- u
}
