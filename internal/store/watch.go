package store

import (
	"context"
	"sync"

	"github.com/dvloznov/sms-ledger/internal/domain"
)

// Subscription is a live query over the transaction collection. Each value
// on Updates is a fully consistent snapshot taken at some point in time;
// slow consumers see the latest snapshot, never a backlog of stale ones.
type Subscription struct {
	ch     chan []*domain.Transaction
	cancel func()
	once   sync.Once
}

// Updates returns the snapshot channel. It is closed after Cancel.
func (s *Subscription) Updates() <-chan []*domain.Transaction { return s.ch }

// Cancel ends the subscription and closes the channel. Safe to call twice.
func (s *Subscription) Cancel() { s.once.Do(s.cancel) }

// CountSubscription is a live scalar query, used for the untagged count.
type CountSubscription struct {
	ch     chan int64
	cancel func()
	once   sync.Once
}

// Updates returns the count channel. It is closed after Cancel.
func (s *CountSubscription) Updates() <-chan int64 { return s.ch }

// Cancel ends the subscription and closes the channel. Safe to call twice.
func (s *CountSubscription) Cancel() { s.once.Do(s.cancel) }

// Snapshotter is the read side a Hub re-evaluates subscriptions against.
// Both store implementations satisfy it with their own snapshot logic.
type Snapshotter interface {
	Snapshot(q Query) []*domain.Transaction
	CountUntagged() int64
}

// Hub fans out change notifications to live-query subscribers. The owning
// store calls Publish after every successful write; the hub re-runs each
// subscriber's query and delivers the new result when it differs from the
// last one delivered.
type Hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]*querySub
	counts map[int]*countSub
	closed bool
}

type querySub struct {
	query Query
	ch    chan []*domain.Transaction
	last  []*domain.Transaction
	sent  bool
}

type countSub struct {
	ch   chan int64
	last int64
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		subs:   make(map[int]*querySub),
		counts: make(map[int]*countSub),
	}
}

// Subscribe registers a live query and immediately delivers the current
// snapshot. The subscription is removed when ctx ends or Cancel is called.
func (h *Hub) Subscribe(ctx context.Context, q Query, src Snapshotter) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++

	qs := &querySub{query: q, ch: make(chan []*domain.Transaction, 1)}
	sub := &Subscription{ch: qs.ch}
	sub.cancel = func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(qs.ch)
		}
	}

	if h.closed {
		close(qs.ch)
		sub.once.Do(func() {})
		return sub
	}

	h.subs[id] = qs
	deliver(qs, src.Snapshot(q))

	if ctx != nil && ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			sub.Cancel()
		}()
	}
	return sub
}

// SubscribeCount registers a live untagged-count query.
func (h *Hub) SubscribeCount(ctx context.Context, src Snapshotter) *CountSubscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++

	cs := &countSub{ch: make(chan int64, 1), last: -1}
	sub := &CountSubscription{ch: cs.ch}
	sub.cancel = func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.counts[id]; ok {
			delete(h.counts, id)
			close(cs.ch)
		}
	}

	if h.closed {
		close(cs.ch)
		sub.once.Do(func() {})
		return sub
	}

	h.counts[id] = cs
	deliverCount(cs, src.CountUntagged())

	if ctx != nil && ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			sub.Cancel()
		}()
	}
	return sub
}

// Publish re-evaluates every subscription against src and delivers changed
// results. The caller must invoke it after the write has fully committed so
// no subscriber can observe a partial write.
func (h *Hub) Publish(src Snapshotter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}

	for _, qs := range h.subs {
		deliver(qs, src.Snapshot(qs.query))
	}
	if len(h.counts) > 0 {
		n := src.CountUntagged()
		for _, cs := range h.counts {
			deliverCount(cs, n)
		}
	}
}

// Close ends every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, qs := range h.subs {
		delete(h.subs, id)
		close(qs.ch)
	}
	for id, cs := range h.counts {
		delete(h.counts, id)
		close(cs.ch)
	}
}

// deliver pushes a snapshot to one subscriber, dropping the previous
// undelivered snapshot so a slow consumer only ever sees the latest state.
func deliver(qs *querySub, snap []*domain.Transaction) {
	if qs.sent && sameResult(qs.last, snap) {
		return
	}
	qs.last = snap
	qs.sent = true
	select {
	case qs.ch <- snap:
	default:
		select {
		case <-qs.ch:
		default:
		}
		qs.ch <- snap
	}
}

func deliverCount(cs *countSub, n int64) {
	if cs.last == n {
		return
	}
	cs.last = n
	select {
	case cs.ch <- n:
	default:
		select {
		case <-cs.ch:
		default:
		}
		cs.ch <- n
	}
}

// sameResult compares two snapshots, so writes that do not affect a query
// produce no spurious emission.
func sameResult(a, b []*domain.Transaction) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !sameRecord(a[i], b[i]) {
			return false
		}
	}
	return true
}

// sameRecord compares every field a snapshot carries. A full Update may
// change any of them, so leaving one out here would silently suppress the
// emission for writes that touch only that field.
func sameRecord(x, y *domain.Transaction) bool {
	return x.ID == y.ID &&
		x.Amount.Equal(y.Amount) &&
		x.Direction == y.Direction &&
		x.AccountNumber == y.AccountNumber &&
		x.Date == y.Date &&
		x.Time == y.Time &&
		x.CounterpartyName == y.CounterpartyName &&
		x.Reference == y.Reference &&
		x.Institution == y.Institution &&
		x.UserTag == y.UserTag &&
		x.IsTagged == y.IsTagged &&
		x.EntryMethod == y.EntryMethod &&
		x.RawMessage == y.RawMessage &&
		x.CreatedAt.Equal(y.CreatedAt)
}
