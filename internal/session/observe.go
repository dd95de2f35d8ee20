package session

import "context"

type subscriber struct {
	ch chan Snapshot
}

// Subscribe registers a reader. The current snapshot is delivered first. When
// the buffer is full the oldest pending snapshot is dropped, so a slow reader
// never blocks a transition and always converges on the latest state.
func (o *Orchestrator) Subscribe(buffer int) (<-chan Snapshot, func()) {
	if buffer < 1 {
		buffer = 1
	}
	sub := &subscriber{ch: make(chan Snapshot, buffer)}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		close(sub.ch)
		return sub.ch, func() {}
	}
	o.subs[sub] = struct{}{}
	sub.offer(o.snapshotLocked())

	return sub.ch, func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if _, ok := o.subs[sub]; ok {
			delete(o.subs, sub)
			close(sub.ch)
		}
	}
}

// Await blocks until a published snapshot satisfies done.
func (o *Orchestrator) Await(ctx context.Context, done func(Snapshot) bool) (Snapshot, error) {
	updates, unsubscribe := o.Subscribe(16)
	defer unsubscribe()

	var last Snapshot
	for {
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case snap, ok := <-updates:
			if !ok {
				return last, ErrClosed
			}
			last = snap
			if done(snap) {
				return snap, nil
			}
		}
	}
}

// Settled reports whether gen has stopped making progress: it reached a resting
// phase or was superseded by a newer generation.
func Settled(gen uint64) func(Snapshot) bool {
	return func(s Snapshot) bool {
		return s.Generation != gen || !s.Phase().InFlight()
	}
}

func (o *Orchestrator) publishLocked() {
	snap := o.snapshotLocked()
	for sub := range o.subs {
		sub.offer(snap)
	}
}

// offer performs a non-blocking, drop-oldest send. Callers hold the
// orchestrator lock, so offer is the only sender.
func (s *subscriber) offer(snap Snapshot) {
	for {
		select {
		case s.ch <- snap:
			return
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}
