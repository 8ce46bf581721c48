package download

import "sync"

// Subscriber is the listener half of a download manager.
type Subscriber interface {
	AddListener(l Listener) ListenerID
	RemoveListener(id ListenerID) bool
}

// Watcher waits for one download to settle. It registers its listener before
// the download id is known so that no state change is lost: deltas arriving
// early are buffered and replayed by Bind.
//
// The settle callback runs at most once, and the listener is removed exactly
// once, whichever of settle or Stop comes first.
type Watcher struct {
	sub      Subscriber
	onSettle func(Delta)

	mu      sync.Mutex
	id      int
	bound   bool
	pending []Delta
	lid     ListenerID

	settle sync.Once
	remove sync.Once
}

// Watch starts watching. Call Bind with the id returned by Download.
func Watch(sub Subscriber, onSettle func(Delta)) *Watcher {
	w := &Watcher{sub: sub, onSettle: onSettle}
	w.mu.Lock()
	w.lid = sub.AddListener(w.listen)
	w.mu.Unlock()
	return w
}

func (w *Watcher) listen(d Delta) {
	w.mu.Lock()
	if !w.bound {
		w.pending = append(w.pending, d)
		w.mu.Unlock()
		return
	}
	id := w.id
	w.mu.Unlock()
	w.handle(d, id)
}

// Bind sets the download id to watch and replays buffered deltas.
func (w *Watcher) Bind(id int) {
	w.mu.Lock()
	w.id = id
	w.bound = true
	replay := w.pending
	w.pending = nil
	w.mu.Unlock()

	for _, d := range replay {
		w.handle(d, id)
	}
}

func (w *Watcher) handle(d Delta, id int) {
	if d.ID != id || !d.Terminal() {
		return
	}
	w.settle.Do(func() {
		w.Stop()
		w.onSettle(d)
	})
}

// Stop removes the listener. It is safe to call any number of times.
func (w *Watcher) Stop() {
	w.remove.Do(func() {
		w.mu.Lock()
		lid := w.lid
		w.mu.Unlock()
		w.sub.RemoveListener(lid)
	})
}
