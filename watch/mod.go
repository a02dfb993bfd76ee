// Package watch implements the observers of the asynchronous state of the
// module, the polling loops and the tracking of transactions until they
// reach a final status.
//
// Documentation Last Review: 19.10.2026
//
package watch

import "sync"

// Observer is the interface to implement to watch events.
type Observer interface {
	NotifyCallback(event interface{})
}

// ObserverFunc is an observer defined by a function.
//
// - implements watch.Observer
type ObserverFunc func(event interface{})

// NotifyCallback implements watch.Observer. It calls the function.
func (fn ObserverFunc) NotifyCallback(event interface{}) {
	fn(event)
}

// Observable provides primitives to add and remove observers and to notify
// them of new events.
type Observable interface {
	// Add adds the observer to the list of observers that will be notified of
	// new events.
	Add(observer Observer)

	// Remove removes the observer from the list thus stopping it from receiving
	// new events.
	Remove(observer Observer)

	// Notify notifies the observers of a new event.
	Notify(event interface{})
}

// Watcher is an implementation of the Observable interface. Observers are
// notified in the order they were added.
//
// - implements watch.Observable
type Watcher struct {
	sync.RWMutex

	observers []Observer
}

// NewWatcher creates a new empty watcher.
func NewWatcher() *Watcher {
	return &Watcher{}
}

// Add implements watch.Observable. An observer added twice is notified once.
func (w *Watcher) Add(observer Observer) {
	w.Lock()
	defer w.Unlock()

	if w.indexOf(observer) >= 0 {
		return
	}

	w.observers = append(w.observers, observer)
}

// Remove implements watch.Observable.
func (w *Watcher) Remove(observer Observer) {
	w.Lock()
	defer w.Unlock()

	i := w.indexOf(observer)
	if i < 0 {
		return
	}

	w.observers = append(w.observers[:i], w.observers[i+1:]...)
}

// Len returns the number of observers.
func (w *Watcher) Len() int {
	w.RLock()
	defer w.RUnlock()

	return len(w.observers)
}

// Notify implements watch.Observable. It notifies the observers one after
// each other, outside of the lock so that an observer can remove itself.
func (w *Watcher) Notify(event interface{}) {
	w.RLock()
	observers := append([]Observer{}, w.observers...)
	w.RUnlock()

	for _, obs := range observers {
		obs.NotifyCallback(event)
	}
}

func (w *Watcher) indexOf(observer Observer) int {
	for i, obs := range w.observers {
		if isSame(obs, observer) {
			return i
		}
	}

	return -1
}

// isSame compares two observers. Functions are not comparable, so observer
// functions are never considered the same unless they are pointers.
func isSame(a, b Observer) (same bool) {
	defer func() {
		if recover() != nil {
			same = false
		}
	}()

	return a == b
}
