package watch

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWatcher_Add(t *testing.T) {
	watcher := NewWatcher()

	watcher.Add(newFakeObserver())
	require.Equal(t, 1, watcher.Len())

	obs := newFakeObserver()
	watcher.Add(obs)
	require.Equal(t, 2, watcher.Len())

	watcher.Add(obs)
	require.Equal(t, 2, watcher.Len())

	fn := ObserverFunc(func(interface{}) {})
	watcher.Add(fn)
	watcher.Add(fn)
	require.Equal(t, 4, watcher.Len())
}

func TestWatcher_Remove(t *testing.T) {
	watcher := NewWatcher()
	watcher.Add(newFakeObserver())

	obs := newFakeObserver()
	watcher.Add(obs)
	require.Equal(t, 2, watcher.Len())

	watcher.Remove(obs)
	require.Equal(t, 1, watcher.Len())

	watcher.Remove(obs)
	require.Equal(t, 1, watcher.Len())
}

func TestWatcher_Notify(t *testing.T) {
	watcher := NewWatcher()

	var order []int

	first := &orderObserver{id: 1, order: &order}
	second := &orderObserver{id: 2, order: &order}

	watcher.Add(first)
	watcher.Add(second)

	watcher.Notify("event")
	require.Equal(t, []int{1, 2}, order)
	require.Equal(t, "event", first.last)
}

func TestWatcher_RemoveWhileNotified(t *testing.T) {
	watcher := NewWatcher()

	var self Observer
	calls := 0

	self = &funcObserver{fn: func(interface{}) {
		calls++
		watcher.Remove(self)
	}}

	watcher.Add(self)

	watcher.Notify(1)
	watcher.Notify(2)
	require.Equal(t, 1, calls)
	require.Equal(t, 0, watcher.Len())
}

// -----------------------------------------------------------------------------
// Utility functions

type fakeObserver struct {
	ch chan interface{}
}

func (o fakeObserver) NotifyCallback(evt interface{}) {
	o.ch <- evt
}

func newFakeObserver() fakeObserver {
	return fakeObserver{
		ch: make(chan interface{}, 1),
	}
}

type orderObserver struct {
	id    int
	order *[]int
	last  interface{}
}

func (o *orderObserver) NotifyCallback(evt interface{}) {
	*o.order = append(*o.order, o.id)
	o.last = evt
}

type funcObserver struct {
	fn func(interface{})
}

func (o *funcObserver) NotifyCallback(evt interface{}) {
	o.fn(evt)
}
