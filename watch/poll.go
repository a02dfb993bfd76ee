package watch

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.flashlend.io/stxdapp"
	"golang.org/x/xerrors"
)

// ErrStop can be returned by a polling function to end the loop.
var ErrStop = xerrors.New("stop polling")

// PollFunc is the function called at each tick of a polling loop.
type PollFunc func(ctx context.Context) error

// Handle controls a polling loop.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Stop ends the loop. It can be called several times and from the polling
// function itself. It does not wait for the loop to return, use Done for
// that.
func (h *Handle) Stop() {
	h.cancel()
}

// Done returns a channel closed when the loop has returned.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Every calls the function immediately and then at each interval until the
// handle is stopped, the context is done, or the function returns ErrStop.
// Other errors are logged and the loop continues.
func Every(ctx context.Context, interval time.Duration, fn PollFunc) *Handle {
	return every(ctx, interval, fn, stxdapp.Logger)
}

func every(ctx context.Context, interval time.Duration, fn PollFunc, logger zerolog.Logger) *Handle {
	ctx, cancel := context.WithCancel(ctx)

	h := &Handle{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(h.done)
		defer cancel()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			err := fn(ctx)
			if xerrors.Is(err, ErrStop) {
				return
			}

			if err != nil && ctx.Err() == nil {
				logger.Warn().Err(err).Msg("polling failed")
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return h
}

// Group gathers handles so that they can be stopped together.
type Group struct {
	sync.Mutex

	handles map[*Handle]struct{}
}

// NewGroup creates an empty group.
func NewGroup() *Group {
	return &Group{
		handles: make(map[*Handle]struct{}),
	}
}

// Add adds the handle to the group. It is removed once the loop returns.
func (g *Group) Add(h *Handle) {
	g.Lock()
	g.handles[h] = struct{}{}
	g.Unlock()

	go func() {
		<-h.Done()

		g.Lock()
		delete(g.handles, h)
		g.Unlock()
	}()
}

// Len returns the number of running loops.
func (g *Group) Len() int {
	g.Lock()
	defer g.Unlock()

	return len(g.handles)
}

// StopAll stops every loop of the group and waits for them to return.
func (g *Group) StopAll() {
	g.Lock()
	handles := make([]*Handle, 0, len(g.handles))
	for h := range g.handles {
		handles = append(handles, h)
	}
	g.Unlock()

	for _, h := range handles {
		h.Stop()
	}

	for _, h := range handles {
		<-h.Done()
	}
}
