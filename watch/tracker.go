package watch

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.flashlend.io/stxdapp"
	"go.flashlend.io/stxdapp/api"
)

// DefaultTrackInterval is the default interval between two status requests.
const DefaultTrackInterval = 10 * time.Second

var (
	promTracked = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "stxdapp_tracked_transactions",
		Help: "number of transactions being tracked",
	})

	promFinal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stxdapp_tx_final_status_total",
		Help: "total number of tracked transactions per final status",
	}, []string{"status"})
)

func init() {
	stxdapp.PromCollectors = append(stxdapp.PromCollectors, promTracked, promFinal)
}

// StatusSource returns the status of a transaction.
type StatusSource interface {
	TxStatus(ctx context.Context, txid string) (api.TxStatus, error)
}

// StatusEvent is the event sent to the observers of a tracker when the
// status of the transaction changes.
type StatusEvent struct {
	TxID   string
	Status api.TxStatus
}

// Tracker polls the status of a transaction until it is final.
//
// - implements watch.Observable
type Tracker struct {
	*Watcher

	mu       sync.Mutex
	txid     string
	source   StatusSource
	interval time.Duration
	logger   zerolog.Logger

	status api.TxStatus
	handle *Handle
}

// TrackerOption is the type of options to create a tracker.
type TrackerOption func(*Tracker)

// WithInterval sets the interval between two requests.
func WithInterval(interval time.Duration) TrackerOption {
	return func(t *Tracker) {
		t.interval = interval
	}
}

// WithTrackerLogger sets the logger of the tracker.
func WithTrackerLogger(logger zerolog.Logger) TrackerOption {
	return func(t *Tracker) {
		t.logger = logger
	}
}

// WithObserver adds an observer before the tracker starts.
func WithObserver(obs Observer) TrackerOption {
	return func(t *Tracker) {
		t.Add(obs)
	}
}

// NewTracker creates a tracker for the transaction. It does nothing until
// it is started.
func NewTracker(source StatusSource, txid string, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		Watcher:  NewWatcher(),
		txid:     txid,
		source:   source,
		interval: DefaultTrackInterval,
		logger:   stxdapp.Logger,
	}

	for _, opt := range opts {
		opt(t)
	}

	t.logger = t.logger.With().Str("txid", txid).Logger()

	return t
}

// TxID returns the identifier of the tracked transaction.
func (t *Tracker) TxID() string {
	return t.txid
}

// Status returns the last known status.
func (t *Tracker) Status() api.TxStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.status
}

// Start starts polling. It returns the handle of the loop that can be used
// to wait for the final status. Starting twice returns the same handle.
func (t *Tracker) Start(ctx context.Context) *Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.handle != nil {
		return t.handle
	}

	promTracked.Inc()

	t.handle = every(ctx, t.interval, t.poll, t.logger)

	go func(h *Handle) {
		<-h.Done()
		promTracked.Dec()
	}(t.handle)

	return t.handle
}

// Stop stops polling. It is safe to call it before Start or several times.
func (t *Tracker) Stop() {
	t.mu.Lock()
	h := t.handle
	t.mu.Unlock()

	if h != nil {
		h.Stop()
	}
}

func (t *Tracker) poll(ctx context.Context) error {
	status, err := t.source.TxStatus(ctx, t.txid)
	if err != nil {
		return err
	}

	t.mu.Lock()
	changed := status != t.status
	t.status = status
	t.mu.Unlock()

	if changed {
		t.logger.Info().Stringer("status", status).Msg("transaction status")
		t.Notify(StatusEvent{TxID: t.txid, Status: status})
	}

	if status.Terminal() {
		promFinal.WithLabelValues(status.String()).Inc()
		return ErrStop
	}

	return nil
}
