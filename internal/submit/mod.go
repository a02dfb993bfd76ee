// Package submit executes the contract calls of the dApps, journals the
// resulting transactions and tracks them until they are final.
package submit

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.flashlend.io/stxdapp"
	"go.flashlend.io/stxdapp/contractcall"
	"go.flashlend.io/stxdapp/history"
	"go.flashlend.io/stxdapp/session"
	"go.flashlend.io/stxdapp/watch"
)

// Executor executes contract calls.
type Executor interface {
	Execute(ctx context.Context, sess *session.Session, req contractcall.Request) (contractcall.Result, error)
	Track(ctx context.Context, res contractcall.Result, opts ...watch.TrackerOption) *watch.Tracker
}

// Submission is a broadcast transaction. The tracker is nil when tracking is
// disabled or when the result is replayed.
type Submission struct {
	contractcall.Result

	Action  string
	Amount  string
	Tracker *watch.Tracker
}

// Submitter submits the actions of a dApp.
type Submitter struct {
	exec     Executor
	history  *history.Store
	group    *watch.Group
	interval time.Duration
	track    bool
	logger   zerolog.Logger
}

// Option is the type of options to create a submitter.
type Option func(*Submitter)

// WithHistory journals every submission in the store.
func WithHistory(store *history.Store) Option {
	return func(s *Submitter) {
		s.history = store
	}
}

// WithTracking starts a tracker for every submission. The trackers are added
// to the group so that they can be stopped together.
func WithTracking(group *watch.Group, interval time.Duration) Option {
	return func(s *Submitter) {
		s.track = true
		s.group = group
		s.interval = interval
	}
}

// WithLogger sets the logger of the submitter.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Submitter) {
		s.logger = logger
	}
}

// NewSubmitter creates a new submitter.
func NewSubmitter(exec Executor, opts ...Option) *Submitter {
	s := &Submitter{
		exec:     exec,
		interval: watch.DefaultTrackInterval,
		logger:   stxdapp.Logger,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Submit executes the request. The journal and the tracker are best effort
// and never fail a broadcast transaction.
func (s *Submitter) Submit(ctx context.Context, sess *session.Session, action, amount string,
	req contractcall.Request) (Submission, error) {

	res, err := s.exec.Execute(ctx, sess, req)
	if err != nil {
		return Submission{}, err
	}

	sub := Submission{
		Result: res,
		Action: action,
		Amount: amount,
	}

	if res.Replayed {
		// The first submission already journals and tracks the transaction.
		return sub, nil
	}

	if s.history != nil {
		_, err = s.history.Add(history.Record{
			TxID:     res.TxID,
			Action:   action,
			Contract: res.Contract.String(),
			Function: res.Function,
			Sender:   res.Sender.String(),
			Amount:   amount,
			Status:   res.Status,
		})
		if err != nil {
			s.logger.Warn().Err(err).Str("txid", res.TxID).Msg("failed to journal transaction")
		}
	}

	if s.track {
		opts := []watch.TrackerOption{watch.WithInterval(s.interval)}
		if s.history != nil {
			opts = append(opts, watch.WithObserver(s.history))
		}

		// The tracker outlives the request.
		sub.Tracker = s.exec.Track(context.Background(), res, opts...)

		if s.group != nil {
			s.group.Add(sub.Tracker.Start(context.Background()))
		}
	}

	return sub, nil
}
