// Package history implements the local journal of the transactions submitted
// by the clients. Records are kept in a key/value database ordered by their
// creation time, and their status is updated by the transaction trackers.
//
// Documentation Last Review: 19.10.2026
//
package history

import (
	"encoding/json"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"go.flashlend.io/stxdapp"
	"go.flashlend.io/stxdapp/address"
	"go.flashlend.io/stxdapp/api"
	"go.flashlend.io/stxdapp/store/kv"
	"go.flashlend.io/stxdapp/watch"
	"golang.org/x/xerrors"
)

var (
	recordsBucket = []byte("history")
	txidBucket    = []byte("history-txid")
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = xerrors.New("record not found")

// Record is a transaction submitted by the user.
type Record struct {
	ID        xid.ID       `json:"id"`
	TxID      string       `json:"txid"`
	Action    string       `json:"action"`
	Contract  string       `json:"contract"`
	Function  string       `json:"function"`
	Sender    string       `json:"sender"`
	Amount    string       `json:"amount,omitempty"`
	Status    api.TxStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
}

// Store is the journal of transactions.
//
// - implements watch.Observer
type Store struct {
	db     kv.DB
	logger zerolog.Logger
}

// NewStore creates a journal using the database.
func NewStore(db kv.DB) *Store {
	return &Store{
		db:     db,
		logger: stxdapp.Logger.With().Str("component", "history").Logger(),
	}
}

// Add stores a new record. The identifier and the creation time are set if
// they are missing.
func (s *Store) Add(rec Record) (Record, error) {
	if rec.TxID == "" {
		return Record{}, xerrors.New("missing transaction id")
	}

	if rec.ID.IsNil() {
		rec.ID = xid.New()
	}

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = rec.ID.Time()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return Record{}, xerrors.Errorf("failed to encode record: %v", err)
	}

	err = s.db.Update(recordsBucket, func(b kv.Bucket) error {
		return b.Set(rec.ID.Bytes(), data)
	})
	if err != nil {
		return Record{}, xerrors.Errorf("failed to store record: %v", err)
	}

	err = s.db.Update(txidBucket, func(b kv.Bucket) error {
		return b.Set([]byte(rec.TxID), rec.ID.Bytes())
	})
	if err != nil {
		return Record{}, xerrors.Errorf("failed to index record: %v", err)
	}

	return rec, nil
}

// Get returns the record with the identifier.
func (s *Store) Get(id xid.ID) (Record, error) {
	var rec Record

	err := s.db.View(recordsBucket, func(b kv.Bucket) error {
		data := b.Get(id.Bytes())
		if data == nil {
			return ErrNotFound
		}

		return json.Unmarshal(data, &rec)
	})

	if err != nil {
		return Record{}, wrapRead(err, id.String())
	}

	return rec, nil
}

// GetByTxID returns the record of the transaction.
func (s *Store) GetByTxID(txid string) (Record, error) {
	var id xid.ID

	err := s.db.View(txidBucket, func(b kv.Bucket) error {
		data := b.Get([]byte(txid))
		if data == nil {
			return ErrNotFound
		}

		var err error
		id, err = xid.FromBytes(data)

		return err
	})

	if err != nil {
		return Record{}, wrapRead(err, txid)
	}

	return s.Get(id)
}

// UpdateStatus sets the status of the record of the transaction.
func (s *Store) UpdateStatus(txid string, status api.TxStatus) error {
	rec, err := s.GetByTxID(txid)
	if err != nil {
		return err
	}

	rec.Status = status

	data, err := json.Marshal(rec)
	if err != nil {
		return xerrors.Errorf("failed to encode record: %v", err)
	}

	err = s.db.Update(recordsBucket, func(b kv.Bucket) error {
		return b.Set(rec.ID.Bytes(), data)
	})
	if err != nil {
		return xerrors.Errorf("failed to store record: %v", err)
	}

	return nil
}

// List returns the most recent records first. The records are filtered by
// sender when the address is not empty, and limit is ignored when it is not
// positive.
func (s *Store) List(sender address.Address, limit int) ([]Record, error) {
	records := []Record{}

	stop := xerrors.New("limit reached")

	err := s.db.View(recordsBucket, func(b kv.Bucket) error {
		return b.ReverseScan(nil, func(k, v []byte) error {
			var rec Record

			err := json.Unmarshal(v, &rec)
			if err != nil {
				return xerrors.Errorf("record %x: %v", k, err)
			}

			if sender != "" && rec.Sender != sender.String() {
				return nil
			}

			records = append(records, rec)

			if limit > 0 && len(records) >= limit {
				return stop
			}

			return nil
		})
	})

	var notFound kv.BucketNotFoundError

	// The scan is interrupted with an error when the limit is reached.
	switch {
	case err == nil, xerrors.As(err, &notFound):
	case limit > 0 && len(records) == limit:
	default:
		return nil, xerrors.Errorf("failed to read records: %v", err)
	}

	return records, nil
}

// NotifyCallback implements watch.Observer. It updates the status of the
// records from the events of the trackers.
func (s *Store) NotifyCallback(event interface{}) {
	evt, ok := event.(watch.StatusEvent)
	if !ok {
		return
	}

	err := s.UpdateStatus(evt.TxID, evt.Status)
	if err != nil {
		s.logger.Warn().Err(err).Str("txid", evt.TxID).Msg("failed to update history")
	}
}

func wrapRead(err error, key string) error {
	var notFound kv.BucketNotFoundError

	if xerrors.Is(err, ErrNotFound) || xerrors.As(err, &notFound) {
		return xerrors.Errorf("%s: %w", key, ErrNotFound)
	}

	return xerrors.Errorf("failed to read record '%s': %v", key, err)
}
