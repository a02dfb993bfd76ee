package kv

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"
)

func TestBoltDB_UpdateAndView(t *testing.T) {
	db := openDB(t)

	err := db.Update([]byte("bucket"), func(b Bucket) error {
		return b.Set([]byte("ping"), []byte("pong"))
	})
	require.NoError(t, err)

	err = db.View([]byte("bucket"), func(b Bucket) error {
		require.Equal(t, []byte("pong"), b.Get([]byte("ping")))
		return nil
	})
	require.NoError(t, err)

	err = db.View([]byte("unknown"), nil)
	require.EqualError(t, err, "bucket 'unknown' not found")
	require.True(t, xerrors.As(err, &BucketNotFoundError{}))

	err = db.Update(nil, nil)
	require.EqualError(t, err, "failed to create bucket: bucket name required")
}

func TestBoltDB_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	db, err := New(path)
	require.NoError(t, err)

	require.NoError(t, db.Update([]byte("b"), func(b Bucket) error {
		return b.Set([]byte("k"), []byte("v"))
	}))
	require.NoError(t, db.Close())

	db, err = New(path)
	require.NoError(t, err)

	defer db.Close()

	require.NoError(t, db.View([]byte("b"), func(b Bucket) error {
		require.Equal(t, []byte("v"), b.Get([]byte("k")))
		return nil
	}))

	_, err = New(filepath.Join(t.TempDir(), "unknown", "test.db"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to open db: ")
}

func TestBoltBucket_Get_Set_Delete(t *testing.T) {
	db := openDB(t)

	err := db.Update([]byte("bucket"), func(b Bucket) error {
		require.NoError(t, b.Set([]byte("ping"), []byte("pong")))
		require.Equal(t, []byte("pong"), b.Get([]byte("ping")))
		require.Nil(t, b.Get([]byte("pong")))

		require.NoError(t, b.Delete([]byte("ping")))
		require.Nil(t, b.Get([]byte("ping")))

		return nil
	})
	require.NoError(t, err)
}

func TestBoltBucket_ForEach(t *testing.T) {
	db := openDB(t)

	err := db.Update([]byte("bucket"), func(b Bucket) error {
		require.NoError(t, b.Set([]byte{2}, []byte{2}))
		require.NoError(t, b.Set([]byte{1}, []byte{1}))
		require.NoError(t, b.Set([]byte{0}, []byte{0}))

		var i byte
		return b.ForEach(func(k, v []byte) error {
			require.Equal(t, []byte{i}, k)
			require.Equal(t, []byte{i}, v)
			i++
			return nil
		})
	})
	require.NoError(t, err)
}

func TestBoltBucket_Scan(t *testing.T) {
	db := openDB(t)

	err := db.Update([]byte("bucket"), func(b Bucket) error {
		for _, k := range [][]byte{{1, 1}, {1, 2}, {2, 1}, {0, 9}} {
			require.NoError(t, b.Set(k, k))
		}

		var keys [][]byte
		require.NoError(t, b.Scan([]byte{1}, func(k, v []byte) error {
			keys = append(keys, append([]byte{}, k...))
			return nil
		}))
		require.Equal(t, [][]byte{{1, 1}, {1, 2}}, keys)

		err := b.Scan(nil, func(k, v []byte) error {
			return xerrors.New("oops")
		})
		require.EqualError(t, err, "callback failed: oops")

		return nil
	})
	require.NoError(t, err)
}

func TestBoltBucket_ReverseScan(t *testing.T) {
	db := openDB(t)

	err := db.Update([]byte("bucket"), func(b Bucket) error {
		for _, k := range [][]byte{{1, 1}, {1, 2}, {2, 1}, {0, 9}, {0xff, 1}, {0xff, 0xff, 2}} {
			require.NoError(t, b.Set(k, k))
		}

		collect := func(prefix []byte) [][]byte {
			var keys [][]byte
			require.NoError(t, b.ReverseScan(prefix, func(k, v []byte) error {
				keys = append(keys, append([]byte{}, k...))
				return nil
			}))
			return keys
		}

		require.Equal(t, [][]byte{{1, 2}, {1, 1}}, collect([]byte{1}))
		require.Equal(t, [][]byte{{2, 1}}, collect([]byte{2}))
		require.Equal(t, [][]byte{{0xff, 0xff, 2}, {0xff, 1}}, collect([]byte{0xff}))
		require.Len(t, collect(nil), 6)
		require.Empty(t, collect([]byte{3}))

		err := b.ReverseScan(nil, func(k, v []byte) error {
			return xerrors.New("oops")
		})
		require.EqualError(t, err, "callback failed: oops")

		return nil
	})
	require.NoError(t, err)
}

// -----------------------------------------------------------------------------
// Utility functions

func openDB(t *testing.T) DB {
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })

	return db
}
