package memorydb

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alphabill-org/zkbridge/internal/keyvaluedb"
)

type record struct {
	_      struct{} `cbor:",toarray"`
	Name   string
	Amount uint64
}

func isEmpty(t *testing.T, db *MemoryDB) bool {
	empty, err := keyvaluedb.IsEmpty(db)
	require.NoError(t, err)
	return empty
}

func TestMemDB_IsEmpty(t *testing.T) {
	db := New()
	require.True(t, isEmpty(t, db))
	require.True(t, db.Empty())
	require.NoError(t, db.Write([]byte("foo"), "test"))
	require.False(t, isEmpty(t, db))
	require.False(t, db.Empty())

	empty, err := keyvaluedb.IsEmpty(nil)
	require.ErrorContains(t, err, "db is nil")
	require.True(t, empty)
}

func TestMemDB_ReadWriteDelete(t *testing.T) {
	db := New()
	var r record
	found, err := db.Read([]byte("r"), &r)
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, db.Write([]byte("r"), &record{Name: "alice", Amount: 10}))
	found, err = db.Read([]byte("r"), &r)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "alice", r.Name)
	require.EqualValues(t, 10, r.Amount)

	require.NoError(t, db.Delete([]byte("r")))
	found, err = db.Read([]byte("r"), &r)
	require.NoError(t, err)
	require.False(t, found)
	// deleting missing key
	require.NoError(t, db.Delete([]byte("r")))
}

func TestMemDB_InvalidInput(t *testing.T) {
	db := New()
	var r *record
	_, err := db.Read([]byte("r"), r)
	require.ErrorIs(t, err, keyvaluedb.ErrValueIsNil)
	_, err = db.Read(nil, &record{})
	require.ErrorIs(t, err, keyvaluedb.ErrInvalidKey)
	require.ErrorIs(t, db.Write([]byte{}, "a"), keyvaluedb.ErrInvalidKey)
	require.ErrorIs(t, db.Write([]byte("a"), nil), keyvaluedb.ErrValueIsNil)
	require.ErrorIs(t, db.Delete(nil), keyvaluedb.ErrInvalidKey)
	require.Error(t, db.Write([]byte("a"), make(chan int)))
}

func TestMemDB_Limiter(t *testing.T) {
	db := NewWithLimiter(1)
	require.NoError(t, db.Write([]byte("a"), "1"))
	// overwrite does not add a key
	require.NoError(t, db.Write([]byte("a"), "2"))
	require.ErrorContains(t, db.Write([]byte("b"), "1"), "disk is full")

	tx, err := db.StartTx()
	require.NoError(t, err)
	require.NoError(t, tx.Write([]byte("b"), "1"))
	require.ErrorContains(t, tx.Commit(), "disk is full")
	require.False(t, exists(t, db, "b"))
}

func TestMemDB_Iterator(t *testing.T) {
	db := New()
	for _, k := range []string{"ramp:2", "platform:1", "ramp:1", "proof:1"} {
		require.NoError(t, db.Write([]byte(k), k))
	}
	var keys []string
	it := db.First()
	for ; it.Valid(); it.Next() {
		var v string
		require.NoError(t, it.Value(&v))
		require.Equal(t, string(it.Key()), v)
		keys = append(keys, v)
	}
	require.NoError(t, it.Close())
	require.Equal(t, []string{"platform:1", "proof:1", "ramp:1", "ramp:2"}, keys)
	require.Nil(t, it.Key())
	require.Error(t, it.Value(new(string)))

	it = db.Find([]byte("q"))
	require.True(t, it.Valid())
	require.Equal(t, "ramp:1", string(it.Key()))
	require.NoError(t, it.Close())

	it = db.Find([]byte("z"))
	require.False(t, it.Valid())

	keys = nil
	require.NoError(t, keyvaluedb.ForEach(db, []byte("ramp:"), func(key []byte, it keyvaluedb.Iterator) error {
		keys = append(keys, string(key))
		return nil
	}))
	require.Equal(t, []string{"ramp:1", "ramp:2"}, keys)

	expErr := errors.New("stop")
	require.ErrorIs(t, keyvaluedb.ForEach(db, []byte("p"), func([]byte, keyvaluedb.Iterator) error { return expErr }), expErr)
}

func exists(t *testing.T, db keyvaluedb.Reader, key string) bool {
	var v string
	found, err := db.Read([]byte(key), &v)
	require.NoError(t, err)
	return found
}

func TestMemDBTx_CommitAndRollback(t *testing.T) {
	db := New()
	require.NoError(t, db.Write([]byte("keep"), "0"))
	require.NoError(t, db.Write([]byte("gone"), "0"))

	tx, err := db.StartTx()
	require.NoError(t, err)
	require.NoError(t, tx.Write([]byte("test1"), "1"))
	require.NoError(t, tx.Delete([]byte("gone")))

	// tx sees its own changes, db does not
	require.True(t, exists(t, tx, "test1"))
	require.False(t, exists(t, tx, "gone"))
	require.True(t, exists(t, tx, "keep"))
	require.False(t, exists(t, db, "test1"))
	require.True(t, exists(t, db, "gone"))

	require.NoError(t, tx.Commit())
	require.True(t, exists(t, db, "test1"))
	require.False(t, exists(t, db, "gone"))

	tx, err = db.StartTx()
	require.NoError(t, err)
	require.NoError(t, tx.Write([]byte("test2"), "2"))
	require.NoError(t, tx.Delete([]byte("keep")))
	require.NoError(t, tx.Rollback())
	require.False(t, exists(t, db, "test2"))
	require.True(t, exists(t, db, "keep"))
	// second rollback is no-op
	require.NoError(t, tx.Rollback())
}

func TestMemDBTx_UseAfterClose(t *testing.T) {
	db := New()
	tx, err := db.StartTx()
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	var val string
	found, err := tx.Read([]byte("test"), &val)
	require.False(t, found)
	require.ErrorIs(t, err, keyvaluedb.ErrTxClosed)
	require.ErrorIs(t, tx.Write([]byte("test"), "1"), keyvaluedb.ErrTxClosed)
	require.ErrorIs(t, tx.Delete([]byte("test")), keyvaluedb.ErrTxClosed)
	require.ErrorIs(t, tx.Commit(), keyvaluedb.ErrTxClosed)
}

func TestMemDBTx_WriteError(t *testing.T) {
	db := New()
	tx, err := db.StartTx()
	require.NoError(t, err)
	require.NoError(t, tx.Write([]byte("a"), "1"))
	expErr := errors.New("io error")
	db.SetWriteError(expErr)
	require.ErrorIs(t, tx.Commit(), expErr)
	require.True(t, db.Empty())

	db.SetWriteError(nil)
	require.NoError(t, db.Write([]byte("a"), "1"))
}

func TestMemDBTx_Serialized(t *testing.T) {
	db := New()
	tx, err := db.StartTx()
	require.NoError(t, err)

	var wg sync.WaitGroup
	started := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		tx2, err := db.StartTx()
		close(started)
		require.NoError(t, err)
		require.True(t, exists(t, tx2, "first"))
		require.NoError(t, tx2.Rollback())
	}()

	select {
	case <-started:
		t.Fatal("second transaction started while the first is active")
	case <-time.After(50 * time.Millisecond):
	}
	require.NoError(t, tx.Write([]byte("first"), "1"))
	require.NoError(t, tx.Commit())
	wg.Wait()
}

func TestMemDB_LargeArray(t *testing.T) {
	db := New()
	// more elements than the default CBOR decoder accepts
	values := make([]uint64, 1<<17+1)
	for i := range values {
		values[i] = uint64(i)
	}
	require.NoError(t, db.Write([]byte("v"), values))
	var got []uint64
	found, err := db.Read([]byte("v"), &got)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, values, got)
}
