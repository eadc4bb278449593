package memorydb

import (
	"fmt"
	"sync"

	"github.com/alphabill-org/zkbridge/internal/keyvaluedb"
	"github.com/alphabill-org/zkbridge/internal/types"
)

type (
	EncodeFn func(v any) ([]byte, error)
	DecodeFn func(data []byte, v any) error

	// MemoryDB is map based key value store, meant for tests and for
	// nodes that do not need to persist state.
	MemoryDB struct {
		db       map[string][]byte
		encoder  EncodeFn
		decoder  DecodeFn
		limit    int
		writeErr error
		lock     sync.RWMutex
		// held by the active transaction
		txLock sync.Mutex
	}
)

func New() *MemoryDB {
	return &MemoryDB{
		db:      make(map[string][]byte),
		encoder: types.Cbor.Marshal,
		decoder: types.Cbor.Unmarshal,
	}
}

// NewWithLimiter can be used to test disk full scenarios, writes fail
// when the DB holds "limit" keys.
func NewWithLimiter(limit int) *MemoryDB {
	db := New()
	db.limit = limit
	return db
}

// Empty returns true if no values are stored in db
func (db *MemoryDB) Empty() bool {
	db.lock.RLock()
	defer db.lock.RUnlock()
	return len(db.db) == 0
}

func (db *MemoryDB) Read(key []byte, value any) (bool, error) {
	if err := keyvaluedb.CheckKeyAndValue(key, value); err != nil {
		return false, err
	}
	db.lock.RLock()
	defer db.lock.RUnlock()
	if data, ok := db.db[string(key)]; ok {
		return true, db.decoder(data, value)
	}
	return false, nil
}

func (db *MemoryDB) Write(key []byte, value any) error {
	if err := keyvaluedb.CheckKeyAndValue(key, value); err != nil {
		return err
	}
	b, err := db.encoder(value)
	if err != nil {
		return err
	}
	db.lock.Lock()
	defer db.lock.Unlock()
	newKeys := 1
	if _, ok := db.db[string(key)]; ok {
		newKeys = 0
	}
	if err := db.checkWrite(newKeys); err != nil {
		return err
	}
	db.db[string(key)] = b
	return nil
}

func (db *MemoryDB) Delete(key []byte) error {
	if err := keyvaluedb.CheckKey(key); err != nil {
		return err
	}
	db.lock.Lock()
	defer db.lock.Unlock()
	delete(db.db, string(key))
	return nil
}

func (db *MemoryDB) First() keyvaluedb.Iterator {
	db.lock.RLock()
	defer db.lock.RUnlock()
	it := newIterator(db.db, db.decoder)
	it.first()
	return it
}

func (db *MemoryDB) Find(key []byte) keyvaluedb.Iterator {
	db.lock.RLock()
	defer db.lock.RUnlock()
	it := newIterator(db.db, db.decoder)
	it.seek(key)
	return it
}

func (db *MemoryDB) StartTx() (keyvaluedb.DBTransaction, error) {
	db.txLock.Lock()
	return &Tx{mem: db, changes: map[string][]byte{}}, nil
}

func (db *MemoryDB) Close() error {
	return nil
}

// SetWriteError makes all subsequent writes (and transaction commits) fail
// with err, nil restores normal operation.
func (db *MemoryDB) SetWriteError(err error) {
	db.lock.Lock()
	defer db.lock.Unlock()
	db.writeErr = err
}

// checkWrite must be called holding the lock.
func (db *MemoryDB) checkWrite(newKeys int) error {
	if db.writeErr != nil {
		return db.writeErr
	}
	if db.limit > 0 && len(db.db)+newKeys > db.limit {
		return fmt.Errorf("write failed, disk is full")
	}
	return nil
}
