package keyvaluedb

import "fmt"

// Reader interface for DB
type Reader interface {
	// Read decodes the value stored for the key into "value". Returns false
	// when the key is not present.
	Read(key []byte, value any) (bool, error)
}

// Writer interface for DB
type Writer interface {
	// Write encodes the value and stores it under the key.
	Write(key []byte, value any) error
	// Delete removes the key, deleting a missing key is not an error.
	Delete(key []byte) error
}

// DBTx interface for database transactions.
// NB! all transactions MUST be completed by either calling Commit() or Rollback().
// Only one read-write transaction is allowed at a time, StartTx blocks until
// the previous transaction has completed.
type DBTx interface {
	StartTx() (DBTransaction, error)
}

type KeyValueDB interface {
	Reader
	Writer
	Iterable
	DBTx
	Close() error
}

type Iterator interface {
	// Next moves the iterator to the next key value pair
	Next()
	// Valid returns false when the iterator is exhausted
	Valid() bool
	// Key returns the key of the current key/value pair, or nil if not valid.
	Key() []byte
	// Value decodes the value of the current key/value pair.
	Value(value any) error
	// Close releases associated resources, can be called multiple times.
	Close() error
}

type Iterable interface {
	// First creates a binary-alphabetical forward iterator starting with the first item.
	// NB! when done iterator MUST be released with Close()
	First() Iterator
	// Find returns forward iterator starting from the first key >= key.
	// NB! when done iterator MUST be released with Close()
	Find(key []byte) Iterator
}

// DBTransaction key value database transaction
type DBTransaction interface {
	Writer
	Reader
	// Commit commits all pending changes
	Commit() error
	// Rollback reverts everything and nothing is changed
	Rollback() error
}

// IsEmpty returns true if the key value DB is empty
func IsEmpty(db KeyValueDB) (empty bool, err error) {
	if db == nil {
		return true, fmt.Errorf("db is nil")
	}
	it := db.First()
	defer func() { err = it.Close() }()
	return !it.Valid(), err
}
