package boltdb

import (
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/alphabill-org/zkbridge/internal/keyvaluedb"
)

type Tx struct {
	tx     *bolt.Tx
	b      *bolt.Bucket
	enc    EncodeFn
	dec    DecodeFn
	closed bool
}

func NewBoltTx(db *bolt.DB, bucket []byte, e EncodeFn, d DecodeFn) (*Tx, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	tx, err := db.Begin(true)
	if err != nil {
		return nil, err
	}
	b := tx.Bucket(bucket)
	if b == nil {
		return nil, fmt.Errorf("bucket %q not found, rollback: %v", bucket, tx.Rollback())
	}
	return &Tx{tx: tx, b: b, enc: e, dec: d}, nil
}

func (t *Tx) Read(key []byte, v any) (bool, error) {
	if err := keyvaluedb.CheckKeyAndValue(key, v); err != nil {
		return false, err
	}
	if t.closed {
		return false, fmt.Errorf("bolt tx read failed, %w", keyvaluedb.ErrTxClosed)
	}
	data := t.b.Get(key)
	if data == nil {
		return false, nil
	}
	return true, t.dec(data, v)
}

func (t *Tx) Write(key []byte, value any) error {
	if err := keyvaluedb.CheckKeyAndValue(key, value); err != nil {
		return err
	}
	if t.closed {
		return fmt.Errorf("bolt tx write failed, %w", keyvaluedb.ErrTxClosed)
	}
	b, err := t.enc(value)
	if err != nil {
		return err
	}
	return t.b.Put(key, b)
}

func (t *Tx) Delete(key []byte) error {
	if err := keyvaluedb.CheckKey(key); err != nil {
		return err
	}
	if t.closed {
		return fmt.Errorf("bolt tx delete failed, %w", keyvaluedb.ErrTxClosed)
	}
	return t.b.Delete(key)
}

func (t *Tx) Rollback() error {
	if t.closed {
		return nil
	}
	t.closed = true
	return t.tx.Rollback()
}

func (t *Tx) Commit() error {
	if t.closed {
		return fmt.Errorf("bolt tx commit failed, %w", keyvaluedb.ErrTxClosed)
	}
	t.closed = true
	return t.tx.Commit()
}
