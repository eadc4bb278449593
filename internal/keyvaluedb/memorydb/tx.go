package memorydb

import (
	"fmt"

	"github.com/alphabill-org/zkbridge/internal/keyvaluedb"
)

// Tx buffers changes until commit. Deleted keys are stored in changes with
// nil value, encoded values are never nil.
type Tx struct {
	mem     *MemoryDB
	changes map[string][]byte
	closed  bool
}

func (t *Tx) Read(key []byte, v any) (bool, error) {
	if err := keyvaluedb.CheckKeyAndValue(key, v); err != nil {
		return false, err
	}
	if t.closed {
		return false, fmt.Errorf("memdb tx read failed, %w", keyvaluedb.ErrTxClosed)
	}
	if data, ok := t.changes[string(key)]; ok {
		if data == nil {
			return false, nil
		}
		return true, t.mem.decoder(data, v)
	}
	return t.mem.Read(key, v)
}

func (t *Tx) Write(key []byte, value any) error {
	if err := keyvaluedb.CheckKeyAndValue(key, value); err != nil {
		return err
	}
	if t.closed {
		return fmt.Errorf("memdb tx write failed, %w", keyvaluedb.ErrTxClosed)
	}
	b, err := t.mem.encoder(value)
	if err != nil {
		return err
	}
	t.changes[string(key)] = b
	return nil
}

func (t *Tx) Delete(key []byte) error {
	if err := keyvaluedb.CheckKey(key); err != nil {
		return err
	}
	if t.closed {
		return fmt.Errorf("memdb tx delete failed, %w", keyvaluedb.ErrTxClosed)
	}
	t.changes[string(key)] = nil
	return nil
}

func (t *Tx) Rollback() error {
	if t.closed {
		return nil
	}
	t.close()
	return nil
}

func (t *Tx) Commit() error {
	if t.closed {
		return fmt.Errorf("memdb tx commit failed, %w", keyvaluedb.ErrTxClosed)
	}
	defer t.close()

	t.mem.lock.Lock()
	defer t.mem.lock.Unlock()
	newKeys := 0
	for k, v := range t.changes {
		if _, ok := t.mem.db[k]; !ok && v != nil {
			newKeys++
		}
	}
	if err := t.mem.checkWrite(newKeys); err != nil {
		return fmt.Errorf("memdb tx commit failed, %w", err)
	}
	for k, v := range t.changes {
		if v == nil {
			delete(t.mem.db, k)
		} else {
			t.mem.db[k] = v
		}
	}
	return nil
}

func (t *Tx) close() {
	t.closed = true
	t.changes = nil
	t.mem.txLock.Unlock()
}
