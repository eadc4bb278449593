package keyvaluedb

import (
	"bytes"
	"errors"
	"reflect"
)

var (
	ErrInvalidKey = errors.New("invalid key")
	ErrValueIsNil = errors.New("value is nil")
	ErrTxClosed   = errors.New("tx closed")
)

func CheckKey(key []byte) error {
	if len(key) == 0 {
		return ErrInvalidKey
	}
	return nil
}

func CheckValue(val any) error {
	if val == nil {
		return ErrValueIsNil
	}
	if v := reflect.ValueOf(val); v.Kind() == reflect.Ptr && v.IsNil() {
		return ErrValueIsNil
	}
	return nil
}

func CheckKeyAndValue(key []byte, val any) error {
	if err := CheckKey(key); err != nil {
		return err
	}
	return CheckValue(val)
}

// ForEach calls fn for every record whose key starts with prefix, in key
// order. Iteration stops at the first error returned by fn.
func ForEach(db Iterable, prefix []byte, fn func(key []byte, it Iterator) error) (err error) {
	it := db.Find(prefix)
	defer func() { err = errors.Join(err, it.Close()) }()
	for ; it.Valid() && bytes.HasPrefix(it.Key(), prefix); it.Next() {
		if err := fn(it.Key(), it); err != nil {
			return err
		}
	}
	return nil
}
