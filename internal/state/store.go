package state

import (
	"errors"
	"fmt"

	"github.com/alphabill-org/zkbridge/internal/keyvaluedb"
	"github.com/alphabill-org/zkbridge/internal/proofbuffer"
	"github.com/alphabill-org/zkbridge/internal/types"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrDeserialization = errors.New("record deserialization failed")
)

/*
Store gives typed access to the bridge records kept in a key value DB.

Every record lives under its own key (see types.PlatformKey and friends).
Mutations are only possible inside a transaction (see Update), queries read
the last committed state.
*/
type Store struct {
	reader
	db keyvaluedb.KeyValueDB
}

// Tx is a read-write view of the store, changes become visible to others
// when the transaction commits.
type Tx struct {
	reader
	tx keyvaluedb.DBTransaction
}

type reader struct {
	r keyvaluedb.Reader
}

func New(db keyvaluedb.KeyValueDB) (*Store, error) {
	if db == nil {
		return nil, errors.New("key value db is nil")
	}
	return &Store{reader: reader{r: db}, db: db}, nil
}

/*
Update runs fn inside a transaction. The transaction is committed when fn
returns nil and rolled back otherwise, so either all the changes made by fn
are persisted or none of them.
*/
func (s *Store) Update(fn func(tx *Tx) error) (rErr error) {
	dbTx, err := s.db.StartTx()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer func() {
		if rErr != nil {
			if err := dbTx.Rollback(); err != nil {
				rErr = errors.Join(rErr, fmt.Errorf("rollback: %w", err))
			}
		}
	}()
	if err := fn(&Tx{reader: reader{r: dbTx}, tx: dbTx}); err != nil {
		return err
	}
	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Platforms returns all platforms in the order of their ids.
func (s *Store) Platforms() ([]*types.Platform, error) {
	var res []*types.Platform
	err := keyvaluedb.ForEach(s.db, types.PlatformKeyPrefix(), func(key []byte, it keyvaluedb.Iterator) error {
		p := &types.Platform{}
		if err := it.Value(p); err != nil {
			return fmt.Errorf("%w: platform %x: %w", ErrDeserialization, key, err)
		}
		res = append(res, p)
		return nil
	})
	return res, err
}

// RampLedgers returns ramp ledgers of all participants of the platform.
func (s *Store) RampLedgers(id types.PlatformID) ([]*types.RampLedger, error) {
	var res []*types.RampLedger
	err := keyvaluedb.ForEach(s.db, types.RampLedgerKey(id, nil), func(key []byte, it keyvaluedb.Iterator) error {
		r := &types.RampLedger{}
		if err := it.Value(r); err != nil {
			return fmt.Errorf("%w: ramp ledger %x: %w", ErrDeserialization, key, err)
		}
		res = append(res, r)
		return nil
	})
	return res, err
}

func (r reader) Platform(id types.PlatformID) (*types.Platform, error) {
	p := &types.Platform{}
	if err := r.read(types.PlatformKey(id), p, "platform"); err != nil {
		return nil, err
	}
	if p.RampTxs == nil {
		p.RampTxs = []*types.RampTx{}
	}
	return p, nil
}

func (r reader) RampLedger(id types.PlatformID, ramper types.Identity) (*types.RampLedger, error) {
	l := &types.RampLedger{}
	if err := r.read(types.RampLedgerKey(id, ramper), l, "ramp ledger"); err != nil {
		return nil, err
	}
	return l, nil
}

func (r reader) ProofBuffer(id types.PlatformID, prover types.Identity) (*proofbuffer.Buffer, error) {
	b := &proofbuffer.Buffer{}
	if err := r.read(types.ProofBufferKey(id, prover), b, "proof buffer"); err != nil {
		return nil, err
	}
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("%w: proof buffer: %w", ErrDeserialization, err)
	}
	return b, nil
}

// Balance returns the host ledger balance of the owner, missing record is
// a zero balance.
func (r reader) Balance(owner types.Identity) (*types.Balance, error) {
	b := &types.Balance{}
	err := r.read(types.BalanceKey(owner), b, "balance")
	if errors.Is(err, ErrNotFound) {
		return &types.Balance{Owner: owner}, nil
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r reader) read(key []byte, v any, what string) error {
	found, err := r.r.Read(key, v)
	if err != nil {
		if found {
			return fmt.Errorf("%w: %s: %w", ErrDeserialization, what, err)
		}
		return fmt.Errorf("reading %s: %w", what, err)
	}
	if !found {
		return fmt.Errorf("%s %w", what, ErrNotFound)
	}
	return nil
}

func (tx *Tx) SetPlatform(p *types.Platform) error {
	if err := tx.tx.Write(types.PlatformKey(p.ID), p); err != nil {
		return fmt.Errorf("writing platform: %w", err)
	}
	return nil
}

func (tx *Tx) SetRampLedger(l *types.RampLedger) error {
	if err := tx.tx.Write(types.RampLedgerKey(l.PlatformID, l.Ramper), l); err != nil {
		return fmt.Errorf("writing ramp ledger: %w", err)
	}
	return nil
}

func (tx *Tx) SetProofBuffer(id types.PlatformID, b *proofbuffer.Buffer) error {
	if err := tx.tx.Write(types.ProofBufferKey(id, b.Prover), b); err != nil {
		return fmt.Errorf("writing proof buffer: %w", err)
	}
	return nil
}

func (tx *Tx) DeleteProofBuffer(id types.PlatformID, prover types.Identity) error {
	if err := tx.tx.Delete(types.ProofBufferKey(id, prover)); err != nil {
		return fmt.Errorf("deleting proof buffer: %w", err)
	}
	return nil
}

func (tx *Tx) SetBalance(b *types.Balance) error {
	if err := tx.tx.Write(types.BalanceKey(b.Owner), b); err != nil {
		return fmt.Errorf("writing balance: %w", err)
	}
	return nil
}
