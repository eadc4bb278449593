package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/alphabill-org/zkbridge/internal/events"
	"github.com/alphabill-org/zkbridge/internal/state"
	"github.com/alphabill-org/zkbridge/internal/types"
)

// CreatePlatform creates a new platform with empty ramp transaction queue
// anchored to the initial state hash.
func (e *Engine) CreatePlatform(ctx context.Context, sequencer types.Identity, id types.PlatformID, initialStateHash types.Hash) (*types.Platform, error) {
	if err := checkIdentity("sequencer", sequencer); err != nil {
		return nil, err
	}
	var res *types.Platform
	err := e.update(ctx, id, func(tx *state.Tx) ([]*events.Event, error) {
		_, err := tx.Platform(id)
		if err == nil {
			return nil, fmt.Errorf("%w: platform %s", ErrAlreadyExists, id)
		}
		if !errors.Is(err, state.ErrNotFound) {
			return nil, err
		}
		p := types.NewPlatform(id, sequencer, initialStateHash)
		if err := tx.SetPlatform(p); err != nil {
			return nil, err
		}
		res = p
		return []*events.Event{events.New(events.PlatformCreated, id, p.Copy())}, nil
	})
	if err != nil {
		return nil, err
	}
	log.Info("platform %s created by %s, initial state %s", id, sequencer, initialStateHash)
	return res, nil
}

/*
AddRampTx appends ramp transaction of the caller to the queue of pending
transactions. Transactions are not deduplicated, the same caller may add any
number of identical transactions.

The ramp ledger of the caller is created on first use, anchored to the
current state hash of the platform.
*/
func (e *Engine) AddRampTx(ctx context.Context, id types.PlatformID, caller types.Identity, isOnramp bool, amount uint64) (*types.Platform, error) {
	if err := checkIdentity("caller", caller); err != nil {
		return nil, err
	}
	var res *types.Platform
	err := e.update(ctx, id, func(tx *state.Tx) ([]*events.Event, error) {
		p, err := loadPlatform(tx, id)
		if err != nil {
			return nil, err
		}
		if limit := e.opts.maxQueueLength; limit > 0 && len(p.RampTxs) >= limit {
			return nil, fmt.Errorf("%w: platform %s has %d pending transactions", ErrQueueFull, id, len(p.RampTxs))
		}
		rampTx := &types.RampTx{IsOnramp: isOnramp, User: caller, Amount: amount}
		p.RampTxs = append(p.RampTxs, rampTx)
		size, err := p.Size()
		if err != nil {
			return nil, err
		}
		if size > e.opts.storageBudget {
			return nil, fmt.Errorf("%w: platform record would take %d bytes, budget is %d", ErrOutOfMemory, size, e.opts.storageBudget)
		}

		if _, err := tx.RampLedger(id, caller); err != nil {
			if !errors.Is(err, state.ErrNotFound) {
				return nil, err
			}
			if err := tx.SetRampLedger(types.NewRampLedger(id, caller, p.LastStateHash)); err != nil {
				return nil, err
			}
		}
		if err := tx.SetPlatform(p); err != nil {
			return nil, err
		}
		res = p
		return []*events.Event{
			events.New(events.RampTxAdded, id, &events.RampTxData{RampTx: rampTx.Copy(), QueueIndex: len(p.RampTxs) - 1}),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	e.rampTxAdded.Inc(1)
	log.Debug("platform %s: %s queued, %d pending", id, res.RampTxs[len(res.RampTxs)-1], len(res.RampTxs))
	return res, nil
}
