package bridge

import (
	"context"
	"fmt"

	"github.com/alphabill-org/zkbridge/internal/events"
	"github.com/alphabill-org/zkbridge/internal/state"
	"github.com/alphabill-org/zkbridge/internal/types"
	"github.com/alphabill-org/zkbridge/internal/util"
)

/*
Withdraw pays out amount of the ramper's pending withdraw. The ramp ledger
must be attested to the latest committed state of the platform, ie the
ramper must have been part of the last proven batch.
*/
func (e *Engine) Withdraw(ctx context.Context, id types.PlatformID, ramper types.Identity, amount uint64) (*types.RampLedger, error) {
	if err := checkIdentity("ramper", ramper); err != nil {
		return nil, err
	}
	var res *types.RampLedger
	err := e.update(ctx, id, func(tx *state.Tx) ([]*events.Event, error) {
		p, err := loadPlatform(tx, id)
		if err != nil {
			return nil, err
		}
		l, err := tx.RampLedger(id, ramper)
		if err != nil {
			return nil, rampLedgerErr(id, ramper, err)
		}
		if l.CurrentStateHash != p.LastStateHash {
			return nil, fmt.Errorf("%w: ramp ledger is at state %s, platform is at %s", ErrInvalidStateHash, l.CurrentStateHash, p.LastStateHash)
		}
		pending, err := util.SubUint64(l.PendingWithdraw, amount)
		if err != nil {
			return nil, fmt.Errorf("%w: requested %d, pending withdraw is %d", ErrInsufficientDeposits, amount, l.PendingWithdraw)
		}
		paid, _, err := util.AddUint64(p.Paid, amount)
		if err != nil || paid > p.Withdraw {
			return nil, fmt.Errorf("%w: platform %s would pay out %d of %d withdrawn", ErrInsufficientDeposits, id, paid, p.Withdraw)
		}

		l.PendingWithdraw = pending
		p.Paid = paid
		if err := e.opts.transfer.Transfer(tx, p, ramper, amount); err != nil {
			return nil, fmt.Errorf("transferring value: %w", err)
		}
		if err := tx.SetRampLedger(l); err != nil {
			return nil, err
		}
		if err := tx.SetPlatform(p); err != nil {
			return nil, err
		}
		res = l
		return []*events.Event{events.New(events.WithdrawCompleted, id, &events.WithdrawData{Ramper: ramper, Amount: amount})}, nil
	})
	if err != nil {
		return nil, err
	}
	e.withdrawCompleted.Inc(1)
	log.Debug("platform %s: %s withdrew %d, %d pending", id, ramper, amount, res.PendingWithdraw)
	return res, nil
}
