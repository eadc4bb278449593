package bridge

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alphabill-org/zkbridge/internal/events"
	"github.com/alphabill-org/zkbridge/internal/keyvaluedb/boltdb"
	"github.com/alphabill-org/zkbridge/internal/state"
	"github.com/alphabill-org/zkbridge/internal/types"
	"github.com/alphabill-org/zkbridge/internal/verifier"
)

type transferFunc func(tx *state.Tx, platform *types.Platform, to types.Identity, amount uint64) error

func (f transferFunc) Transfer(tx *state.Tx, platform *types.Platform, to types.Identity, amount uint64) error {
	return f(tx, platform, to, amount)
}

func (transferFunc) Deposit(tx *state.Tx, platform *types.Platform, amount uint64) error {
	return HostLedger{}.Deposit(tx, platform, amount)
}

func (env *testEnv) balance(t *testing.T, owner types.Identity) uint64 {
	t.Helper()
	b, err := env.Balance(context.Background(), owner)
	require.NoError(t, err)
	return b.Amount
}

// withdrawable returns env where ramper has "amount" pending withdraw
// attested to the latest state.
func withdrawable(t *testing.T, amount uint64, opts ...Option) *testEnv {
	env := newTestEnv(t, opts...)
	env.createPlatform(t)
	env.addRampTx(t, depositor, true, 100)
	env.addRampTx(t, ramper, false, amount)
	env.prove(t, h1)
	return env
}

func TestWithdraw(t *testing.T) {
	env := withdrawable(t, 50)
	ctx := context.Background()

	vault := types.VaultIdentity(platformID)
	require.EqualValues(t, 100, env.balance(t, vault))

	l, err := env.Withdraw(ctx, platformID, ramper, 20)
	require.NoError(t, err)
	require.EqualValues(t, 30, l.PendingWithdraw)
	require.EqualValues(t, 80, env.balance(t, vault))
	require.EqualValues(t, 20, env.balance(t, ramper))
	require.Equal(t, h1, l.CurrentStateHash)
	require.Equal(t, l, env.ledger(t, ramper))

	// zero amount is a no-op payout
	l, err = env.Withdraw(ctx, platformID, ramper, 0)
	require.NoError(t, err)
	require.EqualValues(t, 30, l.PendingWithdraw)

	_, err = env.Withdraw(ctx, platformID, ramper, 31)
	require.ErrorIs(t, err, ErrInsufficientDeposits)
	require.EqualValues(t, 30, env.ledger(t, ramper).PendingWithdraw)

	l, err = env.Withdraw(ctx, platformID, ramper, 30)
	require.NoError(t, err)
	require.Zero(t, l.PendingWithdraw)

	p := env.platform(t)
	require.EqualValues(t, 50, p.Withdraw)
	require.EqualValues(t, 50, p.Paid)
	// vault keeps what has not been paid out
	require.EqualValues(t, p.Deposit-p.Paid, env.balance(t, vault))
	require.EqualValues(t, 50, env.balance(t, ramper))
	require.Zero(t, p.Unrealized())

	bal, err := env.Balance(ctx, ramper)
	require.NoError(t, err)
	require.Equal(t, &types.Balance{Owner: ramper, Amount: 50}, bal)

	evs := env.recorder.Events(events.WithdrawCompleted)
	require.Len(t, evs, 3)
	require.Equal(t, &events.WithdrawData{Ramper: ramper, Amount: 20}, evs[0].Data)
}

func TestWithdraw_Errors(t *testing.T) {
	env := withdrawable(t, 50)
	ctx := context.Background()

	_, err := env.Withdraw(ctx, types.PlatformID{1}, ramper, 1)
	require.ErrorIs(t, err, ErrPlatformNotFound)
	_, err = env.Withdraw(ctx, platformID, types.Identity{0x02, 0xFF}, 1)
	require.ErrorIs(t, err, ErrRampLedgerNotFound)
	_, err = env.Withdraw(ctx, platformID, nil, 1)
	require.ErrorIs(t, err, ErrInvalidArgument)

	// depositor has nothing to withdraw
	_, err = env.Withdraw(ctx, platformID, depositor, 1)
	require.ErrorIs(t, err, ErrInsufficientDeposits)
}

func TestWithdraw_PendingBatchDoesNotCount(t *testing.T) {
	env := withdrawable(t, 50)
	ctx := context.Background()

	// offramp queued but not proven yet
	env.addRampTx(t, ramper, false, 10)
	_, err := env.Withdraw(ctx, platformID, ramper, 60)
	require.ErrorIs(t, err, ErrInsufficientDeposits)
	_, err = env.Withdraw(ctx, platformID, ramper, 50)
	require.NoError(t, err)
}

func TestWithdraw_StaleLedger(t *testing.T) {
	env := newTestEnv(t)
	env.createPlatform(t)
	env.addRampTx(t, depositor, true, 100)
	env.prove(t, h1)

	// ledger is created on the queued tx but the tx is not proven yet
	env.addRampTx(t, ramper, false, 10)
	_, err := env.Withdraw(context.Background(), platformID, ramper, 0)
	require.NoError(t, err)

	// ramper is not part of the batch of the latest state
	env.prove(t, h2)
	env.addRampTx(t, depositor, true, 1)
	env.prove(t, h3)
	_, err = env.Withdraw(context.Background(), platformID, ramper, 10)
	require.ErrorIs(t, err, ErrInvalidStateHash)
	require.EqualValues(t, 10, env.ledger(t, ramper).PendingWithdraw)
}

func TestWithdraw_TransferFailure(t *testing.T) {
	env := withdrawable(t, 50, WithValueTransfer(transferFunc(func(*state.Tx, *types.Platform, types.Identity, uint64) error {
		return errors.New("vault is locked")
	})))
	_, err := env.Withdraw(context.Background(), platformID, ramper, 10)
	require.ErrorContains(t, err, "vault is locked")
	require.EqualValues(t, 50, env.ledger(t, ramper).PendingWithdraw)
	require.Zero(t, env.platform(t).Paid)
	require.Empty(t, env.recorder.Events(events.WithdrawCompleted))
}

func TestWithdraw_TransferGetsPlatform(t *testing.T) {
	var got *types.Platform
	env := withdrawable(t, 50, WithValueTransfer(transferFunc(func(tx *state.Tx, p *types.Platform, to types.Identity, amount uint64) error {
		got = p.Copy()
		return HostLedger{}.Transfer(tx, p, to, amount)
	})))
	_, err := env.Withdraw(context.Background(), platformID, ramper, 10)
	require.NoError(t, err)
	require.Equal(t, platformID, got.ID)
	require.EqualValues(t, 10, got.Paid)
}

func TestHostLedger(t *testing.T) {
	env := newTestEnv(t)
	p := env.createPlatform(t)
	vault := p.Vault()
	require.Equal(t, append(types.Identity{0}, platformID[:]...), vault)

	require.NoError(t, env.store.Update(func(tx *state.Tx) error {
		return HostLedger{}.Deposit(tx, p, 10)
	}))
	require.EqualValues(t, 10, env.balance(t, vault))

	// vault can't pay out more than it holds
	err := env.store.Update(func(tx *state.Tx) error {
		return HostLedger{}.Transfer(tx, p, ramper, 11)
	})
	require.ErrorIs(t, err, ErrInsufficientDeposits)
	require.ErrorContains(t, err, "holds 10, transfer of 11")
	require.EqualValues(t, 10, env.balance(t, vault))
	require.Zero(t, env.balance(t, ramper))

	require.NoError(t, env.store.Update(func(tx *state.Tx) error {
		return HostLedger{}.Transfer(tx, p, ramper, 4)
	}))
	require.EqualValues(t, 6, env.balance(t, vault))
	require.EqualValues(t, 4, env.balance(t, ramper))

	err = env.store.Update(func(tx *state.Tx) error {
		return HostLedger{}.Transfer(tx, p, vault, 1)
	})
	require.ErrorIs(t, err, ErrInvalidArgument)

	require.NoError(t, env.store.Update(func(tx *state.Tx) error {
		return tx.SetBalance(&types.Balance{Owner: ramper, Amount: math.MaxUint64})
	}))
	err = env.store.Update(func(tx *state.Tx) error {
		return HostLedger{}.Transfer(tx, p, ramper, 1)
	})
	require.ErrorIs(t, err, ErrArithmeticOverflow)
	require.EqualValues(t, 6, env.balance(t, vault))
}

func TestWithdraw_VaultFollowsProofs(t *testing.T) {
	env := withdrawable(t, 50)
	ctx := context.Background()
	vault := types.VaultIdentity(platformID)

	// deposits of a pending batch are not in the vault yet
	env.addRampTx(t, depositor, true, 30)
	require.EqualValues(t, 100, env.balance(t, vault))
	env.prove(t, h2)
	require.EqualValues(t, 130, env.balance(t, vault))

	// batch without onramps leaves the vault as is
	env.addRampTx(t, ramper, false, 70)
	env.prove(t, h3)
	require.EqualValues(t, 130, env.balance(t, vault))

	_, err := env.Withdraw(ctx, platformID, ramper, 120)
	require.NoError(t, err)
	require.EqualValues(t, 10, env.balance(t, vault))
	p := env.platform(t)
	require.Equal(t, p.Deposit-p.Paid, env.balance(t, vault))
}

func TestEngine_Persistence(t *testing.T) {
	dbFile := filepath.Join(t.TempDir(), "bridge.db")
	open := func() (*Engine, func()) {
		db, err := boltdb.New(dbFile)
		require.NoError(t, err)
		store, err := state.New(db)
		require.NoError(t, err)
		e, err := New(store, verifier.DigestVerifier{})
		require.NoError(t, err)
		return e, func() { require.NoError(t, db.Close()) }
	}
	ctx := context.Background()

	e, closeDB := open()
	_, err := e.CreatePlatform(ctx, sequencer, platformID, h0)
	require.NoError(t, err)
	_, err = e.AddRampTx(ctx, platformID, depositor, true, 100)
	require.NoError(t, err)
	p, err := e.AddRampTx(ctx, platformID, ramper, false, 40)
	require.NoError(t, err)
	payload := proofPayload(t, p, h1)
	_, err = e.UploadProof(ctx, platformID, prover, uint64(len(payload)), 0, payload[:10])
	require.NoError(t, err)
	closeDB()

	// upload continues after restart
	e, closeDB = open()
	defer closeDB()
	_, err = e.UploadProof(ctx, platformID, prover, uint64(len(payload)), 10, payload[10:])
	require.NoError(t, err)
	res, err := e.Prove(ctx, platformID, prover)
	require.NoError(t, err)
	require.Equal(t, h1, res.PostStateHash)
	l, err := e.Withdraw(ctx, platformID, ramper, 40)
	require.NoError(t, err)
	require.Zero(t, l.PendingWithdraw)

	platforms, err := e.Platforms(ctx)
	require.NoError(t, err)
	require.Len(t, platforms, 1)
	require.EqualValues(t, 40, platforms[0].Paid)
}
