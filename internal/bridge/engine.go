package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/alphabill-org/zkbridge/internal/events"
	"github.com/alphabill-org/zkbridge/internal/logger"
	"github.com/alphabill-org/zkbridge/internal/metrics"
	"github.com/alphabill-org/zkbridge/internal/proofbuffer"
	"github.com/alphabill-org/zkbridge/internal/state"
	"github.com/alphabill-org/zkbridge/internal/types"
	"github.com/alphabill-org/zkbridge/internal/verifier"
)

var log = logger.CreateForPackage()

/*
Engine is the rollup state machine. It is the only writer of platform and
ramp ledger records and the only caller of the verifier.

Operations on the same platform are serialized, every operation runs in a
single store transaction so a failed operation leaves no trace.
*/
type Engine struct {
	store    *state.Store
	verifier verifier.Verifier
	opts     *Options
	locks    platformLocks

	rampTxAdded       *metrics.Counter
	proofCommitted    *metrics.Counter
	proofRejected     *metrics.Counter
	withdrawCompleted *metrics.Counter
	proofChunks       *metrics.Counter
}

func New(store *state.Store, v verifier.Verifier, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, errors.New("store is nil")
	}
	o := defaultOptions()
	o.verifier = v
	for _, opt := range opts {
		opt(o)
	}
	if o.verifier == nil {
		return nil, errors.New("verifier is nil")
	}
	if o.storageBudget <= 0 {
		return nil, fmt.Errorf("invalid storage budget %d", o.storageBudget)
	}
	if o.maxQueueLength < 0 {
		return nil, fmt.Errorf("invalid max queue length %d", o.maxQueueLength)
	}
	if o.publisher == nil {
		o.publisher = events.LogPublisher{}
	}
	if o.transfer == nil {
		return nil, errors.New("value transfer is nil")
	}
	return &Engine{
		store:             store,
		verifier:          o.verifier,
		opts:              o,
		locks:             platformLocks{m: map[types.PlatformID]*sync.Mutex{}},
		rampTxAdded:       metrics.GetOrRegisterCounter("zkbridge/ramptx/added"),
		proofCommitted:    metrics.GetOrRegisterCounter("zkbridge/proof/committed"),
		proofRejected:     metrics.GetOrRegisterCounter("zkbridge/proof/rejected"),
		withdrawCompleted: metrics.GetOrRegisterCounter("zkbridge/withdraw/completed"),
		proofChunks:       metrics.GetOrRegisterCounter("zkbridge/proof/chunks"),
	}, nil
}

func (e *Engine) Platform(ctx context.Context, id types.PlatformID) (*types.Platform, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := e.store.Platform(id)
	return p, platformErr(id, err)
}

func (e *Engine) Platforms(ctx context.Context) ([]*types.Platform, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.store.Platforms()
}

func (e *Engine) RampLedger(ctx context.Context, id types.PlatformID, ramper types.Identity) (*types.RampLedger, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l, err := e.store.RampLedger(id, ramper)
	return l, rampLedgerErr(id, ramper, err)
}

func (e *Engine) RampLedgers(ctx context.Context, id types.PlatformID) ([]*types.RampLedger, error) {
	if _, err := e.Platform(ctx, id); err != nil {
		return nil, err
	}
	return e.store.RampLedgers(id)
}

func (e *Engine) ProofStatus(ctx context.Context, id types.PlatformID, prover types.Identity) (*proofbuffer.Status, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := e.store.ProofBuffer(id, prover)
	if err != nil {
		return nil, proofErr(id, prover, err)
	}
	return b.Status(), nil
}

// Balance returns the host ledger balance kept by HostLedger.
func (e *Engine) Balance(ctx context.Context, owner types.Identity) (*types.Balance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.store.Balance(owner)
}

/*
update locks the platform and runs fn in a store transaction. Events
returned by fn are published after the transaction has been committed.
*/
func (e *Engine) update(ctx context.Context, id types.PlatformID, fn func(tx *state.Tx) ([]*events.Event, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	unlock := e.locks.lock(id)
	defer unlock()

	var evs []*events.Event
	err := e.store.Update(func(tx *state.Tx) (err error) {
		evs, err = fn(tx)
		return err
	})
	if err != nil {
		return err
	}
	for _, ev := range evs {
		if err := e.opts.publisher.Publish(ev); err != nil {
			log.Warning("failed to publish %s event of platform %s: %v", ev.Type, ev.PlatformID, err)
		}
	}
	return nil
}

func loadPlatform(tx *state.Tx, id types.PlatformID) (*types.Platform, error) {
	p, err := tx.Platform(id)
	return p, platformErr(id, err)
}

func platformErr(id types.PlatformID, err error) error {
	if errors.Is(err, state.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrPlatformNotFound, id)
	}
	return err
}

func rampLedgerErr(id types.PlatformID, ramper types.Identity, err error) error {
	if errors.Is(err, state.ErrNotFound) {
		return fmt.Errorf("%w: platform %s ramper %s", ErrRampLedgerNotFound, id, ramper)
	}
	return err
}

func proofErr(id types.PlatformID, prover types.Identity, err error) error {
	if errors.Is(err, state.ErrNotFound) {
		return fmt.Errorf("%w: platform %s prover %s", ErrProofNotFound, id, prover)
	}
	return err
}

func checkIdentity(what string, id types.Identity) error {
	if len(id) == 0 {
		return fmt.Errorf("%w: %s identity is empty", ErrInvalidArgument, what)
	}
	return nil
}

type platformLocks struct {
	mu sync.Mutex
	m  map[types.PlatformID]*sync.Mutex
}

func (l *platformLocks) lock(id types.PlatformID) func() {
	l.mu.Lock()
	m, ok := l.m[id]
	if !ok {
		m = &sync.Mutex{}
		l.m[id] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
