package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/alphabill-org/zkbridge/internal/events"
	"github.com/alphabill-org/zkbridge/internal/proofbuffer"
	"github.com/alphabill-org/zkbridge/internal/state"
	"github.com/alphabill-org/zkbridge/internal/types"
)

// ProveResult describes the batch committed by a successful prove.
type ProveResult struct {
	PlatformID    types.PlatformID `json:"platformId"`
	Prover        types.Identity   `json:"prover"`
	PreStateHash  types.Hash       `json:"preStateHash"`
	PostStateHash types.Hash       `json:"postStateHash"`
	RampTxCount   int              `json:"rampTxCount"`
	Deposited     uint64           `json:"deposited,string"`
	Withdrawn     uint64           `json:"withdrawn,string"`
	Platform      *types.Platform  `json:"platform"`
}

/*
UploadProof writes a chunk of the proof payload into the prover's proof
buffer of the platform. The buffer is created by the first chunk and its
size is fixed to proofSize.
*/
func (e *Engine) UploadProof(ctx context.Context, id types.PlatformID, prover types.Identity, proofSize, offset uint64, chunk []byte) (*proofbuffer.Status, error) {
	if err := checkIdentity("prover", prover); err != nil {
		return nil, err
	}
	var status *proofbuffer.Status
	err := e.update(ctx, id, func(tx *state.Tx) ([]*events.Event, error) {
		if _, err := loadPlatform(tx, id); err != nil {
			return nil, err
		}
		buf, err := tx.ProofBuffer(id, prover)
		if errors.Is(err, state.ErrNotFound) {
			buf, err = proofbuffer.New(prover, proofSize, e.opts.maxProofSize)
		}
		if err != nil {
			return nil, err
		}
		replayed, err := buf.Write(proofSize, offset, chunk)
		if err != nil {
			return nil, err
		}
		if !replayed {
			if err := tx.SetProofBuffer(id, buf); err != nil {
				return nil, err
			}
		}
		status = buf.Status()
		status.Replayed = replayed
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	e.proofChunks.Inc(1)
	log.Debug("platform %s: proof chunk [%d, %d) from %s, %s", id, offset, offset+uint64(len(chunk)), prover, status.State)
	return status, nil
}

// AbandonProof deletes the proof buffer of the prover, allowing the upload
// to start over.
func (e *Engine) AbandonProof(ctx context.Context, id types.PlatformID, prover types.Identity) error {
	if err := checkIdentity("prover", prover); err != nil {
		return err
	}
	err := e.update(ctx, id, func(tx *state.Tx) ([]*events.Event, error) {
		if _, err := tx.ProofBuffer(id, prover); err != nil {
			return nil, proofErr(id, prover, err)
		}
		return nil, tx.DeleteProofBuffer(id, prover)
	})
	if err != nil {
		return err
	}
	log.Debug("platform %s: proof buffer of %s abandoned", id, prover)
	return nil
}

/*
Prove verifies the proof accumulated in the prover's proof buffer against
the pending batch of the platform and commits the batch when the proof is
accepted.

Once the proof has been evaluated the buffer is consumed regardless of the
outcome. When the proof is rejected the platform and ramp ledgers are not
changed and the batch stays pending.
*/
func (e *Engine) Prove(ctx context.Context, id types.PlatformID, prover types.Identity) (*ProveResult, error) {
	if err := checkIdentity("prover", prover); err != nil {
		return nil, err
	}
	var res *ProveResult
	var rejection error
	err := e.update(ctx, id, func(tx *state.Tx) ([]*events.Event, error) {
		p, err := loadPlatform(tx, id)
		if err != nil {
			return nil, err
		}
		if len(p.RampTxs) == 0 {
			return nil, fmt.Errorf("%w: platform %s", ErrMissingRampTxs, id)
		}
		buf, err := tx.ProofBuffer(id, prover)
		if err != nil {
			return nil, proofErr(id, prover, err)
		}
		payload, err := buf.Bytes()
		if err != nil {
			return nil, err
		}
		res, rejection, err = e.verifyAndApply(tx, p, prover, payload)
		if err != nil {
			return nil, err
		}
		if err := tx.DeleteProofBuffer(id, prover); err != nil {
			return nil, err
		}
		return []*events.Event{proofEvent(id, prover, res, rejection)}, nil
	})
	if err != nil {
		return nil, err
	}
	return e.proveDone(id, prover, res, rejection)
}

// ProveInline is Prove with the proof payload passed directly, limited to
// small payloads (see WithInlineProofLimit).
func (e *Engine) ProveInline(ctx context.Context, id types.PlatformID, prover types.Identity, payload []byte) (*ProveResult, error) {
	if err := checkIdentity("prover", prover); err != nil {
		return nil, err
	}
	if len(payload) > e.opts.inlineProofLimit {
		return nil, fmt.Errorf("%w: inline proof is %d bytes, limit is %d, use proof upload", ErrInvalidProofData, len(payload), e.opts.inlineProofLimit)
	}
	var res *ProveResult
	var rejection error
	err := e.update(ctx, id, func(tx *state.Tx) ([]*events.Event, error) {
		p, err := loadPlatform(tx, id)
		if err != nil {
			return nil, err
		}
		if len(p.RampTxs) == 0 {
			return nil, fmt.Errorf("%w: platform %s", ErrMissingRampTxs, id)
		}
		res, rejection, err = e.verifyAndApply(tx, p, prover, payload)
		if err != nil {
			return nil, err
		}
		return []*events.Event{proofEvent(id, prover, res, rejection)}, nil
	})
	if err != nil {
		return nil, err
	}
	return e.proveDone(id, prover, res, rejection)
}

func (e *Engine) proveDone(id types.PlatformID, prover types.Identity, res *ProveResult, rejection error) (*ProveResult, error) {
	if rejection != nil {
		e.proofRejected.Inc(1)
		log.Info("platform %s: proof from %s rejected: %v", id, prover, rejection)
		return nil, rejection
	}
	e.proofCommitted.Inc(1)
	log.Info("platform %s: batch of %d ramp txs committed, state %s -> %s", id, res.RampTxCount, res.PreStateHash, res.PostStateHash)
	return res, nil
}

func proofEvent(id types.PlatformID, prover types.Identity, res *ProveResult, rejection error) *events.Event {
	if rejection != nil {
		return events.New(events.ProofRejected, id, &events.ProofRejectedData{Prover: prover, Reason: rejection.Error()})
	}
	return events.New(events.ProofCommitted, id, &events.ProofCommittedData{
		Prover:        prover,
		PreStateHash:  res.PreStateHash,
		PostStateHash: res.PostStateHash,
		RampTxCount:   res.RampTxCount,
		Deposited:     res.Deposited,
		Withdrawn:     res.Withdrawn,
	})
}

/*
verifyAndApply checks the proof payload against the pending batch of p and
applies the batch. The second return value is the reason the proof or the
batch was rejected, in that case nothing has been written. The error is
returned for failures not caused by the proof (storage), the transaction
must be rolled back then.
*/
func (e *Engine) verifyAndApply(tx *state.Tx, p *types.Platform, prover types.Identity, payload []byte) (res *ProveResult, rejection error, err error) {
	pp, err := types.DecodeProofPayload(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidProofData, err), nil
	}
	// only the post state is taken from the prover's claim
	expected := types.ExpectedPublicInput(p, pp.PublicInput.PostStateHash)
	ok, err := e.verifier.Verify(pp.Proof, expected)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidProofData, err), nil
	}
	if !ok {
		return nil, fmt.Errorf("%w: proof does not match the batch of %d ramp txs on state %s", ErrInvalidProof, len(p.RampTxs), p.LastStateHash), nil
	}

	res, err = applyBatch(tx, p, pp.PublicInput.PostStateHash)
	if err != nil {
		if errors.Is(err, ErrInsufficientDeposits) || errors.Is(err, ErrArithmeticOverflow) {
			return nil, err, nil
		}
		return nil, nil, err
	}
	if res.Deposited > 0 {
		if err := e.opts.transfer.Deposit(tx, p, res.Deposited); err != nil {
			return nil, nil, fmt.Errorf("depositing to vault: %w", err)
		}
	}
	res.Prover = prover
	return res, nil, nil
}

/*
applyBatch commits the pending batch of p: aggregate counters are updated,
offramp amounts are credited to the ramp ledgers of the rampers and every
ramper included in the batch is attested to the new state. All checks are
done before the first write.
*/
func applyBatch(tx *state.Tx, p *types.Platform, postStateHash types.Hash) (*ProveResult, error) {
	onramp, offramp := new(uint256.Int), new(uint256.Int)
	var rampers []types.Identity
	credit := map[string]*uint256.Int{}
	for _, rtx := range p.RampTxs {
		amount := uint256.NewInt(rtx.Amount)
		c, ok := credit[string(rtx.User)]
		if !ok {
			c = new(uint256.Int)
			credit[string(rtx.User)] = c
			rampers = append(rampers, rtx.User)
		}
		if rtx.IsOnramp {
			onramp.Add(onramp, amount)
		} else {
			offramp.Add(offramp, amount)
			c.Add(c, amount)
		}
	}

	deposit := new(uint256.Int).Add(uint256.NewInt(p.Deposit), onramp)
	withdraw := new(uint256.Int).Add(uint256.NewInt(p.Withdraw), offramp)
	if !deposit.IsUint64() || !withdraw.IsUint64() {
		return nil, fmt.Errorf("%w: platform %s counters", ErrArithmeticOverflow, p.ID)
	}
	if deposit.Lt(withdraw) {
		return nil, fmt.Errorf("%w: deposits %d would be less than withdrawals %d", ErrInsufficientDeposits, deposit.Uint64(), withdraw.Uint64())
	}

	ledgers := make([]*types.RampLedger, 0, len(rampers))
	for _, ramper := range rampers {
		l, err := tx.RampLedger(p.ID, ramper)
		if errors.Is(err, state.ErrNotFound) {
			l, err = types.NewRampLedger(p.ID, ramper, p.LastStateHash), nil
		}
		if err != nil {
			return nil, err
		}
		pending := new(uint256.Int).Add(uint256.NewInt(l.PendingWithdraw), credit[string(ramper)])
		if !pending.IsUint64() {
			return nil, fmt.Errorf("%w: pending withdraw of %s", ErrArithmeticOverflow, ramper)
		}
		l.PendingWithdraw = pending.Uint64()
		l.CurrentStateHash = postStateHash
		ledgers = append(ledgers, l)
	}

	res := &ProveResult{
		PlatformID:    p.ID,
		PreStateHash:  p.LastStateHash,
		PostStateHash: postStateHash,
		RampTxCount:   len(p.RampTxs),
		Deposited:     onramp.Uint64(),
		Withdrawn:     offramp.Uint64(),
	}
	p.Deposit = deposit.Uint64()
	p.Withdraw = withdraw.Uint64()
	p.LastStateHash = postStateHash
	p.RampTxs = []*types.RampTx{}

	for _, l := range ledgers {
		if err := tx.SetRampLedger(l); err != nil {
			return nil, err
		}
	}
	if err := tx.SetPlatform(p); err != nil {
		return nil, err
	}
	res.Platform = p.Copy()
	return res, nil
}
