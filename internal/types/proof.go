package types

import (
	"crypto/sha256"
	"errors"
	"fmt"
)

var ErrInvalidPayload = errors.New("invalid proof payload")

type (
	/*
	PublicInput is the non-secret data a proof is checked against: the state
	hash the batch was applied to, the ordered batch of ramp transactions and
	the claimed state hash after applying the batch.
	*/
	PublicInput struct {
		_             struct{}  `cbor:",toarray"`
		PreStateHash  Hash      `json:"preStateHash"`
		RampTxs       []*RampTx `json:"rampTxs"`
		PostStateHash Hash      `json:"postStateHash"`
	}

	/*
	ProofPayload is the byte layout delivered to prove, either through the
	proof buffer or inline. PublicInput is the prover's claim, only the post
	state hash is taken from it, the rest of the public input is always
	reconstructed from the platform.
	*/
	ProofPayload struct {
		_           struct{}     `cbor:",toarray"`
		Proof       []byte       `json:"proof"`
		PublicInput *PublicInput `json:"publicInput"`
	}
)

/*
ExpectedPublicInput builds the public input for the pending batch of the
platform. Result depends only on the platform state and the claimed post
state hash, ramp transactions are kept in insertion order.
*/
func ExpectedPublicInput(p *Platform, postStateHash Hash) *PublicInput {
	txs := make([]*RampTx, len(p.RampTxs))
	for i, tx := range p.RampTxs {
		txs[i] = tx.Copy()
	}
	return &PublicInput{
		PreStateHash:  p.LastStateHash,
		RampTxs:       txs,
		PostStateHash: postStateHash,
	}
}

// Bytes returns the canonical encoding of the public input.
func (pi *PublicInput) Bytes() ([]byte, error) {
	if pi == nil {
		return nil, errors.New("public input is nil")
	}
	if pi.RampTxs == nil {
		// nil and empty batch must encode identically
		c := *pi
		c.RampTxs = []*RampTx{}
		return Cbor.Marshal(&c)
	}
	return Cbor.Marshal(pi)
}

// Digest returns SHA-256 hash of the canonical encoding of the public input.
func (pi *PublicInput) Digest() (Hash, error) {
	b, err := pi.Bytes()
	if err != nil {
		return Hash{}, fmt.Errorf("encoding public input: %w", err)
	}
	return sha256.Sum256(b), nil
}

func (p *ProofPayload) Bytes() ([]byte, error) {
	return Cbor.Marshal(p)
}

// DecodeProofPayload parses the proof payload, returned error wraps ErrInvalidPayload.
func DecodeProofPayload(data []byte) (*ProofPayload, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrInvalidPayload)
	}
	p := &ProofPayload{}
	if err := Cbor.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if len(p.Proof) == 0 {
		return nil, fmt.Errorf("%w: proof is empty", ErrInvalidPayload)
	}
	if p.PublicInput == nil {
		return nil, fmt.Errorf("%w: public input is missing", ErrInvalidPayload)
	}
	return p, nil
}
