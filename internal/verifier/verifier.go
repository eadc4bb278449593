package verifier

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/alphabill-org/zkbridge/internal/types"
)

// ErrMalformedProof is returned when the proof bytes can't be parsed by the verifier.
var ErrMalformedProof = errors.New("malformed proof")

/*
Verifier checks a proof against the public input.

Implementations must be pure and deterministic: the same proof and input
always produce the same result. A proof that is well-formed but does not
prove the input is reported as (false, nil), an error is returned only when
the proof could not be evaluated at all.
*/
type Verifier interface {
	Verify(proof []byte, input *types.PublicInput) (bool, error)
}

// Func is an adapter to allow the use of ordinary functions as Verifier.
type Func func(proof []byte, input *types.PublicInput) (bool, error)

func (f Func) Verify(proof []byte, input *types.PublicInput) (bool, error) {
	return f(proof, input)
}

/*
DigestVerifier accepts a proof iff it equals the digest of the public
input. It proves nothing and is meant for development networks and tests
where the real prover is not available.
*/
type DigestVerifier struct{}

func (DigestVerifier) Verify(proof []byte, input *types.PublicInput) (bool, error) {
	if len(proof) != types.HashSize {
		return false, fmt.Errorf("%w: expected %d bytes, got %d", ErrMalformedProof, types.HashSize, len(proof))
	}
	digest, err := input.Digest()
	if err != nil {
		return false, err
	}
	return bytes.Equal(proof, digest[:]), nil
}

// DigestProof creates the proof DigestVerifier accepts for the input.
func DigestProof(input *types.PublicInput) ([]byte, error) {
	digest, err := input.Digest()
	if err != nil {
		return nil, err
	}
	return digest.Bytes(), nil
}
