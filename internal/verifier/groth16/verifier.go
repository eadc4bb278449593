package groth16

import (
	"bytes"
	"fmt"
	"io"
	"math/big"
	"os"
	"path/filepath"

	"github.com/consensys/gnark-crypto/ecc"
	g16 "github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"

	"github.com/alphabill-org/zkbridge/internal/logger"
	"github.com/alphabill-org/zkbridge/internal/types"
	"github.com/alphabill-org/zkbridge/internal/verifier"
)

var log = logger.CreateForPackage()

/*
PublicWitness is the public part of the batch circuit: a single field
element committing to the whole public input. Circuits verified by this
package must declare exactly this public variable.
*/
type PublicWitness struct {
	InputDigest frontend.Variable `gnark:",public"`
}

// Define is a no-op, the type only describes the public witness layout.
func (*PublicWitness) Define(frontend.API) error {
	return nil
}

// Verifier verifies groth16 proofs over BN254.
type Verifier struct {
	vk g16.VerifyingKey
}

func New(vk g16.VerifyingKey) (*Verifier, error) {
	if vk == nil {
		return nil, fmt.Errorf("verifying key is nil")
	}
	return &Verifier{vk: vk}, nil
}

// ReadVerifyingKey creates verifier from the gnark binary encoding of the verifying key.
func ReadVerifyingKey(r io.Reader) (*Verifier, error) {
	vk := g16.NewVerifyingKey(ecc.BN254)
	if _, err := vk.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("reading verifying key: %w", err)
	}
	return New(vk)
}

func LoadVerifyingKey(filename string) (*Verifier, error) {
	f, err := os.Open(filepath.Clean(filename))
	if err != nil {
		return nil, fmt.Errorf("opening verifying key file: %w", err)
	}
	defer f.Close()
	return ReadVerifyingKey(f)
}

func (v *Verifier) Verify(proof []byte, input *types.PublicInput) (bool, error) {
	p := g16.NewProof(ecc.BN254)
	if _, err := p.ReadFrom(bytes.NewReader(proof)); err != nil {
		return false, fmt.Errorf("%w: %w", verifier.ErrMalformedProof, err)
	}
	w, err := NewPublicWitness(input)
	if err != nil {
		return false, err
	}
	public, err := frontend.NewWitness(w, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return false, fmt.Errorf("creating public witness: %w", err)
	}
	if err := g16.Verify(p, v.vk, public); err != nil {
		log.Debug("proof rejected: %v", err)
		return false, nil
	}
	return true, nil
}

// NewPublicWitness returns the witness assignment for the public input.
func NewPublicWitness(input *types.PublicInput) (*PublicWitness, error) {
	digest, err := input.Digest()
	if err != nil {
		return nil, err
	}
	return &PublicWitness{InputDigest: DigestToField(digest)}, nil
}

// DigestToField maps the digest into the BN254 scalar field by clearing
// the three most significant bits.
func DigestToField(digest types.Hash) *big.Int {
	digest[0] &= 0x1f
	return new(big.Int).SetBytes(digest[:])
}
