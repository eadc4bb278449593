package crypto

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

const (
	PrivateKeySize = 32
	// CompressedPublicKeySize is the size of the key used as the identity of a
	// sequencer, ramper or prover.
	CompressedPublicKeySize = 33
)

var ErrInvalidSignature = errors.New("invalid signature")

type (
	// Signer component for digitally signing data.
	Signer interface {
		// SignBytes signs the SHA-256 digest of data. Returns DER encoded signature.
		SignBytes(data []byte) ([]byte, error)
		// MarshalPrivateKey returns the private key bytes so these could be unmarshalled later to create the Signer.
		MarshalPrivateKey() []byte
		// Verifier returns a verifier that verifies using the public key part.
		Verifier() Verifier
	}

	// Verifier component for verifying signatures.
	Verifier interface {
		// VerifyBytes verifies the signature of data, returns ErrInvalidSignature
		// when the signature does not match.
		VerifyBytes(sig []byte, data []byte) error
		// MarshalPublicKey returns the compressed public key.
		MarshalPublicKey() []byte
	}

	// Secp256k1Signer keeps the private key in memory.
	Secp256k1Signer struct {
		key *btcec.PrivateKey
	}

	Secp256k1Verifier struct {
		key *btcec.PublicKey
	}
)

// NewSecp256k1Signer generates new random key.
func NewSecp256k1Signer() (*Secp256k1Signer, error) {
	key, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generating private key: %w", err)
	}
	return &Secp256k1Signer{key: key}, nil
}

func NewSecp256k1SignerFromKey(privKey []byte) (*Secp256k1Signer, error) {
	if len(privKey) != PrivateKeySize {
		return nil, fmt.Errorf("invalid private key length %d, expected %d", len(privKey), PrivateKeySize)
	}
	key, _ := btcec.PrivKeyFromBytes(privKey)
	if key.Key.IsZero() {
		return nil, errors.New("private key is zero")
	}
	return &Secp256k1Signer{key: key}, nil
}

func (s *Secp256k1Signer) SignBytes(data []byte) ([]byte, error) {
	if s == nil || s.key == nil {
		return nil, errors.New("signer is nil")
	}
	digest := sha256.Sum256(data)
	return ecdsa.Sign(s.key, digest[:]).Serialize(), nil
}

func (s *Secp256k1Signer) MarshalPrivateKey() []byte {
	return s.key.Serialize()
}

func (s *Secp256k1Signer) Verifier() Verifier {
	return &Secp256k1Verifier{key: s.key.PubKey()}
}

// NewVerifier parses compressed or uncompressed secp256k1 public key.
func NewVerifier(pubKey []byte) (*Secp256k1Verifier, error) {
	key, err := btcec.ParsePubKey(pubKey)
	if err != nil {
		return nil, fmt.Errorf("parsing public key: %w", err)
	}
	return &Secp256k1Verifier{key: key}, nil
}

func (v *Secp256k1Verifier) VerifyBytes(sig []byte, data []byte) error {
	signature, err := ecdsa.ParseDERSignature(sig)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	digest := sha256.Sum256(data)
	if !signature.Verify(digest[:], v.key) {
		return ErrInvalidSignature
	}
	return nil
}

func (v *Secp256k1Verifier) MarshalPublicKey() []byte {
	return v.key.SerializeCompressed()
}
