package types

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

const (
	HashSize       = 32
	PlatformIDSize = 32
)

var (
	ErrInvalidHashLength       = errors.New("invalid hash length")
	ErrInvalidPlatformIDLength = errors.New("invalid platform id length")
	ErrEmptyIdentity           = errors.New("identity is empty")
)

type (
	// Hash is a 32 byte digest, used for state hashes.
	Hash [HashSize]byte

	// PlatformID identifies a rollup platform, immutable after creation.
	PlatformID [PlatformIDSize]byte

	// Identity is the public key of a participant (sequencer, ramper or prover).
	Identity []byte
)

func HashFromBytes(b []byte) (Hash, error) {
	var h Hash
	if len(b) != HashSize {
		return h, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidHashLength, HashSize, len(b))
	}
	copy(h[:], b)
	return h, nil
}

func HashFromHex(s string) (Hash, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return Hash{}, fmt.Errorf("decoding hash: %w", err)
	}
	return HashFromBytes(b)
}

func (h Hash) IsZero() bool {
	return h == Hash{}
}

func (h Hash) Bytes() []byte {
	return h[:]
}

func (h Hash) String() string {
	return hexutil.Encode(h[:])
}

func (h Hash) MarshalText() ([]byte, error) {
	return hexutil.Bytes(h[:]).MarshalText()
}

func (h *Hash) UnmarshalText(text []byte) error {
	var b hexutil.Bytes
	if err := b.UnmarshalText(text); err != nil {
		return err
	}
	v, err := HashFromBytes(b)
	if err != nil {
		return err
	}
	*h = v
	return nil
}

func PlatformIDFromBytes(b []byte) (PlatformID, error) {
	var id PlatformID
	if len(b) != PlatformIDSize {
		return id, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidPlatformIDLength, PlatformIDSize, len(b))
	}
	copy(id[:], b)
	return id, nil
}

func PlatformIDFromHex(s string) (PlatformID, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return PlatformID{}, fmt.Errorf("decoding platform id: %w", err)
	}
	return PlatformIDFromBytes(b)
}

func (id PlatformID) Bytes() []byte {
	return id[:]
}

func (id PlatformID) String() string {
	return hexutil.Encode(id[:])
}

func (id PlatformID) MarshalText() ([]byte, error) {
	return hexutil.Bytes(id[:]).MarshalText()
}

func (id *PlatformID) UnmarshalText(text []byte) error {
	var b hexutil.Bytes
	if err := b.UnmarshalText(text); err != nil {
		return err
	}
	v, err := PlatformIDFromBytes(b)
	if err != nil {
		return err
	}
	*id = v
	return nil
}

func IdentityFromHex(s string) (Identity, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("decoding identity: %w", err)
	}
	if len(b) == 0 {
		return nil, ErrEmptyIdentity
	}
	return b, nil
}

func (id Identity) Eq(other Identity) bool {
	return bytes.Equal(id, other)
}

func (id Identity) String() string {
	return hexutil.Encode(id)
}

func (id Identity) MarshalText() ([]byte, error) {
	return hexutil.Bytes(id).MarshalText()
}

func (id *Identity) UnmarshalText(text []byte) error {
	var b hexutil.Bytes
	if err := b.UnmarshalText(text); err != nil {
		return err
	}
	*id = Identity(b)
	return nil
}
