package rpc

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/fxamacker/cbor/v2"

	"github.com/alphabill-org/zkbridge/internal/crypto"
	"github.com/alphabill-org/zkbridge/internal/types"
)

const (
	RequestTypeCreatePlatform = "createPlatform"
	RequestTypeAddRampTx      = "addRampTx"
	RequestTypeUploadProof    = "uploadProof"
	RequestTypeAbandonProof   = "abandonProof"
	RequestTypeProve          = "prove"
	RequestTypeWithdraw       = "withdraw"
)

var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrUnauthorized   = errors.New("unauthorized")
)

type (
	// Request is implemented by the request structs of the mutating routes.
	Request interface {
		RequestType() string
	}

	/*
	SignedRequest is the body of every mutating request. Payload is CBOR
	encoded RequestPayload, Signature is secp256k1 signature of the payload
	by the PubKey which is the identity of the caller.
	*/
	SignedRequest struct {
		Payload   hexutil.Bytes `json:"payload"`
		PubKey    hexutil.Bytes `json:"pubKey"`
		Signature hexutil.Bytes `json:"signature"`
	}

	// RequestPayload is the signed content of the request. Type is part of
	// the signed data so a signature is only valid for one kind of request.
	RequestPayload struct {
		_          struct{} `cbor:",toarray"`
		Type       string
		Attributes cbor.RawMessage
	}

	CreatePlatformRequest struct {
		_                struct{} `cbor:",toarray"`
		PlatformID       types.PlatformID
		InitialStateHash types.Hash
	}

	AddRampTxRequest struct {
		_          struct{} `cbor:",toarray"`
		PlatformID types.PlatformID
		IsOnramp   bool
		Amount     uint64
	}

	UploadProofRequest struct {
		_          struct{} `cbor:",toarray"`
		PlatformID types.PlatformID
		ProofSize  uint64
		Offset     uint64
		Chunk      []byte
	}

	AbandonProofRequest struct {
		_          struct{} `cbor:",toarray"`
		PlatformID types.PlatformID
	}

	// ProveRequest proves with the uploaded proof, or with Inline payload
	// when it is not empty.
	ProveRequest struct {
		_          struct{} `cbor:",toarray"`
		PlatformID types.PlatformID
		Inline     []byte
	}

	WithdrawRequest struct {
		_          struct{} `cbor:",toarray"`
		PlatformID types.PlatformID
		Amount     uint64
	}
)

func (*CreatePlatformRequest) RequestType() string { return RequestTypeCreatePlatform }
func (*AddRampTxRequest) RequestType() string      { return RequestTypeAddRampTx }
func (*UploadProofRequest) RequestType() string    { return RequestTypeUploadProof }
func (*AbandonProofRequest) RequestType() string   { return RequestTypeAbandonProof }
func (*ProveRequest) RequestType() string          { return RequestTypeProve }
func (*WithdrawRequest) RequestType() string       { return RequestTypeWithdraw }

// NewSignedRequest encodes req together with its type and signs it with the signer.
func NewSignedRequest(signer crypto.Signer, req Request) (*SignedRequest, error) {
	attr, err := types.Cbor.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding %T: %w", req, err)
	}
	b, err := types.Cbor.Marshal(&RequestPayload{Type: req.RequestType(), Attributes: attr})
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}
	sig, err := signer.SignBytes(b)
	if err != nil {
		return nil, fmt.Errorf("signing payload: %w", err)
	}
	return &SignedRequest{Payload: b, PubKey: signer.Verifier().MarshalPublicKey(), Signature: sig}, nil
}

// Open verifies the signature and decodes the payload into v, the payload
// must have been signed for the request type of v. Returns the identity of
// the signer.
func (r *SignedRequest) Open(v Request) (types.Identity, error) {
	if len(r.Payload) == 0 {
		return nil, fmt.Errorf("%w: payload is empty", ErrInvalidRequest)
	}
	if len(r.PubKey) != crypto.CompressedPublicKeySize {
		return nil, fmt.Errorf("%w: public key must be %d bytes compressed secp256k1 key", ErrInvalidRequest, crypto.CompressedPublicKeySize)
	}
	verifier, err := crypto.NewVerifier(r.PubKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if err := verifier.VerifyBytes(r.Signature, r.Payload); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	payload := &RequestPayload{}
	if err := types.Cbor.Unmarshal(r.Payload, payload); err != nil {
		return nil, fmt.Errorf("%w: decoding payload: %w", ErrInvalidRequest, err)
	}
	if payload.Type != v.RequestType() {
		return nil, fmt.Errorf("%w: payload is signed for %q request, expected %q", ErrUnauthorized, payload.Type, v.RequestType())
	}
	if err := types.Cbor.Unmarshal(payload.Attributes, v); err != nil {
		return nil, fmt.Errorf("%w: decoding payload: %w", ErrInvalidRequest, err)
	}
	return types.Identity(r.PubKey), nil
}
