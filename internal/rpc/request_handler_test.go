package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/require"

	"github.com/alphabill-org/zkbridge/internal/bridge"
	"github.com/alphabill-org/zkbridge/internal/crypto"
	"github.com/alphabill-org/zkbridge/internal/keyvaluedb/memorydb"
	"github.com/alphabill-org/zkbridge/internal/proofbuffer"
	"github.com/alphabill-org/zkbridge/internal/state"
	"github.com/alphabill-org/zkbridge/internal/types"
	"github.com/alphabill-org/zkbridge/internal/verifier"
)

var (
	platformID = types.PlatformID{0x01, 0x02}
	h0         = types.Hash{0x10}
	h1         = types.Hash{0x11}
)

func newTestServer(t *testing.T) (*httptest.Server, *bridge.Engine) {
	store, err := state.New(memorydb.New())
	require.NoError(t, err)
	engine, err := bridge.New(store, verifier.DigestVerifier{})
	require.NoError(t, err)
	handler := &RequestHandler{Bridge: engine, MaxBodySize: DefaultMaxBodySize}
	srv := httptest.NewServer(handler.Router())
	t.Cleanup(srv.Close)
	return srv, engine
}

func newSigner(t *testing.T) *crypto.Secp256k1Signer {
	s, err := crypto.NewSecp256k1Signer()
	require.NoError(t, err)
	return s
}

func identity(s crypto.Signer) types.Identity {
	return s.Verifier().MarshalPublicKey()
}

func doSigned(t *testing.T, method, url string, signer crypto.Signer, payload Request, res any) int {
	t.Helper()
	req, err := NewSignedRequest(signer, payload)
	require.NoError(t, err)
	return doJson(t, method, url, req, res)
}

func signPayload(t *testing.T, signer crypto.Signer, payload *RequestPayload) *SignedRequest {
	t.Helper()
	b, err := types.Cbor.Marshal(payload)
	require.NoError(t, err)
	sig, err := signer.SignBytes(b)
	require.NoError(t, err)
	return &SignedRequest{Payload: b, PubKey: hexutil.Bytes(identity(signer)), Signature: sig}
}

func doJson(t *testing.T, method, url string, body, res any) int {
	t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, rdr)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	if res != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(res))
	}
	return resp.StatusCode
}

func TestRequestHandler_Flow(t *testing.T) {
	srv, _ := newTestServer(t)
	api := srv.URL + "/api/v1"
	platformURL := fmt.Sprintf("%s/platforms/%s", api, platformID)
	sequencer, depositor, ramper, prover := newSigner(t), newSigner(t), newSigner(t), newSigner(t)

	p := &types.Platform{}
	require.Equal(t, http.StatusCreated, doSigned(t, "POST", api+"/platforms", sequencer, &CreatePlatformRequest{PlatformID: platformID, InitialStateHash: h0}, p))
	require.Equal(t, identity(sequencer), p.Sequencer)
	require.Equal(t, h0, p.LastStateHash)

	errRes := &ErrorResponse{}
	require.Equal(t, http.StatusConflict, doSigned(t, "POST", api+"/platforms", sequencer, &CreatePlatformRequest{PlatformID: platformID}, errRes))
	require.Contains(t, errRes.Message, "already exists")

	require.Equal(t, http.StatusOK, doSigned(t, "POST", platformURL+"/ramp-txs", depositor, &AddRampTxRequest{PlatformID: platformID, IsOnramp: true, Amount: 100}, p))
	require.Equal(t, http.StatusOK, doSigned(t, "POST", platformURL+"/ramp-txs", ramper, &AddRampTxRequest{PlatformID: platformID, Amount: 40}, p))
	require.Len(t, p.RampTxs, 2)
	require.Equal(t, &types.RampTx{User: identity(ramper), Amount: 40}, p.RampTxs[1])

	// upload proof in two chunks
	pi := types.ExpectedPublicInput(p, h1)
	proof, err := verifier.DigestProof(pi)
	require.NoError(t, err)
	payload, err := (&types.ProofPayload{Proof: proof, PublicInput: pi}).Bytes()
	require.NoError(t, err)
	size := uint64(len(payload))
	status := &proofbuffer.Status{}
	require.Equal(t, http.StatusOK, doSigned(t, "POST", platformURL+"/proof", prover, &UploadProofRequest{PlatformID: platformID, ProofSize: size, Offset: 0, Chunk: payload[:50]}, status))
	require.Equal(t, "accumulating", status.State)
	require.Equal(t, http.StatusBadRequest, doSigned(t, "POST", platformURL+"/proof", prover, &UploadProofRequest{PlatformID: platformID, ProofSize: size, Offset: 60, Chunk: payload[60:]}, errRes))
	require.Contains(t, errRes.Message, "invalid proof data")

	require.Equal(t, http.StatusOK, doJson(t, "GET", fmt.Sprintf("%s/proof/%s", platformURL, identity(prover)), nil, status))
	require.EqualValues(t, 50, status.Cursor)

	require.Equal(t, http.StatusOK, doSigned(t, "POST", platformURL+"/proof", prover, &UploadProofRequest{PlatformID: platformID, ProofSize: size, Offset: 50, Chunk: payload[50:]}, status))
	require.Equal(t, "complete", status.State)

	res := &bridge.ProveResult{}
	require.Equal(t, http.StatusOK, doSigned(t, "POST", platformURL+"/prove", prover, &ProveRequest{PlatformID: platformID}, res))
	require.Equal(t, h1, res.PostStateHash)
	require.EqualValues(t, 100, res.Deposited)
	require.EqualValues(t, 40, res.Withdrawn)

	// replay
	require.Equal(t, http.StatusUnprocessableEntity, doSigned(t, "POST", platformURL+"/prove", prover, &ProveRequest{PlatformID: platformID, Inline: payload}, errRes))
	require.Contains(t, errRes.Message, "missing ramp transactions")

	l := &types.RampLedger{}
	require.Equal(t, http.StatusOK, doJson(t, "GET", fmt.Sprintf("%s/ramps/%s", platformURL, identity(ramper)), nil, l))
	require.Equal(t, h1, l.CurrentStateHash)
	require.EqualValues(t, 40, l.PendingWithdraw)

	require.Equal(t, http.StatusOK, doSigned(t, "POST", platformURL+"/withdraw", ramper, &WithdrawRequest{PlatformID: platformID, Amount: 40}, l))
	require.Zero(t, l.PendingWithdraw)
	require.Equal(t, http.StatusUnprocessableEntity, doSigned(t, "POST", platformURL+"/withdraw", ramper, &WithdrawRequest{PlatformID: platformID, Amount: 1}, errRes))
	require.Contains(t, errRes.Message, "insufficient deposits")

	bal := &types.Balance{}
	require.Equal(t, http.StatusOK, doJson(t, "GET", fmt.Sprintf("%s/balances/%s", api, identity(ramper)), nil, bal))
	require.EqualValues(t, 40, bal.Amount)

	require.Equal(t, http.StatusOK, doJson(t, "GET", platformURL, nil, p))
	require.EqualValues(t, 100, p.Deposit)
	require.EqualValues(t, 40, p.Withdraw)
	require.EqualValues(t, 40, p.Paid)
	require.Empty(t, p.RampTxs)

	list := &PlatformsResponse{}
	require.Equal(t, http.StatusOK, doJson(t, "GET", api+"/platforms", nil, list))
	require.Len(t, list.Platforms, 1)
}

func TestRequestHandler_AbandonProof(t *testing.T) {
	srv, engine := newTestServer(t)
	platformURL := fmt.Sprintf("%s/api/v1/platforms/%s", srv.URL, platformID)
	prover := newSigner(t)
	_, err := engine.CreatePlatform(context.Background(), types.Identity{1}, platformID, h0)
	require.NoError(t, err)

	errRes := &ErrorResponse{}
	require.Equal(t, http.StatusNotFound, doSigned(t, "DELETE", platformURL+"/proof", prover, &AbandonProofRequest{PlatformID: platformID}, errRes))

	_, err = engine.UploadProof(context.Background(), platformID, identity(prover), 10, 0, []byte{1})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, doSigned(t, "DELETE", platformURL+"/proof", prover, &AbandonProofRequest{PlatformID: platformID}, &EmptyResponse{}))
	_, err = engine.ProofStatus(context.Background(), platformID, identity(prover))
	require.ErrorIs(t, err, bridge.ErrProofNotFound)
}

func TestRequestHandler_InvalidRequests(t *testing.T) {
	srv, engine := newTestServer(t)
	api := srv.URL + "/api/v1"
	platformURL := fmt.Sprintf("%s/platforms/%s", api, platformID)
	signer := newSigner(t)
	_, err := engine.CreatePlatform(context.Background(), identity(signer), platformID, h0)
	require.NoError(t, err)
	errRes := &ErrorResponse{}

	t.Run("unknown platform", func(t *testing.T) {
		other := types.PlatformID{0xFF}
		require.Equal(t, http.StatusNotFound, doJson(t, "GET", fmt.Sprintf("%s/platforms/%s", api, other), nil, errRes))
		require.Equal(t, http.StatusNotFound, doSigned(t, "POST", fmt.Sprintf("%s/platforms/%s/ramp-txs", api, other), signer, &AddRampTxRequest{PlatformID: other}, errRes))
	})

	t.Run("invalid platform id", func(t *testing.T) {
		require.Equal(t, http.StatusBadRequest, doJson(t, "GET", api+"/platforms/0x0102", nil, errRes))
		require.Contains(t, errRes.Message, "invalid platform id length")
	})

	t.Run("platform id does not match the signed one", func(t *testing.T) {
		require.Equal(t, http.StatusBadRequest, doSigned(t, "POST", platformURL+"/ramp-txs", signer, &AddRampTxRequest{PlatformID: types.PlatformID{9}, Amount: 1}, errRes))
		require.Contains(t, errRes.Message, "does not match the path")
	})

	t.Run("invalid signature", func(t *testing.T) {
		req, err := NewSignedRequest(signer, &AddRampTxRequest{PlatformID: platformID, Amount: 1})
		require.NoError(t, err)
		req.PubKey = hexutil.Bytes(identity(newSigner(t)))
		require.Equal(t, http.StatusUnauthorized, doJson(t, "POST", platformURL+"/ramp-txs", req, errRes))
		require.Contains(t, errRes.Message, "invalid signature")
	})

	t.Run("payload of wrong type", func(t *testing.T) {
		attr, err := types.Cbor.Marshal("hello")
		require.NoError(t, err)
		req := signPayload(t, signer, &RequestPayload{Type: RequestTypeAddRampTx, Attributes: attr})
		require.Equal(t, http.StatusBadRequest, doJson(t, "POST", platformURL+"/ramp-txs", req, errRes))
		require.Contains(t, errRes.Message, "decoding payload")
	})

	t.Run("signed for another operation", func(t *testing.T) {
		// same CBOR shape as ProveRequest with inline proof
		req, err := NewSignedRequest(signer, &CreatePlatformRequest{PlatformID: platformID, InitialStateHash: h1})
		require.NoError(t, err)
		require.Equal(t, http.StatusUnauthorized, doJson(t, "POST", platformURL+"/prove", req, errRes))
		require.Contains(t, errRes.Message, `payload is signed for "createPlatform" request, expected "prove"`)

		req, err = NewSignedRequest(signer, &AbandonProofRequest{PlatformID: platformID})
		require.NoError(t, err)
		require.Equal(t, http.StatusUnauthorized, doJson(t, "POST", platformURL+"/withdraw", req, errRes))
	})

	t.Run("unknown field", func(t *testing.T) {
		require.Equal(t, http.StatusBadRequest, doJson(t, "POST", platformURL+"/ramp-txs", map[string]string{"foo": "0x01"}, errRes))
		require.Contains(t, errRes.Message, "decoding request body")
	})

	t.Run("missing ramp ledger", func(t *testing.T) {
		require.Equal(t, http.StatusNotFound, doJson(t, "GET", fmt.Sprintf("%s/ramps/%s", platformURL, identity(signer)), nil, errRes))
		require.Equal(t, http.StatusBadRequest, doJson(t, "GET", platformURL+"/ramps/0x", nil, errRes))
	})

	t.Run("prove without ramp txs", func(t *testing.T) {
		require.Equal(t, http.StatusUnprocessableEntity, doSigned(t, "POST", platformURL+"/prove", signer, &ProveRequest{PlatformID: platformID}, errRes))
	})
}

func TestRequestHandler_BodyLimit(t *testing.T) {
	store, err := state.New(memorydb.New())
	require.NoError(t, err)
	engine, err := bridge.New(store, verifier.DigestVerifier{})
	require.NoError(t, err)
	srv := httptest.NewServer((&RequestHandler{Bridge: engine, MaxBodySize: 100}).Router())
	defer srv.Close()

	errRes := &ErrorResponse{}
	code := doSigned(t, "POST", fmt.Sprintf("%s/api/v1/platforms/%s/proof", srv.URL, platformID), newSigner(t),
		&UploadProofRequest{PlatformID: platformID, ProofSize: 200, Chunk: make([]byte, 200)}, errRes)
	require.Equal(t, http.StatusBadRequest, code)
	require.Contains(t, errRes.Message, "request body too large")
}

func TestErrorStatus(t *testing.T) {
	require.Equal(t, http.StatusInsufficientStorage, errorStatus(fmt.Errorf("adding: %w", bridge.ErrOutOfMemory)))
	require.Equal(t, http.StatusUnprocessableEntity, errorStatus(bridge.ErrInvalidProof))
	require.Equal(t, http.StatusUnprocessableEntity, errorStatus(bridge.ErrQueueFull))
	require.Equal(t, http.StatusUnprocessableEntity, errorStatus(bridge.ErrInvalidStateHash))
	require.Equal(t, http.StatusInternalServerError, errorStatus(errors.New("disk failure")))
	require.Equal(t, http.StatusInternalServerError, errorStatus(bridge.ErrDeserialization))
}

func TestRun(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	store, err := state.New(memorydb.New())
	require.NoError(t, err)
	engine, err := bridge.New(store, verifier.DigestVerifier{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, addr, &RequestHandler{Bridge: engine}) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/api/v1/platforms")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(6 * time.Second):
		t.Fatal("server did not stop")
	}
}
