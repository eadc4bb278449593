package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/alphabill-org/zkbridge/internal/bridge"
	"github.com/alphabill-org/zkbridge/internal/logger"
	"github.com/alphabill-org/zkbridge/internal/metrics"
	"github.com/alphabill-org/zkbridge/internal/proofbuffer"
	"github.com/alphabill-org/zkbridge/internal/types"
)

const (
	contentType = "Content-Type"
	// DefaultMaxBodySize is large enough for a hex encoded proof chunk of 1 MiB.
	DefaultMaxBodySize = 4 * 1024 * 1024
)

var log = logger.CreateForPackage()

type (
	// Bridge is implemented by bridge.Engine.
	Bridge interface {
		CreatePlatform(ctx context.Context, sequencer types.Identity, id types.PlatformID, initialStateHash types.Hash) (*types.Platform, error)
		AddRampTx(ctx context.Context, id types.PlatformID, caller types.Identity, isOnramp bool, amount uint64) (*types.Platform, error)
		UploadProof(ctx context.Context, id types.PlatformID, prover types.Identity, proofSize, offset uint64, chunk []byte) (*proofbuffer.Status, error)
		AbandonProof(ctx context.Context, id types.PlatformID, prover types.Identity) error
		Prove(ctx context.Context, id types.PlatformID, prover types.Identity) (*bridge.ProveResult, error)
		ProveInline(ctx context.Context, id types.PlatformID, prover types.Identity, payload []byte) (*bridge.ProveResult, error)
		Withdraw(ctx context.Context, id types.PlatformID, ramper types.Identity, amount uint64) (*types.RampLedger, error)

		Platform(ctx context.Context, id types.PlatformID) (*types.Platform, error)
		Platforms(ctx context.Context) ([]*types.Platform, error)
		RampLedger(ctx context.Context, id types.PlatformID, ramper types.Identity) (*types.RampLedger, error)
		ProofStatus(ctx context.Context, id types.PlatformID, prover types.Identity) (*proofbuffer.Status, error)
		Balance(ctx context.Context, owner types.Identity) (*types.Balance, error)
	}

	RequestHandler struct {
		Bridge      Bridge
		MaxBodySize int64
	}

	PlatformsResponse struct {
		Platforms []*types.Platform `json:"platforms"`
	}

	EmptyResponse struct{}

	ErrorResponse struct {
		Message string `json:"message"`
	}
)

func (s *RequestHandler) Router() *mux.Router {
	r := mux.NewRouter().StrictSlash(true)
	apiRouter := r.PathPrefix("/api").Subrouter()

	// content-type needs to be explicitly defined without this content-type header is not allowed and cors filter is not applied
	// OPTIONS method needs to be explicitly defined for each handler func
	apiRouter.Use(handlers.CORS(handlers.AllowedHeaders([]string{contentType})))

	apiV1 := apiRouter.PathPrefix("/v1").Subrouter()
	apiV1.HandleFunc("/platforms", s.listPlatformsFunc).Methods("GET", "OPTIONS")
	apiV1.HandleFunc("/platforms", s.createPlatformFunc).Methods("POST", "OPTIONS")
	apiV1.HandleFunc("/platforms/{id}", s.getPlatformFunc).Methods("GET", "OPTIONS")
	apiV1.HandleFunc("/platforms/{id}/ramp-txs", s.addRampTxFunc).Methods("POST", "OPTIONS")
	apiV1.HandleFunc("/platforms/{id}/ramps/{ramper}", s.getRampLedgerFunc).Methods("GET", "OPTIONS")
	apiV1.HandleFunc("/platforms/{id}/proof", s.uploadProofFunc).Methods("POST", "OPTIONS")
	apiV1.HandleFunc("/platforms/{id}/proof", s.abandonProofFunc).Methods("DELETE", "OPTIONS")
	apiV1.HandleFunc("/platforms/{id}/proof/{prover}", s.getProofStatusFunc).Methods("GET", "OPTIONS")
	apiV1.HandleFunc("/platforms/{id}/prove", s.proveFunc).Methods("POST", "OPTIONS")
	apiV1.HandleFunc("/platforms/{id}/withdraw", s.withdrawFunc).Methods("POST", "OPTIONS")
	apiV1.HandleFunc("/balances/{identity}", s.getBalanceFunc).Methods("GET", "OPTIONS")

	if metrics.Enabled() {
		r.Handle("/metrics", metrics.PrometheusHandler()).Methods("GET")
	}
	return r
}

func (s *RequestHandler) listPlatformsFunc(w http.ResponseWriter, r *http.Request) {
	platforms, err := s.Bridge.Platforms(r.Context())
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeAsJson(w, PlatformsResponse{Platforms: platforms})
}

func (s *RequestHandler) createPlatformFunc(w http.ResponseWriter, r *http.Request) {
	req := &CreatePlatformRequest{}
	caller, err := s.readSignedRequest(w, r, req)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	p, err := s.Bridge.CreatePlatform(r.Context(), caller, req.PlatformID, req.InitialStateHash)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJson(w, http.StatusCreated, p)
}

func (s *RequestHandler) getPlatformFunc(w http.ResponseWriter, r *http.Request) {
	id, err := parsePlatformID(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	p, err := s.Bridge.Platform(r.Context(), id)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeAsJson(w, p)
}

func (s *RequestHandler) addRampTxFunc(w http.ResponseWriter, r *http.Request) {
	req := &AddRampTxRequest{}
	caller, err := s.readPlatformRequest(w, r, req, &req.PlatformID)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	p, err := s.Bridge.AddRampTx(r.Context(), req.PlatformID, caller, req.IsOnramp, req.Amount)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeAsJson(w, p)
}

func (s *RequestHandler) getRampLedgerFunc(w http.ResponseWriter, r *http.Request) {
	id, err := parsePlatformID(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	ramper, err := parseIdentity(r, "ramper")
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	l, err := s.Bridge.RampLedger(r.Context(), id, ramper)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeAsJson(w, l)
}

func (s *RequestHandler) uploadProofFunc(w http.ResponseWriter, r *http.Request) {
	req := &UploadProofRequest{}
	caller, err := s.readPlatformRequest(w, r, req, &req.PlatformID)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	status, err := s.Bridge.UploadProof(r.Context(), req.PlatformID, caller, req.ProofSize, req.Offset, req.Chunk)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeAsJson(w, status)
}

func (s *RequestHandler) abandonProofFunc(w http.ResponseWriter, r *http.Request) {
	req := &AbandonProofRequest{}
	caller, err := s.readPlatformRequest(w, r, req, &req.PlatformID)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	if err := s.Bridge.AbandonProof(r.Context(), req.PlatformID, caller); err != nil {
		s.handleError(w, r, err)
		return
	}
	writeAsJson(w, EmptyResponse{})
}

func (s *RequestHandler) getProofStatusFunc(w http.ResponseWriter, r *http.Request) {
	id, err := parsePlatformID(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	prover, err := parseIdentity(r, "prover")
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	status, err := s.Bridge.ProofStatus(r.Context(), id, prover)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeAsJson(w, status)
}

func (s *RequestHandler) proveFunc(w http.ResponseWriter, r *http.Request) {
	req := &ProveRequest{}
	caller, err := s.readPlatformRequest(w, r, req, &req.PlatformID)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	var res *bridge.ProveResult
	if len(req.Inline) > 0 {
		res, err = s.Bridge.ProveInline(r.Context(), req.PlatformID, caller, req.Inline)
	} else {
		res, err = s.Bridge.Prove(r.Context(), req.PlatformID, caller)
	}
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeAsJson(w, res)
}

func (s *RequestHandler) withdrawFunc(w http.ResponseWriter, r *http.Request) {
	req := &WithdrawRequest{}
	caller, err := s.readPlatformRequest(w, r, req, &req.PlatformID)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	l, err := s.Bridge.Withdraw(r.Context(), req.PlatformID, caller, req.Amount)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeAsJson(w, l)
}

func (s *RequestHandler) getBalanceFunc(w http.ResponseWriter, r *http.Request) {
	owner, err := parseIdentity(r, "identity")
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	b, err := s.Bridge.Balance(r.Context(), owner)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeAsJson(w, b)
}

func (s *RequestHandler) readSignedRequest(w http.ResponseWriter, r *http.Request, payload Request) (types.Identity, error) {
	if s.MaxBodySize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.MaxBodySize)
	}
	req := &SignedRequest{}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(req); err != nil {
		return nil, fmt.Errorf("%w: decoding request body: %w", ErrInvalidRequest, err)
	}
	return req.Open(payload)
}

// readPlatformRequest reads signed request addressed to the platform in
// the path, the platform id is part of the signed payload too.
func (s *RequestHandler) readPlatformRequest(w http.ResponseWriter, r *http.Request, payload Request, signedID *types.PlatformID) (types.Identity, error) {
	id, err := parsePlatformID(r)
	if err != nil {
		return nil, err
	}
	caller, err := s.readSignedRequest(w, r, payload)
	if err != nil {
		return nil, err
	}
	if *signedID != id {
		return nil, fmt.Errorf("%w: signed platform id %s does not match the path", ErrInvalidRequest, signedID)
	}
	return caller, nil
}

func (s *RequestHandler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		log.Error("%s %s: %v", r.Method, r.URL.Path, err)
	} else {
		log.Debug("%s %s: %v", r.Method, r.URL.Path, err)
	}
	writeJson(w, status, ErrorResponse{Message: err.Error()})
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, bridge.ErrInvalidArgument),
		errors.Is(err, bridge.ErrInvalidProofData):
		return http.StatusBadRequest
	case errors.Is(err, bridge.ErrPlatformNotFound),
		errors.Is(err, bridge.ErrRampLedgerNotFound),
		errors.Is(err, bridge.ErrProofNotFound):
		return http.StatusNotFound
	case errors.Is(err, bridge.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, bridge.ErrInsufficientDeposits),
		errors.Is(err, bridge.ErrInvalidStateHash),
		errors.Is(err, bridge.ErrInvalidProof),
		errors.Is(err, bridge.ErrMissingRampTxs),
		errors.Is(err, bridge.ErrQueueFull),
		errors.Is(err, bridge.ErrArithmeticOverflow):
		return http.StatusUnprocessableEntity
	case errors.Is(err, bridge.ErrOutOfMemory):
		return http.StatusInsufficientStorage
	default:
		return http.StatusInternalServerError
	}
}

func writeAsJson(w http.ResponseWriter, res any) {
	writeJson(w, http.StatusOK, res)
}

func writeJson(w http.ResponseWriter, status int, res any) {
	w.Header().Set(contentType, "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(res); err != nil {
		log.Error("encoding response to json: %v", err)
	}
}

func parsePlatformID(r *http.Request) (types.PlatformID, error) {
	id, err := types.PlatformIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		return id, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return id, nil
}

func parseIdentity(r *http.Request, name string) (types.Identity, error) {
	id, err := types.IdentityFromHex(mux.Vars(r)[name])
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidRequest, name, err)
	}
	return id, nil
}
