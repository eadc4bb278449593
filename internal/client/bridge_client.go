package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alphabill-org/zkbridge/internal/bridge"
	"github.com/alphabill-org/zkbridge/internal/crypto"
	"github.com/alphabill-org/zkbridge/internal/logger"
	"github.com/alphabill-org/zkbridge/internal/proofbuffer"
	"github.com/alphabill-org/zkbridge/internal/rpc"
	"github.com/alphabill-org/zkbridge/internal/types"
	"github.com/alphabill-org/zkbridge/internal/util"
)

const (
	PlatformsPath = "api/v1/platforms"
	BalancesPath  = "api/v1/balances"

	DefaultChunkSize = 64 * 1024

	defaultScheme   = "http://"
	contentType     = "Content-Type"
	applicationJson = "application/json"
)

var log = logger.CreateForPackage()

type (
	// BridgeClient calls the REST API of the bridge node. Mutating calls are
	// signed with the signer, its public key is the caller identity.
	BridgeClient struct {
		BaseUrl    *url.URL
		HttpClient http.Client
		signer     crypto.Signer

		platformsURL *url.URL
		balancesURL  *url.URL
	}

	// ResponseError is returned when the node responds with non-success status.
	ResponseError struct {
		StatusCode int
		Message    string
	}
)

func New(baseUrl string, signer crypto.Signer) (*BridgeClient, error) {
	if !strings.HasPrefix(baseUrl, "http://") && !strings.HasPrefix(baseUrl, "https://") {
		baseUrl = defaultScheme + baseUrl
	}
	u, err := url.Parse(baseUrl)
	if err != nil {
		return nil, fmt.Errorf("parsing bridge node URL (%s): %w", baseUrl, err)
	}
	return &BridgeClient{
		BaseUrl:      u,
		HttpClient:   http.Client{Timeout: time.Minute},
		signer:       signer,
		platformsURL: u.JoinPath(PlatformsPath),
		balancesURL:  u.JoinPath(BalancesPath),
	}, nil
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("bridge node responded %d: %s", e.StatusCode, e.Message)
}

// IsNotFound returns true when the error is 404 response of the node.
func IsNotFound(err error) bool {
	var re *ResponseError
	return errors.As(err, &re) && re.StatusCode == http.StatusNotFound
}

func (c *BridgeClient) Identity() (types.Identity, error) {
	if c.signer == nil {
		return nil, errors.New("client has no signing key")
	}
	return c.signer.Verifier().MarshalPublicKey(), nil
}

func (c *BridgeClient) CreatePlatform(ctx context.Context, id types.PlatformID, initialStateHash types.Hash) (*types.Platform, error) {
	res := &types.Platform{}
	req := &rpc.CreatePlatformRequest{PlatformID: id, InitialStateHash: initialStateHash}
	if err := c.signed(ctx, http.MethodPost, c.platformsURL, req, res); err != nil {
		return nil, fmt.Errorf("create platform: %w", err)
	}
	return res, nil
}

func (c *BridgeClient) Platform(ctx context.Context, id types.PlatformID) (*types.Platform, error) {
	res := &types.Platform{}
	if err := c.get(ctx, c.platformURL(id), res); err != nil {
		return nil, fmt.Errorf("get platform: %w", err)
	}
	return res, nil
}

func (c *BridgeClient) Platforms(ctx context.Context) ([]*types.Platform, error) {
	res := &rpc.PlatformsResponse{}
	if err := c.get(ctx, c.platformsURL, res); err != nil {
		return nil, fmt.Errorf("list platforms: %w", err)
	}
	return res.Platforms, nil
}

func (c *BridgeClient) AddRampTx(ctx context.Context, id types.PlatformID, isOnramp bool, amount uint64) (*types.Platform, error) {
	res := &types.Platform{}
	req := &rpc.AddRampTxRequest{PlatformID: id, IsOnramp: isOnramp, Amount: amount}
	if err := c.signed(ctx, http.MethodPost, c.platformURL(id, "ramp-txs"), req, res); err != nil {
		return nil, fmt.Errorf("add ramp tx: %w", err)
	}
	return res, nil
}

func (c *BridgeClient) RampLedger(ctx context.Context, id types.PlatformID, ramper types.Identity) (*types.RampLedger, error) {
	res := &types.RampLedger{}
	if err := c.get(ctx, c.platformURL(id, "ramps", ramper.String()), res); err != nil {
		return nil, fmt.Errorf("get ramp ledger: %w", err)
	}
	return res, nil
}

/*
UploadProof uploads the proof payload in chunks of chunkSize bytes. When the
node already holds the beginning of the same payload from the caller the
upload continues from where it was left, any other buffered proof of the
caller is abandoned first.
*/
func (c *BridgeClient) UploadProof(ctx context.Context, id types.PlatformID, payload []byte, chunkSize int) (*proofbuffer.Status, error) {
	if len(payload) == 0 {
		return nil, errors.New("proof payload is empty")
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	prover, err := c.Identity()
	if err != nil {
		return nil, err
	}
	size := uint64(len(payload))
	var offset uint64
	status, err := c.ProofStatus(ctx, id, prover)
	switch {
	case err == nil && status.Size == size && status.Digest == proofbuffer.PrefixDigest(payload[:status.Cursor]):
		offset = status.Cursor
		log.Debug("resuming proof upload at offset %d", offset)
	case err == nil:
		log.Info("node holds %d of %d bytes of a different proof, abandoning it", status.Cursor, status.Size)
		if err := c.AbandonProof(ctx, id); err != nil {
			return nil, err
		}
	case !IsNotFound(err):
		return nil, err
	}

	for offset < size {
		end := util.Min(offset+uint64(chunkSize), size)
		req := &rpc.UploadProofRequest{PlatformID: id, ProofSize: size, Offset: offset, Chunk: payload[offset:end]}
		status = &proofbuffer.Status{}
		if err := c.signed(ctx, http.MethodPost, c.platformURL(id, "proof"), req, status); err != nil {
			return nil, fmt.Errorf("upload proof chunk at %d: %w", offset, err)
		}
		offset = end
	}
	return status, nil
}

func (c *BridgeClient) AbandonProof(ctx context.Context, id types.PlatformID) error {
	req := &rpc.AbandonProofRequest{PlatformID: id}
	if err := c.signed(ctx, http.MethodDelete, c.platformURL(id, "proof"), req, &rpc.EmptyResponse{}); err != nil {
		return fmt.Errorf("abandon proof: %w", err)
	}
	return nil
}

func (c *BridgeClient) ProofStatus(ctx context.Context, id types.PlatformID, prover types.Identity) (*proofbuffer.Status, error) {
	res := &proofbuffer.Status{}
	if err := c.get(ctx, c.platformURL(id, "proof", prover.String()), res); err != nil {
		return nil, fmt.Errorf("get proof status: %w", err)
	}
	return res, nil
}

// Prove proves the pending batch with the uploaded proof, or with the inline
// payload when it is not empty.
func (c *BridgeClient) Prove(ctx context.Context, id types.PlatformID, inline []byte) (*bridge.ProveResult, error) {
	res := &bridge.ProveResult{}
	req := &rpc.ProveRequest{PlatformID: id, Inline: inline}
	if err := c.signed(ctx, http.MethodPost, c.platformURL(id, "prove"), req, res); err != nil {
		return nil, fmt.Errorf("prove: %w", err)
	}
	return res, nil
}

func (c *BridgeClient) Withdraw(ctx context.Context, id types.PlatformID, amount uint64) (*types.RampLedger, error) {
	res := &types.RampLedger{}
	req := &rpc.WithdrawRequest{PlatformID: id, Amount: amount}
	if err := c.signed(ctx, http.MethodPost, c.platformURL(id, "withdraw"), req, res); err != nil {
		return nil, fmt.Errorf("withdraw: %w", err)
	}
	return res, nil
}

func (c *BridgeClient) Balance(ctx context.Context, owner types.Identity) (*types.Balance, error) {
	res := &types.Balance{}
	if err := c.get(ctx, c.balancesURL.JoinPath(owner.String()), res); err != nil {
		return nil, fmt.Errorf("get balance: %w", err)
	}
	return res, nil
}

func (c *BridgeClient) platformURL(id types.PlatformID, elem ...string) *url.URL {
	return c.platformsURL.JoinPath(append([]string{id.String()}, elem...)...)
}

func (c *BridgeClient) get(ctx context.Context, u *url.URL, res any) error {
	return c.do(ctx, http.MethodGet, u, nil, res)
}

func (c *BridgeClient) signed(ctx context.Context, method string, u *url.URL, payload rpc.Request, res any) error {
	if c.signer == nil {
		return errors.New("client has no signing key")
	}
	req, err := rpc.NewSignedRequest(c.signer, payload)
	if err != nil {
		return err
	}
	b, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	return c.do(ctx, method, u, bytes.NewReader(b), res)
}

func (c *BridgeClient) do(ctx context.Context, method string, u *url.URL, body io.Reader, res any) error {
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set(contentType, applicationJson)
	response, err := c.HttpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s failed: %w", method, u.Path, err)
	}
	defer response.Body.Close()

	data, err := io.ReadAll(response.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if response.StatusCode >= http.StatusBadRequest {
		errRes := &rpc.ErrorResponse{}
		if err := json.Unmarshal(data, errRes); err != nil || errRes.Message == "" {
			errRes.Message = strings.TrimSpace(string(data))
		}
		return &ResponseError{StatusCode: response.StatusCode, Message: errRes.Message}
	}
	if err := json.Unmarshal(data, res); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
