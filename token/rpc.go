package token

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/holiman/uint256"
	"golang.org/x/time/rate"

	"github.com/bitfsorg/libfarm-go/amount"
	"github.com/bitfsorg/libfarm-go/identity"
)

// Gateway methods. Both take QueryParams and answer with a base-10 amount
// string.
const (
	MethodBalance = "token_balance"
	MethodRewards = "farm_rewards"
)

// maxErrorBody bounds how much of a non-2xx body ends up in an error.
const maxErrorBody = 1024

// QueryParams are the named parameters of every gateway query.
type QueryParams struct {
	Contract   string  `json:"contract"`
	Owner      string  `json:"owner"`
	ViewingKey string  `json:"viewing_key,omitempty"`
	Block      *uint64 `json:"block,omitempty"`
}

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      uint64      `json:"id"`
	Method  string      `json:"method"`
	Params  QueryParams `json:"params"`
}

type rpcResponse struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// RPCClient queries a token gateway over JSON-RPC 2.0. It implements
// Querier and never retries.
type RPCClient struct {
	cfg     RPCConfig
	http    *http.Client
	limiter *rate.Limiter // nil when unlimited
	lastID  atomic.Uint64
}

var _ Querier = (*RPCClient)(nil)

// NewRPCClient creates a client for cfg. The viewing key, when set, rides
// on every query so the gateway can authenticate reads made on behalf of
// the calling contract.
func NewRPCClient(cfg RPCConfig) *RPCClient {
	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return &RPCClient{
		cfg:     cfg,
		limiter: limiter,
		http: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     60 * time.Second,
			},
		},
	}
}

// Balance implements Querier.
func (c *RPCClient) Balance(ctx context.Context, contract, owner identity.Address) (*uint256.Int, error) {
	return c.query(ctx, MethodBalance, c.params(contract, owner, nil))
}

// UnclaimedYield implements Querier.
func (c *RPCClient) UnclaimedYield(ctx context.Context, contract, owner identity.Address, asOfBlock uint64) (*uint256.Int, error) {
	return c.query(ctx, MethodRewards, c.params(contract, owner, &asOfBlock))
}

func (c *RPCClient) params(contract, owner identity.Address, block *uint64) QueryParams {
	return QueryParams{
		Contract:   contract.String(),
		Owner:      owner.String(),
		ViewingKey: c.cfg.ViewingKey,
		Block:      block,
	}
}

// query performs one round trip and parses the decimal amount it returns.
func (c *RPCClient) query(ctx context.Context, method string, params QueryParams) (*uint256.Int, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("token: %s: %w", method, err)
		}
	}
	req := rpcRequest{JSONRPC: "2.0", ID: c.lastID.Add(1), Method: method, Params: params}
	resp, err := c.roundTrip(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.ID != req.ID {
		return nil, fmt.Errorf("%w: %s: answered id %d, sent %d", ErrInvalidResponse, method, resp.ID, req.ID)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("%w: %s: %d %s", ErrGateway, method, resp.Error.Code, resp.Error.Message)
	}

	var raw string
	if err := json.Unmarshal(resp.Result, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s: result is not a string: %w", ErrInvalidResponse, method, err)
	}
	v, err := amount.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidResponse, method, err)
	}
	return v, nil
}

func (c *RPCClient) roundTrip(ctx context.Context, req rpcRequest) (*rpcResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("token: encode %s: %w", req.Method, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("token: build %s request: %w", req.Method, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.User != "" {
		httpReq.SetBasicAuth(c.cfg.User, c.cfg.Password)
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	if httpResp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(httpResp.Body, maxErrorBody))
		return nil, fmt.Errorf("%w: %s: %s", ErrConnectionFailed, httpResp.Status, bytes.TrimSpace(snippet))
	}

	var resp rpcResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidResponse, req.Method, err)
	}
	return &resp, nil
}
