package token

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/libfarm-go/identity"
)

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

// --- Instruction tests ---

func TestKind_String(t *testing.T) {
	assert.Equal(t, "mint", KindMint.String())
	assert.Equal(t, "notify_allocation", KindNotifyAllocation.String())
	assert.Equal(t, "kind(99)", Kind(99).String())
}

func TestInstruction_View(t *testing.T) {
	v := Mint("reward", "alice", u(2_000_000), []byte("hook")).View()
	assert.Equal(t, View{Kind: "mint", Contract: "reward", To: "alice", Amount: "2000000", Hook: []byte("hook")}, v)

	v = BurnFrom("shares", "bob", nil).View()
	assert.Equal(t, "0", v.Amount)
	assert.Equal(t, "bob", v.From)
}

// --- RPC client tests ---

func rpcServer(t *testing.T, handle func(req rpcRequest) rpcResponse) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		resp := handle(req)
		if resp.ID == 0 {
			resp.ID = req.ID
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestRPCClient_Balance(t *testing.T) {
	server := rpcServer(t, func(req rpcRequest) rpcResponse {
		assert.Equal(t, "2.0", req.JSONRPC)
		assert.Equal(t, MethodBalance, req.Method)
		assert.Equal(t, QueryParams{Contract: "sefi", Owner: "vault", ViewingKey: "api_key_x"}, req.Params)
		return rpcResponse{Result: json.RawMessage(`"340282366920938463463374607431768211455"`)}
	})

	client := NewRPCClient(RPCConfig{URL: server.URL, ViewingKey: "api_key_x"})
	got, err := client.Balance(context.Background(), "sefi", "vault")
	require.NoError(t, err)
	assert.Equal(t, 128, got.BitLen())
}

func TestRPCClient_UnclaimedYield(t *testing.T) {
	server := rpcServer(t, func(req rpcRequest) rpcResponse {
		assert.Equal(t, MethodRewards, req.Method)
		require.NotNil(t, req.Params.Block)
		assert.Equal(t, uint64(1234), *req.Params.Block)
		assert.Empty(t, req.Params.ViewingKey)
		return rpcResponse{Result: json.RawMessage(`"77"`)}
	})

	client := NewRPCClient(RPCConfig{URL: server.URL})
	got, err := client.UnclaimedYield(context.Background(), "farm", "vault", 1234)
	require.NoError(t, err)
	assert.Equal(t, uint64(77), got.Uint64())
}

func TestRPCClient_BasicAuth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "farm", user)
		assert.Equal(t, "secret", pass)
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_ = json.NewEncoder(w).Encode(rpcResponse{ID: req.ID, Result: json.RawMessage(`"1"`)})
	}))
	defer server.Close()

	client := NewRPCClient(RPCConfig{URL: server.URL, User: "farm", Password: "secret"})
	_, err := client.Balance(context.Background(), "t", "o")
	require.NoError(t, err)
}

func TestRPCClient_Errors(t *testing.T) {
	tests := []struct {
		name    string
		resp    rpcResponse
		wantErr error
		wantMsg string
	}{
		{"rpc error", rpcResponse{Error: &rpcError{Code: -32000, Message: "unknown contract"}}, ErrGateway, "unknown contract"},
		{"no result", rpcResponse{}, ErrInvalidResponse, ""},
		{"id mismatch", rpcResponse{ID: 999, Result: json.RawMessage(`"1"`)}, ErrInvalidResponse, ""},
		{"not a string", rpcResponse{Result: json.RawMessage(`12`)}, ErrInvalidResponse, ""},
		{"not a number", rpcResponse{Result: json.RawMessage(`"abc"`)}, ErrInvalidResponse, ""},
		{"too wide", rpcResponse{Result: json.RawMessage(`"340282366920938463463374607431768211456"`)}, ErrInvalidResponse, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := rpcServer(t, func(rpcRequest) rpcResponse { return tt.resp })
			client := NewRPCClient(RPCConfig{URL: server.URL})
			_, err := client.Balance(context.Background(), "t", "o")
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestRPCClient_RateLimit(t *testing.T) {
	var served atomic.Int32
	server := rpcServer(t, func(rpcRequest) rpcResponse {
		served.Add(1)
		return rpcResponse{Result: json.RawMessage(`"1"`)}
	})

	client := NewRPCClient(RPCConfig{URL: server.URL, RateLimit: 0.001})
	_, err := client.Balance(context.Background(), "t", "o")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = client.Balance(ctx, "t", "o")
	require.Error(t, err, "second query must wait far past the deadline")
	assert.Equal(t, int32(1), served.Load())
}

func TestRPCClient_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewRPCClient(RPCConfig{URL: server.URL})
	_, err := client.Balance(context.Background(), "t", "o")
	assert.ErrorIs(t, err, ErrConnectionFailed)
}

func TestRPCClient_ConnectionError(t *testing.T) {
	client := NewRPCClient(RPCConfig{URL: "http://localhost:1"})
	_, err := client.Balance(context.Background(), "t", "o")
	assert.ErrorIs(t, err, ErrConnectionFailed)
}

// --- Config tests ---

func TestResolveConfig(t *testing.T) {
	tests := []struct {
		name    string
		flags   *RPCConfig
		env     map[string]string
		network string
		want    RPCConfig
		wantErr bool
	}{
		{
			name:    "preset",
			network: "regtest",
			want:    RPCConfig{URL: "http://localhost:18545", User: "farm", Password: "farm", Network: "regtest"},
		},
		{
			name:    "env overrides preset",
			env:     map[string]string{"FARM_RPC_URL": "http://gw:1", "FARM_VIEWING_KEY": "api_key_env"},
			network: "testnet",
			want:    RPCConfig{URL: "http://gw:1", User: "farm", Password: "farm", ViewingKey: "api_key_env", Network: "testnet"},
		},
		{
			name:    "flags override env",
			flags:   &RPCConfig{URL: "http://flag:2", User: "u"},
			env:     map[string]string{"FARM_RPC_URL": "http://gw:1", "FARM_RPC_PASS": "p"},
			network: "mainnet",
			want:    RPCConfig{URL: "http://flag:2", User: "u", Password: "p", Network: "mainnet"},
		},
		{
			name:    "mainnet requires explicit url",
			network: "mainnet",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveConfig(tt.flags, tt.env, tt.network)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}
}

// --- Discovery tests ---

type fakeResolver struct {
	srvs []*net.SRV
	err  error
	got  []string
}

func (f *fakeResolver) LookupSRV(service, proto, name string) (string, []*net.SRV, error) {
	f.got = []string{service, proto, name}
	return "", f.srvs, f.err
}

func TestResolveEndpoints_Ordering(t *testing.T) {
	r := &fakeResolver{srvs: []*net.SRV{
		{Target: "backup.example.com.", Port: 8545, Priority: 20, Weight: 100},
		{Target: "light.example.com.", Port: 8545, Priority: 10, Weight: 10},
		{Target: "heavy.example.com.", Port: 9545, Priority: 10, Weight: 90},
	}}
	got, err := ResolveEndpoints("example.com", r)
	require.NoError(t, err)
	assert.Equal(t, []string{"heavy.example.com:9545", "light.example.com:8545", "backup.example.com:8545"}, got)
	assert.Equal(t, []string{SRVService, "tcp", "example.com"}, r.got)

	url, err := ResolveURL("example.com", r)
	require.NoError(t, err)
	assert.Equal(t, "http://heavy.example.com:9545", url)
}

func TestResolveEndpoints_Errors(t *testing.T) {
	_, err := ResolveEndpoints("", &fakeResolver{})
	assert.ErrorIs(t, err, ErrDNSLookupFailed)

	_, err = ResolveEndpoints("example.com", &fakeResolver{err: errors.New("servfail")})
	assert.ErrorIs(t, err, ErrDNSLookupFailed)

	_, err = ResolveEndpoints("example.com", &fakeResolver{})
	assert.ErrorIs(t, err, ErrNoEndpoints)
}

func TestNewDNSSECResolver(t *testing.T) {
	assert.Equal(t, "8.8.8.8:53", NewDNSSECResolver("").Upstream)
	assert.Equal(t, "1.1.1.1:53", NewDNSSECResolver("1.1.1.1:53").Upstream)
}

func TestDNSSECResolver_LookupSRV_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	r := NewDNSSECResolver("")
	_, _, err := r.LookupSRV(SRVService, "tcp", "this-domain-definitely-does-not-exist-12345.example")
	require.Error(t, err)
	t.Logf("error for non-existent domain: %v", err)
}

// --- Ledger tests ---

func TestLedger_TransferAndBurn(t *testing.T) {
	l := NewLedger()
	l.SetBalance("sefi", "alice", u(100))

	require.NoError(t, l.Apply("alice", []Instruction{Transfer("sefi", "bob", u(40))}))
	ctx := context.Background()
	bal, _ := l.Balance(ctx, "sefi", "alice")
	assert.Equal(t, uint64(60), bal.Uint64())
	bal, _ = l.Balance(ctx, "sefi", "bob")
	assert.Equal(t, uint64(40), bal.Uint64())

	err := l.Apply("vault", []Instruction{BurnFrom("sefi", "bob", u(41))})
	assert.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestLedger_AllOrNothing(t *testing.T) {
	l := NewLedger()
	l.SetBalance("sefi", "alice", u(10))

	err := l.Apply("alice", []Instruction{
		Transfer("sefi", "bob", u(10)),
		Transfer("sefi", "carol", u(1)),
	})
	require.ErrorIs(t, err, ErrInsufficientBalance)

	bal, _ := l.Balance(context.Background(), "sefi", "bob")
	assert.True(t, bal.IsZero(), "first transfer must not apply")
}

func TestLedger_FarmDepositAndRedeem(t *testing.T) {
	ctx := context.Background()
	var farm, sefi, vault identity.Address = "farm", "sefi", "vault"
	l := NewLedger()
	l.RegisterFarm(farm, sefi)
	l.SetBalance(sefi, vault, u(500))

	require.NoError(t, l.Apply(vault, []Instruction{Send(sefi, farm, u(500), []byte("deposit"))}))
	deployed, _ := l.Balance(ctx, farm, vault)
	assert.Equal(t, uint64(500), deployed.Uint64())

	require.NoError(t, l.Apply(vault, []Instruction{Redeem(farm, u(200))}))
	deployed, _ = l.Balance(ctx, farm, vault)
	assert.Equal(t, uint64(300), deployed.Uint64())
	idle, _ := l.Balance(ctx, sefi, vault)
	assert.Equal(t, uint64(200), idle.Uint64())

	err := l.Apply(vault, []Instruction{Redeem("nofarm", u(1))})
	assert.Error(t, err)
}

func TestLedger_DepositHarvestsYield(t *testing.T) {
	ctx := context.Background()
	var farm, sefi, vault identity.Address = "farm", "sefi", "vault"
	l := NewLedger()
	l.RegisterFarm(farm, sefi)
	l.SetBalance(sefi, vault, u(100))
	l.SetYield(farm, vault, u(20))

	// The harvested yield funds the fee transfer in the same batch.
	require.NoError(t, l.Apply(vault, []Instruction{
		Send(sefi, farm, u(100), nil),
		Transfer(sefi, "admin", u(1)),
	}))
	idle, _ := l.Balance(ctx, sefi, vault)
	assert.Equal(t, uint64(19), idle.Uint64())
	y, _ := l.UnclaimedYield(ctx, farm, vault, 0)
	assert.True(t, y.IsZero())

	// A failed batch does not harvest.
	l.SetYield(farm, vault, u(5))
	err := l.Apply(vault, []Instruction{Redeem(farm, u(1)), Transfer(sefi, "admin", u(1000))})
	require.ErrorIs(t, err, ErrInsufficientBalance)
	y, _ = l.UnclaimedYield(ctx, farm, vault, 0)
	assert.Equal(t, uint64(5), y.Uint64())
}

func TestLedger_YieldAndMint(t *testing.T) {
	ctx := context.Background()
	l := NewLedger()
	l.SetYield("farm", "vault", u(9))
	y, err := l.UnclaimedYield(ctx, "farm", "vault", 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), y.Uint64())

	require.NoError(t, l.Apply("minter", []Instruction{
		Mint("shares", "alice", u(5), nil),
		NotifyAllocation("alice", u(5), nil),
	}))
	bal, _ := l.Balance(ctx, "shares", "alice")
	assert.Equal(t, uint64(5), bal.Uint64())

	assert.Error(t, l.Apply("x", []Instruction{{Kind: Kind(77)}}))
}

func TestMockQuerier(t *testing.T) {
	m := &MockQuerier{
		BalanceFn: func(_ context.Context, c, o identity.Address) (*uint256.Int, error) {
			return u(uint64(len(c) + len(o))), nil
		},
		UnclaimedYieldFn: func(_ context.Context, _, _ identity.Address, b uint64) (*uint256.Int, error) {
			return u(b), nil
		},
	}
	b, err := m.Balance(context.Background(), "ab", "c")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), b.Uint64())
	y, err := m.UnclaimedYield(context.Background(), "f", "o", 8)
	require.NoError(t, err)
	assert.Equal(t, uint64(8), y.Uint64())
}
