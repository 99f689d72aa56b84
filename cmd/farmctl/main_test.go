package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/libfarm-go/config"
	"github.com/bitfsorg/libfarm-go/identity"
)

func TestParseUnits(t *testing.T) {
	units, err := parseUnits([]string{"1000:4000", "6000:6000"})
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Equal(t, uint64(1000), units[0].EndBlock)
	assert.Equal(t, uint64(6000), units[1].RatePerBlock.Uint64())

	for _, bad := range []string{"1000", "x:1", "1:abc", "1:340282366920938463463374607431768211456"} {
		_, err := parseUnits([]string{bad})
		assert.Error(t, err, bad)
	}

	units, err = parseUnits(nil)
	require.NoError(t, err)
	assert.Empty(t, units)
}

func TestParseWeights(t *testing.T) {
	alice, err := identity.Generate("regtest")
	require.NoError(t, err)

	updates, err := parseWeights([]string{alice.String() + "=100"}, "regtest")
	require.NoError(t, err)
	require.Len(t, updates, 1)
	assert.Equal(t, alice, updates[0].Receiver)
	assert.Equal(t, uint64(100), updates[0].Weight)

	_, err = parseWeights(nil, "regtest")
	assert.Error(t, err)
	_, err = parseWeights([]string{alice.String()}, "regtest")
	assert.Error(t, err)
	_, err = parseWeights([]string{"nobody=1"}, "regtest")
	assert.ErrorIs(t, err, identity.ErrInvalidAddress)
	_, err = parseWeights([]string{alice.String() + "=-1"}, "regtest")
	assert.Error(t, err)
}

// farmctl runs one command against dataDir and decodes its JSON output.
func farmctl(t *testing.T, dataDir string, args ...string) map[string]any {
	t.Helper()
	var out bytes.Buffer
	full := append([]string{"--datadir", dataDir, "--network", "regtest", "--log-level", "error"}, args...)
	require.NoError(t, run(full, &out))
	var v map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &v))
	return v
}

func TestRun_DistributorLifecycle(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	dataDir := t.TempDir()
	admin, err := identity.Generate("regtest")
	require.NoError(t, err)
	rewardToken, err := identity.Generate("regtest")
	require.NoError(t, err)
	alice, err := identity.Generate("regtest")
	require.NoError(t, err)

	cfg := farmctl(t, dataDir, "--caller", admin.String(), "--reward-token", rewardToken.String(),
		"init", "1000:4000")
	assert.Equal(t, admin.String(), cfg["admin"])
	assert.Equal(t, "receiver", cfg["claim_policy"])
	assert.Equal(t, "mint", cfg["payout_mode"])

	saved, err := config.LoadConfig(config.ConfigPath(dataDir))
	require.NoError(t, err, "init writes a config file")
	assert.Equal(t, rewardToken.String(), saved.RewardToken)

	farmctl(t, dataDir, "--caller", admin.String(), "--block", "0", "set-weights", alice.String()+"=100")

	pending := farmctl(t, dataDir, "--block", "500", "pending", alice.String())
	assert.Equal(t, "2000000", pending["pending"])

	resp := farmctl(t, dataDir, "--caller", alice.String(), "--block", "500", "claim", alice.String())
	payouts := resp["payouts"].([]any)
	require.Len(t, payouts, 1)
	p := payouts[0].(map[string]any)
	assert.Equal(t, "mint", p["kind"])
	assert.Equal(t, alice.String(), p["to"])
	assert.Equal(t, "2000000", p["amount"])

	w := farmctl(t, dataDir, "weight", alice.String())
	assert.Equal(t, float64(500), w["last_update_block"])

	var out bytes.Buffer
	err = run([]string{"--datadir", dataDir, "--network", "regtest", "--log-level", "error",
		"--caller", alice.String(), "stop"}, &out)
	assert.Error(t, err, "non-admin cannot stop")
}

func TestRun_Errors(t *testing.T) {
	dataDir := t.TempDir()
	base := []string{"--datadir", dataDir, "--network", "regtest", "--log-level", "error"}

	var out bytes.Buffer
	assert.Error(t, run(base, &out), "missing command")
	assert.Error(t, run(append(base, "frobnicate"), &out))
	assert.Error(t, run(append(base, "config"), &out), "not initialized")
	assert.Error(t, run(append(base, "--caller", "bogus", "config"), &out))
	assert.Error(t, run([]string{"--datadir", dataDir, "--network", "devnet", "config"}, &out))

	_, err := os.Stat(filepath.Join(dataDir, "config"))
	assert.True(t, os.IsNotExist(err), "only init writes a config file")
}

// gateway answers token_balance from balances keyed by contract and every
// farm_rewards query with zero.
func gateway(t *testing.T, balances map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     uint64         `json:"id"`
			Method string         `json:"method"`
			Params map[string]any `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		result := "0"
		if req.Method == "token_balance" {
			if v, ok := balances[req.Params["contract"].(string)]; ok {
				result = v
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": result})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRun_VaultDepositWithdraw(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	dataDir := t.TempDir()
	addrs := make([]identity.Address, 5)
	for i := range addrs {
		a, err := identity.Generate("regtest")
		require.NoError(t, err)
		addrs[i] = a
	}
	admin, self, underlying, shares, farm := addrs[0], addrs[1], addrs[2], addrs[3], addrs[4]
	depositor, err := identity.Generate("regtest")
	require.NoError(t, err)

	farmctl(t, dataDir, "--caller", admin.String(), "--self", self.String(), "--token", underlying.String(),
		"--shares-token", shares.String(), "--farm", farm.String(), "vault-init")

	srv := gateway(t, map[string]string{shares.String(): "1000", farm.String(): "1000"})
	gw := []string{"--rpc-url", srv.URL, "--balance-mode", "excludes-deposit"}

	args := append(append([]string{}, gw...), "--caller", underlying.String(), "--hook", "hi",
		"deposit", depositor.String(), "1000")
	resp := farmctl(t, dataDir, args...)
	assert.Equal(t, "1000", resp["shares"])
	assert.Equal(t, "1000", resp["amount"])
	assert.Equal(t, "0", resp["fee"])
	ins := resp["instructions"].([]any)
	require.Len(t, ins, 2)
	assert.Equal(t, "mint", ins[0].(map[string]any)["kind"])
	assert.Equal(t, depositor.String(), ins[0].(map[string]any)["to"])
	assert.Equal(t, "send", ins[1].(map[string]any)["kind"])

	args = append(append([]string{}, gw...), "--caller", depositor.String(), "withdraw", "400")
	resp = farmctl(t, dataDir, args...)
	assert.Equal(t, "400", resp["shares"])
	assert.Equal(t, "400", resp["amount"])
	assert.Nil(t, resp["clamped"])
	kinds := []string{}
	for _, in := range resp["instructions"].([]any) {
		kinds = append(kinds, in.(map[string]any)["kind"].(string))
	}
	assert.Equal(t, []string{"burn_from", "redeem", "transfer"}, kinds)

	base := []string{"--datadir", dataDir, "--network", "regtest", "--log-level", "error", "--rpc-url", srv.URL}
	var out bytes.Buffer
	assert.Error(t, run(append(base, "--caller", depositor.String(), "deposit", depositor.String(), "5"), &out),
		"only the vault token may deposit")
	assert.Error(t, run(append(base, "--caller", underlying.String(), "deposit", depositor.String()), &out))
	assert.Error(t, run(append(base, "--caller", underlying.String(), "deposit", depositor.String(), "x"), &out))
	assert.Error(t, run(append(base, "--caller", depositor.String(), "withdraw"), &out))
	assert.Error(t, run(append(base, "--caller", depositor.String(), "withdraw", "-1"), &out))
}
