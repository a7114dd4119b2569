package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "4Z7cXSyeFR8wNGMVXUE1TwtKn5D5Vu7FzEv69dokLv7KrQk7h6pu4LF8ZRR9yQBhc7uSM6RTTZtU1fmaxiNrxXrs"

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("HTTPS_ENDPOINT", "https://rpc.example.com/?api-key=secret")
	t.Setenv("WSS_ENDPOINT", "wss://rpc.example.com/?api-key=secret")
	t.Setenv("PRIVATE_KEY", testKey)
}

func TestLoad_DefaultsFromEnvOnly(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "confirmed", cfg.Commitment)
	assert.Equal(t, uint64(10_000_000), cfg.BuyAmountLamports)
	assert.Equal(t, uint64(50_000_000_000), cfg.MinLiquidityLamports)
	assert.Equal(t, 7000, cfg.SlippageBps)
	assert.Equal(t, 3, cfg.Raydium.MaxRouteRetries)
	assert.Equal(t, 5*time.Second, cfg.Raydium.RouteRetryDelay)
	assert.Equal(t, "token", cfg.Execution.GuardScope)
	assert.True(t, cfg.Eligibility.RequireSuffix)
	assert.Equal(t, "ibox", cfg.Eligibility.BrandSuffix)
	assert.Equal(t, CPMMProgramID, cfg.Layout.ProgramID)
	assert.Equal(t, -5, cfg.Layout.TokenBIndex)
	assert.False(t, cfg.Telegram.Enabled())
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("BUY_AMOUNT", "0.25")
	t.Setenv("SNIPER_EXECUTION_GUARD_SCOPE", "global")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
slippage_bps: 1500
min_liquidity_sol: 12.5
raydium:
  route_retry_delay: 250ms
  max_route_retries: 5
eligibility:
  require_suffix: false
layout:
  strategy: instruction
  pool_index: 3
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, uint64(250_000_000), cfg.BuyAmountLamports)
	assert.Equal(t, uint64(12_500_000_000), cfg.MinLiquidityLamports)
	assert.Equal(t, 1500, cfg.SlippageBps)
	assert.Equal(t, 250*time.Millisecond, cfg.Raydium.RouteRetryDelay)
	assert.Equal(t, 5, cfg.Raydium.MaxRouteRetries)
	assert.Equal(t, "global", cfg.Execution.GuardScope)
	assert.False(t, cfg.Eligibility.RequireSuffix)
	assert.Equal(t, "instruction", cfg.Layout.Strategy)
	assert.Equal(t, 3, cfg.Layout.PoolIndex)
}

func TestLoad_ZeroRouteRetriesKept(t *testing.T) {
	setRequiredEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("raydium:\n  max_route_retries: 0\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Raydium.MaxRouteRetries)
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte(
		"HTTPS_ENDPOINT=https://rpc.example.com\nWSS_ENDPOINT=wss://rpc.example.com\nPRIVATE_KEY="+testKey+"\n"), 0o600))
	// godotenv sets process env; make sure it is cleared afterwards.
	for _, k := range []string{"HTTPS_ENDPOINT", "WSS_ENDPOINT", "PRIVATE_KEY"} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}

	cfg, err := Load("", envPath, filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "https://rpc.example.com", cfg.RPCURL)
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"missing rpc", map[string]string{"HTTPS_ENDPOINT": ""}, "rpc_url"},
		{"bad ws scheme", map[string]string{"WSS_ENDPOINT": "https://x"}, "ws_url"},
		{"missing key", map[string]string{"PRIVATE_KEY": ""}, "private_key"},
		{"zero amount", map[string]string{"BUY_AMOUNT": "0"}, "buy_amount_sol"},
		{"too precise", map[string]string{"BUY_AMOUNT": "0.0000000001"}, "decimal places"},
		{"slippage", map[string]string{"SNIPER_SLIPPAGE_BPS": "20000"}, "slippage_bps"},
		{"guard scope", map[string]string{"SNIPER_EXECUTION_GUARD_SCOPE": "wallet"}, "guard_scope"},
		{"strategy", map[string]string{"SNIPER_LAYOUT_STRATEGY": "magic"}, "layout.strategy"},
		{"half telegram", map[string]string{"TG_BOT_TOKEN": "123:abc"}, "telegram"},
		{"fee tier", map[string]string{"SNIPER_RAYDIUM_FEE_TIER": "turbo"}, "fee_tier"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSOLToLamports(t *testing.T) {
	got, err := SOLToLamports("1.5")
	require.NoError(t, err)
	assert.Equal(t, uint64(1_500_000_000), got)

	_, err = SOLToLamports("-1")
	assert.Error(t, err)
	_, err = SOLToLamports("abc")
	assert.Error(t, err)
}

func TestLamportsToSOL(t *testing.T) {
	assert.Equal(t, "5.00", LamportsToSOL(5_000_000_000, 2))
	assert.Equal(t, "0.123457", LamportsToSOL(123_456_789, 6))
}

func TestMaskURL(t *testing.T) {
	masked := MaskURL("https://mainnet.helius-rpc.com/?api-key=767f42d9")
	assert.NotContains(t, masked, "767f42d9")
	assert.Equal(t, "https://rpc.example.com", MaskURL("https://rpc.example.com"))
}
