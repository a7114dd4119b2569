// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math/big"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const (
	// CPMMProgramID is the Raydium CPMM program.
	CPMMProgramID = "CPMMoo8L3F4NbTegBCKVNunggL7H1ZpdTHKxQB5qKP1C"
	// WrappedSOLMint is the wrapped native SOL mint.
	WrappedSOLMint = "So11111111111111111111111111111111111111112"

	lamportDecimals = 9
	envPrefix       = "SNIPER"
)

type Config struct {
	RPCURL     string `mapstructure:"rpc_url"`
	WSURL      string `mapstructure:"ws_url"`
	Commitment string `mapstructure:"commitment"`

	PrivateKey  string `mapstructure:"private_key"`
	WalletsFile string `mapstructure:"wallets_file"`
	WalletName  string `mapstructure:"wallet_name"`

	BuyAmountSOL    string `mapstructure:"buy_amount_sol"`
	SlippageBps     int    `mapstructure:"slippage_bps"`
	MinLiquiditySOL string `mapstructure:"min_liquidity_sol"`

	Raydium     RaydiumConfig     `mapstructure:"raydium"`
	Execution   ExecutionConfig   `mapstructure:"execution"`
	Eligibility EligibilityConfig `mapstructure:"eligibility"`
	Layout      LayoutConfig      `mapstructure:"layout"`
	Telegram    TelegramConfig    `mapstructure:"telegram"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Journal     JournalConfig     `mapstructure:"journal"`
	Log         LogConfig         `mapstructure:"log"`
	MetricsAddr string            `mapstructure:"metrics_addr"`

	// Derived during Load.
	BuyAmountLamports    uint64 `mapstructure:"-"`
	MinLiquidityLamports uint64 `mapstructure:"-"`
}

type RaydiumConfig struct {
	SwapHost        string        `mapstructure:"swap_host"`
	BaseHost        string        `mapstructure:"base_host"`
	PriorityFeePath string        `mapstructure:"priority_fee_path"`
	TxVersion       string        `mapstructure:"tx_version"`
	FeeTier         string        `mapstructure:"fee_tier"`
	MaxRouteRetries int           `mapstructure:"max_route_retries"`
	RouteRetryDelay time.Duration `mapstructure:"route_retry_delay"`
	HTTPTimeout     time.Duration `mapstructure:"http_timeout"`
}

type ExecutionConfig struct {
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout"`
	SkipPreflight  bool          `mapstructure:"skip_preflight"`
	ConfirmPoll    time.Duration `mapstructure:"confirm_poll"`
	ConfirmTimeout time.Duration `mapstructure:"confirm_timeout"`
	// GuardScope is "token" (one attempt per mint) or "global" (one attempt at a time).
	GuardScope string `mapstructure:"guard_scope"`
}

type EligibilityConfig struct {
	CounterAsset  string `mapstructure:"counter_asset"`
	BrandSuffix   string `mapstructure:"brand_suffix"`
	RequireSuffix bool   `mapstructure:"require_suffix"`
}

// LayoutConfig maps logical roles of the pool-creation transaction to account positions.
// Negative indexes count from the end of the account list.
type LayoutConfig struct {
	Name        string `mapstructure:"name"`
	ProgramID   string `mapstructure:"program_id"`
	Strategy    string `mapstructure:"strategy"`
	PoolIndex   int    `mapstructure:"pool_index"`
	TokenAIndex int    `mapstructure:"token_a_index"`
	TokenBIndex int    `mapstructure:"token_b_index"`
	VerifyMints bool   `mapstructure:"verify_mints"`
}

type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// Enabled reports whether notifications should be sent.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	SeenTTL  time.Duration `mapstructure:"seen_ttl"`
	Prefix   string        `mapstructure:"prefix"`
}

type JournalConfig struct {
	// DSN selects the backend: empty keeps attempts in memory, postgres:// or sqlite://<path>.
	DSN string `mapstructure:"dsn"`
}

type LogConfig struct {
	Debug bool   `mapstructure:"debug"`
	File  string `mapstructure:"file"`
}

var defaults = map[string]interface{}{
	"commitment":        "confirmed",
	"buy_amount_sol":    "0.01",
	"slippage_bps":      7000,
	"min_liquidity_sol": "50",

	"raydium.swap_host":         "https://transaction-v1.raydium.io",
	"raydium.base_host":         "https://api-v3.raydium.io",
	"raydium.priority_fee_path": "/main/auto-fee",
	"raydium.tx_version":        "V0",
	"raydium.fee_tier":          "high",
	"raydium.max_route_retries": 3,
	"raydium.route_retry_delay": 5 * time.Second,
	"raydium.http_timeout":      10 * time.Second,

	"execution.attempt_timeout": 3 * time.Minute,
	"execution.skip_preflight":  true,
	"execution.confirm_poll":    500 * time.Millisecond,
	"execution.confirm_timeout": 60 * time.Second,
	"execution.guard_scope":     "token",

	"eligibility.counter_asset":  WrappedSOLMint,
	"eligibility.brand_suffix":   "ibox",
	"eligibility.require_suffix": true,

	"layout.name":          "cpmm-v1",
	"layout.program_id":    CPMMProgramID,
	"layout.strategy":      "positional",
	"layout.pool_index":    2,
	"layout.token_a_index": -1,
	"layout.token_b_index": -5,
	"layout.verify_mints":  true,

	"telegram.bot_token": "",
	"telegram.chat_id":   "",
	"telegram.api_base":  "https://api.telegram.org",

	"redis.addr":     "",
	"redis.password": "",
	"redis.db":       0,
	"redis.seen_ttl": 24 * time.Hour,
	"redis.prefix":   "sniper",

	"journal.dsn":  "",
	"log.debug":    false,
	"log.file":     "",
	"metrics_addr": "",

	"rpc_url":      "",
	"ws_url":       "",
	"private_key":  "",
	"wallets_file": "",
	"wallet_name":  "",
}

// legacyEnv keeps the variable names the bot has always been deployed with.
var legacyEnv = map[string]string{
	"private_key":        "PRIVATE_KEY",
	"rpc_url":            "HTTPS_ENDPOINT",
	"ws_url":             "WSS_ENDPOINT",
	"buy_amount_sol":     "BUY_AMOUNT",
	"telegram.bot_token": "TG_BOT_TOKEN",
	"telegram.chat_id":   "TG_CHAT_ID",
}

// Load reads the optional config file at path, then environment variables. Env files are
// loaded first and never override variables already set in the process.
func Load(path string, envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", f, err)
		}
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		prefixed := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config error: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal error: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate checks required fields and derives lamport amounts.
func (c *Config) validate() error {
	if err := validateURL(c.RPCURL, "http", "https"); err != nil {
		return fmt.Errorf("rpc_url: %w", err)
	}
	if err := validateURL(c.WSURL, "ws", "wss"); err != nil {
		return fmt.Errorf("ws_url: %w", err)
	}
	switch c.Commitment {
	case "processed", "confirmed", "finalized":
	default:
		return fmt.Errorf("commitment must be processed, confirmed or finalized, got %q", c.Commitment)
	}
	if c.PrivateKey == "" && c.WalletsFile == "" {
		return errors.New("private_key or wallets_file is required")
	}

	amount, err := SOLToLamports(c.BuyAmountSOL)
	if err != nil {
		return fmt.Errorf("buy_amount_sol: %w", err)
	}
	if amount == 0 {
		return errors.New("buy_amount_sol must be positive")
	}
	c.BuyAmountLamports = amount

	floor, err := SOLToLamports(c.MinLiquiditySOL)
	if err != nil {
		return fmt.Errorf("min_liquidity_sol: %w", err)
	}
	c.MinLiquidityLamports = floor

	if c.SlippageBps <= 0 || c.SlippageBps > 10_000 {
		return fmt.Errorf("slippage_bps must be in (0, 10000], got %d", c.SlippageBps)
	}

	if err := validateURL(c.Raydium.SwapHost, "http", "https"); err != nil {
		return fmt.Errorf("raydium.swap_host: %w", err)
	}
	if err := validateURL(c.Raydium.BaseHost, "http", "https"); err != nil {
		return fmt.Errorf("raydium.base_host: %w", err)
	}
	if c.Raydium.MaxRouteRetries < 0 {
		return errors.New("raydium.max_route_retries must not be negative")
	}
	if c.Raydium.RouteRetryDelay < 0 {
		return errors.New("raydium.route_retry_delay must not be negative")
	}
	switch strings.ToLower(c.Raydium.FeeTier) {
	case "low", "medium", "high":
	default:
		return fmt.Errorf("raydium.fee_tier must be low, medium or high, got %q", c.Raydium.FeeTier)
	}

	if c.Execution.AttemptTimeout <= 0 {
		return errors.New("execution.attempt_timeout must be positive")
	}
	if c.Execution.ConfirmPoll <= 0 || c.Execution.ConfirmTimeout <= 0 {
		return errors.New("execution.confirm_poll and execution.confirm_timeout must be positive")
	}
	switch c.Execution.GuardScope {
	case "token", "global":
	default:
		return fmt.Errorf("execution.guard_scope must be token or global, got %q", c.Execution.GuardScope)
	}

	if c.Eligibility.RequireSuffix && c.Eligibility.BrandSuffix == "" {
		return errors.New("eligibility.brand_suffix is required when require_suffix is set")
	}
	switch c.Layout.Strategy {
	case "positional", "instruction":
	default:
		return fmt.Errorf("layout.strategy must be positional or instruction, got %q", c.Layout.Strategy)
	}

	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return errors.New("telegram.bot_token and telegram.chat_id must be set together")
	}
	return nil
}

// SOLToLamports converts a decimal SOL amount to lamports. More than nine decimals is an error.
func SOLToLamports(s string) (uint64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("amount %q is negative", s)
	}
	lamports := d.Shift(lamportDecimals)
	if !lamports.Equal(lamports.Truncate(0)) {
		return 0, fmt.Errorf("amount %q has more than %d decimal places", s, lamportDecimals)
	}
	if !lamports.BigInt().IsUint64() {
		return 0, fmt.Errorf("amount %q overflows", s)
	}
	return lamports.BigInt().Uint64(), nil
}

// LamportsToSOL renders lamports as a SOL amount with fixed precision.
func LamportsToSOL(lamports uint64, places int32) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), -lamportDecimals).StringFixed(places)
}

func validateURL(raw string, schemes ...string) error {
	if raw == "" {
		return errors.New("is required")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	for _, s := range schemes {
		if parsed.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("scheme must be one of %v, got %q", schemes, parsed.Scheme)
}

// MaskURL hides query values (API keys) for logging.
func MaskURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.RawQuery == "" {
		return raw
	}
	q := parsed.Query()
	for k := range q {
		q.Set(k, "***")
	}
	parsed.RawQuery = q.Encode()
	return parsed.String()
}
