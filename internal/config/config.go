// Package config loads engine configuration from file and environment,
// with hot reload for the tunable risk and tier parameters.
package config

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"solana-launch-sniper/internal/breaker"
	"solana-launch-sniper/internal/domain"
	"solana-launch-sniper/internal/position"
	"solana-launch-sniper/internal/ratelimit"
	"solana-launch-sniper/internal/retry"
	"solana-launch-sniper/internal/risk"
)

// WalletKeyEnv names the environment variable holding the base58 keypair.
// The key never appears in config files.
const WalletKeyEnv = "SNIPER_WALLET_KEY"

type Config struct {
	RPC      RPCConfig      `mapstructure:"rpc"`
	Jupiter  JupiterConfig  `mapstructure:"jupiter"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Trade    TradeConfig    `mapstructure:"trade"`
	Risk     RiskConfig     `mapstructure:"risk"`
	Breaker  BreakerConfig  `mapstructure:"breaker"`
	Position PositionConfig `mapstructure:"position"`
	Executor ExecutorConfig `mapstructure:"executor"`
	Retry    RetryConfig    `mapstructure:"retry"`
	Limits   LimiterConfig  `mapstructure:"rate_limit"`
	Log      LogConfig      `mapstructure:"log"`
}

type RPCConfig struct {
	Endpoint   string `mapstructure:"endpoint"`
	WSEndpoint string `mapstructure:"ws_endpoint"`
	TimeoutMs  int    `mapstructure:"timeout_ms"`
}

type JupiterConfig struct {
	BaseURL      string  `mapstructure:"base_url"`
	RequestsPerS float64 `mapstructure:"requests_per_second"`
	Burst        int     `mapstructure:"burst"`
}

type StorageConfig struct {
	// Backend selects "memory" or "database".
	Backend       string `mapstructure:"backend"`
	PostgresDSN   string `mapstructure:"postgres_dsn"`
	ClickhouseDSN string `mapstructure:"clickhouse_dsn"`
}

type TradeConfig struct {
	BuyAmountSOL float64 `mapstructure:"buy_amount_sol"`
	BuySlippage  float64 `mapstructure:"buy_slippage"`
}

type RiskConfig struct {
	MaxDailyLossSOL   float64 `mapstructure:"max_daily_loss_sol"`
	MaxSingleTradeSOL float64 `mapstructure:"max_single_trade_sol"`
	MaxPositions      int     `mapstructure:"max_positions"`
	CooldownMs        int     `mapstructure:"cooldown_ms"`
}

type BreakerConfig struct {
	DailyLossSOL     float64 `mapstructure:"daily_loss_sol"`
	ErrorThreshold   int     `mapstructure:"error_threshold"`
	SingleLossSOL    float64 `mapstructure:"single_loss_sol"`
	RecoveryWindowMs int     `mapstructure:"recovery_window_ms"`
}

type PositionConfig struct {
	PollIntervalMs int     `mapstructure:"poll_interval_ms"`
	StalenessMs    int     `mapstructure:"staleness_ms"`
	Tier1Multiple  float64 `mapstructure:"tier1_multiple"`
	Tier1Fraction  float64 `mapstructure:"tier1_fraction"`
	Tier2Multiple  float64 `mapstructure:"tier2_multiple"`
	Tier2Fraction  float64 `mapstructure:"tier2_fraction"`
	SellSlippage   float64 `mapstructure:"sell_slippage"`
}

type ExecutorConfig struct {
	PlatformAdmin    string `mapstructure:"platform_admin"`
	CurveType        uint8  `mapstructure:"curve_type"`
	ConfigIndex      uint16 `mapstructure:"config_index"`
	ConfirmTimeoutMs int    `mapstructure:"confirm_timeout_ms"`
	SimulateFirst    bool   `mapstructure:"simulate_first"`
}

// RetryPolicyConfig is one backoff policy entry.
type RetryPolicyConfig struct {
	MaxRetries  int     `mapstructure:"max_retries"`
	BaseDelayMs int     `mapstructure:"base_delay_ms"`
	MaxDelayMs  int     `mapstructure:"max_delay_ms"`
	Multiplier  float64 `mapstructure:"multiplier"`
	JitterMs    int     `mapstructure:"jitter_ms"`
}

// RetryConfig holds per-method backoff policies.
type RetryConfig struct {
	BondingCurve RetryPolicyConfig `mapstructure:"bonding_curve"`
	Jupiter      RetryPolicyConfig `mapstructure:"jupiter"`
	Launchpad    RetryPolicyConfig `mapstructure:"launchpad"`
}

type LimiterConfig struct {
	WindowMs      int            `mapstructure:"window_ms"`
	GlobalCap     int            `mapstructure:"global_cap"`
	DefaultKeyCap int            `mapstructure:"default_key_cap"`
	KeyCaps       map[string]int `mapstructure:"key_caps"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Loader reads configuration and republishes it on file change. The current
// snapshot is read through an atomic pointer, so hot paths never lock.
type Loader struct {
	v       *viper.Viper
	current atomic.Pointer[Config]
	logger  *zap.Logger
	// OnReload, if set, runs after each successful hot reload with the new
	// snapshot. Used to push tunables into running subsystems.
	OnReload func(*Config)
}

// Load reads the config file (optional) plus SNIPER_* environment
// variables, and returns a loader holding the first snapshot.
func Load(path string, logger *zap.Logger) (*Loader, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	v.SetEnvPrefix("sniper")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			logger.Info("no config file found, using defaults and env vars")
		} else {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	l := &Loader{v: v, logger: logger.Named("config")}
	cfg, err := l.unmarshal()
	if err != nil {
		return nil, err
	}
	l.current.Store(cfg)
	return l, nil
}

// Current returns the latest snapshot. The returned value must be treated
// as read-only.
func (l *Loader) Current() *Config {
	return l.current.Load()
}

// Watch starts hot reload. A broken edit keeps the previous snapshot.
// No-op when running on defaults and env vars alone.
func (l *Loader) Watch() {
	if l.v.ConfigFileUsed() == "" {
		return
	}
	l.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := l.unmarshal()
		if err != nil {
			l.logger.Error("config reload rejected", zap.String("file", e.Name), zap.Error(err))
			return
		}
		l.current.Store(cfg)
		l.logger.Info("config reloaded", zap.String("file", e.Name))
		if l.OnReload != nil {
			l.OnReload(cfg)
		}
	})
	l.v.WatchConfig()
}

func (l *Loader) unmarshal() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects snapshots that would misbehave at runtime.
func (c *Config) Validate() error {
	if c.Trade.BuySlippage < 0 || c.Trade.BuySlippage >= 1 {
		return fmt.Errorf("trade.buy_slippage %f outside [0,1)", c.Trade.BuySlippage)
	}
	if c.Position.SellSlippage < 0 || c.Position.SellSlippage >= 1 {
		return fmt.Errorf("position.sell_slippage %f outside [0,1)", c.Position.SellSlippage)
	}
	if c.Trade.BuyAmountSOL <= 0 {
		return fmt.Errorf("trade.buy_amount_sol must be positive, got %f", c.Trade.BuyAmountSOL)
	}
	if c.Position.Tier1Multiple <= 1 || c.Position.Tier2Multiple <= c.Position.Tier1Multiple {
		return fmt.Errorf("position tiers must satisfy 1 < tier1 (%f) < tier2 (%f)",
			c.Position.Tier1Multiple, c.Position.Tier2Multiple)
	}
	switch c.Storage.Backend {
	case "memory", "database":
	default:
		return fmt.Errorf("storage.backend %q, want memory or database", c.Storage.Backend)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("rpc.endpoint", "https://api.mainnet-beta.solana.com")
	v.SetDefault("rpc.ws_endpoint", "wss://api.mainnet-beta.solana.com")
	v.SetDefault("rpc.timeout_ms", 30_000)

	v.SetDefault("jupiter.base_url", "https://quote-api.jup.ag/v6")
	v.SetDefault("jupiter.requests_per_second", 8.0)
	v.SetDefault("jupiter.burst", 4)

	v.SetDefault("storage.backend", "memory")

	v.SetDefault("trade.buy_amount_sol", 0.05)
	v.SetDefault("trade.buy_slippage", 0.05)

	v.SetDefault("risk.max_daily_loss_sol", 1.0)
	v.SetDefault("risk.max_single_trade_sol", 0.1)
	v.SetDefault("risk.max_positions", 3)
	v.SetDefault("risk.cooldown_ms", 30_000)

	v.SetDefault("breaker.daily_loss_sol", 1.0)
	v.SetDefault("breaker.error_threshold", 5)
	v.SetDefault("breaker.single_loss_sol", 0.5)
	v.SetDefault("breaker.recovery_window_ms", 1_800_000)

	v.SetDefault("position.poll_interval_ms", 2_000)
	v.SetDefault("position.staleness_ms", 600_000)
	v.SetDefault("position.tier1_multiple", 10.0)
	v.SetDefault("position.tier1_fraction", 0.30)
	v.SetDefault("position.tier2_multiple", 100.0)
	v.SetDefault("position.tier2_fraction", 0.50)
	v.SetDefault("position.sell_slippage", 0.10)

	v.SetDefault("executor.confirm_timeout_ms", 60_000)
	v.SetDefault("executor.simulate_first", false)

	for _, method := range []string{"bonding_curve", "jupiter", "launchpad"} {
		v.SetDefault("retry."+method+".max_retries", 3)
		v.SetDefault("retry."+method+".base_delay_ms", 500)
		v.SetDefault("retry."+method+".max_delay_ms", 10_000)
		v.SetDefault("retry."+method+".multiplier", 2.0)
		v.SetDefault("retry."+method+".jitter_ms", 250)
	}

	v.SetDefault("rate_limit.window_ms", 10_000)
	v.SetDefault("rate_limit.global_cap", 50)
	v.SetDefault("rate_limit.default_key_cap", 10)

	v.SetDefault("log.level", "info")
}

// RiskLimits maps the snapshot into the risk gate's limits.
func (c *Config) RiskLimits() risk.Limits {
	return risk.Limits{
		MaxDailyLossSOL:   c.Risk.MaxDailyLossSOL,
		MaxSingleTradeSOL: c.Risk.MaxSingleTradeSOL,
		MaxPositions:      c.Risk.MaxPositions,
		Cooldown:          time.Duration(c.Risk.CooldownMs) * time.Millisecond,
	}
}

// BreakerSettings maps the snapshot into breaker thresholds.
func (c *Config) BreakerSettings() breaker.Config {
	return breaker.Config{
		DailyLossSOL:   c.Breaker.DailyLossSOL,
		ErrorThreshold: c.Breaker.ErrorThreshold,
		SingleLossSOL:  c.Breaker.SingleLossSOL,
		RecoveryWindow: time.Duration(c.Breaker.RecoveryWindowMs) * time.Millisecond,
	}
}

// PositionSettings maps the snapshot into the tier ladder.
func (c *Config) PositionSettings() position.Config {
	return position.Config{
		PollInterval:  time.Duration(c.Position.PollIntervalMs) * time.Millisecond,
		Staleness:     time.Duration(c.Position.StalenessMs) * time.Millisecond,
		Tier1Multiple: c.Position.Tier1Multiple,
		Tier1Fraction: c.Position.Tier1Fraction,
		Tier2Multiple: c.Position.Tier2Multiple,
		Tier2Fraction: c.Position.Tier2Fraction,
		SellSlippage:  c.Position.SellSlippage,
	}
}

// RetryPolicies maps the snapshot into per-method backoff policies.
func (c *Config) RetryPolicies() map[domain.ExecMethod]retry.Policy {
	return map[domain.ExecMethod]retry.Policy{
		domain.MethodBondingCurve:    c.Retry.BondingCurve.policy(),
		domain.MethodJupiter:         c.Retry.Jupiter.policy(),
		domain.MethodLaunchpadDirect: c.Retry.Launchpad.policy(),
	}
}

func (p RetryPolicyConfig) policy() retry.Policy {
	return retry.Policy{
		MaxRetries:  p.MaxRetries,
		BaseDelay:   time.Duration(p.BaseDelayMs) * time.Millisecond,
		MaxDelay:    time.Duration(p.MaxDelayMs) * time.Millisecond,
		Multiplier:  p.Multiplier,
		JitterRange: time.Duration(p.JitterMs) * time.Millisecond,
	}
}

// LimiterSettings maps the snapshot into rate limiter caps.
func (c *Config) LimiterSettings() ratelimit.Config {
	return ratelimit.Config{
		Window:        time.Duration(c.Limits.WindowMs) * time.Millisecond,
		GlobalCap:     c.Limits.GlobalCap,
		DefaultKeyCap: c.Limits.DefaultKeyCap,
		KeyCaps:       c.Limits.KeyCaps,
	}
}
