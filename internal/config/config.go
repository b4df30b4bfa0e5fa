// Package config loads the engine's runtime tuning knobs from a YAML file
// and hot-reloads them on atomic file swap, per §6.5. Grounded on the
// other-examples Polymarket market-maker's viper.New/SetConfigFile/
// AutomaticEnv/Unmarshal loader shape, extended with viper's
// WatchConfig/OnConfigChange for the hot-reload requirement the teacher's
// own go.mod lists viper for but never wires up.
package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/mapstructure"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// ExitTuning binds the breakeven/partial/trailing/VIX options (§6.5). They are
// loaded and validated here, but the exit manager seeds every rule from
// types.DefaultExitRule and does not read these values.
type ExitTuning struct {
	BreakevenPct            decimal.Decimal `mapstructure:"breakeven_pct"`
	PartialPct              decimal.Decimal `mapstructure:"partial_pct"`
	PartialCloseFraction    decimal.Decimal `mapstructure:"partial_close_fraction"`
	TrailingDistanceATRMult decimal.Decimal `mapstructure:"trailing_distance_atr_mult"`
	VIXThreshold            decimal.Decimal `mapstructure:"vix_threshold"`
	TrailingEnabled         bool            `mapstructure:"trailing_enabled"`
}

// LossCutterTuning binds the C9 scorer thresholds.
type LossCutterTuning struct {
	EarlyExitR         decimal.Decimal `mapstructure:"early_exit_r"`
	RiskScoreThreshold decimal.Decimal `mapstructure:"risk_score_threshold"`
	SpreadATRCap       decimal.Decimal `mapstructure:"spread_atr_cap"`
}

// GatewayTuning binds the position-close retry options. They are loaded here,
// but the gateway retries with utils.DefaultRetryConfig and does not read them.
type GatewayTuning struct {
	CloseRetryMax     int    `mapstructure:"pos_close_retry_max"`
	CloseBackoffMsCSV string `mapstructure:"pos_close_backoff_ms"`
}

// VolumeCaps binds the per-symbol-class volume cap table (§6.5).
type VolumeCaps struct {
	CryptoMetals decimal.Decimal `mapstructure:"crypto_metals"`
	FXMajors     decimal.Decimal `mapstructure:"fx_majors"`
	FXCrosses    decimal.Decimal `mapstructure:"fx_crosses"`
}

// Config is the full set of recognized options (§6.5, non-exhaustive).
type Config struct {
	DryRun      bool             `mapstructure:"dry_run"`
	DataDir     string           `mapstructure:"data_dir"`
	Exit        ExitTuning       `mapstructure:"exit"`
	LossCutter  LossCutterTuning `mapstructure:"loss_cutter"`
	Gateway     GatewayTuning    `mapstructure:"gateway"`
	VolumeCaps  VolumeCaps       `mapstructure:"volume_caps"`
	HealthAddr  string           `mapstructure:"health_addr"`
	MetricsPort int              `mapstructure:"metrics_port"`
}

// Default returns the spec's default tuning (§6.5 value ranges, midpoints).
func Default() Config {
	return Config{
		DataDir:     "./data",
		HealthAddr:  ":8080",
		MetricsPort: 9090,
		Exit: ExitTuning{
			BreakevenPct:            decimal.NewFromFloat(0.25),
			PartialPct:              decimal.NewFromFloat(0.50),
			PartialCloseFraction:    decimal.NewFromFloat(0.50),
			TrailingDistanceATRMult: decimal.NewFromFloat(1.5),
			VIXThreshold:            decimal.NewFromFloat(20),
			TrailingEnabled:         true,
		},
		LossCutter: LossCutterTuning{
			EarlyExitR:         decimal.NewFromFloat(-0.8),
			RiskScoreThreshold: decimal.NewFromFloat(0.65),
			SpreadATRCap:       decimal.NewFromFloat(0.40),
		},
		Gateway: GatewayTuning{
			CloseRetryMax:     3,
			CloseBackoffMsCSV: "300,600,900",
		},
		VolumeCaps: VolumeCaps{
			CryptoMetals: decimal.NewFromFloat(0.02),
			FXMajors:     decimal.NewFromFloat(0.04),
			FXCrosses:    decimal.NewFromFloat(0.03),
		},
	}
}

// Loader reads Config from a YAML file, with environment overrides, and
// hot-reloads it on atomic file swap.
type Loader struct {
	mu     sync.RWMutex
	logger *zap.Logger
	v      *viper.Viper
	cur    Config
}

// NewLoader reads path once and arms viper's file watcher for hot-reload.
func NewLoader(logger *zap.Logger, path string) (*Loader, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("TRADEENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := Default()
	v.SetDefault("data_dir", def.DataDir)
	v.SetDefault("health_addr", def.HealthAddr)
	v.SetDefault("metrics_port", def.MetricsPort)
	v.SetDefault("exit.breakeven_pct", def.Exit.BreakevenPct.String())
	v.SetDefault("exit.partial_pct", def.Exit.PartialPct.String())
	v.SetDefault("exit.partial_close_fraction", def.Exit.PartialCloseFraction.String())
	v.SetDefault("exit.trailing_distance_atr_mult", def.Exit.TrailingDistanceATRMult.String())
	v.SetDefault("exit.vix_threshold", def.Exit.VIXThreshold.String())
	v.SetDefault("exit.trailing_enabled", def.Exit.TrailingEnabled)
	v.SetDefault("loss_cutter.early_exit_r", def.LossCutter.EarlyExitR.String())
	v.SetDefault("loss_cutter.risk_score_threshold", def.LossCutter.RiskScoreThreshold.String())
	v.SetDefault("loss_cutter.spread_atr_cap", def.LossCutter.SpreadATRCap.String())
	v.SetDefault("gateway.pos_close_retry_max", def.Gateway.CloseRetryMax)
	v.SetDefault("gateway.pos_close_backoff_ms", def.Gateway.CloseBackoffMsCSV)
	v.SetDefault("volume_caps.crypto_metals", def.VolumeCaps.CryptoMetals.String())
	v.SetDefault("volume_caps.fx_majors", def.VolumeCaps.FXMajors.String())
	v.SetDefault("volume_caps.fx_crosses", def.VolumeCaps.FXCrosses.String())

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	l := &Loader{logger: logger.Named("config"), v: v}
	if err := l.reload(); err != nil {
		return nil, err
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if err := l.reload(); err != nil {
			l.logger.Warn("config hot-reload failed, keeping previous config", zap.Error(err))
			return
		}
		l.logger.Info("config hot-reloaded", zap.String("file", e.Name))
	})
	v.WatchConfig()

	return l, nil
}

func (l *Loader) reload() error {
	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := l.v.Unmarshal(&cfg, hook); err != nil {
		return fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: validate: %w", err)
	}
	l.mu.Lock()
	l.cur = cfg
	l.mu.Unlock()
	return nil
}

// Current returns a snapshot of the live configuration.
func (l *Loader) Current() Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cur
}

// Validate checks the §6.5 value ranges.
func (c Config) Validate() error {
	if c.Exit.BreakevenPct.LessThan(decimal.NewFromFloat(0.20)) || c.Exit.BreakevenPct.GreaterThan(decimal.NewFromFloat(0.30)) {
		return fmt.Errorf("exit.breakeven_pct must be in [0.20, 0.30]")
	}
	if c.Exit.PartialPct.LessThan(decimal.NewFromFloat(0.40)) || c.Exit.PartialPct.GreaterThan(decimal.NewFromFloat(0.60)) {
		return fmt.Errorf("exit.partial_pct must be in [0.40, 0.60]")
	}
	if c.Exit.VIXThreshold.LessThan(decimal.NewFromFloat(18)) || c.Exit.VIXThreshold.GreaterThan(decimal.NewFromFloat(22)) {
		return fmt.Errorf("exit.vix_threshold must be in [18, 22]")
	}
	if c.Gateway.CloseRetryMax <= 0 {
		return fmt.Errorf("gateway.pos_close_retry_max must be > 0")
	}
	return nil
}
