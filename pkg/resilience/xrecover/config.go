package xrecover

import (
	"fmt"
	"time"

	"github.com/knadh/koanf/v2"

	"github.com/omeyang/recoverkit/pkg/config/xconf"
	"github.com/omeyang/recoverkit/pkg/resilience/xstrategy"
)

// 引擎默认参数。
const (
	DefaultMaxRetries          = 3
	DefaultBaseDelay           = 1 * time.Second
	DefaultMaxDelay            = 30 * time.Second
	DefaultBackoffFactor       = 2.0
	DefaultProbeInterval       = 30 * time.Second
	DefaultProbeTimeout        = 5 * time.Second
	DefaultMaintenanceInterval = 30 * time.Second
	DefaultAnalysisInterval    = 60 * time.Second
)

// Config 引擎的完整配置面,所有字段都有默认值。
// 零值字段在 normalize 时回填默认值。
type Config struct {
	// 熔断器
	FailureThreshold int           `koanf:"failure_threshold" json:"failure_threshold"`
	ResetTimeout     time.Duration `koanf:"reset_timeout" json:"reset_timeout"`

	// 重试
	MaxRetries    int           `koanf:"max_retries" json:"max_retries"`
	BaseDelay     time.Duration `koanf:"base_delay" json:"base_delay"`
	MaxDelay      time.Duration `koanf:"max_delay" json:"max_delay"`
	BackoffFactor float64       `koanf:"backoff_factor" json:"backoff_factor"`

	// 错误窗口与模式分析
	WindowSize       int     `koanf:"window_size" json:"window_size"`
	PatternThreshold float64 `koanf:"pattern_threshold" json:"pattern_threshold"`
	MinSamples       int     `koanf:"min_samples" json:"min_samples"`

	// 后台循环
	ProbeInterval       time.Duration `koanf:"probe_interval" json:"probe_interval"`
	ProbeTimeout        time.Duration `koanf:"probe_timeout" json:"probe_timeout"`
	MaintenanceInterval time.Duration `koanf:"maintenance_interval" json:"maintenance_interval"`
	AnalysisInterval    time.Duration `koanf:"analysis_interval" json:"analysis_interval"`

	// 默认策略列表,主路径与重试耗尽后各一份
	Strategies         []string `koanf:"strategies" json:"strategies"`
	RecoveryStrategies []string `koanf:"recovery_strategies" json:"recovery_strategies"`
}

// DefaultConfig 返回带全部默认值的配置。
func DefaultConfig() Config {
	cfg := Config{}
	cfg.normalize()
	return cfg
}

// normalize 把零值字段回填为默认值。
func (c *Config) normalize() {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = 5 * time.Minute
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = DefaultBaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = DefaultMaxDelay
	}
	if c.BackoffFactor < 1 {
		c.BackoffFactor = DefaultBackoffFactor
	}
	if c.WindowSize <= 0 {
		c.WindowSize = 50
	}
	if c.PatternThreshold <= 0 {
		c.PatternThreshold = 0.3
	}
	if c.MinSamples <= 0 {
		c.MinSamples = 10
	}
	if c.ProbeInterval <= 0 {
		c.ProbeInterval = DefaultProbeInterval
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = DefaultProbeTimeout
	}
	if c.MaintenanceInterval <= 0 {
		c.MaintenanceInterval = DefaultMaintenanceInterval
	}
	if c.AnalysisInterval <= 0 {
		c.AnalysisInterval = DefaultAnalysisInterval
	}
	if len(c.Strategies) == 0 {
		c.Strategies = strategyNames(xstrategy.DefaultStrategies())
	}
	if len(c.RecoveryStrategies) == 0 {
		c.RecoveryStrategies = strategyNames(xstrategy.DefaultRecoveryStrategies())
	}
}

// Validate 校验配置,策略名在此处拒绝而非运行时跳过。
func (c *Config) Validate() error {
	if c.PatternThreshold >= 1 {
		return fmt.Errorf("%w: pattern_threshold must be below 1.0", ErrInvalidConfig)
	}
	if c.MaxDelay < c.BaseDelay {
		return fmt.Errorf("%w: max_delay below base_delay", ErrInvalidConfig)
	}
	if _, err := xstrategy.ParseList(c.Strategies); err != nil {
		return fmt.Errorf("%w: strategies: %w", ErrInvalidConfig, err)
	}
	if _, err := xstrategy.ParseList(c.RecoveryStrategies); err != nil {
		return fmt.Errorf("%w: recovery_strategies: %w", ErrInvalidConfig, err)
	}
	return nil
}

// mainStrategies 返回解析后的主路径策略。调用前必须已通过 Validate。
func (c *Config) mainStrategies() []xstrategy.Strategy {
	parsed, _ := xstrategy.ParseList(c.Strategies)
	return parsed
}

func (c *Config) recoveryStrategies() []xstrategy.Strategy {
	parsed, _ := xstrategy.ParseList(c.RecoveryStrategies)
	return parsed
}

func strategyNames(strategies []xstrategy.Strategy) []string {
	out := make([]string, len(strategies))
	for i, s := range strategies {
		out[i] = s.String()
	}
	return out
}

// LoadConfig 从 YAML/JSON 文件加载配置,配置键在 "recovery" 节点下。
// 缺省键取默认值,非法配置在加载时被拒绝。
func LoadConfig(path string) (Config, error) {
	loader, err := xconf.Load(path, xconf.WithValidator(func(k *koanf.Koanf) error {
		cfg, err := unmarshalConfig(k)
		if err != nil {
			return err
		}
		return cfg.Validate()
	}))
	if err != nil {
		return Config{}, err
	}
	return unmarshalLoader(loader)
}

func unmarshalConfig(k *koanf.Koanf) (Config, error) {
	var cfg Config
	if err := k.UnmarshalWithConf("recovery", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	cfg.normalize()
	return cfg, nil
}

func unmarshalLoader(loader *xconf.Loader) (Config, error) {
	cfg, err := unmarshalConfig(loader.Koanf())
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}
