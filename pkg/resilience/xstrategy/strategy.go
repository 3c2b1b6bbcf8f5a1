package xstrategy

import (
	"fmt"
	"strings"
)

// Strategy 恢复策略的类型化标识符。
type Strategy string

const (
	// StrategyRetry 重试策略。在恢复链中是占位符:
	// 重试已经在主路径完成,这里保留只为让策略列表声明完整。
	StrategyRetry Strategy = "retry"

	// StrategyCircuitBreaker 熔断策略。熔断检查发生在调用前置阶段,
	// 恢复链中同样是占位符。
	StrategyCircuitBreaker Strategy = "circuit_breaker"

	// StrategyFallback 回退策略: 执行调用方提供的备用操作。
	StrategyFallback Strategy = "fallback"

	// StrategyGracefulDegradation 优雅降级: 返回降级结果,永不失败。
	StrategyGracefulDegradation Strategy = "graceful_degradation"

	// StrategyBulkhead 舱壁隔离: 把失败封装成结构化结果,阻止继续上抛。
	StrategyBulkhead Strategy = "bulkhead"
)

// Valid 报告 s 是否为已知策略。
func (s Strategy) Valid() bool {
	switch s {
	case StrategyRetry, StrategyCircuitBreaker, StrategyFallback,
		StrategyGracefulDegradation, StrategyBulkhead:
		return true
	default:
		return false
	}
}

// String 实现 fmt.Stringer。
func (s Strategy) String() string { return string(s) }

// aliases 兼容旧配置中的驼峰写法。
var aliases = map[string]Strategy{
	"circuitbreaker":      StrategyCircuitBreaker,
	"gracefuldegradation": StrategyGracefulDegradation,
}

// Parse 把策略名解析为类型化标识符。
// 未知名称返回 ErrUnknownStrategy,在配置阶段就拒绝而不是运行时跳过。
func Parse(name string) (Strategy, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if s := Strategy(normalized); s.Valid() {
		return s, nil
	}
	if s, ok := aliases[normalized]; ok {
		return s, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
}

// ParseList 解析策略名列表,任一名称未知即整体失败。
func ParseList(names []string) ([]Strategy, error) {
	if len(names) == 0 {
		return nil, nil
	}
	out := make([]Strategy, 0, len(names))
	for _, name := range names {
		s, err := Parse(name)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// DefaultStrategies 主路径的默认策略列表。
func DefaultStrategies() []Strategy {
	return []Strategy{StrategyRetry, StrategyCircuitBreaker, StrategyFallback}
}

// DefaultRecoveryStrategies 重试耗尽后默认的恢复策略列表。
func DefaultRecoveryStrategies() []Strategy {
	return []Strategy{StrategyFallback, StrategyGracefulDegradation}
}
