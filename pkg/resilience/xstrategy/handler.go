package xstrategy

import (
	"context"

	"github.com/omeyang/recoverkit/pkg/resilience/xclassify"
)

// Operation 被恢复链执行的无参操作。
type Operation func(ctx context.Context) (any, error)

// Request 一次恢复尝试的输入。
type Request struct {
	// Service 目标服务名
	Service string

	// Err 重试耗尽后的最终错误
	Err error

	// Category 最终错误的分类
	Category xclassify.Category

	// Fallback 调用方提供的备用操作,可为 nil
	Fallback Operation

	// Degraded 调用方提供的降级操作,可为 nil
	Degraded Operation

	// DegradedValue 无降级操作时使用的最小降级响应,可为 nil
	DegradedValue any
}

// Result 某个策略成功产出的结果。
type Result struct {
	// Value 策略产出的值,隔离与默认降级时可能为 nil
	Value any

	// Strategy 产出该结果的策略
	Strategy Strategy

	// FallbackUsed 结果来自备用操作
	FallbackUsed bool

	// Degraded 结果是降级响应
	Degraded bool

	// Isolated 原始失败已被隔离,不再向上传播
	Isolated bool

	// Cause 被隔离的原始错误,仅 Isolated 为 true 时有值
	Cause error
}

// Handler 单个恢复策略的执行器。
//
// Attempt 返回 (nil, nil) 表示该策略对本次请求不适用,
// 返回非 nil error 表示尝试过但失败,两者都让链继续。
type Handler interface {
	// Strategy 返回该执行器对应的策略标识。
	Strategy() Strategy

	// Attempt 尝试用该策略恢复一次失败。
	Attempt(ctx context.Context, req *Request) (*Result, error)
}

// noopHandler 占位策略,恢复链中永远跳过。
type noopHandler struct {
	strategy Strategy
}

func (h *noopHandler) Strategy() Strategy { return h.strategy }

func (h *noopHandler) Attempt(context.Context, *Request) (*Result, error) {
	return nil, nil
}

// fallbackHandler 执行调用方提供的备用操作。
type fallbackHandler struct{}

func (*fallbackHandler) Strategy() Strategy { return StrategyFallback }

func (*fallbackHandler) Attempt(ctx context.Context, req *Request) (*Result, error) {
	if req.Fallback == nil {
		return nil, nil
	}
	value, err := req.Fallback(ctx)
	if err != nil {
		return nil, err
	}
	return &Result{
		Value:        value,
		Strategy:     StrategyFallback,
		FallbackUsed: true,
	}, nil
}

// degradationHandler 优雅降级,永不失败。
//
// 设计决策: 降级操作自身出错时退回最小降级响应而不是报错,
// 保证链里带上该策略就一定有结果兜底。
type degradationHandler struct{}

func (*degradationHandler) Strategy() Strategy { return StrategyGracefulDegradation }

func (*degradationHandler) Attempt(ctx context.Context, req *Request) (*Result, error) {
	result := &Result{
		Strategy: StrategyGracefulDegradation,
		Degraded: true,
	}
	if req.Degraded != nil {
		if value, err := req.Degraded(ctx); err == nil {
			result.Value = value
			return result, nil
		}
	}
	result.Value = req.DegradedValue
	return result, nil
}

// bulkheadHandler 舱壁隔离,把原始错误封装为结构化结果。
type bulkheadHandler struct{}

func (*bulkheadHandler) Strategy() Strategy { return StrategyBulkhead }

func (*bulkheadHandler) Attempt(_ context.Context, req *Request) (*Result, error) {
	return &Result{
		Strategy: StrategyBulkhead,
		Isolated: true,
		Cause:    req.Err,
	}, nil
}

// handlerFor 返回策略对应的内置执行器。
func handlerFor(s Strategy) Handler {
	switch s {
	case StrategyFallback:
		return &fallbackHandler{}
	case StrategyGracefulDegradation:
		return &degradationHandler{}
	case StrategyBulkhead:
		return &bulkheadHandler{}
	default:
		// retry 和 circuit_breaker 在主路径完成,链中占位
		return &noopHandler{strategy: s}
	}
}

var (
	_ Handler = (*noopHandler)(nil)
	_ Handler = (*fallbackHandler)(nil)
	_ Handler = (*degradationHandler)(nil)
	_ Handler = (*bulkheadHandler)(nil)
)
