package xrecover

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/omeyang/recoverkit/pkg/observability/xmetrics"
	"github.com/omeyang/recoverkit/pkg/resilience/xclassify"
	"github.com/omeyang/recoverkit/pkg/resilience/xpattern"
	"github.com/omeyang/recoverkit/pkg/resilience/xretry"
	"github.com/omeyang/recoverkit/pkg/resilience/xstrategy"
)

// DefaultService 未指定服务名时使用的键。
const DefaultService = "default"

// Operation 被引擎保护执行的操作。
type Operation func(ctx context.Context) (any, error)

// ExecOptions 单次执行的选项。
// 零值字段取引擎配置的默认值;策略列表已经是解析后的类型化标识,
// 非法策略名在构造选项时(xstrategy.ParseList)就被拒绝。
type ExecOptions struct {
	// Service 目标服务名,空时取 DefaultService
	Service string

	// Strategies 主路径策略,空时取配置默认 [retry, circuit_breaker, fallback]
	Strategies []xstrategy.Strategy

	// RecoveryStrategies 重试耗尽后的恢复策略,
	// 空时取配置默认 [fallback, graceful_degradation]
	RecoveryStrategies []xstrategy.Strategy

	// 重试参数覆盖,零值取引擎配置
	MaxRetries    int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64

	// Fallback 备用操作,可为 nil
	Fallback Operation

	// Degraded 降级操作,可为 nil
	Degraded Operation

	// MinimalResponse 无降级操作时的最小降级响应
	MinimalResponse any

	// OnRetry 每次失败重试前的回调
	OnRetry xretry.OnRetryFunc
}

// Outcome 一次受保护执行的结构化结局。
type Outcome struct {
	OperationID string `json:"operation_id"`
	Service     string `json:"service"`

	Success bool  `json:"success"`
	Value   any   `json:"value,omitempty"`
	Err     error `json:"-"`

	// ErrText Err 的展平文本,仅服务于 JSON 输出
	ErrText string `json:"error,omitempty"`

	// Category 失败时的错误分类
	Category xclassify.Category `json:"category,omitempty"`

	RecoveryUsed      bool                  `json:"recovery_used"`
	RecoveryStrategy  xstrategy.Strategy    `json:"recovery_strategy,omitempty"`
	RecoveryAttempted bool                  `json:"recovery_attempted"`
	StrategiesTried   []xstrategy.Strategy  `json:"strategies_tried,omitempty"`

	CircuitOpen  bool `json:"circuit_open"`
	FallbackUsed bool `json:"fallback_used"`
	Degraded     bool `json:"degraded"`
	Isolated     bool `json:"isolated"`

	Elapsed time.Duration `json:"elapsed"`
}

// Do 受保护地执行一次操作: 熔断检查 → 带退避重试 → 恢复链 →
// 结局记录。失败从不静默,Outcome 要么携带可用结果,要么携带
// 分类后的错误与已尝试的策略列表。
func (e *Engine) Do(ctx context.Context, op Operation, opts ExecOptions) (out Outcome) {
	out = Outcome{
		OperationID: e.newID(),
		Service:     serviceOrDefault(opts.Service),
	}
	if ctx == nil {
		out.Err = ErrNilContext
		out.ErrText = ErrNilContext.Error()
		return out
	}
	if op == nil {
		out.Err = ErrNilOperation
		out.ErrText = ErrNilOperation.Error()
		return out
	}

	start := e.now()
	strategies := opts.Strategies
	if len(strategies) == 0 {
		strategies = e.cfg.mainStrategies()
	}

	ctx, span := xmetrics.Start(ctx, e.observer, xmetrics.SpanOptions{
		Service:   out.Service,
		Operation: "execute",
		Kind:      xmetrics.KindClient,
	})
	defer func() {
		out.Elapsed = e.now().Sub(start)
		if out.Err != nil {
			out.ErrText = out.Err.Error()
		}
		result := xmetrics.Result{Err: out.Err}
		if !out.Success {
			result.Status = xmetrics.StatusError
		}
		if out.RecoveryUsed {
			result.Attrs = append(result.Attrs, xmetrics.Strategy(out.RecoveryStrategy.String()))
		}
		if out.Category != "" {
			result.Attrs = append(result.Attrs, xmetrics.Category(string(out.Category)))
		}
		span.End(result)
	}()

	// 1. 熔断检查。打开时要么走回退,要么显式报告短路,
	//    让调用方能区分"服务拒绝"和"我们认定服务已死"。
	if hasStrategy(strategies, xstrategy.StrategyCircuitBreaker) {
		if d := e.breakers.Check(out.Service); !d.CanExecute {
			out.CircuitOpen = true
			if opts.Fallback != nil {
				if v, err := opts.Fallback(ctx); err == nil {
					out.Success = true
					out.Value = v
					out.FallbackUsed = true
					out.RecoveryUsed = true
					out.RecoveryStrategy = xstrategy.StrategyFallback
					e.metrics.recordFallbackShortCircuit()
					return out
				}
			}
			out.Err = fmt.Errorf("%w: %s", ErrCircuitOpen, out.Service)
			e.metrics.recordPermanent()
			return out
		}
	}

	// 2. 执行操作,按需带退避重试
	var value any
	var err error
	if hasStrategy(strategies, xstrategy.StrategyRetry) {
		value, err = e.runWithRetry(ctx, out.Service, op, opts)
	} else {
		value, err = op(ctx)
	}

	// 3. 成功路径
	if err == nil {
		e.recordOutcome(ctx, out.Service, true, nil, "")
		out.Success = true
		out.Value = value
		return out
	}

	// 4. 重试耗尽,记录失败并走恢复链
	out.Category = xclassify.Classify(err)
	e.recordOutcome(ctx, out.Service, false, err, out.Category)

	recoveries := opts.RecoveryStrategies
	if len(recoveries) == 0 {
		recoveries = e.cfg.recoveryStrategies()
	}
	chain, chainErr := xstrategy.NewChain(recoveries, xstrategy.WithLogger(e.logger))
	if chainErr != nil {
		out.Err = err
		e.metrics.recordPermanent()
		return out
	}

	result, recErr := chain.Attempt(ctx, &xstrategy.Request{
		Service:       out.Service,
		Err:           err,
		Category:      out.Category,
		Fallback:      xstrategy.Operation(opts.Fallback),
		Degraded:      xstrategy.Operation(opts.Degraded),
		DegradedValue: opts.MinimalResponse,
	})
	if recErr != nil {
		out.Err = err
		out.RecoveryAttempted = true
		out.StrategiesTried = chain.Strategies()
		e.metrics.recordPermanent()
		return out
	}

	out.Success = true
	out.RecoveryUsed = true
	out.RecoveryStrategy = result.Strategy
	out.Value = result.Value
	out.FallbackUsed = result.FallbackUsed
	out.Degraded = result.Degraded
	out.Isolated = result.Isolated
	e.metrics.recordRecovery(result.Strategy, e.now().Sub(start), result.FallbackUsed)
	return out
}

// Execute 带类型的执行入口,结果类型不匹配时返回零值。
func Execute[T any](ctx context.Context, e *Engine, op func(ctx context.Context) (T, error), opts ExecOptions) (T, Outcome) {
	var zero T
	if e == nil {
		err := fmt.Errorf("xrecover: nil engine")
		return zero, Outcome{Err: err, ErrText: err.Error(), Service: serviceOrDefault(opts.Service)}
	}

	var wrapped Operation
	if op != nil {
		wrapped = func(ctx context.Context) (any, error) {
			return op(ctx)
		}
	}
	out := e.Do(ctx, wrapped, opts)
	if v, ok := out.Value.(T); ok {
		return v, out
	}
	return zero, out
}

// runWithRetry 组装本次调用的重试执行器,零值参数取引擎配置。
func (e *Engine) runWithRetry(ctx context.Context, service string, op Operation, opts ExecOptions) (any, error) {
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = e.cfg.MaxRetries
	}
	baseDelay := opts.BaseDelay
	if baseDelay <= 0 {
		baseDelay = e.cfg.BaseDelay
	}
	maxDelay := opts.MaxDelay
	if maxDelay <= 0 {
		maxDelay = e.cfg.MaxDelay
	}
	factor := opts.BackoffFactor
	if factor < 1 {
		factor = e.cfg.BackoffFactor
	}

	onRetry := func(attempt, remaining int, err error) {
		e.logger.Debug("retrying operation",
			slog.String("service", service),
			slog.Int("attempt", attempt),
			slog.Int("remaining", remaining),
			slog.Any("error", err))
		if opts.OnRetry != nil {
			opts.OnRetry(attempt, remaining, err)
		}
	}

	retryer := xretry.NewRetryer(
		xretry.WithRetryPolicy(xretry.NewBudget(maxRetries)),
		xretry.WithBackoffPolicy(xretry.NewExponentialBackoff(
			xretry.WithBaseDelay(baseDelay),
			xretry.WithMaxDelay(maxDelay),
			xretry.WithFactor(factor),
		)),
		xretry.WithOnRetry(onRetry),
	)
	return xretry.DoWithResult(ctx, retryer, func(ctx context.Context) (any, error) {
		return op(ctx)
	})
}

// recordOutcome 把一次结局记入熔断器、错误窗口与聚合指标。
// 同一服务的记录通过按键锁串行化;锁获取用不可取消的 context,
// 调用方取消不能丢失已发生事实的记账。
func (e *Engine) recordOutcome(ctx context.Context, service string, success bool, err error, category xclassify.Category) {
	if h, lockErr := e.locks.Acquire(context.WithoutCancel(ctx), service); lockErr == nil {
		defer func() { _ = h.Unlock() }()
	}

	e.breakers.RecordOutcome(service, success)
	if success {
		e.metrics.recordSuccess(service)
		return
	}
	e.store.Append(service, xpattern.Record{
		At:       e.now(),
		Category: category,
		Message:  err.Error(),
	})
	e.metrics.recordFailure(service, category)
}

func hasStrategy(strategies []xstrategy.Strategy, target xstrategy.Strategy) bool {
	for _, s := range strategies {
		if s == target {
			return true
		}
	}
	return false
}

func serviceOrDefault(service string) string {
	if service == "" {
		return DefaultService
	}
	return service
}
