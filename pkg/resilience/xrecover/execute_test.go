package xrecover

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/recoverkit/pkg/resilience/xclassify"
	"github.com/omeyang/recoverkit/pkg/resilience/xstrategy"
)

var errUpstream = errors.New("connection timeout talking to upstream")

// fastConfig 重试退避压到毫秒级,测试不等真实延迟。
func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.BaseDelay = time.Millisecond
	cfg.MaxDelay = 2 * time.Millisecond
	return cfg
}

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e, err := NewFromConfig(fastConfig(), opts...)
	require.NoError(t, err)
	return e
}

func TestDo_Success(t *testing.T) {
	e := newTestEngine(t)

	out := e.Do(context.Background(), func(context.Context) (any, error) {
		return "hello", nil
	}, ExecOptions{Service: "crm"})

	assert.True(t, out.Success)
	assert.Equal(t, "hello", out.Value)
	assert.False(t, out.RecoveryUsed)
	assert.False(t, out.CircuitOpen)
	assert.Equal(t, "crm", out.Service)
	assert.NotEmpty(t, out.OperationID)

	snap := e.Metrics()
	assert.Zero(t, snap.TotalErrors)
	assert.Equal(t, uint64(1), snap.ErrorsByService["crm"].Success)
}

func TestDo_NilGuards(t *testing.T) {
	e := newTestEngine(t)

	out := e.Do(nil, func(context.Context) (any, error) { return nil, nil }, ExecOptions{}) //nolint:staticcheck // 验证 nil 防御
	assert.ErrorIs(t, out.Err, ErrNilContext)

	out = e.Do(context.Background(), nil, ExecOptions{})
	assert.ErrorIs(t, out.Err, ErrNilOperation)
	assert.Equal(t, DefaultService, out.Service)
}

func TestDo_RetryExhaustion(t *testing.T) {
	e := newTestEngine(t)

	var calls atomic.Int32
	out := e.Do(context.Background(), func(context.Context) (any, error) {
		calls.Add(1)
		return nil, errUpstream
	}, ExecOptions{
		Service:            "crm",
		Strategies:         []xstrategy.Strategy{xstrategy.StrategyRetry},
		MaxRetries:         3,
		RecoveryStrategies: []xstrategy.Strategy{xstrategy.StrategyFallback}, // 无回退操作,恢复必然失败
	})

	// 1 次初始 + 3 次重试
	assert.Equal(t, int32(4), calls.Load())
	assert.False(t, out.Success)
	assert.True(t, out.RecoveryAttempted)
	assert.ErrorIs(t, out.Err, errUpstream)
	assert.Equal(t, xclassify.CategoryTimeout, out.Category)
	assert.Equal(t, []xstrategy.Strategy{xstrategy.StrategyFallback}, out.StrategiesTried)

	snap := e.Metrics()
	assert.Equal(t, uint64(1), snap.TotalErrors)
	assert.Equal(t, uint64(1), snap.PermanentFailures)
	assert.Equal(t, uint64(1), snap.ErrorsByType[xclassify.CategoryTimeout])
}

func TestDo_NonRetryableAbortsImmediately(t *testing.T) {
	e := newTestEngine(t)

	var calls atomic.Int32
	e.Do(context.Background(), func(context.Context) (any, error) {
		calls.Add(1)
		return nil, xclassify.MarkNonRetryable(errors.New("invalid api key"), xclassify.CategoryAuth)
	}, ExecOptions{
		Service:            "crm",
		Strategies:         []xstrategy.Strategy{xstrategy.StrategyRetry},
		MaxRetries:         3,
		RecoveryStrategies: []xstrategy.Strategy{xstrategy.StrategyFallback},
	})

	assert.Equal(t, int32(1), calls.Load())
}

func TestDo_FallbackPrecedence(t *testing.T) {
	e := newTestEngine(t)

	out := e.Do(context.Background(), func(context.Context) (any, error) {
		return nil, errUpstream
	}, ExecOptions{
		Service:    "crm",
		Strategies: []xstrategy.Strategy{xstrategy.StrategyRetry},
		MaxRetries: 1,
		Fallback: func(context.Context) (any, error) {
			return "from cache", nil
		},
	})

	assert.True(t, out.Success)
	assert.True(t, out.RecoveryUsed)
	assert.Equal(t, xstrategy.StrategyFallback, out.RecoveryStrategy)
	assert.Equal(t, "from cache", out.Value)
	assert.True(t, out.FallbackUsed)

	snap := e.Metrics()
	assert.Equal(t, uint64(1), snap.FallbackActivations)
	assert.Equal(t, uint64(1), snap.RecoveredErrors)
	assert.Equal(t, uint64(1), snap.RecoveryByStrategy[xstrategy.StrategyFallback])
}

func TestDo_GracefulDegradationIsTerminal(t *testing.T) {
	e := newTestEngine(t)

	// 无回退也无降级操作,默认恢复链仍保证有结果
	out := e.Do(context.Background(), func(context.Context) (any, error) {
		return nil, errUpstream
	}, ExecOptions{
		Service:    "crm",
		Strategies: []xstrategy.Strategy{xstrategy.StrategyRetry},
		MaxRetries: 1,
	})

	assert.True(t, out.Success)
	assert.True(t, out.Degraded)
	assert.True(t, out.RecoveryUsed)
	assert.Equal(t, xstrategy.StrategyGracefulDegradation, out.RecoveryStrategy)
	assert.Nil(t, out.Err)
}

func TestDo_MinimalResponse(t *testing.T) {
	e := newTestEngine(t)

	out := e.Do(context.Background(), func(context.Context) (any, error) {
		return nil, errUpstream
	}, ExecOptions{
		Service:            "crm",
		Strategies:         []xstrategy.Strategy{xstrategy.StrategyRetry},
		MaxRetries:         1,
		RecoveryStrategies: []xstrategy.Strategy{xstrategy.StrategyGracefulDegradation},
		MinimalResponse:    map[string]any{"items": []any{}},
	})

	assert.True(t, out.Success)
	assert.True(t, out.Degraded)
	assert.Equal(t, map[string]any{"items": []any{}}, out.Value)
}

func TestDo_BulkheadIsolation(t *testing.T) {
	e := newTestEngine(t)

	out := e.Do(context.Background(), func(context.Context) (any, error) {
		return nil, errUpstream
	}, ExecOptions{
		Service:            "crm",
		Strategies:         []xstrategy.Strategy{xstrategy.StrategyRetry},
		MaxRetries:         1,
		RecoveryStrategies: []xstrategy.Strategy{xstrategy.StrategyBulkhead},
	})

	assert.True(t, out.Success)
	assert.True(t, out.Isolated)
	assert.Equal(t, xstrategy.StrategyBulkhead, out.RecoveryStrategy)
	assert.Nil(t, out.Err)
}

func TestDo_CircuitOpenShortCircuit(t *testing.T) {
	cfg := fastConfig()
	cfg.FailureThreshold = 2
	e, err := NewFromConfig(cfg)
	require.NoError(t, err)

	failing := ExecOptions{
		Service:            "crm",
		Strategies:         []xstrategy.Strategy{xstrategy.StrategyCircuitBreaker},
		RecoveryStrategies: []xstrategy.Strategy{xstrategy.StrategyBulkhead},
	}
	for i := 0; i < 2; i++ {
		e.Do(context.Background(), func(context.Context) (any, error) {
			return nil, errUpstream
		}, failing)
	}

	var calls atomic.Int32
	op := func(context.Context) (any, error) {
		calls.Add(1)
		return "unreachable", nil
	}

	// 无回退: 显式短路失败
	out := e.Do(context.Background(), op, failing)
	assert.False(t, out.Success)
	assert.True(t, out.CircuitOpen)
	assert.ErrorIs(t, out.Err, ErrCircuitOpen)
	assert.Zero(t, calls.Load(), "operation must not run while circuit is open")

	// 有回退: 短路但返回回退结果
	withFallback := failing
	withFallback.Fallback = func(context.Context) (any, error) { return "cached", nil }
	out = e.Do(context.Background(), op, withFallback)
	assert.True(t, out.Success)
	assert.True(t, out.CircuitOpen)
	assert.True(t, out.FallbackUsed)
	assert.Equal(t, "cached", out.Value)
	assert.Zero(t, calls.Load())

	snap := e.Metrics()
	assert.Equal(t, uint64(1), snap.CircuitBreakerTrips)
	assert.Equal(t, uint64(1), snap.FallbackActivations)
}

func TestDo_OnRetryCallback(t *testing.T) {
	e := newTestEngine(t)

	var attempts []int
	e.Do(context.Background(), func(context.Context) (any, error) {
		return nil, errUpstream
	}, ExecOptions{
		Service:    "crm",
		Strategies: []xstrategy.Strategy{xstrategy.StrategyRetry},
		MaxRetries: 2,
		OnRetry: func(attempt, _ int, err error) {
			attempts = append(attempts, attempt)
			assert.ErrorIs(t, err, errUpstream)
		},
	})

	require.GreaterOrEqual(t, len(attempts), 2)
	assert.Equal(t, []int{1, 2}, attempts[:2])
}

func TestExecute_Typed(t *testing.T) {
	e := newTestEngine(t)

	got, out := Execute(context.Background(), e, func(context.Context) (int, error) {
		return 42, nil
	}, ExecOptions{Service: "crm"})
	assert.True(t, out.Success)
	assert.Equal(t, 42, got)

	// 失败时返回零值
	got, out = Execute(context.Background(), e, func(context.Context) (int, error) {
		return 0, errUpstream
	}, ExecOptions{
		Service:            "crm",
		Strategies:         []xstrategy.Strategy{},
		RecoveryStrategies: []xstrategy.Strategy{xstrategy.StrategyFallback},
	})
	assert.Zero(t, got)

	_, out = Execute[string](context.Background(), nil, nil, ExecOptions{})
	assert.Error(t, out.Err)
}

func TestDo_ConcurrentCallsDistinctServices(t *testing.T) {
	e := newTestEngine(t)

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		service := string(rune('a' + i))
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 20; j++ {
				e.Do(context.Background(), func(context.Context) (any, error) {
					if j%2 == 0 {
						return nil, errUpstream
					}
					return "ok", nil
				}, ExecOptions{
					Service:            service,
					Strategies:         []xstrategy.Strategy{},
					RecoveryStrategies: []xstrategy.Strategy{xstrategy.StrategyGracefulDegradation},
				})
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}

	snap := e.Metrics()
	assert.Equal(t, uint64(80), snap.TotalErrors)
	assert.Len(t, snap.ErrorsByService, 8)
}
