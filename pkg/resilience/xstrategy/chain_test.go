package xstrategy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/recoverkit/pkg/resilience/xclassify"
)

var errUpstream = errors.New("upstream exploded")

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Strategy
		wantErr bool
	}{
		{"canonical", "fallback", StrategyFallback, false},
		{"snake case", "graceful_degradation", StrategyGracefulDegradation, false},
		{"camel alias", "circuitBreaker", StrategyCircuitBreaker, false},
		{"camel alias degradation", "gracefulDegradation", StrategyGracefulDegradation, false},
		{"whitespace", "  retry ", StrategyRetry, false},
		{"unknown", "prayer", "", true},
		{"empty", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownStrategy)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseList_RejectsAtConfigTime(t *testing.T) {
	_, err := ParseList([]string{"retry", "fallback", "voodoo"})
	assert.ErrorIs(t, err, ErrUnknownStrategy)

	got, err := ParseList([]string{"retry", "circuit_breaker", "fallback"})
	require.NoError(t, err)
	assert.Equal(t, DefaultStrategies(), got)
}

func TestNewChain_UnknownStrategy(t *testing.T) {
	_, err := NewChain([]Strategy{Strategy("voodoo")})
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}

func TestChain_FallbackWins(t *testing.T) {
	chain, err := NewChain(DefaultRecoveryStrategies())
	require.NoError(t, err)

	result, err := chain.Attempt(context.Background(), &Request{
		Service:  "crm",
		Err:      errUpstream,
		Category: xclassify.CategoryTimeout,
		Fallback: func(context.Context) (any, error) { return "cached", nil },
		Degraded: func(context.Context) (any, error) { return "degraded", nil },
	})
	require.NoError(t, err)
	assert.Equal(t, StrategyFallback, result.Strategy)
	assert.Equal(t, "cached", result.Value)
	assert.True(t, result.FallbackUsed)
	assert.False(t, result.Degraded)
}

func TestChain_FallbackFailureFallsThrough(t *testing.T) {
	chain, err := NewChain(DefaultRecoveryStrategies())
	require.NoError(t, err)

	result, err := chain.Attempt(context.Background(), &Request{
		Service:  "crm",
		Err:      errUpstream,
		Fallback: func(context.Context) (any, error) { return nil, errors.New("fallback also down") },
	})
	require.NoError(t, err)
	assert.Equal(t, StrategyGracefulDegradation, result.Strategy)
	assert.True(t, result.Degraded)
}

func TestChain_DegradationIsTerminal(t *testing.T) {
	chain, err := NewChain([]Strategy{StrategyGracefulDegradation})
	require.NoError(t, err)

	// 既无降级操作也无默认值,仍然成功
	result, err := chain.Attempt(context.Background(), &Request{
		Service: "crm",
		Err:     errUpstream,
	})
	require.NoError(t, err)
	assert.True(t, result.Degraded)
	assert.Nil(t, result.Value)

	// 降级操作自身出错时退回默认降级值
	result, err = chain.Attempt(context.Background(), &Request{
		Service:       "crm",
		Err:           errUpstream,
		Degraded:      func(context.Context) (any, error) { return nil, errors.New("no dice") },
		DegradedValue: map[string]any{"status": "degraded"},
	})
	require.NoError(t, err)
	assert.True(t, result.Degraded)
	assert.Equal(t, map[string]any{"status": "degraded"}, result.Value)
}

func TestChain_BulkheadIsolates(t *testing.T) {
	chain, err := NewChain([]Strategy{StrategyBulkhead})
	require.NoError(t, err)

	result, err := chain.Attempt(context.Background(), &Request{
		Service: "crm",
		Err:     errUpstream,
	})
	require.NoError(t, err)
	assert.True(t, result.Isolated)
	assert.ErrorIs(t, result.Cause, errUpstream)
	assert.Nil(t, result.Value)
}

func TestChain_PlaceholdersSkip(t *testing.T) {
	// retry 与 circuit_breaker 在链中不做任何事,无可用策略时耗尽
	chain, err := NewChain([]Strategy{StrategyRetry, StrategyCircuitBreaker, StrategyFallback})
	require.NoError(t, err)

	_, err = chain.Attempt(context.Background(), &Request{
		Service: "crm",
		Err:     errUpstream,
	})
	assert.ErrorIs(t, err, ErrExhausted)
	assert.ErrorIs(t, err, errUpstream)
}

func TestChain_ContextCancellation(t *testing.T) {
	chain, err := NewChain(DefaultRecoveryStrategies())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = chain.Attempt(ctx, &Request{Service: "crm", Err: errUpstream})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestChain_NilGuards(t *testing.T) {
	chain, err := NewChain(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultRecoveryStrategies(), chain.Strategies())

	_, err = chain.Attempt(nil, &Request{}) //nolint:staticcheck // 验证 nil 上下文防御
	assert.ErrorIs(t, err, ErrNilContext)

	_, err = chain.Attempt(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNilRequest)
}

type recordingHandler struct {
	calls int
}

func (h *recordingHandler) Strategy() Strategy { return StrategyFallback }

func (h *recordingHandler) Attempt(context.Context, *Request) (*Result, error) {
	h.calls++
	return &Result{Value: "custom"}, nil
}

func TestChain_CustomHandlerOverridesBuiltin(t *testing.T) {
	custom := &recordingHandler{}
	chain, err := NewChain([]Strategy{StrategyFallback}, WithHandler(custom))
	require.NoError(t, err)

	result, err := chain.Attempt(context.Background(), &Request{Service: "crm", Err: errUpstream})
	require.NoError(t, err)
	assert.Equal(t, 1, custom.calls)
	assert.Equal(t, "custom", result.Value)
	assert.Equal(t, StrategyFallback, result.Strategy)
}
