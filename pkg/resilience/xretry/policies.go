package xretry

import "context"

// BudgetRetryPolicy 重试预算策略。
//
// maxRetries 表示首次执行之外允许的额外尝试次数，
// 即操作最多被调用 maxRetries+1 次。
type BudgetRetryPolicy struct {
	maxRetries int
}

// NewBudget 创建重试预算策略。
// maxRetries 为额外尝试次数，负数按 0 处理（只执行一次，不重试）。
func NewBudget(maxRetries int) *BudgetRetryPolicy {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &BudgetRetryPolicy{maxRetries: maxRetries}
}

// MaxAttempts 返回最大尝试次数（首次 + 重试预算）。
func (p *BudgetRetryPolicy) MaxAttempts() int {
	return p.maxRetries + 1
}

// MaxRetries 返回重试预算。
func (p *BudgetRetryPolicy) MaxRetries() int {
	return p.maxRetries
}

// ShouldRetry 判断是否应该重试。
func (p *BudgetRetryPolicy) ShouldRetry(ctx context.Context, attempt int, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if attempt > p.maxRetries {
		return false
	}
	return IsRetryable(err)
}

// NeverRetryPolicy 永不重试策略。
// 用于只需要一次执行但仍希望套用 Retryer 管道的场景。
type NeverRetryPolicy struct{}

// NewNeverRetry 创建永不重试策略。
func NewNeverRetry() *NeverRetryPolicy {
	return &NeverRetryPolicy{}
}

func (p *NeverRetryPolicy) MaxAttempts() int {
	return 1
}

func (p *NeverRetryPolicy) ShouldRetry(_ context.Context, _ int, _ error) bool {
	return false
}

// 确保实现了 RetryPolicy 接口
var (
	_ RetryPolicy = (*BudgetRetryPolicy)(nil)
	_ RetryPolicy = (*NeverRetryPolicy)(nil)
)
