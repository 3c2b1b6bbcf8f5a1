package xretry

import (
	"context"
	"time"
)

// RetryPolicy 定义重试策略接口。
//
// 通过 Retryer 使用时：
//   - MaxAttempts() 设置 retry-go 的 Attempts 上限
//   - ShouldRetry() 在每次失败后被调用，可实现自定义判断
//   - 不可重试错误（Retryable() 返回 false）在 ShouldRetry 之前被短路拦截
type RetryPolicy interface {
	// MaxAttempts 返回最大尝试次数（包含首次尝试）。
	MaxAttempts() int

	// ShouldRetry 判断是否应该重试。
	// attempt 为已失败的尝试次数（从 1 开始）。
	ShouldRetry(ctx context.Context, attempt int, err error) bool
}

// BackoffPolicy 定义退避策略接口。
type BackoffPolicy interface {
	// NextDelay 返回第 attempt 次失败后的重试延迟（attempt 从 1 开始）。
	NextDelay(attempt int) time.Duration
}

// OnRetryFunc 重试遥测回调。
//
// attempt 为刚刚失败的尝试序号（从 1 开始），
// remaining 为剩余可用的重试次数，err 为该次尝试的错误。
type OnRetryFunc func(attempt, remaining int, err error)
