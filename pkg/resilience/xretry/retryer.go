package xretry

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	retry "github.com/avast/retry-go/v5"
)

// safeIntToUint 将 int 安全转换为 uint。负数返回 0。
func safeIntToUint(n int) uint {
	if n <= 0 {
		return 0
	}
	return uint(n)
}

// safeUintToInt 将 uint 安全转换为 int，超过 MaxInt 的值截断到 MaxInt。
func safeUintToInt(n uint) int {
	if n > uint(math.MaxInt) {
		return math.MaxInt
	}
	return int(n)
}

// 确保 *Retryer 实现 Executor 接口
var _ Executor = (*Retryer)(nil)

// Executor 重试执行器接口。
//
// 设计决策: NewRetryer 返回 *Retryer 而非 Executor 接口，因为泛型函数
// DoWithResult 需要访问 *Retryer 的内部方法。调用方如需 mock，
// 可在自身代码中以此接口作为参数类型。
type Executor interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// Retryer 重试执行器。
//
// 组合 RetryPolicy（是否重试）和 BackoffPolicy（间隔多久），
// 底层使用 avast/retry-go/v5 执行重试循环。
type Retryer struct {
	retryPolicy   RetryPolicy
	backoffPolicy BackoffPolicy
	onRetry       OnRetryFunc
}

// RetryerOption 执行器配置选项
type RetryerOption func(*Retryer)

// WithRetryPolicy 设置重试策略。nil 被静默忽略。
func WithRetryPolicy(p RetryPolicy) RetryerOption {
	return func(r *Retryer) {
		if p != nil {
			r.retryPolicy = p
		}
	}
}

// WithBackoffPolicy 设置退避策略。nil 被静默忽略。
func WithBackoffPolicy(p BackoffPolicy) RetryerOption {
	return func(r *Retryer) {
		if p != nil {
			r.backoffPolicy = p
		}
	}
}

// WithOnRetry 设置重试遥测回调。nil 被静默忽略。
//
// 回调在每次失败尝试后、退避等待前被调用。
// 回调不应阻塞，否则会拉长整体重试耗时。
func WithOnRetry(f OnRetryFunc) RetryerOption {
	return func(r *Retryer) {
		if f != nil {
			r.onRetry = f
		}
	}
}

// NewRetryer 创建重试执行器。
// 默认使用 NewBudget(3)（1 次首次执行 + 最多 3 次重试）和 NewExponentialBackoff()。
func NewRetryer(opts ...RetryerOption) *Retryer {
	r := &Retryer{
		retryPolicy:   NewBudget(3),
		backoffPolicy: NewExponentialBackoff(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Do 执行带重试的操作。
//
// 操作首次执行失败后按退避策略等待并重试，直到成功、预算耗尽、
// 上下文取消或遇到不可重试错误。预算耗尽时返回最后一次的错误。
func (r *Retryer) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if r == nil {
		return ErrNilRetryer
	}
	if ctx == nil {
		return ErrNilContext
	}
	if fn == nil {
		return ErrNilFunc
	}
	return retry.New(r.buildOptions(ctx)...).Do(func() error {
		return fn(ctx)
	})
}

// DoWithResult 执行带重试的操作（有返回值）。
//
// 泛型版本，必须作为包级函数使用。语义与 Do 一致。
func DoWithResult[T any](ctx context.Context, r *Retryer, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if r == nil {
		return zero, ErrNilRetryer
	}
	if ctx == nil {
		return zero, ErrNilContext
	}
	if fn == nil {
		return zero, ErrNilFunc
	}
	return retry.NewWithData[T](r.buildOptions(ctx)...).Do(func() (T, error) {
		return fn(ctx)
	})
}

// buildOptions 构建 retry-go 的选项。
// 每次调用重建选项切片，分配开销对重试场景可忽略。
func (r *Retryer) buildOptions(ctx context.Context) []retry.Option {
	opts := make([]retry.Option, 0, 6)

	opts = append(opts, retry.Context(ctx))

	// 防止零值 Retryer 使用时 panic
	retryPolicy := r.retryPolicy
	if retryPolicy == nil {
		retryPolicy = NewBudget(3)
	}
	backoffPolicy := r.backoffPolicy
	if backoffPolicy == nil {
		backoffPolicy = NewExponentialBackoff()
	}

	// maxAttempts <= 0 视为无限重试
	maxAttempts := retryPolicy.MaxAttempts()
	if maxAttempts <= 0 {
		opts = append(opts, retry.UntilSucceeded())
	} else {
		opts = append(opts, retry.Attempts(safeIntToUint(maxAttempts)))
	}

	// 设计决策: Attempts 设置硬上限，RetryIf 提供逐次判断，两者共同生效。
	// attemptCount 使用原子计数，防止闭包被并发调用时产生数据竞争。
	// 不可重试错误（Retryable() == false）在 ShouldRetry 之前短路。
	var attemptCount atomic.Int64
	opts = append(opts, retry.RetryIf(func(err error) bool {
		count := int(attemptCount.Add(1))
		if !retry.IsRecoverable(err) {
			return false
		}
		if !IsRetryable(err) {
			return false
		}
		return retryPolicy.ShouldRetry(ctx, count, err)
	}))

	// retry-go v5 的 DelayType 中 n 从 1 开始，与 BackoffPolicy.NextDelay 一致
	opts = append(opts, retry.DelayType(func(n uint, _ error, _ retry.DelayContext) time.Duration {
		return backoffPolicy.NextDelay(safeUintToInt(n))
	}))

	if r.onRetry != nil {
		opts = append(opts, retry.OnRetry(func(n uint, err error) {
			// retry-go v5 的 OnRetry 中 n 从 0 开始，转换为 1-based 尝试序号
			attempt := safeUintToInt(n) + 1
			remaining := -1 // 无限重试时剩余次数无意义
			if maxAttempts > 0 {
				remaining = maxAttempts - attempt
				if remaining < 0 {
					remaining = 0
				}
			}
			r.onRetry(attempt, remaining, err)
		}))
	}

	// 只返回最后一个错误，简化调用方的错误处理
	opts = append(opts, retry.LastErrorOnly(true))

	return opts
}

// RetryPolicy 返回当前重试策略。nil 接收者返回 nil。
func (r *Retryer) RetryPolicy() RetryPolicy {
	if r == nil {
		return nil
	}
	return r.retryPolicy
}

// BackoffPolicy 返回当前退避策略。nil 接收者返回 nil。
func (r *Retryer) BackoffPolicy() BackoffPolicy {
	if r == nil {
		return nil
	}
	return r.backoffPolicy
}
