// Package xretry 提供带退避的有界重试执行能力。
//
// # 设计理念
//
// xretry 采用接口驱动设计：
//   - RetryPolicy：定义是否应该继续重试
//   - BackoffPolicy：定义重试间隔时间
//
// 底层使用 [avast/retry-go/v5] 实现重试循环。
//
// # 重试预算
//
// 重试次数以"额外尝试"计：NewBudget(3) 表示首次执行之外最多重试 3 次，
// 操作总计最多被调用 4 次。这与 xrecover 配置面的 maxRetries 语义一致。
//
// # 错误分类
//
// 错误链上实现 RetryableError 接口（Retryable() bool）且返回 false 的错误
// 会立即中止重试，不再消耗剩余预算。xclassify.MarkNonRetryable 和本包的
// NewPermanentError 均产生此类错误。未实现接口的错误默认可重试。
//
// # 观测
//
// WithOnRetry 注册的回调在每次失败尝试后被调用，携带尝试序号、
// 剩余重试次数和该次错误，供上层做遥测上报。
//
// [avast/retry-go/v5]: https://github.com/avast/retry-go
package xretry
