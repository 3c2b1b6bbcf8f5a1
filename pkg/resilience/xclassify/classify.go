package xclassify

import (
	"errors"
	"strings"
)

// Categorized 已分类错误接口。
//
// 错误链上实现此接口的错误跳过关键字匹配，直接使用其声明的类别。
// xclassify 的 CategoryError 和业务方自定义的错误类型均可实现。
type Categorized interface {
	error
	Category() Category
}

// keywordRule 关键字匹配规则。
// 按 rules 中的顺序匹配，先命中先生效。
type keywordRule struct {
	category Category
	keywords []string
}

// 设计决策: 规则顺序即优先级。429 类文本可能同时包含 "too many requests"
// 和 "request" 字样，限流规则排在校验规则之前；"econnreset" 包含 "conn"，
// 网络规则内部用更长的关键字避免依赖顺序。规则表为包级只读数据，并发安全。
var rules = []keywordRule{
	{CategoryTimeout, []string{"timeout", "timed out", "etimedout", "deadline exceeded"}},
	{CategoryRateLimit, []string{"rate limit", "ratelimit", "too many requests", "429", "quota exceeded"}},
	{CategoryAuth, []string{"unauthorized", "forbidden", "authentication", "auth", "401", "403", "invalid token", "api key"}},
	{CategoryNetwork, []string{"econnrefused", "econnreset", "connection refused", "connection reset", "network", "no such host", "dns", "broken pipe", "eof"}},
	{CategoryValidation, []string{"validation", "invalid", "bad request", "400", "malformed", "missing required"}},
	{CategoryServerError, []string{"internal server", "server error", "500", "502", "503", "504", "bad gateway", "service unavailable"}},
}

// Classify 将错误映射为规范类别。
//
// 规则：
//   - nil 错误返回 CategoryUnknown（调用方不应对成功结果调用 Classify）
//   - 错误链上实现 [Categorized] 接口的错误优先，直接返回其类别
//   - 否则对小写化后的错误文本做关键字匹配
//   - 全部未命中返回 CategoryUnknown
//
// Classify 是纯函数，并发安全。
func Classify(err error) Category {
	if err == nil {
		return CategoryUnknown
	}

	var ce Categorized
	if errors.As(err, &ce) {
		if c := ce.Category(); c.Valid() {
			return c
		}
	}

	text := strings.ToLower(err.Error())
	for _, rule := range rules {
		for _, kw := range rule.keywords {
			if strings.Contains(text, kw) {
				return rule.category
			}
		}
	}
	return CategoryUnknown
}

// CategoryError 携带类别信息的错误包装类型。
//
// 通过 retryable 字段同时承载"是否可重试"的声明，
// 实现 xretry 的 RetryableError 接口（Retryable() 方法）。
type CategoryError struct {
	err       error
	category  Category
	retryable bool
}

// Error 实现 error 接口。
func (e *CategoryError) Error() string {
	if e.err == nil {
		return string(e.category)
	}
	return e.err.Error()
}

// Unwrap 实现 errors.Unwrap 接口。
func (e *CategoryError) Unwrap() error {
	return e.err
}

// Category 实现 Categorized 接口。
func (e *CategoryError) Category() Category {
	return e.category
}

// Retryable 实现 xretry.RetryableError 接口。
func (e *CategoryError) Retryable() bool {
	return e.retryable
}

// WithCategory 为错误附加类别，保持可重试。
//
// 适用于适配层已经明确知道错误类别的场景（如 HTTP 状态码映射），
// 避免下游依赖启发式的关键字匹配。
func WithCategory(err error, category Category) error {
	if err == nil {
		return nil
	}
	return &CategoryError{err: err, category: category, retryable: true}
}

// MarkNonRetryable 为错误附加类别并标记为不可重试。
//
// CategoryAuth 和 CategoryValidation 类错误按惯例应使用此函数标记：
// 调用方输入有误，重试不可能成功。分类是启发式的，
// 因此由调用方显式标记，而非在重试器中硬编码类别策略。
func MarkNonRetryable(err error, category Category) error {
	if err == nil {
		return nil
	}
	return &CategoryError{err: err, category: category, retryable: false}
}
