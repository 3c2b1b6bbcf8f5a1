package xretry

import "errors"

var (
	// ErrNilRetryer 传入的 Retryer 为 nil
	ErrNilRetryer = errors.New("xretry: retryer cannot be nil")

	// ErrNilContext 传入的 context 为 nil
	ErrNilContext = errors.New("xretry: context cannot be nil")

	// ErrNilFunc 传入的操作函数为 nil
	ErrNilFunc = errors.New("xretry: function cannot be nil")
)

// RetryableError 可重试错误接口。
// 错误链上实现此接口的错误按 Retryable() 的返回值决定是否继续重试。
type RetryableError interface {
	error
	Retryable() bool
}

// PermanentError 永久性错误（不应重试）。
type PermanentError struct {
	Err error
}

// NewPermanentError 将错误标记为永久性错误。
func NewPermanentError(err error) *PermanentError {
	return &PermanentError{Err: err}
}

func (e *PermanentError) Error() string {
	if e.Err == nil {
		return "permanent error"
	}
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Retryable 实现 RetryableError 接口，永远返回 false。
func (e *PermanentError) Retryable() bool {
	return false
}

// IsRetryable 检查错误是否可重试。
//
// 规则：
//   - nil 错误：返回 false（视为成功，无需重试）
//   - 错误链上实现 RetryableError 接口：按 Retryable() 返回值判断
//   - 其他错误：默认可重试
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var re RetryableError
	if errors.As(err, &re) {
		return re.Retryable()
	}
	return true
}

// IsPermanent 检查错误是否为永久性错误（不可重试）。
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	return !IsRetryable(err)
}
