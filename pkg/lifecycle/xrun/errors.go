package xrun

import (
	"errors"
	"fmt"
	"os"
)

var (
	// ErrSignal 因收到系统信号而终止,用 errors.Is 判断
	ErrSignal = errors.New("received signal")

	// ErrNilFunc 任务函数为空
	ErrNilFunc = errors.New("xrun: nil func")

	// ErrInvalidInterval Ticker 间隔必须为正数
	ErrInvalidInterval = errors.New("xrun: interval must be positive")

	// ErrInvalidDelay Timer 延迟不能为负数
	ErrInvalidDelay = errors.New("xrun: delay must not be negative")
)

// SignalError 携带触发终止的具体信号。
// 用 errors.As 取出信号值,用 errors.Is(err, ErrSignal) 做分类判断。
type SignalError struct {
	Signal os.Signal
}

// Error 实现 error 接口。
func (e *SignalError) Error() string {
	if e.Signal == nil {
		return "received signal <nil>"
	}
	return fmt.Sprintf("received signal %s", e.Signal)
}

// Is 支持 errors.Is(err, ErrSignal)。
func (e *SignalError) Is(target error) bool { return target == ErrSignal }

// Unwrap 返回底层错误。
func (e *SignalError) Unwrap() error { return ErrSignal }
