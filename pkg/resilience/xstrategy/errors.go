package xstrategy

import "errors"

var (
	// ErrUnknownStrategy 策略名无法识别
	ErrUnknownStrategy = errors.New("xstrategy: unknown strategy")

	// ErrNilContext 上下文为空
	ErrNilContext = errors.New("xstrategy: nil context")

	// ErrNilRequest 恢复请求为空
	ErrNilRequest = errors.New("xstrategy: nil request")

	// ErrExhausted 链中所有策略都未能产出结果
	ErrExhausted = errors.New("xstrategy: all strategies exhausted")
)
