package xrecover

import "errors"

var (
	// ErrNilContext 上下文为空
	ErrNilContext = errors.New("xrecover: nil context")

	// ErrNilOperation 操作为空
	ErrNilOperation = errors.New("xrecover: nil operation")

	// ErrAlreadyStarted 引擎已启动
	ErrAlreadyStarted = errors.New("xrecover: engine already started")

	// ErrNotStarted 引擎未启动
	ErrNotStarted = errors.New("xrecover: engine not started")

	// ErrCircuitOpen 熔断器打开且无可用回退
	ErrCircuitOpen = errors.New("xrecover: circuit breaker open")

	// ErrInvalidConfig 配置非法
	ErrInvalidConfig = errors.New("xrecover: invalid config")
)
