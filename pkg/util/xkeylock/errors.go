package xkeylock

import "errors"

var (
	// ErrNotHeld 表示锁已被释放。
	// Unlock 第二次及后续调用时返回此错误。
	ErrNotHeld = errors.New("xkeylock: lock not held")

	// ErrClosed 表示 Locker 已关闭。
	// Close 后调用 Acquire 返回此错误。
	ErrClosed = errors.New("xkeylock: closed")

	// ErrEmptyKey 表示传入的 key 为空字符串。
	ErrEmptyKey = errors.New("xkeylock: empty key")

	// ErrNilContext 表示传入的 context 为 nil。
	ErrNilContext = errors.New("xkeylock: nil context")

	// ErrInvalidShardCount 表示分片数配置非法。
	ErrInvalidShardCount = errors.New("xkeylock: invalid shard count")
)
