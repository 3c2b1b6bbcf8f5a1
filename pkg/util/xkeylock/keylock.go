package xkeylock

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
)

const (
	defaultShardCount = 32
	maxShardCount     = 1 << 16
)

// Option 定义 Locker 可选配置。
type Option func(*options)

type options struct {
	shardCount int
}

// WithShardCount 设置分片数量。
// 必须为正整数且为 2 的幂（上限 65536），否则 New 返回错误。默认 32。
func WithShardCount(n int) Option {
	return func(o *options) {
		o.shardCount = n
	}
}

// Handle 表示一次成功的锁获取。
// Unlock 幂等：第一次调用释放锁并返回 nil，后续调用返回 [ErrNotHeld]。
type Handle struct {
	l     *Locker
	key   string
	entry *entry
	done  atomic.Bool
}

// Locker 提供基于 key 的进程内互斥锁。所有方法并发安全。
//
// 锁是非可重入的，与 sync.Mutex 一致。不提供死锁检测，
// 调用方负责避免同一 goroutine 对同一 key 重复 Acquire。
type Locker struct {
	shards []shard
	mask   uint64
	closed atomic.Bool
	count  atomic.Int64
	done   chan struct{}
}

type shard struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// entry 表示一个 key 的锁条目。
// ch 是容量 1 的 channel，用作互斥量：发送成功 = 获取锁，接收 = 释放锁。
// refcnt 统计持有者 + 等待者，归零时条目从 map 中删除。
type entry struct {
	ch     chan struct{}
	refcnt atomic.Int32
}

// New 创建 Locker。配置非法时返回错误。
func New(opts ...Option) (*Locker, error) {
	o := options{shardCount: defaultShardCount}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	sc := o.shardCount
	if sc <= 0 || sc > maxShardCount || sc&(sc-1) != 0 {
		return nil, fmt.Errorf("%w: must be a positive power of 2 (max %d), got %d",
			ErrInvalidShardCount, maxShardCount, sc)
	}

	shards := make([]shard, sc)
	for i := range shards {
		shards[i].entries = make(map[string]*entry)
	}
	return &Locker{
		shards: shards,
		mask:   uint64(sc - 1),
		done:   make(chan struct{}),
	}, nil
}

func (l *Locker) shardFor(key string) *shard {
	return &l.shards[xxhash.Sum64String(key)&l.mask]
}

// getOrCreate 获取或创建条目并增加引用计数。
func (l *Locker) getOrCreate(key string) (*entry, error) {
	s := l.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if l.closed.Load() {
		return nil, ErrClosed
	}

	e, ok := s.entries[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		s.entries[key] = e
		l.count.Add(1)
	}
	e.refcnt.Add(1)
	return e, nil
}

// releaseRef 减少引用计数，归零时从 map 删除。
func (l *Locker) releaseRef(key string, e *entry) {
	s := l.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.refcnt.Add(-1) == 0 {
		delete(s.entries, key)
		l.count.Add(-1)
	}
}

// Acquire 阻塞式获取 key 的互斥锁。
//
// ctx 取消时返回 ctx.Err()；Locker 已关闭时返回 [ErrClosed]。
// 当等待期间 Close 与 ctx 取消同时发生，两类错误均有可能（select 语义），
// 调用方应同时处理。
func (l *Locker) Acquire(ctx context.Context, key string) (*Handle, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if key == "" {
		return nil, ErrEmptyKey
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.closed.Load() {
		return nil, ErrClosed
	}

	e, err := l.getOrCreate(key)
	if err != nil {
		return nil, err
	}
	select {
	case e.ch <- struct{}{}:
		return &Handle{l: l, key: key, entry: e}, nil
	case <-ctx.Done():
		l.releaseRef(key, e)
		return nil, ctx.Err()
	case <-l.done:
		l.releaseRef(key, e)
		return nil, ErrClosed
	}
}

// Len 返回当前活跃的 key 数量（瞬时快照），用于监控。
func (l *Locker) Len() int {
	n := l.count.Load()
	if n < 0 {
		return 0
	}
	return int(n)
}

// Close 关闭 Locker：拒绝新的 Acquire 并唤醒所有等待者。
// 已持有的锁不受影响，随 Unlock 逐渐释放。重复 Close 返回 [ErrClosed]。
func (l *Locker) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	close(l.done)
	return nil
}

// Unlock 释放锁。幂等：首次返回 nil，后续返回 [ErrNotHeld]。
func (h *Handle) Unlock() error {
	if !h.done.CompareAndSwap(false, true) {
		return ErrNotHeld
	}
	<-h.entry.ch
	h.l.releaseRef(h.key, h.entry)
	return nil
}

// Key 返回锁的 key，Unlock 之后仍然有效。
func (h *Handle) Key() string {
	return h.key
}
