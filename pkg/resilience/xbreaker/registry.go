package xbreaker

import (
	"sync"
	"time"
)

const (
	// DefaultFailureThreshold 默认连续失败熔断阈值。
	DefaultFailureThreshold = 5

	// DefaultResetTimeout 默认的 Open → HalfOpen 复位超时。
	DefaultResetTimeout = 5 * time.Minute
)

// TransitionFunc 状态迁移回调。
// 在熔断器锁外同步触发，回调内可安全地回调注册表，但不应阻塞。
type TransitionFunc func(tr Transition)

// Registry 按服务名持有熔断器，惰性创建。
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*breaker

	failureThreshold int
	resetTimeout     time.Duration
	onTransition     TransitionFunc
	now              func() time.Time
}

// Option 注册表配置选项。
type Option func(*Registry)

// WithFailureThreshold 设置连续失败熔断阈值。n <= 0 时静默忽略。
func WithFailureThreshold(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.failureThreshold = n
		}
	}
}

// WithResetTimeout 设置 Open → HalfOpen 的复位超时。d <= 0 时静默忽略。
func WithResetTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.resetTimeout = d
		}
	}
}

// WithOnTransition 设置状态迁移回调。
func WithOnTransition(f TransitionFunc) Option {
	return func(r *Registry) {
		if f != nil {
			r.onTransition = f
		}
	}
}

// WithClock 注入时钟，主要用于测试确定性的超时迁移。
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRegistry 创建熔断器注册表。
// 默认配置：failureThreshold=5，resetTimeout=5m。
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		breakers:         make(map[string]*breaker),
		failureThreshold: DefaultFailureThreshold,
		resetTimeout:     DefaultResetTimeout,
		now:              time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// getOrCreate 返回服务的熔断器，不存在时创建。
func (r *Registry) getOrCreate(service string) *breaker {
	r.mu.RLock()
	b, ok := r.breakers[service]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[service]; ok {
		return b
	}
	b = newBreaker(service)
	r.breakers[service] = b
	return b
}

// get 返回服务的熔断器，不存在时返回 nil（不创建）。
func (r *Registry) get(service string) *breaker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.breakers[service]
}

func (r *Registry) emit(tr *Transition) {
	if tr != nil && r.onTransition != nil {
		r.onTransition(*tr)
	}
}

// Check 判定服务当前是否可以执行调用。
//
// Closed 与 HalfOpen 一律放行；Open 在 resetTimeout 到期后放行，
// 并以副作用迁移到 HalfOpen。首次引用服务名时惰性创建熔断器。
func (r *Registry) Check(service string) Decision {
	d, tr := r.getOrCreate(service).check(r.now(), r.resetTimeout)
	r.emit(tr)
	return d
}

// RecordOutcome 记录一次调用结果。
//
// 成功清零连续失败计数并在 HalfOpen 下闭合熔断器；
// 失败递增计数，达到阈值时熔断（已 Open 时幂等，不重复计 trip）。
func (r *Registry) RecordOutcome(service string, success bool) {
	tr := r.getOrCreate(service).record(success, r.now(), r.failureThreshold)
	r.emit(tr)
}

// MarkProbeSuccess 由健康探测驱动 Open → HalfOpen 并清零连续失败计数。
// 返回是否发生了迁移。
func (r *Registry) MarkProbeSuccess(service string) bool {
	b := r.get(service)
	if b == nil {
		return false
	}
	tr := b.probeSuccess(r.now())
	r.emit(tr)
	return tr != nil
}

// ForceReset 强制将服务的熔断器复位到 Closed。返回是否发生了迁移。
func (r *Registry) ForceReset(service string) bool {
	b := r.get(service)
	if b == nil {
		return false
	}
	tr := b.forceReset(r.now())
	r.emit(tr)
	return tr != nil
}

// ResetStuck 强制复位所有打开时长超过 olderThan 的熔断器，
// 返回被复位的服务名。用于维护回路兜底探测饥饿。
func (r *Registry) ResetStuck(olderThan time.Duration) []string {
	cutoff := r.now().Add(-olderThan)

	r.mu.RLock()
	stuck := make([]*breaker, 0)
	for _, b := range r.breakers {
		if b.openedBefore(cutoff) {
			stuck = append(stuck, b)
		}
	}
	r.mu.RUnlock()

	var services []string
	for _, b := range stuck {
		if tr := b.forceReset(r.now()); tr != nil {
			services = append(services, b.service)
			r.emit(tr)
		}
	}
	return services
}

// Reset 清空注册表，丢弃所有熔断器。仅用于整体引擎复位。
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.breakers = make(map[string]*breaker)
}

// Snapshot 返回服务熔断器的快照。服务不存在时第二个返回值为 false。
func (r *Registry) Snapshot(service string) (Snapshot, bool) {
	b := r.get(service)
	if b == nil {
		return Snapshot{}, false
	}
	return b.snapshot(), true
}

// All 返回全部熔断器的快照。
func (r *Registry) All() []Snapshot {
	r.mu.RLock()
	breakers := make([]*breaker, 0, len(r.breakers))
	for _, b := range r.breakers {
		breakers = append(breakers, b)
	}
	r.mu.RUnlock()

	snaps := make([]Snapshot, 0, len(breakers))
	for _, b := range breakers {
		snaps = append(snaps, b.snapshot())
	}
	return snaps
}

// OpenServices 返回当前处于 Open 状态的服务名。
func (r *Registry) OpenServices() []string {
	r.mu.RLock()
	breakers := make([]*breaker, 0, len(r.breakers))
	for _, b := range r.breakers {
		breakers = append(breakers, b)
	}
	r.mu.RUnlock()

	var services []string
	for _, b := range breakers {
		if b.currentState() == StateOpen {
			services = append(services, b.service)
		}
	}
	return services
}

// Len 返回注册表中熔断器的数量。
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.breakers)
}

// FailureThreshold 返回连续失败熔断阈值。
func (r *Registry) FailureThreshold() int {
	return r.failureThreshold
}

// ResetTimeout 返回复位超时。
func (r *Registry) ResetTimeout() time.Duration {
	return r.resetTimeout
}
