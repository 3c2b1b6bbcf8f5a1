package xbreaker

import (
	"sync"
	"time"
)

// breaker 是单个服务的熔断器。字段由 mu 保护。
type breaker struct {
	mu sync.Mutex

	service             string
	state               State
	consecutiveFailures int
	totalRequests       uint64
	failedRequests      uint64
	trips               uint64
	lastFailureAt       time.Time
	openedAt            time.Time
}

func newBreaker(service string) *breaker {
	return &breaker{service: service, state: StateClosed}
}

// snapshotLocked 生成快照。调用方必须持有 mu。
func (b *breaker) snapshotLocked() Snapshot {
	return Snapshot{
		Service:             b.service,
		State:               b.state,
		StateText:           b.state.String(),
		ConsecutiveFailures: b.consecutiveFailures,
		TotalRequests:       b.totalRequests,
		FailedRequests:      b.failedRequests,
		Trips:               b.trips,
		LastFailureAt:       b.lastFailureAt,
		OpenedAt:            b.openedAt,
	}
}

// transitionLocked 切换状态并构造迁移事件。调用方必须持有 mu。
func (b *breaker) transitionLocked(to State, reason Reason, now time.Time) Transition {
	from := b.state
	b.state = to
	if to == StateOpen {
		b.openedAt = now
	} else {
		b.openedAt = time.Time{}
	}
	return Transition{
		Service:  b.service,
		From:     from,
		To:       to,
		Reason:   reason,
		At:       now,
		Snapshot: b.snapshotLocked(),
	}
}

// check 判定是否放行。Open 状态下 resetTimeout 到期时迁移到 HalfOpen（副作用）。
func (b *breaker) check(now time.Time, resetTimeout time.Duration) (Decision, *Transition) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if !b.lastFailureAt.IsZero() && now.Sub(b.lastFailureAt) > resetTimeout {
			tr := b.transitionLocked(StateHalfOpen, ReasonTimeout, now)
			return Decision{CanExecute: true, State: StateHalfOpen}, &tr
		}
		return Decision{CanExecute: false, State: StateOpen}, nil
	default:
		// Closed 与 HalfOpen 一律放行
		return Decision{CanExecute: true, State: b.state}, nil
	}
}

// record 记录一次调用结果。
//
// 成功：清零连续失败计数；HalfOpen 下迁移到 Closed。
// 失败：递增计数；达到阈值或 HalfOpen 下失败时迁移到 Open。
// 已处于 Open 时重复失败不再产生迁移，trips 也不重复累加（幂等）。
func (b *breaker) record(success bool, now time.Time, failureThreshold int) *Transition {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.totalRequests++

	if success {
		b.consecutiveFailures = 0
		if b.state == StateHalfOpen {
			tr := b.transitionLocked(StateClosed, ReasonRecovered, now)
			return &tr
		}
		return nil
	}

	b.consecutiveFailures++
	b.failedRequests++
	b.lastFailureAt = now

	if b.state == StateOpen {
		return nil
	}
	if b.state == StateHalfOpen || b.consecutiveFailures >= failureThreshold {
		b.trips++
		tr := b.transitionLocked(StateOpen, ReasonTripped, now)
		return &tr
	}
	return nil
}

// probeSuccess 由健康探测驱动：Open → HalfOpen 并清零连续失败计数。
// 非 Open 状态下为空操作。
func (b *breaker) probeSuccess(now time.Time) *Transition {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateOpen {
		return nil
	}
	b.consecutiveFailures = 0
	tr := b.transitionLocked(StateHalfOpen, ReasonProbe, now)
	return &tr
}

// forceReset 强制复位到 Closed 并清零连续失败计数。
// 已处于 Closed 时为空操作。累计计数器（totalRequests 等）保留。
func (b *breaker) forceReset(now time.Time) *Transition {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateClosed {
		return nil
	}
	b.consecutiveFailures = 0
	tr := b.transitionLocked(StateClosed, ReasonForced, now)
	return &tr
}

// openedBefore 判断熔断器是否处于 Open 且在 cutoff 之前打开。
func (b *breaker) openedBefore(cutoff time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == StateOpen && !b.openedAt.IsZero() && b.openedAt.Before(cutoff)
}

func (b *breaker) snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotLocked()
}

func (b *breaker) currentState() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
