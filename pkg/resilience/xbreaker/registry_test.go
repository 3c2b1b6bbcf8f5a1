package xbreaker

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock 可手动推进的时钟。
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestRegistry_TripAtThreshold(t *testing.T) {
	clock := newFakeClock()
	r := NewRegistry(WithFailureThreshold(5), WithClock(clock.Now))

	// 前 5 次失败期间仍然放行
	for i := 0; i < 5; i++ {
		d := r.Check("crm")
		require.True(t, d.CanExecute, "call %d should pass", i+1)
		r.RecordOutcome("crm", false)
	}

	// 第 6 次被拒绝
	d := r.Check("crm")
	assert.False(t, d.CanExecute)
	assert.Equal(t, StateOpen, d.State)

	snap, ok := r.Snapshot("crm")
	require.True(t, ok)
	assert.Equal(t, StateOpen, snap.State)
	assert.Equal(t, 5, snap.ConsecutiveFailures)
	assert.Equal(t, uint64(5), snap.FailedRequests)
	assert.Equal(t, uint64(5), snap.TotalRequests)
	assert.Equal(t, uint64(1), snap.Trips)
}

func TestRegistry_SuccessResetsConsecutive(t *testing.T) {
	r := NewRegistry(WithFailureThreshold(3))

	r.RecordOutcome("crm", false)
	r.RecordOutcome("crm", false)
	r.RecordOutcome("crm", true)
	r.RecordOutcome("crm", false)
	r.RecordOutcome("crm", false)

	snap, _ := r.Snapshot("crm")
	assert.Equal(t, StateClosed, snap.State)
	assert.Equal(t, 2, snap.ConsecutiveFailures)
}

func TestRegistry_OpenToHalfOpenAfterTimeout(t *testing.T) {
	clock := newFakeClock()
	r := NewRegistry(
		WithFailureThreshold(1),
		WithResetTimeout(time.Minute),
		WithClock(clock.Now),
	)

	r.RecordOutcome("crm", false)
	assert.False(t, r.Check("crm").CanExecute)

	// 超时前仍然拒绝
	clock.Advance(59 * time.Second)
	assert.False(t, r.Check("crm").CanExecute)

	// 超时后放行并迁移到 HalfOpen
	clock.Advance(2 * time.Second)
	d := r.Check("crm")
	assert.True(t, d.CanExecute)
	assert.Equal(t, StateHalfOpen, d.State)

	snap, _ := r.Snapshot("crm")
	assert.Equal(t, StateHalfOpen, snap.State)
}

func TestRegistry_HalfOpenClosesOnSuccess(t *testing.T) {
	clock := newFakeClock()
	r := NewRegistry(
		WithFailureThreshold(1),
		WithResetTimeout(time.Minute),
		WithClock(clock.Now),
	)

	r.RecordOutcome("crm", false)
	clock.Advance(2 * time.Minute)
	require.True(t, r.Check("crm").CanExecute)

	r.RecordOutcome("crm", true)

	snap, _ := r.Snapshot("crm")
	assert.Equal(t, StateClosed, snap.State)
	assert.Equal(t, 0, snap.ConsecutiveFailures)
}

func TestRegistry_HalfOpenReopensOnFailure(t *testing.T) {
	clock := newFakeClock()
	r := NewRegistry(
		WithFailureThreshold(5),
		WithResetTimeout(time.Minute),
		WithClock(clock.Now),
	)

	for i := 0; i < 5; i++ {
		r.RecordOutcome("crm", false)
	}
	clock.Advance(2 * time.Minute)
	require.Equal(t, StateHalfOpen, r.Check("crm").State)

	// 半开状态下一次失败即重新熔断，无需再次累计到阈值
	r.RecordOutcome("crm", false)

	snap, _ := r.Snapshot("crm")
	assert.Equal(t, StateOpen, snap.State)
	assert.Equal(t, uint64(2), snap.Trips)
}

func TestRegistry_IdempotentTripCounting(t *testing.T) {
	var opened int
	r := NewRegistry(
		WithFailureThreshold(2),
		WithOnTransition(func(tr Transition) {
			if tr.To == StateOpen {
				opened++
			}
		}),
	)

	for i := 0; i < 10; i++ {
		r.RecordOutcome("crm", false)
	}

	snap, _ := r.Snapshot("crm")
	assert.Equal(t, uint64(1), snap.Trips)
	assert.Equal(t, 1, opened)
	assert.Equal(t, uint64(10), snap.FailedRequests)
}

func TestRegistry_MarkProbeSuccess(t *testing.T) {
	r := NewRegistry(WithFailureThreshold(1))

	r.RecordOutcome("crm", false)
	require.Equal(t, []string{"crm"}, r.OpenServices())

	assert.True(t, r.MarkProbeSuccess("crm"))

	snap, _ := r.Snapshot("crm")
	assert.Equal(t, StateHalfOpen, snap.State)
	assert.Equal(t, 0, snap.ConsecutiveFailures)
	assert.Empty(t, r.OpenServices())

	// 非 Open 状态为空操作
	assert.False(t, r.MarkProbeSuccess("crm"))
	// 未知服务不创建熔断器
	assert.False(t, r.MarkProbeSuccess("nope"))
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_ResetStuck(t *testing.T) {
	clock := newFakeClock()
	r := NewRegistry(
		WithFailureThreshold(1),
		WithResetTimeout(time.Minute),
		WithClock(clock.Now),
	)

	r.RecordOutcome("old", false)
	clock.Advance(3 * time.Minute)
	r.RecordOutcome("fresh", false)

	// 只有打开超过 2 分钟的熔断器被强制复位
	reset := r.ResetStuck(2 * time.Minute)
	assert.Equal(t, []string{"old"}, reset)

	oldSnap, _ := r.Snapshot("old")
	assert.Equal(t, StateClosed, oldSnap.State)
	freshSnap, _ := r.Snapshot("fresh")
	assert.Equal(t, StateOpen, freshSnap.State)
}

func TestRegistry_TransitionEvents(t *testing.T) {
	clock := newFakeClock()
	var mu sync.Mutex
	var events []Transition
	r := NewRegistry(
		WithFailureThreshold(1),
		WithResetTimeout(time.Minute),
		WithClock(clock.Now),
		WithOnTransition(func(tr Transition) {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, tr)
		}),
	)

	r.RecordOutcome("crm", false) // closed → open
	clock.Advance(2 * time.Minute)
	r.Check("crm")               // open → half_open
	r.RecordOutcome("crm", true) // half_open → closed

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 3)
	assert.Equal(t, ReasonTripped, events[0].Reason)
	assert.Equal(t, StateOpen, events[0].To)
	assert.Equal(t, ReasonTimeout, events[1].Reason)
	assert.Equal(t, StateHalfOpen, events[1].To)
	assert.Equal(t, ReasonRecovered, events[2].Reason)
	assert.Equal(t, StateClosed, events[2].To)
	for _, ev := range events {
		assert.Equal(t, "crm", ev.Service)
		assert.Equal(t, "crm", ev.Snapshot.Service)
	}
}

func TestRegistry_Reset(t *testing.T) {
	r := NewRegistry()
	r.Check("a")
	r.Check("b")
	require.Equal(t, 2, r.Len())

	r.Reset()
	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.All())
}

func TestRegistry_LazyCreation(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, 0, r.Len())

	d := r.Check("new-service")
	assert.True(t, d.CanExecute)
	assert.Equal(t, StateClosed, d.State)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_ConcurrentOutcomes(t *testing.T) {
	r := NewRegistry(WithFailureThreshold(1000000))

	const workers = 8
	const iters = 500
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < iters; i++ {
				r.RecordOutcome("svc", i%2 == 0)
			}
		}()
	}
	wg.Wait()

	snap, _ := r.Snapshot("svc")
	assert.Equal(t, uint64(workers*iters), snap.TotalRequests)
	assert.Equal(t, uint64(workers*iters/2), snap.FailedRequests)
}
