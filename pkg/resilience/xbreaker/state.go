package xbreaker

import (
	"strconv"
	"time"
)

// State 表示熔断器状态。
type State int

const (
	// StateClosed 关闭状态，请求正常通过。
	StateClosed State = iota
	// StateOpen 打开状态，请求被拒绝。
	StateOpen
	// StateHalfOpen 半开状态，请求放行以验证服务恢复。
	StateHalfOpen
)

// String 返回状态的可读表示，用于日志和指标标签。
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "state(" + strconv.Itoa(int(s)) + ")"
	}
}

// Reason 表示一次状态迁移的原因。
type Reason string

const (
	// ReasonTripped 连续失败达到阈值，Closed/HalfOpen → Open。
	ReasonTripped Reason = "tripped"
	// ReasonTimeout resetTimeout 到期，Open → HalfOpen。
	ReasonTimeout Reason = "reset_timeout"
	// ReasonProbe 后台探测成功，Open → HalfOpen。
	ReasonProbe Reason = "probe"
	// ReasonRecovered 半开状态下调用成功，HalfOpen → Closed。
	ReasonRecovered Reason = "recovered"
	// ReasonForced 维护路径强制复位，任意状态 → Closed。
	ReasonForced Reason = "forced"
)

// Snapshot 是某个服务熔断器的只读快照。
type Snapshot struct {
	Service             string    `json:"service"`
	State               State     `json:"-"`
	StateText           string    `json:"state"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	TotalRequests       uint64    `json:"total_requests"`
	FailedRequests      uint64    `json:"failed_requests"`
	Trips               uint64    `json:"trips"`
	LastFailureAt       time.Time `json:"last_failure_at,omitzero"`
	OpenedAt            time.Time `json:"opened_at,omitzero"`
}

// Transition 描述一次状态迁移事件。
type Transition struct {
	Service  string
	From     State
	To       State
	Reason   Reason
	At       time.Time
	Snapshot Snapshot
}

// Decision 是 Check 的结果。
type Decision struct {
	// CanExecute 为 true 时调用方可以执行操作。
	CanExecute bool
	// State 是判定后的熔断器状态（Open 超时放行时已是 HalfOpen）。
	State State
}
