package xrecover

import (
	"fmt"

	"github.com/omeyang/recoverkit/pkg/resilience/xbreaker"
	"github.com/omeyang/recoverkit/pkg/resilience/xpattern"
)

// HealthState 服务健康档位。
type HealthState string

const (
	// HealthHealthy 正常
	HealthHealthy HealthState = "healthy"
	// HealthDegraded 检测到显著错误模式
	HealthDegraded HealthState = "degraded"
	// HealthRecovering 熔断器半开,正在试探恢复
	HealthRecovering HealthState = "recovering"
	// HealthUnavailable 熔断器打开
	HealthUnavailable HealthState = "unavailable"
)

// ServiceHealth 健康档位与判定原因。
type ServiceHealth struct {
	Status HealthState `json:"status"`
	Reason string      `json:"reason"`
}

// ServiceStatus 单个服务的完整状态视图。
type ServiceStatus struct {
	Service      string               `json:"service"`
	Breaker      *xbreaker.Snapshot   `json:"breaker,omitempty"`
	RecentErrors []xpattern.Record    `json:"recent_errors,omitempty"`
	Patterns     []xpattern.Detection `json:"patterns,omitempty"`
	Metrics      ServiceCounters      `json:"metrics"`
	Health       ServiceHealth        `json:"health"`
}

// HealthStatus 引擎全局健康视图。
type HealthStatus struct {
	Metrics        MetricsSnapshot      `json:"metrics"`
	OpenBreakers   []xbreaker.Snapshot  `json:"open_breakers,omitempty"`
	PatternSummary []xpattern.Detection `json:"pattern_summary,omitempty"`
}

// ServiceStatus 返回某个服务的状态: 熔断器快照、最近错误(最多 10 条,
// 新到旧)、检测到的模式、计数与健康档位。
func (e *Engine) ServiceStatus(service string) ServiceStatus {
	service = serviceOrDefault(service)
	st := ServiceStatus{Service: service}

	if snap, ok := e.breakers.Snapshot(service); ok {
		st.Breaker = &snap
	}
	st.RecentErrors = e.store.Recent(service, 10)
	st.Patterns = e.analyzer.Detections(service)
	st.Metrics = e.metrics.serviceCounters(service)
	st.Health = deriveHealth(st.Breaker, st.Patterns)
	return st
}

// HealthStatus 返回全局视图: 指标快照、打开中的熔断器、模式摘要。
func (e *Engine) HealthStatus() HealthStatus {
	var open []xbreaker.Snapshot
	for _, snap := range e.breakers.All() {
		if snap.State == xbreaker.StateOpen {
			open = append(open, snap)
		}
	}
	return HealthStatus{
		Metrics:        e.metrics.snapshot(),
		OpenBreakers:   open,
		PatternSummary: e.analyzer.Summary(),
	}
}

// Metrics 返回聚合指标快照。
func (e *Engine) Metrics() MetricsSnapshot {
	return e.metrics.snapshot()
}

func deriveHealth(breaker *xbreaker.Snapshot, patterns []xpattern.Detection) ServiceHealth {
	if breaker != nil {
		switch breaker.State {
		case xbreaker.StateOpen:
			return ServiceHealth{
				Status: HealthUnavailable,
				Reason: fmt.Sprintf("circuit breaker open after %d consecutive failures", breaker.ConsecutiveFailures),
			}
		case xbreaker.StateHalfOpen:
			return ServiceHealth{Status: HealthRecovering, Reason: "circuit breaker half-open, probing"}
		}
	}
	for _, d := range patterns {
		if d.Severity == xpattern.SeverityCritical || d.Severity == xpattern.SeverityHigh {
			return ServiceHealth{
				Status: HealthDegraded,
				Reason: fmt.Sprintf("dominant %s errors (%.0f%% of recent window)", d.Category, d.Frequency*100),
			}
		}
	}
	return ServiceHealth{Status: HealthHealthy, Reason: "no open breaker or dominant error pattern"}
}
