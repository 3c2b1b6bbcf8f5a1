package xrecover

import (
	"sync"
	"time"

	"github.com/omeyang/recoverkit/pkg/resilience/xclassify"
	"github.com/omeyang/recoverkit/pkg/resilience/xstrategy"
)

// ServiceCounters 单个服务的请求计数。
type ServiceCounters struct {
	Total   uint64 `json:"total"`
	Success uint64 `json:"success"`
	Failed  uint64 `json:"failed"`
}

// MetricsSnapshot 聚合指标的一致性快照,map 均为副本。
type MetricsSnapshot struct {
	TotalErrors         uint64                       `json:"total_errors"`
	RecoveredErrors     uint64                       `json:"recovered_errors"`
	PermanentFailures   uint64                       `json:"permanent_failures"`
	CircuitBreakerTrips uint64                       `json:"circuit_breaker_trips"`
	FallbackActivations uint64                       `json:"fallback_activations"`
	RecoveryByStrategy  map[xstrategy.Strategy]uint64 `json:"recovery_by_strategy"`
	ErrorsByService     map[string]ServiceCounters   `json:"errors_by_service"`
	ErrorsByType        map[xclassify.Category]uint64 `json:"errors_by_type"`
	AvgRecoveryTime     time.Duration                `json:"avg_recovery_time"`
}

// aggregateMetrics 进程内单调累积的指标,生命周期内只增不减,
// Reset 归零。
type aggregateMetrics struct {
	mu sync.Mutex

	totalErrors         uint64
	recoveredErrors     uint64
	permanentFailures   uint64
	circuitBreakerTrips uint64
	fallbackActivations uint64

	recoveryByStrategy map[xstrategy.Strategy]uint64
	byService          map[string]*ServiceCounters
	byType             map[xclassify.Category]uint64

	recoveryCount uint64
	recoveryTotal time.Duration
}

func newAggregateMetrics() *aggregateMetrics {
	return &aggregateMetrics{
		recoveryByStrategy: make(map[xstrategy.Strategy]uint64),
		byService:          make(map[string]*ServiceCounters),
		byType:             make(map[xclassify.Category]uint64),
	}
}

func (m *aggregateMetrics) serviceEntry(service string) *ServiceCounters {
	sc, ok := m.byService[service]
	if !ok {
		sc = &ServiceCounters{}
		m.byService[service] = sc
	}
	return sc
}

func (m *aggregateMetrics) recordSuccess(service string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sc := m.serviceEntry(service)
	sc.Total++
	sc.Success++
}

func (m *aggregateMetrics) recordFailure(service string, category xclassify.Category) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalErrors++
	m.byType[category]++
	sc := m.serviceEntry(service)
	sc.Total++
	sc.Failed++
}

func (m *aggregateMetrics) recordTrip() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.circuitBreakerTrips++
}

func (m *aggregateMetrics) recordRecovery(strategy xstrategy.Strategy, elapsed time.Duration, fallbackUsed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recoveredErrors++
	m.recoveryByStrategy[strategy]++
	if fallbackUsed {
		m.fallbackActivations++
	}
	m.recoveryCount++
	m.recoveryTotal += elapsed
}

// recordFallbackShortCircuit 熔断打开时的回退,不经过恢复链。
func (m *aggregateMetrics) recordFallbackShortCircuit() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallbackActivations++
}

func (m *aggregateMetrics) recordPermanent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.permanentFailures++
}

func (m *aggregateMetrics) serviceCounters(service string) ServiceCounters {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sc, ok := m.byService[service]; ok {
		return *sc
	}
	return ServiceCounters{}
}

func (m *aggregateMetrics) snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := MetricsSnapshot{
		TotalErrors:         m.totalErrors,
		RecoveredErrors:     m.recoveredErrors,
		PermanentFailures:   m.permanentFailures,
		CircuitBreakerTrips: m.circuitBreakerTrips,
		FallbackActivations: m.fallbackActivations,
		RecoveryByStrategy:  make(map[xstrategy.Strategy]uint64, len(m.recoveryByStrategy)),
		ErrorsByService:     make(map[string]ServiceCounters, len(m.byService)),
		ErrorsByType:        make(map[xclassify.Category]uint64, len(m.byType)),
	}
	for k, v := range m.recoveryByStrategy {
		snap.RecoveryByStrategy[k] = v
	}
	for k, v := range m.byService {
		snap.ErrorsByService[k] = *v
	}
	for k, v := range m.byType {
		snap.ErrorsByType[k] = v
	}
	if m.recoveryCount > 0 {
		snap.AvgRecoveryTime = m.recoveryTotal / time.Duration(m.recoveryCount)
	}
	return snap
}

func (m *aggregateMetrics) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalErrors = 0
	m.recoveredErrors = 0
	m.permanentFailures = 0
	m.circuitBreakerTrips = 0
	m.fallbackActivations = 0
	m.recoveryByStrategy = make(map[xstrategy.Strategy]uint64)
	m.byService = make(map[string]*ServiceCounters)
	m.byType = make(map[xclassify.Category]uint64)
	m.recoveryCount = 0
	m.recoveryTotal = 0
}
