package xpattern

import (
	"sort"
	"sync"
	"time"

	"github.com/omeyang/recoverkit/pkg/resilience/xclassify"
)

const (
	// DefaultMinSamples 参与模式分析的最小样本数。
	DefaultMinSamples = 10

	// DefaultPatternThreshold 默认的模式检测频率阈值。
	DefaultPatternThreshold = 0.3

	// DefaultAnalysisInterval 建议的分析周期（循环由上层驱动）。
	DefaultAnalysisInterval = time.Minute
)

// Severity 模式严重级别。
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// severityFor 按频率分级。
// 边界取闭区间（>= 0.4 即 medium），使 4/10 这类临界窗口落入预期档位。
func severityFor(frequency float64) Severity {
	switch {
	case frequency >= 0.8:
		return SeverityCritical
	case frequency >= 0.6:
		return SeverityHigh
	case frequency >= 0.4:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Detection 是一条检测到的错误模式。
type Detection struct {
	Service    string             `json:"service"`
	Category   xclassify.Category `json:"category"`
	Frequency  float64            `json:"frequency"`
	Count      int                `json:"count"`
	Samples    int                `json:"samples"`
	Severity   Severity           `json:"severity"`
	DetectedAt time.Time          `json:"detected_at"`
}

// Analyzer 周期性扫描错误历史，检测占比突出的失败类别。
// 检测结果按服务覆盖存储；分析本身不会改变熔断器状态。
type Analyzer struct {
	store      *Store
	minSamples int
	threshold  float64
	now        func() time.Time

	mu       sync.RWMutex
	detected map[string][]Detection
}

// AnalyzerOption Analyzer 配置选项。
type AnalyzerOption func(*Analyzer)

// WithMinSamples 设置最小样本数。n <= 0 时静默忽略。
func WithMinSamples(n int) AnalyzerOption {
	return func(a *Analyzer) {
		if n > 0 {
			a.minSamples = n
		}
	}
}

// WithPatternThreshold 设置频率阈值（0-1 之间，越界值被钳制）。
func WithPatternThreshold(v float64) AnalyzerOption {
	return func(a *Analyzer) {
		if v < 0 {
			v = 0
		} else if v > 1 {
			v = 1
		}
		a.threshold = v
	}
}

// WithAnalyzerClock 注入时钟，用于测试。
func WithAnalyzerClock(now func() time.Time) AnalyzerOption {
	return func(a *Analyzer) {
		if now != nil {
			a.now = now
		}
	}
}

// NewAnalyzer 创建模式分析器。store 不能为 nil。
func NewAnalyzer(store *Store, opts ...AnalyzerOption) (*Analyzer, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	a := &Analyzer{
		store:      store,
		minSamples: DefaultMinSamples,
		threshold:  DefaultPatternThreshold,
		now:        time.Now,
		detected:   make(map[string][]Detection),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a, nil
}

// Analyze 扫描全部服务的错误历史，返回本轮检测到的模式。
//
// 样本量不足 MinSamples 的服务跳过（保留上一轮结果）；
// 样本量足够的服务无论是否命中模式都会覆盖上一轮结果。
func (a *Analyzer) Analyze() []Detection {
	now := a.now()
	var all []Detection

	for _, service := range a.store.Services() {
		records := a.store.Records(service)
		if len(records) < a.minSamples {
			continue
		}

		counts := make(map[xclassify.Category]int)
		for _, rec := range records {
			counts[rec.Category]++
		}

		var detections []Detection
		for category, count := range counts {
			frequency := float64(count) / float64(len(records))
			if frequency <= a.threshold {
				continue
			}
			detections = append(detections, Detection{
				Service:    service,
				Category:   category,
				Frequency:  frequency,
				Count:      count,
				Samples:    len(records),
				Severity:   severityFor(frequency),
				DetectedAt: now,
			})
		}
		// map 迭代无序，按频率降序稳定输出
		sort.Slice(detections, func(i, j int) bool {
			if detections[i].Frequency != detections[j].Frequency {
				return detections[i].Frequency > detections[j].Frequency
			}
			return detections[i].Category < detections[j].Category
		})

		a.mu.Lock()
		if len(detections) == 0 {
			delete(a.detected, service)
		} else {
			a.detected[service] = detections
		}
		a.mu.Unlock()

		all = append(all, detections...)
	}
	return all
}

// Detections 返回服务最近一轮的检测结果副本。
func (a *Analyzer) Detections(service string) []Detection {
	a.mu.RLock()
	defer a.mu.RUnlock()
	src := a.detected[service]
	if len(src) == 0 {
		return nil
	}
	out := make([]Detection, len(src))
	copy(out, src)
	return out
}

// Summary 返回全部服务的最新检测结果，按服务名排序。
func (a *Analyzer) Summary() []Detection {
	a.mu.RLock()
	services := make([]string, 0, len(a.detected))
	for svc := range a.detected {
		services = append(services, svc)
	}
	a.mu.RUnlock()
	sort.Strings(services)

	var out []Detection
	for _, svc := range services {
		out = append(out, a.Detections(svc)...)
	}
	return out
}

// Reset 清空检测结果。
func (a *Analyzer) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.detected = make(map[string][]Detection)
}

// PatternThreshold 返回频率阈值。
func (a *Analyzer) PatternThreshold() float64 {
	return a.threshold
}

// MinSamples 返回最小样本数。
func (a *Analyzer) MinSamples() int {
	return a.minSamples
}
