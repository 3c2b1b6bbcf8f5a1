package xrecover

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/omeyang/recoverkit/pkg/lifecycle/xrun"
	"github.com/omeyang/recoverkit/pkg/observability/xmetrics"
	"github.com/omeyang/recoverkit/pkg/resilience/xbreaker"
	"github.com/omeyang/recoverkit/pkg/resilience/xpattern"
	"github.com/omeyang/recoverkit/pkg/util/xkeylock"
)

// Prober 对熔断打开的服务做轻量健康探测。
type Prober interface {
	// Probe 探测一次 service,返回 nil 表示服务恢复可用。
	Probe(ctx context.Context, service string) error
}

// ProberFunc 把函数适配为 Prober。
type ProberFunc func(ctx context.Context, service string) error

// Probe 实现 Prober。
func (f ProberFunc) Probe(ctx context.Context, service string) error {
	return f(ctx, service)
}

// syntheticProber 无真实探测手段时的合成探测,总是成功。
// 效果等同于把 OPEN 的熔断器按探测周期推进到 HALF_OPEN 试探。
type syntheticProber struct{}

func (syntheticProber) Probe(context.Context, string) error { return nil }

// Engine 失败恢复引擎,组合熔断、重试、恢复链、分类与模式分析。
type Engine struct {
	cfg      Config
	breakers *xbreaker.Registry
	store    *xpattern.Store
	analyzer *xpattern.Analyzer
	locks    *xkeylock.Locker
	metrics  *aggregateMetrics
	events   *dispatcher

	logger   *slog.Logger
	observer xmetrics.Observer
	prober   Prober
	now      func() time.Time
	newID    func() string

	runMu sync.Mutex
	group *xrun.Group
}

// Option 配置 Engine 的可选项。
type Option func(*Engine)

// WithConfig 整体替换配置,零值字段仍会回填默认值。
func WithConfig(cfg Config) Option {
	return func(e *Engine) { e.cfg = cfg }
}

// WithLogger 设置日志器,默认 slog.Default()。
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithObserver 设置观测实现,默认不观测。
func WithObserver(observer xmetrics.Observer) Option {
	return func(e *Engine) {
		if observer != nil {
			e.observer = observer
		}
	}
}

// WithProber 设置健康探测实现,默认合成探测(总是成功)。
func WithProber(p Prober) Option {
	return func(e *Engine) {
		if p != nil {
			e.prober = p
		}
	}
}

// WithClock 注入时钟,用于测试。
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New 创建恢复引擎。
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		cfg:      DefaultConfig(),
		metrics:  newAggregateMetrics(),
		events:   newDispatcher(),
		logger:   slog.Default(),
		observer: xmetrics.NoopObserver{},
		prober:   syntheticProber{},
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	e.cfg.normalize()
	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := xpattern.NewStore(xpattern.WithWindowSize(e.cfg.WindowSize))
	if err != nil {
		return nil, err
	}
	analyzer, err := xpattern.NewAnalyzer(store,
		xpattern.WithMinSamples(e.cfg.MinSamples),
		xpattern.WithPatternThreshold(e.cfg.PatternThreshold),
		xpattern.WithAnalyzerClock(e.now),
	)
	if err != nil {
		return nil, err
	}
	locks, err := xkeylock.New()
	if err != nil {
		return nil, err
	}

	e.store = store
	e.analyzer = analyzer
	e.locks = locks
	e.breakers = xbreaker.NewRegistry(
		xbreaker.WithFailureThreshold(e.cfg.FailureThreshold),
		xbreaker.WithResetTimeout(e.cfg.ResetTimeout),
		xbreaker.WithClock(e.now),
		xbreaker.WithOnTransition(e.onTransition),
	)
	return e, nil
}

// NewFromConfig 用给定配置创建引擎,等价于 New(WithConfig(cfg), opts...)。
func NewFromConfig(cfg Config, opts ...Option) (*Engine, error) {
	return New(append([]Option{WithConfig(cfg)}, opts...)...)
}

// Config 返回引擎生效中的配置。
func (e *Engine) Config() Config {
	return e.cfg
}

// Subscribe 注册事件订阅者,返回取消订阅的函数。
func (e *Engine) Subscribe(l Listener) func() {
	return e.events.subscribe(l)
}

// onTransition 把熔断器状态迁移映射为对外通知。
func (e *Engine) onTransition(tr xbreaker.Transition) {
	snap := tr.Snapshot
	ev := Event{Service: tr.Service, At: tr.At, Breaker: &snap}

	switch tr.Reason {
	case xbreaker.ReasonTripped:
		e.metrics.recordTrip()
		ev.Type = EventCircuitOpened
		e.logger.Warn("circuit breaker opened",
			slog.String("service", tr.Service),
			slog.Int("consecutive_failures", snap.ConsecutiveFailures))
	case xbreaker.ReasonTimeout, xbreaker.ReasonProbe:
		ev.Type = EventServiceRecovering
		e.logger.Info("service recovering",
			slog.String("service", tr.Service),
			slog.String("reason", string(tr.Reason)))
	case xbreaker.ReasonRecovered, xbreaker.ReasonForced:
		ev.Type = EventCircuitReset
		e.logger.Info("circuit breaker reset",
			slog.String("service", tr.Service),
			slog.String("reason", string(tr.Reason)))
	default:
		return
	}
	e.events.publish(ev)
}

// Start 启动三个后台循环(健康探测、熔断器维护、模式分析)。
// 非阻塞;循环作为一个整体由 Stop 一次性停止。
func (e *Engine) Start(ctx context.Context) error {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	if e.group != nil {
		return ErrAlreadyStarted
	}
	g, _ := xrun.NewGroup(ctx, xrun.WithName("recoverkit"), xrun.WithLogger(e.logger))
	g.GoWithName("health-probe", xrun.Ticker(e.cfg.ProbeInterval, false, e.probeTick))
	g.GoWithName("breaker-maintenance", xrun.Ticker(e.cfg.MaintenanceInterval, false, e.maintenanceTick))
	g.GoWithName("pattern-analysis", xrun.Ticker(e.cfg.AnalysisInterval, false, e.analyzeTick))
	e.group = g
	return nil
}

// Stop 停止全部后台循环并等待退出,然后清空内存注册表。
// 顺序固定: 先停循环再清状态,避免循环 tick 引用已清空的注册表。
func (e *Engine) Stop() error {
	e.runMu.Lock()
	g := e.group
	e.group = nil
	e.runMu.Unlock()

	if g == nil {
		return ErrNotStarted
	}
	g.Cancel(nil)
	err := g.Wait()
	e.Reset()
	return err
}

// Reset 清空熔断器、错误窗口、检测结果与聚合指标。
// 不影响运行中的后台循环。
func (e *Engine) Reset() {
	e.breakers.Reset()
	e.store.Reset()
	e.analyzer.Reset()
	e.metrics.reset()
}

// probeTick 对每个熔断打开的服务并发探测,成功则推进到 HALF_OPEN。
func (e *Engine) probeTick(ctx context.Context) error {
	services := e.breakers.OpenServices()
	if len(services) == 0 {
		return nil
	}

	eg, egCtx := errgroup.WithContext(ctx)
	for _, service := range services {
		eg.Go(func() error {
			probeCtx, cancel := context.WithTimeout(egCtx, e.cfg.ProbeTimeout)
			defer cancel()

			if err := e.prober.Probe(probeCtx, service); err != nil {
				e.logger.Debug("health probe failed",
					slog.String("service", service), slog.Any("error", err))
				return nil
			}
			e.breakers.MarkProbeSuccess(service)
			return nil
		})
	}
	// 单次探测失败不终止循环,错误已在探测内消化
	_ = eg.Wait()
	return nil
}

// maintenanceTick 强制复位卡在 OPEN 超过 2×resetTimeout 的熔断器,
// 防止探测饥饿导致服务永久熔断。
func (e *Engine) maintenanceTick(context.Context) error {
	reset := e.breakers.ResetStuck(2 * e.cfg.ResetTimeout)
	if len(reset) > 0 {
		e.logger.Warn("force-reset stuck circuit breakers", slog.Any("services", reset))
	}
	return nil
}

// analyzeTick 运行一轮模式分析并按服务发布检测通知。
func (e *Engine) analyzeTick(context.Context) error {
	detections := e.analyzer.Analyze()
	if len(detections) == 0 {
		return nil
	}

	byService := make(map[string][]xpattern.Detection)
	for _, d := range detections {
		byService[d.Service] = append(byService[d.Service], d)
	}
	for service, patterns := range byService {
		e.logger.Warn("error patterns detected",
			slog.String("service", service), slog.Int("patterns", len(patterns)))
		e.events.publish(Event{
			Type:     EventPatternsDetected,
			Service:  service,
			At:       e.now(),
			Patterns: patterns,
		})
	}
	return nil
}
