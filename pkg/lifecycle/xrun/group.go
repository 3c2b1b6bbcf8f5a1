package xrun

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"

	"golang.org/x/sync/errgroup"
)

// Group 基于 errgroup + context 管理多个后台任务。
//
// Go、GoWithName、Cancel 可并发调用,Wait 只应调用一次。
type Group struct {
	eg       *errgroup.Group
	ctx      context.Context
	causeCtx context.Context
	cancel   context.CancelCauseFunc
	logger   *slog.Logger
	name     string
}

// GroupOption 配置 Group 的可选项。
type GroupOption func(*Group)

// WithLogger 设置生命周期日志器,默认 slog.Default()。
func WithLogger(logger *slog.Logger) GroupOption {
	return func(g *Group) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithName 设置 Group 名称,用于日志标识,默认 "xrun"。
func WithName(name string) GroupOption {
	return func(g *Group) {
		if name != "" {
			g.name = name
		}
	}
}

// NewGroup 创建 Group 并返回派生 context。
// 任一任务返回错误时派生 context 被取消。
func NewGroup(ctx context.Context, opts ...GroupOption) (*Group, context.Context) {
	// nil context 归一化,context.WithCancelCause(nil) 会 panic
	if ctx == nil {
		ctx = context.Background()
	}
	causeCtx, cancel := context.WithCancelCause(ctx)
	eg, egCtx := errgroup.WithContext(causeCtx)

	g := &Group{
		eg:       eg,
		ctx:      egCtx,
		causeCtx: causeCtx,
		cancel:   cancel,
		logger:   slog.Default(),
		name:     "xrun",
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g, egCtx
}

// Go 启动一个任务。fn 应监听 ctx.Done() 响应取消。
func (g *Group) Go(fn func(ctx context.Context) error) {
	g.eg.Go(func() error {
		if fn == nil {
			return ErrNilFunc
		}
		return fn(g.ctx)
	})
}

// GoWithName 与 Go 相同,并记录任务的启动与退出日志。
func (g *Group) GoWithName(name string, fn func(ctx context.Context) error) {
	g.eg.Go(func() error {
		if fn == nil {
			return ErrNilFunc
		}
		g.logger.Debug("task starting",
			slog.String("group", g.name), slog.String("task", name))
		err := fn(g.ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			g.logger.Warn("task exited with error",
				slog.String("group", g.name), slog.String("task", name),
				slog.Any("error", err))
		} else {
			g.logger.Debug("task stopped",
				slog.String("group", g.name), slog.String("task", name))
		}
		return err
	})
}

// Cancel 主动取消所有任务,cause 会成为 Wait 的返回值。
// cause 不应包装 context.Canceled,否则会被当作普通取消过滤掉。
func (g *Group) Cancel(cause error) {
	g.cancel(cause)
}

// Context 返回 Group 的派生 context。
func (g *Group) Context() context.Context {
	return g.ctx
}

// Wait 等待所有任务结束,返回第一个非 nil 错误。
//
// 普通的主动取消(Cancel(nil) 或父 context 取消)不算错误,返回 nil;
// 带原因的取消返回该原因,任务内部自行产生的 context.Canceled 原样返回。
func (g *Group) Wait() error {
	defer g.cancel(nil)

	err := g.eg.Wait()

	if errors.Is(err, context.Canceled) {
		if g.causeCtx.Err() == nil {
			// 取消来自任务内部而非 Group,不过滤
			return err
		}
		if cause := context.Cause(g.causeCtx); cause != nil && !errors.Is(cause, context.Canceled) {
			return cause
		}
		return nil
	}
	if err == nil && g.causeCtx.Err() != nil {
		// 任务都返回 nil 时显式 cause 仍不应丢失
		if cause := context.Cause(g.causeCtx); cause != nil && !errors.Is(cause, context.Canceled) {
			return cause
		}
	}
	return err
}

// Run 运行一组任务并监听系统信号。
// 收到信号时取消所有任务,Wait 返回 *SignalError。
func Run(ctx context.Context, tasks ...func(ctx context.Context) error) error {
	g, _ := NewGroup(ctx)

	g.Go(func(ctx context.Context) error {
		testc := testSigChan(ctx)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, DefaultSignals()...)
		defer signal.Stop(sigCh)

		var sig os.Signal
		select {
		case sig = <-testc:
		case sig = <-sigCh:
		case <-ctx.Done():
			return ctx.Err()
		}
		g.logger.Info("received signal",
			slog.String("group", g.name), slog.String("signal", sig.String()))
		g.cancel(&SignalError{Signal: sig})
		return nil
	})

	for _, task := range tasks {
		g.Go(task)
	}
	return g.Wait()
}
