package xstrategy

import (
	"context"
	"fmt"
	"log/slog"
)

// Chain 按声明顺序尝试恢复策略的执行链。
type Chain struct {
	handlers []Handler
	logger   *slog.Logger
}

// ChainOption 配置 Chain 的可选项。
type ChainOption func(*Chain)

// WithLogger 设置链的日志器,默认丢弃日志。
func WithLogger(logger *slog.Logger) ChainOption {
	return func(c *Chain) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHandler 注册自定义策略执行器,覆盖同名内置实现。
func WithHandler(h Handler) ChainOption {
	return func(c *Chain) {
		if h == nil {
			return
		}
		for i, existing := range c.handlers {
			if existing.Strategy() == h.Strategy() {
				c.handlers[i] = h
				return
			}
		}
		c.handlers = append(c.handlers, h)
	}
}

// NewChain 按给定策略顺序构建恢复链。
// strategies 为空时使用 DefaultRecoveryStrategies,
// 含未知策略时返回 ErrUnknownStrategy。
func NewChain(strategies []Strategy, opts ...ChainOption) (*Chain, error) {
	if len(strategies) == 0 {
		strategies = DefaultRecoveryStrategies()
	}
	c := &Chain{
		handlers: make([]Handler, 0, len(strategies)),
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, s := range strategies {
		if !s.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
		}
		c.handlers = append(c.handlers, handlerFor(s))
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Strategies 返回链中策略的声明顺序。
func (c *Chain) Strategies() []Strategy {
	out := make([]Strategy, len(c.handlers))
	for i, h := range c.handlers {
		out[i] = h.Strategy()
	}
	return out
}

// Attempt 依次尝试每个策略,返回第一个成功产出的结果。
// 全部失败时返回 ErrExhausted,并保留最后一个策略错误供 errors.Is 检查。
func (c *Chain) Attempt(ctx context.Context, req *Request) (*Result, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if req == nil {
		return nil, ErrNilRequest
	}

	var lastErr error
	for _, h := range c.handlers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := h.Attempt(ctx, req)
		if err != nil {
			lastErr = err
			c.logger.Warn("recovery strategy failed",
				slog.String("service", req.Service),
				slog.String("strategy", h.Strategy().String()),
				slog.Any("error", err))
			continue
		}
		if result == nil {
			continue
		}
		result.Strategy = h.Strategy()
		c.logger.Info("recovery strategy succeeded",
			slog.String("service", req.Service),
			slog.String("strategy", h.Strategy().String()))
		return result, nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w: last error: %w", ErrExhausted, lastErr)
	}
	return nil, fmt.Errorf("%w: original error: %w", ErrExhausted, req.Err)
}
