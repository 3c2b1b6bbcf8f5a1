package xmetrics

import (
	"context"
	"strconv"
)

// Kind 观测跨度类型。
type Kind int

const (
	// KindInternal 引擎内部操作
	KindInternal Kind = iota
	// KindClient 对下游服务的调用
	KindClient
	// KindServer 服务端处理
	KindServer
)

// String 返回 Kind 的可读表示。
func (k Kind) String() string {
	switch k {
	case KindInternal:
		return "Internal"
	case KindClient:
		return "Client"
	case KindServer:
		return "Server"
	default:
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Status 观测结果状态。
type Status string

const (
	// StatusOK 成功
	StatusOK Status = "ok"
	// StatusError 失败
	StatusError Status = "error"
)

// Attr 观测属性。
type Attr struct {
	Key   string
	Value any
}

// SpanOptions 观测跨度的创建参数。
type SpanOptions struct {
	// Service 目标服务名
	Service string
	// Operation 操作名
	Operation string
	// Kind 跨度类型
	Kind Kind
	// Attrs 附加属性
	Attrs []Attr
}

// Result 观测跨度结束时的结果。
type Result struct {
	// Status 为空时根据 Err 推导
	Status Status
	// Err 操作错误
	Err error
	// Attrs 附加属性
	Attrs []Attr
}

// Span 一次观测跨度。
type Span interface {
	// End 结束观测并记录结果。
	End(result Result)
}

// Observer 统一观测接口。
type Observer interface {
	// Start 开始一次观测跨度。
	Start(ctx context.Context, opts SpanOptions) (context.Context, Span)
}

// NoopObserver 空实现。
type NoopObserver struct{}

// Start 返回 ctx 和空跨度,nil ctx 归一化为 context.Background()。
func (NoopObserver) Start(ctx context.Context, _ SpanOptions) (context.Context, Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	return ctx, NoopSpan{}
}

// NoopSpan 空跨度。
type NoopSpan struct{}

// End 空实现。
func (NoopSpan) End(_ Result) {}

// Start 用 observer 开始观测,保证返回非 nil 的 context 和 Span。
// nil observer 返回空跨度,自定义 Observer 返回的 nil 值会被兜底。
func Start(ctx context.Context, observer Observer, opts SpanOptions) (context.Context, Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	if observer == nil {
		return ctx, NoopSpan{}
	}
	retCtx, span := observer.Start(ctx, opts)
	if retCtx == nil {
		retCtx = ctx
	}
	if span == nil {
		span = NoopSpan{}
	}
	return retCtx, span
}

var (
	_ Observer = NoopObserver{}
	_ Span     = NoopSpan{}
)
