// Package xmetrics 提供恢复引擎的统一观测接口(metrics + tracing)。
//
// 业务代码只依赖 Observer/Span/Attr 最小接口,具体实现可替换;
// 默认实现基于 OpenTelemetry。
//
// 统一指标:
//   - recoverkit.operation.total
//   - recoverkit.recovery.duration
//
// 统一属性: service / operation / status,恢复相关调用可附加
// strategy / category / state。
package xmetrics
