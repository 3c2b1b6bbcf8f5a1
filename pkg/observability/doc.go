// Package observability 提供可观测性相关的子包。
//
// 子包列表：
//   - xmetrics: 统一观测接口（操作计数、恢复耗时、追踪 span）及 OTel 实现
//
// 设计原则：
//   - 遵循 OpenTelemetry 语义规范
//   - 业务代码只依赖抽象接口，后端可替换为 Noop
package observability
