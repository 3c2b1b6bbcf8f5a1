// Package xclassify 提供错误分类能力，将原始错误映射为规范的错误类别。
//
// # 设计理念
//
// 分类是纯函数：同一个错误永远映射到同一个类别，不访问任何外部状态。
// xrecover 的指标聚合和 xpattern 的模式分析都使用本包的类别，
// 保证两个子系统对类别的认知一致。
//
// # 错误类别
//
//   - CategoryTimeout：超时（timeout/etimedout/deadline）
//   - CategoryNetwork：网络故障（连接拒绝/重置/DNS）
//   - CategoryRateLimit：限流（429/rate limit）
//   - CategoryAuth：认证授权失败（401/403/unauthorized）
//   - CategoryValidation：参数校验失败（400/invalid）
//   - CategoryServerError：服务端错误（5xx）
//   - CategoryUnknown：无法识别
//
// # 分类优先级
//
// 错误链上实现了 [Categorized] 接口的错误优先于关键字匹配。
// 关键字匹配基于小写化后的错误文本，属于启发式判断——
// 因此重试策略不对类别做硬编码，是否可重试由调用方通过
// [MarkNonRetryable] 显式声明（CategoryAuth/CategoryValidation
// 按惯例标记为不可重试）。
package xclassify
