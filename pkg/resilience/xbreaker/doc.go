// Package xbreaker 提供按服务维度的熔断器注册表，保护系统免受级联故障影响。
//
// # 设计理念
//
// 熔断器以服务为粒度（而非以端点为粒度）：内存可控，故障域足够粗，
// 调用方也无需预先注册 key——首次引用某服务名时惰性创建，
// 进程生命周期内不销毁（除非整体 Reset）。
//
// 与通用熔断库不同，xbreaker 把"检查"与"记录"拆成两个操作
// （Check / RecordOutcome），并允许外部驱动状态迁移
// （MarkProbeSuccess / ResetStuck）。这是后台健康探测自愈的前提：
// 没有真实流量时，探测成功同样能把 Open 熔断器推入 HalfOpen。
//
// # 熔断器状态
//
//   - StateClosed（关闭）：正常状态，请求通过
//   - StateOpen（打开）：熔断状态，请求被拒绝
//   - StateHalfOpen（半开）：探测状态，请求放行以验证恢复
//
// 状态迁移仅限：Closed→Open（连续失败达到阈值）、
// Open→HalfOpen（resetTimeout 到期或探测成功）、
// HalfOpen→Closed（一次成功）、HalfOpen→Open（一次失败），
// 以及维护路径的强制复位到 Closed。
//
// # 半开并发
//
// HalfOpen 状态不限制放行的试探请求数（上游源实现即如此，
// 作为设计决策保留而非修正）。并发试探的成败按记录顺序生效，
// 后到者可能覆盖先到者的迁移结果。
//
// # 并发模型
//
// 每个熔断器持有自己的互斥锁，同一服务的更新串行化，
// 不同服务互不阻塞。状态迁移回调在锁外触发，
// 回调内可以安全地回调注册表。
package xbreaker
