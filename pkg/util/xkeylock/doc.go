// Package xkeylock 提供基于 key 的进程内互斥锁。
//
// recoverkit 用它按服务名串行化熔断器结果记录与错误历史追加，
// 避免同一服务的并发更新互相覆盖；不同服务之间互不阻塞，
// 无需全局锁。
//
// # 特性
//
//   - Context 支持：Acquire 支持超时和取消
//   - Handle 语义：Unlock 幂等（首次返回 nil，后续返回 ErrNotHeld）
//   - 分片 map：默认 32 分片（xxhash 选片），减少管理锁争用
//   - 内存安全：key 条目在无持有者和等待者时立即回收
//   - 关闭语义：Close() 拒绝新请求并唤醒所有等待中的 Acquire
package xkeylock
