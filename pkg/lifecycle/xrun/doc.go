// Package xrun 管理后台循环的并发运行与协调关闭。
//
// Group 基于 errgroup + context 组织多个后台任务:
// 任一任务出错或外部取消时,其余任务都会收到取消信号。
// 恢复引擎的健康探测、模式分析、熔断器维护三个定时循环
// 都通过 Group + Ticker 运行,Stop 时作为整体一次性停止。
//
// Run 在 Group 之上叠加系统信号监听,适合命令行入口:
// 收到 SIGINT/SIGTERM 等信号时取消所有任务并返回 *SignalError。
package xrun
