// Package xpattern 提供按服务维度的错误历史窗口与错误模式检测。
//
// # 错误历史
//
// 每个服务持有一个固定容量的滑动窗口（默认 50 条），
// 满时淘汰最旧记录。窗口只服务于模式分析与状态查询，不做持久化。
// 服务维度的窗口集合放在 LRU 中（默认上限 256 个服务），
// 防止无界的服务名撑爆内存——长期无错误的服务窗口被自然淘汰。
//
// # 模式检测
//
// Analyzer 对样本量达到 MinSamples 的服务统计各类别的出现频率
// （类别计数 / 观测样本数）。频率超过 PatternThreshold 的类别
// 被报告为检测到的模式，并按频率分级：
//
//	frequency >= 0.8 → critical
//	frequency >= 0.6 → high
//	frequency >= 0.4 → medium
//	其余            → low
//
// 检测结果按服务覆盖存储（新一轮覆盖上一轮），
// 供外部告警消费；检测本身不会改变熔断器状态。
package xpattern
