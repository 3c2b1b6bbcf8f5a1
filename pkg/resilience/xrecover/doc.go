// Package xrecover 是失败恢复引擎的组合层与唯一入口。
//
// Engine 把熔断注册表(xbreaker)、重试执行器(xretry)、恢复策略链
// (xstrategy)、错误分类(xclassify)与模式分析(xpattern)组合成一次
// Do/Execute 调用: 先做熔断检查,放行后带退避重试,重试耗尽再走
// 恢复链,最后把结局记回熔断器、错误窗口与聚合指标。
//
// 三个后台循环独立于调用方流量运行: 健康探测让 OPEN 的熔断器在
// 无真实流量时也能自愈,维护循环强制复位卡死过久的熔断器,
// 模式分析周期性扫描各服务的错误窗口。Start 把三个循环作为一个
// xrun.Group 启动,Stop 先停循环再清空注册表,顺序不可颠倒。
//
// 设计决策: 同一服务的结局记录(熔断器计数 + 错误窗口 + 指标)
// 通过 xkeylock 按服务名串行化,不同服务互不阻塞;操作本身的执行
// 不持有任何锁,阻塞点只有操作自身、退避延迟和恢复操作。
package xrecover
