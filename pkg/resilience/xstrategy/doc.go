// Package xstrategy 提供重试耗尽后的恢复策略链。
//
// 策略以类型化标识符声明(fallback、graceful_degradation、bulkhead 等),
// 在配置阶段解析校验,未知名称直接报错而不是运行时静默跳过。
// Chain 按声明顺序逐个尝试,第一个产出可用结果的策略即为终点。
//
// 设计决策: Handler 的 Attempt 用 (nil, nil) 表示"不适用,跳过",
// 用非 nil error 表示"尝试过但失败"。两者都会让链继续走下一个策略,
// 但只有后者会被记入失败原因。graceful_degradation 永不失败,
// 链中带上它就保证一定有降级结果兜底。
package xstrategy
