// Package xconf 提供恢复引擎的配置加载与热重载,基于 koanf 实现。
//
// 支持 YAML 与 JSON 两种格式,按文件扩展名自动识别。
// Loader 持有当前配置快照,Reload 通过校验后原子替换,
// 校验失败时保留旧快照 —— 运行中的引擎不会被一份坏配置打断。
//
// 设计决策: 校验钩子(WithValidator)在 Loader 层执行而不是留给调用方,
// 否则 fsnotify 触发的自动重载没有机会在替换前拒绝非法配置。
//
// 文件监视基于 fsnotify,监视目录而非文件本身以兼容
// vim/emacs 的原子写入(写临时文件后 rename),并内置防抖。
package xconf
