// recoverctl 是 recoverkit 恢复引擎的命令行驱动工具。
//
// 用法:
//
//	recoverctl [全局选项] <命令> [命令参数]
//
// 全局选项:
//
//	-c, --config   引擎配置文件路径 (YAML/JSON, 键在 recovery 节点下)
//	-s, --service  服务名 (默认: default)
//	-t, --timeout  单次请求超时时间 (默认: 10s)
//
// 命令:
//
//	check <url>    通过引擎执行一次 HTTP GET,输出恢复结果 JSON
//	run <url>      通过引擎压测目标,输出全局健康视图 JSON
//	validate       校验配置文件
//	help           显示帮助信息
//
// 退出码:
//
//	0: 命令执行成功（check 命令: 请求成功或恢复成功）
//	1: 命令执行失败（check 命令: 恢复链也未能兜底）
//	2: 参数错误（缺少 URL、非法配置等）
//
// 示例:
//
//	recoverctl check https://api.example.com/health
//	recoverctl -s billing run https://api.example.com/ping -n 200 --concurrency 8
//	recoverctl run https://api.example.com/ping --fallback '{"cached":true}'
//	recoverctl -c recovery.yaml validate
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v3"
)

// defaultTimeout 单次请求默认超时时间。
const defaultTimeout = 10 * time.Second

// 版本信息（可通过 -ldflags 注入，例如:
//
//	go build -ldflags "-X main.Version=1.0.0 -X main.GitCommit=$(git rev-parse --short HEAD) -X main.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
//
// ）。
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func main() {
	os.Exit(run())
}

// createApp 创建 CLI 应用。
func createApp() *cli.Command {
	return &cli.Command{
		Name:    "recoverctl",
		Usage:   "recoverkit 恢复引擎命令行驱动工具",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "引擎配置文件路径 (YAML/JSON)",
			},
			&cli.StringFlag{
				Name:    "service",
				Aliases: []string{"s"},
				Usage:   "服务名",
				Value:   "default",
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Aliases: []string{"t"},
				Usage:   "单次请求超时时间",
				Value:   defaultTimeout,
			},
		},
		Commands:       createCommands(),
		DefaultCommand: "help",
		Authors: []any{
			"recoverkit Team",
		},
		// 设计决策: 禁止 urfave/cli 直接调用 os.Exit，
		// 由 run() 统一处理退出码映射，确保与文档退出码契约一致。
		ExitErrHandler: func(_ context.Context, _ *cli.Command, err error) {
			// ExitCoder 错误（如未知命令）的消息需在此输出，
			// 替代 HandleExitCoder 的默认 os.Exit 行为。
			if _, ok := err.(cli.ExitCoder); ok {
				fmt.Fprintln(os.Stderr, err)
			}
		},
		Description: `recoverctl 通过 recoverkit 恢复引擎驱动真实 HTTP 请求,
用于在命令行观察熔断、重试与恢复策略链的实际行为。

主要命令:
  check <url>         单次请求,输出恢复结果 JSON
  run <url>           持续压测,输出健康视图 JSON
    --requests, -n    请求总数 (默认: 100)
    --concurrency     并发 worker 数 (默认: 4)
    --fallback        降级响应内容 (请求失败时兜底)
    --events          把引擎事件打印到 stderr
  validate            校验 --config 指定的配置文件`,
	}
}

func run() int {
	app := createApp()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	setupSignalHandler(cancel)

	if err := app.Run(ctx, os.Args); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			return exitErr.code
		}
		var usageErr *usageError
		if errors.As(err, &usageErr) {
			fmt.Fprintf(os.Stderr, "参数错误: %v\n", usageErr)
			return 2
		}
		// CLI 框架产生的参数错误（如未知 flag、未知命令）也返回退出码 2，
		// 与文档契约"参数错误 → 退出码 2"保持一致。
		if isCLIUsageError(err) {
			// ExitErrHandler 或 flag 解析器已向 stderr 输出错误详情，此处仅设置退出码
			return 2
		}
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		return 1
	}

	return 0
}
