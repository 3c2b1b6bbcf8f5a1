package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/omeyang/recoverkit/pkg/resilience/xrecover"
)

// exitError 表示需要非零退出码但已完成输出的场景。
// 命令内部已完成所有输出，main 只需设置退出码。
type exitError struct {
	code int
}

func (e *exitError) Error() string { return "" }

// usageError 表示参数错误，映射到退出码 2。
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

// isCLIUsageError 识别 urfave/cli 框架自身产生的参数类错误。
func isCLIUsageError(err error) bool {
	if _, ok := err.(cli.ExitCoder); ok {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "flag provided but not defined") ||
		strings.Contains(msg, "invalid value") ||
		strings.Contains(msg, "No help topic for")
}

// 创建所有子命令。
func createCommands() []*cli.Command {
	return []*cli.Command{
		createCheckCommand(),
		createRunCommand(),
		createValidateCommand(),
	}
}

// createCheckCommand 创建 check 子命令。
func createCheckCommand() *cli.Command {
	return &cli.Command{
		Name:      "check",
		Aliases:   []string{"c"},
		Usage:     "通过引擎执行一次 HTTP GET,输出恢复结果 JSON",
		ArgsUsage: "<url>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "fallback",
				Usage: "降级响应内容 (请求失败时兜底)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			target, err := requireURL(cmd)
			if err != nil {
				return err
			}
			return cmdCheck(ctx, checkOptions{
				url:        target,
				service:    cmd.String("service"),
				timeout:    cmd.Duration("timeout"),
				configPath: cmd.String("config"),
				fallback:   cmd.String("fallback"),
				out:        os.Stdout,
			})
		},
	}
}

// createRunCommand 创建 run 子命令。
func createRunCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Aliases:   []string{"r"},
		Usage:     "通过引擎压测目标,输出全局健康视图 JSON",
		ArgsUsage: "<url>",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "requests",
				Aliases: []string{"n"},
				Usage:   "请求总数",
				Value:   100,
			},
			&cli.IntFlag{
				Name:  "concurrency",
				Usage: "并发 worker 数",
				Value: 4,
			},
			&cli.StringFlag{
				Name:  "fallback",
				Usage: "降级响应内容 (请求失败时兜底)",
			},
			&cli.BoolFlag{
				Name:  "events",
				Usage: "把引擎事件打印到 stderr",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			target, err := requireURL(cmd)
			if err != nil {
				return err
			}
			requests := cmd.Int("requests")
			concurrency := cmd.Int("concurrency")
			if requests < 1 || concurrency < 1 {
				return &usageError{msg: "--requests 与 --concurrency 必须为正数"}
			}
			return cmdRun(ctx, runOptions{
				url:         target,
				service:     cmd.String("service"),
				timeout:     cmd.Duration("timeout"),
				configPath:  cmd.String("config"),
				fallback:    cmd.String("fallback"),
				requests:    requests,
				concurrency: concurrency,
				events:      cmd.Bool("events"),
				out:         os.Stdout,
				errOut:      os.Stderr,
			})
		},
	}
}

// createValidateCommand 创建 validate 子命令。
func createValidateCommand() *cli.Command {
	return &cli.Command{
		Name:    "validate",
		Aliases: []string{"v"},
		Usage:   "校验 --config 指定的配置文件",
		Action: func(_ context.Context, cmd *cli.Command) error {
			path := cmd.String("config")
			if path == "" {
				return &usageError{msg: "validate 命令需要 --config 指定配置文件"}
			}
			cfg, err := xrecover.LoadConfig(path)
			if err != nil {
				return &usageError{msg: fmt.Sprintf("配置非法: %v", err)}
			}
			return json.NewEncoder(os.Stdout).Encode(cfg)
		},
	}
}

// requireURL 取第一个位置参数并校验为 http/https URL。
func requireURL(cmd *cli.Command) (string, error) {
	return parseTargetURL(cmd.Args().First())
}

// parseTargetURL 校验目标 URL,只接受 http/https。
func parseTargetURL(raw string) (string, error) {
	if raw == "" {
		return "", &usageError{msg: "需要指定目标 URL"}
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", &usageError{msg: fmt.Sprintf("非法 URL: %q", raw)}
	}
	return raw, nil
}

// buildEngine 按 --config 构建引擎,未指定时使用默认配置。
func buildEngine(configPath string) (*xrecover.Engine, error) {
	if configPath == "" {
		return xrecover.New()
	}
	cfg, err := xrecover.LoadConfig(configPath)
	if err != nil {
		return nil, &usageError{msg: fmt.Sprintf("配置非法: %v", err)}
	}
	return xrecover.NewFromConfig(cfg)
}

// httpOperation 把一次 HTTP GET 包装为引擎可执行的操作。
// 5xx 响应视为服务端失败,交给恢复链处理。
func httpOperation(client *http.Client, target string) xrecover.Operation {
	return func(ctx context.Context) (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, fmt.Errorf("server error: %s", resp.Status)
		}
		return strings.TrimSpace(string(body)), nil
	}
}

type checkOptions struct {
	url        string
	service    string
	timeout    time.Duration
	configPath string
	fallback   string
	out        io.Writer
}

// cmdCheck 单次请求。恢复链也未能兜底时返回退出码 1。
func cmdCheck(ctx context.Context, opts checkOptions) error {
	engine, err := buildEngine(opts.configPath)
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: opts.timeout}
	outcome := engine.Do(ctx, httpOperation(client, opts.url), execOptions(opts.service, opts.fallback))

	enc := json.NewEncoder(opts.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(outcome); err != nil {
		return err
	}
	if !outcome.Success {
		return &exitError{code: 1}
	}
	return nil
}

type runOptions struct {
	url         string
	service     string
	timeout     time.Duration
	configPath  string
	fallback    string
	requests    int
	concurrency int
	events      bool
	out         io.Writer
	errOut      io.Writer
}

// runReport run 命令的最终输出。
type runReport struct {
	Target    string                 `json:"target"`
	Service   string                 `json:"service"`
	Requests  int                    `json:"requests"`
	Succeeded int                    `json:"succeeded"`
	Recovered int                    `json:"recovered"`
	Failed    int                    `json:"failed"`
	Elapsed   string                 `json:"elapsed"`
	Health    xrecover.HealthStatus  `json:"health"`
	Status    xrecover.ServiceStatus `json:"service_status"`
}

// cmdRun 并发压测目标,结束后输出健康视图。
// Ctrl+C 取消后仍输出已完成部分的统计。
func cmdRun(ctx context.Context, opts runOptions) error {
	engine, err := buildEngine(opts.configPath)
	if err != nil {
		return err
	}

	if opts.events {
		listener := xrecover.ListenerFunc(func(ev xrecover.Event) {
			data, _ := json.Marshal(ev)
			fmt.Fprintln(opts.errOut, string(data))
		})
		defer engine.Subscribe(listener)()
	}

	if err := engine.Start(ctx); err != nil {
		return err
	}
	defer func() {
		// Stop 会清空统计,报告已在此之前生成
		_ = engine.Stop()
	}()

	client := &http.Client{Timeout: opts.timeout}
	op := httpOperation(client, opts.url)
	execOpts := execOptions(opts.service, opts.fallback)

	jobs := make(chan struct{})
	go func() {
		defer close(jobs)
		for i := 0; i < opts.requests; i++ {
			select {
			case jobs <- struct{}{}:
			case <-ctx.Done():
				return
			}
		}
	}()

	var (
		mu        sync.Mutex
		succeeded int
		recovered int
		failed    int
	)
	start := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < opts.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range jobs {
				outcome := engine.Do(ctx, op, execOpts)
				mu.Lock()
				switch {
				case outcome.Success && outcome.RecoveryUsed:
					recovered++
				case outcome.Success:
					succeeded++
				default:
					failed++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	report := runReport{
		Target:    opts.url,
		Service:   opts.service,
		Requests:  succeeded + recovered + failed,
		Succeeded: succeeded,
		Recovered: recovered,
		Failed:    failed,
		Elapsed:   time.Since(start).Round(time.Millisecond).String(),
		Health:    engine.HealthStatus(),
		Status:    engine.ServiceStatus(opts.service),
	}

	enc := json.NewEncoder(opts.out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// execOptions 组装每次请求的执行选项。
func execOptions(service, fallback string) xrecover.ExecOptions {
	opts := xrecover.ExecOptions{Service: service}
	if fallback != "" {
		opts.Fallback = func(context.Context) (any, error) {
			return fallback, nil
		}
	}
	return opts
}

// setupSignalHandler 设置信号处理。
// 设计决策: 第一次信号优雅取消，第二次信号强制退出（退出码 130 = 128 + SIGINT）。
// 当命令阻塞时，用户可通过再次 Ctrl+C 强制退出。
func setupSignalHandler(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel() // 第一次信号: 优雅取消

		<-sigCh
		signal.Stop(sigCh) // 回收订阅
		os.Exit(130)       // 第二次信号: 强制退出
	}()
}
