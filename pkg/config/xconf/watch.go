package xconf

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadFunc 重载回调。err 为 nil 表示新配置已生效,
// 否则 Loader 仍持有旧快照。
type ReloadFunc func(l *Loader, err error)

// Watcher 监视配置文件并自动重载。
type Watcher struct {
	loader   *Loader
	fs       *fsnotify.Watcher
	onReload ReloadFunc
	debounce time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	running bool
	timer   *time.Timer
}

// WatchOption 配置 Watcher 的可选项。
type WatchOption func(*Watcher)

// WithDebounce 设置防抖时长,窗口内的多次变更只触发一次重载。
// 默认 100ms。
func WithDebounce(d time.Duration) WatchOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// Watch 为文件来源的 Loader 创建监视器。
// 返回后需调用 Start 或 StartAsync 开始监视。
func Watch(l *Loader, onReload ReloadFunc, opts ...WatchOption) (*Watcher, error) {
	if l == nil {
		return nil, errors.New("xconf: nil loader")
	}
	if l.fromBytes || l.path == "" {
		return nil, ErrBytesSource
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("xconf: failed to create watcher: %w", err)
	}
	// 监视目录而非文件本身,编辑器原子写入(写临时文件后 rename)
	// 会让文件级监视丢失事件
	dir := filepath.Dir(l.path)
	if err := fs.Add(dir); err != nil {
		closeErr := fs.Close()
		return nil, errors.Join(
			fmt.Errorf("xconf: failed to watch directory %s: %w", dir, err),
			closeErr,
		)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		loader:   l,
		fs:       fs,
		onReload: onReload,
		debounce: 100 * time.Millisecond,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start 启动监视,阻塞直到 Stop 被调用。
func (w *Watcher) Start() {
	if !w.markRunning() {
		return
	}
	w.run()
}

// StartAsync 在后台 goroutine 中启动监视,立即返回。
func (w *Watcher) StartAsync() {
	if !w.markRunning() {
		return
	}
	go w.run()
}

func (w *Watcher) markRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return false
	}
	w.running = true
	return true
}

// Stop 停止监视。返回后不再触发新的回调。
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.cancel()
	w.running = false
	return w.fs.Close()
}

func (w *Watcher) run() {
	filename := filepath.Base(w.loader.path)
	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handleEvent(event, filename)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			if w.onReload != nil {
				w.onReload(w.loader, fmt.Errorf("xconf: watch error: %w", err))
			}
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event, filename string) {
	if filepath.Base(event.Name) != filename {
		return
	}
	// Write 直接修改、Create 部分编辑器新建、Rename 原子写入
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case <-w.ctx.Done():
			return
		default:
		}
		err := w.loader.Reload()
		if w.onReload != nil {
			w.onReload(w.loader, err)
		}
	})
}
