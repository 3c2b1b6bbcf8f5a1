package xpattern

import (
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/omeyang/recoverkit/pkg/resilience/xclassify"
)

const (
	// DefaultWindowSize 默认的单服务错误窗口容量。
	DefaultWindowSize = 50

	// DefaultMaxServices 默认跟踪的服务数量上限。
	DefaultMaxServices = 256

	// maxMessageRunes 记录中错误消息摘录的最大长度。
	maxMessageRunes = 200
)

// Record 是一条错误记录。
type Record struct {
	At       time.Time          `json:"at"`
	Category xclassify.Category `json:"category"`
	Duration time.Duration      `json:"duration,omitzero"`
	Message  string             `json:"message"`
}

// window 是单个服务的固定容量环形窗口。字段由 mu 保护。
type window struct {
	mu      sync.Mutex
	records []Record // 环形缓冲
	head    int      // 下一个写入位置
	full    bool
}

func newWindow(capacity int) *window {
	return &window{records: make([]Record, capacity)}
}

func (w *window) append(rec Record) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.records[w.head] = rec
	w.head = (w.head + 1) % len(w.records)
	if w.head == 0 {
		w.full = true
	}
}

// snapshot 返回按时间顺序（旧到新）的记录副本。
func (w *window) snapshot() []Record {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.full {
		out := make([]Record, w.head)
		copy(out, w.records[:w.head])
		return out
	}
	out := make([]Record, 0, len(w.records))
	out = append(out, w.records[w.head:]...)
	out = append(out, w.records[:w.head]...)
	return out
}

func (w *window) len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.full {
		return len(w.records)
	}
	return w.head
}

// Store 按服务名持有错误窗口。
//
// 设计决策: 服务 → 窗口的映射使用 LRU 而非普通 map。窗口自身有界，
// 但服务名来自调用方、数量无界；LRU 上限保证整体内存可控，
// 代价是极端情况下冷服务的历史会被淘汰——对"近期错误模式"
// 这一用途而言可接受。
type Store struct {
	mu         sync.Mutex
	windows    *lru.Cache[string, *window]
	windowSize int
}

// StoreOption Store 配置选项。
type StoreOption func(*storeOptions)

type storeOptions struct {
	windowSize  int
	maxServices int
}

// WithWindowSize 设置单服务窗口容量。n <= 0 时静默忽略。
func WithWindowSize(n int) StoreOption {
	return func(o *storeOptions) {
		if n > 0 {
			o.windowSize = n
		}
	}
}

// WithMaxServices 设置跟踪的服务数量上限。n <= 0 时静默忽略。
func WithMaxServices(n int) StoreOption {
	return func(o *storeOptions) {
		if n > 0 {
			o.maxServices = n
		}
	}
}

// NewStore 创建错误历史存储。
func NewStore(opts ...StoreOption) (*Store, error) {
	o := storeOptions{
		windowSize:  DefaultWindowSize,
		maxServices: DefaultMaxServices,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	cache, err := lru.New[string, *window](o.maxServices)
	if err != nil {
		return nil, fmt.Errorf("xpattern: create service cache: %w", err)
	}
	return &Store{windows: cache, windowSize: o.windowSize}, nil
}

// Append 为服务追加一条错误记录。消息摘录超长时截断。
func (s *Store) Append(service string, rec Record) {
	if service == "" {
		return
	}
	if runes := []rune(rec.Message); len(runes) > maxMessageRunes {
		rec.Message = string(runes[:maxMessageRunes])
	}

	s.mu.Lock()
	w, ok := s.windows.Get(service)
	if !ok {
		w = newWindow(s.windowSize)
		s.windows.Add(service, w)
	}
	s.mu.Unlock()

	w.append(rec)
}

// Records 返回服务的全部记录（旧到新）。未知服务返回 nil。
func (s *Store) Records(service string) []Record {
	s.mu.Lock()
	w, ok := s.windows.Get(service)
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return w.snapshot()
}

// Recent 返回服务最近的 n 条记录（新到旧）。
func (s *Store) Recent(service string, n int) []Record {
	all := s.Records(service)
	if n <= 0 || len(all) == 0 {
		return nil
	}
	if n > len(all) {
		n = len(all)
	}
	out := make([]Record, 0, n)
	for i := len(all) - 1; i >= len(all)-n; i-- {
		out = append(out, all[i])
	}
	return out
}

// Len 返回服务当前的记录数。
func (s *Store) Len(service string) int {
	s.mu.Lock()
	w, ok := s.windows.Get(service)
	s.mu.Unlock()
	if !ok {
		return 0
	}
	return w.len()
}

// Services 返回当前跟踪的服务名列表。
func (s *Store) Services() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.windows.Keys()
}

// WindowSize 返回窗口容量。
func (s *Store) WindowSize() int {
	return s.windowSize
}

// Reset 清空全部历史。
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.windows.Purge()
}
