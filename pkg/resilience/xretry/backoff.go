package xretry

import (
	"crypto/rand"
	"encoding/binary"
	"math"
	"time"
)

// ExponentialBackoff 指数退避策略。
// delay = min(maxDelay, baseDelay * factor^(attempt-1))，再叠加 ±jitter 抖动。
type ExponentialBackoff struct {
	baseDelay time.Duration
	maxDelay  time.Duration
	factor    float64
	jitter    float64
}

// ExponentialBackoffOption 指数退避配置选项
type ExponentialBackoffOption func(*ExponentialBackoff)

// WithBaseDelay 设置初始延迟。d <= 0 时静默忽略（保持默认值）。
func WithBaseDelay(d time.Duration) ExponentialBackoffOption {
	return func(b *ExponentialBackoff) {
		if d > 0 {
			b.baseDelay = d
		}
	}
}

// WithMaxDelay 设置最大延迟。
func WithMaxDelay(d time.Duration) ExponentialBackoffOption {
	return func(b *ExponentialBackoff) {
		if d > 0 {
			b.maxDelay = d
		}
	}
}

// WithFactor 设置退避因子（>= 1.0）。
// 传入 1.0 表示固定延迟（无指数增长），小于 1.0 的值被忽略。
func WithFactor(f float64) ExponentialBackoffOption {
	return func(b *ExponentialBackoff) {
		if f >= 1 {
			b.factor = f
		}
	}
}

// WithJitter 设置抖动因子（0-1 之间，越界值被钳制）。
// 抖动用于打散同一时刻失败的大量调用，避免重试风暴。
func WithJitter(j float64) ExponentialBackoffOption {
	return func(b *ExponentialBackoff) {
		if j < 0 {
			j = 0
		} else if j > 1 {
			j = 1
		}
		b.jitter = j
	}
}

// NewExponentialBackoff 创建指数退避策略。
// 默认值：
//   - baseDelay: 1s
//   - maxDelay: 30s
//   - factor: 2.0
//   - jitter: 0.1 (10%)
func NewExponentialBackoff(opts ...ExponentialBackoffOption) *ExponentialBackoff {
	b := &ExponentialBackoff{
		baseDelay: time.Second,
		maxDelay:  30 * time.Second,
		factor:    2.0,
		jitter:    0.1,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.maxDelay < b.baseDelay {
		b.maxDelay = b.baseDelay
	}
	return b
}

func (b *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := float64(b.baseDelay) * math.Pow(b.factor, float64(attempt-1))

	if b.jitter > 0 {
		delay *= 1.0 + (randomFloat64()*2-1)*b.jitter
	}

	// 设计决策: NaN 安全的上限钳制。attempt 极大时 math.Pow 溢出为 +Inf，
	// 与抖动因子相乘可能产生 NaN，而 NaN 的所有比较均为 false 会绕过上限。
	// NaN/负数统一返回 maxDelay（语义为退避已达上限）。
	if math.IsNaN(delay) || delay < 0 || delay >= float64(b.maxDelay) {
		return b.maxDelay
	}
	return time.Duration(delay)
}

// BaseDelay 返回初始延迟。
func (b *ExponentialBackoff) BaseDelay() time.Duration {
	return b.baseDelay
}

// MaxDelay 返回最大延迟。
func (b *ExponentialBackoff) MaxDelay() time.Duration {
	return b.maxDelay
}

// FixedBackoff 固定延迟退避策略。
type FixedBackoff struct {
	delay time.Duration
}

// NewFixedBackoff 创建固定延迟退避策略。负数按 0 处理。
func NewFixedBackoff(delay time.Duration) *FixedBackoff {
	if delay < 0 {
		delay = 0
	}
	return &FixedBackoff{delay: delay}
}

func (b *FixedBackoff) NextDelay(_ int) time.Duration {
	return b.delay
}

// NoBackoff 无延迟退避策略，主要用于测试。
type NoBackoff struct{}

// NewNoBackoff 创建无延迟退避策略。
func NewNoBackoff() *NoBackoff {
	return &NoBackoff{}
}

func (b *NoBackoff) NextDelay(_ int) time.Duration {
	return 0
}

// 确保实现了接口
var (
	_ BackoffPolicy = (*ExponentialBackoff)(nil)
	_ BackoffPolicy = (*FixedBackoff)(nil)
	_ BackoffPolicy = (*NoBackoff)(nil)
)

const (
	floatBits  = 53
	floatScale = 1.0 / (1 << floatBits)
)

// randomFloat64 返回 [0,1) 区间的随机数。
// crypto/rand 读取失败时返回 0（无抖动，安全默认值）。
func randomFloat64() float64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0
	}
	return float64(binary.LittleEndian.Uint64(buf[:])>>11) * floatScale
}
