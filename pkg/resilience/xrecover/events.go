package xrecover

import (
	"sync"
	"time"

	"github.com/omeyang/recoverkit/pkg/resilience/xbreaker"
	"github.com/omeyang/recoverkit/pkg/resilience/xpattern"
)

// EventType 引擎对外发布的通知类型。
type EventType string

const (
	// EventCircuitOpened 熔断器因连续失败打开
	EventCircuitOpened EventType = "circuitBreakerOpened"

	// EventCircuitReset 熔断器恢复关闭(成功试探或强制复位)
	EventCircuitReset EventType = "circuitBreakerReset"

	// EventServiceRecovering 熔断器进入 HALF_OPEN 开始试探
	EventServiceRecovering EventType = "serviceRecovering"

	// EventPatternsDetected 检测到主导性错误模式
	EventPatternsDetected EventType = "errorPatternsDetected"
)

// Event 一次引擎通知,携带服务名与相关状态快照。
type Event struct {
	Type     EventType            `json:"type"`
	Service  string               `json:"service"`
	At       time.Time            `json:"at"`
	Breaker  *xbreaker.Snapshot   `json:"breaker,omitempty"`
	Patterns []xpattern.Detection `json:"patterns,omitempty"`
}

// Listener 事件订阅方。回调按注册顺序同步执行,不应阻塞。
type Listener interface {
	OnEvent(ev Event)
}

// ListenerFunc 把函数适配为 Listener。
type ListenerFunc func(ev Event)

// OnEvent 实现 Listener。
func (f ListenerFunc) OnEvent(ev Event) { f(ev) }

// dispatcher 显式订阅者集合,没有全局监听器注册。
type dispatcher struct {
	mu        sync.RWMutex
	listeners map[int]Listener
	nextID    int
}

func newDispatcher() *dispatcher {
	return &dispatcher{listeners: make(map[int]Listener)}
}

// subscribe 注册订阅者,返回取消函数。
func (d *dispatcher) subscribe(l Listener) func() {
	if l == nil {
		return func() {}
	}
	d.mu.Lock()
	id := d.nextID
	d.nextID++
	d.listeners[id] = l
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		delete(d.listeners, id)
		d.mu.Unlock()
	}
}

func (d *dispatcher) publish(ev Event) {
	d.mu.RLock()
	snapshot := make([]Listener, 0, len(d.listeners))
	for _, l := range d.listeners {
		snapshot = append(snapshot, l)
	}
	d.mu.RUnlock()

	for _, l := range snapshot {
		l.OnEvent(ev)
	}
}

// ChannelListener 把事件写入有界通道的订阅者。
// 通道写满时丢弃最旧事件,慢消费者不会阻塞引擎。
type ChannelListener struct {
	ch chan Event
	mu sync.Mutex
}

// NewChannelListener 创建缓冲为 buffer 的通道订阅者,buffer 最小为 1。
func NewChannelListener(buffer int) *ChannelListener {
	if buffer < 1 {
		buffer = 1
	}
	return &ChannelListener{ch: make(chan Event, buffer)}
}

// OnEvent 实现 Listener。
func (c *ChannelListener) OnEvent(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for {
		select {
		case c.ch <- ev:
			return
		default:
			// 丢最旧的,保最新的
			select {
			case <-c.ch:
			default:
			}
		}
	}
}

// C 返回事件通道。
func (c *ChannelListener) C() <-chan Event {
	return c.ch
}

var (
	_ Listener = ListenerFunc(nil)
	_ Listener = (*ChannelListener)(nil)
)
