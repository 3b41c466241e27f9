package service

import (
	"sync"

	"colorix-agent-go/internal/model"
)

// EscalationEvent 是推送给员工实时通道的接管事件。
type EscalationEvent struct {
	ID             uint            `json:"id"`
	SessionID      string          `json:"sessionId"`
	CustomerNumber string          `json:"customerNumber"`
	LastUserMsg    string          `json:"lastUserMsg"`
	CreatedAt      model.LocalTime `json:"createdAt"`
}

// EscalationFeed 是进程内的接管事件广播器，
// 员工控制台的 WebSocket 连接在这里订阅新事件。
type EscalationFeed struct {
	mu   sync.Mutex
	subs map[chan EscalationEvent]struct{}
}

// NewEscalationFeed 创建一个新的广播器。
func NewEscalationFeed() *EscalationFeed {
	return &EscalationFeed{subs: make(map[chan EscalationEvent]struct{})}
}

// Subscribe 返回一个接收后续事件的通道。
func (f *EscalationFeed) Subscribe() chan EscalationEvent {
	ch := make(chan EscalationEvent, 16)
	f.mu.Lock()
	f.subs[ch] = struct{}{}
	f.mu.Unlock()
	return ch
}

// Unsubscribe 移除订阅并关闭通道。
func (f *EscalationFeed) Unsubscribe(ch chan EscalationEvent) {
	f.mu.Lock()
	if _, ok := f.subs[ch]; ok {
		delete(f.subs, ch)
		close(ch)
	}
	f.mu.Unlock()
}

// Publish 将事件推送给所有订阅者。慢消费者的事件被丢弃而不是阻塞发布方，
// 实时通道只是通知手段，完整记录在数据库里。
func (f *EscalationFeed) Publish(evt EscalationEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}
