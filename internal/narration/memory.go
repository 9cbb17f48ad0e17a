package narration

import (
	"context"
	"sync"
)

// MemorySink 在内存里攒一个待发队列，发帖循环优先消费这里的
// 事件，再考虑生成新内容。
type MemorySink struct {
	mu      sync.Mutex
	pending []Event
	limit   int
}

// NewMemorySink 创建内存队列，limit 非正时取默认上限。
func NewMemorySink(limit int) *MemorySink {
	if limit <= 0 {
		limit = 64
	}
	return &MemorySink{limit: limit}
}

// Name 实现 Sink 接口。
func (m *MemorySink) Name() string { return "memory" }

// Publish 入队。超过上限时丢弃最旧的事件，发帖积压不应该无限
// 占用内存。
func (m *MemorySink) Publish(_ context.Context, event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pending = append(m.pending, event)
	if len(m.pending) > m.limit {
		m.pending = m.pending[len(m.pending)-m.limit:]
	}
	return nil
}

// Next 取出最旧的待发事件，队列为空时第二个返回值为假。
func (m *MemorySink) Next() (Event, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.pending) == 0 {
		return Event{}, false
	}
	event := m.pending[0]
	m.pending = m.pending[1:]
	return event, true
}

// Pending 返回当前积压数量。
func (m *MemorySink) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}
