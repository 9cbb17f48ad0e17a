// Package narration 把编排器的每一次决策转成可读的叙事事件，
// 广播给外部的发帖与审计消费方。
package narration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind 标记事件类型。
type Kind string

const (
	KindTrade      Kind = "trade"
	KindSkip       Kind = "skip"
	KindHold       Kind = "hold"
	KindFailure    Kind = "failure"
	KindCommentary Kind = "commentary"
)

// Event 描述一次决策或交易的结果叙事。
type Event struct {
	ID       string            `json:"id"`
	Kind     Kind              `json:"kind"`
	Token    string            `json:"token,omitempty"`
	Symbol   string            `json:"symbol,omitempty"`
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Time     time.Time         `json:"time"`
}

// NewEvent 创建一条带标识与时间戳的事件。
func NewEvent(kind Kind, title, body string) Event {
	return Event{
		ID:    uuid.NewString(),
		Kind:  kind,
		Title: title,
		Body:  body,
		Time:  time.Now().UTC(),
	}
}

// Sink 负责把事件送往一个外部目的地。
type Sink interface {
	Name() string
	Publish(ctx context.Context, event Event) error
}

// Dispatcher 将事件广播给多个目的地。
type Dispatcher interface {
	Publish(ctx context.Context, event Event) error
}

// FanoutDispatcher 把事件投递到所有注册的目的地，单个目的地的
// 失败不会阻断其余投递。
type FanoutDispatcher struct {
	sinks []Sink
}

// NewFanout 创建广播分发器，nil 目的地会被忽略。
func NewFanout(sinks ...Sink) *FanoutDispatcher {
	kept := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &FanoutDispatcher{sinks: kept}
}

// Publish 广播事件并合并各目的地的错误。
func (d *FanoutDispatcher) Publish(ctx context.Context, event Event) error {
	if d == nil {
		return nil
	}
	var errs []error
	for _, sink := range d.sinks {
		if err := sink.Publish(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("sink %s: %w", sink.Name(), err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
