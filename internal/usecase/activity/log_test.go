package activity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clawmobile/internal/domain"
	"clawmobile/internal/usecase/handlers"
)

func ev(ts int64, typ domain.FeedEventType) domain.FeedEvent {
	return domain.FeedEvent{Type: typ, Timestamp: ts}
}

func timestamps(evs []domain.FeedEvent) []int64 {
	out := make([]int64, len(evs))
	for i, e := range evs {
		out[i] = e.Timestamp
	}
	return out
}

func TestLog_OrderAndNewestFirst(t *testing.T) {
	l := NewLog(0)
	l.Append(ev(1, domain.FeedAgentStart))
	l.Append(ev(2, domain.FeedToolCall))
	l.Append(ev(3, domain.FeedAgentEnd))

	assert.Equal(t, []int64{1, 2, 3}, timestamps(l.Events()))
	assert.Equal(t, []int64{3, 2, 1}, timestamps(l.Newest()))
}

func TestLog_EvictsOldestBeyondCapacity(t *testing.T) {
	l := NewLog(3)
	for i := int64(1); i <= 5; i++ {
		l.Append(ev(i, domain.FeedLLMRequest))
	}
	assert.Equal(t, 3, l.Len())
	assert.Equal(t, []int64{3, 4, 5}, timestamps(l.Events()))
}

func TestLog_DefaultCapacity(t *testing.T) {
	l := NewLog(-1)
	for i := int64(0); i < DefaultCapacity+20; i++ {
		l.Append(ev(i, domain.FeedLLMRequest))
	}
	require.Equal(t, DefaultCapacity, l.Len())
	assert.Equal(t, int64(DefaultCapacity+19), l.Newest()[0].Timestamp)
}

func TestLog_CountsAndClear(t *testing.T) {
	l := NewLog(10)
	l.Append(ev(1, domain.FeedToolCall))
	l.Append(ev(2, domain.FeedToolCall))
	l.Append(ev(3, domain.FeedError))

	assert.Equal(t, map[domain.FeedEventType]int{domain.FeedToolCall: 2, domain.FeedError: 1}, l.Counts())

	l.Clear()
	assert.Zero(t, l.Len())
	assert.Empty(t, l.Newest())
}

type eventSource struct {
	reg handlers.Registry[domain.FeedEvent]
}

func (s *eventSource) OnEvent(h func(domain.FeedEvent)) func() { return s.reg.Register(h) }

func TestLog_Attach(t *testing.T) {
	src := &eventSource{}
	l := NewLog(10)

	detach := l.Attach(src)
	src.reg.Emit(ev(1, domain.FeedAgentStart))
	detach()
	src.reg.Emit(ev(2, domain.FeedAgentEnd))

	assert.Equal(t, []int64{1}, timestamps(l.Events()))
}
