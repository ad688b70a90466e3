package core

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func ids(msgs []InboundMessage) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func TestHistory_DefaultCapacity(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DefaultHistoryCapacity, NewHistory(0).Capacity())
	assert.Equal(t, DefaultHistoryCapacity, NewHistory(-3).Capacity())
}

func TestHistory_NewestFirstAndEvictsTail(t *testing.T) {
	t.Parallel()

	h := NewHistory(2)
	for _, id := range []string{"A", "B", "C"} {
		h.Push(InboundMessage{ID: id})
	}
	assert.Equal(t, []string{"C", "B"}, ids(h.Snapshot()))
}

func TestHistory_LastMinCountCapacity(t *testing.T) {
	t.Parallel()

	for _, count := range []int{0, 1, 199, 200, 201, 450} {
		h := NewHistory(0)
		for i := 0; i < count; i++ {
			h.Push(InboundMessage{ID: fmt.Sprint(i)})
		}

		want := min(count, DefaultHistoryCapacity)
		got := h.Snapshot()
		assert.Len(t, got, want, "count %d", count)
		for i, m := range got {
			assert.Equal(t, fmt.Sprint(count-1-i), m.ID)
		}
	}
}

func TestHistory_SnapshotIsCopy(t *testing.T) {
	t.Parallel()

	h := NewHistory(3)
	h.Push(InboundMessage{ID: "A"})
	snap := h.Snapshot()
	snap[0].ID = "mutated"

	assert.Equal(t, "A", h.Snapshot()[0].ID)
}
