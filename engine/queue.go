package engine

import (
	"container/heap"
	"time"

	"go-lightsynth/note"
)

type queued struct {
	ev  note.Event
	seq uint64 // arrival order, breaks timestamp ties
}

// eventQueue is a min-heap on (Time, seq)
type eventQueue []queued

func (q eventQueue) Len() int { return len(q) }

func (q eventQueue) Less(i, j int) bool {
	if q[i].ev.Time != q[j].ev.Time {
		return q[i].ev.Time < q[j].ev.Time
	}
	return q[i].seq < q[j].seq
}

func (q eventQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *eventQueue) Push(x any) { *q = append(*q, x.(queued)) }

func (q *eventQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

func (q *eventQueue) push(ev note.Event, seq uint64) {
	heap.Push(q, queued{ev: ev, seq: seq})
}

// popUntil removes and returns, in order, every event at or before t
func (q *eventQueue) popUntil(t time.Duration, out []note.Event) []note.Event {
	for q.Len() > 0 && (*q)[0].ev.Time <= t {
		out = append(out, heap.Pop(q).(queued).ev)
	}
	return out
}
