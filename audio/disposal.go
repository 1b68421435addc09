package audio

import "container/heap"

// disposalQueue is a min-heap of releasing voices ordered by teardown time
type disposalQueue []*Voice

func (q disposalQueue) Len() int { return len(q) }

func (q disposalQueue) Less(i, j int) bool { return q[i].disposeAt < q[j].disposeAt }

func (q disposalQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *disposalQueue) Push(x any) { *q = append(*q, x.(*Voice)) }

func (q *disposalQueue) Pop() any {
	old := *q
	n := len(old)
	v := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return v
}

// schedule queues a releasing voice
func (q *disposalQueue) schedule(v *Voice) {
	heap.Push(q, v)
}

// due pops every voice whose teardown time is at or before now
func (q *disposalQueue) due(now float64) []*Voice {
	var out []*Voice
	for q.Len() > 0 && (*q)[0].disposeAt <= now {
		out = append(out, heap.Pop(q).(*Voice))
	}
	return out
}

// drain pops every queued voice regardless of time
func (q *disposalQueue) drain() []*Voice {
	out := []*Voice(*q)
	*q = nil
	return out
}
