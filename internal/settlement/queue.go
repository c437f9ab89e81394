package settlement

import (
	"container/heap"

	"settle/internal/core"
)

// claim is a participant's remaining unsettled balance during one run.
type claim struct {
	name   string
	amount core.Cents
}

// claimQueue is a max-heap on claim magnitude with ties broken by name
// ascending. Creditors and debtors each get their own queue.
type claimQueue []claim

func (q claimQueue) Len() int { return len(q) }

func (q claimQueue) Less(i, j int) bool {
	mi, mj := q[i].amount.Abs(), q[j].amount.Abs()
	if mi != mj {
		return mi > mj
	}
	return q[i].name < q[j].name
}

func (q claimQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *claimQueue) Push(x any) { *q = append(*q, x.(claim)) }

func (q *claimQueue) Pop() any {
	old := *q
	n := len(old)
	c := old[n-1]
	*q = old[:n-1]
	return c
}

func newClaimQueue(claims []claim) *claimQueue {
	q := claimQueue(claims)
	heap.Init(&q)
	return &q
}

func (q *claimQueue) push(c claim) { heap.Push(q, c) }

func (q *claimQueue) pop() claim { return heap.Pop(q).(claim) }

func (q *claimQueue) remaining() map[string]core.Cents {
	out := make(map[string]core.Cents, len(*q))
	for _, c := range *q {
		out[c.name] += c.amount
	}
	return out
}
