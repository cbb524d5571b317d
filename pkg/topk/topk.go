package topk

import (
	"container/heap"
	"slices"

	"github.com/nemanja-m/protalign/pkg/core"
)

// TopK holds the k highest-ranked candidates offered so far. The zero value
// is not usable; construct with New. TopK is not safe for concurrent use.
type TopK struct {
	k    int
	held lowest
	keys map[string]struct{}
}

func New(k int) *TopK {
	k = max(k, 0)
	return &TopK{
		k:    k,
		held: make(lowest, 0, min(k, 1024)),
		keys: make(map[string]struct{}, min(k, 1024)),
	}
}

// Offer admits c if there is room or if it outranks the lowest held
// candidate, which is then evicted. Offering a value that is already held,
// or one that was displaced earlier, leaves the held set unchanged. Offer
// reports whether c is held afterwards.
func (t *TopK) Offer(c core.Candidate) bool {
	if t.k == 0 {
		return false
	}
	key := c.Key()
	if _, ok := t.keys[key]; ok {
		return true
	}
	if len(t.held) < t.k {
		heap.Push(&t.held, entry{candidate: c, key: key})
		t.keys[key] = struct{}{}
		return true
	}
	if !Outranks(c, t.held[0].candidate) {
		return false
	}
	delete(t.keys, t.held[0].key)
	t.held[0] = entry{candidate: c, key: key}
	heap.Fix(&t.held, 0)
	t.keys[key] = struct{}{}
	return true
}

// OfferAll offers every candidate in cs.
func (t *TopK) OfferAll(cs []core.Candidate) {
	for _, c := range cs {
		t.Offer(c)
	}
}

func (t *TopK) Len() int { return len(t.held) }

func (t *TopK) K() int { return t.k }

// Lowest returns the lowest-ranked held candidate.
func (t *TopK) Lowest() (core.Candidate, bool) {
	if len(t.held) == 0 {
		return core.Candidate{}, false
	}
	return t.held[0].candidate, true
}

// Sorted returns the held candidates in descending rank order.
func (t *TopK) Sorted() []core.Candidate {
	out := make([]core.Candidate, len(t.held))
	for i, e := range t.held {
		out[i] = e.candidate
	}
	slices.SortFunc(out, Compare)
	return out
}

// Merge folds every list through a single TopK(k) and returns the result in
// rank order. The outcome does not depend on how the candidates were
// grouped into lists or on their order.
func Merge(k int, lists ...[]core.Candidate) []core.Candidate {
	t := New(k)
	for _, l := range lists {
		t.OfferAll(l)
	}
	return t.Sorted()
}

type entry struct {
	candidate core.Candidate
	key       string
}

// lowest is a heap with the lowest-ranked candidate at the root.
type lowest []entry

func (h lowest) Len() int { return len(h) }

func (h lowest) Less(i, j int) bool {
	return Outranks(h[j].candidate, h[i].candidate)
}

func (h lowest) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *lowest) Push(x any) { *h = append(*h, x.(entry)) }

func (h *lowest) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = entry{}
	*h = old[:n-1]
	return e
}
