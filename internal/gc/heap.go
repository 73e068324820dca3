// Package gc implements the GC Scheduler of spec.md §4.E: a
// key-addressable min-heap of node ids ordered by last_accessed_at, and
// the tick-driven collect/skip/force-collect decision procedure.
// Grounded on the container/heap-based PriorityQueue shape of
// core/_echobeats.disabled/scheduler.go, adapted from an event-priority
// queue to a key-addressable eviction queue (it needs Remove/UpdateScore
// by id, which a plain heap.Interface push/pop queue does not expose).
package gc

import (
	"container/heap"

	"github.com/echocog/spiralmem/internal/model"
)

// entryHeap is the container/heap.Interface implementation over node
// entries, ordered by ascending Score (oldest last_accessed_at first).
type entryHeap []*model.GCHeapEntry

func (h entryHeap) Len() int           { return len(h) }
func (h entryHeap) Less(i, j int) bool { return h[i].Score < h[j].Score }
func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].Index = i
	h[j].Index = j
}

func (h *entryHeap) Push(x any) {
	e := x.(*model.GCHeapEntry)
	e.Index = len(*h)
	*h = append(*h, e)
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.Index = -1
	*h = old[:n-1]
	return e
}

// Heap is the key-addressable min-heap the scheduler and the store share:
// the store pushes on every store_memory and updates on every
// retrieve_memory; the scheduler pops on every system_tick.
type Heap struct {
	h      entryHeap
	byNode map[string]*model.GCHeapEntry
}

// NewHeap constructs an empty Heap.
func NewHeap() *Heap {
	return &Heap{byNode: make(map[string]*model.GCHeapEntry)}
}

// Push inserts or, if id is already present, repositions its entry to
// score (the new last_accessed_at, as UnixNano).
func (hp *Heap) Push(id string, score int64) {
	if e, ok := hp.byNode[id]; ok {
		e.Score = score
		heap.Fix(&hp.h, e.Index)
		return
	}
	e := &model.GCHeapEntry{NodeID: id, Score: score}
	hp.byNode[id] = e
	heap.Push(&hp.h, e)
}

// Remove drops id from the heap, if present.
func (hp *Heap) Remove(id string) {
	e, ok := hp.byNode[id]
	if !ok {
		return
	}
	heap.Remove(&hp.h, e.Index)
	delete(hp.byNode, id)
}

// PeekID returns the id with the smallest score (oldest last_accessed_at)
// without removing it.
func (hp *Heap) PeekID() (string, bool) {
	if hp.h.Len() == 0 {
		return "", false
	}
	return hp.h[0].NodeID, true
}

// PopID removes and returns the id with the smallest score.
func (hp *Heap) PopID() (string, bool) {
	if hp.h.Len() == 0 {
		return "", false
	}
	e := heap.Pop(&hp.h).(*model.GCHeapEntry)
	delete(hp.byNode, e.NodeID)
	return e.NodeID, true
}

// Len reports the number of entries currently queued.
func (hp *Heap) Len() int { return hp.h.Len() }
