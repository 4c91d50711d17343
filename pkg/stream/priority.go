// Copyright (C) 2024  mvfst authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package stream

import (
	"container/heap"

	"github.com/FFhix10/mvfst/pkg/wire"
)

type pqEntry struct {
	id       wire.StreamID
	priority Priority
	seq      uint64
	index    int
}

type pqHeap []*pqEntry

func (h pqHeap) Len() int { return len(h) }

func (h pqHeap) Less(i, j int) bool {
	if h[i].priority.Level != h[j].priority.Level {
		return h[i].priority.Level < h[j].priority.Level
	}
	return h[i].seq < h[j].seq
}

func (h pqHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *pqHeap) Push(x any) {
	entry := x.(*pqEntry)
	entry.index = len(*h)
	*h = append(*h, entry)
}

func (h *pqHeap) Pop() any {
	old := *h
	n := len(old)
	entry := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return entry
}

// PriorityQueue orders writable streams by (level, arrival). A smaller
// level wins; inside a level the earliest inserted stream wins.
type PriorityQueue struct {
	entries pqHeap
	index   map[wire.StreamID]*pqEntry
	nextSeq uint64
}

// NewPriorityQueue creates an empty queue.
func NewPriorityQueue() *PriorityQueue {
	return &PriorityQueue{
		index: make(map[wire.StreamID]*pqEntry),
	}
}

// Insert adds a stream with its priority. Inserting a present stream
// keeps its position.
func (q *PriorityQueue) Insert(id wire.StreamID, priority Priority) {
	if _, ok := q.index[id]; ok {
		return
	}
	entry := &pqEntry{id: id, priority: priority, seq: q.nextSeq}
	q.nextSeq++
	q.index[id] = entry
	heap.Push(&q.entries, entry)
}

// UpdateIfExist repositions a stream after a priority change.
// Absent streams are left alone.
func (q *PriorityQueue) UpdateIfExist(id wire.StreamID, priority Priority) {
	entry, ok := q.index[id]
	if !ok {
		return
	}
	if entry.priority == priority {
		return
	}
	entry.priority = priority
	heap.Fix(&q.entries, entry.index)
}

// Erase removes a stream from the queue.
func (q *PriorityQueue) Erase(id wire.StreamID) {
	entry, ok := q.index[id]
	if !ok {
		return
	}
	heap.Remove(&q.entries, entry.index)
	delete(q.index, id)
}

// Contains reports queue membership.
func (q *PriorityQueue) Contains(id wire.StreamID) bool {
	_, ok := q.index[id]
	return ok
}

// Peek returns the most urgent stream without removing it.
func (q *PriorityQueue) Peek() (wire.StreamID, bool) {
	if len(q.entries) == 0 {
		return 0, false
	}
	return q.entries[0].id, true
}

// PositionOf returns the heap position of a stream, for tests probing
// that a no-op priority change does not reorder the queue.
func (q *PriorityQueue) PositionOf(id wire.StreamID) (int, bool) {
	entry, ok := q.index[id]
	if !ok {
		return 0, false
	}
	return entry.index, true
}

// Len returns the number of queued streams.
func (q *PriorityQueue) Len() int {
	return len(q.entries)
}
