// Package heap ranks values without sorting everything.
package heap

// Heap is a binary min-heap ordered by less.
type Heap[T any] struct {
	data []T
	less func(a, b T) bool
}

func New[T any](less func(a, b T) bool) *Heap[T] {
	return &Heap[T]{
		data: []T{},
		less: less,
	}
}

func (h *Heap[T]) Push(value T) {
	h.data = append(h.data, value)
	h.bubbleUp(len(h.data) - 1)
}

func (h *Heap[T]) Pop() (T, bool) {
	if len(h.data) == 0 {
		var zero T
		return zero, false
	}
	top := h.data[0]
	h.data[0] = h.data[len(h.data)-1]
	h.data = h.data[:len(h.data)-1]
	h.bubbleDown(0)
	return top, true
}

func (h *Heap[T]) Peek() (T, bool) {
	if len(h.data) == 0 {
		var zero T
		return zero, false
	}
	return h.data[0], true
}

// replaceTop swaps the smallest value for value.
func (h *Heap[T]) replaceTop(value T) {
	h.data[0] = value
	h.bubbleDown(0)
}

func (h *Heap[T]) bubbleUp(index int) {
	for index > 0 {
		parent := (index - 1) / 2
		if !h.less(h.data[index], h.data[parent]) {
			break
		}
		h.data[index], h.data[parent] = h.data[parent], h.data[index]
		index = parent
	}
}

func (h *Heap[T]) bubbleDown(index int) {
	size := len(h.data)
	for {
		left := 2*index + 1
		right := 2*index + 2
		smallest := index

		if left < size && h.less(h.data[left], h.data[smallest]) {
			smallest = left
		}
		if right < size && h.less(h.data[right], h.data[smallest]) {
			smallest = right
		}
		if smallest == index {
			break
		}

		h.data[index], h.data[smallest] = h.data[smallest], h.data[index]
		index = smallest
	}
}

func (h *Heap[T]) Size() int {
	return len(h.data)
}

// Top keeps the n greatest values offered to it. With n <= 0 it keeps everything.
type Top[T any] struct {
	heap *Heap[T]
	n    int
}

func NewTop[T any](n int, less func(a, b T) bool) *Top[T] {
	return &Top[T]{
		heap: New(less),
		n:    n,
	}
}

func (t *Top[T]) Offer(value T) {
	if t.n <= 0 || t.heap.Size() < t.n {
		t.heap.Push(value)
		return
	}
	if smallest, _ := t.heap.Peek(); t.heap.less(smallest, value) {
		t.heap.replaceTop(value)
	}
}

// Sorted drains the kept values, greatest first.
func (t *Top[T]) Sorted() []T {
	result := make([]T, t.heap.Size())
	for i := len(result) - 1; i >= 0; i-- {
		result[i], _ = t.heap.Pop()
	}
	return result
}
