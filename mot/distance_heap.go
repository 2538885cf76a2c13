package mot

// candidate is a k-d tree node found during nearest neighbour search.
// Sentinel candidates (node == -1) only carry the distance bound.
type candidate struct {
	node     int
	distance float64
}

// Copied from container/heap - https://golang.org/pkg/container/heap/
// Why make copy? Just want to avoid type conversion.
// Max-heap: root is the worst (farthest) kept candidate.

type distanceHeap []candidate

func (h distanceHeap) Len() int           { return len(h) }
func (h distanceHeap) Less(i, j int) bool { return h[i].distance > h[j].distance }
func (h distanceHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

// Peek returns the farthest kept candidate. Heap must not be empty.
func (h distanceHeap) Peek() candidate {
	return h[0]
}

// Push pushes the element x onto the heap.
// The complexity is O(log n) where n = h.Len().
func (h *distanceHeap) Push(x candidate) {
	*h = append(*h, x)
	h.up(h.Len() - 1)
}

// Pop removes and returns the farthest element from the heap.
// The complexity is O(log n) where n = h.Len().
func (h *distanceHeap) Pop() candidate {
	n := h.Len() - 1
	h.Swap(0, n)
	h.down(0, n)
	heapSize := len(*h)
	lastNode := (*h)[heapSize-1]
	*h = (*h)[0 : heapSize-1]
	return lastNode
}

// pushBounded keeps at most k candidates: pushes x and drops the farthest one on overflow
func (h *distanceHeap) pushBounded(x candidate, k int) {
	h.Push(x)
	if h.Len() > k {
		h.Pop()
	}
}

func (h distanceHeap) up(j int) {
	for {
		i := (j - 1) / 2
		if i == j || !h.Less(j, i) {
			break
		}
		h.Swap(i, j)
		j = i
	}
}

func (h distanceHeap) down(i0, n int) bool {
	i := i0
	for {
		j1 := 2*i + 1
		if j1 >= n || j1 < 0 {
			break
		}
		j := j1
		if j2 := j1 + 1; j2 < n && h.Less(j2, j1) {
			j = j2
		}
		if !h.Less(j, i) {
			break
		}
		h.Swap(i, j)
		i = j
	}
	return i > i0
}
