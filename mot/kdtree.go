package mot

import (
	"math"
	"sort"
)

// DistanceFunc measures dissimilarity between two boxes. Lower is closer.
type DistanceFunc func(a, b Box) float64

// PlaneBoundFunc returns a lower bound of the distance between query and any box lying on the other side
// of the plane which passes through split orthogonally to axis dim.
// Without a bound the tree never skips subtrees, so search stays exact for any DistanceFunc (e.g. IoU based).
type PlaneBoundFunc func(query, split Box, dim int) float64

// EuclideanPlaneBound is the plane bound for EuclideanDistance
func EuclideanPlaneBound(query, split Box, dim int) float64 {
	return math.Abs(query.Dim(dim) - split.Dim(dim))
}

const noNode = -1

// kdNode is a single slot of the tree arena. Links are arena indices, noNode means "no link".
// Parent link is used only for unlinking leaves on removal.
type kdNode[T comparable] struct {
	item      T
	point     Box
	dimension int
	left      int
	right     int
	parent    int
}

// Neighbor is a single result of nearest neighbour search
type Neighbor[T comparable] struct {
	Item     T
	Distance float64
}

// KDTree is k-d tree over (x, y, w, h) points.
// Coordinates are snapshotted at insertion, so later changes of the items do not corrupt the tree.
// Items must be unique: the tree looks them up by equality.
type KDTree[T comparable] struct {
	nodes  []kdNode[T]
	free   []int
	root   int
	lookup map[T]int
	boxOf  func(T) Box
	metric DistanceFunc
	bound  PlaneBoundFunc
}

type kdEntry[T comparable] struct {
	item  T
	point Box
}

// NewKDTree builds balanced tree via recursive median split. Split dimension cycles through x, y, w, h by depth.
// bound may be nil: see PlaneBoundFunc.
func NewKDTree[T comparable](items []T, boxOf func(T) Box, metric DistanceFunc, bound PlaneBoundFunc) *KDTree[T] {
	tree := &KDTree[T]{
		nodes:  make([]kdNode[T], 0, len(items)),
		root:   noNode,
		lookup: make(map[T]int, len(items)),
		boxOf:  boxOf,
		metric: metric,
		bound:  bound,
	}
	entries := make([]kdEntry[T], len(items))
	for i, item := range items {
		entries[i] = kdEntry[T]{item: item, point: boxOf(item)}
	}
	tree.root = tree.build(entries, 0, noNode)
	return tree
}

func (tree *KDTree[T]) build(entries []kdEntry[T], depth int, parent int) int {
	if len(entries) == 0 {
		return noNode
	}
	dim := depth % boxDims
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].point.Dim(dim) < entries[j].point.Dim(dim)
	})
	median := len(entries) / 2
	idx := tree.alloc(entries[median].item, entries[median].point, dim, parent)
	left := tree.build(entries[:median], depth+1, idx)
	right := tree.build(entries[median+1:], depth+1, idx)
	tree.nodes[idx].left = left
	tree.nodes[idx].right = right
	return idx
}

func (tree *KDTree[T]) alloc(item T, point Box, dimension int, parent int) int {
	node := kdNode[T]{
		item:      item,
		point:     point,
		dimension: dimension,
		left:      noNode,
		right:     noNode,
		parent:    parent,
	}
	var idx int
	if n := len(tree.free); n > 0 {
		idx = tree.free[n-1]
		tree.free = tree.free[:n-1]
		tree.nodes[idx] = node
	} else {
		idx = len(tree.nodes)
		tree.nodes = append(tree.nodes, node)
	}
	tree.lookup[item] = idx
	return idx
}

func (tree *KDTree[T]) release(idx int) {
	tree.nodes[idx] = kdNode[T]{left: noNode, right: noNode, parent: noNode}
	tree.free = append(tree.free, idx)
}

// Len returns number of items in the tree
func (tree *KDTree[T]) Len() int {
	return len(tree.lookup)
}

// Contains checks if item is stored in the tree
func (tree *KDTree[T]) Contains(item T) bool {
	_, ok := tree.lookup[item]
	return ok
}

// Insert adds item as a new leaf. Items already present are ignored.
func (tree *KDTree[T]) Insert(item T) {
	if _, ok := tree.lookup[item]; ok {
		return
	}
	point := tree.boxOf(item)
	if tree.root == noNode {
		tree.root = tree.alloc(item, point, 0, noNode)
		return
	}
	current := tree.root
	for {
		node := tree.nodes[current]
		dim := node.dimension
		goLeft := point.Dim(dim) < node.point.Dim(dim)
		next := node.right
		if goLeft {
			next = node.left
		}
		if next != noNode {
			current = next
			continue
		}
		idx := tree.alloc(item, point, (dim+1)%boxDims, current)
		if goLeft {
			tree.nodes[current].left = idx
		} else {
			tree.nodes[current].right = idx
		}
		return
	}
}

// Remove deletes item from the tree. Returns false if item has not been found.
func (tree *KDTree[T]) Remove(item T) bool {
	idx, ok := tree.lookup[item]
	if !ok {
		return false
	}
	delete(tree.lookup, item)
	tree.removeAt(idx)
	return true
}

func (tree *KDTree[T]) removeAt(idx int) {
	node := tree.nodes[idx]
	if node.left == noNode && node.right == noNode {
		if node.parent == noNode {
			tree.root = noNode
		} else if tree.nodes[node.parent].left == idx {
			tree.nodes[node.parent].left = noNode
		} else {
			tree.nodes[node.parent].right = noNode
		}
		tree.release(idx)
		return
	}
	// Replace with the minimum along node's dimension taken from the right subtree.
	// With empty right subtree take it from the left one and move the left subtree to the right.
	var replacement int
	if node.right != noNode {
		replacement = tree.findMin(node.right, node.dimension)
	} else {
		replacement = tree.findMin(node.left, node.dimension)
	}
	item := tree.nodes[replacement].item
	point := tree.nodes[replacement].point
	tree.removeAt(replacement)

	if node.right == noNode {
		tree.nodes[idx].right = tree.nodes[idx].left
		tree.nodes[idx].left = noNode
	}
	tree.nodes[idx].item = item
	tree.nodes[idx].point = point
	tree.lookup[item] = idx
}

// findMin returns arena index of the node with the smallest coordinate along dim in the subtree
func (tree *KDTree[T]) findMin(idx int, dim int) int {
	if idx == noNode {
		return noNode
	}
	node := tree.nodes[idx]
	if node.dimension == dim {
		if node.left != noNode {
			return tree.findMin(node.left, dim)
		}
		return idx
	}
	best := idx
	if left := tree.findMin(node.left, dim); left != noNode && tree.nodes[left].point.Dim(dim) < tree.nodes[best].point.Dim(dim) {
		best = left
	}
	if right := tree.findMin(node.right, dim); right != noNode && tree.nodes[right].point.Dim(dim) < tree.nodes[best].point.Dim(dim) {
		best = right
	}
	return best
}

// Nearest returns up to k closest items sorted by distance
func (tree *KDTree[T]) Nearest(query Box, k int) []Neighbor[T] {
	return tree.nearest(query, k, math.Inf(1), false)
}

// NearestWithin returns up to k closest items which are strictly closer than maxDistance, sorted by distance
func (tree *KDTree[T]) NearestWithin(query Box, k int, maxDistance float64) []Neighbor[T] {
	return tree.nearest(query, k, maxDistance, true)
}

func (tree *KDTree[T]) nearest(query Box, k int, maxDistance float64, bounded bool) []Neighbor[T] {
	if k <= 0 {
		return nil
	}
	best := make(distanceHeap, 0, k+1)
	if bounded {
		for i := 0; i < k; i++ {
			best.Push(candidate{node: noNode, distance: maxDistance})
		}
	}
	if tree.root != noNode {
		tree.search(tree.root, query, k, &best)
	}
	result := make([]Neighbor[T], 0, best.Len())
	for _, c := range best {
		if c.node == noNode {
			continue
		}
		result = append(result, Neighbor[T]{
			Item:     tree.nodes[c.node].item,
			Distance: c.distance,
		})
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Distance < result[j].Distance
	})
	return result
}

func (tree *KDTree[T]) search(idx int, query Box, k int, best *distanceHeap) {
	node := tree.nodes[idx]
	dim := node.dimension
	ownDistance := tree.metric(query, node.point)

	if node.left == noNode && node.right == noNode {
		if best.Len() < k || ownDistance < best.Peek().distance {
			best.pushBounded(candidate{node: idx, distance: ownDistance}, k)
		}
		return
	}

	var bestChild, otherChild int
	switch {
	case node.right == noNode:
		bestChild, otherChild = node.left, noNode
	case node.left == noNode:
		bestChild, otherChild = node.right, noNode
	case query.Dim(dim) < node.point.Dim(dim):
		bestChild, otherChild = node.left, node.right
	default:
		bestChild, otherChild = node.right, node.left
	}

	tree.search(bestChild, query, k, best)

	if best.Len() < k || ownDistance < best.Peek().distance {
		best.pushBounded(candidate{node: idx, distance: ownDistance}, k)
	}

	if otherChild == noNode {
		return
	}
	if tree.bound == nil || best.Len() < k || tree.bound(query, node.point, dim) < best.Peek().distance {
		tree.search(otherChild, query, k, best)
	}
}
