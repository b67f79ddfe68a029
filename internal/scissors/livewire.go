package scissors

import (
	"container/heap"
	"image"
	"math"
)

// Map is the shortest path tree rooted at a seed pixel.
type Map struct {
	width  int
	height int
	seed   int
	pred   []int32
	dist   []float64
}

// BuildMap runs Dijkstra from seed over the whole feature grid. seed must
// lie inside the grid.
func BuildMap(f *Features, seed image.Point) *Map {
	n := f.Width * f.Height
	m := &Map{
		width:  f.Width,
		height: f.Height,
		seed:   seed.Y*f.Width + seed.X,
		pred:   make([]int32, n),
		dist:   make([]float64, n),
	}
	for i := range m.dist {
		m.dist[i] = math.Inf(1)
		m.pred[i] = -1
	}
	done := make([]bool, n)

	dx := [8]int{-1, 0, 1, -1, 1, -1, 0, 1}
	dy := [8]int{-1, -1, -1, 0, 0, 1, 1, 1}

	pq := &costQueue{}
	m.dist[m.seed] = 0
	heap.Push(pq, costItem{index: int32(m.seed), cost: 0})

	for pq.Len() > 0 {
		item := heap.Pop(pq).(costItem)
		p := int(item.index)
		if done[p] {
			continue
		}
		done[p] = true

		px, py := p%f.Width, p/f.Width
		for d := 0; d < 8; d++ {
			nx, ny := px+dx[d], py+dy[d]
			if nx < 0 || nx >= f.Width || ny < 0 || ny >= f.Height {
				continue
			}
			q := ny*f.Width + nx
			if done[q] {
				continue
			}
			c := m.dist[p] + f.linkCost(p, q, dx[d], dy[d])
			if c < m.dist[q] {
				m.dist[q] = c
				m.pred[q] = int32(p)
				heap.Push(pq, costItem{index: int32(q), cost: c})
			}
		}
	}
	return m
}

// Seed returns the root of the tree.
func (m *Map) Seed() image.Point {
	return image.Pt(m.seed%m.width, m.seed/m.width)
}

// Cost returns the accumulated path cost from the seed to target.
func (m *Map) Cost(target image.Point) float64 {
	if !m.inside(target) {
		return math.Inf(1)
	}
	return m.dist[target.Y*m.width+target.X]
}

// Path returns the optimal path from the seed to target, both included. It
// returns nil for targets outside the grid.
func (m *Map) Path(target image.Point) []image.Point {
	if !m.inside(target) {
		return nil
	}
	var path []image.Point
	for i := target.Y*m.width + target.X; i >= 0; i = int(m.pred[i]) {
		path = append(path, image.Pt(i%m.width, i/m.width))
		if i == m.seed {
			break
		}
	}
	if last := path[len(path)-1]; last != m.Seed() {
		return nil
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

func (m *Map) inside(p image.Point) bool {
	return p.X >= 0 && p.X < m.width && p.Y >= 0 && p.Y < m.height
}

type costItem struct {
	index int32
	cost  float64
}

// costQueue implements heap.Interface for the Dijkstra frontier.
type costQueue []costItem

func (pq costQueue) Len() int           { return len(pq) }
func (pq costQueue) Less(i, j int) bool { return pq[i].cost < pq[j].cost }
func (pq costQueue) Swap(i, j int)      { pq[i], pq[j] = pq[j], pq[i] }

func (pq *costQueue) Push(x interface{}) {
	*pq = append(*pq, x.(costItem))
}

func (pq *costQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}
