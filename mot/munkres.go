package mot

import (
	"math"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// Assignment pairs a row of cost matrix (track) with a column (detection)
type Assignment struct {
	Track     int
	Detection int
	Cost      float64
}

const (
	markNone uint8 = iota
	markStar
	markPrime
)

type munkres struct {
	n          int
	c          [][]float64
	marks      [][]uint8
	rowCovered []bool
	colCovered []bool
}

// Munkres solves rectangular assignment problem with minimum total cost (Hungarian algorithm).
// Rows = tracks, columns = detections. Matrix is padded with zero-cost dummies to a square one,
// pairs involving dummies are not returned. Result is sorted by row.
func Munkres(cost [][]float64) ([]Assignment, error) {
	rows := len(cost)
	if rows == 0 {
		return []Assignment{}, nil
	}
	cols := len(cost[0])
	for i, row := range cost {
		if len(row) != cols {
			return nil, errors.Wrapf(ErrRaggedMatrix, "row %d has %d columns, expected %d", i, len(row), cols)
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, errors.Wrapf(ErrNonFiniteCost, "cell [%d][%d] = %v", i, j, v)
			}
		}
	}
	if cols == 0 {
		return []Assignment{}, nil
	}

	solver := newMunkres(padSquare(cost, rows, cols))
	solver.solve()

	assignments := make([]Assignment, 0, minInt(rows, cols))
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if solver.marks[i][j] == markStar {
				assignments = append(assignments, Assignment{Track: i, Detection: j, Cost: cost[i][j]})
			}
		}
	}
	sort.Slice(assignments, func(i, j int) bool {
		return assignments[i].Track < assignments[j].Track
	})
	return assignments, nil
}

// padSquare copies cost matrix into square one. Padding is done with 0.0 values.
func padSquare(cost [][]float64, rows, cols int) [][]float64 {
	size := maxInt(rows, cols)
	padded := make([][]float64, size)
	for i := 0; i < size; i++ {
		padded[i] = make([]float64, size)
		if i < rows {
			copy(padded[i], cost[i])
		}
	}
	return padded
}

func newMunkres(c [][]float64) *munkres {
	n := len(c)
	marks := make([][]uint8, n)
	for i := range marks {
		marks[i] = make([]uint8, n)
	}
	return &munkres{
		n:          n,
		c:          c,
		marks:      marks,
		rowCovered: make([]bool, n),
		colCovered: make([]bool, n),
	}
}

func (m *munkres) solve() {
	m.reduceRows()
	m.starZeros()
	for {
		if m.coverStarredColumns() >= m.n {
			return
		}
		for {
			row, col, found := m.findUncoveredZero()
			if !found {
				m.adjust()
				continue
			}
			m.marks[row][col] = markPrime
			if starCol := m.findInRow(row, markStar); starCol != -1 {
				m.rowCovered[row] = true
				m.colCovered[starCol] = false
				continue
			}
			m.augment(row, col)
			break
		}
	}
}

// Step 1: subtract row minimum from every row
func (m *munkres) reduceRows() {
	for _, row := range m.c {
		floats.AddConst(-floats.Min(row), row)
	}
}

// Step 2: star a zero when there is no starred zero in its row and column yet
func (m *munkres) starZeros() {
	for i := 0; i < m.n; i++ {
		for j := 0; j < m.n; j++ {
			if m.c[i][j] == 0 && !m.rowCovered[i] && !m.colCovered[j] {
				m.marks[i][j] = markStar
				m.rowCovered[i] = true
				m.colCovered[j] = true
			}
		}
	}
	m.clearCovers()
}

// Step 3: cover every column containing a starred zero. Returns number of covered columns.
func (m *munkres) coverStarredColumns() int {
	m.clearCovers()
	covered := 0
	for i := 0; i < m.n; i++ {
		for j := 0; j < m.n; j++ {
			if m.marks[i][j] == markStar && !m.colCovered[j] {
				m.colCovered[j] = true
				covered++
			}
		}
	}
	return covered
}

// Step 4 helper
func (m *munkres) findUncoveredZero() (int, int, bool) {
	for i := 0; i < m.n; i++ {
		if m.rowCovered[i] {
			continue
		}
		for j := 0; j < m.n; j++ {
			if !m.colCovered[j] && m.c[i][j] == 0 {
				return i, j, true
			}
		}
	}
	return -1, -1, false
}

// Step 5: build alternating path of primes and stars starting from prime at (row, col),
// unstar stars and star primes along it, then erase all primes
func (m *munkres) augment(row, col int) {
	path := [][2]int{{row, col}}
	for {
		last := path[len(path)-1]
		starRow := m.findInCol(last[1], markStar)
		if starRow == -1 {
			break
		}
		path = append(path, [2]int{starRow, last[1]})
		primeCol := m.findInRow(starRow, markPrime)
		path = append(path, [2]int{starRow, primeCol})
	}
	for _, cell := range path {
		if m.marks[cell[0]][cell[1]] == markStar {
			m.marks[cell[0]][cell[1]] = markNone
		} else {
			m.marks[cell[0]][cell[1]] = markStar
		}
	}
	for i := 0; i < m.n; i++ {
		for j := 0; j < m.n; j++ {
			if m.marks[i][j] == markPrime {
				m.marks[i][j] = markNone
			}
		}
	}
	m.clearCovers()
}

// Step 6: add smallest uncovered value to every covered row and subtract it from every uncovered column
func (m *munkres) adjust() {
	minValue := math.Inf(1)
	for i := 0; i < m.n; i++ {
		if m.rowCovered[i] {
			continue
		}
		for j := 0; j < m.n; j++ {
			if !m.colCovered[j] && m.c[i][j] < minValue {
				minValue = m.c[i][j]
			}
		}
	}
	for i := 0; i < m.n; i++ {
		for j := 0; j < m.n; j++ {
			if m.rowCovered[i] {
				m.c[i][j] += minValue
			}
			if !m.colCovered[j] {
				m.c[i][j] -= minValue
			}
		}
	}
}

func (m *munkres) findInRow(row int, mark uint8) int {
	for j := 0; j < m.n; j++ {
		if m.marks[row][j] == mark {
			return j
		}
	}
	return -1
}

func (m *munkres) findInCol(col int, mark uint8) int {
	for i := 0; i < m.n; i++ {
		if m.marks[i][col] == mark {
			return i
		}
	}
	return -1
}

func (m *munkres) clearCovers() {
	for i := 0; i < m.n; i++ {
		m.rowCovered[i] = false
		m.colCovered[i] = false
	}
}
