package pixel

// VisitMap records which pixels a single segmentation pass has already
// touched. Marks only ever go from unvisited to visited.
type VisitMap struct {
	width   int
	visited []byte
}

// NewVisitMap allocates an all-unvisited map for a width×height image.
func NewVisitMap(width, height int) *VisitMap {
	return &VisitMap{width: width, visited: make([]byte, width*height)}
}

// Visited reports whether (x, y) has been marked.
func (m *VisitMap) Visited(x, y int) bool {
	return m.visited[y*m.width+x] != 0
}

// Mark flags (x, y) as visited.
func (m *VisitMap) Mark(x, y int) {
	m.visited[y*m.width+x] = 1
}
