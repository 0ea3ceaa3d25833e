package twin

import (
	"math"
	"math/rand/v2"
)

// Point is a canvas coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

const (
	relaxIterations = 24
	springBack      = 0.1
	jitterFraction  = 0.15
)

// Layout places n racks on a perRow-wide grid, jitters them, then relaxes the
// positions with pairwise repulsion and a spring back to each grid anchor.
// Every point stays inside the canvas with a half-cell margin.
func Layout(n, perRow int, width, height float64, rng *rand.Rand) []Point {
	if n <= 0 {
		return nil
	}
	if perRow <= 0 {
		perRow = n
	}
	rows := (n + perRow - 1) / perRow
	cellW := width / float64(perRow)
	cellH := height / float64(rows)
	minDist := 0.6 * math.Min(cellW, cellH)
	marginX, marginY := cellW/4, cellH/4

	anchors := make([]Point, n)
	points := make([]Point, n)
	for i := range n {
		row, col := i/perRow, i%perRow
		anchors[i] = Point{X: (float64(col) + 0.5) * cellW, Y: (float64(row) + 0.5) * cellH}
		points[i] = anchors[i]
		if rng != nil {
			points[i].X += (rng.Float64()*2 - 1) * jitterFraction * cellW
			points[i].Y += (rng.Float64()*2 - 1) * jitterFraction * cellH
		}
	}

	for range relaxIterations {
		for i := range n {
			for j := i + 1; j < n; j++ {
				dx := points[j].X - points[i].X
				dy := points[j].Y - points[i].Y
				d := math.Hypot(dx, dy)
				if d >= minDist {
					continue
				}
				if d == 0 {
					dx, dy, d = 1, 0, 1
				}
				push := (minDist - d) / 2 / d
				points[i].X -= dx * push
				points[i].Y -= dy * push
				points[j].X += dx * push
				points[j].Y += dy * push
			}
		}
		for i := range n {
			points[i].X += (anchors[i].X - points[i].X) * springBack
			points[i].Y += (anchors[i].Y - points[i].Y) * springBack
			points[i].X = clamp(points[i].X, marginX, width-marginX)
			points[i].Y = clamp(points[i].Y, marginY, height-marginY)
		}
	}
	return points
}
