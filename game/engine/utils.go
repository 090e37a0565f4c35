package engine

import "math"

// roundHalfUp rounds .5 toward +Inf, matching the host engine's rounding of tile coordinates.
func roundHalfUp(v float64) float64 {
	return math.Floor(v + 0.5)
}

func tileOf(v float64) int {
	return int(roundHalfUp(v))
}

// Linear interpolates from b by c over duration d at time t.
func Linear(t, b, c, d float64) float64 {
	return c*(t/d) + b
}

// IsHalfStep reports a fractional coordinate.
func IsHalfStep(v float64) bool {
	return math.Floor(v) != v
}

// ManhattanDistance calculates the Manhattan distance between two positions
func ManhattanDistance(from, to Position) float64 {
	return math.Abs(from.X-to.X) + math.Abs(from.Y-to.Y)
}

// CountMapObjects counts events whose active page makes them map objects, grouped by type.
func CountMapObjects(w *World) map[ObjectType]int {
	counts := make(map[ObjectType]int)
	for _, c := range w.Characters() {
		if c.IsMapObject() {
			counts[c.Object().Type]++
		}
	}
	return counts
}

// CountTiles counts tiles matching pred.
func CountTiles(m *TileMap, pred func(Tile) bool) int {
	count := 0
	for y := 0; y < m.Height(); y++ {
		for x := 0; x < m.Width(); x++ {
			if t, _ := m.Tile(x, y); pred(t) {
				count++
			}
		}
	}
	return count
}
