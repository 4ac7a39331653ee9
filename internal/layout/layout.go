// Package layout assigns default scene positions to new tables so they do not
// spawn on top of each other.
package layout

import "math"

// Point is an (x, y, z) scene coordinate.
type Point [3]float64

const (
	ringBase    = 18.0
	ringStep    = 6.0
	ringPoints  = 8
	fixedPoints = 12
)

// first three form a triangle, the next three a square around it, then a hexagon
var fixed = [fixedPoints]Point{
	{-6, 0, 0},
	{6, 0, 0},
	{0, 8, 0},

	{-10, 8, 0},
	{10, 8, 0},
	{0, -6, 0},

	{-12, -2, 0},
	{-12, 10, 0},
	{0, 14, 0},
	{12, 10, 0},
	{12, -2, 0},
	{0, -12, 0},
}

// PositionFor returns the position of the index-th created table. Indices past
// the fixed shapes fall on concentric rings of eight points, 45 degrees apart,
// with the radius growing every full ring. Negative indices are treated as 0.
func PositionFor(index int) Point {
	if index < 0 {
		index = 0
	}
	if index < fixedPoints {
		return fixed[index]
	}
	n := index - fixedPoints
	radius := ringBase + float64(n/ringPoints)*ringStep
	angle := float64(n%ringPoints) * (math.Pi / 4)
	return Point{math.Cos(angle) * radius, math.Sin(angle) * radius, 0}
}

// GridPosition places imported tables on a three-wide grid.
func GridPosition(index int) Point {
	if index < 0 {
		index = 0
	}
	return Point{float64(index%3)*7 - 7, float64(index/3) * 7, 0}
}
