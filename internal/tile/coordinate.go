package tile

import (
	"fmt"
	"strconv"
	"strings"
)

// Coordinate is one cell of a power-of-two quadtree tile pyramid.
type Coordinate struct {
	X int
	Y int
	Z int
}

// Parent steps one zoom level up. Division truncates toward zero, so
// negative indices walk a different chain than a floor-division quadtree.
func (c Coordinate) Parent() Coordinate {
	return Coordinate{
		X: c.X / 2,
		Y: c.Y / 2,
		Z: c.Z - 1,
	}
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%d/%d/%d", c.Z, c.X, c.Y)
}

// Fill substitutes the {x}, {y} and {z} placeholders of a path or URL template.
func Fill(template string, c Coordinate) string {
	r := strings.NewReplacer(
		"{x}", strconv.Itoa(c.X),
		"{y}", strconv.Itoa(c.Y),
		"{z}", strconv.Itoa(c.Z),
	)
	return r.Replace(template)
}
