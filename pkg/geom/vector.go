// Package geom provides the planar vector type shared by the physics and
// simulation packages.
package geom

import (
	"fmt"
	"math"
)

// Vector is a 2D vector in world coordinates (meters, m/s, newtons...).
type Vector struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
}

// Zero is the zero vector
var Zero = Vector{}

// V is shorthand for Vector{X: x, Y: y}
func V(x, y float64) Vector {
	return Vector{X: x, Y: y}
}

// Add returns v + other
func (v Vector) Add(other Vector) Vector {
	return Vector{X: v.X + other.X, Y: v.Y + other.Y}
}

// Sub returns v - other
func (v Vector) Sub(other Vector) Vector {
	return Vector{X: v.X - other.X, Y: v.Y - other.Y}
}

// Scale multiplies both components by s
func (v Vector) Scale(s float64) Vector {
	return Vector{X: v.X * s, Y: v.Y * s}
}

// Length returns the Euclidean norm sqrt(x² + y²)
func (v Vector) Length() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y)
}

// Normalized returns a unit-length copy of v. The zero vector normalizes to
// the zero vector.
func (v Vector) Normalized() Vector {
	l := v.Length()
	if l == 0 {
		return Vector{}
	}
	return Vector{X: v.X / l, Y: v.Y / l}
}

// IsZero reports whether both components are exactly zero
func (v Vector) IsZero() bool {
	return v.X == 0 && v.Y == 0
}

func (v Vector) String() string {
	return fmt.Sprintf("(%.2f, %.2f)", v.X, v.Y)
}
