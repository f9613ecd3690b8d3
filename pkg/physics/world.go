// Package physics implements the Newtonian motion model for drones moving
// inside a bounded 2D world.
package physics

import (
	"fmt"

	"github.com/picogrid/drone-comms-sim/pkg/geom"
)

// Earth gravity and default world extent in meters
const (
	DefaultGravity = -9.8
	DefaultWidth   = 100.0
	DefaultHeight  = 100.0
)

// World holds the global parameters every drone integrates against. It is
// shared by pointer and never mutated by the physics step.
type World struct {
	Gravity geom.Vector
	Width   float64
	Height  float64
}

// DefaultWorld returns a 100m x 100m world with Earth gravity pointing down
func DefaultWorld() *World {
	return &World{
		Gravity: geom.V(0, DefaultGravity),
		Width:   DefaultWidth,
		Height:  DefaultHeight,
	}
}

// NewWorld returns a world with custom gravity and bounds
func NewWorld(gravity geom.Vector, width, height float64) *World {
	return &World{Gravity: gravity, Width: width, Height: height}
}

// Validate checks the world bounds
func (w *World) Validate() error {
	if w.Width <= 0 {
		return fmt.Errorf("world width must be positive, got %g", w.Width)
	}
	if w.Height <= 0 {
		return fmt.Errorf("world height must be positive, got %g", w.Height)
	}
	return nil
}

// Contains reports whether p lies inside the closed world rectangle
func (w *World) Contains(p geom.Vector) bool {
	return p.X >= 0 && p.X <= w.Width && p.Y >= 0 && p.Y <= w.Height
}
