// Package object defines the falling object descriptor and the logical
// viewport it moves through. Coordinates are logical units; clients scale
// them to their own screens.
package object

import "time"

// Logical viewport bounds. Objects spawn fully above the top edge and are
// considered gone once fully below the bottom edge.
const (
	ViewportWidth  = 390.0
	ViewportHeight = 844.0
	Padding        = 16.0

	// Tap-target size range.
	MinSize = 44.0
	MaxSize = 84.0
)

// Falling is a falling object descriptor. It is owned exclusively by the
// session registry from creation until removal; removal is idempotent
// because a tap and a natural fall completion can race for the same id.
type Falling struct {
	ID           string
	X            float64 // left edge, within [Padding, ViewportWidth-Padding-Size]
	Size         float64
	FallDuration time.Duration
	CreatedAt    time.Time
}

// StartY returns the vertical position at which the object enters the
// viewport: fully hidden above the top edge.
func (f Falling) StartY() float64 {
	return -f.Size
}

// EndY returns the vertical position at which the fall completes: fully
// hidden below the bottom edge.
func (f Falling) EndY() float64 {
	return ViewportHeight + f.Size
}

// View is the renderable snapshot of a live object sent to presentation
// clients: the descriptor plus its current vertical position.
type View struct {
	ID             string  `json:"id"`
	X              float64 `json:"x"`
	Y              float64 `json:"y"`
	Size           float64 `json:"size"`
	FallDurationMs int64   `json:"fall_duration_ms"`
}
