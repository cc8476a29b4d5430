package model

import "math"

// BBox represents a bounding box (rectangle).
type BBox struct {
	X      float64 // Left
	Y      float64 // Bottom (PDF coordinate system)
	Width  float64
	Height float64
}

// NewBBox creates a bounding box from coordinates.
func NewBBox(x, y, width, height float64) BBox {
	return BBox{X: x, Y: y, Width: width, Height: height}
}

// Left returns the left edge X coordinate.
func (b BBox) Left() float64 {
	return b.X
}

// Right returns the right edge X coordinate.
func (b BBox) Right() float64 {
	return b.X + b.Width
}

// Bottom returns the bottom edge Y coordinate.
func (b BBox) Bottom() float64 {
	return b.Y
}

// Top returns the top edge Y coordinate.
func (b BBox) Top() float64 {
	return b.Y + b.Height
}

// Union returns the smallest bounding box containing both boxes.
// A zero-area box is treated as absent.
func (b BBox) Union(other BBox) BBox {
	if b.IsEmpty() {
		return other
	}
	if other.IsEmpty() {
		return b
	}
	minX := math.Min(b.Left(), other.Left())
	minY := math.Min(b.Bottom(), other.Bottom())
	maxX := math.Max(b.Right(), other.Right())
	maxY := math.Max(b.Top(), other.Top())
	return BBox{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// IsEmpty returns true if the box has no area.
func (b BBox) IsEmpty() bool {
	return b.Width <= 0 || b.Height <= 0
}
