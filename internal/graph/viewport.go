package graph

// Viewport maps between screen pixels and canvas coordinates. Needed for
// context-menu node creation and for dropping inbox tasks onto the
// canvas at the pointer position.
type Viewport struct {
	// OffsetX/OffsetY are the canvas coordinates rendered at the
	// screen origin.
	OffsetX float64
	OffsetY float64
	// Zoom is the screen-pixels-per-canvas-unit factor. Zero is
	// treated as 1 so an unset viewport is usable.
	Zoom float64
}

// ScreenToCanvas converts a screen position to canvas coordinates.
func (v Viewport) ScreenToCanvas(sx, sy float64) (float64, float64) {
	zoom := v.Zoom
	if zoom == 0 {
		zoom = 1
	}
	return sx/zoom + v.OffsetX, sy/zoom + v.OffsetY
}

// CanvasToScreen converts canvas coordinates to a screen position.
func (v Viewport) CanvasToScreen(cx, cy float64) (float64, float64) {
	zoom := v.Zoom
	if zoom == 0 {
		zoom = 1
	}
	return (cx - v.OffsetX) * zoom, (cy - v.OffsetY) * zoom
}
