// Package canvas models the pan/zoom state of the design preview and the
// placement of issue pins on it.
package canvas

import (
	"math"

	"github.com/joescharf/auditwise/internal/models"
)

// Scale bounds and zoom factors.
const (
	MinScale = 0.1
	MaxScale = 5.0

	WheelZoomIn   = 1.08
	WheelZoomOut  = 0.93
	ButtonZoomIn  = 1.2
	ButtonZoomOut = 0.8
)

// Pointer buttons that start a pan.
const (
	ButtonPrimary = 0
	ButtonMiddle  = 1
)

// Transform is the translation and scale applied to the design frame.
type Transform struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Scale float64 `json:"scale"`
}

// Identity is the untransformed view.
var Identity = Transform{Scale: 1}

// Point is a pointer position in screen pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Controller applies pointer and wheel gestures to a Transform. It is not safe
// for concurrent use.
type Controller struct {
	t       Transform
	panning bool
	last    Point
}

// NewController returns a controller at the identity transform.
func NewController() *Controller {
	return &Controller{t: Identity}
}

// Transform returns the current transform.
func (c *Controller) Transform() Transform { return c.t }

// Panning reports whether a drag is in progress.
func (c *Controller) Panning() bool { return c.panning }

// Wheel zooms in for negative deltaY and out otherwise.
func (c *Controller) Wheel(deltaY float64) Transform {
	if deltaY < 0 {
		return c.zoom(WheelZoomIn)
	}
	return c.zoom(WheelZoomOut)
}

// ZoomIn applies the button zoom-in factor.
func (c *Controller) ZoomIn() Transform { return c.zoom(ButtonZoomIn) }

// ZoomOut applies the button zoom-out factor.
func (c *Controller) ZoomOut() Transform { return c.zoom(ButtonZoomOut) }

// Reset returns to the identity transform.
func (c *Controller) Reset() Transform {
	c.t = Identity
	return c.t
}

func (c *Controller) zoom(factor float64) Transform {
	c.t.Scale = ClampScale(c.t.Scale * factor)
	return c.t
}

// PointerDown starts a pan for the primary or middle button.
func (c *Controller) PointerDown(button int, p Point) {
	if button != ButtonPrimary && button != ButtonMiddle {
		return
	}
	c.panning = true
	c.last = p
}

// PointerMove translates by the delta since the last captured point.
func (c *Controller) PointerMove(p Point) Transform {
	if !c.panning {
		return c.t
	}
	c.t.X += p.X - c.last.X
	c.t.Y += p.Y - c.last.Y
	c.last = p
	return c.t
}

// PointerUp ends a pan.
func (c *Controller) PointerUp() { c.panning = false }

// PointerLeave ends a pan.
func (c *Controller) PointerLeave() { c.panning = false }

// ClampScale bounds s to [MinScale, MaxScale].
func ClampScale(s float64) float64 {
	if math.IsNaN(s) {
		return 1
	}
	return math.Min(math.Max(s, MinScale), MaxScale)
}

// Pin is an issue marker in frame pixels.
type Pin struct {
	IssueID  int                `json:"issueId"`
	X        float64            `json:"x"`
	Y        float64            `json:"y"`
	Resolved bool               `json:"resolved"`
	Severity models.Severity    `json:"severity"`
	Status   models.IssueStatus `json:"status"`
}

// PinPosition converts an issue's percentage coordinates to pixels within a
// frame of the given size.
func PinPosition(is models.Issue, width, height float64) Pin {
	return Pin{
		IssueID:  is.ID,
		X:        is.X / 100 * width,
		Y:        is.Y / 100 * height,
		Resolved: is.Status == models.IssueStatusResolved,
		Severity: is.Severity,
		Status:   is.Status,
	}
}

// Layout positions every issue in a frame.
func Layout(issues []models.Issue, width, height float64) []Pin {
	pins := make([]Pin, 0, len(issues))
	for _, is := range issues {
		pins = append(pins, PinPosition(is, width, height))
	}
	return pins
}
