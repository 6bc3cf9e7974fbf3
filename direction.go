package uidriver

// Axis of a scrollable container.
type Axis int

const (
	Horizontal = Axis(iota)
	Vertical
)

func (a Axis) String() string {
	if a == Horizontal {
		return "horizontal"
	}
	return "vertical"
}

// PhysicalDirection is the direction the view is scrolled toward. Scrolling
// down moves the finger up.
type PhysicalDirection int

const (
	DirectionUp = PhysicalDirection(iota)
	DirectionDown
	DirectionLeft
	DirectionRight
)

func (d PhysicalDirection) String() string {
	switch d {
	case DirectionUp:
		return "up"
	case DirectionDown:
		return "down"
	case DirectionLeft:
		return "left"
	case DirectionRight:
		return "right"
	}
	return "unknown"
}

// Axis returns the axis the direction moves along.
func (d PhysicalDirection) Axis() Axis {
	if d == DirectionLeft || d == DirectionRight {
		return Horizontal
	}
	return Vertical
}

// Reverse returns the opposite direction.
func (d PhysicalDirection) Reverse() PhysicalDirection {
	switch d {
	case DirectionUp:
		return DirectionDown
	case DirectionDown:
		return DirectionUp
	case DirectionLeft:
		return DirectionRight
	}
	return DirectionLeft
}

// DirectionConverter maps physical directions to axes. Injected into the
// stepper so callers can substitute locale-aware conversions.
type DirectionConverter interface {
	AxisOf(d PhysicalDirection) Axis
}

type standardConverter struct{}

func (standardConverter) AxisOf(d PhysicalDirection) Axis { return d.Axis() }

// StandardDirectionConverter returns the stateless physical-direction
// converter.
func StandardDirectionConverter() DirectionConverter {
	return standardConverter{}
}
