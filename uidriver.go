// Package uidriver drives Android UI tests over adb: it locates the
// foreground app, takes screenshots and scrolls scrollable containers,
// detecting end-of-scroll from device accessibility events.
package uidriver

import "image"

// UIObject is a located on-screen element. Implementations only need to
// report screen bounds; gestures are computed from them.
type UIObject interface {
	Bounds() image.Rectangle
}

// Finder locates a UIObject on a driver.
//
// Implementations must be pointer types. Scroll end memoization matches
// finders by identity, not by locator content: a memoized end is only valid
// for the exact finder value used on the previous call.
type Finder interface {
	Find(r ElementResolver) (UIObject, error)
	String() string
}

// ElementResolver resolves finders against the current UI state.
// Implemented by Driver.
type ElementResolver interface {
	On(f Finder) (UIObject, error)
}

// GestureInjector performs scroll gestures on located objects.
// Implemented by TouchInjector.
type GestureInjector interface {
	PerformScroll(obj UIObject, direction PhysicalDirection) error
}

// EventStream publishes device accessibility scroll events.
// Implemented by UIEventMonitor.
type EventStream interface {
	Subscribe() chan *ScrollEvent
	Unsubscribe(chan *ScrollEvent)
}
