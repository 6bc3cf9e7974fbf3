package uidriver

import (
	"time"

	"github.com/pkg/errors"
)

// ErrUnrecoverable marks failures of the platform scroll/event mechanism
// itself. Such errors terminate the current step and session; retrying the
// gesture cannot help.
var ErrUnrecoverable = errors.New("platform mechanism cannot be engaged")

// IsUnrecoverable reports whether err (or its cause) is ErrUnrecoverable.
func IsUnrecoverable(err error) bool {
	return errors.Cause(err) == ErrUnrecoverable
}

// EventCapturer performs one scroll gesture and captures the last scroll
// event the device emits within the configured window.
type EventCapturer struct {
	events   EventStream
	injector GestureInjector
	timeout  time.Duration
}

// NewEventCapturer returns a capturer reading from events and injecting
// gestures through injector. timeout bounds the event wait per gesture.
func NewEventCapturer(events EventStream, injector GestureInjector, timeout time.Duration) *EventCapturer {
	return &EventCapturer{
		events:   events,
		injector: injector,
		timeout:  timeout,
	}
}

// ScrollAndCapture scrolls obj one step toward direction and returns the
// last scroll event seen before the window closed, or nil if none arrived.
// The returned event is owned by the caller and must be recycled. A nil
// event does not mean the scroll had no effect: some views do not emit
// events even when content moved.
//
// The error, when non-nil, is unrecoverable: the gesture mechanism itself
// could not be engaged.
func (c *EventCapturer) ScrollAndCapture(obj UIObject, direction PhysicalDirection) (*ScrollEvent, error) {
	sub := c.events.Subscribe()
	defer c.events.Unsubscribe(sub)

	if err := c.injector.PerformScroll(obj, direction); err != nil {
		return nil, errors.Wrapf(err, "scroll %v", direction)
	}

	// Keep only the newest event; recycle each one superseded so repeated
	// steps do not accumulate pooled events.
	var last *ScrollEvent
	deadline := time.After(c.timeout)
	for {
		select {
		case ev, ok := <-sub:
			if !ok {
				return last, nil
			}
			if last != nil {
				last.Recycle()
			}
			last = ev
		case <-deadline:
			// Expected whenever the view stops emitting; not an error.
			return last, nil
		}
	}
}
