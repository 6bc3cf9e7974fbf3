package uidriver

import "sync"

// EventFieldAbsent marks a ScrollEvent field the device did not populate.
const EventFieldAbsent = -1

// ScrollEvent is a best-effort snapshot of a scroll position change, parsed
// from a TYPE_VIEW_SCROLLED accessibility event. Every field is optional and
// holds EventFieldAbsent when the source view did not report it. The index
// triad (FromIndex, ToIndex, ItemCount) is populated by adapter views; the
// offset pairs by pixel-scrolling views.
type ScrollEvent struct {
	FromIndex  int `json:"fromIndex"`
	ToIndex    int `json:"toIndex"`
	ItemCount  int `json:"itemCount"`
	ScrollX    int `json:"scrollX"`
	ScrollY    int `json:"scrollY"`
	MaxScrollX int `json:"maxScrollX"`
	MaxScrollY int `json:"maxScrollY"`
}

var scrollEventPool = sync.Pool{
	New: func() interface{} { return new(ScrollEvent) },
}

// ObtainScrollEvent returns a pooled event with every field absent.
// Callers must hand the event back with Recycle when done.
func ObtainScrollEvent() *ScrollEvent {
	ev := scrollEventPool.Get().(*ScrollEvent)
	ev.FromIndex = EventFieldAbsent
	ev.ToIndex = EventFieldAbsent
	ev.ItemCount = EventFieldAbsent
	ev.ScrollX = EventFieldAbsent
	ev.ScrollY = EventFieldAbsent
	ev.MaxScrollX = EventFieldAbsent
	ev.MaxScrollY = EventFieldAbsent
	return ev
}

// Recycle returns the event to the pool. The event must not be used after.
func (ev *ScrollEvent) Recycle() {
	scrollEventPool.Put(ev)
}

// hasIndex reports whether the index triad is fully present. The fields
// travel together: adapter views report all three or none.
func (ev *ScrollEvent) hasIndex() bool {
	return ev.FromIndex != EventFieldAbsent &&
		ev.ToIndex != EventFieldAbsent &&
		ev.ItemCount != EventFieldAbsent
}

// hasOffset reports whether both scroll offsets are present. Mirrors the
// scrollX != -1 && scrollY != -1 check UiAutomator does before comparing
// per-axis values.
func (ev *ScrollEvent) hasOffset() bool {
	return ev.ScrollX != EventFieldAbsent && ev.ScrollY != EventFieldAbsent
}

// isFullyEmpty reports whether the index triad and both scroll offsets are
// all absent.
func (ev *ScrollEvent) isFullyEmpty() bool {
	return ev.FromIndex == EventFieldAbsent &&
		ev.ToIndex == EventFieldAbsent &&
		ev.ItemCount == EventFieldAbsent &&
		ev.ScrollX == EventFieldAbsent &&
		ev.ScrollY == EventFieldAbsent
}
