package uidriver

// EndDetector decides whether a scroll step hit the container boundary,
// given the last scroll event captured for the step (nil when the wait
// timed out with nothing) and the axis being scrolled.
type EndDetector interface {
	DetectEnd(ev *ScrollEvent, axis Axis) bool
}

// IndexOffsetDetector is the default detector. It behaves like UiScrollable:
// adapter views have indices we can use to check for the beginning or end,
// pixel-scrolling views have offsets. No event at all is treated as end,
// trading a possible extra-early stop for forward progress.
type IndexOffsetDetector struct{}

func (IndexOffsetDetector) DetectEnd(ev *ScrollEvent, axis Axis) bool {
	if ev == nil {
		return true
	}

	if ev.hasIndex() {
		return ev.FromIndex == 0 || ev.ToIndex == ev.ItemCount-1
	}
	if ev.hasOffset() {
		if axis == Vertical {
			return ev.ScrollY == 0 || ev.ScrollY == ev.MaxScrollY
		}
		return ev.ScrollX == 0 || ev.ScrollX == ev.MaxScrollX
	}

	// An event that carries nothing usable at all also counts as end. This
	// differs from UiAutomator: an event with unrelated populated fields is
	// not proof of an end and falls through to false.
	return ev.isFullyEmpty()
}

// SilenceDetector treats the absence of any scroll event as the only end
// signal. Some widgets do not fire correct accessibility events; detecting
// end by a missing event is safer, at the cost of one extra scroll, than
// trusting their indices.
type SilenceDetector struct{}

func (SilenceDetector) DetectEnd(ev *ScrollEvent, axis Axis) bool {
	return ev == nil
}
