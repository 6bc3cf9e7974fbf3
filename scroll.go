package uidriver

import (
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// endMemo remembers the (finder, direction) pair of the last detected end so
// a repeated scroll request can return without reissuing the gesture.
//
// Matching is by finder identity: the memo only ever reflects the
// immediately preceding step, and a structurally equal finder built for a
// new call must not match.
type endMemo struct {
	containerAtEnd Finder
	directionAtEnd PhysicalDirection
}

func (m *endMemo) match(container Finder, direction PhysicalDirection) bool {
	return m.containerAtEnd != nil &&
		m.containerAtEnd == container && m.directionAtEnd == direction
}

func (m *endMemo) set(container Finder, direction PhysicalDirection) {
	m.containerAtEnd = container
	m.directionAtEnd = direction
}

func (m *endMemo) reset() {
	m.set(nil, 0)
}

// StepCapturer performs one scroll gesture and yields the captured event.
// Implemented by EventCapturer.
type StepCapturer interface {
	ScrollAndCapture(obj UIObject, direction PhysicalDirection) (*ScrollEvent, error)
}

// EventScrollStepper issues scroll steps and decides from accessibility
// events whether the container can still move. It is the Go counterpart of
// UiScrollable-style scrolling and shares its limits: some views do not send
// correct events after scrolling.
//
// Steps are strictly sequential; the stepper holds no locks and must not be
// shared across goroutines.
type EventScrollStepper struct {
	capturer  StepCapturer
	detector  EndDetector
	converter DirectionConverter
	end       endMemo
	sessionID string
}

// NewEventScrollStepper builds a stepper with the given detector. Pass
// IndexOffsetDetector for the default behavior or SilenceDetector for
// containers known to emit unreliable scroll events.
func NewEventScrollStepper(capturer StepCapturer, detector EndDetector, converter DirectionConverter) *EventScrollStepper {
	return &EventScrollStepper{
		capturer:  capturer,
		detector:  detector,
		converter: converter,
	}
}

// BeginScrolling starts a scroll session and clears any memoized end from a
// previous session.
func (s *EventScrollStepper) BeginScrolling() {
	s.end.reset()
	s.sessionID = uuid.NewString()
	log.Printf("session %s: begin scrolling", s.sessionID)
}

// EndScrolling closes the session. Reserved for symmetry; the memo is
// cleared on the next BeginScrolling.
func (s *EventScrollStepper) EndScrolling() {
	log.Printf("session %s: end scrolling", s.sessionID)
	s.sessionID = ""
}

// Scroll performs one scroll step on the container located by
// containerFinder. It returns false without touching the device when the
// previous step already hit the end for the same finder and direction.
// Otherwise it returns true: a gesture was performed, even when this step
// turned out to be the last one.
func (s *EventScrollStepper) Scroll(r ElementResolver, containerFinder Finder, direction PhysicalDirection) (bool, error) {
	if s.end.match(containerFinder, direction) {
		return false, nil
	}

	obj, err := r.On(containerFinder)
	if err != nil {
		return false, errors.Wrapf(err, "session %s: locate %s", s.sessionID, containerFinder)
	}

	ev, err := s.capturer.ScrollAndCapture(obj, direction)
	if err != nil {
		return false, errors.Wrapf(err, "session %s: scroll step on %s", s.sessionID, containerFinder)
	}
	if s.detector.DetectEnd(ev, s.converter.AxisOf(direction)) {
		s.end.set(containerFinder, direction)
		log.Printf("session %s: reached scroll end with event: %+v", s.sessionID, ev)
	}

	if ev != nil {
		ev.Recycle()
	}

	// Even with no event the gesture did run, and the view may have moved.
	return true, nil
}

func (s *EventScrollStepper) String() string {
	return fmt.Sprintf("EventScrollStepper{detector=%T}", s.detector)
}

// Scroller repeatedly steps a container until an item shows up or the
// stepper reports no more movement. Iteration limits live here, not in the
// stepper: each repeated Scroll call is itself the retry.
type Scroller struct {
	stepper  *EventScrollStepper
	maxSteps int
}

// NewScroller wraps stepper with a per-session giveup bound.
func NewScroller(stepper *EventScrollStepper, maxSteps int) *Scroller {
	return &Scroller{stepper: stepper, maxSteps: maxSteps}
}

// ScrollTo scrolls the container toward direction until itemFinder locates
// an object. It returns the located object, or an error when the container
// ran out of content or maxSteps gestures were spent.
func (s *Scroller) ScrollTo(r ElementResolver, containerFinder, itemFinder Finder, direction PhysicalDirection) (UIObject, error) {
	s.stepper.BeginScrolling()
	defer s.stepper.EndScrolling()

	for i := 0; i < s.maxSteps; i++ {
		if obj, err := itemFinder.Find(r); err == nil {
			return obj, nil
		}
		scrolled, err := s.stepper.Scroll(r, containerFinder, direction)
		if err != nil {
			return nil, err
		}
		if !scrolled {
			return nil, errors.Errorf("%s not found after scrolling %s to end", itemFinder, containerFinder)
		}
	}
	// the last gesture may have brought the item in
	if obj, err := itemFinder.Find(r); err == nil {
		return obj, nil
	}
	return nil, errors.Errorf("%s not found within %d scroll steps", itemFinder, s.maxSteps)
}

// ScrollToEnd scrolls the container toward direction until no more movement
// is possible, returning the number of gestures performed.
func (s *Scroller) ScrollToEnd(r ElementResolver, containerFinder Finder, direction PhysicalDirection) (int, error) {
	s.stepper.BeginScrolling()
	defer s.stepper.EndScrolling()

	steps := 0
	for steps < s.maxSteps {
		scrolled, err := s.stepper.Scroll(r, containerFinder, direction)
		if err != nil {
			return steps, err
		}
		if !scrolled {
			return steps, nil
		}
		steps++
	}
	return steps, nil
}
