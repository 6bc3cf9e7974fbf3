package uidriver

import (
	"image"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

type resolverFunc func(Finder) (UIObject, error)

func (f resolverFunc) On(fd Finder) (UIObject, error) { return f(fd) }

var stubResolver = resolverFunc(func(Finder) (UIObject, error) {
	return screenRegion{rect: image.Rect(0, 0, 720, 1280)}, nil
})

// scriptedCapturer replays a fixed event sequence, one per step. A nil
// entry stands for a capture window that expired with nothing.
type scriptedCapturer struct {
	events []*ScrollEvent
	calls  int
	err    error
}

func (c *scriptedCapturer) ScrollAndCapture(obj UIObject, direction PhysicalDirection) (*ScrollEvent, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	if len(c.events) == 0 {
		return nil, nil
	}
	ev := c.events[0]
	c.events = c.events[1:]
	return ev, nil
}

func newTestStepper(capturer StepCapturer) *EventScrollStepper {
	return NewEventScrollStepper(capturer, IndexOffsetDetector{}, StandardDirectionConverter())
}

func TestScrollMemoizesEnd(t *testing.T) {
	capturer := &scriptedCapturer{} // every capture times out: end on first step
	stepper := newTestStepper(capturer)
	finder := ByBounds(image.Rect(0, 0, 720, 1280))

	stepper.BeginScrolling()
	scrolled, err := stepper.Scroll(stubResolver, finder, DirectionDown)
	assert.NoError(t, err)
	assert.True(t, scrolled, "the last gesture still runs")

	// same finder, same direction: no gesture
	scrolled, err = stepper.Scroll(stubResolver, finder, DirectionDown)
	assert.NoError(t, err)
	assert.False(t, scrolled)
	assert.Equal(t, 1, capturer.calls)
	stepper.EndScrolling()
}

func TestScrollMemoDoesNotMatchOtherPairs(t *testing.T) {
	capturer := &scriptedCapturer{}
	stepper := newTestStepper(capturer)
	finder := ByBounds(image.Rect(0, 0, 720, 1280))

	stepper.BeginScrolling()
	_, err := stepper.Scroll(stubResolver, finder, DirectionDown)
	assert.NoError(t, err)

	// other direction on the same container
	scrolled, err := stepper.Scroll(stubResolver, finder, DirectionUp)
	assert.NoError(t, err)
	assert.True(t, scrolled)

	// a structurally equal finder is still a different container
	twin := ByBounds(image.Rect(0, 0, 720, 1280))
	scrolled, err = stepper.Scroll(stubResolver, twin, DirectionDown)
	assert.NoError(t, err)
	assert.True(t, scrolled)
	assert.Equal(t, 3, capturer.calls)
}

func TestBeginScrollingClearsMemo(t *testing.T) {
	capturer := &scriptedCapturer{}
	stepper := newTestStepper(capturer)
	finder := ByBounds(image.Rect(0, 0, 720, 1280))

	stepper.BeginScrolling()
	_, err := stepper.Scroll(stubResolver, finder, DirectionDown)
	assert.NoError(t, err)

	// a new session forgets the recorded end
	stepper.BeginScrolling()
	scrolled, err := stepper.Scroll(stubResolver, finder, DirectionDown)
	assert.NoError(t, err)
	assert.True(t, scrolled)
	assert.Equal(t, 2, capturer.calls)
}

func TestScrollContinuesInMiddleOfList(t *testing.T) {
	capturer := &scriptedCapturer{events: []*ScrollEvent{
		indexEvent(5, 10, 20),
		indexEvent(10, 15, 20),
	}}
	stepper := newTestStepper(capturer)
	finder := ByBounds(image.Rect(0, 0, 720, 1280))

	stepper.BeginScrolling()
	for i := 0; i < 2; i++ {
		scrolled, err := stepper.Scroll(stubResolver, finder, DirectionDown)
		assert.NoError(t, err)
		assert.True(t, scrolled)
	}
	// no end was recorded, so the next step still issues a gesture
	scrolled, err := stepper.Scroll(stubResolver, finder, DirectionDown)
	assert.NoError(t, err)
	assert.True(t, scrolled)
	assert.Equal(t, 3, capturer.calls)
}

func TestScrollPropagatesCaptureError(t *testing.T) {
	capturer := &scriptedCapturer{err: errors.Wrap(ErrUnrecoverable, "down")}
	stepper := newTestStepper(capturer)

	scrolled, err := stepper.Scroll(stubResolver, ByBounds(image.Rect(0, 0, 10, 10)), DirectionDown)
	assert.False(t, scrolled)
	assert.True(t, IsUnrecoverable(err))
}

func TestScrollErrorsCarrySessionID(t *testing.T) {
	capturer := &scriptedCapturer{err: errors.Wrap(ErrUnrecoverable, "down")}
	stepper := newTestStepper(capturer)

	stepper.BeginScrolling()
	first := stepper.sessionID
	assert.NotEmpty(t, first)
	_, err := stepper.Scroll(stubResolver, ByBounds(image.Rect(0, 0, 10, 10)), DirectionDown)
	assert.Contains(t, err.Error(), first)
	stepper.EndScrolling()

	// resolver failures are tagged the same way, and ids are per session
	stepper.BeginScrolling()
	assert.NotEqual(t, first, stepper.sessionID)
	failing := resolverFunc(func(Finder) (UIObject, error) {
		return nil, errors.New("gone")
	})
	_, err = stepper.Scroll(failing, ByBounds(image.Rect(0, 0, 10, 10)), DirectionDown)
	assert.Contains(t, err.Error(), stepper.sessionID)
}

func TestScrollResolveFailure(t *testing.T) {
	failing := resolverFunc(func(Finder) (UIObject, error) {
		return nil, errors.New("gone")
	})
	stepper := newTestStepper(&scriptedCapturer{})

	scrolled, err := stepper.Scroll(failing, ByBounds(image.Rect(0, 0, 10, 10)), DirectionDown)
	assert.False(t, scrolled)
	assert.Error(t, err)
}

// scriptedFinder fails a fixed number of Find calls before matching.
type scriptedFinder struct {
	failCount int
	calls     int
}

func (f *scriptedFinder) Find(r ElementResolver) (UIObject, error) {
	f.calls++
	if f.calls <= f.failCount {
		return nil, errors.New("not found yet")
	}
	return screenRegion{rect: image.Rect(0, 100, 720, 200)}, nil
}

func (f *scriptedFinder) String() string { return "scriptedFinder" }

func TestScrollToFindsItemAfterScrolling(t *testing.T) {
	capturer := &scriptedCapturer{events: []*ScrollEvent{
		indexEvent(5, 10, 20),
		indexEvent(10, 15, 20),
	}}
	scroller := NewScroller(newTestStepper(capturer), 100)
	item := &scriptedFinder{failCount: 2}

	obj, err := scroller.ScrollTo(stubResolver, ByBounds(image.Rect(0, 0, 720, 1280)), item, DirectionDown)
	assert.NoError(t, err)
	assert.NotNil(t, obj)
	assert.Equal(t, 2, capturer.calls)
}

func TestScrollToGivesUpAtEnd(t *testing.T) {
	capturer := &scriptedCapturer{} // immediate end
	scroller := NewScroller(newTestStepper(capturer), 100)
	item := &scriptedFinder{failCount: 1 << 30}

	obj, err := scroller.ScrollTo(stubResolver, ByBounds(image.Rect(0, 0, 720, 1280)), item, DirectionDown)
	assert.Nil(t, obj)
	assert.Error(t, err)
	// one gesture hit the end, the second call short-circuited
	assert.Equal(t, 1, capturer.calls)
}

func TestScrollToGivesUpAfterMaxSteps(t *testing.T) {
	neverEnd := &scriptedCapturer{}
	// feed events that never indicate an end
	for i := 0; i < 20; i++ {
		neverEnd.events = append(neverEnd.events, indexEvent(5, 10, 20))
	}
	scroller := NewScroller(newTestStepper(neverEnd), 5)
	item := &scriptedFinder{failCount: 1 << 30}

	obj, err := scroller.ScrollTo(stubResolver, ByBounds(image.Rect(0, 0, 720, 1280)), item, DirectionDown)
	assert.Nil(t, obj)
	assert.Error(t, err)
	assert.Equal(t, 5, neverEnd.calls)
}

func TestScrollToEnd(t *testing.T) {
	capturer := &scriptedCapturer{events: []*ScrollEvent{
		indexEvent(5, 10, 20),
		indexEvent(10, 15, 20),
		indexEvent(14, 19, 20),
	}}
	scroller := NewScroller(newTestStepper(capturer), 100)

	steps, err := scroller.ScrollToEnd(stubResolver, ByBounds(image.Rect(0, 0, 720, 1280)), DirectionDown)
	assert.NoError(t, err)
	assert.Equal(t, 3, steps)
	assert.Equal(t, 3, capturer.calls)
}
