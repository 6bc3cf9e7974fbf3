package uidriver

import (
	"fmt"
	"image"
	"regexp"
	"time"

	adb "github.com/openatx/go-adb"
	"github.com/pkg/errors"
)

// Driver owns the device-side services and exposes the test-facing surface:
// foreground app discovery, screenshots and scrolling.
type Driver struct {
	dev      *adb.Device
	cfg      Config
	monitor  *UIEventMonitor
	touch    *TouchInjector
	screen   *ScreenCapturer
	stepper  *EventScrollStepper
	scroller *Scroller
}

// New returns a driver with ConfigFromEnv and the default end detector.
func New(dev *adb.Device) *Driver {
	return NewWithConfig(dev, ConfigFromEnv(), IndexOffsetDetector{})
}

// NewWithConfig returns a driver with explicit config and detector. Pass
// SilenceDetector for apps whose containers emit unreliable scroll events.
func NewWithConfig(dev *adb.Device, cfg Config, detector EndDetector) *Driver {
	d := &Driver{
		dev:     dev,
		cfg:     cfg,
		monitor: NewUIEventMonitor(dev),
		touch:   NewTouchInjector(dev),
		screen:  NewScreenCapturer(dev, nil, cfg.ScreenshotTimeout),
	}
	capturer := NewEventCapturer(d.monitor, d.touch, cfg.ScrollEventTimeout)
	d.stepper = NewEventScrollStepper(capturer, detector, StandardDirectionConverter())
	d.scroller = NewScroller(d.stepper, cfg.MaxScrollSteps)
	return d
}

func (d *Driver) Start() error {
	return MultiServicer(d.monitor, d.touch, d.screen).Start()
}

func (d *Driver) Stop() error {
	return MultiServicer(d.monitor, d.touch, d.screen).Stop()
}

// On resolves a finder against the current UI state.
func (d *Driver) On(f Finder) (UIObject, error) {
	return f.Find(d)
}

// Scroller returns the step-based scroller bound to this driver.
func (d *Driver) Scroller() *Scroller {
	return d.scroller
}

// ScrollTo scrolls the container toward direction until itemFinder matches.
func (d *Driver) ScrollTo(containerFinder, itemFinder Finder, direction PhysicalDirection) (UIObject, error) {
	return d.scroller.ScrollTo(d, containerFinder, itemFinder, direction)
}

// TakeScreenshot returns the next captured frame.
func (d *Driver) TakeScreenshot() (image.Image, error) {
	return d.screen.NextImage()
}

var focusedWindowRe = regexp.MustCompile(`mCurrentFocus=Window\{\S+ (?:u\d+ )?([^\s/}]+)`)

// WaitForegroundApp polls the window manager until a window has focus,
// returning its package name. Devices need a moment after launch or
// rotation before any window takes focus.
func (d *Driver) WaitForegroundApp() (string, error) {
	end := time.Now().Add(d.cfg.ForegroundTimeout)
	for {
		pkg, err := d.foregroundApp()
		if err == nil {
			return pkg, nil
		}
		if time.Now().After(end) {
			return "", errors.Wrapf(err,
				"timed out after %v waiting for foreground app", d.cfg.ForegroundTimeout)
		}
		time.Sleep(d.cfg.ForegroundPollInterval)
	}
}

func (d *Driver) foregroundApp() (string, error) {
	out, err := d.dev.RunCommand("dumpsys", "window", "windows")
	if err != nil {
		return "", err
	}
	return parseFocusedWindow(out)
}

// parseFocusedWindow extracts the focused window's package name from
// dumpsys window output. Window titles look like "pkg/activity" for app
// windows and a bare name for system ones.
func parseFocusedWindow(out string) (string, error) {
	m := focusedWindowRe.FindStringSubmatch(out)
	if m == nil {
		return "", errors.New("no focused window")
	}
	return m[1], nil
}

// BoundsFinder locates a fixed screen region. Two BoundsFinders built from
// the same rectangle are distinct finders: scroll end memoization treats
// them as different containers.
type BoundsFinder struct {
	rect image.Rectangle
}

// ByBounds returns a finder for the given screen region.
func ByBounds(rect image.Rectangle) *BoundsFinder {
	return &BoundsFinder{rect: rect}
}

func (f *BoundsFinder) Find(r ElementResolver) (UIObject, error) {
	return screenRegion{rect: f.rect}, nil
}

func (f *BoundsFinder) String() string {
	return fmt.Sprintf("ByBounds(%v)", f.rect)
}

type screenRegion struct {
	rect image.Rectangle
}

func (o screenRegion) Bounds() image.Rectangle { return o.rect }
