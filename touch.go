package uidriver

import (
	"bufio"
	"fmt"
	"image"
	"io"
	"log"
	"net"
	"os"
	"strings"
	"syscall"
	"time"

	adb "github.com/openatx/go-adb"
	"github.com/pkg/errors"
)

const swipeSteps = 10

// TouchInjector injects touch gestures through minitouch. It implements
// GestureInjector for the scroll stepper.
type TouchInjector struct {
	cmdC       chan string
	conn       net.Conn
	maxX, maxY int

	*adb.Device
	errorMixin
	safeMixin
}

func NewTouchInjector(device *adb.Device) *TouchInjector {
	return &TouchInjector{
		Device: device,
		cmdC:   make(chan string, 0),
	}
}

func (s *TouchInjector) Start() error {
	return s.safeDo(actionStart, func() error {
		s.resetError()
		if err := s.prepare(); err != nil {
			return err
		}
		go s.runBinary()
		go s.drainCmd()
		return nil
	})
}

func (s *TouchInjector) Stop() error {
	return s.safeDo(actionStop, func() error {
		adbKillProc(s.Device, "minitouch", syscall.SIGKILL)
		return s.Wait()
	})
}

func (s *TouchInjector) Down(index, posX, posY int) {
	s.cmdC <- fmt.Sprintf("d %v %v %v 50", index, posX, posY)
}

func (s *TouchInjector) Move(index, posX, posY int) {
	s.cmdC <- fmt.Sprintf("m %v %v %v 50", index, posX, posY)
}

func (s *TouchInjector) Up(index int) {
	s.cmdC <- fmt.Sprintf("u %d", index)
}

// PerformScroll swipes across obj to scroll it one step toward direction.
// Calling it before Start, or after the minitouch connection died, is an
// unrecoverable failure: the injection mechanism is not engaged and a retry
// cannot fix it.
func (s *TouchInjector) PerformScroll(obj UIObject, direction PhysicalDirection) error {
	if !s.isStarted() {
		return errors.Wrap(ErrUnrecoverable, "minitouch service not started")
	}
	start, end := swipePoints(obj.Bounds(), direction)
	s.Down(0, start.X, start.Y)
	for i := 1; i <= swipeSteps; i++ {
		s.Move(0,
			start.X+(end.X-start.X)*i/swipeSteps,
			start.Y+(end.Y-start.Y)*i/swipeSteps)
		time.Sleep(5 * time.Millisecond)
	}
	s.Up(0)
	return nil
}

// swipePoints maps a scroll direction onto a finger path across bounds.
// The finger moves opposite to the scroll direction, keeping a quarter
// margin so the swipe stays inside the container.
func swipePoints(bounds image.Rectangle, direction PhysicalDirection) (start, end image.Point) {
	cx := (bounds.Min.X + bounds.Max.X) / 2
	cy := (bounds.Min.Y + bounds.Max.Y) / 2
	qw := bounds.Dx() / 4
	qh := bounds.Dy() / 4
	switch direction {
	case DirectionDown:
		return image.Pt(cx, bounds.Max.Y-qh), image.Pt(cx, bounds.Min.Y+qh)
	case DirectionUp:
		return image.Pt(cx, bounds.Min.Y+qh), image.Pt(cx, bounds.Max.Y-qh)
	case DirectionRight:
		return image.Pt(bounds.Max.X-qw, cy), image.Pt(bounds.Min.X+qw, cy)
	default: // DirectionLeft
		return image.Pt(bounds.Min.X+qw, cy), image.Pt(bounds.Max.X-qw, cy)
	}
}

func (s *TouchInjector) prepare() error {
	dst := "/data/local/tmp/minitouch"
	if AdbFileExists(s.Device, dst) {
		return nil
	}
	props, err := s.Properties()
	if err != nil {
		return err
	}
	abi, ok := props["ro.product.cpu.abi"]
	if !ok {
		return errors.New("No ro.product.cpu.abi propery")
	}
	urlStr := "https://github.com/openstf/stf/raw/master/vendor/minitouch/" + abi + "/minitouch"
	return PushFileFromHTTP(s.Device, dst, 0755, urlStr)
}

func (s *TouchInjector) runBinary() (err error) {
	defer s.doneError(err)
	c, err := s.OpenCommand("/data/local/tmp/minitouch")
	if err != nil {
		return
	}
	defer c.Close()
	_, err = io.Copy(os.Stdout, c)
	return nil
}

func (s *TouchInjector) drainCmd() {
	if err := s.dialWithRetry(); err != nil {
		s.doneError(errors.Wrap(err, "dial minitouch"))
		return
	}
	for c := range s.cmdC {
		c = strings.TrimSpace(c) + "\nc\n" // c: commit
		_, err := io.WriteString(s.conn, c)
		if err != nil {
			s.doneError(errors.Wrap(err, "write command to minitouch tcp"))
			s.conn.Close()
			s.conn = nil
			break
		}
	}
}

type lineFormatReader struct {
	bufrd *bufio.Reader
	err   error
}

func (r *lineFormatReader) Scanf(format string, args ...interface{}) error {
	if r.err != nil {
		return r.err
	}
	var line []byte
	line, _, r.err = r.bufrd.ReadLine()
	if r.err != nil {
		return r.err
	}
	_, r.err = fmt.Sscanf(string(line), format, args...)
	return r.err
}

func (s *TouchInjector) dialWithRetry() error {
	var err error
	for i := 0; i < 10; i++ {
		err = s.dialTouch()
		if err == nil {
			return nil
		}
		log.Println("dial minitouch service fail, reconnect, err is", err)
		time.Sleep(100 * time.Millisecond)
	}
	return err
}

func (s *TouchInjector) dialTouch() error {
	port, err := s.ForwardToFreePort(adb.ForwardSpec{adb.FProtocolAbstract, "minitouch"})
	if err != nil {
		return err
	}
	s.conn, err = net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return err
	}
	lineRd := lineFormatReader{bufrd: bufio.NewReader(s.conn)}
	var flag string
	var ver int
	var maxContacts, maxPressure int
	var pid int
	lineRd.Scanf("%s %d", &flag, &ver)
	lineRd.Scanf("%s %d %d %d %d", &flag, &maxContacts, &s.maxX, &s.maxY, &maxPressure)
	if err := lineRd.Scanf("%s %d", &flag, &pid); err != nil {
		s.conn.Close()
		return err
	}
	return nil
}
