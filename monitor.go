// ScrollWatcher.apk Service
package uidriver

import (
	"bufio"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	adb "github.com/openatx/go-adb"
	"github.com/openatx/go-adb/wire"
	"github.com/pkg/errors"
)

const (
	defaultMonitorPkgName  = "com.openatx.scrollwatcher"
	defaultMonitorMaxRetry = 3

	// AccessibilityEvent.TYPE_VIEW_SCROLLED
	eventTypeViewScrolled = 0x1000
)

// UIEventMonitor streams accessibility scroll events from the device. It
// runs a watcher process through app_process which prints one JSON event
// per line, and republishes TYPE_VIEW_SCROLLED events to subscribers.
type UIEventMonitor struct {
	d           *adb.Device
	mu          sync.Mutex
	subscribers map[chan *ScrollEvent]bool
	cmdConn     *wire.Conn
	wg          sync.WaitGroup
	stopped     bool
	leftRetry   int
}

func NewUIEventMonitor(d *adb.Device) *UIEventMonitor {
	return &UIEventMonitor{
		d:           d,
		subscribers: make(map[chan *ScrollEvent]bool),
		leftRetry:   defaultMonitorMaxRetry,
	}
}

func (s *UIEventMonitor) Start() error {
	pmPath, err := s.preparePackage()
	if err != nil {
		return err
	}

	go func() {
		var ok = true
		for ok {
			s.wg.Add(1)
			err := s.consoleStartProcess(pmPath)
			if err == nil {
				s.leftRetry = defaultMonitorMaxRetry
			} else {
				log.Printf("scroll watcher run failed: %v, left retry %d", err, s.leftRetry)
			}

			s.mu.Lock()
			s.leftRetry -= 1
			if s.stopped || s.leftRetry <= 0 {
				for subC := range s.subscribers {
					s.unsubscribeLocked(subC)
				}
				ok = false
			}
			s.wg.Done()
			s.mu.Unlock()
		}
	}()
	return nil
}

func (s *UIEventMonitor) Stop() error {
	// cancel retry and wait until stop
	s.mu.Lock()
	s.stopped = true
	conn := s.cmdConn
	s.cmdConn = nil
	s.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
	s.wg.Wait()
	return nil
}

func (s *UIEventMonitor) Wait() error {
	s.wg.Wait()
	return nil
}

// Subscribe returns a channel of scroll events. Every event delivered is
// owned by the receiver and must be recycled.
func (s *UIEventMonitor) Subscribe() chan *ScrollEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	C := make(chan *ScrollEvent, 1)
	s.subscribers[C] = true
	return C
}

// Unsubscribe will also close channel
func (s *UIEventMonitor) Unsubscribe(C chan *ScrollEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unsubscribeLocked(C)
}

func (s *UIEventMonitor) unsubscribeLocked(C chan *ScrollEvent) {
	if _, ok := s.subscribers[C]; !ok {
		return
	}
	delete(s.subscribers, C)
	close(C)
}

// pub fans ev out to subscribers. Each subscriber gets its own copy so
// recycling on one side cannot corrupt another. Slow subscribers are
// evicted. Consumes ev.
func (s *UIEventMonitor) pub(ev *ScrollEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for subC := range s.subscribers {
		dup := ObtainScrollEvent()
		*dup = *ev
		select {
		case subC <- dup:
		case <-time.After(1 * time.Second):
			dup.Recycle()
			s.unsubscribeLocked(subC)
		}
	}
	ev.Recycle()
}

func (s *UIEventMonitor) preparePackage() (pmPath string, err error) {
	if err := s.pushApk(); err != nil {
		return "", err
	}
	return s.getPackagePath(defaultMonitorPkgName)
}

func (s *UIEventMonitor) consoleStartProcess(pmPath string) error {
	fio, err := s.d.Command("CLASSPATH="+pmPath, "exec", "app_process", "/system/bin", defaultMonitorPkgName+".ScrollWatcher")
	if err != nil {
		return err
	}
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		fio.Close()
		return nil
	}
	s.cmdConn = fio
	s.mu.Unlock()
	defer fio.Close()
	readCount := 0
	scanner := bufio.NewScanner(fio)
	for scanner.Scan() {
		ev, err := parseWatcherLine(scanner.Bytes())
		if err != nil {
			return err
		}
		readCount += 1
		if ev != nil {
			s.pub(ev)
		}
	}
	if readCount > 0 {
		return nil
	}
	return errors.New("Scroll watcher got nothing")
}

// parseWatcherLine decodes one watcher output line. Lines for event types
// other than TYPE_VIEW_SCROLLED yield (nil, nil). Fields the view left out
// stay at the absent sentinel.
func parseWatcherLine(line []byte) (*ScrollEvent, error) {
	ev := ObtainScrollEvent()
	envelope := struct {
		EventType int `json:"eventType"`
		*ScrollEvent
	}{ScrollEvent: ev}
	if err := json.Unmarshal(line, &envelope); err != nil {
		ev.Recycle()
		return nil, err
	}
	if envelope.EventType&eventTypeViewScrolled == 0 {
		ev.Recycle()
		return nil, nil
	}
	return ev, nil
}

func (s *UIEventMonitor) pushApk() error {
	_, err := s.getPackagePath(defaultMonitorPkgName) // If already installed, then skip
	if err == nil {
		return nil
	}
	phoneApkPath := "/data/local/tmp/ScrollWatcher.apk"
	wc, err := s.d.OpenWrite(phoneApkPath, 0644, time.Now())
	if err != nil {
		return err
	}
	resp, err := http.Get("https://github.com/openatx/ScrollWatcher.apk/releases/download/1.0/ScrollWatcher.apk")
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return errors.New("http download scroll watcher status " + resp.Status)
	}
	defer resp.Body.Close()
	log.Println("Downloading ScrollWatcher.apk ...")
	if _, err = io.Copy(wc, resp.Body); err != nil {
		return err
	}
	log.Println("Done")
	if err := wc.Close(); err != nil {
		return err
	}
	_, err = s.checkCmdOutput("pm", "install", "-rt", phoneApkPath)
	return err
}

func (s *UIEventMonitor) getPackagePath(name string) (path string, err error) {
	path, err = s.checkCmdOutput("pm", "path", name)
	if err != nil {
		return
	}
	if strings.HasPrefix(path, "package:") {
		path = strings.TrimSpace(path[len("package:"):])
		return
	}
	return "", errors.New("no scrollwatcher package found")
}

func (s *UIEventMonitor) checkCmdOutput(name string, args ...string) (string, error) {
	return AdbCheckOutput(s.d, name, args...)
}
