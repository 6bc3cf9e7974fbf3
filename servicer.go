package uidriver

import (
	"errors"
	"sync"
)

var (
	ErrServiceAlreadyStarted = errors.New("Service already started")
	ErrServiceNotStarted     = errors.New("Service not started")
)

// Servicer is a long-running device-side helper.
type Servicer interface {
	Start() error
	Stop() error
	Wait() error
}

type multiServ struct {
	ss []Servicer
}

func (m *multiServ) Start() error {
	for _, s := range m.ss {
		if err := s.Start(); err != nil {
			return err
		}
	}
	return nil
}

func (m *multiServ) Stop() error {
	var err error
	for _, s := range m.ss {
		if er := s.Stop(); er != nil {
			err = er
		}
	}
	return err
}

func (m *multiServ) Wait() error {
	errC := make(chan error, len(m.ss))
	for _, s := range m.ss {
		go func(s Servicer) {
			errC <- s.Wait()
		}(s)
	}
	return <-errC
}

// MultiServicer combines servicers into one servicer.
func MultiServicer(ss ...Servicer) Servicer {
	return &multiServ{ss}
}

type serviceAction int

const (
	actionStart = serviceAction(iota)
	actionStop
)

// Mixin helper to guard Start/Stop against double calls.
type safeMixin struct {
	mu      sync.Mutex
	started bool
}

func (s *safeMixin) safeDo(action serviceAction, f func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if action == actionStart {
		if s.started {
			return ErrServiceAlreadyStarted
		}
		if err := f(); err != nil {
			return err
		}
		s.started = true
		return nil
	}
	if !s.started {
		return ErrServiceNotStarted
	}
	err := f()
	s.started = false
	return err
}

func (s *safeMixin) isStarted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Mixin helper to easy write Servicer
type errorMixin struct {
	once *sync.Once
	wg   *sync.WaitGroup
	err  error
}

// this func must be called before use other functions
func (e *errorMixin) resetError() {
	e.once = &sync.Once{}
	e.wg = &sync.WaitGroup{}
	e.wg.Add(1)
}

func (e *errorMixin) Wait() error {
	e.wg.Wait()
	return e.err
}

func (e *errorMixin) doneError(err error) {
	e.once.Do(func() {
		e.err = err
		e.wg.Done()
	})
}

func (e *errorMixin) doneNilError() {
	e.doneError(nil)
}
