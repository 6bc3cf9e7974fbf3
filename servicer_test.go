package uidriver

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

// guardedServ is a minimal Servicer built on the mixins, the way the
// device services are.
type guardedServ struct {
	startErr error
	safeMixin
	errorMixin
}

func (g *guardedServ) Start() error {
	return g.safeDo(actionStart, func() error {
		g.resetError()
		return g.startErr
	})
}

func (g *guardedServ) Stop() error {
	return g.safeDo(actionStop, func() error {
		g.doneNilError()
		return g.Wait()
	})
}

func TestSafeMixinGuardsDoubleStart(t *testing.T) {
	s := &guardedServ{}
	assert.False(t, s.isStarted())

	assert.NoError(t, s.Start())
	assert.True(t, s.isStarted())
	assert.Equal(t, ErrServiceAlreadyStarted, s.Start())

	assert.NoError(t, s.Stop())
	assert.False(t, s.isStarted())
	assert.Equal(t, ErrServiceNotStarted, s.Stop())

	// a stopped service can be started again
	assert.NoError(t, s.Start())
	assert.NoError(t, s.Stop())
}

func TestSafeMixinFailedStartStaysStopped(t *testing.T) {
	s := &guardedServ{startErr: errors.New("push failed")}
	assert.Error(t, s.Start())
	assert.False(t, s.isStarted())
	assert.Equal(t, ErrServiceNotStarted, s.Stop())
}

type fakeServ struct {
	startErr error
	stopErr  error
	starts   int
	stops    int
}

func (f *fakeServ) Start() error { f.starts++; return f.startErr }
func (f *fakeServ) Stop() error  { f.stops++; return f.stopErr }
func (f *fakeServ) Wait() error  { return nil }

func TestMultiServicerStartStopsAtFirstError(t *testing.T) {
	a := &fakeServ{}
	b := &fakeServ{startErr: errors.New("b down")}
	c := &fakeServ{}

	err := MultiServicer(a, b, c).Start()
	assert.Error(t, err)
	assert.Equal(t, 1, a.starts)
	assert.Equal(t, 1, b.starts)
	assert.Equal(t, 0, c.starts, "servicers after the failed one are not started")
}

func TestMultiServicerStopsAllDespiteError(t *testing.T) {
	a := &fakeServ{stopErr: errors.New("a stuck")}
	b := &fakeServ{}
	c := &fakeServ{}

	err := MultiServicer(a, b, c).Stop()
	assert.Error(t, err)
	assert.Equal(t, 1, a.stops)
	assert.Equal(t, 1, b.stops)
	assert.Equal(t, 1, c.stops)
}

func TestMultiServicerWait(t *testing.T) {
	m := MultiServicer(&fakeServ{}, &fakeServ{})
	assert.NoError(t, m.Wait())
}
