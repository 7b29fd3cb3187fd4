package router_test

import (
	"sync"

	"github.com/oinkzwurgl/streammux/gnssmsg"
	"github.com/oinkzwurgl/streammux/transport"
)

// fakeStream is an in-memory transport.Stream for router tests: push queues
// a message for Read, writes records every Write call.
type fakeStream struct {
	typ  transport.Type
	mode transport.Mode

	mu        sync.Mutex
	state     transport.State
	connected bool
	queue     []gnssmsg.Message
	writes    [][]byte
	writeOK   bool
	stateObs  []transport.StateObserver
	readObs   []transport.ReadObserver
}

func newFake(typ transport.Type, mode transport.Mode) *fakeStream {
	return &fakeStream{typ: typ, mode: mode, writeOK: true}
}

func (f *fakeStream) Start() error { return nil }
func (f *fakeStream) Stop()        {}

func (f *fakeStream) Read() (gnssmsg.Message, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queue) == 0 {
		return gnssmsg.Message{}, false
	}
	msg := f.queue[0]
	f.queue = f.queue[1:]
	return msg, true
}

func (f *fakeStream) Write(data []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.writeOK {
		return false
	}
	cp := append([]byte(nil), data...)
	f.writes = append(f.writes, cp)
	return true
}

func (f *fakeStream) GetState() transport.State { return f.getState() }
func (f *fakeStream) getState() transport.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}
func (f *fakeStream) GetError() string { return "" }
func (f *fakeStream) GetInfo() string  { return "" }
func (f *fakeStream) GetType() transport.Type { return f.typ }
func (f *fakeStream) GetMode() transport.Mode { return f.mode }

func (f *fakeStream) AddReadObserver(fn transport.ReadObserver) {
	f.mu.Lock()
	f.readObs = append(f.readObs, fn)
	f.mu.Unlock()
}

func (f *fakeStream) AddStateObserver(fn transport.StateObserver) {
	f.mu.Lock()
	f.stateObs = append(f.stateObs, fn)
	f.mu.Unlock()
}

// push queues a message and fires read observers, simulating the transport
// delivering new data.
func (f *fakeStream) push(msg gnssmsg.Message) {
	f.mu.Lock()
	f.queue = append(f.queue, msg)
	obs := append([]transport.ReadObserver(nil), f.readObs...)
	f.mu.Unlock()
	for _, fn := range obs {
		fn()
	}
}

// setConnected drives the fake into CONNECTED, firing state observers.
func (f *fakeStream) setConnected() {
	f.transition(transport.CONNECTED, "", "")
}

func (f *fakeStream) setClosed(errStr string) {
	f.transition(transport.CLOSED, errStr, "")
}

func (f *fakeStream) transition(new transport.State, errStr, info string) {
	f.mu.Lock()
	old := f.state
	f.state = new
	obs := append([]transport.StateObserver(nil), f.stateObs...)
	f.mu.Unlock()
	for _, fn := range obs {
		fn(old, new, errStr, info)
	}
}

func (f *fakeStream) setWriteOK(ok bool) {
	f.mu.Lock()
	f.writeOK = ok
	f.mu.Unlock()
}

func (f *fakeStream) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}
