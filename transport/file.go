package transport

import (
	"bufio"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/oinkzwurgl/streammux/gnssmsg"
)

// fileOut is a write-only sink, optionally rotated every rotateEvery
// seconds (option "S="). Rotated files are suffixed with a Unix timestamp.
type fileOut struct {
	base
	path        string
	rotateEvery time.Duration

	mu      sync.Mutex
	f       *os.File
	w       *bufio.Writer
	lastOpened time.Time
	stopCh  chan struct{}
}

func newFileOut(path string, opts options) (Stream, error) {
	secs := opts.getInt("S", 0)
	f := &fileOut{
		base:        newBase(FILEOUT, WO, gnssmsg.NewNMEAFramer()),
		path:        path,
		rotateEvery: time.Duration(secs) * time.Second,
	}
	return f, nil
}

func (f *fileOut) Start() error {
	f.mu.Lock()
	started := f.f != nil
	f.mu.Unlock()
	if started {
		return nil
	}
	if err := f.openFile(); err != nil {
		f.setState(CLOSED, err.Error(), "")
		return err
	}
	f.setState(CONNECTED, "", f.path)
	if f.rotateEvery > 0 {
		f.stopCh = make(chan struct{})
		go f.rotateLoop()
	}
	return nil
}

func (f *fileOut) currentPath() string {
	if f.rotateEvery <= 0 {
		return f.path
	}
	return fmt.Sprintf("%s.%d", f.path, time.Now().Unix())
}

func (f *fileOut) openFile() error {
	path := f.currentPath()
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) //nolint:gosec
	if err != nil {
		return err
	}
	f.mu.Lock()
	if f.f != nil {
		f.w.Flush() //nolint:errcheck
		f.f.Close()
	}
	f.f = file
	f.w = bufio.NewWriter(file)
	f.lastOpened = time.Now()
	f.mu.Unlock()
	return nil
}

func (f *fileOut) rotateLoop() {
	t := time.NewTicker(f.rotateEvery)
	defer t.Stop()
	for {
		select {
		case <-f.stopCh:
			return
		case <-t.C:
			if err := f.openFile(); err != nil {
				f.setState(CLOSED, err.Error(), "")
				return
			}
		}
	}
}

func (f *fileOut) Write(data []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.w == nil {
		return false
	}
	if _, err := f.w.Write(data); err != nil {
		return false
	}
	return f.w.Flush() == nil
}

func (f *fileOut) Stop() {
	f.mu.Lock()
	if f.stopCh != nil {
		select {
		case <-f.stopCh:
		default:
			close(f.stopCh)
		}
	}
	if f.w != nil {
		f.w.Flush() //nolint:errcheck
	}
	if f.f != nil {
		f.f.Close()
	}
	f.mu.Unlock()
	f.setState(CLOSED, "", "stopped")
}

// fileIn is a read-only source that streams an existing file's content once,
// chunk by chunk, then reports end-of-file by transitioning to CLOSED. The
// router exempts FILEIN from the unexpected-close fatal check.
type fileIn struct {
	base
	path string

	stopCh chan struct{}
}

func newFileIn(path string, _ options) (Stream, error) {
	return &fileIn{base: newBase(FILEIN, RO, gnssmsg.NewNMEAFramer()), path: path}, nil
}

func (f *fileIn) Start() error {
	if f.stopCh != nil {
		return nil
	}
	file, err := os.Open(f.path) //nolint:gosec
	if err != nil {
		f.setState(CLOSED, err.Error(), "")
		return err
	}
	f.stopCh = make(chan struct{})
	f.setState(CONNECTED, "", f.path)
	go f.readAll(file)
	return nil
}

func (f *fileIn) readAll(file *os.File) {
	defer file.Close()
	buf := make([]byte, 4096)
	for {
		select {
		case <-f.stopCh:
			return
		default:
		}
		n, err := file.Read(buf)
		if n > 0 {
			f.feed(buf[:n])
		}
		if err != nil {
			f.setState(CLOSED, "", "end of file")
			return
		}
	}
}

func (f *fileIn) Write(data []byte) bool { return false }

func (f *fileIn) Stop() {
	if f.stopCh != nil {
		select {
		case <-f.stopCh:
		default:
			close(f.stopCh)
		}
	}
	f.setState(CLOSED, "", "stopped")
}
