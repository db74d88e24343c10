package pump

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

// fakePort records writes and replies with queued responses, one per write.
type fakePort struct {
	mu         sync.Mutex
	written    []string
	replies    [][]byte
	pending    *bytes.Reader
	closeCalls int
	writeErr   error
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	p.written = append(p.written, string(b))
	var reply []byte
	if len(p.replies) > 0 {
		reply, p.replies = p.replies[0], p.replies[1:]
	}
	p.pending = bytes.NewReader(reply)
	return len(b), nil
}

func (p *fakePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending == nil {
		return 0, io.EOF
	}
	return p.pending.Read(b)
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeCalls++
	return nil
}

// fakeSerial hands out fakePorts and fails for the configured names.
type fakeSerial struct {
	ports map[string]*fakePort
	fail  map[string]bool
}

func newFakeSerial(failing ...string) *fakeSerial {
	f := &fakeSerial{ports: map[string]*fakePort{}, fail: map[string]bool{}}
	for _, name := range failing {
		f.fail[name] = true
	}
	return f
}

func (f *fakeSerial) open(name string, cfg PortConfig) (Port, error) {
	if f.fail[name] {
		return nil, fmt.Errorf("could not open port %s: %w", name, errors.New("access denied"))
	}
	p := &fakePort{}
	f.ports[name] = p
	return p, nil
}

func noSettle() Options {
	return Options{
		Port:        PortConfig{BaudRate: DefaultBaudRate, ReadTimeout: DefaultReadTimeout},
		SettleDelay: 100 * time.Millisecond,
		Sleep:       func(ctx context.Context, d time.Duration) error { return ctx.Err() },
	}
}
