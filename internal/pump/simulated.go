package pump

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"
)

// SimulatedPort answers every command with a framed "00S" (address 00,
// stopped) or "00I" (infusing) status, for dry runs without hardware.
type SimulatedPort struct {
	mu      sync.Mutex
	name    string
	running bool
	pending bytes.Reader
	closed  bool
}

// OpenSimulated is an Opener that never touches hardware
func OpenSimulated(name string, _ PortConfig) (Port, error) {
	return &SimulatedPort{name: name}, nil
}

func (p *SimulatedPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, fmt.Errorf("%s: %w", p.name, io.ErrClosedPipe)
	}

	verb, _, _ := strings.Cut(strings.TrimSpace(string(b)), " ")
	switch verb {
	case "RUN":
		p.running = true
	case "STP":
		p.running = false
	}

	status := "S"
	if p.running {
		status = "I"
	}
	p.pending.Reset([]byte{stx, '0', '0', status[0], etx})
	return len(b), nil
}

func (p *SimulatedPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, io.ErrClosedPipe
	}
	n, _ := p.pending.Read(b)
	return n, nil
}

func (p *SimulatedPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
