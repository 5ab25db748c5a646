// Package notify runs the non-critical side effects of a new scan: the
// audio cue and the optional serial forward to external hardware. Nothing
// in this package may block or abort the frame loop.
package notify

import (
	"fmt"
	"sync"

	"go.bug.st/serial"
)

// DefaultBaudRate is the fixed baud rate of the forwarding link.
const DefaultBaudRate = 9600

// Ports returns the names of the available serial ports for the shell's
// port selector.
func Ports() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	return ports, nil
}

// Link is an opened duplex byte channel to the external hardware, bound to
// a port name. Absence of a Link is a valid state (no forwarding).
type Link struct {
	port string

	mu   sync.Mutex
	conn serial.Port
}

// OpenLink opens the named port at the fixed baud rate.
func OpenLink(port string, baud int) (*Link, error) {
	if baud == 0 {
		baud = DefaultBaudRate
	}
	conn, err := serial.Open(port, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", port, err)
	}
	return &Link{port: port, conn: conn}, nil
}

// Send writes the identifier followed by a newline.
func (l *Link) Send(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.conn == nil {
		return fmt.Errorf("serial port %s is closed", l.port)
	}
	if _, err := l.conn.Write([]byte(id + "\n")); err != nil {
		return fmt.Errorf("failed to forward over %s: %w", l.port, err)
	}
	return nil
}

// Close closes the port. Safe to call more than once; the port is closed
// exactly once.
func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.conn == nil {
		return nil
	}
	conn := l.conn
	l.conn = nil
	if err := conn.Close(); err != nil {
		return fmt.Errorf("failed to close serial port %s: %w", l.port, err)
	}
	return nil
}

// Port returns the port name the link was opened on.
func (l *Link) Port() string { return l.port }
