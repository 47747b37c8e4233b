// Package hostconsole adapts a real terminal to a device.Device character
// device, so a host build can exercise the device registry against an
// actual TTY instead of only a synthetic test double: raw-mode stdin/stdout
// wrapped for a simulated serial peripheral.
package hostconsole

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"github.com/TriHexagon/Polaris/device"
)

// ErrNoTTY is returned if standard input is not a terminal.
var ErrNoTTY = errors.New("hostconsole: stdin is not a tty")

// Console owns the raw terminal state for the lifetime of one registration.
// Reads pull directly from the input file descriptor, matching tty.Console's
// readTerminal loop minus the keyboard-channel fan-out this core has no use
// for; writes go through a term.Terminal the same way tty.Console.Writer does.
type Console struct {
	fd    int
	state *term.State
	in    io.Reader
	out   io.Writer

	mu     sync.Mutex
	closed bool
}

// New puts sin into raw mode and returns a Console wrapping sin/sout. The
// caller must call Close to restore the terminal, normally via
// Registry.Unregister's EventUnregistered notification or a defer.
func New(sin, sout *os.File) (*Console, error) {
	fd := int(sin.Fd())
	if !term.IsTerminal(fd) {
		return nil, ErrNoTTY
	}

	saved, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("hostconsole: MakeRaw: %w", err)
	}

	c := &Console{
		fd:    fd,
		state: saved,
		in:    sin,
		out:   term.NewTerminal(sout, ""),
	}

	if err := c.setMinimalCanon(); err != nil {
		term.Restore(fd, saved)
		return nil, err
	}
	return c, nil
}

// setMinimalCanon configures VMIN/VTIME so Read returns as soon as at least
// one byte is available, matching tty.Console's setTerminalParams(1, 0).
func (c *Console) setMinimalCanon() error {
	termIO, err := unix.IoctlGetTermios(c.fd, ioctlGetTermios)
	if err != nil {
		return fmt.Errorf("hostconsole: IoctlGetTermios: %w", err)
	}
	termIO.Cc[unix.VMIN] = 1
	termIO.Cc[unix.VTIME] = 0
	if err := unix.IoctlSetTermios(c.fd, ioctlSetTermios, termIO); err != nil {
		return fmt.Errorf("hostconsole: IoctlSetTermios: %w", err)
	}
	return nil
}

// Close restores the terminal to its state before New was called. Safe to
// call more than once.
func (c *Console) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return term.Restore(c.fd, c.state)
}

// Read implements the device.Device.Read signature, ignoring off since a
// terminal has no addressable offset.
func (c *Console) Read(off int64, p []byte) (int, error) {
	return c.in.Read(p)
}

// Write implements the device.Device.Write signature.
func (c *Console) Write(off int64, p []byte) (int, error) {
	return c.out.Write(p)
}

// AsDevice wraps c as a device.Device named name, ready to pass to
// device.Registry.Register. Number identifies the device among others of
// the same type, as dev_registerDevice requires.
func (c *Console) AsDevice(name string, number uint32) *device.Device {
	return &device.Device{
		Name:   name,
		Number: number,
		Type:   device.TypeChar,
		Read:   c.Read,
		Write:  c.Write,
	}
}
