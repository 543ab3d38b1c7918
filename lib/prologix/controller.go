// Copyright (c) 2020–2024 The utg900 developers. All rights reserved.
// Project site: https://github.com/gotmc/utg900
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

// Package prologix talks to an instrument through a Prologix GPIB-USB
// controller (or an Arduino AR488) on a virtual COM port.
package prologix

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.bug.st/serial"
	"go.uber.org/multierr"
)

// Controller models a GPIB controller-in-charge.
type Controller struct {
	rw               io.ReadWriter
	br               *bufio.Reader
	primaryAddr      int
	hasSecondaryAddr bool
	secondaryAddr    int
	auto             bool
	usbTerm          byte
	eotChar          byte
	gpibTerm         GpibTerm
	writeDelay       time.Duration
	readTimeout      time.Duration
	log              *logrus.Entry // nil unless WithLogger
	ar488            bool          // compatibility with Arduino AR488 - see WithAR488 documentation for details.
}

// ControllerOption applies an option to the controller.
type ControllerOption func(*Controller)

// NewController creates a GPIB controller-in-charge at the given address
// talking over rw. Enable clear to send the Selected Device Clear (SDC)
// message to the GPIB address.
func NewController(
	rw io.ReadWriter,
	addr int,
	clear bool,
	opts ...ControllerOption,
) (*Controller, error) {
	c := Controller{
		rw:          rw,
		br:          bufio.NewReader(rw),
		primaryAddr: addr,
		auto:        false,
		usbTerm:     '\n',
		eotChar:     '\n',
		gpibTerm:    AppendLF,
		readTimeout: 500 * time.Millisecond,
	}

	// Apply options using the functional option pattern.
	for _, opt := range opts {
		opt(&c)
	}

	if !isPrimaryAddressValid(c.primaryAddr) {
		return nil, fmt.Errorf("invalid primary address %d (must by 0-30)", c.primaryAddr)
	}

	addrCmd := fmt.Sprintf("addr %d", c.primaryAddr)
	if c.hasSecondaryAddr {
		if !isSecondaryAddressValid(c.secondaryAddr) {
			return nil, fmt.Errorf("invalid secondary address %d (must be 96-126)", c.secondaryAddr)
		}
		addrCmd = fmt.Sprintf("addr %d %d", c.primaryAddr, c.secondaryAddr)
	}
	cmds := []string{}
	if !c.ar488 {
		cmds = append(cmds,
			"verbose 0", // turn off verbosity if on
			"savecfg 0", // Disable saving of configuration parameters in EPROM
		)
	}
	cmds = append(cmds,
		addrCmd,  // Set the primary address.
		"mode 1", // Switch to controller mode.
		"auto 0", // Turn off read-after-write and address instrument to listen.
		"eoi 1",  // Enable EOI assertion with last character.
		fmt.Sprintf("eos %d", c.gpibTerm),
		fmt.Sprintf("read_tmo_ms %d", c.readTimeout.Milliseconds()),
		fmt.Sprintf("eot_char %d", c.eotChar),
		"eot_enable 1", // Append eot_char when EOI detected.
	)
	if !c.ar488 {
		cmds = append(cmds, "savecfg 1")
	}
	if clear {
		cmds = append(cmds, "clr")
	}
	for _, cmd := range cmds {
		if err := c.CommandController(cmd); err != nil {
			return nil, err
		}
	}

	return &c, nil
}

// WithSecondaryAddress sets a secondary address, which must be in the range of
// 96 and 126, inclusive.
func WithSecondaryAddress(addr int) ControllerOption {
	return func(c *Controller) {
		c.hasSecondaryAddr = true
		c.secondaryAddr = addr
	}
}

// WithLogger causes commands and responses to be logged at debug level.
func WithLogger(l *logrus.Entry) ControllerOption { return func(c *Controller) { c.log = l } }

// WithAR488 slightly alters the init commands, for compatiblity with the
// Arduino-based AR488. Specifically, we do not emit 'verbose 0', nor do
// we toggle savecfg.
func WithAR488() ControllerOption { return func(c *Controller) { c.ar488 = true } }

// WithWriteDelay pauses before every write. Some instruments drop commands
// that arrive back to back.
func WithWriteDelay(d time.Duration) ControllerOption {
	return func(c *Controller) { c.writeDelay = d }
}

// WithGPIBTermination sets the terminator the controller appends to
// instrument commands on the bus.
func WithGPIBTermination(term GpibTerm) ControllerOption {
	return func(c *Controller) { c.gpibTerm = term }
}

// WithReadTimeout sets the GPIB read timeout of the controller.
func WithReadTimeout(d time.Duration) ControllerOption {
	return func(c *Controller) { c.readTimeout = d }
}

func (c *Controller) debugf(format string, a ...any) {
	if c.log != nil {
		c.log.Debugf(format, a...)
	}
}

func (c *Controller) write(s string) error {
	if c.writeDelay > 0 {
		time.Sleep(c.writeDelay)
	}
	_, err := io.WriteString(c.rw, s)
	return err
}

// Send sends a SCPI/ASCII command to the instrument at the currently assigned
// GPIB address. Leading and trailing whitespace is removed and the USB
// terminator appended. ESC, CR, LF and '+' inside the command are escaped so
// the controller passes them through to the bus.
func (c *Controller) Send(cmd string) error {
	cmd = fmt.Sprintf("%s%c", escape(strings.TrimSpace(cmd)), c.usbTerm)
	c.debugf("cmd %q", cmd)
	return c.write(cmd)
}

// Command formats according to a format specifier if provided and sends the
// result to the instrument.
func (c *Controller) Command(format string, a ...any) error {
	cmd := format
	if a != nil {
		cmd = fmt.Sprintf(format, a...)
	}
	return c.Send(cmd)
}

// Query sends cmd to the instrument and returns its reply up to and including
// the EOT character.
func (c *Controller) Query(cmd string) (string, error) {
	if err := c.Send(cmd); err != nil {
		return "", fmt.Errorf("error writing command: %s", err)
	}
	if err := c.readAfterWrite(); err != nil {
		return "", err
	}
	s, err := c.br.ReadString(c.eotChar)
	c.debugf("read data: %q", s)
	if err == io.EOF && s != "" {
		return s, nil
	}
	return s, err
}

// ReadRaw reads one binary response from the instrument. The data may
// contain any byte, so reading continues until the port goes quiet; the EOT
// character the controller appends is removed.
func (c *Controller) ReadRaw() ([]byte, error) {
	if err := c.readAfterWrite(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	chunk := make([]byte, 4096)
	for {
		n, err := c.br.Read(chunk)
		buf.Write(chunk[:n])
		if n == 0 || errors.Is(err, io.EOF) || errors.Is(err, os.ErrDeadlineExceeded) {
			break
		}
		if err != nil {
			return buf.Bytes(), err
		}
	}
	data := buf.Bytes()
	if len(data) == 0 {
		return nil, fmt.Errorf("no data from instrument")
	}
	if data[len(data)-1] == c.eotChar {
		data = data[:len(data)-1]
	}
	c.debugf("read %d raw bytes", len(data))
	return data, nil
}

// If read-after-write is disabled, need to tell the Prologix controller to
// read.
func (c *Controller) readAfterWrite() error {
	if c.auto {
		return nil
	}
	if err := c.CommandController("read eoi"); err != nil {
		return fmt.Errorf("error sending `++read eoi` command: %s", err)
	}
	return nil
}

// QueryController sends the given command to the Prologix controller and
// returns its response as a string.
func (c *Controller) QueryController(cmd string) (string, error) {
	err := c.CommandController(cmd)
	if err != nil {
		return "", err
	}
	s, err := c.br.ReadString(c.eotChar)
	c.debugf("read data: %q", s)
	return s, err
}

// CommandController sends the given command to the Prologix controller. To
// indicate this is a command for the Prologix controller, thereby not
// transmitting to the instrument over GPIB, two plus signs `++` are prepended.
// Addtionally, a new line is appended to act as the USB termination character.
func (c *Controller) CommandController(cmd string) error {
	cmd = fmt.Sprintf("++%s%c", strings.ToLower(strings.TrimSpace(cmd)), c.usbTerm)
	c.debugf("cmd %q (%2x)", cmd, cmd)
	return c.write(cmd)
}

// FrontPanel returns the instrument to local control when local is true.
func (c *Controller) FrontPanel(local bool) error {
	if local {
		return c.CommandController("loc")
	}
	return c.CommandController("llo")
}

// Close returns the front panel to local control and closes the underlying
// port when it is an io.Closer.
func (c *Controller) Close() error {
	err := c.FrontPanel(true)
	if cl, ok := c.rw.(io.Closer); ok {
		err = multierr.Append(err, cl.Close())
	}
	return err
}

// escape prefixes the characters the controller would otherwise interpret.
func escape(s string) string {
	if !strings.ContainsAny(s, "\x1b\r\n+") {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '\x1b', '\r', '\n', '+':
			b.WriteByte('\x1b')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Open opens the serial port of a Prologix controller and configures it for
// the instrument at GPIB address addr.
func Open(port string, baud int, addr int, opts ...ControllerOption) (*Controller, error) {
	p, err := serial.Open(port, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", port, err)
	}
	c := Controller{readTimeout: 500 * time.Millisecond}
	for _, opt := range opts {
		opt(&c)
	}
	// Wait a little longer than the GPIB timeout so the controller reports
	// first.
	if err := p.SetReadTimeout(c.readTimeout + 500*time.Millisecond); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", port, err)
	}
	if err := p.ResetInputBuffer(); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to flush %s: %w", port, err)
	}
	gpib, err := NewController(p, addr, false, opts...)
	if err != nil {
		p.Close()
		return nil, err
	}
	return gpib, nil
}

// GpibTerm provides the type for the available GPIB terminators.
type GpibTerm int

// Available GPIB terminators for the Prologix Controller.
const (
	AppendCRLF GpibTerm = iota
	AppendCR
	AppendLF
	AppendNothing
)

var gpibTermDesc = map[GpibTerm]string{
	AppendCRLF:    `Append CR+LF (\r\n) to instrument commands`,
	AppendCR:      `Append CR (\r) to instrument commands`,
	AppendLF:      `Append LF (\n) to instrument commands`,
	AppendNothing: `Do not append anything to instrument commands`,
}

func (term GpibTerm) String() string {
	return gpibTermDesc[term]
}

// isPrimaryAddressValid checks that the primary GPIB address is between 0 and
// 30, inclusive.
func isPrimaryAddressValid(addr int) bool {
	if addr < 0 || addr > 30 {
		return false
	}
	return true
}

// isSecondaryAddressValid checks that the secondary GPIB address is between 96
// and 126, inclusive.
func isSecondaryAddressValid(addr int) bool {
	if addr < 96 || addr > 126 {
		return false
	}
	return true
}
