// Package socket is a raw SCPI transport over TCP, for instruments reached
// through a LAN bridge.
package socket

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultTimeout bounds each read.
const DefaultTimeout = 5 * time.Second

// quietGap ends a binary read once data has started arriving.
const quietGap = 200 * time.Millisecond

// Conn is a newline terminated command connection.
type Conn struct {
	c       net.Conn
	br      *bufio.Reader
	timeout time.Duration
	log     *logrus.Entry
}

// Option applies an option to the connection.
type Option func(*Conn)

// WithTimeout sets the read timeout.
func WithTimeout(d time.Duration) Option { return func(c *Conn) { c.timeout = d } }

// WithLogger logs traffic at debug level.
func WithLogger(l *logrus.Entry) Option { return func(c *Conn) { c.log = l } }

// Dial connects to host:port.
func Dial(host string, port int, opts ...Option) (*Conn, error) {
	addr := net.JoinHostPort(host, fmt.Sprint(port))
	nc, err := net.DialTimeout("tcp", addr, DefaultTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}
	return New(nc, opts...), nil
}

// New wraps an established connection.
func New(nc net.Conn, opts ...Option) *Conn {
	c := &Conn{c: nc, br: bufio.NewReader(nc), timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Conn) debugf(format string, a ...any) {
	if c.log != nil {
		c.log.Debugf(format, a...)
	}
}

// Send writes cmd and a newline.
func (c *Conn) Send(cmd string) error {
	cmd = strings.TrimSpace(cmd) + "\n"
	c.debugf("cmd %q", cmd)
	if err := c.c.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return err
	}
	_, err := c.c.Write([]byte(cmd))
	return err
}

// Query sends cmd and returns one reply line, terminator included.
func (c *Conn) Query(cmd string) (string, error) {
	if err := c.Send(cmd); err != nil {
		return "", err
	}
	if err := c.c.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return "", err
	}
	s, err := c.br.ReadString('\n')
	c.debugf("read data: %q", s)
	return s, err
}

// ReadRaw reads binary data until the peer goes quiet or closes the
// connection.
func (c *Conn) ReadRaw() ([]byte, error) {
	var buf bytes.Buffer
	chunk := make([]byte, 4096)
	for {
		wait := c.timeout
		if buf.Len() > 0 && quietGap < wait {
			wait = quietGap
		}
		if err := c.c.SetReadDeadline(time.Now().Add(wait)); err != nil {
			return nil, err
		}
		n, err := c.br.Read(chunk)
		buf.Write(chunk[:n])
		if err == nil {
			continue
		}
		if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, io.EOF) {
			break
		}
		return buf.Bytes(), err
	}
	if buf.Len() == 0 {
		return nil, fmt.Errorf("no data from instrument")
	}
	c.debugf("read %d raw bytes", buf.Len())
	return buf.Bytes(), nil
}

// Close closes the connection.
func (c *Conn) Close() error {
	return c.c.Close()
}
