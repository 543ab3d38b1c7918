// Package usbtmc implements the USB Test & Measurement Class bulk protocol
// on top of gousb. The UTG900 enumerates as a USBTMC device.
package usbtmc

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"
)

// Bulk message IDs.
const (
	msgDevDepMsgOut        = 1
	msgRequestDevDepMsgIn  = 2
	msgDevDepMsgIn         = 2
	headerLen              = 12
	attrEOM                = 0x01
	DefaultMaxTransferSize = 1 << 20
	DefaultTimeout         = 5 * time.Second
)

// bulkIn and bulkOut are the endpoint halves used by Conn; *gousb.InEndpoint
// and *gousb.OutEndpoint satisfy them.
type bulkIn interface {
	ReadContext(ctx context.Context, buf []byte) (int, error)
}

type bulkOut interface {
	WriteContext(ctx context.Context, buf []byte) (int, error)
}

// Conn is a USBTMC session on a pair of bulk endpoints.
type Conn struct {
	in      bulkIn
	out     bulkOut
	tag     byte
	maxSize uint32
	timeout time.Duration
	term    byte
	closer  func() error
}

// NewConn returns a Conn over the given endpoints.
func NewConn(in bulkIn, out bulkOut) *Conn {
	return &Conn{
		in:      in,
		out:     out,
		maxSize: DefaultMaxTransferSize,
		timeout: DefaultTimeout,
		term:    '\n',
	}
}

// SetTimeout sets the timeout of each bulk transfer.
func (c *Conn) SetTimeout(d time.Duration) { c.timeout = d }

// nextTag returns the next bTag. Valid tags are 1 to 255.
func (c *Conn) nextTag() byte {
	c.tag++
	if c.tag == 0 {
		c.tag = 1
	}
	return c.tag
}

func header(msgID, tag byte, size uint32, attr byte) []byte {
	h := make([]byte, headerLen)
	h[0] = msgID
	h[1] = tag
	h[2] = ^tag
	binary.LittleEndian.PutUint32(h[4:8], size)
	h[8] = attr
	return h
}

// encodeDevDepMsgOut frames data as a single DEV_DEP_MSG_OUT transfer,
// padded to a multiple of four bytes.
func encodeDevDepMsgOut(tag byte, data []byte) []byte {
	msg := append(header(msgDevDepMsgOut, tag, uint32(len(data)), attrEOM), data...)
	for len(msg)%4 != 0 {
		msg = append(msg, 0)
	}
	return msg
}

// encodeRequestDevDepMsgIn asks the device for up to size bytes.
func encodeRequestDevDepMsgIn(tag byte, size uint32) []byte {
	return header(msgRequestDevDepMsgIn, tag, size, 0)
}

// decodeDevDepMsgIn checks the header of a DEV_DEP_MSG_IN transfer and
// returns the announced transfer size and the EOM flag.
func decodeDevDepMsgIn(tag byte, h []byte) (size uint32, eom bool, err error) {
	if len(h) < headerLen {
		return 0, false, fmt.Errorf("short usbtmc header: %d bytes", len(h))
	}
	if h[0] != msgDevDepMsgIn {
		return 0, false, fmt.Errorf("unexpected usbtmc message id %d", h[0])
	}
	if h[1] != tag || h[2] != ^tag {
		return 0, false, fmt.Errorf("usbtmc tag mismatch: sent %d, got %d/%d", tag, h[1], h[2])
	}
	return binary.LittleEndian.Uint32(h[4:8]), h[8]&attrEOM != 0, nil
}

func (c *Conn) write(b []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	n, err := c.out.WriteContext(ctx, b)
	if err != nil {
		return fmt.Errorf("usbtmc write: %w", err)
	}
	if n != len(b) {
		return fmt.Errorf("usbtmc short write: wrote %d of %d bytes", n, len(b))
	}
	return nil
}

func (c *Conn) read(buf []byte) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	n, err := c.in.ReadContext(ctx, buf)
	if err != nil {
		return n, fmt.Errorf("usbtmc read: %w", err)
	}
	return n, nil
}

// Send writes cmd followed by the terminator.
func (c *Conn) Send(cmd string) error {
	return c.write(encodeDevDepMsgOut(c.nextTag(), append([]byte(cmd), c.term)))
}

// ReadRaw reads one complete device message, across as many transfers as
// the device needs to reach EOM.
func (c *Conn) ReadRaw() ([]byte, error) {
	var msg []byte
	buf := make([]byte, headerLen+int(c.maxSize)+3)
	for {
		tag := c.nextTag()
		if err := c.write(encodeRequestDevDepMsgIn(tag, c.maxSize)); err != nil {
			return nil, err
		}
		n := 0
		for n < headerLen {
			m, err := c.read(buf[n:])
			if err != nil {
				return nil, err
			}
			if m == 0 {
				return nil, fmt.Errorf("usbtmc read: empty transfer")
			}
			n += m
		}
		size, eom, err := decodeDevDepMsgIn(tag, buf[:n])
		if err != nil {
			return nil, err
		}
		if size > c.maxSize {
			return nil, fmt.Errorf("usbtmc transfer of %d bytes exceeds requested %d", size, c.maxSize)
		}
		got := buf[headerLen:n]
		for uint32(len(got)) < size {
			// The rest of a long transfer arrives in further reads.
			m, err := c.read(buf[n:])
			if err != nil {
				return nil, err
			}
			if m == 0 {
				return nil, fmt.Errorf("usbtmc transfer truncated at %d of %d bytes", len(got), size)
			}
			n += m
			got = buf[headerLen:n]
		}
		msg = append(msg, got[:size]...)
		if eom {
			return msg, nil
		}
	}
}

// Query sends cmd and returns the reply as a string.
func (c *Conn) Query(cmd string) (string, error) {
	if err := c.Send(cmd); err != nil {
		return "", err
	}
	b, err := c.ReadRaw()
	return string(b), err
}

// Close releases the device.
func (c *Conn) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}
