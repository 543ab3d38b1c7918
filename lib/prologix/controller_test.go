package prologix

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// port is an in-memory serial port: writes are captured, reads are served
// from a canned reply.
type port struct {
	out    bytes.Buffer
	in     *bytes.Reader
	closed bool
}

func newPort(reply string) *port {
	return &port{in: bytes.NewReader([]byte(reply))}
}

func (p *port) Write(b []byte) (int, error) { return p.out.Write(b) }
func (p *port) Read(b []byte) (int, error)  { return p.in.Read(b) }
func (p *port) Close() error                { p.closed = true; return nil }

func (p *port) lines() []string {
	return strings.Split(strings.TrimSuffix(p.out.String(), "\n"), "\n")
}

func TestNewController(t *testing.T) {
	p := newPort("")
	_, err := NewController(p, 5, true)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"++verbose 0",
		"++savecfg 0",
		"++addr 5",
		"++mode 1",
		"++auto 0",
		"++eoi 1",
		"++eos 2",
		"++read_tmo_ms 500",
		"++eot_char 10",
		"++eot_enable 1",
		"++savecfg 1",
		"++clr",
	}, p.lines())
}

func TestNewControllerAR488SecondaryAddress(t *testing.T) {
	p := newPort("")
	_, err := NewController(p, 4, false, WithAR488(), WithSecondaryAddress(101))
	require.NoError(t, err)
	lines := p.lines()
	assert.Equal(t, "++addr 4 101", lines[0])
	assert.NotContains(t, lines, "++savecfg 1")
	assert.NotContains(t, lines, "++clr")
}

func TestNewControllerInvalidAddress(t *testing.T) {
	_, err := NewController(newPort(""), 31, false)
	assert.Error(t, err)
	_, err = NewController(newPort(""), 1, false, WithSecondaryAddress(20))
	assert.Error(t, err)
}

func TestSendEscapes(t *testing.T) {
	p := newPort("")
	c, err := NewController(p, 1, false)
	require.NoError(t, err)
	p.out.Reset()

	require.NoError(t, c.Send("  KEY:F1 "))
	require.NoError(t, c.Send("+1.5"))
	assert.Equal(t, "KEY:F1\n\x1b+1.5\n", p.out.String())
}

func TestQuery(t *testing.T) {
	p := newPort("")
	c, err := NewController(p, 1, false)
	require.NoError(t, err)
	p.out.Reset()
	p.in = bytes.NewReader([]byte("UNI-T,UTG962\n"))

	s, err := c.Query("*IDN?")
	require.NoError(t, err)
	assert.Equal(t, "UNI-T,UTG962\n", s)
	assert.Equal(t, "*IDN?\n++read eoi\n", p.out.String())
}

func TestReadRaw(t *testing.T) {
	p := newPort("")
	c, err := NewController(p, 1, false)
	require.NoError(t, err)
	payload := []byte{'#', 0x00, '\n', 0xff, 'B', 'M'}
	p.in = bytes.NewReader(append(append([]byte{}, payload...), '\n'))
	p.out.Reset()

	b, err := c.ReadRaw()
	require.NoError(t, err)
	assert.Equal(t, payload, b)
	assert.Equal(t, "++read eoi\n", p.out.String())

	p.in = bytes.NewReader(nil)
	_, err = c.ReadRaw()
	assert.Error(t, err)
}

func TestClose(t *testing.T) {
	p := newPort("")
	c, err := NewController(p, 1, false)
	require.NoError(t, err)
	p.out.Reset()
	require.NoError(t, c.Close())
	assert.Equal(t, "++loc\n", p.out.String())
	assert.True(t, p.closed)
}

func TestGpibTermString(t *testing.T) {
	assert.Equal(t, `Append LF (\n) to instrument commands`, AppendLF.String())
}
