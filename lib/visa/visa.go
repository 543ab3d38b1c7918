// Package visa parses and formats VISA-style instrument resource strings
// such as "USB0::0x6656::0x0834::1485061822::INSTR".
package visa

import (
	"fmt"
	"strconv"
	"strings"
)

// Interface types.
const (
	USB   = "USB"
	ASRL  = "ASRL"
	TCPIP = "TCPIP"
)

// Resource is a parsed resource string.
type Resource struct {
	Interface string // USB, ASRL or TCPIP
	Board     int

	// USB
	Vendor  uint16
	Product uint16
	Serial  string

	// ASRL; Port is the serial device, GPIB the Prologix primary address
	// (-1 when absent).
	Port string
	GPIB int

	// TCPIP
	Host     string
	TCPPort  int
	Resource string // INSTR or SOCKET
}

// Parse parses s. A bare path starting with "/dev/" or "COM" is taken as an
// ASRL resource on that port.
func Parse(s string) (Resource, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "/dev/") || strings.HasPrefix(strings.ToUpper(s), "COM") {
		return Resource{Interface: ASRL, Port: s, GPIB: -1, Resource: "INSTR"}, nil
	}
	parts := strings.Split(s, "::")
	head := strings.ToUpper(parts[0])
	var r Resource
	var err error
	switch {
	case strings.HasPrefix(head, USB):
		r.Interface = USB
		r.Board, err = board(head[len(USB):])
		if err != nil {
			return r, fmt.Errorf("%s: %w", s, err)
		}
		err = r.parseUSB(parts[1:])
	case strings.HasPrefix(head, ASRL):
		r.Interface = ASRL
		err = r.parseASRL(parts[0][len(ASRL):], parts[1:])
	case strings.HasPrefix(head, TCPIP):
		r.Interface = TCPIP
		r.Board, err = board(head[len(TCPIP):])
		if err != nil {
			return r, fmt.Errorf("%s: %w", s, err)
		}
		err = r.parseTCPIP(parts[1:])
	default:
		return r, fmt.Errorf("unsupported resource %q", s)
	}
	if err != nil {
		return r, fmt.Errorf("%s: %w", s, err)
	}
	return r, nil
}

func board(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid board number %q", s)
	}
	return n, nil
}

func parseID(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid USB id %q", s)
	}
	return uint16(v), nil
}

// USB<board>::<vid>::<pid>[::<serial>][::INSTR]
func (r *Resource) parseUSB(fields []string) error {
	if n := len(fields); n > 0 && strings.EqualFold(fields[n-1], "INSTR") {
		fields = fields[:n-1]
	}
	r.Resource = "INSTR"
	if len(fields) < 2 || len(fields) > 3 {
		return fmt.Errorf("want vendor::product[::serial]")
	}
	var err error
	if r.Vendor, err = parseID(fields[0]); err != nil {
		return err
	}
	if r.Product, err = parseID(fields[1]); err != nil {
		return err
	}
	if len(fields) == 3 {
		r.Serial = fields[2]
	}
	return nil
}

// ASRL<port>[::GPIB<addr>][::INSTR]
func (r *Resource) parseASRL(port string, fields []string) error {
	if port == "" {
		return fmt.Errorf("missing serial port")
	}
	if !strings.HasPrefix(port, "/") && !strings.HasPrefix(strings.ToUpper(port), "COM") {
		port = "/dev/" + port
	}
	r.Port = port
	r.GPIB = -1
	r.Resource = "INSTR"
	for _, f := range fields {
		switch u := strings.ToUpper(f); {
		case u == "INSTR":
		case strings.HasPrefix(u, "GPIB"):
			addr, err := strconv.Atoi(u[len("GPIB"):])
			if err != nil || addr < 0 || addr > 30 {
				return fmt.Errorf("invalid GPIB address %q (must be 0-30)", f)
			}
			r.GPIB = addr
		default:
			return fmt.Errorf("unexpected field %q", f)
		}
	}
	return nil
}

// TCPIP<board>::<host>::<port>::SOCKET
func (r *Resource) parseTCPIP(fields []string) error {
	if len(fields) != 3 || !strings.EqualFold(fields[2], "SOCKET") {
		return fmt.Errorf("want host::port::SOCKET")
	}
	r.Host = fields[0]
	p, err := strconv.Atoi(fields[1])
	if err != nil || p <= 0 || p > 65535 {
		return fmt.Errorf("invalid port %q", fields[1])
	}
	r.TCPPort = p
	r.Resource = "SOCKET"
	return nil
}

func (r Resource) String() string {
	switch r.Interface {
	case USB:
		s := fmt.Sprintf("USB%d::0x%04X::0x%04X", r.Board, r.Vendor, r.Product)
		if r.Serial != "" {
			s += "::" + r.Serial
		}
		return s + "::INSTR"
	case ASRL:
		s := ASRL + r.Port
		if r.GPIB >= 0 {
			s += fmt.Sprintf("::GPIB%d", r.GPIB)
		}
		return s + "::INSTR"
	case TCPIP:
		return fmt.Sprintf("TCPIP%d::%s::%d::SOCKET", r.Board, r.Host, r.TCPPort)
	}
	return fmt.Sprintf("%s?", r.Interface)
}
