// Package cmdlog logs the traffic of an instrument transport.
package cmdlog

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/gotmc/utg900"
	"github.com/sirupsen/logrus"
)

func isAscii(s string) bool {
	return !strings.ContainsFunc(s, func(r rune) bool {
		switch {
		case r < 7:
			return true
		case r > 6 && r < 14:
			return false
		case r > 13 && r < 32:
			return true
		case r > 127:
			return true
		}
		return false
	})
}

var (
	CmdStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	R1Style  = lipgloss.NewStyle().Foreground(lipgloss.Color("35"))
	R2Style  = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
)

// Logged wraps a transport and logs every command and response at debug
// level.
type Logged struct {
	utg900.Transport
	log *logrus.Entry
}

var _ utg900.Transport = (*Logged)(nil)

// Wrap returns t logging to l.
func Wrap(t utg900.Transport, l *logrus.Entry) *Logged {
	return &Logged{Transport: t, log: l}
}

func (l *Logged) Send(cmd string) error {
	err := l.Transport.Send(cmd)
	if err != nil {
		l.log.Errorf("cmd %s: error %s", CmdStyle.Render(cmd), err)
	} else {
		l.log.Debugf("%s()", CmdStyle.Render(cmd))
	}
	return err
}

func (l *Logged) Query(q string) (string, error) {
	a, err := l.Transport.Query(q)
	if err != nil {
		l.log.Errorf("query %s: error %s", CmdStyle.Render(q), err)
		return a, err
	}
	l.log.Debugf("%s: %s", CmdStyle.Render(q), Describe(a))
	return a, nil
}

func (l *Logged) ReadRaw() ([]byte, error) {
	b, err := l.Transport.ReadRaw()
	if err != nil {
		l.log.Errorf("read: error %s", err)
		return b, err
	}
	l.log.Debugf("read: %s", Describe(string(b)))
	return b, nil
}

// Describe renders a response for the log: text as a quoted string, short
// binary replies quoted with a hex dump, long binary replies by length and
// leading bytes.
func Describe(a string) string {
	a = strings.TrimSuffix(a, "\n")
	if len(a) == 0 {
		return R1Style.Render("<no response>")
	}
	switch {
	case isAscii(a):
		return R2Style.Render(fmt.Sprintf("[%d] %q", len(a), a))
	case len(a) < 32:
		return R2Style.Render(fmt.Sprintf("[%d] %q (% 2x)", len(a), a, []byte(a)))
	default:
		return R2Style.Render(fmt.Sprintf("[%d] % 2x ...", len(a), []byte(a[:16])))
	}
}
