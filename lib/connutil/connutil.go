// Package connutil loads the connection configuration and opens a session
// on the generator it names.
package connutil

import (
	"fmt"

	"github.com/gotmc/utg900"
	"github.com/gotmc/utg900/lib/cmdlog"
	"github.com/gotmc/utg900/lib/prologix"
	"github.com/gotmc/utg900/lib/socket"
	"github.com/gotmc/utg900/lib/usbtmc"
	"github.com/gotmc/utg900/lib/visa"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

// Transport openers, replaced in tests.
var (
	openUSB = func(r visa.Resource, cfg Config) (utg900.Transport, error) {
		c, err := usbtmc.Open(r.Vendor, r.Product, r.Serial)
		if err != nil {
			return nil, err
		}
		c.SetTimeout(cfg.Timeout)
		return c, nil
	}
	openSerial = func(r visa.Resource, cfg Config, log *logrus.Entry) (utg900.Transport, error) {
		addr := cfg.GPIB
		if r.GPIB >= 0 {
			addr = r.GPIB
		}
		return prologix.Open(r.Port, cfg.Baud, addr, prologix.WithLogger(log))
	}
	dialSocket = func(r visa.Resource, cfg Config, log *logrus.Entry) (utg900.Transport, error) {
		return socket.Dial(r.Host, r.TCPPort, socket.WithTimeout(cfg.Timeout), socket.WithLogger(log))
	}
)

// Open opens the transport named by cfg.Addr. Traffic is logged at debug
// level.
func Open(cfg Config, log *logrus.Entry) (utg900.Transport, error) {
	r, err := visa.Parse(cfg.Addr)
	if err != nil {
		return nil, err
	}
	log.Infof("opening %s", r)
	var t utg900.Transport
	switch r.Interface {
	case visa.USB:
		t, err = openUSB(r, cfg)
	case visa.ASRL:
		t, err = openSerial(r, cfg, log)
	case visa.TCPIP:
		t, err = dialSocket(r, cfg, log)
	default:
		return nil, fmt.Errorf("unsupported interface %s", r.Interface)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", cfg.Addr, err)
	}
	return cmdlog.Wrap(t, log), nil
}

// Setup opens the transport and starts a session, which resets the device.
// The returned cleanup unlocks the panel and closes the transport.
func Setup(cfg Config, log *logrus.Entry, opts ...utg900.SessionOption) (s *utg900.Session, cleanup func() error, err error) {
	nocleanup := func() error { return nil }

	t, err := Open(cfg, log)
	if err != nil {
		return nil, nocleanup, err
	}
	opts = append([]utg900.SessionOption{utg900.WithLogger(log)}, opts...)
	s, err = utg900.NewSession(t, opts...)
	if err != nil {
		return nil, nocleanup, multierr.Append(err, t.Close())
	}
	cleanup = func() error {
		if err := s.Close(); err != nil {
			log.Errorf("closing %s: %s", cfg.Addr, err)
			return err
		}
		return nil
	}
	return s, cleanup, nil
}
