// Copyright (c) 2020–2024 The utg900 developers. All rights reserved.
// Project site: https://github.com/gotmc/utg900
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

// Package utg900 drives a UNI-T UTG900 series waveform generator by
// simulating front-panel key presses over its remote control bus.
package utg900

import (
	"io"
	"strings"
	"time"

	"github.com/gotmc/query"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

// Transport is a blocking command/response connection to the instrument.
// Query makes every Transport a query.Querier.
type Transport interface {
	Send(cmd string) error
	ReadRaw() ([]byte, error)
	Query(cmd string) (string, error)
	Close() error
}

// Protocol settle delays.
const (
	DefaultSettleDelay  = 100 * time.Millisecond
	DefaultCaptureDelay = 400 * time.Millisecond
)

// Session owns the connection to one generator and the cached output state
// of its two channels. The device offers no channel status query, so the
// cache is the only record of which outputs are on. A Session is not safe
// for concurrent use.
type Session struct {
	t            Transport
	enabled      [2]bool
	log          *logrus.Entry
	sleep        func(time.Duration)
	now          func() time.Time
	settleDelay  time.Duration
	captureDelay time.Duration
}

// SessionOption applies an option to the session.
type SessionOption func(*Session)

// WithLogger sets the logger used for operations and key presses.
func WithLogger(l *logrus.Entry) SessionOption { return func(s *Session) { s.log = l } }

// WithSleep replaces time.Sleep for the settle delays.
func WithSleep(f func(time.Duration)) SessionOption { return func(s *Session) { s.sleep = f } }

// WithClock replaces time.Now, used to name screenshots.
func WithClock(f func() time.Time) SessionOption { return func(s *Session) { s.now = f } }

// WithSettleDelay sets the dwell after channel selection and on/off toggles.
func WithSettleDelay(d time.Duration) SessionOption { return func(s *Session) { s.settleDelay = d } }

// WithCaptureDelay sets the wait between a screen dump request and reading
// the payload.
func WithCaptureDelay(d time.Duration) SessionOption { return func(s *Session) { s.captureDelay = d } }

// NewSession wraps t and resets the device to a known state.
func NewSession(t Transport, opts ...SessionOption) (*Session, error) {
	s := NewSessionNoReset(t, opts...)
	if err := s.Reset(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewSessionNoReset wraps t without touching the device. Both channels are
// assumed off.
func NewSessionNoReset(t Transport, opts ...SessionOption) *Session {
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	s := &Session{
		t:            t,
		log:          logrus.NewEntry(discard),
		sleep:        time.Sleep,
		now:          time.Now,
		settleDelay:  DefaultSettleDelay,
		captureDelay: DefaultCaptureDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enabled reports the cached output state of channel ch.
func (s *Session) Enabled(ch Channel) bool {
	if !ch.Valid() {
		return false
	}
	return s.enabled[ch-1]
}

func (s *Session) send(cmd string) error {
	if err := s.t.Send(cmd); err != nil {
		return &TransportError{Op: "send", Command: cmd, Err: err}
	}
	return nil
}

func (s *Session) press(keys ...Key) error {
	for _, k := range keys {
		s.log.Debugf("key %s", k)
		if err := s.send(k.Command()); err != nil {
			return err
		}
	}
	return nil
}

// Reset sends *RST, unlocks the panel and marks both channels off.
func (s *Session) Reset() error {
	s.log.Info("reset")
	s.enabled = [2]bool{}
	if err := s.send("*RST"); err != nil {
		return err
	}
	return s.Unlock()
}

// Lock disables the front panel keys.
func (s *Session) Lock() error {
	return s.send("System:LOCK on")
}

// Unlock returns the front panel to the user.
func (s *Session) Unlock() error {
	return s.send("System:LOCK off")
}

// Identify returns the *IDN? reply of the device.
func (s *Session) Identify() (string, error) {
	idn, err := query.String(s.t, "*IDN?")
	if err != nil {
		return "", &TransportError{Op: "query", Command: "*IDN?", Err: err}
	}
	return strings.TrimSpace(idn), nil
}

// SelectChannel brings the device to the wave type menu of channel ch,
// wherever the menus currently are.
func (s *Session) SelectChannel(ch Channel) error {
	keys, err := ChannelSelectKeys(ch)
	if err != nil {
		return err
	}
	if err := s.press(keys...); err != nil {
		return err
	}
	s.sleep(s.settleDelay)
	return nil
}

// SetEnabled switches the output of channel ch on or off. The channel key
// flips the output, so nothing is sent when the cached state already
// matches.
func (s *Session) SetEnabled(ch Channel, want bool) error {
	if err := checkChannel(ch); err != nil {
		return err
	}
	if s.enabled[ch-1] == want {
		return nil
	}
	s.log.WithField("channel", int(ch)).Infof("output on=%t", want)
	if err := s.SelectChannel(ch); err != nil {
		return err
	}
	if err := s.press(ChannelKey(ch)); err != nil {
		return err
	}
	s.enabled[ch-1] = want
	if err := s.Unlock(); err != nil {
		return err
	}
	s.sleep(s.settleDelay)
	return nil
}

// Enable switches channel ch on.
func (s *Session) Enable(ch Channel) error { return s.SetEnabled(ch, true) }

// Disable switches channel ch off.
func (s *Session) Disable(ch Channel) error { return s.SetEnabled(ch, false) }

// Close unlocks the panel and closes the transport. Both are attempted; the
// returned error combines whatever failed.
func (s *Session) Close() error {
	return multierr.Combine(s.Unlock(), s.t.Close())
}
