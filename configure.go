// Copyright (c) 2020–2024 The utg900 developers. All rights reserved.
// Project site: https://github.com/gotmc/utg900
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package utg900

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Configure sets up channel ch to generate wave w with the present
// parameters, then switches the channel on. The whole key sequence is
// encoded before anything is sent, so a bad parameter leaves the device
// untouched. A transport failure part way through leaves the menus in an
// unknown position; call Reset before continuing.
func (s *Session) Configure(ch Channel, w WaveType, ps Params) error {
	if err := checkChannel(ch); err != nil {
		return err
	}
	keys, err := WaveformKeys(w, ps)
	if err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"channel": int(ch), "wave": w}).Info("configure")
	return s.reconfigure(ch, func() error {
		return s.press(keys...)
	})
}

func (s *Session) reconfigure(ch Channel, apply func() error) error {
	if err := s.Disable(ch); err != nil {
		return err
	}
	if err := s.SelectChannel(ch); err != nil {
		return err
	}
	if err := apply(); err != nil {
		return err
	}
	return s.Enable(ch)
}

// WaveSource supplies the line records of an arbitrary waveform definition.
type WaveSource interface {
	Lines() ([]string, error)
}

// FileSource reads waveform records from the named file, one per line.
type FileSource string

// Lines returns the lines of the file without their line terminators.
func (f FileSource) Lines() ([]string, error) {
	fd, err := os.Open(string(f))
	if err != nil {
		return nil, err
	}
	defer fd.Close()
	var lines []string
	sc := bufio.NewScanner(fd)
	for sc.Scan() {
		lines = append(lines, strings.TrimRight(sc.Text(), "\r"))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", string(f), err)
	}
	return lines, nil
}

// LineSource is a WaveSource backed by records already in memory.
type LineSource []string

// Lines returns the records.
func (l LineSource) Lines() ([]string, error) { return l, nil }

// ConfigureArbitrary uploads the records of src to the external file slot of
// channel ch, applies frequency, amplitude, offset and phase, then switches
// the channel on. Records are sent verbatim and in order.
func (s *Session) ConfigureArbitrary(ch Channel, src WaveSource, ps Params) error {
	if err := checkChannel(ch); err != nil {
		return err
	}
	sel, err := ArbSelectKeys()
	if err != nil {
		return err
	}
	props, err := ArbPropertyKeys(ps)
	if err != nil {
		return err
	}
	lines, err := src.Lines()
	if err != nil {
		return fmt.Errorf("arbitrary wave source: %w", err)
	}
	s.log.WithFields(logrus.Fields{"channel": int(ch), "records": len(lines)}).Info("configure arbitrary")
	return s.reconfigure(ch, func() error {
		if err := s.press(sel...); err != nil {
			return err
		}
		for _, line := range lines {
			if err := s.send(line); err != nil {
				return err
			}
		}
		return s.press(props...)
	})
}
