// Copyright (c) 2020–2024 The utg900 developers. All rights reserved.
// Project site: https://github.com/gotmc/utg900
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package utg900

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. The typed errors below match them with errors.Is.
var (
	ErrUnknownMenuLabel     = errors.New("unknown menu label")
	ErrInvalidDigit         = errors.New("invalid digit")
	ErrMalformedMeasurement = errors.New("malformed measurement")
	ErrTransport            = errors.New("transport failure")
	ErrCaptureTruncated     = errors.New("capture truncated")
	ErrInvalidChannel       = errors.New("invalid channel")
	ErrUnknownWave          = errors.New("unknown wave type")
	ErrUnsupportedParam     = errors.New("parameter not supported for wave type")
)

// UnknownMenuLabelError reports a label missing from a menu table, along with
// the labels the menu does know.
type UnknownMenuLabelError struct {
	Menu  Menu
	Label string
	Valid []string
}

func (e *UnknownMenuLabelError) Error() string {
	return fmt.Sprintf("invalid key %q for menu %s, valid keys: [%s]",
		e.Label, e.Menu, strings.Join(e.Valid, ", "))
}

func (e *UnknownMenuLabelError) Is(target error) bool { return target == ErrUnknownMenuLabel }

// InvalidDigitError reports a character that has no numeric keypad key.
type InvalidDigitError struct {
	Char  rune
	Input string
}

func (e *InvalidDigitError) Error() string {
	return fmt.Sprintf("could not extract key name for %q in %q", e.Char, e.Input)
}

func (e *InvalidDigitError) Is(target error) bool { return target == ErrInvalidDigit }

// MalformedMeasurementError reports a literal that is not <number><unit>.
type MalformedMeasurementError struct {
	Input string
}

func (e *MalformedMeasurementError) Error() string {
	return fmt.Sprintf("could not extract unit value from %q", e.Input)
}

func (e *MalformedMeasurementError) Is(target error) bool { return target == ErrMalformedMeasurement }

// TransportError wraps a failed exchange with the instrument. After one of
// these the menu position of the device is unknown and the session must be
// reset.
type TransportError struct {
	Op      string // send, read or query
	Command string
	Err     error
}

func (e *TransportError) Error() string {
	if e.Command == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %q: %s", e.Op, e.Command, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }
