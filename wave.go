// Copyright (c) 2020–2024 The utg900 developers. All rights reserved.
// Project site: https://github.com/gotmc/utg900
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package utg900

import "fmt"

// Channel is an output channel of the generator, 1 or 2.
type Channel int

// Valid reports whether the channel exists on the device.
func (ch Channel) Valid() bool {
	return ch == 1 || ch == 2
}

// Other returns the other output channel.
func (ch Channel) Other() Channel {
	if ch == 2 {
		return 1
	}
	return 2
}

func checkChannel(ch Channel) error {
	if !ch.Valid() {
		return fmt.Errorf("%w %d (must be 1 or 2)", ErrInvalidChannel, int(ch))
	}
	return nil
}

// WaveType is a built-in waveform shape.
type WaveType string

// Supported wave types.
const (
	Sine   WaveType = "sine"
	Square WaveType = "square"
	Pulse  WaveType = "pulse"
)

// ParseWave returns the wave type named s.
func ParseWave(s string) (WaveType, error) {
	switch w := WaveType(s); w {
	case Sine, Square, Pulse:
		return w, nil
	}
	return "", fmt.Errorf("%w %q (want sine, square or pulse)", ErrUnknownWave, s)
}

// Supports reports whether the wave type has property p.
func (w WaveType) Supports(p Property) bool {
	switch p {
	case Duty:
		return w == Square || w == Pulse
	case Rise, Fall:
		return w == Pulse
	}
	return true
}

// Opt is an optional measurement literal. The zero Opt is absent; a present
// Opt is always entered on the device, even when its value is zero.
type Opt struct {
	Value string
	Set   bool
}

// Some returns a present Opt holding literal.
func Some(literal string) Opt {
	return Opt{Value: literal, Set: true}
}

// Params holds the optional waveform settings, each a measurement literal
// like "2kHz", "1.5Vpp" or "25%".
type Params struct {
	Frequency Opt
	Amplitude Opt
	Offset    Opt
	Phase     Opt
	Duty      Opt
	Rise      Opt
	Fall      Opt
}

// Property is a settable waveform property.
type Property int

// Properties in the order they must be entered on the device.
const (
	Frequency Property = iota
	Amplitude
	Offset
	Phase
	Duty
	Rise
	Fall
)

// PropertyOrder is the fixed order in which properties are configured.
var PropertyOrder = []Property{Frequency, Amplitude, Offset, Phase, Duty, Rise, Fall}

var propertyNames = [...]string{"frequency", "amplitude", "offset", "phase", "duty", "rise", "fall"}

func (p Property) String() string {
	if p >= 0 && int(p) < len(propertyNames) {
		return propertyNames[p]
	}
	return fmt.Sprintf("property(%d)", int(p))
}

// unitMenu is the menu shown after a number is typed for the property.
func (p Property) unitMenu() Menu {
	switch p {
	case Frequency:
		return MenuFreqUnit
	case Amplitude:
		return MenuAmpUnit
	case Offset:
		return MenuOffsetUnit
	case Phase:
		return MenuPhaseUnit
	case Duty:
		return MenuDutyUnit
	}
	return MenuRiseFallUnit
}

// Get returns the setting for property p.
func (ps Params) Get(p Property) Opt {
	switch p {
	case Frequency:
		return ps.Frequency
	case Amplitude:
		return ps.Amplitude
	case Offset:
		return ps.Offset
	case Phase:
		return ps.Phase
	case Duty:
		return ps.Duty
	case Rise:
		return ps.Rise
	case Fall:
		return ps.Fall
	}
	return Opt{}
}

// Set stores literal as the setting for property p.
func (ps *Params) Set(p Property, literal string) {
	switch p {
	case Frequency:
		ps.Frequency = Some(literal)
	case Amplitude:
		ps.Amplitude = Some(literal)
	case Offset:
		ps.Offset = Some(literal)
	case Phase:
		ps.Phase = Some(literal)
	case Duty:
		ps.Duty = Some(literal)
	case Rise:
		ps.Rise = Some(literal)
	case Fall:
		ps.Fall = Some(literal)
	}
}
