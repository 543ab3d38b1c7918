// Copyright (c) 2020–2024 The utg900 developers. All rights reserved.
// Project site: https://github.com/gotmc/utg900
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package utg900

import (
	"fmt"
	"strconv"
)

// ChannelSelectKeys returns the keys that leave the device on the wave type
// menu of channel ch. Utility, channel key and Wave are visited twice: after
// a single pass the highlighted channel is not reliable.
func ChannelSelectKeys(ch Channel) ([]Key, error) {
	if err := checkChannel(ch); err != nil {
		return nil, err
	}
	f, err := Lookup(MenuChannel, strconv.Itoa(int(ch)))
	if err != nil {
		return nil, err
	}
	pass := []Key{KeyUtility, f, KeyWave}
	return append(append(make([]Key, 0, 2*len(pass)), pass...), pass...), nil
}

// MeasurementKeys types the number of literal and selects its unit from the
// unit menu of property p.
func MeasurementKeys(p Property, literal string) ([]Key, error) {
	value, unit, err := SplitValueUnit(literal)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	keys, err := EncodeNumber(value)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	u, err := Lookup(p.unitMenu(), unit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	return append(keys, u), nil
}

var page1Labels = map[Property]string{
	Frequency: LabelFreq,
	Amplitude: LabelAmp,
	Offset:    LabelOffset,
	Phase:     LabelPhase,
	Duty:      LabelDuty,
}

// PropertyKeys returns the keys that set property p to literal on the wave
// property pages. The sequence starts and ends on page 1.
func PropertyKeys(p Property, literal string) ([]Key, error) {
	entry, err := MeasurementKeys(p, literal)
	if err != nil {
		return nil, err
	}
	var nav, tail []Key
	switch p {
	case Rise, Fall:
		down, err := Lookup(MenuWaveProps1, LabelPageDown)
		if err != nil {
			return nil, err
		}
		up, err := Lookup(MenuWaveProps2, LabelPageUp)
		if err != nil {
			return nil, err
		}
		label := LabelFall
		nav = []Key{down}
		if p == Rise {
			label = LabelRise
			nav = append(nav, KeyDown)
		}
		k, err := Lookup(MenuWaveProps2, label)
		if err != nil {
			return nil, err
		}
		nav = append(nav, k)
		tail = []Key{up}
	default:
		k, err := Lookup(MenuWaveProps1, page1Labels[p])
		if err != nil {
			return nil, err
		}
		if p == Frequency {
			// Freq without Down first toggles the period display.
			nav = append(nav, KeyDown)
		}
		nav = append(nav, k)
	}
	keys := make([]Key, 0, len(nav)+len(entry)+len(tail))
	keys = append(keys, nav...)
	keys = append(keys, entry...)
	return append(keys, tail...), nil
}

// WaveformKeys returns the keys that select wave w and enter every present
// parameter in PropertyOrder, starting from the wave type menu. Nothing is
// returned unless every parameter encodes.
func WaveformKeys(w WaveType, ps Params) ([]Key, error) {
	if _, err := ParseWave(string(w)); err != nil {
		return nil, err
	}
	sel, err := Lookup(MenuWaveType, string(w))
	if err != nil {
		return nil, err
	}
	keys := []Key{sel}
	for _, p := range PropertyOrder {
		opt := ps.Get(p)
		if !opt.Set {
			continue
		}
		if !w.Supports(p) {
			return nil, fmt.Errorf("%w: %s on %s", ErrUnsupportedParam, p, w)
		}
		pk, err := PropertyKeys(p, opt.Value)
		if err != nil {
			return nil, err
		}
		keys = append(keys, pk...)
	}
	return keys, nil
}

// ArbSelectKeys returns the keys that select the arbitrary wave and point its
// file source at the external file slot.
func ArbSelectKeys() ([]Key, error) {
	var keys []Key
	for _, e := range []struct {
		m Menu
		l string
	}{
		{MenuWaveType, "arb"},
		{MenuArbProps, LabelFile},
		{MenuFileSource, LabelExternal},
	} {
		k, err := Lookup(e.m, e.l)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, nil
}

// ArbPropertyKeys returns the keys that enter every present parameter of an
// arbitrary wave. Only frequency, amplitude, offset and phase apply.
func ArbPropertyKeys(ps Params) ([]Key, error) {
	var keys []Key
	for _, p := range PropertyOrder {
		opt := ps.Get(p)
		if !opt.Set {
			continue
		}
		label, ok := page1Labels[p]
		if !ok || p == Duty {
			return nil, fmt.Errorf("%w: %s on arb", ErrUnsupportedParam, p)
		}
		k, err := Lookup(MenuArbProps, label)
		if err != nil {
			return nil, err
		}
		entry, err := MeasurementKeys(p, opt.Value)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
		keys = append(keys, entry...)
	}
	return keys, nil
}
