// Copyright (c) 2020–2024 The utg900 developers. All rights reserved.
// Project site: https://github.com/gotmc/utg900
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package utg900

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Key is one simulated front-panel key press, such as "F3", "NUM7" or
// "Utility".
type Key string

// Command returns the remote command that presses the key.
func (k Key) Command() string {
	return "KEY:" + string(k)
}

// Navigation and keypad keys. Function keys are produced by the menu tables.
const (
	KeyUtility Key = "Utility"
	KeyWave    Key = "Wave"
	KeyMode    Key = "Mode"
	KeyUp      Key = "Up"
	KeyDown    Key = "Down"
	KeyLeft    Key = "Left"
	KeyRight   Key = "Right"
	KeySymbol  Key = "SYMBOL" // sign
	KeyDot     Key = "DOT"
)

// FKey returns the function (soft) key with the given index.
func FKey(n int) Key {
	return Key(fmt.Sprintf("F%d", n))
}

// NumKey returns the keypad key for digit d.
func NumKey(d int) Key {
	return Key(fmt.Sprintf("NUM%d", d))
}

// ChannelKey returns the output toggle key of channel ch.
func ChannelKey(ch Channel) Key {
	return Key(fmt.Sprintf("CH%d", ch))
}

// Menu identifies an on-screen menu page. The same function key selects a
// different thing on each page.
type Menu int

// Available menus.
const (
	MenuWaveType Menu = iota
	MenuWaveProps1
	MenuWaveProps2
	MenuArbProps
	MenuFreqUnit
	MenuAmpUnit
	MenuOffsetUnit
	MenuRiseFallUnit
	MenuPhaseUnit
	MenuDutyUnit
	MenuChannel
	MenuFileSource
)

var menuDesc = map[Menu]string{
	MenuWaveType:     "wave type",
	MenuWaveProps1:   "wave properties page 1",
	MenuWaveProps2:   "wave properties page 2",
	MenuArbProps:     "arbitrary wave properties",
	MenuFreqUnit:     "frequency unit",
	MenuAmpUnit:      "amplitude unit",
	MenuOffsetUnit:   "offset unit",
	MenuRiseFallUnit: "rise/fall unit",
	MenuPhaseUnit:    "phase unit",
	MenuDutyUnit:     "duty unit",
	MenuChannel:      "channel select",
	MenuFileSource:   "file source",
}

func (m Menu) String() string {
	if s, ok := menuDesc[m]; ok {
		return s
	}
	return fmt.Sprintf("menu(%d)", int(m))
}

// Menu labels used by the navigation code.
const (
	LabelFreq     = "Freq"
	LabelAmp      = "Amp"
	LabelOffset   = "Offset"
	LabelPhase    = "Phase"
	LabelDuty     = "Duty"
	LabelRise     = "Raise" // spelled as on the device
	LabelFall     = "Fall"
	LabelPageDown = "Page Down"
	LabelPageUp   = "Page Up"
	LabelFile     = "File"
	LabelExternal = "External"
)

// menus maps each menu page to its label -> function key table. It is never
// modified after initialization.
var menus = map[Menu]map[string]Key{
	MenuWaveType: {
		"sine":   "F1",
		"square": "F2",
		"pulse":  "F3",
		"ramp":   "F4",
		"arb":    "F5",
		"More":   "F6",
	},
	MenuWaveProps1: {
		LabelFreq:     "F1",
		LabelAmp:      "F2",
		LabelOffset:   "F3",
		LabelPhase:    "F4",
		LabelDuty:     "F5",
		LabelPageDown: "F6",
	},
	MenuWaveProps2: {
		LabelRise:   "F1",
		LabelFall:   "F2",
		LabelPageUp: "F6",
	},
	MenuArbProps: {
		LabelFreq:   "F1",
		LabelAmp:    "F2",
		LabelOffset: "F3",
		LabelPhase:  "F4",
		LabelFile:   "F5",
	},
	MenuFreqUnit: {
		"uHz": "F1",
		"mHz": "F2",
		"Hz":  "F3",
		"kHz": "F4",
		"MHz": "F5",
	},
	MenuAmpUnit: {
		"mVpp":   "F1",
		"Vpp":    "F2",
		"mVrms":  "F3",
		"Vrms":   "F4",
		"Cancel": "F6",
	},
	MenuOffsetUnit: {
		"mV": "F1",
		"V":  "F2",
	},
	MenuRiseFallUnit: {
		"ns": "F1",
		"us": "F2",
		"ms": "F3",
		"s":  "F4",
		"ks": "F5",
	},
	MenuPhaseUnit: {
		"deg": "F1",
	},
	MenuDutyUnit: {
		"%": "F1",
	},
	MenuChannel: {
		"1": "F1",
		"2": "F2",
	},
	MenuFileSource: {
		"Internal":    "F1",
		LabelExternal: "F2",
	},
}

// Lookup returns the function key that selects label on menu m.
func Lookup(m Menu, label string) (Key, error) {
	if k, ok := menus[m][label]; ok {
		return k, nil
	}
	return "", &UnknownMenuLabelError{Menu: m, Label: label, Valid: Labels(m)}
}

// Labels returns the sorted labels of menu m.
func Labels(m Menu) []string {
	labels := make([]string, 0, len(menus[m]))
	for l := range menus[m] {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}

// Menus returns every menu with a table.
func Menus() []Menu {
	ms := make([]Menu, 0, len(menus))
	for m := range menus {
		ms = append(ms, m)
	}
	sort.Slice(ms, func(i, j int) bool { return ms[i] < ms[j] })
	return ms
}

// CheckMenus verifies the menu tables: every entry is a function key F1-F6,
// no page assigns one key to two labels, no menu key can be mistaken for a
// navigation or keypad key, and the page 1/page 2 paging keys are the same
// physical key.
func CheckMenus() error {
	fixed := map[Key]bool{
		KeyUtility: true, KeyWave: true, KeyMode: true, KeyUp: true,
		KeyDown: true, KeyLeft: true, KeyRight: true, KeySymbol: true, KeyDot: true,
	}
	for d := 0; d <= 9; d++ {
		fixed[NumKey(d)] = true
	}
	for _, ch := range []Channel{1, 2} {
		fixed[ChannelKey(ch)] = true
	}
	valid := map[Key]bool{}
	for i := 1; i <= 6; i++ {
		valid[FKey(i)] = true
	}
	for _, m := range Menus() {
		seen := map[Key]string{}
		for _, l := range Labels(m) {
			k := menus[m][l]
			if !valid[k] {
				return fmt.Errorf("menu %s: label %q maps to %q, not a function key", m, l, k)
			}
			if fixed[k] {
				return fmt.Errorf("menu %s: label %q collides with navigation key %q", m, l, k)
			}
			if prev, dup := seen[k]; dup {
				return fmt.Errorf("menu %s: %q and %q both map to %s", m, prev, l, k)
			}
			seen[k] = l
		}
	}
	if down, up := menus[MenuWaveProps1][LabelPageDown], menus[MenuWaveProps2][LabelPageUp]; down != up {
		return fmt.Errorf("paging keys differ: page down %s, page up %s", down, up)
	}
	return nil
}

// EncodeNumber converts a numeric string into keypad presses. Comma and dot
// both press the decimal point key.
func EncodeNumber(num string) ([]Key, error) {
	keys := make([]Key, 0, len(num))
	for _, r := range num {
		switch {
		case r >= '0' && r <= '9':
			keys = append(keys, NumKey(int(r-'0')))
		case r == '-':
			keys = append(keys, KeySymbol)
		case r == '.' || r == ',':
			keys = append(keys, KeyDot)
		default:
			return nil, &InvalidDigitError{Char: r, Input: num}
		}
	}
	return keys, nil
}

var measurementRE = regexp.MustCompile(`^(-?(?:[0-9]+[.,]?[0-9]*|[.,][0-9]+))([a-zA-Z%]+)$`)

// SplitValueUnit splits a measurement literal such as "2kHz" or "-150mVpp"
// into its number and unit.
func SplitValueUnit(literal string) (value, unit string, err error) {
	m := measurementRE.FindStringSubmatch(strings.TrimSpace(literal))
	if m == nil {
		return "", "", &MalformedMeasurementError{Input: literal}
	}
	return m[1], m[2], nil
}
