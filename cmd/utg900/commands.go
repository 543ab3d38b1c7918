// Copyright (c) 2020–2024 The utg900 developers. All rights reserved.
// Project site: https://github.com/gotmc/utg900
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gotmc/utg900"
	"github.com/gotmc/utg900/lib/connutil"
	"github.com/gotmc/utg900/lib/find"
	"github.com/sirupsen/logrus"
)

const cmdName = "utg900"

type prop struct {
	key   string
	help  string
	alias string // older spelling accepted on the command line
}

type command struct {
	name  string
	help  string
	props []prop
	run   func(a *app, v values) error
}

var (
	chProp     = prop{key: "ch", help: "Channel 1,2"}
	freqProp   = prop{key: "freq", help: "Frequency [uHz|mHz|Hz|kHz|MHz]"}
	ampProp    = prop{key: "amp", help: "Amplitude [mVpp|Vpp|mVrms|Vrms]"}
	offsetProp = prop{key: "offset", help: "Offset [mV|V]"}
	phaseProp  = prop{key: "phase", help: "Phase [deg]"}
	dutyProp   = prop{key: "duty", help: "Duty [%]"}
	riseProp   = prop{key: "rise", help: "Rise [ns|us|ms|s|ks]", alias: "raised"}
	fallProp   = prop{key: "fall", help: "Fall [ns|us|ms|s|ks]"}

	sineProps   = []prop{chProp, freqProp, ampProp, offsetProp, phaseProp}
	squareProps = append(append([]prop{}, sineProps...), dutyProp)
	pulseProps  = append(append([]prop{}, squareProps...), riseProp, fallProp)
	arbProps    = []prop{chProp, {key: "file", help: "Arbitrary wave file, one record per line"},
		freqProp, ampProp, offsetProp, phaseProp}
)

var propertyOf = map[string]utg900.Property{
	"freq":   utg900.Frequency,
	"amp":    utg900.Amplitude,
	"offset": utg900.Offset,
	"phase":  utg900.Phase,
	"duty":   utg900.Duty,
	"rise":   utg900.Rise,
	"fall":   utg900.Fall,
}

var commands []command

func init() {
	commands = []command{
		{name: "q", help: "Exit"},
		{name: "Q", help: "Exit"},
		{name: "?", help: "Usage help", props: []prop{{key: "command", help: "show help for command"}}, run: runHelp},
		{name: "list", help: "List instrument resources", run: runList},
		{name: "sine", help: "Generate sine wave on channel 1|2", props: sineProps, run: generate(utg900.Sine)},
		{name: "square", help: "Generate square wave on channel 1|2", props: squareProps, run: generate(utg900.Square)},
		{name: "pulse", help: "Generate pulse wave on channel 1|2", props: pulseProps, run: generate(utg900.Pulse)},
		{name: "arb", help: "Generate arbitrary wave from file on channel 1|2", props: arbProps, run: runArb},
		{name: "on", help: "Switch on channel 1|2", props: []prop{chProp}, run: switchOutput(true)},
		{name: "off", help: "Switch off channel 1|2", props: []prop{chProp}, run: switchOutput(false)},
		{name: "reset", help: "Send reset to UTG900 signal generator", run: runReset},
		{name: "idn", help: "Show the identification of the generator", run: runIdn},
		{name: "screen", help: "Take screenshot to 'captureDir'",
			props: []prop{{key: "fileName", help: "Screen capture file name (optional)"}}, run: runScreen},
	}
}

func lookup(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func commandNames() []string {
	names := make([]string, 0, len(commands))
	for _, c := range commands {
		names = append(names, c.name)
	}
	return names
}

// values holds the properties given to a command. A key given with an
// empty value counts as not given.
type values map[string]string

func (v values) channel(def int) (utg900.Channel, error) {
	s, ok := v["ch"]
	if !ok {
		if def == 0 {
			return 0, errors.New("ch=1|2 required")
		}
		return utg900.Channel(def), nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid channel %q", s)
	}
	return utg900.Channel(n), nil
}

func (v values) params() utg900.Params {
	var ps utg900.Params
	for key, p := range propertyOf {
		if s, ok := v[key]; ok {
			ps.Set(p, s)
		}
	}
	return ps
}

// splitProp splits a key=value token.
func splitProp(tok string) (key, value string, ok bool) {
	i := strings.Index(tok, "=")
	if i <= 0 {
		return "", "", false
	}
	return tok[:i], tok[i+1:], true
}

func propKey(props []prop, key string) (string, bool) {
	for _, p := range props {
		if key == p.key || (p.alias != "" && key == p.alias) {
			return p.key, true
		}
	}
	return "", false
}

// takeProps consumes the leading key=value tokens whose key belongs to
// props, in any order, and returns them with the remaining tokens.
func takeProps(tokens []string, props []prop) (values, []string) {
	v := values{}
	for len(tokens) > 0 {
		k, val, ok := splitProp(tokens[0])
		if !ok {
			break
		}
		key, ok := propKey(props, k)
		if !ok {
			break
		}
		if val != "" {
			v[key] = val
		}
		tokens = tokens[1:]
	}
	return v, tokens
}

type app struct {
	cfg  connutil.Config
	log  *logrus.Entry
	out  io.Writer
	in   *bufio.Scanner // nil in batch mode
	conv utg900.Converter

	open func() (*utg900.Session, func() error, error)
	list func(find.FilterFn) (find.Devices, error)

	s       *utg900.Session
	cleanup func() error
}

// session opens the generator on first use.
func (a *app) session() (*utg900.Session, error) {
	if a.s != nil {
		return a.s, nil
	}
	a.log.Info("opening generator")
	s, cleanup, err := a.open()
	if err != nil {
		return nil, err
	}
	a.s, a.cleanup = s, cleanup
	return s, nil
}

func (a *app) close() error {
	if a.s == nil {
		return nil
	}
	a.log.Info("closing generator")
	err := a.cleanup()
	a.s, a.cleanup = nil, nil
	return err
}

// run executes args as a chain of batch commands, or prompts for commands
// when args is empty and a.in is set.
func (a *app) run(args []string) error {
	if len(args) == 0 && a.in != nil {
		return a.interactive()
	}
	tokens := args
	for len(tokens) > 0 {
		name := tokens[0]
		c, ok := lookup(name)
		if !ok {
			fmt.Fprintf(a.out, "Command > expecting one of %v - got '%s'\n", commandNames(), name)
			tokens = tokens[1:]
			continue
		}
		var v values
		v, tokens = takeProps(tokens[1:], c.props)
		if c.run == nil {
			return nil
		}
		a.log.WithField("props", v).Debugf("command %s", name)
		if err := c.run(a, v); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func (a *app) prompt(text string) (string, bool) {
	fmt.Fprintf(a.out, "%s > ", text)
	if !a.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(a.in.Text()), true
}

func (a *app) interactive() error {
	for {
		line, ok := a.prompt("Command [q=quit,?=help]")
		if !ok {
			return a.in.Err()
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		c, found := lookup(fields[0])
		if !found {
			fmt.Fprintf(a.out, "Command [q=quit,?=help] > expecting one of %v - got '%s'\n", commandNames(), fields[0])
			continue
		}
		if c.run == nil {
			return nil
		}
		v, rest := takeProps(fields[1:], c.props)
		if len(rest) > 0 {
			fmt.Fprintf(a.out, "%s: unexpected %v\n", c.name, rest)
			continue
		}
		if len(fields) == 1 {
			for _, p := range c.props {
				ans, ok := a.prompt(p.help)
				if !ok {
					return a.in.Err()
				}
				if ans != "" {
					v[p.key] = ans
				}
			}
		}
		if err := c.run(a, v); err != nil {
			a.log.Errorf("%s: %s", c.name, err)
			fmt.Fprintf(a.out, "%s: %s\n", c.name, err)
		}
	}
}

func generate(w utg900.WaveType) func(*app, values) error {
	return func(a *app, v values) error {
		ch, err := v.channel(1)
		if err != nil {
			return err
		}
		s, err := a.session()
		if err != nil {
			return err
		}
		return s.Configure(ch, w, v.params())
	}
}

func runArb(a *app, v values) error {
	ch, err := v.channel(1)
	if err != nil {
		return err
	}
	file, ok := v["file"]
	if !ok {
		return errors.New("file= required")
	}
	s, err := a.session()
	if err != nil {
		return err
	}
	return s.ConfigureArbitrary(ch, utg900.FileSource(file), v.params())
}

func switchOutput(on bool) func(*app, values) error {
	return func(a *app, v values) error {
		ch, err := v.channel(0)
		if err != nil {
			return err
		}
		s, err := a.session()
		if err != nil {
			return err
		}
		return s.SetEnabled(ch, on)
	}
}

func runReset(a *app, _ values) error {
	s, err := a.session()
	if err != nil {
		return err
	}
	return s.Reset()
}

func runIdn(a *app, _ values) error {
	s, err := a.session()
	if err != nil {
		return err
	}
	idn, err := s.Identify()
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, idn)
	return nil
}

func runScreen(a *app, v values) error {
	s, err := a.session()
	if err != nil {
		return err
	}
	path, err := s.Screenshot(a.conv, a.cfg.CaptureDir, v["fileName"], "png")
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, path)
	return nil
}

func runList(a *app, _ values) error {
	devs, err := a.list(nil)
	if err != nil {
		a.log.Warnf("listing resources: %s", err)
	}
	if len(devs) == 0 {
		fmt.Fprintln(a.out, "no resources found")
		return nil
	}
	fmt.Fprintln(a.out, devs)
	return nil
}

func runHelp(a *app, v values) error {
	name, ok := v["command"]
	if !ok {
		mainMenuHelp(a.out)
		return nil
	}
	c, found := lookup(name)
	if !found {
		return fmt.Errorf("no command %q", name)
	}
	fmt.Fprintf(a.out, "%s - %s\n\n", c.name, c.help)
	for _, p := range c.props {
		fmt.Fprintf(a.out, "%10s  : %s\n", p.key, p.help)
	}
	return nil
}

func mainMenuHelp(w io.Writer) {
	fmt.Fprintf(w, "%s - Tool to control UNI-T UTG900 Waveform generator\n\n", cmdName)
	fmt.Fprintf(w, "Usage: %s [options] [commands and properties]\n\n", cmdName)
	fmt.Fprintln(w, "Commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "%10s  : %s\n", c.name, c.help)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "More help:")
	fmt.Fprintf(w, "%s --help                   : to list options\n", cmdName)
	fmt.Fprintf(w, "%s ? command=<command>      : to get help on command <command>\n\n", cmdName)
	fmt.Fprintln(w, "Examples:")
	fmt.Fprintf(w, "%s ? command=sine           : help on sine command\n", cmdName)
	fmt.Fprintf(w, "%s --captureDir=pics screen : Take screenshot to pics directory\n", cmdName)
	fmt.Fprintf(w, "%s reset                    : Send reset to UTG900 waveform generator\n", cmdName)
	fmt.Fprintf(w, "%s sine ch=2 freq=2kHz      : 2 kHz sine signal on channel 2\n", cmdName)
	fmt.Fprintf(w, "%s sine ch=1 square ch=2    : sine on channel 1, then square on channel 2\n", cmdName)
}
