// Copyright (c) 2020–2024 The utg900 developers. All rights reserved.
// Project site: https://github.com/gotmc/utg900
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

// Command utg900 controls a UNI-T UTG900 waveform generator, either from a
// chain of commands on the command line or from an interactive prompt.
package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/gotmc/utg900"
	"github.com/gotmc/utg900/lib/connutil"
	"github.com/gotmc/utg900/lib/convert"
	"github.com/gotmc/utg900/lib/find"
	"github.com/spf13/pflag"
	"go.uber.org/multierr"
)

func main() {
	cfg, err := connutil.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	flags := pflag.NewFlagSet(cmdName, pflag.ExitOnError)
	flags.SetInterspersed(false)
	cfg.AddFlags(flags)
	flags.Usage = func() {
		mainMenuHelp(os.Stderr)
		fmt.Fprintln(os.Stderr, "\nOptions:")
		flags.PrintDefaults()
	}
	flags.Parse(os.Args[1:])

	log := cfg.Logger()
	a := &app{
		cfg:  cfg,
		log:  log,
		out:  os.Stdout,
		conv: convert.New(cfg.Convert, log),
		open: func() (*utg900.Session, func() error, error) {
			return connutil.Setup(cfg, log)
		},
		list: find.Resources,
	}
	if flags.NArg() == 0 {
		a.in = bufio.NewScanner(os.Stdin)
	}
	log.Debugf("starting cmds=%v", flags.Args())

	err = multierr.Append(a.run(flags.Args()), a.close())
	if err != nil {
		log.Fatal(err)
	}
	log.Info("done")
}
