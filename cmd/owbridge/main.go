// Copyright 2021 Mark Siner. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/halcyon-audio/owbridge/internal/config"
	"github.com/halcyon-audio/owbridge/internal/device"
	"github.com/halcyon-audio/owbridge/internal/hostaudio"
	"github.com/halcyon-audio/owbridge/internal/notify"
	"github.com/halcyon-audio/owbridge/internal/resample"
	"github.com/halcyon-audio/owbridge/internal/session"
)

func newConverters(desc device.Descriptor, quality resample.Quality) (o2hSRC, h2oSRC resample.Converter) {
	o2h, err := resample.New(quality, desc.Inputs)
	if err != nil {
		log.Fatalf("error creating O->H converter: %v", err)
	}
	h2o, err := resample.New(quality, desc.Outputs)
	if err != nil {
		log.Fatalf("error creating H->O converter: %v", err)
	}
	return o2h, h2o
}

// logNotifications drains n.C and logs every event until the channel is
// closed. It is the only consumer of realtime-path conditions, keeping the
// audio callback itself allocation- and log-call-free.
func logNotifications(n *notify.Chan) {
	for ev := range n.C {
		if ev.Detail != "" {
			log.Printf("notify: %v: %s", ev.Kind, ev.Detail)
		} else {
			log.Printf("notify: %v", ev.Kind)
		}
	}
}

func run(args []string) error {
	flags := flag.NewFlagSet("run", flag.ExitOnError)
	flags.Usage = func() {
		fmt.Fprintln(flags.Output(), strings.TrimSpace(`
Usage: owbridge run [FLAGS]

run connects to an available class-compliant USB audio/MIDI device,
bridges its O->H and H->O audio streams through asynchronous sample-rate
conversion to the host's PortAudio device, and forwards MIDI in both
directions through the host's default MIDI input/output ports, if any
are available. It runs until interrupted. The libusb device backend
opens and claims the device but submits no USB transfers, so no audio
or MIDI is exchanged with the device itself.

Flags:
`,
		))
		flags.PrintDefaults()
	}
	build := config.FlagSet(flags)
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 0 {
		flags.Usage()
		return errors.New("too many arguments")
	}

	opts, err := build()
	if err != nil {
		return err
	}

	server, err := hostaudio.NewPortAudioServer()
	if err != nil {
		return fmt.Errorf("error creating host audio server: %w", err)
	}

	notifyChan := notify.NewChan(64)
	go logNotifications(notifyChan)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt)
		v, ok := <-sig
		if ok {
			log.Printf("signal; got %v", v)
			cancel()
		}
	}()

	sess, err := session.NewSession(
		session.WithEnumerate(device.Enumerate),
		session.WithSelector(opts),
		session.WithConverters(newConverters),
		session.WithServer(server),
		session.WithNotify(notifyChan),
		session.WithMIDIPort(hostaudio.NewPortMIDIPort),
	)
	if err != nil {
		return fmt.Errorf("error creating session; %v", err)
	}

	err = sess.Run(ctx)
	_ = notifyChan.Close()
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		log.Println("clean exit")
		return nil
	default:
		return fmt.Errorf("error during session run; %v", err)
	}
}

func list(args []string) error {
	flags := flag.NewFlagSet("list", flag.ExitOnError)
	flags.Usage = func() {
		fmt.Fprintln(flags.Output(), strings.TrimSpace(`
Usage: owbridge list [FLAGS]

list prints the devices known to the configured device factory. On a
cgo build, this enumerates real USB audio-class devices; on a non-cgo
build it fails with an error, since USB enumeration requires cgo.

Flags:
`,
		))
		flags.PrintDefaults()
	}
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 0 {
		flags.Usage()
		return errors.New("too many arguments")
	}

	devs, err := device.Enumerate()
	if err != nil {
		return err
	}
	if len(devs) == 0 {
		fmt.Println("no devices found")
		return nil
	}
	for _, d := range devs {
		desc := d.Descriptor()
		fmt.Printf(
			"bus=%d address=%d name=%q inputs=%d outputs=%d rate=%.0f\n",
			desc.Bus, desc.Address, desc.Name, desc.Inputs, desc.Outputs, desc.SampleRate,
		)
	}
	return nil
}

func usage() {
	fmt.Fprintln(os.Stderr, strings.TrimSpace(`
Usage: owbridge <command> [FLAGS]

Commands:
  run   bridge a USB audio/MIDI device to the host PortAudio device (default)
  list  print the devices known to the configured device factory
`,
	))
}

func owbridge() error {
	if len(os.Args) < 2 {
		return run(nil)
	}
	switch os.Args[1] {
	case "run":
		return run(os.Args[2:])
	case "list":
		return list(os.Args[2:])
	case "-h", "-help", "--help":
		usage()
		return nil
	default:
		// No subcommand given, just flags for the default "run" command.
		return run(os.Args[1:])
	}
}

func main() {
	if err := owbridge(); err != nil {
		log.Fatal(err)
	}
}
