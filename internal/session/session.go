// Copyright 2021 Mark Siner. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package session assembles a device.Handle, a hostaudio.Server, and a
// resampler.Resampler into a running bridge, using a functional-options
// Session type (ConfigFn, WithXYZ()) and an
// open/select/configure/init/control-loop/teardown Run sequence.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/halcyon-audio/owbridge/internal/config"
	"github.com/halcyon-audio/owbridge/internal/device"
	"github.com/halcyon-audio/owbridge/internal/hostaudio"
	"github.com/halcyon-audio/owbridge/internal/notify"
	"github.com/halcyon-audio/owbridge/internal/resample"
	"github.com/halcyon-audio/owbridge/internal/resampler"
)

// EnumerateFn lists the devices currently available for selection.
type EnumerateFn func() ([]device.Handle, error)

// NewConvertersFn constructs the pair of async sample-rate converters used
// for a device's O->H and H->O directions, sized to its channel counts and
// the CLI-selected SRC quality.
type NewConvertersFn func(desc device.Descriptor, quality resample.Quality) (o2hSRC, h2oSRC resample.Converter)

// NewMIDIPortFn constructs the host MIDI transport attached to the
// adapter's realtime callback. A Session built without one leaves MIDI
// forwarding computed but undelivered, same as an Adapter with no
// MIDIPort set.
type NewMIDIPortFn func() (hostaudio.MIDIPort, error)

// ControlFn is responsible for run-time control after the adapter has been
// opened and started. It should loop, sleep, or wait and not return until
// the bridge is no longer needed. When it returns, the session tears down
// and Run returns.
type ControlFn func(ctx context.Context, dev device.Handle, adapter *hostaudio.Adapter) error

// ConfigFn configures a Session, returning a non-nil error if it detects a
// conflicting or invalid configuration.
type ConfigFn func(s *Session) error

// Session holds everything needed to run one instance of the bridge. Build
// one with NewSession and a chain of WithXYZ() functions, or populate the
// fields directly.
type Session struct {
	Enumerate   EnumerateFn
	Selector    device.SelectFn
	NewConverters NewConvertersFn
	Server      hostaudio.Server
	Notify      *notify.Chan
	Control     ControlFn
	NewMIDIPort NewMIDIPortFn

	Opts           config.Options
	HostSampleRate float64
	HostBufferSize int
}

// DefaultHostSampleRate and DefaultHostBufferSize are used when a Session
// is built without WithHostFormat.
const (
	DefaultHostSampleRate = 48000.0
	DefaultHostBufferSize = 128
)

// NewSession creates a Session and applies each ConfigFn to it in order,
// returning the first error encountered, if any.
func NewSession(fns ...ConfigFn) (*Session, error) {
	s := &Session{
		HostSampleRate: DefaultHostSampleRate,
		HostBufferSize: DefaultHostBufferSize,
		Opts:           config.Options{Priority: device.DefaultPriority},
	}
	for _, fn := range fns {
		if err := fn(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// WithEnumerate sets the function used to list candidate devices.
func WithEnumerate(fn EnumerateFn) ConfigFn {
	return func(s *Session) error {
		if s.Enumerate != nil {
			return errors.New("enumerate function already set")
		}
		s.Enumerate = fn
		return nil
	}
}

// WithSelector configures device selection from CLI options, narrowing the
// enumerated candidates by bus/address before picking the first match.
func WithSelector(opts config.Options) ConfigFn {
	return func(s *Session) error {
		if s.Selector != nil {
			return errors.New("select function already set")
		}
		s.Selector = device.NewSelector(opts.SelectFilters()...)
		s.Opts = opts
		return nil
	}
}

// WithConverters sets the factory used to build each device's pair of
// async sample-rate converters.
func WithConverters(fn NewConvertersFn) ConfigFn {
	return func(s *Session) error {
		if s.NewConverters != nil {
			return errors.New("converters function already set")
		}
		s.NewConverters = fn
		return nil
	}
}

// WithServer sets the host audio server implementation.
func WithServer(server hostaudio.Server) ConfigFn {
	return func(s *Session) error {
		if s.Server != nil {
			return errors.New("server already set")
		}
		s.Server = server
		return nil
	}
}

// WithNotify sets the channel realtime-path conditions are reported on.
func WithNotify(n *notify.Chan) ConfigFn {
	return func(s *Session) error {
		if s.Notify != nil {
			return errors.New("notify channel already set")
		}
		s.Notify = n
		return nil
	}
}

// WithHostFormat overrides the host server's sample rate and buffer size.
func WithHostFormat(sampleRate float64, bufferSize int) ConfigFn {
	return func(s *Session) error {
		s.HostSampleRate = sampleRate
		s.HostBufferSize = bufferSize
		return nil
	}
}

// WithMIDIPort sets the factory used to open the host MIDI transport. Omit
// it to run audio-only, with MIDI forwarding computed but undelivered.
func WithMIDIPort(fn NewMIDIPortFn) ConfigFn {
	return func(s *Session) error {
		if s.NewMIDIPort != nil {
			return errors.New("midi port function already set")
		}
		s.NewMIDIPort = fn
		return nil
	}
}

// WithControlLoop sets the function called after the adapter has started.
// Without one, Run waits on ctx.Done().
func WithControlLoop(fn ControlFn) ConfigFn {
	return func(s *Session) error {
		if s.Control != nil {
			return errors.New("control loop function already set")
		}
		s.Control = fn
		return nil
	}
}

// Run enumerates devices, selects one, builds its converters/resampler/
// adapter, opens and starts the host server, then either runs the
// configured control loop or waits on ctx. On return (error or otherwise)
// it stops and closes the adapter, deactivates and closes the device.
func (s *Session) Run(ctx context.Context) error {
	if s.Enumerate == nil {
		return errors.New("session: no enumerate function configured")
	}
	if s.Server == nil {
		return errors.New("session: no host audio server configured")
	}
	if s.NewConverters == nil {
		return errors.New("session: no converters function configured")
	}

	devs, err := s.Enumerate()
	if err != nil {
		return fmt.Errorf("failed to enumerate devices: %w", err)
	}
	if len(devs) == 0 {
		return errors.New("no devices found")
	}

	dev, err := s.selectDevice(devs)
	if err != nil {
		return err
	}

	if err := dev.Activate(ctx, s.Opts.Priority); err != nil {
		return fmt.Errorf("failed to activate device: %w", err)
	}
	defer func() {
		_ = dev.Deactivate()
		_ = dev.Close()
	}()

	desc := dev.Descriptor()
	o2hSRC, h2oSRC := s.NewConverters(desc, s.Opts.Quality)
	res := resampler.New(dev, o2hSRC, h2oSRC, s.Notify)

	adapter := hostaudio.NewAdapter(s.Server, dev, res, s.Notify, desc.SampleRate)
	if err := adapter.Open(s.HostSampleRate, s.HostBufferSize); err != nil {
		return fmt.Errorf("failed to open host audio server: %w", err)
	}
	defer func() {
		_ = adapter.Stop()
		_ = adapter.Close()
	}()

	if s.NewMIDIPort != nil {
		port, err := s.NewMIDIPort()
		if err != nil {
			return fmt.Errorf("failed to open host midi port: %w", err)
		}
		adapter.SetMIDIPort(port)
		defer func() {
			_ = port.Close()
		}()
	}

	if err := adapter.Start(); err != nil {
		return fmt.Errorf("failed to start host audio server: %w", err)
	}

	if s.Control == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	return s.Control(ctx, dev, adapter)
}

func (s *Session) selectDevice(devs []device.Handle) (device.Handle, error) {
	if s.Selector == nil {
		return devs[0], nil
	}

	descs := make([]device.Descriptor, len(devs))
	for i, d := range devs {
		descs[i] = d.Descriptor()
	}

	picked := s.Selector(descs)
	if picked == nil {
		return nil, fmt.Errorf("no matching devices selected from %d candidates", len(devs))
	}
	for _, d := range devs {
		desc := d.Descriptor()
		if desc == *picked {
			return d, nil
		}
	}
	return nil, errors.New("session: selector returned a descriptor not present in the candidate list")
}

// Run is a convenience wrapper around NewSession followed by Session.Run.
func Run(ctx context.Context, fns ...ConfigFn) error {
	s, err := NewSession(fns...)
	if err != nil {
		return err
	}
	return s.Run(ctx)
}
