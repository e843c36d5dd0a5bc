// Copyright 2021 Mark Siner. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package midi implements the USB-MIDI Code Index Number mapping used to
// move MIDI events between the host MIDI ports and the device's H->O/O->H
// MIDI rings.
package midi

// Event is a single USB-MIDI-style event as it travels through the MIDI
// rings: a device-clock timestamp in microseconds and the 4-byte USB-MIDI
// packet (CIN in the low nibble of byte 0, channel-status/realtime
// status and up to 2 data bytes following).
type Event struct {
	DeviceTimeUS uint64
	Data         [4]byte
}

// Code Index Numbers, low nibble of a USB-MIDI event's first byte.
const (
	CINNoteOff       byte = 0x08
	CINNoteOn        byte = 0x09
	CINPolyKeyPress  byte = 0x0A
	CINControlChange byte = 0x0B
	CINProgram       byte = 0x0C
	CINChanPressure  byte = 0x0D
	CINPitchBend     byte = 0x0E
	CINSingleByte    byte = 0x0F
)

// sizeForCIN returns the number of valid payload bytes (status + data) for a
// decoded CIN. CINProgram and CINChanPressure are encoded with size 2
// (status plus one data byte) even though this decode table only recognizes
// 1 or 3; that asymmetry is preserved as-is rather than "fixed", matching
// the SPEC_FULL.md §9.1 O2 note.
func sizeForCIN(cin byte) int {
	if cin == CINSingleByte {
		return 1
	}
	return 3
}

// cinForStatus maps a channel-voice status nibble (high nibble of a host
// MIDI status byte) or a realtime single-byte status to its USB-MIDI CIN.
// It returns (cin, size, ok); ok is false for unrecognized status bytes and
// callers must silently drop the event.
func cinForStatus(status byte) (cin byte, size int, ok bool) {
	if status >= 0xF8 && status <= 0xFC {
		return CINSingleByte, 1, true
	}
	switch status & 0xF0 {
	case 0x80:
		return CINNoteOff, 3, true
	case 0x90:
		return CINNoteOn, 3, true
	case 0xA0:
		return CINPolyKeyPress, 3, true
	case 0xB0:
		return CINControlChange, 3, true
	case 0xC0:
		return CINProgram, 2, true
	case 0xD0:
		return CINChanPressure, 2, true
	case 0xE0:
		return CINPitchBend, 3, true
	default:
		return 0, 0, false
	}
}

// EncodeHostToDevice packs a host MIDI message (status byte plus up to 2
// data bytes) into a 4-byte USB-MIDI event at the given device timestamp,
// for the H->O direction. ok is false, and the Event is the zero value, when
// the status byte is not a recognized channel-voice or realtime status (the
// event must then be silently dropped).
func EncodeHostToDevice(deviceTimeUS uint64, status byte, data []byte) (ev Event, ok bool) {
	cin, size, ok := cinForStatus(status)
	if !ok {
		return Event{}, false
	}
	ev.DeviceTimeUS = deviceTimeUS
	ev.Data[0] = 0xF0 | (cin & 0x0F)
	ev.Data[1] = status
	for i := 0; i < size-1 && i < len(data); i++ {
		ev.Data[2+i] = data[i]
	}
	return ev, true
}

// DecodeDeviceToHost unpacks a 4-byte USB-MIDI event back into a status byte
// and its data bytes (size given by sizeForCIN of the event's CIN nibble),
// for the O->H direction.
func DecodeDeviceToHost(ev Event) (status byte, data []byte) {
	cin := ev.Data[0] & 0x0F
	size := sizeForCIN(cin)
	status = ev.Data[1]
	if size <= 1 {
		return status, nil
	}
	return status, append([]byte(nil), ev.Data[2:1+size]...)
}

// Scheduled is an O->H event placed at a specific frame offset within the
// current host cycle, ready to be written to the output MIDI port.
type Scheduled struct {
	FrameOffset int
	Status      byte
	Data        []byte
}

// ScheduleToHost computes host-frame placement for a run of pending O->H
// MIDI events. currentFrame is the device frame number corresponding to
// host frame 0 of this cycle; framePeriodUS is the
// device clock's microseconds-per-frame; cycleFrames is B. Each event's
// device frame is event.DeviceTimeUS/framePeriodUS; its host offset is
// (currentFrame-eventFrame) mod cycleFrames, clamped to 0 if negative.
//
// Scheduling stops at the first event whose offset is lower than the
// previous one's (the monotone-ordering rule); consumed reports how many
// leading events of pending were scheduled so the caller can leave the
// remainder in the ring for the next cycle.
func ScheduleToHost(pending []Event, currentFrame uint64, framePeriodUS float64, cycleFrames int) (scheduled []Scheduled, consumed int) {
	lastOffset := -1
	for _, ev := range pending {
		eventFrame := uint64(float64(ev.DeviceTimeUS) / framePeriodUS)
		raw := int64(currentFrame) - int64(eventFrame)
		offset := 0
		if cycleFrames > 0 {
			offset = int(raw % int64(cycleFrames))
		}
		if offset < 0 {
			offset = 0
		}
		if lastOffset >= 0 && offset < lastOffset {
			break
		}
		lastOffset = offset

		status, data := DecodeDeviceToHost(ev)
		scheduled = append(scheduled, Scheduled{FrameOffset: offset, Status: status, Data: data})
		consumed++
	}
	return scheduled, consumed
}
