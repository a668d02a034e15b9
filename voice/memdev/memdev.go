// SPDX-License-Identifier: GPL-2.0-or-later

// Package memdev is an in-memory voice device. It produces no sound;
// voices record every parameter write so tests can inspect what the
// manager did, and playback state can be forced from the outside to stand
// in for device-side events.
package memdev

import (
	"time"

	"github.com/gopxl/beep/v2"

	"govox/math/vec"
	"govox/voice"
)

type Device struct {
	// MaxVoices limits what AcquireVoices grants; 0 means no limit.
	MaxVoices int
	voices    []*Voice
	closed    bool
}

func New(maxVoices int) *Device {
	return &Device{MaxVoices: maxVoices}
}

func (d *Device) AcquireVoices(n int) ([]voice.Voice, error) {
	if d.MaxVoices > 0 && n > d.MaxVoices {
		n = d.MaxVoices
	}
	vs := make([]voice.Voice, n)
	for i := range vs {
		v := &Voice{}
		d.voices = append(d.voices, v)
		vs[i] = v
	}
	return vs, nil
}

func (d *Device) Close() error {
	d.closed = true
	return nil
}

func (d *Device) Closed() bool {
	return d.closed
}

// Voices returns every voice the device handed out, in acquisition order.
func (d *Device) Voices() []*Voice {
	return d.voices
}

type Voice struct {
	Buffer            voice.Buffer
	Stream            beep.Streamer
	Loop              bool
	playing           bool
	Gain              float32
	Pitch             float32
	Relative          bool
	Position          vec.Vec3
	Direction         vec.Vec3
	ConeInside        int32
	ConeOutside       int32
	ConeOutsideVolume float32
	RefDistance       float32
	MaxDistance       float32
	EnvLevel          float32

	Plays int // number of Play calls
	Stops int // number of Stop calls
}

func (v *Voice) Load(b voice.Buffer, loop bool) {
	v.Buffer = b
	v.Stream = nil
	v.Loop = loop
}

func (v *Voice) LoadStream(s beep.Streamer) {
	v.Stream = s
	v.Buffer = nil
	v.Loop = false
}

func (v *Voice) Play() {
	v.playing = true
	v.Plays++
}

func (v *Voice) Stop() {
	v.playing = false
	v.Buffer = nil
	v.Stream = nil
	v.Stops++
}

func (v *Voice) Playing() bool {
	return v.playing
}

// ForceStop flips the device-side state without the manager's knowledge,
// like a one-shot running out or a driver error.
func (v *Voice) ForceStop() {
	v.playing = false
}

func (v *Voice) SetGain(g float32)       { v.Gain = g }
func (v *Voice) SetPitch(p float32)      { v.Pitch = p }
func (v *Voice) SetRelative(rel bool)    { v.Relative = rel }
func (v *Voice) SetPosition(p vec.Vec3)  { v.Position = p }
func (v *Voice) SetDirection(d vec.Vec3) { v.Direction = d }

func (v *Voice) SetCone(insideAngle, outsideAngle int32, outsideVolume float32) {
	v.ConeInside = insideAngle
	v.ConeOutside = outsideAngle
	v.ConeOutsideVolume = outsideVolume
}

func (v *Voice) SetDistances(ref, max float32) {
	v.RefDistance = ref
	v.MaxDistance = max
}

func (v *Voice) SetEnvironmentLevel(level float32) {
	v.EnvLevel = level
}

// BufferStub is a stand-in decoded resource.
type BufferStub struct {
	Name string
	Dur  time.Duration
}

func (b *BufferStub) Streamer() beep.Streamer {
	return beep.Silence(-1)
}

func (b *BufferStub) Duration() time.Duration {
	return b.Dur
}
