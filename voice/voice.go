// SPDX-License-Identifier: GPL-2.0-or-later

// Package voice is the boundary between the voice manager and the audio
// device. A Device grants a small fixed number of Voices, each able to mix
// one sound at a time; the manager multiplexes arbitrarily many logical
// sources onto them. Implementations: beepdev (real output through a beep
// mixer on oto) and memdev (deterministic fake for tests).
package voice

import (
	"time"

	"github.com/gopxl/beep/v2"

	"govox/math/vec"
)

// Buffer is a decoded audio resource. Streamer returns a fresh streamer
// over the decoded samples each call, so several voices can play the same
// buffer independently.
type Buffer interface {
	Streamer() beep.Streamer
	Duration() time.Duration
}

// Voice is one physical mixing channel. Load/LoadStream bind the data to
// play, Play starts it, Stop ends playback and unbinds. Parameter setters
// may be called at any time; a stopped voice ignores them. Gain values
// arrive already mapped onto the perceptual curve. A device is free to
// ignore positional parameters (2D devices).
type Voice interface {
	Load(b Buffer, loop bool)
	LoadStream(s beep.Streamer)
	Play()
	Stop()
	// Playing reports the device-side state. A voice can stop on its own
	// when a one-shot runs out; the manager garbage-collects those.
	Playing() bool

	SetGain(g float32)
	SetPitch(p float32)
	SetRelative(rel bool)
	SetPosition(p vec.Vec3)
	SetDirection(d vec.Vec3)
	SetCone(insideAngle, outsideAngle int32, outsideVolume float32)
	SetDistances(ref, max float32)
	SetEnvironmentLevel(level float32)
}

// Device hands out voices. AcquireVoices may return fewer voices than
// requested when the hardware grants less; the caller works with what it
// gets.
type Device interface {
	AcquireVoices(n int) ([]Voice, error)
	Close() error
}
