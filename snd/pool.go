// SPDX-License-Identifier: GPL-2.0-or-later

package snd

import (
	"govox/handle"
	"govox/math/vec"
	"govox/voice"
)

// slot binds a logical source to a physical voice. The manager keeps a
// local copy of every parameter it programs into the voice, so scoring
// and distance correction never have to query the device.
type slot struct {
	handle handle.Handle
	v      voice.Voice
	buffer voice.Buffer

	channel Channel
	volume  float32 // unattenuated source volume
	score   float32

	is3D      bool
	position  vec.Vec3
	direction vec.Vec3
	refDist   float32
	maxDist   float32

	pitch             float32
	coneInsideAngle   int32
	coneOutsideAngle  int32
	coneOutsideVolume float32

	env      *SampleEnvironment
	envLevel float32
}

// clear detaches the slot from its source. The voice stays.
func (s *slot) clear() {
	v := s.v
	*s = slot{
		v:         v,
		direction: vec.Vec3{Y: 1},
		pitch:     1,
	}
}

func (m *Manager) findFreeSlot() *slot {
	for _, s := range m.slots {
		if s.handle == handle.Null {
			return s
		}
	}
	return nil
}

func (m *Manager) findSlot(h handle.Handle) *slot {
	if h == handle.Null {
		return nil
	}
	for _, s := range m.slots {
		if s.handle != handle.Null && s.handle.SameSource(h) {
			return s
		}
	}
	return nil
}

// configureVoice programs every cached parameter into the bound voice.
func (m *Manager) configureVoice(s *slot) {
	s.v.SetGain(m.attenuatedGain(s))
	s.v.SetPitch(s.pitch)
	s.v.SetCone(s.coneInsideAngle, s.coneOutsideAngle, s.coneOutsideVolume)
	if s.is3D {
		s.v.SetRelative(false)
		s.v.SetPosition(s.position)
		s.v.SetDirection(s.direction)
	} else {
		s.v.SetRelative(true)
		s.v.SetPosition(vec.Vec3{Z: 1})
	}
	s.v.SetDistances(s.refDist, s.maxDist)
	s.v.SetEnvironmentLevel(s.envLevel)
}
