// SPDX-License-Identifier: GPL-2.0-or-later

package snd

import (
	"govox/gain"
	"govox/handle"
	"govox/math/vec"
)

// Param names the per-source parameters adjustable after create. Gain is
// on the perceptual curve, GainLinear on the raw linear scale; both write
// the same underlying volume.
type Param int

const (
	ParamGain Param = iota
	ParamGainLinear
	ParamPitch
	ParamReferenceDistance
	ParamMaxDistance
	ParamConeInsideAngle
	ParamConeOutsideAngle
	ParamConeOutsideVolume
)

// SetParam adjusts one parameter of a live or culled source. The cached
// copy in the looping image or streaming record is updated too, so a
// source that is culled right now carries the new value when it comes
// back. Unknown handles are ignored.
func (m *Manager) SetParam(h handle.Handle, p Param, value float32) {
	if s := m.findSlot(h); s != nil {
		m.setSlotParam(s, p, value)
	}
	if i := m.loopingAll.find(h); i >= 0 {
		img := m.loopingAll[i]
		setDescParam(&img.desc, &img.pitch, p, value)
	}
	if i := m.streamingAll.find(h); i >= 0 {
		rec := m.streamingAll[i]
		setDescParam(&rec.desc, &rec.pitch, p, value)
	}
}

// GetParam reads a parameter back. An active source answers from the
// slot; a culled or inactive one from its persistent record.
func (m *Manager) GetParam(h handle.Handle, p Param) (float32, bool) {
	if s := m.findSlot(h); s != nil {
		return getSlotParam(s, p), true
	}
	if i := m.loopingAll.find(h); i >= 0 {
		img := m.loopingAll[i]
		return getDescParam(&img.desc, img.pitch, p), true
	}
	if i := m.streamingAll.find(h); i >= 0 {
		rec := m.streamingAll[i]
		return getDescParam(&rec.desc, rec.pitch, p), true
	}
	return 0, false
}

func (m *Manager) setSlotParam(s *slot, p Param, value float32) {
	switch p {
	case ParamGain:
		s.volume = gain.DBToLinear(value)
		s.v.SetGain(m.attenuatedGain(s))
	case ParamGainLinear:
		s.volume = value
		s.v.SetGain(m.attenuatedGain(s))
	case ParamPitch:
		s.pitch = value
		s.v.SetPitch(value)
	case ParamReferenceDistance:
		s.refDist = value
		s.v.SetDistances(s.refDist, s.maxDist)
	case ParamMaxDistance:
		s.maxDist = value
		s.v.SetDistances(s.refDist, s.maxDist)
	case ParamConeInsideAngle:
		s.coneInsideAngle = int32(value)
		s.v.SetCone(s.coneInsideAngle, s.coneOutsideAngle, s.coneOutsideVolume)
	case ParamConeOutsideAngle:
		s.coneOutsideAngle = int32(value)
		s.v.SetCone(s.coneInsideAngle, s.coneOutsideAngle, s.coneOutsideVolume)
	case ParamConeOutsideVolume:
		s.coneOutsideVolume = value
		s.v.SetCone(s.coneInsideAngle, s.coneOutsideAngle, s.coneOutsideVolume)
	}
}

func getSlotParam(s *slot, p Param) float32 {
	switch p {
	case ParamGain:
		return gain.LinearToDB(s.volume)
	case ParamGainLinear:
		return s.volume
	case ParamPitch:
		return s.pitch
	case ParamReferenceDistance:
		return s.refDist
	case ParamMaxDistance:
		return s.maxDist
	case ParamConeInsideAngle:
		return float32(s.coneInsideAngle)
	case ParamConeOutsideAngle:
		return float32(s.coneOutsideAngle)
	case ParamConeOutsideVolume:
		return s.coneOutsideVolume
	}
	return 0
}

func setDescParam(d *Description, pitch *float32, p Param, value float32) {
	switch p {
	case ParamGain:
		d.Volume = gain.DBToLinear(value)
	case ParamGainLinear:
		d.Volume = value
	case ParamPitch:
		*pitch = value
	case ParamReferenceDistance:
		d.ReferenceDistance = value
	case ParamMaxDistance:
		d.MaxDistance = value
	case ParamConeInsideAngle:
		d.ConeInsideAngle = int32(value)
	case ParamConeOutsideAngle:
		d.ConeOutsideAngle = int32(value)
	case ParamConeOutsideVolume:
		d.ConeOutsideVolume = value
	}
}

func getDescParam(d *Description, pitch float32, p Param) float32 {
	switch p {
	case ParamGain:
		return gain.LinearToDB(d.Volume)
	case ParamGainLinear:
		return d.Volume
	case ParamPitch:
		return pitch
	case ParamReferenceDistance:
		return d.ReferenceDistance
	case ParamMaxDistance:
		return d.MaxDistance
	case ParamConeInsideAngle:
		return float32(d.ConeInsideAngle)
	case ParamConeOutsideAngle:
		return float32(d.ConeOutsideAngle)
	case ParamConeOutsideVolume:
		return float32(d.ConeOutsideVolume)
	}
	return 0
}

// SetPosition moves a source. Culled sources are moved in their records,
// so the next score pass hears them from the new spot.
func (m *Manager) SetPosition(h handle.Handle, p vec.Vec3) {
	if s := m.findSlot(h); s != nil {
		s.position = p
		s.v.SetPosition(p)
	}
	if i := m.loopingAll.find(h); i >= 0 {
		m.loopingAll[i].position = p
	}
	if i := m.streamingAll.find(h); i >= 0 {
		m.streamingAll[i].position = p
	}
}

// SetDirection turns a source's emission cone.
func (m *Manager) SetDirection(h handle.Handle, d vec.Vec3) {
	if s := m.findSlot(h); s != nil {
		s.direction = d
		s.v.SetDirection(d)
	}
	if i := m.loopingAll.find(h); i >= 0 {
		m.loopingAll[i].direction = d
	}
	if i := m.streamingAll.find(h); i >= 0 {
		m.streamingAll[i].direction = d
	}
}

func (m *Manager) GetPosition(h handle.Handle) (vec.Vec3, bool) {
	if s := m.findSlot(h); s != nil {
		return s.position, true
	}
	if i := m.loopingAll.find(h); i >= 0 {
		return m.loopingAll[i].position, true
	}
	if i := m.streamingAll.find(h); i >= 0 {
		return m.streamingAll[i].position, true
	}
	return vec.Vec3{}, false
}

func (m *Manager) GetDirection(h handle.Handle) (vec.Vec3, bool) {
	if s := m.findSlot(h); s != nil {
		return s.direction, true
	}
	if i := m.loopingAll.find(h); i >= 0 {
		return m.loopingAll[i].direction, true
	}
	if i := m.streamingAll.find(h); i >= 0 {
		return m.streamingAll[i].direction, true
	}
	return vec.Vec3{}, false
}

// SetPlacement sets position and direction together.
func (m *Manager) SetPlacement(h handle.Handle, p Placement) {
	m.SetPosition(h, p.Position)
	m.SetDirection(h, p.Direction)
}
