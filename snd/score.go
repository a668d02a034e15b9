// SPDX-License-Identifier: GPL-2.0-or-later

package snd

import (
	"govox/gain"
	"govox/handle"
	qm "govox/math"
	"govox/math/vec"
)

// distanceAttenuation is the linear falloff between the two radii: full
// volume inside the reference distance, silent at and beyond the maximum.
func distanceAttenuation(d, ref, max float32) float32 {
	if d >= max {
		return 0
	}
	if d <= ref || max <= ref {
		return 1
	}
	return (max - d) / (max - ref)
}

// approx3DVolume is the audible volume of a source as heard from the
// listener: source volume through the channel volume, then the distance
// falloff for 3D sources. The master volume stays out so scores compare
// the same at any master setting.
func (m *Manager) approx3DVolume(desc *Description, pos vec.Vec3) float32 {
	v := desc.Volume * m.typeGain[desc.Channel]
	if desc.Is3D {
		d := vec.Distance(pos, m.listener.Position)
		v *= distanceAttenuation(d, desc.ReferenceDistance, desc.MaxDistance)
	}
	return v
}

// attenuatedGain is the value programmed into a voice: audible volume
// including the master volume, mapped onto the perceptual curve.
func (m *Manager) attenuatedGain(s *slot) float32 {
	return gain.LinearToDB(qm.Clamp01(s.volume * m.typeGain[s.channel] * m.masterGain))
}

// updateScores recomputes the priority of every active slot, and when
// sourcesOnly is false also rescores culled sources that have sat out
// their dwell period, so the reactivation pass has fresh numbers.
func (m *Manager) updateScores(sourcesOnly bool) {
	for _, s := range m.slots {
		if s.handle == handle.Null {
			continue
		}
		v := s.volume * m.typeGain[s.channel]
		if s.is3D {
			d := vec.Distance(s.position, m.listener.Position)
			v *= distanceAttenuation(d, s.refDist, s.maxDist)
		}
		s.score = v
	}
	if sourcesOnly {
		return
	}
	now := m.now()
	for _, img := range m.loopingCulled {
		if now.Sub(img.cullTime) >= m.uncullPeriod() {
			img.score = m.approx3DVolume(&img.desc, img.position)
		} else {
			img.score = 0
		}
	}
	for _, rec := range m.streamingCulled {
		if now.Sub(rec.cullTime) >= m.uncullPeriod() {
			rec.score = m.approx3DVolume(&rec.desc, rec.position)
		} else {
			rec.score = 0
		}
	}
}

// updateMaxDistance silences 3D voices the listener has walked out of and
// restores them on the way back in, without touching the source volume
// the caller set.
func (m *Manager) updateMaxDistance() {
	for _, s := range m.slots {
		if s.handle == handle.Null || !s.is3D {
			continue
		}
		d := vec.Distance(s.position, m.listener.Position)
		if d >= s.maxDist {
			s.v.SetGain(0)
		} else {
			s.v.SetGain(m.attenuatedGain(s))
		}
	}
}
