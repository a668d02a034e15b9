// SPDX-License-Identifier: GPL-2.0-or-later

package snd

import (
	"sort"

	"govox/conlog"
	"govox/handle"
)

// cullSource evicts the lowest scoring slot, but only when that score is
// strictly below volume: a newcomer never displaces an equal or better
// source. Returns the freed slot or nil.
func (m *Manager) cullSource(volume float32) *slot {
	var best *slot
	for _, s := range m.slots {
		if s.handle == handle.Null || s.handle.HasRole(handle.Loading) {
			continue
		}
		if best == nil || s.score < best.score {
			best = s
		}
	}
	if best == nil || best.score >= volume {
		return nil
	}
	m.demote(best, true)
	return best
}

// demote pushes the slot's source back into its culled list (one-shots
// just die) and releases the voice. A source that was bound but never
// played stays in the inactive set instead; it is already there. With
// dwell set the source waits out the hysteresis period before it can
// compete again; desync cleanup passes false so a sound the device
// dropped on its own is eligible right away.
func (m *Manager) demote(s *slot, dwell bool) {
	h := s.handle
	neverPlayed := h.HasRole(handle.Inactive)
	switch {
	case h.HasRole(handle.Looping):
		i := m.loopingAll.find(h)
		assertf(i >= 0, "looping slot %08x has no image", uint32(h))
		img := m.loopingAll[i]
		img.handle = img.handle.WithRole(handle.Inactive)
		img.score = s.score
		if !neverPlayed {
			if dwell {
				img.cullTime = m.now()
			}
			m.loopingCulled.push(img)
		}
	case h.HasRole(handle.Streaming):
		i := m.streamingAll.find(h)
		assertf(i >= 0, "streaming slot %08x has no record", uint32(h))
		rec := m.streamingAll[i]
		rec.handle = rec.handle.WithRole(handle.Inactive)
		rec.score = s.score
		rec.res.Free()
		if !neverPlayed {
			if dwell {
				rec.cullTime = m.now()
			}
			m.streamingCulled.push(rec)
		}
	}
	s.v.Stop()
	s.clear()
}

// loopingUpdate reactivates culled looping sources in descending score
// order: each candidate takes a free slot, or evicts a strictly quieter
// active source. Candidates below the audibility floor stay culled.
func (m *Manager) loopingUpdate() {
	floor := m.minUncullGain()
	var ready []*loopingImage
	for _, img := range m.loopingCulled {
		if img.score > floor {
			ready = append(ready, img)
		}
	}
	sort.SliceStable(ready, func(i, j int) bool {
		return ready[i].score > ready[j].score
	})
	for _, img := range ready {
		s := m.findFreeSlot()
		if s == nil {
			s = m.cullSource(img.score)
		}
		if s == nil {
			// sorted descending, nobody further down can win either
			break
		}
		m.bindLooping(s, img)
	}
}

func (m *Manager) bindLooping(s *slot, img *loopingImage) {
	if i := m.loopingCulled.find(img.handle); i >= 0 {
		m.loopingCulled.removeAt(i)
	}
	img.handle = img.handle.WithoutRole(handle.Inactive | handle.Loading)

	s.handle = img.handle
	s.buffer = img.buffer
	s.channel = img.desc.Channel
	s.volume = img.desc.Volume
	s.score = img.score
	s.is3D = img.desc.Is3D
	s.position = img.position
	s.direction = img.direction
	s.refDist = img.desc.ReferenceDistance
	s.maxDist = img.desc.MaxDistance
	s.pitch = img.pitch
	s.coneInsideAngle = img.desc.ConeInsideAngle
	s.coneOutsideAngle = img.desc.ConeOutsideAngle
	s.coneOutsideVolume = img.desc.ConeOutsideVolume
	s.env = img.env
	s.envLevel = img.desc.EnvironmentLevel

	m.configureVoice(s)
	s.v.Load(s.buffer, true)
	s.v.Play()
}

// streamingUpdate services the live decoders, then runs the same
// reactivation pass as loopingUpdate for culled streams. A reactivated
// stream restarts from the beginning; the decoder was freed at cull time.
func (m *Manager) streamingUpdate() {
	for _, rec := range m.streamingAll {
		if rec.handle.HasRole(handle.Inactive) {
			continue
		}
		if err := rec.res.Service(); err != nil {
			conlog.Printf("snd: stream %s: %v\n", rec.res.Name(), err)
		}
	}

	floor := m.minUncullGain()
	var ready []*streamingSource
	for _, rec := range m.streamingCulled {
		if rec.score > floor {
			ready = append(ready, rec)
		}
	}
	sort.SliceStable(ready, func(i, j int) bool {
		return ready[i].score > ready[j].score
	})
	for _, rec := range ready {
		s := m.findFreeSlot()
		if s == nil {
			s = m.cullSource(rec.score)
		}
		if s == nil {
			break
		}
		if err := m.bindStreaming(s, rec); err != nil {
			conlog.Printf("snd: reopen stream %s: %v\n", rec.res.Name(), err)
			m.destroyStreaming(rec)
		}
	}
}

func (m *Manager) bindStreaming(s *slot, rec *streamingSource) error {
	streamer, err := rec.res.Init()
	if err != nil {
		return err
	}
	if i := m.streamingCulled.find(rec.handle); i >= 0 {
		m.streamingCulled.removeAt(i)
	}
	rec.handle = rec.handle.WithoutRole(handle.Inactive | handle.Loading)

	s.handle = rec.handle
	s.channel = rec.desc.Channel
	s.volume = rec.desc.Volume
	s.score = rec.score
	s.is3D = rec.desc.Is3D
	s.position = rec.position
	s.direction = rec.direction
	s.refDist = rec.desc.ReferenceDistance
	s.maxDist = rec.desc.MaxDistance
	s.pitch = rec.pitch
	s.coneInsideAngle = rec.desc.ConeInsideAngle
	s.coneOutsideAngle = rec.desc.ConeOutsideAngle
	s.coneOutsideVolume = rec.desc.ConeOutsideVolume
	s.env = rec.env
	s.envLevel = rec.desc.EnvironmentLevel

	m.configureVoice(s)
	s.v.LoadStream(streamer)
	s.v.Play()
	return nil
}

// destroyStreaming removes a record from every list it is on and frees
// its decoder for good.
func (m *Manager) destroyStreaming(rec *streamingSource) {
	rec.res.Free()
	if i := m.streamingAll.find(rec.handle); i >= 0 {
		m.streamingAll.removeAt(i)
	}
	if i := m.streamingInactive.find(rec.handle); i >= 0 {
		m.streamingInactive.removeAt(i)
	}
	if i := m.streamingCulled.find(rec.handle); i >= 0 {
		m.streamingCulled.removeAt(i)
	}
}

// closeHandles reconciles with the device: a voice that stopped on its
// own releases its slot. One-shots simply end; looping and streaming
// sources the device dropped go back to their culled lists with no dwell
// penalty, so the next update may restart them immediately.
func (m *Manager) closeHandles() {
	for _, s := range m.slots {
		// a voice bound at create but never played is not a desync
		if s.handle == handle.Null || s.handle.HasRole(handle.Inactive) ||
			s.handle.HasRole(handle.Loading) {
			continue
		}
		if s.v.Playing() {
			continue
		}
		if s.handle.HasRole(handle.Looping) || s.handle.HasRole(handle.Streaming) {
			conlog.DPrintf("snd: device dropped voice for %08x\n", uint32(s.handle))
			m.demote(s, false)
			continue
		}
		s.v.Stop()
		s.clear()
	}
}
