// SPDX-License-Identifier: GPL-2.0-or-later

package snd

import (
	"time"

	"govox/handle"
	"govox/math/vec"
	"govox/voice"
)

// loopingImage is the persistent record of a looping source. It outlives
// the voice backing it: an ambient loop keeps existing at zero voices and
// can be brought back whenever capacity and priority allow.
type loopingImage struct {
	handle handle.Handle
	buffer voice.Buffer
	desc   Description
	env    *SampleEnvironment

	position  vec.Vec3
	direction vec.Vec3
	pitch     float32
	score     float32
	cullTime  time.Time
}

func (img *loopingImage) clear() {
	*img = loopingImage{
		direction: vec.Vec3{Y: 1},
		pitch:     1,
	}
}

type loopingList []*loopingImage

// find returns the index of the image addressing the same logical source,
// or -1. Handles without the looping bit are rejected up front.
func (l loopingList) find(h handle.Handle) int {
	if !h.HasRole(handle.Looping) {
		return -1
	}
	for i, img := range l {
		if img.handle.SameSource(h) {
			return i
		}
	}
	return -1
}

func (l *loopingList) push(img *loopingImage) {
	*l = append(*l, img)
}

// removeAt drops an entry without preserving order.
func (l *loopingList) removeAt(i int) {
	s := *l
	s[i] = s[len(s)-1]
	s[len(s)-1] = nil
	*l = s[:len(s)-1]
}

// newLoopingImage reuses a freed image when one is available; images
// cycle through a free list instead of being reallocated every time an
// ambient sound starts.
func (m *Manager) newLoopingImage() *loopingImage {
	if n := len(m.loopingFree); n > 0 {
		img := m.loopingFree[n-1]
		m.loopingFree.removeAt(n - 1)
		return img
	}
	img := &loopingImage{}
	img.clear()
	return img
}

func (m *Manager) freeLoopingImage(img *loopingImage) {
	img.clear()
	m.loopingFree.push(img)
}
