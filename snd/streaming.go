// SPDX-License-Identifier: GPL-2.0-or-later

package snd

import (
	"time"

	"github.com/gopxl/beep/v2"

	"govox/handle"
	"govox/math/vec"
)

// Stream is the decode resource behind a streaming source. The manager
// frees it synchronously on cull and re-initializes it on reactivation;
// implementations must tolerate repeated Free calls and report -1 elapsed
// while released.
type Stream interface {
	Name() string
	Init() (beep.Streamer, error)
	Free()
	Elapsed() float32
	Duration() float32
	Service() error
}

// StreamOpener resolves a name to a stream resource.
type StreamOpener func(name string) (Stream, error)

// streamingSource is the persistent record of a streaming source.
// Unlike looping images these are destroyed on stop, never pooled: the
// stream resource's lifetime makes reuse unsafe.
type streamingSource struct {
	handle handle.Handle
	res    Stream
	desc   Description
	env    *SampleEnvironment

	position  vec.Vec3
	direction vec.Vec3
	pitch     float32
	score     float32
	cullTime  time.Time
}

type streamingList []*streamingSource

func (l streamingList) find(h handle.Handle) int {
	if !h.HasRole(handle.Streaming) {
		return -1
	}
	for i, rec := range l {
		if rec.handle.SameSource(h) {
			return i
		}
	}
	return -1
}

func (l *streamingList) push(rec *streamingSource) {
	*l = append(*l, rec)
}

// removeAt drops an entry without preserving order.
func (l *streamingList) removeAt(i int) {
	s := *l
	s[i] = s[len(s)-1]
	s[len(s)-1] = nil
	*l = s[:len(s)-1]
}
