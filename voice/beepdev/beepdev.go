// SPDX-License-Identifier: GPL-2.0-or-later

// Package beepdev implements the voice device on a beep mixer fed into an
// oto player. It is a 2D device: gain and pitch are honored, positional
// parameters are stored but not spatialized (the manager's distance-based
// gain correction is what makes far sources quiet).
package beepdev

import (
	"encoding/binary"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/gopxl/beep/v2"
	"github.com/pkg/errors"

	"govox/math/vec"
	"govox/voice"
)

type Device struct {
	mu         sync.Mutex
	mixer      beep.Mixer
	sampleRate beep.SampleRate
	player     *oto.Player
}

// New opens the audio output. bufferSize is the device-side latency
// budget; anything from 20ms to 100ms works for a game loop.
func New(sampleRate beep.SampleRate, bufferSize time.Duration) (*Device, error) {
	d := &Device{sampleRate: sampleRate}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   int(sampleRate),
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
		BufferSize:   bufferSize,
	})
	if err != nil {
		return nil, errors.Wrap(err, "beepdev: open audio context")
	}
	<-ready

	d.player = ctx.NewPlayer(&sampleReader{d: d})
	d.player.Play()
	return d, nil
}

func (d *Device) AcquireVoices(n int) ([]voice.Voice, error) {
	vs := make([]voice.Voice, n)
	for i := range vs {
		vs[i] = &Voice{d: d, pitch: 1}
	}
	return vs, nil
}

func (d *Device) Close() error {
	d.mu.Lock()
	d.mixer.Clear()
	d.mu.Unlock()
	return errors.Wrap(d.player.Close(), "beepdev: close player")
}

// sampleReader pulls from the mixer and encodes float32 LE frames for oto.
type sampleReader struct {
	d   *Device
	buf [][2]float64
}

func (r *sampleReader) Read(p []byte) (int, error) {
	frames := len(p) / 8 // 2 channels, 4 bytes each
	if frames == 0 {
		return 0, nil
	}
	if cap(r.buf) < frames {
		r.buf = make([][2]float64, frames)
	}
	samples := r.buf[:frames]

	r.d.mu.Lock()
	r.d.mixer.Stream(samples)
	r.d.mu.Unlock()

	for i, s := range samples {
		binary.LittleEndian.PutUint32(p[i*8:], math.Float32bits(float32(s[0])))
		binary.LittleEndian.PutUint32(p[i*8+4:], math.Float32bits(float32(s[1])))
	}
	return frames * 8, nil
}

type Voice struct {
	d      *Device
	buffer voice.Buffer
	stream beep.Streamer
	loop   bool

	ctrl      *beep.Ctrl
	resampler *beep.Resampler
	gs        *gainStreamer

	gain  float32
	pitch float32
	// written from the speaker goroutine by drained, read on the
	// update thread by Playing
	playing atomic.Bool

	// stored, not spatialized
	relative          bool
	position          vec.Vec3
	direction         vec.Vec3
	coneInside        int32
	coneOutside       int32
	coneOutsideVolume float32
	refDist, maxDist  float32
	envLevel          float32
}

func (v *Voice) Load(b voice.Buffer, loop bool) {
	v.stop()
	v.buffer = b
	v.stream = nil
	v.loop = loop
}

func (v *Voice) LoadStream(s beep.Streamer) {
	v.stop()
	v.stream = s
	v.buffer = nil
	v.loop = false
}

func (v *Voice) Play() {
	v.stop()

	var src beep.Streamer
	switch {
	case v.stream != nil:
		src = v.stream
	case v.buffer != nil && v.loop:
		src = &loopStreamer{buffer: v.buffer}
	case v.buffer != nil:
		src = v.buffer.Streamer()
	default:
		return
	}

	v.gs = &gainStreamer{s: src, gain: float64(v.gain)}
	v.resampler = beep.ResampleRatio(3, float64(v.pitch), v.gs)
	v.ctrl = &beep.Ctrl{Streamer: beep.Seq(v.resampler, beep.Callback(v.drained))}

	v.playing.Store(true)
	v.d.mu.Lock()
	v.d.mixer.Add(v.ctrl)
	v.d.mu.Unlock()
}

// drained runs on the speaker goroutine when a one-shot plays out.
func (v *Voice) drained() {
	v.playing.Store(false)
}

func (v *Voice) Stop() {
	v.stop()
	v.buffer = nil
	v.stream = nil
}

func (v *Voice) stop() {
	if v.ctrl == nil {
		return
	}
	v.d.mu.Lock()
	v.ctrl.Streamer = nil // the mixer drops it on the next pull
	v.d.mu.Unlock()
	v.ctrl = nil
	v.resampler = nil
	v.gs = nil
	v.playing.Store(false)
}

func (v *Voice) Playing() bool {
	return v.playing.Load()
}

func (v *Voice) SetGain(g float32) {
	v.gain = g
	if v.gs != nil {
		v.d.mu.Lock()
		v.gs.gain = float64(g)
		v.d.mu.Unlock()
	}
}

func (v *Voice) SetPitch(p float32) {
	v.pitch = p
	if v.resampler != nil {
		v.d.mu.Lock()
		v.resampler.SetRatio(float64(p))
		v.d.mu.Unlock()
	}
}

func (v *Voice) SetRelative(rel bool)    { v.relative = rel }
func (v *Voice) SetPosition(p vec.Vec3)  { v.position = p }
func (v *Voice) SetDirection(d vec.Vec3) { v.direction = d }

func (v *Voice) SetCone(insideAngle, outsideAngle int32, outsideVolume float32) {
	v.coneInside = insideAngle
	v.coneOutside = outsideAngle
	v.coneOutsideVolume = outsideVolume
}

func (v *Voice) SetDistances(ref, max float32) {
	v.refDist = ref
	v.maxDist = max
}

func (v *Voice) SetEnvironmentLevel(level float32) {
	v.envLevel = level
}

// gainStreamer scales every sample by the voice gain.
type gainStreamer struct {
	s    beep.Streamer
	gain float64
}

func (g *gainStreamer) Stream(samples [][2]float64) (int, bool) {
	n, ok := g.s.Stream(samples)
	for i := range samples[:n] {
		samples[i][0] *= g.gain
		samples[i][1] *= g.gain
	}
	return n, ok
}

func (g *gainStreamer) Err() error {
	return g.s.Err()
}

// loopStreamer restarts a buffer whenever it runs dry. Buffer.Streamer
// hands out a fresh streamer per pass, so looping is just re-pulling.
type loopStreamer struct {
	buffer voice.Buffer
	cur    beep.Streamer
}

func (l *loopStreamer) Stream(samples [][2]float64) (int, bool) {
	filled := 0
	for filled < len(samples) {
		fresh := false
		if l.cur == nil {
			l.cur = l.buffer.Streamer()
			fresh = true
		}
		n, ok := l.cur.Stream(samples[filled:])
		filled += n
		if !ok || n == 0 {
			l.cur = nil
			if fresh && n == 0 {
				// empty buffer, emit silence instead of spinning
				clear(samples[filled:])
				return len(samples), true
			}
		}
	}
	return filled, true
}

func (l *loopStreamer) Err() error {
	if l.cur == nil {
		return nil
	}
	return l.cur.Err()
}
