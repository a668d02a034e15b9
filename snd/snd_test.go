// SPDX-License-Identifier: GPL-2.0-or-later

package snd

import (
	"testing"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/pkg/errors"

	"govox/gain"
	"govox/handle"
	"govox/math/vec"
	"govox/voice"
	"govox/voice/memdev"
)

type testClock struct {
	t time.Time
}

func (c *testClock) now() time.Time {
	return c.t
}

func (c *testClock) advance(d time.Duration) {
	c.t = c.t.Add(d)
}

type stubResolver struct{}

func (stubResolver) Fetch(name string) (voice.Buffer, error) {
	if name == "missing.wav" {
		return nil, errors.New("no such sound")
	}
	return &memdev.BufferStub{Name: name, Dur: time.Second}, nil
}

type fakeStream struct {
	name    string
	live    bool
	inits   int
	frees   int
	pos     float32
	dur     float32
	initErr error
}

func (f *fakeStream) Name() string { return f.name }

func (f *fakeStream) Init() (beep.Streamer, error) {
	if f.initErr != nil {
		return nil, f.initErr
	}
	f.live = true
	f.inits++
	f.pos = 0
	return beep.Silence(-1), nil
}

func (f *fakeStream) Free() {
	if f.live {
		f.live = false
		f.frees++
	}
}

func (f *fakeStream) Elapsed() float32 {
	if !f.live {
		return -1
	}
	return f.pos
}

func (f *fakeStream) Duration() float32 { return f.dur }
func (f *fakeStream) Service() error    { return nil }

type fakeOpener struct {
	streams map[string]*fakeStream
}

func (o *fakeOpener) open(name string) (Stream, error) {
	if s, ok := o.streams[name]; ok {
		return s, nil
	}
	s := &fakeStream{name: name, dur: 30}
	o.streams[name] = s
	return s, nil
}

func newTestManager(t *testing.T, voices int) (*Manager, *memdev.Device, *fakeOpener, *testClock) {
	t.Helper()
	dev := memdev.New(voices)
	clk := &testClock{t: time.Unix(1000, 0)}
	op := &fakeOpener{streams: make(map[string]*fakeStream)}
	m, err := New(Config{
		Device:     dev,
		Resolver:   stubResolver{},
		OpenStream: op.open,
		Voices:     voices,
		Now:        clk.now,
	})
	if err != nil {
		t.Fatalf("New() error %v", err)
	}
	return m, dev, op, clk
}

func oneShot(volume float32) *Description {
	return &Description{Volume: volume, Channel: ChannelEffect}
}

func looping(volume float32) *Description {
	return &Description{Volume: volume, Channel: ChannelEffect, IsLooping: true}
}

func streaming(volume float32) *Description {
	return &Description{Volume: volume, Channel: ChannelMusic, IsStreaming: true}
}

func TestCreateThenPlayIsPlaying(t *testing.T) {
	m, _, _, _ := newTestManager(t, 2)
	h := m.CreateSource(oneShot(0.5), "shot.wav", nil, nil)
	if h == handle.Null {
		t.Fatal("CreateSource() = Null, want a handle")
	}
	if m.IsPlaying(h) {
		t.Error("IsPlaying() = true before Play")
	}
	if got := m.Play(h); got == handle.Null {
		t.Fatal("Play() = Null")
	}
	if !m.IsPlaying(h) {
		t.Error("IsPlaying() = false after Play")
	}
}

func TestPlayTwiceDoesNotRestart(t *testing.T) {
	m, dev, _, _ := newTestManager(t, 2)
	h := m.CreateSource(oneShot(0.5), "shot.wav", nil, nil)
	if got := m.Play(h); got == handle.Null {
		t.Fatal("Play() = Null")
	}
	if got := m.Play(h); got == handle.Null {
		t.Fatal("second Play() = Null")
	}
	if got := dev.Voices()[0].Plays; got != 1 {
		t.Errorf("device Play calls = %d after double Play, want 1", got)
	}
	if !m.IsPlaying(h) {
		t.Error("source stopped by a repeated Play")
	}
}

func TestCreateRejections(t *testing.T) {
	m, _, _, _ := newTestManager(t, 2)
	if h := m.CreateSource(nil, "shot.wav", nil, nil); h != handle.Null {
		t.Error("nil description accepted")
	}
	if h := m.CreateSource(oneShot(0.5), "", nil, nil); h != handle.Null {
		t.Error("empty name accepted")
	}
	if h := m.CreateSource(&Description{Volume: 0.5, Channel: NumChannels}, "shot.wav", nil, nil); h != handle.Null {
		t.Error("out of range channel accepted")
	}
	if h := m.CreateSource(oneShot(0.01), "shot.wav", nil, nil); h != handle.Null {
		t.Error("below-threshold one-shot accepted")
	}
	if h := m.CreateSource(oneShot(0.5), "missing.wav", nil, nil); h != handle.Null {
		t.Error("unresolvable resource accepted")
	}
	m.SetChannelVolume(ChannelEffect, 0)
	if h := m.CreateSource(oneShot(0.5), "shot.wav", nil, nil); h != handle.Null {
		t.Error("one-shot on muted channel accepted")
	}
	// a looping source on a muted channel still registers
	if h := m.CreateSource(looping(0.5), "loop.wav", nil, nil); h == handle.Null {
		t.Error("looping source on muted channel rejected")
	}
}

func TestOneShotEviction(t *testing.T) {
	m, _, _, _ := newTestManager(t, 2)
	h1 := m.Play(m.CreateSource(oneShot(0.9), "a.wav", nil, nil))
	h2 := m.Play(m.CreateSource(oneShot(0.2), "b.wav", nil, nil))
	if h1 == handle.Null || h2 == handle.Null {
		t.Fatal("setup sources did not start")
	}
	h3 := m.CreateSource(oneShot(0.95), "c.wav", nil, nil)
	if h3 == handle.Null {
		t.Fatal("CreateSource(0.95) = Null, want eviction of the 0.2 voice")
	}
	m.Play(h3)
	if !m.IsPlaying(h1) {
		t.Error("0.9 source was evicted")
	}
	if m.IsValidHandle(h2) {
		t.Error("evicted one-shot still valid")
	}
	if !m.IsPlaying(h3) {
		t.Error("0.95 source not playing")
	}
	if got := m.Metrics().ActiveVoices; got != 2 {
		t.Errorf("ActiveVoices = %d, want 2", got)
	}
}

func TestNoEvictionBelowActiveScores(t *testing.T) {
	m, _, _, _ := newTestManager(t, 2)
	m.Play(m.CreateSource(oneShot(0.9), "a.wav", nil, nil))
	m.Play(m.CreateSource(oneShot(0.8), "b.wav", nil, nil))
	if h := m.CreateSource(oneShot(0.5), "c.wav", nil, nil); h != handle.Null {
		t.Error("one-shot below all active scores admitted")
	}
}

func TestLoopingAdmittedWithoutVoice(t *testing.T) {
	m, _, _, _ := newTestManager(t, 2)
	m.Play(m.CreateSource(oneShot(0.9), "a.wav", nil, nil))
	m.Play(m.CreateSource(oneShot(0.8), "b.wav", nil, nil))
	h := m.CreateSource(looping(0.5), "loop.wav", nil, nil)
	if h == handle.Null {
		t.Fatal("looping source below active scores rejected, want inactive admission")
	}
	if !m.IsValidHandle(h) {
		t.Error("IsValidHandle() = false")
	}
	if m.IsPlaying(h) {
		t.Error("voiceless looping source reports playing")
	}
	mt := m.Metrics()
	if mt.LoopingInactive != 1 || mt.ActiveVoices != 2 {
		t.Errorf("LoopingInactive = %d ActiveVoices = %d, want 1 and 2", mt.LoopingInactive, mt.ActiveVoices)
	}
	// play keeps it pending, nothing to evict for it
	m.Play(h)
	if m.IsPlaying(h) {
		t.Error("looping source got a voice it should not win")
	}
	if got := m.Metrics().LoopingCulled; got != 1 {
		t.Errorf("LoopingCulled = %d, want 1", got)
	}
}

func TestStopIdempotent(t *testing.T) {
	m, _, _, _ := newTestManager(t, 2)
	h := m.Play(m.CreateSource(looping(0.5), "loop.wav", nil, nil))
	m.Stop(h)
	m.Stop(h)
	m.Stop(handle.Handle(12345))
	m.Stop(handle.Null)
	mt := m.Metrics()
	if mt.ActiveVoices != 0 || mt.LoopingSources != 0 {
		t.Errorf("ActiveVoices = %d LoopingSources = %d after Stop, want 0 and 0", mt.ActiveVoices, mt.LoopingSources)
	}
	if h2 := m.Play(m.CreateSource(oneShot(0.5), "a.wav", nil, nil)); !m.IsPlaying(h2) {
		t.Error("pool unusable after repeated Stop")
	}
}

func TestUncullHysteresis(t *testing.T) {
	m, _, _, clk := newTestManager(t, 1)
	hl := m.Play(m.CreateSource(looping(0.6), "loop.wav", nil, nil))
	if !m.IsPlaying(hl) {
		t.Fatal("looping source did not start")
	}
	hs := m.Play(m.CreateSource(oneShot(0.9), "shot.wav", nil, nil))
	if hs == handle.Null {
		t.Fatal("0.9 one-shot did not evict the 0.6 loop")
	}
	if m.IsPlaying(hl) {
		t.Error("evicted loop still playing")
	}
	m.Stop(hs)

	// the voice is free but the dwell period has not passed
	clk.advance(100 * time.Millisecond)
	m.Tick()
	if m.IsPlaying(hl) {
		t.Error("loop reactivated before the dwell period")
	}

	clk.advance(500 * time.Millisecond)
	m.Tick()
	if !m.IsPlaying(hl) {
		t.Error("loop not reactivated after the dwell period")
	}
}

func TestReactivationPrefersHighestScore(t *testing.T) {
	m, _, _, clk := newTestManager(t, 1)
	hQuiet := m.Play(m.CreateSource(looping(0.3), "quiet.wav", nil, nil))
	hLoud := m.CreateSource(looping(0.7), "loud.wav", nil, nil)
	m.Play(hLoud) // evicts the 0.3 loop
	hTop := m.Play(m.CreateSource(oneShot(0.9), "top.wav", nil, nil))
	if m.IsPlaying(hQuiet) || m.IsPlaying(hLoud) {
		t.Fatal("setup: both loops should be culled")
	}
	m.Stop(hTop)
	clk.advance(time.Second)
	m.Tick()
	if !m.IsPlaying(hLoud) {
		t.Error("highest scoring culled loop not reactivated")
	}
	if m.IsPlaying(hQuiet) {
		t.Error("lower scoring loop took the voice")
	}
}

func TestReactivationSkipsInaudible(t *testing.T) {
	m, _, _, clk := newTestManager(t, 1)
	h := m.Play(m.CreateSource(looping(0.08), "faint.wav", nil, nil))
	hTop := m.Play(m.CreateSource(oneShot(0.9), "top.wav", nil, nil))
	m.Stop(hTop)
	clk.advance(time.Second)
	m.Tick()
	// 0.08 clears the admission threshold but not the uncull floor
	if m.IsPlaying(h) {
		t.Error("source below the uncull floor reactivated")
	}
	if got := m.Metrics().LoopingCulled; got != 1 {
		t.Errorf("LoopingCulled = %d, want 1", got)
	}
}

func TestLoopingMembershipExactlyOne(t *testing.T) {
	m, _, _, clk := newTestManager(t, 1)

	sets := func(h handle.Handle) (inactive, culled, active bool) {
		inactive = m.loopingInactive.find(h) >= 0
		culled = m.loopingCulled.find(h) >= 0
		if s := m.findSlot(h); s != nil {
			active = !s.handle.HasRole(handle.Inactive)
		}
		return
	}
	check := func(stage string, h handle.Handle, wantInactive, wantCulled, wantActive bool) {
		t.Helper()
		i, c, a := sets(h)
		if i != wantInactive || c != wantCulled || a != wantActive {
			t.Errorf("%s: inactive/culled/active = %v/%v/%v, want %v/%v/%v",
				stage, i, c, a, wantInactive, wantCulled, wantActive)
		}
	}

	h := m.CreateSource(looping(0.6), "loop.wav", nil, nil)
	check("created", h, true, false, false)

	m.Play(h)
	check("playing", h, false, false, true)

	hTop := m.Play(m.CreateSource(oneShot(0.9), "top.wav", nil, nil))
	check("evicted", h, false, true, false)

	m.Stop(hTop)
	clk.advance(time.Second)
	m.Tick()
	check("reactivated", h, false, false, true)

	m.Stop(h)
	if m.loopingAll.find(h) >= 0 {
		t.Error("stopped: image still on the master list")
	}
	check("stopped", h, false, false, false)
}

func TestStreamingCullReleasesStream(t *testing.T) {
	m, _, op, clk := newTestManager(t, 1)
	h := m.Play(m.CreateSource(streaming(0.5), "music.ogg", nil, nil))
	if !m.IsPlaying(h) {
		t.Fatal("stream did not start")
	}
	fs := op.streams["music.ogg"]
	if fs == nil || fs.inits != 1 {
		t.Fatalf("stream not initialized once, inits = %v", fs)
	}
	fs.pos = 12.5
	if got := m.StreamElapsed(h); got != 12.5 {
		t.Errorf("StreamElapsed() = %v, want 12.5", got)
	}

	hTop := m.Play(m.CreateSource(oneShot(0.9), "top.wav", nil, nil))
	if m.IsPlaying(h) {
		t.Fatal("stream survived eviction")
	}
	if fs.frees != 1 {
		t.Errorf("stream frees = %d after cull, want 1", fs.frees)
	}
	if got := m.StreamElapsed(h); got != -1 {
		t.Errorf("StreamElapsed() = %v while culled, want -1", got)
	}
	if got := m.StreamDuration(h); got != 30 {
		t.Errorf("StreamDuration() = %v while culled, want 30", got)
	}

	m.Stop(hTop)
	clk.advance(time.Second)
	m.Tick()
	if !m.IsPlaying(h) {
		t.Fatal("stream not reactivated")
	}
	if fs.inits != 2 {
		t.Errorf("stream inits = %d after reactivation, want 2", fs.inits)
	}
	if got := m.StreamElapsed(h); got != 0 {
		t.Errorf("StreamElapsed() = %v after restart, want 0", got)
	}
}

func TestLoadingStreamShieldedFromEviction(t *testing.T) {
	m, _, _, _ := newTestManager(t, 1)
	h := m.CreateSource(streaming(0.2), "music.ogg", nil, nil)
	if h == handle.Null {
		t.Fatal("stream not admitted")
	}
	// until Play clears the loading bit the voice cannot be taken
	if got := m.CreateSource(oneShot(0.9), "top.wav", nil, nil); got != handle.Null {
		t.Error("loading stream lost its voice")
	}
	m.Play(h)
	if got := m.CreateSource(oneShot(0.9), "top.wav", nil, nil); got == handle.Null {
		t.Error("playing 0.2 stream not evictable by a 0.9 one-shot")
	}
}

func TestStopStreamingFreesStream(t *testing.T) {
	m, _, op, _ := newTestManager(t, 1)
	h := m.Play(m.CreateSource(streaming(0.5), "music.ogg", nil, nil))
	m.Stop(h)
	fs := op.streams["music.ogg"]
	if fs.live {
		t.Error("stream still live after Stop")
	}
	if m.IsValidHandle(h) {
		t.Error("stopped stream handle still valid")
	}
	if got := m.StreamElapsed(h); got != -1 {
		t.Errorf("StreamElapsed() = %v on a destroyed stream, want -1", got)
	}
}

func TestChannelVolumeReattenuates(t *testing.T) {
	m, dev, _, _ := newTestManager(t, 2)
	h := m.Play(m.CreateSource(oneShot(1.0), "a.wav", nil, nil))
	if h == handle.Null {
		t.Fatal("source did not start")
	}
	v := dev.Voices()[0]
	if want := gain.LinearToDB(1); v.Gain != want {
		t.Fatalf("initial voice gain = %v, want %v", v.Gain, want)
	}
	m.SetChannelVolume(ChannelEffect, 0.5)
	if want := gain.LinearToDB(0.5); v.Gain != want {
		t.Errorf("voice gain after channel change = %v, want %v", v.Gain, want)
	}
	m.SetMasterVolume(0.5)
	if want := gain.LinearToDB(0.25); v.Gain != want {
		t.Errorf("voice gain after master change = %v, want %v", v.Gain, want)
	}
}

func TestMasterVolumeExcludedFromScores(t *testing.T) {
	m, _, _, _ := newTestManager(t, 2)
	m.Play(m.CreateSource(oneShot(0.9), "a.wav", nil, nil))
	m.Play(m.CreateSource(oneShot(0.8), "b.wav", nil, nil))
	m.SetMasterVolume(0.01)
	// a global mute must not open the door for a quiet newcomer
	if h := m.CreateSource(oneShot(0.5), "c.wav", nil, nil); h != handle.Null {
		t.Error("muted master volume changed an eviction decision")
	}
}

func TestDistanceAttenuationInScore(t *testing.T) {
	m, _, _, _ := newTestManager(t, 1)
	desc := oneShot(1.0)
	desc.Is3D = true
	desc.ReferenceDistance = 5
	desc.MaxDistance = 20
	far := &Placement{Position: vec.Vec3{X: 25}}
	if h := m.CreateSource(desc, "far.wav", far, nil); h != handle.Null {
		t.Error("one-shot beyond its max distance admitted")
	}
	mid := &Placement{Position: vec.Vec3{X: 12.5}}
	h := m.Play(m.CreateSource(desc, "mid.wav", mid, nil))
	if !m.IsPlaying(h) {
		t.Fatal("in-range 3D source did not start")
	}
	// the active source scores 0.5 after attenuation, below the newcomer
	if got := m.CreateSource(oneShot(0.6), "near.wav", nil, nil); got == handle.Null {
		t.Error("0.6 one-shot failed to evict the distance-attenuated 0.5")
	}
}

func TestMaxDistanceGainCorrection(t *testing.T) {
	m, dev, _, _ := newTestManager(t, 1)
	desc := looping(1.0)
	desc.Is3D = true
	desc.ReferenceDistance = 5
	desc.MaxDistance = 20
	h := m.Play(m.CreateSource(desc, "loop.wav", &Placement{Position: vec.Vec3{X: 10}}, nil))
	if !m.IsPlaying(h) {
		t.Fatal("source did not start")
	}
	v := dev.Voices()[0]

	m.SetListener(Listener{Position: vec.Vec3{X: 40}})
	m.Tick()
	if v.Gain != 0 {
		t.Errorf("voice gain = %v with listener out of range, want 0", v.Gain)
	}
	m.SetListener(Listener{})
	m.Tick()
	if want := gain.LinearToDB(1); v.Gain != want {
		t.Errorf("voice gain = %v with listener back in range, want %v", v.Gain, want)
	}
}

func TestDeviceDesyncRecovery(t *testing.T) {
	m, dev, op, _ := newTestManager(t, 2)
	hl := m.Play(m.CreateSource(looping(0.6), "loop.wav", nil, nil))
	hs := m.Play(m.CreateSource(streaming(0.5), "music.ogg", nil, nil))
	for _, v := range dev.Voices() {
		v.ForceStop()
	}
	m.Tick()
	// both sources come straight back, no dwell penalty for a device drop
	if !m.IsPlaying(hl) {
		t.Error("looping source not restarted after device drop")
	}
	if !m.IsPlaying(hs) {
		t.Error("streaming source not restarted after device drop")
	}
	if fs := op.streams["music.ogg"]; fs.inits != 2 {
		t.Errorf("stream inits = %d, want a fresh decoder after the drop", fs.inits)
	}
}

func TestOneShotGarbageCollected(t *testing.T) {
	m, dev, _, _ := newTestManager(t, 2)
	h := m.Play(m.CreateSource(oneShot(0.5), "a.wav", nil, nil))
	dev.Voices()[0].ForceStop()
	m.Tick()
	if m.IsValidHandle(h) {
		t.Error("finished one-shot handle still valid")
	}
	if got := m.Metrics().ActiveVoices; got != 0 {
		t.Errorf("ActiveVoices = %d after GC, want 0", got)
	}
}

func TestParamRouting(t *testing.T) {
	m, dev, _, _ := newTestManager(t, 1)
	h := m.Play(m.CreateSource(looping(0.6), "loop.wav", nil, nil))
	m.SetParam(h, ParamPitch, 1.5)
	if got := dev.Voices()[0].Pitch; got != 1.5 {
		t.Errorf("voice pitch = %v, want 1.5", got)
	}
	if got, ok := m.GetParam(h, ParamPitch); !ok || got != 1.5 {
		t.Errorf("GetParam(pitch) = %v %v, want 1.5 true", got, ok)
	}

	// evict, then mutate while culled
	m.Play(m.CreateSource(oneShot(0.9), "top.wav", nil, nil))
	m.SetParam(h, ParamGainLinear, 0.8)
	m.SetPosition(h, vec.Vec3{X: 3})
	if got, ok := m.GetParam(h, ParamGainLinear); !ok || got != 0.8 {
		t.Errorf("GetParam(gain) on culled source = %v %v, want 0.8 true", got, ok)
	}
	if got, ok := m.GetPosition(h); !ok || got != (vec.Vec3{X: 3}) {
		t.Errorf("GetPosition() on culled source = %v %v", got, ok)
	}
	if _, ok := m.GetParam(handle.Handle(999), ParamPitch); ok {
		t.Error("GetParam() on an unknown handle reported ok")
	}
}

func TestHandleRoleBits(t *testing.T) {
	m, _, _, _ := newTestManager(t, 4)
	hs := m.CreateSource(oneShot(0.5), "a.wav", nil, nil)
	hl := m.CreateSource(looping(0.5), "b.wav", nil, nil)
	hm := m.CreateSource(streaming(0.5), "c.ogg", nil, nil)
	if hs.HasRole(handle.Looping) || hs.HasRole(handle.Streaming) {
		t.Error("one-shot handle carries role bits")
	}
	if !hl.HasRole(handle.Looping) {
		t.Error("looping handle missing the looping bit")
	}
	if !hm.HasRole(handle.Streaming) {
		t.Error("streaming handle missing the streaming bit")
	}
	for _, h := range []handle.Handle{hs, hl, hm} {
		if h.HasRole(handle.Inactive) || h.HasRole(handle.Loading) {
			t.Errorf("public handle %08x carries internal bits", uint32(h))
		}
	}
}

func TestStopAll(t *testing.T) {
	m, _, op, _ := newTestManager(t, 2)
	m.Play(m.CreateSource(looping(0.9), "a.wav", nil, nil))
	m.Play(m.CreateSource(streaming(0.8), "b.ogg", nil, nil))
	m.CreateSource(looping(0.5), "c.wav", nil, nil)
	m.StopAll()
	mt := m.Metrics()
	if mt.ActiveVoices != 0 || mt.LoopingSources != 0 || mt.StreamingSources != 0 {
		t.Errorf("Metrics after StopAll = %+v, want everything empty", mt)
	}
	if fs := op.streams["b.ogg"]; fs.live {
		t.Error("stream still live after StopAll")
	}
}

func TestShutdownClosesDevice(t *testing.T) {
	m, dev, _, _ := newTestManager(t, 2)
	m.Play(m.CreateSource(oneShot(0.5), "a.wav", nil, nil))
	if err := m.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error %v", err)
	}
	if !dev.Closed() {
		t.Error("device not closed")
	}
}

func TestFewerVoicesGranted(t *testing.T) {
	dev := memdev.New(3)
	m, err := New(Config{Device: dev, Resolver: stubResolver{}, Voices: 8})
	if err != nil {
		t.Fatalf("New() error %v", err)
	}
	if got := m.Metrics().Voices; got != 3 {
		t.Errorf("Voices = %d, want the 3 the device granted", got)
	}
}

func TestPlayUnknownHandle(t *testing.T) {
	m, _, _, _ := newTestManager(t, 2)
	if got := m.Play(handle.Handle(777)); got != handle.Null {
		t.Errorf("Play(unknown) = %08x, want Null", uint32(got))
	}
}
