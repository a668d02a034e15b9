// SPDX-License-Identifier: GPL-2.0-or-later

// Package snd is the voice manager. It sits between gameplay code and an
// audio device exposing a small fixed number of mixable voices, admits
// arbitrarily many logical sources, and multiplexes them onto the voices
// by audibility score: quiet sounds lose their voice to louder ones and
// come back when capacity allows. Looping and streaming sources survive
// eviction as bookkeeping records; one-shots simply end.
package snd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"govox/cache"
	"govox/cvar"
	"govox/gain"
	"govox/handle"
	qm "govox/math"
	"govox/math/vec"
	"govox/stream"
	"govox/voice"
)

const (
	// MaxVoices caps how many voices are requested from the device.
	MaxVoices = 16

	defaultMinGain       = "0.05"
	defaultMinUncullGain = "0.1"
	// milliseconds a culled source sits out before it may compete again
	defaultMinUncullPeriod = "500"
)

// Resolver turns a sound name into a decoded buffer. cache.Cache is the
// default implementation.
type Resolver interface {
	Fetch(name string) (voice.Buffer, error)
}

// Config carries the collaborators of a manager. Only Device is
// required; everything else has a default.
type Config struct {
	Device     voice.Device
	Resolver   Resolver
	OpenStream StreamOpener
	// Voices requested from the device, capped at MaxVoices. The device
	// may grant fewer.
	Voices int
	// Now is the clock for cull timestamps. Tests pin it.
	Now func() time.Time
}

type Manager struct {
	device     voice.Device
	resolver   Resolver
	openStream StreamOpener
	now        func() time.Time

	slots []*slot
	alloc handle.Allocator

	listener   Listener
	masterGain float32
	typeGain   [NumChannels]float32

	registry       *cvar.Registry
	cvMaster       *cvar.Cvar
	cvMinGain      *cvar.Cvar
	cvUncullGain   *cvar.Cvar
	cvUncullPeriod *cvar.Cvar
	cvChannel      [NumChannels]*cvar.Cvar

	loopingAll      loopingList
	loopingInactive loopingList
	loopingCulled   loopingList
	loopingFree     loopingList

	streamingAll      streamingList
	streamingInactive streamingList
	streamingCulled   streamingList
}

// New acquires voices from the device and sets up the manager. The
// device granting fewer voices than asked is not an error; the manager
// works with what it gets.
func New(cfg Config) (*Manager, error) {
	if cfg.Device == nil {
		return nil, errors.New("snd: no device")
	}
	n := cfg.Voices
	if n <= 0 || n > MaxVoices {
		n = MaxVoices
	}
	voices, err := cfg.Device.AcquireVoices(n)
	if err != nil {
		return nil, errors.Wrap(err, "acquire voices")
	}
	if len(voices) == 0 {
		return nil, errors.New("snd: device granted no voices")
	}
	m := &Manager{
		device:     cfg.Device,
		resolver:   cfg.Resolver,
		openStream: cfg.OpenStream,
		now:        cfg.Now,
		listener:   Listener{Forward: vec.Vec3{Z: 1}, Up: vec.Vec3{Y: 1}},
	}
	if m.resolver == nil {
		m.resolver = cache.New()
	}
	if m.openStream == nil {
		m.openStream = func(name string) (Stream, error) {
			return stream.Open(name)
		}
	}
	if m.now == nil {
		m.now = time.Now
	}
	m.slots = make([]*slot, len(voices))
	for i, v := range voices {
		m.slots[i] = &slot{v: v}
		m.slots[i].clear()
	}
	m.registerCvars(n)
	return m, nil
}

func (m *Manager) registerCvars(requested int) {
	m.registry = cvar.NewRegistry()
	// the voice count is applied at startup; the variable exists so the
	// host's preference file can carry it to the next run
	m.registry.MustNew("snd_voices", strconv.Itoa(requested), cvar.ARCHIVE)
	m.cvMaster = m.registry.MustNew("volume", "1", cvar.ARCHIVE)
	m.cvMinGain = m.registry.MustNew("snd_mingain", defaultMinGain, cvar.NONE)
	m.cvUncullGain = m.registry.MustNew("snd_uncullgain", defaultMinUncullGain, cvar.NONE)
	m.cvUncullPeriod = m.registry.MustNew("snd_uncullperiod", defaultMinUncullPeriod, cvar.NONE)

	names := [NumChannels]string{
		ChannelDefault: "snd_defaultvolume",
		ChannelEffect:  "snd_effectvolume",
		ChannelGUI:     "snd_guivolume",
		ChannelMusic:   "snd_musicvolume",
		ChannelVoice:   "snd_voicevolume",
	}
	for ch, name := range names {
		m.cvChannel[ch] = m.registry.MustNew(name, "1", cvar.ARCHIVE)
	}

	m.cvMaster.SetCallback(func(*cvar.Cvar) { m.updateTypeGain() })
	for ch := Channel(0); ch < NumChannels; ch++ {
		m.cvChannel[ch].SetCallback(func(*cvar.Cvar) { m.updateTypeGain() })
	}
	m.updateTypeGain()
}

// updateTypeGain pulls the volume variables into the gain tables and
// re-attenuates every live voice on the spot.
func (m *Manager) updateTypeGain() {
	m.masterGain = qm.Clamp01(m.cvMaster.Value())
	for ch := Channel(0); ch < NumChannels; ch++ {
		m.typeGain[ch] = qm.Clamp01(m.cvChannel[ch].Value())
	}
	for _, s := range m.slots {
		if s.handle == handle.Null {
			continue
		}
		s.v.SetGain(m.attenuatedGain(s))
	}
}

// Cvars exposes the manager's preference variables so a host config
// layer can list and persist them.
func (m *Manager) Cvars() *cvar.Registry {
	return m.registry
}

func (m *Manager) minGain() float32 {
	return m.cvMinGain.Value()
}

func (m *Manager) minUncullGain() float32 {
	return m.cvUncullGain.Value()
}

func (m *Manager) uncullPeriod() time.Duration {
	return time.Duration(m.cvUncullPeriod.Value()) * time.Millisecond
}

// CreateSource admits a logical source and tries to give it a voice
// right away. It returns the null handle when the request is rejected:
// bad description, channel out of range, one-shot on a muted channel, or
// a one-shot too quiet to hear. Looping and streaming sources are
// admitted even without a voice; they persist as records until stopped.
// The source does not start until Play.
func (m *Manager) CreateSource(desc *Description, name string, p *Placement, env *SampleEnvironment) handle.Handle {
	if desc == nil || name == "" {
		return handle.Null
	}
	if desc.Channel < 0 || desc.Channel >= NumChannels {
		return handle.Null
	}
	persistent := desc.IsLooping || desc.IsStreaming
	chanGain := m.typeGain[desc.Channel]
	if chanGain <= 0 && !persistent {
		return handle.Null
	}

	volume := desc.Volume * chanGain
	if desc.Is3D && p != nil {
		d := vec.Distance(p.Position, m.listener.Position)
		volume *= distanceAttenuation(d, desc.ReferenceDistance, desc.MaxDistance)
	}
	if !persistent && volume <= m.minGain() {
		return handle.Null
	}

	var s *slot
	if volume > m.minGain() {
		s = m.findFreeSlot()
		if s == nil {
			m.updateScores(true)
			s = m.cullSource(volume)
		}
	}

	var roles handle.Role
	if desc.IsLooping {
		roles |= handle.Looping
	}
	if desc.IsStreaming {
		roles |= handle.Streaming
	}
	h := m.alloc.Next().WithRole(roles | handle.Inactive)

	if s == nil {
		if !persistent || !m.admitWithoutVoice(h, desc, name, p, env) {
			return handle.Null
		}
		return h.Public()
	}

	switch {
	case desc.IsStreaming:
		res, err := m.openStream(name)
		if err != nil {
			return handle.Null
		}
		streamer, err := res.Init()
		if err != nil {
			res.Free()
			return handle.Null
		}
		m.bindCreated(s, h, desc, p, env, volume)
		// the loading bit shields the voice from eviction and garbage
		// collection until Play, when the stream is known good
		s.handle = s.handle.WithRole(handle.Loading)
		s.v.LoadStream(streamer)
		rec := &streamingSource{
			handle: h,
			res:    res,
			desc:   *desc,
			env:    env,
			pitch:  1,
		}
		applyPlacement(&rec.position, &rec.direction, p)
		m.streamingAll.push(rec)
		m.streamingInactive.push(rec)
	case desc.IsLooping:
		buf, err := m.resolver.Fetch(name)
		if err != nil {
			return handle.Null
		}
		m.bindCreated(s, h, desc, p, env, volume)
		s.buffer = buf
		s.v.Load(buf, true)
		img := m.newLoopingImage()
		img.handle = h
		img.buffer = buf
		img.desc = *desc
		img.env = env
		applyPlacement(&img.position, &img.direction, p)
		m.loopingAll.push(img)
		m.loopingInactive.push(img)
	default:
		buf, err := m.resolver.Fetch(name)
		if err != nil {
			return handle.Null
		}
		m.bindCreated(s, h, desc, p, env, volume)
		s.buffer = buf
		s.v.Load(buf, false)
	}
	return h.Public()
}

// admitWithoutVoice registers a persistent source in the inactive set.
// It competes for a voice once Play is called.
func (m *Manager) admitWithoutVoice(h handle.Handle, desc *Description, name string, p *Placement, env *SampleEnvironment) bool {
	if desc.IsStreaming {
		res, err := m.openStream(name)
		if err != nil {
			return false
		}
		rec := &streamingSource{
			handle: h,
			res:    res,
			desc:   *desc,
			env:    env,
			pitch:  1,
		}
		applyPlacement(&rec.position, &rec.direction, p)
		m.streamingAll.push(rec)
		m.streamingInactive.push(rec)
		return true
	}
	buf, err := m.resolver.Fetch(name)
	if err != nil {
		return false
	}
	img := m.newLoopingImage()
	img.handle = h
	img.buffer = buf
	img.desc = *desc
	img.env = env
	applyPlacement(&img.position, &img.direction, p)
	m.loopingAll.push(img)
	m.loopingInactive.push(img)
	return true
}

func applyPlacement(pos, dir *vec.Vec3, p *Placement) {
	if p == nil {
		return
	}
	*pos = p.Position
	if p.Direction != (vec.Vec3{}) {
		*dir = p.Direction
	}
}

// bindCreated fills a freed slot from the creation request and programs
// the voice. The handle keeps the inactive bit until Play.
func (m *Manager) bindCreated(s *slot, h handle.Handle, desc *Description, p *Placement, env *SampleEnvironment, volume float32) {
	s.handle = h
	s.channel = desc.Channel
	s.volume = desc.Volume
	s.score = volume
	s.is3D = desc.Is3D
	applyPlacement(&s.position, &s.direction, p)
	s.refDist = desc.ReferenceDistance
	s.maxDist = desc.MaxDistance
	s.pitch = 1
	s.coneInsideAngle = desc.ConeInsideAngle
	s.coneOutsideAngle = desc.ConeOutsideAngle
	s.coneOutsideVolume = desc.ConeOutsideVolume
	s.env = env
	s.envLevel = desc.EnvironmentLevel
	m.configureVoice(s)
}

// Play starts or resumes a source. A source holding a voice starts
// immediately; a voiceless looping or streaming source moves from the
// inactive to the culled set and gets an immediate reactivation attempt,
// staying pending if it loses. Unknown handles return the null handle.
func (m *Manager) Play(h handle.Handle) handle.Handle {
	if s := m.findSlot(h); s != nil {
		// already playing: resume is a no-op, never a restart
		if s.handle.HasRole(handle.Inactive) {
			s.handle = s.handle.WithoutRole(handle.Inactive | handle.Loading)
			m.activateRecord(s.handle)
			s.v.Play()
		}
		return s.handle.Public()
	}
	if i := m.loopingAll.find(h); i >= 0 {
		img := m.loopingAll[i]
		if j := m.loopingInactive.find(h); j >= 0 {
			m.loopingInactive.removeAt(j)
			m.loopingCulled.push(img)
		}
		m.updateScores(false)
		m.loopingUpdate()
		return img.handle.Public()
	}
	if i := m.streamingAll.find(h); i >= 0 {
		rec := m.streamingAll[i]
		if j := m.streamingInactive.find(h); j >= 0 {
			m.streamingInactive.removeAt(j)
			m.streamingCulled.push(rec)
		}
		m.updateScores(false)
		m.streamingUpdate()
		return rec.handle.Public()
	}
	return handle.Null
}

// activateRecord clears the inactive flag on the persistent record of a
// voice-holding source the moment it starts playing.
func (m *Manager) activateRecord(h handle.Handle) {
	if i := m.loopingInactive.find(h); i >= 0 {
		img := m.loopingInactive[i]
		img.handle = img.handle.WithoutRole(handle.Inactive)
		m.loopingInactive.removeAt(i)
	}
	if i := m.streamingInactive.find(h); i >= 0 {
		rec := m.streamingInactive[i]
		rec.handle = rec.handle.WithoutRole(handle.Inactive)
		m.streamingInactive.removeAt(i)
	}
}

// Stop tears a source down for good. Safe on unknown and already
// stopped handles.
func (m *Manager) Stop(h handle.Handle) {
	if s := m.findSlot(h); s != nil {
		s.v.Stop()
		s.clear()
	}
	if i := m.loopingAll.find(h); i >= 0 {
		img := m.loopingAll[i]
		m.loopingAll.removeAt(i)
		if j := m.loopingInactive.find(h); j >= 0 {
			m.loopingInactive.removeAt(j)
		}
		if j := m.loopingCulled.find(h); j >= 0 {
			m.loopingCulled.removeAt(j)
		}
		m.freeLoopingImage(img)
	}
	if i := m.streamingAll.find(h); i >= 0 {
		m.destroyStreaming(m.streamingAll[i])
	}
}

// StopAll tears down every source: active, inactive, and culled.
func (m *Manager) StopAll() {
	for _, s := range m.slots {
		if s.handle == handle.Null {
			continue
		}
		s.v.Stop()
		s.clear()
	}
	for _, img := range m.loopingAll {
		m.freeLoopingImage(img)
	}
	m.loopingAll = m.loopingAll[:0]
	m.loopingInactive = m.loopingInactive[:0]
	m.loopingCulled = m.loopingCulled[:0]
	for _, rec := range m.streamingAll {
		rec.res.Free()
	}
	m.streamingAll = m.streamingAll[:0]
	m.streamingInactive = m.streamingInactive[:0]
	m.streamingCulled = m.streamingCulled[:0]
}

// Tick is the once-per-frame update: distance gain correction, garbage
// collection of voices the device finished on its own, rescoring, then
// the looping and streaming reactivation passes.
func (m *Manager) Tick() {
	m.updateMaxDistance()
	m.closeHandles()
	m.updateScores(false)
	m.loopingUpdate()
	m.streamingUpdate()
}

// IsValidHandle reports whether the handle still names a live source.
func (m *Manager) IsValidHandle(h handle.Handle) bool {
	if h == handle.Null {
		return false
	}
	if m.findSlot(h) != nil {
		return true
	}
	return m.loopingAll.find(h) >= 0 || m.streamingAll.find(h) >= 0
}

// IsPlaying reports whether a voice is currently producing the source.
func (m *Manager) IsPlaying(h handle.Handle) bool {
	s := m.findSlot(h)
	return s != nil && !s.handle.HasRole(handle.Inactive) && s.v.Playing()
}

// StreamElapsed returns the playback position of a streaming source in
// seconds, or -1 while the stream is culled or the handle is unknown.
func (m *Manager) StreamElapsed(h handle.Handle) float32 {
	if i := m.streamingAll.find(h); i >= 0 {
		return m.streamingAll[i].res.Elapsed()
	}
	return -1
}

// StreamDuration returns the total length of a streaming source in
// seconds, or -1 for unknown handles. The length survives culling.
func (m *Manager) StreamDuration(h handle.Handle) float32 {
	if i := m.streamingAll.find(h); i >= 0 {
		return m.streamingAll[i].res.Duration()
	}
	return -1
}

// SetChannelVolume scales every source of the channel, live voices
// immediately. Out-of-range channels are ignored.
func (m *Manager) SetChannelVolume(ch Channel, volume float32) {
	if ch < 0 || ch >= NumChannels {
		return
	}
	m.cvChannel[ch].SetValue(qm.Clamp01(volume))
}

func (m *Manager) ChannelVolume(ch Channel) float32 {
	if ch < 0 || ch >= NumChannels {
		return 0
	}
	return m.typeGain[ch]
}

// SetMasterVolume scales all output. Scores never include it, so a
// global mute does not disturb eviction decisions.
func (m *Manager) SetMasterVolume(volume float32) {
	m.cvMaster.SetValue(qm.Clamp01(volume))
}

func (m *Manager) MasterVolume() float32 {
	return m.masterGain
}

// SetMasterVolumeDB is SetMasterVolume on the perceptual curve.
func (m *Manager) SetMasterVolumeDB(volume float32) {
	m.SetMasterVolume(gain.DBToLinear(volume))
}

// SetListener moves the pose scores and distance corrections are
// computed against.
func (m *Manager) SetListener(l Listener) {
	m.listener = l
}

// Metrics is a point-in-time census of the manager, for debug overlays.
type Metrics struct {
	Voices       int
	ActiveVoices int

	LoopingSources  int
	LoopingInactive int
	LoopingCulled   int

	StreamingSources  int
	StreamingInactive int
	StreamingCulled   int
}

func (m *Manager) Metrics() Metrics {
	mt := Metrics{
		Voices:            len(m.slots),
		LoopingSources:    len(m.loopingAll),
		LoopingInactive:   len(m.loopingInactive),
		LoopingCulled:     len(m.loopingCulled),
		StreamingSources:  len(m.streamingAll),
		StreamingInactive: len(m.streamingInactive),
		StreamingCulled:   len(m.streamingCulled),
	}
	for _, s := range m.slots {
		if s.handle != handle.Null {
			mt.ActiveVoices++
		}
	}
	return mt
}

// Shutdown stops everything and closes the device.
func (m *Manager) Shutdown() error {
	m.StopAll()
	return m.device.Close()
}

// assertf guards internal invariants. A failure is a bug in the
// manager, never a runtime condition a caller can cause.
func assertf(cond bool, format string, args ...interface{}) {
	if !cond {
		panic(fmt.Sprintf("snd: "+format, args...))
	}
}
