// SPDX-License-Identifier: GPL-2.0-or-later

// Package stream manages the decoder side of streamed sounds (music,
// spoken voice). A Source owns at most one live decoder at a time; the
// voice manager frees it synchronously when the sound is culled and
// re-initializes it from scratch on reactivation, so decoders never pile
// up behind evicted sounds.
package stream

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
	"github.com/pkg/errors"
)

var ErrUnsupported = errors.New("unsupported audio format")

// DecodeFile opens name and picks a decoder by file extension.
func DecodeFile(name string) (beep.StreamSeekCloser, beep.Format, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, beep.Format{}, errors.Wrap(err, "open stream file")
	}
	var (
		s      beep.StreamSeekCloser
		format beep.Format
	)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".wav":
		s, format, err = wav.Decode(f)
	case ".mp3":
		s, format, err = mp3.Decode(f)
	case ".ogg":
		s, format, err = vorbis.Decode(f)
	default:
		f.Close()
		return nil, beep.Format{}, errors.Wrapf(ErrUnsupported, "%q", name)
	}
	if err != nil {
		f.Close()
		return nil, beep.Format{}, errors.Wrapf(err, "decode %q", name)
	}
	return s, format, nil
}

// Source is the stream resource behind one streaming sound.
type Source struct {
	name     string
	s        beep.StreamSeekCloser
	format   beep.Format
	duration float32
}

// Open probes name (a full header decode, immediately released) and
// returns a Source with no live decoder. Init acquires the decoder.
func Open(name string) (*Source, error) {
	s, format, err := DecodeFile(name)
	if err != nil {
		return nil, err
	}
	d := float32(s.Len()) / float32(format.SampleRate)
	s.Close()
	return &Source{
		name:     name,
		format:   format,
		duration: d,
	}, nil
}

func (src *Source) Name() string {
	return src.name
}

// Init acquires a fresh decoder positioned at the start. Always restarts
// from zero; resuming at the previous offset is not supported.
func (src *Source) Init() (beep.Streamer, error) {
	src.Free()
	s, format, err := DecodeFile(src.name)
	if err != nil {
		return nil, err
	}
	src.s = s
	src.format = format
	return s, nil
}

// Free releases the decoder synchronously. Safe to call repeatedly and on
// a Source that was never initialized.
func (src *Source) Free() {
	if src.s == nil {
		return
	}
	src.s.Close()
	src.s = nil
}

// Elapsed returns the playback position in seconds, or -1 when the stream
// is released.
func (src *Source) Elapsed() float32 {
	if src.s == nil {
		return -1
	}
	return float32(src.s.Position()) / float32(src.format.SampleRate)
}

// Duration returns the total length in seconds, known from the Open probe
// even while the decoder is released.
func (src *Source) Duration() float32 {
	return src.duration
}

// Service is the per-tick buffer-queue check for an active stream. The
// mixer pulls samples on its own; what is left to do here is surfacing
// decoder errors.
func (src *Source) Service() error {
	if src.s == nil {
		return nil
	}
	return errors.Wrapf(src.s.Err(), "stream %q", src.name)
}
