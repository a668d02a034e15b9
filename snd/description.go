// SPDX-License-Identifier: GPL-2.0-or-later

package snd

import (
	"govox/math/vec"
)

// Channel groups sources into mixable categories with a shared volume.
type Channel int

const (
	ChannelDefault Channel = iota
	ChannelEffect
	ChannelGUI
	ChannelMusic
	ChannelVoice
	NumChannels
)

// Description carries everything needed to start a source. It is copied
// into the manager's bookkeeping on create, so callers may reuse it.
type Description struct {
	Volume      float32 // unattenuated source volume in [0,1]
	IsLooping   bool
	IsStreaming bool
	Is3D        bool
	Channel     Channel

	// linear distance falloff, active between the two radii
	ReferenceDistance float32
	MaxDistance       float32

	ConeInsideAngle   int32
	ConeOutsideAngle  int32
	ConeOutsideVolume float32

	EnvironmentLevel float32
}

// Placement is the 3D pose of a source. A nil placement means a 2D
// source played relative to the listener.
type Placement struct {
	Position  vec.Vec3
	Direction vec.Vec3
}

// SampleEnvironment is the per-sample environmental-effects descriptor
// forwarded to devices that support reverb processing.
type SampleEnvironment struct {
	Direct, DirectHF int32
	Room, RoomHF     int32
	OutsideVolumeHF  int32

	Obstruction   float32
	Occlusion     float32
	RoomRolloff   float32
	AirAbsorption float32
}

// Listener is the pose scores and distance corrections are computed
// against.
type Listener struct {
	Position vec.Vec3
	Forward  vec.Vec3
	Up       vec.Vec3
}
