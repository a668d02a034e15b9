// SPDX-License-Identifier: GPL-2.0-or-later

// Package handle provides the opaque identifiers for logical sound sources.
// A handle packs a wrapping sequence counter into the low bits and role
// flags into the high bits. Two handles name the same logical source when
// their sequence bits match, no matter which role flags are set.
package handle

type Handle uint32

type Role uint32

const (
	Looping   Role = 1 << 31
	Streaming Role = 1 << 30
	Inactive  Role = 1 << 29
	Loading   Role = 1 << 28
)

const (
	Null    Handle = 0
	seqMask        = ^Handle(Looping | Streaming | Inactive | Loading)
)

// Sequence returns the sequence bits of the handle.
func (h Handle) Sequence() uint32 {
	return uint32(h & seqMask)
}

// HasRole reports whether all bits of r are set on the handle.
func (h Handle) HasRole(r Role) bool {
	return h&Handle(r) == Handle(r)
}

// WithRole returns the handle with the bits of r set.
func (h Handle) WithRole(r Role) Handle {
	return h | Handle(r)
}

// WithoutRole returns the handle with the bits of r cleared.
func (h Handle) WithoutRole(r Role) Handle {
	return h &^ Handle(r)
}

// SameSource reports whether a and b address the same logical source.
func (h Handle) SameSource(o Handle) bool {
	return h&seqMask == o&seqMask
}

// Public returns the form of the handle handed back to callers: the
// Inactive and Loading bits are stripped, Looping and Streaming stay so a
// caller can classify the handle without a lookup.
func (h Handle) Public() Handle {
	return h.WithoutRole(Inactive | Loading)
}

// Allocator issues handles with monotonically increasing sequence bits.
// It is not safe for concurrent use; the voice manager serializes access.
type Allocator struct {
	last Handle
}

// Next returns a fresh handle with no role bits set. The sequence wraps
// inside the non-flag bit range and skips Null.
func (a *Allocator) Next() Handle {
	a.last = (a.last + 1) & seqMask
	if a.last == Null {
		a.last++
	}
	return a.last
}
