// SPDX-License-Identifier: GPL-2.0-or-later

// Package cache resolves sound file names to fully decoded buffers and
// keeps them around for reuse. Buffers are reference counted through
// precache groups: a caller precaches the set of sounds a level needs and
// releases the whole group by its id when done.
package cache

import (
	"time"

	"github.com/google/uuid"
	"github.com/gopxl/beep/v2"

	"govox/stream"
	"govox/voice"
)

type Buffer struct {
	name string
	buf  *beep.Buffer
}

func (b *Buffer) Name() string {
	return b.name
}

// Streamer returns a fresh streamer over the decoded samples.
func (b *Buffer) Streamer() beep.Streamer {
	return b.buf.Streamer(0, b.buf.Len())
}

func (b *Buffer) Duration() time.Duration {
	return b.buf.Format().SampleRate.D(b.buf.Len())
}

type entry struct {
	buf  *Buffer
	refs int
}

type Cache struct {
	byName map[string]*entry
	groups map[uuid.UUID][]string
}

func New() *Cache {
	return &Cache{
		byName: make(map[string]*entry),
		groups: make(map[uuid.UUID][]string),
	}
}

// Precache decodes every named file and pins the buffers under a fresh
// group id. On any failure nothing stays pinned.
func (c *Cache) Precache(names ...string) (uuid.UUID, error) {
	id := uuid.Must(uuid.NewV7())
	for i, name := range names {
		if err := c.retain(name); err != nil {
			for _, loaded := range names[:i] {
				c.release(loaded)
			}
			return uuid.Nil, err
		}
	}
	c.groups[id] = names
	return id, nil
}

// Release unpins the group. Buffers drop out of the cache when their last
// group goes away.
func (c *Cache) Release(id uuid.UUID) {
	names, ok := c.groups[id]
	if !ok {
		return
	}
	delete(c.groups, id)
	for _, name := range names {
		c.release(name)
	}
}

// Fetch returns the buffer for name, decoding and pinning it on a miss.
// A buffer loaded this way stays resident until the cache is dropped;
// callers wanting bounded lifetime should precache instead.
func (c *Cache) Fetch(name string) (voice.Buffer, error) {
	if e, ok := c.byName[name]; ok {
		return e.buf, nil
	}
	if err := c.retain(name); err != nil {
		return nil, err
	}
	return c.byName[name].buf, nil
}

// Buffer returns the decoded buffer for a precached name.
func (c *Cache) Buffer(name string) (voice.Buffer, bool) {
	e, ok := c.byName[name]
	if !ok {
		return nil, false
	}
	return e.buf, true
}

func (c *Cache) retain(name string) error {
	if e, ok := c.byName[name]; ok {
		e.refs++
		return nil
	}
	s, format, err := stream.DecodeFile(name)
	if err != nil {
		return err
	}
	buf := beep.NewBuffer(format)
	buf.Append(s)
	s.Close()
	c.byName[name] = &entry{
		buf:  &Buffer{name: name, buf: buf},
		refs: 1,
	}
	return nil
}

func (c *Cache) release(name string) {
	e, ok := c.byName[name]
	if !ok {
		return
	}
	e.refs--
	if e.refs <= 0 {
		delete(c.byName, name)
	}
}
