// SPDX-License-Identifier: GPL-2.0-or-later

// Package cvar holds the tunable preference variables of the audio system.
// Each variable keeps its string form as the truth and derives the float
// value from it, so host config layers can read and write them uniformly.
// Variables live in a Registry owned by the voice manager instance rather
// than in process globals, so independent managers do not share state.
package cvar

import (
	"fmt"
	"strconv"
)

type flag uint32

const (
	NONE    flag = 0
	ARCHIVE flag = 1 // saved to the host's preference file
)

type CallbackFunc func(cv *Cvar)

type Cvar struct {
	archive  bool
	callback CallbackFunc
	name     string
	// stringValue is the truth, value the derived one
	stringValue  string
	value        float32
	defaultValue string
}

func (cv *Cvar) Name() string {
	return cv.name
}

func (cv *Cvar) Archive() bool {
	return cv.archive
}

func (cv *Cvar) SetCallback(cb CallbackFunc) {
	cv.callback = cb
}

func (cv *Cvar) String() string {
	return cv.stringValue
}

func (cv *Cvar) Value() float32 {
	return cv.value
}

func (cv *Cvar) SetByString(s string) {
	cv.stringValue = s
	pf, _ := strconv.ParseFloat(cv.stringValue, 32)
	cv.value = float32(pf)
	if cv.callback != nil {
		cv.callback(cv)
	}
}

func (cv *Cvar) SetValue(value float32) {
	if float32(int(value)) == value {
		cv.SetByString(strconv.FormatInt(int64(value), 10))
	} else {
		cv.SetByString(strconv.FormatFloat(float64(value), 'f', -1, 32))
	}
}

func (cv *Cvar) Reset() {
	cv.SetByString(cv.defaultValue)
}

type Registry struct {
	byName map[string]*Cvar
	list   []*Cvar
}

func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*Cvar),
	}
}

// New registers a variable. Registering a name twice is a programming
// error in the audio system setup.
func (r *Registry) New(name, value string, flags flag) (*Cvar, error) {
	if _, ok := r.byName[name]; ok {
		return nil, fmt.Errorf("cvar %q already registered", name)
	}
	cv := &Cvar{
		name:         name,
		archive:      flags&ARCHIVE != 0,
		defaultValue: value,
	}
	cv.SetByString(value)
	r.byName[name] = cv
	r.list = append(r.list, cv)
	return cv, nil
}

// MustNew is New for the manager's own fixed variable set, where a
// duplicate name can only be an internal bug.
func (r *Registry) MustNew(name, value string, flags flag) *Cvar {
	cv, err := r.New(name, value, flags)
	if err != nil {
		panic(err)
	}
	return cv
}

func (r *Registry) Get(name string) (*Cvar, bool) {
	cv, ok := r.byName[name]
	return cv, ok
}

func (r *Registry) All() []*Cvar {
	return r.list
}
