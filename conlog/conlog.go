// SPDX-License-Identifier: GPL-2.0-or-later

// Package conlog routes diagnostic prints from the audio system to the
// host's console. By default everything goes through the standard logger;
// hosts with their own console install hooks via SetPrintf/SetDPrintf.
package conlog

import (
	"log"
)

var (
	p  func(string, ...interface{}) = log.Printf
	dp func(string, ...interface{}) = func(string, ...interface{}) {}
)

func SetPrintf(f func(string, ...interface{})) {
	p = f
}

// SetDPrintf installs the sink for developer-level prints, which are
// dropped when no sink is set.
func SetDPrintf(f func(string, ...interface{})) {
	dp = f
}

func Printf(format string, v ...interface{}) {
	p(format, v...)
}

func DPrintf(format string, v ...interface{}) {
	dp(format, v...)
}
