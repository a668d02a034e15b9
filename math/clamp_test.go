// SPDX-License-Identifier: GPL-2.0-or-later

package math

import (
	"testing"
)

func TestClampMin(t *testing.T) {
	v := Clamp(1, 0, 10)
	if v != 1 {
		t.Errorf("Clamp(1,0,10) = %v", v)
	}
}

func TestClampMax(t *testing.T) {
	v := Clamp(1, 100, 10)
	if v != 10 {
		t.Errorf("Clamp(1,100,10) = %v", v)
	}
}

func TestClampVal(t *testing.T) {
	v := Clamp(1, 5, 10)
	if v != 5 {
		t.Errorf("Clamp(1,5,10) = %v", v)
	}
}

func TestClamp01(t *testing.T) {
	if v := Clamp01(1.5); v != 1 {
		t.Errorf("Clamp01(1.5) = %v", v)
	}
	if v := Clamp01(-0.5); v != 0 {
		t.Errorf("Clamp01(-0.5) = %v", v)
	}
	if v := Clamp01(0.25); v != 0.25 {
		t.Errorf("Clamp01(0.25) = %v", v)
	}
}
