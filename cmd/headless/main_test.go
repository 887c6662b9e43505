package main

import (
	"testing"

	"github.com/jakecoffman/cp"
)

func TestScript(t *testing.T) {
	spawn := cp.Vector{Y: 200}
	charging := 0
	for i := 0; i < strokeFrames; i++ {
		if script(i, spawn).Primary {
			charging++
		}
	}
	if charging != chargeFrames {
		t.Errorf("charging frames per stroke = %d; want %d", charging, chargeFrames)
	}

	first := script(0, spawn).Pointer
	if want := (cp.Vector{X: 0, Y: 200 - turnRadius}); first.Distance(want) > 1e-9 {
		t.Errorf("first target = %v; want straight up at %v", first, want)
	}
	for i := 0; i < 8*strokeFrames; i += strokeFrames {
		if d := script(i, spawn).Pointer.Distance(spawn); d < turnRadius-1e-9 || d > turnRadius+1e-9 {
			t.Errorf("target at frame %d is %v from spawn; want %v", i, d, turnRadius)
		}
	}
	if script(strokeFrames, spawn).Pointer == first {
		t.Errorf("target should move between strokes")
	}
}
