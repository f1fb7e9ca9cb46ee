package mods

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/patchgrid/patchgrid"
)

func writeRawClip(t *testing.T, frames int, value int16) string {
	t.Helper()
	raw := make([]byte, frames*4)
	for i := 0; i < frames; i++ {
		binary.LittleEndian.PutUint16(raw[i*4:], uint16(value))
		binary.LittleEndian.PutUint16(raw[i*4+2:], uint16(-value))
	}
	path := filepath.Join(t.TempDir(), "clip.raw")
	if err := os.WriteFile(path, raw, 0644); err != nil {
		t.Fatalf("could not write test clip: %v", err)
	}
	return path
}

func TestClipDegradedWithoutData(t *testing.T) {
	clip := mustMake(t, "clip").(*Clip)
	if clip.CanProvideTimeline() {
		t.Errorf("empty clip claims timeline capability")
	}
	block := newBlock(clipInfo)
	block.Transport = patchgrid.TransportState{Playing: true}
	clip.Process(block, nil)
	if block.Out[0][0] != 0 || block.Out[1][0] != 0 {
		t.Errorf("degraded clip must render silence")
	}
	if clip.TimelineActive() {
		t.Errorf("degraded clip claims to be active")
	}
}

func TestClipLoadFailureKeepsOldData(t *testing.T) {
	clip := mustMake(t, "clip").(*Clip)
	path := writeRawClip(t, 64, 16384)
	if err := clip.Load(path); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := clip.Load(filepath.Join(t.TempDir(), "missing.raw")); err == nil {
		t.Fatalf("loading a missing file should fail")
	}
	if !clip.CanProvideTimeline() {
		t.Errorf("failed reload dropped the previous sample data")
	}
}

func TestClipPlaybackAndTimeline(t *testing.T) {
	clip := mustMake(t, "clip").(*Clip)
	path := writeRawClip(t, 44100, 16384) // one second at the engine rate
	if err := clip.Load(path); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := clip.TimelineDuration(); !closeEnough64(got, 1) {
		t.Errorf("duration = %v, want 1s", got)
	}
	block := newBlock(clipInfo)
	block.Transport = patchgrid.TransportState{Playing: true}
	clip.Process(block, nil)
	if got := block.Out[0][0]; !close32(got, 0.5) {
		t.Errorf("left sample = %v, want 0.5", got)
	}
	if got := block.Out[1][0]; !close32(got, -0.5) {
		t.Errorf("right sample = %v, want -0.5", got)
	}
	if !clip.TimelineActive() {
		t.Errorf("playing clip reports inactive timeline")
	}
	if got := clip.TimelinePosition(); !closeEnough64(got, float64(testFrames)/44100) {
		t.Errorf("position after one block = %v, want %v", got, float64(testFrames)/44100)
	}
}

func TestClipStopsAtEndWithoutLoop(t *testing.T) {
	clip := mustMake(t, "clip").(*Clip)
	path := writeRawClip(t, 4, 16384) // shorter than one block
	if err := clip.Load(path); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	block := newBlock(clipInfo)
	block.Transport = patchgrid.TransportState{Playing: true}
	clip.Process(block, nil)
	if clip.TimelineActive() {
		t.Errorf("clip still active past its end")
	}
	if got := block.Out[0][8]; got != 0 {
		t.Errorf("sample past the clip end = %v, want 0", got)
	}
}

func TestClipLoops(t *testing.T) {
	clip := mustMake(t, "clip").(*Clip)
	path := writeRawClip(t, 4, 16384)
	if err := clip.Load(path); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := clip.SetParam("loop", 1); err != nil {
		t.Fatalf("SetParam failed: %v", err)
	}
	block := newBlock(clipInfo)
	block.Transport = patchgrid.TransportState{Playing: true}
	clip.Process(block, nil)
	if got := block.Out[0][8]; !close32(got, 0.5) {
		t.Errorf("looped sample = %v, want 0.5", got)
	}
	if !clip.TimelineActive() {
		t.Errorf("looping clip reports inactive timeline")
	}
}

func closeEnough64(a, b float64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff < 1e-9
}
