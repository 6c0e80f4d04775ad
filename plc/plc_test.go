package plc

import (
	"math"
	"testing"

	"github.com/thesyncim/opuscore/types"
)

func TestRecordLossFadeProfile(t *testing.T) {
	s := NewState()
	if s.LostCount() != 0 || s.FadeFactor() != 1 || s.IsExhausted() {
		t.Fatalf("fresh state: lost %d fade %g exhausted %v", s.LostCount(), s.FadeFactor(), s.IsExhausted())
	}
	want := 1.0
	for i := 1; i <= MaxConcealedFrames; i++ {
		step := s.RecordLoss()
		wantStep := FadePerFrame
		if i == 1 {
			wantStep = FirstLossGain
		}
		if step != wantStep {
			t.Errorf("loss %d: step = %g, want %g", i, step, wantStep)
		}
		want *= wantStep
		if math.Abs(s.FadeFactor()-want) > 1e-12 {
			t.Errorf("loss %d: fade = %g, want %g", i, s.FadeFactor(), want)
		}
		if s.LostCount() != i {
			t.Errorf("loss %d: LostCount = %d", i, s.LostCount())
		}
	}
	if !s.IsExhausted() {
		t.Error("not exhausted after MaxConcealedFrames losses")
	}
	if step := s.RecordLoss(); step != 0 || s.FadeFactor() != 0 {
		t.Errorf("after exhaustion: step %g fade %g", step, s.FadeFactor())
	}
}

func TestResetEndsLossRun(t *testing.T) {
	s := NewState()
	s.RecordLoss()
	s.RecordLoss()
	s.Reset()
	if s.LostCount() != 0 || s.FadeFactor() != 1 {
		t.Errorf("after Reset: lost %d fade %g", s.LostCount(), s.FadeFactor())
	}
	if step := s.RecordLoss(); step != FirstLossGain {
		t.Errorf("first loss after Reset: step %g", step)
	}
}

func TestLastFrame(t *testing.T) {
	s := NewState()
	if _, ok := s.Mode(); ok {
		t.Error("fresh state reports a previous frame")
	}
	if s.LastFrameSize() != 960 || s.LastChannels() != 1 {
		t.Errorf("defaults: %d samples, %d channels", s.LastFrameSize(), s.LastChannels())
	}
	s.SetLastFrame(types.ModeHybrid, 480, 2)
	m, ok := s.Mode()
	if !ok || m != types.ModeHybrid || s.LastFrameSize() != 480 || s.LastChannels() != 2 {
		t.Errorf("got mode %v ok %v size %d channels %d", m, ok, s.LastFrameSize(), s.LastChannels())
	}
	s.Clear()
	if _, ok := s.Mode(); ok {
		t.Error("Clear kept the previous frame")
	}
}
