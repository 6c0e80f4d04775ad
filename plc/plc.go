// Package plc tracks packet loss concealment across frames.
//
// The concealment itself runs inside the codec cores: CELT decays its band
// energies and fills the bands with noise, SILK keeps its synthesis filter
// running on a pitch-repeated or noise excitation. State decides how much
// each concealed frame is attenuated and which core conceals it.
package plc

import "github.com/thesyncim/opuscore/types"

const (
	// MaxConcealedFrames is the number of consecutive lost frames after
	// which the output is silent.
	MaxConcealedFrames = 5

	// FirstLossGain is the attenuation of the first concealed frame.
	FirstLossGain = 0.9

	// FadePerFrame is the attenuation of every further concealed frame,
	// about -6 dB.
	FadePerFrame = 0.5

	// silenceThreshold is the accumulated gain below which the output is
	// treated as silent.
	silenceThreshold = 0.001
)

// State tracks consecutive losses and the parameters of the last good frame.
// The zero value is not ready; use NewState.
type State struct {
	lostCount int
	fade      float64

	mode          types.Mode
	haveFrame     bool
	lastFrameSize int
	lastChannels  int
}

// NewState returns a state with no recorded loss and a 20 ms mono frame
// as the default concealment shape.
func NewState() *State {
	return &State{fade: 1, lastFrameSize: 960, lastChannels: 1}
}

// Reset forgets the loss run. Call it after every good frame.
func (s *State) Reset() {
	s.lostCount = 0
	s.fade = 1
}

// Clear returns the state to NewState's.
func (s *State) Clear() {
	*s = *NewState()
}

// RecordLoss registers one lost frame, not packet, and returns the attenuation to apply
// to it relative to the previous frame. The codec cores accumulate this
// step into their own state, so the overall level follows FadeFactor.
// Once the run is exhausted the step is 0.
func (s *State) RecordLoss() float64 {
	s.lostCount++
	step := FadePerFrame
	if s.lostCount == 1 {
		step = FirstLossGain
	}
	if s.lostCount > MaxConcealedFrames {
		step = 0
	}
	s.fade *= step
	if s.fade < silenceThreshold {
		s.fade, step = 0, 0
	}
	return step
}

// LostCount returns the number of consecutive lost frames.
func (s *State) LostCount() int { return s.lostCount }

// FadeFactor returns the accumulated gain of the current loss run (1 when
// no frame is lost).
func (s *State) FadeFactor() float64 { return s.fade }

// SetLastFrame records the mode and shape of a successfully decoded frame.
func (s *State) SetLastFrame(mode types.Mode, frameSize, channels int) {
	s.mode = mode
	s.lastFrameSize = frameSize
	s.lastChannels = channels
	s.haveFrame = true
}

// Mode returns the mode of the last good frame and whether one was seen.
// Without a previous frame there is nothing to extrapolate and the caller
// outputs silence.
func (s *State) Mode() (types.Mode, bool) { return s.mode, s.haveFrame }

// LastFrameSize returns the frame size of the last good frame at 48 kHz.
func (s *State) LastFrameSize() int { return s.lastFrameSize }

// LastChannels returns the channel count of the last good frame.
func (s *State) LastChannels() int { return s.lastChannels }

// IsExhausted reports whether concealment has faded to silence.
func (s *State) IsExhausted() bool {
	return s.lostCount >= MaxConcealedFrames || s.fade <= silenceThreshold
}
