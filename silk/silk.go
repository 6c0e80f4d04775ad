// Package silk implements the linear-prediction speech core. Each 20 ms
// frame at 8, 12 or 16 kHz carries reflection coefficients quantized in the
// arcsine domain, a per-subframe quantization step, an optional pitch lag
// with single-tap long-term prediction, and an excitation produced by a
// noise-shaping quantizer. Encoder and decoder run the same reconstruction
// so their filter histories stay identical.
package silk

import (
	"math"

	"github.com/thesyncim/opuscore/rangecoding"
)

const (
	maxOrder       = 16
	maxSubframes   = 4
	maxSubframeLen = 80
	maxFrameLen    = maxSubframes * maxSubframeLen

	// excMem is the excitation history kept for long-term prediction. It
	// covers the longest lag plus the largest subframe adjustment.
	excMem = 512

	// histLen is the input history kept for analysis.
	histLen = 320

	// maxLagDelta bounds the per-subframe pitch lag adjustment.
	maxLagDelta = 4

	numGainLevels  = 64
	numLTPLevels   = 8
	numDecayLevels = 16

	// decayRatio is the ratio between the mean magnitudes of consecutive
	// excitation models.
	decayRatio = 1.75

	// maxPulse bounds the magnitude of one excitation index.
	maxPulse = 2048

	// shapingGamma is the bandwidth expansion of the noise-shaping filter.
	shapingGamma = 0.94

	// lagWindowHz and noiseFloor condition the LPC analysis.
	lagWindowHz = 60
	noiseFloor  = 2e-4

	// sideSkipRatio is the side/mid energy ratio below which the side
	// channel is not coded.
	sideSkipRatio = 1e-3

	// voicingThreshold is the normalized correlation above which a frame
	// is coded as voiced.
	voicingThreshold = 0.5

	sigScale = 32768.0
)

// EncoderPhase reports where the encoder is in the per-frame pipeline.
type EncoderPhase uint8

const (
	PhaseInactive   EncoderPhase = iota // no frame coded since reset
	PhaseAnalyzing                      // LPC and pitch analysis
	PhasePredicting                     // coefficient quantization
	PhaseQuantizing                     // noise-shaping quantization
	PhaseEncoded                        // frame complete
)

func (p EncoderPhase) String() string {
	switch p {
	case PhaseInactive:
		return "inactive"
	case PhaseAnalyzing:
		return "analyzing"
	case PhasePredicting:
		return "predicting"
	case PhaseQuantizing:
		return "quantizing"
	case PhaseEncoded:
		return "encoded"
	}
	return "unknown"
}

// DecoderPhase reports where the decoder is in the per-frame pipeline.
type DecoderPhase uint8

const (
	PhaseDone           DecoderPhase = iota // idle or frame complete
	PhaseDecoding                           // reading parameters
	PhaseReconstructing                     // synthesis
)

func (p DecoderPhase) String() string {
	switch p {
	case PhaseDone:
		return "done"
	case PhaseDecoding:
		return "decoding"
	case PhaseReconstructing:
		return "reconstructing"
	}
	return "unknown"
}

// lpcStep returns the arcsine-domain quantization step of reflection
// coefficient i and the largest index magnitude.
func lpcStep(i int) (step float64, qmax int) {
	switch {
	case i < 4:
		return 1.0 / 32, 31
	case i < 8:
		return 1.0 / 24, 23
	default:
		return 1.0 / 16, 15
	}
}

// reflection maps a coefficient index back to a reflection coefficient.
func reflection(i, q int) float64 {
	step, _ := lpcStep(i)
	return math.Sin(float64(q) * step * math.Pi / 2)
}

// gainStep maps a gain index to the quantization step (int16 scale).
func gainStep(g int) float64 {
	return math.Exp2(float64(g) / 4)
}

// ltpLevels are the single-tap long-term prediction gains.
var ltpLevels = [numLTPLevels]float64{0.05, 0.15, 0.25, 0.35, 0.5, 0.65, 0.8, 0.95}

type laplaceModel struct {
	fs    uint32
	decay int
}

func newLaplaceModel(r float64) laplaceModel {
	fs, decay := rangecoding.LaplaceParams(r)
	return laplaceModel{fs: fs, decay: decay}
}

var (
	lpcModel   = newLaplaceModel(0.55)
	gainModel  = newLaplaceModel(0.6)
	deltaModel = newLaplaceModel(0.4)

	// decayModels are the excitation models, indexed by the per-frame
	// decay index. Entry i targets a mean magnitude of 0.01*1.75^i.
	decayModels, decayMeans = buildDecayModels()
)

func buildDecayModels() ([numDecayLevels]laplaceModel, [numDecayLevels]float64) {
	var models [numDecayLevels]laplaceModel
	var means [numDecayLevels]float64
	m := 0.01
	for i := range models {
		means[i] = m
		models[i] = newLaplaceModel(m / (1 + m))
		m *= decayRatio
	}
	return models, means
}

// decayIndex picks the excitation model closest to the expected mean
// magnitude in the log domain.
func decayIndex(mean float64) int {
	best, bestD := 0, math.Inf(1)
	lm := math.Log(math.Max(mean, 1e-4))
	for i, m := range decayMeans {
		if d := math.Abs(math.Log(m) - lm); d < bestD {
			best, bestD = i, d
		}
	}
	return best
}
