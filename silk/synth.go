package silk

import (
	"math"

	"github.com/thesyncim/opuscore/internal/dsp"
)

// channelState is the reconstruction state of one coded channel. Encoder and
// decoder hold identical copies as long as they process the same frames.
type channelState struct {
	// Reconstructed excitation history for long-term prediction
	excHist [excMem]float64
	// Last maxOrder reconstructed output samples
	outHist [maxOrder]float64
	// Output error history of the noise-shaping quantizer (encoder only)
	errHist [maxOrder]float64

	// Inter-frame coding context
	prevLPC  [maxOrder]int
	prevGain int
	haveGain bool

	// Last frame's synthesis parameters, used for concealment
	lastA      [maxOrder]float64
	lastLag    int
	lastLTP    float64
	lastVoiced bool
	lastRMS    float64
}

// commitFrame records the coding context of a finished frame.
func (st *channelState) commitFrame(p *frameParams, cfg BandwidthConfig, a []float64, excRMS float64) {
	st.prevLPC = p.lpc
	st.prevGain = p.gain[p.subframes-1]
	st.haveGain = true
	copy(st.lastA[:], a)
	st.lastVoiced = p.voiced
	last := p.subframes - 1
	st.lastLag = p.lagAt(last, cfg)
	st.lastLTP = p.ltpGain(last)
	st.lastRMS = excRMS
}

// synthBuf runs the reconstruction shared by encoder and decoder over one
// frame. exc and out carry excMem and maxOrder samples of history in front
// of the frame.
type synthBuf struct {
	exc [excMem + maxFrameLen]float64
	out [maxOrder + maxFrameLen]float64
}

func (b *synthBuf) load(st *channelState) {
	copy(b.exc[:excMem], st.excHist[:])
	copy(b.out[:maxOrder], st.outHist[:])
}

func (b *synthBuf) store(st *channelState, n int) {
	copy(st.excHist[:], b.exc[n:n+excMem])
	copy(st.outHist[:], b.out[n:n+maxOrder])
}

// predict returns the short- and long-term predictions of sample i.
func (b *synthBuf) predict(i int, a []float64, lag int, ltp float64) (lpcPred, ltpPred float64) {
	o := maxOrder + i
	for j, c := range a {
		lpcPred += c * b.out[o-1-j]
	}
	if ltp != 0 {
		ltpPred = ltp * b.exc[excMem+i-lag]
	}
	return lpcPred, ltpPred
}

// commit adds the quantized residual r to the predictions and returns the
// reconstructed sample.
func (b *synthBuf) commit(i int, lpcPred, ltpPred, r float64) float64 {
	e := ltpPred + r
	b.exc[excMem+i] = e
	y := e + lpcPred
	b.out[maxOrder+i] = y
	return y
}

// output returns the n reconstructed samples of the frame.
func (b *synthBuf) output(n int) []float64 {
	return b.out[maxOrder : maxOrder+n]
}

// excitationRMS returns the RMS of the frame's reconstructed excitation.
func (b *synthBuf) excitationRMS(n int) float64 {
	return math.Sqrt(dsp.Energy(b.exc[excMem:excMem+n]) / float64(n))
}

// predictor converts the coded reflection indices of a frame into predictor
// coefficients.
func predictor(p *frameParams, order int, a []float64) {
	var k [maxOrder]float64
	for i := 0; i < order; i++ {
		k[i] = reflection(i, p.lpc[i])
	}
	dsp.ReflectionToLPC(k[:order], a[:order])
}
