package silk

import (
	"math"

	"github.com/thesyncim/opuscore/internal/dsp"
	"github.com/thesyncim/opuscore/util"
)

// analysis is the encoder's open-loop analysis of one channel frame.
type analysis struct {
	buf [histLen + maxFrameLen]float64
	res [histLen + maxFrameLen]float64
	seg [histLen + maxFrameLen]float64
	r   [maxOrder + 1]float64
	a   [maxOrder]float64
	k   [maxOrder]float64

	// rms is the open-loop residual level of each subframe after long-term
	// prediction.
	rms [maxSubframes]float64
}

// analyze fills the coefficient, pitch and long-term prediction fields of p
// from the frame x and the channel's input history.
func (an *analysis) analyze(hist *[histLen]float64, x []float64, cfg BandwidthConfig, p *frameParams, win []float64) {
	n := len(x)
	order := cfg.LPCOrder
	buf := an.buf[:histLen+n]
	copy(buf, hist[:])
	copy(buf[histLen:], x)

	seg := an.seg[:len(win)]
	tail := buf[len(buf)-len(win):]
	for i, w := range win {
		seg[i] = tail[i] * w
	}
	r := an.r[:order+1]
	dsp.Autocorrelation(seg, r)
	dsp.LagWindow(r, lagWindowHz, cfg.SampleRate, noiseFloor)
	dsp.Levinson(r, an.a[:order], an.k[:order])
	for i := 0; i < order; i++ {
		step, qmax := lpcStep(i)
		u := math.Asin(an.k[i]) * 2 / math.Pi
		p.lpc[i] = util.Clamp(int(math.Round(u/step)), -qmax, qmax)
	}
	predictor(p, order, an.a[:])

	res := an.res[:histLen+n]
	clear(res[:order])
	dsp.Residual(buf, an.a[:order], res[order:])

	p.voiced = false
	lag, corr := searchPitch(res, n, cfg)
	level := math.Sqrt(dsp.Energy(x) / float64(n))
	if lag > 0 && corr > voicingThreshold && level > 16 {
		p.voiced = true
		p.lag = lag
	}

	l := cfg.SubframeSamples
	for s := 0; s < p.subframes; s++ {
		cur := res[histLen+s*l : histLen+(s+1)*l]
		if !p.voiced {
			an.rms[s] = math.Sqrt(dsp.Energy(cur) / float64(l))
			continue
		}
		best, bestCorr := lag, -2.0
		for d := -maxLagDelta; d <= maxLagDelta; d++ {
			t := util.Clamp(lag+d, cfg.PitchLagMin, cfg.PitchLagMax)
			if c := normCorr(cur, res[histLen+s*l-t:histLen+(s+1)*l-t]); c > bestCorr {
				best, bestCorr = t, c
			}
		}
		p.delta[s] = best - lag
		past := res[histLen+s*l-best : histLen+(s+1)*l-best]
		var b float64
		if ey := dsp.Energy(past); ey > 0 {
			b = dsp.InnerProduct(cur, past) / ey
		}
		p.ltp[s] = nearestLTP(b)
		g := ltpLevels[p.ltp[s]]
		var e float64
		for i, v := range cur {
			d := v - g*past[i]
			e += d * d
		}
		an.rms[s] = math.Sqrt(e / float64(l))
	}
}

// searchPitch finds the lag in [2 ms, 18 ms] with the highest normalized
// correlation between the frame's residual and its past. Ties go to the
// shorter lag, and submultiples that correlate nearly as well are preferred.
func searchPitch(res []float64, n int, cfg BandwidthConfig) (lag int, corr float64) {
	cur := res[histLen : histLen+n]
	if dsp.Energy(cur) <= 1e-6 {
		return 0, 0
	}
	corr = -1
	for t := cfg.PitchLagMin; t <= cfg.PitchLagMax; t++ {
		if c := normCorr(cur, res[histLen-t:histLen-t+n]); c > corr {
			lag, corr = t, c
		}
	}
	for _, div := range []int{3, 2} {
		t := (lag + div/2) / div
		if t < cfg.PitchLagMin {
			continue
		}
		if c := normCorr(cur, res[histLen-t:histLen-t+n]); c > 0.9*corr {
			lag, corr = t, c
		}
	}
	return lag, corr
}

func normCorr(x, y []float64) float64 {
	xy := dsp.InnerProduct(x, y)
	if xy <= 0 {
		return 0
	}
	return xy / math.Sqrt(dsp.Energy(x)*dsp.Energy(y)+1e-9)
}

func nearestLTP(b float64) int {
	best, bestD := 0, math.Inf(1)
	for i, v := range ltpLevels {
		if d := math.Abs(v - b); d < bestD {
			best, bestD = i, d
		}
	}
	return best
}
