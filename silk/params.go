package silk

import (
	"github.com/thesyncim/opuscore/rangecoding"
	"github.com/thesyncim/opuscore/util"
)

// frameParams are the quantized side parameters of one channel frame.
type frameParams struct {
	subframes int
	voiced    bool
	lpc       [maxOrder]int
	gain      [maxSubframes]int
	lag       int
	delta     [maxSubframes]int
	ltp       [maxSubframes]int
	decay     int
}

// lagAt returns the pitch lag of subframe s.
func (p *frameParams) lagAt(s int, cfg BandwidthConfig) int {
	return max(cfg.PitchLagMin, min(p.lag+p.delta[s], cfg.PitchLagMax))
}

// ltpGain returns the long-term prediction gain of subframe s.
func (p *frameParams) ltpGain(s int) float64 {
	if !p.voiced {
		return 0
	}
	return ltpLevels[p.ltp[s]]
}

// encode writes the parameters and replaces every field with the value
// actually coded.
func (p *frameParams) encode(enc *rangecoding.Encoder, cfg BandwidthConfig, st *channelState) {
	enc.EncodeBit(boolInt(p.voiced), 1)

	for i := 0; i < cfg.LPCOrder; i++ {
		_, qmax := lpcStep(i)
		d := enc.EncodeLaplace(p.lpc[i]-st.prevLPC[i], lpcModel.fs, lpcModel.decay)
		p.lpc[i] = util.Clamp(st.prevLPC[i]+d, -qmax, qmax)
	}

	prev, have := st.prevGain, st.haveGain
	for s := 0; s < p.subframes; s++ {
		if !have {
			p.gain[s] = util.Clamp(p.gain[s], 0, numGainLevels-1)
			enc.EncodeUniform(uint64(p.gain[s]), numGainLevels)
			have = true
		} else {
			d := enc.EncodeLaplace(p.gain[s]-prev, gainModel.fs, gainModel.decay)
			p.gain[s] = util.Clamp(prev+d, 0, numGainLevels-1)
		}
		prev = p.gain[s]
	}

	if p.voiced {
		span := cfg.PitchLagMax - cfg.PitchLagMin + 1
		p.lag = util.Clamp(p.lag, cfg.PitchLagMin, cfg.PitchLagMax)
		enc.EncodeUniform(uint64(p.lag-cfg.PitchLagMin), uint64(span))
		for s := 0; s < p.subframes; s++ {
			d := util.Clamp(p.delta[s], -maxLagDelta, maxLagDelta)
			p.delta[s] = enc.EncodeLaplace(d, deltaModel.fs, deltaModel.decay)
			enc.EncodeUniform(uint64(p.ltp[s]), numLTPLevels)
		}
	}

	enc.EncodeUniform(uint64(p.decay), numDecayLevels)
}

// decode mirrors encode.
func (p *frameParams) decode(dec *rangecoding.Decoder, cfg BandwidthConfig, st *channelState) {
	p.voiced = dec.DecodeBit(1) == 1

	for i := 0; i < cfg.LPCOrder; i++ {
		_, qmax := lpcStep(i)
		d := dec.DecodeLaplace(lpcModel.fs, lpcModel.decay)
		p.lpc[i] = util.Clamp(st.prevLPC[i]+d, -qmax, qmax)
	}
	for i := cfg.LPCOrder; i < maxOrder; i++ {
		p.lpc[i] = 0
	}

	prev, have := st.prevGain, st.haveGain
	for s := 0; s < p.subframes; s++ {
		if !have {
			p.gain[s] = int(dec.DecodeUniform(numGainLevels))
			have = true
		} else {
			d := dec.DecodeLaplace(gainModel.fs, gainModel.decay)
			p.gain[s] = util.Clamp(prev+d, 0, numGainLevels-1)
		}
		prev = p.gain[s]
	}

	if p.voiced {
		span := cfg.PitchLagMax - cfg.PitchLagMin + 1
		p.lag = cfg.PitchLagMin + int(dec.DecodeUniform(uint64(span)))
		for s := 0; s < p.subframes; s++ {
			p.delta[s] = dec.DecodeLaplace(deltaModel.fs, deltaModel.decay)
			p.ltp[s] = int(dec.DecodeUniform(numLTPLevels))
		}
	}

	p.decay = int(dec.DecodeUniform(numDecayLevels))
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
