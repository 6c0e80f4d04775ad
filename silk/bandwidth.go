package silk

import "github.com/thesyncim/opuscore/types"

// BandwidthConfig holds the bandwidth-dependent parameters of the speech
// core.
type BandwidthConfig struct {
	// SampleRate is the internal sample rate in Hz (8000, 12000 or 16000).
	SampleRate int
	// LPCOrder is the number of LPC coefficients (10 for NB/MB, 16 for WB).
	LPCOrder int
	// SubframeSamples is the number of samples per 5 ms subframe.
	SubframeSamples int
	// PitchLagMin is the shortest pitch lag in samples (2 ms).
	PitchLagMin int
	// PitchLagMax is the longest pitch lag in samples (18 ms).
	PitchLagMax int
}

var bandwidthConfigs = [3]BandwidthConfig{
	{8000, 10, 40, 16, 144},
	{12000, 10, 60, 24, 216},
	{16000, 16, 80, 32, 288},
}

// ConfigFor returns the configuration of a SILK bandwidth (NB, MB or WB).
func ConfigFor(bw types.Bandwidth) (BandwidthConfig, error) {
	if bw > types.BandwidthWideband {
		return BandwidthConfig{}, ErrInvalidBandwidth
	}
	return bandwidthConfigs[bw], nil
}

// subframesFor returns the subframe count of one SILK frame and the number
// of SILK frames needed for samples at the configuration's rate. 10 ms is a
// single two-subframe frame; 20, 40 and 60 ms are one to three 20 ms frames.
func (c BandwidthConfig) subframesFor(samples int) (subframes, frames int, ok bool) {
	l := c.SubframeSamples
	switch samples {
	case 2 * l:
		return 2, 1, true
	case 4 * l:
		return 4, 1, true
	case 8 * l:
		return 4, 2, true
	case 12 * l:
		return 4, 3, true
	}
	return 0, 0, false
}
