// Package celt implements the transform core of the codec: a low-overlap
// MDCT at 48 kHz, band energies coded in the log domain, band shapes coded
// with a pyramid vector quantizer and a pitch comb post-filter.
package celt

import "github.com/thesyncim/opuscore/types"

const (
	// MaxBands is the number of critical bands.
	MaxBands = 21

	// Overlap is the MDCT overlap in samples (2.5 ms at 48 kHz).
	Overlap = 120

	// MaxFrameSize is the longest frame in samples (20 ms at 48 kHz).
	MaxFrameSize = 960

	// MaxLM is the largest frame size exponent: N = 120 << LM.
	MaxLM = 3

	// HybridStartBand is the first band coded in hybrid frames (8 kHz).
	HybridStartBand = 17

	// Delay is the decoder output delay in 48 kHz samples.
	Delay = Overlap

	// SigScale maps unit float PCM to the internal 16-bit scale.
	SigScale = 32768.0

	// maxFineBits bounds the fine energy resolution per band.
	maxFineBits = 8

	// energyFloor is the lowest representable band log-energy.
	energyFloor = -28.0
)

// EBands holds the band edges in MDCT bins for LM = 0. Band i spans
// [EBands[i], EBands[i+1]) << LM.
var EBands = [MaxBands + 1]int{
	0, 1, 2, 3, 4, 5, 6, 7, 8, 10,
	12, 14, 16, 20, 24, 28, 34, 40, 48, 60,
	78, 100,
}

// alphaCoef is the inter-frame energy prediction coefficient by LM.
var alphaCoef = [4]float64{
	29440.0 / 32768.0,
	26112.0 / 32768.0,
	21248.0 / 32768.0,
	16384.0 / 32768.0,
}

// betaCoef is the inter-band prediction coefficient of inter frames by LM.
var betaCoef = [4]float64{
	30147.0 / 32768.0,
	22282.0 / 32768.0,
	12124.0 / 32768.0,
	6554.0 / 32768.0,
}

// betaIntra is the inter-band prediction coefficient of intra frames.
const betaIntra = 4915.0 / 32768.0

// eMeans centers the log-energy of each band.
var eMeans = [MaxBands]float64{
	6.437500, 6.250000, 5.750000, 5.312500, 5.062500,
	4.812500, 4.500000, 4.375000, 4.875000, 4.687500,
	4.562500, 4.437500, 4.875000, 4.625000, 4.312500,
	4.500000, 4.375000, 4.625000, 4.750000, 4.437500,
	3.750000,
}

// eProbModel holds the Laplace parameters of coarse energy per
// [LM][intra][2*band], as (probability of zero >> 7, decay >> 6).
var eProbModel = [4][2][42]uint8{
	{
		{
			72, 127, 65, 129, 66, 128, 65, 128, 64, 128, 62, 128, 64, 128,
			64, 128, 92, 78, 92, 79, 92, 78, 90, 79, 116, 41, 115, 40,
			114, 40, 132, 26, 132, 26, 145, 17, 161, 12, 176, 10, 177, 11,
		},
		{
			24, 179, 48, 138, 54, 135, 54, 132, 53, 134, 56, 133, 55, 132,
			55, 132, 61, 114, 70, 96, 74, 88, 75, 88, 87, 74, 89, 66,
			91, 67, 100, 59, 108, 50, 120, 40, 122, 37, 97, 43, 78, 50,
		},
	},
	{
		{
			83, 78, 84, 81, 88, 75, 86, 74, 87, 71, 90, 73, 93, 74,
			93, 74, 109, 40, 114, 36, 117, 34, 117, 34, 143, 17, 145, 18,
			146, 19, 162, 12, 165, 10, 178, 7, 189, 6, 190, 8, 177, 9,
		},
		{
			23, 178, 54, 115, 63, 102, 66, 98, 69, 99, 74, 89, 71, 91,
			73, 91, 78, 89, 86, 80, 92, 66, 93, 64, 102, 59, 103, 60,
			104, 60, 117, 52, 123, 44, 138, 35, 133, 31, 97, 38, 77, 45,
		},
	},
	{
		{
			61, 90, 93, 60, 105, 42, 107, 41, 110, 45, 116, 38, 113, 38,
			112, 38, 124, 26, 132, 27, 136, 19, 140, 20, 155, 14, 159, 16,
			158, 18, 170, 13, 177, 10, 187, 8, 192, 6, 175, 9, 159, 10,
		},
		{
			21, 178, 59, 110, 71, 86, 75, 85, 84, 83, 91, 66, 88, 73,
			87, 72, 92, 75, 98, 72, 105, 58, 107, 54, 115, 52, 114, 55,
			112, 56, 129, 51, 132, 40, 150, 33, 140, 29, 98, 35, 77, 42,
		},
	},
	{
		{
			42, 121, 96, 66, 108, 43, 111, 40, 117, 44, 123, 32, 120, 36,
			119, 33, 127, 33, 134, 34, 139, 21, 147, 23, 152, 20, 158, 25,
			154, 26, 166, 21, 173, 16, 184, 13, 184, 10, 150, 13, 139, 15,
		},
		{
			22, 178, 63, 114, 74, 82, 84, 83, 92, 82, 103, 62, 96, 72,
			96, 67, 101, 73, 107, 72, 113, 55, 118, 52, 125, 52, 118, 52,
			117, 55, 135, 49, 137, 39, 157, 32, 145, 29, 97, 33, 77, 40,
		},
	},
}

// bandAlloc is the static allocation table in 1/32 bit per bin for LM = 0.
// Rows are ordered by increasing quality.
var bandAlloc = [11][MaxBands]int{
	{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	{90, 80, 75, 69, 63, 56, 49, 40, 34, 29, 20, 18, 10, 0, 0, 0, 0, 0, 0, 0, 0},
	{110, 100, 90, 84, 78, 71, 65, 58, 51, 45, 39, 32, 26, 20, 12, 0, 0, 0, 0, 0, 0},
	{118, 110, 103, 93, 86, 80, 75, 70, 65, 59, 53, 47, 40, 31, 23, 15, 4, 0, 0, 0, 0},
	{126, 119, 112, 104, 95, 89, 83, 78, 72, 66, 60, 54, 47, 39, 32, 25, 17, 12, 1, 0, 0},
	{134, 127, 120, 114, 108, 102, 96, 90, 84, 78, 72, 66, 60, 54, 47, 41, 35, 29, 23, 16, 8},
	{144, 137, 130, 124, 118, 113, 108, 103, 98, 93, 88, 82, 76, 69, 62, 55, 48, 42, 36, 30, 24},
	{152, 145, 139, 133, 128, 122, 117, 112, 107, 102, 97, 92, 86, 80, 74, 67, 60, 53, 47, 40, 33},
	{162, 155, 148, 143, 137, 132, 127, 122, 117, 112, 107, 102, 96, 90, 84, 77, 71, 64, 57, 50, 43},
	{172, 165, 159, 153, 147, 142, 137, 132, 127, 122, 117, 112, 106, 100, 94, 88, 82, 75, 68, 62, 55},
	{183, 177, 171, 165, 160, 155, 150, 145, 140, 135, 130, 125, 120, 114, 108, 102, 96, 90, 84, 77, 70},
}

// smallEnergyICDF codes coarse energy deltas of -1, 0, +1 when few bits
// remain.
var smallEnergyICDF = []uint8{2, 1, 0}

// tapsetICDF codes the post-filter kernel index.
var tapsetICDF = []uint8{2, 1, 0}

// LMForFrameSize returns log2(frameSize/120) for the four CELT frame sizes.
func LMForFrameSize(frameSize int) (int, bool) {
	switch frameSize {
	case 120:
		return 0, true
	case 240:
		return 1, true
	case 480:
		return 2, true
	case 960:
		return 3, true
	}
	return 0, false
}

// EndBand returns the band following the last band coded at bandwidth bw.
func EndBand(bw types.Bandwidth) int {
	switch bw {
	case types.BandwidthNarrowband:
		return 13
	case types.BandwidthMediumband:
		return 15
	case types.BandwidthWideband:
		return 17
	case types.BandwidthSuperwideband:
		return 19
	default:
		return MaxBands
	}
}

// bandRange returns the MDCT bin range of band b at frame size exponent lm.
func bandRange(b, lm int) (lo, hi int) {
	return EBands[b] << lm, EBands[b+1] << lm
}
