package rangecoding

import (
	"math"

	"github.com/thesyncim/opuscore/util"
)

// The Laplace coder models a two-sided geometric distribution. fs is the
// probability of zero in 1/32768 units and decay (below 16384) sets the
// ratio decay/16384 between the probabilities of consecutive magnitudes.
// Magnitudes in the tail keep a floor probability so any value can be coded.

func laplaceFreq1(fs0 uint32, decay int) uint32 {
	ft := laplaceFT - laplaceMinP*(2*laplaceNMin) - fs0
	return ft * uint32(16384-decay) >> 15
}

// laplaceInterval returns the cumulative frequency interval of v and the
// value it actually represents after tail clamping.
func laplaceInterval(v int, fs uint32, decay int) (fl, fh uint32, coded int) {
	if v == 0 {
		return 0, fs, 0
	}
	s := 0
	if v < 0 {
		s = -1
	}
	mag := (v + s) ^ s
	fl = fs
	fs = laplaceFreq1(fs, decay)
	i := 1
	for ; fs > 0 && i < mag; i++ {
		fs *= 2
		fl += fs + 2*laplaceMinP
		fs = uint32(int64(fs) * int64(decay) >> 15)
	}
	if fs == 0 {
		ndiMax := int(laplaceFT-fl+laplaceMinP-1) >> laplaceLogMinP
		ndiMax = (ndiMax - s) >> 1
		di := min(mag-i, ndiMax-1)
		fl += uint32(2*di+1+s) * laplaceMinP
		fs = min(laplaceMinP, laplaceFT-fl)
		v = (i + di + s) ^ s
	} else {
		fs += laplaceMinP
		if s == 0 {
			fl += fs
		}
	}
	return fl, fl + fs, v
}

// EncodeLaplace codes v and returns the value actually coded. Magnitudes
// beyond what the remaining probability mass can represent are clamped, so
// callers must reconstruct from the returned value.
func (e *Encoder) EncodeLaplace(v int, fs uint32, decay int) int {
	fl, fh, v := laplaceInterval(v, fs, decay)
	e.EncodeBin(fl, fh, laplaceFTBits)
	return v
}

// LaplaceBits returns the cost in bits of coding v with EncodeLaplace.
func LaplaceBits(v int, fs uint32, decay int) float64 {
	fl, fh, _ := laplaceInterval(v, fs, decay)
	return laplaceFTBits - math.Log2(float64(fh-fl))
}

// UniformBits returns the cost in bits of coding a value with
// EncodeUniform(v, ft).
func UniformBits(ft uint64) float64 {
	if ft <= 1 {
		return 0
	}
	ftb := util.ILog64(ft - 1)
	if ftb <= EC_UINT_BITS {
		return math.Log2(float64(ft))
	}
	// The top bits are range coded and the rest are raw.
	top := ((ft - 1) >> uint(ftb-EC_UINT_BITS)) + 1
	return math.Log2(float64(top)) + float64(ftb-EC_UINT_BITS)
}

// DecodeLaplace decodes a value coded with EncodeLaplace.
func (d *Decoder) DecodeLaplace(fs uint32, decay int) int {
	v := 0
	fm := d.DecodeBin(laplaceFTBits)
	fl := uint32(0)
	if fm >= fs {
		v++
		fl = fs
		fs = laplaceFreq1(fs, decay) + laplaceMinP
		for fs > laplaceMinP && fm >= fl+2*fs {
			fs *= 2
			fl += fs
			fs = uint32(int64(fs-2*laplaceMinP) * int64(decay) >> 15)
			fs += laplaceMinP
			v++
		}
		if fs <= laplaceMinP {
			di := int(fm-fl) >> (laplaceLogMinP + 1)
			v += di
			fl += uint32(2*di) * laplaceMinP
		}
		if fm < fl+fs {
			v = -v
		} else {
			fl += fs
		}
	}
	d.Update(fl, min(fl+fs, laplaceFT), laplaceFT)
	return v
}

// LaplaceParams returns the (fs, decay) pair approximating a two-sided
// geometric distribution with ratio r between consecutive magnitudes.
func LaplaceParams(r float64) (fs uint32, decay int) {
	r = math.Max(0.01, math.Min(r, 0.97))
	p0 := (1 - r) / (1 + r)
	fs = uint32(math.Round(p0 * laplaceFT))
	fs = max(64, min(fs, laplaceFT-1024))
	decay = int(math.Round(r * 16384))
	decay = max(1, min(decay, 16000))
	return fs, decay
}
