package dsp

import (
	"math"
	"math/cmplx"
	"math/rand"
	"testing"
)

func naiveDFT(x []complex128) []complex128 {
	n := len(x)
	out := make([]complex128, n)
	for k := range out {
		for j, v := range x {
			out[k] += v * cmplx.Rect(1, -2*math.Pi*float64(j*k)/float64(n))
		}
	}
	return out
}

func TestFFTMatchesDFT(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, n := range []int{1, 2, 3, 4, 5, 6, 8, 15, 60, 120, 240, 480} {
		f, err := NewFFT(n)
		if err != nil {
			t.Fatalf("NewFFT(%d): %v", n, err)
		}
		x := make([]complex128, n)
		for i := range x {
			x[i] = complex(rng.Float64()-0.5, rng.Float64()-0.5)
		}
		want := naiveDFT(x)
		f.Forward(x)
		for i := range x {
			if cmplx.Abs(x[i]-want[i]) > 1e-9 {
				t.Fatalf("n=%d: bin %d = %v, want %v", n, i, x[i], want[i])
			}
		}
	}
}

func TestFFTUnsupportedSize(t *testing.T) {
	for _, n := range []int{0, 7, 11, 14} {
		if _, err := NewFFT(n); err == nil {
			t.Errorf("NewFFT(%d) succeeded", n)
		}
	}
}

func TestDCT4(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	for _, n := range []int{2, 8, 120, 240, 960} {
		d, err := NewDCT4(n)
		if err != nil {
			t.Fatalf("NewDCT4(%d): %v", n, err)
		}
		x := make([]float64, n)
		for i := range x {
			x[i] = rng.Float64()*2 - 1
		}
		got := make([]float64, n)
		d.Transform(x, got)

		if n <= 240 {
			scale := math.Sqrt(2 / float64(n))
			for k := 0; k < n; k++ {
				var want float64
				for j := 0; j < n; j++ {
					want += x[j] * math.Cos(math.Pi/float64(n)*(float64(j)+0.5)*(float64(k)+0.5))
				}
				want *= scale
				if math.Abs(got[k]-want) > 1e-9 {
					t.Fatalf("n=%d: X[%d] = %v, want %v", n, k, got[k], want)
				}
			}
		}

		// Orthonormal and involutory.
		back := make([]float64, n)
		d.Transform(got, back)
		for i := range x {
			if math.Abs(back[i]-x[i]) > 1e-9 {
				t.Fatalf("n=%d: inverse[%d] = %v, want %v", n, i, back[i], x[i])
			}
		}
	}
}

func TestDCT4InPlace(t *testing.T) {
	d, err := NewDCT4(16)
	if err != nil {
		t.Fatal(err)
	}
	x := make([]float64, 16)
	x[3] = 1
	want := make([]float64, 16)
	d.Transform(x, want)
	d.Transform(x, x)
	for i := range x {
		if math.Abs(x[i]-want[i]) > 1e-12 {
			t.Fatalf("in-place result differs at %d", i)
		}
	}
}

func TestEmphasisInverse(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	x := make([]float64, 500)
	for i := range x {
		x[i] = rng.Float64()*2 - 1
	}
	y := append([]float64(nil), x...)
	var pm, dm float64
	PreEmphasize(y[:200], PreemphCoef, &pm)
	PreEmphasize(y[200:], PreemphCoef, &pm)
	DeEmphasize(y[:123], PreemphCoef, &dm)
	DeEmphasize(y[123:], PreemphCoef, &dm)
	for i := range x {
		if math.Abs(x[i]-y[i]) > 1e-9 {
			t.Fatalf("sample %d: %v, want %v", i, y[i], x[i])
		}
	}
}

func TestHighPassRemovesDC(t *testing.T) {
	h := NewHighPass(60, 48000)
	x := make([]float64, 48000)
	for i := range x {
		x[i] = 0.5 + 0.25*math.Sin(2*math.Pi*1000*float64(i)/48000)
	}
	h.Process(x)
	var mean float64
	for _, v := range x[24000:] {
		mean += v
	}
	mean /= 24000
	if math.Abs(mean) > 1e-3 {
		t.Errorf("residual DC = %v", mean)
	}
	tone := math.Sqrt(Energy(x[24000:]) / 24000)
	if math.Abs(tone-0.25/math.Sqrt2) > 0.01 {
		t.Errorf("1 kHz RMS = %v, want about %v", tone, 0.25/math.Sqrt2)
	}
}

func TestLevinsonRecoversAR2(t *testing.T) {
	// x[n] = 1.3 x[n-1] - 0.6 x[n-2] + noise
	rng := rand.New(rand.NewSource(4))
	x := make([]float64, 20000)
	for n := 2; n < len(x); n++ {
		x[n] = 1.3*x[n-1] - 0.6*x[n-2] + rng.NormFloat64()
	}
	r := make([]float64, 3)
	Autocorrelation(x, r)
	a := make([]float64, 2)
	k := make([]float64, 2)
	e := Levinson(r, a, k)
	if math.Abs(a[0]-1.3) > 0.05 || math.Abs(a[1]+0.6) > 0.05 {
		t.Errorf("a = %v, want [1.3 -0.6]", a)
	}
	if e <= 0 || e >= r[0] {
		t.Errorf("prediction error %v not in (0, %v)", e, r[0])
	}

	b := make([]float64, 2)
	ReflectionToLPC(k, b)
	for i := range a {
		if math.Abs(a[i]-b[i]) > 1e-12 {
			t.Errorf("ReflectionToLPC[%d] = %v, want %v", i, b[i], a[i])
		}
	}
}

func TestLevinsonSilence(t *testing.T) {
	r := make([]float64, 11)
	a := make([]float64, 10)
	if e := Levinson(r, a, nil); e != 0 {
		t.Errorf("error = %v, want 0", e)
	}
	for i, v := range a {
		if v != 0 {
			t.Errorf("a[%d] = %v, want 0", i, v)
		}
	}
}

func TestPowerComplementaryWindow(t *testing.T) {
	w := PowerComplementaryWindow(120)
	for i := range w {
		s := w[i]*w[i] + w[119-i]*w[119-i]
		if math.Abs(s-1) > 1e-12 {
			t.Fatalf("w[%d]^2 + w[%d]^2 = %v", i, 119-i, s)
		}
	}
}

func TestResidual(t *testing.T) {
	x := []float64{0, 0, 1, 2, 3, 4}
	a := []float64{1, 0}
	out := make([]float64, 4)
	Residual(x, a, out)
	want := []float64{1, 1, 1, 1}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("out[%d] = %v, want %v", i, out[i], want[i])
		}
	}
}
