// Package dsp holds the signal processing primitives shared by the SILK and
// CELT cores: pre-emphasis, DC-blocking high-pass filtering, linear
// prediction analysis and the FFT-based DCT-IV behind the MDCT.
package dsp
