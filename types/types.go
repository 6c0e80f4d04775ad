// Package types defines shared types used across opuscore packages.
// This package exists to break import cycles between the root package,
// the mode controller and the codec cores.
package types

// Mode represents the Opus coding mode.
type Mode uint8

const (
	ModeSILK   Mode = iota // SILK-only mode (configs 0-11)
	ModeHybrid             // Hybrid SILK+CELT (configs 12-15)
	ModeCELT               // CELT-only mode (configs 16-31)
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeSILK:
		return "silk"
	case ModeHybrid:
		return "hybrid"
	case ModeCELT:
		return "celt"
	default:
		return "unknown"
	}
}

// Bandwidth represents the audio bandwidth.
type Bandwidth uint8

const (
	BandwidthNarrowband    Bandwidth = iota // 4kHz audio, 8kHz sample rate
	BandwidthMediumband                     // 6kHz audio, 12kHz sample rate
	BandwidthWideband                       // 8kHz audio, 16kHz sample rate
	BandwidthSuperwideband                  // 12kHz audio, 24kHz sample rate
	BandwidthFullband                       // 20kHz audio, 48kHz sample rate
)

// String returns the conventional short name (NB, MB, WB, SWB, FB).
func (bw Bandwidth) String() string {
	switch bw {
	case BandwidthNarrowband:
		return "NB"
	case BandwidthMediumband:
		return "MB"
	case BandwidthWideband:
		return "WB"
	case BandwidthSuperwideband:
		return "SWB"
	case BandwidthFullband:
		return "FB"
	default:
		return "unknown"
	}
}

// SampleRate returns the sample rate that carries this bandwidth.
func (bw Bandwidth) SampleRate() int {
	switch bw {
	case BandwidthNarrowband:
		return 8000
	case BandwidthMediumband:
		return 12000
	case BandwidthWideband:
		return 16000
	case BandwidthSuperwideband:
		return 24000
	default:
		return 48000
	}
}

// MaxFrequency returns the audio cut-off of the bandwidth in Hz.
func (bw Bandwidth) MaxFrequency() int {
	switch bw {
	case BandwidthNarrowband:
		return 4000
	case BandwidthMediumband:
		return 6000
	case BandwidthWideband:
		return 8000
	case BandwidthSuperwideband:
		return 12000
	default:
		return 20000
	}
}

// Valid reports whether bw is one of the five Opus bandwidths.
func (bw Bandwidth) Valid() bool {
	return bw <= BandwidthFullband
}

// MaxBandwidthForRate returns the widest bandwidth representable at sampleRate.
func MaxBandwidthForRate(sampleRate int) Bandwidth {
	switch {
	case sampleRate <= 8000:
		return BandwidthNarrowband
	case sampleRate <= 12000:
		return BandwidthMediumband
	case sampleRate <= 16000:
		return BandwidthWideband
	case sampleRate <= 24000:
		return BandwidthSuperwideband
	default:
		return BandwidthFullband
	}
}

// Signal represents the input signal type hint for the encoder.
// This helps the encoder optimize for speech or music content.
type Signal int

const (
	// SignalAuto lets the encoder classify the content on the first frame
	// of every configuration.
	SignalAuto Signal = -1000
	// SignalVoice hints that the input is speech, biasing toward SILK and Hybrid.
	SignalVoice Signal = 3001
	// SignalMusic hints that the input is music, biasing toward CELT.
	SignalMusic Signal = 3002
)

// Application hints the encoder about the intended use.
type Application int

const (
	// ApplicationVoIP optimizes for speech transmission.
	ApplicationVoIP Application = 2048
	// ApplicationAudio optimizes for music and general audio.
	ApplicationAudio Application = 2049
	// ApplicationLowDelay restricts the encoder to CELT.
	ApplicationLowDelay Application = 2051
)

// Valid reports whether a is a known application.
func (a Application) Valid() bool {
	switch a {
	case ApplicationVoIP, ApplicationAudio, ApplicationLowDelay:
		return true
	default:
		return false
	}
}

// String returns the application name.
func (a Application) String() string {
	switch a {
	case ApplicationVoIP:
		return "voip"
	case ApplicationAudio:
		return "audio"
	case ApplicationLowDelay:
		return "lowdelay"
	default:
		return "unknown"
	}
}
