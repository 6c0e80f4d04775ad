package opuscore_test

import (
	"errors"
	"fmt"
	"log"

	"github.com/thesyncim/opuscore"
)

func ExampleNewEncoder() {
	// Create an encoder for 48kHz stereo audio at 64 kbit/s
	enc, err := opuscore.NewEncoder(48000, 2, opuscore.ApplicationAudio, opuscore.WithBitrate(64000))
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Encoder: %dHz, %d channels, %d bit/s\n", enc.SampleRate(), enc.Channels(), enc.Bitrate())
	// Output: Encoder: 48000Hz, 2 channels, 64000 bit/s
}

func ExampleNewEncoder_invalid() {
	_, err := opuscore.NewEncoder(44100, 2, opuscore.ApplicationAudio)
	fmt.Println(errors.Is(err, opuscore.ErrInvalidConfiguration))
	// Output: true
}

func ExampleEncoder_Encode() {
	enc, err := opuscore.NewEncoder(48000, 1, opuscore.ApplicationAudio, opuscore.WithBitrate(64000))
	if err != nil {
		log.Fatal(err)
	}

	// 20ms of silence codes to a tiny CELT packet.
	packet, err := enc.Encode(make([]float32, 960), 960)
	if err != nil {
		log.Fatal(err)
	}
	toc := opuscore.ParseTOC(packet[0])
	fmt.Println(toc.Mode, toc.Bandwidth, toc.FrameSize)
	// Output: celt FB 960
}

func ExampleDecoder_Decode() {
	enc, _ := opuscore.NewEncoder(48000, 2, opuscore.ApplicationAudio)
	dec, _ := opuscore.NewDecoder(48000, 2)

	packet, err := enc.Encode(make([]float32, 960*2), 960)
	if err != nil {
		log.Fatal(err)
	}
	pcm, err := dec.Decode(packet)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Decoded %d samples per channel\n", len(pcm)/dec.Channels())
	// Output: Decoded 960 samples per channel
}

func ExampleDecoder_Decode_packetLoss() {
	enc, _ := opuscore.NewEncoder(48000, 1, opuscore.ApplicationAudio)
	dec, _ := opuscore.NewDecoder(48000, 1)

	packet, _ := enc.Encode(make([]float32, 480), 480)
	if _, err := dec.Decode(packet); err != nil {
		log.Fatal(err)
	}

	// A nil packet conceals the duration of the last one.
	pcm, err := dec.Decode(nil)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Concealed %d samples\n", len(pcm))
	// Output: Concealed 480 samples
}

func ExampleParsePacket() {
	// Code 1: two frames of equal size.
	packet := []byte{opuscore.GenerateTOC(31, false, 1), 0xAA, 0xBB, 0xCC, 0xDD}
	info, err := opuscore.ParsePacket(packet)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(info.FrameCount, info.FrameSizes, info.Duration())
	// Output: 2 [2 2] 1920
}

func ExampleParsePacket_malformed() {
	_, err := opuscore.ParsePacket([]byte{opuscore.GenerateTOC(31, false, 1), 0xAA, 0xBB, 0xCC})
	fmt.Println(errors.Is(err, opuscore.ErrMalformedPacket))
	// Output: true
}
