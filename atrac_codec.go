// atrac_codec.go - Frame decoder contract used by the ATRAC engines

package main

import (
	"errors"
	"fmt"
)

// FrameDecoder turns one compressed frame into interleaved 16-bit PCM.
// out has room for SamplesPerFrame * outputChannels values; the return is
// the number of samples per channel written.
type FrameDecoder interface {
	Decode(frame []byte, out []int16) (int, error)
	FlushBuffers()
}

// DecoderFactory builds a decoder once the track geometry is known.
type DecoderFactory func(codecType uint32, channels, bytesPerFrame, outputChannels int) (FrameDecoder, error)

var errFrameCorrupt = errors.New("atrac codec: corrupt frame")

// silentDecoder stands in for the ATRAC transform. It validates framing
// and produces silence, which is enough to drive every buffering path.
type silentDecoder struct {
	spf            int
	bytesPerFrame  int
	outputChannels int
}

func NewSilentDecoder(codecType uint32, channels, bytesPerFrame, outputChannels int) (FrameDecoder, error) {
	if bytesPerFrame <= 0 {
		return nil, fmt.Errorf("atrac codec: bad frame size %d", bytesPerFrame)
	}
	if outputChannels != 1 && outputChannels != 2 {
		return nil, fmt.Errorf("atrac codec: bad output channel count %d", outputChannels)
	}
	spf := ATRAC3_FRAME_SAMPLES
	if codecType == PSP_MODE_AT_3_PLUS {
		spf = ATRAC3PLUS_FRAME_SAMPLES
	}
	return &silentDecoder{spf: spf, bytesPerFrame: bytesPerFrame, outputChannels: outputChannels}, nil
}

func (d *silentDecoder) Decode(frame []byte, out []int16) (int, error) {
	if len(frame) < d.bytesPerFrame {
		return 0, errFrameCorrupt
	}
	// Erased flash reads back as 0xFF, real frames never do.
	allFF := true
	for _, b := range frame[:d.bytesPerFrame] {
		if b != 0xFF {
			allFF = false
			break
		}
	}
	if allFF {
		return 0, errFrameCorrupt
	}
	n := min(len(out), d.spf*d.outputChannels)
	clear(out[:n])
	return d.spf, nil
}

func (d *silentDecoder) FlushBuffers() {}
