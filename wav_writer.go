// wav_writer.go - WAV export of decoded ATRAC PCM

package main

import (
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// PCMSink receives interleaved 16-bit PCM from the player.
type PCMSink interface {
	WritePCM(pcm []int16, channels int) error
	Close() error
}

// WavWriter streams PCM into a 16-bit PCM WAV file.
type WavWriter struct {
	file    *os.File
	enc     *wav.Encoder
	buf     *audio.IntBuffer
	samples int
}

func NewWavWriter(path string, sampleRate, channels int) (*WavWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating wav: %w", err)
	}
	return &WavWriter{
		file: f,
		// 1 = WAVE_FORMAT_PCM
		enc: wav.NewEncoder(f, sampleRate, 16, channels, 1),
		buf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
			SourceBitDepth: 16,
		},
	}, nil
}

func (w *WavWriter) WritePCM(pcm []int16, channels int) error {
	if channels != w.buf.Format.NumChannels {
		return fmt.Errorf("wav writer: got %d channels, opened with %d", channels, w.buf.Format.NumChannels)
	}
	if cap(w.buf.Data) < len(pcm) {
		w.buf.Data = make([]int, len(pcm))
	}
	w.buf.Data = w.buf.Data[:len(pcm)]
	for i, s := range pcm {
		w.buf.Data[i] = int(s)
	}
	if err := w.enc.Write(w.buf); err != nil {
		return fmt.Errorf("writing wav: %w", err)
	}
	w.samples += len(pcm) / channels
	return nil
}

// Samples is the number of frames (per channel samples) written so far.
func (w *WavWriter) Samples() int { return w.samples }

func (w *WavWriter) Close() error {
	if err := w.enc.Close(); err != nil {
		w.file.Close()
		return fmt.Errorf("finalising wav: %w", err)
	}
	return w.file.Close()
}

// discardSink counts PCM and drops it.
type discardSink struct {
	samples int
}

func (d *discardSink) WritePCM(pcm []int16, channels int) error {
	d.samples += len(pcm) / channels
	return nil
}

func (d *discardSink) Close() error { return nil }
