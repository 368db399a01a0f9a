// atrac_analyze_test.go - Tests for RIFF and AA3 header analysis

package main

import (
	"encoding/binary"
	"errors"
	"testing"
)

func analyzeBytes(t *testing.T, file []byte, size uint32) (Track, error) {
	t.Helper()
	bus := NewSystemBusSized(testBusBase, testBusSize)
	bus.WriteBytes(testBufAddr, file)
	tr := newTrack()
	err := AnalyzeAtracTrack(bus, testBufAddr, size, &tr)
	return tr, err
}

func TestAnalyzeAT3WithFact(t *testing.T) {
	l := at3Stereo(10)
	l.endSample = 9000
	file := buildAt3File(l)

	tr, err := analyzeBytes(t, file, uint32(len(file)))
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if tr.CodecType != PSP_MODE_AT_3 {
		t.Fatalf("codec: expected %x, got %x", PSP_MODE_AT_3, tr.CodecType)
	}
	if tr.Channels != 2 || tr.BytesPerFrame != 192 {
		t.Fatalf("geometry: expected 2ch 192 bytes, got %dch %d bytes", tr.Channels, tr.BytesPerFrame)
	}
	if tr.DataByteOffset != 76 {
		t.Fatalf("data offset: expected 76, got %d", tr.DataByteOffset)
	}
	if tr.FileSize != 1996 || int(tr.FileSize) != len(file) {
		t.Fatalf("file size: expected 1996, got %d", tr.FileSize)
	}
	if tr.EndSample != 8999 {
		t.Fatalf("end sample: expected 8999, got %d", tr.EndSample)
	}
	if tr.HasLoop() || tr.LoopStartSample != -1 || tr.LoopEndSample != -1 {
		t.Fatalf("unexpected loop %d..%d", tr.LoopStartSample, tr.LoopEndSample)
	}
}

func TestAnalyzeEndSampleFromDataSize(t *testing.T) {
	file := buildAt3File(at3Stereo(10))

	tr, err := analyzeBytes(t, file, uint32(len(file)))
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if tr.DataByteOffset != 60 {
		t.Fatalf("data offset: expected 60, got %d", tr.DataByteOffset)
	}
	// 10 frames * 1024 - 69 priming samples, inclusive end.
	if tr.EndSample != 10170 {
		t.Fatalf("end sample: expected 10170, got %d", tr.EndSample)
	}
}

func TestAnalyzeAT3Plus(t *testing.T) {
	file := buildAt3File(at3Layout{codec: PSP_MODE_AT_3_PLUS, channels: 2, bpf: 280, frames: 10, endSample: 20112})

	tr, err := analyzeBytes(t, file, uint32(len(file)))
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if tr.CodecType != PSP_MODE_AT_3_PLUS {
		t.Fatalf("codec: expected %x, got %x", PSP_MODE_AT_3_PLUS, tr.CodecType)
	}
	if tr.BytesPerFrame != 280 || tr.DataByteOffset != 96 {
		t.Fatalf("expected 280 bytes at 96, got %d at %d", tr.BytesPerFrame, tr.DataByteOffset)
	}
	if tr.SamplesPerFrame() != 2048 || tr.FirstSampleOffsetFull() != 368 {
		t.Fatalf("expected 2048/368, got %d/%d", tr.SamplesPerFrame(), tr.FirstSampleOffsetFull())
	}
	if tr.EndSample != 20111 {
		t.Fatalf("end sample: expected 20111, got %d", tr.EndSample)
	}
}

func TestAnalyzeLoopPoints(t *testing.T) {
	l := at3Stereo(20)
	l.endSample = 20000
	l.loopStart, l.loopEnd = 1000, 5000
	file := buildAt3File(l)

	tr, err := analyzeBytes(t, file, uint32(len(file)))
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if tr.DataByteOffset != 144 {
		t.Fatalf("data offset: expected 144, got %d", tr.DataByteOffset)
	}
	if len(tr.LoopInfo) != 1 || tr.LoopInfo[0].StartSample != 1000 || tr.LoopInfo[0].EndSample != 5000 {
		t.Fatalf("loop list: got %+v", tr.LoopInfo)
	}
	// Loop points are stored in decoder positions.
	if tr.LoopStartSample != 1069 || tr.LoopEndSample != 5069 {
		t.Fatalf("loop: expected 1069..5069, got %d..%d", tr.LoopStartSample, tr.LoopEndSample)
	}
}

func TestAnalyzeFactSampleOffsetAdjust(t *testing.T) {
	l := at3Stereo(20)
	l.endSample = 20000
	l.fso = 200
	l.factExtra = 100
	l.loopStart, l.loopEnd = 1000, 5000
	file := buildAt3File(l)

	tr, err := analyzeBytes(t, file, uint32(len(file)))
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if tr.FirstSampleOffset != 200 {
		t.Fatalf("first sample offset: expected 200, got %d", tr.FirstSampleOffset)
	}
	if tr.LoopStartSample != 1169 || tr.LoopEndSample != 5169 {
		t.Fatalf("loop: expected 1169..5169, got %d..%d", tr.LoopStartSample, tr.LoopEndSample)
	}
}

func TestAnalyzeLoopPastEnd(t *testing.T) {
	l := at3Stereo(10)
	l.endSample = 9000
	l.loopStart, l.loopEnd = 1000, 9500
	file := buildAt3File(l)

	_, err := analyzeBytes(t, file, uint32(len(file)))
	if !errors.Is(err, SCE_ERROR_ATRAC_BAD_CODEC_PARAMS) {
		t.Fatalf("expected BAD_CODEC_PARAMS, got %v", err)
	}
}

func TestAnalyzeEmptyLoop(t *testing.T) {
	l := at3Stereo(10)
	l.loopStart, l.loopEnd = 5000, 5000
	file := buildAt3File(l)

	_, err := analyzeBytes(t, file, uint32(len(file)))
	if !errors.Is(err, SCE_ERROR_ATRAC_BAD_CODEC_PARAMS) {
		t.Fatalf("expected BAD_CODEC_PARAMS, got %v", err)
	}
}

func TestAnalyzePartialLoad(t *testing.T) {
	l := at3Stereo(10)
	l.endSample = 9000
	file := buildAt3File(l)

	// Only the header and two frames are resident.
	tr, err := analyzeBytes(t, file, 76+2*192)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if tr.FileSize != 1996 {
		t.Fatalf("file size should come from the RIFF header: expected 1996, got %d", tr.FileSize)
	}

	// Header cut before the data chunk.
	_, err = analyzeBytes(t, file, 72)
	if !errors.Is(err, SCE_ERROR_ATRAC_SIZE_TOO_SMALL) {
		t.Fatalf("expected SIZE_TOO_SMALL without a data chunk, got %v", err)
	}
}

func TestAnalyzeRejects(t *testing.T) {
	base := buildAt3File(at3Stereo(10))

	tests := []struct {
		name   string
		mutate func([]byte)
		size   uint32
		want   ErrorCode
	}{
		{"too small", nil, 71, SCE_ERROR_ATRAC_SIZE_TOO_SMALL},
		{"not riff", func(b []byte) { copy(b, "RIFX") }, 0, SCE_ERROR_ATRAC_UNKNOWN_FORMAT},
		{"not wave", func(b []byte) { copy(b[8:], "AVI ") }, 0, SCE_ERROR_ATRAC_UNKNOWN_FORMAT},
		{"pcm format tag", func(b []byte) { binary.LittleEndian.PutUint16(b[20:], 1) }, 0, SCE_ERROR_ATRAC_UNKNOWN_FORMAT},
		{"48 kHz", func(b []byte) { binary.LittleEndian.PutUint32(b[24:], 48000) }, 0, SCE_ERROR_ATRAC_UNKNOWN_FORMAT},
		{"six channels", func(b []byte) { binary.LittleEndian.PutUint16(b[22:], 6) }, 0, SCE_ERROR_ATRAC_UNKNOWN_FORMAT},
		{"zero frame size", func(b []byte) { binary.LittleEndian.PutUint16(b[32:], 0) }, 0, SCE_ERROR_ATRAC_UNKNOWN_FORMAT},
	}
	for _, tc := range tests {
		file := append([]byte(nil), base...)
		if tc.mutate != nil {
			tc.mutate(file)
		}
		size := tc.size
		if size == 0 {
			size = uint32(len(file))
		}
		_, err := analyzeBytes(t, file, size)
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func analyzeAA3Bytes(t *testing.T, file []byte) (Track, error) {
	t.Helper()
	bus := NewSystemBusSized(testBusBase, testBusSize)
	bus.WriteBytes(testBufAddr, file)
	tr := newTrack()
	err := AnalyzeAA3Track(bus, testBufAddr, uint32(len(file)), uint32(len(file)), &tr)
	return tr, err
}

func TestAnalyzeAA3ATRAC3(t *testing.T) {
	file := buildAA3File(0, 0x0030, 10, 384)

	tr, err := analyzeAA3Bytes(t, file)
	if err != nil {
		t.Fatalf("AnalyzeAA3 failed: %v", err)
	}
	if tr.CodecType != PSP_MODE_AT_3 || tr.BytesPerFrame != 384 || tr.Channels != 2 {
		t.Fatalf("expected ATRAC3 384 bytes 2ch, got %x %d %d", tr.CodecType, tr.BytesPerFrame, tr.Channels)
	}
	if tr.DataByteOffset != 106 {
		t.Fatalf("data offset: expected 106, got %d", tr.DataByteOffset)
	}
	if tr.EndSample != 10239 {
		t.Fatalf("end sample: expected 10239, got %d", tr.EndSample)
	}
}

func TestAnalyzeAA3ATRAC3Plus(t *testing.T) {
	file := buildAA3File(1, 0x0822, 10, 280)

	tr, err := analyzeAA3Bytes(t, file)
	if err != nil {
		t.Fatalf("AnalyzeAA3 failed: %v", err)
	}
	if tr.CodecType != PSP_MODE_AT_3_PLUS || tr.BytesPerFrame != 280 || tr.Channels != 2 {
		t.Fatalf("expected ATRAC3+ 280 bytes 2ch, got %x %d %d", tr.CodecType, tr.BytesPerFrame, tr.Channels)
	}
	if tr.EndSample != 20479 {
		t.Fatalf("end sample: expected 20479, got %d", tr.EndSample)
	}
}

func TestAnalyzeAA3Rejects(t *testing.T) {
	mp3 := buildAA3File(3, 0x0030, 1, 384)
	if _, err := analyzeAA3Bytes(t, mp3); !errors.Is(err, SCE_ERROR_AA3_INVALID_DATA) {
		t.Fatalf("mp3 payload: expected AA3_INVALID_DATA, got %v", err)
	}

	bad := buildAA3File(0, 0x0030, 1, 384)
	copy(bad, "ID3")
	if _, err := analyzeAA3Bytes(t, bad); !errors.Is(err, SCE_ERROR_AA3_INVALID_DATA) {
		t.Fatalf("bad tag magic: expected AA3_INVALID_DATA, got %v", err)
	}

	if _, err := analyzeAA3Bytes(t, []byte("ea3")); !errors.Is(err, SCE_ERROR_AA3_SIZE_TOO_SMALL) {
		t.Fatalf("short file: expected AA3_SIZE_TOO_SMALL, got %v", err)
	}
}
