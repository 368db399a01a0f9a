// atrac_hw_test.go - Hardware engine record layout and restrictions

package main

import (
	"errors"
	"testing"
)

func TestHardwareRecordAfterSetData(t *testing.T) {
	file := fileA()
	r := newLoadedRig(t, EngineHardware, file, uint32(len(file)), uint32(len(file)))
	c := r.hwCtx()

	if c.State() != ATRAC_STATUS_ALL_DATA_LOADED {
		t.Fatalf("state byte: expected %d, got %d", ATRAC_STATUS_ALL_DATA_LOADED, c.State())
	}
	if got := r.bus.Read8(testCtxAddr + ATRAC_INFO_BLOCK_OFFSET + INFO_STATE); got != 2 {
		t.Fatalf("raw state byte: expected 2, got %d", got)
	}
	if c.Codec() != PSP_MODE_AT_3 || c.SampleSize() != 192 || c.NumChan() != 2 {
		t.Fatalf("geometry: codec %x size %d channels %d", c.Codec(), c.SampleSize(), c.NumChan())
	}
	if c.DataOff() != 76 || c.CurOff() != 76 || c.DataEnd() != 1996 {
		t.Fatalf("offsets: data %d cur %d end %d", c.DataOff(), c.CurOff(), c.DataEnd())
	}
	if c.EndSample() != 9068 || c.DecodePos() != 69 || c.SamplesPerChan() != 69 {
		t.Fatalf("positions: end %d decode %d skip %d", c.EndSample(), c.DecodePos(), c.SamplesPerChan())
	}
	if c.Buffer() != testBufAddr || c.BufferByte() != 1996 || c.StreamDataByte() != 1920 {
		t.Fatalf("buffer: %#x+%d with %d bytes of data", c.Buffer(), c.BufferByte(), c.StreamDataByte())
	}
	if c.AtracID() != 0 {
		t.Fatalf("atrac id: expected 0, got %d", c.AtracID())
	}
	if c.LoopEnd() != 0 || c.LoopStart() != 0 {
		t.Fatalf("loop points on a track without loops: %d..%d", c.LoopStart(), c.LoopEnd())
	}

	if _, err := r.eng.DecodeData(testPCMAddr); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if c.CurOff() != 76+192 || c.DecodePos() != 1024 || c.InBuf() != testBufAddr+76 {
		t.Fatalf("after decode: cur %d decode %d inBuf %#x", c.CurOff(), c.DecodePos(), c.InBuf())
	}
}

func TestHardwareSeesGameWrites(t *testing.T) {
	file := fileA()
	r := newLoadedRig(t, EngineHardware, file, uint32(len(file)), uint32(len(file)))
	c := r.hwCtx()

	// A game rewinding by hand to the fourth frame.
	c.SetDecodePos(3 * 1024)
	c.SetCurOff(76 + 3*192)
	if got := r.eng.CurrentSample(); got != 3*1024-69 {
		t.Fatalf("current sample: expected %d, got %d", 3*1024-69, got)
	}
	if _, err := r.eng.DecodeData(testPCMAddr); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := r.rec.last.frames; len(got) != 1 || got[0] != frameFill(3) {
		t.Fatalf("expected frame %d to be decoded, got %v", frameFill(3), got)
	}

	c.SetLoopEnd(5000)
	if err := r.eng.SetLoopNum(1); err != nil {
		t.Fatalf("SetLoopNum after a poked loop end: %v", err)
	}
	if got := r.eng.LoopStatus(); got != 1 {
		t.Fatalf("loop status: expected 1, got %d", got)
	}

	c.SetAtracID(5)
	if got := r.bus.Read32(testCtxAddr + ATRAC_INFO_BLOCK_OFFSET + INFO_ATRAC_ID); got != 5 {
		t.Fatalf("atrac id word: expected 5, got %d", got)
	}
}

func TestHardwareStreamIgnoresLoops(t *testing.T) {
	file := loopFile(1000, 5000)
	r := newLoadedRig(t, EngineHardware, file, 1000, 1000)
	if err := r.eng.SetLoopNum(1); err != nil {
		t.Fatalf("SetLoopNum: %v", err)
	}
	res := r.run()
	if res.samples != 20000 {
		t.Fatalf("expected 20000 samples, got %d", res.samples)
	}
	if got := r.eng.LoopNum(); got != 1 {
		t.Fatalf("loop count: expected 1, got %d", got)
	}
}

func TestHardwareSecondBufferRecorded(t *testing.T) {
	file := loopFile(1000, 5000)
	r := newLoadedRig(t, EngineHardware, file, 1000, 1000)
	if err := r.eng.SetSecondBuffer(testBusBase+0x80000, 100); err != nil {
		t.Fatalf("SetSecondBuffer: %v", err)
	}
	c := r.hwCtx()
	if c.SecondBuffer() != testBusBase+0x80000 || c.SecondBufferByte() != 100 {
		t.Fatalf("second buffer: %#x+%d", c.SecondBuffer(), c.SecondBufferByte())
	}
	if got := r.eng.SecondBufferSize(); got != 100 {
		t.Fatalf("SecondBufferSize: expected 100, got %d", got)
	}
}

func TestHardwareSaveStateUnsupported(t *testing.T) {
	r := newEngineRig(t, EngineHardware)
	if _, err := r.eng.SaveState(); !errors.Is(err, ErrSaveStateUnsupported) {
		t.Fatalf("SaveState: expected ErrSaveStateUnsupported, got %v", err)
	}
	if err := r.eng.LoadState([]byte("ATRS")); !errors.Is(err, ErrSaveStateUnsupported) {
		t.Fatalf("LoadState: expected ErrSaveStateUnsupported, got %v", err)
	}
}

func expectPanic(t *testing.T, name string, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Fatalf("%s: expected a panic", name)
		}
	}()
	fn()
}

func TestHardwareSasUnsupported(t *testing.T) {
	file := fileA()
	r := newLoadedRig(t, EngineHardware, file, 1000, 1000)
	expectPanic(t, "SetForSas", func() { r.eng.SetForSas() })
	expectPanic(t, "AddStreamDataSas", func() { r.eng.AddStreamDataSas(testBufAddr, 192) })
	expectPanic(t, "DecodeForSas", func() { r.eng.DecodeForSas(testPCMAddr) })
}

func TestHardwareAnalyzeClearsRecord(t *testing.T) {
	file := fileA()
	r := newLoadedRig(t, EngineHardware, file, uint32(len(file)), uint32(len(file)))
	c := r.hwCtx()
	c.SetCodecErr(ATRAC_CODEC_ERR_CORRUPT)

	if err := r.eng.Analyze(testBufAddr, uint32(len(file))); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if c.State() != ATRAC_STATUS_NO_DATA || c.CurOff() != 0 || c.DecodePos() != 0 {
		t.Fatalf("info block not reset: state %s cur %d decode %d", c.State(), c.CurOff(), c.DecodePos())
	}
	if c.AtracID() != 0 {
		t.Fatalf("atrac id lost: %d", c.AtracID())
	}
	// Codec block belongs to the codec and survives analysis.
	if c.CodecErr() != ATRAC_CODEC_ERR_CORRUPT {
		t.Fatalf("codec error cleared by analysis")
	}
}
