// atrac_legacy_test.go - Loop playback, sceSas and save states on the legacy engine

package main

import (
	"bytes"
	"errors"
	"testing"
)

// Decoding the loop region once more replays frames 1..5, the restart
// frame 1 is decoded twice in a row (once as priming).
func loopOnceFrames() []byte {
	return append(sequence(0, 4), sequence(0, 19)...)
}

func TestLegacyResidentLoop(t *testing.T) {
	file := loopFile(1000, 5000)
	r := newLoadedRig(t, EngineLegacy, file, uint32(len(file)), uint32(len(file)))
	if err := r.eng.SetLoopNum(1); err != nil {
		t.Fatalf("SetLoopNum: %v", err)
	}

	want := []int{955, 1024, 1024, 1024, 974}
	for i, n := range want {
		if got := r.eng.LoopStatus(); got != 1 {
			t.Fatalf("decode %d: loop status: expected 1, got %d", i, got)
		}
		out, err := r.eng.DecodeData(testPCMAddr)
		if err != nil {
			t.Fatalf("decode %d: %v", i, err)
		}
		if out.Samples != n {
			t.Fatalf("decode %d: expected %d samples, got %d", i, n, out.Samples)
		}
	}

	// The fifth decode crossed the loop end and jumped back.
	if got := r.eng.CurrentSample(); got != 1000 {
		t.Fatalf("after the loop: expected sample 1000, got %d", got)
	}
	if got := r.eng.LoopNum(); got != 0 {
		t.Fatalf("loops left: expected 0, got %d", got)
	}
	if got := r.eng.LoopStatus(); got != 0 {
		t.Fatalf("loop status after the last loop: expected 0, got %d", got)
	}

	res := r.run()
	if res.samples != 24001-(955+3*1024+974) {
		t.Fatalf("samples after the loop: expected %d, got %d", 24001-(955+3*1024+974), res.samples)
	}
	if !bytes.Equal(res.frames, loopOnceFrames()) {
		t.Fatalf("frames: expected %v, got %v", loopOnceFrames(), res.frames)
	}
}

func TestLegacyResidentLoopForever(t *testing.T) {
	file := loopFile(1000, 5000)
	r := newLoadedRig(t, EngineLegacy, file, uint32(len(file)), uint32(len(file)))
	if err := r.eng.SetLoopNum(-1); err != nil {
		t.Fatalf("SetLoopNum: %v", err)
	}
	// The first pass starts at frame 0, later ones at the loop start frame.
	for pass := 0; pass < 3; pass++ {
		decodes := 4
		if pass == 0 {
			decodes = 5
		}
		for i := 0; i < decodes; i++ {
			if _, err := r.eng.DecodeData(testPCMAddr); err != nil {
				t.Fatalf("pass %d decode %d: %v", pass, i, err)
			}
		}
		if got := r.eng.CurrentSample(); got != 1000 {
			t.Fatalf("pass %d: expected to be back at 1000, got %d", pass, got)
		}
		if got := r.eng.LoopNum(); got != -1 {
			t.Fatalf("pass %d: infinite loop count changed to %d", pass, got)
		}
	}
}

func TestLegacyStreamedLoop(t *testing.T) {
	file := loopFile(1000, 5000)
	r := newLoadedRig(t, EngineLegacy, file, 1000, 1000)
	if st := r.eng.Status(); st != ATRAC_STATUS_STREAMED_LOOP_WITH_TRAILER {
		t.Fatalf("expected STREAMED_LOOP_WITH_TRAILER, got %s", st)
	}
	if err := r.eng.SetLoopNum(1); err != nil {
		t.Fatalf("SetLoopNum: %v", err)
	}

	res := r.run()
	if res.samples != 24001 {
		t.Fatalf("expected 24001 samples, got %d", res.samples)
	}
	if !bytes.Equal(res.frames, loopOnceFrames()) {
		t.Fatalf("frames: expected %v, got %v", loopOnceFrames(), res.frames)
	}
	if r.rec.last.torn != 0 {
		t.Fatalf("%d frames were read from a torn region", r.rec.last.torn)
	}
}

func TestLegacyStreamedLoopFirstReadPastLoopEnd(t *testing.T) {
	file := loopFile(1000, 5000)
	// The first read reaches well past the frame holding the loop end.
	r := newLoadedRig(t, EngineLegacy, file, 1600, 1600)
	if _, n, off := r.eng.GetStreamDataInfo(); off != 1104 || n != 384 {
		t.Fatalf("delivery after the first read: expected 384 bytes from 1104, got %d from %d", n, off)
	}
	if err := r.eng.SetLoopNum(1); err != nil {
		t.Fatalf("SetLoopNum: %v", err)
	}
	if _, _, off := r.eng.GetStreamDataInfo(); off != 144 {
		t.Fatalf("delivery with a loop queued: expected the restart frame at 144, got %d", off)
	}

	res := r.run()
	if res.samples != 24001 {
		t.Fatalf("expected 24001 samples, got %d", res.samples)
	}
	if !bytes.Equal(res.frames, loopOnceFrames()) {
		t.Fatalf("frames: expected %v, got %v", loopOnceFrames(), res.frames)
	}
	if r.rec.last.torn != 0 {
		t.Fatalf("%d frames were read from a torn region", r.rec.last.torn)
	}
	if got := r.eng.LoopNum(); got != 0 {
		t.Fatalf("loops left: expected 0, got %d", got)
	}

	plain := newLoadedRig(t, EngineLegacy, file, 1600, 1600)
	res = plain.run()
	if res.samples != 20000 || !bytes.Equal(res.frames, sequence(0, 19)) {
		t.Fatalf("without loops: expected 20000 samples over frames 0..19, got %d over %v", res.samples, res.frames)
	}
}

func TestLegacyStreamedLoopFromEnd(t *testing.T) {
	file := loopFile(1000, 19999)
	r := newLoadedRig(t, EngineLegacy, file, 1000, 1000)
	if st := r.eng.Status(); st != ATRAC_STATUS_STREAMED_LOOP_FROM_END {
		t.Fatalf("expected STREAMED_LOOP_FROM_END, got %s", st)
	}
	if err := r.eng.SetLoopNum(2); err != nil {
		t.Fatalf("SetLoopNum: %v", err)
	}

	res := r.run()
	// Two extra passes over sample 1000..19999.
	if want := 20000 + 2*19000; res.samples != want {
		t.Fatalf("expected %d samples, got %d", want, res.samples)
	}
	if r.rec.last.torn != 0 {
		t.Fatalf("%d frames were read from a torn region", r.rec.last.torn)
	}
}

func TestLegacyStreamWithoutLoopsIgnoresLoopPoints(t *testing.T) {
	file := loopFile(1000, 5000)
	r := newLoadedRig(t, EngineLegacy, file, 1000, 1000)
	res := r.run()
	if res.samples != 20000 {
		t.Fatalf("expected 20000 samples, got %d", res.samples)
	}
	if !bytes.Equal(res.frames, sequence(0, 19)) {
		t.Fatalf("frames: %v", res.frames)
	}
}

func TestLegacyAddStreamDataTooBig(t *testing.T) {
	file := fileA()
	r := newLoadedRig(t, EngineLegacy, file, 1000, 1000)
	if _, err := r.eng.DecodeData(testPCMAddr); err != nil {
		t.Fatalf("decode: %v", err)
	}
	_, n, _ := r.eng.GetStreamDataInfo()
	before := r.snapshot()
	if err := r.eng.AddStreamData(n + 1); !errors.Is(err, SCE_ERROR_ATRAC_ADD_DATA_IS_TOO_BIG) {
		t.Fatalf("expected ADD_DATA_IS_TOO_BIG, got %v", err)
	}
	if !bytes.Equal(before, r.snapshot()) {
		t.Fatalf("rejected add changed the state")
	}

	all := newLoadedRig(t, EngineLegacy, file, uint32(len(file)), uint32(len(file)))
	if err := all.eng.AddStreamData(1); !errors.Is(err, SCE_ERROR_ATRAC_ALL_DATA_LOADED) {
		t.Fatalf("add on resident data: expected ALL_DATA_LOADED, got %v", err)
	}
}

// monoLoopFile is loopFile with a single channel, the only layout a sceSas
// voice takes.
func monoLoopFile() []byte {
	l := at3Stereo(20)
	l.channels = 1
	l.endSample = 20000
	l.loopStart, l.loopEnd = 1000, 5000
	return buildAt3File(l)
}

func TestLegacySasStream(t *testing.T) {
	if err := newEngineRig(t, EngineLegacy).eng.SetForSas(); !errors.Is(err, SCE_ERROR_ATRAC_NO_DATA) {
		t.Fatalf("SetForSas without data: expected NO_DATA, got %v", err)
	}
	stereo := newLoadedRig(t, EngineLegacy, loopFile(1000, 5000), 1000, 1000)
	if err := stereo.eng.SetForSas(); !errors.Is(err, SCE_ERROR_ATRAC_NOT_MONO) {
		t.Fatalf("SetForSas on stereo data: expected NOT_MONO, got %v", err)
	}
	if st := stereo.eng.Status(); st == ATRAC_STATUS_FOR_SCESAS {
		t.Fatalf("stereo context was bound to a voice")
	}

	file := monoLoopFile()
	r := newLoadedRig(t, EngineLegacy, file, 1000, 1000)
	if err := r.eng.SetLoopNum(1); err != nil {
		t.Fatalf("SetLoopNum: %v", err)
	}
	if err := r.eng.SetForSas(); err != nil {
		t.Fatalf("SetForSas: %v", err)
	}
	if st := r.eng.Status(); st != ATRAC_STATUS_FOR_SCESAS {
		t.Fatalf("expected FOR_SCESAS, got %s", st)
	}

	// Once bound, only the voice may feed and decode.
	if _, err := r.eng.DecodeData(testPCMAddr); !errors.Is(err, SCE_ERROR_ATRAC_IS_FOR_SCESAS) {
		t.Fatalf("DecodeData on a voice context: expected IS_FOR_SCESAS, got %v", err)
	}
	if err := r.eng.AddStreamData(192); !errors.Is(err, SCE_ERROR_ATRAC_IS_FOR_SCESAS) {
		t.Fatalf("AddStreamData on a voice context: expected IS_FOR_SCESAS, got %v", err)
	}

	// The voice fetches from its own copy of the file.
	src := uint32(testBusBase + 0x80000)
	r.bus.WriteBytes(src, file)

	samples := 0
	for i := 0; ; i++ {
		if i > 200 {
			t.Fatalf("sas stream did not finish")
		}
		_, _, off := r.eng.GetStreamDataInfo()
		if err := r.eng.AddStreamDataSas(src+off, 4096); err != nil {
			t.Fatalf("AddStreamDataSas: %v", err)
		}
		out, err := r.eng.DecodeForSas(testPCMAddr)
		if errors.Is(err, SCE_ERROR_ATRAC_ALL_DATA_DECODED) {
			break
		}
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		samples += out.Samples
	}
	if samples != 20000 {
		t.Fatalf("sas voices loop on their own, expected 20000 samples, got %d", samples)
	}
	if !bytes.Equal(r.rec.last.frames, sequence(0, 19)) {
		t.Fatalf("frames: %v", r.rec.last.frames)
	}
	if r.rec.last.torn != 0 {
		t.Fatalf("expected no torn frames, got %d", r.rec.last.torn)
	}
}

func TestLegacySecondBuffer(t *testing.T) {
	file := loopFile(1000, 5000)
	r := newLoadedRig(t, EngineLegacy, file, 1000, 1000)

	if err := r.eng.SetSecondBuffer(testBusBase+0x80000, 100); !errors.Is(err, SCE_ERROR_ATRAC_SIZE_TOO_SMALL) {
		t.Fatalf("tiny second buffer: expected SIZE_TOO_SMALL, got %v", err)
	}
	if err := r.eng.SetSecondBuffer(testBusBase+0x80000, 3*192); err != nil {
		t.Fatalf("three frames: %v", err)
	}
	if got := r.eng.SecondBufferSize(); got != 3*192 {
		t.Fatalf("second buffer size: expected 576, got %d", got)
	}

	plain := newLoadedRig(t, EngineLegacy, fileA(), 1000, 1000)
	if err := plain.eng.SetSecondBuffer(testBusBase+0x80000, 4096); !errors.Is(err, SCE_ERROR_ATRAC_SECOND_BUFFER_NOT_NEEDED) {
		t.Fatalf("no trailer: expected SECOND_BUFFER_NOT_NEEDED, got %v", err)
	}
}

func TestLegacyResetBadSample(t *testing.T) {
	file := fileA()
	r := newLoadedRig(t, EngineLegacy, file, uint32(len(file)), uint32(len(file)))
	if err := r.eng.ResetPlayPosition(9000, 0, 0); !errors.Is(err, SCE_ERROR_ATRAC_BAD_SAMPLE) {
		t.Fatalf("past the end: expected BAD_SAMPLE, got %v", err)
	}
	if err := r.eng.ResetPlayPosition(-1, 0, 0); !errors.Is(err, SCE_ERROR_ATRAC_BAD_SAMPLE) {
		t.Fatalf("negative: expected BAD_SAMPLE, got %v", err)
	}
}

// A halfway seek must at least deliver the frame the target sample sits in.
func TestLegacyResetHalfwayMinWrite(t *testing.T) {
	file := fileA()
	r := newLoadedRig(t, EngineLegacy, file, 1000, uint32(len(file)))
	if st := r.eng.Status(); st != ATRAC_STATUS_HALFWAY_BUFFER {
		t.Fatalf("expected HALFWAY_BUFFER, got %s", st)
	}

	info := r.resetInfo(0)
	if info.First.MinWriteBytes != 0 || info.First.FilePos != 1000 || info.First.WritableBytes != 996 {
		t.Fatalf("reset inside the delivered data: got %+v", info.First)
	}
	// Sample 4096 ends at file offset 1036, 36 bytes past what was read.
	info = r.resetInfo(4096)
	if info.First.MinWriteBytes != 36 {
		t.Fatalf("reset past the delivered data: expected min write 36, got %d", info.First.MinWriteBytes)
	}
	if err := r.eng.ResetPlayPosition(4096, 35, 0); !errors.Is(err, SCE_ERROR_ATRAC_BAD_FIRST_RESET_SIZE) {
		t.Fatalf("short write: expected BAD_FIRST_RESET_SIZE, got %v", err)
	}

	r.bus.WriteBytes(info.First.WritePosPtr, file[1000:])
	if err := r.eng.ResetPlayPosition(4096, info.First.WritableBytes, 0); err != nil {
		t.Fatalf("ResetPlayPosition: %v", err)
	}
	if st := r.eng.Status(); st != ATRAC_STATUS_ALL_DATA_LOADED {
		t.Fatalf("after delivering the rest: expected ALL_DATA_LOADED, got %s", st)
	}
	if got := r.eng.CurrentSample(); got != 4096 {
		t.Fatalf("expected sample 4096, got %d", got)
	}
}

// cloneRig copies guest memory into a new bus and restores state into a
// fresh engine on it.
func cloneRig(t *testing.T, r *engineRig, state []byte) *engineRig {
	t.Helper()
	bus := NewSystemBusSized(testBusBase, testBusSize)
	bus.WriteBytes(testBusBase, r.bus.ReadBytes(testBusBase, testBusSize))
	rec := &decoderRecorder{}
	eng := NewAtracEngine(EngineLegacy, bus, testCtxAddr, rec.factory)
	if err := eng.LoadState(state); err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	return &engineRig{t: t, bus: bus, eng: eng, rec: rec, file: r.file}
}

func TestLegacySaveStateRoundTrip(t *testing.T) {
	file := loopFile(1000, 5000)
	r := newLoadedRig(t, EngineLegacy, file, 1000, 1000)
	if err := r.eng.SetLoopNum(1); err != nil {
		t.Fatalf("SetLoopNum: %v", err)
	}
	for i := 0; i < 3; i++ {
		r.feed()
		if _, err := r.eng.DecodeData(testPCMAddr); err != nil {
			t.Fatalf("decode %d: %v", i, err)
		}
	}
	r.eng.SetAtracID(4)

	state, err := r.eng.SaveState()
	if err != nil {
		t.Fatalf("SaveState: %v", err)
	}
	decodedBefore := len(r.rec.last.frames)

	c := cloneRig(t, r, state)
	again, err := c.eng.SaveState()
	if err != nil {
		t.Fatalf("SaveState after load: %v", err)
	}
	if !bytes.Equal(state, again) {
		t.Fatalf("restored state serialises differently")
	}
	if c.eng.AtracID() != 4 || c.eng.Status() != r.eng.Status() || c.eng.LoopNum() != 1 {
		t.Fatalf("restored id %d status %s loops %d", c.eng.AtracID(), c.eng.Status(), c.eng.LoopNum())
	}

	orig := r.run()
	restored := c.run()
	if orig.samples != restored.samples || orig.decodes != restored.decodes {
		t.Fatalf("diverged: original %d decodes/%d samples, restored %d/%d",
			orig.decodes, orig.samples, restored.decodes, restored.samples)
	}
	if !bytes.Equal(orig.frames[decodedBefore:], restored.frames) {
		t.Fatalf("restored engine decoded %v, original %v", restored.frames, orig.frames[decodedBefore:])
	}
}

func TestLegacyLoadStateRejects(t *testing.T) {
	r := newEngineRig(t, EngineLegacy)
	if err := r.eng.LoadState([]byte("NOPE\x01\x00\x00\x00")); err == nil {
		t.Fatalf("expected an error for a bad magic")
	}
	if err := r.eng.LoadState([]byte("ATR")); err == nil {
		t.Fatalf("expected an error for a truncated state")
	}
	if err := r.eng.LoadState([]byte("ATRS\x02\x00\x00\x00")); err == nil {
		t.Fatalf("expected an error for an unknown version")
	}

	good, err := newLoadedRig(t, EngineLegacy, fileA(), 1996, 1996).eng.SaveState()
	if err != nil {
		t.Fatalf("SaveState: %v", err)
	}
	if err := r.eng.LoadState(good[:len(good)/2]); err == nil {
		t.Fatalf("expected an error for a cut off body")
	}
}

func TestLegacyWriteContext(t *testing.T) {
	file := fileA()
	r := newLoadedRig(t, EngineLegacy, file, uint32(len(file)), uint32(len(file)))
	if _, err := r.eng.DecodeData(testPCMAddr); err != nil {
		t.Fatalf("decode: %v", err)
	}

	c := r.hwCtx()
	if c.State() == ATRAC_STATUS_ALL_DATA_LOADED {
		t.Fatalf("record written before WriteContext")
	}
	r.eng.WriteContext()

	if c.State() != ATRAC_STATUS_ALL_DATA_LOADED {
		t.Fatalf("state: expected ALL_DATA_LOADED, got %s", c.State())
	}
	if c.Codec() != PSP_MODE_AT_3 || c.SampleSize() != 192 || c.NumChan() != 2 {
		t.Fatalf("geometry: codec %x size %d channels %d", c.Codec(), c.SampleSize(), c.NumChan())
	}
	if c.DataOff() != 76 || c.DataEnd() != 1996 || c.EndSample() != 9068 {
		t.Fatalf("offsets: data %d..%d end sample %d", c.DataOff(), c.DataEnd(), c.EndSample())
	}
	if c.CurOff() != 1996 {
		t.Fatalf("curOff mirrors the delivery offset: expected 1996, got %d", c.CurOff())
	}
	if c.Buffer() != testBufAddr || c.BufferByte() != 1996 {
		t.Fatalf("buffer: %#x+%d", c.Buffer(), c.BufferByte())
	}
	if c.SamplesPerChan() != 1024 {
		t.Fatalf("samples per channel without a fact offset: expected 1024, got %d", c.SamplesPerChan())
	}
}
