package main

import (
	"encoding/binary"
	"errors"
	"testing"
)

const (
	testBusBase = PSP_USER_MEMORY_BASE
	testBusSize = 1 << 20
	testCtxAddr = testBusBase
	testPCMAddr = testBusBase + 0x1000
	testBufAddr = testBusBase + 0x4000
)

var testEngineKinds = []EngineKind{EngineLegacy, EngineHardware}

// at3Layout describes a synthetic .at3 file. Frame k of the data chunk is
// filled with byte k%250+1, so a decoded frame identifies itself and never
// reads as erased flash.
type at3Layout struct {
	codec     uint32
	channels  uint16
	bpf       uint16
	frames    int
	endSample int32 // fact chunk sample count, 0 leaves the chunk out
	fso       int32
	factExtra int32 // third fact word, 0 leaves it out
	loopStart int32
	loopEnd   int32 // 0 leaves the smpl chunk out
}

func at3Stereo(frames int) at3Layout {
	return at3Layout{codec: PSP_MODE_AT_3, channels: 2, bpf: 192, frames: frames}
}

func frameFill(k int) byte {
	return byte(k%250 + 1)
}

func appendChunk(data []byte, id string, body []byte) []byte {
	data = append(data, id...)
	data = binary.LittleEndian.AppendUint32(data, uint32(len(body)))
	return append(data, body...)
}

// buildAt3File creates a RIFF/WAVE ATRAC file: fmt, optional fact, optional
// smpl, then data.
func buildAt3File(l at3Layout) []byte {
	fmtSize := fmtChunkMinAT3
	tag := uint16(AT3_MAGIC)
	if l.codec == PSP_MODE_AT_3_PLUS {
		fmtSize = fmtChunkMinAT3P
		tag = AT3_PLUS_MAGIC
	}
	fmtBody := make([]byte, fmtSize)
	binary.LittleEndian.PutUint16(fmtBody[0:], tag)
	binary.LittleEndian.PutUint16(fmtBody[2:], l.channels)
	binary.LittleEndian.PutUint32(fmtBody[4:], ATRAC_SAMPLE_RATE)
	binary.LittleEndian.PutUint32(fmtBody[8:], uint32(l.bpf)*ATRAC_SAMPLE_RATE/1024)
	binary.LittleEndian.PutUint16(fmtBody[12:], l.bpf)

	data := []byte("RIFF\x00\x00\x00\x00WAVE")
	data = appendChunk(data, "fmt ", fmtBody)

	if l.endSample != 0 {
		fact := binary.LittleEndian.AppendUint32(nil, uint32(l.endSample))
		fact = binary.LittleEndian.AppendUint32(fact, uint32(l.fso))
		if l.factExtra != 0 {
			fact = binary.LittleEndian.AppendUint32(fact, uint32(l.factExtra))
		}
		data = appendChunk(data, "fact", fact)
	}

	if l.loopEnd != 0 {
		smpl := make([]byte, smplLoopBase+smplLoopStride)
		binary.LittleEndian.PutUint32(smpl[28:], 1)
		binary.LittleEndian.PutUint32(smpl[smplLoopBase+8:], uint32(l.loopStart))
		binary.LittleEndian.PutUint32(smpl[smplLoopBase+12:], uint32(l.loopEnd))
		data = appendChunk(data, "smpl", smpl)
	}

	frames := make([]byte, int(l.bpf)*l.frames)
	for k := 0; k < l.frames; k++ {
		for i := 0; i < int(l.bpf); i++ {
			frames[k*int(l.bpf)+i] = frameFill(k)
		}
	}
	data = appendChunk(data, "data", frames)

	binary.LittleEndian.PutUint32(data[4:], uint32(len(data)-8))
	return data
}

// buildAA3File creates an OMA file with an empty ea3 tag. params holds
// header bytes 34 and 35.
func buildAA3File(codecID byte, params uint16, frames int, bpf int) []byte {
	data := make([]byte, aa3TagHeaderBytes+aa3HeaderBytes)
	copy(data, "ea3")
	data[3] = 3
	hdr := data[aa3TagHeaderBytes:]
	copy(hdr, "EA3")
	hdr[aa3CodecIDOffset] = codecID
	hdr[34] = byte(params >> 8)
	hdr[35] = byte(params)
	for k := 0; k < frames; k++ {
		for i := 0; i < bpf; i++ {
			data = append(data, frameFill(k))
		}
	}
	return data
}

// recordingDecoder fills PCM with the frame's fill byte and remembers the
// fill byte of every frame it was handed.
type recordingDecoder struct {
	spf    int
	bpf    int
	frames  []byte
	torn    int
	flushes int
}

func (d *recordingDecoder) Decode(frame []byte, out []int16) (int, error) {
	if len(frame) < d.bpf {
		return 0, errFrameCorrupt
	}
	d.frames = append(d.frames, frame[0])
	for _, b := range frame[:d.bpf] {
		if b != frame[0] {
			d.torn++
			break
		}
	}
	if frame[0] == 0xFF {
		return 0, errFrameCorrupt
	}
	for i := range out {
		out[i] = int16(frame[0])
	}
	return d.spf, nil
}

func (d *recordingDecoder) FlushBuffers() { d.flushes++ }

type decoderRecorder struct {
	last *recordingDecoder
}

func (r *decoderRecorder) factory(codecType uint32, channels, bytesPerFrame, outputChannels int) (FrameDecoder, error) {
	spf := ATRAC3_FRAME_SAMPLES
	if codecType == PSP_MODE_AT_3_PLUS {
		spf = ATRAC3PLUS_FRAME_SAMPLES
	}
	r.last = &recordingDecoder{spf: spf, bpf: bytesPerFrame}
	return r.last, nil
}

type engineRig struct {
	t    *testing.T
	bus  *SystemBus
	eng  AtracEngine
	rec  *decoderRecorder
	file []byte
}

func newEngineRig(t *testing.T, kind EngineKind) *engineRig {
	t.Helper()
	rec := &decoderRecorder{}
	bus := NewSystemBusSized(testBusBase, testBusSize)
	eng := NewAtracEngine(kind, bus, testCtxAddr, rec.factory)
	eng.SetAtracID(0)
	return &engineRig{t: t, bus: bus, eng: eng, rec: rec}
}

// load does what a game does before decoding: read the head of the file
// into the buffer, analyze it and set the data.
func (r *engineRig) load(file []byte, readSize, bufferSize uint32) {
	r.t.Helper()
	r.file = file
	r.bus.WriteBytes(testBufAddr, file[:readSize])
	if err := r.eng.Analyze(testBufAddr, readSize); err != nil {
		r.t.Fatalf("Analyze: %v", err)
	}
	if err := r.eng.SetData(testBufAddr, readSize, bufferSize, 2); err != nil {
		r.t.Fatalf("SetData: %v", err)
	}
}

func newLoadedRig(t *testing.T, kind EngineKind, file []byte, readSize, bufferSize uint32) *engineRig {
	t.Helper()
	r := newEngineRig(t, kind)
	r.load(file, readSize, bufferSize)
	return r
}

// feed delivers everything GetStreamDataInfo asks for.
func (r *engineRig) feed() uint32 {
	r.t.Helper()
	writePtr, n, off := r.eng.GetStreamDataInfo()
	if n == 0 {
		return 0
	}
	if int(off+n) > len(r.file) {
		r.t.Fatalf("asked for file bytes %d..%d past the end (%d)", off, off+n, len(r.file))
	}
	r.bus.WriteBytes(writePtr, r.file[off:off+n])
	if err := r.eng.AddStreamData(n); err != nil {
		r.t.Fatalf("AddStreamData(%d): %v", n, err)
	}
	return n
}

func (r *engineRig) resetInfo(sample int) AtracResetBufferInfo {
	r.t.Helper()
	info, err := r.eng.GetResetBufferInfo(sample)
	if err != nil {
		r.t.Fatalf("GetResetBufferInfo(%d): %v", sample, err)
	}
	return info
}

type runResult struct {
	decodes int
	samples int
	frames  []byte
}

// run feeds and decodes until the engine reports ALL_DATA_DECODED, checking
// that GetNextSamples always predicts the decode that follows.
func (r *engineRig) run() runResult {
	r.t.Helper()
	var res runResult
	for i := 0; i < 1000; i++ {
		fed := r.feed()
		predicted := r.eng.GetNextSamples()
		out, err := r.eng.DecodeData(testPCMAddr)
		if errors.Is(err, SCE_ERROR_ATRAC_ALL_DATA_DECODED) {
			if predicted != 0 {
				r.t.Fatalf("GetNextSamples at the end: expected 0, got %d", predicted)
			}
			res.frames = r.rec.last.frames
			return res
		}
		if errors.Is(err, SCE_ERROR_ATRAC_BUFFER_IS_EMPTY) && fed > 0 {
			continue
		}
		if err != nil {
			r.t.Fatalf("decode %d: %v (fed %d)", res.decodes, err, fed)
		}
		if out.Samples != predicted {
			r.t.Fatalf("decode %d: GetNextSamples predicted %d, got %d", res.decodes, predicted, out.Samples)
		}
		res.decodes++
		res.samples += out.Samples
	}
	r.t.Fatalf("no end of track after 1000 iterations")
	return res
}

func (r *engineRig) hwCtx() hwContext {
	return hwContext{mem: r.bus, addr: testCtxAddr}
}

func (r *engineRig) legacy() *LegacyEngine {
	r.t.Helper()
	l, ok := r.eng.(*LegacyEngine)
	if !ok {
		r.t.Fatalf("expected a legacy engine, got %T", r.eng)
	}
	return l
}

func sequence(from, to int) []byte {
	var out []byte
	for k := from; k <= to; k++ {
		out = append(out, frameFill(k))
	}
	return out
}
