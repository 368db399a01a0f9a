// atrac_engine.go - Common contract for the ATRAC context engines

/*
 ██▓ ███▄    █ ▄▄▄█████▓ █    ██  ██▓▄▄▄█████▓ ██▓ ▒█████   ███▄    █    ▓█████  ███▄    █   ▄████  ██▓ ███▄    █ ▓█████
▓██▒ ██ ▀█   █ ▓  ██▒ ▓▒ ██  ▓██▒▓██▒▓  ██▒ ▓▒▓██▒▒██▒  ██▒ ██ ▀█   █    ▓█   ▀  ██ ▀█   █  ██▒ ▀█▒▓██▒ ██ ▀█   █ ▓█   ▀
▒██▒▓██  ▀█ ██▒▒ ▓██░ ▒░▓██  ▒██░▒██▒▒ ▓██░ ▒░▒██▒▒██░  ██▒▓██  ▀█ ██▒   ▒███   ▓██  ▀█ ██▒▒██░▄▄▄░▒██▒▓██  ▀█ ██▒▒███
░██░▓██▒  ▐▌██▒░ ▓██▓ ░ ▓▓█  ░██░░██░░ ▓██▓ ░ ░██░▒██   ██░▓██▒  ▐▌██▒   ▒▓█  ▄ ▓██▒  ▐▌██▒░▓█  ██▓░██░▓██▒  ▐▌██▒▒▓█  ▄
░██░▒██░   ▓██░  ▒██▒ ░ ▒▒█████▓ ░██░  ▒██▒ ░ ░██░░ ████▓▒░▒██░   ▓██░   ░▒████▒▒██░   ▓██░░▒▓███▀▒░██░▒██░   ▓██░░▒████▒
░▓  ░ ▒░   ▒ ▒   ▒ ░░   ░▒▓▒ ▒ ▒ ░▓    ▒ ░░   ░▓  ░ ▒░▒░▒░ ░ ▒░   ▒ ▒    ░░ ▒░ ░░ ▒░   ▒ ▒  ░▒   ▒ ░▓  ░ ▒░   ▒ ▒ ░░ ▒░ ░
 ▒ ░░ ░░   ░ ▒░    ░    ░░▒░ ░ ░  ▒ ░    ░     ▒ ░  ░ ▒ ▒░ ░ ░░   ░ ▒░    ░ ░  ░░ ░░   ░ ▒░  ░   ░  ▒ ░░ ░░   ░ ▒░ ░ ░  ░
 ▒ ░   ░   ░ ░   ░       ░░░ ░ ░  ▒ ░  ░       ▒ ░░ ░ ░ ▒     ░   ░ ░       ░      ░   ░ ░ ░ ░   ░  ▒ ░   ░   ░ ░    ░
 ░           ░             ░      ░            ░      ░ ░           ░       ░  ░         ░       ░  ░           ░    ░  ░

(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

/*
atrac_engine.go - ATRAC engine contract

Every sceAtrac syscall lands on one AtracEngine bound to a slot. Two
implementations exist and are kept deliberately separate:

    LegacyEngine    keeps its bookkeeping in Go fields and only mirrors
                    them into the guest context record on request.
    HardwareEngine  keeps all state inside the guest SceAtracContext
                    record, exactly where the firmware keeps it.

The kind is picked once when a slot is acquired and never changes for the
slot's lifetime. Engines are not safe for concurrent use; the syscall
layer serialises calls per slot.
*/

package main

import "fmt"

type EngineKind int

const (
	EngineLegacy EngineKind = iota
	EngineHardware
)

func (k EngineKind) String() string {
	switch k {
	case EngineLegacy:
		return "legacy"
	case EngineHardware:
		return "hw"
	}
	return fmt.Sprintf("EngineKind(%d)", int(k))
}

// ParseEngineKind accepts the names used in configuration.
func ParseEngineKind(s string) (EngineKind, error) {
	switch s {
	case "legacy", "":
		return EngineLegacy, nil
	case "hw", "hardware", "new":
		return EngineHardware, nil
	}
	return EngineLegacy, fmt.Errorf("unknown atrac engine %q", s)
}

// AtracBufferInfo is one half of sceAtracGetBufferInfoForResetting's output.
type AtracBufferInfo struct {
	WritePosPtr   uint32
	WritableBytes uint32
	MinWriteBytes uint32
	FilePos       uint32
}

type AtracResetBufferInfo struct {
	First  AtracBufferInfo
	Second AtracBufferInfo
}

// WriteTo stores the info in guest memory in firmware layout (8 words).
func (info AtracResetBufferInfo) WriteTo(mem MemoryBus, addr uint32) {
	for i, v := range [8]uint32{
		info.First.WritePosPtr, info.First.WritableBytes, info.First.MinWriteBytes, info.First.FilePos,
		info.Second.WritePosPtr, info.Second.WritableBytes, info.Second.MinWriteBytes, info.Second.FilePos,
	} {
		mem.Write32(addr+uint32(i)*4, v)
	}
}

// DecodeResult is what sceAtracDecodeData reports besides the error.
type DecodeResult struct {
	Samples int
	Finish  bool
	Remains int
}

type AtracEngine interface {
	Kind() EngineKind
	AtracID() int
	SetAtracID(id int)
	ContextAddr() uint32
	Track() *Track
	Status() AtracStatus

	// CodecType is the codec the slot was acquired for, 0 when unbound.
	// SetData refuses data of any other codec.
	CodecType() uint32
	SetCodecType(codecType uint32)

	Analyze(addr, size uint32) error
	AnalyzeAA3(addr, size, fileSize uint32) error
	SetData(buffer, readSize, bufferSize uint32, outputChannels int) error

	GetStreamDataInfo() (writePtr, writableBytes, readOffset uint32)
	AddStreamData(bytesToAdd uint32) error
	AddStreamDataSas(bufPtr, bytesToAdd uint32) error
	SetForSas() error
	// DecodeForSas is the voice's decode path. DecodeData refuses a context
	// bound to sceSas.
	DecodeForSas(outAddr uint32) (DecodeResult, error)

	// DecodeData decodes one frame into outAddr. outAddr 0 discards the PCM.
	DecodeData(outAddr uint32) (DecodeResult, error)
	GetNextSamples() int
	RemainingFrames() int
	CurrentSample() int

	GetResetBufferInfo(sample int) (AtracResetBufferInfo, error)
	ResetPlayPosition(sample int, bytesWrittenFirst, bytesWrittenSecond uint32) error

	SetLoopNum(loopNum int) error
	LoopNum() int
	LoopStatus() int

	GetSecondBufferInfo() (fileOffset, desiredSize uint32, err error)
	SetSecondBuffer(addr, size uint32) error
	SecondBufferSize() uint32

	InitLowLevel(paramsAddr uint32, codecType uint32) error
	DecodeLowLevel(srcAddr, outAddr uint32) (bytesConsumed, samples int, err error)

	OutputChannels() int
	InternalCodecError() uint32
	WriteContext()

	SaveState() ([]byte, error)
	LoadState(data []byte) error
}

// NewAtracEngine builds the engine for a slot whose context record lives at
// ctxAddr. A nil factory selects the built-in silent decoder.
func NewAtracEngine(kind EngineKind, mem MemoryBus, ctxAddr uint32, factory DecoderFactory) AtracEngine {
	if factory == nil {
		factory = NewSilentDecoder
	}
	switch kind {
	case EngineHardware:
		return NewHardwareEngine(mem, ctxAddr, factory)
	default:
		return NewLegacyEngine(mem, ctxAddr, factory)
	}
}

// roundDownToMultiple works for negative x and any n > 0.
func roundDownToMultiple(x, n int32) int32 {
	if x%n == 0 {
		return x
	}
	if x < 0 {
		return x - x%n - n
	}
	return x - x%n
}

// frameSamples reports what one decode call does at decodePos: the start of
// the frame holding decodePos, how many samples are handed to the caller,
// and how far the cursor moves from the frame start. end is inclusive.
// DecodeData and GetNextSamples must both go through here.
func frameSamples(decodePos, end, spf int32) (frameStart, toWrite, advance int32) {
	rem := decodePos % spf
	frameStart = decodePos - rem
	toWrite = spf - rem
	advance = spf
	if frameStart+rem+toWrite > end+1 {
		samples := end + 1 - frameStart
		if samples < spf {
			toWrite = samples
			advance = samples
		}
	}
	return frameStart, toWrite, advance
}

// copyPCM writes the first samples*channels values of pcm to guest memory.
func copyPCM(mem MemoryBus, outAddr uint32, pcm []int16, samples, channels int) {
	if outAddr == 0 || samples <= 0 {
		return
	}
	n := samples * channels
	buf := make([]byte, n*2)
	for i := 0; i < n; i++ {
		buf[i*2] = byte(pcm[i])
		buf[i*2+1] = byte(uint16(pcm[i]) >> 8)
	}
	mem.WriteBytes(outAddr, buf)
}

// statusForData picks the buffering regime SetData starts in. readSize has
// already been clamped to the file size, so a whole file sitting in a larger
// buffer counts as fully loaded.
func statusForData(track *Track, readSize, bufferSize uint32) AtracStatus {
	if bufferSize >= track.FileSize {
		if readSize < track.FileSize {
			return ATRAC_STATUS_HALFWAY_BUFFER
		}
		return ATRAC_STATUS_ALL_DATA_LOADED
	}
	switch {
	case track.LoopEndSample <= 0:
		return ATRAC_STATUS_STREAMED_WITHOUT_LOOP
	case track.LoopEndSample == track.EndSample+track.FirstSampleOffsetFull():
		return ATRAC_STATUS_STREAMED_LOOP_FROM_END
	default:
		return ATRAC_STATUS_STREAMED_LOOP_WITH_TRAILER
	}
}

// secondBufferInfo is shared by both engines: only a trailer needs one.
func secondBufferInfo(track *Track, status AtracStatus) (uint32, uint32, error) {
	if status != ATRAC_STATUS_STREAMED_LOOP_WITH_TRAILER {
		return 0, 0, SCE_ERROR_ATRAC_SECOND_BUFFER_NOT_NEEDED
	}
	fileOffset := track.FileOffsetBySample(track.LoopEndSample - track.FirstSampleOffset)
	return fileOffset, track.FileSize - fileOffset, nil
}

// lowLevelParams reads {channels, outputChannels, bytesPerFrame}.
func lowLevelParams(mem MemoryBus, paramsAddr uint32) (channels, outputChannels, bytesPerFrame uint32) {
	return mem.Read32(paramsAddr), mem.Read32(paramsAddr + 4), mem.Read32(paramsAddr + 8)
}
