// atrac_hw.go - Hardware-mirroring ATRAC context engine

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
atrac_hw.go - Hardware-mirroring engine

HardwareEngine holds no playback state of its own. Every cursor lives in
the slot's SceAtracContext record in guest memory (see atrac_context.go),
read and written through hwContext accessors on each call, so a game that
peeks or pokes the record sees exactly what the firmware would show.

Several computations below look wrong on paper. They are kept because the
values they produce are what games were tested against; each one is marked.
*/

package main

import "go.uber.org/zap"

type HardwareEngine struct {
	mem     MemoryBus
	ctx     hwContext
	track   Track
	factory DecoderFactory
	decoder FrameDecoder

	outputChannels int
	atracID        int
	// Codec the slot was acquired for. Not part of the record.
	codecType      uint32

	// Scratch PCM for one frame, owned by this engine.
	scratch []int16
}

func NewHardwareEngine(mem MemoryBus, ctxAddr uint32, factory DecoderFactory) *HardwareEngine {
	e := &HardwareEngine{
		mem:            mem,
		ctx:            hwContext{mem: mem, addr: ctxAddr},
		track:          newTrack(),
		factory:        factory,
		outputChannels: 2,
	}
	e.ctx.Clear()
	e.ctx.SetState(ATRAC_STATUS_NO_DATA)
	return e
}

func (e *HardwareEngine) Kind() EngineKind    { return EngineHardware }
func (e *HardwareEngine) AtracID() int        { return e.atracID }
func (e *HardwareEngine) ContextAddr() uint32 { return e.ctx.addr }
func (e *HardwareEngine) Track() *Track       { return &e.track }
func (e *HardwareEngine) Status() AtracStatus { return e.ctx.State() }
func (e *HardwareEngine) OutputChannels() int { return e.outputChannels }
func (e *HardwareEngine) WriteContext()       {}
func (e *HardwareEngine) CodecType() uint32   { return e.codecType }

func (e *HardwareEngine) SetCodecType(codecType uint32) {
	e.codecType = codecType
}

func (e *HardwareEngine) SetAtracID(id int) {
	e.atracID = id
	e.ctx.SetAtracID(uint32(id))
}

func (e *HardwareEngine) analyzeReset() {
	e.track = newTrack()
	e.mem.Memset(e.ctx.info(0), 0, ATRAC_CONTEXT_SIZE-ATRAC_INFO_BLOCK_OFFSET)
	e.ctx.SetState(ATRAC_STATUS_NO_DATA)
	e.ctx.SetAtracID(uint32(e.atracID))
}

func (e *HardwareEngine) Analyze(addr, size uint32) error {
	e.analyzeReset()
	if err := AnalyzeAtracTrack(e.mem, addr, size, &e.track); err != nil {
		return err
	}
	logDebug("atrac track analyzed",
		zap.Int("id", e.atracID),
		zap.Uint32("codec", e.track.CodecType),
		zap.Uint32("bytesPerFrame", e.track.BytesPerFrame),
		zap.Int32("endSample", e.track.EndSample),
		zap.Int32("loopStart", e.track.LoopStartSample),
		zap.Int32("loopEnd", e.track.LoopEndSample))
	return nil
}

func (e *HardwareEngine) AnalyzeAA3(addr, size, fileSize uint32) error {
	e.analyzeReset()
	return AnalyzeAA3Track(e.mem, addr, size, fileSize, &e.track)
}

func (e *HardwareEngine) createDecoder() error {
	if e.decoder != nil {
		e.decoder.FlushBuffers()
	}
	dec, err := e.factory(e.track.CodecType, int(e.track.Channels), int(e.track.BytesPerFrame), e.outputChannels)
	if err != nil {
		return err
	}
	e.decoder = dec
	e.scratch = make([]int16, int(e.track.SamplesPerFrame())*e.outputChannels)
	return nil
}

func (e *HardwareEngine) SetData(buffer, readSize, bufferSize uint32, outputChannels int) error {
	if e.track.CodecType != PSP_MODE_AT_3 && e.track.CodecType != PSP_MODE_AT_3_PLUS {
		logError("unexpected codec type in set data", zap.Uint32("codec", e.track.CodecType))
		return SCE_ERROR_ATRAC_UNKNOWN_FORMAT
	}
	if e.codecType != 0 && e.track.CodecType != e.codecType {
		logWarn("data codec differs from the atrac id",
			zap.Int("id", e.atracID), zap.Uint32("data", e.track.CodecType), zap.Uint32("slot", e.codecType))
		return SCE_ERROR_ATRAC_WRONG_CODECTYPE
	}
	if readSize > bufferSize {
		return SCE_ERROR_ATRAC_INCORRECT_READ_SIZE
	}
	if outputChannels != int(e.track.Channels) {
		logDebug("output channels differ from track, decoder will expand",
			zap.Int("output", outputChannels), zap.Uint32("track", e.track.Channels))
	}
	e.outputChannels = outputChannels
	if err := e.createDecoder(); err != nil {
		logError("decoder setup failed", zap.Error(err))
		return SCE_ERROR_ATRAC_API_FAIL
	}

	e.ctx.SetInBuf(buffer)

	if readSize > e.track.FileSize {
		logWarn("readSize larger than file, clamping",
			zap.Uint32("readSize", readSize), zap.Uint32("fileSize", e.track.FileSize))
		readSize = e.track.FileSize
	}

	e.ctx.SetState(statusForData(&e.track, readSize, bufferSize))
	logInfo("atrac streaming mode setup", zap.Int("id", e.atracID), zap.Stringer("status", e.ctx.State()))

	e.initContext(0, buffer, readSize, bufferSize, 0)
	return nil
}

// initContext lays out the record for a fresh start at sampleOffset.
// offset is the file offset that buffer[0] corresponds to, minus dataOff.
func (e *HardwareEngine) initContext(offset uint32, buffer, readSize, bufferSize uint32, sampleOffset int32) {
	c := e.ctx
	t := &e.track

	c.SetBuffer(buffer)
	c.SetBufferByte(bufferSize)
	c.SetSamplesPerChan(t.FirstSampleOffsetFull())
	c.SetEndSample(uint32(t.EndSample + t.FirstSampleOffsetFull()))
	if t.LoopStartSample != -1 {
		c.SetLoopStart(uint32(t.LoopStartSample))
		c.SetLoopEnd(uint32(t.LoopEndSample))
	}
	c.SetCodec(t.CodecType)
	c.SetSampleSize(t.BytesPerFrame)
	c.SetNumChan(uint8(t.Channels))
	c.SetNumFrame(0)
	c.SetDataOff(t.DataByteOffset)
	// curOff and streamOff are pushed forward by prime() below.
	c.SetCurOff(t.DataByteOffset + uint32((sampleOffset+t.FirstOffsetExtra())/t.SamplesPerFrame())*t.BytesPerFrame)
	c.SetStreamOff(t.DataByteOffset - offset)
	if c.State().IsStreaming() {
		c.SetStreamDataByte(readSize - c.StreamOff())
	} else {
		c.SetStreamDataByte(readSize - c.DataOff())
	}
	c.SetDataEnd(t.FileSize)
	c.SetDecodePos(uint32(t.FirstSampleOffsetFull() + sampleOffset))

	e.prime(t.FirstSampleOffsetFull())

	if !c.State().IsStreaming() {
		return
	}
	distanceToEnd := roundDownToMultiple(int32(c.BufferByte()-c.StreamOff()), int32(c.SampleSize()))
	if int32(c.StreamDataByte()) < distanceToEnd {
		logDebug("stream packets fit the buffer", zap.Uint32("readSize", readSize), zap.Uint32("bufferSize", bufferSize))
		// The firmware leaves these zeroed even though nothing was copied.
		// Never past streamOff, the first frame may start below 128.
		e.mem.Memset(c.Buffer(), 0, min(ATRAC_WRAP_ZERO_BYTES, c.StreamOff()))
		return
	}
	copyStart := c.StreamOff() + uint32(distanceToEnd)
	copyLen := c.StreamDataByte() - uint32(distanceToEnd)
	if copyLen > c.StreamOff() {
		// The head would overwrite frames not decoded yet. Leave it out of
		// the ring so GetStreamDataInfo asks for it after the wrap.
		logDebug("stream packet split at buffer end, requesting it again",
			zap.Uint32("copyLen", copyLen), zap.Uint32("streamOff", c.StreamOff()))
		c.SetStreamDataByte(c.StreamDataByte() - copyLen)
		return
	}
	logDebug("stream packet split at buffer end, copying tail to start",
		zap.Uint32("copyLen", copyLen), zap.Uint32("frameSize", c.SampleSize()))
	e.mem.Memcpy(c.Buffer(), c.Buffer()+copyStart, copyLen)
}

// prime decodes and throws away the whole frames covered by the initial
// skip, which warms the decoder and moves the cursors past them.
func (e *HardwareEngine) prime(discardedSamples int32) {
	c := e.ctx
	spf := e.track.SamplesPerFrame()
	bpf := e.track.BytesPerFrame
	for ; discardedSamples >= spf; discardedSamples -= spf {
		frame := e.mem.ReadBytes(c.Buffer()+c.StreamOff(), c.SampleSize())
		if _, err := e.decoder.Decode(frame, e.scratch); err != nil {
			logWarn("error decoding priming frame", zap.Uint32("streamOff", c.StreamOff()), zap.Error(err))
		}
		c.SetCurOff(c.CurOff() + bpf)
		if c.State().IsStreaming() {
			c.SetStreamOff(c.StreamOff() + bpf)
			c.SetStreamDataByte(c.StreamDataByte() - c.SampleSize())
		}
	}
}

func (e *HardwareEngine) RemainingFrames() int {
	c := e.ctx
	switch c.State() {
	case ATRAC_STATUS_NO_DATA, ATRAC_STATUS_ALL_DATA_LOADED:
		return PSP_ATRAC_ALLDATA_IS_ON_MEMORY
	case ATRAC_STATUS_HALFWAY_BUFFER:
		// Counts from the delivered offset, not dataEnd.
		fileOffset := int(c.StreamDataByte() + c.DataOff())
		if fileOffset >= int(c.DataEnd()) {
			return PSP_ATRAC_ALLDATA_IS_ON_MEMORY
		}
		return (fileOffset - int(c.CurOff())) / int(c.SampleSize())
	case ATRAC_STATUS_STREAMED_WITHOUT_LOOP, ATRAC_STATUS_STREAMED_LOOP_FROM_END, ATRAC_STATUS_STREAMED_LOOP_WITH_TRAILER:
	default:
		return SCE_ERROR_ATRAC_BAD_ATRACID.Int()
	}

	fileOffset := int(c.CurOff()) + int(c.StreamDataByte())
	bytesLeft := int(c.DataEnd()) - fileOffset
	if bytesLeft == 0 && c.State() == ATRAC_STATUS_STREAMED_WITHOUT_LOOP {
		return PSP_ATRAC_NONLOOP_STREAM_DATA
	}

	// decodePos carries the skip offset, the track end does not. Questionable
	// but observable.
	if int(c.DecodePos()) >= int(e.track.EndSample) {
		if c.State() == ATRAC_STATUS_STREAMED_WITHOUT_LOOP {
			return PSP_ATRAC_NONLOOP_STREAM_DATA
		}
		loopEndAdjusted := int(e.track.LoopEndSample - e.track.FirstOffsetExtra() - e.track.FirstSampleOffset)
		if c.State() == ATRAC_STATUS_STREAMED_LOOP_WITH_TRAILER && int(c.DecodePos()) > loopEndAdjusted {
			return PSP_ATRAC_NONLOOP_STREAM_DATA
		}
		if c.LoopNum() == 0 {
			return PSP_ATRAC_LOOP_STREAM_DATA
		}
	}
	return int(c.StreamDataByte() / c.SampleSize())
}

func (e *HardwareEngine) GetStreamDataInfo() (writePtr, writableBytes, readOffset uint32) {
	c := e.ctx
	switch c.State() {
	case ATRAC_STATUS_ALL_DATA_LOADED:
		return c.Buffer(), 0, 0

	case ATRAC_STATUS_HALFWAY_BUFFER:
		// Direct mapped: file offset and buffer offset are the same.
		fileOffset := c.DataOff() + c.StreamDataByte()
		bytesLeft := int32(c.DataEnd()) - int32(fileOffset)
		if bytesLeft == 0 {
			return c.Buffer(), 0, 0
		}
		return c.Buffer() + fileOffset, uint32(bytesLeft), fileOffset
	}

	fileOffset := int32(c.CurOff()) + int32(c.StreamDataByte())
	bytesLeft := int32(c.DataEnd()) - fileOffset
	if bytesLeft == 0 {
		return c.Buffer(), 0, 0
	}

	// streamOff is always frame aligned, the write position may not be.
	distanceToEnd := roundDownToMultiple(int32(c.BufferByte()-c.StreamOff()), int32(c.SampleSize()))
	sdb := int32(c.StreamDataByte())
	if sdb < distanceToEnd {
		writeOffset := int32(c.StreamOff()) + sdb
		n := min(distanceToEnd-sdb, bytesLeft)
		if n == 0 {
			return c.Buffer() + uint32(writeOffset), 0, 0
		}
		return c.Buffer() + uint32(writeOffset), uint32(n), uint32(fileOffset)
	}
	secondPart := sdb - distanceToEnd
	// Right after SetData the wrapped head of a split packet can overlap the
	// header area, leaving nothing writable until a frame is consumed.
	spaceLeft := max(int32(c.StreamOff())-secondPart, 0)
	return c.Buffer() + uint32(secondPart), uint32(min(spaceLeft, bytesLeft)), uint32(fileOffset)
}

// AddStreamData does not require frame-aligned amounts.
func (e *HardwareEngine) AddStreamData(bytesToAdd uint32) error {
	c := e.ctx
	if c.State() == ATRAC_STATUS_HALFWAY_BUFFER {
		newFileOffset := c.StreamDataByte() + c.DataOff() + bytesToAdd
		if newFileOffset == c.DataEnd() {
			c.SetState(ATRAC_STATUS_ALL_DATA_LOADED)
		} else if newFileOffset > c.DataEnd() {
			return SCE_ERROR_ATRAC_ADD_DATA_IS_TOO_BIG
		}
	}
	c.SetStreamDataByte(c.StreamDataByte() + bytesToAdd)
	return nil
}

func (e *HardwareEngine) AddStreamDataSas(bufPtr, bytesToAdd uint32) error {
	atracAssert(false, "AddStreamDataSas is not available on the hardware engine")
	return nil
}

func (e *HardwareEngine) SetForSas() error {
	atracAssert(false, "sceSas binding is not available on the hardware engine")
	return nil
}

func (e *HardwareEngine) DecodeForSas(outAddr uint32) (DecodeResult, error) {
	atracAssert(false, "sceSas decoding is not available on the hardware engine")
	return DecodeResult{}, nil
}

func (e *HardwareEngine) CurrentSample() int {
	return int(int32(e.ctx.DecodePos()) - e.track.FirstSampleOffsetFull())
}

func (e *HardwareEngine) GetNextSamples() int {
	c := e.ctx
	if c.DecodePos() >= c.EndSample() {
		return 0
	}
	_, toWrite, _ := frameSamples(int32(c.DecodePos()), int32(c.EndSample()), e.track.SamplesPerFrame())
	return int(toWrite)
}

func (e *HardwareEngine) DecodeData(outAddr uint32) (DecodeResult, error) {
	c := e.ctx
	var res DecodeResult

	switch c.State() {
	case ATRAC_STATUS_NO_DATA:
		return res, SCE_ERROR_ATRAC_NO_DATA
	case ATRAC_STATUS_LOW_LEVEL:
		return res, SCE_ERROR_ATRAC_IS_LOW_LEVEL
	}

	if c.DecodePos() >= c.EndSample() {
		logDebug("decode reached the end, nothing to decode", zap.Int("id", e.atracID))
		res.Finish = true
		return res, SCE_ERROR_ATRAC_ALL_DATA_DECODED
	}

	frameStart, samplesToWrite, advance := frameSamples(int32(c.DecodePos()), int32(c.EndSample()), e.track.SamplesPerFrame())

	bpf := e.track.BytesPerFrame
	if c.State().IsStreaming() {
		// Some games poll for this instead of using the remaining frame count.
		if c.StreamDataByte() < bpf {
			logDebug("stream ran out of data", zap.Int("id", e.atracID))
			return res, SCE_ERROR_ATRAC_BUFFER_IS_EMPTY
		}
	} else if c.State() == ATRAC_STATUS_HALFWAY_BUFFER {
		if c.CurOff()+bpf > c.StreamDataByte()+c.DataOff() {
			logDebug("halfway buffer ran out of data", zap.Int("id", e.atracID))
			return res, SCE_ERROR_ATRAC_BUFFER_IS_EMPTY
		}
	}

	// Resident buffers are direct mapped, so curOff is also the buffer offset.
	inAddr := c.Buffer() + c.CurOff()
	if c.State().IsStreaming() {
		inAddr = c.Buffer() + c.StreamOff()
	}
	c.SetInBuf(inAddr)

	frame := e.mem.ReadBytes(inAddr, bpf)
	if _, err := e.decoder.Decode(frame, e.scratch); err != nil {
		logError("atrac frame decode failed", zap.Int("id", e.atracID), zap.Uint32("inAddr", inAddr), zap.Error(err))
		c.SetCodecErr(ATRAC_CODEC_ERR_CORRUPT)
		return res, SCE_ERROR_ATRAC_API_FAIL
	}

	// The leading samples are not skipped in the copy when trimming a
	// misaligned frame, only the count shrinks.
	copyPCM(e.mem, outAddr, e.scratch, int(samplesToWrite), e.outputChannels)

	if c.State().IsStreaming() {
		c.SetStreamDataByte(c.StreamDataByte() - c.SampleSize())
		c.SetStreamOff(c.StreamOff() + c.SampleSize())
	}
	c.SetCurOff(c.CurOff() + c.SampleSize())
	c.SetDecodePos(uint32(frameStart + advance))

	if c.DecodePos() >= c.EndSample() {
		res.Finish = true
	}
	// Ring wrap. initContext already dealt with the split packet of the first lap.
	if c.State().IsStreaming() && c.StreamOff()+c.SampleSize() > c.BufferByte() {
		logDebug("stream buffer wrap point", zap.Int("id", e.atracID))
		c.SetStreamOff(0)
	}

	res.Samples = int(samplesToWrite)
	res.Remains = e.RemainingFrames()
	c.SetCodecErr(0)
	return res, nil
}

// GetResetBufferInfo is sceAtracGetBufferInfoForResetting.
func (e *HardwareEngine) GetResetBufferInfo(sample int) (AtracResetBufferInfo, error) {
	c := e.ctx
	t := &e.track
	var info AtracResetBufferInfo

	switch c.State() {
	case ATRAC_STATUS_NO_DATA:
		return info, SCE_ERROR_ATRAC_NO_DATA
	case ATRAC_STATUS_LOW_LEVEL:
		return info, SCE_ERROR_ATRAC_IS_LOW_LEVEL
	case ATRAC_STATUS_ALL_DATA_LOADED:
		info.First.WritePosPtr = c.Buffer()
	case ATRAC_STATUS_HALFWAY_BUFFER:
		info.First.WritePosPtr, info.First.WritableBytes, info.First.FilePos = e.GetStreamDataInfo()
	default:
		s := int32(sample)
		spf := t.SamplesPerFrame()
		// Appears to count one frame before the target.
		sampleFileOffset := t.FileOffsetBySample(s - t.FirstSampleOffset - spf)
		bufSizeAligned := uint32(roundDownToMultiple(int32(c.BufferByte()), int32(t.BytesPerFrame)))
		// Slack threshold reuses FirstOffsetExtra; the reason is unknown.
		needsMoreFrames := t.FirstOffsetExtra()

		info.First.WritePosPtr = c.Buffer()
		info.First.WritableBytes = min(t.FileSize-sampleFileOffset, bufSizeAligned)
		if (s+t.FirstSampleOffset)%spf >= spf-needsMoreFrames {
			info.First.MinWriteBytes = t.BytesPerFrame * 3
		} else {
			info.First.MinWriteBytes = t.BytesPerFrame * 2
		}
		if uint32(s) < uint32(t.FirstSampleOffset) && sampleFileOffset != t.DataByteOffset {
			sampleFileOffset -= t.BytesPerFrame
		}
		info.First.FilePos = sampleFileOffset
	}

	// The loop sits at a fixed place, so a reset never needs the second buffer.
	info.Second.WritePosPtr = c.Buffer()
	return info, nil
}

func (e *HardwareEngine) ResetPlayPosition(sample int, bytesWrittenFirst, bytesWrittenSecond uint32) error {
	bufferInfo, err := e.GetResetBufferInfo(sample)
	if err != nil {
		return err
	}
	if bytesWrittenFirst < bufferInfo.First.MinWriteBytes || bytesWrittenFirst > bufferInfo.First.WritableBytes {
		return SCE_ERROR_ATRAC_BAD_FIRST_RESET_SIZE
	}
	if bytesWrittenSecond < bufferInfo.Second.MinWriteBytes || bytesWrittenSecond > bufferInfo.Second.WritableBytes {
		return SCE_ERROR_ATRAC_BAD_SECOND_RESET_SIZE
	}

	c := e.ctx
	switch c.State() {
	case ATRAC_STATUS_ALL_DATA_LOADED:
		// Keeps streamDataByte covering the whole buffer.
		e.initContext(0, c.Buffer(), c.BufferByte(), c.BufferByte(), int32(sample))
	case ATRAC_STATUS_HALFWAY_BUFFER:
		readSize := c.DataOff() + c.StreamDataByte() + bytesWrittenFirst
		e.initContext(0, c.Buffer(), readSize, c.BufferByte(), int32(sample))
		if readSize == c.DataEnd() {
			c.SetState(ATRAC_STATUS_ALL_DATA_LOADED)
		}
	default:
		if bufferInfo.First.FilePos > e.track.FileSize {
			logError("reset to invalid file position", zap.Uint32("filePos", bufferInfo.First.FilePos))
			return SCE_ERROR_ATRAC_API_FAIL
		}
		e.initContext((bufferInfo.First.WritePosPtr-c.Buffer())+c.DataOff(), c.Buffer(), bytesWrittenFirst, c.BufferByte(), int32(sample))
	}
	return nil
}

func (e *HardwareEngine) SetLoopNum(loopNum int) error {
	if e.ctx.LoopEnd() == 0 {
		return SCE_ERROR_ATRAC_NO_LOOP_INFORMATION
	}
	e.ctx.SetLoopNum(int32(loopNum))
	return nil
}

func (e *HardwareEngine) LoopNum() int { return int(e.ctx.LoopNum()) }

// LoopStatus stays 1 for as long as the track has a loop.
func (e *HardwareEngine) LoopStatus() int {
	if e.ctx.LoopEnd() > 0 {
		return 1
	}
	return 0
}

func (e *HardwareEngine) GetSecondBufferInfo() (uint32, uint32, error) {
	return secondBufferInfo(&e.track, e.ctx.State())
}

// SetSecondBuffer only records the buffer. Trailer data is still read from
// the primary ring.
func (e *HardwareEngine) SetSecondBuffer(addr, size uint32) error {
	e.ctx.SetSecondBuffer(addr)
	e.ctx.SetSecondBufferByte(size)
	return nil
}

func (e *HardwareEngine) SecondBufferSize() uint32 { return e.ctx.SecondBufferByte() }

func (e *HardwareEngine) InternalCodecError() uint32 { return e.ctx.CodecErr() }

func (e *HardwareEngine) InitLowLevel(paramsAddr uint32, codecType uint32) error {
	e.track.AnalyzeReset()
	e.track.CodecType = codecType
	channels, outputChannels, bytesPerFrame := lowLevelParams(e.mem, paramsAddr)
	e.track.Channels = channels
	e.outputChannels = int(outputChannels)
	e.track.BytesPerFrame = bytesPerFrame
	e.track.UpdateBitrate()
	e.track.JointStereo = 0
	e.track.DataByteOffset = 0

	e.ctx.SetDecodePos(0)
	e.ctx.SetState(ATRAC_STATUS_LOW_LEVEL)
	if err := e.createDecoder(); err != nil {
		logError("low-level decoder setup failed", zap.Error(err))
		return SCE_ERROR_ATRAC_PARAM_FAIL
	}
	return nil
}

func (e *HardwareEngine) DecodeLowLevel(srcAddr, outAddr uint32) (int, int, error) {
	if e.ctx.State() != ATRAC_STATUS_LOW_LEVEL || e.decoder == nil {
		return 0, 0, SCE_ERROR_ATRAC_BAD_ATRACID
	}
	frame := e.mem.ReadBytes(srcAddr, e.track.BytesPerFrame)
	samples, err := e.decoder.Decode(frame, e.scratch)
	if err != nil {
		e.ctx.SetCodecErr(ATRAC_CODEC_ERR_CORRUPT)
		return 0, 0, SCE_ERROR_ATRAC_API_FAIL
	}
	copyPCM(e.mem, outAddr, e.scratch, samples, e.outputChannels)
	e.ctx.SetCodecErr(0)
	return int(e.track.BytesPerFrame), samples, nil
}

// SaveState is refused: the record in guest memory is the state, and the
// decoder history cannot be rebuilt from it.
func (e *HardwareEngine) SaveState() ([]byte, error) {
	return nil, ErrSaveStateUnsupported
}

func (e *HardwareEngine) LoadState(data []byte) error {
	return ErrSaveStateUnsupported
}
