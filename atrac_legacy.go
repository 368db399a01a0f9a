// atrac_legacy.go - Legacy ATRAC context engine with explicit bookkeeping

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
atrac_legacy.go - Legacy engine

LegacyEngine tracks playback in ordinary Go fields and only touches the
guest SceAtracContext record when WriteContext is called. It follows the
same buffering rules as HardwareEngine and adds what that engine leaves
out: loop playback, second buffer validation, sceSas streaming and save
states.

Positions:

    decodePos, endSample, loopStart and loopEnd are decoder sample
    positions, which include the FirstSampleOffsetFull() priming samples.
    curOff is the file offset of the next frame to decode.
    fileOff is the file offset of the next byte the game should deliver.
    In a linear stream fileOff == curOff + streamDataByte; a loop restart
    breaks that, which is why it is kept separately.

Loop playback while streaming: once the frame holding loopEnd has been
delivered and loops remain, delivery restarts one frame before the frame
holding loopStart (queuedLoops counts such restarts). When the decoder
crosses loopEnd it jumps to loopStart and decodes the extra frame as
priming (pendingPrime) before producing output again.
*/

package main

import "go.uber.org/zap"

type LegacyEngine struct {
	mem     MemoryBus
	ctxAddr uint32
	factory DecoderFactory
	decoder FrameDecoder
	track   Track

	atracID        int
	codecType      uint32
	status         AtracStatus
	forSas         bool
	outputChannels int

	decodePos    int32
	endSample    int32
	loopStart    int32
	loopEnd      int32
	loopNum      int32
	queuedLoops  int32
	pendingPrime int32

	frameSize uint32
	dataOff   uint32
	dataEnd   uint32
	curOff    uint32
	fileOff   uint32

	buffer           uint32
	bufferByte       uint32
	streamOff        uint32
	streamDataByte   uint32
	secondBuffer     uint32
	secondBufferByte uint32

	codecErr uint32
	scratch  []int16
}

func NewLegacyEngine(mem MemoryBus, ctxAddr uint32, factory DecoderFactory) *LegacyEngine {
	return &LegacyEngine{
		mem:            mem,
		ctxAddr:        ctxAddr,
		factory:        factory,
		track:          newTrack(),
		status:         ATRAC_STATUS_NO_DATA,
		outputChannels: 2,
		loopStart:      -1,
		loopEnd:        -1,
	}
}

func (l *LegacyEngine) Kind() EngineKind           { return EngineLegacy }
func (l *LegacyEngine) AtracID() int               { return l.atracID }
func (l *LegacyEngine) SetAtracID(id int)          { l.atracID = id }
func (l *LegacyEngine) ContextAddr() uint32        { return l.ctxAddr }
func (l *LegacyEngine) Track() *Track              { return &l.track }
func (l *LegacyEngine) OutputChannels() int        { return l.outputChannels }
func (l *LegacyEngine) InternalCodecError() uint32 { return l.codecErr }
func (l *LegacyEngine) LoopNum() int               { return int(l.loopNum) }
func (l *LegacyEngine) SecondBufferSize() uint32   { return l.secondBufferByte }
func (l *LegacyEngine) CodecType() uint32          { return l.codecType }
func (l *LegacyEngine) SetCodecType(codec uint32)  { l.codecType = codec }

func (l *LegacyEngine) Status() AtracStatus {
	if l.forSas {
		return ATRAC_STATUS_FOR_SCESAS
	}
	return l.status
}

func (l *LegacyEngine) resetState() {
	l.track = newTrack()
	l.status = ATRAC_STATUS_NO_DATA
	l.forSas = false
	l.decodePos, l.endSample = 0, 0
	l.loopStart, l.loopEnd = -1, -1
	l.loopNum, l.queuedLoops, l.pendingPrime = 0, 0, 0
	l.curOff, l.fileOff, l.dataOff, l.dataEnd = 0, 0, 0, 0
	l.streamOff, l.streamDataByte = 0, 0
	l.secondBuffer, l.secondBufferByte = 0, 0
	l.codecErr = 0
}

func (l *LegacyEngine) Analyze(addr, size uint32) error {
	l.resetState()
	if err := AnalyzeAtracTrack(l.mem, addr, size, &l.track); err != nil {
		return err
	}
	logDebug("atrac track analyzed",
		zap.Int("id", l.atracID),
		zap.Uint32("codec", l.track.CodecType),
		zap.Uint32("fileSize", l.track.FileSize),
		zap.Int32("endSample", l.track.EndSample),
		zap.Int("loops", len(l.track.LoopInfo)))
	return nil
}

func (l *LegacyEngine) AnalyzeAA3(addr, size, fileSize uint32) error {
	l.resetState()
	return AnalyzeAA3Track(l.mem, addr, size, fileSize, &l.track)
}

func (l *LegacyEngine) createDecoder() error {
	if l.decoder != nil {
		l.decoder.FlushBuffers()
	}
	dec, err := l.factory(l.track.CodecType, int(l.track.Channels), int(l.track.BytesPerFrame), l.outputChannels)
	if err != nil {
		return err
	}
	l.decoder = dec
	l.scratch = make([]int16, int(l.track.SamplesPerFrame())*l.outputChannels)
	return nil
}

func (l *LegacyEngine) SetData(buffer, readSize, bufferSize uint32, outputChannels int) error {
	if l.track.CodecType != PSP_MODE_AT_3 && l.track.CodecType != PSP_MODE_AT_3_PLUS {
		return SCE_ERROR_ATRAC_UNKNOWN_FORMAT
	}
	if l.codecType != 0 && l.track.CodecType != l.codecType {
		logWarn("data codec differs from the atrac id",
			zap.Int("id", l.atracID), zap.Uint32("data", l.track.CodecType), zap.Uint32("slot", l.codecType))
		return SCE_ERROR_ATRAC_WRONG_CODECTYPE
	}
	if readSize > bufferSize {
		return SCE_ERROR_ATRAC_INCORRECT_READ_SIZE
	}
	l.outputChannels = outputChannels
	if err := l.createDecoder(); err != nil {
		logError("decoder setup failed", zap.Error(err))
		return SCE_ERROR_ATRAC_API_FAIL
	}
	if readSize > l.track.FileSize {
		readSize = l.track.FileSize
	}
	l.forSas = false
	l.secondBuffer, l.secondBufferByte = 0, 0
	l.status = statusForData(&l.track, readSize, bufferSize)
	logInfo("atrac streaming mode setup", zap.Int("id", l.atracID), zap.Stringer("status", l.status))

	l.initContext(0, buffer, readSize, bufferSize, 0)
	return nil
}

func (l *LegacyEngine) initContext(offset uint32, buffer, readSize, bufferSize uint32, sampleOffset int32) {
	t := &l.track
	l.buffer = buffer
	l.bufferByte = bufferSize
	l.frameSize = t.BytesPerFrame
	l.endSample = t.EndSample + t.FirstSampleOffsetFull()
	if t.LoopStartSample != -1 {
		l.loopStart = t.LoopStartSample
		l.loopEnd = t.LoopEndSample
	}
	l.dataOff = t.DataByteOffset
	l.dataEnd = t.FileSize
	l.curOff = t.DataByteOffset + uint32((sampleOffset+t.FirstOffsetExtra())/t.SamplesPerFrame())*l.frameSize
	l.streamOff = t.DataByteOffset - offset
	if l.status.IsStreaming() {
		l.streamDataByte = readSize - l.streamOff
	} else {
		l.streamDataByte = readSize - l.dataOff
	}
	l.decodePos = t.FirstSampleOffsetFull() + sampleOffset
	l.queuedLoops = 0
	l.pendingPrime = 0

	l.prime(t.FirstSampleOffsetFull())
	l.fileOff = l.curOff + l.streamDataByte

	if !l.status.IsStreaming() {
		return
	}
	// Data past the loop end is taken back so a later SetLoopNum can still
	// send delivery round to the loop start. The bytes stay in the ring and
	// are simply asked for again.
	if l.hasLoopStatus() && t.HasLoop() {
		boundary := l.loopBoundary()
		if l.curOff < boundary && l.fileOff > boundary {
			l.streamDataByte -= l.fileOff - boundary
			l.fileOff = boundary
		}
	}

	distanceToEnd := roundDownToMultiple(int32(l.bufferByte-l.streamOff), int32(l.frameSize))
	if int32(l.streamDataByte) < distanceToEnd {
		l.mem.Memset(l.buffer, 0, min(ATRAC_WRAP_ZERO_BYTES, l.streamOff))
		return
	}
	// A split packet hangs over the end. Its head moves to the start unless
	// that would land on frames not decoded yet, then it is dropped from the
	// ring and delivered again after the wrap.
	tail := l.streamDataByte - uint32(distanceToEnd)
	if tail > l.streamOff {
		l.streamDataByte -= tail
		l.fileOff -= tail
		return
	}
	l.mem.Memcpy(l.buffer, l.buffer+l.streamOff+uint32(distanceToEnd), tail)
}

// prime decodes and discards the whole frames inside the initial skip.
func (l *LegacyEngine) prime(discardedSamples int32) {
	spf := l.track.SamplesPerFrame()
	for ; discardedSamples >= spf; discardedSamples -= spf {
		frame := l.mem.ReadBytes(l.buffer+l.streamOff, l.frameSize)
		if _, err := l.decoder.Decode(frame, l.scratch); err != nil {
			logWarn("error decoding priming frame", zap.Uint32("streamOff", l.streamOff), zap.Error(err))
		}
		l.curOff += l.frameSize
		if l.status.IsStreaming() {
			l.streamOff += l.frameSize
			l.streamDataByte -= l.frameSize
		}
	}
}

func (l *LegacyEngine) hasLoopStatus() bool {
	return l.status == ATRAC_STATUS_STREAMED_LOOP_FROM_END || l.status == ATRAC_STATUS_STREAMED_LOOP_WITH_TRAILER
}

// loopBoundary is the file offset just past the frame holding loopEnd.
func (l *LegacyEngine) loopBoundary() uint32 {
	return min(l.dataEnd, l.track.FileOffsetBySample(l.loopEnd-l.track.FirstSampleOffset))
}

// loopRestartOffset is one frame before the frame holding loopStart, so the
// decoder has history when output resumes.
func (l *LegacyEngine) loopRestartOffset() (uint32, int32) {
	startFrame := l.loopStart / l.track.SamplesPerFrame()
	restartFrame := max(startFrame-1, 0)
	return l.dataOff + uint32(restartFrame)*l.frameSize, startFrame - restartFrame
}

// restartAllowed reports whether the next delivery past the loop should
// wrap back to the loop start instead of continuing into the file.
func (l *LegacyEngine) restartAllowed() bool {
	if l.forSas || !l.hasLoopStatus() || !l.track.HasLoop() || l.loopNum == 0 {
		return false
	}
	if l.loopNum > 0 && l.queuedLoops >= l.loopNum {
		return false
	}
	return l.fileOff <= l.loopBoundary()
}

// loopArmed reports whether the decoder turns around at loopEnd.
func (l *LegacyEngine) loopArmed() bool {
	if l.forSas || l.loopNum == 0 || !l.track.HasLoop() || l.loopEnd <= 0 {
		return false
	}
	if l.status.IsStreaming() {
		return l.queuedLoops > 0
	}
	return true
}

// playEnd is the last sample the next decode may reach.
func (l *LegacyEngine) playEnd() int32 {
	if l.loopArmed() && l.decodePos <= l.loopEnd {
		return l.loopEnd
	}
	return l.endSample
}

func (l *LegacyEngine) RemainingFrames() int {
	switch l.status {
	case ATRAC_STATUS_NO_DATA, ATRAC_STATUS_ALL_DATA_LOADED:
		return PSP_ATRAC_ALLDATA_IS_ON_MEMORY
	case ATRAC_STATUS_HALFWAY_BUFFER:
		delivered := l.dataOff + l.streamDataByte
		if delivered >= l.dataEnd {
			return PSP_ATRAC_ALLDATA_IS_ON_MEMORY
		}
		remaining := int(delivered) - int(l.curOff)
		if remaining < 0 {
			return 0
		}
		return remaining / int(l.frameSize)
	case ATRAC_STATUS_STREAMED_WITHOUT_LOOP, ATRAC_STATUS_STREAMED_LOOP_FROM_END, ATRAC_STATUS_STREAMED_LOOP_WITH_TRAILER:
	default:
		return SCE_ERROR_ATRAC_BAD_ATRACID.Int()
	}

	if l.fileOff >= l.dataEnd && l.status == ATRAC_STATUS_STREAMED_WITHOUT_LOOP {
		return PSP_ATRAC_NONLOOP_STREAM_DATA
	}
	// Compares against the track end without the skip offset, as the
	// firmware does.
	if l.decodePos >= l.track.EndSample {
		if l.status == ATRAC_STATUS_STREAMED_WITHOUT_LOOP {
			return PSP_ATRAC_NONLOOP_STREAM_DATA
		}
		loopEndAdjusted := l.track.LoopEndSample - l.track.FirstOffsetExtra() - l.track.FirstSampleOffset
		if l.status == ATRAC_STATUS_STREAMED_LOOP_WITH_TRAILER && l.decodePos > loopEndAdjusted {
			return PSP_ATRAC_NONLOOP_STREAM_DATA
		}
		if l.loopNum == 0 {
			return PSP_ATRAC_LOOP_STREAM_DATA
		}
	}
	return int(l.streamDataByte / l.frameSize)
}

func (l *LegacyEngine) GetStreamDataInfo() (writePtr, writableBytes, readOffset uint32) {
	switch l.status {
	case ATRAC_STATUS_NO_DATA, ATRAC_STATUS_ALL_DATA_LOADED, ATRAC_STATUS_LOW_LEVEL:
		return l.buffer, 0, 0
	case ATRAC_STATUS_HALFWAY_BUFFER:
		delivered := l.dataOff + l.streamDataByte
		if delivered >= l.dataEnd {
			return l.buffer, 0, 0
		}
		return l.buffer + delivered, l.dataEnd - delivered, delivered
	}

	limit := l.dataEnd
	if l.restartAllowed() {
		limit = l.loopBoundary()
	}
	if l.fileOff >= limit {
		return l.buffer, 0, 0
	}
	bytesLeft := int32(limit - l.fileOff)

	distanceToEnd := roundDownToMultiple(int32(l.bufferByte-l.streamOff), int32(l.frameSize))
	sdb := int32(l.streamDataByte)
	if sdb < distanceToEnd {
		n := min(distanceToEnd-sdb, bytesLeft)
		if n == 0 {
			return l.buffer + l.streamOff + l.streamDataByte, 0, 0
		}
		return l.buffer + l.streamOff + l.streamDataByte, uint32(n), l.fileOff
	}
	secondPart := sdb - distanceToEnd
	spaceLeft := max(int32(l.streamOff)-secondPart, 0)
	return l.buffer + uint32(secondPart), uint32(min(spaceLeft, bytesLeft)), l.fileOff
}

func (l *LegacyEngine) AddStreamData(bytesToAdd uint32) error {
	if l.forSas {
		return SCE_ERROR_ATRAC_IS_FOR_SCESAS
	}
	return l.addStreamData(bytesToAdd)
}

func (l *LegacyEngine) addStreamData(bytesToAdd uint32) error {
	switch l.status {
	case ATRAC_STATUS_NO_DATA:
		return SCE_ERROR_ATRAC_NO_DATA
	case ATRAC_STATUS_ALL_DATA_LOADED:
		return SCE_ERROR_ATRAC_ALL_DATA_LOADED
	case ATRAC_STATUS_LOW_LEVEL:
		return SCE_ERROR_ATRAC_IS_LOW_LEVEL
	case ATRAC_STATUS_HALFWAY_BUFFER:
		delivered := l.dataOff + l.streamDataByte + bytesToAdd
		if delivered > l.dataEnd {
			return SCE_ERROR_ATRAC_ADD_DATA_IS_TOO_BIG
		}
		l.streamDataByte += bytesToAdd
		l.fileOff = delivered
		if delivered == l.dataEnd {
			l.status = ATRAC_STATUS_ALL_DATA_LOADED
		}
		return nil
	}

	_, writable, _ := l.GetStreamDataInfo()
	if bytesToAdd > writable {
		logWarn("add stream data larger than requested",
			zap.Int("id", l.atracID), zap.Uint32("bytes", bytesToAdd), zap.Uint32("writable", writable))
		return SCE_ERROR_ATRAC_ADD_DATA_IS_TOO_BIG
	}
	l.streamDataByte += bytesToAdd
	l.fileOff += bytesToAdd
	l.wrapDelivery()
	return nil
}

// wrapDelivery sends the game back to the loop restart offset once the
// loop region has been fully delivered and another pass is due.
func (l *LegacyEngine) wrapDelivery() {
	if !l.status.IsStreaming() || !l.restartAllowed() || l.fileOff != l.loopBoundary() {
		return
	}
	l.fileOff, _ = l.loopRestartOffset()
	l.queuedLoops++
	logDebug("stream delivery wrapped to loop start",
		zap.Int("id", l.atracID), zap.Uint32("fileOff", l.fileOff), zap.Int32("queued", l.queuedLoops))
}

// AddStreamDataSas copies data the sceSas voice fetched at bufPtr straight
// into the ring, combining GetStreamDataInfo and AddStreamData.
func (l *LegacyEngine) AddStreamDataSas(bufPtr, bytesToAdd uint32) error {
	writePtr, writable, _ := l.GetStreamDataInfo()
	n := min(bytesToAdd, writable)
	if n == 0 {
		return nil
	}
	l.mem.Memcpy(writePtr, bufPtr, n)
	return l.addStreamData(n)
}

// SetForSas binds the context to a sceSas voice. Loops are ignored from
// then on; the voice does its own looping. Voices are mono.
func (l *LegacyEngine) SetForSas() error {
	switch l.status {
	case ATRAC_STATUS_NO_DATA:
		return SCE_ERROR_ATRAC_NO_DATA
	case ATRAC_STATUS_LOW_LEVEL:
		return SCE_ERROR_ATRAC_IS_LOW_LEVEL
	}
	if l.track.Channels != 1 {
		return SCE_ERROR_ATRAC_NOT_MONO
	}
	l.forSas = true
	return nil
}

func (l *LegacyEngine) CurrentSample() int {
	return int(l.decodePos - l.track.FirstSampleOffsetFull())
}

func (l *LegacyEngine) GetNextSamples() int {
	if l.decodePos >= l.endSample {
		return 0
	}
	_, toWrite, _ := frameSamples(l.decodePos, l.playEnd(), l.track.SamplesPerFrame())
	return int(toWrite)
}

// nextRingOffset steps a ring offset past one frame, wrapping when the
// following frame would not fit.
func (l *LegacyEngine) nextRingOffset(off uint32) uint32 {
	off += l.frameSize
	if off+l.frameSize > l.bufferByte {
		return 0
	}
	return off
}

func (l *LegacyEngine) DecodeData(outAddr uint32) (DecodeResult, error) {
	if l.forSas {
		return DecodeResult{}, SCE_ERROR_ATRAC_IS_FOR_SCESAS
	}
	return l.decode(outAddr)
}

func (l *LegacyEngine) DecodeForSas(outAddr uint32) (DecodeResult, error) {
	atracAssert(l.forSas, "sas decode on atrac %d, which is not bound to a voice", l.atracID)
	return l.decode(outAddr)
}

func (l *LegacyEngine) decode(outAddr uint32) (DecodeResult, error) {
	var res DecodeResult

	switch l.status {
	case ATRAC_STATUS_NO_DATA:
		return res, SCE_ERROR_ATRAC_NO_DATA
	case ATRAC_STATUS_LOW_LEVEL:
		return res, SCE_ERROR_ATRAC_IS_LOW_LEVEL
	}
	atracAssert(l.decoder != nil, "decode without a decoder on atrac %d", l.atracID)

	if l.decodePos >= l.endSample {
		res.Finish = true
		return res, SCE_ERROR_ATRAC_ALL_DATA_DECODED
	}

	frameStart, samplesToWrite, advance := frameSamples(l.decodePos, l.playEnd(), l.track.SamplesPerFrame())

	streaming := l.status.IsStreaming()
	frames := uint32(1)
	if streaming {
		frames += uint32(l.pendingPrime)
		if l.streamDataByte < l.frameSize*frames {
			return res, SCE_ERROR_ATRAC_BUFFER_IS_EMPTY
		}
	} else if l.status == ATRAC_STATUS_HALFWAY_BUFFER {
		if l.curOff+l.frameSize > l.dataOff+l.streamDataByte {
			return res, SCE_ERROR_ATRAC_BUFFER_IS_EMPTY
		}
	}

	ringOff := l.streamOff
	if streaming {
		// Frames queued by a loop restart warm the decoder, nothing is output.
		for i := int32(0); i < l.pendingPrime; i++ {
			frame := l.mem.ReadBytes(l.buffer+ringOff, l.frameSize)
			if _, err := l.decoder.Decode(frame, l.scratch); err != nil {
				logWarn("error decoding loop priming frame", zap.Uint32("streamOff", ringOff), zap.Error(err))
			}
			ringOff = l.nextRingOffset(ringOff)
		}
	}

	inAddr := l.buffer + l.curOff
	if streaming {
		inAddr = l.buffer + ringOff
	}
	frame := l.mem.ReadBytes(inAddr, l.frameSize)
	if _, err := l.decoder.Decode(frame, l.scratch); err != nil {
		logError("atrac frame decode failed", zap.Int("id", l.atracID), zap.Uint32("inAddr", inAddr), zap.Error(err))
		l.codecErr = ATRAC_CODEC_ERR_CORRUPT
		return res, SCE_ERROR_ATRAC_API_FAIL
	}

	copyPCM(l.mem, outAddr, l.scratch, int(samplesToWrite), l.outputChannels)

	if streaming {
		l.streamDataByte -= l.frameSize * frames
		l.streamOff = l.nextRingOffset(ringOff)
		l.pendingPrime = 0
	}
	l.curOff += l.frameSize * frames
	l.decodePos = frameStart + advance

	if l.loopArmed() && l.decodePos > l.loopEnd {
		l.jumpToLoopStart()
	}
	if l.decodePos >= l.endSample {
		res.Finish = true
	}

	res.Samples = int(samplesToWrite)
	res.Remains = l.RemainingFrames()
	l.codecErr = 0
	return res, nil
}

func (l *LegacyEngine) jumpToLoopStart() {
	l.decodePos = l.loopStart
	if l.loopNum > 0 {
		l.loopNum--
	}
	spf := l.track.SamplesPerFrame()
	if l.status.IsStreaming() {
		l.queuedLoops--
		l.curOff, l.pendingPrime = l.loopRestartOffset()
	} else {
		startFrame := l.loopStart / spf
		l.curOff = l.dataOff + uint32(startFrame)*l.frameSize
		if startFrame > 0 {
			frame := l.mem.ReadBytes(l.buffer+l.curOff-l.frameSize, l.frameSize)
			if _, err := l.decoder.Decode(frame, l.scratch); err != nil {
				logWarn("error decoding loop priming frame", zap.Error(err))
			}
		}
	}
	logDebug("atrac loop", zap.Int("id", l.atracID), zap.Int32("loopsLeft", l.loopNum))
}

func (l *LegacyEngine) GetResetBufferInfo(sample int) (AtracResetBufferInfo, error) {
	t := &l.track
	var info AtracResetBufferInfo

	switch l.status {
	case ATRAC_STATUS_NO_DATA:
		return info, SCE_ERROR_ATRAC_NO_DATA
	case ATRAC_STATUS_LOW_LEVEL:
		return info, SCE_ERROR_ATRAC_IS_LOW_LEVEL
	case ATRAC_STATUS_ALL_DATA_LOADED:
		info.First.WritePosPtr = l.buffer
	case ATRAC_STATUS_HALFWAY_BUFFER:
		delivered := l.dataOff + l.streamDataByte
		info.First.WritePosPtr = l.buffer + delivered
		info.First.WritableBytes = t.FileSize - delivered
		need := int64(t.FileOffsetBySample(int32(sample))) - int64(delivered)
		info.First.MinWriteBytes = uint32(max(need, 0))
		info.First.FilePos = delivered
	default:
		s := int32(sample)
		spf := t.SamplesPerFrame()
		// One frame earlier than the target, questionable but observable.
		sampleFileOffset := t.FileOffsetBySample(s - t.FirstSampleOffset - spf)
		bufSizeAligned := uint32(roundDownToMultiple(int32(l.bufferByte), int32(t.BytesPerFrame)))
		needsMoreFrames := t.FirstOffsetExtra()

		info.First.WritePosPtr = l.buffer
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
	info.Second.WritePosPtr = l.buffer
	return info, nil
}

func (l *LegacyEngine) ResetPlayPosition(sample int, bytesWrittenFirst, bytesWrittenSecond uint32) error {
	switch l.status {
	case ATRAC_STATUS_NO_DATA:
		return SCE_ERROR_ATRAC_NO_DATA
	case ATRAC_STATUS_LOW_LEVEL:
		return SCE_ERROR_ATRAC_IS_LOW_LEVEL
	}
	if sample < 0 || int32(sample) > l.track.EndSample {
		return SCE_ERROR_ATRAC_BAD_SAMPLE
	}
	bufferInfo, err := l.GetResetBufferInfo(sample)
	if err != nil {
		return err
	}
	if bytesWrittenFirst < bufferInfo.First.MinWriteBytes || bytesWrittenFirst > bufferInfo.First.WritableBytes {
		return SCE_ERROR_ATRAC_BAD_FIRST_RESET_SIZE
	}
	if bytesWrittenSecond < bufferInfo.Second.MinWriteBytes || bytesWrittenSecond > bufferInfo.Second.WritableBytes {
		return SCE_ERROR_ATRAC_BAD_SECOND_RESET_SIZE
	}

	if l.status.IsStreaming() && bufferInfo.First.FilePos > l.track.FileSize {
		return SCE_ERROR_ATRAC_API_FAIL
	}

	if l.decoder != nil {
		l.decoder.FlushBuffers()
	}
	switch l.status {
	case ATRAC_STATUS_ALL_DATA_LOADED:
		l.initContext(0, l.buffer, l.bufferByte, l.bufferByte, int32(sample))
	case ATRAC_STATUS_HALFWAY_BUFFER:
		readSize := l.dataOff + l.streamDataByte + bytesWrittenFirst
		l.initContext(0, l.buffer, readSize, l.bufferByte, int32(sample))
		if readSize >= l.dataEnd {
			l.status = ATRAC_STATUS_ALL_DATA_LOADED
		}
	default:
		l.initContext((bufferInfo.First.WritePosPtr-l.buffer)+l.dataOff, l.buffer, bytesWrittenFirst, l.bufferByte, int32(sample))
	}
	return nil
}

func (l *LegacyEngine) SetLoopNum(loopNum int) error {
	if !l.track.HasLoop() {
		return SCE_ERROR_ATRAC_NO_LOOP_INFORMATION
	}
	l.loopNum = int32(loopNum)
	l.wrapDelivery()
	return nil
}

// LoopStatus is 1 while loop passes remain.
func (l *LegacyEngine) LoopStatus() int {
	if l.track.HasLoop() && l.loopNum != 0 {
		return 1
	}
	return 0
}

func (l *LegacyEngine) GetSecondBufferInfo() (uint32, uint32, error) {
	return secondBufferInfo(&l.track, l.status)
}

func (l *LegacyEngine) SetSecondBuffer(addr, size uint32) error {
	t := &l.track
	secondFileOffset := t.FileOffsetBySample(t.LoopEndSample - t.FirstSampleOffset)
	desiredSize := t.FileSize - secondFileOffset
	// Three frames are enough to get through a loop turn.
	if size < desiredSize && size < t.BytesPerFrame*3 {
		return SCE_ERROR_ATRAC_SIZE_TOO_SMALL
	}
	if l.status != ATRAC_STATUS_STREAMED_LOOP_WITH_TRAILER {
		return SCE_ERROR_ATRAC_SECOND_BUFFER_NOT_NEEDED
	}
	l.secondBuffer = addr
	l.secondBufferByte = size
	return nil
}

func (l *LegacyEngine) InitLowLevel(paramsAddr uint32, codecType uint32) error {
	l.resetState()
	l.track.CodecType = codecType
	channels, outputChannels, bytesPerFrame := lowLevelParams(l.mem, paramsAddr)
	l.track.Channels = channels
	l.outputChannels = int(outputChannels)
	l.track.BytesPerFrame = bytesPerFrame
	l.track.UpdateBitrate()
	l.track.DataByteOffset = 0
	l.frameSize = bytesPerFrame
	l.status = ATRAC_STATUS_LOW_LEVEL
	if err := l.createDecoder(); err != nil {
		logError("low-level decoder setup failed", zap.Error(err))
		return SCE_ERROR_ATRAC_PARAM_FAIL
	}
	return nil
}

func (l *LegacyEngine) DecodeLowLevel(srcAddr, outAddr uint32) (int, int, error) {
	if l.status != ATRAC_STATUS_LOW_LEVEL || l.decoder == nil {
		return 0, 0, SCE_ERROR_ATRAC_BAD_ATRACID
	}
	frame := l.mem.ReadBytes(srcAddr, l.frameSize)
	samples, err := l.decoder.Decode(frame, l.scratch)
	if err != nil {
		l.codecErr = ATRAC_CODEC_ERR_CORRUPT
		return 0, 0, SCE_ERROR_ATRAC_API_FAIL
	}
	copyPCM(l.mem, outAddr, l.scratch, samples, l.outputChannels)
	l.codecErr = 0
	return int(l.frameSize), samples, nil
}

// WriteContext mirrors the bookkeeping into the guest record so games that
// read it directly see sensible values.
func (l *LegacyEngine) WriteContext() {
	if l.ctxAddr == 0 {
		return
	}
	c := hwContext{mem: l.mem, addr: l.ctxAddr}
	t := &l.track

	c.SetBuffer(l.buffer)
	c.SetBufferByte(l.bufferByte)
	c.SetSecondBuffer(l.secondBuffer)
	c.SetSecondBufferByte(l.secondBufferByte)
	c.SetCodec(t.CodecType)
	c.SetLoopNum(l.loopNum)
	c.SetLoopStart(uint32(max(t.LoopStartSample, 0)))
	c.SetLoopEnd(uint32(max(t.LoopEndSample, 0)))
	c.SetState(l.Status())
	if t.FirstSampleOffset != 0 {
		c.SetSamplesPerChan(t.FirstSampleOffsetFull())
	} else {
		c.SetSamplesPerChan(t.SamplesPerFrame())
	}
	c.SetSampleSize(t.BytesPerFrame)
	c.SetNumChan(uint8(t.Channels))
	c.SetDataOff(t.DataByteOffset)
	c.SetEndSample(uint32(t.EndSample + t.FirstSampleOffsetFull()))
	c.SetDataEnd(t.FileSize)
	c.SetCurOff(l.fileOff)
	// Mixed units, kept because games compare against it.
	c.SetDecodePos(t.DecodePosBySample(int32(l.CurrentSample())))
	c.SetStreamDataByte(l.streamDataByte)
	c.SetStreamOff(l.streamOff)
	c.SetCodecErr(l.codecErr)
	c.SetAtracID(uint32(l.atracID))
}
