// atrac_state.go - Legacy engine save state

package main

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

const (
	atracStateMagic   = "ATRS"
	atracStateVersion = 1
)

// legacyStateV1 is the fixed part of a version 1 save state. Field order is
// the on-disk order; do not reorder.
type legacyStateV1 struct {
	AtracID        int32
	Status         uint8
	ForSas         uint8
	Pad0           uint16
	OutputChannels int32

	CodecType         uint32
	FileSize          uint32
	Bitrate           uint32
	JointStereo       int32
	Channels          uint32
	BytesPerFrame     uint32
	DataByteOffset    uint32
	FirstSampleOffset int32
	TrackEndSample    int32
	LoopStartSample   int32
	LoopEndSample     int32

	DecodePos    int32
	EndSample    int32
	LoopStart    int32
	LoopEnd      int32
	LoopNum      int32
	QueuedLoops  int32
	PendingPrime int32

	FrameSize uint32
	DataOff   uint32
	DataEnd   uint32
	CurOff    uint32
	FileOff   uint32

	Buffer           uint32
	BufferByte       uint32
	StreamOff        uint32
	StreamDataByte   uint32
	SecondBuffer     uint32
	SecondBufferByte uint32

	CodecErr uint32
}

// SaveState serialises the bookkeeping. Decoder history is not saved; the
// decoder is recreated on load and settles within a frame.
func (l *LegacyEngine) SaveState() ([]byte, error) {
	var body bytes.Buffer

	st := legacyStateV1{
		AtracID:        int32(l.atracID),
		Status:         uint8(l.status),
		OutputChannels: int32(l.outputChannels),

		CodecType:         l.track.CodecType,
		FileSize:          l.track.FileSize,
		Bitrate:           l.track.Bitrate,
		JointStereo:       l.track.JointStereo,
		Channels:          l.track.Channels,
		BytesPerFrame:     l.track.BytesPerFrame,
		DataByteOffset:    l.track.DataByteOffset,
		FirstSampleOffset: l.track.FirstSampleOffset,
		TrackEndSample:    l.track.EndSample,
		LoopStartSample:   l.track.LoopStartSample,
		LoopEndSample:     l.track.LoopEndSample,

		DecodePos:    l.decodePos,
		EndSample:    l.endSample,
		LoopStart:    l.loopStart,
		LoopEnd:      l.loopEnd,
		LoopNum:      l.loopNum,
		QueuedLoops:  l.queuedLoops,
		PendingPrime: l.pendingPrime,

		FrameSize: l.frameSize,
		DataOff:   l.dataOff,
		DataEnd:   l.dataEnd,
		CurOff:    l.curOff,
		FileOff:   l.fileOff,

		Buffer:           l.buffer,
		BufferByte:       l.bufferByte,
		StreamOff:        l.streamOff,
		StreamDataByte:   l.streamDataByte,
		SecondBuffer:     l.secondBuffer,
		SecondBufferByte: l.secondBufferByte,

		CodecErr: l.codecErr,
	}
	if l.forSas {
		st.ForSas = 1
	}
	if err := binary.Write(&body, binary.LittleEndian, &st); err != nil {
		return nil, fmt.Errorf("writing state: %w", err)
	}

	// Loop list
	binary.Write(&body, binary.LittleEndian, uint32(len(l.track.LoopInfo)))
	for _, li := range l.track.LoopInfo {
		binary.Write(&body, binary.LittleEndian, &li)
	}

	var buf bytes.Buffer
	buf.WriteString(atracStateMagic)
	binary.Write(&buf, binary.LittleEndian, uint32(atracStateVersion))

	// No name or mtime in the gzip header, so equal states give equal bytes.
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(body.Bytes()); err != nil {
		return nil, fmt.Errorf("compressing state: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("closing gzip: %w", err)
	}
	return buf.Bytes(), nil
}

func (l *LegacyEngine) LoadState(data []byte) error {
	r := bytes.NewReader(data)

	// Magic
	magic := make([]byte, 4)
	if _, err := io.ReadFull(r, magic); err != nil {
		return fmt.Errorf("reading magic: %w", err)
	}
	if string(magic) != atracStateMagic {
		return fmt.Errorf("invalid atrac state magic: %q", string(magic))
	}

	// Version
	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return fmt.Errorf("reading version: %w", err)
	}
	if version != atracStateVersion {
		return fmt.Errorf("unsupported atrac state version: %d", version)
	}

	gz, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("opening gzip: %w", err)
	}
	defer gz.Close()
	body, err := io.ReadAll(gz)
	if err != nil {
		return fmt.Errorf("decompressing state: %w", err)
	}
	br := bytes.NewReader(body)

	var st legacyStateV1
	if err := binary.Read(br, binary.LittleEndian, &st); err != nil {
		return fmt.Errorf("reading state: %w", err)
	}
	var loopCount uint32
	if err := binary.Read(br, binary.LittleEndian, &loopCount); err != nil {
		return fmt.Errorf("reading loop count: %w", err)
	}
	// Each entry is six words, anything larger cannot be in the body.
	if uint64(loopCount)*24 > uint64(br.Len()) {
		return fmt.Errorf("loop count %d exceeds state size", loopCount)
	}
	loops := make([]LoopInfo, loopCount)
	for i := range loops {
		if err := binary.Read(br, binary.LittleEndian, &loops[i]); err != nil {
			return fmt.Errorf("reading loop %d: %w", i, err)
		}
	}

	l.atracID = int(st.AtracID)
	l.status = AtracStatus(st.Status)
	l.forSas = st.ForSas != 0
	l.outputChannels = int(st.OutputChannels)

	l.track = Track{
		CodecType:         st.CodecType,
		FileSize:          st.FileSize,
		Bitrate:           st.Bitrate,
		JointStereo:       st.JointStereo,
		Channels:          st.Channels,
		BytesPerFrame:     st.BytesPerFrame,
		DataByteOffset:    st.DataByteOffset,
		FirstSampleOffset: st.FirstSampleOffset,
		EndSample:         st.TrackEndSample,
		LoopInfo:          loops,
		LoopStartSample:   st.LoopStartSample,
		LoopEndSample:     st.LoopEndSample,
	}

	l.decodePos, l.endSample = st.DecodePos, st.EndSample
	l.loopStart, l.loopEnd = st.LoopStart, st.LoopEnd
	l.loopNum, l.queuedLoops, l.pendingPrime = st.LoopNum, st.QueuedLoops, st.PendingPrime
	l.frameSize, l.dataOff, l.dataEnd = st.FrameSize, st.DataOff, st.DataEnd
	l.curOff, l.fileOff = st.CurOff, st.FileOff
	l.buffer, l.bufferByte = st.Buffer, st.BufferByte
	l.streamOff, l.streamDataByte = st.StreamOff, st.StreamDataByte
	l.secondBuffer, l.secondBufferByte = st.SecondBuffer, st.SecondBufferByte
	l.codecErr = st.CodecErr

	l.decoder = nil
	if l.track.CodecType == PSP_MODE_AT_3 || l.track.CodecType == PSP_MODE_AT_3_PLUS {
		if err := l.createDecoder(); err != nil {
			return fmt.Errorf("recreating decoder: %w", err)
		}
	}
	return nil
}
