// atrac_analyze.go - RIFF/WAVE and OMA (EA3) header analysis for ATRAC tracks

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

package main

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"

	"github.com/go-audio/riff"
)

var (
	riffFmtID  = [4]byte{'f', 'm', 't', ' '}
	riffFactID = [4]byte{'f', 'a', 'c', 't'}
	riffSmplID = [4]byte{'s', 'm', 'p', 'l'}
	riffDataID = [4]byte{'d', 'a', 't', 'a'}
	riffWaveID = [4]byte{'W', 'A', 'V', 'E'}
)

const (
	riffHeaderBytes   = 12
	riffChunkHdrBytes = 8
	fmtChunkMinAT3    = 32
	fmtChunkMinAT3P   = 52
	smplChunkMin      = 32
	smplLoopStride    = 24
	smplLoopBase      = 36
)

// AnalyzeAtracTrack parses a RIFF/WAVE .at3 header held in guest memory.
// size is how much of the file the game has loaded at addr; it must cover
// the header but not necessarily the audio data.
func AnalyzeAtracTrack(mem MemoryBus, addr, size uint32, track *Track) error {
	if size < ATRAC_WAVE_HEADER_MIN {
		return SCE_ERROR_ATRAC_SIZE_TOO_SMALL
	}
	raw := mem.ReadBytes(addr, size)
	if raw == nil {
		return SCE_ERROR_ATRAC_PARAM_FAIL
	}

	track.AnalyzeReset()
	track.CodecType = 0
	track.FirstSampleOffset = 0

	p := riff.New(bytes.NewReader(raw))
	if err := p.ParseHeaders(); err != nil {
		return SCE_ERROR_ATRAC_UNKNOWN_FORMAT
	}
	if p.Format != riffWaveID {
		return SCE_ERROR_ATRAC_UNKNOWN_FORMAT
	}
	track.FileSize = p.Size + riffChunkHdrBytes

	var (
		sampleOffsetAdjust int32
		foundData          bool
		dataChunkSize      uint32
	)

	offset := uint32(riffHeaderBytes)
	for size >= offset+riffChunkHdrBytes {
		ch, err := p.NextChunk()
		if err != nil {
			break
		}
		offset += riffChunkHdrBytes
		chunkSize := uint32(ch.Size)
		// Only the data chunk may run past what has been loaded.
		if ch.ID != riffDataID && chunkSize > size-offset {
			break
		}

		end := size
		if chunkSize <= size-offset {
			end = offset + chunkSize
		}
		body := raw[offset:end]
		switch ch.ID {
		case riffFmtID:
			if track.CodecType != 0 {
				return SCE_ERROR_ATRAC_UNKNOWN_FORMAT
			}
			if err := analyzeFmtChunk(body, track); err != nil {
				return err
			}
		case riffFactID:
			if len(body) >= 4 {
				track.EndSample = int32(binary.LittleEndian.Uint32(body[0:]))
			}
			if len(body) >= 8 {
				track.FirstSampleOffset = int32(binary.LittleEndian.Uint32(body[4:]))
			}
			if len(body) >= 12 {
				largerOffset := int32(binary.LittleEndian.Uint32(body[8:]))
				sampleOffsetAdjust = track.FirstSampleOffset - largerOffset
			}
		case riffSmplID:
			if err := analyzeSmplChunk(body, track); err != nil {
				return err
			}
		case riffDataID:
			foundData = true
			track.DataByteOffset = offset
			dataChunkSize = chunkSize
			if track.FileSize < offset+chunkSize {
				track.FileSize = offset + chunkSize
			}
		}

		if ch.ID == riffDataID {
			break
		}
		if _, err := io.CopyN(io.Discard, ch, int64(chunkSize)); err != nil && !errors.Is(err, io.EOF) {
			break
		}
		offset += chunkSize
	}

	if track.CodecType == 0 {
		return SCE_ERROR_ATRAC_UNKNOWN_FORMAT
	}
	if !foundData {
		return SCE_ERROR_ATRAC_SIZE_TOO_SMALL
	}

	if track.HasLoop() {
		track.LoopStartSample = track.LoopInfo[0].StartSample + track.FirstOffsetExtra() + sampleOffsetAdjust
		track.LoopEndSample = track.LoopInfo[0].EndSample + track.FirstOffsetExtra() + sampleOffsetAdjust
	}

	if track.EndSample <= 0 {
		// No fact chunk, estimate from the data size.
		track.EndSample = int32(dataChunkSize/track.BytesPerFrame)*track.SamplesPerFrame() - track.FirstSampleOffsetFull()
	}
	track.EndSample -= 1

	if track.LoopEndSample != -1 && track.LoopEndSample > track.EndSample+track.FirstSampleOffsetFull() {
		return SCE_ERROR_ATRAC_BAD_CODEC_PARAMS
	}
	return nil
}

func analyzeFmtChunk(body []byte, track *Track) error {
	if len(body) < fmtChunkMinAT3 {
		return SCE_ERROR_ATRAC_UNKNOWN_FORMAT
	}
	switch binary.LittleEndian.Uint16(body[0:]) {
	case AT3_MAGIC:
		track.CodecType = PSP_MODE_AT_3
	case AT3_PLUS_MAGIC:
		if len(body) < fmtChunkMinAT3P {
			return SCE_ERROR_ATRAC_UNKNOWN_FORMAT
		}
		track.CodecType = PSP_MODE_AT_3_PLUS
	default:
		return SCE_ERROR_ATRAC_UNKNOWN_FORMAT
	}

	track.Channels = uint32(binary.LittleEndian.Uint16(body[2:]))
	if track.Channels != 1 && track.Channels != 2 {
		return SCE_ERROR_ATRAC_UNKNOWN_FORMAT
	}
	if binary.LittleEndian.Uint32(body[4:]) != ATRAC_SAMPLE_RATE {
		return SCE_ERROR_ATRAC_UNKNOWN_FORMAT
	}
	track.Bitrate = binary.LittleEndian.Uint32(body[8:]) * 8
	track.BytesPerFrame = uint32(binary.LittleEndian.Uint16(body[12:]))
	if track.BytesPerFrame == 0 {
		return SCE_ERROR_ATRAC_UNKNOWN_FORMAT
	}
	if track.CodecType == PSP_MODE_AT_3 {
		track.JointStereo = int32(binary.LittleEndian.Uint32(body[24:]))
	}
	return nil
}

func analyzeSmplChunk(body []byte, track *Track) error {
	if len(body) < smplChunkMin {
		return SCE_ERROR_ATRAC_BAD_CODEC_PARAMS
	}
	numLoops := int32(binary.LittleEndian.Uint32(body[28:]))
	if numLoops < 0 {
		return SCE_ERROR_ATRAC_BAD_CODEC_PARAMS
	}
	if int64(len(body)) < smplLoopBase+int64(numLoops)*smplLoopStride {
		return SCE_ERROR_ATRAC_BAD_CODEC_PARAMS
	}

	track.LoopInfo = track.LoopInfo[:0]
	for i := int32(0); i < numLoops; i++ {
		e := body[smplLoopBase+i*smplLoopStride:]
		loop := LoopInfo{
			CuePointID:  int32(binary.LittleEndian.Uint32(e[0:])),
			Type:        int32(binary.LittleEndian.Uint32(e[4:])),
			StartSample: int32(binary.LittleEndian.Uint32(e[8:])),
			EndSample:   int32(binary.LittleEndian.Uint32(e[12:])),
			Fraction:    int32(binary.LittleEndian.Uint32(e[16:])),
			PlayCount:   int32(binary.LittleEndian.Uint32(e[20:])),
		}
		if loop.StartSample >= loop.EndSample {
			return SCE_ERROR_ATRAC_BAD_CODEC_PARAMS
		}
		track.LoopInfo = append(track.LoopInfo, loop)
	}
	return nil
}

// AA3 (OMA) container layout.
const (
	aa3TagHeaderBytes = 10
	aa3HeaderBytes    = 96
	aa3MinAfterTag    = 36
	aa3CodecIDOffset  = 32
)

var aa3SampleRates = [8]uint32{32000, 44100, 48000, 88200, 96000, 0, 0, 0}

// AnalyzeAA3Track parses an OMA/AA3 header (an ID3-style "ea3" tag followed
// by an "EA3" header) held in guest memory.
func AnalyzeAA3Track(mem MemoryBus, addr, size, fileSize uint32, track *Track) error {
	if size < aa3TagHeaderBytes {
		return SCE_ERROR_AA3_SIZE_TOO_SMALL
	}
	raw := mem.ReadBytes(addr, size)
	if raw == nil {
		return SCE_ERROR_ATRAC_PARAM_FAIL
	}

	track.AnalyzeReset()
	track.FileSize = fileSize

	if raw[0] != 'e' || raw[1] != 'a' || raw[2] != '3' {
		return SCE_ERROR_AA3_INVALID_DATA
	}
	// Synchsafe integer, 7 bits per byte.
	tagSize := uint32(raw[9]&0x7F) | uint32(raw[8]&0x7F)<<7 | uint32(raw[7]&0x7F)<<14 | uint32(raw[6]&0x7F)<<21
	if size < tagSize+aa3MinAfterTag {
		return SCE_ERROR_AA3_SIZE_TOO_SMALL
	}
	if uint64(aa3TagHeaderBytes)+uint64(tagSize)+aa3MinAfterTag > uint64(len(raw)) {
		return SCE_ERROR_AA3_SIZE_TOO_SMALL
	}

	hdr := raw[aa3TagHeaderBytes+tagSize:]
	if hdr[0] != 'E' || hdr[1] != 'A' || hdr[2] != '3' {
		return SCE_ERROR_AA3_INVALID_DATA
	}

	// Byte 35 is read twice and byte 33 never, matching firmware results.
	codecParams := uint32(hdr[35]) | uint32(hdr[34])<<8 | uint32(hdr[35])<<16
	sampleRate := aa3SampleRates[(codecParams>>13)&7]

	switch hdr[aa3CodecIDOffset] {
	case 0:
		track.CodecType = PSP_MODE_AT_3
		track.BytesPerFrame = (codecParams & 0x03FF) * 8
		track.Bitrate = sampleRate * track.BytesPerFrame * 8 / 1024
		track.Channels = 2
		track.JointStereo = int32((codecParams >> 17) & 1)
	case 1:
		track.CodecType = PSP_MODE_AT_3_PLUS
		track.BytesPerFrame = (codecParams&0x03FF)*8 + 8
		track.Bitrate = sampleRate * track.BytesPerFrame * 8 / 2048
		track.Channels = (codecParams >> 10) & 7
	case 3, 4, 5:
		// MP3, LPCM and WMA payloads are not decodable by this firmware.
		return SCE_ERROR_AA3_INVALID_DATA
	default:
		return SCE_ERROR_AA3_INVALID_DATA
	}
	if track.BytesPerFrame == 0 {
		return SCE_ERROR_AA3_INVALID_DATA
	}

	track.DataByteOffset = aa3TagHeaderBytes + tagSize + aa3HeaderBytes
	track.FirstSampleOffset = 0
	if track.EndSample < 0 && track.FileSize > track.DataByteOffset {
		track.EndSample = int32((track.FileSize-track.DataByteOffset)/track.BytesPerFrame) * track.SamplesPerFrame()
	}
	track.EndSample -= 1
	return nil
}
