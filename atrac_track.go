// atrac_track.go - Parsed ATRAC track description

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
atrac_track.go - Track model

A Track is everything the header analysis learns about an ATRAC file:
codec, geometry, the first-sample skip and the loop list. Both engines
read it, only Analyze/AnalyzeAA3/InitLowLevel write it.

Sample positions are "track samples" unless stated otherwise. The decoder
always emits FirstSampleOffsetFull() samples of priming garbage before
track sample 0, so positions inside the engines are offset by that amount.
*/

package main

// LoopInfo is one entry of the smpl chunk loop list.
type LoopInfo struct {
	CuePointID  int32
	Type        int32
	StartSample int32
	EndSample   int32
	Fraction    int32
	PlayCount   int32
}

type Track struct {
	CodecType         uint32
	FileSize          uint32
	Bitrate           uint32
	JointStereo       int32
	Channels          uint32
	BytesPerFrame     uint32
	DataByteOffset    uint32
	FirstSampleOffset int32
	EndSample         int32 // inclusive
	LoopInfo          []LoopInfo
	LoopStartSample   int32
	LoopEndSample     int32
}

func newTrack() Track {
	t := Track{}
	t.AnalyzeReset()
	return t
}

func (t *Track) SamplesPerFrame() int32 {
	if t.CodecType == PSP_MODE_AT_3_PLUS {
		return ATRAC3PLUS_FRAME_SAMPLES
	}
	return ATRAC3_FRAME_SAMPLES
}

// FirstOffsetExtra is the decoder's fixed priming delay in samples.
func (t *Track) FirstOffsetExtra() int32 {
	if t.CodecType == PSP_MODE_AT_3_PLUS {
		return ATRAC3PLUS_FIRST_EXTRA
	}
	return ATRAC3_FIRST_OFFSET_EXTRA
}

func (t *Track) FirstSampleOffsetFull() int32 {
	return t.FirstOffsetExtra() + t.FirstSampleOffset
}

// DecodePosBySample mixes byte and sample units and ignores
// FirstOffsetExtra. Callers depend on the exact value, keep it as is.
func (t *Track) DecodePosBySample(sample int32) uint32 {
	return uint32(t.FirstSampleOffset + sample/t.SamplesPerFrame()*int32(t.BytesPerFrame))
}

// FileOffsetBySample returns the file offset of the frame one past the
// frame holding sample. The extra frame and the missing FirstOffsetExtra
// look wrong but match what games observe.
func (t *Track) FileOffsetBySample(sample int32) uint32 {
	offset := sample + t.FirstSampleOffset
	frameOffset := offset / t.SamplesPerFrame()
	return t.DataByteOffset + t.BytesPerFrame + uint32(frameOffset)*t.BytesPerFrame
}

func (t *Track) UpdateBitrate() {
	t.Bitrate = (t.BytesPerFrame * 352800) / 1000
	if t.CodecType == PSP_MODE_AT_3_PLUS {
		t.Bitrate = ((t.Bitrate >> 11) + 8) & 0xFFFFFFF0
	} else {
		t.Bitrate = (t.Bitrate + 511) >> 10
	}
}

func (t *Track) AnalyzeReset() {
	t.EndSample = -1
	t.LoopInfo = t.LoopInfo[:0]
	t.LoopStartSample = -1
	t.LoopEndSample = -1
	t.Channels = 2
}

func (t *Track) HasLoop() bool {
	return len(t.LoopInfo) > 0
}
