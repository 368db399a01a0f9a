// atrac_constants.go - ATRAC3/ATRAC3+ codec, status and layout constants

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

// Codec types as reported by the PSP firmware.
const (
	PSP_MODE_AT_3_PLUS = 0x00001000
	PSP_MODE_AT_3      = 0x00001001
)

// WAVE format tags carried in the fmt chunk.
const (
	AT3_MAGIC      = 0x0270
	AT3_PLUS_MAGIC = 0xFFFE
)

const (
	ATRAC3_FRAME_SAMPLES      = 1024
	ATRAC3PLUS_FRAME_SAMPLES  = 2048
	ATRAC3_FIRST_OFFSET_EXTRA = 69
	ATRAC3PLUS_FIRST_EXTRA    = 368
	ATRAC_MAX_SAMPLES         = ATRAC3PLUS_FRAME_SAMPLES
	ATRAC_SAMPLE_RATE         = 44100
	PSP_NUM_ATRAC_IDS         = 6
	ATRAC_WAVE_HEADER_MIN     = 72
	ATRAC_WRAP_ZERO_BYTES     = 128
)

// AtracStatus is the buffering regime reported to the game.
type AtracStatus uint8

const (
	ATRAC_STATUS_NO_DATA                    AtracStatus = 1
	ATRAC_STATUS_ALL_DATA_LOADED            AtracStatus = 2
	ATRAC_STATUS_HALFWAY_BUFFER             AtracStatus = 3
	ATRAC_STATUS_STREAMED_WITHOUT_LOOP      AtracStatus = 4
	ATRAC_STATUS_STREAMED_LOOP_FROM_END     AtracStatus = 5
	ATRAC_STATUS_STREAMED_LOOP_WITH_TRAILER AtracStatus = 6
	ATRAC_STATUS_LOW_LEVEL                  AtracStatus = 8
	ATRAC_STATUS_FOR_SCESAS                 AtracStatus = 16

	ATRAC_STATUS_STREAMED_MASK AtracStatus = 4
)

// IsStreaming reports whether the status is one of the three ring-buffer modes.
func (s AtracStatus) IsStreaming() bool {
	return s&ATRAC_STATUS_STREAMED_MASK != 0
}

func (s AtracStatus) String() string {
	switch s {
	case ATRAC_STATUS_NO_DATA:
		return "NO_DATA"
	case ATRAC_STATUS_ALL_DATA_LOADED:
		return "ALL_DATA_LOADED"
	case ATRAC_STATUS_HALFWAY_BUFFER:
		return "HALFWAY_BUFFER"
	case ATRAC_STATUS_STREAMED_WITHOUT_LOOP:
		return "STREAMED_WITHOUT_LOOP"
	case ATRAC_STATUS_STREAMED_LOOP_FROM_END:
		return "STREAMED_LOOP_FROM_END"
	case ATRAC_STATUS_STREAMED_LOOP_WITH_TRAILER:
		return "STREAMED_LOOP_WITH_TRAILER"
	case ATRAC_STATUS_LOW_LEVEL:
		return "LOW_LEVEL"
	case ATRAC_STATUS_FOR_SCESAS:
		return "FOR_SCESAS"
	}
	return "UNKNOWN"
}

// Sentinels returned by RemainingFrames instead of a frame count.
const (
	PSP_ATRAC_ALLDATA_IS_ON_MEMORY = -1
	PSP_ATRAC_NONLOOP_STREAM_DATA  = -2
	PSP_ATRAC_LOOP_STREAM_DATA     = -3
)

// Codec-level error latched when a frame fails to decode.
const ATRAC_CODEC_ERR_CORRUPT = 0x20b
