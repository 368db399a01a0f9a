// atrac_errors.go - sceAtrac result codes

package main

import (
	"errors"
	"fmt"
)

// ErrorCode is a firmware result code. It satisfies error so engine calls can
// return it directly and callers can match it with errors.Is.
type ErrorCode uint32

const (
	SCE_ERROR_ATRAC_PARAM_FAIL               ErrorCode = 0x80630001
	SCE_ERROR_ATRAC_API_FAIL                 ErrorCode = 0x80630002
	SCE_ERROR_ATRAC_NO_ATRACID               ErrorCode = 0x80630003
	SCE_ERROR_ATRAC_BAD_CODECTYPE            ErrorCode = 0x80630004
	SCE_ERROR_ATRAC_BAD_ATRACID              ErrorCode = 0x80630005
	SCE_ERROR_ATRAC_UNKNOWN_FORMAT           ErrorCode = 0x80630006
	SCE_ERROR_ATRAC_WRONG_CODECTYPE          ErrorCode = 0x80630007
	SCE_ERROR_ATRAC_BAD_CODEC_PARAMS         ErrorCode = 0x80630008
	SCE_ERROR_ATRAC_ALL_DATA_LOADED          ErrorCode = 0x80630009
	SCE_ERROR_ATRAC_NO_DATA                  ErrorCode = 0x80630010
	SCE_ERROR_ATRAC_SIZE_TOO_SMALL           ErrorCode = 0x80630011
	SCE_ERROR_ATRAC_INCORRECT_READ_SIZE      ErrorCode = 0x80630013
	SCE_ERROR_ATRAC_BAD_SAMPLE               ErrorCode = 0x80630015
	SCE_ERROR_ATRAC_BAD_FIRST_RESET_SIZE     ErrorCode = 0x80630016
	SCE_ERROR_ATRAC_BAD_SECOND_RESET_SIZE    ErrorCode = 0x80630017
	SCE_ERROR_ATRAC_ADD_DATA_IS_TOO_BIG      ErrorCode = 0x80630018
	SCE_ERROR_ATRAC_NOT_MONO                 ErrorCode = 0x80630019
	SCE_ERROR_ATRAC_NO_LOOP_INFORMATION      ErrorCode = 0x80630021
	SCE_ERROR_ATRAC_SECOND_BUFFER_NOT_NEEDED ErrorCode = 0x80630022
	SCE_ERROR_ATRAC_BUFFER_IS_EMPTY          ErrorCode = 0x80630023
	SCE_ERROR_ATRAC_ALL_DATA_DECODED         ErrorCode = 0x80630024
	SCE_ERROR_ATRAC_IS_LOW_LEVEL             ErrorCode = 0x80630031
	SCE_ERROR_ATRAC_IS_FOR_SCESAS            ErrorCode = 0x80630040

	SCE_ERROR_AA3_INVALID_DATA   ErrorCode = 0x80631003
	SCE_ERROR_AA3_SIZE_TOO_SMALL ErrorCode = 0x80631004
)

var errorCodeNames = map[ErrorCode]string{
	SCE_ERROR_ATRAC_PARAM_FAIL:               "PARAM_FAIL",
	SCE_ERROR_ATRAC_API_FAIL:                 "API_FAIL",
	SCE_ERROR_ATRAC_NO_ATRACID:               "NO_ATRACID",
	SCE_ERROR_ATRAC_BAD_CODECTYPE:            "BAD_CODECTYPE",
	SCE_ERROR_ATRAC_BAD_ATRACID:              "BAD_ATRACID",
	SCE_ERROR_ATRAC_UNKNOWN_FORMAT:           "UNKNOWN_FORMAT",
	SCE_ERROR_ATRAC_WRONG_CODECTYPE:          "WRONG_CODECTYPE",
	SCE_ERROR_ATRAC_BAD_CODEC_PARAMS:         "BAD_CODEC_PARAMS",
	SCE_ERROR_ATRAC_ALL_DATA_LOADED:          "ALL_DATA_LOADED",
	SCE_ERROR_ATRAC_NO_DATA:                  "NO_DATA",
	SCE_ERROR_ATRAC_SIZE_TOO_SMALL:           "SIZE_TOO_SMALL",
	SCE_ERROR_ATRAC_INCORRECT_READ_SIZE:      "INCORRECT_READ_SIZE",
	SCE_ERROR_ATRAC_BAD_SAMPLE:               "BAD_SAMPLE",
	SCE_ERROR_ATRAC_BAD_FIRST_RESET_SIZE:     "BAD_FIRST_RESET_SIZE",
	SCE_ERROR_ATRAC_BAD_SECOND_RESET_SIZE:    "BAD_SECOND_RESET_SIZE",
	SCE_ERROR_ATRAC_ADD_DATA_IS_TOO_BIG:      "ADD_DATA_IS_TOO_BIG",
	SCE_ERROR_ATRAC_NOT_MONO:                 "NOT_MONO",
	SCE_ERROR_ATRAC_NO_LOOP_INFORMATION:      "NO_LOOP_INFORMATION",
	SCE_ERROR_ATRAC_SECOND_BUFFER_NOT_NEEDED: "SECOND_BUFFER_NOT_NEEDED",
	SCE_ERROR_ATRAC_BUFFER_IS_EMPTY:          "BUFFER_IS_EMPTY",
	SCE_ERROR_ATRAC_ALL_DATA_DECODED:         "ALL_DATA_DECODED",
	SCE_ERROR_ATRAC_IS_LOW_LEVEL:             "IS_LOW_LEVEL",
	SCE_ERROR_ATRAC_IS_FOR_SCESAS:            "IS_FOR_SCESAS",
	SCE_ERROR_AA3_INVALID_DATA:               "AA3_INVALID_DATA",
	SCE_ERROR_AA3_SIZE_TOO_SMALL:             "AA3_SIZE_TOO_SMALL",
}

func (e ErrorCode) Error() string {
	if name, ok := errorCodeNames[e]; ok {
		return fmt.Sprintf("atrac: %s (%08x)", name, uint32(e))
	}
	return fmt.Sprintf("atrac: error %08x", uint32(e))
}

// Int is the code as the signed value a syscall returns.
func (e ErrorCode) Int() int {
	return int(int32(uint32(e)))
}

// ErrSaveStateUnsupported is returned by engines that cannot be serialised.
var ErrSaveStateUnsupported = errors.New("atrac: save state not supported by this engine")

// ResultCode maps an engine error to the value a syscall hands back to the
// game. nil maps to 0; anything that is not an ErrorCode is an API failure.
func ResultCode(err error) uint32 {
	if err == nil {
		return 0
	}
	var code ErrorCode
	if errors.As(err, &code) {
		return uint32(code)
	}
	return uint32(SCE_ERROR_ATRAC_API_FAIL)
}

// atracAssert panics on caller contract violations. These are bugs in the
// syscall layer, not conditions a game can trigger.
func atracAssert(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf("atrac: "+format, args...))
	}
}
