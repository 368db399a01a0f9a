// features.go - Build information for the version command

package main

import (
	"fmt"
	"io"
	"runtime"
	"sort"
)

// Version is set at link time with -ldflags "-X main.Version=...".
var Version = "dev"

// compiledFeatures collects build-tag dependent features; backends append
// to it from init().
var compiledFeatures []string

func printFeatures(w io.Writer) {
	fmt.Fprintf(w, "Atrac Engine %s (%s, %s/%s)\n", Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(w, "  engines:         %s, %s\n", EngineLegacy, EngineHardware)
	fmt.Fprintf(w, "  codecs:          ATRAC3 (%#04x), ATRAC3+ (%#04x)\n", PSP_MODE_AT_3, PSP_MODE_AT_3_PLUS)
	fmt.Fprintf(w, "  atrac ids:       %d\n", PSP_NUM_ATRAC_IDS)
	fmt.Fprintf(w, "  context record:  v%d, %d bytes\n", ATRAC_CONTEXT_VERSION, ATRAC_CONTEXT_SIZE)
	fmt.Fprintf(w, "  save state:      %s v%d (legacy only)\n", atracStateMagic, atracStateVersion)

	sort.Strings(compiledFeatures)
	fmt.Fprintln(w, "  compiled:")
	for _, f := range compiledFeatures {
		fmt.Fprintf(w, "    %s\n", f)
	}
	if len(compiledFeatures) == 0 {
		fmt.Fprintln(w, "    (none)")
	}
}

func init() {
	compiledFeatures = append(compiledFeatures, "script:lua")
}
