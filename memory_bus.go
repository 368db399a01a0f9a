// memory_bus.go - Guest memory bus for the Atrac engine

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
memory_bus.go - Guest Memory Bus

This module implements the guest memory the ATRAC engines operate on. Games hand
the firmware raw guest addresses for their stream buffers, output PCM buffers and
the per-slot context record, so every engine access goes through this bus rather
than through Go slices held across calls.

Core Features:

    User RAM mapped at PSP_USER_MEMORY_BASE as one contiguous block.
    Little-endian 8, 16 and 32-bit accessors plus block copy, fill and range reads.
    Full memory reset capability to clear the entire memory state.
    Thread-safe access with a read/write mutex so the audio callback can pull staged PCM.

Technical Details:

    Out-of-range accesses read as zero and drop writes. Valid() lets callers check a
    range before trusting it, the same way the firmware validates pointers.
    Memcpy handles overlapping ranges like memmove.
*/

package main

import (
	"encoding/binary"
	"sync"
)

const (
	PSP_USER_MEMORY_BASE = 0x08800000
	DEFAULT_MEMORY_SIZE  = 24 * 1024 * 1024
)

type MemoryBus interface {
	/*
		MemoryBus defines the guest memory operations used by the ATRAC
		engines. Addresses are absolute guest addresses.
	*/

	Read8(addr uint32) uint8
	Read16(addr uint32) uint16
	Read32(addr uint32) uint32
	Write8(addr uint32, value uint8)
	Write16(addr uint32, value uint16)
	Write32(addr uint32, value uint32)
	ReadBytes(addr uint32, size uint32) []byte
	WriteBytes(addr uint32, data []byte)
	Memcpy(dst, src, size uint32)
	Memset(addr uint32, value uint8, size uint32)
	Valid(addr, size uint32) bool
	Reset()
}

type SystemBus struct {
	/*
		SystemBus implements MemoryBus over a flat block of user RAM.
		Thread safety is enforced via a read/write mutex.
	*/

	base   uint32
	memory []byte
	mutex  sync.RWMutex
}

func NewSystemBus() *SystemBus {
	return NewSystemBusSized(PSP_USER_MEMORY_BASE, DEFAULT_MEMORY_SIZE)
}

func NewSystemBusSized(base, size uint32) *SystemBus {
	/*
		NewSystemBusSized allocates size bytes of guest memory mapped at base.
		Tests use small buses to keep allocations cheap.
	*/

	return &SystemBus{
		base:   base,
		memory: make([]byte, size),
	}
}

func (bus *SystemBus) Base() uint32 {
	return bus.base
}

func (bus *SystemBus) Size() uint32 {
	return uint32(len(bus.memory))
}

// span converts a guest range to slice bounds, ok is false when any part
// of the range falls outside RAM.
func (bus *SystemBus) span(addr, size uint32) (int, int, bool) {
	if addr < bus.base {
		return 0, 0, false
	}
	start := uint64(addr - bus.base)
	end := start + uint64(size)
	if end > uint64(len(bus.memory)) {
		return 0, 0, false
	}
	return int(start), int(end), true
}

func (bus *SystemBus) Valid(addr, size uint32) bool {
	_, _, ok := bus.span(addr, size)
	return ok
}

func (bus *SystemBus) Read8(addr uint32) uint8 {
	bus.mutex.RLock()
	defer bus.mutex.RUnlock()

	start, _, ok := bus.span(addr, 1)
	if !ok {
		return 0
	}
	return bus.memory[start]
}

func (bus *SystemBus) Read16(addr uint32) uint16 {
	bus.mutex.RLock()
	defer bus.mutex.RUnlock()

	start, end, ok := bus.span(addr, 2)
	if !ok {
		return 0
	}
	return binary.LittleEndian.Uint16(bus.memory[start:end])
}

func (bus *SystemBus) Read32(addr uint32) uint32 {
	/*
		Read32 performs a thread-safe little-endian 32-bit read.

		Parameters:

		    addr: The source guest address.

		Returns:

		    The value read, or zero when the address is unmapped.
	*/

	bus.mutex.RLock()
	defer bus.mutex.RUnlock()

	start, end, ok := bus.span(addr, 4)
	if !ok {
		return 0
	}
	return binary.LittleEndian.Uint32(bus.memory[start:end])
}

func (bus *SystemBus) Write8(addr uint32, value uint8) {
	bus.mutex.Lock()
	defer bus.mutex.Unlock()

	if start, _, ok := bus.span(addr, 1); ok {
		bus.memory[start] = value
	}
}

func (bus *SystemBus) Write16(addr uint32, value uint16) {
	bus.mutex.Lock()
	defer bus.mutex.Unlock()

	if start, end, ok := bus.span(addr, 2); ok {
		binary.LittleEndian.PutUint16(bus.memory[start:end], value)
	}
}

func (bus *SystemBus) Write32(addr uint32, value uint32) {
	/*
		Write32 performs a thread-safe little-endian 32-bit write. Writes to
		unmapped addresses are dropped.

		Parameters:

			addr: The target guest address.

			value: The 32-bit value to write.
	*/

	bus.mutex.Lock()
	defer bus.mutex.Unlock()

	if start, end, ok := bus.span(addr, 4); ok {
		binary.LittleEndian.PutUint32(bus.memory[start:end], value)
	}
}

// ReadBytes returns a copy of the range, nil if it is not fully mapped.
func (bus *SystemBus) ReadBytes(addr uint32, size uint32) []byte {
	bus.mutex.RLock()
	defer bus.mutex.RUnlock()

	start, end, ok := bus.span(addr, size)
	if !ok {
		return nil
	}
	out := make([]byte, size)
	copy(out, bus.memory[start:end])
	return out
}

func (bus *SystemBus) WriteBytes(addr uint32, data []byte) {
	bus.mutex.Lock()
	defer bus.mutex.Unlock()

	if start, end, ok := bus.span(addr, uint32(len(data))); ok {
		copy(bus.memory[start:end], data)
	}
}

func (bus *SystemBus) Memcpy(dst, src, size uint32) {
	bus.mutex.Lock()
	defer bus.mutex.Unlock()

	ds, de, ok1 := bus.span(dst, size)
	ss, se, ok2 := bus.span(src, size)
	if !ok1 || !ok2 {
		return
	}
	copy(bus.memory[ds:de], bus.memory[ss:se])
}

func (bus *SystemBus) Memset(addr uint32, value uint8, size uint32) {
	bus.mutex.Lock()
	defer bus.mutex.Unlock()

	start, end, ok := bus.span(addr, size)
	if !ok {
		return
	}
	fill := bus.memory[start:end]
	for i := range fill {
		fill[i] = value
	}
}

func (bus *SystemBus) Reset() {
	/*
		Reset clears the entire guest memory.

		This operation is performed in a thread-safe manner by
		acquiring a write lock, and iterating through the memory
		block to set every byte to zero.
	*/

	bus.mutex.Lock()
	defer bus.mutex.Unlock()

	for i := range bus.memory {
		bus.memory[i] = 0
	}
}
