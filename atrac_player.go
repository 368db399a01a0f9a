// atrac_player.go - Host side driver that plays a file through an AtracEngine

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
atrac_player.go - Harness

AtracPlayer does what a game does with sceAtrac: it loads the head of the
file into a guest buffer, grabs an atrac id, analyzes and sets the data,
then alternates between topping up the buffer and decoding frames. The PCM
each frame produces is read back out of guest memory and handed to a sink.

Guest layout used by the player, relative to the bus base:

    0x0000  context records, one per slot (ATRAC_CONTEXT_SIZE each)
    0x1000  PCM output for one frame
    0x8000  ATRAC data buffer (bufferSize, or the whole file)
*/

package main

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
)

const (
	PLAYER_CONTEXT_OFFSET = 0x0000
	PLAYER_PCM_OFFSET     = 0x1000
	PLAYER_BUFFER_OFFSET  = 0x8000
)

var aa3Magic = []byte{'e', 'a', '3'}

type PlayerOptions struct {
	Engine         EngineKind
	BufferSize     uint32 // 0 or >= file size loads everything up front
	OutputChannels int
	LoopNum        int
	Factory        DecoderFactory
	CodecType      uint32 // codec to acquire the atrac id for, 0 takes the header's
}

// PlayerStats is what a finished run reports.
type PlayerStats struct {
	Frames      int
	Samples     int
	Refills     int
	BytesFed    uint32
	FinalStatus AtracStatus
}

type AtracPlayer struct {
	mem    *SystemBus
	slots  *SlotTable
	handle SlotHandle
	engine AtracEngine
	data   []byte
	opts   PlayerOptions

	bufferAddr uint32
	pcmAddr    uint32
	pcm        []int16
	stats      PlayerStats
}

// LoadAtracFile reads path and prepares a player for it.
func LoadAtracFile(path string, opts PlayerOptions) (*AtracPlayer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading atrac file: %w", err)
	}
	return NewAtracPlayer(data, opts)
}

// NewAtracPlayer analyzes data and sets it on a fresh slot.
func NewAtracPlayer(data []byte, opts PlayerOptions) (*AtracPlayer, error) {
	if opts.OutputChannels == 0 {
		opts.OutputChannels = DEFAULT_OUTPUT_CHANNELS
	}
	fileSize := uint32(len(data))
	bufferSize := opts.BufferSize
	if bufferSize == 0 || bufferSize > fileSize {
		bufferSize = fileSize
	}

	mem := NewSystemBus()
	if uint64(PLAYER_BUFFER_OFFSET)+uint64(bufferSize) > uint64(mem.Size()) {
		return nil, fmt.Errorf("atrac buffer of %d bytes does not fit guest memory", bufferSize)
	}
	p := &AtracPlayer{
		mem:        mem,
		slots:      NewSlotTable(mem, mem.Base()+PLAYER_CONTEXT_OFFSET, opts.Factory),
		data:       data,
		opts:       opts,
		bufferAddr: mem.Base() + PLAYER_BUFFER_OFFSET,
		pcmAddr:    mem.Base() + PLAYER_PCM_OFFSET,
	}

	// The first read fills the whole buffer, like sceIoRead into it.
	readSize := bufferSize
	mem.WriteBytes(p.bufferAddr, data[:readSize])

	// A game knows the codec before asking for an id; take it from the header.
	isAA3 := bytes.HasPrefix(data, aa3Magic)
	header := newTrack()
	var err error
	if isAA3 {
		err = AnalyzeAA3Track(mem, p.bufferAddr, readSize, fileSize, &header)
	} else {
		err = AnalyzeAtracTrack(mem, p.bufferAddr, readSize, &header)
	}
	if err != nil {
		return nil, fmt.Errorf("analyzing header: %w", err)
	}
	codecType := opts.CodecType
	if codecType == 0 {
		codecType = header.CodecType
	}

	handle, err := p.slots.Acquire(opts.Engine, codecType)
	if err != nil {
		return nil, fmt.Errorf("acquiring atrac id: %w", err)
	}
	p.handle = handle
	p.engine, _ = p.slots.Get(handle)

	if isAA3 {
		err = p.engine.AnalyzeAA3(p.bufferAddr, readSize, fileSize)
	} else {
		err = p.engine.Analyze(p.bufferAddr, readSize)
	}
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("analyzing header: %w", err)
	}
	if err := p.engine.SetData(p.bufferAddr, readSize, bufferSize, opts.OutputChannels); err != nil {
		p.Close()
		return nil, fmt.Errorf("setting data: %w", err)
	}
	if opts.LoopNum != 0 && p.engine.Track().HasLoop() {
		if err := p.engine.SetLoopNum(opts.LoopNum); err != nil {
			p.Close()
			return nil, fmt.Errorf("setting loop count: %w", err)
		}
	}
	p.stats.BytesFed = readSize
	p.pcm = make([]int16, int(p.engine.Track().SamplesPerFrame())*opts.OutputChannels)

	logInfo("atrac player ready",
		zap.Stringer("engine", opts.Engine),
		zap.Uint32("fileSize", fileSize),
		zap.Uint32("bufferSize", bufferSize),
		zap.Stringer("status", p.engine.Status()))
	return p, nil
}

func (p *AtracPlayer) Engine() AtracEngine { return p.engine }
func (p *AtracPlayer) Memory() *SystemBus  { return p.mem }
func (p *AtracPlayer) Stats() PlayerStats  { return p.stats }

// Close releases the atrac id. Calling it twice is harmless.
func (p *AtracPlayer) Close() {
	if p.engine == nil {
		return
	}
	_ = p.slots.Release(p.handle)
	p.engine = nil
}

// Feed tops up the data buffer from the host copy of the file. It returns
// the number of bytes delivered.
func (p *AtracPlayer) Feed() (uint32, error) {
	writePtr, writable, readOffset := p.engine.GetStreamDataInfo()
	if writable == 0 {
		return 0, nil
	}
	if readOffset >= uint32(len(p.data)) {
		return 0, nil
	}
	n := min(writable, uint32(len(p.data))-readOffset)
	p.mem.WriteBytes(writePtr, p.data[readOffset:readOffset+n])
	if err := p.engine.AddStreamData(n); err != nil {
		return 0, fmt.Errorf("adding stream data: %w", err)
	}
	p.stats.Refills++
	p.stats.BytesFed += n
	return n, nil
}

// Step decodes one frame into the sink. done is set once the track has
// been decoded to its end.
func (p *AtracPlayer) Step(sink PCMSink) (done bool, err error) {
	fed, err := p.Feed()
	if err != nil {
		return false, err
	}
	res, err := p.engine.DecodeData(p.pcmAddr)
	switch {
	case errors.Is(err, SCE_ERROR_ATRAC_ALL_DATA_DECODED):
		return true, nil
	case errors.Is(err, SCE_ERROR_ATRAC_BUFFER_IS_EMPTY):
		if fed == 0 {
			return false, fmt.Errorf("stream stalled at sample %d: %w", p.engine.CurrentSample(), err)
		}
		return false, nil
	case err != nil:
		return false, fmt.Errorf("decoding frame %d: %w", p.stats.Frames, err)
	}

	p.stats.Frames++
	p.stats.Samples += res.Samples
	if res.Samples > 0 && sink != nil {
		pcm := p.readPCM(res.Samples)
		if err := sink.WritePCM(pcm, p.opts.OutputChannels); err != nil {
			return false, err
		}
	}
	return res.Finish, nil
}

func (p *AtracPlayer) readPCM(samples int) []int16 {
	n := samples * p.opts.OutputChannels
	raw := p.mem.ReadBytes(p.pcmAddr, uint32(n*2))
	pcm := p.pcm[:n]
	for i := range pcm {
		pcm[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
	}
	return pcm
}

// Run steps until the end of the track.
func (p *AtracPlayer) Run(sink PCMSink) (PlayerStats, error) {
	for {
		done, err := p.Step(sink)
		if err != nil {
			p.stats.FinalStatus = p.engine.Status()
			return p.stats, err
		}
		if done {
			break
		}
	}
	p.engine.WriteContext()
	p.stats.FinalStatus = p.engine.Status()
	logInfo("atrac playback finished",
		zap.Int("frames", p.stats.Frames),
		zap.Int("samples", p.stats.Samples),
		zap.Int("refills", p.stats.Refills))
	return p.stats, nil
}

// PCMRing hands PCM from the decode loop to the audio callback. Write
// blocks while the ring is full; Read never blocks and pads with silence.
type PCMRing struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    []int16
	head   int
	count  int
	closed bool

	// onFull runs with the lock held when a write finds the ring full and
	// no audio callback is pulling from it.
	onFull func()
}

func NewPCMRing(capacity int) *PCMRing {
	r := &PCMRing{buf: make([]int16, capacity)}
	r.cond = sync.NewCond(&r.mu)
	return r
}

func (r *PCMRing) WritePCM(pcm []int16, channels int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for len(pcm) > 0 {
		for r.count == len(r.buf) && !r.closed {
			if r.onFull != nil {
				r.onFull()
				continue
			}
			r.cond.Wait()
		}
		if r.closed {
			return errors.New("pcm ring closed")
		}
		tail := (r.head + r.count) % len(r.buf)
		n := min(len(pcm), len(r.buf)-r.count, len(r.buf)-tail)
		copy(r.buf[tail:tail+n], pcm[:n])
		r.count += n
		pcm = pcm[n:]
	}
	return nil
}

// Read fills p with little-endian 16-bit samples.
func (r *PCMRing) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.readLocked(p)
	r.cond.Broadcast()
	return n, nil
}

func (r *PCMRing) readLocked(p []byte) int {
	for i := 0; i+1 < len(p); i += 2 {
		var s int16
		if r.count > 0 {
			s = r.buf[r.head]
			r.head = (r.head + 1) % len(r.buf)
			r.count--
		}
		binary.LittleEndian.PutUint16(p[i:], uint16(s))
	}
	return len(p) &^ 1
}

// Buffered is the number of samples waiting to be played.
func (r *PCMRing) Buffered() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

func (r *PCMRing) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.cond.Broadcast()
	return nil
}

// Seek moves playback to sample the way a game does: ask where the data
// for that position goes, deliver it, then reset.
func (p *AtracPlayer) Seek(sample int) error {
	info, err := p.engine.GetResetBufferInfo(sample)
	if err != nil {
		return fmt.Errorf("reset buffer info for sample %d: %w", sample, err)
	}
	var n uint32
	if info.First.WritableBytes > 0 && info.First.FilePos < uint32(len(p.data)) {
		n = min(info.First.WritableBytes, uint32(len(p.data))-info.First.FilePos)
		p.mem.WriteBytes(info.First.WritePosPtr, p.data[info.First.FilePos:info.First.FilePos+n])
	}
	if err := p.engine.ResetPlayPosition(sample, n, 0); err != nil {
		return fmt.Errorf("resetting to sample %d: %w", sample, err)
	}
	p.stats.BytesFed += n
	logDebug("atrac seek", zap.Int("sample", sample), zap.Uint32("bytes", n))
	return nil
}
