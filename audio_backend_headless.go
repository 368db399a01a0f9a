//go:build headless

// audio_backend_headless.go - Silent audio output for headless builds

package main

// OtoPlayer drains the ring at no particular rate so the decode loop never
// blocks on a full ring.
type OtoPlayer struct {
	started bool
	ring    *PCMRing
	scratch []byte
}

func NewOtoPlayer(sampleRate, channels int) (*OtoPlayer, error) {
	return &OtoPlayer{scratch: make([]byte, 4096)}, nil
}

func (op *OtoPlayer) SetupPlayer(ring *PCMRing) {
	op.ring = ring
	ring.onFull = op.drain
}

func (op *OtoPlayer) drain() {
	op.ring.readLocked(op.scratch)
}

func (op *OtoPlayer) Read(p []byte) (n int, err error) {
	if op.ring == nil {
		return len(p), nil
	}
	return op.ring.Read(p)
}

func (op *OtoPlayer) Start() {
	op.started = true
}

func (op *OtoPlayer) Stop() {
	op.started = false
}

func (op *OtoPlayer) Close() {
	op.started = false
}

func (op *OtoPlayer) IsStarted() bool {
	return op.started
}

func init() {
	compiledFeatures = append(compiledFeatures, "audio:headless")
}
