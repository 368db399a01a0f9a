// atrac_script.go - Lua scenario scripts for exercising the ATRAC engines

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
atrac_script.go - Scenario scripts

A script drives one AtracPlayer through the same calls a game makes, so a
buffering scenario can be replayed without a game. Everything lives in the
global "atrac" table:

    atrac.open(path [, {engine=, buffer=, channels=, loops=}])
    atrac.feed()                     -> bytes delivered
    atrac.decode()                   -> samples, finish, remains, code
    atrac.run()                      -> frames, samples, code
    atrac.seek(sample)               -> code
    atrac.set_loop(n)                -> code
    atrac.remaining() / atrac.next_samples() / atrac.sample()
    atrac.status()                   -> status name
    atrac.loop_status()
    atrac.save() / atrac.restore(s)  -> state string / code
    atrac.close()
    expect(cond, message)

Result codes are the raw sceAtrac values, 0 on success.
*/

package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

type ScriptHost struct {
	L      *lua.LState
	cfg    Config
	player *AtracPlayer
	sink   PCMSink
}

func NewScriptHost(cfg Config) *ScriptHost {
	h := &ScriptHost{L: lua.NewState(), cfg: cfg, sink: &discardSink{}}
	mod := h.L.SetFuncs(h.L.NewTable(), map[string]lua.LGFunction{
		"open":         h.luaOpen,
		"close":        h.luaClose,
		"feed":         h.luaFeed,
		"decode":       h.luaDecode,
		"run":          h.luaRun,
		"seek":         h.luaSeek,
		"set_loop":     h.luaSetLoop,
		"remaining":    h.luaRemaining,
		"next_samples": h.luaNextSamples,
		"sample":       h.luaSample,
		"status":       h.luaStatus,
		"loop_status":  h.luaLoopStatus,
		"save":         h.luaSave,
		"restore":      h.luaRestore,
	})
	h.L.SetGlobal("atrac", mod)
	h.L.SetGlobal("expect", h.L.NewFunction(luaExpect))
	return h
}

func (h *ScriptHost) Close() {
	if h.player != nil {
		h.player.Close()
		h.player = nil
	}
	h.L.Close()
}

func (h *ScriptHost) RunFile(path string) error {
	if err := h.L.DoFile(path); err != nil {
		return fmt.Errorf("script %s: %w", filepath.Base(path), err)
	}
	return nil
}

func (h *ScriptHost) RunString(src string) error {
	return h.L.DoString(src)
}

func luaCode(err error) lua.LNumber {
	return lua.LNumber(int32(ResultCode(err)))
}

func luaExpect(L *lua.LState) int {
	if !L.ToBool(1) {
		L.RaiseError("expectation failed: %s", L.OptString(2, "(no message)"))
	}
	return 0
}

func (h *ScriptHost) current(L *lua.LState) *AtracPlayer {
	if h.player == nil {
		L.RaiseError("no atrac file open")
	}
	return h.player
}

func (h *ScriptHost) luaOpen(L *lua.LState) int {
	path := L.CheckString(1)
	opts := PlayerOptions{
		Engine:         h.cfg.Engine,
		BufferSize:     h.cfg.BufferSize,
		OutputChannels: h.cfg.OutputChannels,
	}
	if tbl, ok := L.Get(2).(*lua.LTable); ok {
		if v, ok := tbl.RawGetString("engine").(lua.LString); ok {
			kind, err := ParseEngineKind(string(v))
			if err != nil {
				L.ArgError(2, err.Error())
			}
			opts.Engine = kind
		}
		if v, ok := tbl.RawGetString("buffer").(lua.LNumber); ok {
			opts.BufferSize = uint32(v)
		}
		if v, ok := tbl.RawGetString("channels").(lua.LNumber); ok {
			opts.OutputChannels = int(v)
		}
		if v, ok := tbl.RawGetString("loops").(lua.LNumber); ok {
			opts.LoopNum = int(v)
		}
	}
	if h.player != nil {
		h.player.Close()
		h.player = nil
	}
	p, err := LoadAtracFile(path, opts)
	if err != nil {
		L.RaiseError("%v", err)
	}
	h.player = p
	return 0
}

func (h *ScriptHost) luaClose(L *lua.LState) int {
	if h.player != nil {
		h.player.Close()
		h.player = nil
	}
	return 0
}

func (h *ScriptHost) luaFeed(L *lua.LState) int {
	n, err := h.current(L).Feed()
	if err != nil {
		L.Push(lua.LNumber(0))
		L.Push(luaCode(err))
		return 2
	}
	L.Push(lua.LNumber(n))
	return 1
}

func (h *ScriptHost) luaDecode(L *lua.LState) int {
	p := h.current(L)
	res, err := p.Engine().DecodeData(p.pcmAddr)
	if err == nil && res.Samples > 0 {
		if werr := h.sink.WritePCM(p.readPCM(res.Samples), p.opts.OutputChannels); werr != nil {
			L.RaiseError("%v", werr)
		}
	}
	L.Push(lua.LNumber(res.Samples))
	L.Push(lua.LBool(res.Finish))
	L.Push(lua.LNumber(res.Remains))
	L.Push(luaCode(err))
	return 4
}

func (h *ScriptHost) luaRun(L *lua.LState) int {
	stats, err := h.current(L).Run(h.sink)
	L.Push(lua.LNumber(stats.Frames))
	L.Push(lua.LNumber(stats.Samples))
	L.Push(luaCode(err))
	return 3
}

func (h *ScriptHost) luaSeek(L *lua.LState) int {
	L.Push(luaCode(h.current(L).Seek(L.CheckInt(1))))
	return 1
}

func (h *ScriptHost) luaSetLoop(L *lua.LState) int {
	L.Push(luaCode(h.current(L).Engine().SetLoopNum(L.CheckInt(1))))
	return 1
}

func (h *ScriptHost) luaRemaining(L *lua.LState) int {
	L.Push(lua.LNumber(h.current(L).Engine().RemainingFrames()))
	return 1
}

func (h *ScriptHost) luaNextSamples(L *lua.LState) int {
	L.Push(lua.LNumber(h.current(L).Engine().GetNextSamples()))
	return 1
}

func (h *ScriptHost) luaSample(L *lua.LState) int {
	L.Push(lua.LNumber(h.current(L).Engine().CurrentSample()))
	return 1
}

func (h *ScriptHost) luaStatus(L *lua.LState) int {
	L.Push(lua.LString(h.current(L).Engine().Status().String()))
	return 1
}

func (h *ScriptHost) luaLoopStatus(L *lua.LState) int {
	L.Push(lua.LNumber(h.current(L).Engine().LoopStatus()))
	return 1
}

func (h *ScriptHost) luaSave(L *lua.LState) int {
	data, err := h.current(L).Engine().SaveState()
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	L.Push(lua.LString(string(data)))
	return 1
}

func (h *ScriptHost) luaRestore(L *lua.LState) int {
	if err := h.current(L).Engine().LoadState([]byte(L.CheckString(1))); err != nil {
		L.Push(luaCode(err))
		return 1
	}
	L.Push(lua.LNumber(0))
	return 1
}

// RunScript runs path once in a fresh interpreter.
func RunScript(path string, cfg Config) error {
	h := NewScriptHost(cfg)
	defer h.Close()
	return h.RunFile(path)
}

// WatchScript runs path, then runs it again every time it is saved, until
// ctx is cancelled.
func WatchScript(ctx context.Context, path string, cfg Config, report func(error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	// Editors replace files on save, so watch the directory.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(path), err)
	}
	target := filepath.Clean(path)

	report(RunScript(path, cfg))

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				pending = time.After(100 * time.Millisecond)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logWarn("script watcher error", zap.Error(err))
		case <-pending:
			pending = nil
			logInfo("script changed, rerunning", zap.String("path", path))
			report(RunScript(path, cfg))
		}
	}
}
