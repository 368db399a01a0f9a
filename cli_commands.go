// cli_commands.go - Command line interface for the Atrac engine harness

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"
)

type cliOptions struct {
	envFile  string
	engine   string
	buffer   uint32
	channels int
	logLevel string
	logFile  string
	loops    int
	output   string
	watch    bool

	cfg Config
}

func newRootCommand() *cobra.Command {
	opts := &cliOptions{}

	root := &cobra.Command{
		Use:           "atrac_engine",
		Short:         "Drive PSP ATRAC3/ATRAC3+ files through the sceAtrac context engines",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.envFile, "env", ".env", "Environment file to load")
	pf.StringVar(&opts.engine, "engine", "", "Context engine: legacy or hw")
	pf.Uint32Var(&opts.buffer, "buffer", 0, "Data buffer size in bytes, 0 loads the whole file")
	pf.IntVar(&opts.channels, "channels", 0, "Output channels (1 or 2)")
	pf.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&opts.logFile, "log-file", "", "Also write logs to this file")

	root.AddCommand(
		newInfoCommand(opts),
		newDecodeCommand(opts),
		newPlayCommand(opts),
		newScriptCommand(opts),
		newVersionCommand(),
	)
	return root
}

// setup merges .env, environment and flags, then starts logging.
func (o *cliOptions) setup(cmd *cobra.Command) error {
	cfg, err := LoadConfig(o.envFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	flags := cmd.Flags()
	if flags.Changed("engine") {
		if cfg.Engine, err = ParseEngineKind(o.engine); err != nil {
			return err
		}
	}
	if flags.Changed("buffer") {
		cfg.BufferSize = o.buffer
	}
	if flags.Changed("channels") {
		if o.channels != 1 && o.channels != 2 {
			return fmt.Errorf("channels must be 1 or 2, got %d", o.channels)
		}
		cfg.OutputChannels = o.channels
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = LogLevel(o.logLevel)
	}
	if flags.Changed("log-file") {
		cfg.LogFile = o.logFile
	}
	o.cfg = cfg

	InitLogger(LogConfig{
		Level:      cfg.LogLevel,
		OutputPath: cfg.LogFile,
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
		RunID:      uuid.NewString(),
	})
	logDebug("configuration loaded",
		zap.Stringer("engine", cfg.Engine),
		zap.Uint32("bufferSize", cfg.BufferSize),
		zap.Int("channels", cfg.OutputChannels))
	return nil
}

func (o *cliOptions) playerOptions() PlayerOptions {
	return PlayerOptions{
		Engine:         o.cfg.Engine,
		BufferSize:     o.cfg.BufferSize,
		OutputChannels: o.cfg.OutputChannels,
		LoopNum:        o.loops,
	}
}

func newInfoCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "info <file>",
		Short: "Analyze an .at3 or .oma file and print its track layout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := LoadAtracFile(args[0], opts.playerOptions())
			if err != nil {
				return err
			}
			defer p.Close()
			printTrackInfo(cmd, p.Engine())
			return nil
		},
	}
}

func printTrackInfo(cmd *cobra.Command, e AtracEngine) {
	t := e.Track()
	out := cmd.OutOrStdout()
	codec := "ATRAC3"
	if t.CodecType == PSP_MODE_AT_3_PLUS {
		codec = "ATRAC3+"
	}
	fmt.Fprintf(out, "Codec:          %s (0x%04x)\n", codec, t.CodecType)
	fmt.Fprintf(out, "Channels:       %d\n", t.Channels)
	fmt.Fprintf(out, "Bitrate:        %d kbps\n", t.Bitrate)
	fmt.Fprintf(out, "Frame size:     %d bytes, %d samples\n", t.BytesPerFrame, t.SamplesPerFrame())
	fmt.Fprintf(out, "File size:      %d bytes, data at 0x%x\n", t.FileSize, t.DataByteOffset)
	fmt.Fprintf(out, "End sample:     %d (first sample offset %d)\n", t.EndSample, t.FirstSampleOffset)
	if t.HasLoop() {
		fmt.Fprintf(out, "Loop:           %d..%d (%d loop entries)\n", t.LoopStartSample, t.LoopEndSample, len(t.LoopInfo))
	} else {
		fmt.Fprintf(out, "Loop:           none\n")
	}
	fmt.Fprintf(out, "Engine:         %s\n", e.Kind())
	fmt.Fprintf(out, "Status:         %s\n", e.Status())
	fmt.Fprintf(out, "Remain frames:  %d\n", e.RemainingFrames())
	if off, size, err := e.GetSecondBufferInfo(); err == nil {
		fmt.Fprintf(out, "Second buffer:  %d bytes from 0x%x\n", size, off)
	}
}

func newDecodeCommand(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode <file>",
		Short: "Decode a file through the engine into a WAV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.output == "" {
				return fmt.Errorf("an output file is required (-o)")
			}
			p, err := LoadAtracFile(args[0], opts.playerOptions())
			if err != nil {
				return err
			}
			defer p.Close()

			w, err := NewWavWriter(opts.output, opts.cfg.SampleRate, opts.cfg.OutputChannels)
			if err != nil {
				return err
			}
			stats, runErr := p.Run(w)
			if err := w.Close(); err != nil && runErr == nil {
				runErr = err
			}
			if runErr != nil {
				return runErr
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Decoded %d frames, %d samples, %d refills -> %s\n",
				stats.Frames, stats.Samples, stats.Refills, opts.output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "WAV file to write")
	cmd.Flags().IntVar(&opts.loops, "loops", 0, "Loop count, -1 loops forever")
	return cmd
}

func newPlayCommand(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "play <file>",
		Short: "Play a file through the engine on the default audio device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(cmd, opts, args[0])
		},
	}
	cmd.Flags().IntVar(&opts.loops, "loops", 0, "Loop count, -1 loops forever")
	return cmd
}

func runPlay(cmd *cobra.Command, opts *cliOptions, path string) error {
	p, err := LoadAtracFile(path, opts.playerOptions())
	if err != nil {
		return err
	}
	defer p.Close()

	channels := opts.cfg.OutputChannels
	out, err := NewOtoPlayer(opts.cfg.SampleRate, channels)
	if err != nil {
		return fmt.Errorf("opening audio output: %w", err)
	}
	defer out.Close()

	// Half a second of audio.
	ring := NewPCMRing(opts.cfg.SampleRate / 2 * channels)
	out.SetupPlayer(ring)
	out.Start()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		ring.Close()
	}()

	boilerPlate()
	fd := int(os.Stdout.Fd())
	tty := term.IsTerminal(fd)
	for {
		done, err := p.Step(ring)
		if ctx.Err() != nil {
			break
		}
		if err != nil {
			return err
		}
		if tty {
			printStatusLine(fd, p)
		}
		if done {
			break
		}
	}
	// Let the tail drain. The ring holds half a second at most.
	deadline := time.Now().Add(time.Second)
	for ring.Buffered() > 0 && ctx.Err() == nil && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if tty {
		fmt.Println()
	}
	return nil
}

func printStatusLine(fd int, p *AtracPlayer) {
	e := p.Engine()
	line := fmt.Sprintf("sample %d  status %s  remain %d  loops %d",
		e.CurrentSample(), e.Status(), e.RemainingFrames(), e.LoopNum())
	if width, _, err := term.GetSize(fd); err == nil && width > 1 && len(line) >= width {
		line = line[:width-1]
	}
	fmt.Printf("\r%s\033[K", line)
}

func newScriptCommand(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "script <file.lua>",
		Short: "Run a Lua scenario script against the engines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !opts.watch {
				return RunScript(args[0], opts.cfg)
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return WatchScript(ctx, args[0], opts.cfg, func(err error) {
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "FAIL %s\n", strings.TrimSpace(err.Error()))
					return
				}
				fmt.Fprintf(cmd.OutOrStdout(), "ok   %s\n", args[0])
			})
		},
	}
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "Rerun the script whenever it changes")
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and compiled features",
		Args:  cobra.NoArgs,
		// Skips config and logging setup.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			boilerPlate()
			fmt.Println()
			printFeatures(cmd.OutOrStdout())
		},
	}
}
