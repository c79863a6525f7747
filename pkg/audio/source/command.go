package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/murmur/pkg/audio"
)

// CaptureFormat is the fixed PCM layout requested from capture subprocesses:
// 48 kHz interleaved stereo, signed 16-bit little-endian.
var CaptureFormat = audio.Format{SampleRate: 48000, Channels: 2, Encoding: audio.EncodingInt16}

// shutdownTimeout bounds how long a capture process may take to exit after
// the interrupt before it is killed.
const shutdownTimeout = 3 * time.Second

// CommandConfig describes a capture subprocess.
type CommandConfig struct {
	// Kind selects platform defaults (microphone or loopback).
	Kind Kind

	// Device is the platform device identifier. Empty selects the platform
	// default for Kind, if there is one.
	Device string

	// FFmpegPath overrides the ffmpeg executable on platforms that capture
	// through ffmpeg.
	FFmpegPath string

	// BlockDuration sets how much audio each Next call returns.
	BlockDuration time.Duration
}

// BuildCaptureCommand returns the executable and arguments that capture
// cfg.Kind from cfg.Device on the current platform as raw [CaptureFormat]
// PCM on stdout.
func BuildCaptureCommand(cfg CommandConfig) (string, []string, error) {
	kind := cfg.Kind
	if kind == "" {
		kind = KindMicrophone
	}
	p := platformCapture(kind)

	device := cfg.Device
	if device == "" {
		device = p.defaultDevice
	}
	if device == "" {
		return "", nil, fmt.Errorf("%w for %s capture", ErrNoDevice, kind)
	}

	cmd := p.command
	if p.usesFFmpeg && cfg.FFmpegPath != "" {
		cmd = cfg.FFmpegPath
	}
	return cmd, p.buildArgs(device), nil
}

// Command is a [Source] that reads raw PCM from a capture subprocess's
// stdout. The process is started by [NewCommand] and stopped by Close or by
// cancelling the context passed to NewCommand.
type Command struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *bytes.Buffer
	cancel context.CancelFunc
	buf    []byte

	emitted time.Duration

	closeOnce sync.Once
	closeErr  error
}

// NewCommand builds the platform capture command for cfg and starts it.
func NewCommand(ctx context.Context, cfg CommandConfig) (*Command, error) {
	name, args, err := BuildCaptureCommand(cfg)
	if err != nil {
		return nil, err
	}
	return startCommand(ctx, name, args, cfg.BlockDuration)
}

// startCommand runs name with args and wires its stdout as the PCM stream.
func startCommand(ctx context.Context, name string, args []string, block time.Duration) (*Command, error) {
	ctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, name, args...)

	// Interrupt first, kill after shutdownTimeout.
	cmd.Cancel = func() error {
		return interrupt(cmd)
	}
	cmd.WaitDelay = shutdownTimeout

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("source: stdout pipe: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	slog.Info("starting audio capture", "command", name, "args", strings.Join(args, " "))
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("source: start %s: %w", name, err)
	}

	return &Command{
		cmd:    cmd,
		stdout: stdout,
		stderr: &stderr,
		cancel: cancel,
		buf:    make([]byte, blockBytes(CaptureFormat, block)),
	}, nil
}

// Format implements [Source].
func (c *Command) Format() audio.Format { return CaptureFormat }

// Next implements [Source]. When the process exits, Next returns io.EOF for a
// clean exit and a wrapped error carrying the last stderr line otherwise.
func (c *Command) Next(ctx context.Context) (audio.Block, error) {
	if err := ctx.Err(); err != nil {
		return audio.Block{}, err
	}
	n, err := readBlock(c.stdout, c.buf)
	if err != nil {
		if werr := c.wait(); werr != nil && ctx.Err() == nil {
			return audio.Block{}, werr
		}
		if errors.Is(err, io.EOF) || ctx.Err() != nil {
			return audio.Block{}, io.EOF
		}
		return audio.Block{}, err
	}

	ts := c.emitted
	c.emitted += audio.DurationOf(n/CaptureFormat.FrameBytes(), CaptureFormat.SampleRate)
	data := make([]byte, n)
	copy(data, c.buf[:n])
	return audio.Block{Data: data, Format: CaptureFormat, Timestamp: ts}, nil
}

// wait reaps the process once and reports a non-clean exit.
func (c *Command) wait() error {
	c.closeOnce.Do(func() {
		err := c.cmd.Wait()
		c.cancel()
		if err != nil {
			if last := lastLine(c.stderr.String()); last != "" {
				err = fmt.Errorf("%w: %s", err, last)
			}
			c.closeErr = fmt.Errorf("source: capture process: %w", err)
		}
	})
	return c.closeErr
}

// Close implements [Source]. It interrupts the process and waits for it to
// exit. An exit caused by Close is not reported as an error.
func (c *Command) Close() error {
	c.cancel()
	_ = c.wait()
	return nil
}

// lastLine returns the last non-empty line of s.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}

// platformConfig describes how one platform captures one [Kind].
type platformConfig struct {
	command       string
	defaultDevice string
	usesFFmpeg    bool
	buildArgs     func(device string) []string
}

// ffmpegCaptureArgs returns ffmpeg arguments reading inputFormat/device and
// writing [CaptureFormat] PCM to stdout.
func ffmpegCaptureArgs(inputFormat, device string) []string {
	return []string{
		"-f", inputFormat,
		"-i", device,
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-vn",
		"-f", "s16le",
		"-ac", "2",
		"-ar", "48000",
		"pipe:1",
	}
}

var _ Source = (*Command)(nil)
