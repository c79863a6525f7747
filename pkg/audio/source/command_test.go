package source

import (
	"context"
	"errors"
	"io"
	"os/exec"
	"runtime"
	"strings"
	"testing"
)

func TestBuildCaptureCommand_Linux(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("linux capture defaults")
	}
	tests := []struct {
		name     string
		cfg      CommandConfig
		wantCmd  string
		wantArgs string
	}{
		{
			name:     "microphone default",
			cfg:      CommandConfig{},
			wantCmd:  "arecord",
			wantArgs: "-D default -f S16_LE -r 48000 -c 2 -t raw -q -",
		},
		{
			name:     "microphone device",
			cfg:      CommandConfig{Kind: KindMicrophone, Device: "hw:1,0"},
			wantCmd:  "arecord",
			wantArgs: "-D hw:1,0 -f S16_LE -r 48000 -c 2 -t raw -q -",
		},
		{
			name:     "loopback via custom ffmpeg",
			cfg:      CommandConfig{Kind: KindLoopback, FFmpegPath: "/opt/ffmpeg"},
			wantCmd:  "/opt/ffmpeg",
			wantArgs: "-f pulse -i @DEFAULT_MONITOR@ -nostdin -hide_banner -loglevel warning -vn -f s16le -ac 2 -ar 48000 pipe:1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, args, err := BuildCaptureCommand(tt.cfg)
			if err != nil {
				t.Fatalf("BuildCaptureCommand: %v", err)
			}
			if cmd != tt.wantCmd {
				t.Errorf("cmd = %q, want %q", cmd, tt.wantCmd)
			}
			if got := strings.Join(args, " "); got != tt.wantArgs {
				t.Errorf("args = %q, want %q", got, tt.wantArgs)
			}
		})
	}
}

func TestBuildCaptureCommand_NoDevice(t *testing.T) {
	if runtime.GOOS != "windows" {
		t.Skip("only windows lacks a default device")
	}
	if _, _, err := BuildCaptureCommand(CommandConfig{}); !errors.Is(err, ErrNoDevice) {
		t.Errorf("err = %v, want ErrNoDevice", err)
	}
}

func TestCommand_ReadsStdoutUntilExit(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	// 100 ms of 48 kHz stereo int16 is 19200 bytes.
	c, err := startCommand(context.Background(), sh, []string{"-c", "head -c 19200 /dev/zero"}, 0)
	if err != nil {
		t.Fatalf("startCommand: %v", err)
	}
	defer c.Close()

	total := 0
	for {
		blk, err := c.Next(context.Background())
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		total += len(blk.Data)
	}
	if total != 19200 {
		t.Errorf("read %d bytes, want 19200", total)
	}
}

func TestCommand_FailureCarriesStderr(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	c, err := startCommand(context.Background(), sh, []string{"-c", "echo 'device busy' >&2; exit 3"}, 0)
	if err != nil {
		t.Fatalf("startCommand: %v", err)
	}
	defer c.Close()

	_, err = c.Next(context.Background())
	if err == nil || errors.Is(err, io.EOF) {
		t.Fatalf("err = %v, want capture failure", err)
	}
	if !strings.Contains(err.Error(), "device busy") {
		t.Errorf("err = %v, want stderr tail", err)
	}
}

func TestCommand_CloseStopsProcess(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	c, err := startCommand(context.Background(), sh, []string{"-c", "exec cat /dev/zero"}, 0)
	if err != nil {
		t.Fatalf("startCommand: %v", err)
	}
	if _, err := c.Next(context.Background()); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
