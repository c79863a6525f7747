//go:build darwin

package source

import (
	"os"
	"os/exec"
)

// macOS has no native loopback device; loopback capture needs a virtual
// device such as BlackHole configured explicitly.
func platformCapture(kind Kind) platformConfig {
	def := ":0"
	if kind == KindLoopback {
		def = ""
	}
	return platformConfig{
		command:       "ffmpeg",
		defaultDevice: def,
		usesFFmpeg:    true,
		buildArgs: func(device string) []string {
			return ffmpegCaptureArgs("avfoundation", device)
		},
	}
}

func interrupt(cmd *exec.Cmd) error {
	return cmd.Process.Signal(os.Interrupt)
}
